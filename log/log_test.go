package log_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mabrarov/echo-server-go/log"
)

func TestLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := log.New(&buf, "debug")

	l.WithFields(log.Fields{"session": "s1"}).Info("started")

	require.Contains(t, buf.String(), "started")
	require.Contains(t, buf.String(), "session=s1")
}

func TestLoggerDefaultsOnBadLevel(t *testing.T) {
	var buf bytes.Buffer
	l := log.New(&buf, "not-a-level")

	l.Debug("should not appear")
	require.Empty(t, buf.String())

	l.Info("should appear")
	require.Contains(t, buf.String(), "should appear")
}
