package errcode_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mabrarov/echo-server-go/errcode"
)

func TestCodeMessage(t *testing.T) {
	require.Equal(t, "invalid state", errcode.InvalidState.Message())
	require.Equal(t, "unknown error", errcode.Code(999).Message())
}

func TestErrorWrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := errcode.OutOfWork.Error(cause)

	require.ErrorContains(t, err, "out of work")
	require.ErrorContains(t, err, "connection reset")
	require.True(t, errcode.Is(err, errcode.OutOfWork))
	require.False(t, errcode.Is(err, errcode.NoMemory))
}

func TestErrorWithoutCause(t *testing.T) {
	err := errcode.InactivityTimeout.Error(nil)
	require.Equal(t, "inactivity timeout", err.Error())
	require.Equal(t, errcode.InactivityTimeout, errcode.CodeOf(err))
}

func TestCodeOfPlainError(t *testing.T) {
	require.Equal(t, errcode.UnknownError, errcode.CodeOf(errors.New("boom")))
}
