package manager_test

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mabrarov/echo-server-go/manager"
	"github.com/mabrarov/echo-server-go/session"
	"github.com/mabrarov/echo-server-go/slot"
	"github.com/mabrarov/echo-server-go/stats"
	"github.com/mabrarov/echo-server-go/strand"
)

func newTestManager(t *testing.T, maxSessions, recycled int) (*manager.Manager, string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	svc := slot.NewService()
	str := strand.New(64)
	factory := session.NewSimpleFactory(svc, str, session.DefaultConfig(), recycled)

	m := manager.New(manager.Config{
		ListenAddr:    addr,
		MaxSessions:   maxSessions,
		RecycledLimit: recycled,
		SessionConfig: session.DefaultConfig(),
	}, str, svc, factory, stats.New(), nil)

	t.Cleanup(func() {
		done := make(chan struct{})
		m.Stop(func(error) { close(done) })
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
		svc.Shutdown()
		str.Close()
	})

	require.NoError(t, m.Start())
	return m, addr
}

func TestAdmissionControlAppliesBackPressureBeforeAccept(t *testing.T) {
	m, addr := newTestManager(t, 1, 0)

	c1, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer c1.Close()

	require.Eventually(t, func() bool {
		return m.Stats().Snapshot().Active == 1
	}, 2*time.Second, 10*time.Millisecond)

	// The OS may still complete this TCP handshake (it queues in the
	// listener's backlog), but the manager must not call Accept for it
	// while |active| >= max_sessions: no session is driving c2's socket,
	// so a byte written now must sit unechoed.
	c2, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer c2.Close()

	_, err = c2.Write([]byte{0x7a})
	require.NoError(t, err)

	buf := make([]byte, 1)
	c2.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, err = c2.Read(buf)
	require.Error(t, err, "c2 must not be admitted/echoed while admission is full")

	// Freeing the one permit (by ending c1's session) must let the
	// already-queued c2 be admitted, and the byte it wrote earlier echoed.
	require.NoError(t, c1.Close())

	c2.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = c2.Read(buf)
	require.NoError(t, err)
	require.Equal(t, byte(0x7a), buf[0])
}

func TestEchoRoundTripThroughManager(t *testing.T) {
	_, addr := newTestManager(t, 4, 2)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("ping"))
	require.NoError(t, err)

	buf := make([]byte, 4)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = conn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf))
}
