package session_test

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mabrarov/echo-server-go/errcode"
	"github.com/mabrarov/echo-server-go/session"
	"github.com/mabrarov/echo-server-go/slot"
	"github.com/mabrarov/echo-server-go/strand"
)

func newTestSession(cfg session.Config) (*session.Session, *strand.Strand, *slot.Service) {
	svc := slot.NewService()
	str := strand.New(16)
	return session.New(svc, str, cfg), str, svc
}

func TestEchoesOneByteAndWaitsOnPeerClose(t *testing.T) {
	cfg := session.DefaultConfig()
	s, str, svc := newTestSession(cfg)
	defer svc.Shutdown()
	defer str.Close()

	server, client := net.Pipe()

	started := make(chan error, 1)
	s.Start(server, func(err error) { started <- err })
	require.NoError(t, <-started)

	waited := make(chan error, 1)
	s.Wait(func(err error) { waited <- err })

	_, err := client.Write([]byte{0x42})
	require.NoError(t, err)

	echo := make([]byte, 1)
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = io.ReadFull(client, echo)
	require.NoError(t, err)
	require.Equal(t, byte(0x42), echo[0])

	require.NoError(t, client.Close())

	select {
	case err := <-waited:
		require.Equal(t, errcode.OutOfWork, errcode.CodeOf(err))
	case <-time.After(2 * time.Second):
		t.Fatal("wait handler never fired after peer close")
	}
}

func TestInactivityTimeoutClosesBlockedSession(t *testing.T) {
	cfg := session.DefaultConfig()
	cfg.InactivityTimeout = 50 * time.Millisecond
	s, str, svc := newTestSession(cfg)
	defer svc.Shutdown()
	defer str.Close()

	server, client := net.Pipe()
	defer client.Close()

	started := make(chan error, 1)
	s.Start(server, func(err error) { started <- err })
	require.NoError(t, <-started)

	waited := make(chan error, 1)
	s.Wait(func(err error) { waited <- err })

	select {
	case err := <-waited:
		require.Equal(t, errcode.InactivityTimeout, errcode.CodeOf(err))
	case <-time.After(2 * time.Second):
		t.Fatal("inactivity timeout never fired")
	}

	client.SetWriteDeadline(time.Now().Add(2 * time.Second))
	_, err := client.Write([]byte{0x01})
	require.Error(t, err, "write must fail once the server has torn the connection down")
}

func TestStartOnNonReadySessionReportsOperationAborted(t *testing.T) {
	cfg := session.DefaultConfig()
	s, str, svc := newTestSession(cfg)
	defer svc.Shutdown()
	defer str.Close()

	server, client := net.Pipe()
	defer client.Close()

	started := make(chan error, 1)
	s.Start(server, func(err error) { started <- err })
	require.NoError(t, <-started)

	second := make(chan error, 1)
	s.Start(server, func(err error) { second <- err })
	require.Equal(t, errcode.OperationAborted, errcode.CodeOf(<-second))
}

func TestWaitWithSlotAlreadyOccupiedReportsInvalidState(t *testing.T) {
	cfg := session.DefaultConfig()
	s, str, svc := newTestSession(cfg)
	defer svc.Shutdown()
	defer str.Close()

	server, client := net.Pipe()
	defer client.Close()

	started := make(chan error, 1)
	s.Start(server, func(err error) { started <- err })
	require.NoError(t, <-started)

	s.Wait(func(error) {})

	second := make(chan error, 1)
	s.Wait(func(err error) { second <- err })
	require.Equal(t, errcode.InvalidState, errcode.CodeOf(<-second))
}

func TestStopFromReadyCompletesImmediately(t *testing.T) {
	cfg := session.DefaultConfig()
	s, str, svc := newTestSession(cfg)
	defer svc.Shutdown()
	defer str.Close()

	stopped := make(chan error, 1)
	s.Stop(func(err error) { stopped <- err })

	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("stop from ready state never completed")
	}
}

func TestStopTwiceReportsOperationAbortedOnSecondCall(t *testing.T) {
	cfg := session.DefaultConfig()
	s, str, svc := newTestSession(cfg)
	defer svc.Shutdown()
	defer str.Close()

	server, client := net.Pipe()
	defer client.Close()

	started := make(chan error, 1)
	s.Start(server, func(err error) { started <- err })
	require.NoError(t, <-started)

	first := make(chan error, 1)
	s.Stop(func(err error) { first <- err })

	second := make(chan error, 1)
	s.Stop(func(err error) { second <- err })

	require.Equal(t, errcode.OperationAborted, errcode.CodeOf(<-second))
	<-first
}

func TestFirstErrorWinsAcrossWaitAndStop(t *testing.T) {
	cfg := session.DefaultConfig()
	cfg.InactivityTimeout = 50 * time.Millisecond
	s, str, svc := newTestSession(cfg)
	defer svc.Shutdown()
	defer str.Close()

	server, client := net.Pipe()
	defer client.Close()

	started := make(chan error, 1)
	s.Start(server, func(err error) { started <- err })
	require.NoError(t, <-started)

	waited := make(chan error, 1)
	s.Wait(func(err error) { waited <- err })

	firstErr := <-waited
	require.Equal(t, errcode.InactivityTimeout, errcode.CodeOf(firstErr))

	stopped := make(chan error, 1)
	s.Stop(func(err error) { stopped <- err })
	require.NoError(t, <-stopped, "the stop callback reports its own completion, not the latched first error")
}

func TestWaitTargetReportsBoundObjectWhileParked(t *testing.T) {
	cfg := session.DefaultConfig()
	s, str, svc := newTestSession(cfg)
	defer svc.Shutdown()
	defer str.Close()

	require.Nil(t, s.WaitTarget(), "no target before SetTarget/Wait")

	type owner struct{ id int }
	o := &owner{id: 9}
	s.SetTarget(o)

	server, client := net.Pipe()
	defer client.Close()

	started := make(chan error, 1)
	s.Start(server, func(err error) { started <- err })
	require.NoError(t, <-started)

	waited := make(chan error, 1)
	s.Wait(func(err error) { waited <- err })
	require.Eventually(t, func() bool {
		return s.WaitTarget() == o
	}, time.Second, 5*time.Millisecond, "Wait's handler slot must expose the bound target while parked")

	require.NoError(t, client.Close())
	<-waited
	require.Nil(t, s.WaitTarget(), "target is gone once the wait handler has fired")
}
