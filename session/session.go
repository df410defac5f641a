/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package session implements the per-connection full-duplex echo state
// machine: external states ready -> work -> stop -> stopped, internal
// read/write pumps over a cyclic buffer, and an inactivity timer, grounded
// on original_source/include/ma/echo/session.hpp's state_type and
// do_start/do_stop/do_wait/handle_read_some/handle_write_some.
package session

import (
	"io"
	"net"

	"github.com/mabrarov/echo-server-go/errcode"
	"github.com/mabrarov/echo-server-go/ringbuf"
	"github.com/mabrarov/echo-server-go/slot"
	"github.com/mabrarov/echo-server-go/strand"
)

type externalState int32

const (
	stateReady externalState = iota
	stateWork
	stateStop
	stateStopped
)

// Session is the per-connection echo state machine. All of its mutable
// fields are touched only from closures run on its own strand; construct
// with New and drive it exclusively through Start/Wait/Stop/Reset.
type Session struct {
	str *strand.Strand
	cfg Config
	buf *ringbuf.Buffer

	waitSlot *slot.Slot[error]
	stopSlot *slot.Slot[error]
	target   any

	conn net.Conn

	state           externalState
	readInProgress  bool
	writeInProgress bool
	shuttingDown    bool
	writeHalfClosed bool
	firstErr        error

	timer      *timerHandle
	timerGen   uint64
}

// New returns a fresh Session in the ready state, backed by cfg and using
// svc/str for its handler slots and strand.
func New(svc *slot.Service, str *strand.Strand, cfg Config) *Session {
	s := &Session{
		str:   str,
		cfg:   cfg,
		buf:   ringbuf.New(cfg.BufferSize),
		state: stateReady,
	}
	s.waitSlot = slot.NewSlot[error](svc, str)
	s.stopSlot = slot.NewSlot[error](svc, str)
	return s
}

// SetTarget binds t as the value Wait's and Stop's parked handlers report
// through their handler slot's Target, letting the owner (the manager) reach
// through an erased wait/stop callback back to the object it bound the
// session to. Precondition: called before Wait/Stop park a callback.
func (s *Session) SetTarget(t any) {
	s.target = t
}

// State reports the session's current external state, for diagnostics and
// tests; it is not part of the spec's operation surface.
func (s *Session) State() string {
	switch s.state {
	case stateReady:
		return "ready"
	case stateWork:
		return "work"
	case stateStop:
		return "stop"
	default:
		return "stopped"
	}
}

// Start binds conn to the session, applies socket options, and begins the
// read/write pump. Precondition: ready. cb fires once, synchronously
// ordered on the strand, with the option-application error (if any).
func (s *Session) Start(conn net.Conn, cb func(error)) {
	s.str.Post(func() {
		if s.state != stateReady {
			cb(errcode.OperationAborted.Error(nil))
			return
		}

		if tcp, ok := conn.(*net.TCPConn); ok {
			if err := applySocketOptions(tcp, s.cfg); err != nil {
				s.state = stateStopped
				cb(err)
				return
			}
		}

		s.conn = conn
		s.state = stateWork
		cb(nil)
		s.kick()
	})
}

// Wait parks cb to fire exactly once, the moment the session can no longer
// do useful work. Precondition: work, and the wait slot empty.
func (s *Session) Wait(cb func(error)) {
	s.str.Post(func() {
		if s.state != stateWork {
			cb(errcode.InvalidState.Error(nil))
			return
		}
		if !s.waitSlot.Empty() {
			cb(errcode.InvalidState.Error(nil))
			return
		}
		s.waitSlot.StoreTargeted(cb, s.target)
	})
}

// WaitTarget returns the target bound via SetTarget if a Wait callback is
// currently parked, or nil otherwise. It lets the manager discover which
// object a parked session belongs to without keeping a parallel index.
func (s *Session) WaitTarget() any {
	return s.waitSlot.Target()
}

// Stop requests teardown. Precondition: not already stopping/stopped. cb
// fires once when teardown completes (immediately if the session was still
// ready).
func (s *Session) Stop(cb func(error)) {
	s.str.Post(func() {
		if s.state == stateStop || s.state == stateStopped {
			cb(errcode.OperationAborted.Error(nil))
			return
		}

		if !s.waitSlot.Empty() {
			_ = s.waitSlot.Post(errcode.OperationAborted.Error(nil))
		}

		wasReady := s.state == stateReady
		s.state = stateStop
		s.stopSlot.StoreTargeted(cb, s.target)

		if wasReady {
			s.completeStop()
			return
		}

		s.beginShutdown(errcode.OperationAborted.Error(nil))
	})
}

// Reset returns a stopped session to the ready state so it can be recycled
// by a Factory. The caller must only call Reset once the stop handler has
// fired (pending_operations == 0): nothing is in flight by then, so no
// strand hop is required to touch the fields safely.
func (s *Session) Reset() {
	s.buf.Reset()
	s.state = stateReady
	s.readInProgress = false
	s.writeInProgress = false
	s.shuttingDown = false
	s.writeHalfClosed = false
	s.firstErr = nil
	s.conn = nil
	s.target = nil
	s.timerGen++
	if s.timer != nil {
		s.timer.stop()
		s.timer = nil
	}
}

// beginShutdown latches the first error, fires the wait handler (the
// moment the external phase would leave work), and starts draining
// in-flight I/O toward terminal stop.
func (s *Session) beginShutdown(err error) {
	if s.shuttingDown || s.state == stateStopped {
		return
	}
	if s.firstErr == nil {
		s.firstErr = err
	}
	s.shuttingDown = true
	s.cancelTimer()

	if !s.waitSlot.Empty() {
		_ = s.waitSlot.Post(s.firstErr)
	}

	if errcode.CodeOf(s.firstErr) == errcode.OutOfWork {
		// Passive shutdown: the peer is gone, but any data already read and
		// still buffered deserves to be flushed before we go further.
		s.maybeHalfCloseWrite()
	} else {
		// Active shutdown (operator stop, inactivity, any I/O error): abort
		// in-flight I/O immediately by closing the socket outright, which
		// converts pending reads/writes into errors delivered through the
		// normal completion path.
		if s.conn != nil {
			_ = s.conn.Close()
		}
		s.writeHalfClosed = true
	}
	s.maybeCompleteShutdown()
}

func (s *Session) maybeHalfCloseWrite() {
	if s.writeInProgress || s.writeHalfClosed {
		return
	}
	if cw, ok := s.conn.(interface{ CloseWrite() error }); ok && cw != nil {
		_ = cw.CloseWrite()
	}
	s.writeHalfClosed = true
}

// maybeCompleteShutdown transitions to stopped once every in-flight
// operation this session itself issued has drained. No new read/write is
// submitted once shuttingDown is set.
func (s *Session) maybeCompleteShutdown() {
	if !s.shuttingDown || s.readInProgress || s.writeInProgress {
		return
	}
	s.completeStop()
}

func (s *Session) completeStop() {
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.cancelTimer()
	s.state = stateStopped
	_ = s.stopSlot.Post(nil)
}

// kick submits a read and/or a write if the corresponding slot is idle and
// there is room/data to act on. Called after Start and after every
// completed I/O while the session is still in the work phase.
func (s *Session) kick() {
	if s.shuttingDown || s.state != stateWork {
		return
	}

	if !s.readInProgress {
		if seg := s.buf.Prepared(s.cfg.MaxTransferSize); seg.Len() > 0 {
			s.submitRead(seg)
		}
	}
	if !s.writeInProgress {
		if seg := s.buf.Data(s.cfg.MaxTransferSize); seg.Len() > 0 {
			s.submitWrite(seg)
		}
	}
}

func (s *Session) submitRead(seg ringbuf.Segments) {
	s.readInProgress = true
	s.armTimer()

	conn := s.conn
	go func() {
		n, err := readSegments(conn, seg)
		s.str.Post(func() { s.handleReadDone(n, err) })
	}()
}

func (s *Session) submitWrite(seg ringbuf.Segments) {
	s.writeInProgress = true
	s.armTimer()

	conn := s.conn
	go func() {
		n, err := writeSegments(conn, seg)
		s.str.Post(func() { s.handleWriteDone(n, err) })
	}()
}

func (s *Session) handleReadDone(n int, err error) {
	s.readInProgress = false

	if n > 0 {
		s.buf.Commit(n)
	}

	if s.shuttingDown {
		s.maybeCompleteShutdown()
		return
	}

	if err != nil {
		if err == io.EOF {
			s.beginShutdown(errcode.OutOfWork.Error(nil))
		} else {
			s.beginShutdown(errcode.UnknownError.Error(err))
		}
		return
	}

	s.kick()
}

func (s *Session) handleWriteDone(n int, err error) {
	s.writeInProgress = false

	if n > 0 {
		s.buf.Consume(n)
	}

	if s.shuttingDown {
		// Passive shutdown keeps flushing buffered data before the half-close.
		if err == nil && !s.writeHalfClosed {
			if seg := s.buf.Data(s.cfg.MaxTransferSize); seg.Len() > 0 {
				s.submitWrite(seg)
				return
			}
		}
		s.maybeHalfCloseWrite()
		s.maybeCompleteShutdown()
		return
	}

	if err != nil {
		s.beginShutdown(errcode.UnknownError.Error(err))
		return
	}

	s.kick()
}

// readSegments issues a single read into the primary segment, falling back
// to the secondary one only when the primary is empty (the wrap-split
// case). The standard library's net.Conn has no vectored Read, so a true
// single-syscall two-segment read would require a platform-specific
// readv — out of proportion for this module; one segment per call keeps
// the "single async transfer" semantics without that dependency.
func readSegments(conn net.Conn, seg ringbuf.Segments) (int, error) {
	target := seg[0]
	if len(target) == 0 {
		target = seg[1]
	}
	if len(target) == 0 {
		return 0, nil
	}
	return conn.Read(target)
}

// writeSegments writes both segments as one vectored operation via
// net.Buffers, which uses writev when the underlying conn supports it.
func writeSegments(conn net.Conn, seg ringbuf.Segments) (int, error) {
	bufs := net.Buffers{}
	for _, b := range seg {
		if len(b) > 0 {
			bufs = append(bufs, b)
		}
	}
	if len(bufs) == 0 {
		return 0, nil
	}
	n64, err := bufs.WriteTo(conn)
	return int(n64), err
}

func applySocketOptions(conn *net.TCPConn, cfg Config) error {
	// SO_LINGER(0,0): force RST-on-close rather than a graceful FIN wait.
	if err := conn.SetLinger(0); err != nil {
		return errcode.UnknownError.Error(err)
	}
	if cfg.RecvBufferSize > 0 {
		if err := conn.SetReadBuffer(cfg.RecvBufferSize); err != nil {
			return errcode.UnknownError.Error(err)
		}
	}
	if cfg.SendBufferSize > 0 {
		if err := conn.SetWriteBuffer(cfg.SendBufferSize); err != nil {
			return errcode.UnknownError.Error(err)
		}
	}
	switch cfg.NoDelay {
	case On:
		if err := conn.SetNoDelay(true); err != nil {
			return errcode.UnknownError.Error(err)
		}
	case Off:
		if err := conn.SetNoDelay(false); err != nil {
			return errcode.UnknownError.Error(err)
		}
	case Leave:
		// do not touch the option
	}
	return nil
}
