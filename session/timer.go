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

package session

import (
	"time"

	"github.com/mabrarov/echo-server-go/errcode"
)

// timerHandle wraps a time.Timer so a fire that raced a cancellation can be
// told apart from a live one, grounded on the spec's "timer handler that
// arrives after its own cancellation must behave as a no-op" requirement.
type timerHandle struct {
	t *time.Timer
}

func (h *timerHandle) stop() {
	if h != nil && h.t != nil {
		h.t.Stop()
	}
}

// armTimer (re)arms the inactivity timer for cfg.InactivityTimeout,
// invalidating any previously armed timer via the generation counter. A
// zero InactivityTimeout means the timer sub-machine stays ready forever
// and this is a no-op.
func (s *Session) armTimer() {
	if s.cfg.InactivityTimeout <= 0 {
		return
	}

	if s.timer != nil {
		s.timer.stop()
	}

	s.timerGen++
	gen := s.timerGen

	h := &timerHandle{}
	h.t = time.AfterFunc(s.cfg.InactivityTimeout, func() {
		s.str.Post(func() { s.handleTimerFired(gen) })
	})
	s.timer = h
}

// cancelTimer stops the inactivity timer and invalidates any in-flight
// fire so it is treated as stale when it eventually reaches the strand.
func (s *Session) cancelTimer() {
	if s.timer != nil {
		s.timer.stop()
		s.timer = nil
	}
	s.timerGen++
}

func (s *Session) handleTimerFired(gen uint64) {
	if gen != s.timerGen {
		return // stale fire raced a cancellation/re-arm; no-op
	}
	if s.state != stateWork || s.shuttingDown {
		return
	}
	s.beginShutdown(errcode.InactivityTimeout.Error(nil))
}
