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

// Package strand models the executor/strand contract the session and
// session-manager state machines assume: a logical serialiser on which
// tasks run one at a time, in FIFO order, never concurrently with each
// other, regardless of how many goroutines submit work to it.
//
// A Strand is a single-consumer job queue: exactly one goroutine drains it.
// State-machine code is written to run only from closures submitted to its
// owning Strand, which is what lets the machines avoid internal locking.
package strand

import "sync"

// Strand serialises submitted tasks onto one worker goroutine.
type Strand struct {
	tasks  chan func()
	done   chan struct{}
	once   sync.Once
	closed chan struct{}
}

// New starts a Strand with the given task-queue depth (0 means unbuffered;
// callers posting from the strand's own worker must never block, so a
// reasonable depth such as 64 is typical for I/O-completion fan-in).
func New(queueDepth int) *Strand {
	s := &Strand{
		tasks:  make(chan func(), queueDepth),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Strand) run() {
	defer close(s.done)
	for {
		select {
		case fn, ok := <-s.tasks:
			if !ok {
				return
			}
			fn()
		case <-s.closed:
			// Drain whatever was already queued before the strand was asked
			// to stop, then exit; nothing posted after Close is delivered.
			for {
				select {
				case fn, ok := <-s.tasks:
					if !ok {
						return
					}
					fn()
				default:
					return
				}
			}
		}
	}
}

// Post schedules fn to run later on the strand's worker goroutine. It never
// blocks the caller on fn's execution, only (briefly) on enqueueing.
func (s *Strand) Post(fn func()) {
	select {
	case s.tasks <- fn:
	case <-s.closed:
	}
}

// Wrap returns a closure that, when invoked from any goroutine, posts fn
// onto the strand. fn takes no arguments; a caller binds any completion
// values into fn itself. It is the
// vehicle for delivering I/O and timer completions from outside the strand
// back onto it.
func Wrap(s *Strand, fn func()) func() {
	return func() {
		s.Post(fn)
	}
}

// Close stops accepting new work and waits for the worker goroutine to
// drain the queue and exit. Close is idempotent.
func (s *Strand) Close() {
	s.once.Do(func() {
		close(s.closed)
	})
	<-s.done
}
