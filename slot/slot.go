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

// Package slot implements the handler-slot primitive: single-slot, typed,
// service-scoped storage for one callback, parked by a state machine until
// either an explicit Post fires it or the owning Service is shut down.
//
// It is grounded on the original ma::handler_storage<Arg> plus
// handler_storage_service: a slot holds at most one callable, store
// replaces whatever was there, post atomically empties the slot and
// schedules the callable, and a runtime-wide service walks every live slot
// at shutdown so no callable outlives its runtime.
package slot

import (
	"errors"
	"sync"
	"sync/atomic"

	libatm "github.com/mabrarov/echo-server-go/atomic"
	"github.com/mabrarov/echo-server-go/strand"
)

// ErrEmpty is reported by Post when the slot holds no callable.
var ErrEmpty = errors.New("slot: post on empty handler slot")

// Slot is single-entry storage for a deferred callback taking one argument
// of type A. The zero value is not usable; construct one via NewSlot.
type Slot[A any] struct {
	svc    *Service
	key    uint64
	holder libatm.Value[any]
	str    *strand.Strand
}

// boxed carries the stored callable plus, optionally, the target capability
// view of the value it closes over (the erased session/object the callable
// was bound to), per the handler-slot's has_target/target contract.
type boxed[A any] struct {
	fn     func(A)
	target any
}

// Store installs fn as the slot's sole occupant, destroying whatever was
// previously stored. After the owning Service has been shut down, Store
// becomes a no-op that discards fn (there is nothing left to fire it).
func (s *Slot[A]) Store(fn func(A)) {
	s.StoreTargeted(fn, nil)
}

// StoreTargeted is Store plus a target: the value returned by Target while
// fn remains the slot's occupant, letting a caller reach through the
// type-erased callable to the concrete object it was bound to.
func (s *Slot[A]) StoreTargeted(fn func(A), target any) {
	if s.svc.isShutdown() {
		return
	}
	s.holder.Store(boxed[A]{fn: fn, target: target})
}

// Empty reports whether the slot currently holds no callable.
func (s *Slot[A]) Empty() bool {
	_, ok := s.load()
	return !ok
}

// HasTarget reports whether the stored callable was bound with a target.
func (s *Slot[A]) HasTarget() bool {
	b, ok := s.load()
	return ok && b.target != nil
}

// Target returns the target bound to the stored callable via StoreTargeted,
// or nil if the slot is empty or was populated via a plain Store.
func (s *Slot[A]) Target() any {
	b, ok := s.load()
	if !ok {
		return nil
	}
	return b.target
}

// Post removes the stored callable and schedules it, via the slot's
// strand, to run with arg bound. Returns ErrEmpty if the slot held nothing.
// Post is safe to call even if the Slot itself is concurrently destroyed:
// the callable is moved to a local before any further mutation happens.
func (s *Slot[A]) Post(arg A) error {
	b, ok := s.load()
	if !ok {
		return ErrEmpty
	}
	s.holder.Store(boxed[A]{})
	fn := b.fn
	s.str.Post(func() { fn(arg) })
	return nil
}

// Clear destroys any stored callable without invoking it.
func (s *Slot[A]) Clear() {
	s.holder.Store(boxed[A]{})
}

func (s *Slot[A]) load() (boxed[A], bool) {
	v := s.holder.Load()
	b, ok := v.(boxed[A])
	if !ok || b.fn == nil {
		return boxed[A]{}, false
	}
	return b, true
}

// Service is a per-runtime registry of live slots. On Shutdown it clears
// every still-registered slot so no stored callable outlives the runtime,
// satisfying the spec's "destroying the enclosing runtime releases every
// still-stored callable" invariant. Construct with NewService.
type Service struct {
	mu       sync.Mutex
	shutdown atomic.Bool
	clearers map[uint64]func()
	next     uint64
}

// NewService returns an empty, running Service.
func NewService() *Service {
	return &Service{clearers: make(map[uint64]func())}
}

func (svc *Service) isShutdown() bool {
	return svc.shutdown.Load()
}

// NewSlot registers and returns a new Slot[A] bound to str, the strand on
// which Post-scheduled callables will run.
func NewSlot[A any](svc *Service, str *strand.Strand) *Slot[A] {
	s := &Slot[A]{svc: svc, str: str, holder: libatm.NewValue[any]()}

	svc.mu.Lock()
	key := svc.next
	svc.next++
	svc.clearers[key] = s.Clear
	svc.mu.Unlock()
	s.key = key

	return s
}

// Shutdown clears every slot still registered with svc and marks svc shut
// down, so that any later Store becomes a no-op. Shutdown is idempotent.
func (svc *Service) Shutdown() {
	if !svc.shutdown.CompareAndSwap(false, true) {
		return
	}

	svc.mu.Lock()
	clearers := svc.clearers
	svc.clearers = make(map[uint64]func())
	svc.mu.Unlock()

	for _, clear := range clearers {
		clear()
	}
}
