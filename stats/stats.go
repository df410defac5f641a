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

// Package stats holds the session manager's eight live counters, grounded
// on the original session_manager::stats_collector: a single mutex guards
// plain counter increments, since this is the one piece of state shared
// across strands rather than confined to one.
package stats

import (
	"fmt"
	"math"
	"sync"

	"github.com/mabrarov/echo-server-go/errcode"
)

const maxCount = math.MaxUint64

// Snapshot is an immutable copy of the eight counters at one instant.
type Snapshot struct {
	Active           uint64
	MaxActive        uint64
	Recycled         uint64
	TotalAccepted    uint64
	ActiveShutdowned uint64
	OutOfWork        uint64
	TimedOut         uint64
	ErrorStopped     uint64
}

// Collector accumulates the session manager's saturating counters. The
// zero value is not usable; construct with New.
type Collector struct {
	mu  sync.Mutex
	snp Snapshot
}

// New returns an empty Collector.
func New() *Collector {
	return &Collector{}
}

func satAdd(v *uint64) {
	if *v < maxCount {
		*v++
	}
}

// SetActiveCount records the current active-session count and rolls
// MaxActive forward if count is a new high.
func (c *Collector) SetActiveCount(count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snp.Active = uint64(count)
	if c.snp.Active > c.snp.MaxActive {
		c.snp.MaxActive = c.snp.Active
	}
}

// SetRecycledCount records the current recycled-pool size.
func (c *Collector) SetRecycledCount(count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snp.Recycled = uint64(count)
}

// SessionAccepted increments TotalAccepted when err is nil; a failed
// accept is not counted (it never produced an active session).
func (c *Collector) SessionAccepted(err error) {
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	satAdd(&c.snp.TotalAccepted)
}

// SessionStopped classifies the stop reason err and increments the
// matching counter, mirroring the original's four-way if-chain keyed on
// the server error category.
func (c *Collector) SessionStopped(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch errcode.CodeOf(err) {
	case errcode.OperationAborted:
		satAdd(&c.snp.ActiveShutdowned)
	case errcode.OutOfWork:
		satAdd(&c.snp.OutOfWork)
	case errcode.InactivityTimeout:
		satAdd(&c.snp.TimedOut)
	default:
		satAdd(&c.snp.ErrorStopped)
	}
}

// Reset zeroes every counter.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snp = Snapshot{}
}

// Snapshot returns a copy of the current counters.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snp
}

// String renders the counters the way the server prints them at shutdown,
// rendering a saturated value as ">N".
func (s Snapshot) String() string {
	render := func(v uint64) string {
		if v == maxCount {
			return fmt.Sprintf(">%d", v)
		}
		return fmt.Sprintf("%d", v)
	}

	return fmt.Sprintf(
		"active=%s max_active=%s recycled=%s total_accepted=%s "+
			"active_shutdowned=%s out_of_work=%s timed_out=%s error_stopped=%s",
		render(s.Active), render(s.MaxActive), render(s.Recycled),
		render(s.TotalAccepted), render(s.ActiveShutdowned),
		render(s.OutOfWork), render(s.TimedOut), render(s.ErrorStopped),
	)
}
