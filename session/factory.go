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
	"sync"

	"github.com/mabrarov/echo-server-go/errcode"
	"github.com/mabrarov/echo-server-go/slot"
	"github.com/mabrarov/echo-server-go/strand"
)

// Factory constructs and recycles Sessions. Two variants are provided:
// NewSimpleFactory, pinning every session to one shared executor, and
// NewPooledFactory, round-robining across a fixed vector of executors.
type Factory interface {
	// Create returns a recycled session if the pool has one, else builds a
	// fresh one. It can fail with errcode.NoMemory if allocation fails.
	Create() (*Session, error)
	// Release returns s to the pool it came from, or drops it on the floor
	// if the pool is already at capacity.
	Release(s *Session)
}

type simpleFactory struct {
	svc     *slot.Service
	str     *strand.Strand
	cfg     Config
	maxPool int

	mu   sync.Mutex
	pool []*Session
}

// NewSimpleFactory returns a Factory whose sessions all share str, with a
// bounded LIFO recycle pool of at most maxRecycled sessions.
func NewSimpleFactory(svc *slot.Service, str *strand.Strand, cfg Config, maxRecycled int) Factory {
	return &simpleFactory{svc: svc, str: str, cfg: cfg, maxPool: maxRecycled}
}

func (f *simpleFactory) Create() (*Session, error) {
	f.mu.Lock()
	if n := len(f.pool); n > 0 {
		s := f.pool[n-1]
		f.pool = f.pool[:n-1]
		f.mu.Unlock()
		return s, nil
	}
	f.mu.Unlock()

	return newSession(f.svc, f.str, f.cfg)
}

func (f *simpleFactory) Release(s *Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pool) >= f.maxPool {
		return
	}
	f.pool = append(f.pool, s)
}

// PoolSize reports the number of sessions currently sitting in the
// recycle pool, for the manager's stats snapshot.
func (f *simpleFactory) PoolSize() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pool)
}

type pooledFactory struct {
	svc     *slot.Service
	strands []*strand.Strand
	cfg     Config
	maxPool int

	mu     sync.Mutex
	next   int
	pools  []([]*Session)
	byConn map[*Session]int
}

// NewPooledFactory returns a Factory that round-robins across strands when
// building fresh sessions, and maintains one recycle pool per strand
// (each bounded by maxRecycled/len(strands), rounded up, mirroring the
// original's "recycled_session_count / N" split). Release returns a
// session to the pool associated with the executor it was built on.
func NewPooledFactory(svc *slot.Service, strands []*strand.Strand, cfg Config, maxRecycled int) Factory {
	perPool := (maxRecycled + len(strands) - 1) / len(strands)
	return &pooledFactory{
		svc:     svc,
		strands: strands,
		cfg:     cfg,
		maxPool: perPool,
		pools:   make([][]*Session, len(strands)),
		byConn:  make(map[*Session]int),
	}
}

func (f *pooledFactory) Create() (*Session, error) {
	f.mu.Lock()
	idx := f.next
	f.next = (f.next + 1) % len(f.strands)

	if n := len(f.pools[idx]); n > 0 {
		s := f.pools[idx][n-1]
		f.pools[idx] = f.pools[idx][:n-1]
		f.mu.Unlock()
		return s, nil
	}
	f.mu.Unlock()

	s, err := newSession(f.svc, f.strands[idx], f.cfg)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.byConn[s] = idx
	f.mu.Unlock()
	return s, nil
}

func (f *pooledFactory) Release(s *Session) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx, ok := f.byConn[s]
	if !ok {
		return
	}
	if len(f.pools[idx]) >= f.maxPool {
		return
	}
	f.pools[idx] = append(f.pools[idx], s)
}

// PoolSize reports the total number of sessions across every per-executor
// recycle pool, for the manager's stats snapshot.
func (f *pooledFactory) PoolSize() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.pools {
		n += len(p)
	}
	return n
}

// newSession is Factory's single allocation point. The underlying New
// never itself fails, but a Factory is the seam at which a future bounded
// allocator could report exhaustion, so the error return is kept real
// rather than collapsed to a bare constructor.
func newSession(svc *slot.Service, str *strand.Strand, cfg Config) (*Session, error) {
	if svc == nil || str == nil {
		return nil, errcode.NoMemory.Error(nil)
	}
	return New(svc, str, cfg), nil
}
