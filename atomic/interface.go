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

package atomic

import (
	"sync"
	"sync/atomic"
)

// Value is a type-safe wrapper around sync/atomic.Value with default-value support.
// The handler slot keeps its stored callable in one; the session and manager
// phases and the stats counters are not held in Values.
type Value[T any] interface {
	// SetDefaultLoad sets the value returned by Load when nothing has been stored yet.
	SetDefaultLoad(def T)
	// SetDefaultStore sets the value substituted whenever Store/Swap/CompareAndSwap
	// is called with the zero value of T.
	SetDefaultStore(def T)

	// Load returns the current value, or the configured default load value if empty.
	Load() (val T)
	// Store sets the value, substituting the default store value for an empty T.
	Store(val T)
	// Swap atomically stores new and returns the previous value.
	Swap(new T) (old T)
	// CompareAndSwap atomically swaps old for new if the current value equals old.
	CompareAndSwap(old, new T) (swapped bool)
}

// Map is a comparable-keyed, type-erased concurrent map backed by sync.Map. The
// session manager's active-session registry uses it to track live entries
// without a hand-rolled mutex.
type Map[K comparable] interface {
	// Load returns the value stored for key, or ok=false if absent.
	Load(key K) (value any, ok bool)
	// Store sets the value for key, overwriting any previous value.
	Store(key K, value any)
	// LoadOrStore returns the existing value for key if present, else stores and returns value.
	LoadOrStore(key K, value any) (actual any, loaded bool)
	// LoadAndDelete removes key and returns its value, if present.
	LoadAndDelete(key K) (value any, loaded bool)
	// Delete removes key from the map.
	Delete(key K)
	// Swap stores value for key and returns the previous value, if any.
	Swap(key K, value any) (previous any, loaded bool)
	// CompareAndSwap swaps new in for key only if the current value equals old.
	CompareAndSwap(key K, old, new any) bool
	// CompareAndDelete removes key only if its current value equals old.
	CompareAndDelete(key K, old any) (deleted bool)
	// Range calls f for every key/value pair until f returns false.
	Range(f func(key K, value any) bool)
}

// NewMapAny returns a new Map[K] backed by sync.Map.
func NewMapAny[K comparable]() Map[K] {
	return &ma[K]{
		m: sync.Map{},
	}
}

// NewValue returns a new Value[T] with zero-value defaults for both load and store.
func NewValue[T any]() Value[T] {
	var (
		tmp1 T
		tmp2 T
	)

	return NewValueDefault[T](tmp1, tmp2)
}

// NewValueDefault returns a new Value[T] with the given default load and store values.
func NewValueDefault[T any](load, store T) Value[T] {
	o := &val[T]{
		av: new(atomic.Value),
		dl: new(atomic.Value),
		ds: new(atomic.Value),
	}

	o.SetDefaultLoad(load)
	o.SetDefaultStore(store)

	return o
}
