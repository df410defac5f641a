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

// Package ringbuf implements the session's fixed-capacity cyclic byte
// buffer: two regions, data (bytes ready to send) and prepared (bytes ready
// to be read into), each possibly split into two contiguous segments by
// wraparound. commit moves bytes from prepared into data (after a
// successful read); consume moves bytes from data into prepared (after a
// successful write).
package ringbuf

// Segments is the at-most-two-contiguous-segment view of a region,
// standing in for the original's const_buffers_type/mutable_buffers_type.
// A region that doesn't wrap yields seg[0] non-empty and seg[1] nil.
type Segments [2][]byte

// Len returns the total number of bytes across both segments.
func (s Segments) Len() int {
	return len(s[0]) + len(s[1])
}

// Buffer is a fixed-capacity ring buffer with commit/consume semantics.
// It is not safe for concurrent use; callers confine it to one strand.
type Buffer struct {
	data          []byte
	capacity      int
	preparedStart int
	preparedSize  int
	dataStart     int
	dataSize      int
}

// New returns a Buffer of the given capacity, initially entirely prepared
// (no bytes awaiting send).
func New(capacity int) *Buffer {
	return &Buffer{
		data:          make([]byte, capacity),
		capacity:      capacity,
		preparedStart: 0,
		preparedSize:  capacity,
		dataStart:     0,
		dataSize:      0,
	}
}

// Reset empties the data region back to the initial, all-prepared state.
// Post-condition: |data| = 0, |prepared| = capacity.
func (b *Buffer) Reset() {
	b.preparedSize = b.capacity
	b.preparedStart, b.dataStart, b.dataSize = 0, 0, 0
}

// Capacity returns the buffer's fixed total size.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// DataLen returns the number of bytes currently ready to send.
func (b *Buffer) DataLen() int {
	return b.dataSize
}

// PreparedLen returns the number of bytes currently ready to be read into.
func (b *Buffer) PreparedLen() int {
	return b.preparedSize
}

// Commit moves size bytes from prepared to data, following a successful
// read of size bytes into the Prepared() segments. Panics if size exceeds
// the current prepared length — the caller must never request more than
// Prepared returned room for.
func (b *Buffer) Commit(size int) {
	if size > b.preparedSize {
		panic("ringbuf: commit size exceeds prepared region")
	}
	b.preparedSize -= size
	b.dataSize += size

	d := b.capacity - b.preparedStart
	if size < d {
		b.preparedStart += size
	} else {
		b.preparedStart = size - d
	}
}

// Consume moves size bytes from data to prepared, following a successful
// write of size bytes from the Data() segments. Panics if size exceeds the
// current data length.
func (b *Buffer) Consume(size int) {
	if size > b.dataSize {
		panic("ringbuf: consume size exceeds data region")
	}
	b.dataSize -= size
	b.preparedSize += size

	d := b.capacity - b.dataStart
	if size < d {
		b.dataStart += size
	} else {
		b.dataStart = size - d
	}
}

// Data returns the bytes ready to send, clipped to at most max bytes (max
// <= 0 means unlimited), as up to two contiguous segments.
func (b *Buffer) Data(max int) Segments {
	return b.view(b.dataStart, b.dataSize, max)
}

// Prepared returns the space ready to be read into, clipped to at most max
// bytes (max <= 0 means unlimited), as up to two contiguous segments.
func (b *Buffer) Prepared(max int) Segments {
	return b.view(b.preparedStart, b.preparedSize, max)
}

func (b *Buffer) view(start, size, max int) Segments {
	if max > 0 && size > max {
		size = max
	}
	if size == 0 {
		return Segments{}
	}

	d := b.capacity - start
	if size > d {
		return Segments{
			b.data[start : start+d],
			b.data[0 : size-d],
		}
	}
	return Segments{b.data[start : start+size]}
}
