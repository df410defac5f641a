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

import "time"

// TriState replaces boost::tribool/boost::optional<bool> for a socket
// option that can be left at the OS default, explicitly enabled, or
// explicitly disabled.
type TriState int

const (
	// Leave means do not touch the option; keep whatever the OS defaults to.
	Leave TriState = iota
	// On explicitly enables the option.
	On
	// Off explicitly disables the option.
	Off
)

// Config is the immutable per-session configuration: buffer sizing,
// transfer bounds, inactivity timeout, and socket options, carried
// verbatim from spec.md section 3.
type Config struct {
	// BufferSize is the cyclic buffer's fixed capacity in bytes.
	BufferSize int
	// MaxTransferSize bounds every single async read/write.
	MaxTransferSize int
	// InactivityTimeout is the duration after which a session with no
	// successful I/O is stopped with InactivityTimeout. Zero means no
	// timeout (the timer sub-machine never starts).
	InactivityTimeout time.Duration
	// RecvBufferSize, if > 0, sets SO_RCVBUF; 0 means leave the OS default.
	RecvBufferSize int
	// SendBufferSize, if > 0, sets SO_SNDBUF; 0 means leave the OS default.
	SendBufferSize int
	// NoDelay controls TCP_NODELAY.
	NoDelay TriState
}

// DefaultConfig mirrors the original echo_server's command-line defaults
// (buffer=4096, max_transfer=4096, no inactivity timeout, socket options
// left at OS defaults).
func DefaultConfig() Config {
	return Config{
		BufferSize:      4096,
		MaxTransferSize: 4096,
	}
}
