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

// Package errcode defines the server error category: the small, closed set
// of conditions the session and session-manager state machines themselves
// raise. Every other failure (a transport or OS-level error) is passed
// through unchanged rather than mapped into this taxonomy.
package errcode

import "github.com/pkg/errors"

// Code is a server-defined error category, distinct from any transport or
// OS-level error value the state machines may also surface.
type Code uint16

const (
	// UnknownError is the zero value: no specific code applies.
	UnknownError Code = iota
	// InvalidState reports an operation attempted in the wrong external phase,
	// e.g. calling stop twice or wait outside the work state.
	InvalidState
	// OperationAborted reports a cancellation initiated by an explicit stop.
	OperationAborted
	// InactivityTimeout reports that a session's inactivity timer fired.
	InactivityTimeout
	// OutOfWork reports that a machine ran out of useful work to do
	// (peer EOF on a session, or an empty active list plus a stopped
	// accept loop on a manager).
	OutOfWork
	// NoMemory reports a session-factory allocation failure.
	NoMemory
)

var messages = map[Code]string{
	UnknownError:      "unknown error",
	InvalidState:      "invalid state",
	OperationAborted:  "operation aborted",
	InactivityTimeout: "inactivity timeout",
	OutOfWork:         "out of work",
	NoMemory:          "no memory",
}

// Message returns the human-readable text for c, or "unknown error" if c is
// not one of the defined codes.
func (c Code) Message() string {
	if m, ok := messages[c]; ok {
		return m
	}
	return messages[UnknownError]
}

func (c Code) String() string {
	return c.Message()
}

// codedError pairs a Code with an optional wrapped cause.
type codedError struct {
	code  Code
	cause error
}

func (e *codedError) Error() string {
	if e.cause == nil {
		return e.code.Message()
	}
	return e.code.Message() + ": " + e.cause.Error()
}

// Unwrap lets errors.Is/errors.As see through to the wrapped cause.
func (e *codedError) Unwrap() error {
	return e.cause
}

// CodeOf returns the Code of err if it (or something it wraps) is a
// codedError produced by this package, and UnknownError otherwise.
func CodeOf(err error) Code {
	var ce *codedError
	if errors.As(err, &ce) {
		return ce.code
	}
	return UnknownError
}

// Error builds an error carrying code c, optionally wrapping cause.
// A nil cause produces a bare, message-only error.
func (c Code) Error(cause error) error {
	if cause != nil {
		cause = errors.WithStack(cause)
	}
	return &codedError{code: c, cause: cause}
}

// Is reports whether err carries exactly code c. It treats a nil err as
// never matching any non-zero code.
func Is(err error, c Code) bool {
	return CodeOf(err) == c
}
