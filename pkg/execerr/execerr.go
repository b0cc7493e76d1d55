// Copyright 2023-2024 daviszhen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package execerr defines the fragment-execution error taxonomy.
// Callers switch on it with errors.Is. The driver's cancellation path
// and fragment validation return these sentinels wrapped; pkg/exchange
// returns its own fmt.Errorf errors and passes RPC errors through
// unchanged, so errors.Is finds no sentinel in those.
package execerr

import (
	"errors"
	"fmt"
)

var (
	// Cancelled means a fragment-level cancellation token was observed.
	Cancelled = errors.New("cancelled")
	// MemoryLimitExceeded means a hierarchical memory tracker rejected
	// a reservation.
	MemoryLimitExceeded = errors.New("memory limit exceeded")
	// RemoteRpcFailed means a transmit RPC returned a non-OK status.
	RemoteRpcFailed = errors.New("remote rpc failed")
	// RemoteRpcTimeout means a transmit RPC did not complete before the
	// query deadline.
	RemoteRpcTimeout = errors.New("remote rpc timeout")
	// InternalError means an invariant was violated; recovered panics
	// from util.AssertFunc land here.
	InternalError = errors.New("internal error")
	// InvalidArgument means the plan/descriptor ingress was malformed.
	InvalidArgument = errors.New("invalid argument")
	// ResourceExhausted means a bounded resource (thread token, file
	// handle) could not be acquired.
	ResourceExhausted = errors.New("resource exhausted")
)

// Wrap attaches msg to one of the sentinel errors above, preserving
// errors.Is matching.
func Wrap(sentinel error, msg string) error {
	return &wrapped{sentinel: sentinel, msg: msg}
}

// Wrapf is Wrap with fmt-style formatting.
func Wrapf(sentinel error, format string, args ...any) error {
	return Wrap(sentinel, fmt.Sprintf(format, args...))
}

type wrapped struct {
	sentinel error
	msg      string
	cause    error
}

func (w *wrapped) Error() string {
	if w.msg == "" {
		return w.sentinel.Error()
	}
	return w.sentinel.Error() + ": " + w.msg
}

func (w *wrapped) Unwrap() error { return w.sentinel }

// FromPanic turns a recovered panic value into an InternalError,
// mirroring util.ConvertPanicError's message shape.
func FromPanic(v any) error {
	return Wrapf(InternalError, "panic: %v", v)
}
