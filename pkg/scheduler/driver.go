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

package scheduler

import (
	"sync"
	"sync/atomic"

	"github.com/flowshard/worker/pkg/chunk"
	"github.com/flowshard/worker/pkg/execerr"
	"github.com/flowshard/worker/pkg/operator"
)

// State is a Driver's finite-state-machine state.
type State int

const (
	Ready State = iota
	Running
	InputBlocked
	OutputBlocked
	Pending
	Finished
)

func (s State) String() string {
	switch s {
	case Ready:
		return "Ready"
	case Running:
		return "Running"
	case InputBlocked:
		return "InputBlocked"
	case OutputBlocked:
		return "OutputBlocked"
	case Pending:
		return "Pending"
	case Finished:
		return "Finished"
	default:
		return "Unknown"
	}
}

// YieldReason is why Process returned control without finishing.
type YieldReason int

const (
	YieldNone YieldReason = iota
	YieldTimeSlice
	YieldInputEmpty
	YieldOutputFull
	YieldCancelled
)

// Driver is one runnable unit: a pipeline plus its FSM state. Grounded
// on spec.md §3's Driver data-model paragraph and §4.5's transition
// table; the teacher has no analogue since its Runner.Execute runs a
// pipeline to completion on whatever goroutine calls it rather than
// cooperatively yielding back to a dispatcher.
//
// A Driver is owned by at most one worker at any instant: Process must
// only be called by whichever worker currently holds it (the
// dispatcher enforces this by only ever placing a Driver on the ready
// queue from one place at a time, never handing the same Driver to two
// workers concurrently) — the same single-owner invariant the
// teacher's ReentryLock protects for its fragment context's
// cancellation lock, reused here via CancelToken instead of a
// reentrant mutex, since a Driver is never re-entered recursively.
type Driver struct {
	Pipeline *operator.Pipeline

	mu    sync.Mutex
	state State

	wakeCh chan struct{}
	woken  atomic.Bool
	cancel *CancelToken

	// InputReady reports whether upstream has data available (e.g. an
	// exchange receiver's inbox is non-empty); nil means this driver's
	// source can never report empty-but-not-finished, so it is never
	// InputBlocked. OutputReady reports whether downstream can accept
	// more output (e.g. an exchange sender has no outstanding RPC);
	// nil means never OutputBlocked. Both are polled, not blocked on —
	// the §4.5 rule that a driver must yield rather than hold a lock
	// or sleep across a suspension point.
	InputReady  func() bool
	OutputReady func() bool
}

// NewDriver wraps a pipeline for scheduling. cancel may be shared by
// every driver of one fragment (spec.md §4.5's "fragment-level
// cancellation token").
func NewDriver(p *operator.Pipeline, cancel *CancelToken) *Driver {
	return &Driver{
		Pipeline: p,
		state:    Pending,
		wakeCh:   make(chan struct{}, 1),
		cancel:   cancel,
	}
}

func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Driver) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// Wake signals a blocked driver to become Ready again — the
// "upstream-signal"/"downstream-signal" edges of §4.5's transition
// diagram. Re-queueing must only ever happen via this explicit signal,
// never by the dispatcher polling a blocked driver (§4.5 Backpressure).
func (d *Driver) Wake() {
	if d.woken.CompareAndSwap(false, true) {
		select {
		case d.wakeCh <- struct{}{}:
		default:
		}
	}
}

func (d *Driver) consumeWake() bool {
	return d.woken.CompareAndSwap(true, false)
}

// cancelErr reports the cause a cancelled Process call returns: the
// originating driver's own error when one triggered the token, or the
// bare execerr.Cancelled sentinel for a peer driver that only ever
// observed the shared token (e.g. a query-wide deadline with no
// specific cause, or a sibling driver's failure already recorded as
// the fragment's first error).
func (d *Driver) cancelErr() error {
	if cause := d.cancel.Cause(); cause != nil {
		return cause
	}
	return execerr.Cancelled
}

// Process runs push/pull steps until a yield condition fires:
// sliceRows caps how many chunks this call drains before yielding on
// time (the "time slice" of §4.5) — the driver never blocks on a
// mutex nor sleeps inside this call, so it is safe to run on a
// dispatcher worker goroutine.
func (d *Driver) Process(sliceRows int) (State, YieldReason, error) {
	d.setState(Running)
	if d.cancel != nil && d.cancel.Cancelled() {
		d.setState(Finished)
		return Finished, YieldCancelled, d.cancelErr()
	}

	processed := 0
	for {
		if d.cancel != nil && d.cancel.Cancelled() {
			d.setState(Finished)
			return Finished, YieldCancelled, d.cancelErr()
		}
		if d.InputReady != nil && !d.InputReady() {
			d.setState(InputBlocked)
			return InputBlocked, YieldInputEmpty, nil
		}
		if d.OutputReady != nil && !d.OutputReady() {
			d.setState(OutputBlocked)
			return OutputBlocked, YieldOutputFull, nil
		}

		var (
			res operator.SourceResult
			err error
		)
		if d.Pipeline.Sink != nil {
			res, err = d.driveOneChunk()
		} else {
			res, err = d.pullOneChunk()
		}
		if err != nil {
			d.setState(Finished)
			return Finished, YieldNone, err
		}

		processed++
		if res == operator.SrcFinished {
			d.setState(Finished)
			return Finished, YieldNone, nil
		}
		if processed >= sliceRows {
			d.setState(Ready)
			return Ready, YieldTimeSlice, nil
		}
	}
}

// driveOneChunk pulls and pushes exactly one chunk into a sink-bearing
// pipeline, returning SrcFinished once the source is exhausted and the
// sink has been told to finish.
func (d *Driver) driveOneChunk() (operator.SourceResult, error) {
	return d.Pipeline.Step()
}

// pullOneChunk advances a sink-less pipeline by one chunk; the caller
// (a fragment's root pipeline with no Sink) retrieves rows via a
// result channel it owns, which is out of pkg/scheduler's concern —
// here the chunk is simply discarded once produced, since a driver
// with no sink and no result consumer is only exercised by tests.
func (d *Driver) pullOneChunk() (operator.SourceResult, error) {
	out := &chunk.Chunk{}
	return d.Pipeline.Next(out)
}
