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

import "sync/atomic"

// CancelToken is a fragment-level cancellation flag polled at operator
// boundaries (spec.md §4.5/§5). One token is shared by every Driver of
// one fragment; Cancel is idempotent and safe from any goroutine,
// including a query-wide deadline timer unrelated to any driver.
type CancelToken struct {
	flag atomic.Bool
	err  atomic.Value // execerr error, set at most once
}

func NewCancelToken() *CancelToken {
	return &CancelToken{}
}

func (c *CancelToken) Cancelled() bool {
	return c.flag.Load()
}

// Cancel sets the flag. cause is recorded only the first time Cancel
// is called; later calls (e.g. a peer driver's error racing a
// deadline) are no-ops beyond (re)setting the flag, which is already
// true.
func (c *CancelToken) Cancel(cause error) {
	if c.flag.CompareAndSwap(false, true) && cause != nil {
		c.err.Store(cause)
	}
}

// Cause returns the first error that triggered cancellation, or nil if
// the token was never cancelled or was cancelled without a cause
// (e.g. a plain deadline expiry with no error object).
func (c *CancelToken) Cause() error {
	v := c.err.Load()
	if v == nil {
		return nil
	}
	return v.(error)
}
