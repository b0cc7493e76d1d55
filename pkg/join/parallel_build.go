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

package join

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/flowshard/worker/pkg/chunk"
)

// BuildSource supplies one build-side morsel's key/data columns and
// row count; pkg/fragment's morsel generator implements it once
// wired, the same boundary pkg/plan/run.go's OperatorExec.Execute
// pulls an upstream chunk from.
type BuildSource interface {
	Next() (keyCols, buildCols []*chunk.Vector, count int, ok bool)
}

// ParallelBuild drives HashJoinTable.Build concurrently across
// morsels pulled from src, bounded by a worker-token semaphore
// (golang.org/x/sync/semaphore, already a pack dependency via the
// teacher's indirect golang.org/x/sync) rather than one goroutine per
// morsel: the teacher's own HashJoin.Build runs single-threaded
// inline in Runner.Execute, so this has no direct teacher analogue,
// but the bounded-worker-token idiom mirrors pkg/scheduler's
// dispatcher design (SPEC_FULL.md §4.5).
//
// HashJoinTable.Build is not safe for concurrent callers on its own
// (buckets/buildRows are plain maps/slices); each ParallelBuild worker
// holds a mutex for its whole Build call, so Build calls run one at a
// time. src.Next runs on the calling goroutine and is the only work
// that can overlap a running Build.
func (ht *HashJoinTable) ParallelBuild(ctx context.Context, src BuildSource, workers int64) error {
	sem := semaphore.NewWeighted(workers)
	var mu sync.Mutex
	var wg sync.WaitGroup
	var firstErr error
	var errOnce sync.Once

	for {
		keyCols, buildCols, count, ok := src.Next()
		if !ok {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			errOnce.Do(func() { firstErr = err })
			break
		}
		wg.Add(1)
		go func(keyCols, buildCols []*chunk.Vector, count int) {
			defer wg.Done()
			defer sem.Release(1)
			mu.Lock()
			defer mu.Unlock()
			ht.Build(keyCols, buildCols, count)
		}(keyCols, buildCols, count)
	}
	wg.Wait()
	return firstErr
}
