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

package util

import (
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// MemTracker is one node of the fragment -> query -> pool hierarchy
// described in the concurrency & resource model: every allocation is
// charged to the node and bubbled up to its parent, and exceeding a
// node's limit fails the allocation without touching siblings.
type MemTracker struct {
	name     string
	parent   *MemTracker
	limit    int64 // 0 means unbounded
	used     atomic.Int64
	peakUsed atomic.Int64
	gauge    prometheus.Gauge
}

var trackerUsageGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "fragment_worker",
	Subsystem: "memory",
	Name:      "tracker_bytes",
	Help:      "Bytes currently charged to a memory tracker node.",
}, []string{"tracker"})

func init() {
	prometheus.MustRegister(trackerUsageGauge)
}

// NewRootTracker creates the top of a tracker hierarchy (typically one
// per query), with an optional byte limit (0 = unbounded).
func NewRootTracker(name string, limit int64) *MemTracker {
	return &MemTracker{name: name, limit: limit, gauge: trackerUsageGauge.WithLabelValues(name)}
}

// Child creates a sub-tracker (e.g. a fragment under a query, or an
// operator pool under a fragment) with its own limit.
func (t *MemTracker) Child(name string, limit int64) *MemTracker {
	full := name
	if t != nil {
		full = t.name + "/" + name
	}
	return &MemTracker{name: full, parent: t, limit: limit, gauge: trackerUsageGauge.WithLabelValues(full)}
}

// Reserve charges sz bytes to this node and every ancestor. If any
// node in the chain would exceed its limit, the whole reservation is
// rolled back and an error carrying this node's Breakdown is returned.
func (t *MemTracker) Reserve(sz int64) error {
	if t == nil || sz <= 0 {
		return nil
	}
	var chain []*MemTracker
	for n := t; n != nil; n = n.parent {
		chain = append(chain, n)
	}
	for i, n := range chain {
		newUsed := n.used.Add(sz)
		n.gauge.Set(float64(newUsed))
		for {
			peak := n.peakUsed.Load()
			if newUsed <= peak || n.peakUsed.CompareAndSwap(peak, newUsed) {
				break
			}
		}
		if n.limit > 0 && newUsed > n.limit {
			// unwind everything already charged, including this node
			for _, m := range chain[:i+1] {
				m.used.Add(-sz)
			}
			return fmt.Errorf("memory limit exceeded: %s", t.Breakdown())
		}
	}
	return nil
}

// Release returns sz bytes to this node and every ancestor.
func (t *MemTracker) Release(sz int64) {
	if t == nil || sz <= 0 {
		return
	}
	for n := t; n != nil; n = n.parent {
		n.used.Add(-sz)
		n.gauge.Set(float64(n.used.Load()))
	}
}

func (t *MemTracker) Used() int64 { return t.used.Load() }
func (t *MemTracker) Peak() int64 { return t.peakUsed.Load() }

// Breakdown renders this node and then each ancestor up to the root,
// for inclusion in a memory-limit failure per the error-handling design.
func (t *MemTracker) Breakdown() string {
	s := ""
	for n := t; n != nil; n = n.parent {
		s += fmt.Sprintf("%s=%dB(peak %dB) ", n.name, n.Used(), n.Peak())
	}
	return s
}
