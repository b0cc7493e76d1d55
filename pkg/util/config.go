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

// DebugOptions mirror the teacher's debug knobs, trimmed to what this
// executor core can still act on (no plan printing: no plan tree here).
type DebugOptions struct {
	ShowRaw     bool `tag:"showRaw"`
	PrintResult bool `tag:"printResult"`
}

// SchedulerConfig tunes the driver dispatcher (C5).
type SchedulerConfig struct {
	WorkerCount   int `tag:"workerCount"`
	TimeSliceMs   int `tag:"timeSliceMs"` // used as a chunk count per Driver.Process call, not milliseconds
	DriverPerPipe int `tag:"driverPerPipe"` // default driver_instance_count for non-leaf pipelines
}

// ExchangeConfig tunes the exchange sender (C6).
type ExchangeConfig struct {
	ByteThreshold           int64   `tag:"byteThreshold"`           // flush the accumulator past this many bytes
	CompressionRatioMin     float64 `tag:"compressionRatioMin"`     // reject compression below this ratio
	CompressionCodec        string  `tag:"compressionCodec"`        // "lz4", "snappy", "none"
	InFilterPushdownMaxRows int     `tag:"inFilterPushdownMaxRows"` // runtime IN-filter threshold; pkg/join does not read it and uses its own constant of 1024
}

// AggregationConfig tunes the two-phase distinct aggregation policy
// (spec §4.2/§9: sampling window and hit-ratio switch, left unspecified
// by spec.md and decided in DESIGN.md).
type AggregationConfig struct {
	DistinctSampleChunks      int     `tag:"distinctSampleChunks"`
	DistinctHitRatioThreshold float64 `tag:"distinctHitRatioThreshold"`
}

// MemoryConfig sets the hierarchical tracker limits (§5); 0 means
// unbounded at that level.
type MemoryConfig struct {
	QueryLimitBytes    int64 `tag:"queryLimitBytes"`
	FragmentLimitBytes int64 `tag:"fragmentLimitBytes"`
}

type Config struct {
	ChunkSize   int                `tag:"chunkSize"` // B in spec §3, default util.DefaultVectorSize
	Debug       DebugOptions       `tag:"debug"`
	Scheduler   SchedulerConfig    `tag:"scheduler"`
	Exchange    ExchangeConfig     `tag:"exchange"`
	Aggregation AggregationConfig `tag:"aggregation"`
	Memory      MemoryConfig       `tag:"memory"`
}

// DefaultConfig mirrors the values spec.md calls out as defaults
// (B=4096, LZ4 default codec, 1.1x compression threshold, 1024-row
// IN-filter push-down threshold).
func DefaultConfig() *Config {
	return &Config{
		ChunkSize: DefaultVectorSize,
		Scheduler: SchedulerConfig{
			WorkerCount:   0, // 0 = runtime.GOMAXPROCS(0)
			TimeSliceMs:   20,
			DriverPerPipe: 4,
		},
		Exchange: ExchangeConfig{
			ByteThreshold:       4 << 20, // low megabytes
			CompressionRatioMin: 1.1,
			CompressionCodec:    "lz4",
			InFilterPushdownMaxRows: 1024,
		},
		Aggregation: AggregationConfig{
			DistinctSampleChunks:      8,
			DistinctHitRatioThreshold: 0.5,
		},
		Memory: MemoryConfig{},
	}
}
