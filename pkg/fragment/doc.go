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

// Package fragment turns a pre-built FragmentDescriptor into running
// pkg/scheduler Drivers: one driver per morsel for a leaf pipeline,
// driver_instance_count drivers for a non-leaf pipeline, the output
// sink attached as the last stage of the root pipeline, and every
// driver submitted to a shared Dispatcher under one fragment-level
// CancelToken. The teacher's closest analogue is pkg/plan/run.go's
// genPhyPlan/execOps assembly, generalized here from a single
// recursive Runner.Execute call into pipeline/driver submission, since
// planning and SQL parsing are out of this module's scope: the
// descriptor already arrives shaped as operator factories, not a plan
// tree this package must compile.
package fragment
