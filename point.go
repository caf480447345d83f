// Copyright 2024 The RCF authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rcf

// IndexFuture is the signature of a function returning the sequence
// index an asynchronously submitted update was assigned, or the error
// that update failed with. Calling it blocks until the update has been
// applied to every component.
type IndexFuture func() (uint64, error)

// Attribution decomposes a scalar score into per-dimension, per-direction
// components whose total sums back to the score (spec.md §6).
type Attribution struct {
	High []float64
	Low  []float64
}

// Neighbor is one point found within a queried radius of nearNeighbors.
type Neighbor struct {
	Point      []float64
	Distance   float64
	SeqIndexes []uint64
}

// DensityResult carries the per-dimension probability-mass accumulator
// and query-to-leaf distance produced by simpleDensity.
type DensityResult struct {
	ProbMass []float64
	Distance float64
}

// Stats is a snapshot of forest-wide bookkeeping, useful for monitoring
// and for cmd/rcfbench's live dashboard. The latency fields are rolling
// averages over recent calls; they are purely observational and never
// feed back into scoring.
type Stats struct {
	TotalUpdates uint64
	Ready        bool
	TreeSizes    []int

	// UpdateLatencyMicros is a moving average of Update/UpdateAsync's
	// end-to-end latency, in microseconds.
	UpdateLatencyMicros float64
	// TraversalLatencyMicros is a moving average of a single Score-style
	// traversal's fan-out latency across every component, in microseconds.
	TraversalLatencyMicros float64
}
