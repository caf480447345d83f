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

// Package sampler implements the time-decayed reservoir attached to each
// tree in the forest: a bounded min-heap of samples ordered by a weight
// that favors recently-admitted sequence indices.
package sampler

import (
	"container/heap"
	"math"
	"math/rand/v2"

	"github.com/streamrcf/rcf/internal/pointstore"
)

// Sample is one reservoir entry: a point reference, the forest-wide
// sequence index it was admitted under, and the weight used to order it.
type Sample struct {
	Reference     pointstore.Reference
	SequenceIndex uint64
	Weight        float64
}

// Outcome describes what happened to a single Update call.
type Outcome struct {
	Admitted bool
	// Evicted is non-nil when Admitted is true and the heap was already
	// full, i.e. the newcomer displaced an existing sample.
	Evicted *Sample
}

// Sampler is a time-decayed reservoir of up to Capacity samples.
type Sampler struct {
	capacity  int
	timeDecay float64
	rng       *rand.Rand

	heap sampleHeap
}

// New returns a Sampler with the given capacity, time-decay rate, and
// PRNG. The PRNG must not be shared with any other component: spec.md §9
// requires every draw to be a pure function of the owning component's
// private stream, never a forest-wide generator.
func New(capacity int, timeDecay float64, rng *rand.Rand) *Sampler {
	return &Sampler{
		capacity:  capacity,
		timeDecay: timeDecay,
		rng:       rng,
	}
}

// SetTimeDecay updates the decay rate used for future weight draws. This
// is one of the two dynamically-reconfigurable settings in spec.md §6.
func (s *Sampler) SetTimeDecay(lambda float64) {
	s.timeDecay = lambda
}

// Size returns the current number of samples held.
func (s *Sampler) Size() int { return len(s.heap) }

// Full reports whether the reservoir has reached capacity at least once.
func (s *Sampler) Full() bool { return len(s.heap) >= s.capacity }

// Update computes this newcomer's weight (always consuming exactly one
// draw from the PRNG, win or lose, so that sequential and parallel
// executors stay reproducible) and applies the admission rule from
// spec.md §4.2.
func (s *Sampler) Update(ref pointstore.Reference, seq uint64) Outcome {
	u := s.rng.Float64()
	if u <= 0 {
		u = math.SmallestNonzeroFloat64
	}
	w := math.Log(-math.Log(u)) - s.timeDecay*float64(seq)

	newcomer := Sample{Reference: ref, SequenceIndex: seq, Weight: w}

	if len(s.heap) < s.capacity {
		heap.Push(&s.heap, newcomer)
		return Outcome{Admitted: true}
	}

	if w <= s.heap[0].Weight {
		return Outcome{Admitted: false}
	}

	evicted := s.heap[0]
	s.heap[0] = newcomer
	heap.Fix(&s.heap, 0)
	return Outcome{Admitted: true, Evicted: &evicted}
}

// Samples returns a snapshot copy of every sample currently held, in no
// particular order.
func (s *Sampler) Samples() []Sample {
	out := make([]Sample, len(s.heap))
	copy(out, s.heap)
	return out
}

// sampleHeap implements container/heap.Interface, ordered ascending by
// Weight so that Peek/index-0 is always the current minimum.
type sampleHeap []Sample

func (h sampleHeap) Len() int            { return len(h) }
func (h sampleHeap) Less(i, j int) bool  { return h[i].Weight < h[j].Weight }
func (h sampleHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *sampleHeap) Push(x interface{}) { *h = append(*h, x.(Sample)) }
func (h *sampleHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
