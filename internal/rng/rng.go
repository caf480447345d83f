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

// Package rng derives the per-component random sources the forest uses.
//
// Reproducibility across the sequential and parallel executors depends on
// every draw being a function of (component seed, draw order) alone, never
// of a shared forest-wide generator: components never race each other for
// the next uint64 out of a common source. Each SamplerPlusTree owns two
// independent streams (one for its sampler, one for its tree), both
// derived once at construction from a single root seed.
package rng

import "math/rand/v2"

// Derive produces a deterministic seed for componentIndex and a small
// integer purpose tag (so a sampler and a tree belonging to the same
// component don't share a stream) from a single root seed. This is a
// splitmix64-style mix: cheap, well distributed, and independent of
// iteration order, which is what lets the parallel executor derive every
// component's seed up front without any ordering dependency.
func Derive(root uint64, componentIndex int, purpose uint64) uint64 {
	x := root ^ (uint64(componentIndex)*0x9E3779B97F4A7C15 + purpose)
	x += 0x9E3779B97F4A7C15
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	x = x ^ (x >> 31)
	return x
}

// Purpose tags for Derive, keeping a sampler's stream and its sibling
// tree's stream independent even though they share a component index.
const (
	PurposeSampler uint64 = 1
	PurposeTree    uint64 = 2
)

// New returns a new PRNG seeded deterministically from seed.
func New(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed>>32|seed<<32))
}
