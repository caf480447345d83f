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

// Package component pairs one Sampler with one Tree (spec.md §4.4): an
// opaque unit whose lifetime equals the owning Forest's.
package component

import (
	"github.com/streamrcf/rcf/internal/pointstore"
	"github.com/streamrcf/rcf/internal/sampler"
	"github.com/streamrcf/rcf/internal/tree"
)

// UpdateResult reports what a single component did with one update, so
// the coordinator can adjust the shared PointStore's reference counts
// without needing to know sampler/tree internals.
type UpdateResult struct {
	Admitted         bool
	AddedReference   pointstore.Reference
	Evicted          bool
	EvictedReference pointstore.Reference
}

// SamplerPlusTree is the component: a sampler admission triggers
// tree.Add on the same reference; a sampler eviction triggers tree.Delete
// on the evicted one.
type SamplerPlusTree[I tree.Index] struct {
	Sampler *sampler.Sampler
	Tree    *tree.Tree[I]
}

// New pairs an already-constructed Sampler and Tree into one component.
func New[I tree.Index](s *sampler.Sampler, t *tree.Tree[I]) *SamplerPlusTree[I] {
	return &SamplerPlusTree[I]{Sampler: s, Tree: t}
}

// Update feeds one (reference, sequenceIndex) pair through the sampler
// and, on admission, into the tree.
func (c *SamplerPlusTree[I]) Update(ref pointstore.Reference, seq uint64) (UpdateResult, error) {
	outcome := c.Sampler.Update(ref, seq)
	if !outcome.Admitted {
		return UpdateResult{}, nil
	}

	res := UpdateResult{Admitted: true, AddedReference: ref}
	if err := c.Tree.Add(ref, seq); err != nil {
		return res, err
	}

	if outcome.Evicted != nil {
		res.Evicted = true
		res.EvictedReference = outcome.Evicted.Reference
		if err := c.Tree.Delete(outcome.Evicted.Reference, outcome.Evicted.SequenceIndex); err != nil {
			return res, err
		}
	}
	return res, nil
}

// IsOutputReady reports whether this component's sampler has reached
// capacity at least once (spec.md §4.4).
func (c *SamplerPlusTree[I]) IsOutputReady() bool { return c.Sampler.Full() }

// Traverse runs a single-path query visitor against the component's
// tree. A free function, not a method, since Go methods cannot introduce
// their own type parameters beyond the receiver's.
func Traverse[I tree.Index, R any](c *SamplerPlusTree[I], query []float32, factory func() tree.Visitor[R]) R {
	return tree.Traverse(c.Tree, query, factory)
}

// TraverseMulti runs a fan-out query visitor against the component's
// tree.
func TraverseMulti[I tree.Index, R any](c *SamplerPlusTree[I], query []float32, factory func() tree.MultiVisitor[R]) R {
	return tree.TraverseMulti(c.Tree, query, factory)
}
