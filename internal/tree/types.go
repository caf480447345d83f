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

package tree

import (
	"math/rand/v2"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/streamrcf/rcf/internal/geom"
	"github.com/streamrcf/rcf/internal/pointstore"
)

// leaf is a TreeNode leaf variant: spec.md §3's {reference, mass, optional
// seq map}.
type leaf[I Index] struct {
	reference pointstore.Reference
	mass      uint32
	parent    ref[I]
	// seqCounts is non-nil only when storeSequenceIndexesEnabled; it maps
	// a sequence index to how many of this leaf's mass occurrences were
	// admitted under it.
	seqCounts map[uint64]uint32
}

// internal is a TreeNode internal variant: spec.md §3's {cutDimension,
// cutValue, children, parent, mass, optional cached bbox, optional
// center-of-mass sum}.
type internal[I Index] struct {
	cutDimension int
	cutValue     float32
	left, right  ref[I]
	parent       ref[I]
	mass         uint32

	// cacheDesignated marks this node as one of the fraction chosen, at
	// creation time, to materialize its bounding box in the tree's LRU
	// (spec.md §4.3.3); nodeBox recomputes the box on demand otherwise.
	cacheDesignated bool

	// centerSum is the sum of every leaf point below this node, scaled
	// by mass; nil unless centerOfMassEnabled.
	centerSum []float32
}

// Options configures a Tree at construction. Rng must be set: every cut
// after the first point draws from it. The other zero-valued fields pick
// the spec's defaults (no center-of-mass, no sequence maps, no
// bounding-box caching).
type Options struct {
	Dim                        int
	CenterOfMassEnabled        bool
	StoreSequenceIndexesEnabled bool
	// BoundingBoxCacheFraction is the target fraction, in [0,1], of
	// internal nodes whose bounding box should be materialized rather
	// than recomputed on every traversal. See bbox.go.
	BoundingBoxCacheFraction float64
	Rng                      *rand.Rand
}

// Tree is a Random Cut Tree over at most S leaves, addressed through two
// small-integer-indexed arenas (no parent/child pointers) per spec.md §9.
type Tree[I Index] struct {
	opts Options

	root    ref[I]
	hasRoot bool

	leaves    []leaf[I]
	leafFree  freeList[I]
	internals []internal[I]
	intFree   freeList[I]

	// byReference lets delete() and NearNeighbors locate the leaf
	// holding a given PointStore reference in O(1) instead of a tree
	// walk when the caller only has the reference (e.g. sampler
	// eviction), while normal descent still follows cuts per spec.md
	// §4.3.2 rule 1.
	byReference map[pointstore.Reference]I

	bboxCache *lru.Cache[I, geom.BoundingBox[float32]]
	cacheCap  int

	rng *rand.Rand

	points func(pointstore.Reference) (pointstore.Vector[float32], error)
}

// New creates an empty Tree. points is used to resolve a PointStore
// reference to its coordinates; the Tree never copies or owns point data
// itself, matching spec.md §3's PointStore-owns-the-bytes model.
func New[I Index](opts Options, points func(pointstore.Reference) (pointstore.Vector[float32], error)) *Tree[I] {
	t := &Tree[I]{
		opts:        opts,
		byReference: make(map[pointstore.Reference]I),
		rng:         opts.Rng,
		points:      points,
	}
	t.resizeCache()
	return t
}

func (t *Tree[I]) resizeCache() {
	// An LRU sized to the configured fraction of the *current* internal
	// node count approximates the target materialization budget; newInternal
	// grows it as nodes are added, and SetBoundingBoxCacheFraction
	// recomputes it.
	want := int(float64(len(t.internals)+1) * t.opts.BoundingBoxCacheFraction)
	if want < 1 {
		want = 1
	}
	t.cacheCap = want
	c, _ := lru.New[I, geom.BoundingBox[float32]](want)
	// Re-seed the new cache from the old one, bounded by its new
	// capacity, so reconfiguration doesn't discard everything.
	if t.bboxCache != nil {
		for _, k := range t.bboxCache.Keys() {
			if v, ok := t.bboxCache.Peek(k); ok {
				c.Add(k, v)
			}
		}
	}
	t.bboxCache = c
}

// SetBoundingBoxCacheFraction dynamically reconfigures the materialized
// bounding-box budget (spec.md §4.3.3, §6). The implementation's bounded
// amount of subsequent work is simply resizing the backing LRU; eviction
// of boxes beyond the new budget and re-materialization of boxes lazily
// requested by later traversals happen incrementally, one node at a time,
// exactly like any other LRU resize.
func (t *Tree[I]) SetBoundingBoxCacheFraction(f float64) {
	t.opts.BoundingBoxCacheFraction = f
	t.resizeCache()
}

// Mass returns the tree's total mass (root.mass, or 0 if empty).
func (t *Tree[I]) Mass() uint32 {
	if !t.hasRoot {
		return 0
	}
	return t.massOf(t.root)
}

func (t *Tree[I]) massOf(r ref[I]) uint32 {
	if r.isLeaf() {
		return t.leaves[r.leafIndex()].mass
	}
	return t.internals[r.internalIndex()].mass
}

// Empty reports whether the tree currently holds no leaves.
func (t *Tree[I]) Empty() bool { return !t.hasRoot }

// Size returns the number of distinct leaves (not total mass).
func (t *Tree[I]) Size() int {
	return len(t.leaves) - len(t.leafFree.free)
}
