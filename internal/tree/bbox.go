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

import "github.com/streamrcf/rcf/internal/geom"

// nodeBox returns the bounding box of the subtree rooted at r, using the
// cache when the node is one of the fraction designated to materialize
// its box (spec.md §4.3.3), and otherwise recomputing it by recursing
// into both children. Invariant I3 (a cached box is always the tight
// enclosing box of every leaf below) holds because every insert/delete
// that changes a cached node's subtree updates or invalidates its cache
// entry before returning.
func (t *Tree[I]) nodeBox(r ref[I]) geom.BoundingBox[float32] {
	if r.isLeaf() {
		p, err := t.points(t.leaves[r.leafIndex()].reference)
		if err != nil {
			return geom.BoundingBox[float32]{}
		}
		return geom.NewBoundingBox([]float32(p))
	}
	idx := r.internalIndex()
	nd := &t.internals[idx]
	if nd.cacheDesignated {
		if v, ok := t.bboxCache.Get(idx); ok {
			return v
		}
	}
	box := t.nodeBox(nd.left).Union(t.nodeBox(nd.right))
	if nd.cacheDesignated {
		t.bboxCache.Add(idx, box)
	}
	return box
}

// updateCacheOnPath refreshes (or invalidates) node idx's cache entry
// after one of its children's subtrees has just grown to include ext.
func (t *Tree[I]) updateCacheOnPath(idx I, ext geom.BoundingBox[float32]) {
	if t.internals[idx].cacheDesignated {
		t.bboxCache.Add(idx, ext)
	} else {
		t.bboxCache.Remove(idx)
	}
}

// invalidateAncestors drops any stale cached boxes on the path from r to
// the root after a structural change (used by delete, where recomputing
// the precise new box at every ancestor isn't as cheap as it is on
// insert, since a child has been removed rather than merely extended).
func (t *Tree[I]) invalidateAncestors(r ref[I]) {
	for r.valid {
		if r.isInternal() {
			t.bboxCache.Remove(r.internalIndex())
		}
		r = t.parentOf(r)
	}
}
