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
	"fmt"

	"github.com/streamrcf/rcf/internal/geom"
	"github.com/streamrcf/rcf/internal/pointstore"
	"github.com/streamrcf/rcf/internal/rcferrors"
)

// Add implements spec.md §4.3.1: insert reference, admitted under seq,
// into the tree, creating or extending leaves and internal nodes as
// needed.
func (t *Tree[I]) Add(reference pointstore.Reference, seq uint64) error {
	p, err := t.points(reference)
	if err != nil {
		return err
	}
	if len(p) != t.opts.Dim {
		return fmt.Errorf("point has %d dims, want %d: %w", len(p), t.opts.Dim, rcferrors.ErrInvalidArgument)
	}

	if !t.hasRoot {
		li := t.allocLeaf(reference, seq)
		t.root = leafRef[I](li)
		t.hasRoot = true
		t.byReference[reference] = li
		return nil
	}

	newRoot := t.insert(t.root, p, reference, seq)
	t.root = newRoot
	t.clearParent(newRoot)
	return nil
}

// insert walks from cur, returning the ref that should occupy cur's old
// position in its parent (itself, unless a new internal node now sits
// above it, or it was a leaf that needed to split).
func (t *Tree[I]) insert(cur ref[I], p []float32, reference pointstore.Reference, seq uint64) ref[I] {
	if cur.isLeaf() {
		return t.insertAtLeaf(cur, p, reference, seq)
	}
	return t.insertAtInternal(cur, p, reference, seq)
}

func (t *Tree[I]) insertAtLeaf(cur ref[I], p []float32, reference pointstore.Reference, seq uint64) ref[I] {
	li := cur.leafIndex()
	lf := &t.leaves[li]
	existing, err := t.points(lf.reference)
	if err == nil && geom.Equal(geom.Vector(existing), p) {
		lf.mass++
		if t.opts.StoreSequenceIndexesEnabled {
			if lf.seqCounts == nil {
				lf.seqCounts = make(map[uint64]uint32)
			}
			lf.seqCounts[seq]++
		}
		return cur
	}

	box := geom.NewBoundingBox(existing)
	dim, val := growthCut(t.rng, box, p)

	newLeafIdx := t.allocLeaf(reference, seq)
	t.byReference[reference] = newLeafIdx
	newLeaf := leafRef[I](newLeafIdx)

	var left, right ref[I]
	if existing[dim] <= val {
		left, right = cur, newLeaf
	} else {
		left, right = newLeaf, cur
	}
	return t.newInternal(dim, val, left, right, lf.mass+1)
}

func (t *Tree[I]) insertAtInternal(cur ref[I], p []float32, reference pointstore.Reference, seq uint64) ref[I] {
	idx := cur.internalIndex()
	nd := &t.internals[idx]

	box := t.nodeBox(cur)
	ext := box.Extend(p)
	total := ext.Range()

	var u float32
	if total > 0 {
		u = float32(t.rng.Float64()) * total
	}
	delta := total - box.Range()

	if delta > 0 && u < delta {
		dim, val := growthCut(t.rng, box, p)

		newLeafIdx := t.allocLeaf(reference, seq)
		t.byReference[reference] = newLeafIdx
		newLeaf := leafRef[I](newLeafIdx)

		var left, right ref[I]
		if val >= box.Max[dim] {
			left, right = cur, newLeaf
		} else {
			left, right = newLeaf, cur
		}
		return t.newInternal(dim, val, left, right, nd.mass+1)
	}

	if p[nd.cutDimension] <= nd.cutValue {
		newLeft := t.insert(nd.left, p, reference, seq)
		nd = &t.internals[idx] // the recursive insert may have reallocated t.internals
		if newLeft != nd.left {
			t.setParent(newLeft, cur)
		}
		nd.left = newLeft
	} else {
		newRight := t.insert(nd.right, p, reference, seq)
		nd = &t.internals[idx] // the recursive insert may have reallocated t.internals
		if newRight != nd.right {
			t.setParent(newRight, cur)
		}
		nd.right = newRight
	}
	nd.mass++
	t.updateCacheOnPath(idx, ext)
	t.refreshCenterSumOnPath(idx)
	return cur
}

func (t *Tree[I]) allocLeaf(reference pointstore.Reference, seq uint64) I {
	li := t.leafFree.alloc()
	lf := leaf[I]{reference: reference, mass: 1}
	if t.opts.StoreSequenceIndexesEnabled {
		lf.seqCounts = map[uint64]uint32{seq: 1}
	}
	if int(li) < len(t.leaves) {
		t.leaves[li] = lf
	} else {
		t.leaves = append(t.leaves, lf)
	}
	return li
}

func (t *Tree[I]) newInternal(dim int, val float32, left, right ref[I], mass uint32) ref[I] {
	ii := t.intFree.alloc()
	nd := internal[I]{
		cutDimension:    dim,
		cutValue:        val,
		left:            left,
		right:           right,
		mass:            mass,
		cacheDesignated: t.designateCache(),
	}
	if int(ii) < len(t.internals) {
		t.internals[ii] = nd
	} else {
		t.internals = append(t.internals, nd)
	}
	if want := int(float64(len(t.internals)) * t.opts.BoundingBoxCacheFraction); want > t.cacheCap {
		t.cacheCap = want
		t.bboxCache.Resize(want)
	}
	r := internalRef[I](ii)
	t.setParent(left, r)
	t.setParent(right, r)
	if t.opts.CenterOfMassEnabled {
		t.recomputeCenterSum(ii)
	}
	return r
}

// designateCache pseudo-randomly decides, at creation time, whether a
// new internal node's bounding box should be materialized, per spec.md
// §4.3.3. The decision uses the tree's own RNG, same as every other
// structural draw, so it remains reproducible.
func (t *Tree[I]) designateCache() bool {
	if t.opts.BoundingBoxCacheFraction <= 0 {
		return false
	}
	if t.opts.BoundingBoxCacheFraction >= 1 {
		return true
	}
	return t.rng.Float64() < t.opts.BoundingBoxCacheFraction
}

func (t *Tree[I]) setParent(r ref[I], parent ref[I]) {
	if r.isLeaf() {
		t.leaves[r.leafIndex()].parent = parent
	} else {
		t.internals[r.internalIndex()].parent = parent
	}
}

func (t *Tree[I]) clearParent(r ref[I]) {
	if r.isLeaf() {
		t.leaves[r.leafIndex()].parent = noRef[I]()
	} else {
		t.internals[r.internalIndex()].parent = noRef[I]()
	}
}

func (t *Tree[I]) parentOf(r ref[I]) ref[I] {
	if r.isLeaf() {
		return t.leaves[r.leafIndex()].parent
	}
	return t.internals[r.internalIndex()].parent
}
