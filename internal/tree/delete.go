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

	"github.com/streamrcf/rcf/internal/pointstore"
	"github.com/streamrcf/rcf/internal/rcferrors"
)

// Delete implements spec.md §4.3.2: remove one occurrence of reference
// (admitted under seq) from the tree, mirroring a sampler eviction.
func (t *Tree[I]) Delete(reference pointstore.Reference, seq uint64) error {
	li, ok := t.byReference[reference]
	if !ok {
		return fmt.Errorf("reference %d: %w", reference, rcferrors.ErrNotPresent)
	}
	lf := &t.leaves[li]

	if t.opts.StoreSequenceIndexesEnabled {
		if lf.seqCounts[seq] == 0 {
			return fmt.Errorf("reference %d not admitted under seq %d: %w", reference, seq, rcferrors.ErrNotPresent)
		}
		lf.seqCounts[seq]--
		if lf.seqCounts[seq] == 0 {
			delete(lf.seqCounts, seq)
		}
	}

	if lf.mass > 1 {
		lf.mass--
		parent := lf.parent
		t.propagateMassDecrement(parent, 1)
		if t.opts.CenterOfMassEnabled {
			t.refreshAncestorsFull(parent)
		}
		return nil
	}

	return t.removeLeaf(li, reference)
}

// removeLeaf detaches leaf li (whose mass has reached zero) from the
// tree: its sibling takes its parent's place.
func (t *Tree[I]) removeLeaf(li I, reference pointstore.Reference) error {
	cur := leafRef[I](li)
	parent := t.leaves[li].parent

	delete(t.byReference, reference)
	t.leafFree.release(li)

	if !parent.valid {
		t.hasRoot = false
		t.root = noRef[I]()
		return nil
	}

	pidx := parent.internalIndex()
	pnd := &t.internals[pidx]
	var sibling ref[I]
	if pnd.left == cur {
		sibling = pnd.right
	} else {
		sibling = pnd.left
	}
	grandparent := pnd.parent
	t.setParent(sibling, grandparent)

	if !grandparent.valid {
		t.root = sibling
	} else {
		gidx := grandparent.internalIndex()
		gnd := &t.internals[gidx]
		if gnd.left == parent {
			gnd.left = sibling
		} else {
			gnd.right = sibling
		}
	}

	t.intFree.release(pidx)
	t.bboxCache.Remove(pidx)

	t.propagateMassDecrement(grandparent, 1)
	t.invalidateAncestors(grandparent)
	if t.opts.CenterOfMassEnabled {
		t.refreshAncestorsFull(grandparent)
	}
	return nil
}

// propagateMassDecrement walks from r to the root, subtracting by from
// every internal ancestor's mass.
func (t *Tree[I]) propagateMassDecrement(r ref[I], by uint32) {
	for r.valid && r.isInternal() {
		idx := r.internalIndex()
		t.internals[idx].mass -= by
		r = t.internals[idx].parent
	}
}

// refreshAncestorsFull recomputes the center-of-mass sum at every
// internal ancestor from r to the root. Used after a leaf's point
// contribution has changed (mass decrement, or removal) and it's
// cheaper to recompute bottom-up than track incremental deltas.
func (t *Tree[I]) refreshAncestorsFull(r ref[I]) {
	for r.valid && r.isInternal() {
		idx := r.internalIndex()
		t.recomputeCenterSum(idx)
		r = t.internals[idx].parent
	}
}
