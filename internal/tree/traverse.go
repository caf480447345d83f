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
	"github.com/streamrcf/rcf/internal/geom"
	"github.com/streamrcf/rcf/internal/pointstore"
)

// NodeInfo is what a Visitor sees when the walk passes through an
// internal node: its bounding box (cached or just recomputed) and its
// depth from the root.
type NodeInfo struct {
	Box          geom.BoundingBox[float32]
	Depth        int
	Mass         uint32
	CutDimension int
	CutValue     float32
}

// LeafInfo is what a Visitor sees when the walk reaches a leaf.
type LeafInfo struct {
	Reference pointstore.Reference
	Point     []float32
	Mass      uint32
	Depth     int
	// SeqCounts is nil unless the tree was built with
	// StoreSequenceIndexesEnabled.
	SeqCounts map[uint64]uint32
}

// Visitor is constructed fresh per traversal by a factory (never shared
// across trees, per spec.md §4.3.5) and accumulates a result of type R
// as traverse walks from the root to a leaf.
type Visitor[R any] interface {
	VisitNode(n NodeInfo)
	VisitLeaf(l LeafInfo)
	Result() R
}

// MultiVisitor extends Visitor with the ability to fan out at an
// internal node: when Trigger reports true, traverseMulti clones the
// visitor and continues into both children, later folding the cloned
// branch's result back in via Combine.
type MultiVisitor[R any] interface {
	Visitor[R]
	Trigger(n NodeInfo) bool
	Clone() MultiVisitor[R]
	Combine(other R)
}

// Traverse walks the tree from the root along the single path the query
// point determines, calling v.VisitNode at every internal node and
// v.VisitLeaf at the leaf it lands on, then returns v.Result(). This is a
// free function rather than a method because Go does not allow a method
// to introduce its own type parameter in addition to its receiver's.
func Traverse[I Index, R any](t *Tree[I], query []float32, factory func() Visitor[R]) R {
	v := factory()
	if t.hasRoot {
		walk(t, t.root, query, 0, v)
	}
	return v.Result()
}

func walk[I Index, R any](t *Tree[I], r ref[I], query []float32, depth int, v Visitor[R]) {
	if r.isLeaf() {
		v.VisitLeaf(t.leafInfo(r, depth))
		return
	}
	idx := r.internalIndex()
	nd := &t.internals[idx]
	v.VisitNode(NodeInfo{Box: t.nodeBox(r), Depth: depth, Mass: nd.mass, CutDimension: nd.cutDimension, CutValue: nd.cutValue})
	if query[nd.cutDimension] <= nd.cutValue {
		walk(t, nd.left, query, depth+1, v)
	} else {
		walk(t, nd.right, query, depth+1, v)
	}
}

// TraverseMulti is like Traverse, but visitors may trigger a fan-out at
// an internal node, descending into both children with an independent
// clone of the visitor and folding the results back together with
// Combine. Used by the imputation visitor to sample multiple plausible
// completions when a query coordinate is missing.
func TraverseMulti[I Index, R any](t *Tree[I], query []float32, factory func() MultiVisitor[R]) R {
	v := factory()
	if t.hasRoot {
		walkMulti(t, t.root, query, 0, v)
	}
	return v.Result()
}

func walkMulti[I Index, R any](t *Tree[I], r ref[I], query []float32, depth int, v MultiVisitor[R]) {
	if r.isLeaf() {
		v.VisitLeaf(t.leafInfo(r, depth))
		return
	}
	idx := r.internalIndex()
	nd := &t.internals[idx]
	info := NodeInfo{Box: t.nodeBox(r), Depth: depth, Mass: nd.mass, CutDimension: nd.cutDimension, CutValue: nd.cutValue}
	v.VisitNode(info)

	if v.Trigger(info) {
		clone := v.Clone()
		walkMulti(t, nd.left, query, depth+1, v)
		walkMulti(t, nd.right, query, depth+1, clone)
		v.Combine(clone.Result())
		return
	}

	if query[nd.cutDimension] <= nd.cutValue {
		walkMulti(t, nd.left, query, depth+1, v)
	} else {
		walkMulti(t, nd.right, query, depth+1, v)
	}
}

func (t *Tree[I]) leafInfo(r ref[I], depth int) LeafInfo {
	li := r.leafIndex()
	lf := &t.leaves[li]
	p, _ := t.points(lf.reference)
	return LeafInfo{
		Reference: lf.reference,
		Point:     []float32(p),
		Mass:      lf.mass,
		Depth:     depth,
		SeqCounts: lf.seqCounts,
	}
}
