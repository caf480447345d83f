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

// ImputeResult is a mass-weighted sum of every leaf reached while
// resolving a query with missing coordinates, ready to be divided by
// TotalMass (by the caller, after reducing across trees) to yield a
// convex combination.
type ImputeResult struct {
	WeightedSum []float64
	TotalMass   float64
}

// imputeVisitor descends a tree whose query has one or more unknown
// coordinates: at every internal node whose cut dimension is unknown it
// triggers a fan-out into both children (spec.md §4.3.5), accumulating
// every reached leaf's point, mass-weighted.
type imputeVisitor struct {
	dim     int
	unknown map[int]bool
	query   []float32
	result  ImputeResult
}

// NewImputationVisitorFactory builds the ImputationVisitor factory used
// by imputeMissing and extrapolate. missingIndices names the dimensions
// whose query coordinate should be treated as unknown; query's values at
// those indices are never read.
func NewImputationVisitorFactory(query []float32, dim int, missingIndices []int) func() MultiVisitor[ImputeResult] {
	unknown := make(map[int]bool, len(missingIndices))
	for _, d := range missingIndices {
		unknown[d] = true
	}
	return func() MultiVisitor[ImputeResult] {
		return &imputeVisitor{dim: dim, unknown: unknown, query: query}
	}
}

func (v *imputeVisitor) VisitNode(NodeInfo) {}

func (v *imputeVisitor) VisitLeaf(l LeafInfo) {
	if v.result.WeightedSum == nil {
		v.result.WeightedSum = make([]float64, v.dim)
	}
	w := float64(l.Mass)
	for d, val := range l.Point {
		v.result.WeightedSum[d] += float64(val) * w
	}
	v.result.TotalMass += w
}

func (v *imputeVisitor) Result() ImputeResult { return v.result }

// Trigger reports true whenever the node's cut dimension is one of the
// query's unknown coordinates: since the query offers no basis to choose
// a side, both branches are explored and their leaves combined.
func (v *imputeVisitor) Trigger(n NodeInfo) bool {
	return v.unknown[n.CutDimension]
}

func (v *imputeVisitor) Clone() MultiVisitor[ImputeResult] {
	return &imputeVisitor{dim: v.dim, unknown: v.unknown, query: v.query}
}

func (v *imputeVisitor) Combine(other ImputeResult) {
	if v.result.WeightedSum == nil {
		v.result.WeightedSum = make([]float64, v.dim)
	}
	for d, s := range other.WeightedSum {
		v.result.WeightedSum[d] += s
	}
	v.result.TotalMass += other.TotalMass
}
