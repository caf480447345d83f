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

// DensityResult carries the per-dimension probability-mass accumulator
// (how much of the path's bounding-box volume each dimension accounted
// for, on average) and the Euclidean distance from the query to the leaf
// reached, used by the density estimator (spec.md §4.3.5).
type DensityResult struct {
	ProbMass []float64
	Distance float64
}

type densityVisitor struct {
	dim    int
	query  []float32
	path   []NodeInfo
	result DensityResult
}

// NewSimpleDensityVisitorFactory builds the SimpleDensityVisitor factory.
func NewSimpleDensityVisitorFactory(query []float32, dim int) func() Visitor[DensityResult] {
	return func() Visitor[DensityResult] {
		return &densityVisitor{dim: dim, query: query}
	}
}

func (v *densityVisitor) VisitNode(n NodeInfo) {
	v.path = append(v.path, n)
}

func (v *densityVisitor) VisitLeaf(l LeafInfo) {
	mass := make([]float64, v.dim)
	if len(v.path) > 0 {
		for _, n := range v.path {
			ranges := make([]float64, v.dim)
			var sum float64
			for d := 0; d < v.dim; d++ {
				r := float64(n.Box.Max[d] - n.Box.Min[d])
				ranges[d] = r
				sum += r
			}
			if sum > 0 {
				for d := range ranges {
					mass[d] += ranges[d] / sum
				}
			}
		}
		for d := range mass {
			mass[d] /= float64(len(v.path))
		}
	}
	v.result = DensityResult{ProbMass: mass, Distance: euclidean(v.query, l.Point)}
}

func (v *densityVisitor) Result() DensityResult { return v.result }
