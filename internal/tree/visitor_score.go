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

import "math"

// ScoreNormalizer is the spec's default per-tree score normalizer: a
// tree of typical depth log2(sampleSize) produces a score near 1.0 once
// scaled by it, so a full-forest average sits near 1.0 for in-distribution
// points regardless of the configured sample size.
func ScoreNormalizer(sampleSize int) float64 {
	if sampleSize < 2 {
		return 1
	}
	return math.Log2(float64(sampleSize))
}

// DefaultLeafScore is the spec's default score(leaf, depth) function
// (spec.md §4.3.5, glossary "Mass"): isolation depth penalized by
// duplicity, so a leaf representing several coincident admissions
// scores lower than a singleton leaf reached at the same depth.
func DefaultLeafScore(depth int, mass uint32) float64 {
	return 1.0 / (float64(depth) + math.Log2(float64(mass)+1))
}

type scoreVisitor struct {
	normalizer float64
	result     float64
}

// NewScoreVisitorFactory builds the AnomalyScoreVisitor factory used by
// the score query: a scalar per tree, combining the leaf reached by the
// query's depth and mass.
func NewScoreVisitorFactory(sampleSize int) func() Visitor[float64] {
	normalizer := ScoreNormalizer(sampleSize)
	return func() Visitor[float64] {
		return &scoreVisitor{normalizer: normalizer}
	}
}

func (v *scoreVisitor) VisitNode(NodeInfo) {}

func (v *scoreVisitor) VisitLeaf(l LeafInfo) {
	v.result = DefaultLeafScore(l.Depth, l.Mass) * v.normalizer
}

func (v *scoreVisitor) Result() float64 { return v.result }
