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

package executor

import (
	"sort"

	"github.com/streamrcf/rcf/internal/tree"
)

// None of the accumulators below ever reports convergence: the spec
// defines no meaningful partial-forest threshold for any of these
// queries, so every component's result is always visited. They exist
// as ConvergingAccumulator implementations (rather than a plain
// binary-operator reduce) so RunTraversal has one uniform code path.

// MeanAccumulator averages a scalar across every component; used by the
// score query.
type MeanAccumulator struct {
	sum float64
	n   int
}

func (a *MeanAccumulator) Accept(v float64)     { a.sum += v; a.n++ }
func (a *MeanAccumulator) IsConverged() bool     { return false }
func (a *MeanAccumulator) ValuesAccepted() int   { return a.n }
func (a *MeanAccumulator) AccumulatedValue() float64 {
	if a.n == 0 {
		return 0
	}
	return a.sum / float64(a.n)
}

// AttributionAccumulator averages per-dimension, per-direction
// attribution vectors across every component.
type AttributionAccumulator struct {
	dim       int
	high, low []float64
	n         int
}

func NewAttributionAccumulator(dim int) *AttributionAccumulator {
	return &AttributionAccumulator{dim: dim, high: make([]float64, dim), low: make([]float64, dim)}
}

func (a *AttributionAccumulator) Accept(v tree.Attribution) {
	for d := 0; d < a.dim; d++ {
		a.high[d] += v.High[d]
		a.low[d] += v.Low[d]
	}
	a.n++
}

func (a *AttributionAccumulator) IsConverged() bool   { return false }
func (a *AttributionAccumulator) ValuesAccepted() int { return a.n }
func (a *AttributionAccumulator) AccumulatedValue() tree.Attribution {
	out := tree.Attribution{High: make([]float64, a.dim), Low: make([]float64, a.dim)}
	if a.n == 0 {
		return out
	}
	for d := 0; d < a.dim; d++ {
		out.High[d] = a.high[d] / float64(a.n)
		out.Low[d] = a.low[d] / float64(a.n)
	}
	return out
}

// ImputeAccumulator sums mass-weighted coordinate sums and total mass
// across every component; AccumulatedValue divides to produce the final
// convex combination.
type ImputeAccumulator struct {
	dim  int
	sum  []float64
	mass float64
	n    int
}

func NewImputeAccumulator(dim int) *ImputeAccumulator {
	return &ImputeAccumulator{dim: dim, sum: make([]float64, dim)}
}

func (a *ImputeAccumulator) Accept(v tree.ImputeResult) {
	for d, s := range v.WeightedSum {
		a.sum[d] += s
	}
	a.mass += v.TotalMass
	a.n++
}

func (a *ImputeAccumulator) IsConverged() bool   { return false }
func (a *ImputeAccumulator) ValuesAccepted() int { return a.n }
func (a *ImputeAccumulator) AccumulatedValue() []float32 {
	out := make([]float32, a.dim)
	if a.mass == 0 {
		return out
	}
	for d := range out {
		out[d] = float32(a.sum[d] / a.mass)
	}
	return out
}

// NeighborsAccumulator concatenates every component's candidate list and
// sorts the union by distance once all components have reported.
type NeighborsAccumulator struct {
	results []tree.Neighbor
	n       int
}

func (a *NeighborsAccumulator) Accept(v []tree.Neighbor) {
	a.results = append(a.results, v...)
	a.n++
}

func (a *NeighborsAccumulator) IsConverged() bool   { return false }
func (a *NeighborsAccumulator) ValuesAccepted() int { return a.n }
func (a *NeighborsAccumulator) AccumulatedValue() []tree.Neighbor {
	sort.Slice(a.results, func(i, j int) bool { return a.results[i].Distance < a.results[j].Distance })
	return a.results
}

// DensityAccumulator averages per-dimension probability mass and the
// query-to-leaf distance across every component.
type DensityAccumulator struct {
	dim     int
	mass    []float64
	distSum float64
	n       int
}

func NewDensityAccumulator(dim int) *DensityAccumulator {
	return &DensityAccumulator{dim: dim, mass: make([]float64, dim)}
}

func (a *DensityAccumulator) Accept(v tree.DensityResult) {
	for d, m := range v.ProbMass {
		a.mass[d] += m
	}
	a.distSum += v.Distance
	a.n++
}

func (a *DensityAccumulator) IsConverged() bool   { return false }
func (a *DensityAccumulator) ValuesAccepted() int { return a.n }
func (a *DensityAccumulator) AccumulatedValue() tree.DensityResult {
	out := tree.DensityResult{ProbMass: make([]float64, a.dim)}
	if a.n == 0 {
		return out
	}
	for d := range out.ProbMass {
		out.ProbMass[d] = a.mass[d] / float64(a.n)
	}
	out.Distance = a.distSum / float64(a.n)
	return out
}
