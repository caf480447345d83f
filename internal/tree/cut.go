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

	"github.com/streamrcf/rcf/internal/geom"
)

// growthCut resolves spec.md §9's open question on cut-dimension/value
// selection. It decomposes the range added by extending box with p into
// one "growth sliver" per dimension (the part of p that falls outside
// box on the low or high side of that dimension), draws a single residual
// uniformly over the total growth, and walks dimensions in index order
// subtracting each one's growth until the residual goes non-positive,
// splitting at that point.
//
// This is the only decomposition of the "walk the interval" rule that is
// consistent with invariant I2 (a child's bounding box never straddles
// its parent's cut): restricting the walk to growth slivers rather than
// each dimension's full extended range guarantees the existing subtree's
// box lands entirely on one side of the chosen cut and p lands on the
// other, which the per-dimension-full-range reading of the open question
// does not guarantee. See DESIGN.md.
func growthCut(rng *rand.Rand, box geom.BoundingBox[float32], p []float32) (dim int, val float32) {
	type sliver struct {
		low, high float32 // growth on the low/high side of this dimension
	}
	slivers := make([]sliver, len(box.Min))
	var delta float32
	for d := range box.Min {
		var s sliver
		if p[d] < box.Min[d] {
			s.low = box.Min[d] - p[d]
		} else if p[d] > box.Max[d] {
			s.high = p[d] - box.Max[d]
		}
		slivers[d] = s
		delta += s.low + s.high
	}
	if delta <= 0 {
		return firstDifferingDimension(box.Min, p)
	}

	u := float32(rng.Float64()) * delta
	for d, s := range slivers {
		total := s.low + s.high
		if total <= 0 {
			continue
		}
		if u <= total {
			if u <= s.low {
				return d, box.Min[d] - u
			}
			return d, box.Max[d] + (u - s.low)
		}
		u -= total
	}
	// Floating-point residue only: fall back to the last dimension with
	// any growth at all.
	for d := len(slivers) - 1; d >= 0; d-- {
		if slivers[d].low+slivers[d].high > 0 {
			if slivers[d].high > 0 {
				return d, box.Max[d]
			}
			return d, box.Min[d]
		}
	}
	return firstDifferingDimension(box.Min, p)
}

// firstDifferingDimension is the degenerate-coordinate fallback from
// spec.md §4.3.1 rule 4: split on the first dimension in which the two
// points differ, at their midpoint. Reached only if two distinct stored
// points somehow produce a zero-growth extension, which cannot happen
// once geom.Normalize and the PointStore's exact-equality dedup have run
// (see DESIGN.md), but is kept as a defensive fallback rather than a
// panic.
func firstDifferingDimension(a, b []float32) (int, float32) {
	for d := range a {
		if a[d] != b[d] {
			return d, (a[d] + b[d]) / 2
		}
	}
	return 0, a[0]
}
