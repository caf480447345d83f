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

// leafPointSum returns the mass-weighted sum of every leaf coordinate
// below r, recursing through cached centerSum sums where available.
func (t *Tree[I]) leafPointSum(r ref[I]) []float32 {
	if r.isLeaf() {
		lf := &t.leaves[r.leafIndex()]
		p, err := t.points(lf.reference)
		if err != nil {
			return make([]float32, t.opts.Dim)
		}
		sum := make([]float32, len(p))
		for d, v := range p {
			sum[d] = v * float32(lf.mass)
		}
		return sum
	}
	idx := r.internalIndex()
	if t.internals[idx].centerSum != nil {
		return t.internals[idx].centerSum
	}
	return t.sumChildren(idx)
}

func (t *Tree[I]) sumChildren(idx I) []float32 {
	nd := &t.internals[idx]
	l := t.leafPointSum(nd.left)
	r := t.leafPointSum(nd.right)
	out := make([]float32, len(l))
	for d := range l {
		out[d] = l[d] + r[d]
	}
	return out
}

// recomputeCenterSum materializes node idx's center-of-mass sum from its
// children, only when centerOfMassEnabled.
func (t *Tree[I]) recomputeCenterSum(idx I) {
	if !t.opts.CenterOfMassEnabled {
		return
	}
	t.internals[idx].centerSum = t.sumChildren(idx)
}

// refreshCenterSumOnPath re-materializes idx's center sum after a child
// subtree changed; a no-op unless centerOfMassEnabled.
func (t *Tree[I]) refreshCenterSumOnPath(idx I) {
	if !t.opts.CenterOfMassEnabled {
		return
	}
	t.internals[idx].centerSum = t.sumChildren(idx)
}

// CenterOfMass returns the mean point of every leaf below r (mass
// weighted), or nil if centerOfMassEnabled is false.
func (t *Tree[I]) CenterOfMass(r ref[I]) []float32 {
	if !t.opts.CenterOfMassEnabled {
		return nil
	}
	sum := t.leafPointSum(r)
	mass := float32(t.massOf(r))
	if mass == 0 {
		return sum
	}
	out := make([]float32, len(sum))
	for d, v := range sum {
		out[d] = v / mass
	}
	return out
}
