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

// Package geom holds the pure, free-standing helpers the forest uses to
// turn caller-supplied vectors into the single-precision representation
// the tree and point store operate on, plus axis-aligned bounding boxes.
package geom

// Vector is the single-precision representation a Point is stored as once
// admitted into the PointStore. It is distinct from the caller-facing
// double-precision vector so that the negative-zero normalization rule is
// applied exactly once, at ingestion.
type Vector []float32

// Normalize converts a caller-supplied double-precision vector into the
// Vector representation used internally, replacing any negative zero with
// positive zero so that two points differing only in the sign of a zero
// coordinate compare and hash identically.
func Normalize(in []float64) Vector {
	out := make(Vector, len(in))
	for i, v := range in {
		f := float32(v)
		if f == 0 {
			f = 0 // collapses +0 and -0 to +0
		}
		out[i] = f
	}
	return out
}

// Equal reports whether a and b have identical coordinates.
func Equal(a, b Vector) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of v.
func Clone(v Vector) Vector {
	out := make(Vector, len(v))
	copy(out, v)
	return out
}
