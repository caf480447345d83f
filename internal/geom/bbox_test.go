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

package geom

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewBoundingBoxIsDegenerate(t *testing.T) {
	b := NewBoundingBox([]float32{1, 2, 3})
	if b.Range() != 0 {
		t.Errorf("degenerate box Range() = %v, want 0", b.Range())
	}
	if !b.Contains([]float32{1, 2, 3}) {
		t.Errorf("degenerate box does not contain its own point")
	}
}

func TestExtendGrowsOnlyAsNeeded(t *testing.T) {
	b := BoundingBox[float32]{Min: []float32{0, 0}, Max: []float32{1, 1}}
	inside := b.Extend([]float32{0.5, 0.5})
	if diff := cmp.Diff(b, inside); diff != "" {
		t.Errorf("extending with an interior point changed the box (-want +got):\n%s", diff)
	}

	outside := b.Extend([]float32{-1, 2})
	want := BoundingBox[float32]{Min: []float32{-1, 0}, Max: []float32{1, 2}}
	if diff := cmp.Diff(want, outside); diff != "" {
		t.Errorf("Extend mismatch (-want +got):\n%s", diff)
	}
}

func TestRangeAtAndRange(t *testing.T) {
	b := BoundingBox[float32]{Min: []float32{0, -2}, Max: []float32{3, 2}}
	if got, want := b.RangeAt(0), float32(3); got != want {
		t.Errorf("RangeAt(0) = %v, want %v", got, want)
	}
	if got, want := b.RangeAt(1), float32(4); got != want {
		t.Errorf("RangeAt(1) = %v, want %v", got, want)
	}
	if got, want := b.Range(), float32(7); got != want {
		t.Errorf("Range() = %v, want %v", got, want)
	}
}

func TestUnion(t *testing.T) {
	a := BoundingBox[float32]{Min: []float32{0, 0}, Max: []float32{1, 1}}
	b := BoundingBox[float32]{Min: []float32{-1, 2}, Max: []float32{0.5, 3}}
	got := a.Union(b)
	want := BoundingBox[float32]{Min: []float32{-1, 0}, Max: []float32{1, 3}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Union mismatch (-want +got):\n%s", diff)
	}
}

func TestCloneIsIndependentBox(t *testing.T) {
	b := NewBoundingBox([]float32{1, 2})
	c := b.Clone()
	c.Min[0] = 99
	if b.Min[0] == 99 {
		t.Fatalf("mutating the clone's Min mutated the original: %v", b.Min)
	}
}

func TestContains(t *testing.T) {
	b := BoundingBox[float32]{Min: []float32{0, 0}, Max: []float32{1, 1}}
	if !b.Contains([]float32{1, 1}) {
		t.Errorf("Contains should be inclusive of the max corner")
	}
	if b.Contains([]float32{1.01, 1}) {
		t.Errorf("Contains should reject a point just outside the box")
	}
}
