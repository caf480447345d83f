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
	"math"
	"math/rand/v2"
	"testing"
)

func buildFilledTree(t *testing.T, n int, dim int, seed uint64) (*Tree[int16], *fakeStore) {
	t.Helper()
	tr, store := newTestTree(dim, 1.0, seed)
	rng := rand.New(rand.NewPCG(seed, seed))
	for i := 0; i < n; i++ {
		p := make([]float32, dim)
		for d := range p {
			p[d] = float32(rng.NormFloat64())
		}
		r := store.add(p)
		if err := tr.Add(r, uint64(i)); err != nil {
			t.Fatalf("Add #%d: %v", i, err)
		}
	}
	return tr, store
}

func TestScoreVisitorNonNegative(t *testing.T) {
	tr, _ := buildFilledTree(t, 64, 2, 101)
	factory := NewScoreVisitorFactory(64)
	score := Traverse[int16](tr, []float32{0, 0}, factory)
	if score < 0 {
		t.Fatalf("score = %v, want >= 0", score)
	}
}

func TestScoreHigherFarFromCluster(t *testing.T) {
	tr, _ := buildFilledTree(t, 200, 2, 202)
	factory := NewScoreVisitorFactory(200)
	near := Traverse[int16](tr, []float32{0, 0}, factory)
	far := Traverse[int16](tr, []float32{50, 50}, factory)
	if far <= near {
		t.Errorf("score(far outlier)=%v not greater than score(cluster center)=%v", far, near)
	}
}

func TestAttributionSumsToScore(t *testing.T) {
	tr, _ := buildFilledTree(t, 128, 3, 303)
	query := []float32{5, -3, 1}
	scoreFactory := NewScoreVisitorFactory(128)
	score := Traverse[int16](tr, query, scoreFactory)

	attrFactory := NewAttributionVisitorFactory(query, 3, 128)
	attr := Traverse[int16](tr, query, attrFactory)

	var total float64
	for d := 0; d < 3; d++ {
		if attr.High[d] < 0 || attr.Low[d] < 0 {
			t.Errorf("attribution component at dim %d is negative: high=%v low=%v", d, attr.High[d], attr.Low[d])
		}
		total += attr.High[d] + attr.Low[d]
	}
	if math.Abs(total-score) > 1e-9 {
		t.Errorf("sum(high)+sum(low) = %v, want %v (the score)", total, score)
	}
}

func TestImputationProducesConvexCombination(t *testing.T) {
	tr, store := newTestTree(2, 1.0, 404)
	pts := [][]float32{{0, 0}, {0, 2}, {0, 4}}
	for i, p := range pts {
		r := store.add(p)
		if err := tr.Add(r, uint64(i)); err != nil {
			t.Fatalf("Add #%d: %v", i, err)
		}
	}
	factory := NewImputationVisitorFactory([]float32{0, 0}, 2, []int{1})
	result := TraverseMulti[int16](tr, []float32{0, 0}, factory)
	if result.TotalMass == 0 {
		t.Fatalf("ImputeResult.TotalMass = 0, want > 0")
	}
	imputedY := result.WeightedSum[1] / result.TotalMass
	if imputedY < 0 || imputedY > 4 {
		t.Errorf("imputed y = %v, want within [0,4] (the convex hull of the observed ys)", imputedY)
	}
}

func TestNearNeighborsSortedAscendingWithSeqIndexes(t *testing.T) {
	tr, store := newTestTree(2, 1.0, 505)
	origin := store.add([]float32{0, 0})
	near := store.add([]float32{1, 0})
	far := store.add([]float32{4, 0})
	if err := tr.Add(origin, 0); err != nil {
		t.Fatalf("Add origin: %v", err)
	}
	if err := tr.Add(near, 1); err != nil {
		t.Fatalf("Add near: %v", err)
	}
	if err := tr.Add(far, 2); err != nil {
		t.Fatalf("Add far: %v", err)
	}
	// Admit origin again under a different sequence index so its
	// SeqIndexes accumulates more than one entry.
	if err := tr.Add(origin, 3); err != nil {
		t.Fatalf("Add origin again: %v", err)
	}

	factory := NewNearNeighborsVisitorFactory([]float32{0, 0}, 3.0)
	results := TraverseMulti[int16](tr, []float32{0, 0}, factory)

	if len(results) != 2 {
		t.Fatalf("got %d neighbors within radius 3, want 2 (origin and near)", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i-1].Distance > results[i].Distance {
			t.Fatalf("neighbors not sorted ascending: %v", results)
		}
	}
	if results[0].Distance != 0 {
		t.Errorf("closest neighbor distance = %v, want 0 (the origin point itself)", results[0].Distance)
	}
	if len(results[0].SeqIndexes) != 2 {
		t.Errorf("origin's SeqIndexes = %v, want 2 entries (admitted under seq 0 and 3)", results[0].SeqIndexes)
	}
}

func TestSimpleDensityVisitorDistanceMatchesLeaf(t *testing.T) {
	tr, store := newTestTree(2, 1.0, 606)
	r := store.add([]float32{3, 4})
	if err := tr.Add(r, 0); err != nil {
		t.Fatalf("Add: %v", err)
	}
	factory := NewSimpleDensityVisitorFactory([]float32{0, 0}, 2)
	result := Traverse[int16](tr, []float32{0, 0}, factory)
	if math.Abs(result.Distance-5.0) > 1e-6 {
		t.Errorf("Distance = %v, want 5 (3-4-5 triangle from the only leaf)", result.Distance)
	}
}

func TestEmptyTreeQueriesReturnZeroValue(t *testing.T) {
	tr, _ := newTestTree(2, 1.0, 1)
	factory := NewScoreVisitorFactory(64)
	score := Traverse[int16](tr, []float32{1, 1}, factory)
	if score != 0 {
		t.Errorf("score against an empty tree = %v, want 0", score)
	}
}
