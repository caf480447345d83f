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

package executor_test

import (
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/streamrcf/rcf/internal/component"
	"github.com/streamrcf/rcf/internal/executor"
	"github.com/streamrcf/rcf/internal/pointstore"
	"github.com/streamrcf/rcf/internal/sampler"
	"github.com/streamrcf/rcf/internal/tree"
)

// newFilledComponent builds one component drawing from the given shared
// store, the way every component of a real forest resolves references
// against one coordinator-owned PointStore rather than a private copy.
func newFilledComponent(t *testing.T, store *pointstore.Store[float32], seed uint64, n int) *component.SamplerPlusTree[int16] {
	t.Helper()
	s := sampler.New(n, 0, rand.New(rand.NewPCG(seed, seed)))
	tr := tree.New[int16](tree.Options{
		Dim: store.Dim(),
		Rng: rand.New(rand.NewPCG(seed+1, seed+1)),
	}, store.Get)
	c := component.New[int16](s, tr)
	rng := rand.New(rand.NewPCG(seed+2, seed+2))
	for i := 0; i < n; i++ {
		p := []float32{float32(rng.NormFloat64()), float32(rng.NormFloat64())}
		r, err := store.Add(p, 0)
		if err != nil {
			t.Fatalf("store.Add: %v", err)
		}
		if _, err := c.Update(r, uint64(i)); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	return c
}

func newComponents(t *testing.T, count, perComponent int) ([]*component.SamplerPlusTree[int16], *pointstore.Store[float32]) {
	t.Helper()
	store, err := pointstore.New[float32](2, 8, 4096, 0)
	if err != nil {
		t.Fatalf("pointstore.New: %v", err)
	}
	out := make([]*component.SamplerPlusTree[int16], count)
	for i := range out {
		out[i] = newFilledComponent(t, store, uint64(i*100+1), perComponent)
	}
	return out, store
}

func TestRunTraversalSequentialAndParallelAgree(t *testing.T) {
	components, _ := newComponents(t, 6, 32)
	factory := tree.NewScoreVisitorFactory(32)
	query := []float32{0.5, -0.25}

	seqAcc := &executor.MeanAccumulator{}
	seqResult := executor.RunTraversal(executor.Config{ParallelExecutionEnabled: false}, components, query, factory, seqAcc)

	parAcc := &executor.MeanAccumulator{}
	parResult := executor.RunTraversal(executor.Config{ParallelExecutionEnabled: true, ThreadPoolSize: 4}, components, query, factory, parAcc)

	if seqResult != parResult {
		t.Fatalf("sequential mean = %v, parallel mean = %v, want equal (same per-component scores, just combined by different backends)", seqResult, parResult)
	}
	if seqAcc.ValuesAccepted() != len(components) || parAcc.ValuesAccepted() != len(components) {
		t.Fatalf("ValuesAccepted = (seq %d, par %d), want %d each", seqAcc.ValuesAccepted(), parAcc.ValuesAccepted(), len(components))
	}
}

func TestRunTraversalMultiSequentialAndParallelAgree(t *testing.T) {
	components, _ := newComponents(t, 5, 24)
	factory := tree.NewNearNeighborsVisitorFactory([]float32{0, 0}, 50)

	seqAcc := &executor.NeighborsAccumulator{}
	seqResult := executor.RunTraversalMulti(executor.Config{ParallelExecutionEnabled: false}, components, []float32{0, 0}, factory, seqAcc)

	parAcc := &executor.NeighborsAccumulator{}
	parResult := executor.RunTraversalMulti(executor.Config{ParallelExecutionEnabled: true, ThreadPoolSize: 4}, components, []float32{0, 0}, factory, parAcc)

	if len(seqResult) != len(parResult) {
		t.Fatalf("sequential found %d neighbors, parallel found %d, want equal counts", len(seqResult), len(parResult))
	}
}

// alwaysConvergedAfterOne is a ConvergingAccumulator that reports
// converged as soon as a single value has been accepted, used to verify
// that RunTraversal's sequential backend stops submitting further
// components once the accumulator is satisfied.
type alwaysConvergedAfterOne struct {
	mu     sync.Mutex
	values []float64
}

func (a *alwaysConvergedAfterOne) Accept(v float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.values = append(a.values, v)
}
func (a *alwaysConvergedAfterOne) IsConverged() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.values) >= 1
}
func (a *alwaysConvergedAfterOne) ValuesAccepted() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.values)
}
func (a *alwaysConvergedAfterOne) AccumulatedValue() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.values) == 0 {
		return 0
	}
	return a.values[0]
}

func TestRunTraversalSequentialStopsSubmittingOnceConverged(t *testing.T) {
	components, _ := newComponents(t, 8, 16)
	factory := tree.NewScoreVisitorFactory(16)
	acc := &alwaysConvergedAfterOne{}

	executor.RunTraversal(executor.Config{ParallelExecutionEnabled: false}, components, []float32{0, 0}, factory, acc)

	if acc.ValuesAccepted() != 1 {
		t.Fatalf("sequential backend accepted %d values after convergence on the first, want exactly 1", acc.ValuesAccepted())
	}
}

func TestRunTraversalParallelNeverExceedsComponentCount(t *testing.T) {
	components, _ := newComponents(t, 8, 16)
	factory := tree.NewScoreVisitorFactory(16)
	acc := &alwaysConvergedAfterOne{}

	executor.RunTraversal(executor.Config{ParallelExecutionEnabled: true, ThreadPoolSize: 3}, components, []float32{0, 0}, factory, acc)

	accepted := acc.ValuesAccepted()
	if accepted < 1 || accepted > len(components) {
		t.Fatalf("parallel backend accepted %d values, want between 1 and %d", accepted, len(components))
	}
}

func TestRunUpdateSequentialAndParallelProduceSameAdmissionPattern(t *testing.T) {
	seqComponents, seqStore := newComponents(t, 4, 8)
	parComponents, parStore := newComponents(t, 4, 8)

	seqRef, err := seqStore.Add([]float32{0.1, 0.2}, 1)
	if err != nil {
		t.Fatalf("seqStore.Add: %v", err)
	}
	parRef, err := parStore.Add([]float32{0.1, 0.2}, 1)
	if err != nil {
		t.Fatalf("parStore.Add: %v", err)
	}

	seqResults, err := executor.RunUpdate(executor.Config{ParallelExecutionEnabled: false}, seqComponents, seqRef, 1000)
	if err != nil {
		t.Fatalf("RunUpdate (sequential): %v", err)
	}
	parResults, err := executor.RunUpdate(executor.Config{ParallelExecutionEnabled: true, ThreadPoolSize: 4}, parComponents, parRef, 1000)
	if err != nil {
		t.Fatalf("RunUpdate (parallel): %v", err)
	}

	if len(seqResults) != len(parResults) {
		t.Fatalf("result lengths differ: %d vs %d", len(seqResults), len(parResults))
	}
	for i := range seqResults {
		if seqResults[i].Admitted != parResults[i].Admitted {
			t.Errorf("component %d: sequential Admitted=%v, parallel Admitted=%v", i, seqResults[i].Admitted, parResults[i].Admitted)
		}
	}
}

func TestRunUpdateResultsAreIndexAddressed(t *testing.T) {
	components, store := newComponents(t, 5, 4)
	ref, err := store.Add([]float32{1, 1}, 1)
	if err != nil {
		t.Fatalf("store.Add: %v", err)
	}

	results, err := executor.RunUpdate(executor.Config{ParallelExecutionEnabled: true, ThreadPoolSize: 8}, components, ref, 0)
	if err != nil {
		t.Fatalf("RunUpdate: %v", err)
	}
	if len(results) != len(components) {
		t.Fatalf("len(results) = %d, want %d (one slot per component regardless of completion order)", len(results), len(components))
	}
}
