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

package coordinator_test

import (
	"errors"
	"testing"

	"github.com/streamrcf/rcf/internal/component"
	"github.com/streamrcf/rcf/internal/coordinator"
	"github.com/streamrcf/rcf/internal/pointstore"
	"github.com/streamrcf/rcf/internal/rcferrors"
)

func TestInitUpdateAssignsSequentialSeqIndexes(t *testing.T) {
	c, err := coordinator.New(coordinator.Options{BaseDim: 2, ShingleSize: 1, NumComponents: 3}, 8, 64, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for want := uint64(0); want < 3; want++ {
		_, seq, err := c.InitUpdate([]float64{1, 2})
		if err != nil {
			t.Fatalf("InitUpdate: %v", err)
		}
		if seq != want {
			t.Fatalf("seq = %d, want %d", seq, want)
		}
	}
	if c.TotalUpdates() != 3 {
		t.Errorf("TotalUpdates() = %d, want 3", c.TotalUpdates())
	}
}

func TestInitUpdateWrongDimFails(t *testing.T) {
	c, err := coordinator.New(coordinator.Options{BaseDim: 2, ShingleSize: 1, NumComponents: 1}, 8, 64, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, _, err := c.InitUpdate([]float64{1, 2, 3}); !errors.Is(err, rcferrors.ErrInvalidArgument) {
		t.Fatalf("InitUpdate with wrong dim: got %v, want ErrInvalidArgument", err)
	}
}

func TestInitUpdateGrantsRefCountEqualToComponentCount(t *testing.T) {
	const numComponents = 5
	c, err := coordinator.New(coordinator.Options{BaseDim: 1, ShingleSize: 1, NumComponents: numComponents}, 8, 64, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ref, _, err := c.InitUpdate([]float64{42})
	if err != nil {
		t.Fatalf("InitUpdate: %v", err)
	}
	count, err := c.Store().RefCount(ref)
	if err != nil {
		t.Fatalf("RefCount: %v", err)
	}
	if count != numComponents {
		t.Fatalf("RefCount after InitUpdate = %d, want %d (optimistic grant to every component)", count, numComponents)
	}
}

func TestCompleteUpdateReleasesRejectedReference(t *testing.T) {
	const numComponents = 2
	c, err := coordinator.New(coordinator.Options{BaseDim: 1, ShingleSize: 1, NumComponents: numComponents}, 8, 64, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ref, _, err := c.InitUpdate([]float64{1})
	if err != nil {
		t.Fatalf("InitUpdate: %v", err)
	}

	// One component admitted ref; the other rejected it.
	results := []component.UpdateResult{
		{Admitted: true, AddedReference: ref},
		{Admitted: false},
	}
	if err := c.CompleteUpdate(results, ref); err != nil {
		t.Fatalf("CompleteUpdate: %v", err)
	}

	count, err := c.Store().RefCount(ref)
	if err != nil {
		t.Fatalf("RefCount(ref): %v", err)
	}
	if count != numComponents-1 {
		t.Errorf("RefCount(ref) = %d, want %d (one component rejected it)", count, numComponents-1)
	}
}

func TestCompleteUpdateReleasesEvictedReferenceOnceEveryComponentDropsIt(t *testing.T) {
	const numComponents = 2
	c, err := coordinator.New(coordinator.Options{BaseDim: 1, ShingleSize: 1, NumComponents: numComponents}, 8, 64, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ref, _, err := c.InitUpdate([]float64{1})
	if err != nil {
		t.Fatalf("InitUpdate: %v", err)
	}
	evictedRef, _, err := c.InitUpdate([]float64{2})
	if err != nil {
		t.Fatalf("InitUpdate (evicted point): %v", err)
	}

	// Both components admitted ref and, in doing so, evicted evictedRef
	// from their own reservoirs: its initial NumComponents grant must be
	// fully unwound before the slot is freed.
	results := []component.UpdateResult{
		{Admitted: true, AddedReference: ref, Evicted: true, EvictedReference: evictedRef},
		{Admitted: true, AddedReference: ref, Evicted: true, EvictedReference: evictedRef},
	}
	if err := c.CompleteUpdate(results, ref); err != nil {
		t.Fatalf("CompleteUpdate: %v", err)
	}

	if _, err := c.Store().RefCount(evictedRef); !errors.Is(err, rcferrors.ErrInvalidReference) {
		t.Errorf("RefCount(evictedRef) = %v, want ErrInvalidReference once both components dropped it", err)
	}
}

func TestShingleFilledAndAssembly(t *testing.T) {
	c, err := coordinator.New(coordinator.Options{
		BaseDim:                  1,
		ShingleSize:              3,
		InternalShinglingEnabled: true,
		NumComponents:            1,
	}, 8, 64, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.ShingleFilled() {
		t.Fatalf("ShingleFilled() = true before any update")
	}

	var lastRef pointstore.Reference
	for i, v := range []float64{1, 2, 3} {
		ref, _, err := c.InitUpdate([]float64{v})
		if err != nil {
			t.Fatalf("InitUpdate #%d: %v", i, err)
		}
		lastRef = ref
	}
	if !c.ShingleFilled() {
		t.Fatalf("ShingleFilled() = false after 3 updates at ShingleSize=3, want true")
	}

	got, err := c.Store().Get(lastRef)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	want := []float32{1, 2, 3}
	for d := range want {
		if got[d] != want[d] {
			t.Fatalf("assembled shingle = %v, want %v", got, want)
		}
	}
}
