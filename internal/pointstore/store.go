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

// Package pointstore implements the forest's shared arena of D-dimensional
// points: a reference-counted backing store that every tree in the forest
// indexes into rather than each holding its own copy.
package pointstore

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/streamrcf/rcf/internal/geom"
	"github.com/streamrcf/rcf/internal/rcferrors"
)

// Reference is a non-negative index into a Store. It is zero-cost to copy
// and is treated as an opaque handle outside the store.
type Reference int32

// Store is a reference-counted arena of dim-dimensional vectors. Store is
// parameterized over geom.Real so that a Float (float32) or Double
// (float64) variant can be instantiated from the same code, per spec.md
// §9's note that precision should be a tagged-variant capability rather
// than a base-class split.
type Store[T geom.Real] struct {
	mu sync.RWMutex

	dim         int
	maxCapacity int

	slots    []Vector[T] // nil entry means free
	refCount []uint32
	free     []int32

	// dedupe maps a coordinate key to the slot already holding it, so
	// that repeated admissions of the exact same point share one slot
	// instead of allocating a new one. Grounded on dedupe.go's
	// inMemoryDedupe, which wraps an Add path with an LRU of recently
	// seen identities for the same reason.
	dedupe *lru.Cache[string, Reference]
}

// Vector is a read-only borrow of a stored point, valid until the caller
// releases its reference or the store is compacted.
type Vector[T geom.Real] []T

// New creates a Store for dim-dimensional points, with an initial
// capacity and a hard maximum the arena will never grow past. dedupeSize
// bounds the coordinate-dedup LRU; 0 disables dedup lookups entirely.
func New[T geom.Real](dim, initialCapacity, maxCapacity, dedupeSize int) (*Store[T], error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dim must be positive: %w", rcferrors.ErrInvalidArgument)
	}
	if maxCapacity < initialCapacity {
		return nil, fmt.Errorf("maxCapacity < initialCapacity: %w", rcferrors.ErrInvalidArgument)
	}
	s := &Store[T]{
		dim:         dim,
		maxCapacity: maxCapacity,
		slots:       make([]Vector[T], 0, initialCapacity),
		refCount:    make([]uint32, 0, initialCapacity),
	}
	if dedupeSize > 0 {
		c, err := lru.New[string, Reference](dedupeSize)
		if err != nil {
			return nil, fmt.Errorf("lru.New: %w", err)
		}
		s.dedupe = c
	}
	return s, nil
}

// Dim returns the point dimensionality this store was created for.
func (s *Store[T]) Dim() int { return s.dim }

// Add copies p into the arena and returns a stable reference with the
// given initial reference count. If an identical point is already live in
// the store (per the dedupe cache), its existing reference is reused and
// its refcount is bumped by initialRefCount instead.
func (s *Store[T]) Add(p []T, initialRefCount uint32) (Reference, error) {
	if len(p) != s.dim {
		return 0, fmt.Errorf("point has %d dims, want %d: %w", len(p), s.dim, rcferrors.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dedupe != nil {
		k := key(p)
		if r, ok := s.dedupe.Get(k); ok {
			s.refCount[r] += initialRefCount
			return r, nil
		}
	}

	ref, err := s.allocLocked()
	if err != nil {
		return 0, err
	}
	v := make(Vector[T], s.dim)
	copy(v, p)
	s.slots[ref] = v
	s.refCount[ref] = initialRefCount

	if s.dedupe != nil {
		s.dedupe.Add(key(p), ref)
	}
	return ref, nil
}

// allocLocked returns a free slot index, growing the arena (doubling, up
// to maxCapacity) if necessary. Callers must hold s.mu.
func (s *Store[T]) allocLocked() (Reference, error) {
	if n := len(s.free); n > 0 {
		r := s.free[n-1]
		s.free = s.free[:n-1]
		return Reference(r), nil
	}
	if len(s.slots) >= s.maxCapacity {
		return 0, fmt.Errorf("arena at max capacity %d: %w", s.maxCapacity, rcferrors.ErrCapacityExceeded)
	}
	if len(s.slots) == cap(s.slots) {
		newCap := 2 * cap(s.slots)
		if newCap == 0 {
			newCap = 1
		}
		if newCap > s.maxCapacity {
			newCap = s.maxCapacity
		}
		s.slots = append(make([]Vector[T], 0, newCap), s.slots...)
		s.refCount = append(make([]uint32, 0, newCap), s.refCount...)
	}
	s.slots = append(s.slots, nil)
	s.refCount = append(s.refCount, 0)
	return Reference(len(s.slots) - 1), nil
}

// IncRef increments the reference count of an already-live reference.
func (s *Store[T]) IncRef(r Reference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLiveLocked(r); err != nil {
		return err
	}
	s.refCount[r]++
	return nil
}

// DecRef decrements the reference count of r, freeing its slot once the
// count reaches zero. It reports whether the slot was freed.
func (s *Store[T]) DecRef(r Reference) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLiveLocked(r); err != nil {
		return false, err
	}
	s.refCount[r]--
	if s.refCount[r] > 0 {
		return false, nil
	}
	if s.dedupe != nil {
		s.dedupe.Remove(key(s.slots[r]))
	}
	s.slots[r] = nil
	s.free = append(s.free, int32(r))
	return true, nil
}

// Get returns a read-only view of the point at r.
func (s *Store[T]) Get(r Reference) (Vector[T], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkLiveLocked(r); err != nil {
		return nil, err
	}
	return s.slots[r], nil
}

// RefCount returns the current reference count of r, for testing and
// invariant checks.
func (s *Store[T]) RefCount(r Reference) (uint32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkLiveLocked(r); err != nil {
		return 0, err
	}
	return s.refCount[r], nil
}

func (s *Store[T]) checkLiveLocked(r Reference) error {
	if r < 0 || int(r) >= len(s.slots) || s.slots[r] == nil {
		return fmt.Errorf("reference %d: %w", r, rcferrors.ErrInvalidReference)
	}
	return nil
}

// Len returns the number of live references.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots) - len(s.free)
}

// Cap returns the arena's current backing capacity.
func (s *Store[T]) Cap() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots)
}

// Compact renumbers live references to remove gaps left by freed slots,
// returning a map from every live reference's old value to its new value.
// Callers (the coordinator, every tree) must remap any reference they
// are holding using the returned table.
func (s *Store[T]) Compact() map[Reference]Reference {
	s.mu.Lock()
	defer s.mu.Unlock()

	remap := make(map[Reference]Reference, len(s.slots)-len(s.free))
	newSlots := make([]Vector[T], 0, len(s.slots)-len(s.free))
	newRefCount := make([]uint32, 0, len(s.slots)-len(s.free))
	for old, v := range s.slots {
		if v == nil {
			continue
		}
		newRef := Reference(len(newSlots))
		remap[Reference(old)] = newRef
		newSlots = append(newSlots, v)
		newRefCount = append(newRefCount, s.refCount[old])
	}
	s.slots = newSlots
	s.refCount = newRefCount
	s.free = nil

	if s.dedupe != nil {
		s.dedupe.Purge()
		for ref, v := range s.slots {
			s.dedupe.Add(key(v), Reference(ref))
		}
	}
	return remap
}

// key encodes a coordinate vector into a byte-exact map key. It works for
// both float32 and float64 instantiations by promoting through float64
// bit patterns, so +0 and -0 (already normalized away by geom.Normalize
// before point ever reach the store) and identical values always collide.
func key[T geom.Real](p []T) string {
	b := make([]byte, 0, len(p)*8)
	for _, v := range p {
		b = binary.LittleEndian.AppendUint64(b, math.Float64bits(float64(v)))
	}
	return string(b)
}
