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

// Package coordinator implements the UpdateCoordinator (spec.md §4.5):
// the single owner of the shared PointStore, responsible for sequencing
// every update and keeping reference counts consistent regardless of how
// many components observed it or in what order they ran.
package coordinator

import (
	"fmt"

	"github.com/streamrcf/rcf/internal/component"
	"github.com/streamrcf/rcf/internal/geom"
	"github.com/streamrcf/rcf/internal/pointstore"
	"github.com/streamrcf/rcf/internal/rcferrors"
)

// Options configures a Coordinator at construction.
type Options struct {
	BaseDim     int
	ShingleSize int
	// InternalShinglingEnabled makes the coordinator itself assemble a
	// shingleSize*BaseDim point from a rolling window of base vectors.
	// When false, callers are expected to hand initUpdate an already
	// shingled, full-dimension vector (spec.md's "shingling helper used
	// outside the core" case).
	InternalShinglingEnabled bool
	// InternalRotationEnabled changes how the rolling window is
	// maintained (overwrite the oldest slot in place, tracked by a
	// rotation offset, instead of shifting every slot down on each
	// update) without changing the externally observable shingle
	// contents. A no-op whenever ShingleSize == 1 (see DESIGN.md).
	InternalRotationEnabled bool
	NumComponents           int
}

// Coordinator owns the PointStore and the forest-wide sequence counter.
type Coordinator struct {
	opts  Options
	store *pointstore.Store[float32]

	totalUpdates uint64

	shingleBuf     []float32 // NumComponents-independent rolling window, BaseDim*ShingleSize wide
	rotationOffset int
	filled         int
}

// New creates a Coordinator backed by a float32 PointStore sized for
// opts.ShingleSize*opts.BaseDim points.
func New(opts Options, initialCapacity, maxCapacity, dedupeSize int) (*Coordinator, error) {
	dim := opts.BaseDim * opts.ShingleSize
	store, err := pointstore.New[float32](dim, initialCapacity, maxCapacity, dedupeSize)
	if err != nil {
		return nil, err
	}
	c := &Coordinator{opts: opts, store: store}
	if opts.InternalShinglingEnabled {
		c.shingleBuf = make([]float32, dim)
	}
	return c, nil
}

// Store returns the shared PointStore every tree resolves references
// against.
func (c *Coordinator) Store() *pointstore.Store[float32] { return c.store }

// Dim returns the full (post-shingle) point dimensionality.
func (c *Coordinator) Dim() int { return c.opts.BaseDim * c.opts.ShingleSize }

// TotalUpdates returns the monotone update counter.
func (c *Coordinator) TotalUpdates() uint64 { return c.totalUpdates }

// InitUpdate normalizes rawPoint (spec.md §3's negative-zero rule),
// assembles the shingle when internal shingling is enabled, installs the
// result in the PointStore with a reference count of NumComponents (every
// component is assumed to admit it until completeUpdate proves
// otherwise), and assigns the next sequence index.
func (c *Coordinator) InitUpdate(rawPoint []float64) (pointstore.Reference, uint64, error) {
	normalized := geom.Normalize(rawPoint)

	var full geom.Vector
	if c.opts.InternalShinglingEnabled {
		if len(normalized) != c.opts.BaseDim {
			return 0, 0, fmt.Errorf("base point has %d dims, want %d: %w", len(normalized), c.opts.BaseDim, rcferrors.ErrInvalidArgument)
		}
		full = c.pushShingle(normalized)
	} else {
		if len(normalized) != c.Dim() {
			return 0, 0, fmt.Errorf("point has %d dims, want %d: %w", len(normalized), c.Dim(), rcferrors.ErrInvalidArgument)
		}
		full = normalized
	}

	ref, err := c.store.Add(full, uint32(c.opts.NumComponents))
	if err != nil {
		return 0, 0, err
	}
	seq := c.totalUpdates
	c.totalUpdates++
	return ref, seq, nil
}

// pushShingle appends p (one base vector) to the rolling window and
// returns the current full shingle, in chronological order, regardless
// of whether rotation is enabled internally.
func (c *Coordinator) pushShingle(p geom.Vector) geom.Vector {
	base := c.opts.BaseDim
	if c.opts.InternalRotationEnabled && c.opts.ShingleSize > 1 {
		copy(c.shingleBuf[c.rotationOffset:c.rotationOffset+base], p)
		c.rotationOffset = (c.rotationOffset + base) % len(c.shingleBuf)
	} else {
		copy(c.shingleBuf, c.shingleBuf[base:])
		copy(c.shingleBuf[len(c.shingleBuf)-base:], p)
	}
	if c.filled < c.opts.ShingleSize {
		c.filled++
	}

	out := make([]float32, len(c.shingleBuf))
	if c.opts.InternalRotationEnabled && c.opts.ShingleSize > 1 {
		copy(out, c.shingleBuf[c.rotationOffset:])
		copy(out[len(c.shingleBuf)-c.rotationOffset:], c.shingleBuf[:c.rotationOffset])
	} else {
		copy(out, c.shingleBuf)
	}
	return out
}

// ShingleFilled reports whether the rolling window holds a full
// ShingleSize worth of base vectors yet (before that, shingled output is
// zero-padded at the front and not meaningful).
func (c *Coordinator) ShingleFilled() bool { return c.filled >= c.opts.ShingleSize }

// CompleteUpdate walks the per-component results of one update, releasing
// exactly the reference counts that the optimistic InitUpdate grant
// didn't end up being used for: one per component that rejected the new
// reference, and one per reference any component evicted.
func (c *Coordinator) CompleteUpdate(results []component.UpdateResult, reference pointstore.Reference) error {
	for _, r := range results {
		if !r.Admitted {
			if _, err := c.store.DecRef(reference); err != nil {
				return err
			}
		}
		if r.Evicted {
			if _, err := c.store.DecRef(r.EvictedReference); err != nil {
				return err
			}
		}
	}
	return nil
}
