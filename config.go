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

package rcf

import (
	"fmt"

	"github.com/streamrcf/rcf/internal/rcferrors"
)

// Config holds every recognized setting from spec.md §6. The zero value
// is not valid on its own: Dimensions, NumberOfTrees and SampleSize must
// be set, which New requires by taking them as positional arguments and
// letting every other field default sensibly.
type Config struct {
	Dimensions    int
	NumberOfTrees int
	SampleSize    int

	TimeDecay                float64
	BoundingBoxCacheFraction float64
	OutputAfter              int

	CenterOfMassEnabled         bool
	StoreSequenceIndexesEnabled bool

	ParallelExecutionEnabled bool
	ThreadPoolSize           int

	RandomSeed uint64

	ShingleSize              int
	InternalShinglingEnabled bool
	InternalRotationEnabled  bool

	InitialAcceptFraction float64

	PointStoreInitialCapacity int
	PointStoreMaxCapacity     int
	PointStoreDedupeSize      int
}

func defaultConfig(dimensions, numberOfTrees, sampleSize int) Config {
	return Config{
		Dimensions:                dimensions,
		NumberOfTrees:             numberOfTrees,
		SampleSize:                sampleSize,
		TimeDecay:                 1.0 / float64(sampleSize),
		BoundingBoxCacheFraction:  1.0,
		OutputAfter:               sampleSize,
		ShingleSize:               1,
		InitialAcceptFraction:     1.0,
		PointStoreInitialCapacity: sampleSize * numberOfTrees,
		PointStoreMaxCapacity:     sampleSize * numberOfTrees * 4,
		PointStoreDedupeSize:      sampleSize * numberOfTrees,
		ThreadPoolSize:            1,
	}
}

// Option configures a Forest at construction time.
type Option func(*Config)

// WithTimeDecay sets λ, the exponential-decay rate applied to sample
// weights (spec.md §4.2). Larger values favor more recent points more
// strongly.
func WithTimeDecay(lambda float64) Option {
	return func(c *Config) { c.TimeDecay = lambda }
}

// WithBoundingBoxCacheFraction sets the target fraction, in [0,1], of
// internal tree nodes whose bounding box is materialized rather than
// recomputed on every traversal (spec.md §4.3.3).
func WithBoundingBoxCacheFraction(f float64) Option {
	return func(c *Config) { c.BoundingBoxCacheFraction = f }
}

// WithOutputAfter sets how many updates must land before queries stop
// returning the neutral result (spec.md §4.3.5).
func WithOutputAfter(n int) Option {
	return func(c *Config) { c.OutputAfter = n }
}

// WithCenterOfMassEnabled turns on the per-subtree sum-of-leaf-points
// bookkeeping every tree needs to answer CenterOfMass queries.
func WithCenterOfMassEnabled(enabled bool) Option {
	return func(c *Config) { c.CenterOfMassEnabled = enabled }
}

// WithStoreSequenceIndexesEnabled turns on the per-leaf sequence-index
// maps that NearNeighbors requires.
func WithStoreSequenceIndexesEnabled(enabled bool) Option {
	return func(c *Config) { c.StoreSequenceIndexesEnabled = enabled }
}

// WithParallelExecution enables the parallel traversal/update backend
// with the given worker pool size.
func WithParallelExecution(threadPoolSize int) Option {
	return func(c *Config) {
		c.ParallelExecutionEnabled = true
		c.ThreadPoolSize = threadPoolSize
	}
}

// WithRandomSeed fixes the root seed every per-component stream is
// derived from (spec.md §9), making the forest's evolution reproducible.
func WithRandomSeed(seed uint64) Option {
	return func(c *Config) { c.RandomSeed = seed }
}

// WithShingling enables the coordinator's internal shingle assembly:
// every update is treated as one baseDim-wide vector appended to a
// rolling window of shingleSize such vectors, with the full
// shingleSize*baseDim concatenation handed to the forest. rotation
// changes how that rolling window is maintained internally without
// changing its externally observable contents (spec.md §9 open
// question 2); it has no effect when shingleSize == 1.
func WithShingling(shingleSize int, rotation bool) Option {
	return func(c *Config) {
		c.ShingleSize = shingleSize
		c.InternalShinglingEnabled = true
		c.InternalRotationEnabled = rotation
	}
}

// WithInitialAcceptFraction records a fraction, in (0,1], in
// Config.InitialAcceptFraction. The value is not passed to the samplers:
// admission during the first fill follows the same weight rule as every
// other update, whatever the fraction.
func WithInitialAcceptFraction(fraction float64) Option {
	return func(c *Config) { c.InitialAcceptFraction = fraction }
}

// WithPointStoreCapacity overrides the shared PointStore's initial and
// maximum backing-arena sizes.
func WithPointStoreCapacity(initial, max int) Option {
	return func(c *Config) {
		c.PointStoreInitialCapacity = initial
		c.PointStoreMaxCapacity = max
	}
}

// configKey enumerates the keys recognized by ConfigGet/ConfigSet
// (spec.md §6); any other key fails with INVALID_CONFIG.
type configKey string

const (
	ConfigBoundingBoxCacheFraction configKey = "BOUNDING_BOX_CACHE_FRACTION"
	ConfigTimeDecay                configKey = "TIME_DECAY"
)

func validateConfigKey(key string) (configKey, error) {
	switch k := configKey(key); k {
	case ConfigBoundingBoxCacheFraction, ConfigTimeDecay:
		return k, nil
	default:
		return "", fmt.Errorf("unknown config key %q: %w", key, rcferrors.ErrInvalidConfig)
	}
}
