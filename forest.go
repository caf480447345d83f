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

// Package rcf implements a streaming anomaly-detection engine built on a
// forest of Random Cut Trees: an ensemble of randomly split binary trees
// over a reservoir-sampled window of recent multidimensional points.
package rcf

import (
	"fmt"
	"sync"
	"time"

	movingaverage "github.com/RobinUS2/golang-moving-average"

	"github.com/streamrcf/rcf/internal/component"
	"github.com/streamrcf/rcf/internal/coordinator"
	"github.com/streamrcf/rcf/internal/executor"
	"github.com/streamrcf/rcf/internal/geom"
	"github.com/streamrcf/rcf/internal/rcferrors"
	"github.com/streamrcf/rcf/internal/rng"
	"github.com/streamrcf/rcf/internal/sampler"
	"github.com/streamrcf/rcf/internal/tree"
)

// statsWindow is how many recent update/traversal calls the rolling
// latency averages in Stats() are computed over, matching the window the
// teacher's hammer dashboard uses for its own moving averages.
const statsWindow = 200

// smallArenaLimit is the largest sampleSize for which the 16-bit arena
// index variant still has headroom (spec.md §9's Small/Large split).
const smallArenaLimit = 1<<15 - 1

// Forest is the facade every caller uses: it owns N components, the
// coordinator, and the executor, and is safe to query concurrently from
// multiple goroutines while Update/UpdateAsync are serialized through a
// single logical writer (spec.md §5).
type Forest interface {
	Update(point []float64) error
	UpdateAsync(point []float64) IndexFuture
	Score(point []float64) (float64, error)
	Attribution(point []float64) (Attribution, error)
	ImputeMissing(point []float64, missingIndices []int) ([]float64, error)
	Extrapolate(horizon, blockSize int, cyclic bool, shingleIndex int) ([]float64, error)
	NearNeighbors(point []float64, distance float64) ([]Neighbor, error)
	SimpleDensity(point []float64) (DensityResult, error)
	ConfigGet(key string) (float64, error)
	ConfigSet(key string, value float64) error
	Stats() Stats
	TotalUpdates() uint64
}

// New creates a Forest over dimensions-wide points, numberOfTrees
// components, each sampling up to sampleSize points. It transparently
// picks the 16-bit or 32-bit tree arena-index variant based on
// sampleSize, per spec.md §9's tagged Small/Large arena note.
func New(dimensions, numberOfTrees, sampleSize int, opts ...Option) (Forest, error) {
	cfg := defaultConfig(dimensions, numberOfTrees, sampleSize)
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.SampleSize <= smallArenaLimit {
		return newForest[int16](cfg)
	}
	return newForest[int32](cfg)
}

// forestImpl is the generic implementation behind the Forest interface;
// callers never name it directly, which is what lets New pick its arena
// width transparently.
type forestImpl[I tree.Index] struct {
	cfg        Config
	coord      *coordinator.Coordinator
	components []*component.SamplerPlusTree[I]
	execCfg    executor.Config

	mu sync.Mutex

	// updateLatency/traversalLatency are rolling averages over recent
	// Update and Score-style traversal calls (spec.md §2.1 ambient stack);
	// movingaverage.MovingAverage locks internally, so these are safe to
	// read from Stats() concurrently with writers.
	updateLatency    *movingaverage.MovingAverage
	traversalLatency *movingaverage.MovingAverage
}

func newForest[I tree.Index](cfg Config) (*forestImpl[I], error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive: %w", rcferrors.ErrInvalidArgument)
	}
	if cfg.NumberOfTrees <= 0 {
		return nil, fmt.Errorf("numberOfTrees must be positive: %w", rcferrors.ErrInvalidArgument)
	}
	if cfg.SampleSize < 2 {
		return nil, fmt.Errorf("sampleSize must be >= 2: %w", rcferrors.ErrInvalidArgument)
	}

	coord, err := coordinator.New(coordinator.Options{
		BaseDim:                  cfg.Dimensions,
		ShingleSize:              cfg.ShingleSize,
		InternalShinglingEnabled: cfg.InternalShinglingEnabled,
		InternalRotationEnabled:  cfg.InternalRotationEnabled,
		NumComponents:            cfg.NumberOfTrees,
	}, cfg.PointStoreInitialCapacity, cfg.PointStoreMaxCapacity, cfg.PointStoreDedupeSize)
	if err != nil {
		return nil, err
	}

	components := make([]*component.SamplerPlusTree[I], cfg.NumberOfTrees)
	for i := 0; i < cfg.NumberOfTrees; i++ {
		samplerSeed := rng.Derive(cfg.RandomSeed, i, rng.PurposeSampler)
		treeSeed := rng.Derive(cfg.RandomSeed, i, rng.PurposeTree)

		s := sampler.New(cfg.SampleSize, cfg.TimeDecay, rng.New(samplerSeed))
		t := tree.New[I](tree.Options{
			Dim:                         coord.Dim(),
			CenterOfMassEnabled:         cfg.CenterOfMassEnabled,
			StoreSequenceIndexesEnabled: cfg.StoreSequenceIndexesEnabled,
			BoundingBoxCacheFraction:    cfg.BoundingBoxCacheFraction,
			Rng:                         rng.New(treeSeed),
		}, coord.Store().Get)
		components[i] = component.New(s, t)
	}

	return &forestImpl[I]{
		cfg:        cfg,
		coord:      coord,
		components: components,
		execCfg: executor.Config{
			ParallelExecutionEnabled: cfg.ParallelExecutionEnabled,
			ThreadPoolSize:           cfg.ThreadPoolSize,
		},
		updateLatency:    movingaverage.New(statsWindow),
		traversalLatency: movingaverage.New(statsWindow),
	}, nil
}

// Update applies one point to every component, serialized behind f.mu:
// spec.md §5 requires a single logical writer per forest.
func (f *forestImpl[I]) Update(point []float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.update(point)
}

func (f *forestImpl[I]) update(point []float64) error {
	start := time.Now()
	defer func() { f.updateLatency.Add(float64(time.Since(start)) / float64(time.Microsecond)) }()

	ref, seq, err := f.coord.InitUpdate(point)
	if err != nil {
		return err
	}
	results, err := executor.RunUpdate(f.execCfg, f.components, ref, seq)
	if err != nil {
		return err
	}
	return f.coord.CompleteUpdate(results, ref)
}

// UpdateAsync kicks off one update in its own goroutine and returns an
// IndexFuture that blocks until it completes, mirroring log.go's
// AddFn/IndexFuture contract: the caller gets a handle back immediately
// and chooses when (or whether) to wait on the result.
func (f *forestImpl[I]) UpdateAsync(point []float64) IndexFuture {
	type outcome struct {
		seq uint64
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		seq := f.coord.TotalUpdates()
		err := f.update(point)
		done <- outcome{seq: seq, err: err}
	}()
	return sync.OnceValue(func() (uint64, error) {
		o := <-done
		return o.seq, o.err
	})
}

func (f *forestImpl[I]) queryVector(point []float64) ([]float32, error) {
	n := geom.Normalize(point)
	if len(n) != f.coord.Dim() {
		return nil, fmt.Errorf("query has %d dims, want %d: %w", len(n), f.coord.Dim(), rcferrors.ErrInvalidArgument)
	}
	return []float32(n), nil
}

// ready reports whether the forest has accumulated enough data to return
// non-neutral query results (spec.md §4.3.5's failure semantics).
func (f *forestImpl[I]) ready() bool {
	if f.coord.TotalUpdates() < uint64(f.cfg.OutputAfter) {
		return false
	}
	for _, c := range f.components {
		if !c.IsOutputReady() {
			return false
		}
	}
	return true
}

func (f *forestImpl[I]) Score(point []float64) (float64, error) {
	q, err := f.queryVector(point)
	if err != nil {
		return 0, err
	}
	if !f.ready() {
		return 0, nil
	}
	start := time.Now()
	factory := tree.NewScoreVisitorFactory(f.cfg.SampleSize)
	result := executor.RunTraversal(f.execCfg, f.components, q, factory, &executor.MeanAccumulator{})
	f.traversalLatency.Add(float64(time.Since(start)) / float64(time.Microsecond))
	return result, nil
}

func (f *forestImpl[I]) Attribution(point []float64) (Attribution, error) {
	q, err := f.queryVector(point)
	if err != nil {
		return Attribution{}, err
	}
	dim := f.coord.Dim()
	if !f.ready() {
		return Attribution{High: make([]float64, dim), Low: make([]float64, dim)}, nil
	}
	factory := tree.NewAttributionVisitorFactory(q, dim, f.cfg.SampleSize)
	a := executor.RunTraversal(f.execCfg, f.components, q, factory, executor.NewAttributionAccumulator(dim))
	return Attribution{High: a.High, Low: a.Low}, nil
}

func (f *forestImpl[I]) ImputeMissing(point []float64, missingIndices []int) ([]float64, error) {
	q, err := f.queryVector(point)
	if err != nil {
		return nil, err
	}
	dim := f.coord.Dim()
	out := make([]float64, dim)
	copy(out, point)
	if !f.ready() {
		return out, nil
	}

	factory := tree.NewImputationVisitorFactory(q, dim, missingIndices)
	result := executor.RunTraversalMulti(f.execCfg, f.components, q, factory, executor.NewImputeAccumulator(dim))

	missing := make(map[int]bool, len(missingIndices))
	for _, d := range missingIndices {
		missing[d] = true
	}
	for d, v := range result {
		if missing[d] {
			out[d] = float64(v)
		}
	}
	return out, nil
}

// Extrapolate forecasts horizon blocks of blockSize coordinates each by
// repeatedly imputing the trailing block of a rolling working shingle and
// sliding it forward, the same rolling-window step the coordinator itself
// uses for internal shingling. The working shingle starts as all zeros,
// and each step imputes only its trailing blockSize values. cyclic and
// shingleIndex do not change the result.
func (f *forestImpl[I]) Extrapolate(horizon, blockSize int, cyclic bool, shingleIndex int) ([]float64, error) {
	if horizon <= 0 || blockSize <= 0 {
		return nil, fmt.Errorf("horizon and blockSize must be positive: %w", rcferrors.ErrInvalidArgument)
	}
	dim := f.coord.Dim()
	if blockSize > dim {
		return nil, fmt.Errorf("blockSize %d exceeds point dimension %d: %w", blockSize, dim, rcferrors.ErrInvalidArgument)
	}
	out := make([]float64, 0, horizon*blockSize)
	if !f.ready() {
		return make([]float64, horizon*blockSize), nil
	}

	current := make([]float64, dim)
	if cyclic && shingleIndex > 0 {
		// shingleIndex is reduced modulo dim but not read afterwards; the
		// working shingle stays zeroed.
		shingleIndex %= dim
	}
	missingStart := dim - blockSize

	for step := 0; step < horizon; step++ {
		missing := make([]int, blockSize)
		for i := range missing {
			missing[i] = missingStart + i
		}
		imputed, err := f.ImputeMissing(current, missing)
		if err != nil {
			return nil, err
		}
		block := imputed[missingStart:]
		out = append(out, block...)

		copy(current, current[blockSize:])
		copy(current[dim-blockSize:], block)
	}
	return out, nil
}

func (f *forestImpl[I]) NearNeighbors(point []float64, distance float64) ([]Neighbor, error) {
	if !f.cfg.StoreSequenceIndexesEnabled {
		return nil, fmt.Errorf("nearNeighbors requires StoreSequenceIndexesEnabled: %w", rcferrors.ErrIllegalState)
	}
	q, err := f.queryVector(point)
	if err != nil {
		return nil, err
	}
	if !f.ready() {
		return nil, nil
	}
	factory := tree.NewNearNeighborsVisitorFactory(q, distance)
	results := executor.RunTraversalMulti(f.execCfg, f.components, q, factory, &executor.NeighborsAccumulator{})

	out := make([]Neighbor, len(results))
	for i, r := range results {
		pt := make([]float64, len(r.Point))
		for d, v := range r.Point {
			pt[d] = float64(v)
		}
		out[i] = Neighbor{Point: pt, Distance: r.Distance, SeqIndexes: r.SeqIndexes}
	}
	return out, nil
}

func (f *forestImpl[I]) SimpleDensity(point []float64) (DensityResult, error) {
	q, err := f.queryVector(point)
	if err != nil {
		return DensityResult{}, err
	}
	dim := f.coord.Dim()
	if !f.ready() {
		return DensityResult{ProbMass: make([]float64, dim)}, nil
	}
	factory := tree.NewSimpleDensityVisitorFactory(q, dim)
	r := executor.RunTraversal(f.execCfg, f.components, q, factory, executor.NewDensityAccumulator(dim))
	return DensityResult{ProbMass: r.ProbMass, Distance: r.Distance}, nil
}

func (f *forestImpl[I]) ConfigGet(key string) (float64, error) {
	k, err := validateConfigKey(key)
	if err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	switch k {
	case ConfigBoundingBoxCacheFraction:
		return f.cfg.BoundingBoxCacheFraction, nil
	case ConfigTimeDecay:
		return f.cfg.TimeDecay, nil
	}
	return 0, fmt.Errorf("unknown config key %q: %w", key, rcferrors.ErrInvalidConfig)
}

func (f *forestImpl[I]) ConfigSet(key string, value float64) error {
	k, err := validateConfigKey(key)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	switch k {
	case ConfigBoundingBoxCacheFraction:
		f.cfg.BoundingBoxCacheFraction = value
		for _, c := range f.components {
			c.Tree.SetBoundingBoxCacheFraction(value)
		}
	case ConfigTimeDecay:
		f.cfg.TimeDecay = value
		for _, c := range f.components {
			c.Sampler.SetTimeDecay(value)
		}
	}
	return nil
}

func (f *forestImpl[I]) Stats() Stats {
	sizes := make([]int, len(f.components))
	for i, c := range f.components {
		sizes[i] = c.Tree.Size()
	}
	return Stats{
		TotalUpdates:           f.coord.TotalUpdates(),
		Ready:                  f.ready(),
		TreeSizes:              sizes,
		UpdateLatencyMicros:    f.updateLatency.Avg(),
		TraversalLatencyMicros: f.traversalLatency.Avg(),
	}
}

func (f *forestImpl[I]) TotalUpdates() uint64 { return f.coord.TotalUpdates() }
