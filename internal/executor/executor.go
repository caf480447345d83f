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

// Package executor implements the TraversalExecutor and UpdateExecutor
// (spec.md §4.6): sequential and parallel backends sharing identical
// observable semantics on deterministic visitors, fanning out across
// components with a fixed-size worker pool built on
// golang.org/x/sync/errgroup, the same mechanism storage/integrate.go
// uses to fan a range query out across tiles.
package executor

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/streamrcf/rcf/internal/component"
	"github.com/streamrcf/rcf/internal/pointstore"
	"github.com/streamrcf/rcf/internal/tree"
)

// ConvergingAccumulator is the early-stop reducer design note from
// spec.md §9: accept per-component results, report whether enough have
// arrived to stop submitting new work, and produce the final value.
type ConvergingAccumulator[R any] interface {
	Accept(value R)
	IsConverged() bool
	ValuesAccepted() int
	AccumulatedValue() R
}

// Config holds the two execution-mode settings every Run call needs.
type Config struct {
	ParallelExecutionEnabled bool
	ThreadPoolSize           int
}

func (c Config) sequential() bool {
	return !c.ParallelExecutionEnabled || c.ThreadPoolSize <= 1
}

// RunTraversal runs a single-path visitor factory against every
// component and folds the per-component results into acc, using the
// sequential or parallel backend per cfg.
func RunTraversal[I tree.Index, R any](cfg Config, components []*component.SamplerPlusTree[I], query []float32, factory func() tree.Visitor[R], acc ConvergingAccumulator[R]) R {
	if cfg.sequential() {
		for _, c := range components {
			if acc.IsConverged() {
				break
			}
			acc.Accept(component.Traverse(c, query, factory))
		}
		return acc.AccumulatedValue()
	}
	return runParallel(cfg.ThreadPoolSize, components, acc, func(c *component.SamplerPlusTree[I]) R {
		return component.Traverse(c, query, factory)
	})
}

// RunTraversalMulti is RunTraversal's counterpart for fan-out visitors.
func RunTraversalMulti[I tree.Index, R any](cfg Config, components []*component.SamplerPlusTree[I], query []float32, factory func() tree.MultiVisitor[R], acc ConvergingAccumulator[R]) R {
	if cfg.sequential() {
		for _, c := range components {
			if acc.IsConverged() {
				break
			}
			acc.Accept(component.TraverseMulti(c, query, factory))
		}
		return acc.AccumulatedValue()
	}
	return runParallel(cfg.ThreadPoolSize, components, acc, func(c *component.SamplerPlusTree[I]) R {
		return component.TraverseMulti(c, query, factory)
	})
}

// runParallel fans work across components through an errgroup capped at
// poolSize in-flight goroutines, serializing every Accept call through mu
// since accumulators are not assumed thread-safe. Results are applied in
// component order, as the sequential backend does, so a floating-point
// fold gives the same value on both backends. Policy on convergence
// (spec.md §4.6): once acc converges, no further components are
// submitted, but any goroutine already running is always let finish and
// its result is always applied — "apply all in-flight, then stop
// submitting".
func runParallel[I tree.Index, R any](poolSize int, components []*component.SamplerPlusTree[I], acc ConvergingAccumulator[R], work func(*component.SamplerPlusTree[I]) R) R {
	g := &errgroup.Group{}
	g.SetLimit(poolSize)
	var mu sync.Mutex
	var stop atomic.Bool
	results := make([]R, len(components))
	ready := make([]bool, len(components))
	next := 0

	for i, c := range components {
		if stop.Load() {
			break
		}
		i, c := i, c
		g.Go(func() error {
			result := work(c)
			mu.Lock()
			defer mu.Unlock()
			results[i], ready[i] = result, true
			for next < len(ready) && ready[next] {
				acc.Accept(results[next])
				next++
				if acc.IsConverged() {
					stop.Store(true)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return acc.AccumulatedValue()
}

// RunUpdate feeds one (reference, sequenceIndex) pair to every
// component, index-addressing the result slice so concurrent writers
// never contend on a shared lock (mirrors storage/integrate.go's
// index-addressed hash slice).
func RunUpdate[I tree.Index](cfg Config, components []*component.SamplerPlusTree[I], ref pointstore.Reference, seq uint64) ([]component.UpdateResult, error) {
	results := make([]component.UpdateResult, len(components))

	if cfg.sequential() {
		for i, c := range components {
			r, err := c.Update(ref, seq)
			if err != nil {
				return nil, err
			}
			results[i] = r
		}
		return results, nil
	}

	g := &errgroup.Group{}
	g.SetLimit(cfg.ThreadPoolSize)
	for i, c := range components {
		i, c := i, c
		g.Go(func() error {
			r, err := c.Update(ref, seq)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
