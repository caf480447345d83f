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

// rcfbench is a synthetic load generator and live dashboard for a Forest:
// it streams a noisy multidimensional signal through Update, periodically
// injects deliberate outliers, and reports the resulting anomaly scores.
package main

import (
	"context"
	"flag"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"time"

	movingaverage "github.com/RobinUS2/golang-moving-average"
	"k8s.io/klog/v2"

	"github.com/streamrcf/rcf"
)

var (
	dimensions    = flag.Int("dimensions", 4, "Dimensionality of the generated stream")
	numberOfTrees = flag.Int("number_of_trees", 50, "Number of trees in the forest")
	sampleSize    = flag.Int("sample_size", 256, "Per-tree reservoir sample size")
	shingleSize   = flag.Int("shingle_size", 4, "Internal shingle size; 1 disables shingling")

	pointsPerSecond = flag.Int("points_per_second", 200, "Target rate of points fed into the forest")
	outlierFraction = flag.Float64("outlier_fraction", 0.01, "Fraction of points deliberately perturbed into outliers")
	parallel        = flag.Bool("parallel", true, "Use the parallel executor")
	threadPoolSize  = flag.Int("thread_pool_size", 4, "Worker pool size when parallel is set")
	randomSeed      = flag.Uint64("random_seed", 42, "Root seed for reproducible runs")

	showUI = flag.Bool("show_ui", true, "Set to false to disable the text-based UI")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := []rcf.Option{
		rcf.WithShingling(*shingleSize, false),
		rcf.WithRandomSeed(*randomSeed),
		rcf.WithStoreSequenceIndexesEnabled(true),
	}
	if *parallel {
		opts = append(opts, rcf.WithParallelExecution(*threadPoolSize))
	}
	forest, err := rcf.New(*dimensions, *numberOfTrees, *sampleSize, opts...)
	if err != nil {
		klog.Exitf("failed to create forest: %v", err)
	}
	if !*parallel {
		_ = forest.ConfigSet(string(rcf.ConfigTimeDecay), 1.0/float64(*sampleSize))
	}

	bench := newBench(forest, *dimensions)
	bench.Run(ctx)

	if *showUI {
		hostUI(ctx, bench)
	} else {
		<-ctx.Done()
	}
}

// signalGenerator produces one dimensions-wide point per call: a sum of
// per-dimension sinusoids plus Gaussian noise, with an occasional sharp
// spike injected in a random dimension to exercise the scorer.
type signalGenerator struct {
	dim    int
	rng    *rand.Rand
	t      float64
	period []float64
}

func newSignalGenerator(dim int, seed uint64) *signalGenerator {
	rng := rand.New(rand.NewSource(int64(seed)))
	period := make([]float64, dim)
	for d := range period {
		period[d] = 20 + rng.Float64()*30
	}
	return &signalGenerator{dim: dim, rng: rng, period: period}
}

func (g *signalGenerator) next(outlierFraction float64) ([]float64, bool) {
	g.t++
	p := make([]float64, g.dim)
	for d := range p {
		p[d] = math.Sin(g.t/g.period[d]) + g.rng.NormFloat64()*0.05
	}
	outlier := g.rng.Float64() < outlierFraction
	if outlier {
		d := g.rng.Intn(g.dim)
		p[d] += 4 + g.rng.Float64()*4
	}
	return p, outlier
}

// bench drives points into a Forest at a throttled rate and tracks
// update latency and anomaly-score statistics for the dashboard, the
// same shape as the teacher's reader/writer pools feeding shared moving
// averages.
type bench struct {
	forest rcf.Forest
	gen    *signalGenerator

	scoreAvg    *movingaverage.MovingAverage
	updateAvg   *movingaverage.MovingAverage
	outliersHit int
	totalPoints int
}

func newBench(forest rcf.Forest, dim int) *bench {
	return &bench{
		forest:    forest,
		gen:       newSignalGenerator(dim, *randomSeed),
		scoreAvg:  movingaverage.New(200),
		updateAvg: movingaverage.New(200),
	}
}

func (b *bench) Run(ctx context.Context) {
	go func() {
		interval := time.Second / time.Duration(*pointsPerSecond)
		if interval <= 0 {
			interval = time.Millisecond
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.step()
			}
		}
	}()
}

func (b *bench) step() {
	point, injected := b.gen.next(*outlierFraction)

	score, err := b.forest.Score(point)
	if err != nil {
		klog.Warningf("score failed: %v", err)
		return
	}
	b.scoreAvg.Add(score)

	start := time.Now()
	if err := b.forest.Update(point); err != nil {
		klog.Warningf("update failed: %v", err)
		return
	}
	b.updateAvg.Add(float64(time.Since(start) / time.Microsecond))

	b.totalPoints++
	if injected {
		if score > 1.0 {
			b.outliersHit++
		}
		klog.V(1).Infof("injected outlier at t=%d, score=%.3f", b.totalPoints, score)
	}
}
