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

package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	movingaverage "github.com/RobinUS2/golang-moving-average"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"k8s.io/klog/v2"
)

func formatMovingAverage(ma *movingaverage.MovingAverage, unit string) string {
	aMin, _ := ma.Min()
	aMax, _ := ma.Max()
	aAvg := ma.Avg()
	return fmt.Sprintf("%.3f%s/%.3f%s/%.3f%s (min/avg/max)", aMin, unit, aAvg, unit, aMax, unit)
}

func hostUI(ctx context.Context, b *bench) {
	grid := tview.NewGrid()
	grid.SetRows(6, 0, 2).SetColumns(0).SetBorders(true)

	statusView := tview.NewTextView()
	grid.AddItem(statusView, 0, 0, 1, 1, 0, 0, false)

	logView := tview.NewTextView()
	logView.ScrollToEnd()
	logView.SetMaxLines(10000)
	grid.AddItem(logView, 1, 0, 1, 1, 0, 0, false)

	helpView := tview.NewTextView()
	helpView.SetText("q to quit")
	grid.AddItem(helpView, 2, 0, 1, 1, 0, 0, false)

	if err := flag.Set("logtostderr", "false"); err != nil {
		klog.Exitf("failed to set flag: %v", err)
	}
	if err := flag.Set("alsologtostderr", "false"); err != nil {
		klog.Exitf("failed to set flag: %v", err)
	}
	klog.SetOutput(logView)

	app := tview.NewApplication()
	interval := 500 * time.Millisecond
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := b.forest.Stats()
				text := fmt.Sprintf(
					"Points processed: %d\nForest ready: %v\nTotal updates: %d\nScore: %s\nUpdate latency: %s\nOutliers flagged: %d",
					b.totalPoints,
					stats.Ready,
					stats.TotalUpdates,
					formatMovingAverage(b.scoreAvg, ""),
					formatMovingAverage(b.updateAvg, "us"),
					b.outliersHit,
				)
				statusView.SetText(text)
				app.Draw()
			}
		}
	}()

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Rune() {
		case 'q':
			app.Stop()
		}
		return event
	})
	if err := app.SetRoot(grid, true).Run(); err != nil {
		klog.Exitf("tui exited: %v", err)
	}
}
