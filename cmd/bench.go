/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"log"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/montanaflynn/stats"
	"github.com/spf13/cobra"

	"github.com/lcl45/openseadragon/common"
	"github.com/lcl45/openseadragon/daemon/viewerd"
	"github.com/lcl45/openseadragon/metrics/influxdb"
	"github.com/lcl45/openseadragon/params"
)

var optBenchSource string
var optBenchFrames int
var optBenchWidth int
var optBenchHeight int
var optBenchTourPeriod time.Duration
var optBenchDatadir string
var optBenchInflux bool
var optBenchRun string

// benchCmd represents the bench command
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure frame scheduling time under an animated camera",
	Long: `Bench runs the viewer daemon's camera tour for a fixed number of
frames in synthetic time, as fast as the scheduler will go, and
reports wall-clock frame durations. The loader fetches for real, so
a slow source shows up in the dispatch and load counters rather than
in the frame times.

With --influx, the rolled-up run is posted to the InfluxDB bucket
named by the INFLUXDB_* environment variables.
`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		slog.Info("bench.Run", "source", optBenchSource, "frames", optBenchFrames)

		ctx := context.Background()
		src, local, err := buildSource(ctx, optBenchSource)
		if err != nil {
			log.Fatalln(err)
		}

		config := params.DefaultViewerDaemonConfig()
		config.FrameWidth = optBenchWidth
		config.FrameHeight = optBenchHeight
		config.TourPeriod = optBenchTourPeriod
		config.DataDir = optBenchDatadir

		d, err := viewerd.NewViewerDaemon(config, src, local)
		if err != nil {
			log.Fatalln(err)
		}
		defer d.Shutdown()

		now := time.Now()
		started := now
		durs := make([]float64, 0, optBenchFrames)
		for i := 0; i < optBenchFrames; i++ {
			t0 := time.Now()
			d.Step(now)
			durs = append(durs, float64(time.Since(t0).Nanoseconds())/float64(time.Millisecond))
			now = now.Add(config.FrameInterval)
		}
		took := time.Since(started)

		statsData := stats.Float64Data(durs)
		statsMustFloat := func(fn func() (float64, error)) float64 {
			out, _ := fn()
			return out
		}
		slog.Info("Bench frames", "n", len(durs),
			"mean.ms", common.DecimalToFixed(statsMustFloat(statsData.Mean), 3),
			"median.ms", common.DecimalToFixed(statsMustFloat(statsData.Median), 3),
			"p95.ms", common.DecimalToFixed(statsMustFloat(func() (float64, error) {
				return statsData.Percentile(95)
			}), 3),
			"stddev.ms", common.DecimalToFixed(statsMustFloat(statsData.StandardDeviation), 3),
			"max.ms", common.DecimalToFixed(statsMustFloat(statsData.Max), 3))

		meterStats := d.Scheduler().Meter().Stats()
		loaderStats := d.Loader().Stats()
		slog.Info("Bench scheduler", "dispatches", meterStats.Dispatches,
			"drawn.rate", common.DecimalToFixed(meterStats.DrawnRate, 2),
			"cache.tiles", d.Tiles().Len(),
			"took", took.Round(time.Millisecond))
		slog.Info("Bench loader", "fetched", humanize.Comma(loaderStats.Fetched),
			"bytes", humanize.Bytes(uint64(loaderStats.FetchedBytes)),
			"failures", loaderStats.Failures,
			"hits.hot", loaderStats.HitsHot, "hits.disk", loaderStats.HitsDisk)

		if !optBenchInflux {
			return
		}
		summary := influxdb.RunSummary{
			At:          time.Now(),
			Source:      optBenchSource,
			Run:         optBenchRun,
			Frames:      meterStats.Frames,
			FPS:         meterStats.FPS,
			FrameMean:   meterStats.FrameMean,
			FrameP95:    meterStats.FrameP95,
			Dispatches:  meterStats.Dispatches,
			TilesLoaded: loaderStats.Fetched,
			BytesLoaded: loaderStats.FetchedBytes,
			Failures:    loaderStats.Failures,
			HitsHot:     loaderStats.HitsHot,
			HitsDisk:    loaderStats.HitsDisk,
			CacheTiles:  d.Tiles().Len(),
		}
		if err := influxdb.ExportRunSummaries([]influxdb.RunSummary{summary}); err != nil {
			log.Fatalln(err)
		}
		slog.Info("Bench exported", "run", optBenchRun)
	},
}

func init() {
	rootCmd.AddCommand(benchCmd)

	pFlags := benchCmd.PersistentFlags()
	pFlags.StringVar(&optBenchSource, "source", "grid",
		"Tile source: DZI path/URL, .pmtiles, {z}/{x}/{y} template, or grid[:SIZE[:TILESIZE]]")
	pFlags.IntVar(&optBenchFrames, "frames", 1000, "Number of frames to run")
	pFlags.IntVar(&optBenchWidth, "width", 1024, "Frame width in pixels")
	pFlags.IntVar(&optBenchHeight, "height", 768, "Frame height in pixels")
	pFlags.DurationVar(&optBenchTourPeriod, "tour-period", 30*time.Second, "Camera tour period")
	pFlags.StringVar(&optBenchDatadir, "datadir", "", "Data directory holding a tile store; empty runs without one")
	pFlags.BoolVar(&optBenchInflux, "influx", false, "Export the run summary to InfluxDB")
	pFlags.StringVar(&optBenchRun, "run", time.Now().Format("20060102-150405"), "Run label for the exported summary")
}
