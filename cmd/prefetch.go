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
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/hilbert"
	"github.com/spf13/cobra"

	"github.com/lcl45/openseadragon/cache"
	"github.com/lcl45/openseadragon/loader"
	"github.com/lcl45/openseadragon/params"
	"github.com/lcl45/openseadragon/tile"
	"github.com/lcl45/openseadragon/tilesource"
)

var optPrefetchSource string
var optPrefetchMaxLevel int
var optPrefetchWorkers int
var optPrefetchDatadir string

// prefetchCmd represents the prefetch command
var prefetchCmd = &cobra.Command{
	Use:   "prefetch",
	Short: "Warm the disk tile store",
	Long: `Prefetch walks every tile of each pyramid level up to --max-level,
fetching through the loader into the disk tile store.

Tiles within a level are visited in Hilbert curve order, so spatially
neighboring tiles are requested near each other in time.

Already-stored tiles are served from the disk store without an origin
fetch, so prefetch re-runs incrementally.
`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)

		ctx := context.Background()
		src, local, err := buildSource(ctx, optPrefetchSource)
		if err != nil {
			log.Fatalln(err)
		}

		disk, err := cache.OpenDisk(&params.DiskCacheConfig{
			Path: filepath.Join(optPrefetchDatadir, params.TileDBName),
		})
		if err != nil {
			log.Fatalln(err)
		}
		defer disk.Close()

		cfg := params.DefaultLoaderConfig()
		cfg.Workers = optPrefetchWorkers
		ld, err := loader.New(cfg, disk, local)
		if err != nil {
			log.Fatalln(err)
		}
		defer ld.Close()

		maxLevel := optPrefetchMaxLevel
		if maxLevel < 0 {
			maxLevel = src.ClosestLevel() + 2
		}
		if maxLevel > src.MaxLevel() {
			maxLevel = src.MaxLevel()
		}

		started := time.Now()
		var tiles, bytes, fails int64
		for level := src.MinLevel(); level <= maxLevel; level++ {
			n, b, f, err := prefetchLevel(src, ld, level)
			if err != nil {
				log.Fatalln(err)
			}
			tiles += n
			bytes += b
			fails += f
			slog.Info("Prefetched level", "level", level,
				"tiles", humanize.Comma(n),
				"bytes", humanize.Bytes(uint64(b)),
				"failed", f)
		}

		stats := ld.Stats()
		slog.Info("Prefetch done",
			"tiles", humanize.Comma(tiles),
			"bytes", humanize.Bytes(uint64(bytes)),
			"failed", fails,
			"hits.disk", humanize.Comma(stats.HitsDisk),
			"took", time.Since(started).Round(time.Millisecond))
	},
}

// prefetchLevel enqueues every existing tile of a level in Hilbert order
// and waits for the fetches to land.
func prefetchLevel(src tilesource.Source, ld *loader.Loader, level int) (tiles, bytes, fails int64, err error) {
	nx, ny := src.NumTiles(level)
	span := 1
	for span < nx || span < ny {
		span <<= 1
	}
	h, err := hilbert.NewHilbert(span)
	if err != nil {
		return 0, 0, 0, err
	}

	var wg sync.WaitGroup
	enqueued := 0
	for t := 0; t < span*span; t++ {
		x, y, err := h.Map(t)
		if err != nil {
			wg.Wait()
			return tiles, bytes, fails, err
		}
		if x >= nx || y >= ny {
			continue
		}
		if !src.TileExists(level, x, y) {
			continue
		}

		url := src.TileURL(level, x, y)
		tl := &tile.Tile{
			Address:  tile.Address{Level: level, X: x, Y: y},
			Exists:   true,
			URL:      url,
			CacheKey: src.TileHashKey(level, x, y, url, src.TilePostData(level, x, y), src.TileAjaxHeaders(level, x, y)),
		}
		wg.Add(1)
		job := &loader.Job{
			URL:  url,
			Tile: tl,
			Callback: func(data []byte, err error) {
				defer wg.Done()
				if err != nil {
					atomic.AddInt64(&fails, 1)
					slog.Debug("Prefetch fetch failed", "level", level, "x", x, "y", y, "error", err)
					return
				}
				atomic.AddInt64(&tiles, 1)
				atomic.AddInt64(&bytes, int64(len(data)))
			},
		}
		if err := ld.Add(job); err != nil {
			wg.Done()
			wg.Wait()
			return tiles, bytes, fails, err
		}
		enqueued++
		if enqueued%4096 == 0 {
			slog.Info("Prefetching", "level", level, "enqueued", humanize.Comma(int64(enqueued)))
		}
	}
	wg.Wait()
	return tiles, bytes, fails, nil
}

func init() {
	rootCmd.AddCommand(prefetchCmd)

	pFlags := prefetchCmd.PersistentFlags()
	pFlags.StringVar(&optPrefetchSource, "source", "grid",
		"Tile source: DZI path/URL, .pmtiles, {z}/{x}/{y} template, or grid[:SIZE[:TILESIZE]]")
	pFlags.IntVar(&optPrefetchMaxLevel, "max-level", -1,
		"Deepest level to fetch (-1 means two past the closest single-tile level)")
	pFlags.IntVar(&optPrefetchWorkers, "workers", 8, "Concurrent fetch workers")
	pFlags.StringVar(&optPrefetchDatadir, "datadir", params.DatadirRoot, "Data directory holding the tile store")
}
