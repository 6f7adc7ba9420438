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
	"fmt"
	"log"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info SOURCE",
	Short: "Print a tile source's pyramid layout",
	Long: `Info resolves a tile source and prints its descriptor: dimensions,
level interval, tile geometry, and the tile grid at each level.

The source argument takes the same forms as --source elsewhere: a DZI
path or URL, a .pmtiles archive, a {z}/{x}/{y} URL template, or
grid[:SIZE[:TILESIZE]] for the synthetic checkerboard.
`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)

		src, _, err := buildSource(context.Background(), args[0])
		if err != nil {
			log.Fatalln(err)
		}

		dims := src.Dimensions()
		tileSize := src.TileSize(src.MaxLevel())
		fmt.Printf("source      %s\n", args[0])
		fmt.Printf("dimensions  %.0f x %.0f px (aspect %.4f)\n",
			dims.X(), dims.Y(), src.AspectRatio())
		fmt.Printf("tile size   %.0f x %.0f px, overlap %d\n",
			tileSize.X(), tileSize.Y(), src.TileOverlap())
		fmt.Printf("levels      %d..%d, single-tile at %d\n\n",
			src.MinLevel(), src.MaxLevel(), src.ClosestLevel())

		fmt.Printf("%-6s  %-14s  %-12s  %s\n", "level", "size", "grid", "tiles")
		total := int64(0)
		for level := src.MinLevel(); level <= src.MaxLevel(); level++ {
			scale := math.Pow(0.5, float64(src.MaxLevel()-level))
			w := int(math.Ceil(dims.X() * scale))
			h := int(math.Ceil(dims.Y() * scale))
			nx, ny := src.NumTiles(level)
			total += int64(nx) * int64(ny)
			fmt.Printf("%-6d  %-14s  %-12s  %s\n", level,
				fmt.Sprintf("%dx%d", w, h),
				fmt.Sprintf("%dx%d", nx, ny),
				humanize.Comma(int64(nx)*int64(ny)))
		}
		fmt.Printf("\ntotal       %s tiles\n", humanize.Comma(total))
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
