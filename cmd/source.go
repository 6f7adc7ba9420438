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
	"strconv"
	"strings"

	"github.com/lcl45/openseadragon/testing/testdata"
	"github.com/lcl45/openseadragon/tilesource"
)

// buildSource resolves a source argument shared by the commands:
//   - grid[:SIZE[:TILESIZE]] is the builtin synthetic grid
//   - templates carrying {z}/{x}/{y} become slippy map sources
//   - *.pmtiles paths open as PMTiles archives, readable locally
//   - anything else loads as a DZI descriptor, path or URL
//
// The Local return is non-nil for sources readable without a fetch.
func buildSource(ctx context.Context, arg string) (tilesource.Source, tilesource.Local, error) {
	switch {
	case arg == "grid" || strings.HasPrefix(arg, "grid:"):
		return buildGrid(arg)
	case strings.Contains(arg, "{z}"):
		s, err := tilesource.NewSlippy(arg, 0, 19, 256)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	case strings.HasSuffix(arg, ".pmtiles"):
		p, err := tilesource.OpenPMTiles(arg)
		if err != nil {
			return nil, nil, err
		}
		return p, p, nil
	default:
		d, err := tilesource.LoadDZI(ctx, arg)
		if err != nil {
			return nil, nil, err
		}
		return d, nil, nil
	}
}

func buildGrid(arg string) (tilesource.Source, tilesource.Local, error) {
	size, tileSize := 1000, 250
	parts := strings.Split(arg, ":")
	if len(parts) > 3 {
		return nil, nil, fmt.Errorf("bad grid spec %q, want grid[:SIZE[:TILESIZE]]", arg)
	}
	var err error
	if len(parts) > 1 {
		if size, err = strconv.Atoi(parts[1]); err != nil || size < 1 {
			return nil, nil, fmt.Errorf("bad grid size %q", parts[1])
		}
	}
	if len(parts) > 2 {
		if tileSize, err = strconv.Atoi(parts[2]); err != nil || tileSize < 1 {
			return nil, nil, fmt.Errorf("bad grid tile size %q", parts[2])
		}
	}
	g := testdata.NewGrid(size, tileSize, 0)
	return g, g, nil
}
