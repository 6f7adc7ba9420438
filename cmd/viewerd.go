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

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/lcl45/openseadragon/common"
	"github.com/lcl45/openseadragon/daemon/viewerd"
	"github.com/lcl45/openseadragon/params"
)

var optViewerAddress string
var optViewerSource string
var optViewerFrameInterval time.Duration
var optViewerTourPeriod time.Duration

// viewerdCmd represents the viewerd command
var viewerdCmd = &cobra.Command{
	Use:   "viewerd",
	Short: "Run the viewer diagnostics daemon",
	Long: `Viewerd drives a tile scheduler over a scripted camera tour and
serves its state over HTTP:

  /status        JSON snapshot: levels, loading, frame and loader meters
  /snapshot.png  the current composited frame
  /events        websocket stream of scheduler events
  /ping          healthcheck

The --source flag accepts a DZI descriptor path or URL, a .pmtiles
archive, a slippy {z}/{x}/{y} URL template, or the builtin synthetic
grid (grid[:SIZE[:TILESIZE]]).
`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		slog.Info("viewerd.Run")

		src, local, err := buildSource(context.Background(), optViewerSource)
		if err != nil {
			log.Fatalln(err)
		}

		config := params.DefaultViewerDaemonConfig()
		config.Address = optViewerAddress
		config.FrameInterval = optViewerFrameInterval
		config.TourPeriod = optViewerTourPeriod

		d, err := viewerd.NewViewerDaemon(config, src, local)
		if err != nil {
			log.Fatalln(err)
		}
		if err := d.Start(); err != nil {
			log.Fatalln(err)
		}

		sig := <-common.Interrupted()
		slog.Info("viewerd interrupted", "signal", sig)
		d.Interrupt()
		d.Wait()
	},
}

func init() {
	rootCmd.AddCommand(viewerdCmd)

	defaults := params.DefaultViewerDaemonConfig()

	pFlags := viewerdCmd.PersistentFlags()
	pFlags.AddFlagSet(&pflag.FlagSet{})
	pFlags.StringVar(&optViewerAddress, "address", defaults.Address, "HTTP address to listen on")
	pFlags.StringVar(&optViewerSource, "source", "grid",
		"Tile source: DZI path/URL, .pmtiles, {z}/{x}/{y} template, or grid[:SIZE[:TILESIZE]]")
	pFlags.DurationVar(&optViewerFrameInterval, "frame-interval", defaults.FrameInterval, "Frame loop tick")
	pFlags.DurationVar(&optViewerTourPeriod, "tour-period", defaults.TourPeriod, "Duration of one camera orbit")

	// Cobra supports local flags which will only run when this command
	// is called directly, e.g.:
	// viewerdCmd.Flags().BoolP("toggle", "t", false, "Help message for toggle")
}
