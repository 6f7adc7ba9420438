package viewerd

import (
	"github.com/lcl45/openseadragon/params"
	"github.com/lcl45/openseadragon/testing/testdata"
)

// newTestViewerDaemon creates a ViewerDaemon over the synthetic grid
// source. Neither the HTTP server nor the frame loop is started; tests
// drive frames with Step and call handlers directly.
func newTestViewerDaemon() (daemon *ViewerDaemon, teardown func()) {
	config := params.DefaultTestViewerDaemonConfig()
	grid := testdata.NewGrid(1000, 250, 0)
	daemon, err := NewViewerDaemon(config, grid, grid)
	if err != nil {
		panic(err)
	}
	return daemon, daemon.Shutdown
}
