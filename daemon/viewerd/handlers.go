package viewerd

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/paulmach/orb"

	"github.com/lcl45/openseadragon/loader"
	"github.com/lcl45/openseadragon/params"
	"github.com/lcl45/openseadragon/scheduler"
)

func pingPong(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

type viewerStatus struct {
	StartedAt time.Time                  `json:"started_at"`
	Uptime    string                     `json:"uptime"`
	Config    *params.ViewerDaemonConfig `json:"config"`
	WSOpen    bool                       `json:"ws_open"`
	WSConns   int                        `json:"ws_conns"`

	FullyLoaded  bool      `json:"fully_loaded"`
	Levels       [2]int    `json:"levels"`
	TilesLoading int       `json:"tiles_loading"`
	Zoom         float64   `json:"zoom"`
	Center       orb.Point `json:"center"`

	Frames       scheduler.FrameStats `json:"frames"`
	Loader       loader.Stats         `json:"loader"`
	CacheTiles   int                  `json:"cache_tiles"`
	CacheRecords int                  `json:"cache_records"`

	Recent []wireEvent `json:"recent"`
}

func (d *ViewerDaemon) status() *viewerStatus {
	d.frameMu.Lock()
	lowest, highest := d.sched.Levels()
	fullyLoaded := d.sched.FullyLoaded()
	tilesLoading := d.sched.TilesLoading()
	zoom := d.viewport.Zoom(true)
	center := d.viewport.Center(true)
	d.frameMu.Unlock()

	return &viewerStatus{
		StartedAt: d.started,
		Uptime:    time.Since(d.started).Round(time.Second).String(),
		Config:    d.Config,
		WSOpen:    !d.melodyInstance.IsClosed(),
		WSConns:   d.melodyInstance.Len(),

		FullyLoaded:  fullyLoaded,
		Levels:       [2]int{lowest, highest},
		TilesLoading: tilesLoading,
		Zoom:         zoom,
		Center:       center,

		Frames:       d.sched.Meter().Stats(),
		Loader:       d.loader.Stats(),
		CacheTiles:   d.tiles.Len(),
		CacheRecords: d.tiles.RecordCount(),

		Recent: d.recent.Tail(32),
	}
}

func (d *ViewerDaemon) statusReport(w http.ResponseWriter, r *http.Request) {
	j, err := json.MarshalIndent(d.status(), "", "  ")
	if err != nil {
		d.logger.Error("Failed to marshal status", "error", err)
		http.Error(w, "Failed to marshal status", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(j); err != nil {
		d.logger.Error("Failed to write response", "error", err)
		http.Error(w, "Failed to write response", http.StatusInternalServerError)
	}
}

// snapshotPNG serves the current raster frame.
func (d *ViewerDaemon) snapshotPNG(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	if err := d.drawer.EncodePNG(w); err != nil {
		d.logger.Error("Failed to encode snapshot", "error", err)
		http.Error(w, "Failed to encode snapshot", http.StatusInternalServerError)
	}
}
