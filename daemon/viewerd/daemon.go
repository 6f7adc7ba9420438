// Package viewerd is a diagnostics daemon. It runs a scheduler against a
// real tile source under a scripted camera tour, rendering frames into an
// in-memory raster, and serves the scheduler's state over HTTP: a JSON
// status report, a PNG snapshot of the current frame, and a websocket
// stream of scheduler events.
package viewerd

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/olahol/melody"
	"github.com/paulmach/orb"

	"github.com/lcl45/openseadragon/cache"
	"github.com/lcl45/openseadragon/common"
	"github.com/lcl45/openseadragon/drawer"
	"github.com/lcl45/openseadragon/loader"
	"github.com/lcl45/openseadragon/params"
	"github.com/lcl45/openseadragon/scheduler"
	"github.com/lcl45/openseadragon/tilesource"
	"github.com/lcl45/openseadragon/viewport"
)

const (
	// The tour retargets the camera springs on a keyframe cadence,
	// letting the springs glide between keyframes.
	tourKeyInterval = 250 * time.Millisecond

	tourZoomMin     = 0.9
	tourOrbits      = 3.0
	tourOrbitRadius = 0.3

	meterLogInterval = 30 * time.Second
)

type ViewerDaemon struct {
	Config *params.ViewerDaemonConfig

	logger         *slog.Logger
	melodyInstance *melody.Melody

	source   tilesource.Source
	viewport *viewport.Viewport
	sched    *scheduler.Scheduler
	loader   *loader.Loader
	tiles    *cache.TileCache
	disk     *cache.Disk
	drawer   *drawer.Raster

	// frameMu serializes the frame loop against handlers reading
	// scheduler and viewport state.
	frameMu sync.Mutex
	lastKey time.Time

	recent *common.RingBuffer[wireEvent]

	started   time.Time
	stopMeter func()

	quit        chan struct{}
	done        chan struct{}
	interrupt   chan struct{}
	interrupted atomic.Bool
	closeOnce   sync.Once
}

// NewViewerDaemon assembles a daemon around src. The local reader is
// optional; pass nil for URL-only sources. When the config carries a
// data dir the loader is backed by a disk tile store there.
func NewViewerDaemon(config *params.ViewerDaemonConfig, src tilesource.Source, local tilesource.Local) (*ViewerDaemon, error) {
	logger := slog.With("d", "viewer")
	if config == nil {
		logger.Warn("No config provided, using default")
		config = params.DefaultViewerDaemonConfig()
	}

	var disk *cache.Disk
	if config.DataDir != "" {
		d, err := cache.OpenDisk(&params.DiskCacheConfig{
			Path: filepath.Join(config.DataDir, params.TileDBName),
		})
		if err != nil {
			return nil, err
		}
		disk = d
	}

	ld, err := loader.New(params.DefaultLoaderConfig(), disk, local)
	if err != nil {
		if disk != nil {
			_ = disk.Close()
		}
		return nil, err
	}

	vp := viewport.New(orb.Point{
		float64(config.FrameWidth), float64(config.FrameHeight),
	}, params.DefaultSpringConfig)
	tiles := cache.New(params.DefaultCacheConfig())
	sched := scheduler.New(src, vp, tiles, ld, params.DefaultSchedulerConfig())
	raster := drawer.NewRaster(config.FrameWidth, config.FrameHeight)
	sched.SetDrawer(raster)

	d := &ViewerDaemon{
		Config:    config,
		logger:    logger,
		source:    src,
		viewport:  vp,
		sched:     sched,
		loader:    ld,
		tiles:     tiles,
		disk:      disk,
		drawer:    raster,
		recent:    common.NewRingBuffer[wireEvent](config.EventBufferSize),
		started:   time.Now(),
		quit:      make(chan struct{}),
		done:      make(chan struct{}, 1),
		interrupt: make(chan struct{}, 1),
	}
	d.initMelody()
	return d, nil
}

func (d *ViewerDaemon) Wait() {
	<-d.done
}

func (d *ViewerDaemon) Interrupt() {
	d.interrupt <- struct{}{}
}

// Start begins serving HTTP and driving the frame loop. It does not
// block; stop with Interrupt then Wait.
func (d *ViewerDaemon) Start() error {
	router := d.NewRouter()
	listen, err := d.Config.Listen()
	if err != nil {
		return err
	}

	go func() {
		err := http.Serve(listen, router)
		if err != nil && !d.interrupted.Load() {
			d.logger.Error("ViewerDaemon HTTP serve error", "error", err)
			os.Exit(1)
		}
		if err != nil && d.interrupted.Load() {
			d.logger.Warn("ViewerDaemon HTTP server stopped", "error", err)
		}
	}()

	d.stopMeter = d.sched.Meter().StartTicker(meterLogInterval)
	go d.run(listen)
	return nil
}

func (d *ViewerDaemon) run(listener net.Listener) {
	d.logger.Info("ViewerDaemon started",
		slog.Group("listen", "network", d.Config.Network, "address", d.Config.Address),
		"frame.interval", d.Config.FrameInterval, "tour.period", d.Config.TourPeriod)

	ticker := time.NewTicker(d.Config.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			d.Step(now)
		case <-d.interrupt:
			d.interrupted.Store(true)
			d.logger.Info("ViewerDaemon interrupted")
			if err := listener.Close(); err != nil {
				d.logger.Error("ViewerDaemon failed to close listener", "error", err)
			}
			if d.stopMeter != nil {
				d.stopMeter()
			}
			d.Shutdown()
			d.logger.Info("ViewerDaemon exiting")
			d.markDone()
			return
		}
	}
}

// Step advances the tour camera and runs one scheduling pass. The run
// loop calls it on the frame ticker; harnesses may drive it directly
// with synthetic time.
func (d *ViewerDaemon) Step(now time.Time) *scheduler.FrameResult {
	d.frameMu.Lock()
	defer d.frameMu.Unlock()

	if d.lastKey.IsZero() || now.Sub(d.lastKey) >= tourKeyInterval {
		center, zoom := d.tourAt(now.Sub(d.started))
		d.viewport.ZoomTo(zoom, now, false)
		d.viewport.PanTo(center, now, false)
		d.lastKey = now
	}
	return d.sched.Frame(now)
}

// tourAt is the scripted camera: one zoom sweep up and back per period,
// while the center orbits the image midpoint. The orbit tightens as the
// zoom grows so the camera stays over the image.
func (d *ViewerDaemon) tourAt(elapsed time.Duration) (center orb.Point, zoom float64) {
	period := d.Config.TourPeriod.Seconds()
	phase := math.Mod(elapsed.Seconds(), period) / period

	tri := 1 - math.Abs(2*phase-1)
	zoomMax := math.Max(2, d.source.Dimensions().X()/d.viewport.ContainerSize().X())
	zoom = tourZoomMin * math.Pow(zoomMax/tourZoomMin, tri)

	mid := orb.Point{0.5, 0.5 / d.source.AspectRatio()}
	r := tourOrbitRadius / zoom
	angle := 2 * math.Pi * tourOrbits * phase
	center = orb.Point{mid.X() + r*math.Cos(angle), mid.Y() + r*math.Sin(angle)}
	return center, zoom
}

// Shutdown releases daemon resources. Safe to call more than once.
// Started daemons stop with Interrupt then Wait, which shuts down on
// the way out; call Shutdown directly only for daemons never started.
func (d *ViewerDaemon) Shutdown() {
	d.closeOnce.Do(func() {
		close(d.quit)
		d.loader.Close()
		if d.disk != nil {
			if err := d.disk.Close(); err != nil {
				d.logger.Error("ViewerDaemon failed to close disk store", "error", err)
			}
		}
		if err := d.melodyInstance.Close(); err != nil {
			d.logger.Warn("ViewerDaemon failed to close websocket hub", "error", err)
		}
	})
}

func (d *ViewerDaemon) markDone() {
	d.done <- struct{}{}
	close(d.done)
}

// Scheduler exposes the daemon's scheduler for harnesses.
func (d *ViewerDaemon) Scheduler() *scheduler.Scheduler {
	return d.sched
}

// Loader exposes the daemon's tile loader for harnesses.
func (d *ViewerDaemon) Loader() *loader.Loader {
	return d.loader
}

// Tiles exposes the daemon's hot tile cache for harnesses.
func (d *ViewerDaemon) Tiles() *cache.TileCache {
	return d.tiles
}

func (d *ViewerDaemon) NewRouter() *mux.Router {
	router := mux.NewRouter().StrictSlash(false)
	router.Use(loggingMiddleware)

	// The websocket upgrade skips the API middleware.
	router.Path("/events").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = d.melodyInstance.HandleRequest(w, r)
	})

	apiRoutes := router.NewRoute().Subrouter()

	// All API routes use permissive CORS settings.
	apiRoutes.Use(permissiveCorsMiddleware)

	// /ping is a simple server healthcheck endpoint
	apiRoutes.Path("/ping").HandlerFunc(pingPong)
	apiRoutes.Path("/snapshot.png").HandlerFunc(d.snapshotPNG).Methods(http.MethodGet)

	apiJSONRoutes := apiRoutes.NewRoute().Subrouter()
	apiJSONRoutes.Use(contentTypeMiddlewareFunc("application/json"))
	apiJSONRoutes.Path("/status").HandlerFunc(d.statusReport).Methods(http.MethodGet)

	return router
}
