// Package scheduler runs the per-frame tile pass for one pyramidal image.
//
// Each Frame walks the eligible levels from fine to coarse over the visible
// area, assembles the list of tiles to paint, and picks at most one unloaded
// tile to hand to the loader. All scheduler state is owned by the goroutine
// calling Frame; loader completions cross in through a queue drained at
// frame boundaries, and events raised during a pass are sent only once the
// pass is over.
package scheduler

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lcl45/openseadragon/cache"
	"github.com/lcl45/openseadragon/common"
	"github.com/lcl45/openseadragon/events"
	"github.com/lcl45/openseadragon/loader"
	"github.com/lcl45/openseadragon/params"
	"github.com/lcl45/openseadragon/tile"
	"github.com/lcl45/openseadragon/tilesource"
	"github.com/lcl45/openseadragon/viewport"
	"github.com/paulmach/orb"
)

// Drawer consumes the draw list assembled by a pass, coarse levels first.
type Drawer interface {
	Draw(tiles []*tile.Tile)
}

// TileLoader enqueues tile fetch jobs. *loader.Loader implements it.
type TileLoader interface {
	Add(job *loader.Job) error
}

// LoadInterceptor inspects tile data after a successful fetch and before the
// tile is marked loaded. Each interceptor must call done exactly once; the
// tile completes only when every interceptor has acknowledged, and a late
// acknowledgment defers completion to a later frame.
type LoadInterceptor func(t *tile.Tile, data []byte, done func())

// FrameResult reports what a pass produced.
type FrameResult struct {
	// Drawn is the draw list, ordered coarse to fine so later tiles paint
	// over earlier ones.
	Drawn []*tile.Tile
	// Dispatched is the tile handed to the loader this pass, if any.
	Dispatched *tile.Tile
	// NeedsDraw is true while another frame would change the output:
	// springs animating, fades running, or loads outstanding.
	NeedsDraw bool
	// FullyLoaded is true when every tile wanted by the current view is
	// loaded and nothing is in flight.
	FullyLoaded bool
}

type completion struct {
	t          *tile.Tile
	data       []byte
	err        error
	dispatched time.Time
	ready      bool
}

var ownerSeq atomic.Int64

func nextOwner() tile.OwnerID {
	return tile.OwnerID(fmt.Sprintf("image-%d", ownerSeq.Add(1)))
}

// Scheduler owns the tile pass for one image: its placement springs, tile
// matrix, coverage bookkeeping, and the in-flight load accounting.
type Scheduler struct {
	logger *slog.Logger
	cfg    *params.SchedulerConfig

	source   tilesource.Source
	viewport *viewport.Viewport
	cache    *cache.TileCache
	loader   TileLoader
	drawer   Drawer

	owner tile.OwnerID

	// Placement of the image in viewport coordinates: origin at (x, y),
	// width scale.
	xSpring     *viewport.Spring
	ySpring     *viewport.Spring
	scaleSpring *viewport.Spring

	matrix          *Matrix
	coverage        *coverageMap
	loadingCoverage *coverageMap

	lastDrawn     []*tile.Tile
	tilesLoading  int
	needsDraw     bool
	hasOpaqueTile bool
	fullyLoaded   bool

	complMu     sync.Mutex
	completions []completion
	watermark   time.Time

	interceptors []LoadInterceptor
	eventQueue   []func()

	lastLevels [2]int

	meter *FrameMeter
}

func New(src tilesource.Source, vp *viewport.Viewport, tc *cache.TileCache, ld TileLoader, cfg *params.SchedulerConfig) *Scheduler {
	logger := slog.With("d", "scheduler")
	if cfg == nil {
		logger.Warn("No config provided, using default")
		cfg = params.DefaultSchedulerConfig()
	}
	s := &Scheduler{
		logger:      logger,
		cfg:         cfg,
		source:      src,
		viewport:    vp,
		cache:       tc,
		loader:      ld,
		owner:       nextOwner(),
		xSpring:     viewport.NewSpring(0, params.DefaultSpringConfig),
		ySpring:     viewport.NewSpring(0, params.DefaultSpringConfig),
		scaleSpring: viewport.NewExponentialSpring(1, params.DefaultSpringConfig),
		matrix:      NewMatrix(params.MatrixSize),
		meter:       NewFrameMeter(),
	}
	return s
}

func (s *Scheduler) Owner() tile.OwnerID { return s.owner }
func (s *Scheduler) FullyLoaded() bool   { return s.fullyLoaded }
func (s *Scheduler) TilesLoading() int   { return s.tilesLoading }
func (s *Scheduler) HasOpaqueTile() bool { return s.hasOpaqueTile }
func (s *Scheduler) Matrix() *Matrix     { return s.matrix }
func (s *Scheduler) Meter() *FrameMeter  { return s.meter }
func (s *Scheduler) SetDrawer(d Drawer)  { s.drawer = d }

// Levels is the pyramid interval the most recent pass walked,
// lowest then highest. Zero until the first on-screen pass.
func (s *Scheduler) Levels() (lowest, highest int) {
	return s.lastLevels[0], s.lastLevels[1]
}

func (s *Scheduler) AddLoadInterceptor(fn LoadInterceptor) {
	s.interceptors = append(s.interceptors, fn)
}

// SetPlacement positions the image: origin at (x, y) in viewport
// coordinates, width scale. Non-finite or non-positive-scale placements are
// ignored.
func (s *Scheduler) SetPlacement(x, y, scale float64, now time.Time, immediately bool) {
	if scale <= 0 || math.IsNaN(x) || math.IsNaN(y) || math.IsNaN(scale) ||
		math.IsInf(x, 0) || math.IsInf(y, 0) || math.IsInf(scale, 0) {
		s.logger.Warn("Ignoring invalid placement", "x", x, "y", y, "scale", scale)
		return
	}
	if immediately {
		s.xSpring.ResetTo(x)
		s.ySpring.ResetTo(y)
		s.scaleSpring.ResetTo(scale)
		return
	}
	s.xSpring.SpringTo(x, now)
	s.ySpring.SpringTo(y, now)
	s.scaleSpring.SpringTo(scale, now)
}

// Placement returns the image origin and scale, current or target.
func (s *Scheduler) Placement(current bool) (x, y, scale float64) {
	if current {
		return s.xSpring.Current(), s.ySpring.Current(), s.scaleSpring.Current()
	}
	return s.xSpring.Target(), s.ySpring.Target(), s.scaleSpring.Target()
}

// Reset drops every tile and all pending work for this image. Completions
// from jobs dispatched before the reset are dropped when they arrive.
func (s *Scheduler) Reset(now time.Time) {
	s.watermark = now
	s.matrix.Reset()
	s.cache.ClearFor(s.owner)
	for _, t := range s.lastDrawn {
		t.BeingDrawn = false
	}
	s.lastDrawn = s.lastDrawn[:0]
	s.logger.Info("Scheduler reset", "owner", s.owner)
}

// Frame runs one pass at the given instant and returns what it produced.
// Pending loader completions are applied before the pass and again right
// after it; queued events are sent before Frame returns.
func (s *Scheduler) Frame(now time.Time) *FrameResult {
	started := time.Now()
	res := &FrameResult{}

	s.drainCompletions(now)

	viewportAnimated := s.viewport.Update(now)
	xBefore, yBefore, scaleBefore := s.xSpring.Current(), s.ySpring.Current(), s.scaleSpring.Current()
	s.xSpring.Update(now)
	s.ySpring.Update(now)
	s.scaleSpring.Update(now)
	placementAnimated := xBefore != s.xSpring.Current() ||
		yBefore != s.ySpring.Current() ||
		scaleBefore != s.scaleSpring.Current()

	for _, t := range s.lastDrawn {
		t.BeingDrawn = false
	}
	s.lastDrawn = s.lastDrawn[:0]
	s.tilesLoading = 0
	s.needsDraw = false
	s.hasOpaqueTile = false
	s.coverage = newCoverageMap(s.logger)
	s.loadingCoverage = newCoverageMap(s.logger)

	drawArea := s.toImageRect(s.viewport.BoundsWithMargins(true))
	if !s.cfg.WrapHorizontal && !s.cfg.WrapVertical {
		imageBounds := orb.Bound{Max: orb.Point{1, 1 / s.source.AspectRatio()}}
		var ok bool
		drawArea, ok = intersectBound(drawArea, imageBounds)
		if !ok {
			// Image is entirely off screen.
			if s.drawer != nil {
				s.drawer.Draw(nil)
			}
			s.drainCompletions(now)
			res.NeedsDraw = viewportAnimated || placementAnimated
			res.FullyLoaded = s.fullyLoaded
			s.flushEvents()
			s.meter.mark(res, time.Since(started))
			return res
		}
	}

	zeroRatio := s.viewport.DeltaPixelsFromPointsNoRotate(s.source.PixelRatio(0), true).X() *
		s.scaleSpring.Current()
	lowestLevel, highestLevel := levelInterval(s.source, zeroRatio, s.cfg)
	s.lastLevels = [2]int{lowestLevel, highestLevel}

	zeroLevel := s.source.ClosestLevel()
	if zeroLevel < 0 {
		zeroLevel = 0
	}
	targetZeroRatio := s.viewport.DeltaPixelsFromPointsNoRotate(s.source.PixelRatio(zeroLevel), false).X() *
		s.scaleSpring.Target()
	optimalRatio := targetZeroRatio
	if s.cfg.ImmediateRender {
		optimalRatio = 1
	}

	viewportCenter := s.viewport.PixelFromPoint(s.viewport.Center(false), false)

	var best *tile.Tile
	haveDrawn := false
	for level := highestLevel; level >= lowestLevel; level-- {
		drawLevel := false
		currentRatio := s.viewport.DeltaPixelsFromPointsNoRotate(s.source.PixelRatio(level), true).X() *
			s.scaleSpring.Current()
		targetRatio := s.viewport.DeltaPixelsFromPointsNoRotate(s.source.PixelRatio(level), false).X() *
			s.scaleSpring.Target()

		// The lowest eligible level always draws; above it the finest
		// level still dense enough on screen starts the drawing.
		if level == lowestLevel || (!haveDrawn && currentRatio >= s.cfg.MinPixelRatio) {
			drawLevel = true
			haveDrawn = true
		} else if !haveDrawn {
			continue
		}

		levelOpacity := common.Clamp((currentRatio-0.5)/0.5, 0, 1)
		levelVisibility := optimalRatio / math.Abs(optimalRatio-targetRatio)

		best = s.updateLevel(haveDrawn, drawLevel, level, levelOpacity, levelVisibility,
			drawArea, viewportCenter, now, best)

		if s.coverage.providesLevelCoverage(level) {
			break
		}
	}

	// The pass visits fine levels first; painting wants coarse first so
	// finer tiles land on top.
	res.Drawn = make([]*tile.Tile, 0, len(s.lastDrawn))
	for i := len(s.lastDrawn) - 1; i >= 0; i-- {
		res.Drawn = append(res.Drawn, s.lastDrawn[i])
	}

	if best != nil {
		if s.dispatch(best, now) {
			res.Dispatched = best
		}
		s.needsDraw = true
		s.setFullyLoaded(false, now)
	} else {
		s.setFullyLoaded(s.tilesLoading == 0, now)
	}

	if s.drawer != nil {
		s.drawer.Draw(res.Drawn)
	}

	s.drainCompletions(now)

	res.NeedsDraw = s.needsDraw || viewportAnimated || placementAnimated
	res.FullyLoaded = s.fullyLoaded
	s.flushEvents()
	s.meter.mark(res, time.Since(started))
	return res
}

// toImageRect converts a rect in viewport coordinates to image-local
// coordinates under the current placement.
func (s *Scheduler) toImageRect(b orb.Bound) orb.Bound {
	x, y, scale := s.xSpring.Current(), s.ySpring.Current(), s.scaleSpring.Current()
	return orb.Bound{
		Min: orb.Point{(b.Min.X() - x) / scale, (b.Min.Y() - y) / scale},
		Max: orb.Point{(b.Max.X() - x) / scale, (b.Max.Y() - y) / scale},
	}
}

func (s *Scheduler) updateLevel(haveDrawn, drawLevel bool, level int, levelOpacity, levelVisibility float64,
	drawArea orb.Bound, viewportCenter orb.Point, now time.Time, best *tile.Tile) *tile.Tile {

	s.coverage.resetLevel(level)
	s.loadingCoverage.resetLevel(level)

	tl, br := s.cornerTiles(level, drawArea.Min, drawArea.Max)
	nx, ny := s.source.NumTiles(level)

	if s.cfg.Flipped {
		br.X++
		if !s.cfg.WrapHorizontal && br.X > nx-1 {
			br.X = nx - 1
		}
	}

	owner := s.owner
	s.queueEvent(func() {
		events.LevelProcessedFeed.Send(events.LevelProcessed{Owner: owner, Level: level, Drawable: drawLevel, Time: now})
	})

	for x := tl.X; x <= br.X; x++ {
		for y := tl.Y; y <= br.Y; y++ {
			colX := x
			if s.cfg.Flipped {
				colX = flippedColumn(x, nx)
			}
			if _, ok := intersectBound(drawArea, s.tileBounds(level, colX, y)); !ok {
				continue
			}
			best = s.updateTile(drawLevel, haveDrawn, colX, y, level, levelOpacity, levelVisibility,
				viewportCenter, nx, ny, now, best)
		}
	}
	return best
}

func (s *Scheduler) updateTile(drawLevel, haveDrawn bool, x, y, level int, levelOpacity, levelVisibility float64,
	viewportCenter orb.Point, nx, ny int, now time.Time, best *tile.Tile) *tile.Tile {

	t := s.getTile(x, y, level, now, nx, ny)
	drawTile := drawLevel

	s.coverage.setCoverage(level, x, y, false)
	loadingCoverage := t.Loaded || t.Loading || s.loadingCoverage.isCovered(level, x, y)
	s.loadingCoverage.setCoverage(level, x, y, loadingCoverage)

	owner, addr, wasLoaded, wasLoading := s.owner, t.Address, t.Loaded, t.Loading
	s.queueEvent(func() {
		events.TileProcessedFeed.Send(events.TileProcessed{Owner: owner, Address: addr, Loaded: wasLoaded, Loading: wasLoading, Time: now})
	})

	if !t.Exists {
		return best
	}

	// A coarse tile under an unfinished fine level draws as backfill
	// unless its cell is already covered from below.
	if haveDrawn && !drawTile {
		if s.coverage.isCovered(level, x, y) {
			s.coverage.setCoverage(level, x, y, true)
		} else {
			drawTile = true
		}
	}
	if !drawTile {
		return best
	}

	s.positionTile(t, levelVisibility, viewportCenter)

	if !t.Loaded {
		if rec := s.cache.GetRecord(t.CacheKey); rec != nil {
			data := rec.Data()
			s.markLoaded(t, data)
			s.queueLoadedEvent(t, len(data), now)
		}
	}

	if t.Loaded {
		if s.blendTile(t, x, y, level, levelOpacity, now) {
			s.needsDraw = true
		}
	} else if t.Loading {
		s.tilesLoading++
	} else if !loadingCoverage {
		best = compareTiles(best, t)
	}
	return best
}

// getTile returns the matrix tile for the address, creating it if absent or
// if the flip state changed since it was built.
func (s *Scheduler) getTile(x, y, level int, now time.Time, nx, ny int) *tile.Tile {
	a := tile.Address{Level: level, X: x, Y: y}
	t, ok := s.matrix.Get(a)
	if !ok || t.Flipped != s.cfg.Flipped {
		xMod := common.PositiveModuloInt(x, nx)
		yMod := common.PositiveModuloInt(y, ny)

		url := s.source.TileURL(level, xMod, yMod)
		post := s.source.TilePostData(level, xMod, yMod)
		headers := s.source.TileAjaxHeaders(level, xMod, yMod)

		t = &tile.Tile{
			Address:         a,
			Bounds:          s.tileBounds(level, x, y),
			SourceBounds:    s.source.TileBounds(level, xMod, yMod, true),
			Exists:          s.source.TileExists(level, xMod, yMod),
			URL:             url,
			PostData:        post,
			AjaxHeaders:     headers,
			CacheKey:        s.source.TileHashKey(level, xMod, yMod, url, post, headers),
			Flipped:         s.cfg.Flipped,
			IsRightMost:     xMod == nx-1,
			IsBottomMost:    yMod == ny-1,
			HasTransparency: s.source.HasTransparency(level, xMod, yMod),
		}
		s.matrix.Add(t)
	}
	t.LastTouch = now
	return t
}

// positionTile computes where the tile lands on screen this frame and how
// urgent it is. Distance is measured between the settled tile center and the
// settled viewport center so priorities do not churn mid-animation.
func (s *Scheduler) positionTile(t *tile.Tile, levelVisibility float64, viewportCenter orb.Point) {
	x, y, scale := s.xSpring.Current(), s.ySpring.Current(), s.scaleSpring.Current()
	topLeft := orb.Point{
		t.Bounds.Min.X()*scale + x,
		t.Bounds.Min.Y()*scale + y,
	}
	size := orb.Point{
		(t.Bounds.Max.X() - t.Bounds.Min.X()) * scale,
		(t.Bounds.Max.Y() - t.Bounds.Min.Y()) * scale,
	}

	positionC := s.viewport.PixelFromPointNoRotate(topLeft, true)
	positionT := s.viewport.PixelFromPointNoRotate(topLeft, false)
	sizeC := s.viewport.DeltaPixelsFromPointsNoRotate(size, true)
	sizeT := s.viewport.DeltaPixelsFromPointsNoRotate(size, false)

	tileCenter := orb.Point{positionT.X() + sizeT.X()/2, positionT.Y() + sizeT.Y()/2}
	dx := viewportCenter.X() - tileCenter.X()
	dy := viewportCenter.Y() - tileCenter.Y()

	if s.source.TileOverlap() == 0 {
		// Pad a pixel so adjacent tiles without overlap do not seam.
		sizeC = orb.Point{sizeC.X() + 1, sizeC.Y() + 1}
	}
	if t.IsRightMost && s.cfg.WrapHorizontal {
		sizeC = orb.Point{sizeC.X() + 0.75, sizeC.Y()}
	}
	if t.IsBottomMost && s.cfg.WrapVertical {
		sizeC = orb.Point{sizeC.X(), sizeC.Y() + 0.75}
	}

	t.Position = positionC
	t.Size = sizeC
	t.DistanceSq = dx*dx + dy*dy
	t.Visibility = levelVisibility
}

func (s *Scheduler) dispatch(t *tile.Tile, now time.Time) bool {
	if s.loader == nil {
		return false
	}
	t.Loading = true
	dispatched := now
	job := &loader.Job{
		URL:        t.URL,
		PostData:   t.PostData,
		Headers:    t.AjaxHeaders,
		Tile:       t,
		Owner:      s.owner,
		Dispatched: dispatched,
		Callback: func(data []byte, err error) {
			s.enqueueCompletion(completion{t: t, data: data, err: err, dispatched: dispatched})
		},
	}
	if err := s.loader.Add(job); err != nil {
		t.Loading = false
		s.logger.Debug("Tile dispatch refused", "tile", t, "error", err)
		return false
	}

	owner, addr, url := s.owner, t.Address, t.URL
	s.queueEvent(func() {
		events.TileDispatchedFeed.Send(events.TileDispatched{Owner: owner, Address: addr, URL: url, Time: now})
	})
	return true
}

// enqueueCompletion is safe to call from any goroutine.
func (s *Scheduler) enqueueCompletion(c completion) {
	s.complMu.Lock()
	s.completions = append(s.completions, c)
	s.complMu.Unlock()
}

func (s *Scheduler) drainCompletions(now time.Time) {
	s.complMu.Lock()
	batch := s.completions
	s.completions = nil
	s.complMu.Unlock()

	for _, c := range batch {
		if c.dispatched.Before(s.watermark) {
			s.logger.Debug("Dropping stale tile completion", "tile", c.t, "dispatched", c.dispatched)
			continue
		}
		if c.ready {
			s.markLoaded(c.t, c.data)
			s.queueLoadedEvent(c.t, len(c.data), now)
			continue
		}
		if c.err != nil {
			c.t.Loading = false
			c.t.Exists = false
			owner, addr, url, errText := s.owner, c.t.Address, c.t.URL, c.err.Error()
			s.queueEvent(func() {
				events.TileLoadFailedFeed.Send(events.TileLoadFailed{Owner: owner, Address: addr, URL: url, Error: errText, Time: now})
			})
			continue
		}
		s.finishLoad(c, now)
	}
}

// finishLoad runs the load interceptors and completes the tile. If any
// interceptor holds its acknowledgment past this call, completion is
// re-queued for the frame in which the last one lands.
func (s *Scheduler) finishLoad(c completion, now time.Time) {
	if len(s.interceptors) == 0 {
		s.markLoaded(c.t, c.data)
		s.queueLoadedEvent(c.t, len(c.data), now)
		return
	}

	remaining := new(atomic.Int32)
	remaining.Store(int32(len(s.interceptors)) + 1)
	done := func() {
		if remaining.Add(-1) == 0 {
			s.enqueueCompletion(completion{t: c.t, data: c.data, dispatched: c.dispatched, ready: true})
		}
	}
	for _, fn := range s.interceptors {
		fn(c.t, c.data, done)
	}
	if remaining.Add(-1) == 0 {
		s.markLoaded(c.t, c.data)
		s.queueLoadedEvent(c.t, len(c.data), now)
		return
	}
	s.logger.Debug("Tile completion deferred by interceptor", "tile", c.t, "outstanding", remaining.Load())
}

func (s *Scheduler) markLoaded(t *tile.Tile, data []byte) {
	t.Loading = false
	t.Loaded = true
	s.cache.Put(cache.PutOptions{
		Data:   data,
		Tile:   t,
		Owner:  s.owner,
		Cutoff: s.source.ClosestLevel(),
	})
}

func (s *Scheduler) queueLoadedEvent(t *tile.Tile, bytes int, now time.Time) {
	owner, addr := s.owner, t.Address
	s.queueEvent(func() {
		events.TileLoadedFeed.Send(events.TileLoaded{Owner: owner, Address: addr, Bytes: bytes, Time: now})
	})
}

func (s *Scheduler) setFullyLoaded(v bool, now time.Time) {
	if v == s.fullyLoaded {
		return
	}
	s.fullyLoaded = v
	owner := s.owner
	s.queueEvent(func() {
		events.FullyLoadedChangedFeed.Send(events.FullyLoadedChanged{Owner: owner, FullyLoaded: v, Time: now})
	})
}

func (s *Scheduler) queueEvent(fn func()) {
	s.eventQueue = append(s.eventQueue, fn)
}

func (s *Scheduler) flushEvents() {
	for _, fn := range s.eventQueue {
		fn()
	}
	s.eventQueue = s.eventQueue[:0]
}
