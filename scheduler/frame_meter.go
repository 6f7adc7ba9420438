package scheduler

import (
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/lcl45/openseadragon/common"
)

// FrameMeter accounts scheduler passes: frame rate, draw list size, and
// dispatch volume. A ticker can report the snapshot to the log periodically.
type FrameMeter struct {
	started time.Time
	ticker  *time.Ticker

	reg        metrics.Registry
	frames     metrics.Counter
	frameMeter metrics.Meter
	drawnMeter metrics.Meter
	dispatches metrics.Meter
	durations  metrics.Timer
}

func NewFrameMeter() *FrameMeter {
	reg := metrics.NewRegistry()
	m := &FrameMeter{
		started:    time.Now(),
		reg:        reg,
		frames:     metrics.NewCounter(),
		frameMeter: metrics.NewMeter(),
		drawnMeter: metrics.NewMeter(),
		dispatches: metrics.NewMeter(),
		durations:  metrics.NewTimer(),
	}
	if err := reg.Register("frames.count", m.frames); err != nil {
		panic(err)
	}
	if err := reg.Register("frames.meter", m.frameMeter); err != nil {
		panic(err)
	}
	if err := reg.Register("drawn.meter", m.drawnMeter); err != nil {
		panic(err)
	}
	if err := reg.Register("dispatch.meter", m.dispatches); err != nil {
		panic(err)
	}
	if err := reg.Register("frame.timer", m.durations); err != nil {
		panic(err)
	}
	return m
}

func (m *FrameMeter) mark(res *FrameResult, elapsed time.Duration) {
	m.frames.Inc(1)
	m.frameMeter.Mark(1)
	m.drawnMeter.Mark(int64(len(res.Drawn)))
	if res.Dispatched != nil {
		m.dispatches.Mark(1)
	}
	m.durations.Update(elapsed)
}

// FrameStats is a point-in-time snapshot of the meter.
type FrameStats struct {
	Frames     int64         `json:"frames"`
	FPS        float64       `json:"fps"`
	DrawnRate  float64       `json:"drawnRate"`
	Dispatches int64         `json:"dispatches"`
	FrameMean  time.Duration `json:"frameMean"`
	FrameP95   time.Duration `json:"frameP95"`
}

func (m *FrameMeter) Stats() FrameStats {
	frames := m.frameMeter.Snapshot()
	durs := m.durations.Snapshot()
	return FrameStats{
		Frames:     m.frames.Snapshot().Count(),
		FPS:        frames.Rate1(),
		DrawnRate:  m.drawnMeter.Snapshot().Rate1(),
		Dispatches: m.dispatches.Snapshot().Count(),
		FrameMean:  time.Duration(durs.Mean()),
		FrameP95:   time.Duration(durs.Percentile(0.95)),
	}
}

func (m *FrameMeter) log() {
	stats := m.Stats()
	slog.Info("Scheduler frames", "n", humanize.Comma(stats.Frames),
		"fps", common.DecimalToFixed(stats.FPS, 1),
		"drawn.rate", common.DecimalToFixed(stats.DrawnRate, 0),
		"dispatched", humanize.Comma(stats.Dispatches),
		"frame.mean", stats.FrameMean.Round(time.Microsecond),
		"frame.p95", stats.FrameP95.Round(time.Microsecond),
		"running", time.Since(m.started).Round(time.Second))
}

// StartTicker logs the meter snapshot every interval until the returned
// stop func is called.
func (m *FrameMeter) StartTicker(interval time.Duration) (stop func()) {
	m.ticker = time.NewTicker(interval)
	go func() {
		for range m.ticker.C {
			m.log()
		}
	}()
	return func() {
		m.ticker.Stop()
		m.frameMeter.Stop()
		m.drawnMeter.Stop()
		m.dispatches.Stop()
		m.durations.Stop()
	}
}
