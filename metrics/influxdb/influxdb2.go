package influxdb

import (
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"github.com/lcl45/openseadragon/params"
)

// RunSummary is one benchmark or daemon run rolled up into a point.
type RunSummary struct {
	At     time.Time
	Source string
	Run    string

	Frames     int64
	FPS        float64
	FrameMean  time.Duration
	FrameP95   time.Duration
	Dispatches int64

	TilesLoaded int64
	BytesLoaded int64
	Failures    int64
	HitsHot     int64
	HitsDisk    int64
	CacheTiles  int
}

// ExportRunSummaries posts run summaries to an InfluxDB Write API.
// Because it accepts a slice, use batches. The Write API will buffer and flush.
// The last error encountered is returned.
func ExportRunSummaries(runs []RunSummary) error {
	opts := influxdb2.DefaultOptions()
	opts.SetPrecision(time.Second)
	client := influxdb2.NewClientWithOptions(params.INFLUXDB_URL, params.INFLUXDB_TOKEN, opts)
	writeAPI := client.WriteAPI(params.INFLUXDB_ORG, params.INFLUXDB_BUCKET)

	// Errors returns a channel for reading errors which occurs during async writes.
	// Must be called before performing any writes for errors to be collected.
	// The chan is unbuffered and must be drained or the writer will block.
	// https://github.com/influxdata/influxdb-client-go?tab=readme-ov-file#reading-async-errors
	errorsCh := writeAPI.Errors()
	var err error
	wait := sync.WaitGroup{}
	wait.Add(1)
	go func() {
		defer wait.Done()
		for e := range errorsCh {
			if e != nil {
				err = e
			}
		}
	}()

	for _, run := range runs {
		p := influxdb2.NewPointWithMeasurement("osdrun").
			SetTime(run.At).
			AddTag("source", run.Source).
			AddTag("run", run.Run).
			AddField("frames", run.Frames).
			AddField("fps", run.FPS).
			AddField("frame_mean_ms", float64(run.FrameMean)/float64(time.Millisecond)).
			AddField("frame_p95_ms", float64(run.FrameP95)/float64(time.Millisecond)).
			AddField("dispatches", run.Dispatches).
			AddField("tiles_loaded", run.TilesLoaded).
			AddField("bytes_loaded", run.BytesLoaded).
			AddField("failures", run.Failures).
			AddField("hits_hot", run.HitsHot).
			AddField("hits_disk", run.HitsDisk).
			AddField("cache_tiles", run.CacheTiles)
		writeAPI.WritePoint(p)
	}
	writeAPI.Flush()
	client.Close()
	wait.Wait()
	return err
}
