// Package loader fetches tile data on a fixed pool of worker goroutines.
//
// Fetches check the hot in-memory byte cache, then the disk store, and only
// then go to the origin (HTTP(S), S3, or a locally-readable source). Fresh
// data backfills both caches. Failing URLs are parked in a TTL backoff cache
// so repeated requests fail fast without hammering the origin.
package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/dgraph-io/ristretto/v2"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/jellydator/ttlcache/v3"
	"github.com/lcl45/openseadragon/cache"
	"github.com/lcl45/openseadragon/params"
	"github.com/lcl45/openseadragon/tile"
	"github.com/lcl45/openseadragon/tilesource"
)

var (
	ErrQueueFull = errors.New("loader: job limit reached")
	ErrAborted   = errors.New("loader: job aborted")
	ErrNoData    = errors.New("loader: no tile data")
	ErrBackoff   = errors.New("loader: url in failure backoff")
)

// Job is a single tile fetch. The Callback is invoked exactly once, from a
// worker goroutine, with either the tile bytes or an error.
type Job struct {
	URL        string
	PostData   []byte
	Headers    map[string]string
	Tile       *tile.Tile
	Owner      tile.OwnerID
	Dispatched time.Time
	Callback   func(data []byte, err error)

	ctx    context.Context
	cancel context.CancelFunc
}

// Abort cancels the job. A queued job completes promptly with ErrAborted;
// a running job has its request context canceled.
func (j *Job) Abort() {
	if j.cancel != nil {
		j.cancel()
	}
}

// cacheKey is the key used for the hot and disk caches. Tiles carry a hash
// key that disambiguates POST bodies and headers; bare jobs fall back to
// the URL.
func (j *Job) cacheKey() string {
	if j.Tile != nil && j.Tile.CacheKey != "" {
		return j.Tile.CacheKey
	}
	return j.URL
}

type Loader struct {
	logger *slog.Logger
	cfg    *params.LoaderConfig

	client *http.Client
	disk   *cache.Disk      // optional
	local  tilesource.Local // optional

	hot     *ristretto.Cache[string, []byte]
	backoff *ttlcache.Cache[string, error]

	mu      sync.Mutex
	queue   []*Job
	running map[*Job]struct{}

	notify  chan struct{}
	quit    chan struct{}
	workers sync.WaitGroup

	reg        metrics.Registry
	meterTiles metrics.Meter
	meterBytes metrics.Meter
	meterFails metrics.Meter
	hitsHot    metrics.Counter
	hitsDisk   metrics.Counter
}

// New starts a loader with cfg.Workers fetch goroutines. The disk store and
// the local reader are both optional; pass nil to skip them. When local is
// non-nil it takes priority over the job URL, so archive-backed sources are
// read directly instead of fetched.
func New(cfg *params.LoaderConfig, disk *cache.Disk, local tilesource.Local) (*Loader, error) {
	logger := slog.With("d", "loader")
	if cfg == nil {
		logger.Warn("No config provided, using default")
		cfg = params.DefaultLoaderConfig()
	}

	hot, err := ristretto.NewCache[string, []byte](&ristretto.Config[string, []byte]{
		NumCounters: 10_000,
		MaxCost:     cfg.HotBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	l := &Loader{
		logger: logger,
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.FetchTimeout},
		disk:   disk,
		local:  local,
		hot:    hot,
		backoff: ttlcache.New[string, error](
			ttlcache.WithTTL[string, error](cfg.FailureBackoff),
			ttlcache.WithDisableTouchOnHit[string, error]()),
		running: make(map[*Job]struct{}),
		notify:  make(chan struct{}, 1),
		quit:    make(chan struct{}),

		reg:        metrics.NewRegistry(),
		meterTiles: metrics.NewMeter(),
		meterBytes: metrics.NewMeter(),
		meterFails: metrics.NewMeter(),
		hitsHot:    metrics.NewCounter(),
		hitsDisk:   metrics.NewCounter(),
	}
	if err := l.reg.Register("tiles.meter", l.meterTiles); err != nil {
		panic(err)
	}
	if err := l.reg.Register("bytes.meter", l.meterBytes); err != nil {
		panic(err)
	}
	if err := l.reg.Register("fails.meter", l.meterFails); err != nil {
		panic(err)
	}
	if err := l.reg.Register("hits.hot", l.hitsHot); err != nil {
		panic(err)
	}
	if err := l.reg.Register("hits.disk", l.hitsDisk); err != nil {
		panic(err)
	}

	go l.backoff.Start()
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	l.workers.Add(workers)
	for i := 0; i < workers; i++ {
		go l.work()
	}
	logger.Info("Loader started", "workers", workers, "job.limit", cfg.JobLimit)
	return l, nil
}

// Add enqueues a job. It returns ErrQueueFull when the configured job limit
// (queued plus running) is reached; a limit of 0 means unbounded.
func (l *Loader) Add(job *Job) error {
	if job == nil || job.Callback == nil {
		return errors.New("loader: job requires a callback")
	}
	job.ctx, job.cancel = context.WithCancel(context.Background())
	if job.Dispatched.IsZero() {
		job.Dispatched = time.Now()
	}

	l.mu.Lock()
	if l.cfg.JobLimit > 0 && len(l.queue)+len(l.running) >= l.cfg.JobLimit {
		l.mu.Unlock()
		return ErrQueueFull
	}
	l.queue = append(l.queue, job)
	l.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
	return nil
}

// VisitPending calls fn for every job still queued, holding the loader
// lock. Callers use it to refresh headers before a job's request is built;
// jobs already running have their requests on the wire and are skipped.
// fn must not call back into the loader.
func (l *Loader) VisitPending(fn func(*Job)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, j := range l.queue {
		fn(j)
	}
}

// Pending reports the number of queued plus running jobs.
func (l *Loader) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue) + len(l.running)
}

// Close aborts all outstanding jobs and blocks until the workers exit.
// Outstanding callbacks fire with ErrAborted before Close returns.
func (l *Loader) Close() {
	close(l.quit)
	l.mu.Lock()
	for _, j := range l.queue {
		j.Abort()
	}
	for j := range l.running {
		j.Abort()
	}
	l.mu.Unlock()
	l.workers.Wait()
	l.backoff.Stop()
	l.hot.Close()
	l.meterTiles.Stop()
	l.meterBytes.Stop()
	l.meterFails.Stop()
	l.logger.Info("Loader stopped")
}

func (l *Loader) work() {
	defer l.workers.Done()
	for {
		job := l.next()
		if job == nil {
			return
		}
		data, err := l.fetch(job)

		l.mu.Lock()
		delete(l.running, job)
		l.mu.Unlock()
		job.cancel()
		job.Callback(data, err)
	}
}

// next blocks until a job is available or the loader is closed. The queue is
// drained before quit is honored so aborted jobs still get their callbacks.
func (l *Loader) next() *Job {
	for {
		l.mu.Lock()
		if len(l.queue) > 0 {
			job := l.queue[0]
			l.queue = l.queue[1:]
			l.running[job] = struct{}{}
			l.mu.Unlock()
			return job
		}
		l.mu.Unlock()

		select {
		case <-l.quit:
			return nil
		case <-l.notify:
		}
	}
}

func (l *Loader) fetch(job *Job) ([]byte, error) {
	if job.ctx.Err() != nil {
		return nil, ErrAborted
	}

	key := job.cacheKey()
	if item := l.backoff.Get(job.URL); item != nil {
		l.meterFails.Mark(1)
		return nil, fmt.Errorf("%w: %w", ErrBackoff, item.Value())
	}
	if data, ok := l.hot.Get(key); ok {
		l.hitsHot.Inc(1)
		return data, nil
	}
	if l.disk != nil {
		data, err := l.disk.Get(key)
		if err != nil {
			l.logger.Error("Disk cache read failed", "key", key, "error", err)
		} else if data != nil {
			l.hitsDisk.Inc(1)
			l.hot.Set(key, data, int64(len(data)))
			return data, nil
		}
	}

	data, err := l.fetchOrigin(job)
	if err != nil {
		if job.ctx.Err() == nil {
			l.backoff.Set(job.URL, err, ttlcache.DefaultTTL)
		}
		l.meterFails.Mark(1)
		return nil, err
	}

	l.meterTiles.Mark(1)
	l.meterBytes.Mark(int64(len(data)))
	l.hot.Set(key, data, int64(len(data)))
	l.hot.Wait()
	if l.disk != nil {
		if err := l.disk.Put(key, data); err != nil {
			l.logger.Error("Disk cache write failed", "key", key, "error", err)
		}
	}
	return data, nil
}

func (l *Loader) fetchOrigin(job *Job) ([]byte, error) {
	ctx, cancel := context.WithTimeout(job.ctx, l.cfg.FetchTimeout)
	defer cancel()

	switch {
	case l.local != nil && job.Tile != nil:
		return l.local.ReadTile(ctx, job.Tile.Level, job.Tile.X, job.Tile.Y)
	case strings.HasPrefix(job.URL, "s3://"):
		return l.fetchS3(ctx, job.URL)
	case strings.HasPrefix(job.URL, "http://"), strings.HasPrefix(job.URL, "https://"):
		return l.fetchHTTP(ctx, job)
	}
	return nil, fmt.Errorf("loader: unsupported url scheme: %s", job.URL)
}

func (l *Loader) fetchHTTP(ctx context.Context, job *Job) ([]byte, error) {
	method := http.MethodGet
	var body io.Reader
	if job.PostData != nil {
		method = http.MethodPost
		body = bytes.NewReader(job.PostData)
	}
	req, err := http.NewRequestWithContext(ctx, method, job.URL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", l.cfg.UserAgent)
	for k, v := range job.Headers {
		req.Header.Set(k, v)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNoData, job.URL)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("loader: %s %s: %s", method, job.URL, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, job.URL)
	}
	return data, nil
}

// fetchS3 downloads s3://bucket/key.
// The AWS library uses environment variables to configure itself.
func (l *Loader) fetchS3(ctx context.Context, url string) ([]byte, error) {
	bucket, key, ok := strings.Cut(strings.TrimPrefix(url, "s3://"), "/")
	if !ok || bucket == "" || key == "" {
		return nil, fmt.Errorf("loader: malformed s3 url: %s", url)
	}

	awsConfig := aws.Config{}
	if params.AWS_REGION != "" {
		awsConfig.Region = aws.String(params.AWS_REGION)
	}
	sess := session.Must(session.NewSession(&awsConfig))
	downloader := s3manager.NewDownloader(sess)

	buf := aws.NewWriteAtBuffer([]byte{})
	_, err := downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download S3 object, %v", err)
	}
	return buf.Bytes(), nil
}

// Stats is a point-in-time snapshot of loader counters.
type Stats struct {
	Pending      int     `json:"pending"`
	Fetched      int64   `json:"fetched"`
	FetchedBytes int64   `json:"fetchedBytes"`
	Failures     int64   `json:"failures"`
	HitsHot      int64   `json:"hitsHot"`
	HitsDisk     int64   `json:"hitsDisk"`
	RateTiles    float64 `json:"rateTiles"`
	RateBytes    float64 `json:"rateBytes"`
}

func (l *Loader) Stats() Stats {
	tiles := l.meterTiles.Snapshot()
	bs := l.meterBytes.Snapshot()
	return Stats{
		Pending:      l.Pending(),
		Fetched:      tiles.Count(),
		FetchedBytes: bs.Count(),
		Failures:     l.meterFails.Snapshot().Count(),
		HitsHot:      l.hitsHot.Snapshot().Count(),
		HitsDisk:     l.hitsDisk.Snapshot().Count(),
		RateTiles:    tiles.Rate1(),
		RateBytes:    bs.Rate1(),
	}
}
