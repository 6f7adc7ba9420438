package params

import "time"

type LoaderConfig struct {
	// Workers is the number of concurrent fetch goroutines.
	Workers int

	// JobLimit caps jobs admitted to the queue. 0 means unbounded;
	// the worker pool still bounds concurrency.
	JobLimit int

	// FetchTimeout applies per HTTP/S3 request.
	FetchTimeout time.Duration

	// FailureBackoff is how long a failed URL fails fast before being
	// retried against the network.
	FailureBackoff time.Duration

	// HotBytes budgets the in-memory raw tile byte cache.
	HotBytes int64

	UserAgent string
}

func DefaultLoaderConfig() *LoaderConfig {
	return &LoaderConfig{
		Workers:        4,
		JobLimit:       0,
		FetchTimeout:   30 * time.Second,
		FailureBackoff: 30 * time.Second,
		HotBytes:       64 << 20,
		UserAgent:      "osd/0.1",
	}
}
