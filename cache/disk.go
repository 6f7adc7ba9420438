package cache

import (
	"log/slog"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/lcl45/openseadragon/params"
)

// Disk is a persistent tile-bytes store, read through by the loader and
// filled by it and by prefetch runs. Keys are tile URLs.
type Disk struct {
	logger *slog.Logger
	db     *bbolt.DB
}

func OpenDisk(cfg *params.DiskCacheConfig) (*Disk, error) {
	if cfg == nil {
		cfg = params.DefaultDiskCacheConfig()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0700); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(cfg.Path, 0600, nil)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(params.TileBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Disk{
		logger: slog.With("d", "diskcache"),
		db:     db,
	}, nil
}

func (d *Disk) Close() error {
	return d.db.Close()
}

// Get returns the stored bytes for a key, nil if absent.
func (d *Disk) Get(key string) ([]byte, error) {
	var out []byte
	err := d.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(params.TileBucket).Get([]byte(key))
		if v != nil {
			out = make([]byte, len(v))
			copy(out, v)
		}
		return nil
	})
	return out, err
}

func (d *Disk) Put(key string, data []byte) error {
	return d.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(params.TileBucket).Put([]byte(key), data)
	})
}

// Len is the number of stored tiles.
func (d *Disk) Len() (int, error) {
	n := 0
	err := d.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(params.TileBucket).Stats().KeyN
		return nil
	})
	return n, err
}

func (d *Disk) Path() string {
	return d.db.Path()
}
