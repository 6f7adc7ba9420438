package params

import (
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/metrics"
)

func init() {
	metrics.Enabled = true
}

const (
	TileDBName     = "tiles.db"
	SnapshotSubdir = "snaps"
)

var TileBucket = []byte("tiles")

var DatadirRoot = func() string {
	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}
	return filepath.Join(home, ".osd")
}()

// AWS_REGION is read once so the S3 fetcher can run without a shared
// credentials file. Empty means the SDK default chain decides.
var AWS_REGION = os.Getenv("AWS_REGION")

var (
	INFLUXDB_URL    = os.Getenv("INFLUXDB_URL")
	INFLUXDB_TOKEN  = os.Getenv("INFLUXDB_TOKEN")
	INFLUXDB_ORG    = os.Getenv("INFLUXDB_ORG")
	INFLUXDB_BUCKET = os.Getenv("INFLUXDB_BUCKET")
)

var DefaultTileFormat = "jpg"
