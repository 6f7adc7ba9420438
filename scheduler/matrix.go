package scheduler

import (
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lcl45/openseadragon/params"
	"github.com/lcl45/openseadragon/tile"
)

// Matrix holds every tile the scheduler has touched, keyed by address. Wrap
// modes address tiles outside the grid (x = -1 is the column left of the
// seam), so the matrix is bounded with an LRU rather than sized to the grid.
// Evicting a tile only forgets the bookkeeping struct; its pixels stay in
// the shared cache and reattach on the next touch.
type Matrix struct {
	logger *slog.Logger
	tiles  *lru.Cache[tile.Address, *tile.Tile]
}

func NewMatrix(size int) *Matrix {
	if size <= 0 {
		size = params.MatrixSize
	}
	tiles, err := lru.New[tile.Address, *tile.Tile](size)
	if err != nil {
		panic(err)
	}
	return &Matrix{
		logger: slog.With("d", "scheduler"),
		tiles:  tiles,
	}
}

func (m *Matrix) Get(a tile.Address) (*tile.Tile, bool) {
	return m.tiles.Get(a)
}

func (m *Matrix) Add(t *tile.Tile) {
	if evicted := m.tiles.Add(t.Address, t); evicted {
		m.logger.Debug("Tile matrix at capacity, evicted least recently touched")
	}
}

func (m *Matrix) Len() int {
	return m.tiles.Len()
}

// Tiles returns the resident tiles, least recently touched first.
func (m *Matrix) Tiles() []*tile.Tile {
	return m.tiles.Values()
}

func (m *Matrix) Reset() {
	m.tiles.Purge()
}
