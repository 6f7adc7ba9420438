package tilesource

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/google/hilbert"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lcl45/openseadragon/tile"
)

// PMTiles reads a local PMTiles v3 archive: a single file holding a whole
// slippy pyramid, addressed by Hilbert tile IDs through a root directory
// with optional leaf directories. Raster archives only; tile raster size is
// assumed 256 unless overridden.
//
// https://github.com/protomaps/PMTiles/blob/main/spec/v3/spec.md
type PMTiles struct {
	Pyramid

	Path string

	f      *os.File
	header PMHeader
	root   []pmEntry
	leaves *lru.Cache[uint64, []pmEntry]
}

const (
	pmHeaderLen = 127
	pmMagic     = "PMTiles"

	pmCompressionNone uint8 = 1
	pmCompressionGzip uint8 = 2

	PMTileTypeMVT  uint8 = 1
	PMTileTypePNG  uint8 = 2
	PMTileTypeJPEG uint8 = 3
	PMTileTypeWebP uint8 = 4
	PMTileTypeAVIF uint8 = 5
)

const pmLeafCacheSize = 16

// PMHeader is the fixed 127-byte archive header, little-endian.
type PMHeader struct {
	SpecVersion uint8

	RootOffset     uint64
	RootLength     uint64
	MetadataOffset uint64
	MetadataLength uint64
	LeafOffset     uint64
	LeafLength     uint64
	DataOffset     uint64
	DataLength     uint64

	AddressedTiles uint64
	TileEntries    uint64
	TileContents   uint64

	Clustered           bool
	InternalCompression uint8
	TileCompression     uint8
	TileType            uint8

	MinZoom uint8
	MaxZoom uint8

	// Bounds and center in degrees, decoded from the stored e7 ints.
	MinLon, MinLat float64
	MaxLon, MaxLat float64
	CenterZoom     uint8
	CenterLon      float64
	CenterLat      float64
}

type pmEntry struct {
	ID        uint64
	Offset    uint64
	Length    uint32
	RunLength uint32
}

// OpenPMTiles opens an archive and reads its header and root directory.
// The returned source holds the file open; Close it when done.
func OpenPMTiles(path string) (*PMTiles, error) {
	return OpenPMTilesSized(path, 256)
}

// OpenPMTilesSized is OpenPMTiles with an explicit tile raster size, for
// 512px archives.
func OpenPMTilesSized(path string, tileSize int) (*PMTiles, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, pmHeaderLen)
	if _, err := io.ReadFull(f, buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrBadDescriptor, path, err)
	}
	header, err := parsePMHeader(buf)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrBadDescriptor, path, err)
	}
	if header.TileType == PMTileTypeMVT {
		f.Close()
		return nil, fmt.Errorf("%w: %s: vector archive", ErrBadDescriptor, path)
	}
	if !pmReadableCompression(header.InternalCompression) || !pmReadableCompression(header.TileCompression) {
		f.Close()
		return nil, fmt.Errorf("%w: %s: unsupported compression", ErrBadDescriptor, path)
	}

	leaves, err := lru.New[uint64, []pmEntry](pmLeafCacheSize)
	if err != nil {
		f.Close()
		return nil, err
	}

	p := &PMTiles{
		Pyramid: Pyramid{
			Width:       tileSize << header.MaxZoom,
			Height:      tileSize << header.MaxZoom,
			TileWidth:   tileSize,
			TileHeight:  tileSize,
			Overlap:     0,
			Min:         int(header.MinZoom),
			Max:         int(header.MaxZoom),
			Transparent: header.TileType == PMTileTypePNG || header.TileType == PMTileTypeWebP,
		},
		Path:   path,
		f:      f,
		header: header,
		leaves: leaves,
	}

	p.root, err = p.readDirectory(header.RootOffset, header.RootLength)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: root directory: %v", ErrBadDescriptor, path, err)
	}
	return p, nil
}

func pmReadableCompression(c uint8) bool {
	return c == pmCompressionNone || c == pmCompressionGzip
}

func parsePMHeader(d []byte) (PMHeader, error) {
	h := PMHeader{}
	if len(d) < pmHeaderLen {
		return h, fmt.Errorf("short header: %d bytes", len(d))
	}
	if string(d[0:7]) != pmMagic {
		return h, fmt.Errorf("bad magic %q", d[0:7])
	}
	h.SpecVersion = d[7]
	if h.SpecVersion != 3 {
		return h, fmt.Errorf("spec version %d, want 3", h.SpecVersion)
	}

	le := binary.LittleEndian
	h.RootOffset = le.Uint64(d[8:16])
	h.RootLength = le.Uint64(d[16:24])
	h.MetadataOffset = le.Uint64(d[24:32])
	h.MetadataLength = le.Uint64(d[32:40])
	h.LeafOffset = le.Uint64(d[40:48])
	h.LeafLength = le.Uint64(d[48:56])
	h.DataOffset = le.Uint64(d[56:64])
	h.DataLength = le.Uint64(d[64:72])
	h.AddressedTiles = le.Uint64(d[72:80])
	h.TileEntries = le.Uint64(d[80:88])
	h.TileContents = le.Uint64(d[88:96])
	h.Clustered = d[96] == 0x1
	h.InternalCompression = d[97]
	h.TileCompression = d[98]
	h.TileType = d[99]
	h.MinZoom = d[100]
	h.MaxZoom = d[101]
	h.MinLon = float64(int32(le.Uint32(d[102:106]))) / 1e7
	h.MinLat = float64(int32(le.Uint32(d[106:110]))) / 1e7
	h.MaxLon = float64(int32(le.Uint32(d[110:114]))) / 1e7
	h.MaxLat = float64(int32(le.Uint32(d[114:118]))) / 1e7
	h.CenterZoom = d[118]
	h.CenterLon = float64(int32(le.Uint32(d[119:123]))) / 1e7
	h.CenterLat = float64(int32(le.Uint32(d[123:127]))) / 1e7
	return h, nil
}

func (p *PMTiles) Close() error {
	return p.f.Close()
}

func (p *PMTiles) Header() PMHeader {
	return p.header
}

// Metadata returns the archive's JSON metadata section.
func (p *PMTiles) Metadata() ([]byte, error) {
	if p.header.MetadataLength == 0 {
		return nil, nil
	}
	return p.readSection(p.header.MetadataOffset, p.header.MetadataLength, p.header.InternalCompression)
}

func (p *PMTiles) readSection(offset, length uint64, compression uint8) ([]byte, error) {
	buf := make([]byte, length)
	if _, err := p.f.ReadAt(buf, int64(offset)); err != nil {
		return nil, err
	}
	if compression != pmCompressionGzip {
		return buf, nil
	}
	gz, err := gzip.NewReader(bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	return io.ReadAll(gz)
}

func (p *PMTiles) readDirectory(offset, length uint64) ([]pmEntry, error) {
	raw, err := p.readSection(offset, length, p.header.InternalCompression)
	if err != nil {
		return nil, err
	}
	return parsePMEntries(bufio.NewReader(bytes.NewReader(raw)))
}

// parsePMEntries decodes the column-oriented uvarint directory layout:
// delta-coded IDs, then run lengths, then lengths, then offsets where 0
// means contiguous with the previous entry.
func parsePMEntries(br *bufio.Reader) ([]pmEntry, error) {
	n, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, fmt.Errorf("entry count: %w", err)
	}
	entries := make([]pmEntry, n)

	lastID := uint64(0)
	for i := range entries {
		delta, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, fmt.Errorf("entry id: %w", err)
		}
		lastID += delta
		entries[i].ID = lastID
	}
	for i := range entries {
		rl, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, fmt.Errorf("entry run length: %w", err)
		}
		entries[i].RunLength = uint32(rl)
	}
	for i := range entries {
		l, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, fmt.Errorf("entry length: %w", err)
		}
		entries[i].Length = uint32(l)
	}
	for i := range entries {
		off, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, fmt.Errorf("entry offset: %w", err)
		}
		if off == 0 {
			if i == 0 {
				return nil, fmt.Errorf("entry 0 with relative offset")
			}
			entries[i].Offset = entries[i-1].Offset + uint64(entries[i-1].Length)
		} else {
			entries[i].Offset = off - 1
		}
	}
	return entries, nil
}

// findPMEntry binary-searches a directory for a tile ID, honoring run
// lengths. RunLength 0 marks a pointer into the leaf directory section.
func findPMEntry(entries []pmEntry, id uint64) (pmEntry, bool) {
	lo, hi := 0, len(entries)-1
	for lo <= hi {
		mid := (lo + hi) >> 1
		switch {
		case id > entries[mid].ID:
			lo = mid + 1
		case id < entries[mid].ID:
			hi = mid - 1
		default:
			return entries[mid], true
		}
	}
	if hi >= 0 {
		e := entries[hi]
		if e.RunLength == 0 {
			return e, true
		}
		if id-e.ID < uint64(e.RunLength) {
			return e, true
		}
	}
	return pmEntry{}, false
}

// zxyToID maps an address to its archive tile ID: the cumulative tile count
// of all coarser levels plus the address's position on the level's Hilbert
// curve.
func zxyToID(z, x, y int) (uint64, error) {
	if z < 0 || x < 0 || y < 0 || x >= 1<<uint(z) || y >= 1<<uint(z) {
		return 0, fmt.Errorf("address %d/%d_%d out of range", z, x, y)
	}
	h, err := hilbert.NewHilbert(1 << uint(z))
	if err != nil {
		return 0, err
	}
	d, err := h.MapInverse(x, y)
	if err != nil {
		return 0, err
	}
	base := (uint64(1)<<(2*uint(z)) - 1) / 3
	return base + uint64(d), nil
}

// entryFor resolves an address through the root and, if needed, one leaf
// directory. Leaf directories are cached.
func (p *PMTiles) entryFor(level, x, y int) (pmEntry, bool, error) {
	id, err := zxyToID(level, x, y)
	if err != nil {
		return pmEntry{}, false, err
	}
	e, ok := findPMEntry(p.root, id)
	if !ok {
		return pmEntry{}, false, nil
	}
	if e.RunLength > 0 {
		return e, true, nil
	}

	leaf, ok := p.leaves.Get(e.Offset)
	if !ok {
		leaf, err = p.readDirectory(p.header.LeafOffset+e.Offset, uint64(e.Length))
		if err != nil {
			return pmEntry{}, false, err
		}
		p.leaves.Add(e.Offset, leaf)
	}
	le, ok := findPMEntry(leaf, id)
	if !ok || le.RunLength == 0 {
		return pmEntry{}, false, nil
	}
	return le, true, nil
}

// ReadTile returns the decompressed bytes of one tile. Implements Local, so
// the loader reads the archive directly instead of fetching a URL.
func (p *PMTiles) ReadTile(ctx context.Context, level, x, y int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, ok, err := p.entryFor(level, x, y)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d/%d_%d in %s", ErrNoSuchTile, level, x, y, p.Path)
	}
	return p.readSection(p.header.DataOffset+e.Offset, uint64(e.Length), p.header.TileCompression)
}

// TileExists consults the archive directory, not just the grid bounds;
// PMTiles pyramids are commonly sparse.
func (p *PMTiles) TileExists(level, x, y int) bool {
	if !p.Pyramid.TileExists(level, x, y) {
		return false
	}
	_, ok, err := p.entryFor(level, x, y)
	return err == nil && ok
}

// TileURL is a synthetic identifier; fetching goes through ReadTile.
func (p *PMTiles) TileURL(level, x, y int) string {
	return p.memoized(tile.Address{Level: level, X: x, Y: y}, func() string {
		return fmt.Sprintf("pmtiles://%s#%d/%d_%d", p.Path, level, x, y)
	})
}
