package tilesource

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestZxyToID(t *testing.T) {
	// Known IDs from the v3 spec: z0 is 0, z1 walks the Hilbert curve
	// (0,0),(0,1),(1,1),(1,0), z2 starts at 5.
	for _, tt := range []struct {
		z, x, y int
		want    uint64
	}{
		{0, 0, 0, 0},
		{1, 0, 0, 1},
		{1, 0, 1, 2},
		{1, 1, 1, 3},
		{1, 1, 0, 4},
		{2, 0, 0, 5},
	} {
		got, err := zxyToID(tt.z, tt.x, tt.y)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("%d/%d_%d: Expected %v, but got %v", tt.z, tt.x, tt.y, tt.want, got)
		}
	}
	if _, err := zxyToID(1, 2, 0); err == nil {
		t.Errorf("Expected out of range error")
	}
}

func mustID(t *testing.T, z, x, y int) uint64 {
	t.Helper()
	id, err := zxyToID(z, x, y)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// serializeEntries mirrors parsePMEntries: count, delta IDs, run lengths,
// lengths, offsets stored off-by-one. Gzipped, as InternalCompression says.
func serializeEntries(t *testing.T, entries []pmEntry) []byte {
	t.Helper()
	var b []byte
	b = binary.AppendUvarint(b, uint64(len(entries)))
	last := uint64(0)
	for _, e := range entries {
		b = binary.AppendUvarint(b, e.ID-last)
		last = e.ID
	}
	for _, e := range entries {
		b = binary.AppendUvarint(b, uint64(e.RunLength))
	}
	for _, e := range entries {
		b = binary.AppendUvarint(b, uint64(e.Length))
	}
	for _, e := range entries {
		b = binary.AppendUvarint(b, e.Offset+1)
	}
	return gzipBytes(t, b)
}

func writeTestArchive(t *testing.T, root []pmEntry, leafDir, tileData []byte, maxZoom uint8) string {
	t.Helper()
	rootGz := serializeEntries(t, root)
	rootOffset := uint64(pmHeaderLen)
	leafOffset := rootOffset + uint64(len(rootGz))
	dataOffset := leafOffset + uint64(len(leafDir))

	h := make([]byte, pmHeaderLen)
	copy(h, pmMagic)
	h[7] = 3
	le := binary.LittleEndian
	le.PutUint64(h[8:], rootOffset)
	le.PutUint64(h[16:], uint64(len(rootGz)))
	le.PutUint64(h[24:], dataOffset+uint64(len(tileData)))
	le.PutUint64(h[32:], 0)
	le.PutUint64(h[40:], leafOffset)
	le.PutUint64(h[48:], uint64(len(leafDir)))
	le.PutUint64(h[56:], dataOffset)
	le.PutUint64(h[64:], uint64(len(tileData)))
	h[96] = 1
	h[97] = pmCompressionGzip
	h[98] = pmCompressionNone
	h[99] = PMTileTypePNG
	h[100] = 0
	h[101] = maxZoom

	path := filepath.Join(t.TempDir(), "test.pmtiles")
	var f bytes.Buffer
	f.Write(h)
	f.Write(rootGz)
	f.Write(leafDir)
	f.Write(tileData)
	if err := os.WriteFile(path, f.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpenPMTiles_ReadTile(t *testing.T) {
	// Three tiles: the root tile and two of four at zoom 1.
	a, b, c := []byte("root-png"), []byte("aaaa"), []byte("bbbb")
	root := []pmEntry{
		{ID: mustID(t, 0, 0, 0), Offset: 0, Length: uint32(len(a)), RunLength: 1},
		{ID: mustID(t, 1, 0, 0), Offset: uint64(len(a)), Length: uint32(len(b)), RunLength: 1},
		{ID: mustID(t, 1, 1, 0), Offset: uint64(len(a) + len(b)), Length: uint32(len(c)), RunLength: 1},
	}
	data := append(append(append([]byte{}, a...), b...), c...)
	path := writeTestArchive(t, root, nil, data, 1)

	p, err := OpenPMTiles(path)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	if p.Header().MaxZoom != 1 || p.Header().TileType != PMTileTypePNG {
		t.Errorf("unexpected header %+v", p.Header())
	}
	if !p.Transparent {
		t.Errorf("Expected png archive to carry transparency")
	}
	if x, y := p.NumTiles(1); x != 2 || y != 2 {
		t.Errorf("Expected 2x2 at zoom 1, but got %dx%d", x, y)
	}

	ctx := context.Background()
	for _, tt := range []struct {
		z, x, y int
		want    []byte
	}{
		{0, 0, 0, a},
		{1, 0, 0, b},
		{1, 1, 0, c},
	} {
		got, err := p.ReadTile(ctx, tt.z, tt.x, tt.y)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, tt.want) {
			t.Errorf("%d/%d_%d: Expected %q, but got %q", tt.z, tt.x, tt.y, tt.want, got)
		}
	}

	if _, err := p.ReadTile(ctx, 1, 0, 1); !errors.Is(err, ErrNoSuchTile) {
		t.Errorf("Expected ErrNoSuchTile, but got %v", err)
	}
	if p.TileExists(1, 0, 1) {
		t.Errorf("Expected absent tile to not exist")
	}
	if !p.TileExists(1, 1, 0) {
		t.Errorf("Expected present tile to exist")
	}
}

func TestPMTiles_RunLength(t *testing.T) {
	// One entry with RunLength 4 serves every zoom 1 address.
	data := []byte("shared")
	root := []pmEntry{
		{ID: mustID(t, 1, 0, 0), Offset: 0, Length: uint32(len(data)), RunLength: 4},
	}
	path := writeTestArchive(t, root, nil, data, 1)

	p, err := OpenPMTiles(path)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	ctx := context.Background()
	for _, addr := range [][2]int{{0, 0}, {0, 1}, {1, 0}, {1, 1}} {
		got, err := p.ReadTile(ctx, 1, addr[0], addr[1])
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("1/%d_%d: Expected %q, but got %q", addr[0], addr[1], data, got)
		}
	}
}

func TestPMTiles_LeafDirectory(t *testing.T) {
	a, b := []byte("zero"), []byte("one")
	leafEntries := []pmEntry{
		{ID: mustID(t, 0, 0, 0), Offset: 0, Length: uint32(len(a)), RunLength: 1},
		{ID: mustID(t, 1, 0, 0), Offset: uint64(len(a)), Length: uint32(len(b)), RunLength: 1},
	}
	leafGz := serializeEntries(t, leafEntries)
	// RunLength 0 in the root points into the leaf section.
	root := []pmEntry{
		{ID: 0, Offset: 0, Length: uint32(len(leafGz)), RunLength: 0},
	}
	data := append(append([]byte{}, a...), b...)
	path := writeTestArchive(t, root, leafGz, data, 1)

	p, err := OpenPMTiles(path)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	ctx := context.Background()
	got, err := p.ReadTile(ctx, 0, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, a) {
		t.Errorf("Expected %q, but got %q", a, got)
	}
	got, err = p.ReadTile(ctx, 1, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, b) {
		t.Errorf("Expected %q, but got %q", b, got)
	}
	if _, err := p.ReadTile(ctx, 1, 1, 1); !errors.Is(err, ErrNoSuchTile) {
		t.Errorf("Expected ErrNoSuchTile, but got %v", err)
	}
}

func TestOpenPMTiles_Bad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pmtiles")
	if err := os.WriteFile(path, []byte("not a pmtiles archive, far too short"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenPMTiles(path); !errors.Is(err, ErrBadDescriptor) {
		t.Errorf("Expected ErrBadDescriptor, but got %v", err)
	}
}
