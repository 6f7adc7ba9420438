package tilesource

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/lcl45/openseadragon/common"
	"github.com/lcl45/openseadragon/params"
	"github.com/lcl45/openseadragon/tile"
)

// DZI is a Deep Zoom Image source. The descriptor names the full image
// size, tile size, overlap and format; tiles live under a sibling
// {name}_files/{level}/{x}_{y}.{format} tree.
type DZI struct {
	Pyramid
	Format string

	// TilesURL is the _files/ directory, derived from the descriptor URL.
	TilesURL string
}

type dziXML struct {
	XMLName  xml.Name `xml:"Image"`
	TileSize int      `xml:"TileSize,attr"`
	Overlap  int      `xml:"Overlap,attr"`
	Format   string   `xml:"Format,attr"`
	Size     struct {
		Width  int `xml:"Width,attr"`
		Height int `xml:"Height,attr"`
	} `xml:"Size"`
}

// NewDZI parses a DZI descriptor, XML or the JSON flavor, and derives the
// pyramid from it. descriptorURL locates the descriptor itself and anchors
// the tile tree.
func NewDZI(descriptorURL string, descriptor []byte) (*DZI, error) {
	trimmed := bytes.TrimSpace(descriptor)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty descriptor %q", ErrBadDescriptor, descriptorURL)
	}

	var width, height, tileSize, overlap int
	var format string
	var err error
	if trimmed[0] == '<' {
		width, height, tileSize, overlap, format, err = parseDZIXML(trimmed)
	} else {
		width, height, tileSize, overlap, format, err = parseDZIJSON(trimmed)
	}
	if err != nil {
		return nil, err
	}

	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: size %dx%d", ErrBadDescriptor, width, height)
	}
	if tileSize <= 0 {
		return nil, fmt.Errorf("%w: tile size %d", ErrBadDescriptor, tileSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap %d", ErrBadDescriptor, overlap)
	}
	if format == "" {
		format = params.DefaultTileFormat
	}

	d := &DZI{
		Pyramid: Pyramid{
			Width:       width,
			Height:      height,
			TileWidth:   tileSize,
			TileHeight:  tileSize,
			Overlap:     overlap,
			Min:         0,
			Max:         int(math.Ceil(math.Log2(math.Max(float64(width), float64(height))))),
			Transparent: common.FormatMaybeTransparent(normalizeFormat(format)),
		},
		Format:   format,
		TilesURL: tilesURL(descriptorURL),
	}
	return d, nil
}

func parseDZIXML(data []byte) (width, height, tileSize, overlap int, format string, err error) {
	var img dziXML
	if err := xml.Unmarshal(data, &img); err != nil {
		return 0, 0, 0, 0, "", fmt.Errorf("%w: %v", ErrBadDescriptor, err)
	}
	return img.Size.Width, img.Size.Height, img.TileSize, img.Overlap, img.Format, nil
}

func parseDZIJSON(data []byte) (width, height, tileSize, overlap int, format string, err error) {
	img := gjson.GetBytes(data, "Image")
	if !img.Exists() {
		return 0, 0, 0, 0, "", fmt.Errorf("%w: no Image object", ErrBadDescriptor)
	}
	return int(img.Get("Size.Width").Int()),
		int(img.Get("Size.Height").Int()),
		int(img.Get("TileSize").Int()),
		int(img.Get("Overlap").Int()),
		img.Get("Format").String(),
		nil
}

// tilesURL swaps the descriptor's extension for the _files/ tree,
// dropping any query or fragment first.
func tilesURL(descriptorURL string) string {
	u := descriptorURL
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	if i := strings.LastIndex(u, "."); i > strings.LastIndex(u, "/") {
		u = u[:i]
	}
	return u + "_files/"
}

func normalizeFormat(format string) string {
	f := strings.ToLower(format)
	if f == "jpg" {
		return "jpeg"
	}
	return f
}

func (d *DZI) TileURL(level, x, y int) string {
	return d.memoized(tile.Address{Level: level, X: x, Y: y}, func() string {
		return fmt.Sprintf("%s%d/%d_%d.%s", d.TilesURL, level, x, y, d.Format)
	})
}

// LoadDZI reads a descriptor from an http(s) URL or a local path and
// parses it.
func LoadDZI(ctx context.Context, pathOrURL string) (*DZI, error) {
	var data []byte
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pathOrURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: GET %s: %s", ErrBadDescriptor, pathOrURL, resp.Status)
		}
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		data, err = os.ReadFile(pathOrURL)
		if err != nil {
			return nil, err
		}
	}
	return NewDZI(pathOrURL, data)
}
