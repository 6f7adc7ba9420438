package tilesource

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"

	"github.com/lcl45/openseadragon/common"
	"github.com/lcl45/openseadragon/tile"
)

// Slippy is an XYZ web-map source: a square pyramid of 2^z by 2^z tiles per
// zoom level. These sources wrap horizontally; enable horizontal wrap on
// the scheduler when panning past the antimeridian matters.
type Slippy struct {
	Pyramid

	// URLTemplate carries {z}, {x}, {y} and optionally {s} placeholders.
	URLTemplate string

	// Subdomains rotate into {s} by tile address, spreading requests
	// across tile server aliases.
	Subdomains []string
}

func NewSlippy(template string, minZoom, maxZoom, tileSize int, subdomains ...string) (*Slippy, error) {
	if !strings.Contains(template, "{z}") || !strings.Contains(template, "{x}") || !strings.Contains(template, "{y}") {
		return nil, fmt.Errorf("%w: template %q missing {z}/{x}/{y}", ErrBadDescriptor, template)
	}
	if minZoom < 0 || maxZoom < minZoom {
		return nil, fmt.Errorf("%w: zoom range %d..%d", ErrBadDescriptor, minZoom, maxZoom)
	}
	if tileSize <= 0 {
		tileSize = 256
	}
	ext := strings.TrimPrefix(extOf(template), ".")
	return &Slippy{
		Pyramid: Pyramid{
			Width:       tileSize << maxZoom,
			Height:      tileSize << maxZoom,
			TileWidth:   tileSize,
			TileHeight:  tileSize,
			Overlap:     0,
			Min:         minZoom,
			Max:         maxZoom,
			Transparent: common.FormatMaybeTransparent(normalizeFormat(ext)),
		},
		URLTemplate: template,
		Subdomains:  subdomains,
	}, nil
}

func extOf(template string) string {
	if i := strings.IndexAny(template, "?#"); i >= 0 {
		template = template[:i]
	}
	if i := strings.LastIndex(template, "."); i > strings.LastIndex(template, "/") {
		return template[i:]
	}
	return ""
}

func (s *Slippy) TileURL(level, x, y int) string {
	return s.memoized(tile.Address{Level: level, X: x, Y: y}, func() string {
		sub := ""
		if len(s.Subdomains) > 0 {
			sub = s.Subdomains[common.PositiveModuloInt(x+y, len(s.Subdomains))]
		}
		return strings.NewReplacer(
			"{s}", sub,
			"{z}", strconv.Itoa(level),
			"{x}", strconv.Itoa(x),
			"{y}", strconv.Itoa(y),
		).Replace(s.URLTemplate)
	})
}

// webMercatorY projects latitude to the normalized [0,1) vertical of the
// square slippy world.
func webMercatorY(lat s1.Angle) float64 {
	rad := lat.Radians()
	return (1 - math.Log(math.Tan(rad)+1/math.Cos(rad))/math.Pi) / 2
}

// TileAtLatLng returns the slippy address containing a geographic point at
// a zoom level. Latitudes beyond the Web Mercator limit land on the edge
// rows.
func TileAtLatLng(ll s2.LatLng, zoom int) tile.Address {
	n := float64(uint(1) << uint(zoom))
	x := math.Floor((ll.Lng.Degrees() + 180) / 360 * n)
	y := math.Floor(webMercatorY(ll.Lat) * n)
	return tile.Address{
		Level: zoom,
		X:     int(common.Clamp(x, 0, n-1)),
		Y:     int(common.Clamp(y, 0, n-1)),
	}
}

// LatLngAtTile returns the northwest corner of a slippy address.
func LatLngAtTile(a tile.Address) s2.LatLng {
	n := float64(uint(1) << uint(a.Level))
	lng := float64(a.X)/n*360 - 180
	lat := math.Atan(math.Sinh(math.Pi*(1-2*float64(a.Y)/n))) * 180 / math.Pi
	return s2.LatLngFromDegrees(lat, lng)
}

// PointAtLatLng maps a geographic point into the source's normalized image
// coordinates, for aiming the viewport at a place.
func (s *Slippy) PointAtLatLng(ll s2.LatLng) orb.Point {
	x := common.Clamp((ll.Lng.Degrees()+180)/360, 0, 1)
	y := common.Clamp(webMercatorY(ll.Lat), 0, 1)
	return orb.Point{x, y}
}
