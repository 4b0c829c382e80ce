// Package raster downloads XYZ basemap tiles for the drawing's extent so a
// georeferenced underlay can be assembled next to the CAD output.
package raster

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/paulmach/orb"

	"github.com/ogierm/geodraft/internal/model"
)

// Tile is one downloaded slippy-map tile with its WGS84 bound.
type Tile struct {
	Z, X, Y int
	Bound   orb.Bound
	Data    []byte
}

// Downloader fetches tiles through the tiered cache.
type Downloader struct {
	log      *slog.Logger
	client   *retryablehttp.Client
	cache    TileCache
	template string
	closer   io.Closer
}

func NewDownloader(ctx context.Context, log *slog.Logger, cfg model.RasterConfig) (*Downloader, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.URLTemplate == "" {
		return nil, fmt.Errorf("raster: urlTemplate is required")
	}

	mem, err := newMemoryCache(cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	var cache TileCache = mem
	var closer io.Closer
	if cfg.RedisAddr != "" {
		rc, err := newRedisCache(ctx, log, cfg.RedisAddr)
		if err != nil {
			// shared tier is an optimization, not a requirement
			log.Warn("redis tile cache unavailable, using memory only", "err", err)
		} else {
			cache = &tieredCache{front: mem, back: rc}
			closer = rc
		}
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil

	return &Downloader{
		log:      log,
		client:   client,
		cache:    cache,
		template: cfg.URLTemplate,
		closer:   closer,
	}, nil
}

func (d *Downloader) Close() error {
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}

// FetchExtent downloads every tile covering the WGS84 bound at the given
// zoom, row-major from the northwest corner.
func (d *Downloader) FetchExtent(ctx context.Context, b orb.Bound, zoom int) ([]Tile, error) {
	minX, maxY := tileAt(b.Min[0], b.Min[1], zoom)
	maxX, minY := tileAt(b.Max[0], b.Max[1], zoom)

	var tiles []Tile
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			data, err := d.Fetch(ctx, zoom, x, y)
			if err != nil {
				return nil, err
			}
			tiles = append(tiles, Tile{
				Z: zoom, X: x, Y: y,
				Bound: tileBound(x, y, zoom),
				Data:  data,
			})
		}
	}
	d.log.Info("tiles fetched", "zoom", zoom, "count", len(tiles))
	return tiles, nil
}

// Fetch returns one tile payload, from cache when possible.
func (d *Downloader) Fetch(ctx context.Context, z, x, y int) ([]byte, error) {
	key := tileKey(d.template, z, x, y)
	if data, ok := d.cache.Get(ctx, key); ok {
		return data, nil
	}

	url := expandTemplate(d.template, z, x, y)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching tile %d/%d/%d: %w", z, x, y, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching tile %d/%d/%d: status %d", z, x, y, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading tile %d/%d/%d: %w", z, x, y, err)
	}

	d.cache.Set(ctx, key, data)
	return data, nil
}

// SaveAll writes tiles into dir as z_x_y.png plus a tab-separated index of
// tile bounds for georeferencing the underlay.
func SaveAll(dir string, tiles []Tile) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	var index strings.Builder
	for _, t := range tiles {
		name := fmt.Sprintf("%d_%d_%d.png", t.Z, t.X, t.Y)
		if err := os.WriteFile(filepath.Join(dir, name), t.Data, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(&index, "%s\t%g\t%g\t%g\t%g\n",
			name, t.Bound.Min[0], t.Bound.Min[1], t.Bound.Max[0], t.Bound.Max[1])
	}
	return os.WriteFile(filepath.Join(dir, "index.tsv"), []byte(index.String()), 0o644)
}

func expandTemplate(template string, z, x, y int) string {
	r := strings.NewReplacer(
		"{z}", strconv.Itoa(z),
		"{x}", strconv.Itoa(x),
		"{y}", strconv.Itoa(y),
	)
	return r.Replace(template)
}

// tileAt maps a WGS84 coordinate to slippy-map tile indices.
func tileAt(lon, lat float64, zoom int) (x, y int) {
	n := math.Exp2(float64(zoom))
	x = int(math.Floor((lon + 180) / 360 * n))
	latRad := lat * math.Pi / 180
	y = int(math.Floor((1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n))
	x = clampTile(x, n)
	y = clampTile(y, n)
	return x, y
}

func clampTile(v int, n float64) int {
	if v < 0 {
		return 0
	}
	if max := int(n) - 1; v > max {
		return max
	}
	return v
}

// tileBound is the inverse of tileAt for a whole tile.
func tileBound(x, y, zoom int) orb.Bound {
	n := math.Exp2(float64(zoom))
	lonMin := float64(x)/n*360 - 180
	lonMax := float64(x+1)/n*360 - 180
	latMax := math.Atan(math.Sinh(math.Pi*(1-2*float64(y)/n))) * 180 / math.Pi
	latMin := math.Atan(math.Sinh(math.Pi*(1-2*float64(y+1)/n))) * 180 / math.Pi
	return orb.Bound{Min: orb.Point{lonMin, latMin}, Max: orb.Point{lonMax, latMax}}
}
