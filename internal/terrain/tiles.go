package terrain

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"golang.org/x/sync/singleflight"
)

// failureTTL bounds how long a transient fetch error is served from the
// cache before the tile is tried again.
const failureTTL = 30 * time.Second

// tiled resolves elevations from a pyramid of terrain-RGB tiles. Concurrent
// lookups of the same tile share one fetch.
type tiled struct {
	zoom  maptile.Zoom
	enc   Encoding
	cache *TileCache
	group singleflight.Group
	fetch func(ctx context.Context, t maptile.Tile) ([]byte, error)
}

func (s *tiled) elevation(ctx context.Context, lon, lat float64) (float64, error) {
	p := orb.Point{lon, lat}
	t := maptile.At(p, s.zoom)
	img, err := s.tile(ctx, t)
	if err != nil {
		return 0, err
	}
	frac := maptile.Fraction(p, s.zoom)
	return samplePixel(img, s.enc, frac.X()-float64(t.X), frac.Y()-float64(t.Y)), nil
}

// cached reports whether the cache already knows the outcome for t.
func (s *tiled) cached(t maptile.Tile) (image.Image, bool, error) {
	if err := s.cache.Failure(t); err != nil {
		return nil, true, err
	}
	img, ok := s.cache.Get(t)
	if !ok {
		return nil, false, nil
	}
	if img == nil {
		return nil, true, fmt.Errorf("tile %d/%d/%d: %w", t.Z, t.X, t.Y, ErrTileNotFound)
	}
	return img, true, nil
}

func (s *tiled) tile(ctx context.Context, t maptile.Tile) (image.Image, error) {
	if img, ok, err := s.cached(t); ok {
		return img, err
	}
	key := fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		// A flight that finished between the lookup above and Do has
		// already filled the cache.
		if img, ok, err := s.cached(t); ok {
			return img, err
		}
		data, err := s.fetch(ctx, t)
		if errors.Is(err, ErrTileNotFound) {
			// Remember the hole so neighbouring cells do not refetch it.
			s.cache.Set(t, nil)
			return nil, err
		}
		if err != nil {
			if ctx.Err() == nil {
				s.cache.SetFailure(t, err, failureTTL)
			}
			return nil, err
		}
		img, format, err := decodeImage(data)
		if err != nil {
			err = fmt.Errorf("tile %s (%s): %w", key, format, err)
			s.cache.SetFailure(t, err, failureTTL)
			return nil, err
		}
		s.cache.Set(t, img)
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(image.Image), nil
}

// TileSource reads terrain-RGB tiles from an XYZ tile server. The URL
// template uses {z}, {x} and {y} placeholders.
type TileSource struct {
	tiled
	template string
	client   *http.Client
}

// NewTileSource builds a source for the template at the given zoom level.
func NewTileSource(template string, zoom int, enc Encoding) (*TileSource, error) {
	if !strings.Contains(template, "{z}") || !strings.Contains(template, "{x}") || !strings.Contains(template, "{y}") {
		return nil, fmt.Errorf("terrain: url template %q needs {z}, {x} and {y}", template)
	}
	if zoom < 0 || zoom > 22 {
		return nil, fmt.Errorf("terrain: zoom %d out of range", zoom)
	}
	s := &TileSource{
		template: template,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	s.zoom = maptile.Zoom(zoom)
	s.enc = enc
	s.cache = NewTileCache(512, 30*time.Minute)
	s.fetch = s.download
	return s, nil
}

// Elevation implements ElevationSource.
func (s *TileSource) Elevation(ctx context.Context, lon, lat float64) (float64, error) {
	return s.elevation(ctx, lon, lat)
}

func (s *TileSource) tileURL(t maptile.Tile) string {
	r := strings.NewReplacer(
		"{z}", strconv.Itoa(int(t.Z)),
		"{x}", strconv.FormatUint(uint64(t.X), 10),
		"{y}", strconv.FormatUint(uint64(t.Y), 10),
	)
	return r.Replace(s.template)
}

func (s *TileSource) download(ctx context.Context, t maptile.Tile) ([]byte, error) {
	url := s.tileURL(t)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent:
		return nil, fmt.Errorf("fetch %s: %w", url, ErrTileNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
