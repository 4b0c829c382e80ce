package raster

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogierm/geodraft/internal/model"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tileServer(t *testing.T, hits *int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hits++
		fmt.Fprintf(w, "tile:%s", r.URL.Path)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_CachesInMemory(t *testing.T) {
	hits := 0
	srv := tileServer(t, &hits)

	d, err := NewDownloader(context.Background(), discard(), model.RasterConfig{
		URLTemplate: srv.URL + "/{z}/{x}/{y}.png",
	})
	require.NoError(t, err)

	ctx := context.Background()
	first, err := d.Fetch(ctx, 12, 2187, 1202)
	require.NoError(t, err)
	second, err := d.Fetch(ctx, 12, 2187, 1202)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, hits, "second fetch must come from cache")
}

func TestFetch_SharedRedisTierSurvivesNewDownloader(t *testing.T) {
	hits := 0
	srv := tileServer(t, &hits)
	mr := miniredis.RunT(t)

	cfg := model.RasterConfig{
		URLTemplate: srv.URL + "/{z}/{x}/{y}.png",
		RedisAddr:   mr.Addr(),
	}
	ctx := context.Background()

	d1, err := NewDownloader(ctx, discard(), cfg)
	require.NoError(t, err)
	_, err = d1.Fetch(ctx, 10, 1, 2)
	require.NoError(t, err)
	require.NoError(t, d1.Close())

	// a fresh downloader has a cold memory tier but shares redis
	d2, err := NewDownloader(ctx, discard(), cfg)
	require.NoError(t, err)
	defer d2.Close()
	_, err = d2.Fetch(ctx, 10, 1, 2)
	require.NoError(t, err)

	assert.Equal(t, 1, hits, "tile must be served from the shared tier")
}

func TestFetch_UpstreamErrorIsReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	d, err := NewDownloader(context.Background(), discard(), model.RasterConfig{
		URLTemplate: srv.URL + "/{z}/{x}/{y}.png",
	})
	require.NoError(t, err)

	_, err = d.Fetch(context.Background(), 1, 0, 0)
	assert.Error(t, err)
}

func TestFetchExtent_CoversBound(t *testing.T) {
	hits := 0
	srv := tileServer(t, &hits)

	d, err := NewDownloader(context.Background(), discard(), model.RasterConfig{
		URLTemplate: srv.URL + "/{z}/{x}/{y}.png",
	})
	require.NoError(t, err)

	// central Gothenburg, a few tiles at z12
	b := orb.Bound{Min: orb.Point{11.93, 57.69}, Max: orb.Point{12.01, 57.72}}
	tiles, err := d.FetchExtent(context.Background(), b, 12)
	require.NoError(t, err)
	require.NotEmpty(t, tiles)

	union := tiles[0].Bound
	for _, tl := range tiles {
		assert.Equal(t, 12, tl.Z)
		union = union.Union(tl.Bound)
	}
	assert.True(t, union.Contains(b.Min), "tiles must cover the extent's south-west corner")
	assert.True(t, union.Contains(b.Max), "tiles must cover the extent's north-east corner")
}

func TestTileMath_RoundTrips(t *testing.T) {
	x, y := tileAt(11.97, 57.70, 12)
	b := tileBound(x, y, 12)
	assert.True(t, b.Contains(orb.Point{11.97, 57.70}))
}
