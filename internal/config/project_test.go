package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogierm/geodraft/internal/model"
)

func writeProject(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "project.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadProject_FullDecode(t *testing.T) {
	path := writeProject(t, `
project: riverside
output: riverside.dxf
styles:
  boundary:
    color: 1
    lineType: DASHED
layers:
  - name: Parcels
    source:
      format: geojson
      path: parcels.geojson
    style:
      preset: boundary
    operations:
      - kind: buffer
        distance: 5.5
      - kind: filter-by-attribute
        field: zone
        equals: residential
`)

	cfg, err := LoadProject(path)
	require.NoError(t, err)

	assert.Equal(t, "riverside", cfg.Name)
	assert.Equal(t, "riverside.dxf", cfg.Output)
	require.Len(t, cfg.Layers, 1)

	l := cfg.Layers[0]
	assert.Equal(t, "Parcels", l.Name)
	assert.True(t, l.Enabled, "layers default to enabled")
	require.NotNil(t, l.Source)
	assert.Equal(t, model.FormatGeoJSON, l.Source.Format)
	assert.Equal(t, "boundary", l.Style.Preset)

	require.Len(t, l.Operations, 2)
	assert.Equal(t, model.OpBuffer, l.Operations[0].Kind)
	d, ok := l.Operations[0].Float("distance")
	require.True(t, ok, "kind-specific params land in Params")
	assert.InDelta(t, 5.5, d, 1e-9)

	field, _ := l.Operations[1].String("field")
	assert.Equal(t, "zone", field)

	assert.Equal(t, 1, cfg.Styles["boundary"].Color)
}

func TestLoadProject_CamelCaseParamsSurviveDecode(t *testing.T) {
	path := writeProject(t, `
layers:
  - name: Parcels
    operations:
      - kind: reproject
        transform: affine
        scale: 2
        translateX: 100
        translateY: 50
`)

	cfg, err := LoadProject(path)
	require.NoError(t, err)

	op := cfg.Layers[0].Operations[0]
	tx, ok := op.Float("translateX")
	require.True(t, ok, "decoding lowercases map keys; the lookup must still resolve translateX")
	assert.InDelta(t, 100, tx, 1e-9)
	ty, ok := op.Float("translateY")
	require.True(t, ok)
	assert.InDelta(t, 50, ty, 1e-9)
}

func TestLoadProject_ExplicitDisableSurvives(t *testing.T) {
	path := writeProject(t, `
layers:
  - name: On
    enabled: true
  - name: Off
    enabled: false
  - name: Implicit
`)

	cfg, err := LoadProject(path)
	require.NoError(t, err)

	assert.True(t, cfg.Layers[0].Enabled)
	assert.False(t, cfg.Layers[1].Enabled)
	assert.True(t, cfg.Layers[2].Enabled)
}

func TestLoadProject_Validation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"missing file is reported by path", "", ""},
		{
			"duplicate layer names",
			"layers:\n  - name: A\n  - name: A\n",
			"duplicate name",
		},
		{
			"unknown source format",
			"layers:\n  - name: A\n    source:\n      format: gml\n      path: a.gml\n",
			"unknown source format",
		},
		{
			"source without path",
			"layers:\n  - name: A\n    source:\n      format: geojson\n",
			"without path",
		},
		{
			"operation without kind",
			"layers:\n  - name: A\n    operations:\n      - distance: 5\n",
			"without kind",
		},
		{
			"raster bbox arity",
			"layers:\n  - name: A\nraster:\n  urlTemplate: http://t/{z}/{x}/{y}.png\n  bbox: [1, 2, 3]\n",
			"bbox",
		},
		{
			"no layers",
			"project: empty\n",
			"no layers",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeProject(t, tc.body)
			if tc.body == "" {
				path = filepath.Join(t.TempDir(), "nope.yaml")
			}
			_, err := LoadProject(path)
			require.Error(t, err)
			if tc.want != "" {
				assert.Contains(t, err.Error(), tc.want)
			}
		})
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	s := FromEnv()
	assert.Equal(t, "info", s.LogLevel)
	assert.Equal(t, "/metrics", s.MetricsPath)
	assert.Equal(t, 512, s.TileCacheSize)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("GEODRAFT_LOG_LEVEL", "debug")
	t.Setenv("GEODRAFT_TILE_CACHE_SIZE", "64")
	t.Setenv("GEODRAFT_LOG_CONSOLE", "yes")

	s := FromEnv()
	assert.Equal(t, "debug", s.LogLevel)
	assert.Equal(t, 64, s.TileCacheSize)
	assert.True(t, s.LogConsole)
}
