// Package model holds the shared data types of the conversion pipeline.
package model

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
)

// Feature is one geographic record. Values are treated as immutable once
// produced: operations build new features instead of mutating inputs, so
// replicated streams never share mutable state.
type Feature struct {
	ID         string
	Geometry   orb.Geometry
	Attributes map[string]any
}

// WithGeometry returns a copy of f carrying g.
func (f Feature) WithGeometry(g orb.Geometry) Feature {
	return Feature{ID: f.ID, Geometry: g, Attributes: f.Attributes}
}

// WithAttributes returns a copy of f carrying attrs. The map is taken as-is;
// callers must not hold on to it afterwards.
func (f Feature) WithAttributes(attrs map[string]any) Feature {
	return Feature{ID: f.ID, Geometry: f.Geometry, Attributes: attrs}
}

// CloneAttributes returns a shallow copy of the attribute map, never nil.
func (f Feature) CloneAttributes() map[string]any {
	out := make(map[string]any, len(f.Attributes))
	for k, v := range f.Attributes {
		out[k] = v
	}
	return out
}

// SourceFormat identifies a feature source reader.
type SourceFormat string

const (
	FormatShapefile SourceFormat = "shapefile"
	FormatGeoJSON   SourceFormat = "geojson"
	FormatCSV       SourceFormat = "csv"
)

// SourceConfig describes where a layer's raw features come from.
type SourceConfig struct {
	Format SourceFormat `mapstructure:"format"`
	Path   string       `mapstructure:"path"`

	// CSV options.
	GeometryColumn string `mapstructure:"geometryColumn"`
	IDColumn       string `mapstructure:"idColumn"`
	Delimiter      string `mapstructure:"delimiter"`
}

// OpKind names an operation implementation.
type OpKind string

const (
	OpBuffer          OpKind = "buffer"
	OpSimplify        OpKind = "simplify"
	OpDissolve        OpKind = "dissolve"
	OpReproject       OpKind = "reproject"
	OpClean           OpKind = "clean"
	OpExplode         OpKind = "explode-multipart"
	OpIntersection    OpKind = "intersection"
	OpMerge           OpKind = "merge"
	OpFilterAttribute OpKind = "filter-by-attribute"
	OpFilterExtent    OpKind = "filter-by-extent"
	OpFieldMapping    OpKind = "field-mapping"
	OpLabelPlacement  OpKind = "label-placement"
)

// OperationConfig is one step of a layer's processing chain. Params carries
// the kind-specific settings; OutputName and SourceName are the two common
// optional fields controlling result naming and explicit input selection.
type OperationConfig struct {
	Kind       OpKind         `mapstructure:"kind"`
	OutputName string         `mapstructure:"outputName"`
	SourceName string         `mapstructure:"sourceName"`
	Params     map[string]any `mapstructure:",remain"`
}

// param finds a named parameter. The config decoder lowercases every map
// key it reads, so an exact lookup falls back to a case-insensitive scan;
// camelCase names like "translateX" keep working.
func (c OperationConfig) param(name string) (any, bool) {
	if v, ok := c.Params[name]; ok {
		return v, true
	}
	for k, v := range c.Params {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

// Float returns the named parameter as a float64 when present.
func (c OperationConfig) Float(name string) (float64, bool) {
	v, ok := c.param(name)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}

// RequireFloat is Float with a missing-parameter error.
func (c OperationConfig) RequireFloat(name string) (float64, error) {
	v, ok := c.Float(name)
	if !ok {
		return 0, fmt.Errorf("operation %q: missing or non-numeric parameter %q", c.Kind, name)
	}
	return v, nil
}

// String returns the named parameter as a string when present.
func (c OperationConfig) String(name string) (string, bool) {
	v, ok := c.param(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// RequireString is String with a missing-parameter error.
func (c OperationConfig) RequireString(name string) (string, error) {
	v, ok := c.String(name)
	if !ok || v == "" {
		return "", fmt.Errorf("operation %q: missing parameter %q", c.Kind, name)
	}
	return v, nil
}

// StringSlice returns the named parameter as a list of strings. Both
// []string and []any-of-string decodings are accepted, since viper hands
// back either depending on the config file shape.
func (c OperationConfig) StringSlice(name string) ([]string, bool) {
	v, ok := c.param(name)
	if !ok {
		return nil, false
	}
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

// FloatSlice returns the named parameter as a list of float64.
func (c OperationConfig) FloatSlice(name string) ([]float64, bool) {
	v, ok := c.param(name)
	if !ok {
		return nil, false
	}
	switch t := v.(type) {
	case []float64:
		return t, true
	case []any:
		out := make([]float64, 0, len(t))
		for _, e := range t {
			switch n := e.(type) {
			case float64:
				out = append(out, n)
			case int:
				out = append(out, float64(n))
			default:
				return nil, false
			}
		}
		return out, true
	}
	return nil, false
}

// StyleRef points a layer at a style preset plus optional overrides.
// Zero values mean "inherit from the preset".
type StyleRef struct {
	Preset     string  `mapstructure:"preset"`
	Color      int     `mapstructure:"color"`
	LineType   string  `mapstructure:"lineType"`
	TextHeight float64 `mapstructure:"textHeight"`
	Hatch      string  `mapstructure:"hatch"`
}

// LayerConfig is one named unit of work: a source plus an ordered operation
// chain. Read-only during pipeline execution.
type LayerConfig struct {
	Name       string            `mapstructure:"name"`
	Enabled    bool              `mapstructure:"enabled"`
	Source     *SourceConfig     `mapstructure:"source"`
	Operations []OperationConfig `mapstructure:"operations"`
	Style      StyleRef          `mapstructure:"style"`
}

// RasterConfig configures the optional basemap tile underlay.
type RasterConfig struct {
	URLTemplate string    `mapstructure:"urlTemplate"`
	Zoom        int       `mapstructure:"zoom"`
	BBox        []float64 `mapstructure:"bbox"`
	RedisAddr   string    `mapstructure:"redisAddr"`
	CacheSize   int       `mapstructure:"cacheSize"`
}

// ProjectConfig is a fully loaded project file.
type ProjectConfig struct {
	Name   string              `mapstructure:"project"`
	Output string              `mapstructure:"output"`
	Layers []LayerConfig       `mapstructure:"layers"`
	Styles map[string]StyleRef `mapstructure:"styles"`
	Raster *RasterConfig       `mapstructure:"raster"`
}

// LayerNames lists the configured layers in declaration order.
func (p ProjectConfig) LayerNames() []string {
	out := make([]string, 0, len(p.Layers))
	for _, l := range p.Layers {
		out = append(out, l.Name)
	}
	return out
}
