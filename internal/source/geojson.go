package source

import (
	"context"
	"fmt"
	"os"

	"github.com/paulmach/orb/geojson"

	"github.com/ogierm/geodraft/internal/model"
	"github.com/ogierm/geodraft/internal/stream"
)

// geoJSONReader parses a whole FeatureCollection up front (the format is a
// single JSON document, there is nothing to stream) and yields lazily.
type geoJSONReader struct{}

func (r *geoJSONReader) Read(ctx context.Context, cfg model.SourceConfig) (stream.Seq, error) {
	raw, err := os.ReadFile(cfg.Path)
	if err != nil {
		return nil, &DataReadError{Path: cfg.Path, Format: cfg.Format, Cause: err}
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, &DataReadError{Path: cfg.Path, Format: cfg.Format, Cause: err}
	}

	out := func(yield func(model.Feature, error) bool) {
		for _, gf := range fc.Features {
			if ctx.Err() != nil {
				yield(model.Feature{}, ctx.Err())
				return
			}
			f := model.Feature{
				ID:         featureID(gf),
				Geometry:   gf.Geometry,
				Attributes: map[string]any(gf.Properties),
			}
			if !yield(f, nil) {
				return
			}
		}
	}
	return out, nil
}

func featureID(gf *geojson.Feature) string {
	switch id := gf.ID.(type) {
	case nil:
		return ""
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}
