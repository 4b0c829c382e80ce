package ops

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/ogierm/geodraft/internal/model"
	"github.com/ogierm/geodraft/internal/stream"
)

// reprojectOp transforms coordinates. Supported transforms:
//
//	wgs84-to-webmercator, webmercator-to-wgs84  (orb/project)
//	affine                                      (scale + translate params)
//
// CAD drawings are usually produced in a projected, metric system, so the
// typical chain reprojects once right after the source.
type reprojectOp struct{}

func (o *reprojectOp) Kind() model.OpKind { return model.OpReproject }

func (o *reprojectOp) Run(_ context.Context, in stream.Seq, cfg model.OperationConfig) (stream.Seq, error) {
	name, err := cfg.RequireString("transform")
	if err != nil {
		return nil, err
	}

	var proj orb.Projection
	switch name {
	case "wgs84-to-webmercator":
		proj = project.WGS84.ToMercator
	case "webmercator-to-wgs84":
		proj = project.Mercator.ToWGS84
	case "affine":
		scale, ok := cfg.Float("scale")
		if !ok {
			scale = 1
		}
		tx, _ := cfg.Float("translateX")
		ty, _ := cfg.Float("translateY")
		proj = func(p orb.Point) orb.Point {
			return orb.Point{p[0]*scale + tx, p[1]*scale + ty}
		}
	default:
		return nil, fmt.Errorf("operation %q: unknown transform %q", cfg.Kind, name)
	}

	return stream.Transform(in, func(f model.Feature) (model.Feature, bool, error) {
		if f.Geometry == nil {
			return model.Feature{}, false, nil
		}
		return f.WithGeometry(project.Geometry(orb.Clone(f.Geometry), proj)), true, nil
	}), nil
}
