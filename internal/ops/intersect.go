package ops

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"

	"github.com/ogierm/geodraft/internal/model"
	"github.com/ogierm/geodraft/internal/stream"
)

// intersectionOp clips geometries to a rectangular extent. Features left
// without geometry after clipping are dropped.
type intersectionOp struct{}

func (o *intersectionOp) Kind() model.OpKind { return model.OpIntersection }

func (o *intersectionOp) Run(_ context.Context, in stream.Seq, cfg model.OperationConfig) (stream.Seq, error) {
	b, err := boundParam(cfg)
	if err != nil {
		return nil, fmt.Errorf("operation %q: parameter \"bbox\" [minx miny maxx maxy] or \"clipFrom\" naming a stream is required", cfg.Kind)
	}
	return stream.Transform(in, func(f model.Feature) (model.Feature, bool, error) {
		if f.Geometry == nil {
			return model.Feature{}, false, nil
		}
		clipped := clip.Geometry(b, orb.Clone(f.Geometry))
		if clipped == nil {
			return model.Feature{}, false, nil
		}
		return f.WithGeometry(clipped), true, nil
	}), nil
}

// filterExtentOp keeps features whose bound intersects the given extent,
// without altering geometry.
type filterExtentOp struct{}

func (o *filterExtentOp) Kind() model.OpKind { return model.OpFilterExtent }

func (o *filterExtentOp) Run(_ context.Context, in stream.Seq, cfg model.OperationConfig) (stream.Seq, error) {
	b, err := boundParam(cfg)
	if err != nil {
		return nil, err
	}
	return stream.Transform(in, func(f model.Feature) (model.Feature, bool, error) {
		if f.Geometry == nil || !b.Intersects(f.Geometry.Bound()) {
			return model.Feature{}, false, nil
		}
		return f, true, nil
	}), nil
}

// ClipSource returns the stream name an intersection clips against when the
// clip region comes from another stream instead of a literal bbox. The
// executor resolves the name, drains that replica, and rewrites the config
// with the union bound before Run sees it. A literal bbox wins.
func ClipSource(cfg model.OperationConfig) (string, bool) {
	if cfg.Kind != model.OpIntersection {
		return "", false
	}
	if vals, ok := cfg.FloatSlice("bbox"); ok && len(vals) == 4 {
		return "", false
	}
	name, ok := cfg.String("clipFrom")
	return name, ok && name != ""
}

// boundParam reads the required bbox parameter [minx, miny, maxx, maxy].
func boundParam(cfg model.OperationConfig) (orb.Bound, error) {
	vals, ok := cfg.FloatSlice("bbox")
	if !ok || len(vals) != 4 {
		return orb.Bound{}, fmt.Errorf("operation %q: parameter \"bbox\" must be [minx miny maxx maxy]", cfg.Kind)
	}
	return orb.Bound{
		Min: orb.Point{vals[0], vals[1]},
		Max: orb.Point{vals[2], vals[3]},
	}, nil
}
