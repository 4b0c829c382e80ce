package ops

import (
	"context"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"

	"github.com/ogierm/geodraft/internal/model"
	"github.com/ogierm/geodraft/internal/stream"
)

// simplifyOp reduces vertex counts with Douglas-Peucker.
type simplifyOp struct{}

func (o *simplifyOp) Kind() model.OpKind { return model.OpSimplify }

func (o *simplifyOp) Run(_ context.Context, in stream.Seq, cfg model.OperationConfig) (stream.Seq, error) {
	tol, err := cfg.RequireFloat("tolerance")
	if err != nil {
		return nil, err
	}
	s := simplify.DouglasPeucker(tol)
	return stream.Transform(in, func(f model.Feature) (model.Feature, bool, error) {
		if f.Geometry == nil {
			return model.Feature{}, false, nil
		}
		// simplifiers work in place, so operate on a copy
		return f.WithGeometry(s.Simplify(orb.Clone(f.Geometry))), true, nil
	}), nil
}
