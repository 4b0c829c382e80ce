package ops

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/ogierm/geodraft/internal/model"
	"github.com/ogierm/geodraft/internal/stream"
)

// defaultLabelHeight is the text height written when the config gives none.
const defaultLabelHeight = 2.5

// labelPlacementOp derives one point feature per input feature, anchored at
// the polygon centroid, line midpoint, or the point itself, carrying the
// label text and height as attributes for the text renderer.
type labelPlacementOp struct {
	log *slog.Logger
}

func (o *labelPlacementOp) Kind() model.OpKind { return model.OpLabelPlacement }

func (o *labelPlacementOp) Run(_ context.Context, in stream.Seq, cfg model.OperationConfig) (stream.Seq, error) {
	field, err := cfg.RequireString("field")
	if err != nil {
		return nil, err
	}
	height, ok := cfg.Float("height")
	if !ok {
		height = defaultLabelHeight
	}

	return stream.Transform(in, func(f model.Feature) (model.Feature, bool, error) {
		v, ok := f.Attributes[field]
		if !ok {
			o.log.Debug("label skipped feature without field", "field", field, "id", f.ID)
			return model.Feature{}, false, nil
		}
		anchor, ok := labelAnchor(f.Geometry)
		if !ok {
			return model.Feature{}, false, nil
		}
		return model.Feature{
			ID:       f.ID,
			Geometry: anchor,
			Attributes: map[string]any{
				"label":        fmt.Sprint(v),
				"label_height": height,
			},
		}, true, nil
	}), nil
}

func labelAnchor(g orb.Geometry) (orb.Point, bool) {
	switch t := g.(type) {
	case nil:
		return orb.Point{}, false
	case orb.Point:
		return t, true
	case orb.LineString:
		return lineMidpoint(t)
	case orb.MultiLineString:
		if len(t) == 0 {
			return orb.Point{}, false
		}
		return lineMidpoint(t[0])
	default:
		c, _ := planar.CentroidArea(g)
		return c, true
	}
}

// lineMidpoint walks to the point halfway along the line's length.
func lineMidpoint(ls orb.LineString) (orb.Point, bool) {
	if len(ls) == 0 {
		return orb.Point{}, false
	}
	if len(ls) == 1 {
		return ls[0], true
	}
	total := 0.0
	for i := 1; i < len(ls); i++ {
		total += planar.Distance(ls[i-1], ls[i])
	}
	half := total / 2
	walked := 0.0
	for i := 1; i < len(ls); i++ {
		seg := planar.Distance(ls[i-1], ls[i])
		if walked+seg >= half && seg > 0 {
			t := (half - walked) / seg
			return orb.Point{
				ls[i-1][0] + t*(ls[i][0]-ls[i-1][0]),
				ls[i-1][1] + t*(ls[i][1]-ls[i-1][1]),
			}, true
		}
		walked += seg
	}
	return ls[len(ls)-1], true
}
