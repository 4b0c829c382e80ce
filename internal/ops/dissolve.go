package ops

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/paulmach/orb"

	"github.com/ogierm/geodraft/internal/model"
	"github.com/ogierm/geodraft/internal/stream"
)

// dissolveOp merges all features sharing an attribute value into one
// multi-geometry feature per value. Groups are emitted in first-seen order.
// This kind needs its whole input, so the returned sequence drains the
// input when first driven; it stays lazy until then.
type dissolveOp struct {
	log *slog.Logger
}

func (o *dissolveOp) Kind() model.OpKind { return model.OpDissolve }

func (o *dissolveOp) Run(_ context.Context, in stream.Seq, cfg model.OperationConfig) (stream.Seq, error) {
	field, err := cfg.RequireString("field")
	if err != nil {
		return nil, err
	}

	out := func(yield func(model.Feature, error) bool) {
		// template is the group's first feature; the merged output carries
		// its attributes, so shared fields survive the dissolve
		type group struct {
			key      string
			members  []orb.Geometry
			template model.Feature
		}
		var order []*group
		byKey := make(map[string]*group)

		for f, ferr := range in {
			if ferr != nil {
				yield(model.Feature{}, ferr)
				return
			}
			v, ok := f.Attributes[field]
			if !ok {
				o.log.Debug("dissolve skipped feature without field",
					"field", field, "id", f.ID)
				continue
			}
			key := fmt.Sprint(v)
			g, ok := byKey[key]
			if !ok {
				g = &group{key: key, template: f}
				byKey[key] = g
				order = append(order, g)
			}
			if f.Geometry != nil {
				g.members = append(g.members, f.Geometry)
			}
		}

		for _, g := range order {
			merged := model.Feature{
				ID:         g.key,
				Geometry:   combine(g.members),
				Attributes: g.template.CloneAttributes(),
			}
			if !yield(merged, nil) {
				return
			}
		}
	}
	return out, nil
}

// combine collapses a group's geometries into the tightest multi type that
// fits: MultiPolygon when all parts are areal, MultiLineString when all are
// linear, MultiPoint for points, a Collection otherwise.
func combine(members []orb.Geometry) orb.Geometry {
	if len(members) == 0 {
		return nil
	}
	if len(members) == 1 {
		return members[0]
	}

	var (
		polys  orb.MultiPolygon
		lines  orb.MultiLineString
		points orb.MultiPoint
		mixed  bool
	)
	for _, g := range members {
		switch t := g.(type) {
		case orb.Polygon:
			polys = append(polys, t)
		case orb.MultiPolygon:
			polys = append(polys, t...)
		case orb.Ring:
			polys = append(polys, orb.Polygon{t})
		case orb.LineString:
			lines = append(lines, t)
		case orb.MultiLineString:
			lines = append(lines, t...)
		case orb.Point:
			points = append(points, t)
		case orb.MultiPoint:
			points = append(points, t...)
		default:
			mixed = true
		}
	}

	switch {
	case mixed,
		len(polys) > 0 && (len(lines) > 0 || len(points) > 0),
		len(lines) > 0 && len(points) > 0:
		return orb.Collection(members)
	case len(polys) > 0:
		return polys
	case len(lines) > 0:
		return lines
	default:
		return points
	}
}
