package ops

import (
	"context"

	"github.com/paulmach/orb"

	"github.com/ogierm/geodraft/internal/model"
	"github.com/ogierm/geodraft/internal/stream"
)

// cleanOp drops features with nil or empty geometries and removes
// consecutive duplicate vertices from lines and rings.
type cleanOp struct{}

func (o *cleanOp) Kind() model.OpKind { return model.OpClean }

func (o *cleanOp) Run(_ context.Context, in stream.Seq, _ model.OperationConfig) (stream.Seq, error) {
	return stream.Transform(in, func(f model.Feature) (model.Feature, bool, error) {
		g := cleanGeometry(f.Geometry)
		if g == nil {
			return model.Feature{}, false, nil
		}
		return f.WithGeometry(g), true, nil
	}), nil
}

func cleanGeometry(g orb.Geometry) orb.Geometry {
	switch t := g.(type) {
	case nil:
		return nil
	case orb.Point:
		return t
	case orb.MultiPoint:
		if len(t) == 0 {
			return nil
		}
		return t
	case orb.LineString:
		ls := orb.LineString(dedupe(t))
		if len(ls) < 2 {
			return nil
		}
		return ls
	case orb.MultiLineString:
		out := make(orb.MultiLineString, 0, len(t))
		for _, ls := range t {
			if c := cleanGeometry(ls); c != nil {
				out = append(out, c.(orb.LineString))
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case orb.Ring:
		r := orb.Ring(dedupe(t))
		if len(r) < 4 {
			return nil
		}
		return r
	case orb.Polygon:
		out := make(orb.Polygon, 0, len(t))
		for i, r := range t {
			c := cleanGeometry(r)
			if c == nil {
				if i == 0 {
					return nil // degenerate shell voids the polygon
				}
				continue
			}
			out = append(out, c.(orb.Ring))
		}
		return out
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, 0, len(t))
		for _, p := range t {
			if c := cleanGeometry(p); c != nil {
				out = append(out, c.(orb.Polygon))
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case orb.Collection:
		out := make(orb.Collection, 0, len(t))
		for _, m := range t {
			if c := cleanGeometry(m); c != nil {
				out = append(out, c)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	}
	return g
}

func dedupe(pts []orb.Point) []orb.Point {
	out := make([]orb.Point, 0, len(pts))
	for i, p := range pts {
		if i > 0 && p == pts[i-1] {
			continue
		}
		out = append(out, p)
	}
	return out
}
