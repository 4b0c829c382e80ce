package ops

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/ogierm/geodraft/internal/model"
	"github.com/ogierm/geodraft/internal/stream"
)

// explodeOp splits multi-part geometries into one feature per part. Part
// features carry the parent's attributes and an ID suffixed with the part
// index; single-part features pass through unchanged.
type explodeOp struct{}

func (o *explodeOp) Kind() model.OpKind { return model.OpExplode }

func (o *explodeOp) Run(_ context.Context, in stream.Seq, _ model.OperationConfig) (stream.Seq, error) {
	out := func(yield func(model.Feature, error) bool) {
		for f, err := range in {
			if err != nil {
				yield(model.Feature{}, err)
				return
			}
			parts := explodeGeometry(f.Geometry)
			if len(parts) == 1 {
				if !yield(f.WithGeometry(parts[0]), nil) {
					return
				}
				continue
			}
			for i, g := range parts {
				part := model.Feature{
					ID:         partID(f.ID, i),
					Geometry:   g,
					Attributes: f.Attributes,
				}
				if !yield(part, nil) {
					return
				}
			}
		}
	}
	return out, nil
}

func partID(id string, i int) string {
	if id == "" {
		return ""
	}
	return fmt.Sprintf("%s/%d", id, i)
}

func explodeGeometry(g orb.Geometry) []orb.Geometry {
	switch t := g.(type) {
	case nil:
		return nil
	case orb.MultiPoint:
		out := make([]orb.Geometry, 0, len(t))
		for _, p := range t {
			out = append(out, p)
		}
		return out
	case orb.MultiLineString:
		out := make([]orb.Geometry, 0, len(t))
		for _, ls := range t {
			out = append(out, ls)
		}
		return out
	case orb.MultiPolygon:
		out := make([]orb.Geometry, 0, len(t))
		for _, p := range t {
			out = append(out, p)
		}
		return out
	case orb.Collection:
		var out []orb.Geometry
		for _, m := range t {
			out = append(out, explodeGeometry(m)...)
		}
		return out
	}
	return []orb.Geometry{g}
}
