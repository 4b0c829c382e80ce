package source

import (
	"context"
	"fmt"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"

	"github.com/ogierm/geodraft/internal/model"
	"github.com/ogierm/geodraft/internal/stream"
)

// shapefileReader walks a .shp/.dbf pair record by record. Geometry comes
// from the shape records, attributes from the DBF fields.
type shapefileReader struct{}

func (r *shapefileReader) Read(ctx context.Context, cfg model.SourceConfig) (stream.Seq, error) {
	out := func(yield func(model.Feature, error) bool) {
		sr, err := shp.Open(cfg.Path)
		if err != nil {
			yield(model.Feature{}, &DataReadError{Path: cfg.Path, Format: cfg.Format, Cause: err})
			return
		}
		defer sr.Close()

		fields := sr.Fields()
		names := make([]string, len(fields))
		for i, f := range fields {
			names[i] = strings.TrimRight(f.String(), "\x00")
		}

		for sr.Next() {
			if ctx.Err() != nil {
				yield(model.Feature{}, ctx.Err())
				return
			}
			row, shape := sr.Shape()
			g := shapeGeometry(shape)
			if g == nil {
				continue
			}
			attrs := make(map[string]any, len(names))
			for i, name := range names {
				attrs[name] = strings.TrimSpace(sr.ReadAttribute(row, i))
			}
			f := model.Feature{
				ID:         fmt.Sprintf("%d", row),
				Geometry:   g,
				Attributes: attrs,
			}
			if !yield(f, nil) {
				return
			}
		}
		if err := sr.Err(); err != nil {
			yield(model.Feature{}, &DataReadError{Path: cfg.Path, Format: cfg.Format, Cause: err})
		}
	}
	return out, nil
}

func shapeGeometry(s shp.Shape) orb.Geometry {
	switch t := s.(type) {
	case *shp.Point:
		return orb.Point{t.X, t.Y}
	case *shp.PointZ:
		return orb.Point{t.X, t.Y}
	case *shp.PointM:
		return orb.Point{t.X, t.Y}
	case *shp.MultiPoint:
		mp := make(orb.MultiPoint, 0, len(t.Points))
		for _, p := range t.Points {
			mp = append(mp, orb.Point{p.X, p.Y})
		}
		return mp
	case *shp.PolyLine:
		return polylineGeometry(t.Parts, t.Points)
	case *shp.PolyLineZ:
		return polylineGeometry(t.Parts, t.Points)
	case *shp.Polygon:
		return polygonGeometry(t.Parts, t.Points)
	case *shp.PolygonZ:
		return polygonGeometry(t.Parts, t.Points)
	}
	return nil
}

func polylineGeometry(parts []int32, points []shp.Point) orb.Geometry {
	rings := splitParts(parts, points)
	if len(rings) == 1 {
		return orb.LineString(rings[0])
	}
	mls := make(orb.MultiLineString, 0, len(rings))
	for _, r := range rings {
		mls = append(mls, orb.LineString(r))
	}
	return mls
}

// polygonGeometry rebuilds polygons from shapefile ring soup: by
// convention outer rings wind clockwise, holes counter-clockwise.
func polygonGeometry(parts []int32, points []shp.Point) orb.Geometry {
	var polys orb.MultiPolygon
	for _, part := range splitParts(parts, points) {
		ring := orb.Ring(part)
		if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
			ring = append(ring, ring[0])
		}
		if ring.Orientation() == orb.CCW && len(polys) > 0 {
			// hole in the most recent shell
			polys[len(polys)-1] = append(polys[len(polys)-1], ring)
			continue
		}
		polys = append(polys, orb.Polygon{ring})
	}
	if len(polys) == 0 {
		return nil
	}
	if len(polys) == 1 {
		return polys[0]
	}
	return polys
}

func splitParts(parts []int32, points []shp.Point) [][]orb.Point {
	if len(parts) == 0 {
		parts = []int32{0}
	}
	out := make([][]orb.Point, 0, len(parts))
	for i, start := range parts {
		end := len(points)
		if i+1 < len(parts) {
			end = int(parts[i+1])
		}
		seg := make([]orb.Point, 0, end-int(start))
		for _, p := range points[start:end] {
			seg = append(seg, orb.Point{p.X, p.Y})
		}
		out = append(out, seg)
	}
	return out
}
