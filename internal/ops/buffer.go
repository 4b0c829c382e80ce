package ops

import (
	"context"
	"log/slog"
	"math"

	"github.com/paulmach/orb"

	"github.com/ogierm/geodraft/internal/model"
	"github.com/ogierm/geodraft/internal/stream"
)

// discSegments is the vertex count used when a point grows into a disc.
const discSegments = 32

// bufferOp expands geometries by a fixed distance. Points become discs,
// lines become corridors, polygon rings are offset outward along the vertex
// bisector. A miter offset, not a true Minkowski sum, which is accurate
// enough for drawing output at plan scales.
type bufferOp struct {
	log *slog.Logger
}

func (o *bufferOp) Kind() model.OpKind { return model.OpBuffer }

func (o *bufferOp) Run(_ context.Context, in stream.Seq, cfg model.OperationConfig) (stream.Seq, error) {
	dist, err := cfg.RequireFloat("distance")
	if err != nil {
		return nil, err
	}
	return stream.Transform(in, func(f model.Feature) (model.Feature, bool, error) {
		g := bufferGeometry(f.Geometry, dist)
		if g == nil {
			o.log.Debug("buffer dropped unsupported geometry", "id", f.ID)
			return model.Feature{}, false, nil
		}
		return f.WithGeometry(g), true, nil
	}), nil
}

func bufferGeometry(g orb.Geometry, dist float64) orb.Geometry {
	switch t := g.(type) {
	case orb.Point:
		return discAround(t, dist)
	case orb.MultiPoint:
		out := make(orb.MultiPolygon, 0, len(t))
		for _, p := range t {
			out = append(out, discAround(p, dist))
		}
		return out
	case orb.LineString:
		return corridor(t, dist)
	case orb.MultiLineString:
		out := make(orb.MultiPolygon, 0, len(t))
		for _, ls := range t {
			out = append(out, corridor(ls, dist))
		}
		return out
	case orb.Ring:
		return orb.Polygon{offsetRing(t, dist)}
	case orb.Polygon:
		return offsetPolygon(t, dist)
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, 0, len(t))
		for _, p := range t {
			out = append(out, offsetPolygon(p, dist))
		}
		return out
	case orb.Collection:
		out := make(orb.Collection, 0, len(t))
		for _, m := range t {
			if b := bufferGeometry(m, dist); b != nil {
				out = append(out, b)
			}
		}
		return out
	}
	return nil
}

func discAround(c orb.Point, r float64) orb.Polygon {
	ring := make(orb.Ring, 0, discSegments+1)
	for i := 0; i <= discSegments; i++ {
		a := 2 * math.Pi * float64(i) / discSegments
		ring = append(ring, orb.Point{c[0] + r*math.Cos(a), c[1] + r*math.Sin(a)})
	}
	return orb.Polygon{ring}
}

// corridor offsets a line to both sides and closes the ends.
func corridor(ls orb.LineString, dist float64) orb.Polygon {
	if len(ls) < 2 {
		if len(ls) == 1 {
			return discAround(ls[0], dist)
		}
		return nil
	}
	left := offsetLine(ls, dist)
	right := offsetLine(ls, -dist)

	ring := make(orb.Ring, 0, len(left)+len(right)+1)
	ring = append(ring, left...)
	for i := len(right) - 1; i >= 0; i-- {
		ring = append(ring, right[i])
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}

// offsetLine shifts each vertex perpendicular to the local direction; at
// interior vertices the two segment normals are averaged (miter).
func offsetLine(ls orb.LineString, dist float64) []orb.Point {
	n := len(ls)
	out := make([]orb.Point, n)
	for i := range ls {
		var nx, ny float64
		if i > 0 {
			dx, dy := ls[i][0]-ls[i-1][0], ls[i][1]-ls[i-1][1]
			l := math.Hypot(dx, dy)
			if l > 0 {
				nx += -dy / l
				ny += dx / l
			}
		}
		if i < n-1 {
			dx, dy := ls[i+1][0]-ls[i][0], ls[i+1][1]-ls[i][1]
			l := math.Hypot(dx, dy)
			if l > 0 {
				nx += -dy / l
				ny += dx / l
			}
		}
		l := math.Hypot(nx, ny)
		if l == 0 {
			out[i] = ls[i]
			continue
		}
		out[i] = orb.Point{ls[i][0] + nx/l*dist, ls[i][1] + ny/l*dist}
	}
	return out
}

func offsetPolygon(p orb.Polygon, dist float64) orb.Polygon {
	out := make(orb.Polygon, 0, len(p))
	for i, ring := range p {
		d := dist
		if i > 0 {
			d = -dist // holes shrink when the shell grows
		}
		out = append(out, offsetRing(ring, d))
	}
	return out
}

// offsetRing moves each vertex outward along the averaged normal of its two
// adjacent edges. Outward is decided by the ring's winding.
func offsetRing(r orb.Ring, dist float64) orb.Ring {
	n := len(r)
	if n < 4 {
		return r
	}
	closed := r[0] == r[n-1]
	m := n
	if closed {
		m = n - 1
	}
	sign := 1.0
	if ringArea(r) < 0 {
		sign = -1.0
	}
	out := make(orb.Ring, 0, n)
	for i := 0; i < m; i++ {
		prev := r[(i-1+m)%m]
		next := r[(i+1)%m]
		dx1, dy1 := r[i][0]-prev[0], r[i][1]-prev[1]
		dx2, dy2 := next[0]-r[i][0], next[1]-r[i][1]
		l1, l2 := math.Hypot(dx1, dy1), math.Hypot(dx2, dy2)
		var nx, ny float64
		if l1 > 0 {
			nx += dy1 / l1
			ny += -dx1 / l1
		}
		if l2 > 0 {
			nx += dy2 / l2
			ny += -dx2 / l2
		}
		l := math.Hypot(nx, ny)
		if l == 0 {
			out = append(out, r[i])
			continue
		}
		out = append(out, orb.Point{
			r[i][0] + sign*nx/l*dist,
			r[i][1] + sign*ny/l*dist,
		})
	}
	out = append(out, out[0])
	return out
}

// ringArea is the signed shoelace area: positive for counter-clockwise.
func ringArea(r orb.Ring) float64 {
	var sum float64
	for i := 0; i < len(r)-1; i++ {
		sum += r[i][0]*r[i+1][1] - r[i+1][0]*r[i][1]
	}
	return sum / 2
}
