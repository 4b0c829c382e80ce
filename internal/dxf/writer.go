// Package dxf drains named results into a DXF drawing: one CAD layer per
// result, entities per feature, plus a legend and a sheet frame around the
// drawing extent.
package dxf

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/paulmach/orb"
	"github.com/yofu/dxf"
	"github.com/yofu/dxf/color"
	"github.com/yofu/dxf/drawing"
	"github.com/yofu/dxf/table"

	"github.com/ogierm/geodraft/internal/model"
	"github.com/ogierm/geodraft/internal/observability"
	"github.com/ogierm/geodraft/internal/pipeline"
	"github.com/ogierm/geodraft/internal/style"
)

// Writer converts named results to DXF entities. Each result's stream is
// drained exactly once, here.
type Writer struct {
	log    *slog.Logger
	styles *style.Resolver
}

func NewWriter(log *slog.Logger, styles *style.Resolver) *Writer {
	if log == nil {
		log = slog.Default()
	}
	return &Writer{log: log, styles: styles}
}

// Write emits every result, in the given order, to path. It returns the
// number of features drawn. A result whose stream fails mid-drain is
// dropped with an error log; other results are unaffected.
func (w *Writer) Write(results map[string]pipeline.NamedResult, order []string, path string) (int, error) {
	d := dxf.NewDrawing()

	total := 0
	var extent *orb.Bound

	for _, name := range order {
		res, ok := results[name]
		if !ok {
			continue
		}
		st := w.styles.Resolve(res.Layer)

		layerName := sanitizeLayerName(name)
		if _, err := d.AddLayer(layerName, color.ColorNumber(st.Color), table.LT_CONTINUOUS, true); err != nil {
			return total, fmt.Errorf("adding layer %q: %w", layerName, err)
		}

		count := 0
		failed := false
		for f, err := range res.Features {
			if err != nil {
				w.log.Error("result stream failed while drawing",
					"result", name, "after_features", count, "err", err)
				failed = true
				break
			}
			if err := w.drawFeature(d, f, st); err != nil {
				w.log.Warn("feature skipped", "result", name, "id", f.ID, "err", err)
				continue
			}
			count++
			if f.Geometry == nil {
				continue
			}
			b := f.Geometry.Bound()
			if extent == nil {
				extent = &b
			} else {
				u := extent.Union(b)
				extent = &u
			}
		}
		if failed {
			continue
		}
		observability.AddFeaturesEmitted(name, count)
		w.log.Info("result drawn", "result", name, "features", count)
		total += count
	}

	if extent != nil {
		if err := w.drawFrame(d, *extent); err != nil {
			return total, err
		}
		if err := w.drawLegend(d, results, order, *extent); err != nil {
			return total, err
		}
	}

	if err := d.SaveAs(path); err != nil {
		return total, fmt.Errorf("writing %q: %w", path, err)
	}
	return total, nil
}

func (w *Writer) drawFeature(d *drawing.Drawing, f model.Feature, st style.Style) error {
	if label, ok := f.Attributes["label"]; ok {
		if p, isPoint := f.Geometry.(orb.Point); isPoint {
			height := st.TextHeight
			if h, ok := f.Attributes["label_height"].(float64); ok && h > 0 {
				height = h
			}
			_, err := d.Text(fmt.Sprint(label), p[0], p[1], 0, height)
			return err
		}
	}
	return drawGeometry(d, f.Geometry)
}

func drawGeometry(d *drawing.Drawing, g orb.Geometry) error {
	switch t := g.(type) {
	case nil:
		return nil
	case orb.Point:
		_, err := d.Point(t[0], t[1], 0)
		return err
	case orb.MultiPoint:
		for _, p := range t {
			if _, err := d.Point(p[0], p[1], 0); err != nil {
				return err
			}
		}
	case orb.LineString:
		_, err := d.LwPolyline(false, vertices(t)...)
		return err
	case orb.MultiLineString:
		for _, ls := range t {
			if _, err := d.LwPolyline(false, vertices(ls)...); err != nil {
				return err
			}
		}
	case orb.Ring:
		_, err := d.LwPolyline(true, vertices(t)...)
		return err
	case orb.Polygon:
		for _, ring := range t {
			if _, err := d.LwPolyline(true, vertices(ring)...); err != nil {
				return err
			}
		}
	case orb.MultiPolygon:
		for _, p := range t {
			if err := drawGeometry(d, p); err != nil {
				return err
			}
		}
	case orb.Collection:
		for _, m := range t {
			if err := drawGeometry(d, m); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported geometry %T", g)
	}
	return nil
}

func vertices(pts []orb.Point) [][]float64 {
	out := make([][]float64, 0, len(pts))
	for _, p := range pts {
		out = append(out, []float64{p[0], p[1]})
	}
	return out
}

// frameMarginRatio pads the sheet frame around the drawing extent.
const frameMarginRatio = 0.05

func (w *Writer) drawFrame(d *drawing.Drawing, b orb.Bound) error {
	if _, err := d.AddLayer("FRAME", color.ColorNumber(8), table.LT_CONTINUOUS, true); err != nil {
		return err
	}
	mx := (b.Max[0] - b.Min[0]) * frameMarginRatio
	my := (b.Max[1] - b.Min[1]) * frameMarginRatio
	if mx == 0 {
		mx = 1
	}
	if my == 0 {
		my = 1
	}
	_, err := d.LwPolyline(true,
		[]float64{b.Min[0] - mx, b.Min[1] - my},
		[]float64{b.Max[0] + mx, b.Min[1] - my},
		[]float64{b.Max[0] + mx, b.Max[1] + my},
		[]float64{b.Min[0] - mx, b.Max[1] + my},
	)
	return err
}

// drawLegend lists every result with a sample line in its color, placed to
// the right of the drawing extent.
func (w *Writer) drawLegend(d *drawing.Drawing, results map[string]pipeline.NamedResult, order []string, b orb.Bound) error {
	height := (b.Max[1] - b.Min[1]) / 40
	if height <= 0 {
		height = 2.5
	}
	x := b.Max[0] + (b.Max[0]-b.Min[0])*2*frameMarginRatio
	y := b.Max[1]

	for _, name := range order {
		res, ok := results[name]
		if !ok {
			continue
		}
		st := w.styles.Resolve(res.Layer)
		legendLayer := "LEGEND_" + sanitizeLayerName(name)
		if _, err := d.AddLayer(legendLayer, color.ColorNumber(st.Color), table.LT_CONTINUOUS, true); err != nil {
			return err
		}
		if _, err := d.Line(x, y, 0, x+3*height, y, 0); err != nil {
			return err
		}
		if _, err := d.Text(name, x+4*height, y-height/2, 0, height); err != nil {
			return err
		}
		y -= 2 * height
	}
	return nil
}

// sanitizeLayerName keeps DXF layer names within the conservative charset
// old CAD tools accept.
func sanitizeLayerName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '_', r == '-', r == '$':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "LAYER"
	}
	return b.String()
}
