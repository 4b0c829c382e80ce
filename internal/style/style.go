// Package style resolves a layer's drawing properties from the project's
// preset table plus per-layer overrides.
package style

import (
	"log/slog"

	"github.com/ogierm/geodraft/internal/model"
)

// Style is the fully resolved set of drawing properties for one result.
// Color is an AutoCAD color index (1..255).
type Style struct {
	Color      int
	LineType   string
	TextHeight float64
	Hatch      string
}

// Defaults applied when neither preset nor layer override a property.
var defaults = Style{
	Color:      7, // white/black depending on background
	LineType:   "CONTINUOUS",
	TextHeight: 2.5,
}

// Resolver holds the preset table, read-only after construction.
type Resolver struct {
	log     *slog.Logger
	presets map[string]model.StyleRef
}

func NewResolver(log *slog.Logger, presets map[string]model.StyleRef) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{log: log, presets: presets}
}

// Resolve cascades defaults, then the referenced preset, then the layer's
// own overrides. An unknown preset name logs a warning and falls back to
// the defaults rather than failing the layer.
func (r *Resolver) Resolve(layer *model.LayerConfig) Style {
	out := defaults
	if layer == nil {
		return out
	}

	ref := layer.Style
	if ref.Preset != "" {
		preset, ok := r.presets[ref.Preset]
		if !ok {
			r.log.Warn("unknown style preset", "layer", layer.Name, "preset", ref.Preset)
		} else {
			apply(&out, preset)
		}
	}
	apply(&out, ref)
	return out
}

func apply(dst *Style, ref model.StyleRef) {
	if ref.Color != 0 {
		dst.Color = ref.Color
	}
	if ref.LineType != "" {
		dst.LineType = ref.LineType
	}
	if ref.TextHeight != 0 {
		dst.TextHeight = ref.TextHeight
	}
	if ref.Hatch != "" {
		dst.Hatch = ref.Hatch
	}
}
