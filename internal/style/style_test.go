package style

import (
	"io"
	"log/slog"
	"testing"

	"github.com/ogierm/geodraft/internal/model"
)

func testResolver() *Resolver {
	return NewResolver(
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		map[string]model.StyleRef{
			"cadastre": {Color: 3, LineType: "DASHED", TextHeight: 1.8},
		},
	)
}

func TestResolve_DefaultsWhenNothingSet(t *testing.T) {
	s := testResolver().Resolve(&model.LayerConfig{Name: "Plain"})
	if s.Color != 7 || s.LineType != "CONTINUOUS" || s.TextHeight != 2.5 {
		t.Fatalf("unexpected defaults: %+v", s)
	}
}

func TestResolve_PresetThenLayerOverride(t *testing.T) {
	layer := &model.LayerConfig{
		Name:  "Parcels",
		Style: model.StyleRef{Preset: "cadastre", Color: 1},
	}
	s := testResolver().Resolve(layer)
	if s.Color != 1 {
		t.Fatalf("layer override must beat preset, got color %d", s.Color)
	}
	if s.LineType != "DASHED" || s.TextHeight != 1.8 {
		t.Fatalf("preset values lost: %+v", s)
	}
}

func TestResolve_UnknownPresetFallsBack(t *testing.T) {
	layer := &model.LayerConfig{
		Name:  "Roads",
		Style: model.StyleRef{Preset: "nope", Color: 5},
	}
	s := testResolver().Resolve(layer)
	if s.Color != 5 || s.LineType != "CONTINUOUS" {
		t.Fatalf("unknown preset must fall back to defaults: %+v", s)
	}
}
