package pipeline

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/ogierm/geodraft/internal/model"
	"github.com/ogierm/geodraft/internal/ops"
	"github.com/ogierm/geodraft/internal/stream"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubOpener records whether it was called and serves fixed features.
type stubOpener struct {
	called   int
	features []model.Feature
	err      error
}

func (s *stubOpener) open(context.Context, model.SourceConfig) (stream.Seq, error) {
	s.called++
	if s.err != nil {
		return nil, s.err
	}
	return stream.Of(s.features...), nil
}

func newTestExecutor(opener *stubOpener) *Executor {
	log := discard()
	return NewExecutor(log, ops.NewRegistry(log), opener.open)
}

func square(x, y, side float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{x, y}, {x + side, y}, {x + side, y + side}, {x, y + side}, {x, y},
	}}
}

func threeParcels() []model.Feature {
	return []model.Feature{
		{ID: "f1", Geometry: square(0, 0, 10), Attributes: map[string]any{"zone": "A"}},
		{ID: "f2", Geometry: square(20, 0, 10), Attributes: map[string]any{"zone": "B"}},
		{ID: "f3", Geometry: square(40, 0, 10), Attributes: map[string]any{"zone": "A"}},
	}
}

func enabledLayer(name string, ops ...model.OperationConfig) model.LayerConfig {
	return model.LayerConfig{
		Name:       name,
		Enabled:    true,
		Source:     &model.SourceConfig{Format: model.FormatGeoJSON, Path: "stub"},
		Operations: ops,
	}
}

func drain(t *testing.T, r NamedResult) []model.Feature {
	t.Helper()
	got, err := stream.Collect(r.Features)
	if err != nil {
		t.Fatalf("draining %q: %v", r.Name, err)
	}
	return got
}

func TestProcessLayer_DisabledLayerNeverTouchesSource(t *testing.T) {
	opener := &stubOpener{features: threeParcels()}
	layer := enabledLayer("Parcels")
	layer.Enabled = false

	results := newTestExecutor(opener).ProcessLayer(context.Background(), layer)
	if len(results) != 0 {
		t.Fatalf("disabled layer must produce nothing, got %d results", len(results))
	}
	if opener.called != 0 {
		t.Fatalf("disabled layer must not invoke the source reader (called %d times)", opener.called)
	}
}

func TestProcessLayer_SourceOnlyLayerYieldsItselfOnce(t *testing.T) {
	opener := &stubOpener{features: threeParcels()}
	results := newTestExecutor(opener).ProcessLayer(context.Background(), enabledLayer("Parcels"))

	if len(results) != 1 {
		t.Fatalf("want exactly 1 result, got %d", len(results))
	}
	got := drain(t, results["Parcels"])
	if len(got) != 3 || got[0].ID != "f1" || got[2].ID != "f3" {
		t.Fatalf("unexpected features: %+v", got)
	}
}

// Concrete scenario from the drawing workflow: a parcels layer plus one
// buffer step named Buffered must yield both the raw parcels and the
// buffered parcels, same counts, same order.
func TestProcessLayer_RawAndBufferedOutputs(t *testing.T) {
	opener := &stubOpener{features: threeParcels()}
	layer := enabledLayer("Parcels", model.OperationConfig{
		Kind:       model.OpBuffer,
		OutputName: "Buffered",
		Params:     map[string]any{"distance": 5.0},
	})

	results := newTestExecutor(opener).ProcessLayer(context.Background(), layer)
	if len(results) != 2 {
		t.Fatalf("want 2 results, got %d (%v)", len(results), names(results))
	}

	raw := drain(t, results["Parcels"])
	if len(raw) != 3 {
		t.Fatalf("raw output: want 3 features, got %d", len(raw))
	}
	for i, f := range raw {
		if f.Geometry.Bound() != threeParcels()[i].Geometry.Bound() {
			t.Fatalf("raw feature %d was altered", i)
		}
	}

	buffered := drain(t, results["Buffered"])
	if len(buffered) != 3 {
		t.Fatalf("buffered output: want 3 features, got %d", len(buffered))
	}
	for i, f := range buffered {
		rawBound := threeParcels()[i].Geometry.Bound()
		b := f.Geometry.Bound()
		if b.Min[0] >= rawBound.Min[0] || b.Max[0] <= rawBound.Max[0] {
			t.Fatalf("buffered feature %d did not grow: %+v vs %+v", i, b, rawBound)
		}
		if f.ID != threeParcels()[i].ID {
			t.Fatalf("order broken at %d: %q", i, f.ID)
		}
	}
}

func TestProcessLayer_ChainingComposesInOrder(t *testing.T) {
	opener := &stubOpener{features: threeParcels()}
	layer := enabledLayer("Parcels",
		model.OperationConfig{
			Kind:   model.OpFilterAttribute,
			Params: map[string]any{"field": "zone", "equals": "A"},
		},
		model.OperationConfig{
			Kind:   model.OpFieldMapping,
			Params: map[string]any{"rename": map[string]any{"zone": "district"}},
		},
		model.OperationConfig{
			Kind:       model.OpLabelPlacement,
			OutputName: "Labels",
			Params:     map[string]any{"field": "district"},
		},
	)

	results := newTestExecutor(opener).ProcessLayer(context.Background(), layer)
	labels := drain(t, results["Labels"])
	if len(labels) != 2 {
		t.Fatalf("want labels for the 2 zone-A parcels, got %d", len(labels))
	}
	if labels[0].Attributes["label"] != "A" {
		t.Fatalf("chain did not compose: %v", labels[0].Attributes)
	}
}

// Fan-out consistency: the raw output keeps its true feature count no
// matter what the first operation does to its own replica.
func TestProcessLayer_FanOutConsistency(t *testing.T) {
	opener := &stubOpener{features: threeParcels()}
	layer := enabledLayer("Parcels", model.OperationConfig{
		Kind:       model.OpFilterAttribute,
		OutputName: "ZoneB",
		Params:     map[string]any{"field": "zone", "equals": "B"},
	})

	results := newTestExecutor(opener).ProcessLayer(context.Background(), layer)
	if n := len(drain(t, results["ZoneB"])); n != 1 {
		t.Fatalf("filtered replica: want 1, got %d", n)
	}
	if n := len(drain(t, results["Parcels"])); n != 3 {
		t.Fatalf("raw replica must be untouched by the filter: want 3, got %d", n)
	}
}

func TestProcessLayer_ExplicitSourceNameReachesRawSource(t *testing.T) {
	opener := &stubOpener{features: threeParcels()}
	layer := enabledLayer("Parcels",
		model.OperationConfig{
			Kind:       model.OpFilterAttribute,
			OutputName: "ZoneA",
			Params:     map[string]any{"field": "zone", "equals": "A"},
		},
		// chains from the raw source, not from ZoneA
		model.OperationConfig{
			Kind:       model.OpFilterAttribute,
			SourceName: "Parcels",
			OutputName: "ZoneB",
			Params:     map[string]any{"field": "zone", "equals": "B"},
		},
	)

	results := newTestExecutor(opener).ProcessLayer(context.Background(), layer)
	if n := len(drain(t, results["ZoneA"])); n != 2 {
		t.Fatalf("ZoneA: want 2, got %d", n)
	}
	if n := len(drain(t, results["ZoneB"])); n != 1 {
		t.Fatalf("ZoneB: want 1, got %d (explicit sourceName must bind the raw source)", n)
	}
	if n := len(drain(t, results["Parcels"])); n != 3 {
		t.Fatalf("raw output: want 3, got %d", n)
	}
}

func TestProcessLayer_IntersectionClipsToNamedRegion(t *testing.T) {
	opener := &stubOpener{features: threeParcels()}
	layer := enabledLayer("Parcels",
		model.OperationConfig{
			Kind:       model.OpFilterAttribute,
			OutputName: "Region",
			Params:     map[string]any{"field": "zone", "equals": "B"},
		},
		model.OperationConfig{
			Kind:       model.OpIntersection,
			SourceName: "Parcels",
			OutputName: "Clipped",
			Params:     map[string]any{"clipFrom": "Region"},
		},
	)

	results := newTestExecutor(opener).ProcessLayer(context.Background(), layer)

	clipped := drain(t, results["Clipped"])
	if len(clipped) != 1 {
		t.Fatalf("clip to the Region bound must keep exactly f2, got %d features", len(clipped))
	}
	if clipped[0].ID != "f2" {
		t.Fatalf("want f2 inside the region bound, got %q", clipped[0].ID)
	}
	if n := len(drain(t, results["Region"])); n != 1 {
		t.Fatalf("Region: want 1, got %d", n)
	}
	if n := len(drain(t, results["Parcels"])); n != 3 {
		t.Fatalf("raw output: want 3, got %d", n)
	}
}

func TestProcessLayer_UnknownClipRegionAbortsLayer(t *testing.T) {
	opener := &stubOpener{features: threeParcels()}
	layer := enabledLayer("Parcels", model.OperationConfig{
		Kind:   model.OpIntersection,
		Params: map[string]any{"clipFrom": "DoesNotExist"},
	})

	results := newTestExecutor(opener).ProcessLayer(context.Background(), layer)
	if len(results) != 0 {
		t.Fatalf("want empty result map, got %v", names(results))
	}
}

func TestProcessLayer_MissingReferenceAbortsLayerOnly(t *testing.T) {
	var logbuf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logbuf, nil))
	opener := &stubOpener{features: threeParcels()}
	exec := NewExecutor(log, ops.NewRegistry(log), opener.open)

	layer := enabledLayer("Parcels", model.OperationConfig{
		Kind:       model.OpFilterAttribute,
		SourceName: "DoesNotExist",
		Params:     map[string]any{"field": "zone", "equals": "A"},
	})

	results := exec.ProcessLayer(context.Background(), layer)
	if len(results) != 0 {
		t.Fatalf("want empty result map, got %v", names(results))
	}
	out := logbuf.String()
	if !strings.Contains(out, "DoesNotExist") {
		t.Fatalf("aborted layer must log the unresolved reference by name: %s", out)
	}
	if !strings.Contains(out, "configuration") {
		t.Fatalf("abort must be classified as a configuration failure: %s", out)
	}
}

func TestProcessLayer_UnsupportedKindAbortsLayer(t *testing.T) {
	opener := &stubOpener{features: threeParcels()}
	layer := enabledLayer("Parcels", model.OperationConfig{Kind: "not-a-real-operation"})

	results := newTestExecutor(opener).ProcessLayer(context.Background(), layer)
	if len(results) != 0 {
		t.Fatalf("want empty result map, got %v", names(results))
	}
}

func TestProcessLayer_SourceFailureAbortsLayerOnly(t *testing.T) {
	opener := &stubOpener{err: errContext("no such file")}
	results := newTestExecutor(opener).ProcessLayer(context.Background(), enabledLayer("Parcels"))
	if len(results) != 0 {
		t.Fatalf("want empty result map on source failure, got %v", names(results))
	}
}

func TestProcessLayer_NoSourceNoOpsIsValid(t *testing.T) {
	opener := &stubOpener{}
	layer := model.LayerConfig{Name: "Decorative", Enabled: true}
	results := newTestExecutor(opener).ProcessLayer(context.Background(), layer)
	if len(results) != 0 || opener.called != 0 {
		t.Fatalf("config-only layer must be a quiet no-op")
	}
}

func TestProcessLayer_OperationWithoutInputFails(t *testing.T) {
	opener := &stubOpener{}
	layer := model.LayerConfig{
		Name:    "NoSource",
		Enabled: true,
		Operations: []model.OperationConfig{
			{Kind: model.OpClean},
		},
	}
	results := newTestExecutor(opener).ProcessLayer(context.Background(), layer)
	if len(results) != 0 {
		t.Fatalf("chained operation without a current stream must fail the layer")
	}
}

func TestProcessLayer_MergeConcatenatesNamedResults(t *testing.T) {
	opener := &stubOpener{features: threeParcels()}
	layer := enabledLayer("Parcels",
		model.OperationConfig{
			Kind:       model.OpFilterAttribute,
			OutputName: "ZoneA",
			Params:     map[string]any{"field": "zone", "equals": "A"},
		},
		model.OperationConfig{
			Kind:       model.OpFilterAttribute,
			SourceName: "Parcels",
			OutputName: "ZoneB",
			Params:     map[string]any{"field": "zone", "equals": "B"},
		},
		model.OperationConfig{
			Kind:       model.OpMerge,
			OutputName: "AllZones",
			Params:     map[string]any{"sources": []any{"ZoneA", "ZoneB"}},
		},
	)

	results := newTestExecutor(opener).ProcessLayer(context.Background(), layer)
	all := drain(t, results["AllZones"])
	if len(all) != 3 {
		t.Fatalf("merge: want 3 features, got %d", len(all))
	}
	// ZoneA features (f1, f3) precede ZoneB (f2)
	if all[0].ID != "f1" || all[1].ID != "f3" || all[2].ID != "f2" {
		t.Fatalf("merge order wrong: %q %q %q", all[0].ID, all[1].ID, all[2].ID)
	}
}

func TestProcessLayer_RedeclaredOutputNameSupersedes(t *testing.T) {
	opener := &stubOpener{features: threeParcels()}
	layer := enabledLayer("Parcels",
		model.OperationConfig{
			Kind:       model.OpFilterAttribute,
			OutputName: "Result",
			Params:     map[string]any{"field": "zone", "equals": "A"},
		},
		model.OperationConfig{
			Kind:       model.OpFilterAttribute,
			SourceName: "Parcels",
			OutputName: "Result",
			Params:     map[string]any{"field": "zone", "equals": "B"},
		},
	)

	results := newTestExecutor(opener).ProcessLayer(context.Background(), layer)
	// most recent declaration wins in the returned map
	if n := len(drain(t, results["Result"])); n != 1 {
		t.Fatalf("superseding result: want the zone-B single feature, got %d", n)
	}
}

func names(results map[string]NamedResult) []string {
	out := make([]string, 0, len(results))
	for k := range results {
		out = append(out, k)
	}
	return out
}

type errContext string

func (e errContext) Error() string { return string(e) }
