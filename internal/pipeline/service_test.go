package pipeline

import (
	"context"
	"testing"

	"github.com/ogierm/geodraft/internal/model"
)

func twoLayerProject() model.ProjectConfig {
	return model.ProjectConfig{
		Name: "site",
		Layers: []model.LayerConfig{
			{
				Name:    "Broken",
				Enabled: true,
				Source:  &model.SourceConfig{Format: model.FormatGeoJSON, Path: "stub"},
				Operations: []model.OperationConfig{
					{Kind: "not-a-real-operation"},
				},
			},
			{
				Name:    "Parcels",
				Enabled: true,
				Source:  &model.SourceConfig{Format: model.FormatGeoJSON, Path: "stub"},
			},
		},
	}
}

func TestRun_FailedLayerDoesNotStopSiblings(t *testing.T) {
	opener := &stubOpener{features: threeParcels()}
	svc := NewService(discard(), newTestExecutor(opener))

	results := svc.Run(context.Background(), twoLayerProject(), nil)
	if _, ok := results["Broken"]; ok {
		t.Fatal("broken layer must contribute nothing")
	}
	got := drain(t, results["Parcels"])
	if len(got) != 3 {
		t.Fatalf("sibling layer must produce its full result, got %d features", len(got))
	}
}

func TestRun_LayerSelectionRestrictsProcessing(t *testing.T) {
	opener := &stubOpener{features: threeParcels()}
	svc := NewService(discard(), newTestExecutor(opener))

	results := svc.Run(context.Background(), twoLayerProject(), []string{"Parcels"})
	if len(results) != 1 {
		t.Fatalf("want only the selected layer's result, got %v", names(results))
	}
	if opener.called != 1 {
		t.Fatalf("unselected layers must not read sources, opener called %d times", opener.called)
	}
}

func TestResultNames_StableOrder(t *testing.T) {
	project := model.ProjectConfig{Layers: []model.LayerConfig{
		{Name: "B"}, {Name: "A"},
	}}
	results := map[string]NamedResult{
		"A":     {Name: "A"},
		"B":     {Name: "B"},
		"Extra": {Name: "Extra"},
		"Derived": {
			Name: "Derived",
		},
	}
	got := ResultNames(project, results)
	want := []string{"B", "A", "Derived", "Extra"}
	if len(got) != len(want) {
		t.Fatalf("want %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("want %v, got %v", want, got)
		}
	}
}
