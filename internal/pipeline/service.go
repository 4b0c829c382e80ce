package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ogierm/geodraft/internal/logger"
	"github.com/ogierm/geodraft/internal/model"
)

// Service runs the executor across a whole project. Layers are independent
// by construction, so each runs in its own goroutine; a failed layer logs
// and contributes nothing, it never stops its siblings.
type Service struct {
	log  *slog.Logger
	exec *Executor
}

func NewService(log *slog.Logger, exec *Executor) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{log: log, exec: exec}
}

// Run processes every enabled layer and merges their result maps. only, when
// non-empty, restricts processing to the named layers. The merged map's
// iteration-stable ordering for writers comes from ResultNames.
func (s *Service) Run(ctx context.Context, project model.ProjectConfig, only []string) map[string]NamedResult {
	selected := selection(only)

	var mu sync.Mutex
	merged := map[string]NamedResult{}

	g, ctx := errgroup.WithContext(ctx)
	for _, layer := range project.Layers {
		if selected != nil {
			if _, ok := selected[layer.Name]; !ok {
				continue
			}
		}
		g.Go(func() error {
			results := s.exec.ProcessLayer(logger.WithLayer(ctx, layer.Name), layer)
			mu.Lock()
			defer mu.Unlock()
			for name, res := range results {
				if _, ok := merged[name]; ok {
					// cross-layer name clash: last merged wins
					s.log.Warn("result name produced by more than one layer", "name", name)
				}
				merged[name] = res
			}
			return nil
		})
	}
	_ = g.Wait() // layer failures are absorbed by the executor

	s.log.Info("pipeline finished",
		"layers", len(project.Layers),
		"results", len(merged))
	return merged
}

// ResultNames returns the merged result names in a stable order: layers in
// declaration order first, remaining names alphabetically.
func ResultNames(project model.ProjectConfig, results map[string]NamedResult) []string {
	seen := make(map[string]bool, len(results))
	var out []string
	for _, l := range project.Layers {
		if _, ok := results[l.Name]; ok && !seen[l.Name] {
			out = append(out, l.Name)
			seen[l.Name] = true
		}
	}
	var rest []string
	for name := range results {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func selection(only []string) map[string]struct{} {
	var set map[string]struct{}
	for _, name := range only {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if set == nil {
			set = map[string]struct{}{}
		}
		set[name] = struct{}{}
	}
	return set
}
