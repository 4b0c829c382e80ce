// Package pipeline turns layer configurations into named streams of
// features. The executor owns the per-layer bookkeeping: which stream feeds
// which operation, how many consumers each stream has, and which results
// are visible to callers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/paulmach/orb"

	"github.com/ogierm/geodraft/internal/logger"
	"github.com/ogierm/geodraft/internal/model"
	"github.com/ogierm/geodraft/internal/observability"
	"github.com/ogierm/geodraft/internal/ops"
	"github.com/ogierm/geodraft/internal/source"
	"github.com/ogierm/geodraft/internal/stream"
)

// NamedResult is one externally visible output of a layer: a result name,
// the layer it is styled against, and a single-pass feature sequence that
// the caller (and only the caller) drains.
type NamedResult struct {
	Name     string
	Layer    *model.LayerConfig
	Features stream.Seq
}

// SourceOpener reads a layer's raw source. Swappable in tests.
type SourceOpener func(ctx context.Context, cfg model.SourceConfig) (stream.Seq, error)

// Executor runs one layer at a time. Safe for concurrent use: all mutable
// state lives inside a single ProcessLayer call, and the operation registry
// is read-only.
type Executor struct {
	log  *slog.Logger
	reg  *ops.Registry
	open SourceOpener
}

func NewExecutor(log *slog.Logger, reg *ops.Registry, open SourceOpener) *Executor {
	if log == nil {
		log = slog.Default()
	}
	if open == nil {
		open = func(ctx context.Context, cfg model.SourceConfig) (stream.Seq, error) {
			return source.Open(ctx, log, cfg)
		}
	}
	return &Executor{log: log, reg: reg, open: open}
}

// producer is one stream-to-be with its consumer bookkeeping. Consumer
// counts are fixed during planning, before anything executes; replicas are
// handed out one per declared consumer during execution.
type producer struct {
	consumers int
	replicas  []stream.Seq
	given     int
}

func (p *producer) fill(s stream.Seq) error {
	reps, err := stream.Replicate(s, p.consumers)
	if err != nil {
		return err
	}
	p.replicas = reps
	return nil
}

func (p *producer) take() stream.Seq {
	s := p.replicas[p.given]
	p.given++
	return s
}

// step is one planned operation: its resolved input producers and output.
type step struct {
	cfg      model.OperationConfig
	inputs   []*producer // several only for generative merge
	out      *producer
	name     string // logical output name; synthesized if not user-declared
	perm     bool
	clip     *producer // intersection clip region given as a stream
	clipName string
}

// ProcessLayer runs one layer's chain and returns its named results. All
// pipeline error kinds are caught here: a failed layer logs the cause and
// returns an empty map so sibling layers keep running.
func (e *Executor) ProcessLayer(ctx context.Context, layer model.LayerConfig) map[string]NamedResult {
	results, err := e.processLayer(ctx, layer)
	if err != nil {
		stage := "operation"
		var ce *ConfigurationError
		var re *stream.ReplicationError
		var de *source.DataReadError
		switch {
		case errors.As(err, &ce):
			stage = "configuration"
		case errors.As(err, &re):
			stage = "replication"
		case errors.As(err, &de):
			stage = "source"
		}
		observability.IncLayerFailure(layer.Name, stage)
		e.log.Error("layer aborted", "layer", layer.Name, "stage", stage, "err", err)
		return map[string]NamedResult{}
	}
	return results
}

func (e *Executor) processLayer(ctx context.Context, layer model.LayerConfig) (map[string]NamedResult, error) {
	results := map[string]NamedResult{}

	if !layer.Enabled {
		e.log.Debug("layer disabled, skipping", "layer", layer.Name)
		return results, nil
	}
	if layer.Source == nil && len(layer.Operations) == 0 {
		// valid: a config-only layer produces nothing
		e.log.Info("layer has no source and no operations", "layer", layer.Name)
		return results, nil
	}

	src, plan, err := e.plan(layer)
	if err != nil {
		return nil, err
	}

	// Bindings are fixed; now produce streams and hand replicas to their
	// declared consumers in declaration order.
	layerRef := &layer

	if src != nil {
		raw, err := e.open(ctx, *layer.Source)
		if err != nil {
			return nil, err
		}
		raw = countFeatures(raw, layer.Name)
		if err := src.fill(raw); err != nil {
			return nil, err
		}
		// the raw source is always a permanent output under the layer's name
		results[layer.Name] = NamedResult{Name: layer.Name, Layer: layerRef, Features: src.take()}
	}

	for i, st := range plan {
		op, err := e.reg.Resolve(st.cfg.Kind)
		if err != nil {
			return nil, &ConfigurationError{
				Layer: layer.Name, OpIndex: i,
				Code:   CodeUnknownOperationKind,
				Reason: fmt.Sprintf("unsupported operation kind %q", st.cfg.Kind),
				Cause:  err,
			}
		}

		if st.clip != nil {
			b, err := unionBound(st.clip.take())
			if err != nil {
				return nil, err
			}
			if b == nil {
				return nil, &ops.ExecutionError{
					Kind:   st.cfg.Kind,
					Reason: fmt.Sprintf("clip region %q has no geometry", st.clipName),
				}
			}
			// the op contract stays single-input: hand the drained bound
			// over as a literal bbox
			params := make(map[string]any, len(st.cfg.Params)+1)
			for k, v := range st.cfg.Params {
				params[k] = v
			}
			params["bbox"] = []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
			st.cfg.Params = params
		}

		var in stream.Seq
		switch len(st.inputs) {
		case 0:
			in = stream.Of()
		case 1:
			in = st.inputs[0].take()
		default:
			parts := make([]stream.Seq, 0, len(st.inputs))
			for _, p := range st.inputs {
				parts = append(parts, p.take())
			}
			in = stream.Concat(parts...)
		}

		out, err := op.Run(logger.WithOperation(ctx, string(st.cfg.Kind)), in, st.cfg)
		if err != nil {
			var xe *ops.ExecutionError
			if !errors.As(err, &xe) {
				err = &ConfigurationError{
					Layer: layer.Name, OpIndex: i,
					Code:   CodeBadParameter,
					Reason: err.Error(),
					Cause:  err,
				}
			}
			return nil, err
		}

		if st.out.consumers == 0 {
			// nothing references this output; never drained, never computed
			e.log.Debug("operation output unused", "layer", layer.Name, "op", i, "kind", st.cfg.Kind)
			continue
		}
		if err := st.out.fill(out); err != nil {
			return nil, err
		}
		if st.perm {
			if _, ok := results[st.name]; ok {
				// replicas already handed out for the earlier result stay
				// valid; only the map entry is superseded
				e.log.Warn("output name redeclared, superseding earlier result",
					"layer", layer.Name, "name", st.name, "op", i)
			}
			results[st.name] = NamedResult{Name: st.name, Layer: layerRef, Features: st.out.take()}
		}
	}

	return results, nil
}

// plan walks the operation list once, resolving each operation's input
// binding in declaration order and fixing every stream's consumer count
// before execution begins. Most-recent-wins: a name rebinds when an
// operation redeclares it as outputName.
func (e *Executor) plan(layer model.LayerConfig) (*producer, []step, error) {
	bindings := map[string]*producer{}

	var src *producer
	var current *producer
	if layer.Source != nil {
		src = &producer{consumers: 1} // permanent output under the layer's name
		bindings[layer.Name] = src
		current = src
	}

	plan := make([]step, 0, len(layer.Operations))
	for i, cfg := range layer.Operations {
		st := step{cfg: cfg}

		switch {
		case ops.IsGenerative(cfg.Kind):
			names, err := ops.MergeSources(cfg)
			if err != nil {
				return nil, nil, &ConfigurationError{
					Layer: layer.Name, OpIndex: i,
					Code: CodeBadParameter, Reason: err.Error(), Cause: err,
				}
			}
			for _, name := range names {
				p, ok := bindings[name]
				if !ok {
					return nil, nil, &ConfigurationError{
						Layer: layer.Name, OpIndex: i,
						Code:   CodeUnresolvedReference,
						Reason: fmt.Sprintf("unknown source reference %q", name),
					}
				}
				p.consumers++
				st.inputs = append(st.inputs, p)
			}
		case cfg.SourceName != "":
			p, ok := bindings[cfg.SourceName]
			if !ok {
				return nil, nil, &ConfigurationError{
					Layer: layer.Name, OpIndex: i,
					Code:   CodeUnresolvedReference,
					Reason: fmt.Sprintf("unknown source reference %q", cfg.SourceName),
				}
			}
			p.consumers++
			st.inputs = []*producer{p}
		default:
			if current == nil {
				return nil, nil, &ConfigurationError{
					Layer: layer.Name, OpIndex: i,
					Code:   CodeMissingInput,
					Reason: fmt.Sprintf("operation %q has no input stream", cfg.Kind),
				}
			}
			current.consumers++
			st.inputs = []*producer{current}
		}

		if name, ok := ops.ClipSource(cfg); ok {
			p, ok := bindings[name]
			if !ok {
				return nil, nil, &ConfigurationError{
					Layer: layer.Name, OpIndex: i,
					Code:   CodeUnresolvedReference,
					Reason: fmt.Sprintf("unknown clip region reference %q", name),
				}
			}
			p.consumers++
			st.clip = p
			st.clipName = name
		}

		st.out = &producer{}
		if cfg.OutputName != "" {
			st.name = cfg.OutputName
			st.perm = true
			st.out.consumers++
		} else {
			// internal name, scoped to this layer and operation index;
			// never returned to callers
			st.name = fmt.Sprintf("%s#%d", layer.Name, i)
		}
		bindings[st.name] = st.out
		current = st.out

		plan = append(plan, st)
	}
	return src, plan, nil
}

// unionBound drains a stream and unions the bounds of its geometries.
// Returns nil when nothing in the stream carries geometry.
func unionBound(s stream.Seq) (*orb.Bound, error) {
	feats, err := stream.Collect(s)
	if err != nil {
		return nil, err
	}
	var b *orb.Bound
	for _, f := range feats {
		if f.Geometry == nil {
			continue
		}
		fb := f.Geometry.Bound()
		if b == nil {
			b = &fb
		} else {
			u := b.Union(fb)
			b = &u
		}
	}
	return b, nil
}

// countFeatures wraps a source stream with the read counter.
func countFeatures(s stream.Seq, layer string) stream.Seq {
	return func(yield func(model.Feature, error) bool) {
		n := 0
		defer func() { observability.AddFeaturesRead(layer, n) }()
		for f, err := range s {
			if err == nil {
				n++
			}
			if !yield(f, err) {
				return
			}
			if err != nil {
				return
			}
		}
	}
}
