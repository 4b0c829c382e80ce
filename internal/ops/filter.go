package ops

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ogierm/geodraft/internal/model"
	"github.com/ogierm/geodraft/internal/stream"
)

// filterAttributeOp keeps features matching an attribute predicate.
// Exactly one of the predicate parameters must be set:
//
//	equals: <value>     keep features whose field equals the value
//	in: [v1, v2, ...]   keep features whose field is one of the values
//	exists: true        keep features that have the field at all
//
// Features missing the field fail the predicate and are skipped; that is
// the documented per-feature tolerance, not an error.
type filterAttributeOp struct {
	log *slog.Logger
}

func (o *filterAttributeOp) Kind() model.OpKind { return model.OpFilterAttribute }

func (o *filterAttributeOp) Run(_ context.Context, in stream.Seq, cfg model.OperationConfig) (stream.Seq, error) {
	field, err := cfg.RequireString("field")
	if err != nil {
		return nil, err
	}

	match, err := predicate(cfg)
	if err != nil {
		return nil, err
	}

	skipped := 0
	return stream.Transform(in, func(f model.Feature) (model.Feature, bool, error) {
		v, ok := f.Attributes[field]
		if !ok {
			skipped++
			if skipped == 1 {
				o.log.Debug("filter skipping features without field", "field", field)
			}
			return model.Feature{}, false, nil
		}
		if !match(v) {
			return model.Feature{}, false, nil
		}
		return f, true, nil
	}), nil
}

func predicate(cfg model.OperationConfig) (func(any) bool, error) {
	if want, ok := cfg.Params["equals"]; ok {
		w := fmt.Sprint(want)
		return func(v any) bool { return fmt.Sprint(v) == w }, nil
	}
	if list, ok := cfg.StringSlice("in"); ok {
		set := make(map[string]struct{}, len(list))
		for _, s := range list {
			set[s] = struct{}{}
		}
		return func(v any) bool {
			_, ok := set[fmt.Sprint(v)]
			return ok
		}, nil
	}
	if _, ok := cfg.Params["exists"]; ok {
		return func(any) bool { return true }, nil
	}
	return nil, fmt.Errorf("operation %q: one of \"equals\", \"in\", \"exists\" is required", cfg.Kind)
}
