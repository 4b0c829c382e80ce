package ops

import (
	"context"
	"fmt"

	"github.com/ogierm/geodraft/internal/model"
	"github.com/ogierm/geodraft/internal/stream"
)

// fieldMappingOp reshapes attribute maps: rename fields, then keep or drop.
// "keep" and "drop" are mutually exclusive; rename runs first so both refer
// to the renamed fields.
type fieldMappingOp struct{}

func (o *fieldMappingOp) Kind() model.OpKind { return model.OpFieldMapping }

func (o *fieldMappingOp) Run(_ context.Context, in stream.Seq, cfg model.OperationConfig) (stream.Seq, error) {
	rename := stringMapParam(cfg, "rename")
	keep, hasKeep := cfg.StringSlice("keep")
	drop, hasDrop := cfg.StringSlice("drop")
	if hasKeep && hasDrop {
		return nil, fmt.Errorf("operation %q: \"keep\" and \"drop\" are mutually exclusive", cfg.Kind)
	}
	if len(rename) == 0 && !hasKeep && !hasDrop {
		return nil, fmt.Errorf("operation %q: at least one of \"rename\", \"keep\", \"drop\" is required", cfg.Kind)
	}

	keepSet := toSet(keep)
	dropSet := toSet(drop)

	return stream.Transform(in, func(f model.Feature) (model.Feature, bool, error) {
		attrs := make(map[string]any, len(f.Attributes))
		for k, v := range f.Attributes {
			if to, ok := rename[k]; ok {
				k = to
			}
			if hasKeep {
				if _, ok := keepSet[k]; !ok {
					continue
				}
			}
			if hasDrop {
				if _, ok := dropSet[k]; ok {
					continue
				}
			}
			attrs[k] = v
		}
		return f.WithAttributes(attrs), true, nil
	}), nil
}

func stringMapParam(cfg model.OperationConfig, name string) map[string]string {
	raw, ok := cfg.Params[name]
	if !ok {
		return nil
	}
	out := map[string]string{}
	switch t := raw.(type) {
	case map[string]string:
		return t
	case map[string]any:
		for k, v := range t {
			if s, ok := v.(string); ok {
				out[k] = s
			}
		}
	}
	return out
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, s := range items {
		set[s] = struct{}{}
	}
	return set
}
