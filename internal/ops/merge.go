package ops

import (
	"context"
	"fmt"

	"github.com/ogierm/geodraft/internal/model"
	"github.com/ogierm/geodraft/internal/stream"
)

// mergeOp concatenates the named streams listed in its "sources" parameter,
// in declaration order. It is the one generative kind: it takes no implicit
// predecessor, the executor resolves the listed names and hands their
// concatenation in as the input.
type mergeOp struct{}

func (o *mergeOp) Kind() model.OpKind { return model.OpMerge }

func (o *mergeOp) Run(_ context.Context, in stream.Seq, cfg model.OperationConfig) (stream.Seq, error) {
	if in == nil {
		return nil, fmt.Errorf("operation %q: no resolved inputs", cfg.Kind)
	}
	return in, nil
}

// IsGenerative reports whether a kind produces features without an implicit
// input stream.
func IsGenerative(kind model.OpKind) bool {
	return kind == model.OpMerge
}

// MergeSources returns the names a merge operation pulls from.
func MergeSources(cfg model.OperationConfig) ([]string, error) {
	names, ok := cfg.StringSlice("sources")
	if !ok || len(names) == 0 {
		return nil, fmt.Errorf("operation %q: missing parameter \"sources\"", cfg.Kind)
	}
	return names, nil
}
