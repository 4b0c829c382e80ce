// Package ops implements the geometry operations a layer chain can apply,
// behind a single contract: consume one lazy feature sequence, produce
// another.
package ops

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ogierm/geodraft/internal/model"
	"github.com/ogierm/geodraft/internal/stream"
)

// Operation transforms one feature sequence into another.
//
// Run returns an error only for configuration-level problems (a missing
// required parameter, an unusable transform name); such errors are fatal for
// the whole layer. Per-feature trouble inside the returned sequence (a
// feature missing an attribute, an unparseable geometry) is logged and the
// feature skipped. The returned sequence must be lazy unless the kind
// inherently needs its whole input (dissolve), in which case it may drain
// the input when first driven. Operations never mutate input features.
type Operation interface {
	Kind() model.OpKind
	Run(ctx context.Context, in stream.Seq, cfg model.OperationConfig) (stream.Seq, error)
}

// ExecutionError reports an operation whose internal precondition failed.
type ExecutionError struct {
	Kind   model.OpKind
	Reason string
	Cause  error
}

func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("operation %q: %s: %v", e.Kind, e.Reason, e.Cause)
	}
	return fmt.Sprintf("operation %q: %s", e.Kind, e.Reason)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// UnsupportedKindError is returned by Resolve for an unknown operation kind.
type UnsupportedKindError struct {
	Kind model.OpKind
}

func (e *UnsupportedKindError) Error() string {
	return fmt.Sprintf("unsupported operation kind %q", e.Kind)
}

// Registry maps operation kinds to implementations. It is populated once at
// startup and read-only afterwards, so concurrent layer tasks may share it
// without locking.
type Registry struct {
	ops map[model.OpKind]Operation
}

// NewRegistry builds the full operation table.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	r := &Registry{ops: make(map[model.OpKind]Operation)}
	for _, op := range []Operation{
		&bufferOp{log: log},
		&simplifyOp{},
		&dissolveOp{log: log},
		&reprojectOp{},
		&cleanOp{},
		&explodeOp{},
		&intersectionOp{},
		&mergeOp{},
		&filterAttributeOp{log: log},
		&filterExtentOp{},
		&fieldMappingOp{},
		&labelPlacementOp{log: log},
	} {
		r.ops[op.Kind()] = op
	}
	return r
}

// Resolve returns the implementation for kind.
func (r *Registry) Resolve(kind model.OpKind) (Operation, error) {
	op, ok := r.ops[kind]
	if !ok {
		return nil, &UnsupportedKindError{Kind: kind}
	}
	return op, nil
}

// Kinds lists every registered kind, for diagnostics.
func (r *Registry) Kinds() []model.OpKind {
	out := make([]model.OpKind, 0, len(r.ops))
	for k := range r.ops {
		out = append(out, k)
	}
	return out
}
