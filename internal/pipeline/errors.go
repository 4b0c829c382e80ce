package pipeline

import "fmt"

// Machine-readable codes carried by ConfigurationError.
const (
	CodeUnknownOperationKind = "UNKNOWN_OPERATION_KIND"
	CodeUnresolvedReference  = "UNRESOLVED_REFERENCE"
	CodeMissingInput         = "MISSING_INPUT"
	CodeBadParameter         = "BAD_PARAMETER"
)

// ConfigurationError marks a layer configuration the executor cannot run:
// an unknown operation kind, a sourceName that resolves to nothing, a
// missing required parameter. It is fatal for the layer, never for the run.
type ConfigurationError struct {
	Layer   string
	OpIndex int // -1 when not tied to one operation
	Code    string
	Reason  string
	Cause   error
}

func (e *ConfigurationError) Error() string {
	if e.OpIndex >= 0 {
		return fmt.Sprintf("layer %q operation %d: %s (%s)", e.Layer, e.OpIndex, e.Reason, e.Code)
	}
	return fmt.Sprintf("layer %q: %s (%s)", e.Layer, e.Reason, e.Code)
}

func (e *ConfigurationError) Unwrap() error { return e.Cause }
