package stream

import (
	"fmt"

	"github.com/ogierm/geodraft/internal/model"
	"github.com/ogierm/geodraft/internal/observability"
)

// ReplicationError wraps a failure that occurred while draining a source
// sequence for replication. No replica is handed out when it is returned.
type ReplicationError struct {
	Cause error
}

func (e *ReplicationError) Error() string {
	return fmt.Sprintf("replicating stream: %v", e.Cause)
}

func (e *ReplicationError) Unwrap() error { return e.Cause }

// Replicate turns one single-pass sequence into n independent single-pass
// sequences that each yield the original features in order.
//
// For n == 1 the original sequence is returned untouched, keeping the common
// straight-chain case buffer-free. For n > 1 the source is drained once into
// memory and each returned replica is a cursor over the shared buffer;
// replicas never observe each other. Buffering whole results is a deliberate
// trade: fan-out without it would need backpressure coordination between
// consumers draining at different rates, and project-sized feature counts
// do not justify that.
func Replicate(s Seq, n int) ([]Seq, error) {
	if n <= 0 {
		return nil, nil
	}
	if n == 1 {
		return []Seq{s}, nil
	}
	buf, err := Collect(s)
	if err != nil {
		return nil, &ReplicationError{Cause: err}
	}
	observability.ObserveReplicationBuffer(len(buf))
	out := make([]Seq, n)
	for i := range out {
		out[i] = cursor(buf)
	}
	return out, nil
}

// cursor returns a fresh single-pass view over buf.
func cursor(buf []model.Feature) Seq {
	return func(yield func(model.Feature, error) bool) {
		for _, f := range buf {
			if !yield(f, nil) {
				return
			}
		}
	}
}
