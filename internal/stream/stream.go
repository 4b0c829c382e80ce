// Package stream defines the lazy feature sequence used throughout the
// pipeline and the replicator that fans a single-pass sequence out to
// multiple consumers.
package stream

import (
	"iter"

	"github.com/ogierm/geodraft/internal/model"
)

// Seq is a lazy, forward-only sequence of features. A Seq yields features
// until exhaustion, or yields exactly one non-nil error and then stops.
// Every Seq handed around by the pipeline is single-pass: it is ranged over
// at most once, by exactly one consumer.
type Seq = iter.Seq2[model.Feature, error]

// Of returns a sequence over the given features.
func Of(features ...model.Feature) Seq {
	return func(yield func(model.Feature, error) bool) {
		for _, f := range features {
			if !yield(f, nil) {
				return
			}
		}
	}
}

// Err returns a sequence that yields only the given error.
func Err(err error) Seq {
	return func(yield func(model.Feature, error) bool) {
		yield(model.Feature{}, err)
	}
}

// Collect drains s into a slice. On a mid-stream error it returns the
// features read so far together with the error.
func Collect(s Seq) ([]model.Feature, error) {
	var out []model.Feature
	for f, err := range s {
		if err != nil {
			return out, err
		}
		out = append(out, f)
	}
	return out, nil
}

// Count drains s and reports how many features it yielded.
func Count(s Seq) (int, error) {
	n := 0
	for _, err := range s {
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Transform wraps s, applying fn to each feature lazily. fn returns the
// mapped feature and whether to keep it; returning keep=false drops the
// feature and continues, which is how per-feature skips are expressed.
func Transform(s Seq, fn func(model.Feature) (model.Feature, bool, error)) Seq {
	return func(yield func(model.Feature, error) bool) {
		for f, err := range s {
			if err != nil {
				yield(model.Feature{}, err)
				return
			}
			mapped, keep, ferr := fn(f)
			if ferr != nil {
				yield(model.Feature{}, ferr)
				return
			}
			if !keep {
				continue
			}
			if !yield(mapped, nil) {
				return
			}
		}
	}
}

// Concat yields the given sequences one after another, preserving the order
// within each.
func Concat(seqs ...Seq) Seq {
	return func(yield func(model.Feature, error) bool) {
		for _, s := range seqs {
			for f, err := range s {
				if !yield(f, err) {
					return
				}
				if err != nil {
					return
				}
			}
		}
	}
}
