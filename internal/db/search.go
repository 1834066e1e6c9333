package db

import (
	"context"
	"iter"
)

// Search yields the records returned by list that satisfy match. Nothing
// is read until the sequence is ranged over, and each range lists afresh,
// so the sequence can be iterated again to see newer data. A list error
// is yielded once and ends the sequence.
//
// It filters in memory and suits reference-sized collections only.
func Search[T any](ctx context.Context, list func(context.Context) ([]T, error), match func(T) bool) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		records, err := list(ctx)
		if err != nil {
			var zero T
			yield(zero, err)
			return
		}
		for _, r := range records {
			if !match(r) {
				continue
			}
			if !yield(r, nil) {
				return
			}
		}
	}
}
