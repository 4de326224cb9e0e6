package card

import (
	"context"
	"errors"
)

// ErrChainExhausted indicates every candidate in a fallback chain failed.
var ErrChainExhausted = errors.New("all candidates exhausted")

// Candidate is one strategy in an ordered fallback chain.
type Candidate[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// TryInOrder evaluates candidates strictly sequentially: each candidate is
// only attempted after the previous one is confirmed rejected, and the first
// success wins with no further candidates tried. When every candidate fails
// the zero value is returned together with ErrChainExhausted wrapping the
// individual failures.
//
// The favicon service list, the metadata strategy list, and the export retry
// ladder all share this combinator.
func TryInOrder[T any](ctx context.Context, candidates []Candidate[T]) (T, string, error) {
	var zero T
	errs := make([]error, 0, len(candidates))
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		v, err := c.Run(ctx)
		if err == nil {
			return v, c.Name, nil
		}
		errs = append(errs, &candidateError{name: c.Name, err: err})
	}
	return zero, "", errors.Join(append([]error{ErrChainExhausted}, errs...)...)
}

type candidateError struct {
	name string
	err  error
}

func (e *candidateError) Error() string { return e.name + ": " + e.err.Error() }

func (e *candidateError) Unwrap() error { return e.err }
