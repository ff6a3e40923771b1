// Package parallel provides the bounded fan-out primitive shared by the
// collect step, the trigger step, and the scoring stage.
package parallel

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Result pairs one input with its output or its error.
type Result[In, Out any] struct {
	Input In
	Value Out
	Err   error
}

// ForEach runs fn over items with at most limit invocations in flight and
// returns one Result per item, in input order. A failing item never cancels
// its siblings; the caller decides what a partial result set means.
// A limit of zero or less means unbounded.
func ForEach[In, Out any](ctx context.Context, limit int, items []In, fn func(ctx context.Context, item In) (Out, error)) []Result[In, Out] {
	results := make([]Result[In, Out], len(items))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, item := range items {
		g.Go(func() error {
			out, err := fn(ctx, item)
			results[i] = Result[In, Out]{Input: item, Value: out, Err: err}
			return nil
		})
	}
	// Errors live in results, so Wait has nothing to report.
	_ = g.Wait()

	return results
}
