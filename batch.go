package geopix

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// A Result is the outcome of looking up a single coordinate.
type Result struct {
	Coordinate    Coordinate
	Value         float64
	BitsPerSample int
	Err           error
}

// LookupAll looks up every coordinate in coords with at most concurrency
// lookups in flight. Per-coordinate failures are reported in each Result's
// Err. It only returns an error if ctx is done.
func LookupAll(ctx context.Context, looker Looker, coords []Coordinate, concurrency int) ([]Result, error) {
	results := make([]Result, len(coords))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for i, coord := range coords {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			value, bitsPerSample, err := looker.Lookup(coord.Lat, coord.Lng)
			results[i] = Result{
				Coordinate:    coord,
				Value:         value,
				BitsPerSample: bitsPerSample,
				Err:           err,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
