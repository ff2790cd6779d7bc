package marketdata

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yourusername/kabu-screener/internal/models"
)

// FetchResult holds per-symbol outcomes of FetchAll
type FetchResult struct {
	Bars   map[string][]models.Bar
	Errors map[string]error
}

// FetchAll loads history for every symbol with at most concurrency requests in flight.
// Per-symbol failures are collected in Errors; only context cancellation aborts the batch.
func FetchAll(ctx context.Context, p Provider, symbols []string, start, end time.Time, concurrency int) (*FetchResult, error) {
	if concurrency <= 0 {
		concurrency = 1
	}

	bars := make([][]models.Bar, len(symbols))
	errs := make([]error, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, symbol := range symbols {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			bars[i], errs[i] = p.History(gctx, symbol, start, end)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &FetchResult{
		Bars:   make(map[string][]models.Bar, len(symbols)),
		Errors: make(map[string]error),
	}
	for i, symbol := range symbols {
		if errs[i] != nil {
			result.Errors[symbol] = errs[i]
			continue
		}
		result.Bars[symbol] = bars[i]
	}
	return result, nil
}
