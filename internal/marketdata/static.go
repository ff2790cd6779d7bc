package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/yourusername/kabu-screener/internal/models"
)

// StaticProvider serves bars held in memory, keyed by symbol
type StaticProvider struct {
	bars map[string][]models.Bar
	errs map[string]error
}

// NewStaticProvider creates a provider over a fixed data set
func NewStaticProvider(bars map[string][]models.Bar) *StaticProvider {
	return &StaticProvider{bars: bars, errs: make(map[string]error)}
}

// FailWith makes History return err for symbol
func (p *StaticProvider) FailWith(symbol string, err error) *StaticProvider {
	p.errs[symbol] = err
	return p
}

// Name returns the name of the provider
func (p *StaticProvider) Name() string {
	return "static"
}

// History returns a copy of the stored bars within [start, end]
func (p *StaticProvider) History(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := p.errs[symbol]; ok {
		return nil, err
	}
	bars := clip(p.bars[symbol], start, end)
	if len(bars) == 0 {
		return nil, fmt.Errorf("static %s: %w", symbol, ErrDataUnavailable)
	}
	return bars, nil
}
