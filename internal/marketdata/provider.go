// Package marketdata fetches daily OHLCV history for listed equities.
package marketdata

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/yourusername/kabu-screener/internal/models"
)

// BreakerReporter is implemented by providers whose upstream sits behind a circuit breaker
type BreakerReporter interface {
	BreakerState() string
}

// Provider defines the interface for fetching daily bars from an external source
type Provider interface {
	// History returns bars dated within [start, end] inclusive, ascending by date.
	// A symbol with no bars in range returns ErrDataUnavailable.
	History(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error)

	// Name returns the name of the provider
	Name() string
}

// ErrDataUnavailable is returned when a provider has no bars for a symbol
var ErrDataUnavailable = errors.New("market data unavailable")

// ProviderError represents errors from provider operations
type ProviderError struct {
	Source  string // Provider name
	Code    string // Error code (e.g., "rate_limit_exceeded")
	Message string
	Err     error
}

func (e ProviderError) Error() string {
	if e.Err != nil {
		return e.Source + ": " + e.Code + ": " + e.Message + " (" + e.Err.Error() + ")"
	}
	return e.Source + ": " + e.Code + ": " + e.Message
}

func (e ProviderError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrCodeRateLimitExceeded = "rate_limit_exceeded"
	ErrCodeNotFound          = "not_found"
	ErrCodeInvalidData       = "invalid_data"
	ErrCodeNetworkError      = "network_error"
	ErrCodeServerError       = "server_error"
)

// NewProviderError creates a new provider error
func NewProviderError(source, code, message string, err error) ProviderError {
	return ProviderError{
		Source:  source,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// DayOf normalizes t to midnight UTC of its calendar day in t's location
func DayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// clip sorts bars by date and keeps those dated within [start, end]
func clip(bars []models.Bar, start, end time.Time) []models.Bar {
	from, to := DayOf(start), DayOf(end)
	out := make([]models.Bar, 0, len(bars))
	for _, b := range bars {
		d := DayOf(b.Date)
		if d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
