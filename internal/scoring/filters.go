package scoring

import (
	"fmt"
	"math"

	"github.com/yourusername/kabu-screener/internal/config"
)

// Filters are the minimum requirements a live screening candidate must meet
type Filters struct {
	MinTradingValue float64
	MinMarketCap    float64
	MaxMarketCap    float64
	MinVolatility   float64
	RequireMargin   bool
}

// DefaultFilters returns the day-trade universe filters
func DefaultFilters() Filters {
	return Filters{
		MinTradingValue: 5e8,
		MinMarketCap:    1e10,
		MaxMarketCap:    1e11,
		MinVolatility:   0.02,
		RequireMargin:   true,
	}
}

// FiltersFromConfig converts the YAML filters section
func FiltersFromConfig(c config.FilterConfig) Filters {
	return Filters{
		MinTradingValue: c.MinTradingValue,
		MinMarketCap:    c.MinMarketCap,
		MaxMarketCap:    c.MaxMarketCap,
		MinVolatility:   c.MinVolatility,
		RequireMargin:   c.RequireMargin,
	}
}

// Filter names reported by Reject
const (
	FilterTradingValue = "trading_value"
	FilterMarketCap    = "market_cap"
	FilterMargin       = "margin"
	FilterVolatility   = "volatility"
)

// Reject returns the first failing filter and a readable reason, or two empty strings.
// The market cap band is skipped when the snapshot has no market cap.
func (f Filters) Reject(s Snapshot) (filter, reason string) {
	if tv := s.TradingValue(); tv < f.MinTradingValue {
		return FilterTradingValue, fmt.Sprintf("trading value %.0f below %.0f", tv, f.MinTradingValue)
	}
	if s.MarketCap != nil {
		if *s.MarketCap < f.MinMarketCap {
			return FilterMarketCap, fmt.Sprintf("market cap %.0f below %.0f", *s.MarketCap, f.MinMarketCap)
		}
		if f.MaxMarketCap > 0 && *s.MarketCap > f.MaxMarketCap {
			return FilterMarketCap, fmt.Sprintf("market cap %.0f above %.0f", *s.MarketCap, f.MaxMarketCap)
		}
	}
	if f.RequireMargin && !s.Marginable {
		return FilterMargin, "not marginable"
	}
	if math.Abs(s.GapRatio) < f.MinVolatility {
		return FilterVolatility, fmt.Sprintf("gap %.4f below volatility floor %.4f", s.GapRatio, f.MinVolatility)
	}
	return "", ""
}
