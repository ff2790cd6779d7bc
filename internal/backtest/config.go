package backtest

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/yourusername/kabu-screener/internal/config"
	"github.com/yourusername/kabu-screener/internal/models"
)

var (
	// ErrInvalidConfiguration is returned before the simulation starts when the config is unusable
	ErrInvalidConfiguration = errors.New("invalid backtest configuration")
	// ErrNoMarketData is returned when no symbol in the universe has history
	ErrNoMarketData = errors.New("no market data for any symbol in universe")
)

// BacktestConfig is the immutable input of a run
type BacktestConfig struct {
	StartDate              time.Time
	EndDate                time.Time
	InitialCapital         float64
	MaxPositions           int
	PositionSize           float64 // fraction of current cash per trade
	CommissionRate         float64
	SlippageRate           float64
	StopLossPct            float64
	TakeProfitPct          float64
	HoldingPeriodLimitDays int // calendar days
	EntryThreshold         float64
	LotSize                int64
	LookbackDays           int
	MinHistoryBars         int
	Universe               []string
	FetchConcurrency       int
	OutputPath             string
}

// DefaultConfig returns the reference parameter set for [start, end]
func DefaultConfig(start, end time.Time, universe []string) BacktestConfig {
	return BacktestConfig{
		StartDate:              start,
		EndDate:                end,
		InitialCapital:         1_000_000,
		MaxPositions:           5,
		PositionSize:           0.2,
		CommissionRate:         0.001,
		SlippageRate:           0.001,
		StopLossPct:            0.03,
		TakeProfitPct:          0.05,
		HoldingPeriodLimitDays: 5,
		EntryThreshold:         70,
		LotSize:                models.LotSize,
		LookbackDays:           100,
		MinHistoryBars:         30,
		Universe:               universe,
		FetchConcurrency:       4,
		OutputPath:             "backtest_results",
	}
}

// FromConfig converts app config to backtest config
func FromConfig(cfg *config.BacktestConfig, concurrency int) (BacktestConfig, error) {
	if cfg == nil {
		return BacktestConfig{}, fmt.Errorf("%w: backtest config is required", ErrInvalidConfiguration)
	}
	start, err := time.Parse("2006-01-02", cfg.StartDate)
	if err != nil {
		return BacktestConfig{}, fmt.Errorf("%w: invalid start date: %v", ErrInvalidConfiguration, err)
	}
	end, err := time.Parse("2006-01-02", cfg.EndDate)
	if err != nil {
		return BacktestConfig{}, fmt.Errorf("%w: invalid end date: %v", ErrInvalidConfiguration, err)
	}

	bt := BacktestConfig{
		StartDate:              start,
		EndDate:                end,
		InitialCapital:         cfg.InitialCapital,
		MaxPositions:           cfg.MaxPositions,
		PositionSize:           cfg.PositionSize,
		CommissionRate:         cfg.CommissionRate,
		SlippageRate:           cfg.SlippageRate,
		StopLossPct:            cfg.StopLossPct,
		TakeProfitPct:          cfg.TakeProfitPct,
		HoldingPeriodLimitDays: cfg.HoldingPeriodLimit,
		EntryThreshold:         cfg.EntryThreshold,
		LotSize:                models.LotSize,
		LookbackDays:           cfg.LookbackDays,
		MinHistoryBars:         cfg.MinHistoryBars,
		Universe:               append([]string(nil), cfg.Universe...),
		FetchConcurrency:       concurrency,
		OutputPath:             cfg.OutputPath,
	}

	return bt, bt.Validate()
}

// Validate validates backtest config parameters. Every error wraps ErrInvalidConfiguration.
func (b BacktestConfig) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
	}
	switch {
	case b.StartDate.IsZero() || b.EndDate.IsZero():
		return invalid("start and end dates are required")
	case b.StartDate.After(b.EndDate):
		return invalid("start date %s is after end date %s", b.StartDate.Format("2006-01-02"), b.EndDate.Format("2006-01-02"))
	case b.InitialCapital <= 0:
		return invalid("initial capital must be positive")
	case b.MaxPositions < 1:
		return invalid("max positions must be at least 1")
	case b.PositionSize <= 0 || b.PositionSize > 1:
		return invalid("position size must be in (0, 1]")
	case b.CommissionRate < 0 || b.CommissionRate >= 1:
		return invalid("commission rate must be in [0, 1)")
	case b.SlippageRate < 0 || b.SlippageRate >= 1:
		return invalid("slippage rate must be in [0, 1)")
	case b.StopLossPct <= 0:
		return invalid("stop loss must be positive")
	case b.TakeProfitPct <= 0:
		return invalid("take profit must be positive")
	case b.HoldingPeriodLimitDays < 1:
		return invalid("holding period limit must be at least 1 day")
	case b.LotSize < 1:
		return invalid("lot size must be at least 1")
	case b.LookbackDays < 0 || b.MinHistoryBars < 0:
		return invalid("lookback and min history cannot be negative")
	case len(b.Universe) == 0:
		return invalid("universe is empty")
	}
	return nil
}

// Symbols returns the de-duplicated universe in lexical order
func (b BacktestConfig) Symbols() []string {
	seen := make(map[string]struct{}, len(b.Universe))
	out := make([]string, 0, len(b.Universe))
	for _, s := range b.Universe {
		if _, ok := seen[s]; ok || s == "" {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Parameters returns the serializable parameter set stored with results
func (b BacktestConfig) Parameters() map[string]any {
	return map[string]any{
		"start_date":                b.StartDate.Format("2006-01-02"),
		"end_date":                  b.EndDate.Format("2006-01-02"),
		"initial_capital":           b.InitialCapital,
		"max_positions":             b.MaxPositions,
		"position_size":             b.PositionSize,
		"commission_rate":           b.CommissionRate,
		"slippage_rate":             b.SlippageRate,
		"stop_loss_pct":             b.StopLossPct,
		"take_profit_pct":           b.TakeProfitPct,
		"holding_period_limit_days": b.HoldingPeriodLimitDays,
		"entry_threshold":           b.EntryThreshold,
		"lot_size":                  b.LotSize,
		"universe":                  b.Symbols(),
	}
}

// TradingDays returns the weekdays in [StartDate, EndDate]
func (b BacktestConfig) TradingDays() []time.Time {
	start := dayOf(b.StartDate)
	end := dayOf(b.EndDate)
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		days = append(days, d)
	}
	return days
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
