package backtest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/kabu-screener/internal/marketdata"
	"github.com/yourusername/kabu-screener/internal/models"
)

// trading days of scenarioConfig: 01-02 01-03 01-04 01-05 01-06 01-09 01-10
func runScenario(t *testing.T, cfg BacktestConfig, bars map[string]map[string]float64, scores stubScorer) *Result {
	t.Helper()
	data := make(map[string][]models.Bar, len(bars))
	for symbol, closes := range bars {
		data[symbol] = flatBars(closes)
	}
	engine, err := NewEngine(cfg, marketdata.NewStaticProvider(data), nil, WithScorer(scores))
	require.NoError(t, err)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	return result
}

func TestScenarioTakeProfit(t *testing.T) {
	closes := map[string]float64{
		"2023-01-02": 1000, "2023-01-03": 1020, "2023-01-04": 1040,
		"2023-01-05": 1060, "2023-01-06": 1090, "2023-01-09": 1090, "2023-01-10": 1090,
	}
	result := runScenario(t, scenarioConfig("7203.T"),
		map[string]map[string]float64{"7203.T": closes},
		everyDay("7203.T", 90, "2023-01-02"))

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, models.ExitReasonTakeProfit, trade.ExitReason)
	assert.Equal(t, d("2023-01-02"), trade.EntryDate)
	assert.Equal(t, d("2023-01-06"), *trade.ExitDate)
	assert.Equal(t, int64(500), trade.Shares)

	// 9% quote move, about 8.6% after slippage and commission
	assert.Greater(t, trade.PnLPercentage, 8.0)
	assert.Less(t, trade.PnLPercentage, 9.0)
	assert.InDelta(t, 42910.045, trade.PnL, 1e-6)
	assert.Equal(t, 1, result.WinningTrades)
	assert.Equal(t, 1.0, result.WinRate)
	assert.Zero(t, result.ProfitFactor, "no losing trades")
}

func TestScenarioStopLoss(t *testing.T) {
	closes := map[string]float64{
		"2023-01-02": 1000, "2023-01-03": 970, "2023-01-04": 940,
		"2023-01-05": 940, "2023-01-06": 940, "2023-01-09": 940, "2023-01-10": 940,
	}
	result := runScenario(t, scenarioConfig("7203.T"),
		map[string]map[string]float64{"7203.T": closes},
		everyDay("7203.T", 90, "2023-01-02"))

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, models.ExitReasonStopLoss, trade.ExitReason)
	assert.Equal(t, d("2023-01-04"), *trade.ExitDate)
	assert.Less(t, trade.PnLPercentage, -5.0)
	assert.Greater(t, trade.PnLPercentage, -7.0)
	assert.Equal(t, 1, result.LosingTrades)
	assert.Less(t, result.MaxDrawdown, 0.0)
}

func TestScenarioTimeLimit(t *testing.T) {
	closes := map[string]float64{
		"2023-01-02": 1000, "2023-01-03": 980, "2023-01-04": 1030,
		"2023-01-05": 990, "2023-01-06": 1020, "2023-01-09": 985, "2023-01-10": 1025,
	}
	cfg := scenarioConfig("7203.T")
	cfg.HoldingPeriodLimitDays = 5

	result := runScenario(t, cfg,
		map[string]map[string]float64{"7203.T": closes},
		everyDay("7203.T", 90, "2023-01-02"))

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, models.ExitReasonTimeLimit, trade.ExitReason)
	// 01-06 is only four calendar days in; 01-09 is the sixth trading day
	assert.Equal(t, d("2023-01-09"), *trade.ExitDate)
	assert.Equal(t, 7, trade.HoldingDays(*trade.ExitDate))
}

func TestScenarioInsufficientCapital(t *testing.T) {
	cfg := scenarioConfig("7203.T")
	cfg.InitialCapital = 1000

	closes := map[string]float64{"2023-01-02": 1000, "2023-01-03": 1000, "2023-01-04": 1000,
		"2023-01-05": 1000, "2023-01-06": 1000, "2023-01-09": 1000, "2023-01-10": 1000}
	scores := everyDay("7203.T", 95, "2023-01-02", "2023-01-03", "2023-01-04", "2023-01-05", "2023-01-06", "2023-01-09", "2023-01-10")

	result := runScenario(t, cfg, map[string]map[string]float64{"7203.T": closes}, scores)
	assert.Empty(t, result.Trades)
	assert.Equal(t, 1000.0, result.FinalCapital)
	for _, p := range result.DailyEquity {
		assert.Equal(t, 1000.0, p.Cash)
		assert.Zero(t, p.OpenPositions)
	}
}

func TestScenarioRankingUnderCapacity(t *testing.T) {
	dates := []string{"2023-01-02", "2023-01-03", "2023-01-04", "2023-01-05", "2023-01-06", "2023-01-09", "2023-01-10"}
	scores := stubScorer{}
	for _, date := range dates {
		scores[date] = map[string]float64{"6758.T": 85}
	}
	scores["2023-01-02"]["7203.T"] = 90

	bars := map[string]map[string]float64{
		"7203.T": {"2023-01-02": 1000, "2023-01-03": 1000, "2023-01-04": 1100, "2023-01-05": 1100,
			"2023-01-06": 1100, "2023-01-09": 1100, "2023-01-10": 1100},
		"6758.T": {"2023-01-02": 500, "2023-01-03": 500, "2023-01-04": 500, "2023-01-05": 500,
			"2023-01-06": 500, "2023-01-09": 500, "2023-01-10": 500},
	}

	result := runScenario(t, scenarioConfig("7203.T", "6758.T"), bars, scores)
	require.Len(t, result.Trades, 2)

	first := result.Trades[0]
	assert.Equal(t, "7203.T", first.Symbol)
	assert.Equal(t, 90.0, first.Score)
	assert.Equal(t, models.ExitReasonTakeProfit, first.ExitReason)

	// the 85 candidate waits until the slot frees; exits run before entries on 01-04
	second := result.Trades[1]
	assert.Equal(t, "6758.T", second.Symbol)
	assert.Equal(t, d("2023-01-04"), second.EntryDate)
	assert.Equal(t, models.ExitReasonBacktestEnd, second.ExitReason)
	assert.Equal(t, d("2023-01-10"), *second.ExitDate)

	for _, p := range result.DailyEquity {
		assert.LessOrEqual(t, p.OpenPositions, 1)
	}
}

func TestTieBreakBySymbol(t *testing.T) {
	scores := stubScorer{"2023-01-02": {"9984.T": 80, "6758.T": 80}}
	flat := map[string]float64{"2023-01-02": 1000, "2023-01-03": 1000, "2023-01-04": 1000,
		"2023-01-05": 1000, "2023-01-06": 1000, "2023-01-09": 1000, "2023-01-10": 1000}

	result := runScenario(t, scenarioConfig("9984.T", "6758.T"),
		map[string]map[string]float64{"9984.T": flat, "6758.T": flat}, scores)

	require.Len(t, result.Trades, 1)
	assert.Equal(t, "6758.T", result.Trades[0].Symbol)
}

func TestZeroTrades(t *testing.T) {
	closes := map[string]float64{"2023-01-02": 1000, "2023-01-03": 1010, "2023-01-04": 990,
		"2023-01-05": 1000, "2023-01-06": 1000, "2023-01-09": 1000, "2023-01-10": 1000}
	scores := everyDay("7203.T", 69.9, "2023-01-02", "2023-01-03")

	result := runScenario(t, scenarioConfig("7203.T"), map[string]map[string]float64{"7203.T": closes}, scores)

	assert.Zero(t, result.TotalTrades)
	assert.Zero(t, result.WinRate)
	assert.Zero(t, result.ProfitFactor)
	assert.Zero(t, result.TotalReturn)
	assert.Zero(t, result.SharpeRatio)
	assert.Zero(t, result.MaxDrawdown)
	assert.Equal(t, result.InitialCapital, result.FinalCapital)
	assert.Len(t, result.DailyEquity, 7)
}

func TestForcedLiquidationAtEnd(t *testing.T) {
	closes := map[string]float64{"2023-01-02": 1000, "2023-01-03": 1010, "2023-01-04": 1020,
		"2023-01-05": 1010, "2023-01-06": 1020, "2023-01-09": 1030}
	// no bar on 01-10: liquidation uses the last close on or before the end date
	result := runScenario(t, scenarioConfig("7203.T"), map[string]map[string]float64{"7203.T": closes},
		everyDay("7203.T", 90, "2023-01-02"))

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, models.ExitReasonBacktestEnd, trade.ExitReason)
	assert.InDelta(t, 1030*(1-0.001), trade.ExitPrice, 1e-9)
	require.NotNil(t, trade.ExitDate)
	assert.Equal(t, d("2023-01-09"), *trade.ExitDate, "dated by the bar that priced the exit")
	assert.Zero(t, result.OpenPositions)
	assert.Equal(t, 1, result.TotalTrades)
}

func TestMissingBarDefersExit(t *testing.T) {
	// 01-04 is missing; the stop breach is first seen on 01-05
	closes := map[string]float64{"2023-01-02": 1000, "2023-01-03": 990,
		"2023-01-05": 900, "2023-01-06": 900, "2023-01-09": 900, "2023-01-10": 900}
	result := runScenario(t, scenarioConfig("7203.T"), map[string]map[string]float64{"7203.T": closes},
		everyDay("7203.T", 90, "2023-01-02"))

	require.Len(t, result.Trades, 1)
	assert.Equal(t, models.ExitReasonStopLoss, result.Trades[0].ExitReason)
	assert.Equal(t, d("2023-01-05"), *result.Trades[0].ExitDate)

	// the gap day is still marked, at the last known close
	require.Len(t, result.DailyEquity, 7)
	gap := result.DailyEquity[2]
	assert.Equal(t, d("2023-01-04"), gap.Date)
	assert.Equal(t, 1, gap.OpenPositions)
	assert.InDelta(t, gap.Cash+990*500, gap.TotalValue, 1e-6)
}

func TestCapitalConservation(t *testing.T) {
	dates := []string{"2023-01-02", "2023-01-03", "2023-01-04", "2023-01-05", "2023-01-06", "2023-01-09", "2023-01-10"}
	scores := stubScorer{}
	for _, date := range dates {
		scores[date] = map[string]float64{"7203.T": 80, "6758.T": 75, "9984.T": 72}
	}
	bars := map[string]map[string]float64{
		"7203.T": {"2023-01-02": 1000, "2023-01-03": 1100, "2023-01-04": 1000, "2023-01-05": 1050, "2023-01-06": 980, "2023-01-09": 1000, "2023-01-10": 1010},
		"6758.T": {"2023-01-02": 2000, "2023-01-03": 1880, "2023-01-04": 2000, "2023-01-05": 2100, "2023-01-06": 2200, "2023-01-09": 2000, "2023-01-10": 1990},
		"9984.T": {"2023-01-02": 6000, "2023-01-03": 6100, "2023-01-04": 6600, "2023-01-05": 6000, "2023-01-06": 6050, "2023-01-09": 6100, "2023-01-10": 6000},
	}
	cfg := scenarioConfig("7203.T", "6758.T", "9984.T")
	cfg.MaxPositions = 2
	cfg.PositionSize = 0.3
	cfg.HoldingPeriodLimitDays = 3

	result := runScenario(t, cfg, bars, scores)
	require.NotEmpty(t, result.Trades)

	realized := 0.0
	commission := 0.0
	for _, trade := range result.Trades {
		realized += trade.PnL
		commission += trade.CommissionPaid
	}
	assert.InDelta(t, result.InitialCapital+realized, result.FinalCapital, 1e-6)
	assert.InDelta(t, result.TotalCommission, commission, 1e-6)

	for _, p := range result.DailyEquity {
		assert.GreaterOrEqual(t, p.Cash, 0.0)
		assert.LessOrEqual(t, p.OpenPositions, 2)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	dates := []string{"2023-01-02", "2023-01-03", "2023-01-04", "2023-01-05", "2023-01-06", "2023-01-09", "2023-01-10"}
	scores := stubScorer{}
	for _, date := range dates {
		scores[date] = map[string]float64{"7203.T": 80, "6758.T": 80, "9984.T": 80}
	}
	bars := map[string]map[string]float64{
		"7203.T": {"2023-01-02": 1000, "2023-01-03": 1100, "2023-01-04": 1000, "2023-01-05": 1050, "2023-01-06": 980, "2023-01-09": 1000, "2023-01-10": 1010},
		"6758.T": {"2023-01-02": 2000, "2023-01-03": 1880, "2023-01-04": 2000, "2023-01-05": 2100, "2023-01-06": 2200, "2023-01-09": 2000, "2023-01-10": 1990},
		"9984.T": {"2023-01-02": 6000, "2023-01-03": 6100, "2023-01-04": 6600, "2023-01-05": 6000, "2023-01-06": 6050, "2023-01-09": 6100, "2023-01-10": 6000},
	}
	cfg := scenarioConfig("9984.T", "7203.T", "6758.T")
	cfg.MaxPositions = 2

	first := runScenario(t, cfg, bars, scores)
	second := runScenario(t, cfg, bars, scores)
	assert.Equal(t, first, second)
}

func TestRealScorerNeedsHistory(t *testing.T) {
	cfg := scenarioConfig("7203.T")
	cfg.MinHistoryBars = 30

	bars := map[string][]models.Bar{"7203.T": flatBars(map[string]float64{"2023-01-02": 1000, "2023-01-03": 1000})}
	engine, err := NewEngine(cfg, marketdata.NewStaticProvider(bars), nil)
	require.NoError(t, err)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.TotalTrades)
}

func TestInvalidConfigurationIsFatal(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*BacktestConfig)
	}{
		{"start after end", func(c *BacktestConfig) { c.StartDate = d("2023-02-01") }},
		{"zero capital", func(c *BacktestConfig) { c.InitialCapital = 0 }},
		{"no positions", func(c *BacktestConfig) { c.MaxPositions = 0 }},
		{"position size above one", func(c *BacktestConfig) { c.PositionSize = 1.2 }},
		{"commission of one", func(c *BacktestConfig) { c.CommissionRate = 1 }},
		{"negative slippage", func(c *BacktestConfig) { c.SlippageRate = -0.01 }},
		{"zero stop", func(c *BacktestConfig) { c.StopLossPct = 0 }},
		{"zero target", func(c *BacktestConfig) { c.TakeProfitPct = 0 }},
		{"zero holding", func(c *BacktestConfig) { c.HoldingPeriodLimitDays = 0 }},
		{"empty universe", func(c *BacktestConfig) { c.Universe = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := scenarioConfig("7203.T")
			tt.mutate(&cfg)

			_, err := NewEngine(cfg, marketdata.NewStaticProvider(nil), nil)
			require.Error(t, err)
			assert.True(t, IsConfigurationError(err))
		})
	}
}

func TestNoMarketDataIsFatal(t *testing.T) {
	obs := &recordingObserver{}
	provider := marketdata.NewStaticProvider(nil).FailWith("6758.T", errors.New("timeout"))
	engine, err := NewEngine(scenarioConfig("7203.T", "6758.T"), provider, nil, WithObserver(obs))
	require.NoError(t, err)

	result, err := engine.Run(context.Background())
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrNoMarketData)
	assert.ElementsMatch(t, []string{"7203.T", "6758.T"}, obs.dataFailures)
	assert.Equal(t, 1, obs.runs)
	assert.ErrorIs(t, obs.lastErr, ErrNoMarketData)
}

func TestPartialDataFailureIsSkipped(t *testing.T) {
	obs := &recordingObserver{}
	bars := map[string][]models.Bar{"7203.T": flatBars(map[string]float64{
		"2023-01-02": 1000, "2023-01-03": 1100, "2023-01-04": 1100, "2023-01-05": 1100,
		"2023-01-06": 1100, "2023-01-09": 1100, "2023-01-10": 1100})}
	provider := marketdata.NewStaticProvider(bars).FailWith("6758.T", errors.New("delisted"))

	engine, err := NewEngine(scenarioConfig("7203.T", "6758.T"), provider, nil,
		WithScorer(everyDay("7203.T", 90, "2023-01-02")), WithObserver(obs))
	require.NoError(t, err)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalTrades)
	assert.Equal(t, []string{"6758.T"}, obs.dataFailures)
	assert.Len(t, obs.trades, 1)
}

func TestTradingDaysSkipWeekends(t *testing.T) {
	days := scenarioConfig("7203.T").TradingDays()
	require.Len(t, days, 7)
	assert.Equal(t, d("2023-01-02"), days[0])
	assert.Equal(t, d("2023-01-10"), days[6])
}
