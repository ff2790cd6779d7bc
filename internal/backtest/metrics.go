package backtest

import (
	"encoding/json"
	"math"
	"time"

	"github.com/yourusername/kabu-screener/internal/models"
)

// DaysPerYear is used to annualize returns over calendar days
const DaysPerYear = 365.25

// Result is the read-only outcome of a completed run.
// Ratios are fractions: 0.05 is 5%, MaxDrawdown is zero or negative.
type Result struct {
	StartDate        time.Time      `json:"start_date"`
	EndDate          time.Time      `json:"end_date"`
	InitialCapital   float64        `json:"initial_capital"`
	FinalCapital     float64        `json:"final_capital"`
	TotalReturn      float64        `json:"total_return"`
	AnnualizedReturn float64        `json:"annualized_return"`
	Volatility       float64        `json:"volatility"`
	SharpeRatio      float64        `json:"sharpe_ratio"`
	MaxDrawdown      float64        `json:"max_drawdown"`
	TotalTrades      int            `json:"total_trades"`
	WinningTrades    int            `json:"winning_trades"`
	LosingTrades     int            `json:"losing_trades"`
	WinRate          float64        `json:"win_rate"`
	ProfitFactor     float64        `json:"profit_factor"`
	AverageWin       float64        `json:"average_win"`
	AverageLoss      float64        `json:"average_loss"`
	LargestWin       float64        `json:"largest_win"`
	LargestLoss      float64        `json:"largest_loss"`
	TotalCommission  float64        `json:"total_commission"`
	TotalSlippage    float64        `json:"total_slippage"`
	OpenPositions    int            `json:"open_positions"`
	Parameters       map[string]any `json:"parameters"`
	Trades           []models.Trade `json:"trades"`
	DailyEquity      EquityCurve    `json:"daily_equity"`
}

// CalculateResult computes summary statistics from the final ledger state
func CalculateResult(ledger *PositionLedger, cfg BacktestConfig) *Result {
	trades := ledger.ClosedTrades()
	equity := ledger.EquityCurve()

	r := &Result{
		StartDate:       cfg.StartDate,
		EndDate:         cfg.EndDate,
		InitialCapital:  cfg.InitialCapital,
		FinalCapital:    ledger.Cash(),
		TotalCommission: ledger.TotalCommission(),
		TotalSlippage:   ledger.TotalSlippage(),
		OpenPositions:   ledger.OpenCount(),
		Parameters:      cfg.Parameters(),
		Trades:          trades,
		DailyEquity:     equity,
	}

	if cfg.InitialCapital > 0 {
		r.TotalReturn = (r.FinalCapital - cfg.InitialCapital) / cfg.InitialCapital
		r.AnnualizedReturn = calculateAnnualizedReturn(cfg.InitialCapital, r.FinalCapital, elapsedDays(cfg.StartDate, cfg.EndDate))
	}
	r.Volatility = equity.GetVolatility()
	if r.Volatility > 0 {
		r.SharpeRatio = r.AnnualizedReturn / r.Volatility
	}
	r.MaxDrawdown = equity.GetMaxDrawdown()

	r.TotalTrades = len(trades)
	r.WinningTrades, r.LosingTrades, r.AverageWin, r.AverageLoss, r.LargestWin, r.LargestLoss = calculateTradeStats(trades)
	r.WinRate = calculateWinRate(r.WinningTrades, r.TotalTrades)
	r.ProfitFactor = calculateProfitFactor(trades)

	return r
}

// ToJSON exports the result to JSON
func (r *Result) ToJSON() string {
	data, _ := json.MarshalIndent(r, "", "  ")
	return string(data)
}

func elapsedDays(start, end time.Time) int {
	return int(dayOf(end).Sub(dayOf(start)).Hours() / 24)
}

func calculateAnnualizedReturn(initial, final float64, days int) float64 {
	if initial <= 0 || days <= 0 {
		return 0
	}
	if final <= 0 {
		return -1
	}
	v := math.Pow(final/initial, DaysPerYear/float64(days)) - 1
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func calculateTradeStats(trades []models.Trade) (int, int, float64, float64, float64, float64) {
	wins := 0
	losses := 0
	winSum := 0.0
	lossSum := 0.0
	largestWin := 0.0
	largestLoss := 0.0
	for _, t := range trades {
		pl := t.PnL
		if t.IsWin() {
			wins++
			winSum += pl
			if pl > largestWin {
				largestWin = pl
			}
		} else if t.IsLoss() {
			losses++
			lossSum += pl
			if pl < largestLoss {
				largestLoss = pl
			}
		}
	}

	avgWin := 0.0
	avgLoss := 0.0
	if wins > 0 {
		avgWin = winSum / float64(wins)
	}
	if losses > 0 {
		avgLoss = lossSum / float64(losses)
	}
	return wins, losses, avgWin, avgLoss, largestWin, largestLoss
}

func calculateWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

// calculateProfitFactor returns 0 when there are no losing trades
func calculateProfitFactor(trades []models.Trade) float64 {
	grossProfit := 0.0
	grossLoss := 0.0
	for _, t := range trades {
		if t.IsWin() {
			grossProfit += t.PnL
		} else if t.IsLoss() {
			grossLoss += -t.PnL
		}
	}
	if grossLoss == 0 {
		return 0
	}
	return grossProfit / grossLoss
}
