package models

import "time"

// ExitReason explains why a simulated position was closed
type ExitReason string

const (
	ExitReasonTakeProfit  ExitReason = "take_profit"
	ExitReasonStopLoss    ExitReason = "stop_loss"
	ExitReasonTimeLimit   ExitReason = "time_limit"
	ExitReasonBacktestEnd ExitReason = "backtest_end"
)

// LotSize is the minimum tradable share increment on the Tokyo exchange
const LotSize int64 = 100

// Trade represents one simulated position from entry to exit
type Trade struct {
	Symbol         string     `json:"symbol"`
	EntryDate      time.Time  `json:"entry_date"`
	ExitDate       *time.Time `json:"exit_date"`
	EntryPrice     float64    `json:"entry_price"`
	ExitPrice      float64    `json:"exit_price"`
	Shares         int64      `json:"shares"`
	PositionValue  float64    `json:"position_value"`
	PnL            float64    `json:"pnl"`
	PnLPercentage  float64    `json:"pnl_percentage"` // percent units, 8.0 == +8%
	ExitReason     ExitReason `json:"exit_reason,omitempty"`
	Signals        []string   `json:"signals"`
	Score          float64    `json:"score"`
	CommissionPaid float64    `json:"commission_paid"`
	SlippageCost   float64    `json:"slippage_cost"`
}

// IsOpen checks if the trade has not been closed yet
func (t *Trade) IsOpen() bool {
	return t.ExitDate == nil
}

// IsWin reports whether the closed trade made money after costs
func (t *Trade) IsWin() bool {
	return !t.IsOpen() && t.PnL > 0
}

// IsLoss reports whether the closed trade lost money after costs
func (t *Trade) IsLoss() bool {
	return !t.IsOpen() && t.PnL < 0
}

// HoldingDays returns calendar days between entry and asOf
func (t *Trade) HoldingDays(asOf time.Time) int {
	return int(truncateDay(asOf).Sub(truncateDay(t.EntryDate)).Hours() / 24)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
