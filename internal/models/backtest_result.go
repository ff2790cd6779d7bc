package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// BacktestResult is the flat record persisted for a finished backtest run
type BacktestResult struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	TestName         string          `db:"test_name" json:"test_name"`
	StartDate        time.Time       `db:"start_date" json:"start_date"`
	EndDate          time.Time       `db:"end_date" json:"end_date"`
	InitialCapital   float64         `db:"initial_capital" json:"initial_capital"`
	FinalCapital     float64         `db:"final_capital" json:"final_capital"`
	TotalReturn      float64         `db:"total_return" json:"total_return"`
	AnnualizedReturn float64         `db:"annualized_return" json:"annualized_return"`
	Volatility       float64         `db:"volatility" json:"volatility"`
	SharpeRatio      float64         `db:"sharpe_ratio" json:"sharpe_ratio"`
	MaxDrawdown      float64         `db:"max_drawdown" json:"max_drawdown"`
	WinRate          float64         `db:"win_rate" json:"win_rate"`
	ProfitFactor     float64         `db:"profit_factor" json:"profit_factor"`
	TotalTrades      int             `db:"total_trades" json:"total_trades"`
	WinningTrades    int             `db:"winning_trades" json:"winning_trades"`
	LosingTrades     int             `db:"losing_trades" json:"losing_trades"`
	Parameters       json.RawMessage `db:"parameters" json:"parameters"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}
