package models

import (
	"time"

	"github.com/google/uuid"
)

// ScreeningResult is one ranked candidate of a persisted screening run
type ScreeningResult struct {
	RunID        uuid.UUID `db:"run_id" json:"run_id"`
	AsOf         time.Time `db:"as_of" json:"as_of"`
	Rank         int       `db:"rank" json:"rank"`
	Symbol       string    `db:"symbol" json:"symbol"`
	TotalScore   float64   `db:"total_score" json:"total_score"`
	CurrentPrice float64   `db:"current_price" json:"current_price"`
	GapRatio     float64   `db:"gap_ratio" json:"gap_ratio"`
	VolumeRatio  float64   `db:"volume_ratio" json:"volume_ratio"`
	MarketCap    *float64  `db:"market_cap" json:"market_cap,omitempty"`
	RSI          *float64  `db:"rsi" json:"rsi,omitempty"`
	Signals      []string  `db:"signals" json:"signals"`
	Warnings     []string  `db:"warnings" json:"warnings"`
	RiskLevel    string    `db:"risk_level" json:"risk_level"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
