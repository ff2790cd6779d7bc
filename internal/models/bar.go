package models

import "time"

// Bar is one daily OHLCV candle
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// TradingValue returns close × volume in currency units
func (b Bar) TradingValue() float64 {
	return b.Close * float64(b.Volume)
}
