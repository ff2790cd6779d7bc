package backtest

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// TradingDaysPerYear annualizes daily volatility
const TradingDaysPerYear = 252

// EquityPoint represents one daily mark-to-market snapshot
type EquityPoint struct {
	Date          time.Time `json:"date"`
	Cash          float64   `json:"cash"`
	TotalValue    float64   `json:"total_value"`
	OpenPositions int       `json:"open_positions"`
}

// EquityCurve represents the chronological series of daily snapshots
type EquityCurve []EquityPoint

// GetReturns calculates day-over-day returns of total value
func (e EquityCurve) GetReturns() []float64 {
	if len(e) < 2 {
		return []float64{}
	}
	returns := make([]float64, 0, len(e)-1)
	for i := 1; i < len(e); i++ {
		prev := e[i-1].TotalValue
		curr := e[i].TotalValue
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (curr-prev)/prev)
	}
	return returns
}

// GetVolatility returns the annualized sample standard deviation of daily returns,
// 0 with fewer than two returns
func (e EquityCurve) GetVolatility() float64 {
	returns := e.GetReturns()
	if len(returns) < 2 {
		return 0
	}
	return sampleStddev(returns) * math.Sqrt(TradingDaysPerYear)
}

// GetMaxDrawdown returns the most negative (value − running peak) / running peak, or 0
func (e EquityCurve) GetMaxDrawdown() float64 {
	maxDD := 0.0
	peak := 0.0
	for _, p := range e {
		if p.TotalValue > peak {
			peak = p.TotalValue
		}
		if peak <= 0 {
			continue
		}
		if dd := (p.TotalValue - peak) / peak; dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// ToCSV exports equity curve to CSV string
func (e EquityCurve) ToCSV() string {
	var buf bytes.Buffer
	buf.WriteString("date,cash,total_value,open_positions\n")
	for _, point := range e {
		buf.WriteString(point.Date.Format("2006-01-02"))
		buf.WriteString(",")
		buf.WriteString(formatFloat(point.Cash))
		buf.WriteString(",")
		buf.WriteString(formatFloat(point.TotalValue))
		buf.WriteString(",")
		buf.WriteString(strconv.Itoa(point.OpenPositions))
		buf.WriteString("\n")
	}
	return buf.String()
}

// ToJSON exports equity curve to JSON string
func (e EquityCurve) ToJSON() string {
	data, _ := json.Marshal(e)
	return string(data)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func sampleStddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values) - 1)
	return math.Sqrt(variance)
}
