package scoring

import (
	"errors"
	"sort"

	"github.com/yourusername/kabu-screener/internal/models"
)

const (
	averageVolumeWindow = 20
	resistanceWindow    = 20
	resistanceLevels    = 3
	minTechnicalBars    = 25
)

// ErrEmptyHistory is returned when a snapshot is requested from no bars
var ErrEmptyHistory = errors.New("no bars to build snapshot from")

// SMA returns the simple moving average of the last window values, or 0 if there are too few
func SMA(values []float64, window int) float64 {
	if window <= 0 || len(values) < window {
		return 0
	}
	var sum float64
	for _, v := range values[len(values)-window:] {
		sum += v
	}
	return sum / float64(window)
}

// ClassifyCandle labels a single bar
func ClassifyCandle(b models.Bar) CandlestickPattern {
	rng := b.High - b.Low
	if rng <= 0 {
		return PatternNormal
	}
	bodyBottom := b.Open
	if b.Close < bodyBottom {
		bodyBottom = b.Close
	}
	lowerShadow := (bodyBottom - b.Low) / rng
	closePosition := (b.Close - b.Low) / rng

	switch {
	case lowerShadow > 0.3 && b.Close > b.Open:
		return PatternLowerShadow
	case closePosition > 0.8:
		return PatternHighClose
	default:
		return PatternNormal
	}
}

// Resistance returns the n highest highs of the trailing window, highest first
func Resistance(bars []models.Bar, window, n int) []float64 {
	highs := make([]float64, 0, window)
	for _, b := range tail(bars, window) {
		highs = append(highs, b.High)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(highs)))
	if len(highs) > n {
		highs = highs[:n]
	}
	return highs
}

// Support returns the n lowest lows of the trailing window, lowest first
func Support(bars []models.Bar, window, n int) []float64 {
	lows := make([]float64, 0, window)
	for _, b := range tail(bars, window) {
		lows = append(lows, b.Low)
	}
	sort.Float64s(lows)
	if len(lows) > n {
		lows = lows[:n]
	}
	return lows
}

// BuildSnapshot derives a snapshot from bars ordered ascending, where the last
// bar is the as-of day. Callers must not pass bars dated after that day.
func BuildSnapshot(symbol string, bars []models.Bar) (Snapshot, error) {
	if len(bars) == 0 {
		return Snapshot{}, ErrEmptyHistory
	}
	last := bars[len(bars)-1]
	prev := last
	if len(bars) > 1 {
		prev = bars[len(bars)-2]
	}

	var volSum float64
	window := tail(bars, averageVolumeWindow)
	for _, b := range window {
		volSum += float64(b.Volume)
	}
	avgVolume := volSum / float64(len(window))

	s := Snapshot{
		Symbol:        symbol,
		Date:          last.Date,
		CurrentPrice:  last.Close,
		PreviousClose: prev.Close,
		Open:          last.Open,
		High:          last.High,
		Low:           last.Low,
		Volume:        last.Volume,
		AverageVolume: avgVolume,
		VolumeRatio:   1,
		Marginable:    true,
	}
	if avgVolume > 0 {
		s.VolumeRatio = float64(last.Volume) / avgVolume
	}
	if prev.Close > 0 {
		s.GapRatio = (last.Open - prev.Close) / prev.Close
	}

	if len(bars) >= minTechnicalBars {
		s.Technical = buildTechnical(bars)
	}
	return s, nil
}

func buildTechnical(bars []models.Bar) *Technical {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	price := closes[len(closes)-1]

	t := &Technical{
		SMA5:             SMA(closes, 5),
		SMA25:            SMA(closes, 25),
		Pattern:          ClassifyCandle(bars[len(bars)-1]),
		ResistanceLevels: Resistance(bars, resistanceWindow, resistanceLevels),
		SupportLevels:    Support(bars, resistanceWindow, resistanceLevels),
	}
	if t.SMA5 > 0 {
		t.PositionVsSMA5 = (price - t.SMA5) / t.SMA5
	}
	if t.SMA25 > 0 {
		t.PositionVsSMA25 = (price - t.SMA25) / t.SMA25
	}

	if r, ok := RSI(closes, rsiPeriod); ok {
		t.RSI = &r
	}
	if m, ok := MACD(closes, macdFast, macdSlow, macdSignal); ok {
		t.MACD = &m
	}
	if b, ok := Bollinger(closes, bollingerPeriod, bollingerWidth); ok {
		t.Bollinger = &b
	}
	if a, ok := ATR(bars, atrPeriod); ok {
		t.ATR = &a
	}
	if a, ok := ADX(bars, adxPeriod); ok {
		t.ADX = &a
	}
	if st, ok := Stochastic(bars, stochPeriod, stochSmoothing); ok {
		t.Stochastic = &st
	}
	return t
}

func tail(bars []models.Bar, n int) []models.Bar {
	if len(bars) <= n {
		return bars
	}
	return bars[len(bars)-n:]
}
