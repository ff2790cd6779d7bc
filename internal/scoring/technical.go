package scoring

import (
	"math"

	"github.com/yourusername/kabu-screener/internal/models"
)

const (
	rsiPeriod       = 14
	rsiOverbought   = 70.0
	rsiOversold     = 30.0
	macdFast        = 12
	macdSlow        = 26
	macdSignal      = 9
	bollingerPeriod = 20
	bollingerWidth  = 2.0
	squeezeLookback = 10
	squeezeRatio    = 0.8
	atrPeriod       = 14
	adxPeriod       = 14
	stochPeriod     = 14
	stochSmoothing  = 3
)

// Zone and trend labels carried on the indicator blocks
const (
	ZoneOverbought = "overbought"
	ZoneOversold   = "oversold"
	ZoneNeutral    = "neutral"

	CrossBullish = "bullish"
	CrossBearish = "bearish"
	CrossNone    = "none"

	TrendUp   = "up"
	TrendDown = "down"

	StrengthWeak     = "weak"
	StrengthModerate = "moderate"
	StrengthStrong   = "strong"
	StrengthExtreme  = "very_strong"

	VolatilityVeryLow  = "very_low"
	VolatilityLow      = "low"
	VolatilityNormal   = "normal"
	VolatilityHigh     = "high"
	VolatilityVeryHigh = "very_high"
)

// RSIReading is Wilder's relative strength index on closes
type RSIReading struct {
	Value float64 `json:"value"`
	Zone  string  `json:"zone"`
}

// MACDReading holds the 12/26/9 MACD lines at the last bar
type MACDReading struct {
	Line      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
	Crossover string  `json:"crossover"`
}

// BollingerReading holds the 20-bar, two-sigma bands
type BollingerReading struct {
	Upper    float64 `json:"upper"`
	Middle   float64 `json:"middle"`
	Lower    float64 `json:"lower"`
	Position float64 `json:"position"`
	Width    float64 `json:"width"`
	Squeeze  bool    `json:"squeeze"`
}

// ATRReading is the average true range, absolute and as a share of the close
type ATRReading struct {
	Value      float64 `json:"value"`
	Percent    float64 `json:"percent"`
	Volatility string  `json:"volatility"`
}

// ADXReading is the directional movement system
type ADXReading struct {
	Value     float64 `json:"adx"`
	PlusDI    float64 `json:"plus_di"`
	MinusDI   float64 `json:"minus_di"`
	Strength  string  `json:"strength"`
	Direction string  `json:"direction"`
}

// StochasticReading is the slow stochastic oscillator
type StochasticReading struct {
	K         float64 `json:"k"`
	D         float64 `json:"d"`
	Zone      string  `json:"zone"`
	Crossover string  `json:"crossover"`
}

// EMA returns the exponential moving average aligned to values. Entries before
// the first full window are NaN; the first value is seeded with the window mean.
func EMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 || len(values) < period {
		return out
	}
	var seed float64
	for _, v := range values[:period] {
		seed += v
	}
	out[period-1] = seed / float64(period)
	k := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		out[i] = (values[i]-out[i-1])*k + out[i-1]
	}
	return out
}

// wilder smooths values with Wilder's running average, seeded with the mean of
// the first period entries. The result is aligned to values and NaN before the seed.
func wilder(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 || len(values) < period {
		return out
	}
	var seed float64
	for _, v := range values[:period] {
		seed += v
	}
	out[period-1] = seed / float64(period)
	for i := period; i < len(values); i++ {
		out[i] = (out[i-1]*float64(period-1) + values[i]) / float64(period)
	}
	return out
}

// RSI computes Wilder's RSI over closes. ok is false with fewer than period+1 closes.
func RSI(closes []float64, period int) (RSIReading, bool) {
	if period <= 0 || len(closes) < period+1 {
		return RSIReading{}, false
	}
	gains := make([]float64, len(closes)-1)
	losses := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains[i-1] = d
		} else {
			losses[i-1] = -d
		}
	}
	avgGain := lastOf(wilder(gains, period))
	avgLoss := lastOf(wilder(losses, period))

	var v float64
	switch {
	case avgLoss == 0 && avgGain == 0:
		v = 50
	case avgLoss == 0:
		v = 100
	default:
		v = 100 - 100/(1+avgGain/avgLoss)
	}
	return RSIReading{Value: v, Zone: zone(v, rsiOverbought, rsiOversold)}, true
}

// MACD computes the fast/slow EMA spread and its signal line. The crossover
// compares the histogram sign on the last two bars.
func MACD(closes []float64, fast, slow, signal int) (MACDReading, bool) {
	if fast <= 0 || slow <= fast || signal <= 0 || len(closes) < slow+signal {
		return MACDReading{}, false
	}
	fastEMA := EMA(closes, fast)
	slowEMA := EMA(closes, slow)
	line := make([]float64, 0, len(closes)-slow+1)
	for i := slow - 1; i < len(closes); i++ {
		line = append(line, fastEMA[i]-slowEMA[i])
	}
	sig := EMA(line, signal)

	n := len(line) - 1
	r := MACDReading{
		Line:      line[n],
		Signal:    sig[n],
		Histogram: line[n] - sig[n],
		Crossover: CrossNone,
	}
	if n >= signal {
		r.Crossover = crossover(line[n-1]-sig[n-1], r.Histogram)
	}
	return r, true
}

// Bollinger computes bands of width sigmas around the period mean, using the
// population standard deviation. Squeeze is set when the current band width is
// below squeezeRatio of the mean width over the last squeezeLookback bars.
func Bollinger(closes []float64, period int, width float64) (BollingerReading, bool) {
	if period <= 0 || len(closes) < period {
		return BollingerReading{}, false
	}
	widths := make([]float64, 0, squeezeLookback)
	var r BollingerReading
	for end := len(closes) - squeezeLookback + 1; end <= len(closes); end++ {
		if end < period {
			continue
		}
		mean, std := meanStd(closes[end-period : end])
		w := 0.0
		if mean != 0 {
			w = 2 * width * std / mean
		}
		widths = append(widths, w)
		r = BollingerReading{
			Upper:  mean + width*std,
			Middle: mean,
			Lower:  mean - width*std,
			Width:  w,
		}
	}

	price := closes[len(closes)-1]
	r.Position = 0.5
	if r.Upper > r.Lower {
		r.Position = (price - r.Lower) / (r.Upper - r.Lower)
	}
	if len(widths) == squeezeLookback {
		var sum float64
		for _, w := range widths {
			sum += w
		}
		r.Squeeze = r.Width < squeezeRatio*sum/float64(len(widths))
	}
	return r, true
}

// ATR computes Wilder's average true range. ok is false with fewer than period+1 bars.
func ATR(bars []models.Bar, period int) (ATRReading, bool) {
	if period <= 0 || len(bars) < period+1 {
		return ATRReading{}, false
	}
	v := lastOf(wilder(trueRanges(bars), period))
	r := ATRReading{Value: v}
	if c := bars[len(bars)-1].Close; c > 0 {
		r.Percent = v / c
	}
	switch {
	case r.Percent < 0.01:
		r.Volatility = VolatilityVeryLow
	case r.Percent < 0.02:
		r.Volatility = VolatilityLow
	case r.Percent < 0.03:
		r.Volatility = VolatilityNormal
	case r.Percent < 0.05:
		r.Volatility = VolatilityHigh
	default:
		r.Volatility = VolatilityVeryHigh
	}
	return r, true
}

// ADX computes the average directional index with +DI and -DI. It needs
// 2*period bars: period to seed the DI lines and period more to seed ADX.
func ADX(bars []models.Bar, period int) (ADXReading, bool) {
	if period <= 0 || len(bars) < 2*period {
		return ADXReading{}, false
	}
	tr := trueRanges(bars)
	plusDM := make([]float64, len(tr))
	minusDM := make([]float64, len(tr))
	for i := 1; i < len(bars); i++ {
		up := bars[i].High - bars[i-1].High
		down := bars[i-1].Low - bars[i].Low
		if up > down && up > 0 {
			plusDM[i-1] = up
		}
		if down > up && down > 0 {
			minusDM[i-1] = down
		}
	}

	str := wilder(tr, period)
	spdm := wilder(plusDM, period)
	smdm := wilder(minusDM, period)
	dx := make([]float64, 0, len(tr)-period+1)
	var plusDI, minusDI float64
	for i := period - 1; i < len(tr); i++ {
		plusDI, minusDI = 0, 0
		if str[i] > 0 {
			plusDI = 100 * spdm[i] / str[i]
			minusDI = 100 * smdm[i] / str[i]
		}
		d := 0.0
		if sum := plusDI + minusDI; sum > 0 {
			d = 100 * math.Abs(plusDI-minusDI) / sum
		}
		dx = append(dx, d)
	}

	v := lastOf(wilder(dx, period))
	r := ADXReading{Value: v, PlusDI: plusDI, MinusDI: minusDI, Direction: TrendDown}
	if plusDI > minusDI {
		r.Direction = TrendUp
	}
	switch {
	case v < 25:
		r.Strength = StrengthWeak
	case v < 50:
		r.Strength = StrengthModerate
	case v < 75:
		r.Strength = StrengthStrong
	default:
		r.Strength = StrengthExtreme
	}
	return r, true
}

// Stochastic computes %K over period bars smoothed into %D over smoothing bars
func Stochastic(bars []models.Bar, period, smoothing int) (StochasticReading, bool) {
	if period <= 0 || smoothing <= 0 || len(bars) < period+smoothing {
		return StochasticReading{}, false
	}
	// one extra %K so the crossover can compare against the prior bar
	ks := make([]float64, 0, smoothing+1)
	for end := len(bars) - smoothing; end <= len(bars); end++ {
		window := bars[end-period : end]
		hh, ll := window[0].High, window[0].Low
		for _, b := range window[1:] {
			hh = math.Max(hh, b.High)
			ll = math.Min(ll, b.Low)
		}
		k := 50.0
		if hh > ll {
			k = 100 * (window[len(window)-1].Close - ll) / (hh - ll)
		}
		ks = append(ks, k)
	}
	d := SMA(ks[1:], smoothing)
	prevD := SMA(ks[:smoothing], smoothing)
	k := ks[len(ks)-1]
	return StochasticReading{
		K:         k,
		D:         d,
		Zone:      zone(k, 80, 20),
		Crossover: crossover(ks[len(ks)-2]-prevD, k-d),
	}, true
}

func trueRanges(bars []models.Bar) []float64 {
	out := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		b, prev := bars[i], bars[i-1].Close
		out = append(out, math.Max(b.High-b.Low, math.Max(math.Abs(b.High-prev), math.Abs(b.Low-prev))))
	}
	return out
}

func meanStd(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var ss float64
	for _, v := range values {
		ss += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(ss / float64(len(values)))
}

func zone(v, high, low float64) string {
	switch {
	case v > high:
		return ZoneOverbought
	case v < low:
		return ZoneOversold
	default:
		return ZoneNeutral
	}
}

// crossover reports a sign change between two spreads, ignoring float noise around zero
func crossover(prev, cur float64) string {
	const eps = 1e-9
	if math.Abs(prev) < eps {
		prev = 0
	}
	if math.Abs(cur) < eps {
		cur = 0
	}
	switch {
	case prev <= 0 && cur > 0:
		return CrossBullish
	case prev >= 0 && cur < 0:
		return CrossBearish
	default:
		return CrossNone
	}
}

func lastOf(values []float64) float64 {
	return values[len(values)-1]
}
