// Package scoring turns a market snapshot of one equity into a bounded
// momentum score and a list of signal tags.
package scoring

import "time"

// CandlestickPattern classifies the most recent candle
type CandlestickPattern string

const (
	PatternLowerShadow CandlestickPattern = "lower_shadow"
	PatternHighClose   CandlestickPattern = "high_close"
	PatternNormal      CandlestickPattern = "normal"
	PatternUnknown     CandlestickPattern = "unknown"
)

// Sentiment of a news item
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Technical holds the optional indicator block of a snapshot
type Technical struct {
	SMA5             float64            `json:"sma_5"`
	SMA25            float64            `json:"sma_25"`
	PositionVsSMA5   float64            `json:"position_vs_sma5"`
	PositionVsSMA25  float64            `json:"position_vs_sma25"`
	Pattern          CandlestickPattern `json:"candlestick_pattern"`
	ResistanceLevels []float64          `json:"resistance_levels"`
	SupportLevels    []float64          `json:"support_levels"`

	// Oscillators are nil until enough bars exist to seed them
	RSI        *RSIReading        `json:"rsi,omitempty"`
	MACD       *MACDReading       `json:"macd,omitempty"`
	Bollinger  *BollingerReading  `json:"bollinger,omitempty"`
	ATR        *ATRReading        `json:"atr,omitempty"`
	ADX        *ADXReading        `json:"adx,omitempty"`
	Stochastic *StochasticReading `json:"stochastic,omitempty"`
}

// NewsItem is a pre-classified headline
type NewsItem struct {
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Sentiment Sentiment `json:"sentiment"`
}

// Snapshot is everything the scoring rules may look at for one symbol on one day.
// Optional blocks left nil or empty contribute nothing.
type Snapshot struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name,omitempty"`
	Sector        string    `json:"sector,omitempty"`
	Date          time.Time `json:"date"`
	CurrentPrice  float64   `json:"current_price"`
	PreviousClose float64   `json:"previous_close"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Volume        int64     `json:"volume"`
	AverageVolume float64   `json:"average_volume"`
	VolumeRatio   float64   `json:"volume_ratio"`
	GapRatio      float64   `json:"gap_ratio"`

	Technical         *Technical `json:"technical_indicators,omitempty"`
	News              []NewsItem `json:"news,omitempty"`
	SectorPerformance *float64   `json:"sector_performance,omitempty"`
	MarketCap         *float64   `json:"market_cap,omitempty"`
	Marginable        bool       `json:"is_marginable"`
}

// DailyChange returns the close-to-close change, or false without a previous close
func (s Snapshot) DailyChange() (float64, bool) {
	if s.PreviousClose <= 0 {
		return 0, false
	}
	return s.CurrentPrice/s.PreviousClose - 1, true
}

// TradingValue returns price × volume
func (s Snapshot) TradingValue() float64 {
	return s.CurrentPrice * float64(s.Volume)
}
