package scoring

import "github.com/yourusername/kabu-screener/internal/config"

// Rule names, in evaluation order
const (
	RuleVolumeSurge     = "volume_surge"
	RuleGap             = "gap"
	RuleMovingAverage   = "moving_average"
	RuleCandlestick     = "candlestick"
	RuleResistanceBreak = "resistance_break"
	RuleNews            = "news"
	RuleSectorMomentum  = "sector_momentum"
)

// Signal tags emitted by the default rules
const (
	SignalVolumeSurge     = "volume_surge"
	SignalGapUpModerate   = "gap_up_moderate"
	SignalGapUpHigh       = "gap_up_high"
	SignalGapUpExtreme    = "gap_up_extreme"
	SignalMA5Breakout     = "ma5_breakout"
	SignalMA25Breakout    = "ma25_breakout"
	SignalLowerShadow     = "lower_shadow"
	SignalHighClose       = "high_close"
	SignalResistanceBreak = "resistance_break"
	SignalPositiveNews    = "positive_news"
	SignalSectorMomentum  = "sector_momentum"
)

// Contribution is what one rule adds to the base score
type Contribution struct {
	Points  float64
	Signals []string
}

// Rule maps one feature bucket of a snapshot to a contribution.
// Implementations must be pure and must tolerate missing optional data.
type Rule interface {
	Name() string
	Evaluate(s Snapshot) Contribution
}

// Weights holds the point value of every bucket
type Weights struct {
	VolumeSurge     float64
	GapUpModerate   float64
	GapUpHigh       float64
	GapUpExtreme    float64
	MA5Breakout     float64
	MA25Breakout    float64
	LowerShadow     float64
	HighClose       float64
	ResistanceBreak float64
	PositiveNews    float64
	SectorMomentum  float64
}

// DefaultWeights returns the stock screener weighting
func DefaultWeights() Weights {
	return Weights{
		VolumeSurge:     30,
		GapUpModerate:   20,
		GapUpHigh:       10,
		GapUpExtreme:    -10,
		MA5Breakout:     15,
		MA25Breakout:    20,
		LowerShadow:     10,
		HighClose:       10,
		ResistanceBreak: 15,
		PositiveNews:    25,
		SectorMomentum:  10,
	}
}

// WeightsFromConfig converts the YAML weights section
func WeightsFromConfig(c config.ScoringWeights) Weights {
	return Weights{
		VolumeSurge:     c.VolumeSurge,
		GapUpModerate:   c.GapUpModerate,
		GapUpHigh:       c.GapUpHigh,
		GapUpExtreme:    c.GapUpExtreme,
		MA5Breakout:     c.MA5Breakout,
		MA25Breakout:    c.MA25Breakout,
		LowerShadow:     c.LowerShadow,
		HighClose:       c.HighClose,
		ResistanceBreak: c.ResistanceBreak,
		PositiveNews:    c.PositiveNews,
		SectorMomentum:  c.SectorMomentum,
	}
}

// DefaultRules returns the ordered rule list for w
func DefaultRules(w Weights) []Rule {
	return []Rule{
		VolumeSurgeRule{Weight: w.VolumeSurge},
		GapRule{Moderate: w.GapUpModerate, High: w.GapUpHigh, Extreme: w.GapUpExtreme},
		MovingAverageRule{MA5: w.MA5Breakout, MA25: w.MA25Breakout},
		CandlestickRule{LowerShadow: w.LowerShadow, HighClose: w.HighClose},
		ResistanceBreakRule{Weight: w.ResistanceBreak, Margin: 1.005},
		NewsRule{Weight: w.PositiveNews},
		SectorMomentumRule{Weight: w.SectorMomentum, Threshold: 0.02},
	}
}

func tagged(points float64, signal string) Contribution {
	if points == 0 {
		return Contribution{}
	}
	if points < 0 {
		return Contribution{Points: points}
	}
	return Contribution{Points: points, Signals: []string{signal}}
}

// VolumeSurgeRule: ratio ≥3 full weight, ≥2 80%, ≥1.5 half
type VolumeSurgeRule struct{ Weight float64 }

func (VolumeSurgeRule) Name() string { return RuleVolumeSurge }

func (r VolumeSurgeRule) Evaluate(s Snapshot) Contribution {
	switch {
	case s.VolumeRatio >= 3.0:
		return tagged(r.Weight, SignalVolumeSurge)
	case s.VolumeRatio >= 2.0:
		return tagged(r.Weight*0.8, SignalVolumeSurge)
	case s.VolumeRatio >= 1.5:
		return tagged(r.Weight*0.5, SignalVolumeSurge)
	default:
		return Contribution{}
	}
}

// GapRule scores the opening gap with an inverted-U: moderate gaps best, blow-offs penalized
type GapRule struct {
	Moderate float64 // 2% to 5%
	High     float64 // above 5%
	Extreme  float64 // above 10%
}

func (GapRule) Name() string { return RuleGap }

func (r GapRule) Evaluate(s Snapshot) Contribution {
	switch {
	case s.GapRatio > 0.10:
		return tagged(r.Extreme, SignalGapUpExtreme)
	case s.GapRatio > 0.05:
		return tagged(r.High, SignalGapUpHigh)
	case s.GapRatio >= 0.02:
		return tagged(r.Moderate, SignalGapUpModerate)
	default:
		return Contribution{}
	}
}

// MovingAverageRule rewards closes above the 5 and 25 day averages
type MovingAverageRule struct {
	MA5  float64
	MA25 float64
}

func (MovingAverageRule) Name() string { return RuleMovingAverage }

func (r MovingAverageRule) Evaluate(s Snapshot) Contribution {
	var c Contribution
	if s.Technical == nil {
		return c
	}
	if s.Technical.PositionVsSMA5 > 0 {
		c = merge(c, tagged(r.MA5, SignalMA5Breakout))
	}
	if s.Technical.PositionVsSMA25 > 0 {
		c = merge(c, tagged(r.MA25, SignalMA25Breakout))
	}
	return c
}

// CandlestickRule rewards a hammer-like lower shadow or a close near the high
type CandlestickRule struct {
	LowerShadow float64
	HighClose   float64
}

func (CandlestickRule) Name() string { return RuleCandlestick }

func (r CandlestickRule) Evaluate(s Snapshot) Contribution {
	if s.Technical == nil {
		return Contribution{}
	}
	switch s.Technical.Pattern {
	case PatternLowerShadow:
		return tagged(r.LowerShadow, SignalLowerShadow)
	case PatternHighClose:
		return tagged(r.HighClose, SignalHighClose)
	default:
		return Contribution{}
	}
}

// ResistanceBreakRule fires when price clears the lowest recent resistance by Margin
type ResistanceBreakRule struct {
	Weight float64
	Margin float64
}

func (ResistanceBreakRule) Name() string { return RuleResistanceBreak }

func (r ResistanceBreakRule) Evaluate(s Snapshot) Contribution {
	if s.Technical == nil || len(s.Technical.ResistanceLevels) == 0 {
		return Contribution{}
	}
	lowest := s.Technical.ResistanceLevels[0]
	for _, lvl := range s.Technical.ResistanceLevels[1:] {
		if lvl < lowest {
			lowest = lvl
		}
	}
	if s.CurrentPrice > lowest*r.Margin {
		return tagged(r.Weight, SignalResistanceBreak)
	}
	return Contribution{}
}

// NewsRule awards Weight once if any headline is positive
type NewsRule struct{ Weight float64 }

func (NewsRule) Name() string { return RuleNews }

func (r NewsRule) Evaluate(s Snapshot) Contribution {
	for _, n := range s.News {
		if n.Sentiment == SentimentPositive {
			return tagged(r.Weight, SignalPositiveNews)
		}
	}
	return Contribution{}
}

// SectorMomentumRule fires when the sector outperformed Threshold
type SectorMomentumRule struct {
	Weight    float64
	Threshold float64
}

func (SectorMomentumRule) Name() string { return RuleSectorMomentum }

func (r SectorMomentumRule) Evaluate(s Snapshot) Contribution {
	if s.SectorPerformance == nil || *s.SectorPerformance <= r.Threshold {
		return Contribution{}
	}
	return tagged(r.Weight, SignalSectorMomentum)
}

func merge(a, b Contribution) Contribution {
	return Contribution{
		Points:  a.Points + b.Points,
		Signals: append(a.Signals, b.Signals...),
	}
}
