package scoring

import "math"

const (
	// BaseScore is where every snapshot starts before rule contributions
	BaseScore = 50.0
	MinScore  = 0.0
	MaxScore  = 100.0
)

// Warning tags
const (
	WarningExtremeGap     = "extreme_gap_up"
	WarningAbnormalVolume = "abnormal_volume"
)

// RuleScore is one rule's share of a result
type RuleScore struct {
	Rule   string  `json:"rule"`
	Points float64 `json:"points"`
}

// Result is the outcome of scoring one snapshot
type Result struct {
	Symbol    string      `json:"symbol"`
	Total     float64     `json:"total_score"`
	Signals   []string    `json:"signals"`
	Breakdown []RuleScore `json:"score_breakdown"`
	Warnings  []string    `json:"warnings"`
}

// Engine applies an ordered list of rules to snapshots
type Engine struct {
	rules []Rule
	base  float64
}

// NewEngine creates an engine over rules, evaluated in the given order
func NewEngine(rules []Rule) *Engine {
	return &Engine{rules: rules, base: BaseScore}
}

// NewDefaultEngine creates an engine with DefaultRules(DefaultWeights())
func NewDefaultEngine() *Engine {
	return NewEngine(DefaultRules(DefaultWeights()))
}

// Rules returns the rule names in evaluation order
func (e *Engine) Rules() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name()
	}
	return names
}

// Score evaluates s. It never fails; missing optional data scores neutral.
func (e *Engine) Score(s Snapshot) Result {
	res := Result{
		Symbol:    s.Symbol,
		Signals:   []string{},
		Breakdown: make([]RuleScore, 0, len(e.rules)),
		Warnings:  detectWarnings(s),
	}

	total := e.base
	for _, r := range e.rules {
		c := r.Evaluate(s)
		if math.IsNaN(c.Points) || math.IsInf(c.Points, 0) {
			c = Contribution{}
		}
		total += c.Points
		res.Signals = append(res.Signals, c.Signals...)
		res.Breakdown = append(res.Breakdown, RuleScore{Rule: r.Name(), Points: c.Points})
	}

	res.Total = math.Max(MinScore, math.Min(MaxScore, total))
	return res
}

func detectWarnings(s Snapshot) []string {
	warnings := []string{}
	if s.GapRatio > 0.10 {
		warnings = append(warnings, WarningExtremeGap)
	}
	if s.VolumeRatio > 5.0 {
		warnings = append(warnings, WarningAbnormalVolume)
	}
	return warnings
}
