package scoring

// RiskLevel grades a candidate
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RiskProfile carries suggested exit levels for a live candidate
type RiskProfile struct {
	Level           RiskLevel `json:"risk_level"`
	StopLossPrice   float64   `json:"stop_loss_price"`
	TakeProfitPrice float64   `json:"take_profit_price"`
	RewardRisk      float64   `json:"risk_reward_ratio"`
	Warnings        []string  `json:"warnings"`
}

// AssessRisk grades s and derives stop and target prices from the current price
func AssessRisk(s Snapshot, stopLossPct, takeProfitPct float64) RiskProfile {
	p := RiskProfile{
		Level:           RiskLow,
		StopLossPrice:   s.CurrentPrice * (1 - stopLossPct),
		TakeProfitPrice: s.CurrentPrice * (1 + takeProfitPct),
		Warnings:        detectWarnings(s),
	}
	if stopLossPct > 0 {
		p.RewardRisk = takeProfitPct / stopLossPct
	}

	switch {
	case s.GapRatio > 0.10:
		p.Level = RiskHigh
	case s.GapRatio > 0.05:
		p.Level = RiskMedium
	}
	if s.VolumeRatio > 5.0 {
		p.Level = RiskHigh
	}
	return p
}
