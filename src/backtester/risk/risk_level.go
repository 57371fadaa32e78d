package risk

import "fmt"

type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "LOW"
	RiskLevelMedium RiskLevel = "MEDIUM"
	RiskLevelHigh   RiskLevel = "HIGH"
	RiskLevelSevere RiskLevel = "SEVERE"
)

// Thresholds classify a run into a discrete risk level from max
// drawdown and annualized volatility, both as fractions. Thresholds
// must be monotonic: more drawdown or volatility never lowers the
// level.
type Thresholds struct {
	DrawdownMedium   float64 `yaml:"drawdown_medium"`
	DrawdownHigh     float64 `yaml:"drawdown_high"`
	DrawdownSevere   float64 `yaml:"drawdown_severe"`
	VolatilityMedium float64 `yaml:"volatility_medium"`
	VolatilityHigh   float64 `yaml:"volatility_high"`
	VolatilitySevere float64 `yaml:"volatility_severe"`
}

func (t *Thresholds) ApplyDefaults() {
	if t.DrawdownMedium == 0 && t.DrawdownHigh == 0 && t.DrawdownSevere == 0 {
		t.DrawdownMedium = 0.10
		t.DrawdownHigh = 0.20
		t.DrawdownSevere = 0.30
	}

	if t.VolatilityMedium == 0 && t.VolatilityHigh == 0 && t.VolatilitySevere == 0 {
		t.VolatilityMedium = 0.20
		t.VolatilityHigh = 0.30
		t.VolatilitySevere = 0.40
	}
}

func (t Thresholds) Validate() error {
	if t.DrawdownMedium > t.DrawdownHigh || t.DrawdownHigh > t.DrawdownSevere {
		return fmt.Errorf("drawdown thresholds must be non-decreasing: %.2f/%.2f/%.2f",
			t.DrawdownMedium, t.DrawdownHigh, t.DrawdownSevere)
	}

	if t.VolatilityMedium > t.VolatilityHigh || t.VolatilityHigh > t.VolatilitySevere {
		return fmt.Errorf("volatility thresholds must be non-decreasing: %.2f/%.2f/%.2f",
			t.VolatilityMedium, t.VolatilityHigh, t.VolatilitySevere)
	}

	return nil
}

func (t Thresholds) Classify(maxDrawdown, volatility float64) RiskLevel {
	switch {
	case maxDrawdown > t.DrawdownSevere || volatility > t.VolatilitySevere:
		return RiskLevelSevere
	case maxDrawdown > t.DrawdownHigh || volatility > t.VolatilityHigh:
		return RiskLevelHigh
	case maxDrawdown > t.DrawdownMedium || volatility > t.VolatilityMedium:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}
