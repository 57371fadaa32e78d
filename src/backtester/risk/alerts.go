package risk

import "fmt"

// Alert flags one threshold breach in a computed summary.
type Alert struct {
	Level   RiskLevel `json:"level"`
	Metric  string    `json:"metric"`
	Message string    `json:"message"`
}

// Alerts lists every threshold the summary breaches, worst first.
// A summary inside all thresholds produces no alerts.
func Alerts(summary *Summary, thresholds Thresholds) []Alert {
	if summary == nil {
		return nil
	}

	var alerts []Alert

	if level, breached := classifyDrawdown(summary.MaxDrawdown, thresholds); breached {
		alerts = append(alerts, Alert{
			Level:   level,
			Metric:  "max_drawdown",
			Message: fmt.Sprintf("max drawdown %.2f%% breaches the %s threshold", summary.MaxDrawdown*100, level),
		})
	}

	if summary.Volatility != nil {
		if level, breached := classifyVolatility(*summary.Volatility, thresholds); breached {
			alerts = append(alerts, Alert{
				Level:   level,
				Metric:  "volatility",
				Message: fmt.Sprintf("annualized volatility %.2f%% breaches the %s threshold", *summary.Volatility*100, level),
			})
		}
	}

	return alerts
}

func classifyDrawdown(maxDrawdown float64, t Thresholds) (RiskLevel, bool) {
	switch {
	case maxDrawdown > t.DrawdownSevere:
		return RiskLevelSevere, true
	case maxDrawdown > t.DrawdownHigh:
		return RiskLevelHigh, true
	case maxDrawdown > t.DrawdownMedium:
		return RiskLevelMedium, true
	default:
		return RiskLevelLow, false
	}
}

func classifyVolatility(volatility float64, t Thresholds) (RiskLevel, bool) {
	switch {
	case volatility > t.VolatilitySevere:
		return RiskLevelSevere, true
	case volatility > t.VolatilityHigh:
		return RiskLevelHigh, true
	case volatility > t.VolatilityMedium:
		return RiskLevelMedium, true
	default:
		return RiskLevelLow, false
	}
}
