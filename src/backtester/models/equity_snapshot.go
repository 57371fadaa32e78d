package models

import "time"

// EquitySnapshot is appended once per evaluation timestamp. The
// sequence is append-only and consumed by the risk metrics engine.
type EquitySnapshot struct {
	Timestamp      time.Time `json:"timestamp"`
	Equity         float64   `json:"equity"`
	Cash           float64   `json:"cash"`
	PositionsValue float64   `json:"positions_value"`
	Peak           float64   `json:"peak"`
	Drawdown       float64   `json:"drawdown"`
}
