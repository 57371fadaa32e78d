package engine

import (
	"github.com/google/uuid"

	"github.com/quantsim/quantsim/src/backtester/models"
	"github.com/quantsim/quantsim/src/backtester/risk"
)

// Result captures everything a single run produced. Params is set by
// the optimizer when the run was part of a parameter search.
type Result struct {
	RunID  uuid.UUID          `json:"run_id"`
	Params map[string]float64 `json:"params,omitempty"`

	Snapshots []models.EquitySnapshot `json:"snapshots"`
	Orders    []*models.Order         `json:"orders"`
	Fills     []*models.Fill          `json:"fills"`
	Realized  []models.RealizedPnL    `json:"realized"`

	Summary      *risk.Summary        `json:"summary"`
	Alerts       []risk.Alert         `json:"alerts,omitempty"`
	StopTriggers []risk.TriggerRecord `json:"stop_triggers,omitempty"`

	InitialCash     float64 `json:"initial_cash"`
	FinalEquity     float64 `json:"final_equity"`
	TotalReturn     float64 `json:"total_return"`
	TotalCommission float64 `json:"total_commission"`
}
