package engine

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quantsim/quantsim/src/backtester/ledger"
	"github.com/quantsim/quantsim/src/backtester/risk"
	"github.com/quantsim/quantsim/src/backtester/slippage"
)

type ExecutionPrice string

const (
	// ExecSameBarClose prices market orders off the close of the bar
	// they were submitted against.
	ExecSameBarClose ExecutionPrice = "close"

	// ExecNextBarOpen lets market orders rest and fill at the next
	// bar's open.
	ExecNextBarOpen ExecutionPrice = "next_open"
)

type StopLossConfig struct {
	// unrealized loss ratio that closes a position
	Fixed *float64 `yaml:"fixed,omitempty"`

	// drop from the running peak since entry that closes a position
	Trailing *float64 `yaml:"trailing,omitempty"`

	// bars held after which a position is closed regardless of price
	TimedBars *int `yaml:"timed_bars,omitempty"`
}

type Config struct {
	InitialCash    float64           `yaml:"initial_cash"`
	CommissionRate float64           `yaml:"commission_rate"`
	CostMethod     ledger.CostMethod `yaml:"cost_method"`
	Slippage       slippage.Config   `yaml:"slippage"`

	// Market-order reference price. Defaults to same-bar close.
	ExecutionPrice ExecutionPrice `yaml:"execution_price"`

	// Cap on fill quantity as a fraction of bar volume; 0 disables
	// partial fills.
	MaxParticipationRate float64 `yaml:"max_participation_rate"`

	// Per-symbol cap on position value as a fraction of equity.
	MaxPositionRatio float64 `yaml:"max_position_ratio"`

	// When true, unfilled remainders are cancelled at each day
	// boundary. By default they persist across bars until filled or
	// cancelled.
	ExpireUnfilledAtClose bool `yaml:"expire_unfilled_at_close"`

	Risk     risk.Config    `yaml:"risk"`
	StopLoss StopLossConfig `yaml:"stop_loss"`
}

func (c *Config) ApplyDefaults() {
	if c.CostMethod == "" {
		c.CostMethod = ledger.FIFO
	}

	if c.ExecutionPrice == "" {
		c.ExecutionPrice = ExecSameBarClose
	}

	if c.MaxPositionRatio == 0 {
		c.MaxPositionRatio = 1.0
	}

	c.Risk.ApplyDefaults()
}

func (c *Config) Validate() error {
	if c.InitialCash <= 0 {
		return fmt.Errorf("initial_cash must be greater than 0")
	}

	if c.CommissionRate < 0 || c.CommissionRate >= 1 {
		return fmt.Errorf("commission_rate must be in [0, 1)")
	}

	if err := c.CostMethod.Validate(); err != nil {
		return err
	}

	if _, err := slippage.FromConfig(c.Slippage); err != nil {
		return err
	}

	switch c.ExecutionPrice {
	case ExecSameBarClose, ExecNextBarOpen:
	default:
		return fmt.Errorf("unknown execution_price %q", c.ExecutionPrice)
	}

	if c.MaxParticipationRate < 0 || c.MaxParticipationRate > 1 {
		return fmt.Errorf("max_participation_rate must be in [0, 1]")
	}

	if c.MaxPositionRatio <= 0 || c.MaxPositionRatio > 1 {
		return fmt.Errorf("max_position_ratio must be in (0, 1]")
	}

	if err := c.Risk.Thresholds.Validate(); err != nil {
		return err
	}

	return nil
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}

	return &cfg, nil
}
