package slippage

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/quantsim/quantsim/src/backtester/models"
	"github.com/quantsim/quantsim/src/eventmodels"
)

// Model estimates a non-negative price offset for an order against a
// bar. Models are pure; the fill simulator applies the offset adverse
// to the order side (buys pay more, sells receive less).
type Model interface {
	Estimate(order *models.Order, bar *eventmodels.Bar) float64
}

type ModelType string

const (
	TypeFixed   ModelType = "fixed"
	TypeRatio   ModelType = "ratio"
	TypeTick    ModelType = "tick"
	TypeDynamic ModelType = "dynamic"
)

// Fixed applies a constant absolute price offset.
type Fixed struct {
	Offset float64
}

func (m Fixed) Estimate(order *models.Order, bar *eventmodels.Bar) float64 {
	return m.Offset
}

// Ratio offsets by a fraction of the reference price.
type Ratio struct {
	Fraction float64
}

func (m Ratio) Estimate(order *models.Order, bar *eventmodels.Bar) float64 {
	return bar.Close * m.Fraction
}

// Tick offsets by a number of minimum price increments.
type Tick struct {
	Size  float64
	Count int
}

func (m Tick) Estimate(order *models.Order, bar *eventmodels.Bar) float64 {
	return m.Size * float64(m.Count)
}

// Dynamic scales the offset with the order's share of bar volume,
// modeling market impact. The offset saturates at MaxFraction of the
// reference price so illiquid bars cannot produce unbounded output.
type Dynamic struct {
	ImpactFactor float64
	MaxFraction  float64

	// used when the bar carries no volume
	FallbackFraction float64
}

func (m Dynamic) Estimate(order *models.Order, bar *eventmodels.Bar) float64 {
	if bar.Volume <= 0 {
		log.Debugf("dynamic slippage: no volume on %s @ %s, falling back to ratio %.4f", bar.Symbol, bar.Timestamp, m.FallbackFraction)
		return bar.Close * m.FallbackFraction
	}

	fraction := (order.RemainingQuantity() / bar.Volume) * m.ImpactFactor
	if fraction > m.MaxFraction {
		fraction = m.MaxFraction
	}

	return bar.Close * fraction
}

type Config struct {
	Model ModelType `yaml:"model"`

	Offset       float64 `yaml:"offset"`
	Fraction     float64 `yaml:"fraction"`
	TickSize     float64 `yaml:"tick_size"`
	TickCount    int     `yaml:"tick_count"`
	ImpactFactor float64 `yaml:"impact_factor"`
	MaxFraction  float64 `yaml:"max_fraction"`
}

// FromConfig resolves the closed model set at configuration-parse
// time. Unknown model names are an error, not a silent default.
func FromConfig(cfg Config) (Model, error) {
	switch cfg.Model {
	case TypeFixed:
		return Fixed{Offset: cfg.Offset}, nil
	case TypeRatio:
		return Ratio{Fraction: cfg.Fraction}, nil
	case TypeTick:
		size := cfg.TickSize
		if size == 0 {
			size = 0.01
		}
		count := cfg.TickCount
		if count == 0 {
			count = 1
		}
		return Tick{Size: size, Count: count}, nil
	case TypeDynamic:
		maxFraction := cfg.MaxFraction
		if maxFraction == 0 {
			maxFraction = 0.02
		}
		return Dynamic{
			ImpactFactor:     cfg.ImpactFactor,
			MaxFraction:      maxFraction,
			FallbackFraction: 0.001,
		}, nil
	case "":
		return Fixed{Offset: 0}, nil
	default:
		return nil, fmt.Errorf("unknown slippage model %q", cfg.Model)
	}
}
