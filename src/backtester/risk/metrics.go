package risk

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/quantsim/quantsim/src/backtester/models"
)

// minVariation is the floor below which a dispersion denominator is
// treated as zero. Semantically constant return series accumulate
// float noise on the order of 1e-17, which would otherwise yield
// astronomical ratios instead of an undefined metric.
const minVariation = 1e-12

type Config struct {
	Confidence     float64    `yaml:"confidence"`
	RiskFreeRate   float64    `yaml:"risk_free_rate"`
	Annualization  float64    `yaml:"annualization"`
	OmegaThreshold float64    `yaml:"omega_threshold"`
	SortinoTarget  float64    `yaml:"sortino_target"`
	Thresholds     Thresholds `yaml:"thresholds"`
}

func (c *Config) ApplyDefaults() {
	if c.Confidence == 0 {
		c.Confidence = 0.95
	}

	// annualization assumes daily bars unless configured otherwise
	if c.Annualization == 0 {
		c.Annualization = 252
	}

	c.Thresholds.ApplyDefaults()
}

// Summary is recomputed on demand from an equity snapshot sequence; it
// is a pure function of its input window and never persisted on its
// own. Metrics whose denominator is undefined are nil, not zero, so
// downstream reporting degrades gracefully.
type Summary struct {
	VaR          *float64  `json:"var"`
	CVaR         *float64  `json:"cvar"`
	Beta         *float64  `json:"beta"`
	Sharpe       *float64  `json:"sharpe"`
	Sortino      *float64  `json:"sortino"`
	Calmar       *float64  `json:"calmar"`
	Omega        *float64  `json:"omega"`
	MaxDrawdown  float64   `json:"max_drawdown"`
	Volatility   *float64  `json:"volatility"`
	AnnualReturn *float64  `json:"annual_return"`
	Level        RiskLevel `json:"level"`
}

// Returns computes the simple period-over-period equity return series.
func Returns(snapshots []models.EquitySnapshot) []float64 {
	if len(snapshots) < 2 {
		return nil
	}

	returns := make([]float64, 0, len(snapshots)-1)
	for i := 1; i < len(snapshots); i++ {
		prev := snapshots[i-1].Equity
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (snapshots[i].Equity-prev)/prev)
	}

	return returns
}

// MaxDrawdown is the max over time of (peak-to-date − equity)/peak,
// expressed as a positive fraction. Idempotent over an unchanged
// sequence.
func MaxDrawdown(snapshots []models.EquitySnapshot) float64 {
	maxDD := 0.0
	peak := math.Inf(-1)

	for _, s := range snapshots {
		if s.Equity > peak {
			peak = s.Equity
		}

		if peak > 0 {
			dd := (peak - s.Equity) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}

	return maxDD
}

// Compute derives the full risk summary from the snapshot sequence.
// benchmark may be nil; Beta is then undefined.
func Compute(snapshots []models.EquitySnapshot, benchmark []float64, cfg Config) *Summary {
	cfg.ApplyDefaults()

	summary := &Summary{
		MaxDrawdown: MaxDrawdown(snapshots),
		Level:       RiskLevelLow,
	}

	returns := Returns(snapshots)
	if len(returns) == 0 {
		return summary
	}

	summary.VaR, summary.CVaR = valueAtRisk(returns, cfg.Confidence)
	summary.Beta = beta(returns, benchmark)
	summary.Sharpe = sharpe(returns, cfg)
	summary.Sortino = sortino(returns, cfg)
	summary.Omega = omega(returns, cfg.OmegaThreshold)

	mean, err := stats.Mean(returns)
	if err == nil {
		annual := mean * cfg.Annualization
		summary.AnnualReturn = &annual

		if summary.MaxDrawdown > 0 {
			calmar := annual / summary.MaxDrawdown
			summary.Calmar = &calmar
		}
	}

	sd, err := stats.StandardDeviation(returns)
	if err == nil {
		vol := sd * math.Sqrt(cfg.Annualization)
		summary.Volatility = &vol
	}

	vol := 0.0
	if summary.Volatility != nil {
		vol = *summary.Volatility
	}
	summary.Level = cfg.Thresholds.Classify(summary.MaxDrawdown, vol)

	return summary
}

// valueAtRisk returns (VaR, CVaR) at the given confidence, both as
// positive loss fractions. VaR is the negated empirical return at the
// (1−confidence) lower quantile; CVaR the negated mean of returns at
// or below that quantile.
func valueAtRisk(returns []float64, confidence float64) (*float64, *float64) {
	if len(returns) == 0 {
		return nil, nil
	}

	quantile := lowerQuantile(returns, 1-confidence)
	v := -quantile

	var tail []float64
	for _, r := range returns {
		if r <= quantile {
			tail = append(tail, r)
		}
	}

	tailMean, err := stats.Mean(tail)
	if err != nil {
		return &v, nil
	}

	cv := -tailMean

	return &v, &cv
}

// lowerQuantile linearly interpolates the empirical quantile at rank
// p·(n−1) over the sorted sample. Unlike stats.Percentile, it is
// defined for every non-empty sample, including ranks that land below
// the first observation on short series.
func lowerQuantile(sample []float64, p float64) float64 {
	sorted := append([]float64(nil), sample...)
	sort.Float64s(sorted)

	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))

	if lo == hi {
		return sorted[lo]
	}

	frac := rank - float64(lo)

	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// beta = cov(strategy, benchmark) / var(benchmark); undefined when the
// benchmark variance is zero or the series lengths disagree.
func beta(returns, benchmark []float64) *float64 {
	if len(benchmark) == 0 || len(benchmark) != len(returns) {
		return nil
	}

	variance, err := stats.PopulationVariance(benchmark)
	if err != nil || variance < minVariation {
		return nil
	}

	covariance, err := stats.CovariancePopulation(returns, benchmark)
	if err != nil {
		return nil
	}

	b := covariance / variance

	return &b
}

func sharpe(returns []float64, cfg Config) *float64 {
	mean, err := stats.Mean(returns)
	if err != nil {
		return nil
	}

	sd, err := stats.StandardDeviation(returns)
	if err != nil || sd < minVariation {
		return nil
	}

	excess := mean - cfg.RiskFreeRate/cfg.Annualization
	s := excess / sd * math.Sqrt(cfg.Annualization)

	return &s
}

// sortino uses downside deviation: only returns below the target
// accumulate into the denominator.
func sortino(returns []float64, cfg Config) *float64 {
	mean, err := stats.Mean(returns)
	if err != nil {
		return nil
	}

	sumSq := 0.0
	for _, r := range returns {
		if r < cfg.SortinoTarget {
			d := r - cfg.SortinoTarget
			sumSq += d * d
		}
	}

	downside := math.Sqrt(sumSq / float64(len(returns)))
	if downside < minVariation {
		return nil
	}

	excess := mean - cfg.RiskFreeRate/cfg.Annualization
	s := excess / downside * math.Sqrt(cfg.Annualization)

	return &s
}

func omega(returns []float64, threshold float64) *float64 {
	gains := 0.0
	losses := 0.0

	for _, r := range returns {
		if r > threshold {
			gains += r - threshold
		} else if r < threshold {
			losses += threshold - r
		}
	}

	if losses == 0 {
		return nil
	}

	o := gains / losses

	return &o
}
