package optimizer

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/quantsim/quantsim/src/backtester/engine"
)

type Objective string

const (
	ObjectiveSharpe Objective = "sharpe"
	ObjectiveReturn Objective = "return"
	ObjectiveCalmar Objective = "calmar"
)

func (o Objective) Validate() error {
	switch o {
	case ObjectiveSharpe, ObjectiveReturn, ObjectiveCalmar:
		return nil
	default:
		return fmt.Errorf("unknown objective %q", o)
	}
}

// RunFunc executes one backtest for one parameter set. Implementations
// must be safe to call from multiple goroutines; in practice each call
// constructs its own engine.
type RunFunc func(ctx context.Context, params map[string]float64) (*engine.Result, error)

// Evaluation is one parameter set's outcome. Objective is nil when the
// run failed or the metric was undefined for the run; such evaluations
// sort after every successful one.
type Evaluation struct {
	Params    map[string]float64 `json:"params"`
	Objective *float64           `json:"objective"`
	Result    *engine.Result     `json:"-"`
	Err       error              `json:"-"`
}

type Config struct {
	Objective Objective `yaml:"objective"`

	// number of random samples to draw; ignored by grid search
	Samples int `yaml:"samples"`

	Seed    int64 `yaml:"seed"`
	Workers int   `yaml:"workers"`
}

func (c *Config) ApplyDefaults() {
	if c.Objective == "" {
		c.Objective = ObjectiveSharpe
	}

	// negative values from config are treated as unset; zero workers
	// would deadlock the dispatch loop
	if c.Samples <= 0 {
		c.Samples = 50
	}

	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
}

// GridSearch evaluates the full Cartesian product of the space and
// returns evaluations ranked by objective. Parameter names are
// traversed in sorted order, so the enumeration is deterministic for a
// given space.
func GridSearch(ctx context.Context, space map[string][]float64, run RunFunc, cfg Config) ([]Evaluation, error) {
	cfg.ApplyDefaults()

	if err := cfg.Objective.Validate(); err != nil {
		return nil, fmt.Errorf("GridSearch: %w", err)
	}

	if len(space) == 0 {
		return nil, fmt.Errorf("GridSearch: empty parameter space")
	}

	names := sortedNames(space)
	for _, name := range names {
		if len(space[name]) == 0 {
			return nil, fmt.Errorf("GridSearch: parameter %q has no values", name)
		}
	}

	var paramSets []map[string]float64

	indices := make([]int, len(names))
	for {
		params := make(map[string]float64, len(names))
		for i, name := range names {
			params[name] = space[name][indices[i]]
		}
		paramSets = append(paramSets, params)

		carry := len(names) - 1
		for ; carry >= 0; carry-- {
			indices[carry]++
			if indices[carry] < len(space[names[carry]]) {
				break
			}
			indices[carry] = 0
		}

		if carry < 0 {
			break
		}
	}

	return evaluate(ctx, paramSets, run, cfg), nil
}

// RandomSearch draws cfg.Samples uniform points from the given ranges.
// The same seed reproduces the same draw sequence.
func RandomSearch(ctx context.Context, ranges map[string][2]float64, run RunFunc, cfg Config) ([]Evaluation, error) {
	cfg.ApplyDefaults()

	if err := cfg.Objective.Validate(); err != nil {
		return nil, fmt.Errorf("RandomSearch: %w", err)
	}

	if len(ranges) == 0 {
		return nil, fmt.Errorf("RandomSearch: empty parameter ranges")
	}

	names := make([]string, 0, len(ranges))
	for name := range ranges {
		if ranges[name][1] < ranges[name][0] {
			return nil, fmt.Errorf("RandomSearch: parameter %q has inverted range", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	rng := rand.New(rand.NewSource(cfg.Seed))

	paramSets := make([]map[string]float64, 0, cfg.Samples)
	for s := 0; s < cfg.Samples; s++ {
		params := make(map[string]float64, len(names))
		for _, name := range names {
			lo, hi := ranges[name][0], ranges[name][1]
			params[name] = lo + rng.Float64()*(hi-lo)
		}
		paramSets = append(paramSets, params)
	}

	return evaluate(ctx, paramSets, run, cfg), nil
}

// evaluate fans parameter sets out over a worker pool and ranks the
// outcomes. Cancellation is honored between evaluations: in-flight
// runs finish, unstarted sets are skipped, and whatever completed is
// still ranked and returned.
func evaluate(ctx context.Context, paramSets []map[string]float64, run RunFunc, cfg Config) []Evaluation {
	workers := cfg.Workers
	if workers > len(paramSets) {
		workers = len(paramSets)
	}

	evals := make([]Evaluation, len(paramSets))
	attempted := make([]bool, len(paramSets))

	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for idx := range jobs {
				if ctx.Err() != nil {
					continue
				}

				attempted[idx] = true
				evals[idx] = evaluateOne(ctx, paramSets[idx], run, cfg.Objective)
			}
		}()
	}

	for idx := range paramSets {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	completed := make([]Evaluation, 0, len(evals))
	for idx, eval := range evals {
		if attempted[idx] {
			completed = append(completed, eval)
		}
	}

	rank(completed)

	return completed
}

func evaluateOne(ctx context.Context, params map[string]float64, run RunFunc, objective Objective) Evaluation {
	eval := Evaluation{Params: params}

	result, err := run(ctx, params)
	if err != nil {
		eval.Err = err
		log.Warnf("evaluation failed for %v: %v", params, err)
		return eval
	}

	result.Params = params
	eval.Result = result
	eval.Objective = extractObjective(result, objective)

	return eval
}

func extractObjective(result *engine.Result, objective Objective) *float64 {
	switch objective {
	case ObjectiveReturn:
		value := result.TotalReturn
		return &value

	case ObjectiveCalmar:
		return result.Summary.Calmar

	default:
		return result.Summary.Sharpe
	}
}

// rank sorts by objective descending; equal objectives prefer the
// lower max drawdown. Failed or undefined evaluations go last, in
// their original order.
func rank(evals []Evaluation) {
	sort.SliceStable(evals, func(i, j int) bool {
		a, b := evals[i].Objective, evals[j].Objective

		if a == nil {
			return false
		}

		if b == nil {
			return true
		}

		if *a != *b {
			return *a > *b
		}

		return evals[i].Result.Summary.MaxDrawdown < evals[j].Result.Summary.MaxDrawdown
	})
}

func sortedNames(space map[string][]float64) []string {
	names := make([]string, 0, len(space))
	for name := range space {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
