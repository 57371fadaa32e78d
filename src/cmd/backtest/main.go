package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/quantsim/quantsim/src/backtester/engine"
	"github.com/quantsim/quantsim/src/backtester/optimizer"
	"github.com/quantsim/quantsim/src/data"
	"github.com/quantsim/quantsim/src/eventmodels"
	"github.com/quantsim/quantsim/src/strategy"
)

type strategyConfig struct {
	Name   string             `yaml:"name"`
	Params map[string]float64 `yaml:"params"`
}

type optimizerConfig struct {
	Search string                `yaml:"search"`
	Grid   map[string][]float64  `yaml:"grid"`
	Ranges map[string][2]float64 `yaml:"ranges"`
	Config optimizer.Config      `yaml:",inline"`
}

type appConfig struct {
	Engine    engine.Config   `yaml:"engine"`
	Strategy  strategyConfig  `yaml:"strategy"`
	Optimizer optimizerConfig `yaml:"optimizer"`
}

func loadAppConfig(path string) (*appConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg appConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.Engine.ApplyDefaults()
	if err := cfg.Engine.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}

	return &cfg, nil
}

func buildStrategy(cfg strategyConfig, params map[string]float64) (engine.Strategy, error) {
	merged := make(map[string]float64, len(cfg.Params)+len(params))
	for k, v := range cfg.Params {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}

	switch cfg.Name {
	case "", "ma_cross":
		fast, slow := 10, 30
		if v, ok := merged["fast"]; ok {
			fast = int(v)
		}
		if v, ok := merged["slow"]; ok {
			slow = int(v)
		}

		return strategy.NewMovingAverageCross(fast, slow)

	default:
		return nil, fmt.Errorf("unknown strategy %q", cfg.Name)
	}
}

func formatMetric(value *float64) string {
	if value == nil {
		return "n/a"
	}

	return fmt.Sprintf("%.4f", *value)
}

func printResult(result *engine.Result) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Metric", "Value"})
	table.SetBorder(false)

	table.Append([]string{"Initial Cash", fmt.Sprintf("%.2f", result.InitialCash)})
	table.Append([]string{"Final Equity", fmt.Sprintf("%.2f", result.FinalEquity)})
	table.Append([]string{"Total Return", fmt.Sprintf("%.2f%%", result.TotalReturn*100)})
	table.Append([]string{"Total Commission", fmt.Sprintf("%.2f", result.TotalCommission)})
	table.Append([]string{"Orders", fmt.Sprintf("%d", len(result.Orders))})
	table.Append([]string{"Fills", fmt.Sprintf("%d", len(result.Fills))})
	table.Append([]string{"Max Drawdown", fmt.Sprintf("%.2f%%", result.Summary.MaxDrawdown*100)})
	table.Append([]string{"Sharpe", formatMetric(result.Summary.Sharpe)})
	table.Append([]string{"Sortino", formatMetric(result.Summary.Sortino)})
	table.Append([]string{"Calmar", formatMetric(result.Summary.Calmar)})
	table.Append([]string{"VaR", formatMetric(result.Summary.VaR)})
	table.Append([]string{"CVaR", formatMetric(result.Summary.CVaR)})
	table.Append([]string{"Risk Level", string(result.Summary.Level)})

	table.Render()

	for _, alert := range result.Alerts {
		log.Warnf("risk alert [%s] %s", alert.Level, alert.Message)
	}
}

func printRankings(evals []optimizer.Evaluation) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Rank", "Params", "Objective", "Max DD", "Return"})
	table.SetBorder(false)

	for i, eval := range evals {
		if eval.Err != nil {
			table.Append([]string{fmt.Sprintf("%d", i+1), fmt.Sprintf("%v", eval.Params), "failed", "", ""})
			continue
		}

		table.Append([]string{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%v", eval.Params),
			formatMetric(eval.Objective),
			fmt.Sprintf("%.2f%%", eval.Result.Summary.MaxDrawdown*100),
			fmt.Sprintf("%.2f%%", eval.Result.TotalReturn*100),
		})
	}

	table.Render()
}

var rootCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Event-driven backtest runner",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single backtest over a CSV bar series",
	Run: func(cmd *cobra.Command, args []string) {
		configPath, err := cmd.Flags().GetString("config")
		if err != nil {
			log.Fatalf("error getting config: %v", err)
		}

		dataPath, err := cmd.Flags().GetString("data")
		if err != nil {
			log.Fatalf("error getting data: %v", err)
		}

		cfg, err := loadAppConfig(configPath)
		if err != nil {
			log.Fatalf("error loading config: %v", err)
		}

		bars, err := data.LoadBarsFromCSV(dataPath)
		if err != nil {
			log.Fatalf("error loading bars: %v", err)
		}

		strat, err := buildStrategy(cfg.Strategy, nil)
		if err != nil {
			log.Fatalf("error building strategy: %v", err)
		}

		eng, err := engine.NewEngine(cfg.Engine)
		if err != nil {
			log.Fatalf("error building engine: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		result, err := eng.Run(ctx, bars, strat)
		if err != nil {
			log.Fatalf("error running backtest: %v", err)
		}

		log.Infof("run %s finished over %d bars", result.RunID, len(bars))

		printResult(result)
	},
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Search strategy parameters over a CSV bar series",
	Run: func(cmd *cobra.Command, args []string) {
		configPath, err := cmd.Flags().GetString("config")
		if err != nil {
			log.Fatalf("error getting config: %v", err)
		}

		dataPath, err := cmd.Flags().GetString("data")
		if err != nil {
			log.Fatalf("error getting data: %v", err)
		}

		cfg, err := loadAppConfig(configPath)
		if err != nil {
			log.Fatalf("error loading config: %v", err)
		}

		bars, err := data.LoadBarsFromCSV(dataPath)
		if err != nil {
			log.Fatalf("error loading bars: %v", err)
		}

		run := func(ctx context.Context, params map[string]float64) (*engine.Result, error) {
			strat, err := buildStrategy(cfg.Strategy, params)
			if err != nil {
				return nil, err
			}

			eng, err := engine.NewEngine(cfg.Engine)
			if err != nil {
				return nil, err
			}

			barsCopy := make([]*eventmodels.Bar, len(bars))
			copy(barsCopy, bars)

			return eng.Run(ctx, barsCopy, strat)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var evals []optimizer.Evaluation

		switch cfg.Optimizer.Search {
		case "", "grid":
			evals, err = optimizer.GridSearch(ctx, cfg.Optimizer.Grid, run, cfg.Optimizer.Config)
		case "random":
			evals, err = optimizer.RandomSearch(ctx, cfg.Optimizer.Ranges, run, cfg.Optimizer.Config)
		default:
			log.Fatalf("unknown search type %q", cfg.Optimizer.Search)
		}

		if err != nil {
			log.Fatalf("error optimizing: %v", err)
		}

		printRankings(evals)
	},
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debugf("no .env file loaded: %v", err)
	}

	rootCmd.PersistentFlags().StringP("config", "c", "config.yaml", "Path to the YAML run configuration.")
	rootCmd.PersistentFlags().StringP("data", "d", "", "Path to the CSV bar series. This flag is required.")

	rootCmd.MarkPersistentFlagRequired("data")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(optimizeCmd)

	cobra.CheckErr(rootCmd.Execute())
}
