// Package main provides the entry point for the backtesting CLI tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/kabu-screener/internal/backtest"
	"github.com/yourusername/kabu-screener/internal/config"
	"github.com/yourusername/kabu-screener/internal/database"
	"github.com/yourusername/kabu-screener/internal/logger"
	"github.com/yourusername/kabu-screener/internal/marketdata"
	"github.com/yourusername/kabu-screener/internal/metrics"
	"github.com/yourusername/kabu-screener/internal/repository"
	"github.com/yourusername/kabu-screener/internal/scoring"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

const (
	exitFailure       = 1
	exitInvalidConfig = 2
)

var (
	configFile string
	startDate  string
	endDate    string
	outputDir  string
	symbols    []string
	testName   string
	saveDB     bool
	limit      int

	log *logrus.Logger
	cfg *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")

	runCmd.Flags().StringVar(&startDate, "start-date", "", "Override start date (YYYY-MM-DD)")
	runCmd.Flags().StringVar(&endDate, "end-date", "", "Override end date (YYYY-MM-DD)")
	runCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for report files (defaults to backtest.output_path)")
	runCmd.Flags().StringSliceVar(&symbols, "symbols", nil, "Override the universe, e.g. 7203.T,6758.T")
	runCmd.Flags().StringVar(&testName, "name", "", "Name stored with the persisted result")
	runCmd.Flags().BoolVar(&saveDB, "save-db", false, "Persist the result when the database is enabled")

	historyCmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of results to list")

	rootCmd.AddCommand(runCmd, historyCmd, versionCmd)
}

var rootCmd = &cobra.Command{
	Use:           "backtest",
	Short:         "Replay the day-trade screener over historical prices",
	Long:          `Runs the scoring engine day by day over a date range, simulating entries and exits with costs, and reports performance statistics.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd == versionCmd {
			return nil
		}
		return loadConfig()
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a backtest",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runBacktest(ctx)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently persisted backtest results",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listHistory(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("backtest %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if backtest.IsConfigurationError(err) {
			os.Exit(exitInvalidConfig)
		}
		os.Exit(exitFailure)
	}
}

func loadConfig() error {
	var err error
	cfg, err = config.LoadWithDefaults(configFile)
	if err != nil {
		return fmt.Errorf("%w: %v", backtest.ErrInvalidConfiguration, err)
	}
	applyOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("%w: %v", backtest.ErrInvalidConfiguration, err)
	}
	log = logger.NewLogger(cfg.App.LogLevel, cfg.App.Environment)
	return nil
}

func applyOverrides(c *config.Config) {
	if startDate != "" {
		c.Backtest.StartDate = startDate
	}
	if endDate != "" {
		c.Backtest.EndDate = endDate
	}
	if len(symbols) > 0 {
		c.Backtest.Universe = symbols
	}
	if outputDir != "" {
		c.Backtest.OutputPath = outputDir
	}
}

func runBacktest(ctx context.Context) error {
	btConfig, err := backtest.FromConfig(&cfg.Backtest, cfg.MarketData.Concurrency)
	if err != nil {
		return err
	}

	provider, err := marketdata.NewProviderFromConfig(cfg.MarketData, log)
	if err != nil {
		return fmt.Errorf("%w: %v", backtest.ErrInvalidConfiguration, err)
	}

	scorer := scoring.NewEngine(scoring.DefaultRules(scoring.WeightsFromConfig(cfg.Screening.ScoringWeights)))
	engine, err := backtest.NewEngine(btConfig, provider, log,
		backtest.WithScorer(scorer),
		backtest.WithObserver(metrics.NewBacktestObserver()))
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"start":    btConfig.StartDate.Format("2006-01-02"),
		"end":      btConfig.EndDate.Format("2006-01-02"),
		"symbols":  len(btConfig.Symbols()),
		"provider": provider.Name(),
		"rules":    strings.Join(scorer.Rules(), ","),
	}).Info("Starting backtest")

	started := time.Now()
	result, err := engine.Run(ctx)
	writeRunMetrics(btConfig.OutputPath, started)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	fmt.Print(backtest.GenerateConsoleReport(result))

	files, err := backtest.SaveDetailedReport(result, btConfig.OutputPath, started)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	log.WithFields(logrus.Fields{
		"summary": files.Summary,
		"json":    files.JSON,
		"equity":  files.Equity,
		"trades":  files.Trades,
	}).Info("Report saved")

	if saveDB {
		return persist(ctx, result, btConfig)
	}
	return nil
}

// writeRunMetrics leaves the observer's counters next to the reports, since
// the process exits before a scraper could reach them
func writeRunMetrics(outputDir string, started time.Time) {
	path := filepath.Join(outputDir, "metrics_"+started.Format("20060102_150405")+".prom")
	if err := metrics.WriteTextfile(path); err != nil {
		log.WithError(err).Warn("Failed to write run metrics")
		return
	}
	log.WithField("path", path).Debug("Run metrics written")
}

func persist(ctx context.Context, result *backtest.Result, btConfig backtest.BacktestConfig) error {
	if !cfg.Database.Enabled {
		return errors.New("--save-db requires database.enabled")
	}
	repos, closeDB, err := openRepositories(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	name := testName
	if name == "" {
		name = fmt.Sprintf("%s_%s_%s",
			strings.Join(btConfig.Symbols(), "+"),
			btConfig.StartDate.Format("20060102"),
			btConfig.EndDate.Format("20060102"))
	}

	id, err := backtest.ExportToDatabase(ctx, repos.BacktestResult, result, name)
	if err != nil {
		return fmt.Errorf("failed to persist result: %w", err)
	}
	log.WithFields(logrus.Fields{"result_id": id, "name": name}).Info("Backtest result saved")
	return nil
}

func listHistory(ctx context.Context) error {
	if !cfg.Database.Enabled {
		return errors.New("history requires database.enabled")
	}
	repos, closeDB, err := openRepositories(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	results, err := repos.BacktestResult.GetLatest(ctx, limit)
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Printf("%s  %-40s %s..%s  return %7.2f%%  sharpe %5.2f  maxdd %6.2f%%  trades %d\n",
			r.ID, r.TestName,
			r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02"),
			r.TotalReturn*100, r.SharpeRatio, r.MaxDrawdown*100, r.TotalTrades)
	}
	return nil
}

func openRepositories(ctx context.Context) (*repository.Repositories, func(), error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := database.Initialize(connectCtx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	repos, err := repository.NewRepositories(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return repos, db.Close, nil
}
