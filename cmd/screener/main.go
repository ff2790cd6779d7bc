// Package main provides the entry point for the live screening CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/kabu-screener/internal/config"
	"github.com/yourusername/kabu-screener/internal/database"
	"github.com/yourusername/kabu-screener/internal/health"
	"github.com/yourusername/kabu-screener/internal/logger"
	"github.com/yourusername/kabu-screener/internal/marketdata"
	"github.com/yourusername/kabu-screener/internal/metrics"
	"github.com/yourusername/kabu-screener/internal/repository"
	"github.com/yourusername/kabu-screener/internal/scheduler"
	"github.com/yourusername/kabu-screener/internal/scoring"
	"github.com/yourusername/kabu-screener/internal/screener"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

const dateLayout = "2006-01-02"

// Tokyo does not observe DST
var jst = time.FixedZone("JST", 9*60*60)

var (
	configFile string
	asOfDate   string
	asJSON     bool
	topN       int
	symbols    []string
	schedule   string

	log *logrus.Logger
	cfg *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().IntVar(&topN, "top", 0, "Override screening.top_n")
	rootCmd.PersistentFlags().StringSliceVar(&symbols, "symbols", nil, "Override the screening universe")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Print the report as JSON")

	screenCmd.Flags().StringVar(&asOfDate, "as-of", "", "Screen using bars up to this date (YYYY-MM-DD, default today JST)")

	watchCmd.Flags().StringVar(&schedule, "cron", "", "Cron expression in JST (defaults to screening.schedule)")

	rootCmd.AddCommand(screenCmd, watchCmd, versionCmd)
}

var rootCmd = &cobra.Command{
	Use:           "screener",
	Short:         "Score Japanese equities for day-trade candidates",
	Long:          `Fetches daily bars for the screening universe, applies liquidity filters and the scoring rules, and prints a ranked candidate list.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd == versionCmd {
			return nil
		}
		if err := loadConfig(); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return nil
	},
}

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Run one screening pass and print the candidates",
	RunE: func(cmd *cobra.Command, args []string) error {
		asOf := time.Now().In(jst)
		if asOfDate != "" {
			t, err := time.Parse(dateLayout, asOfDate)
			if err != nil {
				return fmt.Errorf("invalid --as-of: %w", err)
			}
			asOf = t
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.run(ctx, asOf)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Screen on a cron schedule and serve health and metrics endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return watch(ctx)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("screener %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() error {
	var err error
	cfg, err = config.LoadWithDefaults(configFile)
	if err != nil {
		return err
	}
	if topN > 0 {
		cfg.Screening.TopN = topN
	}
	if len(symbols) > 0 {
		cfg.Screening.Universe = symbols
	}
	fillBacktestSection(cfg)
	if err := config.Validate(cfg); err != nil {
		return err
	}
	log = logger.NewLogger(cfg.App.LogLevel, cfg.App.Environment)
	return nil
}

// fillBacktestSection lets a screening-only config pass validation.
// The backtest window is unused here; the universe falls back the other way.
func fillBacktestSection(c *config.Config) {
	today := time.Now().In(jst).Format(dateLayout)
	if c.Backtest.StartDate == "" {
		c.Backtest.StartDate = today
	}
	if c.Backtest.EndDate == "" {
		c.Backtest.EndDate = c.Backtest.StartDate
	}
	if len(c.Backtest.Universe) == 0 {
		c.Backtest.Universe = c.Screening.Universe
	}
}

// app bundles what one screening pass needs. db and store are nil unless database.enabled.
type app struct {
	svc      *screener.Service
	provider marketdata.Provider
	db       *database.DB
	store    screener.ReportStore
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

func newApp(ctx context.Context) (*app, error) {
	provider, err := marketdata.NewProviderFromConfig(cfg.MarketData, log)
	if err != nil {
		return nil, err
	}
	scorer := scoring.NewEngine(scoring.DefaultRules(scoring.WeightsFromConfig(cfg.Screening.ScoringWeights)))
	opts := []screener.Option{
		screener.WithScorer(scorer),
		screener.WithObserver(metrics.NewScreeningObserver()),
	}
	if path := cfg.Screening.MetadataFile; path != "" {
		enricher, err := screener.LoadMetadataEnricher(path)
		if err != nil {
			return nil, err
		}
		opts = append(opts, screener.WithEnricher(enricher))
	}
	svc, err := screener.NewService(screener.ConfigFromApp(cfg), provider, log, opts...)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"provider": provider.Name(),
		"rules":    strings.Join(scorer.Rules(), ","),
		"metadata": cfg.Screening.MetadataFile,
	}).Debug("Screening service ready")

	a := &app{svc: svc, provider: provider}
	if !cfg.Database.Enabled {
		return a, nil
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	a.db, err = database.Initialize(connectCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	repos, err := repository.NewRepositories(a.db)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = repos.ScreeningResult
	return a, nil
}

// run screens once, stores the ranked candidates when a database is configured and prints the report
func (a *app) run(ctx context.Context, asOf time.Time) error {
	report, err := a.svc.Screen(ctx, marketdata.DayOf(asOf))
	if err != nil {
		return err
	}
	if a.store != nil {
		runID, err := screener.SaveReport(ctx, a.store, report)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"run_id": runID, "candidates": len(report.Candidates)}).Info("Screening results saved")
	}
	return printReport(report)
}

func printReport(report *screener.Report) error {
	if asJSON {
		return report.WriteJSON(os.Stdout)
	}
	return report.WriteTable(os.Stdout)
}

func watch(ctx context.Context) error {
	expr := schedule
	if expr == "" {
		expr = cfg.Screening.Schedule
	}
	if expr == "" {
		return fmt.Errorf("no schedule: pass --cron or set screening.schedule")
	}
	if err := scheduler.ValidateSchedule(expr); err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	healthCfg := health.Config{
		Service: "kabu-screener",
		Version: Version,
		Commit:  GitCommit,
		Logger:  log,
	}
	if a.db != nil {
		healthCfg.DB = a.db
	}
	if b, ok := a.provider.(marketdata.BreakerReporter); ok {
		healthCfg.Breaker = b
	}
	if cfg.Metrics.Enabled {
		healthCfg.Metrics = metrics.Handler()
		healthCfg.MetricsPath = cfg.Metrics.Path
		if cfg.Metrics.Port > 0 {
			healthCfg.Addr = ":" + strconv.Itoa(cfg.Metrics.Port)
		}
	}
	healthServer := health.NewServer(healthCfg)
	if err := healthServer.Start(); err != nil {
		return err
	}

	sched := scheduler.NewScheduler(jst, 10*time.Minute, log)
	_, err = sched.Schedule("screen", expr, func(jobCtx context.Context) error {
		now := time.Now().In(jst)
		err := a.run(jobCtx, now)
		healthServer.RecordRun(now, err)
		if cached, ok := a.provider.(*marketdata.CachedProvider); ok {
			metrics.UpdateCacheStats(cached.Stats())
		}
		return err
	})
	if err != nil {
		return err
	}
	if err := sched.Start(); err != nil {
		return err
	}
	healthServer.SetReady(true)

	log.WithFields(logrus.Fields{
		"schedule": expr,
		"next_run": sched.GetNextRun().Format(time.RFC3339),
	}).Info("Screener watching")

	<-ctx.Done()
	healthServer.SetReady(false)

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil {
		return err
	}
	return healthServer.Shutdown(stopCtx)
}
