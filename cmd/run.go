package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"portalsim/internal/analytics"
	"portalsim/internal/browser"
	"portalsim/internal/cli"
	"portalsim/internal/config"
	"portalsim/internal/export"
	"portalsim/internal/logging"
	"portalsim/internal/metrics"
	"portalsim/internal/pacing"
	"portalsim/internal/runner"
	"portalsim/internal/session"
	"portalsim/internal/stats"
	"portalsim/internal/storage"
	"portalsim/internal/tui/app"
	"portalsim/internal/workload"
)

const defaultHistory = "default"

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	// The dashboard owns the terminal; logs would tear it.
	var logOut io.Writer = os.Stderr
	if cfg.TUI {
		logOut = io.Discard
	}
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Writer: logOut})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	gen, err := workload.NewGenerator(workload.GeneratorConfig{
		UsersPerBatch: cfg.UsersPerBatch,
		Composition:   cfg.Composition,
		Domestic:      cfg.Localities.Domestic,
		International: cfg.Localities.International,
	}, rand.New(rand.NewSource(seed)))
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}

	launcher := browser.NewChromeLauncher(browser.ChromeConfig{
		RemoteURL: cfg.Browser.RemoteURL,
		Headless:  !cfg.Browser.Headful,
		NoSandbox: cfg.Browser.NoSandbox,
		Logger:    logger.Named("chrome"),
	})

	sessions := session.NewRunner(launcher, session.Options{
		BaseURL:           cfg.TargetURL,
		Pages:             cfg.Pages,
		NavigationTimeout: cfg.Session.NavigationTimeout,
		ClickProbability:  cfg.Session.ClickProbability,
		Matcher:           analytics.NewMatcher(cfg.Session.AnalyticsPatterns),
		Pacing: pacing.Human{
			ScrollMin: cfg.Session.ScrollPauseMin,
			ScrollMax: cfg.Session.ScrollPauseMax,
			PageMin:   cfg.Session.PageDelayMin,
			PageMax:   cfg.Session.PageDelayMax,
		},
		Logger: logger,
	})

	console := newConsole(cmd.OutOrStdout(), cfg.TUI)
	observers := []runner.Observer{console}

	updates := make(runner.UpdateChan, 100)
	opts := runner.Options{
		TotalBatches:      cfg.TotalBatches,
		ConcurrentBatches: cfg.ConcurrentBatches,
		GroupPause:        cfg.GroupPause,
		LaunchRate:        cfg.LaunchRate,
		Seed:              seed + 1,
		Checker:           launcher,
		Updates:           updates,
		KeepResults:       cfg.Out != "",
		Logger:            logger,
	}

	var exporter *metrics.Exporter
	if cfg.MetricsAddr != "" {
		exporter = metrics.NewExporter()
		observers = append(observers, exporter)
	}
	opts.Observers = observers
	r := runner.New(gen, sessions, opts)

	if exporter != nil {
		exporter.TrackInFlight(r.InFlight)
		if err := exporter.Start(cfg.MetricsAddr); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = exporter.Stop(shutdownCtx)
		}()
		logger.Info("metrics endpoint listening", zap.String("addr", exporter.Addr()))
	}

	logger.Info("run starting",
		zap.String("run_id", r.ID),
		zap.String("url", cfg.TargetURL),
		zap.Int("users", cfg.TotalUsers()),
		zap.Int64("seed", seed))

	var summary stats.Summary
	var runErr error
	if cfg.TUI {
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		summary, runErr = app.Run("portalsim "+r.ID, updates, cancel, func() (stats.Summary, error) {
			return r.Run(runCtx)
		})
	} else {
		console.PrintHeader(cfg, r.ID)
		summary, runErr = r.Run(ctx)
	}
	if errors.Is(runErr, runner.ErrPreflight) {
		return runErr
	}

	console.PrintSummary(summary)

	if cfg.Out != "" {
		paths, err := export.Files(cfg.Out, summary, r.Results())
		if err != nil {
			logger.Error("export failed", zap.Error(err))
		} else {
			console.PrintReports(paths...)
		}
	}

	if cfg.History != "" {
		if err := saveHistory(cfg, summary); err != nil {
			logger.Error("history not saved", zap.Error(err))
		}
	}

	return runErr
}

// newConsole always tallies failures for the summary; with the dashboard up
// it stays off the terminal until the run ends.
func newConsole(out io.Writer, tui bool) *cli.Console {
	c := cli.NewConsole(out)
	if tui {
		c.HideProgress()
	}
	return c
}

func historyPath(p string) (string, error) {
	if p == "" || p == defaultHistory {
		return storage.DefaultPath()
	}
	return p, nil
}

func saveHistory(cfg config.Config, summary stats.Summary) error {
	path, err := historyPath(cfg.History)
	if err != nil {
		return err
	}
	store, err := storage.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	id := summary.RunID
	if id == "" {
		id = uuid.NewString()
	}
	return store.Save(storage.Record{
		ID:        id,
		Timestamp: summary.Started,
		Config:    cfg,
		Summary:   summary,
	})
}
