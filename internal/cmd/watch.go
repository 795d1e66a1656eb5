package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iptkeeper/iptkeeper/internal/config"
	"github.com/iptkeeper/iptkeeper/internal/iptables"
	"github.com/iptkeeper/iptkeeper/internal/metrics"
)

// WatchCmd represents the iptkeeper watch subcommand: a small daemon that
// re-applies the rules file whenever it changes and serves Prometheus
// metrics plus a health endpoint.
var WatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-apply the rules file on change and serve metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := commandLogger()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		intervalRaw := viper.GetString("watch_interval")
		interval, err := time.ParseDuration(intervalRaw)
		if err != nil {
			return fmt.Errorf("parse watch interval %q: %w", intervalRaw, err)
		}

		system, err := newSystem(cfg, logger)
		if err != nil {
			return err
		}

		watchLogger := logger.With(
			slog.String("component", "watch"),
			slog.String("rules_file", cfg.RulesFile),
		)

		instruments := metrics.NewMetrics()
		health := metrics.NewHealthChecker()

		mux := http.NewServeMux()
		mux.Handle("/metrics", instruments.Handler())
		mux.Handle("/healthz", health.Handler())

		listenAddr := viper.GetString("listen_addr")
		server := &http.Server{Addr: listenAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				watchLogger.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		watchLogger.Info("watch started",
			slog.String("interval", interval.String()),
			slog.String("listen_addr", listenAddr),
		)

		watcher := &fileWatcher{
			cfg:         cfg,
			system:      system,
			instruments: instruments,
			health:      health,
			logger:      watchLogger,
		}
		watcher.applyIfChanged(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

	loop:
		for {
			select {
			case sig := <-sigCh:
				watchLogger.Info("shutdown signal received", slog.String("signal", sig.String()))
				break loop
			case <-ticker.C:
				watcher.applyIfChanged(ctx)
			}
		}

		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			watchLogger.Warn("metrics server shutdown failed", slog.String("error", err.Error()))
		}

		watchLogger.Info("watch shutdown complete")

		return nil
	},
}

func init() {
	WatchCmd.Flags().String("interval", "15s", "How often to poll the rules file for changes")
	WatchCmd.Flags().String("listen", ":9411", "Address for the /metrics and /healthz endpoints")

	bindings := map[string]string{
		"watch_interval": "interval",
		"listen_addr":    "listen",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, WatchCmd.Flags().Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "failed to bind %s flag: %v\n", flag, err)
			os.Exit(1)
		}
	}
}

// fileWatcher re-applies the rules file when its modification time moves past
// the last applied one.
type fileWatcher struct {
	cfg         config.Config
	system      *iptables.System
	instruments *metrics.Metrics
	health      *metrics.HealthChecker
	logger      *slog.Logger

	lastApplied time.Time
}

func (w *fileWatcher) applyIfChanged(ctx context.Context) {
	info, err := os.Stat(w.cfg.RulesFile)
	if err != nil {
		w.instruments.IncrementError("stat")
		w.logger.Warn("cannot stat rules file", slog.String("error", err.Error()))
		return
	}
	if !info.ModTime().After(w.lastApplied) {
		return
	}

	rs, err := iptables.LoadFile(w.cfg.RulesFile, w.logger)
	if err != nil {
		w.instruments.IncrementError("parse")
		w.logger.Error("rules file failed to parse", slog.String("error", err.Error()))
		return
	}
	w.health.SetFileLoaded()

	if len(rs.Tables) == 0 {
		w.instruments.IncrementError("empty")
		w.logger.Warn("rules file holds no tables; skipping restore")
		return
	}

	if err := w.system.Restore(ctx, rs, w.cfg.RestoreCounters); err != nil {
		w.instruments.IncrementError("restore")
		w.logger.Error("restore failed", slog.String("error", err.Error()))
		return
	}

	w.lastApplied = info.ModTime()
	w.health.SetRulesApplied()
	w.instruments.IncrementApply()
	w.instruments.ObserveRuleSet(rs)

	w.logger.Info("ruleset re-applied",
		slog.Int("tables", len(rs.Tables)),
		slog.Time("mod_time", info.ModTime()),
	)
}
