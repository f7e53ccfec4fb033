package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kojimamizuki0512-dot/kaikatsu-darts-tg-koyeb/internal/app"
	"github.com/kojimamizuki0512-dot/kaikatsu-darts-tg-koyeb/internal/config"
	"github.com/kojimamizuki0512-dot/kaikatsu-darts-tg-koyeb/internal/watch"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the watcher daemon",
	Long: `Run the daemon that polls the vacancy page on a schedule, answers
Telegram commands and notifies subscribers on status changes.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForServe(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	slog.Info("connecting to database", "path", cfg.DatabasePath())
	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("wire application: %w", err)
	}
	defer application.Close()

	// Validate the bot token before the loops start
	if username, err := application.Telegram.GetMe(ctx); err != nil {
		application.Scheduler.Health().SetUnhealthy("telegram", err)
		slog.Error("failed to validate bot token", "error", err)
	} else {
		application.Scheduler.Health().SetHealthy("telegram", "@"+username)
		slog.Info("telegram bot authenticated", "username", username)
	}

	slog.Info("starting kaikatsubot daemon",
		"url", cfg.TargetURL,
		"label", cfg.TargetLabel,
		"check_interval", cfg.CheckInterval,
	)

	errCh := make(chan error, 3)

	go func() {
		errCh <- application.Scheduler.Run(ctx)
	}()
	go func() {
		errCh <- application.Bot.Run(ctx)
	}()

	if cfg.VocabPath != "" {
		go func() {
			if err := application.Vocab.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("vocabulary watcher stopped", "error", err)
			}
		}()
	}

	if cfg.MetricsAddr != "" {
		srv := metricsServer(cfg.MetricsAddr, application.Scheduler.Health())
		go func() {
			slog.Info("metrics server listening", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// Wait for shutdown signal or error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("daemon error: %w", err)
		}
	}

	slog.Info("shutting down...")
	cancel()

	return nil
}

// metricsServer serves Prometheus metrics and a JSON health snapshot.
func metricsServer(addr string, health *watch.Health) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !health.Healthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(health.Snapshot())
	})

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
