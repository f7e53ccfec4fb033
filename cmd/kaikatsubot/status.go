package main

import (
	"context"
	"fmt"

	"github.com/kojimamizuki0512-dot/kaikatsu-darts-tg-koyeb/internal/app"
	"github.com/kojimamizuki0512-dot/kaikatsu-darts-tg-koyeb/internal/config"
	"github.com/kojimamizuki0512-dot/kaikatsu-darts-tg-koyeb/internal/fetch"
	"github.com/kojimamizuki0512-dot/kaikatsu-darts-tg-koyeb/internal/telegram"
	"github.com/kojimamizuki0512-dot/kaikatsu-darts-tg-koyeb/internal/watch"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Fetch the page once and print the current status",
	Long:  `Fetch the vacancy page immediately and print the extracted status.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// observeOnce builds the fetch-and-extract path without storage or
// Telegram and reads the page one time. status and debug share it.
func observeOnce(ctx context.Context, cfg *config.Config) (watch.Result, error) {
	voc, err := app.LoadVocabulary(cfg)
	if err != nil {
		return watch.Result{}, err
	}

	cache := watch.NewCache(watch.CacheConfig{
		Fetcher:      fetch.NewClient(fetch.Config{URL: cfg.TargetURL}),
		Vocab:        voc,
		Label:        cfg.TargetLabel,
		TTL:          cfg.CacheTTL,
		FetchTimeout: cfg.FetchTimeout,
		RetryBackoff: cfg.RetryBackoff,
	})
	return cache.Get(ctx, true), nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	res, err := observeOnce(ctx, cfg)
	if err != nil {
		return err
	}

	switch res.Kind {
	case watch.KindSuccess:
		fmt.Printf("%s: %s（%s）\n", cfg.TargetLabel, res.Status, telegram.FormatJST(res.ObservedAt))
		fmt.Println(cfg.TargetURL)
		return nil
	case watch.KindNotFound:
		return fmt.Errorf("no status token found near %q (try the debug command)", cfg.TargetLabel)
	default:
		return res.Err
	}
}
