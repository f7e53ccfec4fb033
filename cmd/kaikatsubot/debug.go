package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kojimamizuki0512-dot/kaikatsu-darts-tg-koyeb/internal/app"
	"github.com/kojimamizuki0512-dot/kaikatsu-darts-tg-koyeb/internal/config"
	"github.com/kojimamizuki0512-dot/kaikatsu-darts-tg-koyeb/internal/watch"
	"github.com/spf13/cobra"
)

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Fetch the page once and dump extraction details",
	Long: `Fetch the vacancy page immediately and print the status together
with the text snippet the extractor looked at. Useful when the page
layout changed and the status stopped matching.`,
	RunE: runDebug,
}

func init() {
	rootCmd.AddCommand(debugCmd)
}

func runDebug(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	voc, err := app.LoadVocabulary(cfg)
	if err != nil {
		return err
	}

	res, err := observeOnce(ctx, cfg)
	if err != nil {
		return err
	}

	probe := uuid.NewString()[:8]

	status := string(res.Status)
	if status == "" {
		status = "none"
	}
	fmt.Printf("status=%s\n", status)
	fmt.Printf("URL=%s\n", cfg.TargetURL)
	fmt.Printf("label=%s\n", cfg.TargetLabel)
	fmt.Printf("probe=%s\n", probe)
	fmt.Printf("patterns=%s\n", strings.Join(voc.Current().Patterns(), " | "))
	if res.Kind == watch.KindError {
		fmt.Printf("error=%s\n", res.Err)
	}
	if res.Snippet != "" {
		fmt.Println("--- debug ---")
		fmt.Println(res.Snippet)
	}
	return nil
}
