package main

import (
	"fmt"

	"github.com/kojimamizuki0512-dot/kaikatsu-darts-tg-koyeb/internal/app"
	"github.com/kojimamizuki0512-dot/kaikatsu-darts-tg-koyeb/internal/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and the vocabulary file",
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
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

	fmt.Println("configuration OK")
	fmt.Printf("  url:       %s\n", cfg.TargetURL)
	fmt.Printf("  label:     %s\n", cfg.TargetLabel)
	fmt.Printf("  interval:  %s\n", cfg.CheckInterval)
	fmt.Printf("  cache ttl: %s\n", cfg.CacheTTL)
	fmt.Printf("  patterns:  %d\n", len(voc.Current().Patterns()))
	if cfg.VocabPath != "" {
		fmt.Printf("  vocab:     %s\n", cfg.VocabPath)
	}
	return nil
}
