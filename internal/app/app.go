// Package app wires the bot's components together.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/kojimamizuki0512-dot/kaikatsu-darts-tg-koyeb/internal/config"
	"github.com/kojimamizuki0512-dot/kaikatsu-darts-tg-koyeb/internal/fetch"
	"github.com/kojimamizuki0512-dot/kaikatsu-darts-tg-koyeb/internal/store"
	"github.com/kojimamizuki0512-dot/kaikatsu-darts-tg-koyeb/internal/telegram"
	"github.com/kojimamizuki0512-dot/kaikatsu-darts-tg-koyeb/internal/vocab"
	"github.com/kojimamizuki0512-dot/kaikatsu-darts-tg-koyeb/internal/watch"
)

// App is the main application container holding all dependencies.
type App struct {
	Config    *config.Config
	Store     *store.Store
	Vocab     *vocab.Holder
	Fetcher   *fetch.Client
	Cache     *watch.Cache
	Detector  *watch.Detector
	Scheduler *watch.Scheduler
	Telegram  *telegram.Client
	Bot       *telegram.Bot
}

// New creates a new application instance with all dependencies wired
// up, migrations applied and the persisted watch state restored.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// Open storage and apply migrations
	st, err := store.Open(ctx, cfg.DatabasePath())
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}

	// Load the token vocabulary
	voc, err := LoadVocabulary(cfg)
	if err != nil {
		st.Close()
		return nil, err
	}

	// Create the page fetcher
	fetcher := fetch.NewClient(fetch.Config{
		URL: cfg.TargetURL,
	})

	// Create the watch pipeline
	cache := watch.NewCache(watch.CacheConfig{
		Fetcher:      fetcher,
		Vocab:        voc,
		Label:        cfg.TargetLabel,
		TTL:          cfg.CacheTTL,
		FetchTimeout: cfg.FetchTimeout,
		RetryBackoff: cfg.RetryBackoff,
	})

	tg := telegram.NewClient(telegram.Config{
		Token: cfg.BotToken,
	})

	detector := watch.NewDetector(watch.DetectorConfig{
		State: st,
		Subs:  st,
		Sink:  tg,
		Format: func(status watch.Status, at time.Time) string {
			return telegram.ChangeMessage(cfg.TargetLabel, string(status), at, cfg.TargetURL)
		},
	})
	if err := detector.Restore(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("restore watch state: %w", err)
	}

	sched := watch.NewScheduler(watch.SchedulerConfig{
		Cache:        cache,
		Detector:     detector,
		Interval:     cfg.CheckInterval,
		InitialDelay: cfg.InitialDelay,
	})

	bot := telegram.NewBot(telegram.BotConfig{
		Client:  tg,
		Store:   st,
		Watcher: sched,
		Label:   cfg.TargetLabel,
		URL:     cfg.TargetURL,
	})

	return &App{
		Config:    cfg,
		Store:     st,
		Vocab:     voc,
		Fetcher:   fetcher,
		Cache:     cache,
		Detector:  detector,
		Scheduler: sched,
		Telegram:  tg,
		Bot:       bot,
	}, nil
}

// LoadVocabulary loads the vocabulary file named by the configuration,
// or wraps the built-in default when none is configured.
func LoadVocabulary(cfg *config.Config) (*vocab.Holder, error) {
	if cfg.VocabPath == "" {
		return vocab.NewHolder("", vocab.Default()), nil
	}
	v, err := vocab.Load(cfg.VocabPath)
	if err != nil {
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}
	return vocab.NewHolder(cfg.VocabPath, v), nil
}

// Close closes all resources.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
