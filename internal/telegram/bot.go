package telegram

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kojimamizuki0512-dot/kaikatsu-darts-tg-koyeb/internal/watch"
)

// Watcher triggers an immediate observation of the page. The scheduler
// implements it; tests substitute a fake.
type Watcher interface {
	TriggerNow(ctx context.Context) (watch.Result, watch.Outcome)
}

// SubscriberStore manages the chats that receive notifications.
type SubscriberStore interface {
	Add(ctx context.Context, chatID int64) (bool, error)
	Remove(ctx context.Context, chatID int64) (bool, error)
}

const errorReply = "エラーが発生しました。もう一度お試しください。"

// BotConfig holds bot configuration.
type BotConfig struct {
	Client  *Client
	Store   SubscriberStore
	Watcher Watcher
	Label   string
	URL     string
	// PollTimeout is the getUpdates hold time. Defaults to 50s.
	PollTimeout time.Duration
}

// Bot consumes the getUpdates feed and answers the subscriber commands:
// /start, /on, /off, /status and /debug.
type Bot struct {
	client      *Client
	store       SubscriberStore
	watcher     Watcher
	label       string
	url         string
	pollTimeout time.Duration
}

// NewBot creates a new bot.
func NewBot(cfg BotConfig) *Bot {
	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 50 * time.Second
	}
	return &Bot{
		client:      cfg.Client,
		store:       cfg.Store,
		watcher:     cfg.Watcher,
		label:       cfg.Label,
		url:         cfg.URL,
		pollTimeout: pollTimeout,
	}
}

// Run long-polls for updates until ctx is cancelled. Each update is
// handled on its own goroutine so a slow page fetch behind /status
// never stalls other chats.
func (b *Bot) Run(ctx context.Context) error {
	slog.Info("starting telegram bot", "poll_timeout", b.pollTimeout)

	var offset int64
	for {
		select {
		case <-ctx.Done():
			slog.Info("telegram bot shutting down")
			return ctx.Err()
		default:
		}

		updates, err := b.client.GetUpdates(ctx, offset, b.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("telegram bot shutting down")
				return ctx.Err()
			}
			slog.Warn("getUpdates failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			go b.handleUpdate(ctx, u)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, u Update) {
	if u.Message == nil || u.Message.Text == "" {
		return
	}
	cmd := command(u.Message.Text)
	if cmd == "" {
		return
	}
	chatID := u.Message.Chat.ID
	slog.Debug("command received", "command", cmd, "chat_id", chatID)

	var reply string
	switch cmd {
	case "/start", "/help":
		reply = StartMessage(b.label)

	case "/on":
		if _, err := b.store.Add(ctx, chatID); err != nil {
			slog.Error("subscribe failed", "chat_id", chatID, "error", err)
			reply = errorReply
		} else {
			reply = subscribedMessage
		}

	case "/off":
		if _, err := b.store.Remove(ctx, chatID); err != nil {
			slog.Error("unsubscribe failed", "chat_id", chatID, "error", err)
			reply = errorReply
		} else {
			reply = unsubscribedMessage
		}

	case "/status":
		res, _ := b.watcher.TriggerNow(ctx)
		if res.OK() {
			reply = StatusMessage(string(res.Status), res.ObservedAt, b.url)
		} else {
			reply = statusFailedMessage
		}

	case "/debug":
		res, _ := b.watcher.TriggerNow(ctx)
		probe := uuid.NewString()[:8]
		status := ""
		snippet := res.Snippet
		if res.OK() {
			status = string(res.Status)
		}
		if res.Kind == watch.KindError {
			snippet = res.Err.Error()
		}
		slog.Info("debug probe", "probe", probe, "kind", res.Kind, "chat_id", chatID)
		reply = DebugMessage(status, b.url, probe, snippet)

	default:
		// Unknown commands are ignored, like any other chatter.
		return
	}

	sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := b.client.Send(sctx, chatID, reply); err != nil {
		slog.Warn("reply failed", "chat_id", chatID, "error", err)
	}
}

// command extracts the leading bot command from message text. The
// @BotName suffix used in group chats is stripped.
func command(text string) string {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	cmd := fields[0]
	if i := strings.Index(cmd, "@"); i != -1 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd)
}
