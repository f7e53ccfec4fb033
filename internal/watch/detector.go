package watch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kojimamizuki0512-dot/kaikatsu-darts-tg-koyeb/internal/metrics"
)

// SubscriberSource lists the chats that opted into notifications.
type SubscriberSource interface {
	List(ctx context.Context) ([]int64, error)
}

// Sink delivers one notification to one recipient.
type Sink interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// StateStore persists the last notified status across restarts. The
// second return of LastStatus reports whether a value exists.
type StateStore interface {
	LastStatus(ctx context.Context) (string, bool, error)
	SaveLastStatus(ctx context.Context, status string) error
}

// Outcome classifies what Process did with one observation.
type Outcome int

const (
	// OutcomeSkipped means the observation was an error or not-found
	// and the last known status was left untouched.
	OutcomeSkipped Outcome = iota
	// OutcomeUnchanged means the status matched the last notified one.
	OutcomeUnchanged
	// OutcomeBaseline means the first status was recorded silently.
	OutcomeBaseline
	// OutcomeChanged means the status changed and subscribers were
	// notified.
	OutcomeChanged
)

// String returns a short lowercase name for logs.
func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeBaseline:
		return "baseline"
	case OutcomeChanged:
		return "changed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// DetectorConfig holds the collaborators of a Detector.
type DetectorConfig struct {
	State StateStore
	Subs  SubscriberSource
	Sink  Sink
	// Format renders the notification text for a new status.
	Format func(status Status, at time.Time) string
	// SendTimeout bounds each per-recipient delivery. Defaults to 10s.
	SendTimeout time.Duration
}

// Detector owns the last notified status. Each successful observation
// is compared against it; on change the new status is committed and a
// notification fans out to every subscriber. Failed observations never
// touch the state, so the last known status survives outages.
type Detector struct {
	state       StateStore
	subs        SubscriberSource
	sink        Sink
	format      func(Status, time.Time) string
	sendTimeout time.Duration

	mu   sync.Mutex
	last *Status
}

// NewDetector creates a detector with no baseline yet.
func NewDetector(cfg DetectorConfig) *Detector {
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Detector{
		state:       cfg.State,
		subs:        cfg.Subs,
		sink:        cfg.Sink,
		format:      cfg.Format,
		sendTimeout: timeout,
	}
}

// Restore loads the persisted status so a restart continues from the
// last notified value instead of re-running the silent baseline.
func (d *Detector) Restore(ctx context.Context) error {
	s, ok, err := d.state.LastStatus(ctx)
	if err != nil {
		return fmt.Errorf("load last status: %w", err)
	}
	if !ok {
		return nil
	}
	st := Status(s)
	d.mu.Lock()
	d.last = &st
	d.mu.Unlock()
	slog.Info("restored last known status", "status", st)
	return nil
}

// Last returns the last notified status, if there is one.
func (d *Detector) Last() (Status, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == nil {
		return "", false
	}
	return *d.last, true
}

// Process applies one observation. Errors and not-found results are
// logged and skipped. The first successful status becomes the baseline
// without notifying anyone; afterwards a differing status is committed
// and fanned out. Commit and fan-out are not transactional: once the
// comparison decides to notify, the new status stays committed even if
// every delivery fails, so a flapping page cannot notify twice for the
// same transition.
func (d *Detector) Process(ctx context.Context, res Result) Outcome {
	switch res.Kind {
	case KindError:
		slog.Warn("observation failed, keeping last known status", "error", res.Err)
		return OutcomeSkipped
	case KindNotFound:
		slog.Warn("no status token found on page", "snippet_len", len([]rune(res.Snippet)))
		return OutcomeSkipped
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.last != nil && *d.last == res.Status {
		slog.Debug("status unchanged", "status", res.Status)
		return OutcomeUnchanged
	}

	prev := d.last
	st := res.Status
	d.last = &st
	if err := d.state.SaveLastStatus(ctx, string(st)); err != nil {
		// The in-memory state has already moved forward; a restart
		// before the next successful save re-baselines silently.
		slog.Error("persist last status", "error", err)
	}

	if prev == nil {
		slog.Info("baseline status recorded", "status", st)
		return OutcomeBaseline
	}

	metrics.StatusChanged()
	slog.Info("status changed", "from", *prev, "to", st)
	d.notify(ctx, st, res.ObservedAt)
	return OutcomeChanged
}

// notify fans the new status out to every subscriber. Failures are per
// recipient: one dead chat never blocks the rest.
func (d *Detector) notify(ctx context.Context, st Status, at time.Time) {
	ids, err := d.subs.List(ctx)
	if err != nil {
		slog.Error("list subscribers", "error", err)
		return
	}
	metrics.SetSubscribers(len(ids))
	if len(ids) == 0 {
		slog.Info("status changed with no subscribers to notify")
		return
	}

	text := d.format(st, at)
	sent := 0
	for _, id := range ids {
		sctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
		err := d.sink.Send(sctx, id, text)
		cancel()
		if err != nil {
			slog.Warn("notification failed", "chat_id", id, "error", err)
			metrics.Notification("failed")
			continue
		}
		sent++
		metrics.Notification("sent")
	}
	slog.Info("notifications delivered", "sent", sent, "subscribers", len(ids))
}
