package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memState struct {
	mu      sync.Mutex
	status  string
	ok      bool
	saveErr error
	loadErr error
	saves   int
}

func (m *memState) LastStatus(ctx context.Context) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return "", false, m.loadErr
	}
	return m.status, m.ok, nil
}

func (m *memState) SaveLastStatus(ctx context.Context, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.status = status
	m.ok = true
	return nil
}

func (m *memState) saved() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, m.ok
}

type staticSubs struct {
	ids []int64
	err error
}

func (s *staticSubs) List(ctx context.Context) ([]int64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.ids, nil
}

type sentMessage struct {
	chatID int64
	text   string
}

type recordSink struct {
	mu      sync.Mutex
	sent    []sentMessage
	failFor map[int64]error
}

func (r *recordSink) Send(ctx context.Context, chatID int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failFor[chatID]; err != nil {
		return err
	}
	r.sent = append(r.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func (r *recordSink) messages() []sentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sentMessage, len(r.sent))
	copy(out, r.sent)
	return out
}

func newTestDetector(state *memState, subs *staticSubs, sink *recordSink) *Detector {
	return NewDetector(DetectorConfig{
		State: state,
		Subs:  subs,
		Sink:  sink,
		Format: func(st Status, at time.Time) string {
			return fmt.Sprintf("update: %s", st)
		},
	})
}

func TestDetector_Process(t *testing.T) {
	ctx := context.Background()

	t.Run("first status is a silent baseline", func(t *testing.T) {
		state := &memState{}
		sink := &recordSink{}
		d := newTestDetector(state, &staticSubs{ids: []int64{1}}, sink)

		outcome := d.Process(ctx, successResult("満席", "ダーツ 満席"))
		assert.Equal(t, OutcomeBaseline, outcome)
		assert.Empty(t, sink.messages())

		last, ok := d.Last()
		require.True(t, ok)
		assert.Equal(t, Status("満席"), last)

		saved, ok := state.saved()
		require.True(t, ok)
		assert.Equal(t, "満席", saved)
	})

	t.Run("unchanged status is suppressed", func(t *testing.T) {
		sink := &recordSink{}
		d := newTestDetector(&memState{}, &staticSubs{ids: []int64{1}}, sink)

		d.Process(ctx, successResult("満席", ""))
		outcome := d.Process(ctx, successResult("満席", ""))
		assert.Equal(t, OutcomeUnchanged, outcome)
		assert.Empty(t, sink.messages())
	})

	t.Run("changed status notifies every subscriber", func(t *testing.T) {
		state := &memState{}
		sink := &recordSink{}
		d := newTestDetector(state, &staticSubs{ids: []int64{1, 2}}, sink)

		d.Process(ctx, successResult("残1席", ""))
		outcome := d.Process(ctx, successResult("満席", ""))
		assert.Equal(t, OutcomeChanged, outcome)

		msgs := sink.messages()
		require.Len(t, msgs, 2)
		assert.Equal(t, int64(1), msgs[0].chatID)
		assert.Equal(t, int64(2), msgs[1].chatID)
		for _, m := range msgs {
			assert.Equal(t, "update: 満席", m.text)
		}

		saved, _ := state.saved()
		assert.Equal(t, "満席", saved)
	})

	t.Run("error keeps the last status", func(t *testing.T) {
		sink := &recordSink{}
		d := newTestDetector(&memState{}, &staticSubs{ids: []int64{1}}, sink)

		d.Process(ctx, successResult("満席", ""))
		outcome := d.Process(ctx, errorResult(errors.New("boom")))
		assert.Equal(t, OutcomeSkipped, outcome)

		last, ok := d.Last()
		require.True(t, ok)
		assert.Equal(t, Status("満席"), last)

		// The same status after the outage is still suppressed.
		outcome = d.Process(ctx, successResult("満席", ""))
		assert.Equal(t, OutcomeUnchanged, outcome)
		assert.Empty(t, sink.messages())
	})

	t.Run("not found keeps the last status", func(t *testing.T) {
		d := newTestDetector(&memState{}, &staticSubs{}, &recordSink{})

		d.Process(ctx, successResult("満席", ""))
		outcome := d.Process(ctx, notFoundResult("page text"))
		assert.Equal(t, OutcomeSkipped, outcome)

		last, ok := d.Last()
		require.True(t, ok)
		assert.Equal(t, Status("満席"), last)
	})

	t.Run("change across an outage notifies once", func(t *testing.T) {
		sink := &recordSink{}
		d := newTestDetector(&memState{}, &staticSubs{ids: []int64{7}}, sink)

		d.Process(ctx, successResult("残1席", ""))
		d.Process(ctx, errorResult(errors.New("down")))
		outcome := d.Process(ctx, successResult("満席", ""))
		assert.Equal(t, OutcomeChanged, outcome)
		assert.Len(t, sink.messages(), 1)
	})

	t.Run("one failing recipient does not stop the rest", func(t *testing.T) {
		sink := &recordSink{failFor: map[int64]error{2: errors.New("blocked")}}
		d := newTestDetector(&memState{}, &staticSubs{ids: []int64{1, 2, 3}}, sink)

		d.Process(ctx, successResult("残1席", ""))
		outcome := d.Process(ctx, successResult("満席", ""))
		assert.Equal(t, OutcomeChanged, outcome)

		msgs := sink.messages()
		require.Len(t, msgs, 2)
		assert.Equal(t, int64(1), msgs[0].chatID)
		assert.Equal(t, int64(3), msgs[1].chatID)
	})

	t.Run("save failure does not abort the commit", func(t *testing.T) {
		state := &memState{saveErr: errors.New("disk full")}
		sink := &recordSink{}
		d := newTestDetector(state, &staticSubs{ids: []int64{1}}, sink)

		outcome := d.Process(ctx, successResult("満席", ""))
		assert.Equal(t, OutcomeBaseline, outcome)

		last, ok := d.Last()
		require.True(t, ok)
		assert.Equal(t, Status("満席"), last)

		outcome = d.Process(ctx, successResult("空席", ""))
		assert.Equal(t, OutcomeChanged, outcome)
		assert.Len(t, sink.messages(), 1)
	})

	t.Run("subscriber listing failure still commits", func(t *testing.T) {
		sink := &recordSink{}
		d := newTestDetector(&memState{}, &staticSubs{err: errors.New("db closed")}, sink)

		d.Process(ctx, successResult("残1席", ""))
		outcome := d.Process(ctx, successResult("満席", ""))
		assert.Equal(t, OutcomeChanged, outcome)
		assert.Empty(t, sink.messages())

		last, _ := d.Last()
		assert.Equal(t, Status("満席"), last)
	})

	t.Run("change with no subscribers", func(t *testing.T) {
		sink := &recordSink{}
		d := newTestDetector(&memState{}, &staticSubs{ids: nil}, sink)

		d.Process(ctx, successResult("残1席", ""))
		outcome := d.Process(ctx, successResult("満席", ""))
		assert.Equal(t, OutcomeChanged, outcome)
		assert.Empty(t, sink.messages())
	})
}

func TestDetector_Restore(t *testing.T) {
	ctx := context.Background()

	t.Run("continues from the persisted status", func(t *testing.T) {
		state := &memState{status: "満席", ok: true}
		sink := &recordSink{}
		d := newTestDetector(state, &staticSubs{ids: []int64{1}}, sink)

		require.NoError(t, d.Restore(ctx))

		last, ok := d.Last()
		require.True(t, ok)
		assert.Equal(t, Status("満席"), last)

		// No silent re-baseline after a restart: the same status is
		// suppressed and a different one notifies.
		outcome := d.Process(ctx, successResult("満席", ""))
		assert.Equal(t, OutcomeUnchanged, outcome)

		outcome = d.Process(ctx, successResult("空席", ""))
		assert.Equal(t, OutcomeChanged, outcome)
		assert.Len(t, sink.messages(), 1)
	})

	t.Run("starts empty without persisted state", func(t *testing.T) {
		d := newTestDetector(&memState{}, &staticSubs{}, &recordSink{})

		require.NoError(t, d.Restore(ctx))
		_, ok := d.Last()
		assert.False(t, ok)
	})

	t.Run("load failure surfaces", func(t *testing.T) {
		state := &memState{loadErr: errors.New("corrupt")}
		d := newTestDetector(state, &staticSubs{}, &recordSink{})

		err := d.Restore(ctx)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "corrupt")
	})
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "skipped", OutcomeSkipped.String())
	assert.Equal(t, "unchanged", OutcomeUnchanged.String())
	assert.Equal(t, "baseline", OutcomeBaseline.String())
	assert.Equal(t, "changed", OutcomeChanged.String())
}
