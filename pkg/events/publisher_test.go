package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specforge/specforge/pkg/models"
)

type fakePubSub struct {
	mu       sync.Mutex
	payloads map[string][][]byte
	err      error
}

func newFakePubSub() *fakePubSub {
	return &fakePubSub{payloads: make(map[string][][]byte)}
}

func (f *fakePubSub) Publish(_ context.Context, channel string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.payloads[channel] = append(f.payloads[channel], payload)
	return nil
}

func TestChannelForIsTenantScoped(t *testing.T) {
	a := ChannelFor("tenant-a", "p1")
	b := ChannelFor("tenant-b", "p1")
	assert.NotEqual(t, a, b)
	assert.Equal(t, "events:tenant:tenant-a:project:p1", a)
}

func TestPublishDeliversInOrder(t *testing.T) {
	ps := newFakePubSub()
	p := NewPublisher(ps, slog.Default())

	p.Publish(context.Background(), "t1", "p1", models.NewStartEvent("wf-1"))
	p.Publish(context.Background(), "t1", "p1", models.NewStepStartEvent("wf-1", models.StageAnalyst))
	p.Publish(context.Background(), "t1", "p1", models.NewCompleteEvent("wf-1", map[string]any{"documents": 4}))

	frames := ps.payloads[ChannelFor("t1", "p1")]
	require.Len(t, frames, 3)
	assert.Contains(t, string(frames[0]), `"type":"start"`)
	assert.Contains(t, string(frames[2]), `"type":"complete"`)
	// Stage results ride in the shared envelope's payload field, like
	// every other event type.
	assert.Contains(t, string(frames[2]), `"payload":{"documents":4}`)
}

func TestPublishSwallowsTransportErrors(t *testing.T) {
	ps := newFakePubSub()
	ps.err = errors.New("connection refused")
	p := NewPublisher(ps, slog.Default())

	// Streaming is best-effort; a dead pub/sub must not panic or block.
	p.Publish(context.Background(), "t1", "p1", models.NewStartEvent("wf-1"))
}

func TestPublishReleasesLockOnTerminalEvent(t *testing.T) {
	ps := newFakePubSub()
	p := NewPublisher(ps, slog.Default())

	p.Publish(context.Background(), "t1", "p1", models.NewStartEvent("wf-1"))
	p.Publish(context.Background(), "t1", "p1", models.NewErrorEvent("wf-2", "boom"))

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Contains(t, p.locks, "wf-1", "live workflows keep their ordering lock")
	assert.NotContains(t, p.locks, "wf-2", "terminal events drop the lock")
}
