package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/specforge/specforge/pkg/models"
)

// Subscriber is the slice of the KV store the hub needs.
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// Hub fans project events out to SSE clients. Each subscription opens
// its own pub/sub connection; there is no replay of missed events, and
// a slow client drops events rather than stalling the stream.
type Hub struct {
	kv     Subscriber
	logger *slog.Logger
}

// NewHub builds a hub over the KV store's pub/sub.
func NewHub(kv Subscriber, logger *slog.Logger) *Hub {
	return &Hub{kv: kv, logger: logger.With("component", "event_hub")}
}

// Subscribe opens an event stream for one project. The returned cancel
// must be called when the client disconnects; the channel closes when
// the subscription ends.
func (h *Hub) Subscribe(ctx context.Context, tenantID, projectID string) (<-chan models.WorkflowEvent, func(), error) {
	channel := ChannelFor(tenantID, projectID)
	ps := h.kv.Subscribe(ctx, channel)

	// Fail fast if the subscription could not be established.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, err
	}

	out := make(chan models.WorkflowEvent, 64)
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			var ev models.WorkflowEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				h.logger.Warn("Dropping undecodable event", "channel", channel, "error", err)
				continue
			}
			select {
			case out <- ev:
			default:
				h.logger.Warn("Dropping event for slow subscriber",
					"channel", channel,
					"type", ev.Type,
					"workflow_id", ev.WorkflowID)
			}
		}
	}()

	cancel := func() { _ = ps.Close() }
	return out, cancel, nil
}
