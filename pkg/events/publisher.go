// Package events carries workflow events from the orchestrator to SSE
// subscribers through a tenant+project-scoped pub/sub channel.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/specforge/specforge/pkg/models"
)

// PubSub is the slice of the KV store the publisher needs.
type PubSub interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// ChannelFor builds the pub/sub channel for one project. The tenant id
// is part of the name so no cross-tenant subscription is expressible.
func ChannelFor(tenantID, projectID string) string {
	return fmt.Sprintf("events:tenant:%s:project:%s", tenantID, projectID)
}

// Publisher serializes event emission per correlation id: events for
// one workflow are published in emission order even when emitters run
// on different goroutines. Publish failures are logged, not returned —
// streaming is best-effort and never fails a workflow.
type Publisher struct {
	pubsub PubSub
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewPublisher builds a publisher over the KV store's pub/sub.
func NewPublisher(pubsub PubSub, logger *slog.Logger) *Publisher {
	return &Publisher{
		pubsub: pubsub,
		logger: logger.With("component", "event_publisher"),
		locks:  make(map[string]*sync.Mutex),
	}
}

// Publish emits one event on the project channel.
func (p *Publisher) Publish(ctx context.Context, tenantID, projectID string, ev models.WorkflowEvent) {
	lock := p.lockFor(ev.WorkflowID)
	lock.Lock()
	defer lock.Unlock()

	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("Failed to encode event", "type", ev.Type, "workflow_id", ev.WorkflowID, "error", err)
		return
	}
	if err := p.pubsub.Publish(ctx, ChannelFor(tenantID, projectID), payload); err != nil {
		p.logger.Warn("Failed to publish event",
			"type", ev.Type,
			"workflow_id", ev.WorkflowID,
			"channel", ChannelFor(tenantID, projectID),
			"error", err)
	}

	// Terminal events end the workflow's event sequence; drop its lock.
	if ev.Type == models.EventTypeComplete || ev.Type == models.EventTypeError {
		p.Release(ev.WorkflowID)
	}
}

// Release drops the per-workflow ordering lock once a workflow reaches
// a terminal event.
func (p *Publisher) Release(workflowID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.locks, workflowID)
}

func (p *Publisher) lockFor(workflowID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[workflowID]
	if !ok {
		l = &sync.Mutex{}
		p.locks[workflowID] = l
	}
	return l
}
