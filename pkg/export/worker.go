package export

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/specforge/specforge/pkg/repository"
)

// Worker drains the export queue and sweeps expired artifacts. Run it
// once per process; multiple instances stay safe because claims use
// row locks.
type Worker struct {
	service *Service

	pollInterval  time.Duration
	sweepInterval time.Duration
}

// NewWorker builds a worker around the service.
func NewWorker(service *Service) *Worker {
	return &Worker{
		service:       service,
		pollInterval:  2 * time.Second,
		sweepInterval: 10 * time.Minute,
	}
}

// Run processes exports until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	poll := time.NewTicker(w.pollInterval)
	defer poll.Stop()
	sweep := time.NewTicker(w.sweepInterval)
	defer sweep.Stop()

	w.service.logger.Info("Export worker started")
	for {
		select {
		case <-ctx.Done():
			w.service.logger.Info("Export worker stopped")
			return
		case <-poll.C:
			w.drain(ctx)
		case <-sweep.C:
			w.sweep(ctx)
		}
	}
}

// drain claims and generates pending exports until the queue is empty.
func (w *Worker) drain(ctx context.Context) {
	for {
		exp, err := w.service.exports.ClaimPending(ctx)
		if errors.Is(err, repository.ErrNotFound) {
			return
		}
		if err != nil {
			w.service.logger.Error("Failed to claim pending export", "error", err)
			return
		}
		if err := w.service.Generate(ctx, exp); err != nil {
			// Already recorded on the row; keep draining.
			continue
		}
	}
}

// sweep expires due exports and removes their artifacts.
func (w *Worker) sweep(ctx context.Context) {
	expired, err := w.service.exports.ExpireDue(ctx, time.Now().UTC())
	if err != nil {
		w.service.logger.Error("Failed to expire exports", "error", err)
		return
	}
	for _, exp := range expired {
		if exp.FilePath == "" {
			continue
		}
		if err := os.Remove(exp.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			w.service.logger.Warn("Failed to remove expired artifact",
				"export_id", exp.ID,
				"path", exp.FilePath,
				"error", err)
		}
	}
	if len(expired) > 0 {
		w.service.logger.Info("Expired exports swept", "count", len(expired))
	}
}
