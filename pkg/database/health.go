package database

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"time"
)

// HealthStatus reports connectivity and pool statistics.
type HealthStatus struct {
	Reachable   bool          `json:"reachable"`
	Latency     time.Duration `json:"latency_ms"`
	OpenConns   int           `json:"open_conns"`
	InUseConns  int           `json:"in_use_conns"`
	IdleConns   int           `json:"idle_conns"`
	WaitedConns int64         `json:"waited_conns"`
}

// Health pings the database and collects pool statistics.
func Health(ctx context.Context, db *stdsql.DB) (HealthStatus, error) {
	start := time.Now()
	err := db.PingContext(ctx)
	stats := db.Stats()

	status := HealthStatus{
		Reachable:   err == nil,
		Latency:     time.Since(start),
		OpenConns:   stats.OpenConnections,
		InUseConns:  stats.InUse,
		IdleConns:   stats.Idle,
		WaitedConns: stats.WaitCount,
	}
	if err != nil {
		return status, fmt.Errorf("database ping failed: %w", err)
	}
	return status, nil
}
