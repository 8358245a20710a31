package database

import (
	"context"
	"time"
)

// HealthStatus is the result of a database health check.
type HealthStatus struct {
	Connected  bool          `json:"connected"`
	Error      string        `json:"error,omitempty"`
	Latency    time.Duration `json:"latency"`
	OpenConns  int           `json:"open_connections"`
	InUseConns int           `json:"in_use_connections"`
	IdleConns  int           `json:"idle_connections"`
	WaitCount  int64         `json:"wait_count"`
}

// CheckHealth pings the database and reports pool statistics.
func (m *ConnectionManager) CheckHealth(ctx context.Context) HealthStatus {
	start := time.Now()
	if err := m.Ping(ctx); err != nil {
		return HealthStatus{Connected: false, Error: err.Error(), Latency: time.Since(start)}
	}

	stats := m.Stats()
	return HealthStatus{
		Connected:  true,
		Latency:    time.Since(start),
		OpenConns:  stats.OpenConnections,
		InUseConns: stats.InUse,
		IdleConns:  stats.Idle,
		WaitCount:  stats.WaitCount,
	}
}
