package database

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"

	// доля занятых соединений, после которой health пишет warning
	highUsageRatio = 0.9
)

type PoolStats struct {
	MaxOpenConns int           `json:"max_open_connections"`
	OpenConns    int           `json:"open_connections"`
	InUse        int           `json:"in_use"`
	Idle         int           `json:"idle"`
	WaitCount    int64         `json:"wait_count"`
	WaitDuration time.Duration `json:"wait_duration"`
}

// Usage is the share of the pool limit currently checked out; 0 without a limit
func (s PoolStats) Usage() float64 {
	if s.MaxOpenConns <= 0 {
		return 0
	}
	return float64(s.InUse) / float64(s.MaxOpenConns)
}

type HealthCheck struct {
	Status       string        `json:"status"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
	Stats        PoolStats     `json:"stats"`
}

func (db *DB) PoolStats() PoolStats {
	stats := db.Stats()
	return PoolStats{
		MaxOpenConns: stats.MaxOpenConnections,
		OpenConns:    stats.OpenConnections,
		InUse:        stats.InUse,
		Idle:         stats.Idle,
		WaitCount:    stats.WaitCount,
		WaitDuration: stats.WaitDuration,
	}
}

// RegisterMetrics exposes the sql.DB pool counters on /metrics
func (db *DB) RegisterMetrics(dbName string) error {
	return prometheus.Register(collectors.NewDBStatsCollector(db.DB, dbName))
}

// HealthCheck pings the database; booking writes are impossible without it
func (db *DB) HealthCheck(ctx context.Context) HealthCheck {
	start := time.Now()

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	hc := HealthCheck{Status: StatusHealthy}
	if err := db.PingContext(pingCtx); err != nil {
		hc.Status = StatusUnhealthy
		hc.Error = err.Error()
		slog.Error("Database health check failed", "error", err)
	}
	hc.ResponseTime = time.Since(start)
	hc.Stats = db.PoolStats()

	if hc.Stats.Usage() > highUsageRatio {
		slog.Warn("Database pool nearly exhausted",
			"in_use", hc.Stats.InUse, "max_open", hc.Stats.MaxOpenConns)
	}

	return hc
}
