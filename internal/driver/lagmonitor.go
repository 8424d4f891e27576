package driver

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ci-telemetry/snowdoc/internal/config"
	"github.com/ci-telemetry/snowdoc/internal/logger"
)

// ReplicationStatus is the subset of SHOW REPLICA STATUS this driver acts on.
type ReplicationStatus struct {
	SecondsBehindMaster sql.NullInt64
	IORunning           string
	SQLRunning          string
	LastError           string
}

// LagMonitor pauses the driver loop between batches when the configured
// replica is falling behind, since an incremental extractor is exactly the
// read-heavy, long-poll workload that gets pointed at a read replica.
type LagMonitor struct {
	db        *sql.DB
	enabled   bool
	threshold int
	interval  time.Duration
	logger    *logger.Logger
}

// NewLagMonitor creates a lag monitor bound to a replica connection.
// replicaDB may be nil, in which case the monitor is permanently disabled.
func NewLagMonitor(replicaDB *sql.DB, cfg config.SafetyConfig, log *logger.Logger) *LagMonitor {
	if log == nil {
		log = logger.NewDefault()
	}
	if replicaDB == nil {
		log.Info("replica lag monitoring disabled (no replica connection)")
		return &LagMonitor{logger: log}
	}

	threshold := cfg.LagThreshold
	if threshold <= 0 {
		threshold = 10
	}
	interval := time.Duration(cfg.CheckInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}

	log.Infof("replica lag monitoring enabled (threshold: %ds, interval: %s)", threshold, interval)
	return &LagMonitor{db: replicaDB, enabled: true, threshold: threshold, interval: interval, logger: log}
}

// IsEnabled reports whether this monitor guards a real replica connection.
func (lm *LagMonitor) IsEnabled() bool { return lm.enabled }

// status queries SHOW REPLICA STATUS, falling back to the pre-8.0.22
// SHOW SLAVE STATUS spelling.
func (lm *LagMonitor) status(ctx context.Context) (*ReplicationStatus, error) {
	rows, err := lm.db.QueryContext(ctx, "SHOW REPLICA STATUS")
	if err != nil {
		rows, err = lm.db.QueryContext(ctx, "SHOW SLAVE STATUS")
		if err != nil {
			return nil, fmt.Errorf("query replication status: %w", err)
		}
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, fmt.Errorf("replication not configured on replica server")
	}

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read replication status columns: %w", err)
	}
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan replication status: %w", err)
	}

	byName := make(map[string]any, len(columns))
	for i, col := range columns {
		v := values[i]
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		byName[col] = v
	}

	status := &ReplicationStatus{}
	if v, ok := byName["Seconds_Behind_Master"]; ok && v != nil {
		if n, ok := v.(int64); ok {
			status.SecondsBehindMaster = sql.NullInt64{Int64: n, Valid: true}
		}
	}
	status.IORunning = firstString(byName, "Slave_IO_Running", "Replica_IO_Running")
	status.SQLRunning = firstString(byName, "Slave_SQL_Running", "Replica_SQL_Running")
	if v, ok := byName["Last_Error"]; ok && v != nil {
		status.LastError, _ = v.(string)
	}
	return status, nil
}

func firstString(byName map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := byName[k]; ok {
			s, _ := v.(string)
			return s
		}
	}
	return ""
}

// checkLag reports whether lag is within threshold, the measured lag in
// seconds, and any error reaching the replica.
func (lm *LagMonitor) checkLag(ctx context.Context) (bool, int, error) {
	if !lm.enabled {
		return true, 0, nil
	}

	status, err := lm.status(ctx)
	if err != nil {
		lm.logger.Errorf("replica status check failed: %v", err)
		return false, -1, err
	}
	if status.IORunning != "Yes" || status.SQLRunning != "Yes" {
		if status.LastError != "" {
			lm.logger.Errorf("replication error: %s", status.LastError)
		}
		return false, -1, fmt.Errorf("replication is not running (IO: %s, SQL: %s)", status.IORunning, status.SQLRunning)
	}
	if !status.SecondsBehindMaster.Valid {
		return false, -1, fmt.Errorf("replication lag is NULL")
	}

	lag := int(status.SecondsBehindMaster.Int64)
	if lag > lm.threshold {
		lm.logger.Warnf("replica lag is high: %ds (threshold %ds)", lag, lm.threshold)
		return false, lag, nil
	}
	return true, lag, nil
}

// WaitForLag blocks until the replica's lag falls back under threshold,
// polling every interval. It returns immediately if monitoring is disabled,
// and returns an error when the replica cannot be checked at all or
// replication is not running — a broken replica is fatal, not something to
// wait out.
func (lm *LagMonitor) WaitForLag(ctx context.Context) error {
	if !lm.enabled {
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		ok, lag, err := lm.checkLag(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		lm.logger.Warnf("pausing batch processing for replica lag (%ds, threshold %ds)", lag, lm.threshold)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lm.interval):
		}
	}
}
