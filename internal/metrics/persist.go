package metrics

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	. "github.com/roelfdiedericks/wabot/internal/logging"
	"github.com/roelfdiedericks/wabot/internal/paths"
)

const (
	saveInterval  = 5 * time.Minute
	dbOpenOptions = "?_busy_timeout=5000"

	// DBFileName is the metrics database inside the data directory
	DBFileName = "metrics.db"
)

const schemaSQL = `CREATE TABLE IF NOT EXISTS metrics (
	path       TEXT NOT NULL,
	type       TEXT NOT NULL,
	data       BLOB NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (path, type)
)`

type persistedTiming struct {
	Count int64         `json:"count"`
	Total time.Duration `json:"total"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Last  time.Duration `json:"last"`
}

type persistedOutcome struct {
	Success        int64            `json:"success"`
	Failures       int64            `json:"failures"`
	FailureReasons map[string]int64 `json:"failure_reasons,omitempty"`
}

// EnablePersistence opens dbPath, restores saved metrics and saves every
// few minutes until Close.
func (m *MetricsManager) EnablePersistence(dbPath string) error {
	if err := paths.EnsureParentDir(dbPath); err != nil {
		return fmt.Errorf("metrics: create directory: %w", err)
	}
	db, err := sql.Open("sqlite3", dbPath+dbOpenOptions)
	if err != nil {
		return fmt.Errorf("metrics: open database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return fmt.Errorf("metrics: create schema: %w", err)
	}

	m.db = db
	loaded, err := m.load()
	if err != nil {
		L_warn("metrics: failed to load persisted data", "error", err)
	} else if loaded > 0 {
		L_info("metrics: loaded persisted data", "count", loaded)
	}

	m.stopSave = make(chan struct{})
	go m.saveLoop(m.stopSave)
	return nil
}

func (m *MetricsManager) saveLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(saveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := m.Save(); err != nil {
				L_warn("metrics: periodic save failed", "error", err)
			}
		case <-stop:
			return
		}
	}
}

// Close stops the save loop, saves once more and closes the database.
// Safe to call when persistence was never enabled.
func (m *MetricsManager) Close() error {
	if m.db == nil {
		return nil
	}
	if m.stopSave != nil {
		close(m.stopSave)
		m.stopSave = nil
	}
	if err := m.Save(); err != nil {
		L_warn("metrics: final save failed", "error", err)
	}
	err := m.db.Close()
	m.db = nil
	return err
}

// Save writes all metrics in one transaction.
func (m *MetricsManager) Save() error {
	if m.db == nil {
		return nil
	}

	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`INSERT INTO metrics (path, type, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path, type) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().Unix()

	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := saveMapEntries(stmt, now, m.timings, TypeTiming, func(t *TimingMetric) any {
		t.mu.RLock()
		defer t.mu.RUnlock()
		return persistedTiming{Count: t.Count, Total: t.Total, Min: t.Min, Max: t.Max, Last: t.Last}
	}); err != nil {
		return err
	}
	if err := saveMapEntries(stmt, now, m.counters, TypeCounter, func(c *CounterMetric) any {
		c.mu.RLock()
		defer c.mu.RUnlock()
		return c.Value
	}); err != nil {
		return err
	}
	if err := saveMapEntries(stmt, now, m.successFail, TypeSuccessFail, func(sf *SuccessFailMetric) any {
		sf.mu.RLock()
		defer sf.mu.RUnlock()
		return persistedOutcome{Success: sf.Success, Failures: sf.Failures, FailureReasons: sf.FailureReasons}
	}); err != nil {
		return err
	}

	return tx.Commit()
}

// saveMapEntries serializes all entries in a metric map and upserts them.
func saveMapEntries[T any](stmt *sql.Stmt, now int64, metrics map[string]*T, metricType MetricType, view func(*T) any) error {
	for path, metric := range metrics {
		data, err := json.Marshal(view(metric))
		if err != nil {
			L_warn("metrics: failed to marshal metric", "path", path, "type", metricType, "error", err)
			continue
		}
		if _, err := stmt.Exec(path, string(metricType), data, now); err != nil {
			return err
		}
	}
	return nil
}

// load restores persisted metrics into memory. Percentile samples are not
// persisted and start empty.
func (m *MetricsManager) load() (int, error) {
	rows, err := m.db.Query("SELECT path, type, data FROM metrics")
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for rows.Next() {
		var path, metricType string
		var data []byte
		if err := rows.Scan(&path, &metricType, &data); err != nil {
			L_warn("metrics: failed to scan row", "error", err)
			continue
		}

		var uerr error
		switch MetricType(metricType) {
		case TypeTiming:
			var p persistedTiming
			if uerr = json.Unmarshal(data, &p); uerr == nil {
				m.timings[path] = &TimingMetric{Count: p.Count, Total: p.Total, Min: p.Min, Max: p.Max, Last: p.Last}
			}
		case TypeCounter:
			var v int64
			if uerr = json.Unmarshal(data, &v); uerr == nil {
				m.counters[path] = &CounterMetric{Value: v}
			}
		case TypeSuccessFail:
			var p persistedOutcome
			if uerr = json.Unmarshal(data, &p); uerr == nil {
				if p.FailureReasons == nil {
					p.FailureReasons = make(map[string]int64)
				}
				m.successFail[path] = &SuccessFailMetric{Success: p.Success, Failures: p.Failures, FailureReasons: p.FailureReasons}
			}
		default:
			continue
		}
		if uerr != nil {
			L_warn("metrics: failed to decode row", "path", path, "type", metricType, "error", uerr)
			continue
		}
		count++
	}
	return count, rows.Err()
}
