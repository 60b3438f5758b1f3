// Package archive persists every emitted chain event to SQLite so asset
// history survives node restarts and can be queried without replaying blocks.
package archive

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/bazaarchain/bazaar/events"
)

const schema = `
CREATE TABLE IF NOT EXISTS chain_events (
	id         TEXT PRIMARY KEY,
	event_type TEXT NOT NULL,
	asset_id   INTEGER,
	data       TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chain_events_asset ON chain_events (asset_id, created_at);
CREATE INDEX IF NOT EXISTS idx_chain_events_type ON chain_events (event_type, created_at);
`

// Record is one archived event row.
type Record struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	AssetID   *uint64         `json:"asset_id,omitempty"`
	Data      json.RawMessage `json:"data"`
	CreatedAt int64           `json:"created_at"` // unix millis
}

// Archive writes chain events into a SQLite database.
type Archive struct {
	sqlDB *sql.DB
}

// Open opens (or creates) the archive at path and applies the schema.
func Open(path string) (*Archive, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("archive path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open archive db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping archive db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply archive schema: %w", err)
	}
	return &Archive{sqlDB: sqlDB}, nil
}

// Attach subscribes the archive to every event the emitter delivers.
func (a *Archive) Attach(emitter *events.Emitter) {
	emitter.SubscribeAll(a.record)
}

// Close closes the SQLite handle.
func (a *Archive) Close() error {
	if a == nil || a.sqlDB == nil {
		return nil
	}
	return a.sqlDB.Close()
}

func (a *Archive) record(ev events.Event) {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		slog.Error("archive marshal event", "type", ev.Type, "err", err)
		return
	}

	var assetID any
	if id, ok := ev.Data["asset_id"].(uint64); ok {
		assetID = int64(id)
	}

	_, err = a.sqlDB.Exec(
		`INSERT INTO chain_events (id, event_type, asset_id, data, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), string(ev.Type), assetID, string(data), time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		slog.Error("archive insert event", "type", ev.Type, "err", err)
	}
}

// AssetHistory returns the archived events for one asset, oldest first.
func (a *Archive) AssetHistory(assetID uint64) ([]Record, error) {
	rows, err := a.sqlDB.Query(
		`SELECT id, event_type, asset_id, data, created_at FROM chain_events
		 WHERE asset_id = ? ORDER BY created_at ASC, rowid ASC`,
		int64(assetID),
	)
	if err != nil {
		return nil, fmt.Errorf("query asset history: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// RecentEvents returns up to limit most recent events of the given type,
// newest first. An empty eventType matches all types.
func (a *Archive) RecentEvents(eventType string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	var (
		rows *sql.Rows
		err  error
	)
	if eventType == "" {
		rows, err = a.sqlDB.Query(
			`SELECT id, event_type, asset_id, data, created_at FROM chain_events
			 ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	} else {
		rows, err = a.sqlDB.Query(
			`SELECT id, event_type, asset_id, data, created_at FROM chain_events
			 WHERE event_type = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`, eventType, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		var (
			rec     Record
			assetID sql.NullInt64
			data    string
		)
		if err := rows.Scan(&rec.ID, &rec.EventType, &assetID, &data, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		if assetID.Valid {
			id := uint64(assetID.Int64)
			rec.AssetID = &id
		}
		rec.Data = json.RawMessage(data)
		out = append(out, rec)
	}
	return out, rows.Err()
}
