package devtools

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"github.com/reflux-go/reflux/internal/canonical"
)

//go:embed schema.sql
var schemaSQL string

// Recorder is a Sink persisting snapshot history to SQLite.
//
// Snapshots are encoded canonically so histories diff cleanly across
// runs. The database is configured with WAL mode for concurrent reads, a
// single writer connection and a busy timeout for lock contention.
type Recorder struct {
	db  *sql.DB
	log *slog.Logger
}

// OpenRecorder creates or opens a recorder database at the given path.
// Use ":memory:" for an ephemeral recorder. Idempotent.
func OpenRecorder(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recorder database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to recorder database: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY errors.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply recorder schema: %w", err)
	}

	return &Recorder{db: db, log: slog.Default()}, nil
}

// Connect implements Sink: it records the connection row.
func (r *Recorder) Connect(modelID, label string) error {
	_, err := r.db.Exec(
		"INSERT INTO connections (model_id, label) VALUES (?, ?)",
		modelID, label)
	if err != nil {
		return fmt.Errorf("record connection: %w", err)
	}
	return nil
}

// Send implements Sink: it appends one snapshot row. Failures are logged;
// the sink contract is fire and forget.
func (r *Recorder) Send(eventType string, snapshot map[string]any, modelID string) {
	data, err := canonical.Marshal(snapshot)
	if err != nil {
		r.log.Warn("recorder: snapshot not encodable", "model", modelID, "event", eventType, "error", err)
		return
	}
	_, err = r.db.Exec(
		"INSERT INTO snapshots (model_id, event_type, snapshot) VALUES (?, ?, ?)",
		modelID, eventType, string(data))
	if err != nil {
		r.log.Warn("recorder: snapshot not persisted", "model", modelID, "event", eventType, "error", err)
	}
}

// Record is one persisted snapshot.
type Record struct {
	Seq       int64
	ModelID   string
	EventType string
	Snapshot  map[string]any
}

// History returns the recorded snapshots for a model in sequence order.
func (r *Recorder) History(modelID string) ([]Record, error) {
	rows, err := r.db.Query(
		"SELECT seq, model_id, event_type, snapshot FROM snapshots WHERE model_id = ? ORDER BY seq",
		modelID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var raw string
		if err := rows.Scan(&rec.Seq, &rec.ModelID, &rec.EventType, &raw); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &rec.Snapshot); err != nil {
			return nil, fmt.Errorf("decode snapshot %d: %w", rec.Seq, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return records, nil
}

// Close closes the database connection.
func (r *Recorder) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}
