package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Actions recorded for an operation
const (
	ActionDelete  = "DELETE"
	ActionMove    = "MOVE"
	ActionCleanup = "CLEANUP"
	ActionPreview = "PREVIEW"
	ActionReject  = "REJECT"
	ActionSkip    = "SKIP"
	ActionError   = "ERROR"
)

// OperationDB manages the SQLite database for guarded operation history
type OperationDB struct {
	db *sql.DB
}

// Operation is one audited event. Every row written for a single guarded
// request shares OperationID.
type Operation struct {
	ID           int64     `json:"id"`
	OperationID  string    `json:"operation_id"`
	Timestamp    time.Time `json:"timestamp"`
	Action       string    `json:"action"`
	Operation    string    `json:"operation"` // delete_file, delete_directory, move, organize, cleanup
	Path         string    `json:"path"`
	Destination  string    `json:"destination,omitempty"`
	ObjectType   string    `json:"object_type"`
	Size         int64     `json:"size"`
	Reason       string    `json:"reason,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// Open creates a new database connection and initializes schema
func Open(dbPath string) (*OperationDB, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	// _loc=auto enables automatic DATETIME parsing
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_loc=auto")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	// Executing a query creates the file if it doesn't exist
	if _, err = db.Exec("SELECT 1"); err != nil {
		return nil, fmt.Errorf("failed to initialize database (check permissions on %s): %w", dbPath, err)
	}

	// Enable WAL mode for better concurrency (multiple readers, one writer)
	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err = db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	odb := &OperationDB{db: db}
	if err = odb.initSchema(); err != nil {
		return nil, err
	}

	return odb, nil
}

// initSchema creates tables and indexes if they don't exist
func (d *OperationDB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS operations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		operation_id TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		action TEXT NOT NULL,
		operation TEXT NOT NULL,
		path TEXT NOT NULL,
		destination TEXT,
		object_type TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		reason TEXT,
		detail TEXT,
		error_message TEXT,

		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_operation_id ON operations(operation_id);
	CREATE INDEX IF NOT EXISTS idx_timestamp ON operations(timestamp);
	CREATE INDEX IF NOT EXISTS idx_action ON operations(action);
	CREATE INDEX IF NOT EXISTS idx_path ON operations(path);
	CREATE INDEX IF NOT EXISTS idx_reason ON operations(reason);

	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := d.db.Exec(schema)
	return err
}

// RecordOperation inserts one audited event. A zero Timestamp is set to
// the current time.
func (d *OperationDB) RecordOperation(ctx context.Context, op Operation) error {
	if op.Timestamp.IsZero() {
		op.Timestamp = time.Now()
	}

	query := `
	INSERT INTO operations (
		operation_id, timestamp, action, operation, path, destination,
		object_type, size, reason, detail, error_message
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := d.db.ExecContext(ctx, query,
		op.OperationID,
		op.Timestamp,
		op.Action,
		op.Operation,
		op.Path,
		op.Destination,
		op.ObjectType,
		op.Size,
		op.Reason,
		op.Detail,
		op.ErrorMessage,
	)
	return err
}

// Ping verifies the database is reachable
func (d *OperationDB) Ping() error {
	return d.db.Ping()
}

// Close closes the database connection
func (d *OperationDB) Close() error {
	return d.db.Close()
}

// Vacuum optimizes the database (run periodically)
func (d *OperationDB) Vacuum() error {
	_, err := d.db.Exec("VACUUM")
	return err
}

// DatabaseStats describes the audit database itself
type DatabaseStats struct {
	TotalRecords int64     `json:"total_records"`
	SizeBytes    int64     `json:"database_size_bytes"`
	OldestRecord time.Time `json:"oldest_record,omitempty"`
	NewestRecord time.Time `json:"newest_record,omitempty"`
}

// GetDatabaseStats returns database statistics
func (d *OperationDB) GetDatabaseStats() (*DatabaseStats, error) {
	stats := &DatabaseStats{}

	if err := d.db.QueryRow("SELECT COUNT(*) FROM operations").Scan(&stats.TotalRecords); err != nil {
		return nil, err
	}

	var pageCount, pageSize int64
	if err := d.db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, err
	}
	if err := d.db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, err
	}
	stats.SizeBytes = pageCount * pageSize

	if stats.TotalRecords == 0 {
		return stats, nil
	}

	// MIN/MAX lose the column type, so read the boundary rows directly
	if err := d.db.QueryRow("SELECT timestamp FROM operations ORDER BY timestamp ASC LIMIT 1").Scan(&stats.OldestRecord); err != nil {
		return nil, err
	}
	if err := d.db.QueryRow("SELECT timestamp FROM operations ORDER BY timestamp DESC LIMIT 1").Scan(&stats.NewestRecord); err != nil {
		return nil, err
	}

	return stats, nil
}
