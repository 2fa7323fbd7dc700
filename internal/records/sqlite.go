package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SchemaVersion is the latest run_records schema understood by Migrate.
const SchemaVersion = 1

// SQLiteStore is the single-node record store.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and migrates it.
func OpenSQLite(path string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("records: open sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases alive and serializes writers.
	conn.SetMaxOpenConns(1)
	if err := Migrate(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &SQLiteStore{db: conn}, nil
}

// Migrate ensures the SQLite schema exists and is upgraded to SchemaVersion.
func Migrate(conn *sql.DB) error {
	if conn == nil {
		return fmt.Errorf("migrate: db is nil")
	}
	if _, err := conn.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY);`); err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}

	var current int
	if err := conn.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations;`).Scan(&current); err != nil {
		return fmt.Errorf("migrate: read current version: %w", err)
	}
	if current >= SchemaVersion {
		return nil
	}

	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("migrate: begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS run_records (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			runner_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			payload TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("migrate: create run_records table: %w", err)
	}
	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_run_records_runner ON run_records(runner_id, seq);`); err != nil {
		return fmt.Errorf("migrate: create run_records index: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?);`, SchemaVersion); err != nil {
		return fmt.Errorf("migrate: record version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Append(ctx context.Context, record RunRecord) error {
	if s == nil || s.db == nil {
		return ErrUnavailable
	}
	if err := validate(record); err != nil {
		return err
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("records: encode: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO run_records (id, runner_id, created_at, payload) VALUES (?, ?, ?, ?)`,
		record.ID, record.RunnerID, record.CreatedAt.Format(time.RFC3339Nano), string(payload))
	if err != nil {
		return fmt.Errorf("records: insert: %w", err)
	}
	return nil
}

// List orders by insertion sequence: insertion order is recency.
func (s *SQLiteStore) List(ctx context.Context, runnerID string, limit int) ([]RunRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrUnavailable
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM run_records WHERE runner_id = ? ORDER BY seq DESC LIMIT ?`, runnerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []RunRecord
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var r RunRecord
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("records: decode: %w", err)
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
