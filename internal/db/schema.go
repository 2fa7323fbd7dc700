package db

import (
	"context"
	"errors"
	"fmt"
)

// schema creates every table the services query. Statements are idempotent
// so EnsureSchema can run on each boot.
var schema = []struct {
	name string
	sql  string
}{
	{"postgis", `CREATE EXTENSION IF NOT EXISTS postgis`},
	{"runners", `
		CREATE TABLE IF NOT EXISTS runners (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`},
	{"refresh_tokens", `
		CREATE TABLE IF NOT EXISTS refresh_tokens (
			id TEXT PRIMARY KEY,
			runner_id TEXT NOT NULL REFERENCES runners(id) ON DELETE CASCADE,
			token TEXT NOT NULL UNIQUE,
			expires_at TIMESTAMPTZ NOT NULL,
			revoked_at TIMESTAMPTZ
		)`},
	{"courses", `
		CREATE TABLE IF NOT EXISTS courses (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			location TEXT NOT NULL DEFAULT '',
			difficulty TEXT NOT NULL DEFAULT '',
			target_distance_km DOUBLE PRECISION NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			tags TEXT[] NOT NULL DEFAULT '{}',
			route GEOGRAPHY(LINESTRING, 4326) NOT NULL,
			created_by TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`},
	{"courses_difficulty_idx", `CREATE INDEX IF NOT EXISTS courses_difficulty_idx ON courses (difficulty, created_at DESC)`},
	{"run_records", `
		CREATE TABLE IF NOT EXISTS run_records (
			id TEXT PRIMARY KEY,
			runner_id TEXT NOT NULL,
			course_id TEXT NOT NULL,
			course_name TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMPTZ NOT NULL,
			duration_sec BIGINT NOT NULL,
			pace TEXT NOT NULL,
			distance_km DOUBLE PRECISION NOT NULL,
			calories INTEGER NOT NULL,
			avg_heart_rate INTEGER,
			max_heart_rate INTEGER,
			vitals_simulated BOOLEAN NOT NULL DEFAULT false,
			weather TEXT NOT NULL DEFAULT '',
			temperature TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			route JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`},
	{"run_records_runner_idx", `CREATE INDEX IF NOT EXISTS run_records_runner_idx ON run_records (runner_id, created_at DESC)`},
}

var ErrNoDatabase = errors.New("db: no database configured")

// EnsureSchema applies the schema statements in order and stops at the first failure.
func EnsureSchema(ctx context.Context, q Querier) error {
	if q == nil {
		return ErrNoDatabase
	}
	for _, stmt := range schema {
		if _, err := q.Exec(ctx, stmt.sql); err != nil {
			return fmt.Errorf("db: ensure %s: %w", stmt.name, err)
		}
	}
	return nil
}
