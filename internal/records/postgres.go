package records

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/yeezy-com/stride-track-explore/internal/db"
)

type PostgresStore struct {
	db db.Querier
}

func NewPostgresStore(q db.Querier) *PostgresStore {
	return &PostgresStore{db: q}
}

func (s *PostgresStore) Append(ctx context.Context, record RunRecord) error {
	if s.db == nil {
		return ErrUnavailable
	}
	if err := validate(record); err != nil {
		return err
	}
	route, err := json.Marshal(record.Route)
	if err != nil {
		return fmt.Errorf("records: encode route: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO run_records (id, runner_id, course_id, course_name, started_at, duration_sec, pace, distance_km, calories,
		                         avg_heart_rate, max_heart_rate, vitals_simulated, weather, temperature, notes, route)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, record.ID, record.RunnerID, record.CourseID, record.CourseName, record.StartedAt, record.DurationSec, record.Pace,
		record.DistanceKm, record.Calories, record.AverageHeartRate, record.MaxHeartRate, record.VitalsSimulated,
		record.Weather, record.Temperature, record.Notes, route)
	if err != nil {
		return fmt.Errorf("records: insert: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, runnerID string, limit int) ([]RunRecord, error) {
	if s.db == nil {
		return nil, ErrUnavailable
	}
	// LIMIT NULL is "no limit" in Postgres.
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, runner_id, course_id, course_name, started_at, duration_sec, pace, distance_km, calories,
		       avg_heart_rate, max_heart_rate, vitals_simulated, weather, temperature, notes, route, created_at
		FROM run_records WHERE runner_id=$1
		ORDER BY created_at DESC
		LIMIT $2
	`, runnerID, lim)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []RunRecord
	for rows.Next() {
		var r RunRecord
		var route []byte
		if err := rows.Scan(&r.ID, &r.RunnerID, &r.CourseID, &r.CourseName, &r.StartedAt, &r.DurationSec, &r.Pace,
			&r.DistanceKm, &r.Calories, &r.AverageHeartRate, &r.MaxHeartRate, &r.VitalsSimulated,
			&r.Weather, &r.Temperature, &r.Notes, &route, &r.CreatedAt); err != nil {
			return nil, err
		}
		if len(route) > 0 {
			if err := json.Unmarshal(route, &r.Route); err != nil {
				return nil, fmt.Errorf("records: decode route: %w", err)
			}
		}
		r.Duration = FormatDuration(r.DurationSec)
		list = append(list, r)
	}
	return list, rows.Err()
}
