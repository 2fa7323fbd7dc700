package records

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrUnavailable   = errors.New("records: store unavailable")
	ErrUnknownStore  = errors.New("records: unknown store kind")
	ErrInvalidRecord = errors.New("records: invalid record")
)

// Store is an append-only list of run records; newest first on read.
type Store interface {
	Append(ctx context.Context, record RunRecord) error
	// List returns up to limit records for runnerID, newest first. limit <= 0 returns all.
	List(ctx context.Context, runnerID string, limit int) ([]RunRecord, error)
}

func validate(record RunRecord) error {
	if record.ID == "" {
		return fmt.Errorf("%w: id required", ErrInvalidRecord)
	}
	if record.DistanceKm <= 0 {
		return fmt.Errorf("%w: distance must be positive", ErrInvalidRecord)
	}
	return nil
}

// Summarize aggregates totals and the mean of the per-run "m:ss" paces.
func Summarize(list []RunRecord) Stats {
	stats := Stats{TotalRuns: len(list), AveragePace: "--:--"}
	paceSeconds, paced := 0, 0
	for _, r := range list {
		stats.TotalDistanceKm += r.DistanceKm
		stats.TotalCalories += r.Calories
		if sec, ok := parsePace(r.Pace); ok {
			paceSeconds += sec
			paced++
		}
	}
	if paced > 0 {
		avg := (paceSeconds + paced/2) / paced
		stats.AveragePace = fmt.Sprintf("%d:%02d", avg/60, avg%60)
	}
	return stats
}

func parsePace(pace string) (int, bool) {
	min, sec, ok := strings.Cut(pace, ":")
	if !ok {
		return 0, false
	}
	m, err := strconv.Atoi(min)
	if err != nil || m < 0 {
		return 0, false
	}
	s, err := strconv.Atoi(sec)
	if err != nil || s < 0 || s >= 60 {
		return 0, false
	}
	return m*60 + s, true
}
