package tracking

import (
	"math"
	"time"

	"github.com/yeezy-com/stride-track-explore/internal/records"
)

// GeoSample is one location reading in WGS84 degrees.
type GeoSample struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	RecordedAt time.Time `json:"recorded_at"`
}

func (g GeoSample) validate() error {
	if math.IsNaN(g.Lat) || math.IsNaN(g.Lng) || g.Lat < -90 || g.Lat > 90 || g.Lng < -180 || g.Lng > 180 {
		return ErrInvalidSample
	}
	return nil
}

type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusPaused  Status = "paused"
	StatusStopped Status = "stopped"
)

type Conformance string

const (
	ConformanceUnknown   Conformance = "unknown"
	ConformanceOnTrack   Conformance = "on-track"
	ConformanceOffTrack  Conformance = "off-track"
	ConformanceCompleted Conformance = "completed"
)

// Snapshot is a read-only view of a session at one instant.
type Snapshot struct {
	SessionID        string        `json:"session_id"`
	RunnerID         string        `json:"runner_id"`
	Status           Status        `json:"status"`
	StartedAt        *time.Time    `json:"started_at,omitempty"`
	Elapsed          time.Duration `json:"-"`
	ElapsedSec       int64         `json:"elapsed_sec"`
	Duration         string        `json:"duration"`
	DistanceKm       float64       `json:"distance_km"`
	PaceMinPerKm     float64       `json:"pace_min_per_km"`
	PaceAvailable    bool          `json:"pace_available"`
	Pace             string        `json:"pace"`
	Calories         int           `json:"calories"`
	Conformance      Conformance   `json:"conformance"`
	CourseID         string        `json:"course_id,omitempty"`
	CourseName       string        `json:"course_name,omitempty"`
	TargetDistanceKm float64       `json:"target_distance_km,omitempty"`
	SampleCount      int           `json:"sample_count"`
	LastSample       *GeoSample    `json:"last_sample,omitempty"`
}

// RunConditions are supplied by the runner when stopping; none are measured here.
type RunConditions struct {
	Weather     string `json:"weather"`
	Temperature string `json:"temperature"`
	Notes       string `json:"notes"`
}

type EventType string

const (
	EventProgress    EventType = "progress"
	EventConformance EventType = "conformance"
	EventRecordSaved EventType = "record_saved"
	EventError       EventType = "error"
)

// Event is what a session reports to its Notifier. Conformance events carry
// From and To; record_saved carries Record; error carries Err.
type Event struct {
	Type      EventType          `json:"type"`
	SessionID string             `json:"session_id"`
	Snapshot  *Snapshot          `json:"snapshot,omitempty"`
	From      Conformance        `json:"from,omitempty"`
	To        Conformance        `json:"to,omitempty"`
	Record    *records.RunRecord `json:"record,omitempty"`
	Err       error              `json:"-"`
	Error     string             `json:"error,omitempty"`
	At        time.Time          `json:"at"`
}
