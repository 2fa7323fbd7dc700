package records

import "time"

// FreeRunCourseID marks a record that was not tied to a catalog course.
const FreeRunCourseID = "free-run"

type RoutePoint struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	RecordedAt time.Time `json:"recorded_at"`
}

// RunRecord is the immutable summary of one finished run.
type RunRecord struct {
	ID          string    `json:"id"`
	RunnerID    string    `json:"runner_id"`
	CourseID    string    `json:"course_id"`
	CourseName  string    `json:"course_name"`
	StartedAt   time.Time `json:"started_at"`
	DurationSec int64     `json:"duration_sec"`
	Duration    string    `json:"duration"`
	DistanceKm  float64   `json:"distance_km"`
	Pace        string    `json:"pace"`
	Calories    int       `json:"calories"`

	// Heart rate is never measured; it is only present when simulated vitals are enabled.
	AverageHeartRate *int `json:"average_heart_rate,omitempty"`
	MaxHeartRate     *int `json:"max_heart_rate,omitempty"`
	VitalsSimulated  bool `json:"vitals_simulated"`

	Weather     string       `json:"weather,omitempty"`
	Temperature string       `json:"temperature,omitempty"`
	Notes       string       `json:"notes"`
	Route       []RoutePoint `json:"route"`
	CreatedAt   time.Time    `json:"created_at"`
}

type Stats struct {
	TotalRuns       int     `json:"total_runs"`
	TotalDistanceKm float64 `json:"total_distance_km"`
	TotalCalories   int     `json:"total_calories"`
	AveragePace     string  `json:"average_pace"`
}
