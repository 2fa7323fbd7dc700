package course

import (
	"time"

	"github.com/yeezy-com/stride-track-explore/internal/shared/geo"
)

type Course struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	Location         string      `json:"location"`
	Difficulty       string      `json:"difficulty"`
	TargetDistanceKm float64     `json:"target_distance_km"`
	Description      string      `json:"description"`
	Tags             []string    `json:"tags"`
	Route            []geo.Point `json:"route"`
	CreatedBy        string      `json:"created_by"`
	CreatedAt        time.Time   `json:"created_at"`
}
