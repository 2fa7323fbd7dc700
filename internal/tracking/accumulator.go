package tracking

import (
	"math"
	"time"

	"github.com/yeezy-com/stride-track-explore/internal/records"
	"github.com/yeezy-com/stride-track-explore/internal/shared/geo"
)

// accumulator owns the route of one run. Distance only ever grows by the
// haversine leg between the previous and the new sample in arrival order;
// timestamps play no part in it.
type accumulator struct {
	route      []GeoSample
	distanceKm float64
}

func (a *accumulator) add(s GeoSample) float64 {
	inc := 0.0
	if n := len(a.route); n > 0 {
		prev := a.route[n-1]
		inc = geo.HaversineKm(prev.Lat, prev.Lng, s.Lat, s.Lng)
	}
	a.route = append(a.route, s)
	a.distanceKm += inc
	return inc
}

func (a *accumulator) reset() {
	a.route = nil
	a.distanceKm = 0
}

func (a *accumulator) routePoints() []records.RoutePoint {
	points := make([]records.RoutePoint, len(a.route))
	for i, s := range a.route {
		points[i] = records.RoutePoint{Lat: s.Lat, Lng: s.Lng, RecordedAt: s.RecordedAt}
	}
	return points
}

// ReplayDistanceKm recomputes a route's distance from scratch.
func ReplayDistanceKm(route []GeoSample) float64 {
	var a accumulator
	for _, s := range route {
		a.add(s)
	}
	return a.distanceKm
}

// paceMinPerKm is unavailable, not zero, before any distance is covered.
func paceMinPerKm(elapsed time.Duration, km float64) (float64, bool) {
	if km <= 0 {
		return 0, false
	}
	return elapsed.Minutes() / km, true
}

func caloriesFor(km, perKm float64) int {
	return int(math.Round(km * perKm))
}
