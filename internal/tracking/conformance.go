package tracking

import "github.com/yeezy-com/stride-track-explore/internal/shared/geo"

// conformanceTracker classifies each sample against the selected course.
// Completion is sticky until the tracker is reset.
type conformanceTracker struct {
	thresholdKm float64

	hasCourse bool
	route     []geo.Point
	targetKm  float64

	current Conformance
}

func newConformanceTracker(thresholdKm float64) conformanceTracker {
	return conformanceTracker{thresholdKm: thresholdKm, current: ConformanceUnknown}
}

func (t *conformanceTracker) setCourse(route []geo.Point, targetKm float64) {
	t.hasCourse = true
	t.route = route
	t.targetKm = targetKm
	t.current = ConformanceUnknown
}

func (t *conformanceTracker) clearCourse() {
	t.hasCourse = false
	t.route = nil
	t.targetKm = 0
	t.current = ConformanceUnknown
}

func (t *conformanceTracker) reset() {
	t.current = ConformanceUnknown
}

// observe reclassifies after a sample and reports whether the value changed.
func (t *conformanceTracker) observe(s GeoSample, distanceKm float64) (from, to Conformance, changed bool) {
	from = t.current
	t.current = t.classify(s, distanceKm)
	return from, t.current, from != t.current
}

func (t *conformanceTracker) classify(s GeoSample, distanceKm float64) Conformance {
	if !t.hasCourse {
		return ConformanceUnknown
	}
	if t.current == ConformanceCompleted {
		return ConformanceCompleted
	}
	if t.targetKm > 0 && distanceKm >= t.targetKm {
		return ConformanceCompleted
	}
	d, ok := geo.DistanceToRouteKm(s.Lat, s.Lng, t.route)
	if !ok {
		return ConformanceUnknown
	}
	if d <= t.thresholdKm {
		return ConformanceOnTrack
	}
	return ConformanceOffTrack
}
