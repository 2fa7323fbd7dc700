package tracking

import "math/rand/v2"

// simulateHeartRateFn fabricates heart-rate figures for records when
// Options.SimulatedVitals is set. Nothing here is a measurement.
var simulateHeartRateFn = func() (avg, peak int) {
	avg = 140 + rand.IntN(40)
	return avg, avg + 15
}
