package tracking

import "time"

const (
	DefaultCaloriesPerKm      = 60.0
	DefaultOnTrackThresholdKm = 0.05
	DefaultTickInterval       = time.Second
	DefaultLocationTimeout    = 5 * time.Second
)

// Options tune a session. A zero TickInterval disables the elapsed-time
// ticker and a zero LocationTimeout disables the first-fix watchdog.
type Options struct {
	CaloriesPerKm      float64
	OnTrackThresholdKm float64
	TickInterval       time.Duration
	LocationTimeout    time.Duration
	// SimulatedVitals attaches fabricated heart-rate figures to saved records.
	SimulatedVitals bool
}

func DefaultOptions() Options {
	return Options{
		CaloriesPerKm:      DefaultCaloriesPerKm,
		OnTrackThresholdKm: DefaultOnTrackThresholdKm,
		TickInterval:       DefaultTickInterval,
		LocationTimeout:    DefaultLocationTimeout,
	}
}

func (o Options) normalized() Options {
	if o.CaloriesPerKm <= 0 {
		o.CaloriesPerKm = DefaultCaloriesPerKm
	}
	if o.OnTrackThresholdKm <= 0 {
		o.OnTrackThresholdKm = DefaultOnTrackThresholdKm
	}
	if o.TickInterval < 0 {
		o.TickInterval = 0
	}
	if o.LocationTimeout < 0 {
		o.LocationTimeout = 0
	}
	return o
}
