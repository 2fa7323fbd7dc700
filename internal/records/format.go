package records

import (
	"fmt"
	"math"
)

// FormatDuration renders seconds as m:ss, or h:mm:ss from one hour up.
func FormatDuration(sec int64) string {
	if sec < 0 {
		sec = 0
	}
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatPace renders minutes-per-km as m:ss. Seconds are rounded before
// splitting so 5.999 becomes 6:00, never 5:60.
func FormatPace(minPerKm float64) string {
	if math.IsNaN(minPerKm) || math.IsInf(minPerKm, 0) || minPerKm < 0 {
		return "--:--"
	}
	total := int64(math.Round(minPerKm * 60))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
