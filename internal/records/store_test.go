package records

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatPace(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{6, "6:00"},
		{5.5, "5:30"},
		{5.999, "6:00"},
		{4.25, "4:15"},
		{0, "0:00"},
		{12.0 + 1.0/60, "12:01"},
		{-1, "--:--"},
		{math.NaN(), "--:--"},
		{math.Inf(1), "--:--"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatPace(tc.in), "pace %v", tc.in)
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0:00", FormatDuration(0))
	assert.Equal(t, "0:00", FormatDuration(-5))
	assert.Equal(t, "3:18", FormatDuration(198))
	assert.Equal(t, "59:59", FormatDuration(3599))
	assert.Equal(t, "1:00:00", FormatDuration(3600))
	assert.Equal(t, "1:02:03", FormatDuration(3723))
}

func TestSummarize(t *testing.T) {
	stats := Summarize([]RunRecord{
		{DistanceKm: 5, Calories: 300, Pace: "6:00"},
		{DistanceKm: 3.2, Calories: 192, Pace: "5:30"},
		{DistanceKm: 1, Calories: 60, Pace: "bad"},
	})
	assert.Equal(t, 3, stats.TotalRuns)
	assert.InDelta(t, 9.2, stats.TotalDistanceKm, 1e-9)
	assert.Equal(t, 552, stats.TotalCalories)
	assert.Equal(t, "5:45", stats.AveragePace)
}

func TestSummarizeEmpty(t *testing.T) {
	stats := Summarize(nil)
	assert.Zero(t, stats.TotalRuns)
	assert.Equal(t, "--:--", stats.AveragePace)
}

func TestParsePace(t *testing.T) {
	sec, ok := parsePace("7:05")
	assert.True(t, ok)
	assert.Equal(t, 425, sec)

	for _, bad := range []string{"", "--:--", "5:60", "x:10", "5", "-1:00"} {
		_, ok := parsePace(bad)
		assert.False(t, ok, bad)
	}
}

func TestValidate(t *testing.T) {
	assert.True(t, errors.Is(validate(RunRecord{DistanceKm: 1}), ErrInvalidRecord))
	assert.True(t, errors.Is(validate(RunRecord{ID: "r"}), ErrInvalidRecord))
	assert.NoError(t, validate(RunRecord{ID: "r", DistanceKm: 0.01}))
}
