package tracking

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/yeezy-com/stride-track-explore/internal/course"
	"github.com/yeezy-com/stride-track-explore/internal/records"
	"github.com/yeezy-com/stride-track-explore/internal/shared/geo"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) Notify(ev Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) ofType(t EventType) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, ev := range l.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type memWriter struct {
	mu   sync.Mutex
	list []records.RunRecord
	err  error
}

func (w *memWriter) Append(_ context.Context, rec records.RunRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.list = append(w.list, rec)
	return nil
}

func (w *memWriter) records() []records.RunRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]records.RunRecord(nil), w.list...)
}

type fakeCatalog map[string]course.Course

func (f fakeCatalog) Get(_ context.Context, id string) (course.Course, error) {
	c, ok := f[id]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	return c, nil
}

type failingSource struct{ err error }

func (f failingSource) Subscribe(context.Context, func(GeoSample)) (Subscription, error) {
	return nil, f.err
}

var errDisk = errors.New("disk full")

// hanRiver is a straight east-west leg of ~0.88 km with a 1 km target.
var hanRiver = course.Course{
	ID:               "course-1",
	Name:             "Han River",
	TargetDistanceKm: 1.0,
	Route:            []geo.Point{{Lng: 127.00, Lat: 37.50}, {Lng: 127.01, Lat: 37.50}},
}

// alongLine returns the point offsetKm along hanRiver, turning back at the
// east end so every sample lies on the course.
func alongLine(offsetKm float64) GeoSample {
	legKm := geo.HaversineKm(37.50, 127.00, 37.50, 127.01)
	p := math.Mod(offsetKm, 2*legKm)
	if p > legKm {
		p = 2*legKm - p
	}
	return GeoSample{Lat: 37.50, Lng: 127.00 + 0.01*p/legKm}
}

type harness struct {
	session *Session
	source  *PushSource
	clock   *fakeClock
	log     *eventLog
	writer  *memWriter
}

func newHarness(opts Options) *harness {
	h := &harness{
		source: NewPushSource(),
		clock:  newFakeClock(),
		log:    &eventLog{},
		writer: &memWriter{},
	}
	h.session = NewSession(SessionConfig{
		ID:       "session-1",
		RunnerID: "runner-1",
		Source:   h.source,
		Records:  h.writer,
		Notifier: h.log,
		Options:  opts,
		Now:      h.clock.Now,
	})
	return h
}

// manualOptions disables the ticker and watchdog so tests drive time themselves.
func manualOptions() Options {
	return Options{CaloriesPerKm: 60, OnTrackThresholdKm: 0.05}
}
