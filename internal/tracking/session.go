package tracking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yeezy-com/stride-track-explore/internal/course"
	"github.com/yeezy-com/stride-track-explore/internal/records"
)

type SessionConfig struct {
	ID       string
	RunnerID string
	Source   LocationSource
	Records  RecordWriter
	Notifier Notifier
	Options  Options
	Now      func() time.Time
}

// Session is the live state machine of one run:
// idle -> running <-> paused -> stopped -> idle.
//
// The location subscription, the elapsed-time ticker and the first-fix
// watchdog exist only while running. Every exit from running releases all
// three and bumps gen so callbacks still in flight are ignored.
type Session struct {
	id       string
	runnerID string
	source   LocationSource
	records  RecordWriter
	notifier Notifier
	opts     Options
	now      func() time.Time

	// ctl serializes control operations; mu guards the run state below.
	ctl sync.Mutex
	mu  sync.Mutex

	status      Status
	closed      bool
	startedAt   time.Time
	pausedAt    time.Time
	pausedTotal time.Duration
	acc         accumulator
	course      *course.Course
	conf        conformanceTracker

	gen      uint64
	sub      Subscription
	gotFix   bool
	tickStop chan struct{}
	watchdog *time.Timer
}

func NewSession(cfg SessionConfig) *Session {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	opts := cfg.Options.normalized()
	return &Session{
		id:       cfg.ID,
		runnerID: cfg.RunnerID,
		source:   cfg.Source,
		records:  cfg.Records,
		notifier: cfg.Notifier,
		opts:     opts,
		now:      cfg.Now,
		status:   StatusIdle,
		conf:     newConformanceTracker(opts.OnTrackThresholdKm),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) RunnerID() string { return s.runnerID }

// SelectCourse sets the target course for the next run; nil means a free run.
// The course can only change while idle.
func (s *Session) SelectCourse(c *course.Course) error {
	s.ctl.Lock()
	defer s.ctl.Unlock()

	s.mu.Lock()
	if s.closed || s.status != StatusIdle {
		ev, err := s.rejectLocked("select course")
		s.mu.Unlock()
		s.emit(ev)
		return err
	}
	if c == nil {
		s.course = nil
		s.conf.clearCourse()
	} else {
		selected := *c
		s.course = &selected
		s.conf.setCourse(selected.Route, selected.TargetDistanceKm)
	}
	s.mu.Unlock()
	return nil
}

// Start begins a run from idle. If the location source refuses the
// subscription the error is reported and the session stays idle.
func (s *Session) Start(ctx context.Context) error {
	s.ctl.Lock()
	defer s.ctl.Unlock()

	s.mu.Lock()
	if s.closed || s.status != StatusIdle {
		ev, err := s.rejectLocked("start")
		s.mu.Unlock()
		s.emit(ev)
		return err
	}
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	sub, err := s.subscribe(ctx, gen)
	if err != nil {
		return err
	}

	s.mu.Lock()
	now := s.now()
	s.status = StatusRunning
	s.startedAt = now
	s.pausedAt = time.Time{}
	s.pausedTotal = 0
	s.acc.reset()
	s.conf.reset()
	s.sub = sub
	s.armLocked(gen)
	snap := s.snapshotLocked(now)
	s.mu.Unlock()

	s.emit(Event{Type: EventProgress, SessionID: s.id, Snapshot: &snap, At: now})
	return nil
}

func (s *Session) Pause() error {
	s.ctl.Lock()
	defer s.ctl.Unlock()

	s.mu.Lock()
	if s.closed || s.status != StatusRunning {
		ev, err := s.rejectLocked("pause")
		s.mu.Unlock()
		s.emit(ev)
		return err
	}
	now := s.now()
	s.status = StatusPaused
	s.pausedAt = now
	sub := s.disarmLocked()
	snap := s.snapshotLocked(now)
	s.mu.Unlock()

	unsubscribe(sub)
	s.emit(Event{Type: EventProgress, SessionID: s.id, Snapshot: &snap, At: now})
	return nil
}

// Resume re-subscribes to the location source. On failure the session stays paused.
func (s *Session) Resume(ctx context.Context) error {
	s.ctl.Lock()
	defer s.ctl.Unlock()

	s.mu.Lock()
	if s.closed || s.status != StatusPaused {
		ev, err := s.rejectLocked("resume")
		s.mu.Unlock()
		s.emit(ev)
		return err
	}
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	sub, err := s.subscribe(ctx, gen)
	if err != nil {
		return err
	}

	s.mu.Lock()
	now := s.now()
	if paused := now.Sub(s.pausedAt); paused > 0 {
		s.pausedTotal += paused
	}
	s.pausedAt = time.Time{}
	s.status = StatusRunning
	s.sub = sub
	s.armLocked(gen)
	snap := s.snapshotLocked(now)
	s.mu.Unlock()

	s.emit(Event{Type: EventProgress, SessionID: s.id, Snapshot: &snap, At: now})
	return nil
}

// Stop ends the run and resets the session to a fresh idle state. When any
// distance was covered the finished record is returned and appended to the
// record store. A failed append is reported with ErrPersistenceWriteFailed;
// the reset is not rolled back and the record is still returned.
func (s *Session) Stop(ctx context.Context, cond RunConditions) (*records.RunRecord, error) {
	s.ctl.Lock()
	defer s.ctl.Unlock()

	s.mu.Lock()
	if s.closed || (s.status != StatusRunning && s.status != StatusPaused) {
		ev, err := s.rejectLocked("stop")
		s.mu.Unlock()
		s.emit(ev)
		return nil, err
	}
	now := s.now()
	elapsed := s.elapsedLocked(now)
	sub := s.disarmLocked()
	s.status = StatusStopped

	var rec *records.RunRecord
	if s.acc.distanceKm > 0 {
		r := s.recordLocked(now, elapsed, cond)
		rec = &r
	}
	s.resetLocked()
	snap := s.snapshotLocked(now)
	s.mu.Unlock()

	unsubscribe(sub)
	s.emit(Event{Type: EventProgress, SessionID: s.id, Snapshot: &snap, At: now})
	if rec == nil {
		return nil, nil
	}

	if err := s.persist(ctx, *rec); err != nil {
		err = fmt.Errorf("%w: %w", ErrPersistenceWriteFailed, err)
		s.emit(s.errorEvent(err))
		return rec, err
	}
	s.emit(Event{Type: EventRecordSaved, SessionID: s.id, Record: rec, At: s.now()})
	return rec, nil
}

// ReportLocationError surfaces a failure of the location service, such as a
// denied permission or a missing fix. The session keeps its state.
func (s *Session) ReportLocationError(err error) {
	s.emit(s.errorEvent(err))
}

// Tick publishes a progress event with the refreshed elapsed time. The
// session ticker calls it every TickInterval while running.
func (s *Session) Tick() {
	s.mu.Lock()
	if s.status != StatusRunning {
		s.mu.Unlock()
		return
	}
	now := s.now()
	snap := s.snapshotLocked(now)
	s.mu.Unlock()

	s.emit(Event{Type: EventProgress, SessionID: s.id, Snapshot: &snap, At: now})
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(s.now())
}

// Route returns a copy of the samples accepted so far in arrival order.
func (s *Session) Route() []GeoSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]GeoSample, len(s.acc.route))
	copy(out, s.acc.route)
	return out
}

// Close tears the session down. A run in progress is discarded without a record.
func (s *Session) Close() {
	s.ctl.Lock()
	defer s.ctl.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sub := s.disarmLocked()
	s.resetLocked()
	s.mu.Unlock()

	unsubscribe(sub)
}

func (s *Session) subscribe(ctx context.Context, gen uint64) (Subscription, error) {
	if s.source == nil {
		err := fmt.Errorf("%w: no location source", ErrNotSubscribed)
		s.emit(s.errorEvent(err))
		return nil, err
	}
	sub, err := s.source.Subscribe(ctx, func(sample GeoSample) {
		s.onSample(gen, sample)
	})
	if err != nil {
		err = fmt.Errorf("tracking: subscribe: %w", err)
		s.emit(s.errorEvent(err))
		return nil, err
	}
	return sub, nil
}

func (s *Session) onSample(gen uint64, sample GeoSample) {
	s.mu.Lock()
	if gen != s.gen || s.status != StatusRunning {
		s.mu.Unlock()
		return
	}
	now := s.now()
	if sample.RecordedAt.IsZero() {
		sample.RecordedAt = now
	}
	s.gotFix = true
	if s.watchdog != nil {
		s.watchdog.Stop()
		s.watchdog = nil
	}
	s.acc.add(sample)
	from, to, changed := s.conf.observe(sample, s.acc.distanceKm)
	snap := s.snapshotLocked(now)
	s.mu.Unlock()

	events := []Event{{Type: EventProgress, SessionID: s.id, Snapshot: &snap, At: now}}
	if changed {
		events = append(events, Event{Type: EventConformance, SessionID: s.id, Snapshot: &snap, From: from, To: to, At: now})
	}
	s.emit(events...)
}

func (s *Session) fixTimedOut(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.status != StatusRunning || s.gotFix {
		s.mu.Unlock()
		return
	}
	s.watchdog = nil
	s.mu.Unlock()

	s.emit(s.errorEvent(fmt.Errorf("%w: no fix within %s", ErrLocationTimeout, s.opts.LocationTimeout)))
}

func (s *Session) tickLoop(stop <-chan struct{}, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			s.Tick()
		}
	}
}

func (s *Session) armLocked(gen uint64) {
	s.gotFix = false
	if s.opts.TickInterval > 0 {
		stop := make(chan struct{})
		s.tickStop = stop
		go s.tickLoop(stop, s.opts.TickInterval)
	}
	if s.opts.LocationTimeout > 0 {
		s.watchdog = time.AfterFunc(s.opts.LocationTimeout, func() { s.fixTimedOut(gen) })
	}
}

// disarmLocked stops the ticker and watchdog and hands back the subscription
// for the caller to cancel once the lock is released.
func (s *Session) disarmLocked() Subscription {
	if s.tickStop != nil {
		close(s.tickStop)
		s.tickStop = nil
	}
	if s.watchdog != nil {
		s.watchdog.Stop()
		s.watchdog = nil
	}
	sub := s.sub
	s.sub = nil
	s.gen++
	return sub
}

func (s *Session) resetLocked() {
	s.status = StatusIdle
	s.startedAt = time.Time{}
	s.pausedAt = time.Time{}
	s.pausedTotal = 0
	s.acc.reset()
	s.course = nil
	s.conf.clearCourse()
	s.gotFix = false
}

func (s *Session) elapsedLocked(now time.Time) time.Duration {
	var end time.Time
	switch s.status {
	case StatusRunning:
		end = now
	case StatusPaused:
		end = s.pausedAt
	default:
		return 0
	}
	elapsed := end.Sub(s.startedAt) - s.pausedTotal
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

func (s *Session) snapshotLocked(now time.Time) Snapshot {
	elapsed := s.elapsedLocked(now)
	km := s.acc.distanceKm
	snap := Snapshot{
		SessionID:   s.id,
		RunnerID:    s.runnerID,
		Status:      s.status,
		Elapsed:     elapsed,
		ElapsedSec:  int64(elapsed / time.Second),
		Duration:    records.FormatDuration(int64(elapsed / time.Second)),
		DistanceKm:  km,
		Pace:        "--:--",
		Calories:    caloriesFor(km, s.opts.CaloriesPerKm),
		Conformance: s.conf.current,
		SampleCount: len(s.acc.route),
	}
	if !s.startedAt.IsZero() {
		started := s.startedAt
		snap.StartedAt = &started
	}
	if pace, ok := paceMinPerKm(elapsed, km); ok {
		snap.PaceMinPerKm = pace
		snap.PaceAvailable = true
		snap.Pace = records.FormatPace(pace)
	}
	if s.course != nil {
		snap.CourseID = s.course.ID
		snap.CourseName = s.course.Name
		snap.TargetDistanceKm = s.course.TargetDistanceKm
	}
	if n := len(s.acc.route); n > 0 {
		last := s.acc.route[n-1]
		snap.LastSample = &last
	}
	return snap
}

func (s *Session) recordLocked(now time.Time, elapsed time.Duration, cond RunConditions) records.RunRecord {
	km := s.acc.distanceKm
	pace, _ := paceMinPerKm(elapsed, km)
	rec := records.RunRecord{
		ID:          uuid.NewString(),
		RunnerID:    s.runnerID,
		CourseID:    records.FreeRunCourseID,
		StartedAt:   s.startedAt,
		DurationSec: int64(elapsed / time.Second),
		DistanceKm:  km,
		Pace:        records.FormatPace(pace),
		Calories:    caloriesFor(km, s.opts.CaloriesPerKm),
		Weather:     cond.Weather,
		Temperature: cond.Temperature,
		Notes:       cond.Notes,
		Route:       s.acc.routePoints(),
		CreatedAt:   now,
	}
	rec.Duration = records.FormatDuration(rec.DurationSec)
	if s.course != nil {
		rec.CourseID = s.course.ID
		rec.CourseName = s.course.Name
	}
	if rec.Notes == "" {
		rec.Notes = "Free run."
		if s.course != nil {
			rec.Notes = fmt.Sprintf("Ran the %s course.", s.course.Name)
		}
	}
	if s.opts.SimulatedVitals {
		avg, peak := simulateHeartRateFn()
		rec.AverageHeartRate = &avg
		rec.MaxHeartRate = &peak
		rec.VitalsSimulated = true
	}
	return rec
}

func (s *Session) persist(ctx context.Context, rec records.RunRecord) error {
	if s.records == nil {
		return records.ErrUnavailable
	}
	return s.records.Append(ctx, rec)
}

func (s *Session) rejectLocked(op string) (Event, error) {
	err := ErrSessionClosed
	if !s.closed {
		err = fmt.Errorf("%w: cannot %s while %s", ErrInvalidStateTransition, op, s.status)
	}
	return s.errorEvent(err), err
}

func (s *Session) errorEvent(err error) Event {
	return Event{Type: EventError, SessionID: s.id, Err: err, Error: err.Error(), At: s.now()}
}

func (s *Session) emit(events ...Event) {
	if s.notifier == nil {
		return
	}
	for _, ev := range events {
		s.notifier.Notify(ev)
	}
}

func unsubscribe(sub Subscription) {
	if sub != nil {
		sub.Unsubscribe()
	}
}
