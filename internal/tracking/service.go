package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/yeezy-com/stride-track-explore/internal/course"
	"github.com/yeezy-com/stride-track-explore/internal/records"
	"github.com/yeezy-com/stride-track-explore/internal/stream"
	"github.com/yeezy-com/stride-track-explore/internal/telemetry"
)

// Service owns one live session per runner. Samples arrive through each
// session's PushSource; events fan out to the stream hub, the log and metrics.
type Service struct {
	catalog CourseCatalog
	store   RecordWriter
	hub     *stream.Hub
	logger  *slog.Logger
	opts    Options
	now     func() time.Time
	metrics serviceMetrics

	mu       sync.Mutex
	sessions map[string]*liveSession
	byRunner map[string]string
}

type liveSession struct {
	session *Session
	source  *PushSource
}

type serviceMetrics struct {
	samples     metric.Int64Counter
	conformance metric.Int64Counter
	runsSaved   metric.Int64Counter
	errors      metric.Int64Counter
}

func NewService(catalog CourseCatalog, store RecordWriter, hub *stream.Hub, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		catalog:  catalog,
		store:    store,
		hub:      hub,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
		metrics:  newServiceMetrics(),
		sessions: map[string]*liveSession{},
		byRunner: map[string]string{},
	}
}

func newServiceMetrics() serviceMetrics {
	meter := telemetry.Meter("stride-track/tracking")
	var m serviceMetrics
	m.samples, _ = meter.Int64Counter("tracking.samples_ingested",
		metric.WithDescription("Location samples accepted by live sessions"))
	m.conformance, _ = meter.Int64Counter("tracking.conformance_changes",
		metric.WithDescription("Course conformance transitions"))
	m.runsSaved, _ = meter.Int64Counter("tracking.runs_saved",
		metric.WithDescription("Run records persisted on stop"))
	m.errors, _ = meter.Int64Counter("tracking.errors",
		metric.WithDescription("Error events reported by live sessions"))
	return m
}

// Open returns the runner's session, creating an idle one if needed.
func (s *Service) Open(runnerID string) (Snapshot, error) {
	if runnerID == "" {
		return Snapshot{}, ErrRunnerRequired
	}
	s.mu.Lock()
	if id, ok := s.byRunner[runnerID]; ok {
		live := s.sessions[id]
		s.mu.Unlock()
		return live.session.Snapshot(), nil
	}
	source := NewPushSource()
	session := NewSession(SessionConfig{
		RunnerID: runnerID,
		Source:   source,
		Records:  s.store,
		Notifier: s,
		Options:  s.opts,
		Now:      s.now,
	})
	s.sessions[session.ID()] = &liveSession{session: session, source: source}
	s.byRunner[runnerID] = session.ID()
	s.mu.Unlock()

	s.logger.Info("tracking: session opened", "session_id", session.ID(), "runner_id", runnerID)
	return session.Snapshot(), nil
}

// Discard closes the session and forgets it. An active run is dropped without a record.
func (s *Service) Discard(runnerID, sessionID string) error {
	live, err := s.lookup(runnerID, sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.sessions, sessionID)
	if s.byRunner[runnerID] == sessionID {
		delete(s.byRunner, runnerID)
	}
	s.mu.Unlock()

	live.session.Close()
	s.logger.Info("tracking: session discarded", "session_id", sessionID, "runner_id", runnerID)
	return nil
}

// SelectCourse passes a catalog course to an idle session. An empty
// courseID selects a free run.
func (s *Service) SelectCourse(ctx context.Context, runnerID, sessionID, courseID string) (Snapshot, error) {
	live, err := s.lookup(runnerID, sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	var selected *course.Course
	if courseID != "" {
		if s.catalog == nil {
			return Snapshot{}, fmt.Errorf("%w: %s", ErrCourseNotFound, courseID)
		}
		c, err := s.catalog.Get(ctx, courseID)
		if errors.Is(err, course.ErrNotFound) {
			return Snapshot{}, fmt.Errorf("%w: %s", ErrCourseNotFound, courseID)
		}
		if err != nil {
			return Snapshot{}, err
		}
		selected = &c
	}
	if err := live.session.SelectCourse(selected); err != nil {
		return Snapshot{}, err
	}
	return live.session.Snapshot(), nil
}

func (s *Service) Start(ctx context.Context, runnerID, sessionID string) (Snapshot, error) {
	live, err := s.lookup(runnerID, sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	if err := live.session.Start(ctx); err != nil {
		return Snapshot{}, err
	}
	return live.session.Snapshot(), nil
}

func (s *Service) Pause(runnerID, sessionID string) (Snapshot, error) {
	live, err := s.lookup(runnerID, sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	if err := live.session.Pause(); err != nil {
		return Snapshot{}, err
	}
	return live.session.Snapshot(), nil
}

func (s *Service) Resume(ctx context.Context, runnerID, sessionID string) (Snapshot, error) {
	live, err := s.lookup(runnerID, sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	if err := live.session.Resume(ctx); err != nil {
		return Snapshot{}, err
	}
	return live.session.Snapshot(), nil
}

// Stop ends the run. The record is nil when no distance was covered.
func (s *Service) Stop(ctx context.Context, runnerID, sessionID string, cond RunConditions) (*RunResult, error) {
	live, err := s.lookup(runnerID, sessionID)
	if err != nil {
		return nil, err
	}
	rec, err := live.session.Stop(ctx, cond)
	if err != nil && !errors.Is(err, ErrPersistenceWriteFailed) {
		return nil, err
	}
	res := &RunResult{Record: rec, Saved: rec != nil && err == nil, Snapshot: live.session.Snapshot()}
	if err != nil {
		res.Error = err.Error()
	}
	return res, nil
}

// RunResult is the outcome of Stop. Saved is false when there was nothing to
// save or the record store rejected the record.
type RunResult struct {
	Record   *records.RunRecord `json:"record"`
	Saved    bool               `json:"saved"`
	Error    string             `json:"error,omitempty"`
	Snapshot Snapshot           `json:"snapshot"`
}

func (s *Service) Ingest(runnerID, sessionID string, sample GeoSample) (Snapshot, error) {
	live, err := s.lookup(runnerID, sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	if err := live.source.Deliver(sample); err != nil {
		return Snapshot{}, err
	}
	s.metrics.samples.Add(context.Background(), 1)
	return live.session.Snapshot(), nil
}

// SetLocationPermission records the device's permission state; a denied
// permission makes the next start or resume fail.
func (s *Service) SetLocationPermission(runnerID, sessionID string, granted bool) error {
	live, err := s.lookup(runnerID, sessionID)
	if err != nil {
		return err
	}
	live.source.SetPermission(granted)
	return nil
}

// ReportLocationError relays a client-side location failure. kind is
// "permission_denied" or "timeout". The run is never stopped by it.
func (s *Service) ReportLocationError(runnerID, sessionID, kind, message string) error {
	live, err := s.lookup(runnerID, sessionID)
	if err != nil {
		return err
	}
	var reported error
	switch kind {
	case "permission_denied":
		reported = ErrLocationPermissionDenied
	case "timeout":
		reported = ErrLocationTimeout
	default:
		return fmt.Errorf("%w: unknown location error %q", ErrInvalidRequest, kind)
	}
	if message != "" {
		reported = fmt.Errorf("%w: %s", reported, message)
	}
	live.session.ReportLocationError(reported)
	return nil
}

func (s *Service) Snapshot(runnerID, sessionID string) (Snapshot, error) {
	live, err := s.lookup(runnerID, sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	return live.session.Snapshot(), nil
}

// Close tears down every session so no ticker or subscription outlives the service.
func (s *Service) Close() {
	s.mu.Lock()
	live := make([]*liveSession, 0, len(s.sessions))
	for _, l := range s.sessions {
		live = append(live, l)
	}
	s.sessions = map[string]*liveSession{}
	s.byRunner = map[string]string{}
	s.mu.Unlock()

	for _, l := range live {
		if st := l.session.Snapshot().Status; st == StatusRunning || st == StatusPaused {
			s.logger.Warn("tracking: discarding active run on shutdown", "session_id", l.session.ID())
		}
		l.session.Close()
	}
}

// Notify implements Notifier for every session the service owns.
func (s *Service) Notify(ev Event) {
	ctx := context.Background()
	switch ev.Type {
	case EventProgress:
		s.logger.Debug("tracking: progress", "session_id", ev.SessionID)
	case EventConformance:
		s.metrics.conformance.Add(ctx, 1, metric.WithAttributes(attribute.String("to", string(ev.To))))
		s.logger.Info("tracking: conformance changed", "session_id", ev.SessionID, "from", ev.From, "to", ev.To)
	case EventRecordSaved:
		s.metrics.runsSaved.Add(ctx, 1)
		s.logger.Info("tracking: run saved", "session_id", ev.SessionID, "record_id", ev.Record.ID, "distance_km", ev.Record.DistanceKm)
	case EventError:
		s.metrics.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", errorKind(ev.Err))))
		s.logger.Warn("tracking: session error", "session_id", ev.SessionID, "error", ev.Err)
	}

	if s.hub == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("tracking: encode event", "session_id", ev.SessionID, "error", err)
		return
	}
	s.hub.Broadcast(ev.SessionID, payload)
}

func (s *Service) lookup(runnerID, sessionID string) (*liveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live, ok := s.sessions[sessionID]
	// Another runner's session is reported as missing.
	if !ok || live.session.RunnerID() != runnerID {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return live, nil
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrLocationPermissionDenied):
		return "location_permission_denied"
	case errors.Is(err, ErrLocationTimeout):
		return "location_timeout"
	case errors.Is(err, ErrInvalidStateTransition):
		return "invalid_state_transition"
	case errors.Is(err, ErrPersistenceWriteFailed):
		return "persistence_write_failed"
	default:
		return "other"
	}
}
