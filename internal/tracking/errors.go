package tracking

import "errors"

var (
	ErrLocationPermissionDenied = errors.New("tracking: location permission denied")
	ErrLocationTimeout          = errors.New("tracking: location timeout")
	ErrInvalidStateTransition   = errors.New("tracking: invalid state transition")
	ErrPersistenceWriteFailed   = errors.New("tracking: persistence write failed")

	ErrSessionNotFound = errors.New("tracking: session not found")
	ErrSessionClosed   = errors.New("tracking: session closed")
	ErrCourseNotFound  = errors.New("tracking: course not found")
	ErrNotSubscribed   = errors.New("tracking: no active location subscription")
	ErrInvalidSample   = errors.New("tracking: invalid sample")
	ErrInvalidRequest  = errors.New("tracking: invalid request")
	ErrRunnerRequired  = errors.New("tracking: runner required")
)
