package tracking

import (
	"context"
	"sync"

	"github.com/yeezy-com/stride-track-explore/internal/course"
	"github.com/yeezy-com/stride-track-explore/internal/records"
)

// LocationSource delivers position readings to a single callback until the
// returned Subscription is cancelled. Readings delivered before Subscribe
// returns may be dropped by the session.
type LocationSource interface {
	Subscribe(ctx context.Context, fn func(GeoSample)) (Subscription, error)
}

type Subscription interface {
	Unsubscribe()
}

type RecordWriter interface {
	Append(ctx context.Context, record records.RunRecord) error
}

type CourseCatalog interface {
	Get(ctx context.Context, id string) (course.Course, error)
}

// Notifier receives session events. It is called from sample, ticker and
// control goroutines and must be safe for concurrent use.
type Notifier interface {
	Notify(Event)
}

type NotifierFunc func(Event)

func (f NotifierFunc) Notify(ev Event) { f(ev) }

// PushSource is a LocationSource fed by samples uploaded over HTTP.
type PushSource struct {
	mu     sync.Mutex
	fn     func(GeoSample)
	active *pushSubscription
	denied bool
}

type pushSubscription struct {
	src *PushSource
}

func NewPushSource() *PushSource {
	return &PushSource{}
}

func (p *PushSource) Subscribe(ctx context.Context, fn func(GeoSample)) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.denied {
		return nil, ErrLocationPermissionDenied
	}
	sub := &pushSubscription{src: p}
	p.fn = fn
	p.active = sub
	return sub, nil
}

func (s *pushSubscription) Unsubscribe() {
	p := s.src
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == s {
		p.fn = nil
		p.active = nil
	}
}

// SetPermission records whether the device granted location access.
// While denied, Subscribe and Deliver fail with ErrLocationPermissionDenied.
func (p *PushSource) SetPermission(granted bool) {
	p.mu.Lock()
	p.denied = !granted
	p.mu.Unlock()
}

// Deliver hands one reading to the subscriber. The callback runs outside the
// source lock so it may call back into the session.
func (p *PushSource) Deliver(sample GeoSample) error {
	if err := sample.validate(); err != nil {
		return err
	}
	p.mu.Lock()
	fn, denied := p.fn, p.denied
	p.mu.Unlock()
	if denied {
		return ErrLocationPermissionDenied
	}
	if fn == nil {
		return ErrNotSubscribed
	}
	fn(sample)
	return nil
}
