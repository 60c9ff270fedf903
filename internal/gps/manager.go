package gps

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/relabs-tech/racehud/internal/log"
)

// ErrNoFeed is returned by Start when the manager was built without a feed.
var ErrNoFeed = errors.New("gps: no feed configured")

// Feed produces fixes until ctx is canceled. Implementations call emit from
// a single goroutine.
type Feed interface {
	Run(ctx context.Context, emit func(Fix)) error
}

// Listener is notified after every fix update. Callbacks run on the feed
// goroutine and must not block.
type Listener interface {
	OnLocationChanged(r Reading)
}

// DefaultRetryDelay is how long a manager waits before rerunning a feed
// that failed.
const DefaultRetryDelay = 2 * time.Second

// Manager owns a Feed, caches the latest fix and fans it out to listeners.
// Start and Stop are idempotent.
type Manager struct {
	feed Feed
	log  log.Logger

	// RetryDelay is the pause between a failed feed run and the next one.
	// Zero disables retries: the feed goroutine exits and the next Start
	// launches it again.
	RetryDelay time.Duration

	mu        sync.Mutex
	listeners []Listener
	last      Fix
	haveLast  bool

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{} // closed when the feed goroutine returns
}

// NewManager returns a stopped manager reading from feed.
func NewManager(feed Feed) *Manager {
	return &Manager{feed: feed, log: log.New("gps"), RetryDelay: DefaultRetryDelay}
}

// AddOnChangedListener registers l. Registering the same listener twice is a no-op.
func (m *Manager) AddOnChangedListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.listeners {
		if existing == l {
			return
		}
	}
	m.listeners = append(m.listeners, l)
}

// RemoveOnChangedListener unregisters l if present.
func (m *Manager) RemoveOnChangedListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.listeners {
		if existing == l {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			return
		}
	}
}

// ListenerCount returns the number of registered listeners.
func (m *Manager) ListenerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

// Start launches the feed. Calling Start on a running manager does nothing;
// a manager whose feed gave up is launched again.
func (m *Manager) Start() error {
	if m.feed == nil {
		return ErrNoFeed
	}

	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.cancel != nil {
		if !closed(m.done) {
			return nil
		}
		m.cancel()
		m.cancel = nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done
	go func() {
		defer close(done)
		m.runFeed(ctx)
	}()
	m.log.Infof("started")
	return nil
}

// runFeed runs the feed until ctx is canceled, rerunning it after
// RetryDelay when it fails.
func (m *Manager) runFeed(ctx context.Context) {
	for {
		err := m.feed.Run(ctx, m.update)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			m.log.Infof("feed ended")
			return
		}
		if m.RetryDelay <= 0 {
			m.log.Errorf("feed stopped: %v", err)
			return
		}
		m.log.Errorf("feed stopped: %v (retrying in %v)", err, m.RetryDelay)

		timer := time.NewTimer(m.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Stop cancels the feed and waits for it to return. Calling Stop on a
// stopped manager does nothing.
func (m *Manager) Stop() error {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.cancel == nil {
		return nil
	}

	m.cancel()
	m.cancel = nil
	<-m.done
	m.log.Infof("stopped")
	return nil
}

// Running reports whether the feed goroutine is alive.
func (m *Manager) Running() bool {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	return m.cancel != nil && !closed(m.done)
}

func closed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// HasLocation reports whether the last fix was valid.
func (m *Manager) HasLocation() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.haveLast && m.last.Valid()
}

// Location returns the last valid fix.
func (m *Manager) Location() (Fix, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.haveLast || !m.last.Valid() {
		return Fix{}, false
	}
	return m.last, true
}

// Speed returns the last valid speed in meters per second.
func (m *Manager) Speed() (float64, bool) {
	f, ok := m.Location()
	if !ok {
		return 0, false
	}
	return f.SpeedMPS(), true
}

func (m *Manager) update(f Fix) {
	m.mu.Lock()
	m.last = f
	m.haveLast = true
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	r := ReadingFromFix(f)
	for _, l := range listeners {
		l.OnLocationChanged(r)
	}
}
