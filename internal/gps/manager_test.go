package gps

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// chanFeed emits whatever is sent on fixes until canceled.
type chanFeed struct {
	fixes chan Fix

	mu   sync.Mutex
	runs int
}

func newChanFeed() *chanFeed {
	return &chanFeed{fixes: make(chan Fix)}
}

func (f *chanFeed) Run(ctx context.Context, emit func(Fix)) error {
	f.mu.Lock()
	f.runs++
	f.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return nil
		case fix := <-f.fixes:
			emit(fix)
		}
	}
}

func (f *chanFeed) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

type recordingListener struct {
	readings chan Reading
}

func (l *recordingListener) OnLocationChanged(r Reading) {
	l.readings <- r
}

func waitReading(t *testing.T, l *recordingListener) Reading {
	t.Helper()
	select {
	case r := <-l.readings:
		return r
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for reading")
	}
	return Reading{}
}

func TestManagerStartStopIdempotent(t *testing.T) {
	feed := newChanFeed()
	m := NewManager(feed)

	if err := m.Stop(); err != nil {
		t.Fatalf("stop on stopped manager: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := m.Start(); err != nil {
			t.Fatalf("start: %v", err)
		}
	}
	if !m.Running() {
		t.Fatal("expected manager to be running")
	}

	// Run is entered asynchronously.
	deadline := time.Now().Add(time.Second)
	for feed.runCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := feed.runCount(); got != 1 {
		t.Fatalf("expected feed to run once; ran %d times", got)
	}

	for i := 0; i < 2; i++ {
		if err := m.Stop(); err != nil {
			t.Fatalf("stop: %v", err)
		}
	}
	if m.Running() {
		t.Fatal("expected manager to be stopped")
	}

	// A stopped manager can be started again.
	if err := m.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	m.Stop()
	if got := feed.runCount(); got != 2 {
		t.Fatalf("expected two feed runs after restart; got %d", got)
	}
}

func TestManagerWithoutFeed(t *testing.T) {
	if err := NewManager(nil).Start(); err != ErrNoFeed {
		t.Fatalf("expected ErrNoFeed; got %v", err)
	}
}

func TestManagerNotifiesListeners(t *testing.T) {
	feed := newChanFeed()
	m := NewManager(feed)
	l := &recordingListener{readings: make(chan Reading, 4)}

	m.AddOnChangedListener(l)
	m.AddOnChangedListener(l)
	if got := m.ListenerCount(); got != 1 {
		t.Fatalf("expected duplicate registration to be ignored; got %d listeners", got)
	}

	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	defer m.Stop()

	if m.HasLocation() {
		t.Fatal("expected no location before the first fix")
	}
	if _, ok := m.Speed(); ok {
		t.Fatal("expected no speed before the first fix")
	}

	feed.fixes <- Fix{Validity: "V"}
	if r := waitReading(t, l); r.HasFix {
		t.Fatalf("expected no-fix reading; got %+v", r)
	}
	if m.HasLocation() {
		t.Fatal("expected void fix not to count as a location")
	}

	feed.fixes <- Fix{Validity: "A", SpeedKnots: 52.1}
	r := waitReading(t, l)
	if !r.HasFix {
		t.Fatalf("expected fix reading; got %+v", r)
	}
	if !m.HasLocation() {
		t.Fatal("expected a location after a valid fix")
	}
	speed, ok := m.Speed()
	if !ok || speed != r.SpeedMPS {
		t.Fatalf("expected Speed() to match notified speed %v; got %v (%t)", r.SpeedMPS, speed, ok)
	}
	if loc, ok := m.Location(); !ok || loc.SpeedKnots != 52.1 {
		t.Fatalf("unexpected location %+v (%t)", loc, ok)
	}

	m.RemoveOnChangedListener(l)
	m.RemoveOnChangedListener(l)
	if got := m.ListenerCount(); got != 0 {
		t.Fatalf("expected no listeners; got %d", got)
	}

	feed.fixes <- Fix{Validity: "A", SpeedKnots: 1}
	select {
	case r := <-l.readings:
		t.Fatalf("removed listener received %+v", r)
	case <-time.After(20 * time.Millisecond):
	}
}

// failingFeed fails every run, like a receiver that is unplugged.
type failingFeed struct {
	runs atomic.Int32
}

func (f *failingFeed) Run(context.Context, func(Fix)) error {
	f.runs.Add(1)
	return errors.New("open /dev/serial0: no such file or directory")
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestManagerRestartsAfterFeedError(t *testing.T) {
	feed := &failingFeed{}
	m := NewManager(feed)
	m.RetryDelay = 0

	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, "the feed to give up", func() bool { return !m.Running() })
	if got := feed.runs.Load(); got != 1 {
		t.Fatalf("expected one run without retries; got %d", got)
	}

	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, "a second run", func() bool { return feed.runs.Load() == 2 })

	if err := m.Stop(); err != nil {
		t.Fatal(err)
	}
	if m.Running() {
		t.Fatal("expected manager to be stopped")
	}
}

func TestManagerRetriesFailedFeed(t *testing.T) {
	feed := &failingFeed{}
	m := NewManager(feed)
	m.RetryDelay = 2 * time.Millisecond

	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, "retries", func() bool { return feed.runs.Load() >= 3 })
	if !m.Running() {
		t.Fatal("expected manager to keep running while retrying")
	}

	m.Stop()
	runs := feed.runs.Load()
	time.Sleep(10 * time.Millisecond)
	if got := feed.runs.Load(); got != runs {
		t.Fatalf("feed ran after Stop: %d -> %d", runs, got)
	}
}
