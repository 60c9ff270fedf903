package card

import (
	"context"
	"fmt"
	"image"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/relabs-tech/racehud/internal/gps"
	"github.com/relabs-tech/racehud/internal/hud"
	"github.com/relabs-tech/racehud/internal/surface"
)

type recordingCallback struct {
	events []string
}

func (r *recordingCallback) SurfaceCreated(_ hud.SurfaceHolder, w, h int) {
	r.events = append(r.events, fmt.Sprintf("created %dx%d", w, h))
}

func (r *recordingCallback) SurfaceChanged(_ hud.SurfaceHolder, _, w, h int) {
	r.events = append(r.events, fmt.Sprintf("changed %dx%d", w, h))
}

func (r *recordingCallback) SurfaceDestroyed(hud.SurfaceHolder) {
	r.events = append(r.events, "destroyed")
}

func (r *recordingCallback) RenderingPaused(_ hud.SurfaceHolder, paused bool) {
	r.events = append(r.events, fmt.Sprintf("paused=%t", paused))
}

func TestLiveCardLifecycle(t *testing.T) {
	cb := &recordingCallback{}
	mem := surface.NewMemory(128, 64)
	c := New("RaceHUD", mem, cb)

	if err := c.Unpublish(); err != ErrNotPublished {
		t.Fatalf("expected ErrNotPublished; got %v", err)
	}
	if err := c.Resize(10, 10); err != ErrNotPublished {
		t.Fatalf("expected ErrNotPublished; got %v", err)
	}

	steps := []func() error{
		c.Publish,
		func() error { c.SetPaused(true); return nil },
		func() error { c.SetPaused(true); return nil },
		c.Publish, // navigate: unpause
		func() error { return c.Resize(256, 128) },
		c.Unpublish,
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	exp := []string{
		"created 128x64",
		"changed 128x64",
		"paused=true",
		"paused=false",
		"changed 256x128",
		"destroyed",
	}
	if !reflect.DeepEqual(cb.events, exp) {
		t.Fatalf("unexpected events:\n got %v\nwant %v", cb.events, exp)
	}
	if c.Published() {
		t.Fatal("expected card to be unpublished")
	}
	if _, err := mem.LockCanvas(); err != surface.ErrReleased {
		t.Fatalf("expected surface released after unpublish; got %v", err)
	}
}

func TestLiveCardPublishesPaused(t *testing.T) {
	cb := &recordingCallback{}
	c := New("RaceHUD", surface.NewMemory(32, 16), cb)

	c.SetPaused(true)
	if err := c.Publish(); err != nil {
		t.Fatal(err)
	}
	exp := []string{"paused=true", "created 32x16", "changed 32x16"}
	if !reflect.DeepEqual(cb.events, exp) {
		t.Fatalf("unexpected events:\n got %v\nwant %v", cb.events, exp)
	}
}

// constantFeed reports one fixed speed on every tick.
type constantFeed struct {
	knots float64
}

func (f constantFeed) Run(ctx context.Context, emit func(gps.Fix)) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			emit(gps.Fix{Validity: "A", SpeedKnots: f.knots})
		}
	}
}

// countingFeed records how often it was run and emits nothing.
type countingFeed struct {
	runs atomic.Int32
}

func (f *countingFeed) Run(ctx context.Context, _ func(gps.Fix)) error {
	f.runs.Add(1)
	<-ctx.Done()
	return nil
}

func TestPausedPublishLeavesSourceIdle(t *testing.T) {
	feed := &countingFeed{}
	mgr := gps.NewManager(feed)
	mem := surface.NewMemory(128, 64)
	c := New("RaceHUD", mem, hud.NewRenderer(hud.DefaultResources(), mgr))

	c.SetPaused(true)
	if err := c.Publish(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(3 * hud.FrameTime)

	if got := feed.runs.Load(); got != 0 {
		t.Fatalf("expected the feed never to run for a paused card; runs=%d", got)
	}
	if mgr.Running() || mgr.ListenerCount() != 0 {
		t.Fatalf("expected an idle source; running=%t listeners=%d", mgr.Running(), mgr.ListenerCount())
	}
	if got := mem.Posts(); got != 0 {
		t.Fatalf("expected no frames for a paused card; got %d", got)
	}

	// navigating to the card resumes it
	if err := c.Publish(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "the feed to run", func() bool { return feed.runs.Load() == 1 })
	waitFor(t, "frames", func() bool { return mem.Posts() > 0 })

	if err := c.Unpublish(); err != nil {
		t.Fatal(err)
	}
}

func TestLiveCardDrivesRenderer(t *testing.T) {
	mgr := gps.NewManager(constantFeed{knots: 52.1382}) // ~60 MPH
	mem := surface.NewMemory(128, 64)
	renderer := hud.NewRenderer(hud.DefaultResources(), mgr)
	c := New("RaceHUD", mem, renderer)

	if err := c.Publish(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "frames", func() bool { return mem.Posts() >= 3 })

	// resizing while frames are in flight waits for the current one
	for i := 0; i < 5; i++ {
		if err := c.Resize(256+i, 128); err != nil {
			t.Fatalf("resize while rendering: %v", err)
		}
	}
	if w, h := mem.Size(); w != 260 || h != 128 {
		t.Fatalf("expected 260x128; got %dx%d", w, h)
	}
	posts := mem.Posts()
	waitFor(t, "frames after resize", func() bool { return mem.Posts() > posts })

	if !mgr.Running() || mgr.ListenerCount() != 1 {
		t.Fatalf("expected source running with one listener; running=%t listeners=%d", mgr.Running(), mgr.ListenerCount())
	}

	c.SetPaused(true)
	if mgr.Running() || mgr.ListenerCount() != 0 {
		t.Fatal("expected source stopped while paused")
	}
	c.SetPaused(false)
	if !mgr.Running() {
		t.Fatal("expected source restarted on resume")
	}

	if err := c.Unpublish(); err != nil {
		t.Fatal(err)
	}
	if mgr.Running() || mgr.ListenerCount() != 0 {
		t.Fatal("expected source stopped after unpublish")
	}
	if snap := mem.Snapshot(); !inked(snap) {
		t.Fatal("expected the last posted frame to contain text")
	}
}

func inked(img *image.RGBA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0 {
			return true
		}
	}
	return false
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
