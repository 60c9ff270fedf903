package hud

import (
	"sync"
	"time"
)

// renderThread redraws the surface in the background until quit is called.
type renderThread struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newRenderThread() *renderThread {
	return &renderThread{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// shouldRun reports whether the thread should continue to run.
func (t *renderThread) shouldRun() bool {
	select {
	case <-t.stop:
		return false
	default:
		return true
	}
}

// quit asks the thread to exit and waits until it has. Safe to call more
// than once.
func (t *renderThread) quit() {
	t.stopOnce.Do(func() { close(t.stop) })
	<-t.done
}

func (t *renderThread) run(holder SurfaceHolder, r *Renderer) {
	defer close(t.done)

	for t.shouldRun() {
		frameStart := r.now()
		r.draw(holder)
		frameLength := r.now().Sub(frameStart)

		if !r.sleep(sleepTime(FrameTime, frameLength), t.stop) {
			return
		}
	}
}

// sleepTime is what is left of the frame budget after drawing. An overrun
// is not carried over to the next frame.
func sleepTime(budget, frameLength time.Duration) time.Duration {
	if d := budget - frameLength; d > 0 {
		return d
	}
	return 0
}

// sleepOrQuit sleeps for d and reports false if quit closed first.
func sleepOrQuit(d time.Duration, quit <-chan struct{}) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-quit:
		return false
	case <-timer.C:
		return true
	}
}
