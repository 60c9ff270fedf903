package hud

import (
	"image"
	"image/color"
	"image/draw"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/inconsolata"

	"github.com/relabs-tech/racehud/internal/gps"
	"github.com/relabs-tech/racehud/internal/log"
)

// RefreshRateFPS is the refresh rate of the speedometer.
const RefreshRateFPS = 45

// FrameTime is the duration of one frame.
const FrameTime = time.Second / RefreshRateFPS

// SurfaceHolder gives exclusive, short-lived access to a presentable buffer.
// LockCanvas may return a nil canvas when the surface is not ready.
type SurfaceHolder interface {
	LockCanvas() (draw.Image, error)
	UnlockCanvasAndPost(canvas draw.Image) error
}

// Callback receives surface lifecycle notifications from the host.
// Calls are serialized by the host.
type Callback interface {
	SurfaceCreated(holder SurfaceHolder, width, height int)
	SurfaceChanged(holder SurfaceHolder, format, width, height int)
	SurfaceDestroyed(holder SurfaceHolder)
	RenderingPaused(holder SurfaceHolder, paused bool)
}

// SpeedSource is the positioning collaborator the renderer subscribes to
// while it is drawing.
type SpeedSource interface {
	Start() error
	Stop() error
	AddOnChangedListener(l gps.Listener)
	RemoveOnChangedListener(l gps.Listener)
	HasLocation() bool
	Speed() (float64, bool)
}

// Resources are the display strings and styling the renderer draws with.
type Resources struct {
	Placeholder string // shown until there is a fix
	UnitLabel   string

	SpeedFace  font.Face
	LabelFace  font.Face
	SpeedColor color.Color
	LabelColor color.Color
}

// DefaultResources returns the stock look: red speed over a white unit label.
func DefaultResources() Resources {
	return Resources{
		Placeholder: "--.-",
		UnitLabel:   "MPH",
		SpeedFace:   inconsolata.Bold8x16,
		LabelFace:   basicfont.Face7x13,
		SpeedColor:  color.RGBA{R: 0xff, A: 0xff},
		LabelColor:  color.White,
	}
}

// Renderer draws the latest speed into a host surface at a fixed frame rate
// while the surface exists and is not paused.
type Renderer struct {
	res    Resources
	source SpeedSource
	log    log.Logger

	// written by the source listener, read by the frame thread
	speedText atomic.Pointer[string]
	// written by lifecycle callbacks, read by the frame thread
	center atomic.Pointer[image.Point]

	listener *speedListener

	// lifecycle state, owned by the callback goroutine
	mu     sync.Mutex
	holder SurfaceHolder
	paused bool
	thread *renderThread
	starts int
	stops  int

	// frame counters, written by the frame thread
	posted  atomic.Int64
	skipped atomic.Int64

	now   func() time.Time
	sleep func(d time.Duration, quit <-chan struct{}) bool
}

var _ Callback = (*Renderer)(nil)

// NewRenderer returns an idle renderer. It starts drawing once the host
// reports a surface.
func NewRenderer(res Resources, source SpeedSource) *Renderer {
	def := DefaultResources()
	if res.SpeedFace == nil {
		res.SpeedFace = def.SpeedFace
	}
	if res.LabelFace == nil {
		res.LabelFace = def.LabelFace
	}
	if res.SpeedColor == nil {
		res.SpeedColor = def.SpeedColor
	}
	if res.LabelColor == nil {
		res.LabelColor = def.LabelColor
	}

	r := &Renderer{
		res:    res,
		source: source,
		log:    log.New("hud"),
		now:    time.Now,
		sleep:  sleepOrQuit,
	}
	r.listener = &speedListener{r: r}
	r.speedText.Store(&res.Placeholder)
	r.center.Store(&image.Point{})
	return r
}

func (r *Renderer) SurfaceChanged(_ SurfaceHolder, _, width, height int) {
	r.center.Store(&image.Point{X: width / 2, Y: height / 2})
}

func (r *Renderer) SurfaceCreated(holder SurfaceHolder, width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.center.Store(&image.Point{X: width / 2, Y: height / 2})
	r.holder = holder
	r.updateRenderingState()
}

func (r *Renderer) SurfaceDestroyed(_ SurfaceHolder) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.holder = nil
	r.updateRenderingState()
}

func (r *Renderer) RenderingPaused(_ SurfaceHolder, paused bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.paused = paused
	r.updateRenderingState()
}

// updateRenderingState starts or stops rendering so that it matches the
// surface state. r.mu must be held.
func (r *Renderer) updateRenderingState() {
	shouldRender := r.holder != nil && !r.paused
	isRendering := r.thread != nil

	if shouldRender == isRendering {
		return
	}

	if shouldRender {
		r.startRendering()
	} else {
		r.stopRendering()
	}
}

func (r *Renderer) startRendering() {
	r.starts++
	r.source.AddOnChangedListener(r.listener)
	if err := r.source.Start(); err != nil {
		// keep drawing the placeholder; Stop still runs on teardown
		r.log.Errorf("speed source start failed: %v", err)
	}
	if r.source.HasLocation() {
		if mps, ok := r.source.Speed(); ok {
			r.storeReading(gps.Reading{HasFix: true, SpeedMPS: mps})
		}
	}

	r.thread = newRenderThread()
	go r.thread.run(r.holder, r)
	r.log.Debugf("rendering started")
}

func (r *Renderer) stopRendering() {
	r.stops++
	r.thread.quit()
	r.thread = nil

	r.source.RemoveOnChangedListener(r.listener)
	if err := r.source.Stop(); err != nil {
		r.log.Errorf("speed source stop failed: %v", err)
	}
	r.log.Debugf("rendering stopped")
}

// rendering reports whether a frame thread is alive.
func (r *Renderer) rendering() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.thread != nil
}

func (r *Renderer) storeReading(reading gps.Reading) {
	text := FormatSpeed(reading, r.res.Placeholder)
	r.speedText.Store(&text)
}

// speedListener has identity so it can be removed from the source again.
type speedListener struct {
	r *Renderer
}

func (l *speedListener) OnLocationChanged(reading gps.Reading) {
	l.r.storeReading(reading)
}
