package card

import (
	"errors"
	"fmt"
	"sync"

	"github.com/relabs-tech/racehud/internal/hud"
	"github.com/relabs-tech/racehud/internal/log"
)

// ErrNotPublished is returned by operations that need a published card.
var ErrNotPublished = errors.New("card: not published")

// Surface is a presentable buffer the card can attach and tear down.
type Surface interface {
	hud.SurfaceHolder
	Size() (width, height int)
	Attach() error
	Release() error
}

// LiveCard publishes a Surface and delivers its lifecycle to a callback.
// All callbacks are delivered under the card's lock, so the callback never
// sees two notifications at once.
type LiveCard struct {
	tag      string
	surface  Surface
	callback hud.Callback
	log      log.Logger

	mu        sync.Mutex
	published bool
	paused    bool
}

// New returns an unpublished card.
func New(tag string, surface Surface, callback hud.Callback) *LiveCard {
	return &LiveCard{
		tag:      tag,
		surface:  surface,
		callback: callback,
		log:      log.New("card"),
	}
}

// Publish attaches the surface and reports it created. A card published
// paused reports the pause before the surface, so the callback never starts
// drawing. Publishing an already published card navigates to it instead.
func (c *LiveCard) Publish() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.published {
		c.navigate()
		return nil
	}

	c.log.Infof("publishing %s", c.tag)
	if err := c.surface.Attach(); err != nil {
		return fmt.Errorf("attach surface: %w", err)
	}
	c.published = true

	w, h := c.surface.Size()
	if c.paused {
		c.callback.RenderingPaused(c.surface, true)
	}
	c.callback.SurfaceCreated(c.surface, w, h)
	c.callback.SurfaceChanged(c.surface, 0, w, h)
	c.log.Infof("done publishing %s (%dx%d)", c.tag, w, h)
	return nil
}

// navigate brings a published card back to the foreground. c.mu must be held.
func (c *LiveCard) navigate() {
	c.log.Infof("navigating to %s", c.tag)
	if c.paused {
		c.paused = false
		c.callback.RenderingPaused(c.surface, false)
	}
}

// SetPaused reports a visibility change. Repeating the current state is a
// no-op. While unpublished the state is remembered for the next Publish.
func (c *LiveCard) SetPaused(paused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.paused == paused {
		return
	}
	c.paused = paused
	if c.published {
		c.callback.RenderingPaused(c.surface, paused)
	}
}

// Resize reports new surface geometry to the callback. Surfaces that can
// be resized wait for an in-flight frame to be posted first.
func (c *LiveCard) Resize(width, height int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.published {
		return ErrNotPublished
	}
	if r, ok := c.surface.(interface{ Resize(w, h int) error }); ok {
		if err := r.Resize(width, height); err != nil {
			return fmt.Errorf("resize surface: %w", err)
		}
	}
	w, h := c.surface.Size()
	c.callback.SurfaceChanged(c.surface, 0, w, h)
	return nil
}

// Unpublish releases the surface and then reports it destroyed, so a draw
// racing with teardown fails its lock instead of touching a dead surface.
func (c *LiveCard) Unpublish() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.published {
		return ErrNotPublished
	}
	c.log.Infof("unpublishing %s", c.tag)
	c.published = false

	err := c.surface.Release()
	c.callback.SurfaceDestroyed(c.surface)
	if err != nil {
		return fmt.Errorf("release surface: %w", err)
	}
	return nil
}

// Published reports whether the card is currently shown.
func (c *LiveCard) Published() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.published
}
