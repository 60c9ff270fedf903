// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package surface

import (
	"errors"
	"image"
	"image/draw"
	"sync"
)

var (
	// ErrReleased is returned when locking a surface the host has torn down.
	ErrReleased = errors.New("surface: released")
	// ErrLocked is returned when the canvas is already handed out.
	ErrLocked = errors.New("surface: canvas already locked")
	// ErrNotLocked is returned when posting a canvas that was not locked.
	ErrNotLocked = errors.New("surface: canvas not locked")
)

// Memory is a double-buffered RGBA surface. Posted frames are copied to a
// front buffer that Snapshot reads.
type Memory struct {
	mu       sync.Mutex
	unlocked *sync.Cond // signaled when the canvas comes back
	back     *image.RGBA
	front    *image.RGBA
	locked   bool
	released bool
	posts    int
}

// NewMemory returns an attached surface of the given size.
func NewMemory(width, height int) *Memory {
	r := image.Rect(0, 0, width, height)
	m := &Memory{back: image.NewRGBA(r), front: image.NewRGBA(r)}
	m.unlocked = sync.NewCond(&m.mu)
	return m
}

func (m *Memory) Size() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.back.Bounds()
	return b.Dx(), b.Dy()
}

// LockCanvas hands out the back buffer until UnlockCanvasAndPost.
func (m *Memory) LockCanvas() (draw.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released {
		return nil, ErrReleased
	}
	if m.locked {
		return nil, ErrLocked
	}
	m.locked = true
	return m.back, nil
}

func (m *Memory) UnlockCanvasAndPost(canvas draw.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.locked || canvas != draw.Image(m.back) {
		return ErrNotLocked
	}
	m.locked = false
	m.unlocked.Broadcast()
	if m.released {
		return ErrReleased
	}
	copy(m.front.Pix, m.back.Pix)
	m.posts++
	return nil
}

// Attach makes the surface lockable again after Release.
func (m *Memory) Attach() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = false
	return nil
}

// Release tears the surface down; later locks fail with ErrReleased.
func (m *Memory) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = true
	return nil
}

// Resize reallocates both buffers. A locked canvas is waited for, so the
// frame being drawn is posted at the old size.
func (m *Memory) Resize(width, height int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.locked {
		m.unlocked.Wait()
	}
	r := image.Rect(0, 0, width, height)
	m.back = image.NewRGBA(r)
	m.front = image.NewRGBA(r)
	return nil
}

// Snapshot returns a copy of the last posted frame.
func (m *Memory) Snapshot() *image.RGBA {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := image.NewRGBA(m.front.Bounds())
	copy(out.Pix, m.front.Pix)
	return out
}

// Posts returns the number of frames posted so far.
func (m *Memory) Posts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.posts
}
