// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package surface

import (
	"fmt"
	"image"
	"image/draw"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/racehud/internal/log"
)

// panel is the part of *ssd1306.Dev the surface drives.
type panel interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
	Halt() error
}

// OLED presents frames on an SSD1306 panel. Frames are drawn into an RGBA
// canvas and every pixel with alpha of at least one half is lit; unlit
// pixels are see-through on the HUD combiner.
type OLED struct {
	log  log.Logger
	dev  panel
	bus  i2c.BusCloser
	mask *image1bit.VerticalLSB

	mu       sync.Mutex
	canvas   *image.RGBA
	locked   bool
	released bool
}

// OpenOLED initializes periph, opens the I2C bus (busName "" picks the
// first one) and the panel at its default address.
func OpenOLED(busName string) (*OLED, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus: %w", err)
	}

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("failed to initialize display: %w", err)
	}

	o := newOLED(dev)
	o.bus = bus
	w, h := o.Size()
	o.log.Infof("display initialized on bus %q (%dx%d)", busName, w, h)
	return o, nil
}

func newOLED(dev panel) *OLED {
	b := dev.Bounds()
	return &OLED{
		log:    log.New("oled"),
		dev:    dev,
		mask:   image1bit.NewVerticalLSB(b),
		canvas: image.NewRGBA(b),
	}
}

func (o *OLED) Size() (int, int) {
	b := o.dev.Bounds()
	return b.Dx(), b.Dy()
}

func (o *OLED) LockCanvas() (draw.Image, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.released {
		return nil, ErrReleased
	}
	if o.locked {
		return nil, ErrLocked
	}
	o.locked = true
	return o.canvas, nil
}

func (o *OLED) UnlockCanvasAndPost(canvas draw.Image) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.locked || canvas != draw.Image(o.canvas) {
		return ErrNotLocked
	}
	o.locked = false
	if o.released {
		return ErrReleased
	}

	alphaToMask(o.canvas, o.mask)
	return o.dev.Draw(o.dev.Bounds(), o.mask, image.Point{})
}

// Attach makes the panel lockable again after Release.
func (o *OLED) Attach() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.released = false
	return nil
}

// Release blanks the panel; later locks fail with ErrReleased.
func (o *OLED) Release() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.released {
		return nil
	}
	o.released = true

	for i := range o.mask.Pix {
		o.mask.Pix[i] = 0
	}
	if err := o.dev.Draw(o.dev.Bounds(), o.mask, image.Point{}); err != nil {
		return fmt.Errorf("blank display: %w", err)
	}
	return nil
}

// Close halts the panel and closes the bus.
func (o *OLED) Close() error {
	err := o.dev.Halt()
	if o.bus != nil {
		if cerr := o.bus.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func alphaToMask(src *image.RGBA, dst *image1bit.VerticalLSB) {
	b := dst.Bounds().Intersect(src.Bounds())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			a := src.Pix[src.PixOffset(x, y)+3]
			dst.SetBit(x, y, image1bit.Bit(a >= 0x80))
		}
	}
}
