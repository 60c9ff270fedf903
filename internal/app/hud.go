// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/racehud/internal/card"
	"github.com/relabs-tech/racehud/internal/config"
	"github.com/relabs-tech/racehud/internal/gps"
	"github.com/relabs-tech/racehud/internal/hud"
	"github.com/relabs-tech/racehud/internal/log"
	"github.com/relabs-tech/racehud/internal/surface"
)

const liveCardTag = "RaceHUD"

// HUDOptions are the command line switches of the hud binary.
type HUDOptions struct {
	StartPaused bool
}

// hudSurface is a card surface that may hold hardware to close.
type hudSurface interface {
	card.Surface
	Close() error
}

type memorySurface struct {
	*surface.Memory
}

func (memorySurface) Close() error { return nil }

// NewFeed builds the configured speed feed.
func NewFeed(cfg *config.Config) (gps.Feed, error) {
	switch cfg.SpeedSource {
	case config.SourceSerial:
		return gps.NewSerialFeed(cfg.GPSSerialPort, cfg.GPSBaudRate), nil
	case config.SourceMQTT:
		return gps.NewMQTTFeed(cfg.MQTTBroker, cfg.MQTTClientIDHUD, cfg.TopicGPS), nil
	case config.SourceMock:
		return gps.NewMockFeed(time.Duration(cfg.MockSpeedInterval) * time.Millisecond), nil
	}
	return nil, fmt.Errorf("unknown speed source %q", cfg.SpeedSource)
}

func newSurface(cfg *config.Config) (hudSurface, error) {
	switch cfg.Surface {
	case config.SurfaceOLED:
		return surface.OpenOLED(cfg.DisplayI2CBus)
	case config.SurfaceMemory:
		return memorySurface{surface.NewMemory(cfg.DisplayWidth, cfg.DisplayHeight)}, nil
	}
	return nil, fmt.Errorf("unknown surface %q", cfg.Surface)
}

// NewResources maps the display strings from config onto the default look.
func NewResources(cfg *config.Config) hud.Resources {
	res := hud.DefaultResources()
	res.Placeholder = cfg.HUDPlaceholder
	res.UnitLabel = cfg.HUDUnitLabel
	return res
}

// RunHUD publishes the speed card and keeps it up until SIGINT/SIGTERM.
// SIGUSR1 pauses rendering (display off) and SIGUSR2 resumes it.
func RunHUD(opts HUDOptions) error {
	cfg := config.Get()
	logger := log.New("racehud")

	feed, err := NewFeed(cfg)
	if err != nil {
		return err
	}
	manager := gps.NewManager(feed)

	surf, err := newSurface(cfg)
	if err != nil {
		return err
	}
	defer surf.Close()

	renderer := hud.NewRenderer(NewResources(cfg), manager)
	liveCard := card.New(liveCardTag, surf, renderer)
	liveCard.SetPaused(opts.StartPaused)

	if err := liveCard.Publish(); err != nil {
		return fmt.Errorf("publish card: %w", err)
	}
	logger.Noticef("speed card up (source=%s, surface=%s, %d fps)", cfg.SpeedSource, cfg.Surface, hud.RefreshRateFPS)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigCh)

	for sig := range sigCh {
		switch sig {
		case syscall.SIGUSR1:
			logger.Infof("pausing")
			liveCard.SetPaused(true)
		case syscall.SIGUSR2:
			logger.Infof("resuming")
			if err := liveCard.Publish(); err != nil {
				logger.Errorf("resume failed: %v", err)
			}
		default:
			logger.Noticef("stop requested (%v)", sig)
			return liveCard.Unpublish()
		}
	}
	return nil
}
