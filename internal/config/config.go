// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/relabs-tech/racehud/internal/log"
)

// Speed sources selectable with SPEED_SOURCE.
const (
	SourceSerial = "serial"
	SourceMQTT   = "mqtt"
	SourceMock   = "mock"
)

// Surfaces selectable with HUD_SURFACE.
const (
	SurfaceOLED   = "oled"
	SurfaceMemory = "memory"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker      string
	MQTTClientIDHUD string
	MQTTClientIDGPS string
	TopicGPS        string

	// Speed source
	SpeedSource       string // "serial", "mqtt" or "mock"
	GPSSerialPort     string
	GPSBaudRate       int
	MockSpeedInterval int // milliseconds

	// Display
	Surface        string // "oled" or "memory"
	DisplayI2CBus  string // periph bus name, "" opens the first bus
	DisplayWidth   int
	DisplayHeight  int
	HUDPlaceholder string // shown while there is no fix
	HUDUnitLabel   string

	LogLevel log.Level
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a configuration with every key set to its default.
func Default() *Config {
	return &Config{
		MQTTBroker:        "tcp://localhost:1883",
		MQTTClientIDHUD:   "racehud-display",
		MQTTClientIDGPS:   "racehud-gps-producer",
		TopicGPS:          "racehud/gps",
		SpeedSource:       SourceSerial,
		GPSSerialPort:     "/dev/serial0",
		GPSBaudRate:       9600,
		MockSpeedInterval: 200,
		Surface:           SurfaceOLED,
		DisplayWidth:      128,
		DisplayHeight:     64,
		HUDPlaceholder:    "--.-",
		HUDUnitLabel:      "MPH",
		LogLevel:          log.Info,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads KEY=VALUE lines from r on top of Default.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_HUD":
		c.MQTTClientIDHUD = value
	case "MQTT_CLIENT_ID_GPS":
		c.MQTTClientIDGPS = value
	case "TOPIC_GPS":
		c.TopicGPS = value

	// Speed source
	case "SPEED_SOURCE":
		c.SpeedSource = strings.ToLower(value)
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GPS_BAUD_RATE %q: %w", value, err)
		}
		c.GPSBaudRate = rate
	case "MOCK_SPEED_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MOCK_SPEED_INTERVAL %q: %w", value, err)
		}
		c.MockSpeedInterval = interval

	// Display
	case "HUD_SURFACE":
		c.Surface = strings.ToLower(value)
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_WIDTH":
		w, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_WIDTH %q: %w", value, err)
		}
		c.DisplayWidth = w
	case "DISPLAY_HEIGHT":
		h, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_HEIGHT %q: %w", value, err)
		}
		c.DisplayHeight = h
	case "HUD_PLACEHOLDER":
		c.HUDPlaceholder = value
	case "HUD_UNIT_LABEL":
		c.HUDUnitLabel = value

	case "LOG_LEVEL":
		level, err := log.ParseLevel(value)
		if err != nil {
			return fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		c.LogLevel = level

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that the combination of values is usable.
func (c *Config) validate() error {
	switch c.SpeedSource {
	case SourceSerial:
		if c.GPSSerialPort == "" {
			return fmt.Errorf("GPS_SERIAL_PORT is required for SPEED_SOURCE=serial")
		}
		if c.GPSBaudRate <= 0 {
			return fmt.Errorf("GPS_BAUD_RATE must be positive, got %d", c.GPSBaudRate)
		}
	case SourceMQTT:
		if c.MQTTBroker == "" {
			return fmt.Errorf("MQTT_BROKER is required for SPEED_SOURCE=mqtt")
		}
		if c.TopicGPS == "" {
			return fmt.Errorf("TOPIC_GPS is required for SPEED_SOURCE=mqtt")
		}
	case SourceMock:
		if c.MockSpeedInterval <= 0 {
			return fmt.Errorf("MOCK_SPEED_INTERVAL must be positive, got %d", c.MockSpeedInterval)
		}
	default:
		return fmt.Errorf("SPEED_SOURCE must be serial, mqtt or mock, got %q", c.SpeedSource)
	}

	switch c.Surface {
	case SurfaceOLED, SurfaceMemory:
	default:
		return fmt.Errorf("HUD_SURFACE must be oled or memory, got %q", c.Surface)
	}
	if c.DisplayWidth <= 0 || c.DisplayHeight <= 0 {
		return fmt.Errorf("display geometry must be positive, got %dx%d", c.DisplayWidth, c.DisplayHeight)
	}
	if c.HUDUnitLabel == "" {
		return fmt.Errorf("HUD_UNIT_LABEL is required")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Only the first call loads the file; later calls are no-ops.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
