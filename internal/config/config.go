// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// I2C Hardware
	I2CBus       string // periph bus name, "" selects the first available bus
	MuxI2CAddr   uint16
	AccelI2CAddr uint16
	ToFI2CAddr   uint16
	ToFPort      uint8 // multiplexer port the ToF sensor is wired to (0-7)

	// Socket server
	ListenAddr string

	// Network / WiFi
	CredentialsFile string
	APSSID          string
	APPassword      string
	WiFiInterface   string
	WiFiMaxAttempts int
	WiFiRetryDelay  int // milliseconds

	// MQTT frame mirror (optional, disabled when MQTTBroker is empty)
	MQTTBroker   string
	MQTTClientID string
	TopicFrames  string

	// Live monitor (optional, disabled when 0)
	MonitorPort int

	// Status display
	DisplayEnabled bool

	// Serial log console (optional)
	LogSerialPort string
	LogSerialBaud int
}

// Package-level singleton, same contract as before: InitGlobal sets, Get reads.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a configuration matching the reference wiring.
func Default() *Config {
	return &Config{
		I2CBus:          "",
		MuxI2CAddr:      0x70,
		AccelI2CAddr:    0x4C,
		ToFI2CAddr:      0x29,
		ToFPort:         7,
		ListenAddr:      ":80",
		CredentialsFile: "./cnt.txt",
		APSSID:          "TheConductor",
		APPassword:      "conductor",
		WiFiInterface:   "wlan0",
		WiFiMaxAttempts: 5,
		WiFiRetryDelay:  1000,
		MQTTClientID:    "sensor-hub",
		TopicFrames:     "hub/frames",
		LogSerialBaud:   115200,
	}
}

// Load reads the configuration file and returns a Config struct.
// Keys missing from the file keep their Default value.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
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
	// I2C Hardware
	case "I2C_BUS":
		c.I2CBus = value
	case "MUX_I2C_ADDR":
		addr, err := parseI2CAddr(key, value)
		if err != nil {
			return err
		}
		c.MuxI2CAddr = addr
	case "ACCEL_I2C_ADDR":
		addr, err := parseI2CAddr(key, value)
		if err != nil {
			return err
		}
		c.AccelI2CAddr = addr
	case "TOF_I2C_ADDR":
		addr, err := parseI2CAddr(key, value)
		if err != nil {
			return err
		}
		c.ToFI2CAddr = addr
	case "TOF_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid TOF_PORT %q: %w", value, err)
		}
		if port < 0 || port > 7 {
			return fmt.Errorf("TOF_PORT must be 0-7, got %d", port)
		}
		c.ToFPort = uint8(port)

	// Socket server
	case "LISTEN_ADDR":
		c.ListenAddr = value

	// Network / WiFi
	case "CREDENTIALS_FILE":
		c.CredentialsFile = value
	case "AP_SSID":
		c.APSSID = value
	case "AP_PASSWORD":
		c.APPassword = value
	case "WIFI_INTERFACE":
		c.WiFiInterface = value
	case "WIFI_MAX_ATTEMPTS":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WIFI_MAX_ATTEMPTS %q: %w", value, err)
		}
		if n < 1 {
			return fmt.Errorf("WIFI_MAX_ATTEMPTS must be at least 1, got %d", n)
		}
		c.WiFiMaxAttempts = n
	case "WIFI_RETRY_DELAY_MS":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WIFI_RETRY_DELAY_MS %q: %w", value, err)
		}
		if ms < 0 {
			return fmt.Errorf("WIFI_RETRY_DELAY_MS must not be negative, got %d", ms)
		}
		c.WiFiRetryDelay = ms

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "TOPIC_FRAMES":
		c.TopicFrames = value

	// Monitor
	case "MONITOR_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MONITOR_PORT %q: %w", value, err)
		}
		if port < 0 || port > 65535 {
			return fmt.Errorf("MONITOR_PORT must be 0-65535, got %d", port)
		}
		c.MonitorPort = port

	// Display
	case "DISPLAY_ENABLED":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_ENABLED %q: %w", value, err)
		}
		c.DisplayEnabled = enabled

	// Serial log console
	case "LOG_SERIAL_PORT":
		c.LogSerialPort = value
	case "LOG_SERIAL_BAUD":
		baud, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid LOG_SERIAL_BAUD %q: %w", value, err)
		}
		c.LogSerialBaud = baud

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

func parseI2CAddr(key, value string) (uint16, error) {
	addr, err := strconv.ParseUint(value, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if addr > 0x7F {
		return 0, fmt.Errorf("%s must be a 7-bit address, got 0x%X", key, addr)
	}
	return uint16(addr), nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("LISTEN_ADDR is required")
	}
	if c.CredentialsFile == "" {
		return fmt.Errorf("CREDENTIALS_FILE is required")
	}
	if c.APSSID == "" {
		return fmt.Errorf("AP_SSID is required")
	}
	if c.MuxI2CAddr == c.AccelI2CAddr || c.MuxI2CAddr == c.ToFI2CAddr {
		return fmt.Errorf("MUX_I2C_ADDR 0x%02X collides with a sensor address", c.MuxI2CAddr)
	}
	if c.MQTTBroker != "" && c.TopicFrames == "" {
		return fmt.Errorf("TOPIC_FRAMES is required when MQTT_BROKER is set")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Only the first call has any effect.
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
