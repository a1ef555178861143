package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hub_config.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, uint16(0x70), cfg.MuxI2CAddr)
	assert.Equal(t, uint16(0x4C), cfg.AccelI2CAddr)
	assert.Equal(t, uint16(0x29), cfg.ToFI2CAddr)
	assert.Equal(t, uint8(7), cfg.ToFPort)
	assert.Equal(t, 5, cfg.WiFiMaxAttempts)
	assert.Equal(t, 1000, cfg.WiFiRetryDelay)
	assert.Empty(t, cfg.MQTTBroker)
	assert.Zero(t, cfg.MonitorPort)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
# hub wiring
I2C_BUS=1
MUX_I2C_ADDR=0x71
ACCEL_I2C_ADDR=0x6C
TOF_PORT=3
LISTEN_ADDR=:4040
WIFI_MAX_ATTEMPTS=3
MQTT_BROKER=tcp://localhost:1883
MONITOR_PORT=8081
DISPLAY_ENABLED=true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "1", cfg.I2CBus)
	assert.Equal(t, uint16(0x71), cfg.MuxI2CAddr)
	assert.Equal(t, uint16(0x6C), cfg.AccelI2CAddr)
	assert.Equal(t, uint16(0x29), cfg.ToFI2CAddr, "untouched keys keep defaults")
	assert.Equal(t, uint8(3), cfg.ToFPort)
	assert.Equal(t, ":4040", cfg.ListenAddr)
	assert.Equal(t, 3, cfg.WiFiMaxAttempts)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTBroker)
	assert.Equal(t, "hub/frames", cfg.TopicFrames)
	assert.Equal(t, 8081, cfg.MonitorPort)
	assert.True(t, cfg.DisplayEnabled)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing equals", "I2C_BUS\n"},
		{"unknown key", "FOO=bar\n"},
		{"tof port out of range", "TOF_PORT=8\n"},
		{"address too wide", "ACCEL_I2C_ADDR=0x80\n"},
		{"zero attempts", "WIFI_MAX_ATTEMPTS=0\n"},
		{"mux collides with accel", "MUX_I2C_ADDR=0x4C\n"},
		{"bad bool", "DISPLAY_ENABLED=maybe\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_FileNotExists(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestLoad_ExampleFile(t *testing.T) {
	cfg, err := Load("../../hub_config.txt")
	require.NoError(t, err)

	want := Default()
	want.MonitorPort = 8080
	assert.Equal(t, want, cfg)
}
