package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 9000\n"))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.BindAddress)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 30, cfg.Capture.DelaySeconds)
	assert.Equal(t, 30*time.Second, cfg.Capture.Delay)
	assert.Equal(t, time.Second, cfg.Detector.RetryMin)
	assert.Equal(t, 60*time.Second, cfg.Detector.RetryMax)
	assert.Equal(t, 1, cfg.WorkerPool.Size)
}

func TestLoadRoomCaptureDelayFallback(t *testing.T) {
	body := `
capture:
  delay_seconds: 45
rooms:
  - id: r1
    name: Lab
  - id: r2
    name: Annex
    capture_delay_seconds: 10
`
	cfg, err := Load(writeConfig(t, body))
	require.NoError(t, err)
	require.Len(t, cfg.Rooms, 2)

	// a room without its own window inherits the capture-level delay
	assert.Equal(t, 45, cfg.Rooms[0].CaptureDelaySeconds)
	assert.Equal(t, 10, cfg.Rooms[1].CaptureDelaySeconds)
	assert.Equal(t, "empty", cfg.Rooms[0].InitialState)
}

func TestLoadDeviceDefaults(t *testing.T) {
	body := `
rooms:
  - id: r1
    name: Lab
    cameras:
      - name: cam-a
    detectors:
      - name: det-a
`
	cfg, err := Load(writeConfig(t, body))
	require.NoError(t, err)
	require.Len(t, cfg.Rooms, 1)

	assert.Equal(t, float64(10), cfg.Rooms[0].Cameras[0].PollIntervalSeconds)
	assert.Equal(t, float64(10), cfg.Rooms[0].Cameras[0].OutputIntervalSeconds)
	assert.Equal(t, 6053, cfg.Rooms[0].Detectors[0].Port)
	assert.Equal(t, float64(10), cfg.Rooms[0].Detectors[0].HeartbeatTimeoutSeconds)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
