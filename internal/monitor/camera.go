package monitor

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"gel-controller/internal/device"
)

// CameraConfig holds the identity and timing settings for one camera.
type CameraConfig struct {
	Name           string
	RoomID         string
	IP             string
	Port           int
	MAC            string
	URL            string
	PollInterval   time.Duration
	OutputInterval time.Duration
	InitialStatus  CameraStatus
}

// Camera is one camera device. It polls its room's occupancy and derives the
// status it should be in; it never caches occupancy itself. Status is owned
// by the embedded CameraState.
type Camera struct {
	name string
	ip   string
	port int
	mac  string
	url  string

	// roomID is a mutable foreign key: Room.AddCamera rewrites it while the
	// poll loop and control plane read it.
	roomMu sync.Mutex
	roomID string

	state          *CameraState
	pollInterval   time.Duration
	outputInterval time.Duration
	output         *rate.Limiter

	capturer     device.Capturer
	captureCount atomic.Int64

	// occupiedSeen gates double counting: set when the camera observes its
	// room occupied, cleared when a confirmed-empty capture fires.
	occupiedSeen atomic.Bool
}

// NewCamera creates a camera. A zero PollInterval or OutputInterval defaults
// to 10s. The camera starts OFFLINE unless the config says otherwise.
func NewCamera(cfg CameraConfig, capturer device.Capturer) *Camera {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.OutputInterval <= 0 {
		cfg.OutputInterval = 10 * time.Second
	}
	if cfg.InitialStatus == "" {
		cfg.InitialStatus = StatusOffline
	}
	return &Camera{
		name:           cfg.Name,
		roomID:         cfg.RoomID,
		ip:             cfg.IP,
		port:           cfg.Port,
		mac:            cfg.MAC,
		url:            cfg.URL,
		state:          NewCameraState(cfg.InitialStatus),
		pollInterval:   cfg.PollInterval,
		outputInterval: cfg.OutputInterval,
		output:         rate.NewLimiter(rate.Every(cfg.OutputInterval), 1),
		capturer:       capturer,
	}
}

// Name returns the camera name.
func (c *Camera) Name() string { return c.name }

// RoomID returns the owning room's ID.
func (c *Camera) RoomID() string {
	c.roomMu.Lock()
	defer c.roomMu.Unlock()
	return c.roomID
}

// SetRoomID reassigns the camera to another room.
func (c *Camera) SetRoomID(roomID string) {
	c.roomMu.Lock()
	c.roomID = roomID
	c.roomMu.Unlock()
}

// URL returns the device base URL.
func (c *Camera) URL() string { return c.url }

// State returns the camera's state machine.
func (c *Camera) State() *CameraState { return c.state }

// Status returns the current camera status.
func (c *Camera) Status() CameraStatus { return c.state.Status() }

// PollInterval returns the room-poll cadence.
func (c *Camera) PollInterval() time.Duration { return c.pollInterval }

// CaptureCount returns the number of successful captures.
func (c *Camera) CaptureCount() int64 { return c.captureCount.Load() }

// ObservedOccupied reports whether the camera has seen its room occupied
// since the last confirmed-empty capture.
func (c *Camera) ObservedOccupied() bool { return c.occupiedSeen.Load() }

// CheckRoomAndUpdateState polls room occupancy once and requests the
// matching status transition.
//
// Occupied rooms always resolve to INACTIVE: a direct edge to INACTIVE
// exists from every status, so one transition suffices. Empty rooms move the
// camera toward readiness only: OFFLINE, CALIBRATING and ERROR resolve to
// INACTIVE, and the poll loop never drives INACTIVE to ACTIVE. Going live is
// the room's confirmed-empty trigger path, not per-camera polling.
func (c *Camera) CheckRoomAndUpdateState(room *Room) {
	switch room.State() {
	case RoomOccupied:
		c.occupiedSeen.Store(true)
		if c.state.Status() != StatusInactive {
			c.state.TransitionTo(StatusInactive, "room occupied")
		}
	case RoomEmpty:
		switch c.state.Status() {
		case StatusOffline, StatusCalibrating, StatusError:
			c.state.TransitionTo(StatusInactive, "room empty")
		}
		// INACTIVE stays put; ACTIVE/RECORDING keep running.
	}
}

// OutputStatus emits a status line, at most once per output interval and
// only while the camera is ACTIVE. Observation only; no state changes.
func (c *Camera) OutputStatus() {
	if c.state.Status() != StatusActive {
		return
	}
	if !c.output.Allow() {
		return
	}
	log.Printf("[%s] %s active", time.Now().Format("2006-01-02 15:04:05"), c.name)
}

// CaptureImage requests one image from the capture collaborator. On success
// the capture counter is incremented and the stored location returned. Any
// failure is logged and reported as an empty location; capture failures never
// escape into the caller's control flow.
func (c *Camera) CaptureImage(ctx context.Context, tag string) string {
	if c.capturer == nil {
		log.Printf("Camera %s has no capture collaborator configured", c.name)
		return ""
	}
	roomID := c.RoomID()
	location, err := c.capturer.Capture(ctx, device.CaptureRequest{
		CameraName: c.name,
		CameraURL:  c.url,
		RoomID:     roomID,
		Tag:        tag,
	})
	if err != nil {
		log.Printf("Capture failed for camera %s (room %s): %v", c.name, roomID, err)
		return ""
	}
	c.captureCount.Add(1)
	return location
}

// clearOccupiedSeen resets the double-count gate after a confirmed-empty capture.
func (c *Camera) clearOccupiedSeen() {
	c.occupiedSeen.Store(false)
}
