package monitor

import (
	"context"
	"log"
	"sync"
	"time"
)

// ControllerConfig holds scheduler timing settings.
type ControllerConfig struct {
	// RetryMin/RetryMax bound the exponential backoff between detector
	// connect attempts.
	RetryMin time.Duration
	RetryMax time.Duration
	// DetectorCheckInterval is the cadence of the heartbeat-timeout
	// self-check. Defaults to 1s.
	DetectorCheckInterval time.Duration
}

// AnalysisDispatcher queues a capture batch for diff analysis. Dispatch
// reports whether the job was accepted.
type AnalysisDispatcher interface {
	Dispatch(roomID string, paths []string) bool
}

// CaptureSummary is the result of a control-plane baseline capture.
type CaptureSummary struct {
	Rooms     int
	Requested int
	Succeeded int
	RoomIDs   []string
}

// AnalyzeSummary is the result of a control-plane analysis trigger.
type AnalyzeSummary struct {
	Rooms       int
	Queued      int
	QueuedFiles int
}

// RoomSnapshot is a read-only view of a room and its cameras.
type RoomSnapshot struct {
	ID      string
	Name    string
	State   RoomState
	Cameras []CameraSnapshot
}

// CameraSnapshot is a read-only view of one camera's status.
type CameraSnapshot struct {
	Name         string
	Status       CameraStatus
	TimeInState  time.Duration
	CaptureCount int64
}

// Controller owns all rooms and runs the scheduler: one goroutine per camera
// poll loop and one per detector session loop, all independent. It also hosts
// the control-plane operations the HTTP layer calls into.
type Controller struct {
	cfg ControllerConfig

	mu      sync.Mutex
	rooms   []*Room
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	captureComplete CaptureCompleteFunc
	dispatcher      AnalysisDispatcher
}

// NewController creates a controller with the given scheduler settings.
func NewController(cfg ControllerConfig) *Controller {
	if cfg.RetryMin <= 0 {
		cfg.RetryMin = time.Second
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 60 * time.Second
	}
	if cfg.DetectorCheckInterval <= 0 {
		cfg.DetectorCheckInterval = time.Second
	}
	return &Controller{cfg: cfg}
}

// SetCaptureComplete registers the controller-level post-processing hook.
// Rooms added afterwards get it wired automatically.
func (c *Controller) SetCaptureComplete(fn CaptureCompleteFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.captureComplete = fn
	for _, room := range c.rooms {
		room.SetCaptureComplete(fn)
	}
}

// SetDispatcher registers the analysis dispatcher used by AnalyzeLatest.
func (c *Controller) SetDispatcher(d AnalysisDispatcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dispatcher = d
}

// AddRoom registers a room and points its capture-complete callback at the
// controller's post-processing. Duplicates are ignored with a warning.
func (c *Controller) AddRoom(room *Room) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.rooms {
		if r == room {
			log.Printf("Room %s already exists in controller", room.Name())
			return
		}
	}
	if c.captureComplete != nil {
		room.SetCaptureComplete(c.captureComplete)
	}
	c.rooms = append(c.rooms, room)
	log.Printf("Added room: %s (ID: %s)", room.Name(), room.ID())
}

// RemoveRoom unregisters a room and cancels its pending capture timer.
func (c *Controller) RemoveRoom(room *Room) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, r := range c.rooms {
		if r == room {
			c.rooms = append(c.rooms[:i], c.rooms[i+1:]...)
			room.SetCaptureComplete(nil)
			room.CancelPendingCapture()
			log.Printf("Removed room: %s (ID: %s)", room.Name(), room.ID())
			return
		}
	}
	log.Printf("Room %s not found in controller", room.Name())
}

// Rooms returns a copy of the registered room list.
func (c *Controller) Rooms() []*Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Room, len(c.rooms))
	copy(out, c.rooms)
	return out
}

// IsRunning reports whether the scheduler is active.
func (c *Controller) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Start launches one task per camera and one per detector across all rooms.
// Calling Start on a running controller is a no-op with a warning.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		log.Println("Controller is already running")
		return
	}
	c.running = true
	ctx, c.cancel = context.WithCancel(ctx)
	rooms := make([]*Room, len(c.rooms))
	copy(rooms, c.rooms)
	c.mu.Unlock()

	started := 0
	for _, room := range rooms {
		for _, camera := range room.Cameras() {
			c.wg.Add(1)
			go c.runCameraLoop(ctx, camera, room)
			started++
		}
		for _, detector := range room.PersonDetectors() {
			c.wg.Add(1)
			go c.runDetectorLoop(ctx, detector)
			started++
		}
	}
	log.Printf("Started RoomController with %d room(s), %d task(s)", len(rooms), started)
}

// runCameraLoop is the periodic per-camera task: poll room occupancy, derive
// target status, emit the rate-limited status line, sleep.
func (c *Controller) runCameraLoop(ctx context.Context, camera *Camera, room *Room) {
	defer c.wg.Done()

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			camera.CheckRoomAndUpdateState(room)
			camera.OutputStatus()
			timer.Reset(camera.PollInterval())
		}
	}
}

// runDetectorLoop is the per-detector task: connect (retrying with bounded
// exponential backoff), subscribe, then self-check heartbeat timeouts until
// shutdown. Each retry re-attempts the full connect -> subscribe sequence.
func (c *Controller) runDetectorLoop(ctx context.Context, detector *PersonDetector) {
	defer c.wg.Done()

	backoff := c.cfg.RetryMin
	for {
		if ctx.Err() != nil {
			return
		}
		if err := detector.Connect(ctx); err != nil {
			log.Printf("Detector %s connect failed, retrying in %s: %v", detector.Name(), backoff, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > c.cfg.RetryMax {
				backoff = c.cfg.RetryMax
			}
			continue
		}
		if err := detector.SubscribeToStates(); err != nil {
			log.Printf("Detector %s subscribe failed, reconnecting in %s: %v", detector.Name(), backoff, err)
			detector.Disconnect()
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > c.cfg.RetryMax {
				backoff = c.cfg.RetryMax
			}
			continue
		}

		backoff = c.cfg.RetryMin
		ticker := time.NewTicker(c.cfg.DetectorCheckInterval)
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				detector.Disconnect()
				return
			case <-ticker.C:
				detector.CheckHeartbeatTimeout()
			}
		}
	}
}

// Shutdown stops the scheduler, cancels pending capture timers and joins all
// tasks with a bounded timeout, logging (not crashing) on stragglers.
func (c *Controller) Shutdown(timeout time.Duration) {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		log.Println("Controller is not running")
		return
	}
	c.running = false
	cancel := c.cancel
	c.cancel = nil
	rooms := make([]*Room, len(c.rooms))
	copy(rooms, c.rooms)
	c.mu.Unlock()

	log.Println("Shutting down RoomController...")
	cancel()
	for _, room := range rooms {
		room.CancelPendingCapture()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Println("RoomController shutdown complete")
	case <-time.After(timeout):
		log.Println("RoomController shutdown timed out waiting for tasks")
	}
}

// matchRooms filters registered rooms by an optional ID.
func (c *Controller) matchRooms(roomID string) []*Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*Room
	for _, room := range c.rooms {
		if roomID == "" || room.ID() == roomID {
			out = append(out, room)
		}
	}
	return out
}

// CaptureBaseline captures a baseline image from every camera in the matched
// rooms. Per-camera capture failures are counted, never raised.
func (c *Controller) CaptureBaseline(ctx context.Context, roomID string) CaptureSummary {
	rooms := c.matchRooms(roomID)
	summary := CaptureSummary{Rooms: len(rooms)}
	for _, room := range rooms {
		summary.Requested += len(room.Cameras())
		artifacts := room.CaptureBaselines(ctx)
		summary.Succeeded += len(artifacts)
		summary.RoomIDs = append(summary.RoomIDs, room.ID())
	}
	return summary
}

// AnalyzeLatest queues each matched room's most recent capture batch for
// diff analysis. Rooms with no captures yet queue nothing.
func (c *Controller) AnalyzeLatest(roomID string) AnalyzeSummary {
	c.mu.Lock()
	dispatcher := c.dispatcher
	c.mu.Unlock()

	rooms := c.matchRooms(roomID)
	summary := AnalyzeSummary{Rooms: len(rooms)}
	if dispatcher == nil {
		return summary
	}
	for _, room := range rooms {
		artifacts := room.LastArtifacts()
		if len(artifacts) == 0 {
			continue
		}
		paths := make([]string, len(artifacts))
		for i, a := range artifacts {
			paths[i] = a.Path
		}
		if dispatcher.Dispatch(room.ID(), paths) {
			summary.Queued++
			summary.QueuedFiles += len(paths)
		}
	}
	return summary
}

// Snapshot returns a read-only view of all rooms for the status API.
func (c *Controller) Snapshot() []RoomSnapshot {
	rooms := c.Rooms()
	out := make([]RoomSnapshot, 0, len(rooms))
	for _, room := range rooms {
		snap := RoomSnapshot{
			ID:    room.ID(),
			Name:  room.Name(),
			State: room.State(),
		}
		for _, cam := range room.Cameras() {
			snap.Cameras = append(snap.Cameras, CameraSnapshot{
				Name:         cam.Name(),
				Status:       cam.Status(),
				TimeInState:  cam.State().TimeInState(),
				CaptureCount: cam.CaptureCount(),
			})
		}
		out = append(out, snap)
	}
	return out
}
