package monitor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// RoomState is the occupancy state of a room.
type RoomState string

const (
	RoomEmpty    RoomState = "empty"
	RoomOccupied RoomState = "occupied"
)

// CaptureArtifact is one stored image produced by a capture batch.
type CaptureArtifact struct {
	CameraName string
	Path       string
	CapturedAt time.Time
}

// CaptureCompleteFunc receives the artifacts of a finished capture batch.
type CaptureCompleteFunc func(room *Room, artifacts []CaptureArtifact)

// Room is the authoritative occupancy state for a physical space. Detectors
// write its state, cameras read it, and the room itself owns the delayed
// "confirmed empty" capture trigger. All occupancy mutation goes through
// SetState; no device holds its own copy of occupancy.
//
// Aggregation across multiple detectors is OR-on-occupied and
// last-writer-on-empty: any detector's heartbeat flips the room to occupied,
// and whichever detector times out most recently flips it back to empty.
// There is no cross-detector quorum.
type Room struct {
	id   string
	name string

	mu            sync.Mutex
	state         RoomState
	cameras       []*Camera
	detectors     []*PersonDetector
	captureDelay  time.Duration
	captureTimer  *time.Timer
	timerGen      uint64
	lastArtifacts []CaptureArtifact

	onCaptureComplete CaptureCompleteFunc
}

// NewRoom creates a room with an explicit initial state.
func NewRoom(id, name string, initial RoomState, captureDelay time.Duration) (*Room, error) {
	if initial != RoomEmpty && initial != RoomOccupied {
		return nil, fmt.Errorf("invalid room state: %q (must be %q or %q)", initial, RoomEmpty, RoomOccupied)
	}
	if captureDelay <= 0 {
		captureDelay = 30 * time.Second
	}
	return &Room{
		id:           id,
		name:         name,
		state:        initial,
		captureDelay: captureDelay,
	}, nil
}

// ID returns the room's stable identifier.
func (r *Room) ID() string { return r.id }

// Name returns the room's display name.
func (r *Room) Name() string { return r.name }

// State returns the current occupancy state.
func (r *Room) State() RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// CaptureDelay returns the confirmed-empty window.
func (r *Room) CaptureDelay() time.Duration { return r.captureDelay }

// SetCaptureComplete registers the callback invoked after each capture batch.
func (r *Room) SetCaptureComplete(fn CaptureCompleteFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onCaptureComplete = fn
}

// SetState transitions room occupancy. Values outside {empty, occupied} are
// rejected without mutation. A change to occupied cancels any pending
// delayed-capture timer; a change to empty arms one (cancel-and-replace, so
// at most one timer is ever pending). Same-state assignment is a no-op.
func (r *Room) SetState(state RoomState) error {
	if state != RoomEmpty && state != RoomOccupied {
		return fmt.Errorf("invalid room state: %q (must be %q or %q)", state, RoomEmpty, RoomOccupied)
	}

	r.mu.Lock()
	old := r.state
	if old == state {
		r.mu.Unlock()
		return nil
	}
	r.state = state

	r.timerGen++
	gen := r.timerGen
	if r.captureTimer != nil {
		r.captureTimer.Stop()
		r.captureTimer = nil
	}
	if state == RoomEmpty {
		r.captureTimer = time.AfterFunc(r.captureDelay, func() {
			r.fireDelayedCapture(gen)
		})
	}
	r.mu.Unlock()

	log.Printf("Room %s state changed: %s -> %s", r.name, old, state)
	return nil
}

// fireDelayedCapture runs when the confirmed-empty window elapses without
// re-occupancy. The generation check drops stale fires that raced a cancel.
func (r *Room) fireDelayedCapture(gen uint64) {
	r.mu.Lock()
	if gen != r.timerGen || r.state != RoomEmpty {
		r.mu.Unlock()
		return
	}
	r.captureTimer = nil
	r.mu.Unlock()

	log.Printf("Room %s confirmed empty after %s, capturing baselines", r.name, r.captureDelay)
	r.CaptureBaselines(context.Background())
}

// CaptureBaselines activates each camera (the explicit go-live command),
// requests one baseline capture per camera and invokes the capture-complete
// callback with whatever artifacts were produced, regardless of individual
// capture failures. Returns the artifacts.
func (r *Room) CaptureBaselines(ctx context.Context) []CaptureArtifact {
	r.mu.Lock()
	cameras := make([]*Camera, len(r.cameras))
	copy(cameras, r.cameras)
	cb := r.onCaptureComplete
	r.mu.Unlock()

	var artifacts []CaptureArtifact
	for _, cam := range cameras {
		cam.State().TransitionTo(StatusActive, "confirmed empty")
		if path := cam.CaptureImage(ctx, "baseline"); path != "" {
			artifacts = append(artifacts, CaptureArtifact{
				CameraName: cam.Name(),
				Path:       path,
				CapturedAt: time.Now(),
			})
		}
		cam.clearOccupiedSeen()
	}

	r.mu.Lock()
	r.lastArtifacts = artifacts
	r.mu.Unlock()

	if cb != nil {
		cb(r, artifacts)
	}
	return artifacts
}

// LastArtifacts returns the artifacts of the most recent capture batch.
func (r *Room) LastArtifacts() []CaptureArtifact {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CaptureArtifact, len(r.lastArtifacts))
	copy(out, r.lastArtifacts)
	return out
}

// CancelPendingCapture stops any armed delayed-capture timer.
func (r *Room) CancelPendingCapture() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timerGen++
	if r.captureTimer != nil {
		r.captureTimer.Stop()
		r.captureTimer = nil
	}
}

// HasPendingCapture reports whether a delayed-capture timer is armed.
func (r *Room) HasPendingCapture() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.captureTimer != nil
}

// AddCamera adds a camera to this room. Duplicates are ignored with a warning.
func (r *Room) AddCamera(camera *Camera) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cameras {
		if c == camera {
			log.Printf("Camera %s already in room %s", camera.Name(), r.name)
			return
		}
	}
	camera.SetRoomID(r.id)
	r.cameras = append(r.cameras, camera)
	log.Printf("Added camera %s to room %s", camera.Name(), r.name)
}

// RemoveCamera removes a camera. Removing a non-member is a no-op with a warning.
func (r *Room) RemoveCamera(camera *Camera) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.cameras {
		if c == camera {
			r.cameras = append(r.cameras[:i], r.cameras[i+1:]...)
			log.Printf("Removed camera %s from room %s", camera.Name(), r.name)
			return
		}
	}
	log.Printf("Camera %s not found in room %s", camera.Name(), r.name)
}

// Cameras returns a copy of the room's camera list.
func (r *Room) Cameras() []*Camera {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Camera, len(r.cameras))
	copy(out, r.cameras)
	return out
}

// SetCameraInactive is the administrative override forcing a camera to
// INACTIVE. It goes through the camera's own transition entry point and
// never bypasses edge validation.
func (r *Room) SetCameraInactive(camera *Camera) {
	r.mu.Lock()
	member := false
	for _, c := range r.cameras {
		if c == camera {
			member = true
			break
		}
	}
	r.mu.Unlock()

	if !member {
		log.Printf("Camera %s not found in room %s", camera.Name(), r.name)
		return
	}
	camera.State().TransitionTo(StatusInactive, "administrative override")
}

// AddPersonDetector adds a detector and points its back-reference at this
// room. Duplicates are ignored with a warning.
func (r *Room) AddPersonDetector(detector *PersonDetector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.detectors {
		if d == detector {
			log.Printf("Detector %s already in room %s", detector.Name(), r.name)
			return
		}
	}
	detector.SetRoom(r)
	r.detectors = append(r.detectors, detector)
	log.Printf("Added detector %s to room %s", detector.Name(), r.name)
}

// RemovePersonDetector removes a detector. Non-members are a no-op with a warning.
func (r *Room) RemovePersonDetector(detector *PersonDetector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, d := range r.detectors {
		if d == detector {
			r.detectors = append(r.detectors[:i], r.detectors[i+1:]...)
			log.Printf("Removed detector %s from room %s", detector.Name(), r.name)
			return
		}
	}
	log.Printf("Detector %s not found in room %s", detector.Name(), r.name)
}

// PersonDetectors returns a copy of the room's detector list.
func (r *Room) PersonDetectors() []*PersonDetector {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*PersonDetector, len(r.detectors))
	copy(out, r.detectors)
	return out
}
