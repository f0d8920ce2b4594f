package monitor

import (
	"log"
	"sync"
	"time"
)

// CameraStatus is the operational state of a camera.
type CameraStatus string

const (
	StatusOffline     CameraStatus = "offline"     // disconnected/unreachable
	StatusCalibrating CameraStatus = "calibrating" // calibrating/initializing
	StatusInactive    CameraStatus = "inactive"    // off, not monitoring
	StatusActive      CameraStatus = "active"      // on, monitoring allowed
	StatusRecording   CameraStatus = "recording"   // actively recording
	StatusError       CameraStatus = "error"       // fault state
)

// transitions lists the legal directed edges between camera statuses.
// A same-status "transition" is always a permitted no-op.
var transitions = map[CameraStatus][]CameraStatus{
	StatusOffline:     {StatusCalibrating, StatusInactive, StatusActive},
	StatusCalibrating: {StatusInactive, StatusError},
	StatusInactive:    {StatusActive, StatusOffline, StatusError},
	StatusActive:      {StatusRecording, StatusInactive, StatusOffline, StatusError},
	StatusRecording:   {StatusActive, StatusInactive, StatusOffline, StatusError},
	StatusError:       {StatusCalibrating, StatusOffline, StatusInactive},
}

// defaultHistoryLimit caps retained state history per camera.
const defaultHistoryLimit = 256

// StateChange is one entry in a camera's state history.
type StateChange struct {
	Status CameraStatus
	At     time.Time
}

// CameraState tracks a camera's status, enforces the transition table and
// keeps an append-only history. It is safe for concurrent callers: the poll
// loop and administrative overrides go through the same entry point.
type CameraState struct {
	mu           sync.Mutex
	status       CameraStatus
	enteredAt    time.Time
	history      []StateChange
	historyLimit int
	errorMessage string
}

// NewCameraState creates a state machine starting in initial.
func NewCameraState(initial CameraStatus) *CameraState {
	now := time.Now()
	return &CameraState{
		status:       initial,
		enteredAt:    now,
		history:      []StateChange{{Status: initial, At: now}},
		historyLimit: defaultHistoryLimit,
	}
}

// TransitionTo attempts to move to target. Same-status calls succeed without
// touching history. An illegal edge is rejected: false is returned, a warning
// logged, and neither status nor enteredAt changes. A successful transition
// to StatusError stores reason as the current error message; any other
// successful transition clears it.
func (s *CameraState) TransitionTo(target CameraStatus, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if target == s.status {
		return true
	}

	allowed := false
	for _, next := range transitions[s.status] {
		if next == target {
			allowed = true
			break
		}
	}
	if !allowed {
		log.Printf("Invalid camera transition: %s -> %s", s.status, target)
		return false
	}

	old := s.status
	duration := time.Since(s.enteredAt)

	s.status = target
	s.enteredAt = time.Now()
	s.history = append(s.history, StateChange{Status: target, At: s.enteredAt})
	if len(s.history) > s.historyLimit {
		s.history = s.history[len(s.history)-s.historyLimit:]
	}

	if target == StatusError {
		s.errorMessage = reason
	} else {
		s.errorMessage = ""
	}

	if reason != "" {
		log.Printf("Camera state transition: %s -> %s (was %s for %.1fs) - %s",
			old, target, old, duration.Seconds(), reason)
	} else {
		log.Printf("Camera state transition: %s -> %s (was %s for %.1fs)",
			old, target, old, duration.Seconds())
	}
	return true
}

// Status returns the current status.
func (s *CameraState) Status() CameraStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// EnteredAt returns when the current status was entered.
func (s *CameraState) EnteredAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enteredAt
}

// TimeInState returns how long the camera has held its current status.
func (s *CameraState) TimeInState() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.enteredAt)
}

// ErrorMessage returns the stored reason while in StatusError, else "".
func (s *CameraState) ErrorMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorMessage
}

// IsOperational reports whether the camera is usable (not error/offline/calibrating).
func (s *CameraState) IsOperational() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == StatusInactive || s.status == StatusActive || s.status == StatusRecording
}

// CanRecord reports whether recording may start from the current status.
func (s *CameraState) CanRecord() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == StatusActive
}

// History returns up to limit most recent state changes (limit <= 0 means all).
func (s *CameraState) History(limit int) []StateChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > 0 && limit < len(s.history) {
		out := make([]StateChange, limit)
		copy(out, s.history[len(s.history)-limit:])
		return out
	}
	out := make([]StateChange, len(s.history))
	copy(out, s.history)
	return out
}
