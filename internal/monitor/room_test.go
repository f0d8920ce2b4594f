package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoomValidatesInitialState(t *testing.T) {
	_, err := NewRoom("r1", "Lab", RoomState("half-full"), time.Second)
	assert.Error(t, err)

	room, err := NewRoom("r1", "Lab", RoomOccupied, time.Second)
	require.NoError(t, err)
	assert.Equal(t, RoomOccupied, room.State())
}

func TestSetStateRejectsInvalidValues(t *testing.T) {
	room := newTestRoom(t, RoomEmpty)
	err := room.SetState(RoomState("crowded"))
	assert.Error(t, err)
	assert.Equal(t, RoomEmpty, room.State(), "rejected write must not mutate state")
}

func TestSetStateSameStateIsNoOp(t *testing.T) {
	room, err := NewRoom("r1", "Lab", RoomEmpty, 50*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, room.SetState(RoomOccupied))
	require.NoError(t, room.SetState(RoomEmpty))
	require.True(t, room.HasPendingCapture())

	// re-asserting empty must not rearm or cancel the pending timer
	require.NoError(t, room.SetState(RoomEmpty))
	assert.True(t, room.HasPendingCapture())
}

func TestDelayedCaptureFiresAfterConfirmedEmpty(t *testing.T) {
	capturer := &fakeCapturer{}
	room, err := NewRoom("r1", "Lab", RoomOccupied, 50*time.Millisecond)
	require.NoError(t, err)
	room.AddCamera(NewCamera(CameraConfig{Name: "cam-a"}, capturer))

	var mu sync.Mutex
	var got []CaptureArtifact
	room.SetCaptureComplete(func(_ *Room, artifacts []CaptureArtifact) {
		mu.Lock()
		got = artifacts
		mu.Unlock()
	})

	require.NoError(t, room.SetState(RoomEmpty))
	require.True(t, room.HasPendingCapture())

	time.Sleep(150 * time.Millisecond)

	assert.Equal(t, 1, capturer.count())
	assert.False(t, room.HasPendingCapture())
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "cam-a", got[0].CameraName)
}

func TestReoccupancyCancelsPendingCapture(t *testing.T) {
	capturer := &fakeCapturer{}
	room, err := NewRoom("r1", "Lab", RoomOccupied, 60*time.Millisecond)
	require.NoError(t, err)
	room.AddCamera(NewCamera(CameraConfig{Name: "cam-a"}, capturer))

	require.NoError(t, room.SetState(RoomEmpty))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, room.SetState(RoomOccupied))
	assert.False(t, room.HasPendingCapture())

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, 0, capturer.count(), "cancelled window must produce zero captures")
}

func TestEmptyAgainArmsFreshWindow(t *testing.T) {
	capturer := &fakeCapturer{}
	room, err := NewRoom("r1", "Lab", RoomOccupied, 60*time.Millisecond)
	require.NoError(t, err)
	room.AddCamera(NewCamera(CameraConfig{Name: "cam-a"}, capturer))

	// empty, re-occupied mid-window, then empty again: the second window
	// starts from scratch.
	require.NoError(t, room.SetState(RoomEmpty))
	time.Sleep(40 * time.Millisecond)
	require.NoError(t, room.SetState(RoomOccupied))
	require.NoError(t, room.SetState(RoomEmpty))

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, 0, capturer.count(), "fresh window must not fire early")

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, capturer.count())
}

func TestCaptureBaselinesActivatesCameras(t *testing.T) {
	capturer := &fakeCapturer{}
	room := newTestRoom(t, RoomEmpty)
	camA := NewCamera(CameraConfig{Name: "cam-a", InitialStatus: StatusInactive}, capturer)
	camB := NewCamera(CameraConfig{Name: "cam-b", InitialStatus: StatusOffline}, capturer)
	room.AddCamera(camA)
	room.AddCamera(camB)

	artifacts := room.CaptureBaselines(context.Background())

	require.Len(t, artifacts, 2)
	assert.Equal(t, StatusActive, camA.Status())
	assert.Equal(t, StatusActive, camB.Status())
	assert.Equal(t, artifacts, room.LastArtifacts())
}

func TestCaptureBaselinesPartialFailure(t *testing.T) {
	room := newTestRoom(t, RoomEmpty)
	good := &fakeCapturer{}
	room.AddCamera(NewCamera(CameraConfig{Name: "cam-ok"}, good))
	room.AddCamera(NewCamera(CameraConfig{Name: "cam-dead"}, nil))

	var called bool
	room.SetCaptureComplete(func(_ *Room, artifacts []CaptureArtifact) {
		called = true
		assert.Len(t, artifacts, 1)
	})

	artifacts := room.CaptureBaselines(context.Background())

	require.Len(t, artifacts, 1)
	assert.Equal(t, "cam-ok", artifacts[0].CameraName)
	assert.True(t, called, "callback fires even with partial failure")
}

func TestRoomMembershipIdempotence(t *testing.T) {
	room := newTestRoom(t, RoomEmpty)
	cam := NewCamera(CameraConfig{Name: "cam-a"}, nil)

	room.AddCamera(cam)
	room.AddCamera(cam)
	assert.Len(t, room.Cameras(), 1)

	room.RemoveCamera(cam)
	room.RemoveCamera(cam)
	assert.Empty(t, room.Cameras())

	det := NewPersonDetector(DetectorConfig{Name: "det-a"}, nil)
	room.AddPersonDetector(det)
	room.AddPersonDetector(det)
	assert.Len(t, room.PersonDetectors(), 1)
	assert.Equal(t, room, det.Room())

	room.RemovePersonDetector(det)
	room.RemovePersonDetector(det)
	assert.Empty(t, room.PersonDetectors())
}

func TestSetCameraInactiveOverride(t *testing.T) {
	room := newTestRoom(t, RoomEmpty)
	cam := NewCamera(CameraConfig{Name: "cam-a", InitialStatus: StatusRecording}, nil)
	room.AddCamera(cam)

	room.SetCameraInactive(cam)
	assert.Equal(t, StatusInactive, cam.Status())

	// non-member: no effect
	stranger := NewCamera(CameraConfig{Name: "cam-x", InitialStatus: StatusActive}, nil)
	room.SetCameraInactive(stranger)
	assert.Equal(t, StatusActive, stranger.Status())
}

func TestCancelPendingCapture(t *testing.T) {
	capturer := &fakeCapturer{}
	room, err := NewRoom("r1", "Lab", RoomOccupied, 40*time.Millisecond)
	require.NoError(t, err)
	room.AddCamera(NewCamera(CameraConfig{Name: "cam-a"}, capturer))

	require.NoError(t, room.SetState(RoomEmpty))
	room.CancelPendingCapture()
	assert.False(t, room.HasPendingCapture())

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 0, capturer.count())
}
