package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"gel-controller/internal/api"
	"gel-controller/internal/device"
	"gel-controller/internal/model"
	"gel-controller/internal/monitor"
	"gel-controller/internal/store"
)

// scriptedSession is an in-memory device.Session a test can drive directly.
type scriptedSession struct {
	mu       sync.Mutex
	callback func(device.ChannelUpdate)
}

func (s *scriptedSession) Connect(context.Context) error { return nil }

func (s *scriptedSession) ListChannels() ([]device.Channel, error) {
	return []device.Channel{{Key: 7, Name: "Real-Time Heart Rate"}}, nil
}

func (s *scriptedSession) Subscribe(fn func(device.ChannelUpdate)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callback = fn
	return nil
}

func (s *scriptedSession) Disconnect() error { return nil }

func (s *scriptedSession) heartbeat(value float64) {
	s.mu.Lock()
	cb := s.callback
	s.mu.Unlock()
	if cb != nil {
		cb(device.ChannelUpdate{Key: 7, Value: value})
	}
}

// TestConfirmedEmptyLifecycle walks the whole pipeline: a heartbeat occupies
// the room, silence empties it, the confirmed-empty window elapses, cameras go
// live and capture a baseline, and the record lands in the store and the API.
func TestConfirmedEmptyLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// 1. In-memory SQLite database.
	testDB, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, _ := testDB.DB()
	defer sqlDB.Close()
	require.NoError(t, testDB.AutoMigrate(&model.Baseline{}, &model.PushSubscription{}, &model.SubscriptionRoom{}))
	appStore := store.NewGormStore(testDB)

	// 2. Fake camera device serving /capture.
	cameraServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/capture", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer cameraServer.Close()

	capturer, err := device.NewHTTPCapturer(t.TempDir(), 2*time.Second)
	require.NoError(t, err)

	// 3. One room, one camera, one detector with short windows.
	room, err := monitor.NewRoom("room-1", "Gel Lab", monitor.RoomEmpty, 50*time.Millisecond)
	require.NoError(t, err)
	camera := monitor.NewCamera(monitor.CameraConfig{
		Name:         "cam-a",
		RoomID:       "room-1",
		URL:          cameraServer.URL,
		PollInterval: 10 * time.Millisecond,
	}, capturer)
	room.AddCamera(camera)

	session := &scriptedSession{}
	detector := monitor.NewPersonDetector(monitor.DetectorConfig{
		Name:             "det-a",
		HeartbeatTimeout: 60 * time.Millisecond,
	}, session)
	room.AddPersonDetector(detector)

	ctrl := monitor.NewController(monitor.ControllerConfig{
		RetryMin:              10 * time.Millisecond,
		RetryMax:              40 * time.Millisecond,
		DetectorCheckInterval: 10 * time.Millisecond,
	})
	ctrl.SetCaptureComplete(func(r *monitor.Room, artifacts []monitor.CaptureArtifact) {
		for _, a := range artifacts {
			rec := model.Baseline{CameraName: a.CameraName, CapturedAt: a.CapturedAt, Location: a.Path}
			assert.NoError(t, appStore.RecordBaseline(context.Background(), &rec))
		}
	})
	ctrl.AddRoom(room)

	ctrl.Start(context.Background())
	defer ctrl.Shutdown(2 * time.Second)

	router := api.NewRouter(ctrl, appStore, nil, api.RouterConfig{RateLimitPerSec: 1000})

	// 4. A heartbeat arrives: room occupied, camera forced inactive.
	require.Eventually(t, func() bool {
		session.mu.Lock()
		defer session.mu.Unlock()
		return session.callback != nil
	}, 2*time.Second, 5*time.Millisecond, "detector should subscribe")

	session.heartbeat(72)
	assert.Equal(t, monitor.RoomOccupied, room.State())
	require.Eventually(t, func() bool {
		return camera.Status() == monitor.StatusInactive
	}, 2*time.Second, 5*time.Millisecond)

	// 5. Silence: heartbeat timeout empties the room, the confirmed-empty
	// window elapses, the camera goes live and a baseline is captured.
	require.Eventually(t, func() bool {
		return room.State() == monitor.RoomEmpty
	}, 2*time.Second, 5*time.Millisecond, "heartbeat timeout should empty the room")

	require.Eventually(t, func() bool {
		return camera.Status() == monitor.StatusActive && camera.CaptureCount() >= 1
	}, 2*time.Second, 5*time.Millisecond, "confirmed-empty capture should activate the camera")

	// camera stays active on subsequent empty polls
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, monitor.StatusActive, camera.Status())

	// 6. The baseline is visible through the API.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/baselines", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var baselines []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &baselines))
	require.NotEmpty(t, baselines)
	assert.Equal(t, "cam-a", baselines[0]["cameraName"])

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rooms", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var rooms []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rooms))
	require.Len(t, rooms, 1)
	assert.Equal(t, "empty", rooms[0]["state"])

	// 7. A manual capture through the control plane also succeeds.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/capture-baseline", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["ok"])
	assert.Equal(t, float64(1), resp["captures_succeeded"])
}

// TestReoccupancyCancelsCapture verifies a person returning inside the
// confirmed-empty window produces no capture at all.
func TestReoccupancyCancelsCapture(t *testing.T) {
	room, err := monitor.NewRoom("room-1", "Gel Lab", monitor.RoomEmpty, 60*time.Millisecond)
	require.NoError(t, err)

	session := &scriptedSession{}
	detector := monitor.NewPersonDetector(monitor.DetectorConfig{
		Name:             "det-a",
		HeartbeatTimeout: 40 * time.Millisecond,
	}, session)
	room.AddPersonDetector(detector)

	require.NoError(t, detector.Connect(context.Background()))
	require.NoError(t, detector.SubscribeToStates())

	session.heartbeat(80)
	require.Equal(t, monitor.RoomOccupied, room.State())

	// timeout empties the room and arms the window
	time.Sleep(60 * time.Millisecond)
	detector.CheckHeartbeatTimeout()
	require.Equal(t, monitor.RoomEmpty, room.State())
	require.True(t, room.HasPendingCapture())

	// person returns mid-window
	session.heartbeat(82)
	assert.Equal(t, monitor.RoomOccupied, room.State())
	assert.False(t, room.HasPendingCapture())
}
