package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"gel-controller/internal/device"
	"gel-controller/internal/parse"
)

// DetectorConfig holds the identity and timing settings for one presence sensor.
type DetectorConfig struct {
	Name             string
	Host             string
	Port             int
	EncryptionKey    string
	HeartbeatTimeout time.Duration
}

// PersonDetector bridges one presence-sensing device to room occupancy. It
// owns the device session exclusively and holds a weak back-reference to its
// room; a detector never owns a room, it only calls its mutator.
type PersonDetector struct {
	name             string
	host             string
	port             int
	encryptionKey    string
	heartbeatTimeout time.Duration

	session device.Session

	mu           sync.Mutex
	room         *Room
	lastSignal   time.Time // zero value means no signal yet
	connected    bool
	channelKey   int
	channelFound bool
}

// NewPersonDetector creates a detector driving the given device session.
func NewPersonDetector(cfg DetectorConfig, session device.Session) *PersonDetector {
	if cfg.Port <= 0 {
		cfg.Port = 6053
	}
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = 10 * time.Second
	}
	return &PersonDetector{
		name:             cfg.Name,
		host:             cfg.Host,
		port:             cfg.Port,
		encryptionKey:    cfg.EncryptionKey,
		heartbeatTimeout: cfg.HeartbeatTimeout,
		session:          session,
	}
}

// Name returns the detector name.
func (d *PersonDetector) Name() string { return d.name }

// Host returns the device host.
func (d *PersonDetector) Host() string { return d.host }

// HeartbeatTimeout returns the silence window after which the room is
// considered empty.
func (d *PersonDetector) HeartbeatTimeout() time.Duration { return d.heartbeatTimeout }

// Room returns the owning room, if any.
func (d *PersonDetector) Room() *Room {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.room
}

// SetRoom points the detector's back-reference at room.
func (d *PersonDetector) SetRoom(room *Room) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.room = room
}

// LastSignalTime returns the last heartbeat time; ok is false if the
// detector has never signaled (or has timed out since).
func (d *PersonDetector) LastSignalTime() (time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastSignal, !d.lastSignal.IsZero()
}

// Connect establishes the device session and locates the heartbeat channel
// by name. Connection failures propagate so the scheduling loop can retry
// with backoff. A device without a matching channel stays connected but can
// never signal occupancy; that is a warning, not an error.
func (d *PersonDetector) Connect(ctx context.Context) error {
	if d.session == nil {
		return errors.New("detector has no device session configured")
	}
	if err := d.session.Connect(ctx); err != nil {
		return fmt.Errorf("detector %s failed to connect to %s:%d: %w", d.name, d.host, d.port, err)
	}
	log.Printf("Detector %s connected to %s:%d", d.name, d.host, d.port)

	channels, err := d.session.ListChannels()
	if err != nil {
		return fmt.Errorf("detector %s failed to list channels: %w", d.name, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = true
	if ch, ok := parse.MatchChannel(channels, parse.HeartbeatLabel); ok {
		d.channelKey = ch.Key
		d.channelFound = true
		log.Printf("Detector %s found heartbeat channel: %s (key %d)", d.name, ch.Name, ch.Key)
	} else {
		d.channelFound = false
		log.Printf("Detector %s: no heartbeat channel found on %s", d.name, d.host)
	}
	return nil
}

// SubscribeToStates registers the detector's callback with the device
// session. Calling it before Connect is a contract error.
func (d *PersonDetector) SubscribeToStates() error {
	d.mu.Lock()
	connected := d.connected
	d.mu.Unlock()
	if !connected {
		return errors.New("not connected to device: call Connect first")
	}
	if err := d.session.Subscribe(d.handleStateChange); err != nil {
		return fmt.Errorf("detector %s failed to subscribe: %w", d.name, err)
	}
	log.Printf("Detector %s subscribed to state changes", d.name)
	return nil
}

// Disconnect tears down the session. Safe even if Connect never succeeded.
func (d *PersonDetector) Disconnect() {
	d.mu.Lock()
	d.connected = false
	d.mu.Unlock()
	if d.session == nil {
		return
	}
	if err := d.session.Disconnect(); err != nil {
		log.Printf("Error disconnecting detector %s: %v", d.name, err)
		return
	}
	log.Printf("Detector %s disconnected from %s", d.name, d.host)
}

// handleStateChange runs on the device session's delivery path and must not
// block; it only performs the in-memory occupancy write.
func (d *PersonDetector) handleStateChange(update device.ChannelUpdate) {
	d.mu.Lock()
	relevant := d.channelFound && update.Key == d.channelKey
	d.mu.Unlock()
	if !relevant {
		return
	}
	if update.Value > 0 {
		d.OnHeartbeatDetected(update.Value)
	}
}

// OnHeartbeatDetected records a positive heartbeat reading and marks the
// room occupied. Zero or negative readings carry no occupancy evidence and
// are ignored.
func (d *PersonDetector) OnHeartbeatDetected(value float64) {
	if value <= 0 {
		return
	}
	d.mu.Lock()
	d.lastSignal = time.Now()
	room := d.room
	d.mu.Unlock()

	if room != nil {
		if err := room.SetState(RoomOccupied); err != nil {
			log.Printf("Detector %s failed to set room occupied: %v", d.name, err)
		}
	}
}

// OnHeartbeatTimeout clears the last-signal timestamp and marks the room empty.
func (d *PersonDetector) OnHeartbeatTimeout() {
	d.mu.Lock()
	d.lastSignal = time.Time{}
	room := d.room
	d.mu.Unlock()

	if room != nil {
		if err := room.SetState(RoomEmpty); err != nil {
			log.Printf("Detector %s failed to set room empty: %v", d.name, err)
		}
	}
}

// CheckHeartbeatTimeout is the periodic self-check: if the last heartbeat is
// older than the timeout, the detector declares the room empty. A detector
// that has never signaled claims nothing.
func (d *PersonDetector) CheckHeartbeatTimeout() {
	d.mu.Lock()
	last := d.lastSignal
	d.mu.Unlock()

	if last.IsZero() {
		return
	}
	if since := time.Since(last); since > d.heartbeatTimeout {
		log.Printf("Detector %s heartbeat timeout after %.1fs", d.name, since.Seconds())
		d.OnHeartbeatTimeout()
	}
}
