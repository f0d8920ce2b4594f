// Package device holds the interfaces through which the monitoring core talks
// to external hardware collaborators: discovery, sensor sessions and image
// capture. The core never dials a device directly.
package device

import "context"

// Record describes one device found on the network.
type Record struct {
	IP   string
	Port int
	Name string
	MAC  string
}

// Discoverer performs a one-shot lookup of devices on the local network.
type Discoverer interface {
	Discover(ctx context.Context) ([]Record, error)
}

// Channel is one sensor channel exposed by a device session.
type Channel struct {
	Key  int
	Name string
}

// ChannelUpdate is one reading pushed by the device session.
type ChannelUpdate struct {
	Key   int
	Value float64
}

// Session is a connection to one presence-sensing device. Connect may fail
// and is retried by the caller; Disconnect is safe to call at any point,
// including after a failed Connect.
type Session interface {
	Connect(ctx context.Context) error
	ListChannels() ([]Channel, error)
	Subscribe(fn func(ChannelUpdate)) error
	Disconnect() error
}

// CaptureRequest identifies the camera and room an image is requested for.
type CaptureRequest struct {
	CameraName string
	CameraURL  string
	RoomID     string
	Tag        string
}

// Capturer fetches one image from a camera and stores it, returning the
// stored location. Retries, if any, are the implementation's concern.
type Capturer interface {
	Capture(ctx context.Context, req CaptureRequest) (string, error)
}
