package device

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// HTTPCapturer fetches images from a camera's /capture endpoint and writes
// them under a local directory.
type HTTPCapturer struct {
	client *http.Client
	dir    string
}

// NewHTTPCapturer creates a capturer writing into dir, creating it if needed.
func NewHTTPCapturer(dir string, timeout time.Duration) (*HTTPCapturer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create capture dir %s: %w", dir, err)
	}
	return &HTTPCapturer{
		client: &http.Client{Timeout: timeout},
		dir:    dir,
	}, nil
}

// Capture performs a single GET-and-save. File names follow
// <tag>-<room>-<camera>-<timestamp>.jpeg so downstream diffing can parse them.
func (h *HTTPCapturer) Capture(ctx context.Context, capReq CaptureRequest) (string, error) {
	url := capReq.CameraURL + "/capture"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create capture request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("capture request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("capture request to %s returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read capture body: %w", err)
	}

	name := fmt.Sprintf("%s-%s-%s-%s.jpeg",
		capReq.Tag, capReq.RoomID, capReq.CameraName,
		time.Now().Format("20060102_150405.000000"))
	// the fractional-second format uses a dot; keep file names underscore-only
	name = sanitizeTimestamp(name)

	path := filepath.Join(h.dir, name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("failed to write capture file %s: %w", path, err)
	}
	return path, nil
}

func sanitizeTimestamp(name string) string {
	// only the timestamp dot before the extension needs replacing
	base := name[:len(name)-len(".jpeg")]
	out := make([]byte, len(base))
	for i := 0; i < len(base); i++ {
		if base[i] == '.' {
			out[i] = '_'
		} else {
			out[i] = base[i]
		}
	}
	return string(out) + ".jpeg"
}
