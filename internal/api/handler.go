package api

import (
	"context"

	"github.com/SherClockHolmes/webpush-go"

	"gel-controller/internal/monitor"
	"gel-controller/internal/store"
)

// Controller is the control-plane surface the API needs from the room
// controller.
type Controller interface {
	CaptureBaseline(ctx context.Context, roomID string) monitor.CaptureSummary
	AnalyzeLatest(roomID string) monitor.AnalyzeSummary
	Snapshot() []monitor.RoomSnapshot
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	ctrl    Controller
	store   store.Store
	webpush *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(ctrl Controller, s store.Store, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		ctrl:    ctrl,
		store:   s,
		webpush: webpushOptions,
	}
}
