package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// cameraResponse is the flattened camera view for the status API.
type cameraResponse struct {
	Name               string  `json:"name"`
	Status             string  `json:"status"`
	TimeInStateSeconds float64 `json:"timeInStateSeconds"`
	CaptureCount       int64   `json:"captureCount"`
}

// roomResponse is the API view of one room.
type roomResponse struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	State   string           `json:"state"`
	Cameras []cameraResponse `json:"cameras"`
}

// GetRooms handles GET /rooms: a live snapshot of occupancy and camera status.
func (h *Handler) GetRooms(c *gin.Context) {
	snapshot := h.ctrl.Snapshot()
	response := make([]roomResponse, 0, len(snapshot))
	for _, room := range snapshot {
		rr := roomResponse{
			ID:      room.ID,
			Name:    room.Name,
			State:   string(room.State),
			Cameras: make([]cameraResponse, 0, len(room.Cameras)),
		}
		for _, cam := range room.Cameras {
			rr.Cameras = append(rr.Cameras, cameraResponse{
				Name:               cam.Name,
				Status:             string(cam.Status),
				TimeInStateSeconds: cam.TimeInState.Seconds(),
				CaptureCount:       cam.CaptureCount,
			})
		}
		response = append(response, rr)
	}
	c.JSON(http.StatusOK, response)
}
