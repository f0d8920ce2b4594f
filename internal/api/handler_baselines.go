package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// baselineResponse is the API view of one stored baseline record.
type baselineResponse struct {
	ID         int64     `json:"id"`
	CameraName string    `json:"cameraName"`
	CapturedAt time.Time `json:"capturedAt"`
	Location   string    `json:"location"`
}

// GetBaselines handles GET /baselines: the latest baseline per camera.
func (h *Handler) GetBaselines(c *gin.Context) {
	rows, err := h.store.LatestBaselines(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve baselines"})
		return
	}

	response := make([]baselineResponse, 0, len(rows))
	for _, b := range rows {
		response = append(response, baselineResponse{
			ID:         b.ID,
			CameraName: b.CameraName,
			CapturedAt: b.CapturedAt,
			Location:   b.Location,
		})
	}
	c.JSON(http.StatusOK, response)
}
