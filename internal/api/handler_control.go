package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// controlRequest is the body accepted by both control-plane endpoints.
// An empty body means "all rooms".
type controlRequest struct {
	RoomID string `json:"room_id"`
}

// parseControlBody reads an optional JSON body. A malformed body aborts the
// request with 400 and returns false.
func parseControlBody(c *gin.Context) (controlRequest, bool) {
	var req controlRequest
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Invalid JSON"})
		return req, false
	}
	if strings.TrimSpace(string(body)) == "" {
		return req, true
	}
	if err := json.Unmarshal(body, &req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Invalid JSON"})
		return req, false
	}
	return req, true
}

// CaptureBaseline handles POST /capture-baseline: capture one baseline image
// from every camera in the matched rooms.
func (h *Handler) CaptureBaseline(c *gin.Context) {
	req, ok := parseControlBody(c)
	if !ok {
		return
	}

	summary := h.ctrl.CaptureBaseline(c.Request.Context(), req.RoomID)
	if req.RoomID != "" && summary.Rooms == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"ok":                 false,
			"rooms":              0,
			"captures_requested": 0,
			"captures_succeeded": 0,
			"room_ids":           []string{},
			"error":              "no matching room",
		})
		return
	}

	roomIDs := summary.RoomIDs
	if roomIDs == nil {
		roomIDs = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":                 true,
		"rooms":              summary.Rooms,
		"captures_requested": summary.Requested,
		"captures_succeeded": summary.Succeeded,
		"room_ids":           roomIDs,
	})
}

// AnalyzeLatest handles POST /analyze-latest: queue the matched rooms' most
// recent capture batches for diff analysis.
func (h *Handler) AnalyzeLatest(c *gin.Context) {
	req, ok := parseControlBody(c)
	if !ok {
		return
	}

	summary := h.ctrl.AnalyzeLatest(req.RoomID)
	if req.RoomID != "" && summary.Rooms == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"ok":           false,
			"rooms":        0,
			"queued":       0,
			"queued_files": 0,
			"error":        "no matching room",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":           true,
		"rooms":        summary.Rooms,
		"queued":       summary.Queued,
		"queued_files": summary.QueuedFiles,
	})
}
