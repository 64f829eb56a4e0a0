package handlers

import (
	"errors"
	"net/http"

	"thermal_dashboard/internal/device"

	"github.com/gin-gonic/gin"
)

const (
	statusPaused  = "paused"
	statusResumed = "resumed"
	statusBye     = "bye"
)

// @Summary      Pause the device stream
// @Tags         session
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/stream/pause [post]
func (h *Handler) pauseStream(c *gin.Context) {
	if err := h.services.Session.PauseStream(c.Request.Context()); err != nil {
		h.logAndJSONError(c, http.StatusBadGateway, deviceMessage(err), "stream_pause_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusPaused})
}

// @Summary      Resume the device stream
// @Tags         session
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/stream/resume [post]
func (h *Handler) resumeStream(c *gin.Context) {
	if err := h.services.Session.ResumeStream(c.Request.Context()); err != nil {
		h.logAndJSONError(c, http.StatusBadGateway, deviceMessage(err), "stream_resume_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusResumed})
}

// @Summary      Quit
// @Description  Asks the device to shut down and ends the dashboard session. The session ends even when the device does not answer.
// @Tags         session
// @Produce      json
// @Success      200  {object}  map[string]string  "status, error"
// @Router       /api/v1/quit [post]
func (h *Handler) quit(c *gin.Context) {
	resp := gin.H{"status": statusBye}
	if err := h.services.Session.Quit(c.Request.Context()); err != nil {
		if h.log != nil {
			h.log.Warnw("device_quit_failed", "err", err)
		}
		resp["error"] = deviceMessage(err)
	}
	c.JSON(http.StatusOK, resp)
}

// deviceMessage is the operator-facing text of a device call failure.
func deviceMessage(err error) string {
	var appErr *device.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	var te *device.TransportError
	if errors.As(err, &te) {
		return te.StatusText
	}
	return "device request failed"
}
