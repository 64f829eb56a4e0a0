package handlers

import (
	"errors"
	"net/http"

	"thermal_dashboard/internal/settings"

	"github.com/gin-gonic/gin"
)

const (
	errInvalidBodyPref = "invalid body: "
	errControlBusy     = "a request for this control is still pending"
	errUnknownFan      = "unknown fan"
)

// WatchdogRequest is the body of POST /api/v1/settings/watchdog.
type WatchdogRequest struct {
	TimeoutSec *int  `json:"timeout_sec" binding:"required" example:"30"`
	MaxRetries *int  `json:"max_retries" binding:"required" example:"3"`
	IsEnabled  *bool `json:"is_enabled" binding:"required" example:"true"`
}

// FanPwmRequest is the body of POST /api/v1/settings/fan_pwm.
type FanPwmRequest struct {
	FanName   string `json:"fan_name" binding:"required" example:"CM4_FAN_J18"`
	FanPwmPct *int   `json:"fan_pwm_pct" binding:"required" example:"80"`
}

// SelectFanRequest is the body of POST /api/v1/controls/selected_fan.
type SelectFanRequest struct {
	FanName string `json:"fan_name" binding:"required" example:"System_FAN_J17"`
}

// @Summary      Displayed controls
// @Description  Watchdog form values, per-fan PWM, the selected fan and requests in flight.
// @Tags         settings
// @Produce      json
// @Success      200  {object}  settings.Controls
// @Router       /api/v1/controls [get]
func (h *Handler) getControls(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Settings.Controls())
}

// @Summary      Select fan
// @Tags         settings
// @Accept       json
// @Produce      json
// @Param        body  body      SelectFanRequest  true  "Fan"
// @Success      200   {object}  map[string]interface{}  "fan_name, fan_pwm_pct"
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/controls/selected_fan [post]
func (h *Handler) selectFan(c *gin.Context) {
	var req SelectFanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	pct, err := h.services.Settings.SelectFan(req.FanName)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": errUnknownFan})
		return
	}
	c.JSON(http.StatusOK, gin.H{"fan_name": req.FanName, "fan_pwm_pct": pct})
}

// @Summary      Set watchdog
// @Description  Sends exactly one request to the device. Device rejections and transport failures are reported in the body with status 200.
// @Tags         settings
// @Accept       json
// @Produce      json
// @Param        body  body      WatchdogRequest  true  "Watchdog settings"
// @Success      200   {object}  map[string]interface{}  "status, controls, error"
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/settings/watchdog [post]
func (h *Handler) setWatchdog(c *gin.Context) {
	var req WatchdogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	out, err := h.services.Settings.SetWatchdog(c.Request.Context(), settings.SetWatchdogConfig{
		TimeoutSec: *req.TimeoutSec,
		MaxRetries: *req.MaxRetries,
		IsEnabled:  *req.IsEnabled,
	})
	h.respondOutcome(c, out, err)
}

// @Summary      Set fan PWM
// @Description  The controls in the response show the duty cycle the device applied, which can differ from the request.
// @Tags         settings
// @Accept       json
// @Produce      json
// @Param        body  body      FanPwmRequest  true  "Fan duty cycle"
// @Success      200   {object}  map[string]interface{}  "status, controls, error"
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/settings/fan_pwm [post]
func (h *Handler) setFanPwm(c *gin.Context) {
	var req FanPwmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	out, err := h.services.Settings.SetFanPwm(c.Request.Context(), settings.SetFanPwm{
		FanName:   req.FanName,
		FanPwmPct: *req.FanPwmPct,
	})
	h.respondOutcome(c, out, err)
}

func (h *Handler) respondOutcome(c *gin.Context, out settings.Outcome, err error) {
	switch {
	case errors.Is(err, settings.ErrInvalidCommand):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, settings.ErrControlBusy):
		c.JSON(http.StatusConflict, gin.H{"error": errControlBusy})
		return
	case err != nil:
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to apply settings", "settings_request_failed", err)
		return
	}

	resp := gin.H{"status": out.Result, "controls": out.Controls}
	if out.Message != "" {
		resp["error"] = out.Message
	}
	c.JSON(http.StatusOK, resp)
}
