package simulator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"thermal_dashboard/internal/models"
)

// Device-side messages, as the controller firmware words them.
const (
	msgNoArguments     = "No arguments provided"
	msgInvalidJSON     = "Invalid JSON object."
	msgSettingNotFound = "Setting not found: %s"
	msgInvalidArgument = "Invalid argument %s"
)

const maxBodySize = 1 << 16

// Handler returns the device API served by the simulator.
func (s *Simulator) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	s.Routes(r)
	return r
}

// Routes registers the device endpoints on r.
func (s *Simulator) Routes(r gin.IRouter) {
	r.GET("/stream", s.stream)
	r.GET("/api/status", s.status)
	r.POST("/api/start", s.start)
	r.POST("/api/stop", s.stop)
	r.POST("/api/settings/:name", s.settings)
	r.POST("/quit/now", s.quit)
}

func (s *Simulator) stream(c *gin.Context) {
	frames, cancel := s.subscribe()
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	_, _ = io.WriteString(c.Writer, ": connected\n\n")
	c.Writer.Flush()

	retry := uint(s.cfg.Retry.Milliseconds())
	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case f, ok := <-frames:
			if !ok {
				return false
			}
			c.Render(-1, sse.Event{
				Id:    strconv.FormatUint(f.seq, 10),
				Event: "message",
				Retry: retry,
				Data:  f.payload,
			})
			retry = 0
			return true
		}
	})
}

func (s *Simulator) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.Status())
}

func (s *Simulator) start(c *gin.Context) {
	s.SetPaused(false)
	c.JSON(http.StatusOK, gin.H{"result": "Success"})
}

func (s *Simulator) stop(c *gin.Context) {
	s.SetPaused(true)
	c.JSON(http.StatusOK, gin.H{"result": "Success"})
}

func (s *Simulator) quit(c *gin.Context) {
	c.String(http.StatusOK, "bye")
	c.Writer.Flush()
	if s.log != nil {
		s.log.Infow("sim_quit_requested")
	}
	s.close()
	if s.onQuit != nil {
		go s.onQuit()
	}
}

// settings applies one settings domain. Like the firmware, rejections are
// answered 200 with an "error" key; only malformed JSON is a server error.
func (s *Simulator) settings(c *gin.Context) {
	name := c.Param("name")
	if name != models.DomainWatchdog && name != models.DomainFanPwm {
		deviceError(c, fmt.Sprintf(msgSettingNotFound, name))
		return
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodySize))
	if err != nil || len(bytes.TrimSpace(raw)) == 0 {
		deviceError(c, msgNoArguments)
		return
	}
	var args map[string]json.RawMessage
	if err := json.Unmarshal(raw, &args); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInvalidJSON})
		return
	}
	if len(args) == 0 {
		deviceError(c, msgNoArguments)
		return
	}

	s.mu.Lock()
	fault := s.fault
	s.mu.Unlock()

	switch name {
	case models.DomainFanPwm:
		s.applyFanPwm(c, args, fault)
	case models.DomainWatchdog:
		s.applyWatchdog(c, args, fault)
	}
}

func (s *Simulator) applyFanPwm(c *gin.Context, args map[string]json.RawMessage, fault string) {
	var fan string
	if err := json.Unmarshal(args["fan_name"], &fan); err != nil || fan == "" {
		deviceError(c, fmt.Sprintf(msgInvalidArgument, "fan_name"))
		return
	}

	s.mu.Lock()
	_, known := s.pwm[fan]
	s.mu.Unlock()
	if !known {
		deviceError(c, fmt.Sprintf(msgInvalidArgument, fan))
		return
	}

	write := false
	pct := 0
	if v, ok := args["fan_pwm_pct"]; ok {
		n, ok := unsigned(v)
		if !ok {
			deviceError(c, fmt.Sprintf(msgInvalidArgument, "fan_pwm_pct"))
			return
		}
		write = true
		pct = int(min(n, 100))
	}
	if fault != "" {
		deviceError(c, fault)
		return
	}

	s.mu.Lock()
	if write {
		s.pwm[fan] = s.quantize(pct)
	}
	applied := s.pwm[fan]
	s.mu.Unlock()

	if s.log != nil && write {
		s.log.Infow("sim_fan_pwm_set", "fan", fan, "requested", pct, "applied", applied)
	}
	c.JSON(http.StatusOK, models.FanPwmConfirmation{fan: applied})
}

func (s *Simulator) applyWatchdog(c *gin.Context, args map[string]json.RawMessage, fault string) {
	var enabled bool
	if err := json.Unmarshal(args["is_enabled"], &enabled); err != nil || string(args["is_enabled"]) == "null" {
		deviceError(c, fmt.Sprintf(msgInvalidArgument, "is_enabled"))
		return
	}
	timeout, ok := unsigned(args["timeout_sec"])
	if !ok {
		deviceError(c, fmt.Sprintf(msgInvalidArgument, "timeout_sec"))
		return
	}
	retries, ok := unsigned(args["max_retries"])
	if !ok {
		deviceError(c, fmt.Sprintf(msgInvalidArgument, "max_retries"))
		return
	}
	if fault != "" {
		deviceError(c, fault)
		return
	}

	wd := models.WatchdogSettings{
		IsEnabled:  enabled,
		TimeoutSec: int(max(1, min(timeout, MaxWatchdogSec))),
		MaxRetries: int(min(retries, MaxWatchdogRetry)),
	}
	s.mu.Lock()
	s.watchdog = wd
	s.mu.Unlock()

	if s.log != nil {
		s.log.Infow("sim_watchdog_set", "timeout_sec", wd.TimeoutSec, "max_retries", wd.MaxRetries, "is_enabled", wd.IsEnabled)
	}
	c.JSON(http.StatusOK, wd)
}

// unsigned accepts a JSON integer >= 0 and nothing else.
func unsigned(raw json.RawMessage) (uint64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	n, err := strconv.ParseUint(string(raw), 10, 64)
	return n, err == nil
}

func deviceError(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, gin.H{"error": msg})
}
