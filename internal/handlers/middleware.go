package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
)

// requestLogger writes one structured line per request. The push channel
// and swagger assets are skipped.
func (h *Handler) requestLogger(c *gin.Context) {
	if h.log == nil {
		c.Next()
		return
	}
	start := time.Now()
	c.Next()

	path := c.FullPath()
	if path == "/ws" || path == "/swagger/*any" {
		return
	}
	if path == "" {
		path = c.Request.URL.Path
	}
	fields := []interface{}{
		"method", c.Request.Method,
		"path", path,
		"status", c.Writer.Status(),
		"latency", time.Since(start),
	}
	if c.Writer.Status() >= 500 {
		h.log.Warnw("http_request", fields...)
		return
	}
	h.log.Debugw("http_request", fields...)
}
