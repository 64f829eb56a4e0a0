package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"thermal_dashboard/internal/chart"
	"thermal_dashboard/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	statusOK = "ok"

	errNoSnapshot   = "no state received from the device yet"
	errNoChart      = "chart not rendered yet"
	errGetState     = "failed to load state"
	errGetChart     = "failed to load chart"
	errDrawChart    = "failed to draw chart"
	errUnknownChart = "unknown chart kind"
	errImageSize    = "width and height must be between 64 and 4096"

	minImageSide = 64
	maxImageSide = 4096
)

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status, stream"
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	resp := gin.H{"status": statusOK}
	if h.services != nil && h.services.Monitoring != nil {
		resp["stream"] = h.services.Monitoring.Stats()
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary      Current device state
// @Description  The last complete snapshot received on the device stream.
// @Tags         monitoring
// @Produce      json
// @Success      200  {object}  models.StateSnapshot
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/state [get]
func (h *Handler) getState(c *gin.Context) {
	st, err := h.services.Monitoring.Snapshot(c.Request.Context())
	if errors.Is(err, service.ErrNoSnapshot) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errNoSnapshot})
		return
	}
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetState, "state_get_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Chart model
// @Tags         monitoring
// @Produce      json
// @Param        kind  path  string  true  "Chart kind"  Enums(temperature,tachometer)
// @Success      200  {object}  chart.Frame
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/charts/{kind} [get]
func (h *Handler) getChart(c *gin.Context) {
	f, ok := h.loadFrame(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, f)
}

// @Summary      Chart image
// @Description  PNG of the last rendered chart. Passing theme, width or height redraws it on demand.
// @Tags         monitoring
// @Produce      png
// @Param        kind    path   string  true   "Chart kind"  Enums(temperature,tachometer)
// @Param        theme   query  string  false  "Theme"  Enums(light,dark)
// @Param        width   query  int     false  "Width in pixels"
// @Param        height  query  int     false  "Height in pixels"
// @Success      200  {file}    binary
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/charts/{kind}/image [get]
func (h *Handler) getChartImage(c *gin.Context) {
	f, ok := h.loadFrame(c)
	if !ok {
		return
	}

	img := f.Image
	if c.Query("theme") != "" || c.Query("width") != "" || c.Query("height") != "" {
		width, werr := imageSide(c.Query("width"), chart.DefaultWidth)
		height, herr := imageSide(c.Query("height"), chart.DefaultHeight)
		if werr != nil || herr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errImageSize})
			return
		}
		var err error
		img, err = chart.Draw(f.Chart, chart.ThemeByName(c.Query("theme")), width, height)
		if err != nil {
			h.logAndJSONError(c, http.StatusInternalServerError, errDrawChart, "chart_draw_failed", err, "kind", f.Kind)
			return
		}
	}
	if len(img) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errNoChart})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", img)
}

func (h *Handler) loadFrame(c *gin.Context) (chart.Frame, bool) {
	kind, err := chart.ParseKind(c.Param("kind"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errUnknownChart})
		return chart.Frame{}, false
	}
	f, err := h.services.Monitoring.Chart(c.Request.Context(), kind)
	if errors.Is(err, service.ErrNoChart) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errNoChart})
		return chart.Frame{}, false
	}
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetChart, "chart_get_failed", err, "kind", kind)
		return chart.Frame{}, false
	}
	return f, true
}

func imageSide(q string, def int) (int, error) {
	if q == "" {
		return def, nil
	}
	v, err := strconv.Atoi(q)
	if err != nil {
		return 0, err
	}
	if v < minImageSide || v > maxImageSide {
		return 0, strconv.ErrRange
	}
	return v, nil
}
