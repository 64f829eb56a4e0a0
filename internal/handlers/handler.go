package handlers

import (
	"thermal_dashboard/internal/logger"
	"thermal_dashboard/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	ws       gin.HandlerFunc
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies. ws serves the
// browser push channel and may be nil.
func NewHandler(services *service.Service, ws gin.HandlerFunc, log *logger.Logger) *Handler {
	return &Handler{services: services, ws: ws, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
//
// @title        Thermal dashboard API
// @version      1.0
// @description  Live charts and settings for the fan/thermal controller.
// @BasePath     /
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.requestLogger)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", h.health)

	if h.ws != nil {
		router.GET("/ws", h.ws)
	}

	h.registerAPIRoutes(router)
	return router
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		h.registerMonitoringRoutes(api)
		h.registerSettingsRoutes(api)
		h.registerSessionRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerMonitoringRoutes(api *gin.RouterGroup) {
	api.GET("/state", h.getState)
	charts := api.Group("/charts")
	{
		charts.GET("/:kind", h.getChart)
		charts.GET("/:kind/image", h.getChartImage)
	}
}

func (h *Handler) registerSettingsRoutes(api *gin.RouterGroup) {
	api.GET("/controls", h.getControls)
	api.POST("/controls/selected_fan", h.selectFan)

	settings := api.Group("/settings")
	{
		// Body example: {"timeout_sec":30,"max_retries":3,"is_enabled":true}
		settings.POST("/watchdog", h.setWatchdog)
		// Body example: {"fan_name":"CM4_FAN_J18","fan_pwm_pct":80}
		settings.POST("/fan_pwm", h.setFanPwm)
	}
}

func (h *Handler) registerSessionRoutes(api *gin.RouterGroup) {
	stream := api.Group("/stream")
	{
		stream.POST("/pause", h.pauseStream)
		stream.POST("/resume", h.resumeStream)
	}
	api.POST("/quit", h.quit)
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}
