package models

// Settings domains understood by the device under /api/settings/{domain}.
const (
	DomainWatchdog = "watchdog"
	DomainFanPwm   = "fan_pwm"
)

// WatchdogSettings is both the watchdog request body and its confirmation.
type WatchdogSettings struct {
	TimeoutSec int  `json:"timeout_sec" validate:"gte=1"`
	MaxRetries int  `json:"max_retries" validate:"gte=0"`
	IsEnabled  bool `json:"is_enabled"`
}

// FanPwmSettings requests a new duty cycle for one fan.
type FanPwmSettings struct {
	FanName   string `json:"fan_name" validate:"required"`
	FanPwmPct int    `json:"fan_pwm_pct" validate:"gte=0,lte=100"`
}

// FanPwmConfirmation maps fan name to the percentage the device actually applied.
type FanPwmConfirmation map[string]int

// DeviceStatus is the device's point-in-time status document (GET /api/status).
type DeviceStatus struct {
	FanPwmPct     map[string]float64 `json:"fan_pwm_pct,omitempty"`
	Watchdog      *WatchdogSettings  `json:"watchdog,omitempty"`
	TemperatureC  map[string]float64 `json:"temperature_c,omitempty"`
	TachometerRPM map[string]float64 `json:"tachometer_rpm,omitempty"`
}
