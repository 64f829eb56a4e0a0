package settings

// Controls that accept mutations. Each has its own independent state.
const (
	ControlWatchdog = "watchdog"
	ControlFanPwm   = "fan_pwm"
)

// SetWatchdogConfig is produced by a change of any watchdog form field; it
// always carries the whole form.
type SetWatchdogConfig struct {
	TimeoutSec int  `json:"timeout_sec" validate:"gte=1"`
	MaxRetries int  `json:"max_retries" validate:"gte=0"`
	IsEnabled  bool `json:"is_enabled"`
}

// SetFanPwm is produced by a change of the PWM input for one fan.
type SetFanPwm struct {
	FanName   string `json:"fan_name" validate:"required"`
	FanPwmPct int    `json:"fan_pwm_pct" validate:"gte=0,lte=100"`
}

// Result classifies how a mutation settled.
type Result string

const (
	ResultApplied        Result = "applied"
	ResultRejected       Result = "rejected"
	ResultTransportError Result = "transport_error"
)

// Outcome describes one settled mutation.
type Outcome struct {
	Control   string   `json:"control"`
	Result    Result   `json:"result"`
	Message   string   `json:"message,omitempty"`
	Requested any      `json:"requested"`
	Confirmed any      `json:"confirmed,omitempty"`
	Controls  Controls `json:"controls"`
}

// Controls is what the operator sees in the settings form.
type Controls struct {
	Watchdog    WatchdogView   `json:"watchdog"`
	FanPwmPct   map[string]int `json:"fan_pwm_pct"`
	SelectedFan string         `json:"selected_fan,omitempty"`
	Pending     map[string]int `json:"pending"`
}

// WatchdogView mirrors the watchdog form fields.
type WatchdogView struct {
	TimeoutSec int  `json:"timeout_sec"`
	MaxRetries int  `json:"max_retries"`
	IsEnabled  bool `json:"is_enabled"`
}
