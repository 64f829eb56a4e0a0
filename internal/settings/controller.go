package settings

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"thermal_dashboard/internal/device"
	"thermal_dashboard/internal/logger"
	"thermal_dashboard/internal/models"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidCommand = errors.New("invalid command")
	ErrControlBusy    = errors.New("a request for this control is still pending")
	ErrUnknownFan     = errors.New("unknown fan")
)

// Device issues the mutating requests.
type Device interface {
	SetWatchdog(ctx context.Context, s models.WatchdogSettings) (models.WatchdogSettings, error)
	SetFanPwm(ctx context.Context, s models.FanPwmSettings) (models.FanPwmConfirmation, error)
}

// StatusSlot is the shared error surface. Raise and Release are keyed by
// control so a success only withdraws that control's own failure.
type StatusSlot interface {
	Raise(owner, message string)
	Release(owner string) bool
}

// Indicator is the loading indicator; it follows request lifetime only.
type Indicator interface {
	Show(control string)
	Hide(control string)
}

// Observer is told about every settled mutation.
type Observer interface {
	OnOutcome(Outcome)
}

// Options tune the controller.
type Options struct {
	// SerializePerControl rejects a command with ErrControlBusy while the
	// same control still has a request in flight.
	SerializePerControl bool
}

type controlState struct {
	inFlight int
}

// Controller turns operator commands into device requests and reconciles
// the displayed controls with what the device confirmed.
type Controller struct {
	device    Device
	status    StatusSlot
	indicator Indicator
	observers []Observer
	opts      Options
	validate  *validator.Validate
	log       *logger.Logger

	mu       sync.Mutex
	states   map[string]*controlState
	watchdog WatchdogView
	pwm      map[string]int
	selected string
}

func NewController(dev Device, status StatusSlot, indicator Indicator, opts Options, log *logger.Logger) *Controller {
	return &Controller{
		device:    dev,
		status:    status,
		indicator: indicator,
		opts:      opts,
		validate:  validator.New(),
		log:       log,
		states: map[string]*controlState{
			ControlWatchdog: {},
			ControlFanPwm:   {},
		},
		pwm: make(map[string]int),
	}
}

// AddObserver registers o for settled outcomes. Call before serving commands.
func (c *Controller) AddObserver(o Observer) {
	c.observers = append(c.observers, o)
}

// Seed initialises the displayed controls from the device status document.
func (c *Controller) Seed(st models.DeviceStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st.Watchdog != nil {
		c.watchdog = WatchdogView(*st.Watchdog)
	}
	for name, pct := range st.FanPwmPct {
		c.pwm[name] = int(math.Round(pct))
	}
	if c.selected == "" {
		c.selected = firstKey(c.pwm)
	}
}

// SelectFan switches the PWM input to another fan and returns its
// displayed percentage.
func (c *Controller) SelectFan(name string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pct, ok := c.pwm[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownFan, name)
	}
	c.selected = name
	return pct, nil
}

// Controls returns a copy of the displayed controls.
func (c *Controller) Controls() Controls {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controlsLocked()
}

// Pending reports whether control has a request in flight.
func (c *Controller) Pending(control string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[control]
	return ok && st.inFlight > 0
}

// SetWatchdog issues exactly one watchdog request. A confirmation never
// overwrites the form: the device echoes what it stored.
func (c *Controller) SetWatchdog(ctx context.Context, cmd SetWatchdogConfig) (Outcome, error) {
	if err := c.validate.Struct(cmd); err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	req := models.WatchdogSettings{TimeoutSec: cmd.TimeoutSec, MaxRetries: cmd.MaxRetries, IsEnabled: cmd.IsEnabled}

	if err := c.begin(ControlWatchdog, func() { c.watchdog = WatchdogView(req) }); err != nil {
		return Outcome{}, err
	}
	applied, err := c.device.SetWatchdog(ctx, req)
	c.end(ControlWatchdog)

	if err != nil {
		return c.fail(ControlWatchdog, req, err), nil
	}
	return c.succeed(ControlWatchdog, req, applied, nil), nil
}

// SetFanPwm issues exactly one PWM request and, on success, shows the
// percentage the device actually applied instead of the requested one.
func (c *Controller) SetFanPwm(ctx context.Context, cmd SetFanPwm) (Outcome, error) {
	if err := c.validate.Struct(cmd); err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	req := models.FanPwmSettings{FanName: cmd.FanName, FanPwmPct: cmd.FanPwmPct}

	if err := c.begin(ControlFanPwm, func() {
		c.pwm[cmd.FanName] = cmd.FanPwmPct
		c.selected = cmd.FanName
	}); err != nil {
		return Outcome{}, err
	}
	conf, err := c.device.SetFanPwm(ctx, req)
	c.end(ControlFanPwm)

	if err != nil {
		return c.fail(ControlFanPwm, req, err), nil
	}

	applied, ok := conf[cmd.FanName]
	if !ok {
		if c.log != nil {
			c.log.Warnw("fan_pwm_confirmation_missing_fan", "fan", cmd.FanName, "confirmation", conf)
		}
		return c.succeed(ControlFanPwm, req, conf, nil), nil
	}
	return c.succeed(ControlFanPwm, req, conf, func() { c.pwm[cmd.FanName] = applied }), nil
}

// begin enters Pending: records the operator's input as the displayed value
// and shows the loading indicator.
func (c *Controller) begin(control string, showInput func()) error {
	c.mu.Lock()
	st := c.states[control]
	if c.opts.SerializePerControl && st.inFlight > 0 {
		c.mu.Unlock()
		return ErrControlBusy
	}
	st.inFlight++
	showInput()
	c.mu.Unlock()

	if c.indicator != nil {
		c.indicator.Show(control)
	}
	return nil
}

// end hides the loading indicator once the request settled, whatever the
// response said.
func (c *Controller) end(control string) {
	c.mu.Lock()
	c.states[control].inFlight--
	c.mu.Unlock()

	if c.indicator != nil {
		c.indicator.Hide(control)
	}
}

func (c *Controller) succeed(control string, requested, confirmed any, reconcile func()) Outcome {
	c.mu.Lock()
	if reconcile != nil {
		reconcile()
	}
	out := Outcome{Control: control, Result: ResultApplied, Requested: requested, Confirmed: confirmed, Controls: c.controlsLocked()}
	c.mu.Unlock()

	if c.status != nil {
		c.status.Release(control)
	}
	if c.log != nil {
		c.log.Infow("settings_applied", "control", control, "requested", requested, "confirmed", confirmed)
	}
	c.notify(out)
	return out
}

func (c *Controller) fail(control string, requested any, err error) Outcome {
	result, message := classify(err)

	c.mu.Lock()
	out := Outcome{Control: control, Result: result, Message: message, Requested: requested, Controls: c.controlsLocked()}
	c.mu.Unlock()

	if c.status != nil {
		c.status.Raise(control, message)
	}
	if c.log != nil {
		detail := err.Error()
		var te *device.TransportError
		if errors.As(err, &te) {
			detail = te.Detail()
		}
		c.log.Warnw("settings_failed", "control", control, "result", result, "err", detail)
	}
	c.notify(out)
	return out
}

func (c *Controller) notify(out Outcome) {
	for _, o := range c.observers {
		o.OnOutcome(out)
	}
}

// classify maps a request error to its outcome and operator-facing text.
func classify(err error) (Result, string) {
	var appErr *device.AppError
	if errors.As(err, &appErr) {
		return ResultRejected, appErr.Message
	}
	var te *device.TransportError
	if errors.As(err, &te) {
		return ResultTransportError, te.StatusText
	}
	return ResultTransportError, err.Error()
}

func (c *Controller) controlsLocked() Controls {
	pwm := make(map[string]int, len(c.pwm))
	for k, v := range c.pwm {
		pwm[k] = v
	}
	pending := make(map[string]int, len(c.states))
	for k, st := range c.states {
		pending[k] = st.inFlight
	}
	return Controls{Watchdog: c.watchdog, FanPwmPct: pwm, SelectedFan: c.selected, Pending: pending}
}

func firstKey(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}
