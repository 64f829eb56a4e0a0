package device

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"thermal_dashboard/internal/logger"
	"thermal_dashboard/internal/models"
)

// Device endpoints.
const (
	PathStream   = "/stream"
	PathSettings = "/api/settings/"
	PathStatus   = "/api/status"
	PathStart    = "/api/start"
	PathStop     = "/api/stop"
	PathQuit     = "/quit/now"
)

const (
	defaultTimeout  = 10 * time.Second
	maxResponseSize = 1 << 20 // 1 MB
	errorKey        = "error"
)

var errEmptyBaseURL = errors.New("device base URL is empty")

// Config configures the device API client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration // per request; 0 means 10s
	HTTPClient *http.Client  // overrides Timeout when set
}

// Client talks to the controller's request/response endpoints.
type Client struct {
	base *url.URL
	http *http.Client
	log  *logger.Logger
}

func NewClient(cfg Config, log *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errEmptyBaseURL
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse device base URL: %w", err)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{base: base, http: hc, log: log}, nil
}

// StreamURL is the push-channel endpoint.
func (c *Client) StreamURL() string { return c.endpoint(PathStream) }

func (c *Client) endpoint(path string) string {
	return c.base.String() + path
}

// SetWatchdog writes the watchdog settings and returns what the device applied.
func (c *Client) SetWatchdog(ctx context.Context, s models.WatchdogSettings) (models.WatchdogSettings, error) {
	var out models.WatchdogSettings
	if err := c.postSettings(ctx, models.DomainWatchdog, s, &out); err != nil {
		return models.WatchdogSettings{}, err
	}
	return out, nil
}

// SetFanPwm writes one fan's duty cycle. The confirmation holds the applied
// percentage, which can differ from the requested one.
func (c *Client) SetFanPwm(ctx context.Context, s models.FanPwmSettings) (models.FanPwmConfirmation, error) {
	out := models.FanPwmConfirmation{}
	if err := c.postSettings(ctx, models.DomainFanPwm, s, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Status fetches the device status document.
func (c *Client) Status(ctx context.Context) (models.DeviceStatus, error) {
	var out models.DeviceStatus
	if err := c.do(ctx, "status", http.MethodGet, PathStatus, nil, &out); err != nil {
		return models.DeviceStatus{}, err
	}
	return out, nil
}

// PauseStream asks the device to stop emitting stream frames.
func (c *Client) PauseStream(ctx context.Context) error {
	return c.do(ctx, "pause", http.MethodPost, PathStop, nil, nil)
}

// ResumeStream undoes PauseStream.
func (c *Client) ResumeStream(ctx context.Context) error {
	return c.do(ctx, "resume", http.MethodPost, PathStart, nil, nil)
}

// Quit triggers device-side shutdown. The response body is not inspected.
func (c *Client) Quit(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(PathQuit), nil)
	if err != nil {
		return fmt.Errorf("build quit request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return networkError("quit", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
	if resp.StatusCode/100 != 2 {
		return statusError("quit", resp)
	}
	return nil
}

func (c *Client) postSettings(ctx context.Context, domain string, body, out any) error {
	err := c.do(ctx, domain, http.MethodPost, PathSettings+domain, body, out)
	var appErr *AppError
	if errors.As(err, &appErr) {
		appErr.Domain = domain
	}
	return err
}

// do issues one JSON request. A 2xx body with an "error" key yields
// *AppError; anything that is not a usable response yields *TransportError.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), rd)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return networkError(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode/100 != 2 {
		return statusError(op, resp)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return networkError(op, err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, StatusText: "invalid response", Err: err}
	}
	if msg, ok := fields[errorKey]; ok {
		return &AppError{Message: errorText(msg)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, StatusText: "invalid response", Err: err}
	}
	return nil
}

func statusError(op string, resp *http.Response) *TransportError {
	text := http.StatusText(resp.StatusCode)
	if text == "" {
		text = resp.Status
	}
	return &TransportError{Op: op, StatusCode: resp.StatusCode, StatusText: text}
}

// errorText renders the "error" value; devices normally send a string.
func errorText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
