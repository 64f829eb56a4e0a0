package simulator

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"thermal_dashboard/internal/models"

	"github.com/gin-gonic/gin"
)

func init() { gin.SetMode(gin.TestMode) }

func newSim(t *testing.T, mutate func(*Config)) *Simulator {
	t.Helper()
	cfg := DefaultConfig()
	cfg.HistorySeconds = 10
	cfg.Sensors = []string{"CPU", "Board"}
	cfg.Fans = []string{"fan1", "fan2"}
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg, nil, nil)
}

func post(t *testing.T, h http.Handler, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w.Code, out
}

func TestQuantize(t *testing.T) {
	t.Parallel()
	s := newSim(t, func(c *Config) { c.MinPwmPct = 20; c.PwmStepPct = 5 })

	cases := []struct{ in, want int }{
		{80, 80},
		{77, 75},
		{101, 100},
		{3, 20},
		{22, 20},
		{-4, 20},
	}
	for _, tc := range cases {
		if got := s.quantize(tc.in); got != tc.want {
			t.Fatalf("quantize(%d) = %d; want %d", tc.in, got, tc.want)
		}
	}
}

func TestStep_KeepsSlidingAlignedWindow(t *testing.T) {
	t.Parallel()
	s := newSim(t, nil)
	frames, cancel := s.subscribe()
	defer cancel()

	base := time.Unix(1_700_000_000, 0)
	var last frame
	for i := 0; i < 15; i++ {
		s.step(base.Add(time.Duration(i) * time.Second))
		last = <-frames
	}
	var snap models.StateSnapshot
	if err := json.Unmarshal([]byte(last.payload), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := snap.Validate(); err != nil {
		t.Fatalf("snapshot not aligned: %v", err)
	}
	if len(snap.TimestampSec) != 10 || snap.TimestampSec[0] != float64(base.Unix()+5) {
		t.Fatalf("window = %v", snap.TimestampSec)
	}
	if snap.Seq == nil || *snap.Seq != 15 || last.seq != 15 {
		t.Fatalf("seq = %v / %d", snap.Seq, last.seq)
	}
	if len(snap.TemperatureC) != 2 || len(snap.TachometerRPM) != 2 {
		t.Fatalf("series = %v / %v", snap.TemperatureC, snap.TachometerRPM)
	}
}

func TestStep_PausedSamplesButDoesNotPush(t *testing.T) {
	t.Parallel()
	s := newSim(t, nil)
	frames, cancel := s.subscribe()
	defer cancel()

	h := s.Handler()
	if code, out := post(t, h, "/api/stop", ""); code != http.StatusOK || out["result"] != "Success" {
		t.Fatalf("stop = %d %v", code, out)
	}
	s.step(time.Unix(10, 0))
	if len(frames) != 0 {
		t.Fatalf("paused simulator pushed a frame")
	}
	post(t, h, "/api/start", "")
	s.step(time.Unix(11, 0))
	f := <-frames
	var snap models.StateSnapshot
	_ = json.Unmarshal([]byte(f.payload), &snap)
	if len(snap.TimestampSec) != 2 {
		t.Fatalf("history should include paused samples: %v", snap.TimestampSec)
	}
}

func TestFanSpeedFollowsPwm(t *testing.T) {
	t.Parallel()
	s := newSim(t, nil)
	s.pwm["fan1"] = 0
	s.pwm["fan2"] = 100
	if s.fanRPM("fan1") != 0 {
		t.Fatalf("stalled fan should report 0 RPM")
	}
	if rpm := s.fanRPM("fan2"); rpm < MaxFanRPM-50 || rpm > MaxFanRPM+50 {
		t.Fatalf("rpm = %v", rpm)
	}
	if s.equilibrium(0) >= AmbientC+30 {
		t.Fatalf("fans at work should cool below the heat load")
	}
}

func TestSettingsAPI(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		path     string
		body     string
		wantCode int
		want     map[string]any
	}{
		{"unknown_setting", "/api/settings/led", `{"a":1}`, 200, map[string]any{"error": "Setting not found: led"}},
		{"empty_body", "/api/settings/watchdog", ``, 200, map[string]any{"error": msgNoArguments}},
		{"empty_object", "/api/settings/fan_pwm", `{}`, 200, map[string]any{"error": msgNoArguments}},
		{"invalid_json", "/api/settings/watchdog", `{nope`, 500, map[string]any{"error": msgInvalidJSON}},
		{"watchdog_missing_flag", "/api/settings/watchdog", `{"timeout_sec":5,"max_retries":1}`, 200, map[string]any{"error": "Invalid argument is_enabled"}},
		{"watchdog_negative_timeout", "/api/settings/watchdog", `{"is_enabled":true,"timeout_sec":-5,"max_retries":1}`, 200, map[string]any{"error": "Invalid argument timeout_sec"}},
		{"watchdog_float_retries", "/api/settings/watchdog", `{"is_enabled":true,"timeout_sec":5,"max_retries":1.5}`, 200, map[string]any{"error": "Invalid argument max_retries"}},
		{"watchdog_ok", "/api/settings/watchdog", `{"is_enabled":true,"timeout_sec":30,"max_retries":3}`, 200, map[string]any{"is_enabled": true, "timeout_sec": 30.0, "max_retries": 3.0}},
		{"watchdog_clamped", "/api/settings/watchdog", `{"is_enabled":false,"timeout_sec":0,"max_retries":70000}`, 200, map[string]any{"is_enabled": false, "timeout_sec": 1.0, "max_retries": 65535.0}},
		{"fan_missing_name", "/api/settings/fan_pwm", `{"fan_pwm_pct":10}`, 200, map[string]any{"error": "Invalid argument fan_name"}},
		{"fan_unknown", "/api/settings/fan_pwm", `{"fan_name":"fan9","fan_pwm_pct":10}`, 200, map[string]any{"error": "Invalid argument fan9"}},
		{"fan_bad_pct", "/api/settings/fan_pwm", `{"fan_name":"fan1","fan_pwm_pct":"high"}`, 200, map[string]any{"error": "Invalid argument fan_pwm_pct"}},
		{"fan_quantized", "/api/settings/fan_pwm", `{"fan_name":"fan1","fan_pwm_pct":77}`, 200, map[string]any{"fan1": 75.0}},
		{"fan_over_100", "/api/settings/fan_pwm", `{"fan_name":"fan2","fan_pwm_pct":150}`, 200, map[string]any{"fan2": 100.0}},
		{"fan_read_only", "/api/settings/fan_pwm", `{"fan_name":"fan2"}`, 200, map[string]any{"fan2": 50.0}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := newSim(t, nil).Handler()
			code, out := post(t, h, tc.path, tc.body)
			if code != tc.wantCode {
				t.Fatalf("code = %d; want %d", code, tc.wantCode)
			}
			if len(out) != len(tc.want) {
				t.Fatalf("body = %v; want %v", out, tc.want)
			}
			for k, v := range tc.want {
				if out[k] != v {
					t.Fatalf("body[%q] = %v; want %v", k, out[k], v)
				}
			}
		})
	}
}

func TestSettingsFaultAndStatus(t *testing.T) {
	t.Parallel()
	s := newSim(t, nil)
	h := s.Handler()

	s.SetFault("RPI Pico connection error")
	_, out := post(t, h, "/api/settings/fan_pwm", `{"fan_name":"fan1","fan_pwm_pct":80}`)
	if out["error"] != "RPI Pico connection error" {
		t.Fatalf("body = %v", out)
	}
	s.SetFault("")
	post(t, h, "/api/settings/fan_pwm", `{"fan_name":"fan1","fan_pwm_pct":80}`)
	post(t, h, "/api/settings/watchdog", `{"is_enabled":true,"timeout_sec":45,"max_retries":2}`)
	s.step(time.Unix(100, 0))

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var st models.DeviceStatus
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.FanPwmPct["fan1"] != 80 || st.FanPwmPct["fan2"] != 50 {
		t.Fatalf("pwm = %v", st.FanPwmPct)
	}
	if st.Watchdog == nil || st.Watchdog.TimeoutSec != 45 || !st.Watchdog.IsEnabled {
		t.Fatalf("watchdog = %+v", st.Watchdog)
	}
	if _, ok := st.TemperatureC["CPU"]; !ok {
		t.Fatalf("temperature = %v", st.TemperatureC)
	}
}

func TestQuitClosesStreamsAndNotifies(t *testing.T) {
	t.Parallel()
	quit := make(chan struct{})
	cfg := DefaultConfig()
	s := New(cfg, func() { close(quit) }, nil)
	frames, _ := s.subscribe()

	req := httptest.NewRequest(http.MethodPost, "/quit/now", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Body.String() != "bye" {
		t.Fatalf("body = %q", w.Body.String())
	}
	select {
	case <-quit:
	case <-time.After(2 * time.Second):
		t.Fatalf("onQuit not called")
	}
	if _, ok := <-frames; ok {
		t.Fatalf("stream should be closed")
	}
}
