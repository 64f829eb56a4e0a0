package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"thermal_dashboard/internal/chart"
	"thermal_dashboard/internal/models"
	"thermal_dashboard/internal/service"
	"thermal_dashboard/internal/settings"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockMonitoring struct {
	snap     models.StateSnapshot
	snapErr  error
	frames   map[chart.Kind]chart.Frame
	chartErr error
	stats    service.StreamStats
}

func (m *mockMonitoring) Snapshot(ctx context.Context) (models.StateSnapshot, error) {
	return m.snap, m.snapErr
}

func (m *mockMonitoring) Chart(ctx context.Context, kind chart.Kind) (chart.Frame, error) {
	if m.chartErr != nil {
		return chart.Frame{}, m.chartErr
	}
	f, ok := m.frames[kind]
	if !ok {
		return chart.Frame{}, service.ErrNoChart
	}
	return f, nil
}

func (m *mockMonitoring) Stats() service.StreamStats { return m.stats }

type mockSettings struct {
	outcome  settings.Outcome
	err      error
	controls settings.Controls
	fanPct   map[string]int

	lastWatchdog settings.SetWatchdogConfig
	lastFanPwm   settings.SetFanPwm
	calls        int
}

func (m *mockSettings) SetWatchdog(ctx context.Context, cmd settings.SetWatchdogConfig) (settings.Outcome, error) {
	m.calls++
	m.lastWatchdog = cmd
	return m.outcome, m.err
}

func (m *mockSettings) SetFanPwm(ctx context.Context, cmd settings.SetFanPwm) (settings.Outcome, error) {
	m.calls++
	m.lastFanPwm = cmd
	return m.outcome, m.err
}

func (m *mockSettings) SelectFan(name string) (int, error) {
	pct, ok := m.fanPct[name]
	if !ok {
		return 0, settings.ErrUnknownFan
	}
	return pct, nil
}

func (m *mockSettings) Controls() settings.Controls { return m.controls }

type mockEventLog struct {
	resp []models.DashboardEvent
	err  error
	last service.LogFilter
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.DashboardEvent, error) {
	m.last = f
	return m.resp, m.err
}

type mockSession struct {
	err     error
	quitErr error
	calls   []string
}

func (m *mockSession) PauseStream(ctx context.Context) error {
	m.calls = append(m.calls, "pause")
	return m.err
}

func (m *mockSession) ResumeStream(ctx context.Context) error {
	m.calls = append(m.calls, "resume")
	return m.err
}

func (m *mockSession) Quit(ctx context.Context) error {
	m.calls = append(m.calls, "quit")
	return m.quitErr
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewHandler(s, nil, nil).InitRoutes()
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
