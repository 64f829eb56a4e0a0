package service

import (
	"context"

	"thermal_dashboard/internal/chart"
	"thermal_dashboard/internal/logger"
	"thermal_dashboard/internal/models"
	"thermal_dashboard/internal/repository"
	"thermal_dashboard/internal/settings"
	"thermal_dashboard/internal/stream"
)

// Monitoring exposes the read side: the current snapshot and rendered charts.
type Monitoring interface {
	Snapshot(ctx context.Context) (models.StateSnapshot, error)
	Chart(ctx context.Context, kind chart.Kind) (chart.Frame, error)
	Stats() StreamStats
}

// Settings exposes the operator's mutation commands.
type Settings interface {
	SetWatchdog(ctx context.Context, cmd settings.SetWatchdogConfig) (settings.Outcome, error)
	SetFanPwm(ctx context.Context, cmd settings.SetFanPwm) (settings.Outcome, error)
	SelectFan(name string) (int, error)
	Controls() settings.Controls
}

// EventLog exposes the audit log with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.DashboardEvent, error)
}

// Session controls the device's stream and the dashboard's lifetime.
type Session interface {
	PauseStream(ctx context.Context) error
	ResumeStream(ctx context.Context) error
	Quit(ctx context.Context) error
}

type Service struct {
	Monitoring
	Settings
	EventLog
	Session
}

// Deps are the collaborators NewService wires together.
type Deps struct {
	Registry   *stream.Registry
	Charts     *chart.Store
	Stream     StreamCounters
	Controller *settings.Controller
	Device     SessionDevice
	Farewell   Farewell
	Repos      *repository.Repository
	OnQuit     func()
	Log        *logger.Logger
}

func NewService(d Deps) *Service {
	return &Service{
		Monitoring: NewMonitoringService(d.Registry, d.Charts, d.Stream),
		Settings:   d.Controller,
		EventLog:   NewEventLogService(d.Repos.EventRepo),
		Session:    NewSessionService(d.Device, d.Repos.EventRepo, d.Farewell, d.OnQuit, d.Log.Named("session")),
	}
}
