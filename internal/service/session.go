package service

import (
	"context"
	"sync"
	"time"

	"thermal_dashboard/internal/logger"
	"thermal_dashboard/internal/models"
	"thermal_dashboard/internal/repository"
)

// SessionDevice is the subset of the device API a session drives.
type SessionDevice interface {
	PauseStream(ctx context.Context) error
	ResumeStream(ctx context.Context) error
	Quit(ctx context.Context) error
}

// Farewell tells attached browsers the session ended.
type Farewell interface {
	Bye(reason string)
}

type SessionService struct {
	dev      SessionDevice
	events   repository.EventRepo
	farewell Farewell
	onQuit   func()
	log      *logger.Logger

	quitOnce sync.Once
}

func NewSessionService(dev SessionDevice, events repository.EventRepo, farewell Farewell, onQuit func(), log *logger.Logger) *SessionService {
	return &SessionService{dev: dev, events: events, farewell: farewell, onQuit: onQuit, log: log}
}

func (s *SessionService) PauseStream(ctx context.Context) error {
	if err := s.dev.PauseStream(ctx); err != nil {
		return err
	}
	if s.log != nil {
		s.log.Infow("stream_paused")
	}
	return nil
}

func (s *SessionService) ResumeStream(ctx context.Context) error {
	if err := s.dev.ResumeStream(ctx); err != nil {
		return err
	}
	if s.log != nil {
		s.log.Infow("stream_resumed")
	}
	return nil
}

// Quit asks the device to exit and ends the dashboard session. The session
// ends even when the device does not answer; its error is still returned.
func (s *SessionService) Quit(ctx context.Context) error {
	err := s.dev.Quit(ctx)

	s.quitOnce.Do(func() {
		meta := map[string]any{}
		if err != nil {
			meta["device_error"] = err.Error()
		}
		if s.events != nil {
			if aerr := s.events.Append(ctx, models.DashboardEvent{
				OccurredAt:  time.Now().UTC(),
				Type:        models.EventQuit,
				Description: "Operator ended the session",
				Metadata:    meta,
			}); aerr != nil && s.log != nil {
				s.log.Warnw("audit_append_failed", "type", models.EventQuit, "err", aerr)
			}
		}
		if s.farewell != nil {
			s.farewell.Bye("quit")
		}
		if s.log != nil {
			s.log.Infow("session_quit", "device_err", err)
		}
		if s.onQuit != nil {
			s.onQuit()
		}
	})
	return err
}
