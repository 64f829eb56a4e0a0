package service

import (
	"context"
	"errors"
	"time"

	"thermal_dashboard/internal/chart"
	"thermal_dashboard/internal/models"
	"thermal_dashboard/internal/stream"
)

var (
	ErrNoSnapshot = errors.New("no snapshot received yet")
	ErrNoChart    = errors.New("chart not rendered yet")
)

// StreamCounters is the part of the stream client monitoring reports on.
type StreamCounters interface {
	Delivered() uint64
	Dropped() uint64
	RetryDelay() time.Duration
}

// StreamStats summarizes the push channel for operators.
type StreamStats struct {
	Delivered   uint64 `json:"delivered"`
	Dropped     uint64 `json:"dropped"`
	RetryMs     int64  `json:"retry_ms"`
	Subscribers int    `json:"subscribers"`
	HasSnapshot bool   `json:"has_snapshot"`
}

type MonitoringService struct {
	registry *stream.Registry
	charts   *chart.Store
	counters StreamCounters
}

func NewMonitoringService(registry *stream.Registry, charts *chart.Store, counters StreamCounters) *MonitoringService {
	return &MonitoringService{registry: registry, charts: charts, counters: counters}
}

// Snapshot returns the most recently published snapshot.
func (s *MonitoringService) Snapshot(ctx context.Context) (models.StateSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return models.StateSnapshot{}, err
	}
	snap, ok := s.registry.Current()
	if !ok {
		return models.StateSnapshot{}, ErrNoSnapshot
	}
	return snap, nil
}

// Chart returns the last frame rendered for kind.
func (s *MonitoringService) Chart(ctx context.Context, kind chart.Kind) (chart.Frame, error) {
	if err := ctx.Err(); err != nil {
		return chart.Frame{}, err
	}
	f, ok := s.charts.Get(kind)
	if !ok {
		return chart.Frame{}, ErrNoChart
	}
	return f, nil
}

func (s *MonitoringService) Stats() StreamStats {
	_, has := s.registry.Current()
	st := StreamStats{Subscribers: s.registry.Len(), HasSnapshot: has}
	if s.counters != nil {
		st.Delivered = s.counters.Delivered()
		st.Dropped = s.counters.Dropped()
		st.RetryMs = s.counters.RetryDelay().Milliseconds()
	}
	return st
}
