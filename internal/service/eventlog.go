package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"thermal_dashboard/internal/models"
	"thermal_dashboard/internal/repository"
)

// MaxLogLimit caps how many audit events one query returns.
const MaxLogLimit = 1000

// LogFilter supports history filtering by time range and type.
type LogFilter struct {
	From  time.Time // inclusive; zero means no lower bound
	To    time.Time // inclusive; zero means no upper bound
	Type  string    // "", "STREAM_OPEN", "SETTINGS_APPLIED", ...
	Limit int       // most recent N; zero means MaxLogLimit
}

type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

var (
	errInvalidTimeRange = errors.New("invalid time range: From must be <= To")
	errInvalidLimit     = errors.New("invalid limit: must be between 0 and 1000")
)

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeAndValidateFilter prepares the repository query and validates it.
func normalizeAndValidateFilter(f LogFilter) (repository.EventFilter, error) {
	q := repository.EventFilter{
		From:  normalizeToUTC(f.From),
		To:    normalizeToUTC(f.To),
		Type:  strings.TrimSpace(strings.ToUpper(f.Type)),
		Limit: f.Limit,
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.From.After(q.To) {
		return repository.EventFilter{}, errInvalidTimeRange
	}
	if q.Limit < 0 || q.Limit > MaxLogLimit {
		return repository.EventFilter{}, errInvalidLimit
	}
	if q.Limit == 0 {
		q.Limit = MaxLogLimit
	}
	return q, nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.DashboardEvent, error) {
	q, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, q)
}

// IsInvalidFilter reports whether err comes from filter validation.
func IsInvalidFilter(err error) bool {
	return errors.Is(err, errInvalidTimeRange) || errors.Is(err, errInvalidLimit)
}
