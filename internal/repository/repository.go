package repository

import (
	"context"
	"database/sql"
	"time"

	"thermal_dashboard/internal/models"
)

// EventFilter narrows an audit log query. Zero values mean "no bound".
type EventFilter struct {
	From  time.Time
	To    time.Time
	Type  string
	Limit int
}

type EventRepo interface {
	Append(ctx context.Context, e models.DashboardEvent) error
	List(ctx context.Context, f EventFilter) ([]models.DashboardEvent, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

type Repository struct {
	EventRepo EventRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		EventRepo: NewEventSQLite(db),
	}
}
