package repository

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"thermal_dashboard/internal/models"
	"thermal_dashboard/internal/repository/db"

	"github.com/DATA-DOG/go-sqlmock"
)

func ctx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return c
}

func newMock(t *testing.T) (*EventSQLite, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewEventSQLite(conn), mock
}

var eventColumns = []string{"id", "occurred_at", "type", "message", "meta"}

func TestAppend_FillsDefaultsAndNormalizesType(t *testing.T) {
	t.Parallel()
	repo, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta(insertEventSQL)).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "SETTINGS_APPLIED", "fan_pwm applied", `{"fan":"fan1"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Append(ctx(t), models.DashboardEvent{
		Type:        " settings_applied ",
		Description: "fan_pwm applied",
		Metadata:    map[string]string{"fan": "fan1"},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestAppend_DBError(t *testing.T) {
	t.Parallel()
	repo, mock := newMock(t)

	mock.ExpectExec("INSERT INTO dashboard_events").WillReturnError(errors.New("down"))

	err := repo.Append(ctx(t), models.DashboardEvent{Type: models.EventQuit, Description: "x"})
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Fatalf("expected error, got %v", err)
	}
}

func TestAppend_UnencodableMetadata(t *testing.T) {
	t.Parallel()
	repo, mock := newMock(t)

	err := repo.Append(ctx(t), models.DashboardEvent{Type: models.EventQuit, Metadata: make(chan int)})
	if err == nil {
		t.Fatalf("expected encode error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("nothing should have been executed: %v", err)
	}
}

func TestList_NoFilters_ParsesTimesAndMetadata(t *testing.T) {
	t.Parallel()
	repo, mock := newMock(t)

	at := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	js, _ := json.Marshal(map[string]any{"control": "watchdog"})
	rows := sqlmock.NewRows(eventColumns).
		AddRow("1", at, "SETTINGS_REJECTED", "bad timeout", string(js)).
		AddRow("2", "2025-01-01 11:00:00.250", "STREAM_OPEN", "connected", nil).
		AddRow("3", "2025-01-01 12:00:00", "FRAME_DROPPED", "bad frame", "not-json")

	mock.ExpectQuery(regexp.QuoteMeta(selectEventsSQL + " ORDER BY occurred_at ASC")).WillReturnRows(rows)

	got, err := repo.List(ctx(t), EventFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3, got %d", len(got))
	}
	if !got[0].OccurredAt.Equal(at) || !got[1].OccurredAt.Equal(at.Add(time.Hour+250*time.Millisecond)) {
		t.Fatalf("times = %v, %v", got[0].OccurredAt, got[1].OccurredAt)
	}
	if b, _ := json.Marshal(got[0].Metadata); string(b) != string(js) {
		t.Fatalf("metadata mismatch: %s vs %s", b, js)
	}
	if got[1].Metadata != nil {
		t.Fatalf("expected nil meta, got %#v", got[1].Metadata)
	}
	if got[2].Metadata != "not-json" {
		t.Fatalf("malformed meta should be kept raw, got %#v", got[2].Metadata)
	}
}

func TestList_WithFiltersAndLimit(t *testing.T) {
	t.Parallel()
	repo, mock := newMock(t)

	from := time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	query := `SELECT * FROM (` + selectEventsSQL +
		` WHERE occurred_at >= ? AND occurred_at <= ? AND type = ? ORDER BY occurred_at DESC LIMIT ?) ORDER BY occurred_at ASC`

	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs("2025-01-01 11:00:00.000", "2025-01-01 12:00:00.000", "TRANSPORT_ERROR", 5).
		WillReturnRows(sqlmock.NewRows(eventColumns).AddRow("9", to, "TRANSPORT_ERROR", "timeout", nil))

	got, err := repo.List(ctx(t), EventFilter{From: from, To: to, Type: " transport_error ", Limit: 5})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].EventID != "9" {
		t.Fatalf("unexpected results: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestList_BadTimestamp(t *testing.T) {
	t.Parallel()
	repo, mock := newMock(t)

	mock.ExpectQuery("SELECT id, occurred_at").
		WillReturnRows(sqlmock.NewRows(eventColumns).AddRow("x", 123, "QUIT", "msg", nil))

	if _, err := repo.List(ctx(t), EventFilter{}); err == nil {
		t.Fatalf("expected timestamp error, got nil")
	}
}

func TestPrune(t *testing.T) {
	t.Parallel()
	repo, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta(pruneEventsSQL)).
		WithArgs("2025-01-01 00:00:00.000").
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.Prune(ctx(t), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil || n != 4 {
		t.Fatalf("Prune = %d, %v", n, err)
	}
}

func TestEventSQLite_RoundTripOnRealDatabase(t *testing.T) {
	conn, err := db.InitDB(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	repo := NewRepository(conn).EventRepo

	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	for i, typ := range []string{models.EventStreamOpen, models.EventSettingsApplied, models.EventSettingsApplied, models.EventQuit} {
		err := repo.Append(ctx(t), models.DashboardEvent{
			OccurredAt:  base.Add(time.Duration(i) * time.Minute),
			Type:        typ,
			Description: typ,
			Metadata:    map[string]int{"i": i},
		})
		if err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	applied, err := repo.List(ctx(t), EventFilter{Type: models.EventSettingsApplied})
	if err != nil || len(applied) != 2 {
		t.Fatalf("List by type = %d, %v", len(applied), err)
	}
	if !applied[0].OccurredAt.Equal(base.Add(time.Minute)) {
		t.Fatalf("occurred_at = %v", applied[0].OccurredAt)
	}

	last, err := repo.List(ctx(t), EventFilter{Limit: 2})
	if err != nil || len(last) != 2 || last[1].Type != models.EventQuit {
		t.Fatalf("List with limit = %+v, %v", last, err)
	}

	n, err := repo.Prune(ctx(t), base.Add(2*time.Minute))
	if err != nil || n != 2 {
		t.Fatalf("Prune = %d, %v", n, err)
	}
	rest, _ := repo.List(ctx(t), EventFilter{From: base})
	if len(rest) != 2 {
		t.Fatalf("remaining = %d", len(rest))
	}
}
