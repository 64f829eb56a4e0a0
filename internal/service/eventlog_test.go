package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"thermal_dashboard/internal/models"
	"thermal_dashboard/internal/repository"
)

// fakeEventRepo is a minimal stub that satisfies repository.EventRepo.
type fakeEventRepo struct {
	mu sync.Mutex

	gotFilter repository.EventFilter
	appended  []models.DashboardEvent

	events    []models.DashboardEvent
	err       error
	appendErr error

	calls int
}

func (f *fakeEventRepo) List(ctx context.Context, q repository.EventFilter) ([]models.DashboardEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotFilter = q
	return f.events, f.err
}

func (f *fakeEventRepo) Append(ctx context.Context, e models.DashboardEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, e)
	return f.appendErr
}

func (f *fakeEventRepo) Prune(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeEventRepo) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.appended))
	for _, e := range f.appended {
		out = append(out, e.Type)
	}
	return out
}

func Test_normalizeAndValidateFilter(t *testing.T) {
	t.Parallel()

	fromLocal := time.Date(2025, time.September, 10, 10, 0, 0, 0, time.FixedZone("UTC+2", 2*3600))
	toUTC := time.Date(2025, time.September, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		in      LogFilter
		want    repository.EventFilter
		wantErr error
	}{
		{
			name: "zero filter gets default limit",
			in:   LogFilter{},
			want: repository.EventFilter{Limit: MaxLogLimit},
		},
		{
			name: "from after to",
			in: LogFilter{
				From: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
				To:   time.Date(2025, 1, 1, 23, 0, 0, 0, time.UTC),
			},
			wantErr: errInvalidTimeRange,
		},
		{
			name:    "negative limit",
			in:      LogFilter{Limit: -1},
			wantErr: errInvalidLimit,
		},
		{
			name:    "limit too large",
			in:      LogFilter{Limit: MaxLogLimit + 1},
			wantErr: errInvalidLimit,
		},
		{
			name: "normalize tz and type",
			in:   LogFilter{From: fromLocal, To: toUTC, Type: " settings_applied ", Limit: 10},
			want: repository.EventFilter{
				From:  time.Date(2025, time.September, 10, 8, 0, 0, 0, time.UTC),
				To:    toUTC,
				Type:  models.EventSettingsApplied,
				Limit: 10,
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := normalizeAndValidateFilter(tc.in)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected err %v; got %v", tc.wantErr, err)
			}
			if tc.wantErr != nil {
				if !IsInvalidFilter(err) {
					t.Fatalf("IsInvalidFilter(%v) = false", err)
				}
				return
			}
			if !got.From.Equal(tc.want.From) || !got.To.Equal(tc.want.To) || got.Type != tc.want.Type || got.Limit != tc.want.Limit {
				t.Fatalf("got %+v; want %+v", got, tc.want)
			}
			if !got.From.IsZero() && got.From.Location() != time.UTC {
				t.Fatalf("from not in UTC: %v", got.From.Location())
			}
		})
	}
}

func TestEventLogService_List_DelegatesNormalizedFilter(t *testing.T) {
	t.Parallel()

	frepo := &fakeEventRepo{events: []models.DashboardEvent{{EventID: "1"}}}
	svc := NewEventLogService(frepo)

	out, err := svc.List(context.Background(), LogFilter{Type: "  quit "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].EventID != "1" || frepo.calls != 1 {
		t.Fatalf("unexpected events %+v calls %d", out, frepo.calls)
	}
	if frepo.gotFilter.Type != models.EventQuit || frepo.gotFilter.Limit != MaxLogLimit {
		t.Fatalf("repo got %+v", frepo.gotFilter)
	}
}

func TestEventLogService_List_ValidationErrorSkipsRepo(t *testing.T) {
	t.Parallel()

	frepo := &fakeEventRepo{}
	svc := NewEventLogService(frepo)

	_, err := svc.List(context.Background(), LogFilter{Limit: -5})
	if !errors.Is(err, errInvalidLimit) {
		t.Fatalf("expected errInvalidLimit; got %v", err)
	}
	if frepo.calls != 0 {
		t.Fatalf("repo should not be called on validation error, calls=%d", frepo.calls)
	}
}

func TestEventLogService_List_RepoErrorPropagation(t *testing.T) {
	t.Parallel()

	frepo := &fakeEventRepo{err: errors.New("db down")}
	svc := NewEventLogService(frepo)

	if _, err := svc.List(context.Background(), LogFilter{}); !errors.Is(err, frepo.err) {
		t.Fatalf("expected repo error to propagate; got %v", err)
	}
}
