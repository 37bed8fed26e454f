package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestShortenFuncName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"full path", "github.com/linnemanlabs/ransomfuse/internal/threat/pgstore.(*Store).FindIncident", "(*Store).FindIncident"},
		{"already short", "(*Store).FindIncident", "FindIncident"},
		{"empty string", "", ""},
		{"no dots", "main", "main"},
		{"no slashes", "pgstore.(*Store).InsertActor", "(*Store).InsertActor"},
		{"single segment", "foo.Bar", "Bar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := shortenFuncName(tt.in); got != tt.want {
				t.Errorf("shortenFuncName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestQueryStats_AddQuery(t *testing.T) {
	t.Parallel()

	s := &QueryStats{}
	s.AddQuery(10*time.Millisecond, nil)
	s.AddQuery(20*time.Millisecond, errors.New("timeout"))
	s.AddQuery(5*time.Millisecond, nil)

	count, total, errs := s.Snapshot()
	if count != 3 {
		t.Errorf("QueryCount = %d, want 3", count)
	}
	if total != 35*time.Millisecond {
		t.Errorf("TotalDuration = %v, want 35ms", total)
	}
	if errs != 1 {
		t.Errorf("ErrorCount = %d, want 1", errs)
	}
}

func TestQueryStatsContext_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := NewQueryStatsContext(context.Background())
	got, ok := QueryStatsFromContext(ctx)
	if !ok || got == nil {
		t.Fatal("expected stats in context")
	}
	got.AddQuery(time.Millisecond, nil)
	again, _ := QueryStatsFromContext(ctx)
	if again.QueryCount != 1 {
		t.Errorf("QueryCount = %d, want 1 (same pointer)", again.QueryCount)
	}

	if _, ok := QueryStatsFromContext(context.Background()); ok {
		t.Error("expected ok=false for plain context")
	}
}

func TestLabelsFromContext(t *testing.T) {
	t.Parallel()

	rctx := chi.NewRouteContext()
	rctx.RoutePatterns = []string{"/api/v1/incidents"}
	apiCtx := context.WithValue(WithHTTPMethod(context.Background(), "GET"), chi.RouteCtxKey, rctx)

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		want QueryLabels
	}{
		{"empty", context.Background(), nil, QueryLabels{Method: "NONE", Route: "none", Source: "none", Outcome: "ok"}},
		{"pipeline", WithSource(context.Background(), "ransomwatch"), nil, QueryLabels{Method: "NONE", Route: "none", Source: "ransomwatch", Outcome: "ok"}},
		{"api", apiCtx, nil, QueryLabels{Method: "GET", Route: "/api/v1/incidents", Source: "none", Outcome: "ok"}},
		{"error", context.Background(), errors.New("boom"), QueryLabels{Method: "NONE", Route: "none", Source: "none", Outcome: "error"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := labelsFromContext(tt.ctx, tt.err); got != tt.want {
				t.Errorf("labelsFromContext = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestWithHelpers_IgnoreEmpty(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if WithHTTPMethod(ctx, "") != ctx {
		t.Error("WithHTTPMethod with empty method should return ctx unchanged")
	}
	if WithSource(ctx, "") != ctx {
		t.Error("WithSource with empty source should return ctx unchanged")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	uv := &pgconn.PgError{Code: "23505", ConstraintName: "incidents_dedup_key"}
	if !IsUniqueViolation(fmt.Errorf("insert: %w", uv)) {
		t.Error("wrapped 23505 not detected")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Error("foreign key violation reported as unique violation")
	}
	if IsUniqueViolation(errors.New("plain")) {
		t.Error("plain error reported as unique violation")
	}
}

func TestSetQueryObserver(t *testing.T) {
	// Not parallel: swaps the global observer.
	defer SetQueryObserver(nil)

	var got QueryLabels
	SetQueryObserver(QueryObserverFunc(func(_ context.Context, l QueryLabels, _ time.Duration) {
		got = l
	}))
	obs := getQueryObserver()
	if obs == nil {
		t.Fatal("expected non-nil observer after Set")
	}
	obs.ObserveQuery(context.Background(), QueryLabels{Source: "ransomlook"}, time.Millisecond)
	if got.Source != "ransomlook" {
		t.Errorf("observer saw %+v", got)
	}

	SetQueryObserver(nil)
	if getQueryObserver() != nil {
		t.Error("expected nil observer after Set(nil)")
	}
}
