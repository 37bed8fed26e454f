package feeds

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

func TestGetJSON_Success(t *testing.T) {
	t.Parallel()

	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"n": 1709251200}]`))
	}))
	defer srv.Close()

	f := NewFetcher(FetcherOptions{UserAgent: "test-agent"}, log.Nop())
	var got []map[string]any
	if err := f.GetJSON(context.Background(), srv.URL, &got); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if ua != "test-agent" {
		t.Errorf("User-Agent = %q", ua)
	}
	if len(got) != 1 || stringify(got[0]["n"]) != "1709251200" {
		t.Errorf("got %v, want unix seconds preserved as integer text", got)
	}
}

func TestGetJSON_StatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	var outcome string
	f := NewFetcher(FetcherOptions{OnFetch: func(_, o string, _ time.Duration) { outcome = o }}, log.Nop())
	var v any
	err := f.GetJSON(context.Background(), srv.URL, &v)

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want *FetchError", err)
	}
	if fe.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d", fe.StatusCode)
	}
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Errorf("err does not wrap ErrUnexpectedStatus: %v", err)
	}
	if outcome != "error" {
		t.Errorf("outcome = %q, want error", outcome)
	}
}

func TestGetJSON_BadBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	f := NewFetcher(FetcherOptions{}, log.Nop())
	var v any
	var fe *FetchError
	if err := f.GetJSON(context.Background(), srv.URL, &v); !errors.As(err, &fe) {
		t.Fatalf("err = %v, want *FetchError", err)
	}
}

func TestGetJSON_Unreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	f := NewFetcher(FetcherOptions{Timeout: time.Second}, log.Nop())
	var v any
	var fe *FetchError
	if err := f.GetJSON(context.Background(), url, &v); !errors.As(err, &fe) {
		t.Fatalf("err = %v, want *FetchError", err)
	}
}

func TestGetJSON_Cache(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	var outcomes []string
	f := NewFetcher(FetcherOptions{
		CacheTTL: time.Minute,
		OnFetch:  func(_, o string, _ time.Duration) { outcomes = append(outcomes, o) },
	}, log.Nop())
	for range 3 {
		var v []any
		if err := f.GetJSON(context.Background(), srv.URL, &v); err != nil {
			t.Fatalf("GetJSON: %v", err)
		}
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("upstream hits = %d, want 1", n)
	}
	if len(outcomes) != 3 || outcomes[0] != "ok" || outcomes[2] != "cached" {
		t.Errorf("outcomes = %v", outcomes)
	}
}

func TestGetJSON_RateLimitHonoursContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	f := NewFetcher(FetcherOptions{RatePerSecond: 0.001, Burst: 1}, log.Nop())
	var v any
	if err := f.GetJSON(context.Background(), srv.URL, &v); err != nil {
		t.Fatalf("first GetJSON: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	var fe *FetchError
	if err := f.GetJSON(ctx, srv.URL, &v); !errors.As(err, &fe) {
		t.Fatalf("err = %v, want rate-limited *FetchError", err)
	}
}
