package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/ransomfuse/internal/threat"
)

func successRun() *threat.RunStats {
	return &threat.RunStats{
		ID:            "01JN123",
		Source:        "ransomwatch",
		Status:        threat.RunSuccess,
		Processed:     40,
		Added:         7,
		Updated:       3,
		Duplicates:    30,
		ActorsCreated: 1,
		StartedAt:     time.Date(2026, 2, 26, 14, 22, 0, 0, time.UTC),
		CompletedAt:   time.Date(2026, 2, 26, 14, 23, 0, 0, time.UTC),
	}
}

func TestSend_PostsToWebhook(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL, log.Nop(), Options{})
	if err := n.Send(context.Background(), successRun()); err != nil {
		t.Fatalf("Send: %v", err)
	}

	blocks, ok := got["blocks"].([]any)
	if !ok {
		t.Fatal("expected blocks array in payload")
	}

	// header, divider, fields, divider, context
	if len(blocks) != 5 {
		t.Errorf("blocks count = %d, want 5", len(blocks))
	}

	header := blocks[0].(map[string]any)
	headerText := header["text"].(map[string]any)["text"].(string)
	if !strings.Contains(headerText, "ransomwatch") {
		t.Errorf("header text = %q, want to contain source", headerText)
	}
	if !strings.Contains(headerText, "\U0001f7e2") {
		t.Errorf("header should contain green circle for a clean run")
	}

	fields := blocks[2].(map[string]any)["fields"].([]any)
	if text := fields[1].(map[string]any)["text"].(string); text != "*New incidents:* 7" {
		t.Errorf("new incidents field = %q", text)
	}
}

func TestSend_NoOpWithoutURL(t *testing.T) {
	t.Parallel()

	n := New("", nil, Options{})
	if err := n.RecordRun(context.Background(), &threat.RunStats{}); err != nil {
		t.Fatalf("RecordRun with empty URL should be no-op, got: %v", err)
	}
}

func TestSend_FailedRunIncludesTruncatedError(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL, log.Nop(), Options{})
	err := n.Send(context.Background(), &threat.RunStats{
		ID:     "01JN456",
		Source: "ransomlook",
		Status: threat.RunFailed,
		Error:  strings.Repeat("x", 4000),
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	blocks := got["blocks"].([]any)
	if len(blocks) != 6 {
		t.Fatalf("blocks count = %d, want 6", len(blocks))
	}
	text := blocks[3].(map[string]any)["text"].(map[string]any)["text"].(string)
	if len(text) > maxErrorLen+len("*Error*\n\n``````") {
		t.Errorf("error text length = %d, expected <= %d", len(text), maxErrorLen+len("*Error*\n\n``````"))
	}
	if !strings.Contains(text, "...```") {
		t.Error("expected truncated error to end with ...")
	}
}

func TestRecordRun_Filtering(t *testing.T) {
	t.Parallel()

	failed := &threat.RunStats{ID: "f", Source: "x", Status: threat.RunFailed}
	idle := &threat.RunStats{ID: "i", Source: "x", Status: threat.RunSuccess, Processed: 10, Duplicates: 10}

	tests := []struct {
		name  string
		opts  Options
		stats *threat.RunStats
		want  int32
	}{
		{"default posts success", Options{}, successRun(), 1},
		{"default posts idle", Options{}, idle, 1},
		{"failures only skips success", Options{FailuresOnly: true}, successRun(), 0},
		{"failures only posts failure", Options{FailuresOnly: true}, failed, 1},
		{"quiet skips idle", Options{Quiet: true}, idle, 0},
		{"quiet posts new incidents", Options{Quiet: true}, successRun(), 1},
		{"quiet posts failure", Options{Quiet: true}, failed, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(http.StatusOK)
			}))
			defer srv.Close()

			n := New(srv.URL, log.Nop(), tt.opts)
			if err := n.RecordRun(context.Background(), tt.stats); err != nil {
				t.Fatalf("RecordRun: %v", err)
			}
			if got := calls.Load(); got != tt.want {
				t.Errorf("webhook calls = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStatusEmoji(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		stats *threat.RunStats
		want  string
	}{
		{"failed", &threat.RunStats{Status: threat.RunFailed}, "\U0001f534"},
		{"partial failures", &threat.RunStats{Status: threat.RunSuccess, Failed: 2}, "\U0001f7e1"},
		{"malformed", &threat.RunStats{Status: threat.RunSuccess, Malformed: 1}, "\U0001f7e1"},
		{"clean", &threat.RunStats{Status: threat.RunSuccess}, "\U0001f7e2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := statusEmoji(tt.stats); got != tt.want {
				t.Errorf("statusEmoji(%+v) = %q, want %q", tt.stats, got, tt.want)
			}
		})
	}
}

func FuzzSlackBuild(f *testing.F) {
	f.Add("ransomwatch", "", 10, 2)
	f.Add("", "", 0, 0)
	f.Add("<@U123> mention", "*bold* _italic_ ~strike~", 1, 1)
	f.Add("src\x00\x01\x02", "err\nline\ttab", -1, 5)
	f.Add(strings.Repeat("A", 5000), strings.Repeat("x", 10000), 1<<30, 0)
	f.Add("test", "```code block``` and <http://example.com|link>", 3, 3)

	f.Fuzz(func(t *testing.T, source, errText string, added, failed int) {
		stats := &threat.RunStats{
			ID:          "fuzz-id",
			Source:      source,
			Status:      threat.RunSuccess,
			Added:       added,
			Failed:      failed,
			Error:       errText,
			StartedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			CompletedAt: time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC),
		}

		msg := buildMessage(stats)

		data, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("buildMessage produced non-marshalable output: %v", err)
		}

		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("buildMessage JSON does not round-trip: %v", err)
		}

		blocks, ok := decoded["blocks"].([]any)
		if !ok {
			t.Fatal("expected blocks array")
		}
		want := 5
		if errText != "" {
			want = 6
		}
		if len(blocks) != want {
			t.Fatalf("blocks count = %d, want %d", len(blocks), want)
		}
	})
}

func TestSend_NonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal error"))
	}))
	defer srv.Close()

	n := New(srv.URL, log.Nop(), Options{})
	err := n.Send(context.Background(), successRun())
	if err == nil {
		t.Fatal("expected error on non-OK status")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error = %q, want to contain status code 500", err.Error())
	}
}
