package feeds

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetrics_OnFetchLabelsByOutcome(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	cb := m.OnFetch()
	cb("api.ransomware.live", "ok", 120*time.Millisecond)
	cb("api.ransomware.live", "http_error", 2*time.Second)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var found bool
	for _, mf := range families {
		if mf.GetName() != "ransomfuse_feed_fetch_duration_seconds" {
			continue
		}
		found = true
		outcomes := make(map[string]uint64)
		for _, metric := range mf.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["host"] != "api.ransomware.live" {
				t.Errorf("host label = %q", labels["host"])
			}
			outcomes[labels["outcome"]] += metric.GetHistogram().GetSampleCount()
		}
		if outcomes["ok"] != 1 || outcomes["http_error"] != 1 || len(outcomes) != 2 {
			t.Errorf("duration samples by outcome = %v", outcomes)
		}
	}
	if !found {
		t.Fatal("fetch duration histogram not registered")
	}
}
