// Package slack posts adapter run summaries to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/ransomfuse/internal/threat"
)

const (
	maxErrorLen = 1500
	httpTimeout = 10 * time.Second
)

// Options controls which runs are posted.
type Options struct {
	// FailuresOnly suppresses successful runs.
	FailuresOnly bool
	// Quiet suppresses successful runs that added nothing new.
	Quiet bool
}

// Notifier posts run summaries to a Slack webhook. It implements
// threat.StatsSink.
type Notifier struct {
	webhookURL string
	opts       Options
	client     *http.Client
	logger     log.Logger
}

// New creates a new Slack notifier. If webhookURL is empty, RecordRun is a no-op.
func New(webhookURL string, logger log.Logger, opts Options) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		opts:       opts,
		client:     &http.Client{Timeout: httpTimeout},
		logger:     logger,
	}
}

// RecordRun posts stats to the webhook unless the options filter it out.
func (n *Notifier) RecordRun(ctx context.Context, stats *threat.RunStats) error {
	if n.webhookURL == "" || !n.wants(stats) {
		return nil
	}
	return n.Send(ctx, stats)
}

func (n *Notifier) wants(stats *threat.RunStats) bool {
	if stats.Status == threat.RunFailed {
		return true
	}
	if n.opts.FailuresOnly {
		return false
	}
	if n.opts.Quiet && stats.Added == 0 && stats.Updated == 0 {
		return false
	}
	return true
}

// Send posts a run summary to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Send(ctx context.Context, stats *threat.RunStats) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(buildMessage(stats))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	n.logger.Info(ctx, "slack run summary posted", "source", stats.Source, "run_id", stats.ID)
	return nil
}

func buildMessage(s *threat.RunStats) map[string]any {
	blocks := []map[string]any{
		headerBlock(s),
		{"type": "divider"},
		fieldsBlock(s),
	}
	if s.Error != "" {
		blocks = append(blocks, errorBlock(s))
	}
	blocks = append(blocks, map[string]any{"type": "divider"}, contextBlock(s))
	return map[string]any{"blocks": blocks}
}

func headerBlock(s *threat.RunStats) map[string]any {
	title := "Feed run complete"
	if s.Status == threat.RunFailed {
		title = "Feed run failed"
	}
	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": fmt.Sprintf("%s %s: %s", statusEmoji(s), title, s.Source),
		},
	}
}

func fieldsBlock(s *threat.RunStats) map[string]any {
	field := func(label string, v any) map[string]any {
		return map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*%s:* %v", label, v)}
	}
	return map[string]any{
		"type": "section",
		"fields": []map[string]any{
			field("Processed", s.Processed),
			field("New incidents", s.Added),
			field("Corroborated", s.Updated),
			field("Duplicates", s.Duplicates),
			field("Malformed", s.Malformed),
			field("Failed", s.Failed),
			field("New actors", s.ActorsCreated),
			field("Duration", fmt.Sprintf("%.1fs", s.Duration().Seconds())),
		},
	}
}

func errorBlock(s *threat.RunStats) map[string]any {
	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Error*\n\n```%s```", truncate(s.Error, maxErrorLen)),
		},
	}
}

func contextBlock(s *threat.RunStats) map[string]any {
	ts := s.CompletedAt
	if ts.IsZero() {
		ts = s.StartedAt
	}
	return map[string]any{
		"type": "context",
		"elements": []map[string]any{
			{
				"type": "mrkdwn",
				"text": fmt.Sprintf("ransomfuse • run %s • %s", s.ID, ts.UTC().Format("2006-01-02 15:04 UTC")),
			},
		},
	}
}

func statusEmoji(s *threat.RunStats) string {
	switch {
	case s.Status == threat.RunFailed:
		return "\U0001f534" // red circle
	case s.Failed > 0 || s.Malformed > 0:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
