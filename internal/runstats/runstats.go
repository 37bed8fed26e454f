// Package runstats records adapter run summaries in Redis for dashboards
// and the operator CLI.
//
// Layout, per source:
//
//	ransomfuse:runs:<source>          hash of the latest run
//	ransomfuse:runs:<source>:history  list of JSON-encoded runs, newest first
//	ransomfuse:runs:sources           set of sources that have reported
package runstats

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/linnemanlabs/ransomfuse/internal/threat"
)

const (
	keyPrefix  = "ransomfuse:runs:"
	sourcesKey = keyPrefix + "sources"
	// HistoryLen is the number of runs kept per source.
	HistoryLen = 100
)

func latestKey(source string) string  { return keyPrefix + source }
func historyKey(source string) string { return keyPrefix + source + ":history" }

// RedisSink implements threat.StatsSink and threat.RunLister on Redis.
type RedisSink struct {
	rdb redis.UniversalClient
}

// New parses a redis:// or rediss:// URL, connects and pings.
func New(ctx context.Context, redisURL string) (*RedisSink, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisSink{rdb: rdb}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb redis.UniversalClient) *RedisSink {
	return &RedisSink{rdb: rdb}
}

// Close releases the underlying client.
func (s *RedisSink) Close() error {
	return s.rdb.Close()
}

// RecordRun writes the latest-run hash and prepends to the capped history
// in one transaction.
func (s *RedisSink) RecordRun(ctx context.Context, stats *threat.RunStats) error {
	blob, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, latestKey(stats.Source), hashFields(stats))
		p.LPush(ctx, historyKey(stats.Source), blob)
		p.LTrim(ctx, historyKey(stats.Source), 0, HistoryLen-1)
		p.SAdd(ctx, sourcesKey, stats.Source)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record run %s: %w", stats.ID, err)
	}
	return nil
}

// Latest returns the most recent run for source.
func (s *RedisSink) Latest(ctx context.Context, source string) (*threat.RunStats, bool, error) {
	m, err := s.rdb.HGetAll(ctx, latestKey(source)).Result()
	if err != nil {
		return nil, false, err
	}
	if len(m) == 0 {
		return nil, false, nil
	}
	st, err := parseHash(m)
	if err != nil {
		return nil, false, err
	}
	return st, true, nil
}

// Sources returns every source that has recorded a run, sorted.
func (s *RedisSink) Sources(ctx context.Context) ([]string, error) {
	all, err := s.rdb.SMembers(ctx, sourcesKey).Result()
	if err != nil {
		return nil, err
	}
	slices.Sort(all)
	return all, nil
}

// ListRuns returns recent runs newest first. With an empty source the
// histories of every known source are merged.
func (s *RedisSink) ListRuns(ctx context.Context, source string, limit int) ([]*threat.RunStats, error) {
	if limit <= 0 || limit > HistoryLen {
		limit = HistoryLen
	}
	sources := []string{source}
	if source == "" {
		all, err := s.Sources(ctx)
		if err != nil {
			return nil, err
		}
		sources = all
	}

	var out []*threat.RunStats
	for _, src := range sources {
		blobs, err := s.rdb.LRange(ctx, historyKey(src), 0, int64(limit-1)).Result()
		if err != nil {
			return nil, err
		}
		for _, b := range blobs {
			var st threat.RunStats
			if err := json.Unmarshal([]byte(b), &st); err != nil {
				return nil, fmt.Errorf("decode run history for %s: %w", src, err)
			}
			out = append(out, &st)
		}
	}
	slices.SortStableFunc(out, func(a, b *threat.RunStats) int {
		return cmp.Compare(b.CompletedAt.UnixNano(), a.CompletedAt.UnixNano())
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func hashFields(st *threat.RunStats) map[string]any {
	return map[string]any{
		"id":                st.ID,
		"source":            st.Source,
		"status":            string(st.Status),
		"records_processed": st.Processed,
		"records_added":     st.Added,
		"records_updated":   st.Updated,
		"skipped_duplicate": st.Duplicates,
		"skipped_malformed": st.Malformed,
		"failed":            st.Failed,
		"actors_created":    st.ActorsCreated,
		"error":             st.Error,
		"started_at":        st.StartedAt.UTC().Format(time.RFC3339Nano),
		"completed_at":      st.CompletedAt.UTC().Format(time.RFC3339Nano),
	}
}

func parseHash(m map[string]string) (*threat.RunStats, error) {
	st := &threat.RunStats{
		ID:     m["id"],
		Source: m["source"],
		Status: threat.RunStatus(m["status"]),
		Error:  m["error"],
	}
	var errs []error
	ints := map[string]*int{
		"records_processed": &st.Processed,
		"records_added":     &st.Added,
		"records_updated":   &st.Updated,
		"skipped_duplicate": &st.Duplicates,
		"skipped_malformed": &st.Malformed,
		"failed":            &st.Failed,
		"actors_created":    &st.ActorsCreated,
	}
	for k, dst := range ints {
		v, ok := m[k]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
			continue
		}
		*dst = n
	}
	times := map[string]*time.Time{"started_at": &st.StartedAt, "completed_at": &st.CompletedAt}
	for k, dst := range times {
		v, ok := m[k]
		if !ok || v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
			continue
		}
		*dst = t
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("parse run hash: %w", err)
	}
	return st, nil
}
