package cli

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/linnemanlabs/ransomfuse/internal/notify/slack"
	"github.com/linnemanlabs/ransomfuse/internal/postgres"
	"github.com/linnemanlabs/ransomfuse/internal/runstats"
	"github.com/linnemanlabs/ransomfuse/internal/threat"
	"github.com/linnemanlabs/ransomfuse/internal/threat/memstore"
	"github.com/linnemanlabs/ransomfuse/internal/threat/pgstore"
)

type runStore interface {
	threat.Store
	threat.StatsSink
	threat.RunLister
}

// openStore connects to postgres when database-url is set and falls back to
// an in-memory store otherwise. The returned func releases the pool.
func (a *app) openStore(ctx context.Context) (runStore, func(), error) {
	url := a.v.GetString("database-url")
	if url == "" {
		a.logger.Warn(ctx, "no database-url configured, results are kept in memory and discarded")
		return memstore.New(), func() {}, nil
	}
	pool, err := postgres.NewPool(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres pool: %w", err)
	}
	st, err := pgstore.New(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pgstore init: %w", err)
	}
	return st, pool.Close, nil
}

// sinks returns the configured run-stats sinks besides the store.
func (a *app) sinks(ctx context.Context) (threat.MultiSink, func(), error) {
	var out threat.MultiSink
	closeFn := func() {}
	if url := a.v.GetString("redis-url"); url != "" {
		rs, err := runstats.New(ctx, url)
		if err != nil {
			return nil, nil, fmt.Errorf("redis run stats: %w", err)
		}
		out = append(out, rs)
		closeFn = func() { _ = rs.Close() }
	}
	if url := a.v.GetString("slack-webhook-url"); url != "" {
		out = append(out, slack.New(url, a.logger, slackOptions(a.v)))
	}
	return out, closeFn, nil
}

func slackOptions(v *viper.Viper) slack.Options {
	return slack.Options{
		FailuresOnly: v.GetBool("slack-failures-only"),
		Quiet:        v.GetBool("slack-quiet"),
	}
}
