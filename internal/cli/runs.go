package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/linnemanlabs/ransomfuse/internal/runstats"
	"github.com/linnemanlabs/ransomfuse/internal/threat"
)

// latestReader is the part of runstats.RedisSink that serves --latest.
type latestReader interface {
	Sources(ctx context.Context) ([]string, error)
	Latest(ctx context.Context, source string) (*threat.RunStats, bool, error)
}

// latestRuns returns the most recent run of source, or of every source
// that has reported when source is empty.
func latestRuns(ctx context.Context, r latestReader, source string) (runResults, error) {
	sources := []string{source}
	if source == "" {
		all, err := r.Sources(ctx)
		if err != nil {
			return nil, fmt.Errorf("list sources: %w", err)
		}
		sources = all
	}
	var out runResults
	for _, src := range sources {
		st, ok, err := r.Latest(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("latest run for %s: %w", src, err)
		}
		if ok {
			out = append(out, st)
		}
	}
	return out, nil
}

func (a *app) runsCmd() *cobra.Command {
	var (
		source string
		limit  int
		latest bool
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent feed runs",
		Long: `Runs lists recorded run summaries, newest first. History is read from
Redis when redis-url is set and from the database otherwise.

With --latest only the most recent run per source is shown; this reads
the per-source summary Redis keeps and requires redis-url.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			url := a.v.GetString("redis-url")
			if latest && url == "" {
				return errors.New("--latest requires --redis-url")
			}

			var lister threat.RunLister
			if url != "" {
				rs, err := runstats.New(ctx, url)
				if err != nil {
					return err
				}
				defer func() { _ = rs.Close() }()
				if latest {
					runs, err := latestRuns(ctx, rs, source)
					if err != nil {
						return err
					}
					return a.render(runs)
				}
				lister = rs
			} else {
				store, closeStore, err := a.openStore(ctx)
				if err != nil {
					return err
				}
				defer closeStore()
				lister = store
			}

			runs, err := lister.ListRuns(ctx, source, limit)
			if err != nil {
				return err
			}
			return a.render(runResults(runs))
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "only show runs for this feed")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to show")
	cmd.Flags().BoolVar(&latest, "latest", false, "show only the latest run per source (requires redis-url)")
	return cmd
}
