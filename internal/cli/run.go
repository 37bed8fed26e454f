package cli

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/linnemanlabs/ransomfuse/internal/feeds"
	"github.com/linnemanlabs/ransomfuse/internal/postgres"
	"github.com/linnemanlabs/ransomfuse/internal/threat"
)

// replayClaim is the on-disk form of a claim for --replay files.
type replayClaim struct {
	Group       string `yaml:"group" json:"group"`
	Victim      string `yaml:"victim" json:"victim"`
	Discovered  string `yaml:"discovered" json:"discovered"`
	Country     string `yaml:"country,omitempty" json:"country,omitempty"`
	Website     string `yaml:"website,omitempty" json:"website,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Sector      string `yaml:"sector,omitempty" json:"sector,omitempty"`
	Activity    string `yaml:"activity,omitempty" json:"activity,omitempty"`
	URL         string `yaml:"url,omitempty" json:"url,omitempty"`
}

func (c replayClaim) raw() threat.RawClaim {
	return threat.RawClaim{
		GroupName:     c.Group,
		VictimName:    c.Victim,
		DiscoveredRaw: c.Discovered,
		Country:       c.Country,
		Website:       c.Website,
		Description:   c.Description,
		APISector:     c.Sector,
		Activity:      c.Activity,
		SourceURL:     c.URL,
	}
}

// loadReplay reads a YAML (or JSON, which is valid YAML) list of claims.
func loadReplay(path string) ([]threat.RawClaim, error) {
	b, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("read replay file: %w", err)
	}
	var in []replayClaim
	if err := yaml.Unmarshal(b, &in); err != nil {
		return nil, fmt.Errorf("parse replay file %s: %w", path, err)
	}
	out := make([]threat.RawClaim, 0, len(in))
	for _, c := range in {
		out = append(out, c.raw())
	}
	return out, nil
}

type runResults []*threat.RunStats

func (r runResults) header() []string {
	return []string{"SOURCE", "STATUS", "PROCESSED", "ADDED", "CORROBORATED", "DUPLICATE", "MALFORMED", "FAILED", "NEW_ACTORS", "DURATION"}
}

func (r runResults) rows() [][]string {
	out := make([][]string, 0, len(r))
	for _, s := range r {
		out = append(out, []string{
			s.Source, string(s.Status),
			strconv.Itoa(s.Processed), strconv.Itoa(s.Added), strconv.Itoa(s.Updated),
			strconv.Itoa(s.Duplicates), strconv.Itoa(s.Malformed), strconv.Itoa(s.Failed),
			strconv.Itoa(s.ActorsCreated), s.Duration().Round(time.Millisecond).String(),
		})
	}
	return out
}

func (a *app) runCmd() *cobra.Command {
	var (
		replay string
		source string
	)
	cmd := &cobra.Command{
		Use:   "run [feed...]",
		Short: "Run feeds through the pipeline once",
		Long: `Run fetches each named feed (default: all built-in feeds) and fuses its
claims into the store, printing one summary per feed.

With --replay, claims are read from a YAML or JSON file instead and
attributed to --source.

Example:
  fusectl run ransomwarelive
  fusectl run --replay claims.yaml --source ransomlook -o text`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var adapters []threat.Adapter
			if replay != "" {
				if len(args) > 0 {
					return fmt.Errorf("feed arguments cannot be combined with --replay")
				}
				claims, err := loadReplay(replay)
				if err != nil {
					return err
				}
				adapters = append(adapters, feeds.Static(source, claims))
			} else {
				names := args
				if len(names) == 0 {
					names = feeds.Known
				}
				fetcher := feeds.NewFetcher(feeds.FetcherOptions{
					Timeout:       a.v.GetDuration("fetch-timeout"),
					UserAgent:     a.v.GetString("user-agent"),
					RatePerSecond: a.v.GetFloat64("fetch-rate"),
					Burst:         1,
				}, a.logger)
				for _, n := range names {
					ad, err := feeds.New(n, a.v.GetString(n+"-url"), fetcher, a.logger)
					if err != nil {
						return err
					}
					adapters = append(adapters, ad)
				}
			}

			store, closeStore, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()
			extra, closeSinks, err := a.sinks(ctx)
			if err != nil {
				return err
			}
			defer closeSinks()

			svc := threat.NewService(store, a.logger, threat.ServiceOptions{
				Sink:      append(threat.MultiSink{store}, extra...),
				ActorType: a.v.GetString("actor-type"),
			})

			var (
				results runResults
				failed  []string
			)
			for _, ad := range adapters {
				runCtx := postgres.WithSource(ctx, ad.Name())
				stats, err := svc.Run(runCtx, ad)
				if stats != nil {
					results = append(results, stats)
				}
				if err != nil {
					a.logger.Error(ctx, err, "run failed", "source", ad.Name())
					failed = append(failed, ad.Name())
					if ctx.Err() != nil {
						break
					}
				}
			}

			if err := a.render(results); err != nil {
				return err
			}
			if len(failed) > 0 {
				return fmt.Errorf("%d of %d runs failed: %v", len(failed), len(adapters), failed)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&replay, "replay", "", "read claims from a YAML/JSON file instead of fetching")
	f.StringVar(&source, "source", "replay", "provenance tag for --replay claims")
	f.Duration("fetch-timeout", 30*time.Second, "per-request feed timeout")
	f.Float64("fetch-rate", 1, "feed requests per second per host (0 = unlimited)")
	f.String("user-agent", "", "User-Agent sent to feeds (empty = built-in)")
	f.String("actor-type", threat.DefaultActorType, "actor_type assigned to newly seen groups")
	bound := []string{"fetch-timeout", "fetch-rate", "user-agent", "actor-type"}
	for _, n := range feeds.Known {
		f.String(n+"-url", "", n+" endpoint (empty = built-in default)")
		bound = append(bound, n+"-url")
	}
	for _, name := range bound {
		_ = a.v.BindPFlag(name, f.Lookup(name))
	}

	cmd.ValidArgs = slices.Clone(feeds.Known)
	return cmd
}
