package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/linnemanlabs/ransomfuse/internal/authmw"
	"github.com/linnemanlabs/ransomfuse/internal/feeds"
	"github.com/linnemanlabs/ransomfuse/internal/notify/slack"
)

// Config holds the application settings registered next to the go-core
// component flags.
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	DatabaseURL           string
	RedisURL              string
	SlackWebhookURL       string
	SlackFailuresOnly     bool
	SlackQuiet            bool
	APITokens             string

	EnabledFeeds           string
	RansomwatchURL         string
	RansomlookURL          string
	RansomwareLiveURL      string
	RansomwatchInterval    time.Duration
	RansomlookInterval     time.Duration
	RansomwareLiveInterval time.Duration

	FetchTimeout  time.Duration
	FetchRate     float64
	FetchBurst    int
	FetchCacheTTL time.Duration
	UserAgent     string

	ActorType       string
	DBLogMinQueryMS int
}

// Feed is one enabled adapter with its endpoint and polling interval.
type Feed struct {
	Name     string
	URL      string
	Interval time.Duration
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.RedisURL, "redis-url", "", "Redis URL for run statistics (empty = disabled)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for run summaries")
	fs.BoolVar(&c.SlackFailuresOnly, "slack-failures-only", false, "only post failed runs to Slack")
	fs.BoolVar(&c.SlackQuiet, "slack-quiet", false, "skip Slack posts for successful runs that added or corroborated nothing")
	fs.StringVar(&c.APITokens, "api-tokens", "", "comma-separated bearer tokens for operator endpoints (empty = operator endpoints disabled)")

	fs.StringVar(&c.EnabledFeeds, "feeds", strings.Join(feeds.Known, ","), "comma-separated feeds to poll")
	fs.StringVar(&c.RansomwatchURL, "ransomwatch-url", feeds.DefaultRansomwatchURL, "ransomwatch posts.json URL")
	fs.StringVar(&c.RansomlookURL, "ransomlook-url", feeds.DefaultRansomlookURL, "ransomlook recent posts URL")
	fs.StringVar(&c.RansomwareLiveURL, "ransomwarelive-url", feeds.DefaultRansomwareLiveURL, "ransomware.live recent victims URL")
	fs.DurationVar(&c.RansomwatchInterval, "ransomwatch-interval", time.Hour, "ransomwatch polling interval (1m..24h)")
	fs.DurationVar(&c.RansomlookInterval, "ransomlook-interval", time.Hour, "ransomlook polling interval (1m..24h)")
	fs.DurationVar(&c.RansomwareLiveInterval, "ransomwarelive-interval", 30*time.Minute, "ransomware.live polling interval (1m..24h)")

	fs.DurationVar(&c.FetchTimeout, "fetch-timeout", 30*time.Second, "per-request feed timeout (1s..5m)")
	fs.Float64Var(&c.FetchRate, "fetch-rate", 1, "feed requests per second per host (0 = unlimited)")
	fs.IntVar(&c.FetchBurst, "fetch-burst", 2, "feed request burst per host (>= 1)")
	fs.DurationVar(&c.FetchCacheTTL, "fetch-cache-ttl", 5*time.Minute, "cache feed bodies for this long (0 = off)")
	fs.StringVar(&c.UserAgent, "user-agent", "", "User-Agent sent to feeds (empty = built-in)")

	fs.StringVar(&c.ActorType, "actor-type", "ransomware", "actor_type assigned to newly seen groups")
	fs.IntVar(&c.DBLogMinQueryMS, "db-log-min-query-ms", 0, "only log database queries slower than this (0 = log all)")
}

// Tokens returns the parsed operator tokens.
func (c *Config) Tokens() []string {
	return authmw.ParseTokens(c.APITokens)
}

// SlackOptions returns the run filters for the Slack notifier.
func (c *Config) SlackOptions() slack.Options {
	return slack.Options{FailuresOnly: c.SlackFailuresOnly, Quiet: c.SlackQuiet}
}

// Feeds returns the enabled feeds in the order they were listed.
func (c *Config) Feeds() []Feed {
	all := map[string]Feed{
		feeds.SourceRansomwatch:    {feeds.SourceRansomwatch, c.RansomwatchURL, c.RansomwatchInterval},
		feeds.SourceRansomlook:     {feeds.SourceRansomlook, c.RansomlookURL, c.RansomlookInterval},
		feeds.SourceRansomwareLive: {feeds.SourceRansomwareLive, c.RansomwareLiveURL, c.RansomwareLiveInterval},
	}
	var out []Feed
	for _, name := range splitList(c.EnabledFeeds) {
		if f, ok := all[name]; ok && !slices.ContainsFunc(out, func(x Feed) bool { return x.Name == name }) {
			out = append(out, f)
		}
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	if c.RedisURL != "" && !hasScheme(c.RedisURL, "redis", "rediss") {
		errs = append(errs, errors.New("invalid REDIS_URL (must be redis:// or rediss://)"))
	}
	if c.SlackWebhookURL != "" && !hasScheme(c.SlackWebhookURL, "https") {
		errs = append(errs, errors.New("invalid SLACK_WEBHOOK_URL (must be https://)"))
	}

	// Feeds
	enabled := splitList(c.EnabledFeeds)
	if len(enabled) == 0 {
		errs = append(errs, errors.New("FEEDS must name at least one feed"))
	}
	for _, name := range enabled {
		if !slices.Contains(feeds.Known, name) {
			errs = append(errs, fmt.Errorf("unknown feed %q in FEEDS (known: %s)", name, strings.Join(feeds.Known, ", ")))
		}
	}
	for _, f := range c.Feeds() {
		key := strings.ToUpper(f.Name)
		if !hasScheme(f.URL, "http", "https") {
			errs = append(errs, fmt.Errorf("invalid %s_URL %q (must be http:// or https://)", key, f.URL))
		}
		if f.Interval < time.Minute || f.Interval > 24*time.Hour {
			errs = append(errs, fmt.Errorf("invalid %s_INTERVAL %s (must be 1m..24h)", key, f.Interval))
		}
	}

	// Fetcher
	if c.FetchTimeout < time.Second || c.FetchTimeout > 5*time.Minute {
		errs = append(errs, fmt.Errorf("invalid FETCH_TIMEOUT %s (must be 1s..5m)", c.FetchTimeout))
	}
	if c.FetchRate < 0 {
		errs = append(errs, fmt.Errorf("invalid FETCH_RATE %g (must be >= 0)", c.FetchRate))
	}
	if c.FetchBurst < 1 {
		errs = append(errs, fmt.Errorf("invalid FETCH_BURST %d (must be >= 1)", c.FetchBurst))
	}
	if c.FetchCacheTTL < 0 {
		errs = append(errs, fmt.Errorf("invalid FETCH_CACHE_TTL %s (must be >= 0)", c.FetchCacheTTL))
	}

	if strings.TrimSpace(c.ActorType) == "" {
		errs = append(errs, errors.New("ACTOR_TYPE is required"))
	}
	if c.DBLogMinQueryMS < 0 {
		errs = append(errs, fmt.Errorf("invalid DB_LOG_MIN_QUERY_MS %d (must be >= 0)", c.DBLogMinQueryMS))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func hasScheme(raw string, schemes ...string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return slices.Contains(schemes, u.Scheme)
}
