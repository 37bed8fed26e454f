package threat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/linnemanlabs/ransomfuse/internal/threat")

// Hooks are optional callbacks fired as the pipeline progresses. Nil
// fields are skipped.
type Hooks struct {
	OnClaim        func(source string, o Outcome)
	OnActorCreated func(source string)
	OnRun          func(stats *RunStats)
	OnReclassify   func(changed bool)
}

// ServiceOptions configures a Service. The zero value is usable.
type ServiceOptions struct {
	Sink      StatsSink
	Hooks     Hooks
	ActorType string
}

// Service runs adapters through normalization, actor resolution and
// incident dedup. Claims within one run are processed strictly in order.
type Service struct {
	store  Store
	dedup  *Deduplicator
	sink   StatsSink
	hooks  Hooks
	actor  string
	logger log.Logger
	now    func() time.Time
}

// NewService creates a new pipeline service.
func NewService(store Store, logger log.Logger, opts ServiceOptions) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	typ := opts.ActorType
	if typ == "" {
		typ = DefaultActorType
	}
	return &Service{
		store:  store,
		dedup:  NewDeduplicator(store),
		sink:   opts.Sink,
		hooks:  opts.Hooks,
		actor:  typ,
		logger: logger,
		now:    time.Now,
	}
}

// Store returns the underlying store.
func (s *Service) Store() Store { return s.store }

// Run fetches one adapter's claims and writes them. A fetch failure aborts
// the run and is returned; per-claim failures are only counted. The run is
// always reported to the stats sink.
func (s *Service) Run(ctx context.Context, a Adapter) (*RunStats, error) {
	source := a.Name()
	stats := &RunStats{
		ID:        ulid.Make().String(),
		Source:    source,
		StartedAt: s.now().UTC(),
	}
	L := s.logger.With("source", source, "run_id", stats.ID)

	ctx, span := tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("ransomfuse.source", source),
		attribute.String("ransomfuse.run_id", stats.ID),
	))
	defer span.End()

	err := s.run(ctx, L, a, stats)
	if err != nil {
		stats.Status = RunFailed
		stats.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		stats.Status = RunSuccess
	}
	stats.CompletedAt = s.now().UTC()
	span.SetAttributes(
		attribute.Int("ransomfuse.records_processed", stats.Processed),
		attribute.Int("ransomfuse.records_added", stats.Added),
		attribute.Int("ransomfuse.records_updated", stats.Updated),
	)

	// the run summary is recorded even when the caller has gone away
	s.finish(context.WithoutCancel(ctx), L, stats)
	return stats, err
}

func (s *Service) run(ctx context.Context, L log.Logger, a Adapter, stats *RunStats) error {
	raws, err := a.Fetch(ctx)
	if err != nil {
		L.Error(ctx, err, "feed fetch failed")
		return fmt.Errorf("fetch %s: %w", stats.Source, err)
	}

	resolver := NewResolver(s.store, NewActorCache(), L)
	if err := resolver.Warm(ctx); err != nil {
		L.Error(ctx, err, "actor cache seed failed")
		return err
	}

	def := ActorDefaults{Type: s.actor, Status: ActorActive, Source: stats.Source}
	touched := make(map[string]struct{})
	for i := range raws {
		if err := ctx.Err(); err != nil {
			L.Warn(ctx, "run cancelled", "processed", stats.Processed, "remaining", len(raws)-i)
			return err
		}
		o := s.process(ctx, L, resolver, def, &raws[i], touched, stats)
		stats.count(o)
		if s.hooks.OnClaim != nil {
			s.hooks.OnClaim(stats.Source, o)
		}
	}

	s.refreshLastSeen(ctx, L, touched)
	return nil
}

func (s *Service) process(ctx context.Context, L log.Logger, r *Resolver, def ActorDefaults, raw *RawClaim, touched map[string]struct{}, stats *RunStats) Outcome {
	ctx, span := tracer.Start(ctx, "claim.process", trace.WithAttributes(
		attribute.String("ransomfuse.source", stats.Source),
		attribute.String("ransomfuse.actor", raw.GroupName),
	))
	defer span.End()

	c, err := Normalize(*raw)
	if err != nil {
		L.Warn(ctx, "skipping malformed claim", "actor", raw.GroupName, "victim", raw.VictimName, "error", err)
		span.SetAttributes(attribute.String("ransomfuse.outcome", string(OutcomeMalformed)))
		return OutcomeMalformed
	}

	res, err := r.Resolve(ctx, c.GroupName, def)
	if err != nil {
		L.Error(ctx, err, "actor resolution failed", "actor", c.GroupName, "victim", c.VictimName)
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve actor")
		return OutcomeFailed
	}
	if res.Created {
		stats.ActorsCreated++
		L.Info(ctx, "actor created", "actor", c.GroupName, "actor_id", res.ActorID)
		if s.hooks.OnActorCreated != nil {
			s.hooks.OnActorCreated(stats.Source)
		}
	}
	touched[res.ActorID] = struct{}{}

	o, err := s.dedup.Upsert(ctx, &c, res.ActorID, stats.Source)
	span.SetAttributes(attribute.String("ransomfuse.outcome", string(o)))
	if err != nil {
		L.Error(ctx, err, "incident upsert failed", "actor", c.GroupName, "victim", c.VictimName)
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert incident")
	}
	return o
}

// refreshLastSeen recomputes last_seen for every actor touched by the run
// from one grouped query, then persists each actor once.
func (s *Service) refreshLastSeen(ctx context.Context, L log.Logger, touched map[string]struct{}) {
	if len(touched) == 0 {
		return
	}
	ids := make([]string, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	seen, err := s.store.LastSeenByActor(ctx, ids)
	if err != nil {
		L.Error(ctx, err, "last_seen query failed", "actors", len(ids))
		return
	}
	var errs []error
	for _, id := range ids {
		ts, ok := seen[id]
		if !ok {
			continue
		}
		if err := s.store.UpdateActorLastSeen(ctx, id, ts); err != nil {
			errs = append(errs, fmt.Errorf("actor %s: %w", id, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		L.Error(ctx, err, "last_seen update failed", "failed", len(errs))
	}
}

func (s *Service) finish(ctx context.Context, L log.Logger, stats *RunStats) {
	if s.sink != nil {
		if err := s.sink.RecordRun(ctx, stats); err != nil {
			L.Warn(ctx, "recording run stats failed", "error", err)
		}
	}
	if s.hooks.OnRun != nil {
		s.hooks.OnRun(stats)
	}
	L.Info(ctx, "run complete",
		"status", stats.Status,
		"processed", stats.Processed,
		"added", stats.Added,
		"corroborated", stats.Updated,
		"duplicates", stats.Duplicates,
		"malformed", stats.Malformed,
		"failed", stats.Failed,
		"actors_created", stats.ActorsCreated,
		"duration", stats.Duration(),
	)
}
