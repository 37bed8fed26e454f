package threat

import (
	"context"
	"errors"
	"time"

	"github.com/linnemanlabs/ransomfuse/internal/sector"
)

// IncidentFilter narrows ListIncidents. Zero values mean "no constraint".
type IncidentFilter struct {
	ActorID string
	Sector  string
	Since   time.Time
	Until   time.Time
	// After is an exclusive incident ID cursor; results are ordered by ID.
	After string
	Limit int
}

// DefaultListLimit caps list queries that do not set a limit.
const DefaultListLimit = 100

// Store is the persistence interface for actors and incidents.
//
// InsertActor and InsertIncident return ErrConflict when the natural key
// (actor name key, incident key) is already taken. CorroborateIncident adds
// the tag to the incident's source set and marks it corroborated in one
// atomic step; it reports false when the tag was already present.
// UpdateActorLastSeen never moves last_seen backwards.
type Store interface {
	ListActors(ctx context.Context) ([]*Actor, error)
	GetActor(ctx context.Context, id string) (*Actor, bool, error)
	FindActorByName(ctx context.Context, name string) (*Actor, bool, error)
	InsertActor(ctx context.Context, a *Actor) error
	UpdateActorLastSeen(ctx context.Context, id string, lastSeen time.Time) error
	LastSeenByActor(ctx context.Context, actorIDs []string) (map[string]time.Time, error)

	GetIncident(ctx context.Context, id string) (*Incident, bool, error)
	FindIncident(ctx context.Context, key IncidentKey) (*Incident, bool, error)
	InsertIncident(ctx context.Context, inc *Incident) error
	CorroborateIncident(ctx context.Context, id, tag string) (bool, error)
	UpdateIncidentSector(ctx context.Context, id string, s sector.Sector) error
	ListIncidents(ctx context.Context, f IncidentFilter) ([]*Incident, error)
}

// StatsSink receives the summary of every adapter run.
type StatsSink interface {
	RecordRun(ctx context.Context, stats *RunStats) error
}

// MultiSink fans a run out to every sink and joins their errors.
type MultiSink []StatsSink

// RecordRun implements StatsSink.
func (m MultiSink) RecordRun(ctx context.Context, stats *RunStats) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.RecordRun(ctx, stats); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Adapter fetches claims from one external source. Name is the provenance
// tag stored on every incident the adapter creates or corroborates.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context) ([]RawClaim, error)
}

// RunLister reads back recorded run summaries, newest first. An empty
// source lists every source.
type RunLister interface {
	ListRuns(ctx context.Context, source string, limit int) ([]*RunStats, error)
}
