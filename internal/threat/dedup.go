package threat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linnemanlabs/ransomfuse/internal/sector"
	"github.com/oklog/ulid/v2"
)

// Deduplicator writes claims as incidents, merging claims that share a
// dedup key. The first writer's content is kept; later sources only add
// their provenance tag.
type Deduplicator struct {
	store Store
	now   func() time.Time
}

// NewDeduplicator returns a Deduplicator backed by store.
func NewDeduplicator(store Store) *Deduplicator {
	return &Deduplicator{store: store, now: time.Now}
}

// Upsert records claim c from source tag for actorID.
func (d *Deduplicator) Upsert(ctx context.Context, c *Claim, actorID, tag string) (Outcome, error) {
	key := IncidentKey{ActorID: actorID, VictimName: c.VictimName, DiscoveredDate: c.Discovered}

	existing, ok, err := d.store.FindIncident(ctx, key)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("find incident: %w", err)
	}
	if !ok {
		inc := d.newIncident(c, actorID, tag)
		err := d.store.InsertIncident(ctx, inc)
		if err == nil {
			return OutcomeCreated, nil
		}
		if !errors.Is(err, ErrConflict) {
			return OutcomeFailed, fmt.Errorf("insert incident: %w", err)
		}
		// lost the insert race; the winner's row is now the one to corroborate
		existing, ok, err = d.store.FindIncident(ctx, key)
		if err != nil {
			return OutcomeFailed, fmt.Errorf("find incident after conflict: %w", err)
		}
		if !ok {
			return OutcomeFailed, fmt.Errorf("insert incident: %w", ErrConflict)
		}
	}

	if existing.Sources.Has(tag) {
		return OutcomeDuplicate, nil
	}
	added, err := d.store.CorroborateIncident(ctx, existing.ID, tag)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("corroborate incident %s: %w", existing.ID, err)
	}
	if !added {
		return OutcomeDuplicate, nil
	}
	return OutcomeCorroborated, nil
}

func (d *Deduplicator) newIncident(c *Claim, actorID, tag string) *Incident {
	now := d.now().UTC()
	return &Incident{
		ID:         ulid.Make().String(),
		ActorID:    actorID,
		VictimName: c.VictimName,
		Sector: sector.Classify(sector.Input{
			VictimName:  c.VictimName,
			Website:     c.Website,
			Description: c.Description,
			APISector:   c.APISector,
			Activity:    c.Activity,
		}),
		Country:        c.Country,
		Website:        c.Website,
		DiscoveredDate: c.Discovered,
		Status:         IncidentClaimed,
		Sources:        NewSourceSet(tag),
		SourceURL:      c.SourceURL,
		RawData:        c.RawData(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
