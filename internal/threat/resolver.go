package threat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"
)

// ActorDefaults are applied to actors the resolver creates.
type ActorDefaults struct {
	Type   string
	Status ActorStatus
	// Source is recorded as the actor's origin, for example "ransomwatch".
	Source string
}

// Resolution is the outcome of resolving a group name.
type Resolution struct {
	ActorID string
	Created bool
}

// Resolver maps group names to canonical actor IDs, creating actors on
// first sight. Repeated lookups of a known name never touch the store.
type Resolver struct {
	store  Store
	cache  *ActorCache
	logger log.Logger
	now    func() time.Time
}

// NewResolver creates a resolver backed by store and cache.
func NewResolver(store Store, cache *ActorCache, logger log.Logger) *Resolver {
	if cache == nil {
		cache = NewActorCache()
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Resolver{store: store, cache: cache, logger: logger, now: time.Now}
}

// Warm seeds the cache with every actor in the store.
func (r *Resolver) Warm(ctx context.Context) error {
	actors, err := r.store.ListActors(ctx)
	if err != nil {
		return fmt.Errorf("list actors: %w", err)
	}
	r.cache.Seed(actors)
	return nil
}

// Resolve returns the actor ID for name, creating the actor if needed. When
// a concurrent writer wins the insert race, the existing actor is returned.
func (r *Resolver) Resolve(ctx context.Context, name string, def ActorDefaults) (Resolution, error) {
	key := NameKey(name)
	if key == "" {
		return Resolution{}, fmt.Errorf("%w: empty group name", ErrMalformedClaim)
	}
	if id, ok := r.cache.Lookup(key); ok {
		return Resolution{ActorID: id}, nil
	}

	// create first; an actor written since the cache was seeded surfaces
	// as an insert failure and is adopted from the lookup below
	a := r.newActor(name, key, def)
	insertErr := r.store.InsertActor(ctx, a)
	if insertErr == nil {
		r.cache.Put(a)
		return Resolution{ActorID: a.ID, Created: true}, nil
	}

	existing, ok, err := r.store.FindActorByName(ctx, name)
	if err != nil {
		return Resolution{}, errors.Join(fmt.Errorf("insert actor %q: %w", name, insertErr), err)
	}
	if !ok {
		return Resolution{}, fmt.Errorf("insert actor %q: %w", name, insertErr)
	}
	if !errors.Is(insertErr, ErrConflict) {
		r.logger.Warn(ctx, "actor insert failed but actor exists", "actor", name, "error", insertErr)
	}
	r.cache.Put(existing)
	return Resolution{ActorID: existing.ID}, nil
}

func (r *Resolver) newActor(name, key string, def ActorDefaults) *Actor {
	typ := def.Type
	if typ == "" {
		typ = DefaultActorType
	}
	status := def.Status
	if status == "" {
		status = ActorActive
	}
	return &Actor{
		ID:        ulid.Make().String(),
		Name:      collapseSpace(name),
		NameKey:   key,
		Type:      typ,
		Status:    status,
		Source:    def.Source,
		CreatedAt: r.now().UTC(),
	}
}
