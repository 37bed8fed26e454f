// Package memstore provides an in-memory implementation of threat.Store.
package memstore

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/linnemanlabs/ransomfuse/internal/sector"
	"github.com/linnemanlabs/ransomfuse/internal/threat"
)

// Store holds actors and incidents in memory. Suitable for dev/testing.
// Natural-key uniqueness is enforced the same way the database does.
type Store struct {
	mu        sync.RWMutex
	actors    map[string]*threat.Actor    // actor ID -> actor
	nameKeys  map[string]string           // name key -> actor ID
	incidents map[string]*threat.Incident // incident ID -> incident
	keys      map[string]string           // dedup key -> incident ID
	runs      []*threat.RunStats
	now       func() time.Time
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		actors:    make(map[string]*threat.Actor),
		nameKeys:  make(map[string]string),
		incidents: make(map[string]*threat.Incident),
		keys:      make(map[string]string),
		now:       time.Now,
	}
}

func incidentKey(k threat.IncidentKey) string {
	return k.ActorID + "\x00" + k.VictimName + "\x00" + k.DiscoveredDate.UTC().Format(time.DateOnly)
}

// ListActors returns copies of every actor ordered by name key.
func (s *Store) ListActors(_ context.Context) ([]*threat.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*threat.Actor, 0, len(s.actors))
	for _, a := range s.actors {
		out = append(out, cloneActor(a))
	}
	slices.SortFunc(out, func(a, b *threat.Actor) int { return cmp.Compare(a.NameKey, b.NameKey) })
	return out, nil
}

// GetActor retrieves an actor by ID. Returns a copy.
func (s *Store) GetActor(_ context.Context, id string) (*threat.Actor, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.actors[id]
	if !ok {
		return nil, false, nil
	}
	return cloneActor(a), true, nil
}

// FindActorByName matches name case-insensitively against actor names,
// then aliases.
func (s *Store) FindActorByName(_ context.Context, name string) (*threat.Actor, bool, error) {
	key := threat.NameKey(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.nameKeys[key]; ok {
		return cloneActor(s.actors[id]), true, nil
	}
	for _, a := range s.actors {
		for _, alias := range a.Aliases {
			if threat.NameKey(alias) == key {
				return cloneActor(a), true, nil
			}
		}
	}
	return nil, false, nil
}

// InsertActor stores a copy of a. The name key must be unused.
func (s *Store) InsertActor(_ context.Context, a *threat.Actor) error {
	key := a.NameKey
	if key == "" {
		key = threat.NameKey(a.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.nameKeys[key]; taken {
		return threat.ErrConflict
	}
	if _, taken := s.actors[a.ID]; taken {
		return threat.ErrConflict
	}
	cp := cloneActor(a)
	cp.NameKey = key
	s.actors[cp.ID] = cp
	s.nameKeys[key] = cp.ID
	return nil
}

// UpdateActorLastSeen moves last_seen forward to ts.
func (s *Store) UpdateActorLastSeen(_ context.Context, id string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actors[id]
	if !ok {
		return threat.ErrNotFound
	}
	if ts.After(a.LastSeen) {
		a.LastSeen = ts
	}
	return nil
}

// LastSeenByActor returns the latest discovered date per actor.
func (s *Store) LastSeenByActor(_ context.Context, ids []string) (map[string]time.Time, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]time.Time)
	for _, inc := range s.incidents {
		if !want[inc.ActorID] {
			continue
		}
		if inc.DiscoveredDate.After(out[inc.ActorID]) {
			out[inc.ActorID] = inc.DiscoveredDate
		}
	}
	return out, nil
}

// GetIncident retrieves an incident by ID. Returns a copy.
func (s *Store) GetIncident(_ context.Context, id string) (*threat.Incident, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inc, ok := s.incidents[id]
	if !ok {
		return nil, false, nil
	}
	return cloneIncident(inc), true, nil
}

// FindIncident retrieves an incident by its dedup key. Returns a copy.
func (s *Store) FindIncident(_ context.Context, k threat.IncidentKey) (*threat.Incident, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.keys[incidentKey(k)]
	if !ok {
		return nil, false, nil
	}
	return cloneIncident(s.incidents[id]), true, nil
}

// InsertIncident stores a copy of inc. The dedup key must be unused.
func (s *Store) InsertIncident(_ context.Context, inc *threat.Incident) error {
	k := incidentKey(inc.Key())
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.keys[k]; taken {
		return threat.ErrConflict
	}
	if _, taken := s.incidents[inc.ID]; taken {
		return threat.ErrConflict
	}
	cp := cloneIncident(inc)
	s.incidents[cp.ID] = cp
	s.keys[k] = cp.ID
	return nil
}

// CorroborateIncident adds tag to the incident's sources under the write
// lock and marks it corroborated.
func (s *Store) CorroborateIncident(_ context.Context, id, tag string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inc, ok := s.incidents[id]
	if !ok {
		return false, threat.ErrNotFound
	}
	if !inc.Sources.Add(tag) {
		return false, nil
	}
	inc.RawData.Corroborated = true
	inc.UpdatedAt = s.now().UTC()
	return true, nil
}

// UpdateIncidentSector overwrites the incident's sector.
func (s *Store) UpdateIncidentSector(_ context.Context, id string, sec sector.Sector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inc, ok := s.incidents[id]
	if !ok {
		return threat.ErrNotFound
	}
	inc.Sector = sec
	inc.UpdatedAt = s.now().UTC()
	return nil
}

// ListIncidents returns copies of matching incidents ordered by ID.
func (s *Store) ListIncidents(_ context.Context, f threat.IncidentFilter) ([]*threat.Incident, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = threat.DefaultListLimit
	}
	s.mu.RLock()
	ids := slices.Sorted(maps.Keys(s.incidents))
	out := make([]*threat.Incident, 0, min(limit, len(ids)))
	for _, id := range ids {
		if len(out) == limit {
			break
		}
		if f.After != "" && id <= f.After {
			continue
		}
		inc := s.incidents[id]
		if !matches(inc, f) {
			continue
		}
		out = append(out, cloneIncident(inc))
	}
	s.mu.RUnlock()
	return out, nil
}

func matches(inc *threat.Incident, f threat.IncidentFilter) bool {
	if f.ActorID != "" && inc.ActorID != f.ActorID {
		return false
	}
	if f.Sector != "" && !strings.EqualFold(string(inc.Sector), f.Sector) {
		return false
	}
	if !f.Since.IsZero() && inc.DiscoveredDate.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && inc.DiscoveredDate.After(f.Until) {
		return false
	}
	return true
}

// RecordRun keeps a copy of the run summary.
func (s *Store) RecordRun(_ context.Context, stats *threat.RunStats) error {
	cp := *stats
	s.mu.Lock()
	s.runs = append(s.runs, &cp)
	s.mu.Unlock()
	return nil
}

// ListRuns returns the most recent runs first, optionally for one source.
func (s *Store) ListRuns(_ context.Context, source string, limit int) ([]*threat.RunStats, error) {
	if limit <= 0 {
		limit = threat.DefaultListLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*threat.RunStats
	for i := len(s.runs) - 1; i >= 0 && len(out) < limit; i-- {
		r := s.runs[i]
		if source != "" && r.Source != source {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func cloneActor(a *threat.Actor) *threat.Actor {
	cp := *a
	cp.Aliases = slices.Clone(a.Aliases)
	cp.Metadata = maps.Clone(a.Metadata)
	return &cp
}

func cloneIncident(inc *threat.Incident) *threat.Incident {
	cp := *inc
	cp.Sources = inc.Sources.Clone()
	return &cp
}
