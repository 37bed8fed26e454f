package threat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/linnemanlabs/go-core/log"
)

// mockStore implements the actor half of Store. Unimplemented methods
// panic through the nil embedded interface.
type mockStore struct {
	Store

	mu        sync.Mutex
	actors    map[string]*Actor // name key -> actor
	finds     int
	inserts   int
	insertErr error
	// raceWinner is inserted just before InsertActor fails, simulating a
	// concurrent writer.
	raceWinner *Actor
}

func newMockStore() *mockStore {
	return &mockStore{actors: make(map[string]*Actor)}
}

func (m *mockStore) ListActors(context.Context) ([]*Actor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Actor, 0, len(m.actors))
	for _, a := range m.actors {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockStore) FindActorByName(_ context.Context, name string) (*Actor, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finds++
	a, ok := m.actors[NameKey(name)]
	if !ok {
		return nil, false, nil
	}
	cp := *a
	return &cp, true, nil
}

func (m *mockStore) InsertActor(_ context.Context, a *Actor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.raceWinner != nil {
		m.actors[m.raceWinner.NameKey] = m.raceWinner
		m.raceWinner = nil
		return ErrConflict
	}
	if m.insertErr != nil {
		return m.insertErr
	}
	if _, ok := m.actors[a.NameKey]; ok {
		return ErrConflict
	}
	cp := *a
	m.actors[a.NameKey] = &cp
	return nil
}

func TestResolve_CaseInsensitiveWithinBatch(t *testing.T) {
	t.Parallel()

	st := newMockStore()
	r := NewResolver(st, nil, log.Nop())
	ctx := context.Background()
	def := ActorDefaults{Source: "ransomwatch"}

	first, err := r.Resolve(ctx, "LockBit", def)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !first.Created {
		t.Error("expected first resolve to create")
	}
	for _, name := range []string{"lockbit", "LOCKBIT", "  LockBit  "} {
		res, err := r.Resolve(ctx, name, def)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", name, err)
		}
		if res.ActorID != first.ActorID || res.Created {
			t.Errorf("Resolve(%q) = %+v, want existing %s", name, res, first.ActorID)
		}
	}
	if st.inserts != 1 {
		t.Errorf("inserts = %d, want 1", st.inserts)
	}

	a := st.actors["lockbit"]
	if a.Name != "LockBit" {
		t.Errorf("display name = %q, want first-seen casing", a.Name)
	}
	if a.Type != DefaultActorType || a.Status != ActorActive || a.Source != "ransomwatch" {
		t.Errorf("defaults not applied: %+v", a)
	}
}

func TestResolve_WarmAvoidsStore(t *testing.T) {
	t.Parallel()

	st := newMockStore()
	st.actors["akira"] = &Actor{ID: "a-1", Name: "Akira", NameKey: "akira", Aliases: []string{"Akira_v2"}}
	r := NewResolver(st, nil, log.Nop())
	ctx := context.Background()
	if err := r.Warm(ctx); err != nil {
		t.Fatalf("Warm: %v", err)
	}

	for _, name := range []string{"AKIRA", "akira_v2"} {
		res, err := r.Resolve(ctx, name, ActorDefaults{})
		if err != nil {
			t.Fatalf("Resolve(%q): %v", name, err)
		}
		if res.ActorID != "a-1" {
			t.Errorf("Resolve(%q) = %q, want a-1", name, res.ActorID)
		}
	}
	if st.finds != 0 || st.inserts != 0 {
		t.Errorf("store touched: finds=%d inserts=%d", st.finds, st.inserts)
	}
}

func TestResolve_CreatesWithoutLookup(t *testing.T) {
	t.Parallel()

	st := newMockStore()
	r := NewResolver(st, nil, log.Nop())

	res, err := r.Resolve(context.Background(), "BlackSuit", ActorDefaults{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Created {
		t.Errorf("Resolve = %+v, want created", res)
	}
	if st.finds != 0 || st.inserts != 1 {
		t.Errorf("finds=%d inserts=%d, want 0 and 1", st.finds, st.inserts)
	}
}

func TestResolve_ExistingUncachedActorAdopted(t *testing.T) {
	t.Parallel()

	st := newMockStore()
	r := NewResolver(st, nil, log.Nop())
	// written by another process after the cache was seeded
	st.actors["play"] = &Actor{ID: "p-1", Name: "Play", NameKey: "play"}

	res, err := r.Resolve(context.Background(), "PLAY", ActorDefaults{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.ActorID != "p-1" || res.Created {
		t.Errorf("Resolve = %+v, want existing p-1", res)
	}
	if st.inserts != 1 || st.finds != 1 {
		t.Errorf("finds=%d inserts=%d, want 1 and 1", st.finds, st.inserts)
	}
}

func TestResolve_ConflictFallsBackToLookup(t *testing.T) {
	t.Parallel()

	st := newMockStore()
	st.raceWinner = &Actor{ID: "winner", Name: "Cl0p", NameKey: "cl0p"}
	r := NewResolver(st, nil, log.Nop())

	res, err := r.Resolve(context.Background(), "CL0P", ActorDefaults{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.ActorID != "winner" || res.Created {
		t.Errorf("Resolve = %+v, want adopted winner", res)
	}
}

func TestResolve_InsertFailureWithoutExisting(t *testing.T) {
	t.Parallel()

	st := newMockStore()
	st.insertErr = errors.New("connection reset")
	r := NewResolver(st, nil, log.Nop())

	_, err := r.Resolve(context.Background(), "Play", ActorDefaults{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, st.insertErr) {
		t.Errorf("err = %v, want wrapped insert error", err)
	}
}

func TestResolve_EmptyName(t *testing.T) {
	t.Parallel()

	r := NewResolver(newMockStore(), nil, log.Nop())
	if _, err := r.Resolve(context.Background(), "   ", ActorDefaults{}); !errors.Is(err, ErrMalformedClaim) {
		t.Errorf("err = %v, want ErrMalformedClaim", err)
	}
}

func TestActorCache_NameBeatsAlias(t *testing.T) {
	t.Parallel()

	c := NewActorCache()
	c.Seed([]*Actor{
		{ID: "a-1", Name: "Medusa", Aliases: []string{"Hive"}},
		{ID: "a-2", Name: "Hive"},
	})
	if id, _ := c.Lookup("hive"); id != "a-2" {
		t.Errorf("Lookup(hive) = %q, want a-2", id)
	}
	if id, _ := c.Lookup("MEDUSA"); id != "a-1" {
		t.Errorf("Lookup(MEDUSA) = %q, want a-1", id)
	}
	if _, ok := c.Lookup(""); ok {
		t.Error("empty name should miss")
	}
}

func TestMultiSink_JoinsErrors(t *testing.T) {
	t.Parallel()

	errA := errors.New("a")
	var called int
	sink := MultiSink{
		sinkFunc(func(context.Context, *RunStats) error { called++; return errA }),
		nil,
		sinkFunc(func(context.Context, *RunStats) error { called++; return nil }),
	}
	err := sink.RecordRun(context.Background(), &RunStats{})
	if called != 2 {
		t.Errorf("called = %d, want 2", called)
	}
	if !errors.Is(err, errA) {
		t.Errorf("err = %v, want errA", err)
	}
}

type sinkFunc func(context.Context, *RunStats) error

func (f sinkFunc) RecordRun(ctx context.Context, s *RunStats) error { return f(ctx, s) }
