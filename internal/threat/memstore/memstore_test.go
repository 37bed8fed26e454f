package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/ransomfuse/internal/sector"
	"github.com/linnemanlabs/ransomfuse/internal/threat"
)

var day = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func newIncident(id, actorID, victim string, d time.Time, tags ...string) *threat.Incident {
	return &threat.Incident{
		ID:             id,
		ActorID:        actorID,
		VictimName:     victim,
		Sector:         sector.Other,
		DiscoveredDate: d,
		Status:         threat.IncidentClaimed,
		Sources:        threat.NewSourceSet(tags...),
	}
}

func TestStore_InsertActorConflictIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	if err := s.InsertActor(ctx, &threat.Actor{ID: "a-1", Name: "LockBit", NameKey: "lockbit"}); err != nil {
		t.Fatalf("InsertActor: %v", err)
	}
	err := s.InsertActor(ctx, &threat.Actor{ID: "a-2", Name: "LOCKBIT"})
	if !errors.Is(err, threat.ErrConflict) {
		t.Fatalf("second InsertActor err = %v, want ErrConflict", err)
	}

	got, ok, err := s.FindActorByName(ctx, " lockBIT ")
	if err != nil || !ok {
		t.Fatalf("FindActorByName: ok=%v err=%v", ok, err)
	}
	if got.ID != "a-1" || got.Name != "LockBit" {
		t.Errorf("got %s/%q, want a-1/LockBit", got.ID, got.Name)
	}
}

func TestStore_FindActorByAlias(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	_ = s.InsertActor(ctx, &threat.Actor{ID: "a-1", Name: "Cl0p", Aliases: []string{"Clop", "TA505"}})

	got, ok, err := s.FindActorByName(ctx, "ta505")
	if err != nil || !ok {
		t.Fatalf("FindActorByName: ok=%v err=%v", ok, err)
	}
	if got.ID != "a-1" {
		t.Errorf("ID = %q, want a-1", got.ID)
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	_ = s.InsertIncident(ctx, newIncident("i-1", "a-1", "Foo Inc", day, "x"))

	got, _, _ := s.GetIncident(ctx, "i-1")
	got.Sources.Add("mutated")
	got.Sector = sector.Finance

	again, _, _ := s.GetIncident(ctx, "i-1")
	if again.Sources.Has("mutated") {
		t.Error("caller mutation leaked into stored sources")
	}
	if again.Sector != sector.Other {
		t.Errorf("Sector = %q, want Other", again.Sector)
	}
}

func TestStore_IncidentKeyUniqueness(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	if err := s.InsertIncident(ctx, newIncident("i-1", "a-1", "Foo Inc", day, "x")); err != nil {
		t.Fatalf("InsertIncident: %v", err)
	}
	err := s.InsertIncident(ctx, newIncident("i-2", "a-1", "Foo Inc", day, "y"))
	if !errors.Is(err, threat.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	// different day is a different event
	if err := s.InsertIncident(ctx, newIncident("i-3", "a-1", "Foo Inc", day.AddDate(0, 0, 1), "x")); err != nil {
		t.Fatalf("InsertIncident next day: %v", err)
	}

	got, ok, err := s.FindIncident(ctx, threat.IncidentKey{ActorID: "a-1", VictimName: "Foo Inc", DiscoveredDate: day})
	if err != nil || !ok {
		t.Fatalf("FindIncident: ok=%v err=%v", ok, err)
	}
	if got.ID != "i-1" {
		t.Errorf("ID = %q, want i-1", got.ID)
	}
}

func TestStore_CorroborateIncident(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	_ = s.InsertIncident(ctx, newIncident("i-1", "a-1", "Foo Inc", day, "ransomlook_v2"))

	added, err := s.CorroborateIncident(ctx, "i-1", "ransomlook")
	if err != nil {
		t.Fatalf("CorroborateIncident: %v", err)
	}
	if !added {
		t.Fatal("expected tag to be added despite substring overlap")
	}
	added, _ = s.CorroborateIncident(ctx, "i-1", "ransomlook")
	if added {
		t.Error("second corroboration with same tag reported added")
	}

	got, _, _ := s.GetIncident(ctx, "i-1")
	if got.Sources.String() != "ransomlook_v2,ransomlook" {
		t.Errorf("Sources = %q", got.Sources.String())
	}
	if !got.RawData.Corroborated {
		t.Error("expected corroborated flag")
	}

	if _, err := s.CorroborateIncident(ctx, "missing", "x"); !errors.Is(err, threat.ErrNotFound) {
		t.Errorf("missing incident err = %v, want ErrNotFound", err)
	}
}

func TestStore_ConcurrentCorroboration(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	_ = s.InsertIncident(ctx, newIncident("i-1", "a-1", "Foo Inc", day, "origin"))

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.CorroborateIncident(ctx, "i-1", fmt.Sprintf("src-%d", i%5))
		}(i)
	}
	wg.Wait()

	got, _, _ := s.GetIncident(ctx, "i-1")
	if len(got.Sources) != 6 {
		t.Errorf("len(Sources) = %d, want 6: %v", len(got.Sources), got.Sources)
	}
}

func TestStore_LastSeen(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	_ = s.InsertActor(ctx, &threat.Actor{ID: "a-1", Name: "Akira"})
	_ = s.InsertActor(ctx, &threat.Actor{ID: "a-2", Name: "Play"})
	_ = s.InsertIncident(ctx, newIncident("i-1", "a-1", "Foo", day, "x"))
	_ = s.InsertIncident(ctx, newIncident("i-2", "a-1", "Bar", day.AddDate(0, 0, 5), "x"))
	_ = s.InsertIncident(ctx, newIncident("i-3", "a-2", "Baz", day.AddDate(0, 0, 9), "x"))

	seen, err := s.LastSeenByActor(ctx, []string{"a-1"})
	if err != nil {
		t.Fatalf("LastSeenByActor: %v", err)
	}
	if len(seen) != 1 || !seen["a-1"].Equal(day.AddDate(0, 0, 5)) {
		t.Fatalf("seen = %v", seen)
	}

	_ = s.UpdateActorLastSeen(ctx, "a-1", seen["a-1"])
	_ = s.UpdateActorLastSeen(ctx, "a-1", day)
	a, _, _ := s.GetActor(ctx, "a-1")
	if !a.LastSeen.Equal(day.AddDate(0, 0, 5)) {
		t.Errorf("LastSeen = %v, went backwards", a.LastSeen)
	}
}

func TestStore_ListIncidents(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	for i := range 5 {
		inc := newIncident(fmt.Sprintf("i-%d", i), "a-1", fmt.Sprintf("V%d", i), day.AddDate(0, 0, i), "x")
		if i%2 == 0 {
			inc.Sector = sector.Finance
		}
		_ = s.InsertIncident(ctx, inc)
	}
	_ = s.InsertIncident(ctx, newIncident("i-9", "a-2", "Other actor", day, "x"))

	tests := []struct {
		name string
		f    threat.IncidentFilter
		want []string
	}{
		{"all", threat.IncidentFilter{}, []string{"i-0", "i-1", "i-2", "i-3", "i-4", "i-9"}},
		{"actor", threat.IncidentFilter{ActorID: "a-1", Limit: 2}, []string{"i-0", "i-1"}},
		{"cursor", threat.IncidentFilter{ActorID: "a-1", After: "i-1", Limit: 2}, []string{"i-2", "i-3"}},
		{"sector", threat.IncidentFilter{Sector: "FINANCE"}, []string{"i-0", "i-2", "i-4"}},
		{"window", threat.IncidentFilter{Since: day.AddDate(0, 0, 1), Until: day.AddDate(0, 0, 3)}, []string{"i-1", "i-2", "i-3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := s.ListIncidents(ctx, tt.f)
			if err != nil {
				t.Fatalf("ListIncidents: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d incidents, want %d", len(got), len(tt.want))
			}
			for i, inc := range got {
				if inc.ID != tt.want[i] {
					t.Errorf("[%d] = %q, want %q", i, inc.ID, tt.want[i])
				}
			}
		})
	}
}

func TestStore_Runs(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	_ = s.RecordRun(ctx, &threat.RunStats{ID: "r-1", Source: "ransomwatch"})
	_ = s.RecordRun(ctx, &threat.RunStats{ID: "r-2", Source: "ransomlook"})
	_ = s.RecordRun(ctx, &threat.RunStats{ID: "r-3", Source: "ransomwatch"})

	got, err := s.ListRuns(ctx, "ransomwatch", 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(got) != 2 || got[0].ID != "r-3" || got[1].ID != "r-1" {
		t.Errorf("ListRuns = %+v", got)
	}
	all, _ := s.ListRuns(ctx, "", 2)
	if len(all) != 2 || all[0].ID != "r-3" {
		t.Errorf("ListRuns(all, 2) = %+v", all)
	}
}
