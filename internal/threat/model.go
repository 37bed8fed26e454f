package threat

import (
	"errors"
	"time"

	"github.com/linnemanlabs/ransomfuse/internal/sector"
)

var (
	// ErrConflict is returned by a Store when a natural key already exists.
	ErrConflict = errors.New("threat: conflicting record")

	// ErrNotFound is returned when an update targets a missing record.
	ErrNotFound = errors.New("threat: record not found")

	// ErrMalformedClaim marks a claim that cannot be normalized.
	ErrMalformedClaim = errors.New("threat: malformed claim")
)

// ActorStatus tracks whether a threat actor is still operating.
type ActorStatus string

const (
	ActorActive   ActorStatus = "active"
	ActorInactive ActorStatus = "inactive"
)

// DefaultActorType is assigned to actors first seen on a leak-site feed.
const DefaultActorType = "ransomware"

// Actor is a canonical threat actor. NameKey is unique across the store.
type Actor struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	NameKey   string         `json:"name_key"`
	Aliases   []string       `json:"aliases,omitempty"`
	Type      string         `json:"actor_type"`
	Status    ActorStatus    `json:"status"`
	Source    string         `json:"source"`
	LastSeen  time.Time      `json:"last_seen,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// IncidentStatus is the lifecycle state of an incident.
type IncidentStatus string

const (
	// IncidentClaimed means a group has posted the victim on a leak site.
	IncidentClaimed IncidentStatus = "claimed"
)

// RawData keeps the fields a source originally reported, plus whether a
// second source has since confirmed the incident.
type RawData struct {
	GroupName    string `json:"group_name,omitempty"`
	VictimName   string `json:"victim_name,omitempty"`
	Discovered   string `json:"discovered,omitempty"`
	Country      string `json:"country,omitempty"`
	Website      string `json:"website,omitempty"`
	Description  string `json:"description,omitempty"`
	APISector    string `json:"api_sector,omitempty"`
	Activity     string `json:"activity,omitempty"`
	Corroborated bool   `json:"corroborated"`
}

// Incident is one victim claimed by one actor on one calendar day.
type Incident struct {
	ID             string         `json:"id"`
	ActorID        string         `json:"actor_id"`
	VictimName     string         `json:"victim_name"`
	Sector         sector.Sector  `json:"victim_sector"`
	Country        string         `json:"victim_country,omitempty"`
	Website        string         `json:"victim_website,omitempty"`
	DiscoveredDate time.Time      `json:"discovered_date"`
	Status         IncidentStatus `json:"status"`
	Sources        SourceSet      `json:"source"`
	SourceURL      string         `json:"source_url,omitempty"`
	RawData        RawData        `json:"raw_data"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Key returns the incident's dedup key.
func (i *Incident) Key() IncidentKey {
	return IncidentKey{ActorID: i.ActorID, VictimName: i.VictimName, DiscoveredDate: i.DiscoveredDate}
}

// SectorInput rebuilds the classifier input from stored fields.
func (i *Incident) SectorInput() sector.Input {
	return sector.Input{
		VictimName:  i.VictimName,
		Website:     i.Website,
		Description: i.RawData.Description,
		APISector:   i.RawData.APISector,
		Activity:    i.RawData.Activity,
	}
}

// IncidentKey identifies "the same event": one actor, one victim, one day.
type IncidentKey struct {
	ActorID        string
	VictimName     string
	DiscoveredDate time.Time
}

// Outcome is the result of processing a single claim.
type Outcome string

const (
	OutcomeCreated      Outcome = "created"
	OutcomeDuplicate    Outcome = "skipped_duplicate"
	OutcomeCorroborated Outcome = "corroborated"
	OutcomeMalformed    Outcome = "skipped_malformed"
	OutcomeFailed       Outcome = "failed"
)

// RunStatus is the final state of an adapter run.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

// RunStats summarizes one adapter run.
type RunStats struct {
	ID            string    `json:"id" yaml:"id"`
	Source        string    `json:"source" yaml:"source"`
	Status        RunStatus `json:"status" yaml:"status"`
	Processed     int       `json:"records_processed" yaml:"records_processed"`
	Added         int       `json:"records_added" yaml:"records_added"`
	Updated       int       `json:"records_updated" yaml:"records_updated"`
	Duplicates    int       `json:"skipped_duplicate" yaml:"skipped_duplicate"`
	Malformed     int       `json:"skipped_malformed" yaml:"skipped_malformed"`
	Failed        int       `json:"failed" yaml:"failed"`
	ActorsCreated int       `json:"actors_created" yaml:"actors_created"`
	Error         string    `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt     time.Time `json:"started_at" yaml:"started_at"`
	CompletedAt   time.Time `json:"completed_at" yaml:"completed_at"`
}

// Duration returns the wall time of the run.
func (s *RunStats) Duration() time.Duration {
	if s.CompletedAt.IsZero() {
		return 0
	}
	return s.CompletedAt.Sub(s.StartedAt)
}

func (s *RunStats) count(o Outcome) {
	s.Processed++
	switch o {
	case OutcomeCreated:
		s.Added++
	case OutcomeCorroborated:
		s.Updated++
	case OutcomeDuplicate:
		s.Duplicates++
	case OutcomeMalformed:
		s.Malformed++
	case OutcomeFailed:
		s.Failed++
	}
}
