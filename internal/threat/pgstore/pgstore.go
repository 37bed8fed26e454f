// Package pgstore provides a PostgreSQL implementation of threat.Store.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/ransomfuse/internal/postgres"
	"github.com/linnemanlabs/ransomfuse/internal/sector"
	"github.com/linnemanlabs/ransomfuse/internal/threat"
)

var tracer = otel.Tracer("github.com/linnemanlabs/ransomfuse/internal/threat/pgstore")

//go:embed schema.sql
var schema string

// Store persists actors, incidents and run summaries in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on pool and returns a ready Store. The caller
// owns the pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

const actorColumns = `id, name, name_key, aliases, actor_type, status, source, last_seen, metadata, created_at`

func scanActor(row pgx.Row) (*threat.Actor, error) {
	var (
		a        threat.Actor
		status   string
		lastSeen *time.Time
	)
	err := row.Scan(&a.ID, &a.Name, &a.NameKey, &a.Aliases, &a.Type, &status, &a.Source, &lastSeen, &a.Metadata, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.Status = threat.ActorStatus(status)
	if lastSeen != nil {
		a.LastSeen = lastSeen.UTC()
	}
	return &a, nil
}

// ListActors returns every actor ordered by name key.
func (s *Store) ListActors(ctx context.Context) ([]*threat.Actor, error) {
	ctx, span := startSpan(ctx, "pgstore.ListActors", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx, `SELECT `+actorColumns+` FROM threat_actors ORDER BY name_key`)
	if err != nil {
		return nil, fail(span, err)
	}
	defer rows.Close()

	var out []*threat.Actor
	for rows.Next() {
		a, err := scanActor(rows)
		if err != nil {
			return nil, fail(span, fmt.Errorf("scan actor: %w", err))
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, err)
	}
	span.SetAttributes(attribute.Int("ransomfuse.actors", len(out)))
	return out, nil
}

// GetActor retrieves an actor by ID.
func (s *Store) GetActor(ctx context.Context, id string) (*threat.Actor, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.GetActor", "SELECT")
	defer span.End()

	a, err := scanActor(s.pool.QueryRow(ctx, `SELECT `+actorColumns+` FROM threat_actors WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fail(span, err)
	}
	return a, true, nil
}

// FindActorByName matches the name key first and falls back to aliases.
func (s *Store) FindActorByName(ctx context.Context, name string) (*threat.Actor, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.FindActorByName", "SELECT")
	defer span.End()

	query := `SELECT ` + actorColumns + ` FROM threat_actors
		WHERE name_key = $1
		   OR EXISTS (SELECT 1 FROM unnest(aliases) AS alias WHERE lower(btrim(alias)) = $1)
		ORDER BY (name_key = $1) DESC, created_at
		LIMIT 1`
	a, err := scanActor(s.pool.QueryRow(ctx, query, threat.NameKey(name)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fail(span, err)
	}
	return a, true, nil
}

// InsertActor creates an actor. A taken name key yields threat.ErrConflict.
func (s *Store) InsertActor(ctx context.Context, a *threat.Actor) error {
	ctx, span := startSpan(ctx, "pgstore.InsertActor", "INSERT")
	defer span.End()

	key := a.NameKey
	if key == "" {
		key = threat.NameKey(a.Name)
	}
	aliases := a.Aliases
	if aliases == nil {
		aliases = []string{}
	}
	metadata := a.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	var lastSeen *time.Time
	if !a.LastSeen.IsZero() {
		lastSeen = &a.LastSeen
	}

	tag, err := s.pool.Exec(ctx, `INSERT INTO threat_actors (`+actorColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (name_key) DO NOTHING`,
		a.ID, a.Name, key, aliases, a.Type, string(a.Status), a.Source, lastSeen, metadata, a.CreatedAt,
	)
	if postgres.IsUniqueViolation(err) {
		return threat.ErrConflict
	}
	if err != nil {
		return fail(span, err)
	}
	if tag.RowsAffected() == 0 {
		span.SetAttributes(attribute.Bool("ransomfuse.conflict", true))
		return threat.ErrConflict
	}
	return nil
}

// UpdateActorLastSeen moves last_seen forward; it never moves it back.
func (s *Store) UpdateActorLastSeen(ctx context.Context, id string, lastSeen time.Time) error {
	ctx, span := startSpan(ctx, "pgstore.UpdateActorLastSeen", "UPDATE")
	defer span.End()

	tag, err := s.pool.Exec(ctx,
		`UPDATE threat_actors SET last_seen = GREATEST(last_seen, $2::date) WHERE id = $1`,
		id, lastSeen,
	)
	if err != nil {
		return fail(span, err)
	}
	if tag.RowsAffected() == 0 {
		return threat.ErrNotFound
	}
	return nil
}

// LastSeenByActor returns the latest discovered date per actor in one
// grouped query.
func (s *Store) LastSeenByActor(ctx context.Context, actorIDs []string) (map[string]time.Time, error) {
	ctx, span := startSpan(ctx, "pgstore.LastSeenByActor", "SELECT")
	defer span.End()
	span.SetAttributes(attribute.Int("ransomfuse.actors", len(actorIDs)))

	rows, err := s.pool.Query(ctx, `SELECT actor_id, max(discovered_date) FROM incidents
		WHERE actor_id = ANY($1) GROUP BY actor_id`, actorIDs)
	if err != nil {
		return nil, fail(span, err)
	}
	defer rows.Close()

	out := make(map[string]time.Time, len(actorIDs))
	for rows.Next() {
		var (
			id string
			ts time.Time
		)
		if err := rows.Scan(&id, &ts); err != nil {
			return nil, fail(span, fmt.Errorf("scan last_seen: %w", err))
		}
		out[id] = ts.UTC()
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, err)
	}
	return out, nil
}

const incidentColumns = `id, actor_id, victim_name, victim_sector, victim_country, victim_website,
	discovered_date, status, sources, source_url, raw_data, created_at, updated_at`

func scanIncident(row pgx.Row) (*threat.Incident, error) {
	var (
		inc     threat.Incident
		sec     string
		status  string
		sources []string
	)
	err := row.Scan(&inc.ID, &inc.ActorID, &inc.VictimName, &sec, &inc.Country, &inc.Website,
		&inc.DiscoveredDate, &status, &sources, &inc.SourceURL, &inc.RawData, &inc.CreatedAt, &inc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	inc.Sector = sector.Sector(sec)
	inc.Status = threat.IncidentStatus(status)
	inc.Sources = threat.NewSourceSet(sources...)
	inc.DiscoveredDate = inc.DiscoveredDate.UTC()
	return &inc, nil
}

// GetIncident retrieves an incident by ID.
func (s *Store) GetIncident(ctx context.Context, id string) (*threat.Incident, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.GetIncident", "SELECT")
	defer span.End()

	inc, err := scanIncident(s.pool.QueryRow(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fail(span, err)
	}
	return inc, true, nil
}

// FindIncident retrieves an incident by its dedup key.
func (s *Store) FindIncident(ctx context.Context, k threat.IncidentKey) (*threat.Incident, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.FindIncident", "SELECT")
	defer span.End()

	inc, err := scanIncident(s.pool.QueryRow(ctx, `SELECT `+incidentColumns+` FROM incidents
		WHERE actor_id = $1 AND victim_name = $2 AND discovered_date = $3::date`,
		k.ActorID, k.VictimName, k.DiscoveredDate,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fail(span, err)
	}
	return inc, true, nil
}

// InsertIncident creates an incident. A taken dedup key yields
// threat.ErrConflict.
func (s *Store) InsertIncident(ctx context.Context, inc *threat.Incident) error {
	ctx, span := startSpan(ctx, "pgstore.InsertIncident", "INSERT")
	defer span.End()

	sources := []string(inc.Sources)
	if sources == nil {
		sources = []string{}
	}
	tag, err := s.pool.Exec(ctx, `INSERT INTO incidents (`+incidentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7::date, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (actor_id, victim_name, discovered_date) DO NOTHING`,
		inc.ID, inc.ActorID, inc.VictimName, string(inc.Sector), inc.Country, inc.Website,
		inc.DiscoveredDate, string(inc.Status), sources, inc.SourceURL, inc.RawData, inc.CreatedAt, inc.UpdatedAt,
	)
	if postgres.IsUniqueViolation(err) {
		return threat.ErrConflict
	}
	if err != nil {
		return fail(span, err)
	}
	if tag.RowsAffected() == 0 {
		span.SetAttributes(attribute.Bool("ransomfuse.conflict", true))
		return threat.ErrConflict
	}
	return nil
}

// CorroborateIncident appends tag and sets raw_data.corroborated in a
// single conditional update, so racing corroborators both land.
func (s *Store) CorroborateIncident(ctx context.Context, id, tag string) (bool, error) {
	ctx, span := startSpan(ctx, "pgstore.CorroborateIncident", "UPDATE")
	defer span.End()

	ct, err := s.pool.Exec(ctx, `UPDATE incidents
		SET sources = array_append(sources, $2::text),
		    raw_data = jsonb_set(raw_data, '{corroborated}', 'true'::jsonb, true),
		    updated_at = now()
		WHERE id = $1 AND NOT ($2::text = ANY(sources))`,
		id, strings.TrimSpace(tag),
	)
	if err != nil {
		return false, fail(span, err)
	}
	if ct.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM incidents WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fail(span, err)
	}
	if !exists {
		return false, threat.ErrNotFound
	}
	return false, nil
}

// UpdateIncidentSector overwrites an incident's sector.
func (s *Store) UpdateIncidentSector(ctx context.Context, id string, sec sector.Sector) error {
	ctx, span := startSpan(ctx, "pgstore.UpdateIncidentSector", "UPDATE")
	defer span.End()

	ct, err := s.pool.Exec(ctx,
		`UPDATE incidents SET victim_sector = $2, updated_at = now() WHERE id = $1`,
		id, string(sec),
	)
	if err != nil {
		return fail(span, err)
	}
	if ct.RowsAffected() == 0 {
		return threat.ErrNotFound
	}
	return nil
}

// ListIncidents returns matching incidents ordered by ID.
func (s *Store) ListIncidents(ctx context.Context, f threat.IncidentFilter) ([]*threat.Incident, error) {
	ctx, span := startSpan(ctx, "pgstore.ListIncidents", "SELECT")
	defer span.End()

	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if f.ActorID != "" {
		add("actor_id = ?", f.ActorID)
	}
	if f.Sector != "" {
		add("lower(victim_sector) = lower(?)", f.Sector)
	}
	if !f.Since.IsZero() {
		add("discovered_date >= ?::date", f.Since)
	}
	if !f.Until.IsZero() {
		add("discovered_date <= ?::date", f.Until)
	}
	if f.After != "" {
		add("id > ?", f.After)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = threat.DefaultListLimit
	}

	query := `SELECT ` + incidentColumns + ` FROM incidents`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit)
	query += ` ORDER BY id LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fail(span, err)
	}
	defer rows.Close()

	var out []*threat.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fail(span, fmt.Errorf("scan incident: %w", err))
		}
		out = append(out, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, err)
	}
	return out, nil
}

// RecordRun implements threat.StatsSink.
func (s *Store) RecordRun(ctx context.Context, r *threat.RunStats) error {
	ctx, span := startSpan(ctx, "pgstore.RecordRun", "INSERT")
	defer span.End()

	_, err := s.pool.Exec(ctx, `INSERT INTO source_runs (
			id, source, status, records_processed, records_added, records_updated,
			skipped_duplicate, skipped_malformed, failed, actors_created, error, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING`,
		r.ID, r.Source, string(r.Status), r.Processed, r.Added, r.Updated,
		r.Duplicates, r.Malformed, r.Failed, r.ActorsCreated, r.Error, r.StartedAt, r.CompletedAt,
	)
	if err != nil {
		return fail(span, err)
	}
	return nil
}

// ListRuns returns recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, source string, limit int) ([]*threat.RunStats, error) {
	ctx, span := startSpan(ctx, "pgstore.ListRuns", "SELECT")
	defer span.End()

	if limit <= 0 {
		limit = threat.DefaultListLimit
	}
	rows, err := s.pool.Query(ctx, `SELECT id, source, status, records_processed, records_added, records_updated,
			skipped_duplicate, skipped_malformed, failed, actors_created, error, started_at, completed_at
		FROM source_runs
		WHERE $1::text = '' OR source = $1::text
		ORDER BY completed_at DESC
		LIMIT $2`, source, limit)
	if err != nil {
		return nil, fail(span, err)
	}
	defer rows.Close()

	var out []*threat.RunStats
	for rows.Next() {
		var (
			r      threat.RunStats
			status string
		)
		if err := rows.Scan(&r.ID, &r.Source, &status, &r.Processed, &r.Added, &r.Updated,
			&r.Duplicates, &r.Malformed, &r.Failed, &r.ActorsCreated, &r.Error, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, fail(span, fmt.Errorf("scan run: %w", err))
		}
		r.Status = threat.RunStatus(status)
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, err)
	}
	return out, nil
}
