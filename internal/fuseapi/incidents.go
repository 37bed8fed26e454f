package fuseapi

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/ransomfuse/internal/threat"
)

// MaxListLimit bounds the limit query parameter.
const MaxListLimit = 1000

func (a *API) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	f, err := parseIncidentFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	incidents, err := a.deps.Store.ListIncidents(r.Context(), f)
	if err != nil {
		a.internalError(w, r, err, "failed to list incidents")
		return
	}
	if incidents == nil {
		incidents = []*threat.Incident{}
	}

	resp := map[string]any{"incidents": incidents, "count": len(incidents)}
	if len(incidents) > 0 && len(incidents) == f.Limit {
		resp["next"] = incidents[len(incidents)-1].ID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("ransomfuse.incident.id", id))

	inc, ok, err := a.deps.Store.GetIncident(r.Context(), id)
	if err != nil {
		a.internalError(w, r, err, "failed to get incident", "id", id)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

func parseIncidentFilter(q url.Values) (threat.IncidentFilter, error) {
	f := threat.IncidentFilter{
		ActorID: q.Get("actor_id"),
		Sector:  q.Get("sector"),
		After:   q.Get("after"),
		Limit:   threat.DefaultListLimit,
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > MaxListLimit {
			return f, fmt.Errorf("limit must be between 1 and %d", MaxListLimit)
		}
		f.Limit = n
	}

	var err error
	if f.Since, err = parseTimeParam(q.Get("since")); err != nil {
		return f, fmt.Errorf("since: %w", err)
	}
	if f.Until, err = parseTimeParam(q.Get("until")); err != nil {
		return f, fmt.Errorf("until: %w", err)
	}
	if !f.Since.IsZero() && !f.Until.IsZero() && f.Until.Before(f.Since) {
		return f, fmt.Errorf("until is before since")
	}
	return f, nil
}

// parseTimeParam accepts RFC 3339 timestamps or bare dates.
func parseTimeParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("want RFC 3339 or YYYY-MM-DD, got %q", v)
	}
	return t, nil
}
