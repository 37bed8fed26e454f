package fuseapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/ransomfuse/internal/scheduler"
	"github.com/linnemanlabs/ransomfuse/internal/threat"
)

func (a *API) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if a.deps.Runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run history not configured")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > MaxListLimit {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	source := r.URL.Query().Get("source")

	runs, err := a.deps.Runs.ListRuns(r.Context(), source, limit)
	if err != nil {
		a.internalError(w, r, err, "failed to list runs", "source", source)
		return
	}
	if runs == nil {
		runs = []*threat.RunStats{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

func (a *API) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	if a.deps.Trigger == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not configured")
		return
	}
	source := chi.URLParam(r, "source")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("ransomfuse.source", source))

	// the run outlives a dropped client connection
	stats, err := a.deps.Trigger.Trigger(context.WithoutCancel(r.Context()), source)
	switch {
	case errors.Is(err, scheduler.ErrUnknownSource):
		writeError(w, http.StatusNotFound, "unknown source")
		return
	case errors.Is(err, scheduler.ErrRunInProgress):
		writeError(w, http.StatusConflict, "run already in progress")
		return
	case err != nil && stats == nil:
		a.internalError(w, r, err, "manual run failed", "source", source)
		return
	}

	span.SetAttributes(attribute.String("ransomfuse.run.status", string(stats.Status)))
	a.logger.Info(r.Context(), "manual run finished", "source", source, "run_id", stats.ID, "status", stats.Status)

	status := http.StatusOK
	if stats.Status == threat.RunFailed {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, stats)
}

func (a *API) handleReclassify(w http.ResponseWriter, r *http.Request) {
	if a.deps.Reclassifier == nil {
		writeError(w, http.StatusServiceUnavailable, "reclassifier not configured")
		return
	}

	stats, err := a.deps.Reclassifier.Run(context.WithoutCancel(r.Context()))
	if err != nil {
		a.internalError(w, r, err, "reclassification failed")
		return
	}
	a.logger.Info(r.Context(), "reclassification finished",
		"scanned", stats.Scanned, "changed", stats.Changed, "failed", stats.Failed)
	writeJSON(w, http.StatusOK, stats)
}
