package fuseapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/ransomfuse/internal/threat"
)

func (a *API) handleListActors(w http.ResponseWriter, r *http.Request) {
	actors, err := a.deps.Store.ListActors(r.Context())
	if err != nil {
		a.internalError(w, r, err, "failed to list actors")
		return
	}
	if actors == nil {
		actors = []*threat.Actor{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"actors": actors, "count": len(actors)})
}

func (a *API) handleGetActor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("ransomfuse.actor.id", id))

	actor, ok, err := a.deps.Store.GetActor(r.Context(), id)
	if err != nil {
		a.internalError(w, r, err, "failed to get actor", "id", id)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	span.SetAttributes(attribute.String("ransomfuse.actor.name", actor.Name))
	writeJSON(w, http.StatusOK, actor)
}
