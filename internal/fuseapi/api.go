// Package fuseapi serves the fused actor and incident data over HTTP, plus
// operator endpoints that trigger runs and reclassification.
package fuseapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"github.com/linnemanlabs/ransomfuse/internal/authmw"
	"github.com/linnemanlabs/ransomfuse/internal/threat"
)

// Store is the read side of threat.Store the API needs.
type Store interface {
	ListActors(ctx context.Context) ([]*threat.Actor, error)
	GetActor(ctx context.Context, id string) (*threat.Actor, bool, error)
	GetIncident(ctx context.Context, id string) (*threat.Incident, bool, error)
	ListIncidents(ctx context.Context, f threat.IncidentFilter) ([]*threat.Incident, error)
}

// RunTrigger starts an adapter run by source name and waits for it.
type RunTrigger interface {
	Trigger(ctx context.Context, source string) (*threat.RunStats, error)
}

// Reclassifier reruns sector classification over stored incidents.
type Reclassifier interface {
	Run(ctx context.Context) (*threat.ReclassifyStats, error)
}

// Deps are the API's collaborators. Only Store is required; missing
// optional collaborators make their endpoints answer 503.
type Deps struct {
	Store        Store
	Runs         threat.RunLister
	Trigger      RunTrigger
	Reclassifier Reclassifier
	// Tokens guard the operator endpoints. With no tokens the operator
	// endpoints are not mounted.
	Tokens []string
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	deps   Deps
}

// New creates a new API handler.
func New(logger log.Logger, deps Deps) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if deps.Store == nil {
		panic(xerrors.New("threat store is required"))
	}
	return &API{
		logger: logger,
		deps:   deps,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/actors", a.handleListActors)
		r.Get("/actors/{id}", a.handleGetActor)
		r.Get("/incidents", a.handleListIncidents)
		r.Get("/incidents/{id}", a.handleGetIncident)
		r.Get("/runs", a.handleListRuns)
		r.Get("/classify", a.handleClassify)

		if len(a.deps.Tokens) > 0 {
			r.Group(func(r chi.Router) {
				r.Use(authmw.BearerToken(a.deps.Tokens...))
				r.Post("/runs/{source}", a.handleTriggerRun)
				r.Post("/reclassify", a.handleReclassify)
			})
		}
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// nothing to do with errors here
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (a *API) internalError(w http.ResponseWriter, r *http.Request, err error, msg string, kv ...any) {
	a.logger.Error(r.Context(), err, msg, kv...)
	writeError(w, http.StatusInternalServerError, "internal error")
}
