package threat

import (
	"context"
	"fmt"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/ransomfuse/internal/sector"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ReclassifyStats summarizes a reclassification pass.
type ReclassifyStats struct {
	Scanned   int `json:"scanned" yaml:"scanned"`
	Changed   int `json:"changed" yaml:"changed"`
	Unchanged int `json:"unchanged" yaml:"unchanged"`
	Failed    int `json:"failed" yaml:"failed"`
}

// Reclassifier reruns the sector cascade over stored incidents. A stored
// sector is only replaced by a different, specific sector.
type Reclassifier struct {
	store    Store
	hooks    Hooks
	logger   log.Logger
	pageSize int
}

// NewReclassifier creates a reclassifier over store.
func NewReclassifier(store Store, logger log.Logger, hooks Hooks) *Reclassifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Reclassifier{store: store, hooks: hooks, logger: logger, pageSize: 500}
}

// Run pages through every incident. Update failures are counted and the
// pass continues; a failed page read aborts it.
func (r *Reclassifier) Run(ctx context.Context) (*ReclassifyStats, error) {
	ctx, span := tracer.Start(ctx, "pipeline.reclassify")
	defer span.End()

	stats := &ReclassifyStats{}
	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		page, err := r.store.ListIncidents(ctx, IncidentFilter{After: after, Limit: r.pageSize})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "list incidents")
			return stats, fmt.Errorf("list incidents after %q: %w", after, err)
		}
		for _, inc := range page {
			r.reclassify(ctx, inc, stats)
		}
		if len(page) < r.pageSize {
			break
		}
		after = page[len(page)-1].ID
	}

	span.SetAttributes(
		attribute.Int("ransomfuse.scanned", stats.Scanned),
		attribute.Int("ransomfuse.changed", stats.Changed),
	)
	r.logger.Info(ctx, "reclassification complete",
		"scanned", stats.Scanned,
		"changed", stats.Changed,
		"unchanged", stats.Unchanged,
		"failed", stats.Failed,
	)
	return stats, nil
}

func (r *Reclassifier) reclassify(ctx context.Context, inc *Incident, stats *ReclassifyStats) {
	stats.Scanned++
	computed := sector.Classify(inc.SectorInput())
	if !sector.ShouldReplace(inc.Sector, computed) {
		stats.Unchanged++
		r.fire(false)
		return
	}
	if err := r.store.UpdateIncidentSector(ctx, inc.ID, computed); err != nil {
		stats.Failed++
		r.logger.Error(ctx, err, "sector update failed", "incident_id", inc.ID)
		trace.SpanFromContext(ctx).RecordError(err)
		return
	}
	stats.Changed++
	r.fire(true)
	r.logger.Info(ctx, "sector updated", "incident_id", inc.ID, "from", inc.Sector, "to", computed)
}

func (r *Reclassifier) fire(changed bool) {
	if r.hooks.OnReclassify != nil {
		r.hooks.OnReclassify(changed)
	}
}
