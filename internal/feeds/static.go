package feeds

import (
	"context"
	"slices"

	"github.com/linnemanlabs/ransomfuse/internal/threat"
)

// Adapter is a feed that can be run through the pipeline.
type Adapter interface {
	threat.Adapter
	// URL is the upstream endpoint, reported in listings and logs.
	URL() string
}

// staticAdapter serves a fixed claim list; used by fusectl replay and tests.
type staticAdapter struct {
	name   string
	claims []threat.RawClaim
}

// Static returns an adapter that always yields claims under name.
func Static(name string, claims []threat.RawClaim) Adapter {
	return &staticAdapter{name: name, claims: claims}
}

func (s *staticAdapter) Name() string { return s.name }
func (s *staticAdapter) URL() string  { return "static://" + s.name }
func (s *staticAdapter) Fetch(context.Context) ([]threat.RawClaim, error) {
	return slices.Clone(s.claims), nil
}
