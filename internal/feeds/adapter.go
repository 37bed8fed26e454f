package feeds

import (
	"context"
	"fmt"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/ransomfuse/internal/threat"
)

// fieldMap lists, per canonical claim field, the feed keys to try in order.
type fieldMap struct {
	group       []string
	victim      []string
	discovered  []string
	country     []string
	website     []string
	description []string
	apiSector   []string
	activity    []string
	sourceURL   []string
}

func (m *fieldMap) claim(r record) threat.RawClaim {
	return threat.RawClaim{
		GroupName:     r.first(m.group...),
		VictimName:    r.first(m.victim...),
		DiscoveredRaw: r.first(m.discovered...),
		Country:       r.first(m.country...),
		Website:       clearnetWebsite(r.first(m.website...)),
		Description:   r.first(m.description...),
		APISector:     r.first(m.apiSector...),
		Activity:      r.first(m.activity...),
		SourceURL:     r.first(m.sourceURL...),
	}
}

// jsonAdapter fetches one JSON document and maps each entry through a
// fieldMap.
type jsonAdapter struct {
	name    string
	url     string
	fields  fieldMap
	fetcher *Fetcher
	logger  log.Logger
}

func (a *jsonAdapter) Name() string { return a.name }
func (a *jsonAdapter) URL() string  { return a.url }

// Fetch implements threat.Adapter. Entries that are not JSON objects are
// skipped; field validation is left to normalization.
func (a *jsonAdapter) Fetch(ctx context.Context) ([]threat.RawClaim, error) {
	var doc any
	if err := a.fetcher.GetJSON(ctx, a.url, &doc); err != nil {
		return nil, err
	}
	entries, err := entriesOf(doc)
	if err != nil {
		return nil, &FetchError{URL: a.url, Err: err}
	}

	claims := make([]threat.RawClaim, 0, len(entries))
	skipped := 0
	for _, e := range entries {
		obj, ok := e.(map[string]any)
		if !ok {
			skipped++
			continue
		}
		claims = append(claims, a.fields.claim(record(obj)))
	}
	if skipped > 0 {
		a.logger.Warn(ctx, "skipped non-object feed entries", "source", a.name, "skipped", skipped)
	}
	return claims, nil
}

// envelopeKeys are tried when a feed wraps its array in an object.
var envelopeKeys = []string{"data", "victims", "posts", "results", "items"}

func entriesOf(doc any) ([]any, error) {
	switch d := doc.(type) {
	case []any:
		return d, nil
	case map[string]any:
		for _, k := range envelopeKeys {
			if arr, ok := d[k].([]any); ok {
				return arr, nil
			}
		}
		return nil, fmt.Errorf("json object has none of %v", envelopeKeys)
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("unexpected json document %T", doc)
}

func newJSONAdapter(name, url string, fields fieldMap, f *Fetcher, logger log.Logger) *jsonAdapter {
	if logger == nil {
		logger = log.Nop()
	}
	return &jsonAdapter{name: name, url: url, fields: fields, fetcher: f, logger: logger}
}
