package feeds

import (
	"errors"
	"fmt"

	"github.com/linnemanlabs/go-core/log"
)

// ErrUnknownFeed is returned by New for a feed name with no adapter.
var ErrUnknownFeed = errors.New("feeds: unknown feed")

// Known lists the built-in feed names.
var Known = []string{SourceRansomwatch, SourceRansomlook, SourceRansomwareLive}

// Provenance tags. These are stored on every incident an adapter touches.
const (
	SourceRansomwatch    = "ransomwatch"
	SourceRansomlook     = "ransomlook"
	SourceRansomwareLive = "ransomwarelive"
)

// Default upstream endpoints.
const (
	DefaultRansomwatchURL    = "https://raw.githubusercontent.com/joshhighet/ransomwatch/main/posts.json"
	DefaultRansomlookURL     = "https://www.ransomlook.io/api/recent"
	DefaultRansomwareLiveURL = "https://api.ransomware.live/v2/recentvictims"
)

var ransomwatchFields = fieldMap{
	group:      []string{"group_name", "group"},
	victim:     []string{"post_title", "victim", "name"},
	discovered: []string{"discovered", "published"},
	sourceURL:  []string{"post_url"},
}

var ransomlookFields = fieldMap{
	group:       []string{"group_name", "group"},
	victim:      []string{"post_title", "victim", "name"},
	discovered:  []string{"discovered", "date"},
	description: []string{"description"},
	website:     []string{"link"},
}

var ransomwareLiveFields = fieldMap{
	group:       []string{"group", "group_name"},
	victim:      []string{"victim", "post_title", "name"},
	discovered:  []string{"discovered", "attackdate", "published"},
	country:     []string{"country"},
	website:     []string{"website", "domain"},
	description: []string{"description", "summary"},
	apiSector:   []string{"sector"},
	activity:    []string{"activity"},
	sourceURL:   []string{"url", "post_url"},
}

// NewRansomwatch returns the ransomwatch posts.json adapter.
func NewRansomwatch(url string, f *Fetcher, logger log.Logger) Adapter {
	if url == "" {
		url = DefaultRansomwatchURL
	}
	return newJSONAdapter(SourceRansomwatch, url, ransomwatchFields, f, logger)
}

// NewRansomlook returns the ransomlook recent-posts adapter. Post links
// usually point at onion leak sites and are discarded.
func NewRansomlook(url string, f *Fetcher, logger log.Logger) Adapter {
	if url == "" {
		url = DefaultRansomlookURL
	}
	return newJSONAdapter(SourceRansomlook, url, ransomlookFields, f, logger)
}

// NewRansomwareLive returns the ransomware.live recent-victims adapter,
// the only feed that reports sector, country and victim website.
func NewRansomwareLive(url string, f *Fetcher, logger log.Logger) Adapter {
	if url == "" {
		url = DefaultRansomwareLiveURL
	}
	return newJSONAdapter(SourceRansomwareLive, url, ransomwareLiveFields, f, logger)
}

// New builds the built-in adapter called name. An empty url selects the
// feed's default endpoint.
func New(name, url string, f *Fetcher, logger log.Logger) (Adapter, error) {
	switch name {
	case SourceRansomwatch:
		return NewRansomwatch(url, f, logger), nil
	case SourceRansomlook:
		return NewRansomlook(url, f, logger), nil
	case SourceRansomwareLive:
		return NewRansomwareLive(url, f, logger), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFeed, name)
}
