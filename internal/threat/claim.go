package threat

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RawClaim is one source's unnormalized report of a single victim.
type RawClaim struct {
	GroupName     string
	VictimName    string
	DiscoveredRaw string
	Country       string
	Website       string
	Description   string
	APISector     string
	Activity      string
	SourceURL     string
}

// Claim is a RawClaim with names cleaned and the discovery date reduced to
// a UTC calendar day.
type Claim struct {
	GroupName   string
	VictimName  string
	Discovered  time.Time
	Country     string
	Website     string
	Description string
	APISector   string
	Activity    string
	SourceURL   string
	Raw         RawClaim
}

// RawData returns the stored provenance block for the claim.
func (c *Claim) RawData() RawData {
	return RawData{
		GroupName:   c.Raw.GroupName,
		VictimName:  c.Raw.VictimName,
		Discovered:  c.Raw.DiscoveredRaw,
		Country:     c.Raw.Country,
		Website:     c.Raw.Website,
		Description: c.Raw.Description,
		APISector:   c.Raw.APISector,
		Activity:    c.Raw.Activity,
	}
}

// dateLayouts are tried in order; the first that parses wins.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
}

// Normalize validates a raw claim and converts it into a Claim.
func Normalize(raw RawClaim) (Claim, error) {
	group := collapseSpace(raw.GroupName)
	if group == "" {
		return Claim{}, fmt.Errorf("%w: missing group name", ErrMalformedClaim)
	}
	victim := collapseSpace(raw.VictimName)
	if victim == "" {
		return Claim{}, fmt.Errorf("%w: missing victim name", ErrMalformedClaim)
	}
	day, err := ParseDay(raw.DiscoveredRaw)
	if err != nil {
		return Claim{}, err
	}
	return Claim{
		GroupName:   group,
		VictimName:  victim,
		Discovered:  day,
		Country:     strings.ToUpper(strings.TrimSpace(raw.Country)),
		Website:     strings.TrimSpace(raw.Website),
		Description: strings.TrimSpace(raw.Description),
		APISector:   strings.TrimSpace(raw.APISector),
		Activity:    strings.TrimSpace(raw.Activity),
		SourceURL:   strings.TrimSpace(raw.SourceURL),
		Raw:         raw,
	}, nil
}

// Unix-second dates outside [minUnixDate, maxUnixDate) are rejected so that
// compact dates like "20240301" and millisecond stamps are not misread.
var (
	minUnixDate = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
	maxUnixDate = time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
)

// ParseDay parses a source date string and truncates it to its UTC
// calendar day. Unix seconds are accepted as well.
func ParseDay(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: missing discovered date", ErrMalformedClaim)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), nil
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil && secs >= minUnixDate && secs < maxUnixDate {
		return Day(time.Unix(secs, 0)), nil
	}
	return time.Time{}, fmt.Errorf("%w: unparseable date %q", ErrMalformedClaim, raw)
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
