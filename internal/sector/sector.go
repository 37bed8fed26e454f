// Package sector maps sparse victim attributes onto a fixed set of
// normalized industry sectors.
//
// Classification is an ordered cascade where the first stage to produce a
// sector wins:
//
//  1. the feed-provided sector or activity, normalized through the alias table
//  2. TLD markers in the victim website
//  3. sector keywords in the victim name
//  4. sector keywords in the description
//  5. sector keywords in the raw website string
//
// When nothing matches the result is Other. All tables are ordered slices;
// their order encodes precedence.
package sector

import (
	"regexp"
	"strings"
)

// Sector is a normalized industry label.
type Sector string

const (
	Healthcare     Sector = "healthcare"
	Education      Sector = "education"
	Government     Sector = "government"
	Finance        Sector = "finance"
	Legal          Sector = "legal"
	Energy         Sector = "energy"
	Telecom        Sector = "telecommunications"
	Technology     Sector = "technology"
	Manufacturing  Sector = "manufacturing"
	Construction   Sector = "construction"
	RealEstate     Sector = "real_estate"
	Transportation Sector = "transportation"
	Retail         Sector = "retail"
	Hospitality    Sector = "hospitality"
	Media          Sector = "media"
	Agriculture    Sector = "agriculture"
	NonProfit      Sector = "non_profit"

	// Other is the default when no stage resolves.
	Other Sector = "Other"
	// Unknown is emitted by some feeds; treated like Other.
	Unknown Sector = "Unknown"
)

// All lists every specific (non-sentinel) sector in declaration order.
var All = []Sector{
	Healthcare, Education, Government, Finance, Legal, Energy, Telecom,
	Technology, Manufacturing, Construction, RealEstate, Transportation,
	Retail, Hospitality, Media, Agriculture, NonProfit,
}

// Stage identifies which cascade step produced a classification.
type Stage string

const (
	StageAPISector   Stage = "api_sector"
	StageActivity    Stage = "activity"
	StageTLD         Stage = "tld"
	StageName        Stage = "name_keyword"
	StageDescription Stage = "description_keyword"
	StageWebsite     Stage = "website_keyword"
	StageDefault     Stage = "default"
)

// Input holds the victim attributes a classification may use. Every field
// is optional.
type Input struct {
	VictimName  string
	Website     string
	Description string
	APISector   string
	Activity    string
}

// Result is a classification together with the stage that produced it.
type Result struct {
	Sector Sector
	Stage  Stage
	// Match is the alias, TLD marker or keyword that fired.
	Match string
}

// IsSentinel reports whether s carries no specific sector.
func IsSentinel(s Sector) bool {
	switch strings.ToLower(strings.TrimSpace(string(s))) {
	case "", "other", "unknown", "n/a", "none", "not found":
		return true
	}
	return false
}

// ShouldReplace reports whether a stored sector should be overwritten by a
// freshly computed one. Classification never regresses a specific sector to
// a sentinel.
func ShouldReplace(stored, computed Sector) bool {
	if IsSentinel(computed) {
		return false
	}
	return stored != computed
}

// Classify runs the cascade and returns the resulting sector.
func Classify(in Input) Sector {
	return Explain(in).Sector
}

// Explain runs the cascade and reports which stage matched.
func Explain(in Input) Result {
	if s, m, ok := normalizeAlias(in.APISector); ok {
		return Result{Sector: s, Stage: StageAPISector, Match: m}
	}
	if s, m, ok := normalizeAlias(in.Activity); ok {
		return Result{Sector: s, Stage: StageActivity, Match: m}
	}
	if s, m, ok := matchTLD(in.Website); ok {
		return Result{Sector: s, Stage: StageTLD, Match: m}
	}
	if s, m, ok := matchKeywords(in.VictimName); ok {
		return Result{Sector: s, Stage: StageName, Match: m}
	}
	if s, m, ok := matchKeywords(in.Description); ok {
		return Result{Sector: s, Stage: StageDescription, Match: m}
	}
	if s, m, ok := matchKeywords(in.Website); ok {
		return Result{Sector: s, Stage: StageWebsite, Match: m}
	}
	return Result{Sector: Other, Stage: StageDefault}
}

// normalizeAlias maps a free-form sector string onto a Sector: exact match
// first, then containment in either direction across the whole alias table.
func normalizeAlias(raw string) (Sector, string, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" || IsSentinel(Sector(v)) {
		return "", "", false
	}
	for _, a := range aliases {
		if a.key == v {
			return a.sector, a.key, true
		}
	}
	for _, a := range aliases {
		if strings.Contains(v, a.key) || strings.Contains(a.key, v) {
			return a.sector, a.key, true
		}
	}
	return "", "", false
}

// matchTLD scans a website for TLD markers. A marker only counts when it is
// followed by the end of the host, a dot, a slash, or a port separator, so
// ".edu" does not fire inside ".education".
func matchTLD(website string) (Sector, string, bool) {
	w := strings.ToLower(strings.TrimSpace(website))
	if w == "" {
		return "", "", false
	}
	for _, t := range tlds {
		if !containsMarker(w, t.marker) {
			continue
		}
		if t.sector == "" {
			return "", "", false
		}
		return t.sector, t.marker, true
	}
	return "", "", false
}

func containsMarker(s, marker string) bool {
	for from := 0; from < len(s); {
		i := strings.Index(s[from:], marker)
		if i < 0 {
			return false
		}
		end := from + i + len(marker)
		if end == len(s) {
			return true
		}
		switch s[end] {
		case '.', '/', ':', '?', '#':
			return true
		}
		from = from + i + 1
	}
	return false
}

// matchKeywords checks text against each sector's keywords in declaration
// order. Keywords of three characters or fewer must match a whole word.
func matchKeywords(text string) (Sector, string, bool) {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return "", "", false
	}
	for _, sk := range compiledKeywords {
		for _, kw := range sk.keywords {
			if kw.re != nil {
				if kw.re.MatchString(t) {
					return sk.sector, kw.word, true
				}
				continue
			}
			if strings.Contains(t, kw.word) {
				return sk.sector, kw.word, true
			}
		}
	}
	return "", "", false
}

type keyword struct {
	word string
	re   *regexp.Regexp
}

type compiledSector struct {
	sector   Sector
	keywords []keyword
}

const shortKeywordLen = 3

var compiledKeywords = compileKeywords(keywords)

func compileKeywords(table []sectorKeywords) []compiledSector {
	out := make([]compiledSector, 0, len(table))
	for _, sk := range table {
		cs := compiledSector{sector: sk.sector, keywords: make([]keyword, 0, len(sk.words))}
		for _, w := range sk.words {
			w = strings.ToLower(w)
			kw := keyword{word: w}
			if len(w) <= shortKeywordLen {
				kw.re = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`)
			}
			cs.keywords = append(cs.keywords, kw)
		}
		out = append(out, cs)
	}
	return out
}
