package feeds

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
)

// record is one decoded feed entry.
type record map[string]any

// first returns the first non-empty value among keys, stringified.
func (r record) first(keys ...string) string {
	for _, k := range keys {
		if s := stringify(r[k]); s != "" {
			return s
		}
	}
	return ""
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case []any:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			if s := stringify(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

// clearnetWebsite drops onion and otherwise unusable links so they never
// reach TLD classification.
func clearnetWebsite(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	host, _, _ := strings.Cut(raw, "/")
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		host = u.Hostname()
	}
	if strings.HasSuffix(strings.ToLower(strings.TrimSuffix(host, ".")), ".onion") {
		return ""
	}
	return raw
}

func hostOf(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		return u.Host
	}
	return "unknown"
}
