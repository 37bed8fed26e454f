package threat

import "strings"

// SourceSet is an ordered set of provenance tags. Membership is exact, so
// a tag is never considered present because it is a substring of another.
type SourceSet []string

// NewSourceSet builds a set from tags, dropping blanks and repeats while
// keeping first-seen order.
func NewSourceSet(tags ...string) SourceSet {
	var s SourceSet
	for _, t := range tags {
		s.Add(t)
	}
	return s
}

// ParseSourceSet reads the comma-joined storage form.
func ParseSourceSet(joined string) SourceSet {
	return NewSourceSet(strings.Split(joined, ",")...)
}

// Has reports whether tag is in the set.
func (s SourceSet) Has(tag string) bool {
	tag = strings.TrimSpace(tag)
	for _, t := range s {
		if t == tag {
			return true
		}
	}
	return false
}

// Add appends tag if absent and reports whether the set changed.
func (s *SourceSet) Add(tag string) bool {
	tag = strings.TrimSpace(tag)
	if tag == "" || s.Has(tag) {
		return false
	}
	*s = append(*s, tag)
	return true
}

// Clone returns an independent copy.
func (s SourceSet) Clone() SourceSet {
	if s == nil {
		return nil
	}
	out := make(SourceSet, len(s))
	copy(out, s)
	return out
}

// String renders the comma-joined storage form.
func (s SourceSet) String() string {
	return strings.Join(s, ",")
}
