package filter

import (
	"sort"
	"strings"

	"github.com/rubiojr/serp/pkg/facet"
)

// Decode parses a URL filter string into filters. OR-lists expand into one
// filter per value. Decode never fails: empty input, input without a colon
// and unusable fragments (no colon, empty key, empty value) decode to
// nothing. The key is split off at the first colon, so values may contain
// colons. There is no escaping for ',' '|' or a leading '!' inside values.
func Decode(reg *facet.Registry, entityType, s string) []Filter {
	filters := []Filter{}
	if s == "" || !strings.Contains(s, ":") {
		return filters
	}

	for _, fragment := range strings.Split(s, ",") {
		key, raw, ok := strings.Cut(fragment, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" || raw == "" {
			continue
		}

		if strings.HasPrefix(raw, "!") {
			value := raw[1:]
			if value == "" {
				continue
			}
			filters = append(filters, New(reg, entityType, key, value, true))
			continue
		}

		for _, value := range strings.Split(raw, "|") {
			if value == "" {
				continue
			}
			filters = append(filters, New(reg, entityType, key, value, false))
		}
	}
	return filters
}

// Encode returns the deduplicated, sorted canonical encodings joined by
// commas. It works on flat single-valued filters; use MergeString for the
// OR-grouped form.
func Encode(filters []Filter) string {
	seen := make(map[string]bool, len(filters))
	ids := make([]string, 0, len(filters))
	for _, f := range filters {
		if seen[f.AsStr] {
			continue
		}
		seen[f.AsStr] = true
		ids = append(ids, f.AsStr)
	}
	sort.Strings(ids)
	return strings.Join(ids, ",")
}

// TextSearchFromURL extracts the free-text query from a URL filter string.
func TextSearchFromURL(s string) string {
	for _, fragment := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(fragment, ":")
		if ok && strings.EqualFold(strings.TrimSpace(key), TextSearchKey) {
			return CleanText(value)
		}
	}
	return ""
}

var textDelimiters = strings.NewReplacer(",", " ", "|", " ")

// CleanText makes free text safe to carry as a filter value. The list
// delimiters become spaces, a leading negation mark is dropped and runs of
// whitespace collapse to one space.
func CleanText(text string) string {
	text = strings.Join(strings.Fields(textDelimiters.Replace(text)), " ")
	return strings.TrimSpace(strings.TrimLeft(text, "!"))
}

// WithoutTextSearch drops free-text search filters.
func WithoutTextSearch(filters []Filter) []Filter {
	out := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if f.Key == TextSearchKey {
			continue
		}
		out = append(out, f)
	}
	return out
}
