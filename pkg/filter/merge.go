package filter

import (
	"sort"
	"strings"
)

// Merge folds filters into their compact multi-value encodings. Positive
// filters are grouped by key in order of first appearance, each group
// becoming "key:v1|v2" with values in their existing order. Every negated
// filter contributes its own "key:!value" entry after the positive groups;
// negated filters are never combined.
func Merge(filters []Filter) []string {
	if len(filters) == 0 {
		return nil
	}

	var keys []string
	values := make(map[string][]string)
	seen := make(map[string]bool)
	for _, f := range filters {
		if f.IsNegated || seen[f.AsStr] {
			continue
		}
		seen[f.AsStr] = true
		if _, ok := values[f.Key]; !ok {
			keys = append(keys, f.Key)
		}
		values[f.Key] = append(values[f.Key], f.APIValue())
	}

	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, key+":"+strings.Join(values[key], "|"))
	}

	for _, f := range filters {
		if !f.IsNegated || seen[f.AsStr] {
			continue
		}
		seen[f.AsStr] = true
		out = append(out, f.Key+":!"+f.APIValue())
	}
	return out
}

// MergeString joins Merge output with commas.
func MergeString(filters []Filter) string {
	return strings.Join(Merge(filters), ",")
}

// Union appends the filters from add whose identity is not yet in base.
func Union(base, add []Filter) []Filter {
	out := make([]Filter, 0, len(base)+len(add))
	seen := make(map[string]bool, len(base)+len(add))
	for _, list := range [][]Filter{base, add} {
		for _, f := range list {
			if seen[f.AsStr] {
				continue
			}
			seen[f.AsStr] = true
			out = append(out, f)
		}
	}
	return out
}

// Subtract returns base without the filters whose identity appears in remove.
func Subtract(base, remove []Filter) []Filter {
	drop := make(map[string]bool, len(remove))
	for _, f := range remove {
		drop[f.AsStr] = true
	}
	out := make([]Filter, 0, len(base))
	for _, f := range base {
		if !drop[f.AsStr] {
			out = append(out, f)
		}
	}
	return out
}

// Sorted returns a sorted copy: by value descending when byValue is set,
// otherwise by count descending.
func Sorted(filters []Filter, byValue bool) []Filter {
	out := make([]Filter, len(filters))
	copy(out, filters)
	if byValue {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	} else {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	}
	return out
}
