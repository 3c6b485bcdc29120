package filter

import "github.com/rubiojr/serp/pkg/facet"

// Facet is one facet group of a filters API response.
type Facet struct {
	Key       string       `json:"key"`
	IsNegated bool         `json:"is_negated"`
	Values    []FacetValue `json:"values"`
}

// FacetValue is one value of a facet group with its result count.
type FacetValue struct {
	Value       any    `json:"value"`
	DisplayName string `json:"display_name"`
	Count       int    `json:"count"`
}

// FromAPI turns a filters API response into display filters. The free-text
// "search" facet is skipped. totalCount is the result count the percentages
// are relative to.
func FromAPI(reg *facet.Registry, entityType string, facets []Facet, totalCount int) []Filter {
	var out []Filter
	for _, fc := range facets {
		if fc.Key == "search" {
			continue
		}
		for _, v := range fc.Values {
			out = append(out, NewDisplay(
				reg,
				entityType,
				fc.Key,
				ValueString(v.Value),
				fc.IsNegated,
				v.DisplayName,
				v.Count,
				totalCount,
			))
		}
	}
	return out
}
