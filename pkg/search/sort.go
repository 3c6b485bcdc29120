package search

import "strings"

// Sort keys understood by the search API.
const (
	SortCitations = "cited_by_count"
	SortWorks     = "works_count"
	SortDate      = "publication_date"
	SortRelevance = "relevance_score"

	// DefaultSort is stored whenever a sort key is not recognized.
	DefaultSort = SortRelevance
)

type SortConfig struct {
	Key         string `json:"key"`
	DisplayName string `json:"display_name"`
}

var sortConfigs = []SortConfig{
	{Key: SortCitations, DisplayName: "Citations"},
	{Key: SortWorks, DisplayName: "Works"},
	{Key: SortDate, DisplayName: "Date"},
	{Key: SortRelevance, DisplayName: "Relevance"},
}

// SortConfigs returns the recognized sort options in display order.
func SortConfigs() []SortConfig {
	out := make([]SortConfig, len(sortConfigs))
	copy(out, sortConfigs)
	return out
}

// LookupSort returns the sort option for key.
func LookupSort(key string) (SortConfig, bool) {
	for _, c := range sortConfigs {
		if c.Key == key {
			return c, true
		}
	}
	return SortConfig{}, false
}

// NormalizeSort extracts the key from a "<key>:<direction>" sort parameter and
// returns it when recognized, DefaultSort otherwise. The direction is not
// consulted.
func NormalizeSort(s string) string {
	key, _, _ := strings.Cut(strings.TrimSpace(s), ":")
	if _, ok := LookupSort(key); ok {
		return key
	}
	return DefaultSort
}
