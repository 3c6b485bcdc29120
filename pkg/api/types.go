package api

import (
	"time"

	"github.com/rubiojr/serp/pkg/facet"
	"github.com/rubiojr/serp/pkg/filter"
	"github.com/rubiojr/serp/pkg/search"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Sessions  int       `json:"sessions"`
	Listeners int       `json:"listeners"`
}

type FacetInfo struct {
	Key         string `json:"key"`
	DisplayName string `json:"display_name"`
	Type        string `json:"type,omitempty"`
	IsEntity    bool   `json:"is_entity"`
}

type FacetsResponse struct {
	EntityType string      `json:"entity_type"`
	Facets     []FacetInfo `json:"facets"`
	Count      int         `json:"count"`
}

type PIDResponse struct {
	Identifier string        `json:"identifier"`
	EntityType string        `json:"entity_type"`
	Filter     filter.Filter `json:"filter"`
}

// SearchResponse is the session state after an operation plus the views
// derived from it.
type SearchResponse struct {
	State        search.State        `json:"state"`
	Filter       string              `json:"filter"`
	Location     string              `json:"location"`
	SortOptions  []search.SortConfig `json:"sort_options"`
	SearchFacets []FacetInfo         `json:"search_facets"`
	APIURL       string              `json:"api_url,omitempty"`
}

type FiltersRequest struct {
	Add    []string `json:"add"`
	Remove []string `json:"remove"`
}

type SortRequest struct {
	Sort string `json:"sort"`
}

// PageRequest accepts the page as a number or a string.
type PageRequest struct {
	Page any `json:"page"`
}

type TextRequest struct {
	EntityType string `json:"entity_type"`
	Text       string `json:"text"`
}

type ZoomRequest struct {
	ID string `json:"id"`
}

func facetInfos(configs []*facet.Config) []FacetInfo {
	out := make([]FacetInfo, 0, len(configs))
	for _, c := range configs {
		out = append(out, FacetInfo{
			Key:         c.Key,
			DisplayName: c.DisplayName,
			Type:        c.Type,
			IsEntity:    c.IsEntity,
		})
	}
	return out
}
