package search

import (
	"maps"
	"slices"

	"github.com/rubiojr/serp/pkg/filter"
)

// State is a snapshot of an orchestrator's search state.
type State struct {
	EntityType     string           `json:"entity_type"`
	InputFilters   []filter.Filter  `json:"input_filters"`
	ResultsFilters []filter.Filter  `json:"results_filters"`
	TextSearch     string           `json:"text_search"`
	Page           int              `json:"page"`
	Sort           string           `json:"sort"`
	Results        []map[string]any `json:"results"`
	ResponseTime   int              `json:"response_time"`
	ResultsCount   int              `json:"results_count"`
	IsLoading      bool             `json:"is_loading"`
	Generation     uint64           `json:"generation"`
	Zoom           Zoom             `json:"zoom"`
}

// Zoom is the entity detail overlay, independent of the result list.
type Zoom struct {
	Open       bool           `json:"open"`
	EntityType string         `json:"entity_type,omitempty"`
	ID         string         `json:"id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

func defaultState() State {
	return State{
		InputFilters:   []filter.Filter{},
		ResultsFilters: []filter.Filter{},
		Results:        []map[string]any{},
		Page:           1,
		Sort:           DefaultSort,
	}
}

func (s State) clone() State {
	out := s
	out.InputFilters = slices.Clone(s.InputFilters)
	out.ResultsFilters = slices.Clone(s.ResultsFilters)
	out.Results = slices.Clone(s.Results)
	out.Zoom.Data = maps.Clone(s.Zoom.Data)
	return out
}
