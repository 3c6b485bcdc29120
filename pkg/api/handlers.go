package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rubiojr/serp/pkg/filter"
	"github.com/rubiojr/serp/pkg/search"
	"github.com/rubiojr/serp/pkg/version"
)

const maxBodyBytes = 1 << 20

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   version.APIVersion(),
		Sessions:  s.sessionCount(),
		Listeners: s.hub.Size(),
	})
}

func (s *Server) HandleFacets(w http.ResponseWriter, r *http.Request) {
	entityType := r.PathValue("entityType")
	configs := s.Registry().ForEntityType(entityType)
	if len(configs) == 0 {
		s.writeError(w, http.StatusNotFound, "Unknown entity type", fmt.Sprintf("No facets for entity type '%s'", entityType))
		return
	}

	facets := facetInfos(configs)
	s.writeJSON(w, http.StatusOK, FacetsResponse{
		EntityType: entityType,
		Facets:     facets,
		Count:      len(facets),
	})
}

func (s *Server) HandlePID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "Missing id parameter", "Query parameter 'id' is required")
		return
	}

	f, ok := filter.FromIdentifier(s.Registry(), id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "No match", fmt.Sprintf("'%s' does not match any known identifier", id))
		return
	}
	s.writeJSON(w, http.StatusOK, PIDResponse{
		Identifier: id,
		EntityType: f.Config.EntityType,
		Filter:     f,
	})
}

func (s *Server) HandleState(w http.ResponseWriter, r *http.Request) {
	_, o := s.session(w, r)
	s.writeSearch(w, o, nil)
}

// HandleBoot loads the search described by the request's query parameters.
func (s *Server) HandleBoot(w http.ResponseWriter, r *http.Request) {
	_, o := s.session(w, r)
	loc := search.Location{EntityType: r.PathValue("entityType"), Query: r.URL.Query()}
	s.writeSearch(w, o, o.Boot(r.Context(), loc))
}

func (s *Server) HandleFilters(w http.ResponseWriter, r *http.Request) {
	var req FiltersRequest
	if !s.decode(w, r, &req) {
		return
	}
	_, o := s.session(w, r)
	entityType := o.State().EntityType
	reg := o.Registry()

	if len(req.Add) == 0 && len(req.Remove) == 0 {
		s.writeSearch(w, o, nil)
		return
	}
	add := filter.Decode(reg, entityType, strings.Join(req.Add, ","))
	remove := filter.Decode(reg, entityType, strings.Join(req.Remove, ","))
	s.writeSearch(w, o, o.UpdateFilters(r.Context(), add, remove))
}

func (s *Server) HandleSort(w http.ResponseWriter, r *http.Request) {
	var req SortRequest
	if !s.decode(w, r, &req) {
		return
	}
	_, o := s.session(w, r)
	s.writeSearch(w, o, o.SetSort(r.Context(), req.Sort))
}

func (s *Server) HandlePage(w http.ResponseWriter, r *http.Request) {
	var req PageRequest
	if !s.decode(w, r, &req) {
		return
	}
	_, o := s.session(w, r)
	s.writeSearch(w, o, o.SetPage(r.Context(), filter.ValueString(req.Page)))
}

func (s *Server) HandleText(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if !s.decode(w, r, &req) {
		return
	}
	_, o := s.session(w, r)
	entityType := req.EntityType
	if entityType == "" {
		entityType = o.State().EntityType
	}
	s.writeSearch(w, o, o.DoTextSearch(r.Context(), entityType, req.Text))
}

func (s *Server) HandleReset(w http.ResponseWriter, r *http.Request) {
	_, o := s.session(w, r)
	o.Reset()
	s.writeSearch(w, o, nil)
}

func (s *Server) HandleZoom(w http.ResponseWriter, r *http.Request) {
	var req ZoomRequest
	if !s.decode(w, r, &req) {
		return
	}
	_, o := s.session(w, r)
	s.writeSearch(w, o, o.SetEntityZoom(r.Context(), req.ID))
}

func (s *Server) HandleCloseZoom(w http.ResponseWriter, r *http.Request) {
	_, o := s.session(w, r)
	s.writeSearch(w, o, o.CloseEntityZoom(r.Context()))
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return false
	}
	return true
}

// writeSearch answers with the session state, or with an error status when
// the operation failed. Failed searches keep the previous results.
func (s *Server) writeSearch(w http.ResponseWriter, o *search.Orchestrator, err error) {
	switch {
	case err == nil:
	case errors.Is(err, search.ErrNoEntityType), errors.Is(err, search.ErrUnknownEntityID):
		s.writeError(w, http.StatusBadRequest, "Invalid search", err.Error())
		return
	case errors.Is(err, context.Canceled):
		return
	default:
		s.logger.Warnf("search failed: %v", err)
		s.writeError(w, http.StatusBadGateway, "Search failed", err.Error())
		return
	}

	state := o.State()
	s.writeJSON(w, http.StatusOK, SearchResponse{
		State:        state,
		Filter:       o.FilterString(),
		Location:     search.Location{EntityType: state.EntityType, Query: o.SearchQuery().Values()}.String(),
		SortOptions:  o.SortOptions(),
		SearchFacets: facetInfos(o.SearchFacetConfigs()),
		APIURL:       o.SearchAPIURL(),
	})
}
