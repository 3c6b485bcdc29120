package api

import (
	"net/http"
)

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.HandleHealth)
	mux.HandleFunc("GET /api/facets/{entityType}", s.HandleFacets)
	mux.HandleFunc("GET /api/pid", s.HandlePID)

	mux.HandleFunc("GET /api/search", s.HandleState)
	mux.HandleFunc("GET /api/search/{entityType}", s.HandleBoot)
	mux.HandleFunc("POST /api/search/filters", s.HandleFilters)
	mux.HandleFunc("POST /api/search/sort", s.HandleSort)
	mux.HandleFunc("POST /api/search/page", s.HandlePage)
	mux.HandleFunc("POST /api/search/text", s.HandleText)
	mux.HandleFunc("DELETE /api/search", s.HandleReset)

	mux.HandleFunc("POST /api/zoom", s.HandleZoom)
	mux.HandleFunc("DELETE /api/zoom", s.HandleCloseZoom)
}
