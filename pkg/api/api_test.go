package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rubiojr/serp/pkg/client"
	"github.com/rubiojr/serp/pkg/facet"
	"github.com/rubiojr/serp/pkg/filter"
	"github.com/rubiojr/serp/pkg/history"
	"github.com/rubiojr/serp/pkg/realtime"
)

type mockAPI struct {
	mu       sync.Mutex
	searches []url.Values
	filters  []string
	results  []map[string]any
	err      error
}

func (m *mockAPI) Search(ctx context.Context, entityType string, params url.Values) (*client.ResultsResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches = append(m.searches, params)
	if m.err != nil {
		return nil, m.err
	}
	return &client.ResultsResponse{
		Results: m.results,
		Meta:    client.Meta{Count: len(m.results), DBResponseTimeMS: 3},
	}, nil
}

func (m *mockAPI) Filters(ctx context.Context, entityType, filterString string) (*client.FiltersResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters = append(m.filters, filterString)
	return &client.FiltersResponse{Filters: []filter.Facet{
		{Key: "type", Values: []filter.FacetValue{{Value: "article", DisplayName: "Article", Count: 7}}},
	}}, nil
}

func (m *mockAPI) Entity(ctx context.Context, entityType, id string) (map[string]any, error) {
	return map[string]any{"id": "https://openalex.org/" + id, "display_name": "Entity " + id}, nil
}

func (m *mockAPI) URL(entityType string, params url.Values) string {
	return "https://api.example.org/" + entityType + "?" + params.Encode()
}

func (m *mockAPI) lastSearch() url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.searches) == 0 {
		return nil
	}
	return m.searches[len(m.searches)-1]
}

func setupTestServer(t *testing.T, opts ...Option) (*Server, *httptest.Server, *http.Client, *mockAPI) {
	t.Helper()
	mock := &mockAPI{results: []map[string]any{{"id": "W1", "cited_by_count": 4}}}
	s := NewServer(mock, facet.Default(), opts...)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("Failed to create cookie jar: %v", err)
	}
	return s, ts, &http.Client{Jar: jar}, mock
}

func doJSON(t *testing.T, c *http.Client, method, uri string, body any, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, uri, reader)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("Request %s %s failed: %v", method, uri, err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", ct)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func TestAPIHealth(t *testing.T) {
	_, ts, c, _ := setupTestServer(t)

	var health HealthResponse
	if code := doJSON(t, c, "GET", ts.URL+"/health", nil, &health); code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", code)
	}
	if health.Status != "ok" {
		t.Errorf("Expected status ok, got %s", health.Status)
	}
	if health.Sessions != 0 {
		t.Errorf("Expected no sessions, got %d", health.Sessions)
	}
}

func TestAPIFacets(t *testing.T) {
	_, ts, c, _ := setupTestServer(t)

	var resp FacetsResponse
	if code := doJSON(t, c, "GET", ts.URL+"/api/facets/works", nil, &resp); code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", code)
	}
	if resp.Count == 0 || resp.Count != len(resp.Facets) {
		t.Errorf("Unexpected facet count %d for %d facets", resp.Count, len(resp.Facets))
	}
	for _, f := range resp.Facets {
		if strings.HasSuffix(f.Key, ".search") {
			t.Errorf("Search facet %s should not be listed", f.Key)
		}
	}

	if code := doJSON(t, c, "GET", ts.URL+"/api/facets/nonexistent", nil, nil); code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", code)
	}
}

func TestAPIPID(t *testing.T) {
	_, ts, c, _ := setupTestServer(t)

	var resp struct {
		EntityType string `json:"entity_type"`
		Filter     struct {
			AsStr string `json:"as_str"`
		} `json:"filter"`
	}
	uri := ts.URL + "/api/pid?id=" + url.QueryEscape("https://openalex.org/I27837315")
	if code := doJSON(t, c, "GET", uri, nil, &resp); code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", code)
	}
	if resp.EntityType != "works" {
		t.Errorf("Expected entity type works, got %s", resp.EntityType)
	}

	if code := doJSON(t, c, "GET", ts.URL+"/api/pid?id=nothing", nil, nil); code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", code)
	}
	if code := doJSON(t, c, "GET", ts.URL+"/api/pid", nil, nil); code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", code)
	}
}

func TestAPIBootAndFilters(t *testing.T) {
	s, ts, c, mock := setupTestServer(t)

	var resp SearchResponse
	uri := ts.URL + "/api/search/works?filter=" + url.QueryEscape("type:article,display_name.search:dna") + "&page=3"
	if code := doJSON(t, c, "GET", uri, nil, &resp); code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", code)
	}
	if resp.State.TextSearch != "dna" {
		t.Errorf("Expected text search dna, got %q", resp.State.TextSearch)
	}
	if resp.State.Page != 3 {
		t.Errorf("Expected page 3, got %d", resp.State.Page)
	}
	if resp.Filter != "type:article,display_name.search:dna" {
		t.Errorf("Unexpected filter string %q", resp.Filter)
	}
	if resp.State.IsLoading {
		t.Error("Expected loading to be cleared")
	}
	if resp.APIURL == "" {
		t.Error("Expected an API URL")
	}

	if code := doJSON(t, c, "POST", ts.URL+"/api/search/filters", FiltersRequest{Add: []string{"oa_status:!closed"}}, &resp); code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", code)
	}
	if resp.State.Page != 1 {
		t.Errorf("Expected page reset to 1, got %d", resp.State.Page)
	}
	if got := mock.lastSearch().Get("filter"); got != "type:article,display_name.search:dna,oa_status:!closed" {
		t.Errorf("Unexpected API filter %q", got)
	}

	if code := doJSON(t, c, "POST", ts.URL+"/api/search/filters", FiltersRequest{Remove: []string{"type:article"}}, &resp); code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", code)
	}
	if len(resp.State.InputFilters) != 1 {
		t.Errorf("Expected 1 input filter, got %d", len(resp.State.InputFilters))
	}

	if n := s.sessionCount(); n != 1 {
		t.Errorf("Expected cookie to keep a single session, got %d", n)
	}
}

func TestAPIReplaceFiltersSearchesOnce(t *testing.T) {
	_, ts, c, mock := setupTestServer(t)

	var resp SearchResponse
	doJSON(t, c, "GET", ts.URL+"/api/search/works?filter=type:article", nil, &resp)
	mock.mu.Lock()
	before := len(mock.searches)
	mock.mu.Unlock()

	req := FiltersRequest{Add: []string{"type:book"}, Remove: []string{"type:article"}}
	if code := doJSON(t, c, "POST", ts.URL+"/api/search/filters", req, &resp); code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", code)
	}

	mock.mu.Lock()
	after := len(mock.searches)
	mock.mu.Unlock()
	if after-before != 1 {
		t.Errorf("Expected a single search for add and remove, got %d", after-before)
	}
	if got := mock.lastSearch().Get("filter"); got != "type:book" {
		t.Errorf("Unexpected API filter %q", got)
	}
}

func TestSessionLimits(t *testing.T) {
	s, ts, _, _ := setupTestServer(t, WithSessionLimits(2, time.Hour))

	for i := 0; i < 5; i++ {
		resp, err := http.Get(ts.URL + "/api/search")
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		resp.Body.Close()
	}
	if n := s.sessionCount(); n != 2 {
		t.Errorf("Expected sessions capped at 2, got %d", n)
	}
}

func TestIdleSessionExpires(t *testing.T) {
	_, ts, c, _ := setupTestServer(t, WithSessionLimits(0, 20*time.Millisecond))

	var resp SearchResponse
	doJSON(t, c, "POST", ts.URL+"/api/search/text", TextRequest{EntityType: "works", Text: "graphene"}, &resp)
	if resp.State.EntityType != "works" {
		t.Fatalf("Expected works session, got %q", resp.State.EntityType)
	}

	time.Sleep(60 * time.Millisecond)

	doJSON(t, c, "GET", ts.URL+"/api/search", nil, &resp)
	if resp.State.EntityType != "" || resp.State.TextSearch != "" {
		t.Errorf("Expected an expired session to start fresh, got %+v", resp.State)
	}
}

func TestAPISortAndPage(t *testing.T) {
	_, ts, c, mock := setupTestServer(t)

	var resp SearchResponse
	doJSON(t, c, "POST", ts.URL+"/api/search/text", TextRequest{EntityType: "works", Text: "graphene"}, &resp)
	if got := mock.lastSearch().Get("sort"); got != "relevance_score:desc" {
		t.Errorf("Expected relevance sort with a text search, got %q", got)
	}

	doJSON(t, c, "POST", ts.URL+"/api/search/sort", SortRequest{Sort: "bogus"}, &resp)
	if resp.State.Sort != "relevance_score" {
		t.Errorf("Expected unknown sort to fall back to relevance, got %q", resp.State.Sort)
	}

	doJSON(t, c, "POST", ts.URL+"/api/search/page", map[string]any{"page": 4}, &resp)
	if resp.State.Page != 4 {
		t.Errorf("Expected page 4, got %d", resp.State.Page)
	}
	doJSON(t, c, "POST", ts.URL+"/api/search/page", map[string]any{"page": "zero"}, &resp)
	if resp.State.Page != 1 {
		t.Errorf("Expected invalid page to become 1, got %d", resp.State.Page)
	}
	if len(resp.SortOptions) == 0 {
		t.Error("Expected sort options for the current results")
	}
}

func TestAPIErrors(t *testing.T) {
	_, ts, c, mock := setupTestServer(t)

	if code := doJSON(t, c, "POST", ts.URL+"/api/search/sort", SortRequest{Sort: "cited_by_count"}, nil); code != http.StatusBadRequest {
		t.Errorf("Expected status 400 without an entity type, got %d", code)
	}

	mock.mu.Lock()
	mock.err = errors.New("upstream down")
	mock.mu.Unlock()

	var errResp ErrorResponse
	if code := doJSON(t, c, "GET", ts.URL+"/api/search/works", nil, &errResp); code != http.StatusBadGateway {
		t.Errorf("Expected status 502, got %d", code)
	}
	if !strings.Contains(errResp.Message, "upstream down") {
		t.Errorf("Expected upstream error in message, got %q", errResp.Message)
	}

	req, _ := http.NewRequest("POST", ts.URL+"/api/search/filters", strings.NewReader("{"))
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400 for a bad body, got %d", resp.StatusCode)
	}
}

func TestAPIZoomAndReset(t *testing.T) {
	_, ts, c, _ := setupTestServer(t)

	var resp SearchResponse
	if code := doJSON(t, c, "POST", ts.URL+"/api/zoom", ZoomRequest{ID: "https://openalex.org/A5023888391"}, &resp); code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", code)
	}
	if !resp.State.Zoom.Open || resp.State.Zoom.EntityType != "authors" {
		t.Errorf("Unexpected zoom state %+v", resp.State.Zoom)
	}
	if resp.State.Zoom.Data["display_name"] != "Entity A5023888391" {
		t.Errorf("Unexpected zoom data %v", resp.State.Zoom.Data)
	}

	if code := doJSON(t, c, "POST", ts.URL+"/api/zoom", ZoomRequest{ID: "nothing"}, nil); code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for an unknown id, got %d", code)
	}

	if code := doJSON(t, c, "DELETE", ts.URL+"/api/zoom", nil, &resp); code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", code)
	}
	if resp.State.Zoom.Open {
		t.Error("Expected zoom to be closed")
	}

	doJSON(t, c, "GET", ts.URL+"/api/search/works?filter=type:article", nil, &resp)
	if code := doJSON(t, c, "DELETE", ts.URL+"/api/search", nil, &resp); code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", code)
	}
	if resp.State.EntityType != "" || len(resp.State.InputFilters) != 0 {
		t.Errorf("Expected reset state, got %+v", resp.State)
	}
}

func TestAPIGzip(t *testing.T) {
	_, ts, c, mock := setupTestServer(t)
	for i := 0; i < 50; i++ {
		mock.results = append(mock.results, map[string]any{
			"id":           fmt.Sprintf("W%d", i),
			"display_name": strings.Repeat("compressible title ", 5),
		})
	}
	doJSON(t, c, "GET", ts.URL+"/api/search/works", nil, nil)

	req, _ := http.NewRequest("GET", ts.URL+"/api/search", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get("Content-Encoding") != "gzip" {
		t.Errorf("Expected gzip encoding, got %q", resp.Header.Get("Content-Encoding"))
	}
}

func TestAPIHistory(t *testing.T) {
	store, err := history.Open(t.TempDir() + "/history.db")
	if err != nil {
		t.Fatalf("Failed to open history: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	_, ts, c, _ := setupTestServer(t, WithHistory(store))
	doJSON(t, c, "GET", ts.URL+"/api/search/works?filter=type:article", nil, nil)
	doJSON(t, c, "POST", ts.URL+"/api/search/page", PageRequest{Page: "2"}, nil)

	sessions, err := store.Sessions(context.Background())
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("Expected 1 session, got %d", len(sessions))
	}
	entries, err := store.List(context.Background(), sessions[0], 10)
	if err != nil {
		t.Fatalf("Failed to list history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 navigations, got %d", len(entries))
	}
	if entries[0].Location.Page() != 2 {
		t.Errorf("Expected newest navigation on page 2, got %d", entries[0].Location.Page())
	}
}

func TestAPIEvents(t *testing.T) {
	_, ts, c, _ := setupTestServer(t)

	// Establish the session cookie before dialing.
	doJSON(t, c, "GET", ts.URL+"/api/search", nil, nil)
	base, _ := url.Parse(ts.URL)
	header := http.Header{}
	for _, ck := range c.Jar.Cookies(base) {
		header.Add("Cookie", ck.String())
	}

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/search/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	defer conn.Close()

	var init eventMessage
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&init); err != nil {
		t.Fatalf("Failed to read init message: %v", err)
	}
	if init.Type != "init" || init.State == nil {
		t.Fatalf("Expected init message with state, got %+v", init)
	}

	doJSON(t, c, "POST", ts.URL+"/api/search/text", TextRequest{EntityType: "works", Text: "dna"}, nil)

	var kinds []string
	for {
		var msg eventMessage
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("Failed to read event (got %v so far): %v", kinds, err)
		}
		if msg.Event == nil {
			t.Fatalf("Expected event payload, got %+v", msg)
		}
		kinds = append(kinds, msg.Event.Kind)
		if msg.Event.Kind == realtime.KindDone {
			break
		}
	}
	if kinds[0] != realtime.KindReset {
		t.Errorf("Expected reset first, got %v", kinds)
	}
}
