package search

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Location is a navigation target: the entity type being searched and the
// query parameters that describe the search.
type Location struct {
	EntityType string
	Query      url.Values
}

// ParseLocation parses a path like "/works?filter=type:article&page=2".
func ParseLocation(raw string) (Location, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Location{}, fmt.Errorf("parsing location %q: %w", raw, err)
	}
	entityType, _, _ := strings.Cut(strings.Trim(u.Path, "/"), "/")
	return Location{EntityType: entityType, Query: u.Query()}, nil
}

// String renders the location the way ParseLocation reads it. Query keys are
// sorted so equal locations render equally.
func (l Location) String() string {
	s := "/" + l.EntityType
	if len(l.Query) > 0 {
		s += "?" + l.Query.Encode()
	}
	return s
}

// Page returns the coerced page parameter.
func (l Location) Page() int {
	return ParsePage(l.Query.Get("page"))
}

// Sort returns the coerced sort key.
func (l Location) Sort() string {
	return NormalizeSort(l.Query.Get("sort"))
}

// Filter returns the raw encoded filter parameter.
func (l Location) Filter() string {
	return l.Query.Get("filter")
}

// ParsePage parses a page parameter. Anything that is not a positive integer
// becomes page 1.
func ParsePage(s string) int {
	page, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// Query is the query sent to the search API and pushed to navigation.
type Query struct {
	Page   int
	Filter string
	Sort   string
}

// Values renders the query as URL parameters, omitting an empty filter.
func (q Query) Values() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	if q.Filter != "" {
		v.Set("filter", q.Filter)
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort+":desc")
	}
	return v
}
