package search

import (
	"net/url"
	"testing"
)

func TestParsePage(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"3", 3},
		{" 7 ", 7},
		{"abc", 1},
		{"", 1},
		{"0", 1},
		{"-2", 1},
		{"2.5", 1},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParsePage(tt.input); got != tt.expected {
				t.Errorf("ParsePage(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeSort(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"cited_by_count", SortCitations},
		{"cited_by_count:desc", SortCitations},
		{"publication_date:asc", SortDate},
		{"works_count", SortWorks},
		{"not-a-real-key", DefaultSort},
		{"", DefaultSort},
		{":desc", DefaultSort},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeSort(tt.input); got != tt.expected {
				t.Errorf("NormalizeSort(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseLocation(t *testing.T) {
	loc, err := ParseLocation("/works?filter=type:article&page=abc&sort=works_count:desc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.EntityType != "works" {
		t.Errorf("entity type = %q", loc.EntityType)
	}
	if loc.Page() != 1 {
		t.Errorf("page = %d", loc.Page())
	}
	if loc.Sort() != SortWorks {
		t.Errorf("sort = %q", loc.Sort())
	}
	if loc.Filter() != "type:article" {
		t.Errorf("filter = %q", loc.Filter())
	}

	if _, err := ParseLocation("%zz"); err == nil {
		t.Error("expected an error for an unparseable location")
	}
}

func TestLocationStringRoundTrip(t *testing.T) {
	loc := Location{EntityType: "authors", Query: url.Values{"page": {"2"}, "filter": {"orcid:0000-0002-1825-0097"}}}
	parsed, err := ParseLocation(loc.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.String() != loc.String() {
		t.Errorf("round trip = %q, want %q", parsed.String(), loc.String())
	}
	if (Location{EntityType: "works"}).String() != "/works" {
		t.Error("expected a bare path without query")
	}
}

func TestQueryValues(t *testing.T) {
	v := Query{Page: 2, Sort: SortCitations}.Values()
	if v.Get("page") != "2" || v.Get("sort") != "cited_by_count:desc" {
		t.Errorf("unexpected values: %v", v)
	}
	if _, ok := v["filter"]; ok {
		t.Error("empty filter must be omitted")
	}

	v = Query{Page: 1, Filter: "type:article", Sort: SortDate}.Values()
	if v.Get("filter") != "type:article" {
		t.Errorf("unexpected filter: %v", v)
	}
}
