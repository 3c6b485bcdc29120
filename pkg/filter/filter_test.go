package filter

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/rubiojr/serp/pkg/facet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	reg := facet.Default()

	t.Run("plain value", func(t *testing.T) {
		f := New(reg, "works", "Type", "article", false)
		assert.Equal(t, "type", f.Key)
		assert.Equal(t, "article", f.Value)
		assert.Equal(t, "type:article", f.AsStr)
		assert.Equal(t, "type:article", f.KV)
		assert.False(t, f.IsNullValue)
		assert.False(t, f.Degraded())
		assert.Equal(t, "Type", f.DisplayName())
	})

	t.Run("negated", func(t *testing.T) {
		f := New(reg, "works", "oa_status", "closed", true)
		assert.True(t, f.IsNegated)
		assert.Equal(t, "oa_status:!closed", f.AsStr)
		assert.Equal(t, "oa_status:closed", f.KV)
	})

	t.Run("canonical url prefix is stripped", func(t *testing.T) {
		f := New(reg, "works", "institutions.id", "https://openalex.org/I136199984", false)
		assert.Equal(t, "I136199984", f.DisplayValue)
		assert.Equal(t, "i136199984", f.Value)
		assert.Equal(t, "institutions.id:i136199984", f.AsStr)
		assert.Equal(t, "I136199984", f.APIValue())
		assert.True(t, f.IsEntity())
	})

	t.Run("entity ids compare case-insensitively", func(t *testing.T) {
		a := New(reg, "works", "institutions.id", "https://openalex.org/I136199984", false)
		b := New(reg, "works", "institutions.id", "I136199984", false)
		assert.Equal(t, a.AsStr, b.AsStr)
	})

	t.Run("unknown maps to null", func(t *testing.T) {
		f := New(reg, "works", "institutions.id", "unknown", false)
		assert.True(t, f.IsNullValue)
		assert.Equal(t, "unknown", f.DisplayValue)
		assert.Equal(t, "institutions.id:null", f.AsStr)
		assert.Equal(t, NullValue, f.APIValue())
	})

	t.Run("null token", func(t *testing.T) {
		f := New(reg, "works", "type", "null", true)
		assert.True(t, f.IsNullValue)
		assert.Equal(t, "type:!null", f.AsStr)
	})

	t.Run("unknown key degrades", func(t *testing.T) {
		f := New(reg, "works", "no_such_facet", "x", false)
		assert.True(t, f.Degraded())
		assert.Equal(t, "no_such_facet", f.DisplayName())
		assert.Equal(t, "no_such_facet:x", f.AsStr)
	})

	t.Run("nil registry degrades", func(t *testing.T) {
		f := New(nil, "works", "type", "article", false)
		assert.True(t, f.Degraded())
		assert.Equal(t, "type:article", f.AsStr)
	})
}

func TestNewDisplay(t *testing.T) {
	reg := facet.Default()

	f := NewDisplay(reg, "works", "type", "article", false, "Article", 25, 200)
	assert.Equal(t, "Article", f.DisplayValue)
	assert.Equal(t, 25, f.Count)
	assert.InDelta(t, 12.5, f.CountPercent, 1e-9)

	p, ok := f.Percent()
	assert.True(t, ok)
	assert.InDelta(t, 12.5, p, 1e-9)

	empty := NewDisplay(reg, "works", "type", "article", false, "Article", 3, 0)
	assert.True(t, math.IsNaN(empty.CountPercent))
	_, ok = empty.Percent()
	assert.False(t, ok)
}

func TestMarshalJSONGuardsNaN(t *testing.T) {
	reg := facet.Default()
	f := NewDisplay(reg, "works", "type", "article", false, "Article", 3, 0)

	data, err := json.Marshal(f)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.NotContains(t, out, "count_percent")
	assert.Equal(t, "type:article", out["as_str"])
	assert.Equal(t, "Type", out["display_name"])
}

func TestFromIdentifier(t *testing.T) {
	reg := facet.Default()

	f, ok := FromIdentifier(reg, " https://orcid.org/0000-0002-1825-0097 ")
	require.True(t, ok)
	assert.Equal(t, "orcid:0000-0002-1825-0097", f.AsStr)
	assert.Equal(t, "authors", f.Config.EntityType)

	f, ok = FromIdentifier(reg, "https://openalex.org/I27837315")
	require.True(t, ok)
	assert.Equal(t, "institutions.id:i27837315", f.AsStr)
	assert.Equal(t, "works", f.Config.EntityType)

	_, ok = FromIdentifier(reg, "hello world")
	assert.False(t, ok)

	_, ok = FromIdentifier(nil, "I27837315")
	assert.False(t, ok)
}

func TestFromAPI(t *testing.T) {
	reg := facet.Default()
	facets := []Facet{
		{Key: "search", Values: []FacetValue{{Value: "x", Count: 1}}},
		{
			Key: "publication_year",
			Values: []FacetValue{
				{Value: float64(2020), DisplayName: "2020", Count: 30},
				{Value: float64(2021), DisplayName: "2021", Count: 10},
			},
		},
		{
			Key:       "institutions.id",
			IsNegated: true,
			Values: []FacetValue{
				{Value: "https://openalex.org/I136199984", DisplayName: "Harvard", Count: 5},
			},
		},
		{
			Key:    "open_access.is_oa",
			Values: []FacetValue{{Value: true, DisplayName: "true", Count: 60}, {Value: nil, DisplayName: "unknown", Count: 2}},
		},
	}

	got := FromAPI(reg, "works", facets, 120)
	require.Len(t, got, 5)

	assert.Equal(t, "publication_year:2020", got[0].AsStr)
	assert.InDelta(t, 25.0, got[0].CountPercent, 1e-9)
	assert.Equal(t, "institutions.id:!i136199984", got[2].AsStr)
	assert.Equal(t, "Harvard", got[2].DisplayValue)
	assert.Equal(t, "open_access.is_oa:true", got[3].AsStr)
	assert.True(t, got[4].IsNullValue)
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "null", ValueString(nil))
	assert.Equal(t, "2020", ValueString(float64(2020)))
	assert.Equal(t, "0.5", ValueString(0.5))
	assert.Equal(t, "false", ValueString(false))
	assert.Equal(t, "7", ValueString(7))
	assert.Equal(t, "abc", ValueString("abc"))
}
