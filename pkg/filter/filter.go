// Package filter builds, encodes and merges facet filters.
//
// A Filter binds a facet key to one value, optionally negated. Filters travel
// in URLs and API requests in a compact textual form:
//
//	key:value          one positive value
//	key:!value         one negated value
//	key:v1|v2|v3       OR-list of positive values (the merged form)
//
// Several filters are joined with commas. Decode expands OR-lists into one
// Filter per value; Merge folds positive filters sharing a key back into the
// OR-list form. Encode is the flat, deduplicated, sorted form used as a
// canonical identity for a set of filters.
package filter

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rubiojr/serp/pkg/facet"
)

// TextSearchKey is the facet key carrying the free-text query.
const TextSearchKey = "display_name.search"

// NullValue is the API form of the "unknown" and "null" tokens.
const NullValue = "null"

// Filter is one concrete facet constraint.
type Filter struct {
	// Key is the lower-cased facet key.
	Key string
	// Value is the normalized value: canonical URL prefix stripped, and
	// lower-cased for entity facets.
	Value string
	// wire is the value as given, prefix stripped but case preserved.
	wire string
	// DisplayValue is the human-facing value. For filters built from API
	// facet counts it holds the API display name.
	DisplayValue string
	IsNegated    bool
	// IsNullValue is set when Value is one of the null tokens; the API form
	// of the value is then "null".
	IsNullValue bool
	// AsStr is the canonical single-filter encoding and the filter identity.
	AsStr string
	// KV is the encoding without negation.
	KV string

	Count        int
	CountPercent float64

	// Config is the registry metadata for the facet, nil for a key the
	// registry does not know.
	Config *facet.Config
}

// ID returns the canonical encoding of a single filter.
func ID(key, value string, isNegated bool) string {
	key = strings.ToLower(key)
	if isNegated {
		return key + ":!" + value
	}
	return key + ":" + value
}

// New builds a filter from raw key/value input.
// An unknown (entityType, key) pair still yields a usable filter, without
// display metadata.
func New(reg *facet.Registry, entityType, key, rawValue string, isNegated bool) Filter {
	key = strings.ToLower(strings.TrimSpace(key))
	display, hadPrefix := stripCanonical(rawValue)

	cfg, _ := reg.Lookup(entityType, key)

	value := display
	if hadPrefix || (cfg != nil && cfg.IsEntity) {
		value = strings.ToLower(value)
	}

	f := Filter{
		Key:          key,
		Value:        value,
		DisplayValue: display,
		IsNegated:    isNegated,
		IsNullValue:  isNullToken(value),
		Config:       cfg,
		wire:         display,
	}
	f.AsStr = ID(key, f.identityValue(), isNegated)
	f.KV = ID(key, f.identityValue(), false)
	return f
}

// NewDisplay builds a filter carrying facet counts. CountPercent is NaN when
// totalCount is zero; see Percent.
func NewDisplay(reg *facet.Registry, entityType, key, value string, isNegated bool, displayValue string, count, totalCount int) Filter {
	f := New(reg, entityType, key, value, isNegated)
	f.DisplayValue = displayValue
	f.Count = count
	if totalCount == 0 {
		f.CountPercent = math.NaN()
	} else {
		f.CountPercent = 100 * float64(count) / float64(totalCount)
	}
	return f
}

// FromIdentifier builds a filter from a persistent identifier by matching it
// against the registry patterns. The first matching facet wins.
func FromIdentifier(reg *facet.Registry, identifier string) (Filter, bool) {
	if reg == nil {
		return Filter{}, false
	}
	cfg, value, ok := reg.MatchPID(identifier)
	if !ok {
		return Filter{}, false
	}
	return New(reg, cfg.EntityType, cfg.Key, value, false), true
}

// APIValue returns the value as sent to the API and written to URLs. Unlike
// the identity in AsStr it keeps the case the value was given in.
func (f Filter) APIValue() string {
	if f.IsNullValue {
		return NullValue
	}
	if f.wire != "" {
		return f.wire
	}
	return f.Value
}

func (f Filter) identityValue() string {
	if f.IsNullValue {
		return NullValue
	}
	return f.Value
}

// Degraded reports whether the filter lacks registry metadata.
func (f Filter) Degraded() bool {
	return f.Config == nil
}

// DisplayName returns the facet display name, falling back to the key.
func (f Filter) DisplayName() string {
	if f.Config == nil || f.Config.DisplayName == "" {
		return f.Key
	}
	return f.Config.DisplayName
}

func (f Filter) IsEntity() bool {
	return f.Config != nil && f.Config.IsEntity
}

// Percent returns CountPercent and whether it is a finite number.
func (f Filter) Percent() (float64, bool) {
	if math.IsNaN(f.CountPercent) || math.IsInf(f.CountPercent, 0) {
		return 0, false
	}
	return f.CountPercent, true
}

func (f Filter) String() string {
	return f.AsStr
}

type filterJSON struct {
	Key          string   `json:"key"`
	Value        string   `json:"value"`
	DisplayValue string   `json:"display_value"`
	DisplayName  string   `json:"display_name"`
	IsNegated    bool     `json:"is_negated"`
	IsNullValue  bool     `json:"is_null_value"`
	IsEntity     bool     `json:"is_entity"`
	AsStr        string   `json:"as_str"`
	KV           string   `json:"kv"`
	Count        int      `json:"count,omitempty"`
	CountPercent *float64 `json:"count_percent,omitempty"`
}

// MarshalJSON omits count_percent when it is not a finite number.
func (f Filter) MarshalJSON() ([]byte, error) {
	out := filterJSON{
		Key:          f.Key,
		Value:        f.Value,
		DisplayValue: f.DisplayValue,
		DisplayName:  f.DisplayName(),
		IsNegated:    f.IsNegated,
		IsNullValue:  f.IsNullValue,
		IsEntity:     f.IsEntity(),
		AsStr:        f.AsStr,
		KV:           f.KV,
		Count:        f.Count,
	}
	if p, ok := f.Percent(); ok {
		out.CountPercent = &p
	}
	return json.Marshal(out)
}

// ValueString renders a JSON-decoded facet value as filter text.
func ValueString(v any) string {
	switch x := v.(type) {
	case nil:
		return NullValue
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case int:
		return strconv.Itoa(x)
	default:
		return fmt.Sprint(x)
	}
}

func stripCanonical(raw string) (string, bool) {
	if strings.HasPrefix(raw, facet.CanonicalURLBase) {
		return strings.TrimPrefix(raw, facet.CanonicalURLBase), true
	}
	return raw, false
}

func isNullToken(v string) bool {
	switch strings.ToLower(v) {
	case "unknown", NullValue:
		return true
	}
	return false
}
