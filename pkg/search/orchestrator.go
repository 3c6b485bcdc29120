package search

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"

	"github.com/rubiojr/serp/pkg/client"
	"github.com/rubiojr/serp/pkg/facet"
	"github.com/rubiojr/serp/pkg/filter"
	"github.com/rubiojr/serp/pkg/log"
	"github.com/rubiojr/serp/pkg/realtime"
)

// API is the search API read contract. *client.Client implements it.
type API interface {
	Search(ctx context.Context, entityType string, params url.Values) (*client.ResultsResponse, error)
	Filters(ctx context.Context, entityType, filterString string) (*client.FiltersResponse, error)
	Entity(ctx context.Context, entityType, id string) (map[string]any, error)
}

// URLBuilder is implemented by APIs that can render the request URL for a query.
type URLBuilder interface {
	URL(entityType string, params url.Values) string
}

// Navigator is the navigation layer. Push returns ErrNavigationDuplicated
// when asked to push the current location.
type Navigator interface {
	Current(ctx context.Context) (Location, error)
	Push(ctx context.Context, loc Location) error
}

type Option func(*Orchestrator)

func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithHub publishes state changes to hub, tagged with session.
func WithHub(hub *realtime.Hub, session string) Option {
	return func(o *Orchestrator) {
		o.hub = hub
		o.session = session
	}
}

// Orchestrator owns one search session. Operations mutate state under a lock
// and then run the search; network calls happen without holding the lock.
//
// Every DoSearch takes a new generation. A response is applied only while its
// generation is still the latest, and only the latest generation clears
// IsLoading, so a slow early request cannot overwrite a newer result.
type Orchestrator struct {
	api     API
	nav     Navigator
	reg     *facet.Registry
	logger  *log.Logger
	hub     *realtime.Hub
	session string

	mu      sync.Mutex
	state   State
	zoomGen uint64
}

// New creates an orchestrator in its default state. nav may be nil when no
// navigation layer exists.
func New(api API, nav Navigator, reg *facet.Registry, opts ...Option) *Orchestrator {
	if reg == nil {
		reg = facet.Default()
	}
	o := &Orchestrator{
		api:    api,
		nav:    nav,
		reg:    reg,
		logger: log.ForService("search"),
		state:  defaultState(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Registry returns the facet registry used to build filters.
func (o *Orchestrator) Registry() *facet.Registry {
	return o.reg
}

// State returns a copy of the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.clone()
}

// BootFromURL loads the search described by the navigator's current location
// and runs it.
func (o *Orchestrator) BootFromURL(ctx context.Context) error {
	if o.nav == nil {
		return errors.New("boot from url: no navigator")
	}
	loc, err := o.nav.Current(ctx)
	if err != nil {
		return err
	}
	return o.Boot(ctx, loc)
}

// Boot loads the search described by loc and runs it. The text search is
// taken out of the filter parameter and kept apart from the input filters.
func (o *Orchestrator) Boot(ctx context.Context, loc Location) error {
	o.mu.Lock()
	o.state.EntityType = loc.EntityType
	o.state.Page = loc.Page()
	o.state.Sort = loc.Sort()
	raw := loc.Filter()
	decoded := filter.Decode(o.reg, loc.EntityType, raw)
	o.state.InputFilters = filter.Union(nil, filter.WithoutTextSearch(decoded))
	o.state.TextSearch = filter.TextSearchFromURL(raw)
	o.mu.Unlock()

	o.logger.Debugf("booting from %s", loc)
	return o.DoSearch(ctx)
}

// DoTextSearch resets the session and searches entityType for text. Filter
// delimiters in text are replaced by spaces.
func (o *Orchestrator) DoTextSearch(ctx context.Context, entityType, text string) error {
	o.Reset()
	o.mu.Lock()
	o.state.EntityType = entityType
	o.state.TextSearch = filter.CleanText(text)
	o.mu.Unlock()
	return o.DoSearch(ctx)
}

// SetSort stores key, or DefaultSort when key is not recognized, resets
// the page and searches.
func (o *Orchestrator) SetSort(ctx context.Context, key string) error {
	o.mu.Lock()
	o.state.Sort = NormalizeSort(key)
	o.state.Page = 1
	o.mu.Unlock()
	return o.DoSearch(ctx)
}

// SetPage stores the parsed page, 1 when page is not a positive integer, and
// searches.
func (o *Orchestrator) SetPage(ctx context.Context, page string) error {
	o.mu.Lock()
	o.state.Page = ParsePage(page)
	o.mu.Unlock()
	return o.DoSearch(ctx)
}

// AddFilters adds filters not already present, resets the page and searches.
func (o *Orchestrator) AddFilters(ctx context.Context, filters ...filter.Filter) error {
	return o.UpdateFilters(ctx, filters, nil)
}

// RemoveFilters removes filters by identity, resets the page and searches.
func (o *Orchestrator) RemoveFilters(ctx context.Context, filters ...filter.Filter) error {
	return o.UpdateFilters(ctx, nil, filters)
}

// UpdateFilters removes the filters in remove, then adds those in add that
// are not already present, resets the page and runs a single search.
func (o *Orchestrator) UpdateFilters(ctx context.Context, add, remove []filter.Filter) error {
	o.mu.Lock()
	o.state.InputFilters = filter.Union(filter.Subtract(o.state.InputFilters, remove), add)
	o.state.Page = 1
	o.mu.Unlock()
	return o.DoSearch(ctx)
}

// Reset returns the session to its defaults. Requests still in flight are
// discarded when they complete.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	gen := o.state.Generation + 1
	o.state = defaultState()
	o.state.Generation = gen
	o.zoomGen++
	o.mu.Unlock()

	o.publish(realtime.StateEvent{Kind: realtime.KindReset, Generation: gen})
}

// DoSearch runs the current search. Without a text search the relevance sort
// is replaced by the citation sort before the request is built. The location
// is pushed to the navigator, then results are fetched and, when there is a
// filter string, facet counts too; without one the facet counts are
// cleared. Errors from either request are returned
// as is; IsLoading is cleared on every exit of the latest generation.
func (o *Orchestrator) DoSearch(ctx context.Context) error {
	o.mu.Lock()
	if o.state.EntityType == "" {
		o.mu.Unlock()
		return ErrNoEntityType
	}
	if o.state.TextSearch == "" && o.state.Sort == SortRelevance {
		o.state.Sort = SortCitations
	}
	o.state.Generation++
	o.state.IsLoading = true
	gen := o.state.Generation
	entityType := o.state.EntityType
	query := o.searchQueryLocked()
	o.mu.Unlock()

	o.publish(realtime.StateEvent{
		Kind:       realtime.KindLoading,
		Generation: gen,
		EntityType: entityType,
		Filter:     query.Filter,
		Page:       query.Page,
		Sort:       query.Sort,
		IsLoading:  true,
	})

	_ = o.pushLocation(ctx, Location{EntityType: entityType, Query: query.Values()})

	err := o.fetch(ctx, gen, entityType, query)
	o.finish(gen, err)
	return err
}

func (o *Orchestrator) fetch(ctx context.Context, gen uint64, entityType string, query Query) error {
	resp, err := o.api.Search(ctx, entityType, query.Values())
	if err != nil {
		return err
	}

	o.mu.Lock()
	if gen != o.state.Generation {
		o.mu.Unlock()
		o.logger.Debugf("discarding results of superseded generation %d", gen)
		return nil
	}
	o.state.Results = resp.Results
	if o.state.Results == nil {
		o.state.Results = []map[string]any{}
	}
	o.state.ResponseTime = resp.Meta.DBResponseTimeMS
	o.state.ResultsCount = resp.Meta.Count
	if query.Filter == "" {
		// no counts request; drop the previous search's counts
		o.state.ResultsFilters = []filter.Filter{}
	}
	total := resp.Meta.Count
	o.mu.Unlock()

	o.publish(realtime.StateEvent{
		Kind:         realtime.KindResults,
		Generation:   gen,
		EntityType:   entityType,
		Filter:       query.Filter,
		Page:         query.Page,
		Sort:         query.Sort,
		IsLoading:    true,
		ResultsCount: total,
	})

	if query.Filter == "" {
		return nil
	}

	fresp, err := o.api.Filters(ctx, entityType, query.Filter)
	if err != nil {
		return err
	}
	resultsFilters := filter.FromAPI(o.reg, entityType, fresp.Filters, total)

	o.mu.Lock()
	if gen != o.state.Generation {
		o.mu.Unlock()
		o.logger.Debugf("discarding facet counts of superseded generation %d", gen)
		return nil
	}
	o.state.ResultsFilters = resultsFilters
	o.mu.Unlock()

	o.publish(realtime.StateEvent{
		Kind:         realtime.KindFilters,
		Generation:   gen,
		EntityType:   entityType,
		Filter:       query.Filter,
		IsLoading:    true,
		ResultsCount: total,
	})
	return nil
}

// finish clears IsLoading when gen is still the latest generation.
func (o *Orchestrator) finish(gen uint64, err error) {
	o.mu.Lock()
	latest := gen == o.state.Generation
	if latest {
		o.state.IsLoading = false
	}
	ev := realtime.StateEvent{
		Kind:         realtime.KindDone,
		Generation:   gen,
		EntityType:   o.state.EntityType,
		ResultsCount: o.state.ResultsCount,
	}
	o.mu.Unlock()

	if err != nil {
		o.logger.Warnf("search generation %d failed: %v", gen, err)
		ev.Kind = realtime.KindError
		ev.Error = err.Error()
	}
	if latest || err != nil {
		o.publish(ev)
	}
}

// PushSearchURL pushes the current search to the navigator. A duplicated
// navigation is not an error.
func (o *Orchestrator) PushSearchURL(ctx context.Context) error {
	o.mu.Lock()
	loc := Location{EntityType: o.state.EntityType, Query: o.searchQueryLocked().Values()}
	o.mu.Unlock()
	return o.pushLocation(ctx, loc)
}

func (o *Orchestrator) pushLocation(ctx context.Context, loc Location) error {
	if o.nav == nil {
		return nil
	}
	err := o.nav.Push(ctx, loc)
	if err == nil || errors.Is(err, ErrNavigationDuplicated) {
		return nil
	}
	o.logger.Errorf("pushing %s: %v", loc, err)
	return err
}

// SetEntityZoom opens the detail overlay for id and loads the entity. The
// entity type comes from the identifier's type prefix.
func (o *Orchestrator) SetEntityZoom(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	entityType, ok := o.reg.EntityTypeFromID(id)
	if !ok {
		return ErrUnknownEntityID
	}
	short := strings.TrimPrefix(id, facet.CanonicalURLBase)

	o.mu.Lock()
	o.zoomGen++
	gen := o.zoomGen
	o.state.Zoom = Zoom{Open: true, EntityType: entityType, ID: short}
	o.mu.Unlock()

	data, err := o.api.Entity(ctx, entityType, short)
	if err != nil {
		return err
	}

	o.mu.Lock()
	if gen == o.zoomGen {
		o.state.Zoom.Data = data
	}
	o.mu.Unlock()

	o.publish(realtime.StateEvent{Kind: realtime.KindZoom, EntityType: entityType})
	return nil
}

// CloseEntityZoom closes the overlay. When no entity type was being searched
// the zoomed entity's type becomes the search entity type.
func (o *Orchestrator) CloseEntityZoom(ctx context.Context) error {
	o.mu.Lock()
	if o.state.EntityType == "" {
		o.state.EntityType = o.state.Zoom.EntityType
	}
	o.mu.Unlock()

	err := o.PushSearchURL(ctx)

	o.mu.Lock()
	o.zoomGen++
	o.state.Zoom = Zoom{}
	o.mu.Unlock()
	return err
}

// SearchQuery returns the query the next search would send.
func (o *Orchestrator) SearchQuery() Query {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.searchQueryLocked()
}

// FilterString returns the merged input filters plus the text search filter.
func (o *Orchestrator) FilterString() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.filterStringLocked()
}

// TextSearchFilter returns the filter carrying the text search, if any.
func (o *Orchestrator) TextSearchFilter() (filter.Filter, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.textSearchFilterLocked()
}

// SortOption returns the current sort option.
func (o *Orchestrator) SortOption() SortConfig {
	o.mu.Lock()
	defer o.mu.Unlock()
	c, _ := LookupSort(o.state.Sort)
	return c
}

// SortOptions returns the sort options applicable to the current results:
// those whose key is a field of the first result. Nil without results.
func (o *Orchestrator) SortOptions() []SortConfig {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.state.Results) == 0 {
		return nil
	}
	first := o.state.Results[0]
	var out []SortConfig
	for _, c := range sortConfigs {
		if _, ok := first[c.Key]; ok {
			out = append(out, c)
		}
	}
	return out
}

// SearchFacetConfigs returns the facets offered for the current entity type.
func (o *Orchestrator) SearchFacetConfigs() []*facet.Config {
	o.mu.Lock()
	entityType := o.state.EntityType
	o.mu.Unlock()
	return o.reg.ForEntityType(entityType)
}

// SearchAPIURL returns the API URL of the current search, or "" when the API
// cannot build URLs.
func (o *Orchestrator) SearchAPIURL() string {
	b, ok := o.api.(URLBuilder)
	if !ok {
		return ""
	}
	o.mu.Lock()
	entityType := o.state.EntityType
	query := o.searchQueryLocked()
	o.mu.Unlock()
	return b.URL(entityType, query.Values())
}

func (o *Orchestrator) searchQueryLocked() Query {
	return Query{
		Page:   o.state.Page,
		Filter: o.filterStringLocked(),
		Sort:   o.state.Sort,
	}
}

func (o *Orchestrator) filterStringLocked() string {
	filters := o.state.InputFilters
	if f, ok := o.textSearchFilterLocked(); ok {
		filters = append(filters[:len(filters):len(filters)], f)
	}
	return filter.MergeString(filters)
}

func (o *Orchestrator) textSearchFilterLocked() (filter.Filter, bool) {
	if o.state.TextSearch == "" {
		return filter.Filter{}, false
	}
	return filter.New(o.reg, o.state.EntityType, filter.TextSearchKey, o.state.TextSearch, false), true
}

func (o *Orchestrator) publish(ev realtime.StateEvent) {
	if o.hub == nil {
		return
	}
	ev.Session = o.session
	o.hub.Publish(ev)
}
