// Package search runs faceted searches for one browsing session.
//
// # Overview
//
// An Orchestrator owns the search state of a session: the entity type being
// searched, the active input filters, the free-text query, paging, sort, the
// latest results and the facet counts derived from them. Callers change that
// state through named operations, each of which runs a search:
//
//	o := search.New(api, nav, facet.Default())
//	err := o.DoTextSearch(ctx, "works", "dna repair")
//	err = o.AddFilters(ctx, filter.New(reg, "works", "type", "article", false))
//	err = o.SetPage(ctx, "2")
//
// # Query contract
//
// The query sent to the API and pushed to navigation has three parameters:
//
//   - page: a positive integer; anything else is read as 1
//   - sort: "<key>:desc"; unknown keys are read as the relevance default
//   - filter: the merged input filters plus the text search filter,
//     omitted when empty
//
// Relevance ranking needs a text query, so a search without one switches
// the relevance sort to citation count before the request is built.
//
// # Concurrency
//
// Operations may run concurrently. Each search takes a generation number
// and its responses are applied only while that generation is the latest.
// IsLoading is cleared by the latest generation only.
//
// # Collaborators
//
// The API interface matches *client.Client. The Navigator interface is the
// navigation layer; pkg/history provides a persistent one. Pushing the
// location that is already current yields ErrNavigationDuplicated, which the
// orchestrator ignores.
package search
