package search

import "errors"

var (
	// ErrNavigationDuplicated is returned by a Navigator asked to push the
	// location it is already at. The orchestrator swallows it.
	ErrNavigationDuplicated = errors.New("navigation duplicated")

	// ErrNoEntityType is returned when a search is requested before an entity
	// type is known.
	ErrNoEntityType = errors.New("no entity type")

	// ErrUnknownEntityID is returned when an identifier has no known type prefix.
	ErrUnknownEntityID = errors.New("unknown entity identifier")
)
