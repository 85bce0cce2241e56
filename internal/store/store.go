// Package store persists collected places and per-tile fetch statistics.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/places-cli/internal/model"
)

// ErrNotFound is returned when an update targets a place that is not stored.
var ErrNotFound = eris.New("store: not found")

// PlaceFilter specifies criteria for listing places.
type PlaceFilter struct {
	Hidden *bool `json:"hidden,omitempty"` // nil lists every place
	Limit  int   `json:"limit,omitempty"`  // 0 means no limit
}

// Store defines the persistence interface shared by the collector and the viewer.
type Store interface {
	// Collector writes
	UpsertPlace(ctx context.Context, p model.Place) error
	RecordFetchLog(ctx context.Context, l model.FetchLog) error

	// Viewer reads
	GetPlace(ctx context.Context, placeID string) (*model.Place, error)
	ListPlaces(ctx context.Context, filter PlaceFilter) ([]model.Place, error)
	RandomPlaces(ctx context.Context, n int) ([]model.Place, error)
	HeatCells(ctx context.Context) ([]model.HeatCell, error)

	// Viewer writes (locally owned fields)
	SetHidden(ctx context.Context, placeID string, hidden bool) error
	SetLastVisited(ctx context.Context, placeID string, date *string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Bool returns a pointer to b, for PlaceFilter.Hidden.
func Bool(b bool) *bool {
	return &b
}
