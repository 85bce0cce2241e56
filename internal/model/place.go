package model

import (
	"time"

	"github.com/rotisserie/eris"
)

const mapsURLPrefix = "https://www.google.com/maps/place/?q=place_id:"

// LatLng is a WGS84 coordinate in degrees.
type LatLng struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// RawPlace is a single search result as returned by the places API, tagged
// with the category it was fetched under.
type RawPlace struct {
	PlaceID  string   `json:"place_id"`
	Name     string   `json:"name"`
	Address  string   `json:"address"`
	Location *LatLng  `json:"location,omitempty"` // nil when the API omitted geometry
	Rating   *float64 `json:"rating,omitempty"`
	Category string   `json:"category"`
}

// Place is a stored point of interest.
type Place struct {
	PlaceID   string   `json:"place_id"`
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	Rating    *float64 `json:"rating,omitempty"`
	Category  string   `json:"type,omitempty"`
	MapsURL   string   `json:"maps_url"`
	DriveTime *int     `json:"drive_time,omitempty"` // seconds

	// Owned by the viewer; never written by the collector.
	Hidden      bool    `json:"hidden"`
	LastVisited *string `json:"last_visited,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// FetchLog records how many results one tile returned.
type FetchLog struct {
	RunID     string    `json:"run_id"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Count     int       `json:"count"`
	FetchedAt time.Time `json:"fetched_at"`
}

// HeatCell is the aggregated fetch count for one tile centre.
type HeatCell struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Count int     `json:"count"`
}

// MapsURL returns the Google Maps link for a place ID.
func MapsURL(placeID string) string {
	return mapsURLPrefix + placeID
}

// ToPlace converts a raw result into a storable Place. It fails when the
// result has no identifier or no coordinates.
func (r RawPlace) ToPlace(driveTime *int) (Place, error) {
	if r.PlaceID == "" {
		return Place{}, eris.New("model: place has no place_id")
	}
	if r.Location == nil {
		return Place{}, eris.Errorf("model: place %s has no coordinates", r.PlaceID)
	}
	return Place{
		PlaceID:   r.PlaceID,
		Name:      r.Name,
		Address:   r.Address,
		Lat:       r.Location.Lat,
		Lng:       r.Location.Lng,
		Rating:    r.Rating,
		Category:  r.Category,
		MapsURL:   MapsURL(r.PlaceID),
		DriveTime: driveTime,
	}, nil
}
