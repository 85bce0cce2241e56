package viewer

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/places-cli/internal/model"
	"github.com/sells-group/places-cli/internal/store"
)

const maxRandom = 50

// GET /api/places?hidden=0|1|all
func (s *Server) handleAPIPlaces(w http.ResponseWriter, r *http.Request) {
	filter := store.PlaceFilter{}
	switch r.URL.Query().Get("hidden") {
	case "", "0", "false":
		filter.Hidden = store.Bool(false)
	case "1", "true":
		filter.Hidden = store.Bool(true)
	case "all":
	default:
		writeError(w, http.StatusBadRequest, "hidden must be 0, 1 or all")
		return
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	places, err := s.store.ListPlaces(r.Context(), filter)
	if err != nil {
		s.log.Error("api: list places", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list places")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  s.rows(places),
		"total": len(places),
	})
}

// GET /api/places/{placeID}
func (s *Server) handleAPIPlace(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetPlace(r.Context(), chi.URLParam(r, "placeID"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "place not found")
		return
	}
	if err != nil {
		s.log.Error("api: get place", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get place")
		return
	}
	writeJSON(w, http.StatusOK, s.rows([]model.Place{*p})[0])
}

// GET /api/random?n=3
func (s *Server) handleAPIRandom(w http.ResponseWriter, r *http.Request) {
	n := RandomPicks
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > maxRandom {
			writeError(w, http.StatusBadRequest, "n must be between 1 and 50")
			return
		}
		n = parsed
	}

	places, err := s.store.RandomPlaces(r.Context(), n)
	if err != nil {
		s.log.Error("api: random places", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to pick places")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  s.rows(places),
		"total": len(places),
	})
}

// GET /api/heatmap returns the summed fetch counts per tile as GeoJSON points.
func (s *Server) handleAPIHeatmap(w http.ResponseWriter, r *http.Request) {
	cells, err := s.store.HeatCells(r.Context())
	if err != nil {
		s.log.Error("api: heat cells", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load heatmap")
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	if err := json.NewEncoder(w).Encode(HeatCellFeatures(cells)); err != nil {
		s.log.Error("api: encode heatmap", zap.Error(err))
	}
}

// HeatCellFeatures converts heat cells to a GeoJSON feature collection with a
// "count" property per point.
func HeatCellFeatures(cells []model.HeatCell) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(cells))}
	for _, c := range cells {
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   point(c.Lat, c.Lng),
			Properties: map[string]any{"count": c.Count},
		})
	}
	return fc
}

// PlaceFeatures converts places to a GeoJSON feature collection keyed by
// place_id.
func PlaceFeatures(places []model.Place) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(places))}
	for _, p := range places {
		props := map[string]any{"name": p.Name}
		if p.Rating != nil {
			props["rating"] = *p.Rating
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         p.PlaceID,
			Geometry:   point(p.Lat, p.Lng),
			Properties: props,
		})
	}
	return fc
}

// GeoJSON positions are longitude first.
func point(lat, lng float64) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{lng, lat}).SetSRID(4326)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
