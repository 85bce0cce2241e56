// Package viewer serves the browsing UI and JSON API over the place store.
package viewer

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/places-cli/internal/model"
	"github.com/sells-group/places-cli/internal/store"
)

// RandomPicks is the number of places shown on the random page.
const RandomPicks = 3

// Store is the subset of the persistence layer the viewer reads and updates.
type Store interface {
	GetPlace(ctx context.Context, placeID string) (*model.Place, error)
	ListPlaces(ctx context.Context, filter store.PlaceFilter) ([]model.Place, error)
	RandomPlaces(ctx context.Context, n int) ([]model.Place, error)
	HeatCells(ctx context.Context) ([]model.HeatCell, error)
	SetHidden(ctx context.Context, placeID string, hidden bool) error
	SetLastVisited(ctx context.Context, placeID string, date *string) error
}

// Config holds the viewer settings.
type Config struct {
	Base           model.LatLng
	Radius         int    // search radius, drawn around heatmap cells
	MapsAPIKey     string // Maps JavaScript key for the heatmap page
	AllowedOrigins []string
}

// Server renders pages and API responses from a Store.
type Server struct {
	store Store
	cfg   Config
	log   *zap.Logger
}

// New creates a Server.
func New(st Store, cfg Config) *Server {
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	return &Server{
		store: st,
		cfg:   cfg,
		log:   zap.L().With(zap.String("component", "viewer")),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/", s.handleIndex)
	r.Get("/random", s.handleRandom)
	r.Get("/hidden", s.handleHidden)
	r.Get("/heatmap", s.handleHeatmap)
	r.Post("/hide/{placeID}", s.handleHide)
	r.Post("/unhide/{placeID}", s.handleUnhide)
	r.Post("/update_last_visited/{placeID}", s.handleUpdateLastVisited)

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
		r.Get("/places", s.handleAPIPlaces)
		r.Get("/places/{placeID}", s.handleAPIPlace)
		r.Get("/random", s.handleAPIRandom)
		r.Get("/heatmap", s.handleAPIHeatmap)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.Debug("request completed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
