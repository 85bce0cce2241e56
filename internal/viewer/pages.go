package viewer

import (
	"embed"
	"errors"
	"html/template"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/places-cli/internal/geo"
	"github.com/sells-group/places-cli/internal/model"
	"github.com/sells-group/places-cli/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.New("").Funcs(template.FuncMap{
	"rating":  formatRating,
	"minutes": formatMinutes,
	"compass": compassPoint,
	"date":    formatDate,
	"stamp":   formatStamp,
}).ParseFS(templateFS, "templates/*.html"))

// dateLayout is the format of last_visited values, as sent by <input type="date">.
const dateLayout = "2006-01-02"

// PlaceRow is a stored place with display values relative to the base location.
type PlaceRow struct {
	model.Place
	DistanceMeters float64 `json:"distance_m"`
	BearingDegrees float64 `json:"bearing_deg"` // clockwise from north
	DriveMinutes   *int    `json:"drive_minutes,omitempty"`
}

func (s *Server) rows(places []model.Place) []PlaceRow {
	out := make([]PlaceRow, len(places))
	for i, p := range places {
		at := model.LatLng{Lat: p.Lat, Lng: p.Lng}
		out[i] = PlaceRow{
			Place:          p,
			DistanceMeters: math.Round(geo.HaversineMeters(s.cfg.Base, at)),
			BearingDegrees: math.Round(geo.BearingDegrees(s.cfg.Base, at)*10) / 10,
		}
		if p.DriveTime != nil {
			m := int(math.Round(float64(*p.DriveTime) / 60))
			out[i].DriveMinutes = &m
		}
	}
	return out
}

type listPage struct {
	Title  string
	Places []PlaceRow
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	places, err := s.store.ListPlaces(r.Context(), store.PlaceFilter{Hidden: store.Bool(false)})
	if err != nil {
		s.serverError(w, "list places", err)
		return
	}
	s.render(w, "index.html", listPage{Title: "レストラン一覧", Places: s.rows(places)})
}

func (s *Server) handleRandom(w http.ResponseWriter, r *http.Request) {
	places, err := s.store.RandomPlaces(r.Context(), RandomPicks)
	if err != nil {
		s.serverError(w, "random places", err)
		return
	}
	s.render(w, "random.html", listPage{Title: "ランダム" + strconv.Itoa(RandomPicks) + "件", Places: s.rows(places)})
}

func (s *Server) handleHidden(w http.ResponseWriter, r *http.Request) {
	places, err := s.store.ListPlaces(r.Context(), store.PlaceFilter{Hidden: store.Bool(true)})
	if err != nil {
		s.serverError(w, "list hidden places", err)
		return
	}
	s.render(w, "hidden.html", listPage{Title: "非表示レストラン", Places: s.rows(places)})
}

type heatmapPage struct {
	Base   model.LatLng
	Radius int
	APIKey string
	Cells  []model.HeatCell
}

func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	if s.cfg.MapsAPIKey == "" {
		http.Error(w, "heatmap requires a Google Maps API key (API_KEY)", http.StatusServiceUnavailable)
		return
	}
	cells, err := s.store.HeatCells(r.Context())
	if err != nil {
		s.serverError(w, "heat cells", err)
		return
	}
	if cells == nil {
		cells = []model.HeatCell{}
	}
	s.render(w, "heatmap.html", heatmapPage{
		Base:   s.cfg.Base,
		Radius: s.cfg.Radius,
		APIKey: s.cfg.MapsAPIKey,
		Cells:  cells,
	})
}

func (s *Server) handleHide(w http.ResponseWriter, r *http.Request) {
	s.setHidden(w, r, true, "/")
}

func (s *Server) handleUnhide(w http.ResponseWriter, r *http.Request) {
	s.setHidden(w, r, false, "/hidden")
}

func (s *Server) setHidden(w http.ResponseWriter, r *http.Request, hidden bool, next string) {
	placeID := chi.URLParam(r, "placeID")
	if err := s.store.SetHidden(r.Context(), placeID, hidden); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		s.serverError(w, "set hidden", err)
		return
	}
	s.log.Info("place visibility changed", zap.String("place_id", placeID), zap.Bool("hidden", hidden))
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (s *Server) handleUpdateLastVisited(w http.ResponseWriter, r *http.Request) {
	placeID := chi.URLParam(r, "placeID")
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	date := strings.TrimSpace(r.PostForm.Get("last_visited"))
	if date != "" {
		if _, err := time.Parse(dateLayout, date); err != nil {
			http.Error(w, "last_visited must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}

	if err := s.store.SetLastVisited(r.Context(), placeID, &date); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		s.serverError(w, "set last visited", err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		s.log.Error("render template", zap.String("template", name), zap.Error(err))
	}
}

func (s *Server) serverError(w http.ResponseWriter, op string, err error) {
	s.log.Error("viewer: "+op, zap.Error(err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func formatRating(r *float64) string {
	if r == nil {
		return ""
	}
	return strconv.FormatFloat(*r, 'f', 1, 64)
}

var compassPoints = [...]string{"北", "北東", "東", "南東", "南", "南西", "西", "北西"}

// compassPoint names the eight-wind direction of a bearing in degrees.
func compassPoint(deg float64) string {
	i := int(math.Round(math.Mod(deg, 360)/45)) % len(compassPoints)
	if i < 0 {
		i += len(compassPoints)
	}
	return compassPoints[i]
}

func formatMinutes(m *int) string {
	if m == nil {
		return ""
	}
	return strconv.Itoa(*m)
}

func formatDate(d *string) string {
	if d == nil {
		return ""
	}
	return *d
}

func formatStamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(store.TimeFormat)
}
