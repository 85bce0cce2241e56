package viewer

import (
	"encoding/json"
	"html/template"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/places-cli/internal/model"
)

// StaticZoom is the initial zoom of the standalone heatmap.
const StaticZoom = 12

type staticHeatmapPage struct {
	Base     model.LatLng
	Zoom     int
	Features template.JS
}

// WriteHeatmap renders a self-contained Leaflet heatmap of every place
// location, centred on base.
func WriteHeatmap(w io.Writer, base model.LatLng, places []model.Place) error {
	features, err := json.Marshal(PlaceFeatures(places))
	if err != nil {
		return eris.Wrap(err, "viewer: encode place features")
	}

	err = pages.ExecuteTemplate(w, "static_heatmap.html", staticHeatmapPage{
		Base:     base,
		Zoom:     StaticZoom,
		Features: template.JS(features), //nolint:gosec // marshaled JSON
	})
	return eris.Wrap(err, "viewer: render heatmap")
}
