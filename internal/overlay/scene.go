// Package overlay describes what the map should draw for a given state. It
// produces plain layer descriptions (and GeoJSON) rather than driving a map
// widget, so any front end can render them.
package overlay

import (
	"fmt"

	"github.com/couchcryptid/storm-radar-watch/internal/domain"
)

// Layer IDs in draw order, bottom to top.
const (
	LayerSatellite = "satellite"
	LayerRadar     = "radar"
	LayerReports   = "reports"
	LayerCells     = "storm-cells"
	LayerTrails    = "aircraft-trails"
	LayerAircraft  = "aircraft"
	LayerNearest   = "nearest-storm"
	LayerUser      = "user-location"
)

const (
	observedOpacity   = 0.7
	predictionOpacity = 0.45
	userColor         = "#2563eb"
	nearestLineColor  = "#dc2626"
)

var reportColors = map[string]string{
	domain.ReportHail:    "#a855f7",
	domain.ReportRain:    "#3b82f6",
	domain.ReportWind:    "#14b8a6",
	domain.ReportTornado: "#ef4444",
	domain.ReportClear:   "#facc15",
	domain.ReportOther:   "#6b7280",
}

// ReportColor returns the marker color for a report type.
func ReportColor(reportType string) string {
	if c, ok := reportColors[reportType]; ok {
		return c
	}
	return reportColors[domain.ReportOther]
}

// Raster is a georeferenced image stretched over an axis-aligned rectangle.
type Raster struct {
	URL        string  `json:"url"`
	South      float64 `json:"south"`
	West       float64 `json:"west"`
	North      float64 `json:"north"`
	East       float64 `json:"east"`
	Prediction bool    `json:"prediction"`
	Opacity    float64 `json:"opacity"`
}

// Tiles is an XYZ tile source.
type Tiles struct {
	URLTemplate string `json:"url_template"`
}

// Marker is a styled point.
type Marker struct {
	ID       string  `json:"id"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Color    string  `json:"color"`
	Radius   float64 `json:"radius"`
	Label    string  `json:"label,omitempty"`
	Rotation float64 `json:"rotation,omitempty"`
}

// Line is a styled polyline of [lat, lon] points.
type Line struct {
	ID     string       `json:"id"`
	Points [][2]float64 `json:"points"`
	Color  string       `json:"color"`
	Dashed bool         `json:"dashed,omitempty"`
	Label  string       `json:"label,omitempty"`
}

// Layer is one drawable group.
type Layer struct {
	ID      string   `json:"id"`
	Visible bool     `json:"visible"`
	Raster  *Raster  `json:"raster,omitempty"`
	Tiles   *Tiles   `json:"tiles,omitempty"`
	Markers []Marker `json:"markers,omitempty"`
	Lines   []Line   `json:"lines,omitempty"`
}

// Scene is the full overlay stack.
type Scene struct {
	Layers []Layer `json:"layers"`
}

// Layer returns the layer with id.
func (s Scene) Layer(id string) (Layer, bool) {
	for _, l := range s.Layers {
		if l.ID == id {
			return l, true
		}
	}
	return Layer{}, false
}

// Input is everything the renderer needs.
type Input struct {
	Frame        *domain.Frame
	Prediction   bool
	Reports      []domain.WeatherReport
	Location     *domain.UserLocation
	Nearest      *domain.NearestStorm
	Aircraft     []domain.Aircraft
	Trails       map[string][][2]float64
	Satellite    bool
	SatelliteURL string
	Zoom         float64
}

// Build derives the scene from in. Layers are always present so clients can
// keep stable references; empty ones are marked invisible.
func Build(in Input) Scene {
	return Scene{Layers: []Layer{
		satelliteLayer(in),
		radarLayer(in),
		reportLayer(in.Reports),
		cellLayer(in.Frame),
		trailLayer(in.Trails),
		aircraftLayer(in.Aircraft, in.Zoom),
		nearestLayer(in.Location, in.Nearest),
		userLayer(in.Location),
	}}
}

func satelliteLayer(in Input) Layer {
	l := Layer{ID: LayerSatellite, Visible: in.Satellite && in.SatelliteURL != ""}
	if in.SatelliteURL != "" {
		l.Tiles = &Tiles{URLTemplate: in.SatelliteURL}
	}
	return l
}

func radarLayer(in Input) Layer {
	if in.Frame == nil || in.Frame.URL == "" {
		return Layer{ID: LayerRadar}
	}
	south, west, north, east := in.Frame.Bounds.Rect()
	opacity := observedOpacity
	if in.Prediction {
		opacity = predictionOpacity
	}
	return Layer{
		ID:      LayerRadar,
		Visible: true,
		Raster: &Raster{
			URL:        in.Frame.URL,
			South:      south,
			West:       west,
			North:      north,
			East:       east,
			Prediction: in.Prediction,
			Opacity:    opacity,
		},
	}
}

func reportLayer(reports []domain.WeatherReport) Layer {
	l := Layer{ID: LayerReports, Visible: len(reports) > 0}
	for _, r := range reports {
		l.Markers = append(l.Markers, Marker{
			ID:     "report-" + r.ID,
			Lat:    r.Lat,
			Lon:    r.Lon,
			Color:  ReportColor(r.Type),
			Radius: 6,
			Label:  r.Type,
		})
	}
	return l
}

func cellLayer(frame *domain.Frame) Layer {
	l := Layer{ID: LayerCells}
	if frame == nil {
		return l
	}
	for i, c := range frame.Cells {
		in := domain.ClassifyReflectivity(c.MaxDBZ)
		l.Markers = append(l.Markers, Marker{
			ID:     fmt.Sprintf("cell-%d", i),
			Lat:    c.Lat,
			Lon:    c.Lon,
			Color:  in.Color,
			Radius: cellRadius(c.MaxDBZ),
			Label:  fmt.Sprintf("%.0f dBZ", c.MaxDBZ),
		})
	}
	l.Visible = len(l.Markers) > 0
	return l
}

// cellRadius grows with reflectivity between 4 and 14 px.
func cellRadius(dbz float64) float64 {
	return min(max(4+(dbz-20)/4, 4), 14)
}

func nearestLayer(loc *domain.UserLocation, n *domain.NearestStorm) Layer {
	if loc == nil || n == nil {
		return Layer{ID: LayerNearest}
	}
	return Layer{
		ID:      LayerNearest,
		Visible: true,
		Lines: []Line{{
			ID:     "nearest-storm",
			Points: [][2]float64{{loc.Lat, loc.Lon}, {n.Cell.Lat, n.Cell.Lon}},
			Color:  nearestLineColor,
			Dashed: true,
			Label:  fmt.Sprintf("%.1f km", n.DistanceKm),
		}},
	}
}

func userLayer(loc *domain.UserLocation) Layer {
	if loc == nil {
		return Layer{ID: LayerUser}
	}
	return Layer{
		ID:      LayerUser,
		Visible: true,
		Markers: []Marker{{ID: "user", Lat: loc.Lat, Lon: loc.Lon, Color: userColor, Radius: 8}},
	}
}
