package domain

import "time"

// Report types accepted by the backend.
const (
	ReportHail    = "hail"
	ReportRain    = "rain"
	ReportWind    = "wind"
	ReportTornado = "tornado"
	ReportClear   = "clear"
	ReportOther   = "other"
)

// WeatherReport is one crowdsourced ground observation.
type WeatherReport struct {
	ID          string    `json:"id"`
	Lat         float64   `json:"latitude"`
	Lon         float64   `json:"longitude"`
	Type        string    `json:"report_type"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UserName    string    `json:"username,omitempty"`
}

// NewReport is the body of POST /api/reports.
type NewReport struct {
	Lat         float64 `json:"latitude"`
	Lon         float64 `json:"longitude"`
	Type        string  `json:"report_type"`
	Description string  `json:"description,omitempty"`
}

// Valid reports whether the report carries a known type and sane coordinates.
func (r NewReport) Valid() bool {
	switch r.Type {
	case ReportHail, ReportRain, ReportWind, ReportTornado, ReportClear, ReportOther:
	default:
		return false
	}
	return r.Lat >= -90 && r.Lat <= 90 && r.Lon >= -180 && r.Lon <= 180
}

// Aircraft is one airborne target from the flight feed.
type Aircraft struct {
	ICAO24   string  `json:"icao24"`
	Callsign string  `json:"callsign"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Altitude float64 `json:"altitude"`
	Heading  float64 `json:"heading"`
	Velocity float64 `json:"velocity"`
}
