package domain

import (
	"strings"
	"time"
)

// StormCell is one radar reflectivity core detected by the backend.
type StormCell struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	MaxDBZ float64 `json:"max_dbz"`
	Type   string  `json:"type,omitempty"`
}

// Bounds holds two opposite corners of a frame as [lat, lon] pairs.
type Bounds [2][2]float64

// Rect returns the axis-aligned rectangle spanned by the two corners as
// (south, west, north, east). Skewed quadrilaterals are not representable.
func (b Bounds) Rect() (south, west, north, east float64) {
	south = min(b[0][0], b[1][0])
	north = max(b[0][0], b[1][0])
	west = min(b[0][1], b[1][1])
	east = max(b[0][1], b[1][1])
	return south, west, north, east
}

// Contains reports whether the point lies inside the bounding rectangle.
func (b Bounds) Contains(lat, lon float64) bool {
	s, w, n, e := b.Rect()
	return lat >= s && lat <= n && lon >= w && lon <= e
}

// Frame is one radar image, observed or predicted.
type Frame struct {
	URL        string      `json:"url"`
	Bounds     Bounds      `json:"bounds"`
	TargetTime string      `json:"target_time,omitempty"`
	Cells      []StormCell `json:"cells,omitempty"`
}

// Time parses TargetTime. Timestamps without a zone are taken as UTC.
func (f Frame) Time() (time.Time, bool) {
	return parseISO(f.TargetTime)
}

// ImageSet is the payload of GET /api/images.
type ImageSet struct {
	InputImages      []Frame `json:"input_images"`
	PredictionImages []Frame `json:"prediction_images"`
}

// LatestObserved returns the newest observed frame. Upstream ordering is
// trusted, so this is the last entry of the input list.
func (s ImageSet) LatestObserved() (Frame, bool) {
	if len(s.InputImages) == 0 {
		return Frame{}, false
	}
	return s.InputImages[len(s.InputImages)-1], true
}

// Status is the payload of GET /api/status.
type Status struct {
	Status            string `json:"status"`
	FilesInBuffer     *int   `json:"files_in_buffer,omitempty"`
	FilesNeededForRun *int   `json:"files_needed_for_run,omitempty"`
	LastUpdate        string `json:"last_update,omitempty"`
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseISO(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
