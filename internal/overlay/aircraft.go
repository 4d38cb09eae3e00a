package overlay

import (
	"fmt"
	"hash/fnv"
	"sort"
	"sync"

	"github.com/couchcryptid/storm-radar-watch/internal/domain"
)

// DefaultMaxTrailPoints bounds each aircraft's trail.
const DefaultMaxTrailPoints = 30

// Trails accumulates recent positions per callsign.
type Trails struct {
	mu     sync.Mutex
	max    int
	latest []domain.Aircraft
	points map[string][][2]float64
}

// NewTrails creates a tracker keeping at most maxPoints per aircraft.
func NewTrails(maxPoints int) *Trails {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxTrailPoints
	}
	return &Trails{max: maxPoints, points: map[string][][2]float64{}}
}

// Update records a new batch of positions. Aircraft missing from the batch
// lose their trail.
func (t *Trails) Update(aircraft []domain.Aircraft) {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[string]bool, len(aircraft))
	for _, a := range aircraft {
		seen[a.Callsign] = true
		p := [2]float64{a.Lat, a.Lon}
		trail := t.points[a.Callsign]
		if n := len(trail); n > 0 && trail[n-1] == p {
			continue
		}
		trail = append(trail, p)
		if len(trail) > t.max {
			trail = trail[len(trail)-t.max:]
		}
		t.points[a.Callsign] = trail
	}
	for cs := range t.points {
		if !seen[cs] {
			delete(t.points, cs)
		}
	}
	t.latest = append([]domain.Aircraft(nil), aircraft...)
}

// Latest returns the most recent batch.
func (t *Trails) Latest() []domain.Aircraft {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.Aircraft(nil), t.latest...)
}

// Snapshot returns a copy of every trail.
func (t *Trails) Snapshot() map[string][][2]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string][][2]float64, len(t.points))
	for cs, trail := range t.points {
		out[cs] = append([][2]float64(nil), trail...)
	}
	return out
}

// CallsignColor returns a stable color for a callsign.
func CallsignColor(callsign string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(callsign))
	return fmt.Sprintf("hsl(%d, 70%%, 45%%)", h.Sum32()%360)
}

// MarkerScale maps a map zoom level to a marker size multiplier: 0.6 at
// zoom 6 and below, 1.4 at zoom 12 and above, linear in between.
func MarkerScale(zoom float64) float64 {
	const (
		lowZoom, highZoom   = 6.0, 12.0
		lowScale, highScale = 0.6, 1.4
	)
	switch {
	case zoom <= lowZoom:
		return lowScale
	case zoom >= highZoom:
		return highScale
	}
	return lowScale + (zoom-lowZoom)/(highZoom-lowZoom)*(highScale-lowScale)
}

func aircraftLayer(aircraft []domain.Aircraft, zoom float64) Layer {
	l := Layer{ID: LayerAircraft, Visible: len(aircraft) > 0}
	scale := MarkerScale(zoom)
	for _, a := range aircraft {
		l.Markers = append(l.Markers, Marker{
			ID:       "aircraft-" + a.Callsign,
			Lat:      a.Lat,
			Lon:      a.Lon,
			Color:    CallsignColor(a.Callsign),
			Radius:   5 * scale,
			Label:    a.Callsign,
			Rotation: a.Heading,
		})
	}
	return l
}

func trailLayer(trails map[string][][2]float64) Layer {
	callsigns := make([]string, 0, len(trails))
	for cs, trail := range trails {
		if len(trail) >= 2 {
			callsigns = append(callsigns, cs)
		}
	}
	sort.Strings(callsigns)

	l := Layer{ID: LayerTrails, Visible: len(callsigns) > 0}
	for _, cs := range callsigns {
		l.Lines = append(l.Lines, Line{
			ID:     "trail-" + cs,
			Points: trails[cs],
			Color:  CallsignColor(cs),
		})
	}
	return l
}
