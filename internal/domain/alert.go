package domain

import (
	"errors"
	"time"
)

// ErrDegraded marks a result served from fallback data instead of the backend.
// Callers may still use the accompanying value.
var ErrDegraded = errors.New("serving fallback data")

// ProximityAlert announces that a severe cell entered the alert radius.
type ProximityAlert struct {
	ID         string       `json:"id"`
	DistanceKm float64      `json:"distance_km"`
	Cell       StormCell    `json:"cell"`
	Location   UserLocation `json:"location"`
	Intensity  Intensity    `json:"intensity"`
	DetectedAt time.Time    `json:"detected_at"`
}
