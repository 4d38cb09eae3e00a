package domain

import "errors"

// UserLocation is a WGS-84 fix for the user.
type UserLocation struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// LocationErrorKind categorizes a failed location lookup for display.
type LocationErrorKind string

const (
	LocationUnsupported LocationErrorKind = "unsupported"
	LocationDenied      LocationErrorKind = "permission_denied"
	LocationTimeout     LocationErrorKind = "timeout"
)

var (
	// ErrLocationUnsupported means no location source is available.
	ErrLocationUnsupported = errors.New("geolocation unsupported")
	// ErrLocationDenied means the source refused to disclose a position.
	ErrLocationDenied = errors.New("geolocation permission denied")
	// ErrLocationTimeout means no position arrived within the deadline.
	ErrLocationTimeout = errors.New("geolocation timed out")
)

// ClassifyLocationError maps a lookup error to one of the three display
// categories. Anything that is neither unsupported nor denied is reported as
// a timeout: the position could not be determined in time.
func ClassifyLocationError(err error) LocationErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrLocationUnsupported):
		return LocationUnsupported
	case errors.Is(err, ErrLocationDenied):
		return LocationDenied
	default:
		return LocationTimeout
	}
}
