package domain

import "math"

const (
	// EarthRadiusKm is the mean Earth radius used for all distance math.
	EarthRadiusKm = 6371.0

	// DefaultAlertRadiusKm is the inclusive distance limit for a nearest storm.
	DefaultAlertRadiusKm = 50.0

	// SevereDBZ is the exclusive reflectivity floor for a nearest storm.
	SevereDBZ = 50.0
)

// NearestStorm is the closest qualifying cell to the user.
type NearestStorm struct {
	DistanceKm float64   `json:"distance"`
	Cell       StormCell `json:"cell"`
}

// HaversineKm returns the great-circle distance between two points in kilometres.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const rad = math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(a))
}

// FindNearestStorm selects the cell closest to loc and reports it only when it
// lies within radiusKm (inclusive) and exceeds SevereDBZ. A weak cell that is
// closer than a severe one suppresses the report. Returns nil when loc is nil,
// there are no cells, or the closest cell does not qualify.
func FindNearestStorm(loc *UserLocation, cells []StormCell, radiusKm float64) *NearestStorm {
	if loc == nil || len(cells) == 0 {
		return nil
	}

	best := -1
	bestDist := math.Inf(1)
	for i, c := range cells {
		d := HaversineKm(loc.Lat, loc.Lon, c.Lat, c.Lon)
		if d < bestDist {
			best, bestDist = i, d
		}
	}

	if best < 0 || bestDist > radiusKm || cells[best].MaxDBZ <= SevereDBZ {
		return nil
	}
	return &NearestStorm{DistanceKm: bestDist, Cell: cells[best]}
}

// NearestStormFor evaluates the newest observed frame of set. Predicted
// frames never contribute.
func NearestStormFor(loc *UserLocation, set ImageSet, radiusKm float64) *NearestStorm {
	latest, ok := set.LatestObserved()
	if !ok {
		return nil
	}
	return FindNearestStorm(loc, latest.Cells, radiusKm)
}
