package domain

// Intensity is the display bucket for a reflectivity value.
type Intensity struct {
	Level string `json:"level"`
	Color string `json:"color"`
}

var (
	IntensitySevere       = Intensity{Level: "severe", Color: "#9333ea"}
	IntensityHailProbable = Intensity{Level: "hail-probable", Color: "#dc2626"}
	IntensityStrong       = Intensity{Level: "strong", Color: "#f97316"}
	IntensityModerate     = Intensity{Level: "moderate", Color: "#eab308"}
	IntensityWeak         = Intensity{Level: "weak", Color: "#3b82f6"}
)

// ClassifyReflectivity buckets a dBZ value. Thresholds are inclusive lower bounds.
func ClassifyReflectivity(dbz float64) Intensity {
	switch {
	case dbz >= 60:
		return IntensitySevere
	case dbz >= 50:
		return IntensityHailProbable
	case dbz >= 40:
		return IntensityStrong
	case dbz >= 30:
		return IntensityModerate
	default:
		return IntensityWeak
	}
}
