// Package domain models the radar client's view of the hail-radar backend.
//
// # Frames
//
// The backend publishes two ordered image lists: observed ("input") radar
// frames and model-generated ("prediction") frames. Each frame carries a
// georeferenced raster URL, a two-corner bounding box and, optionally, the
// storm cells the backend detected in it:
//
//	{"url": "...", "bounds": [[lat, lon], [lat, lon]], "target_time": "2025-06-01T14:05:00Z",
//	 "cells": [{"lat": 47.1, "lon": 8.4, "max_dbz": 55, "type": "hail"}]}
//
// Whether a frame is observed or predicted is decided by the list it arrived
// in, never by its content. Frames are immutable once received.
//
// # Reflectivity
//
// Storm severity is expressed in dBZ. Cells are bucketed for display:
//
//	>= 60  severe          purple
//	>= 50  hail-probable   red
//	>= 40  strong          orange
//	>= 30  moderate        yellow
//	else   weak            blue
//
// # Proximity
//
// Distances are great-circle (Haversine) with a mean Earth radius of 6371 km.
// A nearest storm is reported only when the closest cell of the newest
// observed frame lies within the alert radius (50 km by default, inclusive)
// and its reflectivity is strictly above 50 dBZ.
//
// # Freshness
//
// The feed is considered offline when the newest observed frame's target time
// is more than 15 minutes behind the wall clock. See [IsOffline].
package domain
