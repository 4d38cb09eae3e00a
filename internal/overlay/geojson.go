package overlay

import (
	geojson "github.com/paulmach/go.geojson"
)

// FeatureCollection renders the visible vector content of the scene as
// GeoJSON. Raster and tile layers have no vector form and are described by
// a single polygon feature for the raster footprint. Coordinates are [lon, lat].
func (s Scene) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, l := range s.Layers {
		if !l.Visible {
			continue
		}
		if r := l.Raster; r != nil {
			f := geojson.NewPolygonFeature([][][]float64{{
				{r.West, r.South}, {r.East, r.South}, {r.East, r.North}, {r.West, r.North}, {r.West, r.South},
			}})
			f.ID = l.ID
			f.SetProperty("layer", l.ID)
			f.SetProperty("url", r.URL)
			f.SetProperty("prediction", r.Prediction)
			f.SetProperty("opacity", r.Opacity)
			fc.AddFeature(f)
		}
		for _, m := range l.Markers {
			f := geojson.NewPointFeature([]float64{m.Lon, m.Lat})
			f.ID = m.ID
			f.SetProperty("layer", l.ID)
			f.SetProperty("color", m.Color)
			f.SetProperty("radius", m.Radius)
			if m.Label != "" {
				f.SetProperty("label", m.Label)
			}
			if m.Rotation != 0 {
				f.SetProperty("rotation", m.Rotation)
			}
			fc.AddFeature(f)
		}
		for _, ln := range l.Lines {
			coords := make([][]float64, len(ln.Points))
			for i, p := range ln.Points {
				coords[i] = []float64{p[1], p[0]}
			}
			f := geojson.NewLineStringFeature(coords)
			f.ID = ln.ID
			f.SetProperty("layer", l.ID)
			f.SetProperty("color", ln.Color)
			f.SetProperty("dashed", ln.Dashed)
			if ln.Label != "" {
				f.SetProperty("label", ln.Label)
			}
			fc.AddFeature(f)
		}
	}
	return fc
}
