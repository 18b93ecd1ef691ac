package zonal

import (
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/rotisserie/eris"
)

// LoadAOI reads an AOI from a GeoJSON feature collection. With a non-empty
// name, the feature whose "name" property matches is chosen; otherwise the
// first polygonal feature wins. Coordinates are taken as EPSG:4326, the
// GeoJSON default.
func LoadAOI(path, name string) (AOI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AOI{}, eris.Wrapf(err, "zonal: read %s", path)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return AOI{}, eris.Wrapf(err, "zonal: parse %s", path)
	}

	for _, feature := range fc.Features {
		if name != "" {
			featName, _ := feature.Properties["name"].(string)
			if featName != name {
				continue
			}
		}
		geom, ok := toMultiPolygon(feature.Geometry)
		if !ok {
			continue
		}
		label := name
		if label == "" {
			label, _ = feature.Properties["name"].(string)
		}
		return AOI{Name: label, Geometry: geom, CRS: "EPSG:4326"}, nil
	}
	return AOI{}, eris.Errorf("zonal: no polygon feature %q in %s", name, path)
}

// BBoxAOI builds a rectangular AOI from [west, south, east, north] bounds.
func BBoxAOI(name string, bounds [4]float64, crs string) AOI {
	ring := orb.Ring{
		{bounds[0], bounds[1]},
		{bounds[2], bounds[1]},
		{bounds[2], bounds[3]},
		{bounds[0], bounds[3]},
		{bounds[0], bounds[1]},
	}
	return AOI{Name: name, Geometry: orb.MultiPolygon{orb.Polygon{ring}}, CRS: crs}
}

// Centroid returns the area-weighted centroid of the AOI.
func (a AOI) Centroid() orb.Point {
	centroid, _ := planar.CentroidArea(a.Geometry)
	return centroid
}

// Bounds returns the AOI extent as [minX, minY, maxX, maxY].
func (a AOI) Bounds() [4]float64 {
	b := a.Geometry.Bound()
	return [4]float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
}

func toMultiPolygon(g orb.Geometry) (orb.MultiPolygon, bool) {
	switch geom := g.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{geom}, true
	case orb.MultiPolygon:
		return geom, true
	default:
		return nil, false
	}
}
