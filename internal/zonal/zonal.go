// Package zonal turns a classified raster and an area-of-interest polygon
// into per-class counts, hectares and percentages.
package zonal

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/rotisserie/eris"

	"github.com/emberwatch/burnsight/internal/raster"
	"github.com/emberwatch/burnsight/internal/severity"
)

// AOI is an analysis polygon in a declared CRS, immutable for the run.
type AOI struct {
	Name     string
	Geometry orb.MultiPolygon
	CRS      string
}

// EmptyAreaError reports a clip that left no valid pixels to aggregate.
type EmptyAreaError struct {
	AOI  string
	Grid raster.Grid
}

func (e *EmptyAreaError) Error() string {
	return fmt.Sprintf("zonal: area %q clips to zero valid pixels on a %dx%d grid", e.AOI, e.Grid.Width, e.Grid.Height)
}

// ClassStat is the aggregate for one severity class.
type ClassStat struct {
	Class      severity.Class `csv:"-" json:"-"`
	Name       string         `csv:"class" json:"class"`
	PixelCount int            `csv:"pixel_count" json:"pixel_count"`
	AreaHa     float64        `csv:"area_ha" json:"area_ha"`
	// Percent is the share of all clipped valid pixels, Unclassified
	// included, so the report closes to 100%.
	Percent float64 `csv:"percent" json:"percent"`
	// PercentOfClassified uses only successfully classified pixels as the
	// base; zero for the Unclassified row.
	PercentOfClassified float64 `csv:"percent_of_classified" json:"percent_of_classified"`
}

// Statistics is the aggregation result, classes in canonical severity order
// with the Unclassified share reported last.
type Statistics struct {
	Classes          []ClassStat `json:"classes"`
	TotalPixels      int         `json:"total_pixels"`      // valid pixels inside the clip
	ClassifiedPixels int         `json:"classified_pixels"` // total minus unclassified
	TotalAreaHa      float64     `json:"total_area_ha"`
	PixelAreaM2      float64     `json:"pixel_area_m2"`
}

// Options tune the aggregation boundary.
type Options struct {
	// FoldGreening merges UnburnedVeryLow (apparent vegetation greening)
	// into UnburnedLow for summary reporting.
	FoldGreening bool
	// Transformer reprojects the AOI onto the raster's CRS when they
	// differ. Nil requires matching CRSs.
	Transformer raster.CRSTransformer
}

// Aggregate clips the classified raster to the polygon by pixel-center
// containment, counts pixels per class and converts counts to hectares with
// the grid's ground pixel area. Pixels outside the polygon are excluded, not
// zeroed.
func Aggregate(cr *severity.ClassifiedRaster, aoi AOI, opts Options) (*Statistics, error) {
	geom, err := projectAOI(aoi, cr.Grid.CRS, opts.Transformer)
	if err != nil {
		return nil, err
	}

	counts := make(map[severity.Class]int)
	total := 0
	for row := 0; row < cr.Grid.Height; row++ {
		for col := 0; col < cr.Grid.Width; col++ {
			x, y := cr.Grid.PixelToGeo(col, row)
			if !planar.MultiPolygonContains(geom, orb.Point{x, y}) {
				continue
			}
			total++
			counts[cr.Classes[row*cr.Grid.Width+col]]++
		}
	}
	if total == 0 {
		return nil, &EmptyAreaError{AOI: aoi.Name, Grid: cr.Grid}
	}

	if opts.FoldGreening {
		counts[severity.UnburnedLow] += counts[severity.UnburnedVeryLow]
		delete(counts, severity.UnburnedVeryLow)
	}

	classified := total - counts[severity.Unclassified]
	pixelArea := cr.Grid.GroundPixelArea()

	order := severity.Classes()
	if opts.FoldGreening {
		order = order[1:]
	}
	order = append(order, severity.Unclassified)

	stats := &Statistics{
		TotalPixels:      total,
		ClassifiedPixels: classified,
		TotalAreaHa:      float64(total) * pixelArea / 10_000,
		PixelAreaM2:      pixelArea,
	}
	for _, class := range order {
		n := counts[class]
		stat := ClassStat{
			Class:      class,
			Name:       class.String(),
			PixelCount: n,
			AreaHa:     float64(n) * pixelArea / 10_000,
			Percent:    100 * float64(n) / float64(total),
		}
		if class != severity.Unclassified && classified > 0 {
			stat.PercentOfClassified = 100 * float64(n) / float64(classified)
		}
		stats.Classes = append(stats.Classes, stat)
	}
	return stats, nil
}

// projectAOI returns the AOI geometry in the target CRS.
func projectAOI(aoi AOI, crs string, tr raster.CRSTransformer) (orb.MultiPolygon, error) {
	if aoi.CRS == crs {
		return aoi.Geometry, nil
	}
	if tr == nil {
		return nil, eris.Errorf("zonal: area %q is in %s but the raster is in %s and no transformer was given",
			aoi.Name, aoi.CRS, crs)
	}
	out := make(orb.MultiPolygon, len(aoi.Geometry))
	for pi, polygon := range aoi.Geometry {
		out[pi] = make(orb.Polygon, len(polygon))
		for ri, ring := range polygon {
			xs := make([]float64, len(ring))
			ys := make([]float64, len(ring))
			for i, pt := range ring {
				xs[i], ys[i] = pt[0], pt[1]
			}
			if err := tr.Transform(aoi.CRS, crs, xs, ys); err != nil {
				return nil, eris.Wrapf(err, "zonal: reproject area %q", aoi.Name)
			}
			newRing := make(orb.Ring, len(ring))
			for i := range ring {
				newRing[i] = orb.Point{xs[i], ys[i]}
			}
			out[pi][ri] = newRing
		}
	}
	return out, nil
}
