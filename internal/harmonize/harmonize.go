// Package harmonize aligns index rasters from sensors of differing native
// resolution onto one reference grid so they can be differenced per pixel.
package harmonize

import (
	"fmt"
	"math"

	"github.com/emberwatch/burnsight/internal/index"
	"github.com/emberwatch/burnsight/internal/raster"
)

// Method selects the resampling kernel.
type Method int

const (
	// Bilinear interpolation, for continuous index values.
	Bilinear Method = iota
	// Nearest neighbor, for categorical rasters.
	Nearest
)

// ReprojectionError reports CRS transform parameters that could not be
// resolved.
type ReprojectionError struct {
	SourceCRS string
	TargetCRS string
	Cause     error
}

func (e *ReprojectionError) Error() string {
	return fmt.Sprintf("harmonize: cannot reproject %s to %s: %v", e.SourceCRS, e.TargetCRS, e.Cause)
}

func (e *ReprojectionError) Unwrap() error { return e.Cause }

// ChooseReference picks the grid both branches are harmonized onto when the
// sensors differ: the coarser one, so no detail is invented by upsampling.
func ChooseReference(a, b raster.Grid) raster.Grid {
	if b.GroundPixelArea() > a.GroundPixelArea() {
		return b
	}
	return a
}

// Harmonize resamples an index raster onto the reference grid, reprojecting
// through tr when the CRSs differ. The output grid is identical (origin,
// resolution, pixel count) to any other raster harmonized to the same
// reference, and the computation is bit-for-bit reproducible: plain
// row-major iteration, no randomized sampling.
func Harmonize(ir *index.IndexRaster, ref raster.Grid, tr raster.CRSTransformer) (*index.IndexRaster, error) {
	if ir.Grid.Equal(ref) {
		out := *ir
		out.Values = append([]float64(nil), ir.Values...)
		return &out, nil
	}
	values, err := resample(ir.Values, ir.Grid, ref, Bilinear, tr)
	if err != nil {
		return nil, err
	}
	return &index.IndexRaster{
		Grid:   ref,
		Kind:   ir.Kind,
		Sensor: ir.Sensor,
		Window: ir.Window,
		Values: values,
	}, nil
}

// Resample maps samples from src onto dst with the given kernel. Exposed for
// categorical rasters, which must use Nearest.
func Resample(samples []float64, src, dst raster.Grid, method Method, tr raster.CRSTransformer) ([]float64, error) {
	return resample(samples, src, dst, method, tr)
}

func resample(samples []float64, src, dst raster.Grid, method Method, tr raster.CRSTransformer) ([]float64, error) {
	if tr == nil {
		tr = raster.IdentityTransformer{}
	}

	// Target pixel centers, transformed into the source CRS row by row.
	out := make([]float64, dst.Width*dst.Height)
	xs := make([]float64, dst.Width)
	ys := make([]float64, dst.Width)
	for row := 0; row < dst.Height; row++ {
		for col := 0; col < dst.Width; col++ {
			xs[col], ys[col] = dst.PixelToGeo(col, row)
		}
		if src.CRS != dst.CRS {
			if err := tr.Transform(dst.CRS, src.CRS, xs, ys); err != nil {
				return nil, &ReprojectionError{SourceCRS: src.CRS, TargetCRS: dst.CRS, Cause: err}
			}
		}
		for col := 0; col < dst.Width; col++ {
			switch method {
			case Nearest:
				out[row*dst.Width+col] = sampleNearest(samples, src, xs[col], ys[col])
			default:
				out[row*dst.Width+col] = sampleBilinear(samples, src, xs[col], ys[col])
			}
		}
	}
	return out, nil
}

// fractionalPixel converts source-CRS coordinates to continuous pixel space
// where integer values sit on pixel centers. North-up grids only.
func fractionalPixel(g raster.Grid, x, y float64) (fx, fy float64) {
	gt := g.GeoTransform
	fx = (x-gt[0])/gt[1] - 0.5
	fy = (y-gt[3])/gt[5] - 0.5
	return fx, fy
}

func sampleNearest(samples []float64, g raster.Grid, x, y float64) float64 {
	fx, fy := fractionalPixel(g, x, y)
	col := int(math.Round(fx))
	row := int(math.Round(fy))
	if col < 0 || col >= g.Width || row < 0 || row >= g.Height {
		return raster.NoData()
	}
	return samples[row*g.Width+col]
}

// sampleBilinear interpolates among the four surrounding pixel centers. Any
// no-data neighbor makes the result no-data: interpolating across a masked
// pixel would manufacture a value the mask said we cannot know.
func sampleBilinear(samples []float64, g raster.Grid, x, y float64) float64 {
	fx, fy := fractionalPixel(g, x, y)
	col0 := int(math.Floor(fx))
	row0 := int(math.Floor(fy))
	col1 := col0 + 1
	row1 := row0 + 1

	// Clamp edge lookups onto the border pixel so the outermost half-pixel
	// band still resolves.
	clampCol := func(c int) int { return min(max(c, 0), g.Width-1) }
	clampRow := func(r int) int { return min(max(r, 0), g.Height-1) }
	if col1 < 0 || col0 >= g.Width || row1 < 0 || row0 >= g.Height {
		return raster.NoData()
	}

	v00 := samples[clampRow(row0)*g.Width+clampCol(col0)]
	v01 := samples[clampRow(row0)*g.Width+clampCol(col1)]
	v10 := samples[clampRow(row1)*g.Width+clampCol(col0)]
	v11 := samples[clampRow(row1)*g.Width+clampCol(col1)]
	if raster.IsNoData(v00) || raster.IsNoData(v01) || raster.IsNoData(v10) || raster.IsNoData(v11) {
		return raster.NoData()
	}

	wx := fx - float64(col0)
	wy := fy - float64(row0)
	top := v00*(1-wx) + v01*wx
	bottom := v10*(1-wx) + v11*wx
	return top*(1-wy) + bottom*wy
}
