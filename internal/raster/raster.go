package raster

import (
	"fmt"
	"math"
	"time"
)

// metersPerDegree is the approximate ground distance of one degree of
// latitude, used to convert geographic pixel sizes to ground area.
const metersPerDegree = 111_000.0

// NoData marks a pixel whose value is unknown or excluded. It is NaN so that
// it can never be confused with a valid zero sample.
func NoData() float64 { return math.NaN() }

// IsNoData reports whether v is the no-data sentinel.
func IsNoData(v float64) bool { return math.IsNaN(v) }

// Window is an inclusive acquisition date range.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w Window) String() string {
	return fmt.Sprintf("%s..%s", w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"))
}

// Grid describes the georeferencing of a raster: pixel dimensions, the GDAL
// six-element affine geotransform and the coordinate reference system.
type Grid struct {
	Width        int
	Height       int
	GeoTransform [6]float64
	CRS          string
}

// Equal reports whether two grids are pixel-for-pixel aligned: same
// dimensions, same geotransform and same CRS.
func (g Grid) Equal(o Grid) bool {
	return g.Width == o.Width && g.Height == o.Height &&
		g.GeoTransform == o.GeoTransform && g.CRS == o.CRS
}

// SameShape reports whether two grids have identical pixel dimensions.
func (g Grid) SameShape(o Grid) bool {
	return g.Width == o.Width && g.Height == o.Height
}

// ResolutionX returns the pixel width in CRS units.
func (g Grid) ResolutionX() float64 { return math.Abs(g.GeoTransform[1]) }

// ResolutionY returns the pixel height in CRS units.
func (g Grid) ResolutionY() float64 { return math.Abs(g.GeoTransform[5]) }

// PixelToGeo converts pixel indices to the geographic coordinates of the
// pixel center.
func (g Grid) PixelToGeo(col, row int) (x, y float64) {
	gt := g.GeoTransform
	fx := float64(col) + 0.5
	fy := float64(row) + 0.5
	x = gt[0] + fx*gt[1] + fy*gt[2]
	y = gt[3] + fx*gt[4] + fy*gt[5]
	return x, y
}

// GeoToPixel converts geographic coordinates to pixel indices. Coordinates
// outside the grid return indices outside [0,Width)x[0,Height).
func (g Grid) GeoToPixel(x, y float64) (col, row int) {
	gt := g.GeoTransform
	col = int(math.Floor((x - gt[0]) / gt[1]))
	row = int(math.Floor((y - gt[3]) / gt[5]))
	return col, row
}

// Bounds returns the grid extent as [minX, minY, maxX, maxY].
func (g Grid) Bounds() [4]float64 {
	gt := g.GeoTransform
	x0 := gt[0]
	y0 := gt[3]
	x1 := gt[0] + float64(g.Width)*gt[1]
	y1 := gt[3] + float64(g.Height)*gt[5]
	return [4]float64{math.Min(x0, x1), math.Min(y0, y1), math.Max(x0, x1), math.Max(y0, y1)}
}

// IsGeographic reports whether the CRS uses degrees rather than meters.
func (g Grid) IsGeographic() bool {
	return g.CRS == "EPSG:4326" || g.CRS == "CRS:84" || g.CRS == "EPSG:4258"
}

// GroundPixelArea returns the ground area of one pixel in square meters.
// Projected grids use the geotransform directly; geographic grids convert
// degrees with the same per-degree scale the imagery request sizing uses,
// corrected for latitude at the grid center.
func (g Grid) GroundPixelArea() float64 {
	dx := g.ResolutionX()
	dy := g.ResolutionY()
	if !g.IsGeographic() {
		return dx * dy
	}
	b := g.Bounds()
	centerLat := (b[1] + b[3]) / 2
	mx := dx * metersPerDegree * math.Cos(centerLat*math.Pi/180)
	my := dy * metersPerDegree
	return mx * my
}

// Raster is a set of named bands over one grid. Bands are row-major float64
// samples with NaN as no-data. Rasters are never mutated in place: every
// pipeline stage builds a new one.
type Raster struct {
	Grid   Grid
	Sensor string
	Window Window

	bands map[string][]float64
}

// New creates an empty raster over the given grid.
func New(grid Grid, sensor string, window Window) *Raster {
	return &Raster{
		Grid:   grid,
		Sensor: sensor,
		Window: window,
		bands:  make(map[string][]float64),
	}
}

// AddBand attaches samples under the given band name. The sample count must
// match the grid size.
func (r *Raster) AddBand(name string, samples []float64) error {
	if len(samples) != r.Grid.Width*r.Grid.Height {
		return fmt.Errorf("band %s has %d samples, grid needs %d", name, len(samples), r.Grid.Width*r.Grid.Height)
	}
	r.bands[name] = samples
	return nil
}

// Band returns the samples stored under name.
func (r *Raster) Band(name string) ([]float64, bool) {
	b, ok := r.bands[name]
	return b, ok
}

// BandNames lists the attached bands in unspecified order.
func (r *Raster) BandNames() []string {
	names := make([]string, 0, len(r.bands))
	for name := range r.bands {
		names = append(names, name)
	}
	return names
}

// Value returns the sample of one band at (col, row).
func (r *Raster) Value(name string, col, row int) (float64, bool) {
	b, ok := r.bands[name]
	if !ok {
		return 0, false
	}
	if col < 0 || col >= r.Grid.Width || row < 0 || row >= r.Grid.Height {
		return 0, false
	}
	return b[row*r.Grid.Width+col], true
}

// Clone returns a deep copy with independent band storage.
func (r *Raster) Clone() *Raster {
	out := New(r.Grid, r.Sensor, r.Window)
	for name, samples := range r.bands {
		cp := make([]float64, len(samples))
		copy(cp, samples)
		out.bands[name] = cp
	}
	return out
}

// Mask is a per-pixel exclusion grid aligned 1:1 with a raster. true marks an
// excluded pixel.
type Mask struct {
	Grid     Grid
	Excluded []bool
}

// NewMask creates an all-clear mask over the grid.
func NewMask(grid Grid) Mask {
	return Mask{Grid: grid, Excluded: make([]bool, grid.Width*grid.Height)}
}

// ExcludedCount returns the number of masked-out pixels.
func (m Mask) ExcludedCount() int {
	n := 0
	for _, e := range m.Excluded {
		if e {
			n++
		}
	}
	return n
}
