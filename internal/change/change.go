// Package change differences a before and an after index raster into the
// per-pixel change quantity severity classification runs on.
package change

import (
	"fmt"

	"github.com/emberwatch/burnsight/internal/index"
	"github.com/emberwatch/burnsight/internal/raster"
)

// GridMismatchError reports two index rasters that cannot be differenced
// pixel-for-pixel. Harmonize them onto one grid first.
type GridMismatchError struct {
	Reason       string
	BeforeWidth  int
	BeforeHeight int
	AfterWidth   int
	AfterHeight  int
}

func (e *GridMismatchError) Error() string {
	return fmt.Sprintf("change: %s (before %dx%d, after %dx%d)",
		e.Reason, e.BeforeWidth, e.BeforeHeight, e.AfterWidth, e.AfterHeight)
}

// DifferenceRaster is the single-band change raster, tagged with the index
// kind and the provenance of both inputs.
type DifferenceRaster struct {
	Grid         raster.Grid
	Kind         index.Kind
	BeforeSensor string
	AfterSensor  string
	BeforeWindow raster.Window
	AfterWindow  raster.Window
	Values       []float64
}

// Difference computes before − after per pixel. For NBR inputs this is the
// standard dNBR: positive where vegetation was lost to fire, negative where
// it greened. Both inputs must share index kind and an identical grid; a
// no-data pixel in either operand stays no-data in the result, never zero.
func Difference(before, after *index.IndexRaster) (*DifferenceRaster, error) {
	mismatch := func(reason string) *GridMismatchError {
		return &GridMismatchError{
			Reason:       reason,
			BeforeWidth:  before.Grid.Width,
			BeforeHeight: before.Grid.Height,
			AfterWidth:   after.Grid.Width,
			AfterHeight:  after.Grid.Height,
		}
	}
	if before.Kind != after.Kind {
		return nil, mismatch(fmt.Sprintf("index kinds differ: %s vs %s", before.Kind, after.Kind))
	}
	if !before.Grid.Equal(after.Grid) {
		return nil, mismatch("grids are not aligned")
	}

	values := make([]float64, len(before.Values))
	for i := range values {
		b, a := before.Values[i], after.Values[i]
		if raster.IsNoData(b) || raster.IsNoData(a) {
			values[i] = raster.NoData()
			continue
		}
		values[i] = b - a
	}

	return &DifferenceRaster{
		Grid:         before.Grid,
		Kind:         before.Kind,
		BeforeSensor: before.Sensor,
		AfterSensor:  after.Sensor,
		BeforeWindow: before.Window,
		AfterWindow:  after.Window,
		Values:       values,
	}, nil
}
