// Package quality screens low-quality pixels out of a raster before any
// index is computed. Cloud, shadow, cirrus, saturated and fill flags are read
// from the sensor's QA band using caller-supplied bit positions.
package quality

import (
	"fmt"

	"github.com/emberwatch/burnsight/internal/raster"
	"github.com/emberwatch/burnsight/internal/sensor"
)

// MissingQualityBandError reports a raster fetched without its QA band.
type MissingQualityBandError struct {
	Band   string
	Sensor string
}

func (e *MissingQualityBandError) Error() string {
	return fmt.Sprintf("quality: raster from sensor %s has no quality band %s", e.Sensor, e.Band)
}

// BuildMask flags every pixel with any of the cloud, cloud shadow, cirrus,
// saturated or fill bits set in the QA band. Pure function: the input raster
// is not touched.
func BuildMask(r *raster.Raster, qaBand string, bits sensor.QABits) (raster.Mask, error) {
	qa, ok := r.Band(qaBand)
	if !ok {
		return raster.Mask{}, &MissingQualityBandError{Band: qaBand, Sensor: r.Sensor}
	}

	reject := uint64(1)<<bits.Cloud |
		uint64(1)<<bits.CloudShadow |
		uint64(1)<<bits.Cirrus |
		uint64(1)<<bits.Saturated |
		uint64(1)<<bits.Fill

	mask := raster.NewMask(r.Grid)
	for i, v := range qa {
		if raster.IsNoData(v) {
			mask.Excluded[i] = true
			continue
		}
		if uint64(v)&reject != 0 {
			mask.Excluded[i] = true
		}
	}
	return mask, nil
}

// Apply returns a new raster with every excluded pixel set to no-data in all
// bands. Spatial extent is preserved; pixels are never dropped.
func Apply(r *raster.Raster, mask raster.Mask) (*raster.Raster, error) {
	if !mask.Grid.SameShape(r.Grid) {
		return nil, fmt.Errorf("quality: mask grid %dx%d does not match raster grid %dx%d",
			mask.Grid.Width, mask.Grid.Height, r.Grid.Width, r.Grid.Height)
	}

	out := r.Clone()
	for _, name := range out.BandNames() {
		samples, _ := out.Band(name)
		for i, excluded := range mask.Excluded {
			if excluded {
				samples[i] = raster.NoData()
			}
		}
	}
	return out, nil
}
