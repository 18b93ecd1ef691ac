package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberwatch/burnsight/internal/raster"
	"github.com/emberwatch/burnsight/internal/sensor"
)

var testBits = sensor.QABits{Fill: 0, Saturated: 1, CloudShadow: 2, Cloud: 3, Cirrus: 4}

func testRaster(t *testing.T, qa []float64) *raster.Raster {
	t.Helper()
	grid := raster.Grid{
		Width:        3,
		Height:       2,
		GeoTransform: [6]float64{0, 30, 0, 0, 0, -30},
		CRS:          "EPSG:32611",
	}
	r := raster.New(grid, "sentinel-2-l2a", raster.Window{})
	nir := make([]float64, 6)
	for i := range nir {
		nir[i] = 0.5
	}
	require.NoError(t, r.AddBand("B08", nir))
	require.NoError(t, r.AddBand("QA", qa))
	return r
}

func TestBuildMaskFlagsEachBit(t *testing.T) {
	qa := []float64{
		0,      // clear
		1 << 3, // cloud
		1 << 2, // cloud shadow
		1 << 4, // cirrus
		1 << 1, // saturated
		1 << 0, // fill
	}
	r := testRaster(t, qa)

	mask, err := BuildMask(r, "QA", testBits)
	require.NoError(t, err)

	assert.Equal(t, []bool{false, true, true, true, true, true}, mask.Excluded)
	assert.Equal(t, 5, mask.ExcludedCount())
}

func TestBuildMaskIgnoresUnconfiguredBits(t *testing.T) {
	// Bit 7 carries no configured meaning and must not exclude the pixel.
	r := testRaster(t, []float64{1 << 7, 0, 0, 0, 0, 0})

	mask, err := BuildMask(r, "QA", testBits)
	require.NoError(t, err)
	assert.Zero(t, mask.ExcludedCount())
}

func TestBuildMaskNoDataQA(t *testing.T) {
	r := testRaster(t, []float64{raster.NoData(), 0, 0, 0, 0, 0})

	mask, err := BuildMask(r, "QA", testBits)
	require.NoError(t, err)
	assert.True(t, mask.Excluded[0], "a pixel with unreadable quality is excluded")
}

func TestBuildMaskMissingBand(t *testing.T) {
	r := testRaster(t, make([]float64, 6))

	_, err := BuildMask(r, "QA_PIXEL", testBits)
	var missing *MissingQualityBandError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "QA_PIXEL", missing.Band)
	assert.Equal(t, "sentinel-2-l2a", missing.Sensor)
}

func TestApplyMasksAllBands(t *testing.T) {
	r := testRaster(t, []float64{1 << 3, 0, 0, 0, 0, 1 << 2})
	mask, err := BuildMask(r, "QA", testBits)
	require.NoError(t, err)

	screened, err := Apply(r, mask)
	require.NoError(t, err)

	// Extent unchanged, masked pixels no-data, the rest untouched.
	assert.True(t, screened.Grid.Equal(r.Grid))
	nir, _ := screened.Band("B08")
	assert.True(t, raster.IsNoData(nir[0]))
	assert.True(t, raster.IsNoData(nir[5]))
	assert.InDelta(t, 0.5, nir[1], 1e-9)

	// Source raster stays pristine.
	original, _ := r.Band("B08")
	assert.InDelta(t, 0.5, original[0], 1e-9)
}

func TestApplyShapeMismatch(t *testing.T) {
	r := testRaster(t, make([]float64, 6))
	other := raster.NewMask(raster.Grid{Width: 2, Height: 2})

	_, err := Apply(r, other)
	assert.ErrorContains(t, err, "does not match")
}
