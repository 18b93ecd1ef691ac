package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberwatch/burnsight/internal/raster"
	"github.com/emberwatch/burnsight/internal/sensor"
)

func s2Spec(t *testing.T) sensor.Spec {
	t.Helper()
	spec, err := sensor.DefaultCatalog().Lookup("sentinel-2-l2a")
	require.NoError(t, err)
	return spec
}

func bandRaster(t *testing.T, bands map[string][]float64) *raster.Raster {
	t.Helper()
	grid := raster.Grid{
		Width:        2,
		Height:       2,
		GeoTransform: [6]float64{0, 30, 0, 0, 0, -30},
		CRS:          "EPSG:32611",
	}
	r := raster.New(grid, "sentinel-2-l2a", raster.Window{})
	for name, samples := range bands {
		require.NoError(t, r.AddBand(name, samples))
	}
	return r
}

func TestParseKind(t *testing.T) {
	for _, name := range []string{"nbr", "ndvi", "ndwi", "bai"} {
		kind, err := ParseKind(name)
		require.NoError(t, err)
		assert.Equal(t, Kind(name), kind)
	}
	_, err := ParseKind("evi")
	assert.ErrorContains(t, err, "unknown index kind")
}

func TestComputeNBR(t *testing.T) {
	r := bandRaster(t, map[string][]float64{
		"B08": {0.6, 0.5, 0.3, 0.2}, // NIR
		"B12": {0.1, 0.5, 0.1, 0.6}, // SWIR2
	})

	ir, err := Compute(r, NBR, s2Spec(t))
	require.NoError(t, err)

	// (NIR - SWIR2) / (NIR + SWIR2)
	assert.InDelta(t, (0.6-0.1)/(0.6+0.1), ir.Values[0], 1e-9)
	assert.InDelta(t, 0.0, ir.Values[1], 1e-9)
	assert.InDelta(t, 0.5, ir.Values[2], 1e-9)
	assert.InDelta(t, (0.2-0.6)/(0.2+0.6), ir.Values[3], 1e-9)
	assert.Equal(t, NBR, ir.Kind)
	assert.True(t, ir.Grid.Equal(r.Grid))
}

func TestComputeZeroDenominator(t *testing.T) {
	r := bandRaster(t, map[string][]float64{
		"B08": {0.0, -0.2, 0.5, 0.5},
		"B12": {0.0, 0.2, 0.5, 0.5},
	})

	ir, err := Compute(r, NBR, s2Spec(t))
	require.NoError(t, err)

	assert.True(t, raster.IsNoData(ir.Values[0]), "0/0 must become no-data, not NaN leaking through")
	assert.True(t, raster.IsNoData(ir.Values[1]), "x/0 must become no-data, not Inf")
	assert.False(t, raster.IsNoData(ir.Values[2]))
}

func TestComputeNoDataPropagation(t *testing.T) {
	r := bandRaster(t, map[string][]float64{
		"B08": {raster.NoData(), 0.5, 0.5, 0.5},
		"B12": {0.1, raster.NoData(), 0.1, 0.1},
	})

	ir, err := Compute(r, NBR, s2Spec(t))
	require.NoError(t, err)

	assert.True(t, raster.IsNoData(ir.Values[0]))
	assert.True(t, raster.IsNoData(ir.Values[1]))
	assert.False(t, raster.IsNoData(ir.Values[2]))
}

func TestComputeNDVIAndNDWI(t *testing.T) {
	r := bandRaster(t, map[string][]float64{
		"B08": {0.6, 0.6, 0.6, 0.6}, // NIR
		"B04": {0.2, 0.2, 0.2, 0.2}, // Red
		"B03": {0.3, 0.3, 0.3, 0.3}, // Green
	})

	ndvi, err := Compute(r, NDVI, s2Spec(t))
	require.NoError(t, err)
	assert.InDelta(t, (0.6-0.2)/(0.6+0.2), ndvi.Values[0], 1e-9)

	ndwi, err := Compute(r, NDWI, s2Spec(t))
	require.NoError(t, err)
	assert.InDelta(t, (0.3-0.6)/(0.3+0.6), ndwi.Values[0], 1e-9)
}

func TestComputeBAI(t *testing.T) {
	r := bandRaster(t, map[string][]float64{
		"B04": {0.05, 0.1, 0.2, 0.3},  // Red
		"B08": {0.1, 0.06, 0.3, 0.4},  // NIR
	})

	ir, err := Compute(r, BAI, s2Spec(t))
	require.NoError(t, err)

	want := 1 / ((0.1-0.05)*(0.1-0.05) + (0.06-0.1)*(0.06-0.1))
	assert.InDelta(t, want, ir.Values[0], 1e-9)
	assert.True(t, raster.IsNoData(ir.Values[1]), "reference point (0.1, 0.06) has a zero denominator")
}

func TestComputeMissingBand(t *testing.T) {
	r := bandRaster(t, map[string][]float64{
		"B08": {0.5, 0.5, 0.5, 0.5},
	})

	_, err := Compute(r, NBR, s2Spec(t))
	var missing *MissingBandError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, NBR, missing.Kind)
	assert.Equal(t, sensor.RoleSWIR2, missing.Role)
}
