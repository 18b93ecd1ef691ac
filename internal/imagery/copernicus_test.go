package imagery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/paulmach/orb"
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

func testRequest() Request {
	return Request{
		SensorID: "sentinel-2-l2a",
		Geometry: orb.MultiPolygon{orb.Polygon{orb.Ring{
			{-118.65, 34.0}, {-118.45, 34.0}, {-118.45, 34.15}, {-118.65, 34.15}, {-118.65, 34.0},
		}}},
		CRS: "EPSG:4326",
		Window: raster.Window{
			Start: time.Date(2024, 7, 11, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC),
		},
		CloudCeiling: 20,
		Mosaicking:   "mostRecent",
	}
}

func TestBuildProcessPayload(t *testing.T) {
	payload, err := buildProcessPayload(s2Spec(t), testRequest())
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &decoded))

	input := decoded["input"].(map[string]interface{})
	data := input["data"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "sentinel-2-l2a", data["type"])

	filter := data["dataFilter"].(map[string]interface{})
	assert.InDelta(t, 20.0, filter["maxCloudCoverage"].(float64), 1e-9)
	timeRange := filter["timeRange"].(map[string]interface{})
	assert.Equal(t, "2024-07-11T00:00:00Z", timeRange["from"])
	assert.Equal(t, "2025-01-07T00:00:00Z", timeRange["to"])

	output := decoded["output"].(map[string]interface{})
	// 0.2 degrees at 10 m resolution exceeds the provider cap.
	assert.InDelta(t, 2220.0, output["width"].(float64), 1)
	assert.InDelta(t, 1665.0, output["height"].(float64), 1)

	assert.Equal(t, "mostRecent", decoded["mosaicking"])
}

func TestBuildProcessPayloadClampsDimensions(t *testing.T) {
	req := testRequest()
	// A degree-wide request would want 11100 pixels at 10 m.
	req.Geometry = orb.MultiPolygon{orb.Polygon{orb.Ring{
		{-119, 34}, {-118, 34}, {-118, 35}, {-119, 35}, {-119, 34},
	}}}

	payload, err := buildProcessPayload(s2Spec(t), req)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	output := decoded["output"].(map[string]interface{})
	assert.InDelta(t, 2500.0, output["width"].(float64), 1e-9)
	assert.InDelta(t, 2500.0, output["height"].(float64), 1e-9)
}

func TestBuildEvalscriptSentinel2(t *testing.T) {
	script := buildEvalscript(s2Spec(t))

	// Spectral bands pass through; QA derives from CLD and SCL.
	assert.Contains(t, script, `"B08"`)
	assert.Contains(t, script, `"B12"`)
	assert.Contains(t, script, `"CLD"`)
	assert.Contains(t, script, `"SCL"`)
	assert.NotContains(t, script, `"QA"`)
	assert.Contains(t, script, "qa(sample)")
	assert.Contains(t, script, "sample.SCL == 3")
	assert.Contains(t, script, "bits |= 1 << 3")
	assert.Contains(t, script, "SampleType.FLOAT32")
	assert.Contains(t, script, "bands: 5")
}

func TestBuildEvalscriptLandsat(t *testing.T) {
	spec, err := sensor.DefaultCatalog().Lookup("landsat-8-l2")
	require.NoError(t, err)

	script := buildEvalscript(spec)

	// Landsat ships a native QA bitmask; it passes through untouched.
	assert.Contains(t, script, `"QA_PIXEL"`)
	assert.Contains(t, script, "sample.QA_PIXEL")
	assert.NotContains(t, script, "function qa(")
}

func TestCalculatePixels(t *testing.T) {
	assert.Equal(t, 2220, calculatePixels(0.2, 10))
	assert.Equal(t, 740, calculatePixels(0.2, 30))
	assert.Equal(t, 1, calculatePixels(0.00001, 10), "degenerate extents still request one pixel")
}

func TestAllFill(t *testing.T) {
	spec := s2Spec(t)
	g := raster.Grid{Width: 2, Height: 1, GeoTransform: [6]float64{0, 30, 0, 0, 0, -30}, CRS: "EPSG:32611"}

	r := raster.New(g, spec.ID, raster.Window{})
	require.NoError(t, r.AddBand("QA", []float64{1, 1})) // fill bit only
	assert.True(t, allFill(r, spec))

	r2 := raster.New(g, spec.ID, raster.Window{})
	require.NoError(t, r2.AddBand("QA", []float64{1, 0}))
	assert.False(t, allFill(r2, spec))
}

func newTestSource(t *testing.T, process http.HandlerFunc) *CopernicusSource {
	t.Helper()
	token := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"test-token","token_type":"Bearer","expires_in":3600}`)
	}))
	t.Cleanup(token.Close)
	processServer := httptest.NewServer(process)
	t.Cleanup(processServer.Close)

	source, err := NewCopernicusSource(Config{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenURL:     token.URL,
		ProcessURL:   processServer.URL,
		Retries:      2,
		RetryWait:    time.Millisecond,
	}, sensor.DefaultCatalog(), nil)
	require.NoError(t, err)
	return source
}

func TestFetchNoImageryOn404(t *testing.T) {
	source := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	_, err := source.Fetch(context.Background(), testRequest())
	var noImagery *NoImageryAvailableError
	require.ErrorAs(t, err, &noImagery)
	assert.Equal(t, "sentinel-2-l2a", noImagery.SensorID)
	assert.InDelta(t, 20.0, noImagery.CloudCeiling, 1e-9)
}

func TestFetchNoImageryOnProviderSentinel(t *testing.T) {
	source := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"code":"NO_AVAILABLE_DATA"}}`)
	})

	_, err := source.Fetch(context.Background(), testRequest())
	var noImagery *NoImageryAvailableError
	assert.ErrorAs(t, err, &noImagery)
}

func TestFetchUnauthorized(t *testing.T) {
	source := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := source.Fetch(context.Background(), testRequest())
	assert.ErrorContains(t, err, "unauthorized")
}

func TestFetchRetriesServerErrors(t *testing.T) {
	attempts := 0
	source := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := source.Fetch(context.Background(), testRequest())
	assert.ErrorContains(t, err, "giving up after 2 attempts")
	assert.Equal(t, 2, attempts)
}

func TestFetchUnknownSensor(t *testing.T) {
	source := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {})
	req := testRequest()
	req.SensorID = "modis"

	_, err := source.Fetch(context.Background(), req)
	assert.ErrorContains(t, err, "unknown sensor")
}

func TestNewCopernicusSourceRequiresCredentials(t *testing.T) {
	_, err := NewCopernicusSource(Config{}, sensor.DefaultCatalog(), nil)
	assert.ErrorContains(t, err, "missing Copernicus")
}
