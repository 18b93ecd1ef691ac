package imagery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/emberwatch/burnsight/internal/cache"
	"github.com/emberwatch/burnsight/internal/observability"
	"github.com/emberwatch/burnsight/internal/raster"
	"github.com/emberwatch/burnsight/internal/sensor"
)

const defaultProcessURL = "https://sh.dataspace.copernicus.eu/api/v1/process"

// Config holds Copernicus Data Space credentials and fetch behavior.
type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	ProcessURL   string
	Retries      int
	RetryWait    time.Duration
}

// CopernicusSource fetches composites from the Copernicus Data Space
// Process API. Responses are cached on disk keyed by the full fetch
// parameters so repeated analyses of the same area skip the network.
type CopernicusSource struct {
	cfg     Config
	sensors sensor.Catalog
	cache   *cache.FileCache[[]byte]
	client  *http.Client
	log     *zap.Logger

	// Metrics is optional; nil disables cache lookup counting.
	Metrics *observability.Metrics
}

func NewCopernicusSource(cfg Config, sensors sensor.Catalog, tiffCache *cache.FileCache[[]byte]) (*CopernicusSource, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.TokenURL == "" {
		return nil, eris.New("imagery: missing Copernicus client id, secret or token URL")
	}
	if cfg.ProcessURL == "" {
		cfg.ProcessURL = defaultProcessURL
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 5
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 5 * time.Second
	}

	oauth := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	return &CopernicusSource{
		cfg:     cfg,
		sensors: sensors,
		cache:   tiffCache,
		client:  oauth.Client(context.Background()),
		log:     zap.L().Named("imagery"),
	}, nil
}

// Fetch requests one cloud-filtered composite and reads it into a raster
// with the sensor's native band names plus the QA band.
func (s *CopernicusSource) Fetch(ctx context.Context, req Request) (*raster.Raster, error) {
	spec, err := s.sensors.Lookup(req.SensorID)
	if err != nil {
		return nil, err
	}
	if req.CRS == "" {
		req.CRS = "EPSG:4326"
	}
	if req.Mosaicking == "" {
		req.Mosaicking = "mostRecent"
	}

	var key string
	if s.cache != nil {
		bound := req.Geometry.Bound()
		key = s.cache.GenerateKey(req.SensorID, bound.Min, bound.Max, req.Window, req.CloudCeiling, req.CRS)
		if tiff, ok := s.cache.Get(key); ok {
			if s.Metrics != nil {
				s.Metrics.CacheLookups.WithLabelValues("hit").Inc()
			}
			s.log.Debug("imagery cache hit", zap.String("sensor", req.SensorID), zap.String("window", req.Window.String()))
			return s.openTIFF(tiff, spec, req)
		}
		if s.Metrics != nil {
			s.Metrics.CacheLookups.WithLabelValues("miss").Inc()
		}
	}

	tiff, err := s.request(ctx, spec, req)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(key, tiff); err != nil {
			s.log.Warn("imagery cache write failed", zap.Error(err))
		}
	}
	return s.openTIFF(tiff, spec, req)
}

func (s *CopernicusSource) request(ctx context.Context, spec sensor.Spec, req Request) ([]byte, error) {
	payload, err := buildProcessPayload(spec, req)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.Retries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.cfg.RetryWait):
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.ProcessURL, bytes.NewReader(payload))
		if err != nil {
			return nil, eris.Wrap(err, "imagery: build process request")
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "image/tiff")

		resp, err := s.client.Do(httpReq)
		if err != nil {
			lastErr = err
			s.log.Warn("imagery request failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = eris.Wrap(err, "imagery: read response body")
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			if len(body) == 0 {
				return nil, &NoImageryAvailableError{SensorID: req.SensorID, Window: req.Window, CloudCeiling: req.CloudCeiling}
			}
			return body, nil
		case resp.StatusCode == http.StatusNotFound,
			strings.Contains(string(body), "NO_AVAILABLE_DATA"):
			return nil, &NoImageryAvailableError{SensorID: req.SensorID, Window: req.Window, CloudCeiling: req.CloudCeiling}
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, eris.Errorf("imagery: unauthorized, check client id and secret (status %d)", resp.StatusCode)
		default:
			lastErr = eris.Errorf("imagery: process API status %d: %s", resp.StatusCode, truncate(string(body), 200))
			s.log.Warn("imagery request rejected", zap.Int("attempt", attempt), zap.Int("status", resp.StatusCode))
		}
	}
	return nil, eris.Wrapf(lastErr, "imagery: giving up after %d attempts", s.cfg.Retries)
}

// openTIFF writes the response to a scratch file and reads the bands back
// through GDAL. The band order matches the evalscript output order.
func (s *CopernicusSource) openTIFF(tiff []byte, spec sensor.Spec, req Request) (*raster.Raster, error) {
	tmp, err := os.CreateTemp("", "burnsight-*.tif")
	if err != nil {
		return nil, eris.Wrap(err, "imagery: create scratch file")
	}
	path := tmp.Name()
	defer os.Remove(path)
	if _, err := tmp.Write(tiff); err != nil {
		tmp.Close()
		return nil, eris.Wrap(err, "imagery: write scratch file")
	}
	tmp.Close()

	r, err := raster.ReadGeoTIFF(filepath.Clean(path), spec.FetchBands(), req.CRS, spec.ID, req.Window)
	if err != nil {
		return nil, err
	}
	if allFill(r, spec) {
		return nil, &NoImageryAvailableError{SensorID: req.SensorID, Window: req.Window, CloudCeiling: req.CloudCeiling}
	}
	return r, nil
}

// allFill detects the provider's "empty mosaic" answer: every pixel carries
// the fill flag.
func allFill(r *raster.Raster, spec sensor.Spec) bool {
	qaName, ok := spec.BandName(sensor.RoleQA)
	if !ok {
		return false
	}
	qa, ok := r.Band(qaName)
	if !ok {
		return false
	}
	fill := uint64(1) << spec.QA.Fill
	for _, v := range qa {
		if raster.IsNoData(v) {
			continue
		}
		if uint64(v)&fill == 0 {
			return false
		}
	}
	return true
}

// buildProcessPayload assembles the Process API request: AOI geometry,
// window, cloud ceiling filter and an evalscript returning the sensor's
// fetch bands as FLOAT32.
func buildProcessPayload(spec sensor.Spec, req Request) ([]byte, error) {
	geomJSON, err := geojson.NewGeometry(req.Geometry).MarshalJSON()
	if err != nil {
		return nil, eris.Wrap(err, "imagery: marshal AOI geometry")
	}
	var geomMap map[string]interface{}
	if err := json.Unmarshal(geomJSON, &geomMap); err != nil {
		return nil, eris.Wrap(err, "imagery: re-parse AOI geometry")
	}

	bound := req.Geometry.Bound()
	widthPixels := calculatePixels(bound.Max[0]-bound.Min[0], spec.Resolution)
	heightPixels := calculatePixels(bound.Max[1]-bound.Min[1], spec.Resolution)
	if widthPixels > 2500 {
		widthPixels = 2500
	}
	if heightPixels > 2500 {
		heightPixels = 2500
	}

	requestPayload := map[string]interface{}{
		"input": map[string]interface{}{
			"bounds": map[string]interface{}{
				"geometry": geomMap,
			},
			"data": []map[string]interface{}{
				{
					"dataFilter": map[string]interface{}{
						"timeRange": map[string]string{
							"from": req.Window.Start.Format(time.RFC3339),
							"to":   req.Window.End.Format(time.RFC3339),
						},
						"maxCloudCoverage": req.CloudCeiling,
					},
					"type": spec.Collection,
				},
			},
		},
		"output": map[string]interface{}{
			"width":  widthPixels,
			"height": heightPixels,
			"responses": []map[string]interface{}{
				{
					"identifier": "default",
					"format": map[string]string{
						"type": "image/tiff",
					},
				},
			},
		},
		"evalscript": buildEvalscript(spec),
		"mosaicking": req.Mosaicking,
	}
	return json.Marshal(requestPayload)
}

// calculatePixels sizes the request grid from the AOI extent in degrees.
func calculatePixels(distance float64, resolution float64) int {
	pixels := distance * (111_000.0 / resolution)
	if pixels < 1 {
		return 1
	}
	return int(pixels)
}

// buildEvalscript emits the provider-side script. Sentinel-2 has no bitmask
// QA product, so the script derives one from the cloud probability and
// scene-classification bands using the sensor's configured bit positions;
// Landsat's QA_PIXEL passes through untouched.
func buildEvalscript(spec sensor.Spec) string {
	fetch := spec.FetchBands()
	qaName, _ := spec.BandName(sensor.RoleQA)

	inputs := make([]string, 0, len(fetch)+1)
	outputs := make([]string, 0, len(fetch))
	for _, name := range fetch {
		if name == qaName && strings.HasPrefix(spec.ID, "sentinel-2") {
			inputs = append(inputs, `"CLD"`, `"SCL"`)
			outputs = append(outputs, "qa(sample)")
			continue
		}
		inputs = append(inputs, fmt.Sprintf("%q", name))
		outputs = append(outputs, "sample."+name)
	}

	var qaFn string
	if strings.HasPrefix(spec.ID, "sentinel-2") {
		qaFn = fmt.Sprintf(`
    function qa(sample) {
      var bits = 0;
      if (sample.SCL == 0) bits |= 1 << %d;                        // no data
      if (sample.SCL == 1) bits |= 1 << %d;                        // saturated or defective
      if (sample.SCL == 3) bits |= 1 << %d;                        // cloud shadow
      if (sample.CLD > 0 || sample.SCL == 8 || sample.SCL == 9) bits |= 1 << %d; // cloud
      if (sample.SCL == 10) bits |= 1 << %d;                       // thin cirrus
      return bits;
    }`, spec.QA.Fill, spec.QA.Saturated, spec.QA.CloudShadow, spec.QA.Cloud, spec.QA.Cirrus)
	}

	return fmt.Sprintf(`
    //VERSION=3
    function setup() {
      return {
        input: [%s],
        output: {
          id: "default",
          bands: %d,
          sampleType: SampleType.FLOAT32,
        },
      }
    }
%s
    function evaluatePixel(sample) {
      return [%s];
    }
  `, strings.Join(inputs, ", "), len(outputs), qaFn, strings.Join(outputs, ", "))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
