package main

import (
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"

	"github.com/emberwatch/burnsight/internal/analysis"
	"github.com/emberwatch/burnsight/internal/cache"
	"github.com/emberwatch/burnsight/internal/imagery"
	"github.com/emberwatch/burnsight/internal/observability"
	"github.com/emberwatch/burnsight/internal/raster"
	"github.com/emberwatch/burnsight/internal/sensor"
	"github.com/emberwatch/burnsight/internal/severity"
)

// pipelineEnv bundles the shared wiring every command needs.
type pipelineEnv struct {
	Engine   *analysis.Engine
	Sensors  sensor.Catalog
	Registry *prometheus.Registry
}

// initPipeline builds the engine from config: imagery source with its disk
// cache, sensor catalog, CRS transformer and metrics.
func initPipeline() (*pipelineEnv, error) {
	sensors := sensor.DefaultCatalog()
	for id, spec := range cfg.Sensors {
		spec.ID = id
		sensors[id] = spec
	}

	tiffCache := cache.NewFileCache[[]byte](
		cfg.Cache.Dir,
		time.Duration(cfg.Cache.TTLHours)*time.Hour,
		nil,
	)

	source, err := imagery.NewCopernicusSource(imagery.Config{
		ClientID:     cfg.Imagery.ClientID,
		ClientSecret: cfg.Imagery.ClientSecret,
		TokenURL:     cfg.Imagery.TokenURL,
		ProcessURL:   cfg.Imagery.ProcessURL,
		Retries:      cfg.Imagery.Retries,
		RetryWait:    time.Duration(cfg.Imagery.RetryWaitSecs) * time.Second,
	}, sensors, tiffCache)
	if err != nil {
		return nil, eris.Wrap(err, "init imagery source")
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics()
	if err := metrics.Register(registry); err != nil {
		return nil, eris.Wrap(err, "register metrics")
	}
	source.Metrics = metrics

	engine := analysis.NewEngine(source, sensors, raster.GodalTransformer{})
	engine.Metrics = metrics
	engine.FetchTimeout = time.Duration(cfg.Imagery.TimeoutSecs) * time.Second

	return &pipelineEnv{Engine: engine, Sensors: sensors, Registry: registry}, nil
}

// configuredThresholds converts the config table to a validated severity
// table. Empty config means nil, which selects the default table. Omitted
// outer bounds become ±Inf.
func configuredThresholds() (severity.Thresholds, error) {
	bins := cfg.Analysis.Thresholds
	if len(bins) == 0 {
		return nil, nil
	}
	table := make(severity.Thresholds, len(bins))
	for i, bin := range bins {
		class, err := severity.ParseClass(bin.Class)
		if err != nil {
			return nil, err
		}
		table[i] = severity.Bin{Class: class, Low: bin.Low, High: bin.High}
	}
	// Validate requires the outer bins to reach ±Inf; the config file cannot
	// express infinities, so the outer bounds are implied.
	table[0].Low = math.Inf(-1)
	table[len(table)-1].High = math.Inf(1)
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}
