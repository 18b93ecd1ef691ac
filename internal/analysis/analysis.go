// Package analysis wires the pipeline together: fetch, mask, index,
// harmonize, difference, classify, aggregate. Every stage is a pure
// transformation over immutable rasters; the fetch is the only suspension
// point, so the before and after branches run concurrently and join at the
// change detector.
package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/emberwatch/burnsight/internal/change"
	"github.com/emberwatch/burnsight/internal/harmonize"
	"github.com/emberwatch/burnsight/internal/imagery"
	"github.com/emberwatch/burnsight/internal/index"
	"github.com/emberwatch/burnsight/internal/observability"
	"github.com/emberwatch/burnsight/internal/quality"
	"github.com/emberwatch/burnsight/internal/raster"
	"github.com/emberwatch/burnsight/internal/sensor"
	"github.com/emberwatch/burnsight/internal/severity"
	"github.com/emberwatch/burnsight/internal/zonal"
)

// Request is one analysis: an area, two date windows, a sensor choice and an
// index. All entities derived from it are created fresh and never shared
// across requests.
type Request struct {
	AOI          zonal.AOI
	BeforeWindow raster.Window
	AfterWindow  raster.Window

	// BeforeSensor and AfterSensor may differ; the harmonizer aligns the
	// grids before differencing. AfterSensor defaults to BeforeSensor.
	BeforeSensor string
	AfterSensor  string

	Index      index.Kind
	Thresholds severity.Thresholds // nil means the default table

	BeforeCloudCeiling float64
	AfterCloudCeiling  float64

	FoldGreening bool
}

func (r *Request) normalize() error {
	if len(r.AOI.Geometry) == 0 {
		return eris.New("analysis: request has no area of interest")
	}
	if r.BeforeSensor == "" {
		return eris.New("analysis: request has no sensor")
	}
	if r.AfterSensor == "" {
		r.AfterSensor = r.BeforeSensor
	}
	if r.Index == "" {
		r.Index = index.NBR
	}
	if !r.BeforeWindow.Start.Before(r.BeforeWindow.End) {
		return eris.Errorf("analysis: before window %s is empty or inverted", r.BeforeWindow)
	}
	if !r.AfterWindow.Start.Before(r.AfterWindow.End) {
		return eris.Errorf("analysis: after window %s is empty or inverted", r.AfterWindow)
	}
	return nil
}

// Meta describes a finished run for the report layer.
type Meta struct {
	RunID        string        `json:"run_id"`
	IndexKind    string        `json:"index_kind"`
	BeforeSensor string        `json:"before_sensor"`
	AfterSensor  string        `json:"after_sensor"`
	BeforeWindow raster.Window `json:"before_window"`
	AfterWindow  raster.Window `json:"after_window"`
	CRS          string        `json:"crs"`
	GeneratedAt  time.Time     `json:"generated_at"`
}

// Result is the outbound bundle: rasters for the rendering layer plus the
// aggregated statistics.
type Result struct {
	Meta       Meta
	Difference *change.DifferenceRaster
	Classified *severity.ClassifiedRaster
	Statistics *zonal.Statistics
}

// Engine runs analyses. It holds no per-request state: independent requests
// can run concurrently on one engine.
type Engine struct {
	Source       imagery.Source
	Sensors      sensor.Catalog
	Transformer  raster.CRSTransformer
	Metrics      *observability.Metrics
	FetchTimeout time.Duration

	log *zap.Logger
}

func NewEngine(source imagery.Source, sensors sensor.Catalog, tr raster.CRSTransformer) *Engine {
	return &Engine{
		Source:      source,
		Sensors:     sensors,
		Transformer: tr,
		log:         zap.L().Named("analysis"),
	}
}

// Run executes one analysis request end to end.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	result, err := e.run(ctx, req)
	if e.Metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		e.Metrics.AnalysesTotal.WithLabelValues(outcome).Inc()
	}
	return result, err
}

func (e *Engine) run(ctx context.Context, req Request) (*Result, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	log := e.log.With(zap.String("run_id", runID), zap.String("area", req.AOI.Name))
	log.Info("starting analysis",
		zap.String("index", string(req.Index)),
		zap.String("before", req.BeforeWindow.String()),
		zap.String("after", req.AfterWindow.String()))

	// The two branches share nothing and join at the change detector.
	var before, after *index.IndexRaster
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		before, err = e.branch(gctx, req, req.BeforeSensor, req.BeforeWindow, req.BeforeCloudCeiling)
		return err
	})
	g.Go(func() error {
		var err error
		after, err = e.branch(gctx, req, req.AfterSensor, req.AfterWindow, req.AfterCloudCeiling)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if !before.Grid.Equal(after.Grid) {
		ref := harmonize.ChooseReference(before.Grid, after.Grid)
		var err error
		if before, err = harmonize.Harmonize(before, ref, e.Transformer); err != nil {
			return nil, err
		}
		if after, err = harmonize.Harmonize(after, ref, e.Transformer); err != nil {
			return nil, err
		}
		log.Info("harmonized branches onto reference grid",
			zap.Int("width", ref.Width), zap.Int("height", ref.Height), zap.String("crs", ref.CRS))
	}

	diff, err := change.Difference(before, after)
	if err != nil {
		return nil, err
	}

	classified, err := severity.Classify(diff, req.Thresholds)
	if err != nil {
		return nil, err
	}
	if e.Metrics != nil {
		e.Metrics.PixelsAssessed.Add(float64(len(classified.Classes)))
	}

	stats, err := zonal.Aggregate(classified, req.AOI, zonal.Options{
		FoldGreening: req.FoldGreening,
		Transformer:  e.Transformer,
	})
	if err != nil {
		return nil, err
	}

	log.Info("analysis complete",
		zap.Int("total_pixels", stats.TotalPixels),
		zap.Int("classified_pixels", stats.ClassifiedPixels))

	return &Result{
		Meta: Meta{
			RunID:        runID,
			IndexKind:    string(req.Index),
			BeforeSensor: req.BeforeSensor,
			AfterSensor:  req.AfterSensor,
			BeforeWindow: req.BeforeWindow,
			AfterWindow:  req.AfterWindow,
			CRS:          diff.Grid.CRS,
			GeneratedAt:  time.Now().UTC(),
		},
		Difference: diff,
		Classified: classified,
		Statistics: stats,
	}, nil
}

// branch is the fetch→mask→index half-pipeline for one window.
func (e *Engine) branch(ctx context.Context, req Request, sensorID string, window raster.Window, ceiling float64) (*index.IndexRaster, error) {
	spec, err := e.Sensors.Lookup(sensorID)
	if err != nil {
		return nil, err
	}

	fetchCtx := ctx
	if e.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, e.FetchTimeout)
		defer cancel()
	}
	start := time.Now()
	scene, err := e.Source.Fetch(fetchCtx, imagery.Request{
		SensorID:     sensorID,
		Geometry:     req.AOI.Geometry,
		CRS:          req.AOI.CRS,
		Window:       window,
		CloudCeiling: ceiling,
	})
	if e.Metrics != nil {
		e.Metrics.FetchDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, err
	}

	qaName, ok := spec.BandName(sensor.RoleQA)
	if !ok {
		return nil, &quality.MissingQualityBandError{Band: string(sensor.RoleQA), Sensor: sensorID}
	}
	mask, err := quality.BuildMask(scene, qaName, spec.QA)
	if err != nil {
		return nil, err
	}
	screened, err := quality.Apply(scene, mask)
	if err != nil {
		return nil, err
	}

	return index.Compute(screened, req.Index, spec)
}
