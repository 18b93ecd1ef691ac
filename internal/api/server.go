// Package api exposes the analysis engine over HTTP for the dashboard.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/emberwatch/burnsight/internal/analysis"
	"github.com/emberwatch/burnsight/internal/imagery"
	"github.com/emberwatch/burnsight/internal/index"
	"github.com/emberwatch/burnsight/internal/raster"
	"github.com/emberwatch/burnsight/internal/render"
	"github.com/emberwatch/burnsight/internal/zonal"
)

// Server serves analysis requests and operational endpoints.
type Server struct {
	engine   *analysis.Engine
	registry *prometheus.Registry
	outDir   string
	log      *zap.Logger
}

func NewServer(engine *analysis.Engine, registry *prometheus.Registry, outDir string) *Server {
	return &Server{
		engine:   engine,
		registry: registry,
		outDir:   outDir,
		log:      zap.L().Named("api"),
	}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	r.Post("/api/analyze", s.handleAnalyze)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// AnalyzeRequest is the wire form of one analysis call. The bounding box is
// [west, south, east, north] in EPSG:4326.
type AnalyzeRequest struct {
	Name               string     `json:"name"`
	BBox               [4]float64 `json:"bbox"`
	BeforeStart        string     `json:"before_start"`
	BeforeEnd          string     `json:"before_end"`
	AfterStart         string     `json:"after_start"`
	AfterEnd           string     `json:"after_end"`
	Sensor             string     `json:"sensor"`
	AfterSensor        string     `json:"after_sensor,omitempty"`
	Index              string     `json:"index,omitempty"`
	BeforeCloudCeiling float64    `json:"before_cloud_ceiling,omitempty"`
	AfterCloudCeiling  float64    `json:"after_cloud_ceiling,omitempty"`
	FoldGreening       bool       `json:"fold_greening,omitempty"`
}

// AnalyzeResponse carries the statistics and the artifact paths; rasters
// stay on disk.
type AnalyzeResponse struct {
	Meta       analysis.Meta     `json:"meta"`
	Statistics *zonal.Statistics `json:"statistics"`
	Artifacts  render.Artifacts  `json:"artifacts"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var wire AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req, err := wire.toRequest()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.engine.Run(r.Context(), req)
	if err != nil {
		var noImagery *imagery.NoImageryAvailableError
		if errors.As(err, &noImagery) {
			writeError(w, http.StatusUnprocessableEntity, noImagery.Error())
			return
		}
		s.log.Error("analysis failed", zap.String("area", wire.Name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}

	artifacts, err := render.WriteAll(result, s.outDir)
	if err != nil {
		s.log.Error("artifact render failed", zap.String("run_id", result.Meta.RunID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "artifact render failed")
		return
	}

	writeJSON(w, http.StatusOK, AnalyzeResponse{
		Meta:       result.Meta,
		Statistics: result.Statistics,
		Artifacts:  artifacts,
	})
}

func (wire AnalyzeRequest) toRequest() (analysis.Request, error) {
	if wire.Name == "" {
		wire.Name = "unnamed"
	}
	if wire.BBox[0] >= wire.BBox[2] || wire.BBox[1] >= wire.BBox[3] {
		return analysis.Request{}, fmt.Errorf("bbox must be [west, south, east, north] with west < east and south < north")
	}

	beforeWindow, err := parseWindow(wire.BeforeStart, wire.BeforeEnd, "before")
	if err != nil {
		return analysis.Request{}, err
	}
	afterWindow, err := parseWindow(wire.AfterStart, wire.AfterEnd, "after")
	if err != nil {
		return analysis.Request{}, err
	}

	kind := index.NBR
	if wire.Index != "" {
		if kind, err = index.ParseKind(wire.Index); err != nil {
			return analysis.Request{}, err
		}
	}

	return analysis.Request{
		AOI:                zonal.BBoxAOI(wire.Name, wire.BBox, "EPSG:4326"),
		BeforeWindow:       beforeWindow,
		AfterWindow:        afterWindow,
		BeforeSensor:       wire.Sensor,
		AfterSensor:        wire.AfterSensor,
		Index:              kind,
		BeforeCloudCeiling: wire.BeforeCloudCeiling,
		AfterCloudCeiling:  wire.AfterCloudCeiling,
		FoldGreening:       wire.FoldGreening,
	}, nil
}

func parseWindow(start, end, label string) (raster.Window, error) {
	s, err := time.Parse("2006-01-02", start)
	if err != nil {
		return raster.Window{}, fmt.Errorf("%s_start: expected YYYY-MM-DD, got %q", label, start)
	}
	e, err := time.Parse("2006-01-02", end)
	if err != nil {
		return raster.Window{}, fmt.Errorf("%s_end: expected YYYY-MM-DD, got %q", label, end)
	}
	return raster.Window{Start: s, End: e}, nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
