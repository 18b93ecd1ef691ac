package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/emberwatch/burnsight/internal/analysis"
	"github.com/emberwatch/burnsight/internal/index"
	"github.com/emberwatch/burnsight/internal/raster"
	"github.com/emberwatch/burnsight/internal/render"
	"github.com/emberwatch/burnsight/internal/zonal"
)

var analyzeFlags struct {
	name         string
	geojsonPath  string
	bbox         []float64
	fireStart    string
	beforeStart  string
	beforeEnd    string
	afterStart   string
	afterEnd     string
	sensor       string
	afterSensor  string
	indexKind    string
	foldGreening bool
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run one burn severity analysis",
	Long:  "Fetches before and after composites for an area, differences the spectral index and writes the severity map, statistics and summary artifacts.",
	RunE: func(cmd *cobra.Command, args []string) error {
		printBanner()

		env, err := initPipeline()
		if err != nil {
			return err
		}

		req, err := buildAnalysisRequest()
		if err != nil {
			return err
		}

		result, err := env.Engine.Run(cmd.Context(), req)
		if err != nil {
			return err
		}

		artifacts, err := render.WriteAll(result, cfg.Render.OutDir)
		if err != nil {
			return err
		}

		printStatistics(result)
		color.Green("\nSeverity map:  %s", artifacts.SeverityPNG)
		color.Green("Difference:    %s", artifacts.DifferenceGeoTIFF)
		color.Green("Statistics:    %s", artifacts.StatsCSV)
		color.Green("Summary:       %s", artifacts.SummaryGeoJSON)
		return nil
	},
}

// buildAnalysisRequest resolves flags against the configured defaults. With
// no windows given, they derive from the fire start date: a lookback window
// before ignition and a recovery window after it.
func buildAnalysisRequest() (analysis.Request, error) {
	var aoi zonal.AOI
	var err error
	switch {
	case analyzeFlags.geojsonPath != "":
		aoi, err = zonal.LoadAOI(analyzeFlags.geojsonPath, analyzeFlags.name)
		if err != nil {
			return analysis.Request{}, err
		}
	case len(analyzeFlags.bbox) == 4:
		aoi = zonal.BBoxAOI(analyzeFlags.name, [4]float64(analyzeFlags.bbox), "EPSG:4326")
	default:
		aoi = zonal.BBoxAOI(analyzeFlags.name, cfg.Analysis.BBox, "EPSG:4326")
	}

	beforeWindow, afterWindow, err := resolveWindows()
	if err != nil {
		return analysis.Request{}, err
	}

	kind, err := index.ParseKind(analyzeFlags.indexKind)
	if err != nil {
		return analysis.Request{}, err
	}

	thresholds, err := configuredThresholds()
	if err != nil {
		return analysis.Request{}, err
	}

	return analysis.Request{
		AOI:                aoi,
		BeforeWindow:       beforeWindow,
		AfterWindow:        afterWindow,
		BeforeSensor:       analyzeFlags.sensor,
		AfterSensor:        analyzeFlags.afterSensor,
		Index:              kind,
		Thresholds:         thresholds,
		BeforeCloudCeiling: cfg.Analysis.BeforeCloudCeiling,
		AfterCloudCeiling:  cfg.Analysis.AfterCloudCeiling,
		FoldGreening:       analyzeFlags.foldGreening || cfg.Analysis.FoldGreening,
	}, nil
}

func resolveWindows() (raster.Window, raster.Window, error) {
	if analyzeFlags.beforeStart != "" {
		before, err := parseDateWindow(analyzeFlags.beforeStart, analyzeFlags.beforeEnd)
		if err != nil {
			return raster.Window{}, raster.Window{}, fmt.Errorf("before window: %w", err)
		}
		after, err := parseDateWindow(analyzeFlags.afterStart, analyzeFlags.afterEnd)
		if err != nil {
			return raster.Window{}, raster.Window{}, fmt.Errorf("after window: %w", err)
		}
		return before, after, nil
	}

	fireStart := analyzeFlags.fireStart
	if fireStart == "" {
		fireStart = cfg.Analysis.FireStart
	}
	return windowsFromIgnition(fireStart)
}

// windowsFromIgnition derives both windows from the fire start date: the
// configured lookback before ignition and the recovery span after it.
func windowsFromIgnition(fireStart string) (raster.Window, raster.Window, error) {
	ignition, err := time.Parse("2006-01-02", fireStart)
	if err != nil {
		return raster.Window{}, raster.Window{}, fmt.Errorf("fire start: expected YYYY-MM-DD, got %q", fireStart)
	}

	before := raster.Window{
		Start: ignition.AddDate(0, 0, -cfg.Analysis.BeforeLookbackDays),
		End:   ignition,
	}
	after := raster.Window{
		Start: ignition,
		End:   ignition.AddDate(0, 0, cfg.Analysis.AfterSpanDays),
	}
	return before, after, nil
}

func parseDateWindow(start, end string) (raster.Window, error) {
	s, err := time.Parse("2006-01-02", start)
	if err != nil {
		return raster.Window{}, fmt.Errorf("expected YYYY-MM-DD, got %q", start)
	}
	e, err := time.Parse("2006-01-02", end)
	if err != nil {
		return raster.Window{}, fmt.Errorf("expected YYYY-MM-DD, got %q", end)
	}
	return raster.Window{Start: s, End: e}, nil
}

func printStatistics(result *analysis.Result) {
	color.Cyan("\nBurn severity for run %s", result.Meta.RunID)
	fmt.Printf("%-22s %12s %12s %9s\n", "class", "pixels", "area (ha)", "percent")
	for _, stat := range result.Statistics.Classes {
		fmt.Printf("%-22s %12d %12.2f %8.2f%%\n", stat.Name, stat.PixelCount, stat.AreaHa, stat.Percent)
	}
	fmt.Printf("\n%d of %d pixels classified, %.2f ha assessed\n",
		result.Statistics.ClassifiedPixels, result.Statistics.TotalPixels, result.Statistics.TotalAreaHa)
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFlags.name, "name", "palisades", "area name")
	analyzeCmd.Flags().StringVar(&analyzeFlags.geojsonPath, "geojson", "", "GeoJSON file with the area polygon")
	analyzeCmd.Flags().Float64SliceVar(&analyzeFlags.bbox, "bbox", nil, "bounding box west,south,east,north (EPSG:4326)")
	analyzeCmd.Flags().StringVar(&analyzeFlags.fireStart, "fire-start", "", "ignition date YYYY-MM-DD, windows derive from it")
	analyzeCmd.Flags().StringVar(&analyzeFlags.beforeStart, "before-start", "", "pre-fire window start YYYY-MM-DD")
	analyzeCmd.Flags().StringVar(&analyzeFlags.beforeEnd, "before-end", "", "pre-fire window end YYYY-MM-DD")
	analyzeCmd.Flags().StringVar(&analyzeFlags.afterStart, "after-start", "", "post-fire window start YYYY-MM-DD")
	analyzeCmd.Flags().StringVar(&analyzeFlags.afterEnd, "after-end", "", "post-fire window end YYYY-MM-DD")
	analyzeCmd.Flags().StringVar(&analyzeFlags.sensor, "sensor", "sentinel-2-l2a", "sensor for both windows")
	analyzeCmd.Flags().StringVar(&analyzeFlags.afterSensor, "after-sensor", "", "sensor for the after window, when it differs")
	analyzeCmd.Flags().StringVar(&analyzeFlags.indexKind, "index", "nbr", "spectral index: nbr, ndvi, ndwi or bai")
	analyzeCmd.Flags().BoolVar(&analyzeFlags.foldGreening, "fold-greening", false, "merge enhanced regrowth into unburned_low")
	rootCmd.AddCommand(analyzeCmd)
}
