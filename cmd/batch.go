package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/emberwatch/burnsight/internal/analysis"
	"github.com/emberwatch/burnsight/internal/notification"
	"github.com/emberwatch/burnsight/internal/render"
	"github.com/emberwatch/burnsight/internal/zonal"
)

var batchFlags struct {
	geojsonPath string
	workers     int
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Analyze every area in a GeoJSON collection",
	Long:  "Runs one analysis per polygon feature on a bounded worker pool. Windows and sensors come from config defaults; a Discord webhook, when configured, receives the summary.",
	RunE: func(cmd *cobra.Command, args []string) error {
		printBanner()

		env, err := initPipeline()
		if err != nil {
			return err
		}

		items, err := loadBatchItems(batchFlags.geojsonPath)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return eris.Errorf("no polygon features in %s", batchFlags.geojsonPath)
		}

		workers := batchFlags.workers
		if workers == 0 {
			workers = cfg.Analysis.BatchWorkers
		}
		notifier := notification.Notifier{WebhookURL: cfg.Notification.DiscordWebhookURL}

		results := env.Engine.RunBatch(cmd.Context(), items, workers, &notifier)

		failed := 0
		for _, br := range results {
			if br.Err != nil {
				failed++
				color.Red("%-30s failed: %s", br.Name, br.Err.Error())
				continue
			}
			artifacts, err := render.WriteAll(br.Result, cfg.Render.OutDir)
			if err != nil {
				failed++
				color.Red("%-30s render failed: %s", br.Name, err.Error())
				continue
			}
			color.Green("%-30s %s", br.Name, artifacts.SeverityPNG)
		}
		if failed > 0 {
			return eris.Errorf("%d of %d areas failed", failed, len(results))
		}
		return nil
	},
}

// loadBatchItems turns each polygon feature into one analysis request using
// the configured defaults. Features may override the ignition date with a
// "fire_start" property.
func loadBatchItems(path string) ([]analysis.BatchItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, eris.Wrapf(err, "parse %s", path)
	}

	thresholds, err := configuredThresholds()
	if err != nil {
		return nil, err
	}

	items := make([]analysis.BatchItem, 0, len(fc.Features))
	for i, feature := range fc.Features {
		var geom orb.MultiPolygon
		switch g := feature.Geometry.(type) {
		case orb.Polygon:
			geom = orb.MultiPolygon{g}
		case orb.MultiPolygon:
			geom = g
		default:
			continue
		}

		name, _ := feature.Properties["name"].(string)
		if name == "" {
			name = fmt.Sprintf("area-%d", i+1)
		}

		fireStart := cfg.Analysis.FireStart
		if override, ok := feature.Properties["fire_start"].(string); ok && override != "" {
			fireStart = override
		}
		before, after, err := windowsFromIgnition(fireStart)
		if err != nil {
			return nil, eris.Wrapf(err, "feature %q", name)
		}

		items = append(items, analysis.BatchItem{
			Name: name,
			Request: analysis.Request{
				AOI:                zonal.AOI{Name: name, Geometry: geom, CRS: "EPSG:4326"},
				BeforeWindow:       before,
				AfterWindow:        after,
				BeforeSensor:       cfg.Analysis.Sensor,
				Thresholds:         thresholds,
				BeforeCloudCeiling: cfg.Analysis.BeforeCloudCeiling,
				AfterCloudCeiling:  cfg.Analysis.AfterCloudCeiling,
				FoldGreening:       cfg.Analysis.FoldGreening,
			},
		})
	}
	return items, nil
}

func init() {
	batchCmd.Flags().StringVar(&batchFlags.geojsonPath, "geojson", "", "GeoJSON file, one polygon feature per area")
	batchCmd.Flags().IntVar(&batchFlags.workers, "workers", 0, "concurrent analyses (default from config)")
	batchCmd.MarkFlagRequired("geojson")
	rootCmd.AddCommand(batchCmd)
}
