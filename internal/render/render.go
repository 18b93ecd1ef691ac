// Package render turns analysis results into the artifacts the dashboard
// layer consumes: a color-mapped severity PNG, the difference raster as
// GeoTIFF, zonal statistics as CSV and a GeoJSON summary.
package render

import (
	"encoding/json"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"
	"github.com/gocarina/gocsv"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"

	"github.com/emberwatch/burnsight/internal/analysis"
	"github.com/emberwatch/burnsight/internal/raster"
	"github.com/emberwatch/burnsight/internal/severity"
	"github.com/emberwatch/burnsight/internal/zonal"
)

// SeverityPalette is the agency-standard burn severity legend: white through
// purple, with gray for unclassified pixels.
var SeverityPalette = map[severity.Class]color.RGBA{
	severity.Unclassified:    {R: 128, G: 128, B: 128, A: 255},
	severity.UnburnedVeryLow: {R: 255, G: 255, B: 255, A: 255},
	severity.UnburnedLow:     {R: 0, G: 128, B: 0, A: 255},
	severity.LowSeverity:     {R: 255, G: 255, B: 0, A: 255},
	severity.ModerateLow:     {R: 255, G: 165, B: 0, A: 255},
	severity.ModerateHigh:    {R: 255, G: 0, B: 0, A: 255},
	severity.HighSeverity:    {R: 128, G: 0, B: 128, A: 255},
}

// WriteSeverityPNG paints the classified raster with the severity palette.
func WriteSeverityPNG(cr *severity.ClassifiedRaster, path string) error {
	dc := gg.NewContext(cr.Grid.Width, cr.Grid.Height)
	for row := 0; row < cr.Grid.Height; row++ {
		for col := 0; col < cr.Grid.Width; col++ {
			c := SeverityPalette[cr.Classes[row*cr.Grid.Width+col]]
			dc.SetRGBA255(int(c.R), int(c.G), int(c.B), int(c.A))
			dc.SetPixel(col, row)
		}
	}
	if err := dc.SavePNG(path); err != nil {
		return eris.Wrapf(err, "render: save %s", path)
	}
	return nil
}

// Artifacts are the file paths of one rendered result.
type Artifacts struct {
	SeverityPNG       string `json:"severity_png"`
	DifferenceGeoTIFF string `json:"difference_geotiff"`
	StatsCSV          string `json:"stats_csv"`
	SummaryGeoJSON    string `json:"summary_geojson"`
}

// WriteAll renders every artifact for a result under outDir, named by the
// run id.
func WriteAll(result *analysis.Result, outDir string) (Artifacts, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return Artifacts{}, eris.Wrapf(err, "render: create %s", outDir)
	}
	base := filepath.Join(outDir, result.Meta.RunID)
	artifacts := Artifacts{
		SeverityPNG:       base + "_severity.png",
		DifferenceGeoTIFF: base + "_diff.tif",
		StatsCSV:          base + "_stats.csv",
		SummaryGeoJSON:    base + "_summary.geojson",
	}

	if err := WriteSeverityPNG(result.Classified, artifacts.SeverityPNG); err != nil {
		return Artifacts{}, err
	}
	if err := raster.WriteGeoTIFF(artifacts.DifferenceGeoTIFF, result.Difference.Grid, result.Difference.Values); err != nil {
		return Artifacts{}, err
	}
	if err := WriteStatsCSV(result.Statistics, artifacts.StatsCSV); err != nil {
		return Artifacts{}, err
	}
	if err := WriteSummaryGeoJSON(result, artifacts.SummaryGeoJSON); err != nil {
		return Artifacts{}, err
	}
	return artifacts, nil
}

// WriteStatsCSV exports the per-class statistics table.
func WriteStatsCSV(stats *zonal.Statistics, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "render: create %s", path)
	}
	defer file.Close()
	if err := gocsv.MarshalFile(&stats.Classes, file); err != nil {
		return eris.Wrapf(err, "render: write %s", path)
	}
	return nil
}

// WriteSummaryGeoJSON emits one feature per run: the difference raster's
// footprint with the metadata and statistics attached as properties.
func WriteSummaryGeoJSON(result *analysis.Result, path string) error {
	bounds := result.Difference.Grid.Bounds()
	feature := geojson.NewFeature(boundsPolygon(bounds))
	feature.Properties["run_id"] = result.Meta.RunID
	feature.Properties["index_kind"] = result.Meta.IndexKind
	feature.Properties["before_sensor"] = result.Meta.BeforeSensor
	feature.Properties["after_sensor"] = result.Meta.AfterSensor
	feature.Properties["crs"] = result.Meta.CRS
	feature.Properties["before_window"] = result.Meta.BeforeWindow.String()
	feature.Properties["after_window"] = result.Meta.AfterWindow.String()
	feature.Properties["total_area_ha"] = result.Statistics.TotalAreaHa
	for _, stat := range result.Statistics.Classes {
		feature.Properties[fmt.Sprintf("pct_%s", stat.Name)] = stat.Percent
	}

	fc := geojson.NewFeatureCollection()
	fc.Append(feature)

	file, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "render: create %s", path)
	}
	defer file.Close()
	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(fc); err != nil {
		return eris.Wrapf(err, "render: encode %s", path)
	}
	return nil
}

func boundsPolygon(b [4]float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{b[0], b[1]}, {b[2], b[1]}, {b[2], b[3]}, {b[0], b[3]}, {b[0], b[1]},
	}}
}
