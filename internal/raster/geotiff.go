package raster

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/airbusgeo/godal"
	"github.com/rotisserie/eris"
)

// quietLogger drops GDAL warnings, matching how datasets are opened across
// the rest of the pipeline. Real errors still surface.
func quietLogger(ec godal.ErrorCategory, code int, msg string) error {
	if ec == godal.CE_Warning {
		return nil
	}
	return fmt.Errorf("gdal error %d: %s", code, msg)
}

// EPSGCode parses a "EPSG:nnnn" CRS identifier.
func EPSGCode(crs string) (int, error) {
	s := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(crs)), "EPSG:")
	code, err := strconv.Atoi(s)
	if err != nil {
		return 0, eris.Wrapf(err, "raster: CRS %q is not an EPSG identifier", crs)
	}
	return code, nil
}

// ReadGeoTIFF opens a multi-band GeoTIFF and reads the listed bands, in file
// order, into a new raster. The file's geotransform defines the grid; crs is
// supplied by the caller because the fetch request fixes it.
func ReadGeoTIFF(path string, bandNames []string, crs, sensor string, window Window) (*Raster, error) {
	godal.RegisterInternalDrivers()
	ds, err := godal.Open(path, godal.ErrLogger(quietLogger))
	if err != nil {
		return nil, eris.Wrapf(err, "raster: open %s", path)
	}
	defer ds.Close()

	width := ds.Structure().SizeX
	height := ds.Structure().SizeY
	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, eris.Wrapf(err, "raster: geotransform of %s", path)
	}

	bands := ds.Bands()
	if len(bands) < len(bandNames) {
		return nil, eris.Errorf("raster: %s has %d bands, expected %d", path, len(bands), len(bandNames))
	}

	grid := Grid{Width: width, Height: height, GeoTransform: gt, CRS: crs}
	out := New(grid, sensor, window)
	for i, name := range bandNames {
		samples := make([]float64, width*height)
		if err := bands[i].Read(0, 0, samples, width, height); err != nil {
			return nil, eris.Wrapf(err, "raster: read band %s of %s", name, path)
		}
		if err := out.AddBand(name, samples); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// WriteGeoTIFF writes one band of float64 samples as a single-band GeoTIFF
// with the grid's georeferencing. NaN samples are written as-is and flagged
// as the band's no-data value.
func WriteGeoTIFF(path string, grid Grid, samples []float64) error {
	if len(samples) != grid.Width*grid.Height {
		return eris.Errorf("raster: %d samples do not fill a %dx%d grid", len(samples), grid.Width, grid.Height)
	}
	godal.RegisterInternalDrivers()
	ds, err := godal.Create(godal.GTiff, path, 1, godal.Float64, grid.Width, grid.Height)
	if err != nil {
		return eris.Wrapf(err, "raster: create %s", path)
	}
	defer ds.Close()

	if err := ds.SetGeoTransform(grid.GeoTransform); err != nil {
		return eris.Wrapf(err, "raster: set geotransform on %s", path)
	}
	if code, err := EPSGCode(grid.CRS); err == nil {
		sr, err := godal.NewSpatialRefFromEPSG(code)
		if err != nil {
			return eris.Wrapf(err, "raster: spatial ref for %s", grid.CRS)
		}
		defer sr.Close()
		if err := ds.SetSpatialRef(sr); err != nil {
			return eris.Wrapf(err, "raster: set spatial ref on %s", path)
		}
	}
	if err := ds.Bands()[0].Write(0, 0, samples, grid.Width, grid.Height); err != nil {
		return eris.Wrapf(err, "raster: write band to %s", path)
	}
	return nil
}
