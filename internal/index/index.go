// Package index computes spectral burn indices from multi-band rasters.
package index

import (
	"fmt"

	"github.com/emberwatch/burnsight/internal/raster"
	"github.com/emberwatch/burnsight/internal/sensor"
)

// Kind identifies a spectral index.
type Kind string

const (
	NBR  Kind = "nbr"  // (NIR - SWIR2) / (NIR + SWIR2)
	NDVI Kind = "ndvi" // (NIR - Red) / (NIR + Red)
	NDWI Kind = "ndwi" // (Green - NIR) / (Green + NIR)
	BAI  Kind = "bai"  // 1 / ((0.1 - Red)^2 + (0.06 - NIR)^2)
)

// ParseKind validates an index name from config or a request.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case NBR, NDVI, NDWI, BAI:
		return Kind(s), nil
	}
	return "", fmt.Errorf("index: unknown index kind %q", s)
}

// roles returns the band roles a kind needs, numerator-first.
func (k Kind) roles() [2]sensor.Role {
	switch k {
	case NBR:
		return [2]sensor.Role{sensor.RoleNIR, sensor.RoleSWIR2}
	case NDVI:
		return [2]sensor.Role{sensor.RoleNIR, sensor.RoleRed}
	case NDWI:
		return [2]sensor.Role{sensor.RoleGreen, sensor.RoleNIR}
	case BAI:
		return [2]sensor.Role{sensor.RoleRed, sensor.RoleNIR}
	}
	return [2]sensor.Role{}
}

// MissingBandError reports a raster lacking a band the index formula needs.
type MissingBandError struct {
	Band string
	Role sensor.Role
	Kind Kind
}

func (e *MissingBandError) Error() string {
	return fmt.Sprintf("index: %s needs band %s (%s) which the raster does not have", e.Kind, e.Band, e.Role)
}

// IndexRaster is a single-band index result tagged with its provenance.
// Normalized-difference values lie in [-1, 1]; BAI is unbounded.
type IndexRaster struct {
	Grid   raster.Grid
	Kind   Kind
	Sensor string
	Window raster.Window
	Values []float64
}

// Compute derives an index raster from r using the sensor's band-role
// mapping. Pixels where the formula's denominator is exactly zero become
// no-data: non-finite values must never reach differencing or
// classification. No-data in any input band propagates to the output.
func Compute(r *raster.Raster, kind Kind, spec sensor.Spec) (*IndexRaster, error) {
	roles := kind.roles()
	var bands [2][]float64
	for i, role := range roles {
		name, ok := spec.BandName(role)
		if !ok {
			return nil, &MissingBandError{Band: string(role), Role: role, Kind: kind}
		}
		samples, ok := r.Band(name)
		if !ok {
			return nil, &MissingBandError{Band: name, Role: role, Kind: kind}
		}
		bands[i] = samples
	}

	values := make([]float64, r.Grid.Width*r.Grid.Height)
	if kind == BAI {
		computeBAI(values, bands[0], bands[1])
	} else {
		computeNormalizedDifference(values, bands[0], bands[1])
	}

	return &IndexRaster{
		Grid:   r.Grid,
		Kind:   kind,
		Sensor: r.Sensor,
		Window: r.Window,
		Values: values,
	}, nil
}

func computeNormalizedDifference(out, a, b []float64) {
	for i := range out {
		av, bv := a[i], b[i]
		if raster.IsNoData(av) || raster.IsNoData(bv) {
			out[i] = raster.NoData()
			continue
		}
		denominator := av + bv
		if denominator == 0 {
			out[i] = raster.NoData()
			continue
		}
		out[i] = (av - bv) / denominator
	}
}

func computeBAI(out, red, nir []float64) {
	for i := range out {
		rv, nv := red[i], nir[i]
		if raster.IsNoData(rv) || raster.IsNoData(nv) {
			out[i] = raster.NoData()
			continue
		}
		denominator := (0.1-rv)*(0.1-rv) + (0.06-nv)*(0.06-nv)
		if denominator == 0 {
			out[i] = raster.NoData()
			continue
		}
		out[i] = 1 / denominator
	}
}
