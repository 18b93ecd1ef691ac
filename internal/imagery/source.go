// Package imagery fetches cloud-filtered composites from an external
// imagery provider and hands them to the pipeline as typed rasters. It is
// the only stage with external I/O: timeouts, retries and caching all live
// here and nowhere else in the engine.
package imagery

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/emberwatch/burnsight/internal/raster"
)

// Request describes one composite to fetch.
type Request struct {
	SensorID     string
	Geometry     orb.MultiPolygon
	CRS          string
	Window       raster.Window
	CloudCeiling float64 // percent, scenes above it are rejected
	Mosaicking   string  // provider mosaicking mode, default "mostRecent"
}

// NoImageryAvailableError reports that no scene satisfied the cloud-cover
// ceiling inside the requested window.
type NoImageryAvailableError struct {
	SensorID     string
	Window       raster.Window
	CloudCeiling float64
}

func (e *NoImageryAvailableError) Error() string {
	return fmt.Sprintf("imagery: no %s scene under %.0f%% cloud cover in %s", e.SensorID, e.CloudCeiling, e.Window)
}

// Source fetches a multi-band raster, QA band included, for a request.
// Implementations handle provider retries internally; an error returned
// here is terminal for the analysis.
type Source interface {
	Fetch(ctx context.Context, req Request) (*raster.Raster, error)
}
