package raster

import (
	"fmt"

	"github.com/airbusgeo/godal"
	"github.com/rotisserie/eris"
)

// CRSTransformer converts coordinates between reference systems, in place.
// Implementations must be deterministic.
type CRSTransformer interface {
	Transform(srcCRS, dstCRS string, xs, ys []float64) error
}

// IdentityTransformer handles the same-CRS case only. It keeps the compute
// stages testable without GDAL's PROJ database.
type IdentityTransformer struct{}

func (IdentityTransformer) Transform(srcCRS, dstCRS string, xs, ys []float64) error {
	if srcCRS != dstCRS {
		return fmt.Errorf("raster: identity transformer cannot convert %s to %s", srcCRS, dstCRS)
	}
	return nil
}

// GodalTransformer reprojects through GDAL's spatial reference machinery.
type GodalTransformer struct{}

func (GodalTransformer) Transform(srcCRS, dstCRS string, xs, ys []float64) error {
	if srcCRS == dstCRS {
		return nil
	}
	srcCode, err := EPSGCode(srcCRS)
	if err != nil {
		return err
	}
	dstCode, err := EPSGCode(dstCRS)
	if err != nil {
		return err
	}
	src, err := godal.NewSpatialRefFromEPSG(srcCode)
	if err != nil {
		return eris.Wrapf(err, "raster: resolve %s", srcCRS)
	}
	defer src.Close()
	dst, err := godal.NewSpatialRefFromEPSG(dstCode)
	if err != nil {
		return eris.Wrapf(err, "raster: resolve %s", dstCRS)
	}
	defer dst.Close()

	trn, err := godal.NewTransform(src, dst)
	if err != nil {
		return eris.Wrapf(err, "raster: transform %s to %s", srcCRS, dstCRS)
	}
	defer trn.Close()
	if err := trn.TransformEx(xs, ys, nil, nil); err != nil {
		return eris.Wrapf(err, "raster: transform %s to %s", srcCRS, dstCRS)
	}
	return nil
}
