// Package raster defines the geocoded-raster collaborator contract the
// pipeline delegates file I/O, translation, and reprojection to. Stages
// never touch raster files directly; they go through IO so the heavy
// geometry math stays in external tooling.
package raster

import (
	"context"
	"fmt"

	"github.com/jiechencyz/hyp3-giant/pkg/geotiff"
)

// Dataset is the in-memory view of a geocoded raster.
type Dataset = geotiff.Raster

// Window is a clip window in map coordinates, GDAL projwin order:
// upper-left easting/northing, lower-right easting/northing.
type Window struct {
	ULX float64
	ULY float64
	LRX float64
	LRY float64
}

func (w Window) String() string {
	return fmt.Sprintf("%g %g %g %g", w.ULX, w.ULY, w.LRX, w.LRY)
}

// ScaleParams is a linear stretch of a source value range onto the output
// type's full range.
type ScaleParams struct {
	SrcMin float64
	SrcMax float64
}

// TranslateOptions mirror the subset of gdal_translate options the
// pipeline uses. Zero values mean "not requested".
type TranslateOptions struct {
	OutputType  string       // e.g. "Byte"
	Scale       *ScaleParams // linear stretch into the output type range
	XRes, YRes  float64      // target resolution
	ResampleAlg string       // e.g. "average"
	ProjWin     *Window      // clip window in map coordinates
	Format      string       // output driver, e.g. "PNG"; empty means GTiff
}

// IO is the raster collaborator. Every operation takes explicit source and
// destination paths; implementations never mutate a raster in place.
type IO interface {
	// Read opens and fully reads the raster at path.
	Read(path string) (*Dataset, error)

	// Write materializes d at path as a float32 GeoTIFF.
	Write(path string, d *Dataset) error

	// Translate converts src into dst applying opts.
	Translate(ctx context.Context, src, dst string, opts TranslateOptions) error

	// Warp reprojects src into dst under dstProjection (an EPSG code such
	// as "EPSG:32605") at the given pixel size.
	Warp(ctx context.Context, src, dst, dstProjection string, xRes, yRes float64) error

	// ClipToPolygon cuts src to the polygon(s) in the named shapefile.
	ClipToPolygon(ctx context.Context, src, dst, shapefile string) error
}
