package raster

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/jiechencyz/hyp3-giant/internal/exttool"
	"github.com/jiechencyz/hyp3-giant/pkg/geotiff"
)

// Tool names the GDAL implementation shells out to.
const (
	toolTranslate = "gdal_translate"
	toolWarp      = "gdalwarp"
)

// GDAL implements IO by invoking the GDAL command-line utilities through
// an exttool.Runner and reading pixel data with the in-process GeoTIFF
// codec. GDAL's default GTiff output (uncompressed, little-endian strips)
// is exactly what the codec handles.
type GDAL struct {
	Runner exttool.Runner
}

// NewGDAL returns a GDAL-backed IO, verifying the required utilities are
// installed.
func NewGDAL(runner exttool.Runner) (*GDAL, error) {
	for _, tool := range []string{toolTranslate, toolWarp} {
		if _, err := runner.LookPath(tool); err != nil {
			return nil, fmt.Errorf("required tool %s not found: %w", tool, err)
		}
	}
	return &GDAL{Runner: runner}, nil
}

func (g *GDAL) Read(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open raster %s: %w", path, err)
	}
	defer f.Close()

	d, err := geotiff.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode raster %s: %w", path, err)
	}
	return d, nil
}

func (g *GDAL) Write(path string, d *Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create raster %s: %w", path, err)
	}
	defer f.Close()

	if err := geotiff.Encode(f, d); err != nil {
		return fmt.Errorf("failed to encode raster %s: %w", path, err)
	}
	return nil
}

func (g *GDAL) Translate(ctx context.Context, src, dst string, opts TranslateOptions) error {
	args := []string{}
	if opts.OutputType != "" {
		args = append(args, "-ot", opts.OutputType)
	}
	if opts.Scale != nil {
		args = append(args, "-scale",
			formatFloat(opts.Scale.SrcMin), formatFloat(opts.Scale.SrcMax))
	}
	if opts.XRes != 0 || opts.YRes != 0 {
		args = append(args, "-tr", formatFloat(opts.XRes), formatFloat(opts.YRes))
	}
	if opts.ResampleAlg != "" {
		args = append(args, "-r", opts.ResampleAlg)
	}
	if opts.ProjWin != nil {
		w := opts.ProjWin
		args = append(args, "-projwin",
			formatFloat(w.ULX), formatFloat(w.ULY), formatFloat(w.LRX), formatFloat(w.LRY))
	}
	if opts.Format != "" {
		args = append(args, "-of", opts.Format)
	}
	args = append(args, src, dst)

	if _, err := g.Runner.Run(ctx, toolTranslate, args...); err != nil {
		return fmt.Errorf("translate %s: %w", src, err)
	}
	return nil
}

func (g *GDAL) Warp(ctx context.Context, src, dst, dstProjection string, xRes, yRes float64) error {
	args := []string{"-t_srs", dstProjection}
	if xRes != 0 || yRes != 0 {
		args = append(args, "-tr", formatFloat(xRes), formatFloat(yRes))
	}
	args = append(args, src, dst)

	if _, err := g.Runner.Run(ctx, toolWarp, args...); err != nil {
		return fmt.Errorf("warp %s to %s: %w", src, dstProjection, err)
	}
	return nil
}

func (g *GDAL) ClipToPolygon(ctx context.Context, src, dst, shapefile string) error {
	args := []string{"-cutline", shapefile, "-crop_to_cutline", src, dst}
	if _, err := g.Runner.Run(ctx, toolWarp, args...); err != nil {
		return fmt.Errorf("clip %s to %s: %w", src, shapefile, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
