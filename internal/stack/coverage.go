package stack

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jiechencyz/hyp3-giant/internal/raster"
	"github.com/jiechencyz/hyp3-giant/internal/scene"
)

// Coverage reports the fraction of pixels carrying data, between 0 and
// 1. Zero is the nodata value throughout the pipeline.
func Coverage(d *raster.Dataset) float64 {
	if len(d.Pixels) == 0 {
		return 0
	}
	nonzero := 0
	for _, p := range d.Pixels {
		if p != 0 {
			nonzero++
		}
	}
	return float64(nonzero) / float64(len(d.Pixels))
}

// coverageInWindow clips src to win into a throwaway raster and reports
// its data coverage.
func coverageInWindow(ctx context.Context, io raster.IO, src string, win raster.Window) (float64, error) {
	tmp, err := os.MkdirTemp("", "coverage")
	if err != nil {
		return 0, err
	}
	defer os.RemoveAll(tmp)

	dst := filepath.Join(tmp, "clip.tif")
	opts := raster.TranslateOptions{ProjWin: &win}
	if err := io.Translate(ctx, src, dst, opts); err != nil {
		return 0, fmt.Errorf("failed to clip %s: %w", src, err)
	}
	d, err := io.Read(dst)
	if err != nil {
		return 0, fmt.Errorf("failed to read clipped %s: %w", dst, err)
	}
	return Coverage(d), nil
}

// ElectReference orders the stack so that the scene with the best data
// coverage inside win leads it. The leading scene anchors projection
// reconciliation, so a nearly-empty anchor would drag the whole stack
// onto a marginal zone. Returns a NoOverlapError when no scene covers
// any of the window.
func ElectReference(ctx context.Context, io raster.IO, stack scene.Stack, win raster.Window, log Logger) (scene.Stack, error) {
	best, bestFrac := -1, 0.0
	for i, sc := range stack {
		frac, err := coverageInWindow(ctx, io, sc.Path, win)
		if err != nil {
			return nil, err
		}
		log.Printf("Coverage of %s inside window: %.3f", filepath.Base(sc.Path), frac)
		if frac > bestFrac {
			best, bestFrac = i, frac
		}
	}
	if best < 0 || bestFrac == 0 {
		return nil, &NoOverlapError{Strategy: StrategyBoundingBox}
	}
	if best == 0 {
		return stack, nil
	}

	log.Printf("Electing %s as reference scene", filepath.Base(stack[best].Path))
	out := make(scene.Stack, len(stack))
	copy(out, stack)
	out[0], out[best] = out[best], out[0]
	return out, nil
}
