package stack

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/jiechencyz/hyp3-giant/internal/raster"
	"github.com/jiechencyz/hyp3-giant/internal/scene"
)

// Strategy names the way the common window is chosen.
type Strategy string

const (
	StrategyOverlap     Strategy = "overlap"
	StrategyBoundingBox Strategy = "bounding box"
	StrategyShapeFile   Strategy = "shapefile"
)

// NoOverlapError reports that the chosen strategy left no common area
// with data in it.
type NoOverlapError struct {
	Strategy Strategy
}

func (e *NoOverlapError) Error() string {
	switch e.Strategy {
	case StrategyOverlap:
		return "scenes do not share a common footprint; nothing overlaps"
	case StrategyBoundingBox:
		return "no scene carries data inside the requested bounding box; check the area of interest or lower the coverage threshold"
	case StrategyShapeFile:
		return "no scene carries data inside the shapefile polygon; check the area of interest"
	}
	return "no usable overlap between scenes"
}

// ClipSpec selects how the stack is cut to a common window. Exactly one
// of the three implementations is in force for a run.
type ClipSpec interface {
	clipSpec()
}

// Overlap cuts every scene to the intersection of all footprints.
type Overlap struct{}

// BoundingBox cuts every scene to an explicit easting/northing box in
// the stack's projected coordinates.
type BoundingBox struct {
	MinE, MinN, MaxE, MaxN float64
}

// ShapeFile cuts every scene to a polygon read from an external
// shapefile.
type ShapeFile struct {
	Path string
}

func (Overlap) clipSpec()     {}
func (BoundingBox) clipSpec() {}
func (ShapeFile) clipSpec()   {}

// Window converts the box to a clip window (upper-left / lower-right).
func (b BoundingBox) Window() raster.Window {
	return raster.Window{ULX: b.MinE, ULY: b.MaxN, LRX: b.MaxE, LRY: b.MinN}
}

// Cut clips every scene in the stack to the common window selected by
// spec. For bounding-box and shapefile cuts, scenes whose clipped data
// coverage falls below threshold are discarded; each disposition is
// written to the run log. The returned stack keeps the surviving
// scenes' order; their paths point at the clipped rasters.
func Cut(ctx context.Context, io raster.IO, stk scene.Stack, spec ClipSpec, threshold float64, log Logger) (scene.Stack, error) {
	switch s := spec.(type) {
	case Overlap:
		return cutToOverlap(ctx, io, stk, log)
	case BoundingBox:
		return cutToWindow(ctx, io, stk, s.Window(), StrategyBoundingBox, threshold, log)
	case ShapeFile:
		return cutToPolygon(ctx, io, stk, s.Path, threshold, log)
	}
	return nil, fmt.Errorf("unknown clip spec %T", spec)
}

// cutToOverlap intersects all scene footprints and clips each scene to
// the result. Scenes already share a projection and pixel size here, so
// the clip is a pure subset with no resampling.
func cutToOverlap(ctx context.Context, io raster.IO, stk scene.Stack, log Logger) (scene.Stack, error) {
	var win raster.Window
	for i, sc := range stk {
		d, err := io.Read(sc.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", sc.Path, err)
		}
		minX, minY, maxX, maxY := d.Bounds()
		if i == 0 {
			win = raster.Window{ULX: minX, ULY: maxY, LRX: maxX, LRY: minY}
			continue
		}
		win.ULX = max(win.ULX, minX)
		win.ULY = min(win.ULY, maxY)
		win.LRX = min(win.LRX, maxX)
		win.LRY = max(win.LRY, minY)
	}
	if win.ULX >= win.LRX || win.LRY >= win.ULY {
		return nil, &NoOverlapError{Strategy: StrategyOverlap}
	}
	log.Printf("Common footprint: %s", win)

	out := make(scene.Stack, 0, len(stk))
	for _, sc := range stk {
		dst := derivedPath(sc.Path, "_clip")
		if err := io.Translate(ctx, sc.Path, dst, raster.TranslateOptions{ProjWin: &win}); err != nil {
			return nil, fmt.Errorf("failed to clip %s: %w", sc.Path, err)
		}
		out = append(out, sc.WithPath(dst))
	}
	return out, nil
}

func cutToWindow(ctx context.Context, io raster.IO, stk scene.Stack, win raster.Window, strategy Strategy, threshold float64, log Logger) (scene.Stack, error) {
	out := make(scene.Stack, 0, len(stk))
	for _, sc := range stk {
		dst := derivedPath(sc.Path, "_clip")
		if err := io.Translate(ctx, sc.Path, dst, raster.TranslateOptions{ProjWin: &win}); err != nil {
			return nil, fmt.Errorf("failed to clip %s: %w", sc.Path, err)
		}
		d, err := io.Read(dst)
		if err != nil {
			return nil, fmt.Errorf("failed to read clipped %s: %w", dst, err)
		}
		frac := Coverage(d)
		if frac >= threshold {
			log.Printf("%s : %.3f : kept", filepath.Base(sc.Path), frac)
			out = append(out, sc.WithPath(dst))
		} else {
			log.Printf("%s : %.3f : discarded", filepath.Base(sc.Path), frac)
		}
	}
	if len(out) == 0 {
		return nil, &NoOverlapError{Strategy: strategy}
	}
	return out, nil
}

func cutToPolygon(ctx context.Context, io raster.IO, stk scene.Stack, shape string, threshold float64, log Logger) (scene.Stack, error) {
	out := make(scene.Stack, 0, len(stk))
	for _, sc := range stk {
		dst := derivedPath(sc.Path, "_shape")
		if err := io.ClipToPolygon(ctx, sc.Path, dst, shape); err != nil {
			return nil, fmt.Errorf("failed to clip %s to %s: %w", sc.Path, shape, err)
		}
		d, err := io.Read(dst)
		if err != nil {
			return nil, fmt.Errorf("failed to read clipped %s: %w", dst, err)
		}
		frac := Coverage(d)
		if frac >= threshold {
			log.Printf("%s : %.3f : kept", filepath.Base(sc.Path), frac)
			out = append(out, sc.WithPath(dst))
		} else {
			log.Printf("%s : %.3f : discarded", filepath.Base(sc.Path), frac)
		}
	}
	if len(out) == 0 {
		return nil, &NoOverlapError{Strategy: StrategyShapeFile}
	}
	return out, nil
}
