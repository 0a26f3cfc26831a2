// Package stack aligns a set of scenes into a common grid: reconciling
// UTM zones, electing a reference scene, and cutting every raster to a
// shared window.
package stack

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jiechencyz/hyp3-giant/internal/raster"
	"github.com/jiechencyz/hyp3-giant/internal/scene"
)

// Zone identifies a UTM grid zone and hemisphere.
type Zone struct {
	Number     int
	Hemisphere byte // 'N' or 'S'
}

// EPSG returns the projected CRS code for the zone, e.g. "EPSG:32605"
// for zone 5 north.
func (z Zone) EPSG() string {
	family := 326
	if z.Hemisphere == 'S' {
		family = 327
	}
	return fmt.Sprintf("EPSG:%d%02d", family, z.Number)
}

func (z Zone) String() string {
	return fmt.Sprintf("UTM zone %d%c", z.Number, z.Hemisphere)
}

// ParseZone extracts the UTM zone from a projection description. The
// second return is false when the projection carries no zone, which is
// legitimate for rasters in geographic or other projected systems.
func ParseZone(projection string) (Zone, bool) {
	const marker = "UTM zone "
	idx := strings.Index(projection, marker)
	if idx < 0 {
		return Zone{}, false
	}
	rest := projection[idx+len(marker):]
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 || end >= len(rest) {
		return Zone{}, false
	}
	num, err := strconv.Atoi(rest[:end])
	if err != nil {
		return Zone{}, false
	}
	hemi := rest[end]
	if hemi != 'N' && hemi != 'S' {
		return Zone{}, false
	}
	return Zone{Number: num, Hemisphere: hemi}, true
}

// Reconcile warps every scene whose UTM zone differs from the first
// scene's zone into that zone, at the first scene's pixel size. Scenes
// without a parseable zone pass through untouched. The returned stack
// keeps the input order; warped scenes point at the reprojected raster.
func Reconcile(ctx context.Context, io raster.IO, stack scene.Stack, log Logger) (scene.Stack, error) {
	if len(stack) == 0 {
		return stack, nil
	}

	ref, err := io.Read(stack[0].Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference raster %s: %w", stack[0].Path, err)
	}
	refZone, ok := ParseZone(ref.Projection)
	if !ok {
		log.Printf("Reference %s carries no UTM zone; leaving projections as-is", filepath.Base(stack[0].Path))
		return stack, nil
	}
	res := ref.PixelSize()

	out := make(scene.Stack, 0, len(stack))
	out = append(out, stack[0])
	for _, sc := range stack[1:] {
		d, err := io.Read(sc.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", sc.Path, err)
		}
		zone, ok := ParseZone(d.Projection)
		if !ok || zone == refZone {
			out = append(out, sc)
			continue
		}
		dst := derivedPath(sc.Path, "_reproj")
		log.Printf("Reprojecting %s from %s to %s", filepath.Base(sc.Path), zone, refZone)
		if err := io.Warp(ctx, sc.Path, dst, refZone.EPSG(), res, res); err != nil {
			return nil, fmt.Errorf("failed to reproject %s: %w", sc.Path, err)
		}
		out = append(out, sc.WithPath(dst))
	}
	return out, nil
}

// derivedPath appends suffix to the file name, before the extension.
func derivedPath(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}

// Logger is the narrow run-log surface the stack stages need.
type Logger interface {
	Printf(format string, args ...any)
}
