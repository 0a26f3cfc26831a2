// Package scene models one geocoded backscatter raster plus the metadata
// derived from its product name and sidecar files, and the ordered
// working set of scenes flowing through the pipeline.
package scene

import (
	"fmt"
	"os"
	"path/filepath"
)

// Direction is the satellite flight direction of a scene's acquisition.
type Direction string

const (
	Ascending  Direction = "ascending"
	Descending Direction = "descending"
	Unknown    Direction = "unknown"
)

// ParseDirection maps the CLI's single-letter keep values onto a
// Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "a":
		return Ascending, nil
	case "d":
		return Descending, nil
	default:
		return Unknown, fmt.Errorf("unknown direction %q - must be either 'a' or 'd'", s)
	}
}

// Scene is one raster plus derived metadata. Path is the only identity;
// stages replace it when they produce a derived raster, never mutating
// the referenced file.
type Scene struct {
	Path            string
	AcquisitionDate string
	FlightDirection Direction
}

// Stack is the ordered working set of scenes at a pipeline stage. Stage
// functions take a Stack and return a new one; they never mutate their
// input in place.
type Stack []Scene

// Paths returns the raster paths in stack order.
func (s Stack) Paths() []string {
	out := make([]string, len(s))
	for i, sc := range s {
		out[i] = sc.Path
	}
	return out
}

// WithPath returns a copy of sc pointing at a derived raster.
func (sc Scene) WithPath(path string) Scene {
	sc.Path = path
	return sc
}

// FromFiles builds a stack from caller-supplied raster paths, verifying
// each exists and absolutizing relative ones.
func FromFiles(paths []string) (Stack, error) {
	stack := make(Stack, 0, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("can't find input file %s: %w", p, err)
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		stack = append(stack, newScene(abs))
	}
	return stack, nil
}

// Discover finds VV-polarization rasters beneath dir. Products normally
// extract into per-scene subdirectories; older archives extract flat, so
// a second glob handles those.
func Discover(dir string) (Stack, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*", "*vv*.tif"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	if len(matches) == 0 {
		matches, err = filepath.Glob(filepath.Join(dir, "*vv*.tif"))
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
		}
	}

	stack := make(Stack, 0, len(matches))
	for _, m := range matches {
		stack = append(stack, newScene(m))
	}
	return stack, nil
}

func newScene(path string) Scene {
	sc := Scene{Path: path, FlightDirection: Unknown}
	if date, err := ParseAcquisitionDate(path); err == nil {
		sc.AcquisitionDate = date
	}
	return sc
}
