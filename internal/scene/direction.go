package scene

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SidecarXML locates the ISO metadata file delivered alongside sc's
// raster. Products extract as <granule>/<files>, so the sidecar lives in
// a sibling directory named after the same acquisition date.
func SidecarXML(sc Scene) (string, error) {
	root := filepath.Dir(filepath.Dir(sc.Path))
	dirs, err := filepath.Glob(filepath.Join(root, "*"+sc.AcquisitionDate+"*"))
	if err != nil || len(dirs) == 0 {
		return "", fmt.Errorf("no product directory for date %s under %s", sc.AcquisitionDate, root)
	}
	for _, d := range dirs {
		matches, _ := filepath.Glob(filepath.Join(d, "*.iso.xml"))
		if len(matches) > 0 {
			return matches[0], nil
		}
	}
	return "", fmt.Errorf("no iso.xml metadata for date %s under %s", sc.AcquisitionDate, root)
}

// ReadDirection reports the flight direction recorded in a scene's ISO
// metadata sidecar.
func ReadDirection(sc Scene) (Direction, error) {
	xml, err := SidecarXML(sc)
	if err != nil {
		return Unknown, err
	}
	data, err := os.ReadFile(xml)
	if err != nil {
		return Unknown, fmt.Errorf("failed to read %s: %w", xml, err)
	}
	text := strings.ToLower(string(data))
	switch {
	case strings.Contains(text, "ascending"):
		return Ascending, nil
	case strings.Contains(text, "descending"):
		return Descending, nil
	}
	return Unknown, fmt.Errorf("no flight direction recorded in %s", xml)
}

// FilterByDirection keeps the scenes whose recorded flight direction
// matches keep, in their original order. Scenes whose direction cannot
// be determined are dropped. Each disposition is reported through log.
func FilterByDirection(stack Stack, keep Direction, log Logger) Stack {
	kept := make(Stack, 0, len(stack))
	for _, sc := range stack {
		dir, err := ReadDirection(sc)
		if err != nil {
			log.Printf("Unable to determine direction for %s: %v; discarding", filepath.Base(sc.Path), err)
			continue
		}
		sc.FlightDirection = dir
		if dir == keep {
			log.Printf("Keeping %s scene %s", dir, filepath.Base(sc.Path))
			kept = append(kept, sc)
		} else {
			log.Printf("Discarding %s scene %s", dir, filepath.Base(sc.Path))
		}
	}
	return kept
}

// Logger is the narrow run-log surface the scene stages need.
type Logger interface {
	Printf(format string, args ...any)
}
