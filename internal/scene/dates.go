package scene

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// ParseAcquisitionDate extracts the acquisition timestamp from a product
// file name. Names carry five dash-separated fields; the fifth embeds
// either the bare timestamp (short legacy names) or the full granule
// name whose fifth underscore field is the start timestamp.
func ParseAcquisitionDate(path string) (string, error) {
	base := filepath.Base(path)
	dashed := strings.Split(base, "-")
	if len(dashed) < 5 {
		return "", fmt.Errorf("unable to parse date from %s", base)
	}
	field := dashed[4]
	parts := strings.Split(field, "_")
	if len(field) <= 26 {
		// Short legacy names end in the timestamp itself, so the token
		// still carries the file extension here.
		return strings.TrimSuffix(parts[0], filepath.Ext(parts[0])), nil
	}
	if len(parts) < 5 {
		return "", fmt.Errorf("unable to parse date from %s", base)
	}
	return parts[4], nil
}

// SortByDate returns a copy of the stack in ascending acquisition order.
// The sort is stable so scenes sharing a timestamp keep their relative
// order across runs.
func SortByDate(stack Stack) Stack {
	out := make(Stack, len(stack))
	copy(out, stack)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AcquisitionDate < out[j].AcquisitionDate
	})
	return out
}
