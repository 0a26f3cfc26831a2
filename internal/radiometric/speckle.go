package radiometric

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jiechencyz/hyp3-giant/internal/exttool"
	"github.com/jiechencyz/hyp3-giant/internal/raster"
)

// SpeckleFilter reduces multiplicative speckle noise in one raster.
type SpeckleFilter interface {
	Apply(ctx context.Context, src, dst string) error
}

// EnhLee drives the external enhanced Lee filter. The tool consumes and
// produces headerless big-endian float32 rasters, so pixels are
// byte-swapped on the way in and out and the georeferencing is carried
// across from the source.
type EnhLee struct {
	IO     raster.IO
	Runner exttool.Runner

	// Tool overrides the filter executable; default enh_lee on PATH.
	Tool string

	// Looks: number of radar looks in the input, default 4.
	Looks int
}

const (
	defaultLooks   = 4
	enhLeeDamping  = 1
	enhLeeFilterSz = 7
)

func (e *EnhLee) Apply(ctx context.Context, src, dst string) error {
	d, err := e.IO.Read(src)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}

	tmp, err := os.MkdirTemp("", "enhlee")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	rawIn := filepath.Join(tmp, "filter_in.img")
	rawOut := filepath.Join(tmp, "filter_out.img")
	if err := writeSwapped(rawIn, d.Pixels); err != nil {
		return fmt.Errorf("failed to stage %s for filtering: %w", src, err)
	}

	looks := e.Looks
	if looks == 0 {
		looks = defaultLooks
	}
	args := []string{
		rawIn, rawOut,
		strconv.Itoa(d.Width),
		strconv.Itoa(enhLeeDamping),
		strconv.Itoa(looks),
		strconv.Itoa(enhLeeFilterSz),
		strconv.Itoa(enhLeeFilterSz),
	}
	tool := e.Tool
	if tool == "" {
		tool = "enh_lee"
	}
	if _, err := e.Runner.Run(ctx, tool, args...); err != nil {
		return fmt.Errorf("speckle filter failed on %s: %w", src, err)
	}

	pixels, err := readSwapped(rawOut, d.Width*d.Height)
	if err != nil {
		return fmt.Errorf("failed to read filtered output for %s: %w", src, err)
	}

	out := *d
	out.Pixels = pixels
	if err := e.IO.Write(dst, &out); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return nil
}

func writeSwapped(path string, pixels []float32) error {
	buf := make([]byte, 4*len(pixels))
	for i, v := range pixels {
		binary.BigEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return os.WriteFile(path, buf, 0o644)
}

func readSwapped(path string, n int) ([]float32, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(buf) < 4*n {
		return nil, fmt.Errorf("filtered raster %s truncated: want %d bytes, have %d", path, 4*n, len(buf))
	}
	pixels := make([]float32, n)
	for i := range pixels {
		pixels[i] = math.Float32frombits(binary.BigEndian.Uint32(buf[4*i:]))
	}
	return pixels, nil
}
