// Package radiometric converts backscatter rasters between radiometric
// representations: amplitude, power, decibels, and byte-quantized
// variants, with optional speckle filtering and resampling.
package radiometric

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/jiechencyz/hyp3-giant/internal/raster"
	"github.com/jiechencyz/hyp3-giant/internal/scene"
)

// Output types a stack can be rendered in.
const (
	TypePower     = "power"
	TypeAmp       = "amp"
	TypeDB        = "dB"
	TypeDBByte    = "dB-byte"
	TypeSigmaByte = "sigma-byte"
)

// ValidType reports whether t names a supported output type.
func ValidType(t string) bool {
	switch t {
	case TypePower, TypeAmp, TypeDB, TypeDBByte, TypeSigmaByte:
		return true
	}
	return false
}

// Options select the radiometric treatment applied to every scene.
type Options struct {
	InputIsAmp bool       // inputs are amplitude, square into power first
	Filter     bool       // apply the enhanced Lee speckle filter
	Resolution float64    // resample to this pixel size; 0 keeps native
	OutputType string     // one of the Type* constants
	Scale      [2]float64 // dB stretch bounds for dB-byte output
}

// Logger is the narrow run-log surface this package needs.
type Logger interface {
	Printf(format string, args ...any)
}

// Process runs every scene through the full radiometric chain selected
// by opts: power conversion, speckle filter, resample, then the output
// type branch. Scene order is preserved; each returned scene points at
// its final raster.
func Process(ctx context.Context, io raster.IO, filt SpeckleFilter, stk scene.Stack, opts Options, log Logger) (scene.Stack, error) {
	out, err := Prepare(ctx, io, filt, stk, opts, log)
	if err != nil {
		return nil, err
	}
	return Render(ctx, io, out, opts, log)
}

// Prepare applies the power-domain stages: amplitude squaring, speckle
// filter, and resample. The output type branch is deferred to Render so
// callers can cut the stack on power rasters first.
func Prepare(ctx context.Context, io raster.IO, filt SpeckleFilter, stk scene.Stack, opts Options, log Logger) (scene.Stack, error) {
	if !ValidType(opts.OutputType) {
		return nil, fmt.Errorf("unknown output type %q", opts.OutputType)
	}

	out := make(scene.Stack, 0, len(stk))
	for _, sc := range stk {
		path := sc.Path

		if opts.InputIsAmp {
			dst := derivedPath(path, "_pwr")
			if err := AmpToPower(io, path, dst); err != nil {
				return nil, err
			}
			path = dst
		}
		if opts.Filter {
			dst := derivedPath(path, "_sf")
			log.Printf("Speckle filtering %s", filepath.Base(path))
			if err := filt.Apply(ctx, path, dst); err != nil {
				return nil, err
			}
			path = dst
		}
		if opts.Resolution > 0 {
			dst := derivedPath(path, fmt.Sprintf("_%dm", int(opts.Resolution)))
			log.Printf("Resampling %s to %g meters", filepath.Base(path), opts.Resolution)
			if err := ChangeResolution(ctx, io, path, dst, opts.Resolution); err != nil {
				return nil, err
			}
			path = dst
		}
		out = append(out, sc.WithPath(path))
	}
	return out, nil
}

// Render applies the output type branch to every scene. It runs on the
// surviving footprint after cutting so byte quantization never inflates
// coverage statistics.
func Render(ctx context.Context, io raster.IO, stk scene.Stack, opts Options, log Logger) (scene.Stack, error) {
	if !ValidType(opts.OutputType) {
		return nil, fmt.Errorf("unknown output type %q", opts.OutputType)
	}

	out := make(scene.Stack, 0, len(stk))
	for _, sc := range stk {
		final, err := renderType(ctx, io, sc.Path, opts, log)
		if err != nil {
			return nil, err
		}
		out = append(out, sc.WithPath(final))
	}
	return out, nil
}

func renderType(ctx context.Context, io raster.IO, path string, opts Options, log Logger) (string, error) {
	switch opts.OutputType {
	case TypePower:
		return path, nil
	case TypeAmp:
		dst := derivedPath(path, "_amp")
		return dst, PowerToAmp(io, path, dst)
	case TypeDB:
		dst := derivedPath(path, "_dB")
		return dst, ToDecibels(io, path, dst)
	case TypeDBByte:
		db := derivedPath(path, "_dB")
		if err := ToDecibels(io, path, db); err != nil {
			return "", err
		}
		return ByteScale(ctx, io, db, opts.Scale[0], opts.Scale[1])
	case TypeSigmaByte:
		amp := derivedPath(path, "_amp")
		if err := PowerToAmp(io, path, amp); err != nil {
			return "", err
		}
		lower, upper, err := TwoSigmaCutoffs(io, amp)
		if err != nil {
			return "", err
		}
		log.Printf("%s : 2-sigma stretch [%f, %f]", filepath.Base(amp), lower, upper)
		return ByteScale(ctx, io, amp, lower, upper)
	}
	return "", fmt.Errorf("unknown output type %q", opts.OutputType)
}

// AmpToPower squares amplitude pixels into power.
func AmpToPower(io raster.IO, src, dst string) error {
	return mapPixels(io, src, dst, func(v float32) float32 { return v * v })
}

// PowerToAmp takes the square root of power pixels. Negative values are
// clamped to zero first.
func PowerToAmp(io raster.IO, src, dst string) error {
	return mapPixels(io, src, dst, func(v float32) float32 {
		if v <= 0 {
			return 0
		}
		return float32(math.Sqrt(float64(v)))
	})
}

// ToDecibels renders power as 10*ln(power). Nodata pixels stay zero.
func ToDecibels(io raster.IO, src, dst string) error {
	return mapPixels(io, src, dst, func(v float32) float32 {
		if v <= 0 {
			return 0
		}
		return float32(10 * math.Log(float64(v)))
	})
}

func mapPixels(io raster.IO, src, dst string, f func(float32) float32) error {
	d, err := io.Read(src)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}
	out := *d
	out.Pixels = make([]float32, len(d.Pixels))
	for i, v := range d.Pixels {
		out.Pixels[i] = f(v)
	}
	if err := io.Write(dst, &out); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return nil
}

// ChangeResolution resamples src to res-meter pixels by averaging.
func ChangeResolution(ctx context.Context, io raster.IO, src, dst string, res float64) error {
	opts := raster.TranslateOptions{XRes: res, YRes: res, ResampleAlg: "average"}
	if err := io.Translate(ctx, src, dst, opts); err != nil {
		return fmt.Errorf("failed to resample %s: %w", src, err)
	}
	return nil
}

// ByteScale stretches [lower, upper] linearly into the byte range.
// The output name records the integer stretch bounds so differently
// stretched renderings of one scene can coexist.
func ByteScale(ctx context.Context, io raster.IO, src string, lower, upper float64) (string, error) {
	dst := strings.TrimSuffix(src, ".tif") + fmt.Sprintf("%d_%d.tif", int(lower), int(upper))
	opts := raster.TranslateOptions{
		OutputType: "Byte",
		Scale:      &raster.ScaleParams{SrcMin: lower, SrcMax: upper},
	}
	if err := io.Translate(ctx, src, dst, opts); err != nil {
		return "", fmt.Errorf("failed to byte scale %s: %w", src, err)
	}
	return dst, nil
}

func derivedPath(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}
