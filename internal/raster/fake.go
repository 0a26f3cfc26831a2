package raster

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"
)

// FakeIO is an in-memory IO for tests. Translate implements real projwin
// clip semantics (output covers the full window, zero-filled where the
// source has no data, matching gdal_translate), so coverage-fraction logic
// can be exercised without GDAL installed.
type FakeIO struct {
	mu       sync.Mutex
	rasters  map[string]*Dataset
	ops      []string
	PolyFail map[string]bool // srcs whose polygon clip yields nothing

	// Touch creates an empty placeholder on disk for every raster the
	// fake produces, so code that moves finished rasters around the
	// filesystem can run against it.
	Touch bool
}

func NewFakeIO() *FakeIO {
	return &FakeIO{rasters: make(map[string]*Dataset), PolyFail: make(map[string]bool)}
}

// Add seeds the fake with a raster at path.
func (f *FakeIO) Add(path string, d *Dataset) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rasters[path] = d
}

// Ops returns the recorded operation log ("translate src dst",
// "warp src proj", ...) in invocation order.
func (f *FakeIO) Ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...)
}

func (f *FakeIO) record(format string, args ...interface{}) {
	f.ops = append(f.ops, fmt.Sprintf(format, args...))
}

func (f *FakeIO) store(path string, d *Dataset) {
	f.rasters[path] = d
	if f.Touch {
		if file, err := os.Create(path); err == nil {
			file.Close()
		}
	}
}

func (f *FakeIO) Read(path string) (*Dataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.rasters[path]
	if !ok {
		return nil, fmt.Errorf("raster not found: %s", path)
	}
	return d, nil
}

func (f *FakeIO) Write(path string, d *Dataset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("write %s", path)
	f.store(path, d)
	return nil
}

func (f *FakeIO) Translate(_ context.Context, src, dst string, opts TranslateOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	d, ok := f.rasters[src]
	if !ok {
		return fmt.Errorf("raster not found: %s", src)
	}
	out := cloneDataset(d)

	if opts.ProjWin != nil {
		out = clipToWindow(out, *opts.ProjWin)
		f.record("translate-projwin %s %s", src, dst)
	}
	if opts.XRes != 0 {
		out = resampleAverage(out, opts.XRes)
		f.record("translate-tr %s %s", src, dst)
	}
	if opts.Scale != nil {
		out = scaleToByte(out, *opts.Scale)
		f.record("translate-scale %s %s", src, dst)
	}
	if opts.Format != "" {
		f.record("translate-of-%s %s %s", opts.Format, src, dst)
	}
	if opts.ProjWin == nil && opts.XRes == 0 && opts.Scale == nil && opts.Format == "" {
		f.record("translate %s %s", src, dst)
	}

	f.store(dst, out)
	return nil
}

func (f *FakeIO) Warp(_ context.Context, src, dst, dstProjection string, xRes, yRes float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	d, ok := f.rasters[src]
	if !ok {
		return fmt.Errorf("raster not found: %s", src)
	}
	out := cloneDataset(d)
	out.Projection = warpProjectionName(dstProjection)
	f.record("warp %s %s", src, dstProjection)
	f.store(dst, out)
	return nil
}

func (f *FakeIO) ClipToPolygon(_ context.Context, src, dst, shapefile string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	d, ok := f.rasters[src]
	if !ok {
		return fmt.Errorf("raster not found: %s", src)
	}
	f.record("clip-polygon %s %s", src, shapefile)
	if f.PolyFail[src] {
		out := cloneDataset(d)
		for i := range out.Pixels {
			out.Pixels[i] = 0
		}
		f.store(dst, out)
		return nil
	}
	f.store(dst, cloneDataset(d))
	return nil
}

func cloneDataset(d *Dataset) *Dataset {
	out := *d
	out.Pixels = append([]float32(nil), d.Pixels...)
	return &out
}

// warpProjectionName fabricates a projection string for a warped raster so
// zone parsing keeps working in tests: "EPSG:32605" becomes a projection
// mentioning "UTM zone 5N".
func warpProjectionName(code string) string {
	var family, zone int
	if n, err := fmt.Sscanf(code, "EPSG:%3d%2d", &family, &zone); err == nil && n == 2 {
		hemi := "N"
		if family == 327 {
			hemi = "S"
		}
		return fmt.Sprintf(`PROJCS["WGS 84 / UTM zone %d%s"]`, zone, hemi)
	}
	return code
}

// clipToWindow mimics gdal_translate -projwin: output spans the window,
// zero where the source does not cover it.
func clipToWindow(d *Dataset, w Window) *Dataset {
	px := d.Geotransform[1]
	py := -d.Geotransform[5]

	outW := int(math.Round((w.LRX - w.ULX) / px))
	outH := int(math.Round((w.ULY - w.LRY) / py))
	if outW < 1 {
		outW = 1
	}
	if outH < 1 {
		outH = 1
	}

	out := &Dataset{
		Width:        outW,
		Height:       outH,
		Geotransform: [6]float64{w.ULX, px, 0, w.ULY, 0, -py},
		Projection:   d.Projection,
		Pixels:       make([]float32, outW*outH),
	}

	for j := 0; j < outH; j++ {
		for i := 0; i < outW; i++ {
			x := w.ULX + (float64(i)+0.5)*px
			y := w.ULY - (float64(j)+0.5)*py
			si := int(math.Floor((x - d.Geotransform[0]) / px))
			sj := int(math.Floor((d.Geotransform[3] - y) / py))
			if si >= 0 && si < d.Width && sj >= 0 && sj < d.Height {
				out.Pixels[j*outW+i] = d.Pixels[sj*d.Width+si]
			}
		}
	}
	return out
}

// resampleAverage performs integer-factor block averaging.
func resampleAverage(d *Dataset, res float64) *Dataset {
	factor := int(math.Round(res / d.Geotransform[1]))
	if factor <= 1 {
		return d
	}
	outW := d.Width / factor
	outH := d.Height / factor
	if outW < 1 || outH < 1 {
		return d
	}

	out := &Dataset{
		Width:        outW,
		Height:       outH,
		Geotransform: d.Geotransform,
		Projection:   d.Projection,
		Pixels:       make([]float32, outW*outH),
	}
	out.Geotransform[1] = res
	out.Geotransform[5] = -res

	for j := 0; j < outH; j++ {
		for i := 0; i < outW; i++ {
			var sum float32
			for dj := 0; dj < factor; dj++ {
				for di := 0; di < factor; di++ {
					sum += d.Pixels[(j*factor+dj)*d.Width+(i*factor+di)]
				}
			}
			out.Pixels[j*outW+i] = sum / float32(factor*factor)
		}
	}
	return out
}

func scaleToByte(d *Dataset, s ScaleParams) *Dataset {
	out := cloneDataset(d)
	span := s.SrcMax - s.SrcMin
	if span == 0 {
		span = 1
	}
	for i, v := range out.Pixels {
		scaled := (float64(v) - s.SrcMin) / span * 255
		if scaled < 0 {
			scaled = 0
		}
		if scaled > 255 {
			scaled = 255
		}
		out.Pixels[i] = float32(math.Round(scaled))
	}
	return out
}
