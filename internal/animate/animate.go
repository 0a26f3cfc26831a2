// Package animate renders a stack of byte-scaled rasters into an
// animated product: each scene becomes one frame with its acquisition
// date burned in, assembled into an animated GIF or a Motion JPEG AVI.
package animate

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"os"

	"github.com/icza/mjpeg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/jiechencyz/hyp3-giant/internal/raster"
)

// Options control frame annotation and animation timing.
type Options struct {
	// FontPath locates a TrueType/OpenType font for date annotation.
	// Empty falls back to a small built-in bitmap face.
	FontPath string

	// FontSize is the annotation point size.
	FontSize float64

	// DelayCentiseconds is the per-frame display time in 1/100 s.
	DelayCentiseconds int

	// Annotate burns each frame's label into the image.
	Annotate bool

	// Quality is the JPEG quality for AVI output, 1-100.
	Quality int
}

// Frame is one animation frame: a rendered scene and its label.
type Frame struct {
	Image image.Image
	Label string
}

// Animator assembles frames into animated products.
type Animator struct {
	opts Options
	face font.Face
}

// New builds an Animator, loading the annotation font when one is
// configured.
func New(opts Options) (*Animator, error) {
	if opts.DelayCentiseconds <= 0 {
		opts.DelayCentiseconds = 120
	}
	if opts.Quality <= 0 {
		opts.Quality = 90
	}

	a := &Animator{opts: opts}
	if !opts.Annotate {
		return a, nil
	}
	if opts.FontPath == "" {
		a.face = basicfont.Face7x13
		return a, nil
	}

	data, err := os.ReadFile(opts.FontPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read font %s: %w", opts.FontPath, err)
	}
	parsed, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font %s: %w", opts.FontPath, err)
	}
	size := opts.FontSize
	if size <= 0 {
		size = 24
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	a.face = face
	return a, nil
}

// Close releases the font face.
func (a *Animator) Close() error {
	if closer, ok := a.face.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// GrayImage renders a byte-scaled raster as a grayscale image.
func GrayImage(d *raster.Dataset) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, d.Width, d.Height))
	for i, v := range d.Pixels {
		g := v
		if g < 0 {
			g = 0
		}
		if g > 255 {
			g = 255
		}
		img.Pix[i] = uint8(g)
	}
	return img
}

// Render produces the final frame image: the scene converted to RGBA,
// with the label drawn top-center when annotation is on.
func (a *Animator) Render(f Frame) *image.RGBA {
	bounds := f.Image.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, f.Image, bounds.Min, draw.Src)
	if a.opts.Annotate && a.face != nil && f.Label != "" {
		a.drawLabel(out, f.Label)
	}
	return out
}

// drawLabel burns the label near the top edge, centered, white over a
// dark offset shadow so it reads on both bright and dark scenes.
func (a *Animator) drawLabel(dst *image.RGBA, label string) {
	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.RGBA{255, 255, 255, 255}),
		Face: a.face,
	}
	textBounds, _ := drawer.BoundString(label)
	textWidth := (textBounds.Max.X - textBounds.Min.X).Ceil()
	textHeight := (textBounds.Max.Y - textBounds.Min.Y).Ceil()

	x := (dst.Bounds().Dx() - textWidth) / 2
	y := textHeight + 10

	shadow := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.RGBA{0, 0, 0, 180}),
		Face: a.face,
		Dot:  fixed.P(x+2, y+2),
	}
	shadow.DrawString(label)

	drawer.Dot = fixed.P(x, y)
	drawer.DrawString(label)
}

// grayPalette covers every byte-scaled pixel value, so dithering a
// backscatter frame into it is lossless.
var grayPalette = func() color.Palette {
	p := make(color.Palette, 256)
	for i := range p {
		p[i] = color.Gray{Y: uint8(i)}
	}
	return p
}()

// ExportGIF writes frames as an endlessly looping animated GIF.
func (a *Animator) ExportGIF(frames []Frame, path string) error {
	if len(frames) == 0 {
		return fmt.Errorf("no frames to animate")
	}

	paletted := make([]*image.Paletted, 0, len(frames))
	delays := make([]int, 0, len(frames))
	for _, f := range frames {
		rendered := a.Render(f)
		p := image.NewPaletted(rendered.Bounds(), grayPalette)
		draw.FloydSteinberg.Draw(p, rendered.Bounds(), rendered, image.Point{})
		paletted = append(paletted, p)
		delays = append(delays, a.opts.DelayCentiseconds)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer out.Close()

	first := paletted[0].Bounds()
	return gif.EncodeAll(out, &gif.GIF{
		Image:     paletted,
		Delay:     delays,
		LoopCount: 0,
		Config: image.Config{
			Width:  first.Dx(),
			Height: first.Dy(),
		},
	})
}

// ExportAVI writes frames as a Motion JPEG AVI. The frame rate follows
// from the configured delay, clamped to at least one frame per second.
func (a *Animator) ExportAVI(frames []Frame, path string) error {
	if len(frames) == 0 {
		return fmt.Errorf("no frames to animate")
	}

	fps := 100 / a.opts.DelayCentiseconds
	if fps < 1 {
		fps = 1
	}

	bounds := frames[0].Image.Bounds()
	writer, err := mjpeg.New(path, int32(bounds.Dx()), int32(bounds.Dy()), int32(fps))
	if err != nil {
		return fmt.Errorf("failed to create video writer: %w", err)
	}
	defer writer.Close()

	for i, f := range frames {
		rendered := a.Render(f)
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, rendered, &jpeg.Options{Quality: a.opts.Quality}); err != nil {
			return fmt.Errorf("failed to encode frame %d: %w", i, err)
		}
		if err := writer.AddFrame(buf.Bytes()); err != nil {
			return fmt.Errorf("failed to add frame %d: %w", i, err)
		}
	}
	return nil
}
