package animate

import (
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiechencyz/hyp3-giant/internal/raster"
)

func grayFrame(w, h int, shade uint8, label string) Frame {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = shade
	}
	return Frame{Image: img, Label: label}
}

func TestGrayImageClamps(t *testing.T) {
	d := &raster.Dataset{
		Width:  2,
		Height: 2,
		Pixels: []float32{-5, 0, 128, 300},
	}
	img := GrayImage(d)
	assert.Equal(t, []uint8{0, 0, 128, 255}, img.Pix)
}

func TestRenderWithoutAnnotation(t *testing.T) {
	a, err := New(Options{})
	require.NoError(t, err)
	out := a.Render(grayFrame(8, 8, 100, "20180118"))
	assert.Equal(t, 8, out.Bounds().Dx())
	r, _, _, _ := out.At(4, 4).RGBA()
	assert.Equal(t, uint32(100*257), r)
}

func TestRenderAnnotationChangesPixels(t *testing.T) {
	a, err := New(Options{Annotate: true})
	require.NoError(t, err)
	plain := a.Render(grayFrame(120, 60, 100, ""))
	labeled := a.Render(grayFrame(120, 60, 100, "20180118T031947"))

	diff := 0
	for y := 0; y < 60; y++ {
		for x := 0; x < 120; x++ {
			if plain.At(x, y) != labeled.At(x, y) {
				diff++
			}
		}
	}
	assert.Greater(t, diff, 0, "annotation should modify pixels")
}

func TestExportGIF(t *testing.T) {
	a, err := New(Options{DelayCentiseconds: 120})
	require.NoError(t, err)

	frames := []Frame{
		grayFrame(16, 16, 40, "20180118"),
		grayFrame(16, 16, 200, "20180204"),
	}
	path := filepath.Join(t.TempDir(), "stack.gif")
	require.NoError(t, a.ExportGIF(frames, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := gif.DecodeAll(f)
	require.NoError(t, err)
	assert.Len(t, decoded.Image, 2)
	assert.Equal(t, []int{120, 120}, decoded.Delay)
	assert.Equal(t, 0, decoded.LoopCount)

	// Uniform gray frames survive the palette round trip untouched.
	r, g, b, _ := decoded.Image[0].At(8, 8).RGBA()
	assert.Equal(t, []uint32{40 * 0x101, 40 * 0x101, 40 * 0x101}, []uint32{r, g, b})
	r, g, b, _ = decoded.Image[1].At(8, 8).RGBA()
	assert.Equal(t, []uint32{200 * 0x101, 200 * 0x101, 200 * 0x101}, []uint32{r, g, b})
}

func TestExportGIFNoFrames(t *testing.T) {
	a, err := New(Options{})
	require.NoError(t, err)
	assert.Error(t, a.ExportGIF(nil, filepath.Join(t.TempDir(), "empty.gif")))
}

func TestExportAVI(t *testing.T) {
	a, err := New(Options{DelayCentiseconds: 50})
	require.NoError(t, err)

	frames := []Frame{
		grayFrame(16, 16, 40, ""),
		grayFrame(16, 16, 200, ""),
	}
	path := filepath.Join(t.TempDir(), "stack.avi")
	require.NoError(t, a.ExportAVI(frames, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestNewMissingFont(t *testing.T) {
	_, err := New(Options{Annotate: true, FontPath: "/no/such/font.ttf"})
	assert.Error(t, err)
}

func TestRenderPreservesNonGrayInput(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{10, 20, 30, 255})
	a, err := New(Options{})
	require.NoError(t, err)
	out := a.Render(Frame{Image: img})
	assert.Equal(t, color.RGBA{10, 20, 30, 255}, out.RGBAAt(1, 1))
}
