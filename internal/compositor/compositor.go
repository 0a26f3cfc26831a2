// Package compositor turns a finished stack into its deliverables: a
// date-annotated animation plus a product directory holding the
// animation, the retained rasters, and the run log.
package compositor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jiechencyz/hyp3-giant/internal/animate"
	"github.com/jiechencyz/hyp3-giant/internal/exttool"
	"github.com/jiechencyz/hyp3-giant/internal/raster"
	"github.com/jiechencyz/hyp3-giant/internal/scene"
)

// Logger is the narrow run-log surface this package needs.
type Logger interface {
	Printf(format string, args ...any)
}

// Compositor assembles the animated product. It prefers ImageMagick's
// convert for annotation and GIF assembly, matching long-standing
// product output, and falls back to the built-in encoder when convert
// is not installed.
type Compositor struct {
	IO     raster.IO
	Runner exttool.Runner

	// Annotate burns acquisition dates into the frames.
	Annotate bool

	// FontSize is the annotation point size for convert.
	FontSize int

	// FontPath optionally selects the font for the built-in encoder.
	FontPath string

	// ConvertPath overrides the convert executable; default convert on
	// PATH.
	ConvertPath string
}

const frameDelayCentiseconds = 120

func (c *Compositor) convertTool() string {
	if c.ConvertPath != "" {
		return c.ConvertPath
	}
	return "convert"
}

// Animate renders every scene to a frame and assembles them into an
// animation at outPath. The extension selects the container: .avi is
// always encoded with the built-in Motion JPEG writer, anything else
// is an animated GIF. Scene order is frame order.
func (c *Compositor) Animate(ctx context.Context, stk scene.Stack, outPath string, log Logger) error {
	if len(stk) == 0 {
		return fmt.Errorf("no scenes to animate")
	}

	if filepath.Ext(outPath) == ".avi" {
		log.Printf("Encoding %s with the built-in Motion JPEG writer", filepath.Base(outPath))
		return c.animateBuiltin(stk, outPath)
	}
	if _, err := c.Runner.LookPath(c.convertTool()); err != nil {
		log.Printf("convert not found; using built-in animation encoder")
		return c.animateBuiltin(stk, outPath)
	}
	return c.animateConvert(ctx, stk, outPath, log)
}

func (c *Compositor) animateConvert(ctx context.Context, stk scene.Stack, gifPath string, log Logger) error {
	pngs := make([]string, 0, len(stk))
	for _, sc := range stk {
		png := strings.TrimSuffix(sc.Path, filepath.Ext(sc.Path)) + ".png"
		opts := raster.TranslateOptions{Format: "PNG"}
		if err := c.IO.Translate(ctx, sc.Path, png, opts); err != nil {
			return fmt.Errorf("failed to render frame for %s: %w", sc.Path, err)
		}
		if c.Annotate {
			if err := c.annotateFrame(ctx, png, sc.AcquisitionDate); err != nil {
				return err
			}
		}
		pngs = append(pngs, png)
	}

	log.Printf("Assembling %d frames into %s", len(pngs), filepath.Base(gifPath))
	args := append([]string{"-delay", strconv.Itoa(frameDelayCentiseconds), "-loop", "0"}, pngs...)
	args = append(args, gifPath)
	if _, err := c.Runner.Run(ctx, c.convertTool(), args...); err != nil {
		return fmt.Errorf("failed to assemble animation: %w", err)
	}
	return nil
}

// annotateFrame burns the acquisition date top-center: a dark stroked
// pass under a white fill so the text reads on any backscatter scene.
func (c *Compositor) annotateFrame(ctx context.Context, png, date string) error {
	size := c.FontSize
	if size <= 0 {
		size = 24
	}
	args := []string{
		png,
		"-pointsize", strconv.Itoa(size),
		"-gravity", "north",
		"-stroke", "#000C", "-strokewidth", "2", "-annotate", "+0+5", date,
		"-stroke", "none", "-fill", "white", "-annotate", "+0+5", date,
		png,
	}
	if _, err := c.Runner.Run(ctx, c.convertTool(), args...); err != nil {
		return fmt.Errorf("failed to annotate %s: %w", png, err)
	}
	return nil
}

func (c *Compositor) animateBuiltin(stk scene.Stack, outPath string) error {
	animator, err := animate.New(animate.Options{
		Annotate:          c.Annotate,
		FontPath:          c.FontPath,
		FontSize:          float64(c.FontSize),
		DelayCentiseconds: frameDelayCentiseconds,
	})
	if err != nil {
		return err
	}
	defer animator.Close()

	frames := make([]animate.Frame, 0, len(stk))
	for _, sc := range stk {
		d, err := c.IO.Read(sc.Path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", sc.Path, err)
		}
		frames = append(frames, animate.Frame{
			Image: animate.GrayImage(d),
			Label: sc.AcquisitionDate,
		})
	}
	if filepath.Ext(outPath) == ".avi" {
		return animator.ExportAVI(frames, outPath)
	}
	return animator.ExportGIF(frames, outPath)
}

// ProductDir returns the product directory name for a run: PRODUCT for
// unnamed runs, PRODUCT_<name> otherwise.
func ProductDir(parent, name string) string {
	if name == "" {
		return filepath.Join(parent, "PRODUCT")
	}
	return filepath.Join(parent, "PRODUCT_"+name)
}

// CreateCleanDir makes dir, removing any previous contents first.
func CreateCleanDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clear %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}

// Collect moves files into the product directory. Missing sources are
// an error; the product either assembles completely or the run fails.
func Collect(dir string, files []string) error {
	for _, f := range files {
		dst := filepath.Join(dir, filepath.Base(f))
		if err := moveFile(f, dst); err != nil {
			return fmt.Errorf("failed to collect %s into product: %w", f, err)
		}
	}
	return nil
}

// moveFile renames src to dst, copying across filesystems when rename
// is not possible.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
