// Package pipeline drives a full stacking run: staging inputs, filtering
// and aligning scenes, radiometric processing, and product assembly.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jiechencyz/hyp3-giant/internal/compositor"
	"github.com/jiechencyz/hyp3-giant/internal/hyp3"
	"github.com/jiechencyz/hyp3-giant/internal/radiometric"
	"github.com/jiechencyz/hyp3-giant/internal/raster"
	"github.com/jiechencyz/hyp3-giant/internal/runlog"
	"github.com/jiechencyz/hyp3-giant/internal/scene"
	"github.com/jiechencyz/hyp3-giant/internal/stack"
)

// Config is a fully validated run configuration.
type Config struct {
	// Inputs: explicit rasters take precedence over Path scanning.
	InFiles []string
	Path    string // directory holding extracted products or archives
	Zip     bool   // Path holds zip archives to extract first

	// OutName names the animation and the product directory suffix.
	OutName string

	// Format selects the animation container, gif (default) or avi.
	Format string

	// Scene selection
	Keep scene.Direction // empty keeps both directions

	// Stack alignment
	Clip      stack.ClipSpec
	Threshold float64

	// Radiometric treatment
	Radiometric radiometric.Options

	// Quick cuts the stack before radiometric processing, trading
	// radiometric rigor at the clip seams for far less data to filter
	// and resample. The default order processes first, then cuts.
	Quick bool

	// Workspace
	WorkDir      string
	LeaveScratch bool
}

// Validate rejects configurations the run could not honor.
func (c *Config) Validate() error {
	if len(c.InFiles) == 0 && c.Path == "" {
		return fmt.Errorf("%w: no input files and no search path given", ErrMissingInput)
	}
	if c.Clip == nil {
		return fmt.Errorf("%w: no clip strategy selected", ErrConfigConflict)
	}
	if !radiometric.ValidType(c.Radiometric.OutputType) {
		return fmt.Errorf("%w: unknown output type %q", ErrConfigConflict, c.Radiometric.OutputType)
	}
	if c.Threshold <= 0 || c.Threshold >= 1 {
		return fmt.Errorf("%w: coverage threshold %g outside (0, 1)", ErrConfigConflict, c.Threshold)
	}
	if c.Format != "" && c.Format != "gif" && c.Format != "avi" {
		return fmt.Errorf("%w: unknown animation format %q", ErrConfigConflict, c.Format)
	}
	if shape, ok := c.Clip.(stack.ShapeFile); ok {
		if _, err := os.Stat(shape.Path); err != nil {
			return fmt.Errorf("%w: shapefile %s not found", ErrMissingInput, shape.Path)
		}
	}
	return nil
}

// Result reports where a finished run left its product.
type Result struct {
	ProductDir string
	Animation  string
	Scenes     scene.Stack
}

// Runner executes stacking runs against a raster backend and the
// external tool chain.
type Runner struct {
	IO      raster.IO
	Filter  radiometric.SpeckleFilter
	Comp    *compositor.Compositor
	Log     *runlog.Log
	Scratch string // set during Run
}

// Run executes one full stacking run. On failure no product directory
// is left behind; the scratch directory is kept only when configured.
func (r *Runner) Run(ctx context.Context, cfg Config) (res *Result, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = "."
	}
	scratch := filepath.Join(workDir, "TEMP")
	if err := compositor.CreateCleanDir(scratch); err != nil {
		return nil, err
	}
	r.Scratch = scratch
	defer func() {
		if !cfg.LeaveScratch {
			os.RemoveAll(scratch)
		}
	}()

	productDir := compositor.ProductDir(workDir, cfg.OutName)
	productCreated := false
	defer func() {
		if err != nil && productCreated {
			os.RemoveAll(productDir)
		}
	}()

	stk, err := r.stageInputs(ctx, cfg, scratch)
	if err != nil {
		return nil, err
	}
	r.Log.Printf("Found %d scenes to stack", len(stk))

	// Explicit inputs are staged bare rasters with no metadata sidecars
	// next to them, so the direction filter only applies to discovered
	// products.
	if cfg.Keep != "" && len(cfg.InFiles) == 0 {
		stk = scene.FilterByDirection(stk, cfg.Keep, r.Log)
		if len(stk) == 0 {
			return nil, fmt.Errorf("%w: no %s scenes remain", ErrNoUsableScenes, cfg.Keep)
		}
	}
	stk = scene.SortByDate(stk)

	stk, err = r.alignAndProcess(ctx, cfg, stk)
	if err != nil {
		return nil, err
	}

	animName := cfg.OutName
	if animName == "" {
		animName = "animation"
	}
	format := cfg.Format
	if format == "" {
		format = "gif"
	}
	animPath := filepath.Join(scratch, animName+"."+format)
	frames, err := r.frameStack(ctx, cfg, stk)
	if err != nil {
		return nil, err
	}
	if err := r.Comp.Animate(ctx, frames, animPath, r.Log); err != nil {
		return nil, err
	}

	if err := compositor.CreateCleanDir(productDir); err != nil {
		return nil, err
	}
	productCreated = true
	collect := append([]string{animPath}, stk.Paths()...)
	if err := compositor.Collect(productDir, collect); err != nil {
		return nil, err
	}

	final := make(scene.Stack, len(stk))
	copy(final, stk)
	for i := range final {
		final[i].Path = filepath.Join(productDir, filepath.Base(final[i].Path))
	}
	r.Log.Printf("Product assembled in %s", productDir)
	return &Result{
		ProductDir: productDir,
		Animation:  filepath.Join(productDir, filepath.Base(animPath)),
		Scenes:     final,
	}, nil
}

// stageInputs materializes the initial stack in the scratch directory.
// Explicit inputs are symlinked in so derived rasters land in scratch
// instead of next to the originals.
func (r *Runner) stageInputs(ctx context.Context, cfg Config, scratch string) (scene.Stack, error) {
	if len(cfg.InFiles) > 0 {
		staged := make([]string, 0, len(cfg.InFiles))
		for _, f := range cfg.InFiles {
			abs, err := filepath.Abs(f)
			if err != nil {
				return nil, err
			}
			if _, err := os.Stat(abs); err != nil {
				return nil, fmt.Errorf("%w: %s", ErrMissingInput, f)
			}
			link := filepath.Join(scratch, filepath.Base(abs))
			if err := os.Symlink(abs, link); err != nil {
				// Symlinks are not available everywhere; fall back
				// to copying so originals are still never touched.
				if err := copyFile(abs, link); err != nil {
					return nil, fmt.Errorf("failed to stage %s: %w", f, err)
				}
			}
			staged = append(staged, link)
		}
		return scene.FromFiles(staged)
	}

	srcDir := cfg.Path
	if cfg.Zip {
		r.Log.Printf("Extracting archives from %s", cfg.Path)
		if err := hyp3.ExtractAll(cfg.Path, scratch); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMissingInput, err)
		}
		srcDir = scratch
	}
	stk, err := scene.Discover(srcDir)
	if err != nil {
		return nil, err
	}
	if len(stk) == 0 {
		return nil, fmt.Errorf("%w: no VV rasters found under %s", ErrNoUsableScenes, srcDir)
	}
	return stk, nil
}

// alignAndProcess orders the alignment and radiometric stages per the
// configured mode and clip strategy.
func (r *Runner) alignAndProcess(ctx context.Context, cfg Config, stk scene.Stack) (scene.Stack, error) {
	align := func(stk scene.Stack) (scene.Stack, error) {
		if box, ok := cfg.Clip.(stack.BoundingBox); ok {
			elected, err := stack.ElectReference(ctx, r.IO, stk, box.Window(), r.Log)
			if err != nil {
				return nil, err
			}
			stk = elected
		}
		stk, err := stack.Reconcile(ctx, r.IO, stk, r.Log)
		if err != nil {
			return nil, err
		}
		return stack.Cut(ctx, r.IO, stk, cfg.Clip, cfg.Threshold, r.Log)
	}

	if cfg.Quick {
		cut, err := align(stk)
		if err != nil {
			return nil, err
		}
		return radiometric.Process(ctx, r.IO, r.Filter, cut, cfg.Radiometric, r.Log)
	}

	// Default order: the power-domain stages run on the full scenes,
	// the cut follows, and the output type branch renders only the
	// surviving footprint. Rendering before the cut would let byte
	// quantization turn nodata into nonzero values and inflate the
	// coverage fractions the cut decides on.
	prepared, err := radiometric.Prepare(ctx, r.IO, r.Filter, stk, cfg.Radiometric, r.Log)
	if err != nil {
		return nil, err
	}
	cut, err := align(prepared)
	if err != nil {
		return nil, err
	}
	return radiometric.Render(ctx, r.IO, cut, cfg.Radiometric, r.Log)
}

// frameStack yields the byte-scaled scenes the animation is built from.
// Byte output types animate directly; float types get a throwaway dB
// stretch so the frames have a defined dynamic range while the retained
// rasters stay in their requested type.
func (r *Runner) frameStack(ctx context.Context, cfg Config, stk scene.Stack) (scene.Stack, error) {
	switch cfg.Radiometric.OutputType {
	case radiometric.TypeDBByte, radiometric.TypeSigmaByte:
		return stk, nil
	}

	frames := make(scene.Stack, 0, len(stk))
	for _, sc := range stk {
		db := sc.Path
		if cfg.Radiometric.OutputType != radiometric.TypeDB {
			db = filepath.Join(r.Scratch, "frame_"+filepath.Base(sc.Path))
			if err := radiometric.ToDecibels(r.IO, sc.Path, db); err != nil {
				return nil, err
			}
		}
		scaled, err := radiometric.ByteScale(ctx, r.IO, db, cfg.Radiometric.Scale[0], cfg.Radiometric.Scale[1])
		if err != nil {
			return nil, err
		}
		frames = append(frames, sc.WithPath(scaled))
	}
	return frames, nil
}

func copyFile(src, dst string) error {
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
	return out.Close()
}
