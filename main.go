// main.go bootstraps rtcstack: it builds the root Cobra command, wires
// the raster backend and external tools, and executes with a
// signal-aware context.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/posthog/posthog-go"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jiechencyz/hyp3-giant/internal/compositor"
	"github.com/jiechencyz/hyp3-giant/internal/config"
	"github.com/jiechencyz/hyp3-giant/internal/exttool"
	"github.com/jiechencyz/hyp3-giant/internal/hyp3"
	"github.com/jiechencyz/hyp3-giant/internal/pipeline"
	"github.com/jiechencyz/hyp3-giant/internal/radiometric"
	"github.com/jiechencyz/hyp3-giant/internal/raster"
	"github.com/jiechencyz/hyp3-giant/internal/runlog"
	"github.com/jiechencyz/hyp3-giant/internal/scene"
	"github.com/jiechencyz/hyp3-giant/internal/stack"
)

// PostHogKey is injected at build time; telemetry is off when empty.
var (
	PostHogKey  = ""
	PostHogHost = "https://us.i.posthog.com"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rootCmd := newRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	handleError(err)
	if err != nil {
		os.Exit(1)
	}
}

type cliOptions struct {
	amp       bool
	threshold float64
	dBScale   []float64
	filter    bool
	keep      string
	leave     bool
	format    string
	magnify   int
	name      string
	outfile   string
	path      string
	quick     bool
	res       float64
	outType   string
	zip       bool
	clip      []float64
	shape     string
	overlap   bool
}

func newRootCommand() *cobra.Command {
	opts := &cliOptions{}
	cmd := &cobra.Command{
		Use:   "rtcstack [infiles...]",
		Short: "Build an animated time series from geocoded radar backscatter stacks",
		Long: "rtcstack aligns a stack of geocoded RTC backscatter rasters onto a common\n" +
			"grid, applies a consistent radiometric treatment, and renders the scenes in\n" +
			"acquisition order into an animated product.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, args)
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&opts.amp, "amp", "a", false, "input rasters are amplitude instead of power")
	flags.Float64VarP(&opts.threshold, "black", "b", 0.4, "minimum data coverage fraction for clipped scenes")
	flags.Float64SliceVarP(&opts.dBScale, "dBscale", "d", []float64{-40, 0}, "lower,upper dB bounds for byte scaling")
	flags.BoolVarP(&opts.filter, "filter", "f", false, "apply enhanced Lee speckle filtering")
	flags.StringVarP(&opts.keep, "keep", "k", "", "keep only ascending (a) or descending (d) scenes")
	flags.BoolVarP(&opts.leave, "leave", "l", false, "leave the scratch directory in place")
	flags.StringVar(&opts.format, "format", "gif", "animation container (gif or avi)")
	flags.IntVarP(&opts.magnify, "magnify", "m", 24, "date annotation font size")
	flags.StringVarP(&opts.name, "name", "n", "", "subscription name to download products from")
	flags.StringVarP(&opts.outfile, "outfile", "o", "", "output animation name")
	flags.StringVarP(&opts.path, "path", "p", "", "directory holding previously fetched products")
	flags.BoolVarP(&opts.quick, "quick", "q", false, "cut the stack before radiometric processing")
	flags.Float64VarP(&opts.res, "res", "r", 0, "resample to this pixel size in meters")
	flags.StringVarP(&opts.outType, "type", "t", radiometric.TypeDBByte, "output type (power, amp, dB, dB-byte, sigma-byte)")
	flags.BoolVarP(&opts.zip, "zip", "z", false, "input directory holds zip archives")
	flags.Float64SliceVarP(&opts.clip, "clip", "c", nil, "clip to bounding box: minE,minN,maxE,maxN")
	flags.StringVarP(&opts.shape, "shape", "s", "", "clip to the polygon in this shapefile")
	flags.BoolVarP(&opts.overlap, "overlap", "v", false, "clip to the common overlap of all scenes")

	return cmd
}

func run(ctx context.Context, opts *cliOptions, infiles []string) error {
	settings, err := config.LoadSettings()
	if err != nil {
		return err
	}

	clip, err := clipSpec(opts)
	if err != nil {
		return err
	}

	var keep scene.Direction
	if opts.keep != "" {
		keep, err = scene.ParseDirection(opts.keep)
		if err != nil {
			return fmt.Errorf("%w: %v", pipeline.ErrConfigConflict, err)
		}
	}
	if len(opts.dBScale) != 2 {
		return fmt.Errorf("%w: --dBscale needs exactly two values", pipeline.ErrConfigConflict)
	}

	workDir, err := os.Getwd()
	if err != nil {
		return err
	}

	statsName := "run_stats.txt"
	if opts.outfile != "" {
		statsName = opts.outfile + "_run_stats.txt"
	}
	log, err := runlog.New(filepath.Join(workDir, statsName))
	if err != nil {
		return err
	}
	// Everything below reports through the run log; it must be flushed
	// before the process exits, success or not.
	closed := false
	defer func() {
		if !closed {
			log.Close()
		}
	}()

	runner := &exttool.ExecRunner{Timeout: 30 * time.Minute}
	io, err := raster.NewGDAL(runner)
	if err != nil {
		return fmt.Errorf("%w: %v", pipeline.ErrMissingInput, err)
	}

	cfg := pipeline.Config{
		InFiles:   infiles,
		Path:      opts.path,
		Zip:       opts.zip,
		OutName:   opts.outfile,
		Format:    opts.format,
		Keep:      keep,
		Clip:      clip,
		Threshold: opts.threshold,
		Radiometric: radiometric.Options{
			InputIsAmp: opts.amp,
			Filter:     opts.filter,
			Resolution: opts.res,
			OutputType: opts.outType,
			Scale:      [2]float64{opts.dBScale[0], opts.dBScale[1]},
		},
		Quick:        opts.quick,
		WorkDir:      workDir,
		LeaveScratch: opts.leave,
	}

	// Dates are burned into the frames only for scenes the run fetched
	// itself; caller-supplied rasters are left untouched.
	annotate := len(infiles) == 0

	// Download mode: no local inputs, fetch the subscription's products
	// first and stack the archives.
	if len(infiles) == 0 && opts.path == "" {
		if opts.name == "" {
			return fmt.Errorf("%w: no input files, no path, and no subscription name", pipeline.ErrMissingInput)
		}
		downloadDir := filepath.Join(workDir, "hyp3-products")
		if err := fetchSubscription(ctx, settings, opts.name, downloadDir, log); err != nil {
			log.Errorf("%v", err)
			return err
		}
		cfg.Path = downloadDir
		cfg.Zip = true
	}

	p := &pipeline.Runner{
		IO: io,
		Filter: &radiometric.EnhLee{
			IO:     io,
			Runner: runner,
			Tool:   settings.EnhLeePath,
		},
		Comp: &compositor.Compositor{
			IO:          io,
			Runner:      runner,
			Annotate:    annotate,
			FontSize:    opts.magnify,
			FontPath:    settings.FontPath,
			ConvertPath: settings.ConvertPath,
		},
		Log: log,
	}

	start := time.Now()
	res, err := p.Run(ctx, cfg)
	if err != nil {
		log.Errorf("Run failed: %v", err)
		trackEvent(settings, "stack_failed", map[string]interface{}{
			"error": err.Error(),
		})
		return err
	}

	log.Printf("Run finished in %s", time.Since(start).Round(time.Second))
	closed = true
	if err := log.Close(); err != nil {
		return err
	}
	if err := compositor.Collect(res.ProductDir, []string{log.Path()}); err != nil {
		return err
	}

	trackEvent(settings, "stack_completed", map[string]interface{}{
		"scenes":   len(res.Scenes),
		"type":     opts.outType,
		"quick":    opts.quick,
		"duration": time.Since(start).Seconds(),
	})
	fmt.Printf("Product written to %s\n", res.ProductDir)
	return nil
}

// clipSpec maps the three mutually exclusive clip flags onto a clip
// strategy.
func clipSpec(opts *cliOptions) (stack.ClipSpec, error) {
	set := 0
	if len(opts.clip) > 0 {
		set++
	}
	if opts.shape != "" {
		set++
	}
	if opts.overlap {
		set++
	}
	if set > 1 {
		return nil, fmt.Errorf("%w: --clip, --shape and --overlap are mutually exclusive", pipeline.ErrConfigConflict)
	}

	switch {
	case len(opts.clip) > 0:
		if len(opts.clip) != 4 {
			return nil, fmt.Errorf("%w: --clip needs exactly four values: minE,minN,maxE,maxN", pipeline.ErrConfigConflict)
		}
		return stack.BoundingBox{
			MinE: opts.clip[0],
			MinN: opts.clip[1],
			MaxE: opts.clip[2],
			MaxN: opts.clip[3],
		}, nil
	case opts.shape != "":
		return stack.ShapeFile{Path: opts.shape}, nil
	default:
		return stack.Overlap{}, nil
	}
}

// fetchSubscription downloads every finished product of the named
// subscription into downloadDir.
func fetchSubscription(ctx context.Context, settings *config.Settings, name, downloadDir string, log *runlog.Log) error {
	if settings.Username == "" || settings.Password == "" {
		return fmt.Errorf("%w: no credentials configured in %s", pipeline.ErrMissingInput, config.SettingsPath())
	}

	client := hyp3.NewClient(settings.APIHost, settings.Username, settings.Password)
	if err := client.Login(ctx); err != nil {
		return err
	}
	sub, err := client.FindSubscription(ctx, name)
	if err != nil {
		return err
	}
	products, err := client.Products(ctx, sub.ID)
	if err != nil {
		return err
	}
	if len(products) == 0 {
		return fmt.Errorf("%w: subscription %q has no finished products", pipeline.ErrNoUsableScenes, name)
	}
	log.Printf("Subscription %q has %d products", name, len(products))

	if err := compositor.CreateCleanDir(downloadDir); err != nil {
		return err
	}
	d := &hyp3.Downloader{Client: client, Workers: settings.DownloadWorkers}
	_, err = d.DownloadAll(ctx, products, downloadDir, log)
	return err
}

func trackEvent(settings *config.Settings, event string, props map[string]interface{}) {
	if PostHogKey == "" || !settings.TelemetryEnabled {
		return
	}
	client, err := posthog.NewWithConfig(PostHogKey, posthog.Config{Endpoint: PostHogHost})
	if err != nil {
		return
	}
	defer client.Close()
	client.Enqueue(posthog.Capture{
		DistinctId: "rtcstack_user",
		Event:      event,
		Properties: props,
	})
}

func handleError(err error) {
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return
	}
	color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "Error: ")
	fmt.Fprintf(os.Stderr, "%s\n", err)

	var noOverlap *stack.NoOverlapError
	if errors.As(err, &noOverlap) {
		fmt.Fprintln(os.Stderr, "Hint: inspect the scene footprints, or widen the area of interest.")
	}
}
