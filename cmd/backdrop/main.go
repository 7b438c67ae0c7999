package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gogpu/gg"
	"github.com/guidoenr/backdrop/internal/app"
	"github.com/guidoenr/backdrop/internal/params"
	"github.com/guidoenr/backdrop/internal/render"
	"github.com/guidoenr/backdrop/internal/web"
	"github.com/ncruces/zenity"
)

func main() {
	var (
		scene       = flag.String("scene", "", "Scene to mount (stars|blackhole)")
		width       = flag.Float64("width", 1280, "Viewport width in CSS pixels")
		height      = flag.Float64("height", 720, "Viewport height in CSS pixels")
		dpr         = flag.Float64("dpr", 1, "Device pixel ratio")
		loopFPS     = flag.Float64("fps", 30, "Host loop frames per second")
		targetFPS   = flag.Float64("target-fps", 0, "Scene frame cap (0 keeps the configured value)")
		quality     = flag.String("quality", "", "Quality tier (eco|balanced|high)")
		density     = flag.Float64("density", 0, "Star density multiplier (0 keeps the configured value)")
		lowPower    = flag.Bool("low-power", false, "Start in low power mode")
		parallax    = flag.String("parallax", "", "Comma separated parallax image sources")
		preset      = flag.String("preset", "", "Parallax preset (galaxy|blackhole-gif)")
		imageSource = flag.String("image", "", "Reference image for the accretion disk colour (path or URL)")
		chooseImage = flag.Bool("choose-image", false, "Pick the reference image with a file dialog")
		output      = flag.String("output", render.OutputANSI, "Output ("+strings.Join(render.OutputNames(), "|")+")")
		frames      = flag.Int("frames", 0, "Render this many frames to PNG files and exit")
		outDir      = flag.String("out", "frames", "Directory for PNG frames")
		palette     = flag.String("palette", "default", "ASCII palette ("+strings.Join(render.PaletteNames(), "|")+")")
		noColor     = flag.Bool("no-color", false, "Disable ANSI color output")
		showStatus  = flag.Bool("status", true, "Display status bar")
		webPort     = flag.Int("web", 0, "Serve the control panel on this port (0 disables it)")
		configPath  = flag.String("config", "", "Settings file (defaults next to the executable)")
		demo        = flag.Bool("demo", false, "Synthesize scroll and pointer input")
		profilePath = flag.String("profile", "", "Write per-frame timings and scene counters as CSV to this file")
		debug       = flag.Bool("debug", false, "Enable verbose logging")
	)

	flag.Parse()

	if *width <= 0 || *height <= 0 {
		log.Fatalf("invalid viewport: width=%.0f height=%.0f", *width, *height)
	}

	if *loopFPS <= 0 {
		log.Fatalf("fps must be positive (got %.2f)", *loopFPS)
	}

	if *frames < 0 {
		log.Fatalf("frames must not be negative (got %d)", *frames)
	}

	logger := log.New(os.Stdout, "[backdrop] ", log.LstdFlags)
	if !*debug {
		logger.SetOutput(os.Stderr)
		logger.SetFlags(0)
	} else {
		gg.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	}

	if *configPath == "" {
		*configPath = web.DefaultConfigPath()
	}
	settings, err := web.LoadConfig(*configPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Printf("config %s: %v, using defaults", *configPath, err)
	}

	if *chooseImage {
		path, err := zenity.SelectFile(
			zenity.Title("Select a reference image"),
			zenity.FileFilters{
				{Name: "Images", Patterns: []string{"*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp"}},
			},
		)
		switch {
		case errors.Is(err, zenity.ErrCanceled):
			logger.Println("no image selected")
		case err != nil:
			logger.Printf("file dialog: %v", err)
		default:
			*imageSource = path
		}
	}

	applyFlags(&settings, flagOverrides{
		scene:       *scene,
		targetFPS:   *targetFPS,
		quality:     *quality,
		density:     *density,
		lowPower:    *lowPower,
		parallax:    *parallax,
		preset:      *preset,
		imageSource: *imageSource,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	headless := *frames > 0 || *output == render.OutputPNG
	if headless && *frames == 0 {
		*frames = 1
	}
	out := *output
	if headless {
		out = render.OutputNone
	}

	appConfig := app.Config{
		Width:         *width,
		Height:        *height,
		DPR:           *dpr,
		LoopFPS:       *loopFPS,
		Output:        out,
		Palette:       *palette,
		UseANSI:       !*noColor,
		ShowStatusBar: *showStatus,
		Demo:          *demo,
		ProfilePath:   *profilePath,
		Snapshots:     *webPort > 0,
		Store:         params.NewStore(settings),
		Log:           logger,
	}

	a, err := app.New(appConfig)
	if err != nil {
		logger.Fatalf("failed to create app: %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "cleanup error: %v\n", err)
		}
	}()

	if *webPort > 0 {
		srv := web.NewServer(a, *configPath, logger)
		defer srv.Stop()
		go func() {
			logger.Printf("control panel on http://localhost:%d", *webPort)
			if err := srv.Start(*webPort); err != nil {
				logger.Printf("web server: %v", err)
			}
		}()
	}

	if headless {
		paths, err := a.RunHeadless(ctx, *frames, *outDir)
		if err != nil {
			logger.Fatalf("headless render: %v", err)
		}
		logger.Printf("wrote %d frames to %s", len(paths), *outDir)
		return
	}

	if win, ok := a.Presenter().(*render.EbitenWindow); ok {
		runWindowed(ctx, cancel, a, win, logger)
		return
	}

	if err := a.Run(ctx); err != nil {
		if ctx.Err() != nil {
			fmt.Println("\nExiting...")
			return
		}
		logger.Fatalf("runtime error: %v", err)
	}
}

// runWindowed keeps the window on the main goroutine and drives the app
// loop beside it.
func runWindowed(ctx context.Context, cancel context.CancelFunc, a *app.App, win *render.EbitenWindow, logger *log.Logger) {
	done := make(chan error, 1)
	go func() {
		err := a.Run(ctx)
		_ = win.Close()
		done <- err
	}()

	if err := win.Run(); err != nil {
		logger.Printf("window: %v", err)
	}
	cancel()
	if err := <-done; err != nil && ctx.Err() == nil {
		logger.Fatalf("runtime error: %v", err)
	}
}

type flagOverrides struct {
	scene       string
	targetFPS   float64
	quality     string
	density     float64
	lowPower    bool
	parallax    string
	preset      string
	imageSource string
}

func applyFlags(s *params.Settings, o flagOverrides) {
	if o.scene != "" {
		s.Scene = params.ParseScene(o.scene)
	}
	if o.targetFPS > 0 {
		s.TargetFPS = o.targetFPS
	}
	if o.quality != "" {
		s.Quality = params.ParseQuality(o.quality)
	}
	if o.density > 0 {
		s.Stars.Density = o.density
	}
	if o.lowPower {
		s.LowPower = true
	}
	if o.parallax != "" {
		s.Parallax.Enabled = true
		s.Parallax.Sources = nil
		for _, src := range strings.Split(o.parallax, ",") {
			if src = strings.TrimSpace(src); src != "" {
				s.Parallax.Sources = append(s.Parallax.Sources, src)
			}
		}
	}
	if o.preset != "" {
		s.Parallax.Preset = o.preset
	}
	if o.imageSource != "" {
		s.Disk.ImageSource = o.imageSource
	}
	s.Sanitize()
}
