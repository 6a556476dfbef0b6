package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/teslashibe/go-gaze/internal/config"
	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/debug"
	"github.com/teslashibe/go-gaze/pkg/eyes"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/pipeline"
	"github.com/teslashibe/go-gaze/pkg/pupil"
	"github.com/teslashibe/go-gaze/pkg/recorder"
	"github.com/teslashibe/go-gaze/pkg/store"
	"github.com/teslashibe/go-gaze/pkg/web"
)

// loadConfig reads the config named by --config and applies run flags
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return nil, err
	}

	if f := ctx.String("file"); f != "" {
		cfg.Camera.File = f
	}
	if d := ctx.Int("device"); d >= 0 {
		cfg.Camera.Device = d
		cfg.Camera.File = ""
	}
	if o := ctx.String("output"); o != "" {
		cfg.Output.Dir = o
	}
	if ctx.Bool("no-web") {
		cfg.Web.Enabled = false
	}
	if ctx.Bool("debug") || ctx.Bool("debug-frames") {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func runAction(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	log.InitFile(cfg.Log.Level, log.FileConfig{
		Path:       cfg.Log.File,
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
	})
	debug.Enabled = ctx.Bool("debug") || ctx.Bool("debug-frames")
	debug.Tracking = ctx.Bool("debug-frames")

	formats, err := cfg.Formats()
	if err != nil {
		return err
	}

	// Configuration failures abort before the first frame
	detector, err := eyes.NewCascade(cfg.EyesConfig())
	if err != nil {
		return err
	}
	defer detector.Close()

	src, err := camera.Open(cfg.CameraConfig())
	if err != nil {
		return err
	}
	defer src.Close()

	var (
		archive pipeline.Archive
		db      *store.Client
	)
	if cfg.Store.Path != "" {
		db, err = store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer db.Close()
		archive = db
	}

	sess := gaze.NewSession(time.Now())
	tracker := gaze.NewTracker(cfg.GazeConfig(), sess)
	loc := pupil.NewLocalizer(pupil.Config{BlurKernel: cfg.Tracker.BlurKernel})

	runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		opts []pipeline.Option
		dash *web.Server
	)
	if cfg.Web.Enabled {
		dash = web.NewServer(cfg.Web.Port, cfg.Web.Trail)
		opts = append(opts, pipeline.WithVisualizer(dash))
	}

	pipe := pipeline.New(detector, loc, tracker, opts...)
	saver := pipeline.NewSaver(recorder.New(cfg.Output.Dir), archive)

	var runOpts []pipeline.RunnerOption
	if cfg.Output.SaveOnExit {
		runOpts = append(runOpts, pipeline.WithSaveOnExit(formats...))
	}
	runner := pipeline.NewRunner(src, pipe, saver, runOpts...)

	if dash != nil {
		dash.OnSave = runner.RequestSave
		if db != nil {
			dash.Sessions = db
		}
		dash.StartAsync(runCtx)
	}

	thresholds := tracker.Config()
	log.Info("tracking started",
		"session", sess.ID,
		"source", src.Name(),
		"camera_preset", cfg.Camera.Preset,
		"fixation_threshold", thresholds.FixationThreshold,
		"fixation_min_duration", thresholds.FixationMinDuration,
		"output", cfg.Output.Dir)

	return runner.Run(runCtx)
}
