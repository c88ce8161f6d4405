package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"GPU_procedural_raytracing/common"
	"GPU_procedural_raytracing/renderer"

	"github.com/urfave/cli"
)

// RunScene builds the scene and animates it, headless for a number of frames or in a window until it is closed.
func RunScene(ctx *cli.Context) error {
	setupLogging(ctx)

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	backend, _, err := renderer.NewHostBackend(cfg)
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r := renderer.New(cfg, backend)
	if err = r.Initialize(runCtx); err != nil {
		return err
	}
	defer r.Destroy()

	frames := ctx.Int("frames")
	report := func(frame int, r *renderer.Raytracer) error {
		if frame%200 == 0 {
			logger.Infof("frame %d: t = %.3fs, eye %v", frame, r.Elapsed(), r.Camera().Eye)
		}
		return nil
	}

	var stats renderer.FrameStats
	if ctx.Bool("window") {
		var win *common.Window
		if win, err = common.NewWindow(common.APPLICATION_NAME, int32(cfg.OutputWidth), int32(cfg.OutputHeight), nil); err != nil {
			return err
		}
		defer win.Destroy()
		stats, err = r.Loop(runCtx, win, frames, report)
	} else {
		stats, err = r.RunFrames(runCtx, frames, report)
	}
	if errors.Is(err, context.Canceled) {
		logger.Warningf("interrupted after %d frames", stats.Frames)
	} else if err != nil {
		return err
	}
	logger.Noticef("ran %d frames, animation time %.3fs, %.0f updates/s", stats.Frames, stats.Elapsed, stats.FPS())
	return nil
}
