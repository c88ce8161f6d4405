package cmd

import (
	"context"

	"GPU_procedural_raytracing/renderer"

	"github.com/urfave/cli"
)

// BuildScene runs the full startup on the host backend and reports what it built.
func BuildScene(ctx *cli.Context) error {
	setupLogging(ctx)

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	backend, dev, err := renderer.NewHostBackend(cfg)
	if err != nil {
		return err
	}
	r := renderer.New(cfg, backend)
	if err = r.Initialize(context.Background()); err != nil {
		return err
	}
	defer r.Destroy()

	out, err := r.Outputs()
	if err != nil {
		return err
	}
	bounds, err := dev.Bounds(r.Structures().Top.Handle)
	if err != nil {
		return err
	}
	logger.Noticef("scene bounds: min %v max %v", bounds.Min, bounds.Max)
	logger.Noticef("acceleration structures\n%s", r.StructureTable())
	logger.Noticef("buffers\n%s", r.BufferTable())
	logger.Noticef("shader binding table\n%s", r.Layout())
	logger.Noticef("dispatch regions: raygen %+v miss %+v hit %+v", out.RayGen, out.Miss, out.Hit)
	logger.Noticef("startup statistics\n%s", r.Stats().Table())
	return nil
}
