package cmd

import (
	"context"
	"strings"

	"GPU_procedural_raytracing/renderer"

	"github.com/urfave/cli"
)

// ProbeDevice checks the Vulkan device for ray tracing support and uploads the scene buffers to it.
func ProbeDevice(ctx *cli.Context) error {
	setupLogging(ctx)

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	report, err := renderer.Probe(context.Background(), cfg, ctx.Bool("validation"))
	if err != nil {
		return err
	}
	logger.Noticef("device: %s (%s)", report.DeviceName, report.DeviceType)
	logger.Noticef("ray tracing extensions: %s", strings.Join(report.Extensions, ", "))
	logger.Noticef("memory types\n%s", report.Memory)
	logger.Noticef("scene buffers\n%s", report.Buffers)
	logger.Noticef("probe statistics\n%s", report.Stats.Table())
	return nil
}
