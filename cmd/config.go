package cmd

import (
	"GPU_procedural_raytracing/config"

	"github.com/urfave/cli"
)

// SceneFlags are shared by every command that sets up the scene. They override the config file.
var SceneFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "config, c",
		Usage: "JSON file with raytracer settings",
	},
	cli.StringFlag{
		Name:  "shaders",
		Usage: "directory with the compiled '.spv' programs",
	},
	cli.IntFlag{
		Name:  "width",
		Value: 1280,
		Usage: "output image width",
	},
	cli.IntFlag{
		Name:  "height",
		Value: 720,
		Usage: "output image height",
	},
	cli.IntFlag{
		Name:  "handle-size",
		Value: 32,
		Usage: "shader group handle size in bytes",
	},
	cli.IntFlag{
		Name:  "base-alignment",
		Value: 64,
		Usage: "shader group base alignment in bytes",
	},
	cli.IntFlag{
		Name:  "recursion",
		Value: 3,
		Usage: "pipeline max recursion depth",
	},
	cli.StringFlag{
		Name:  "memory",
		Value: config.MemoryDiscrete,
		Usage: "memory profile of the host device (discrete, device-only)",
	},
}

// loadConfig reads the config file if one is given and applies the flags the user set on top.
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := ctx.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	if ctx.IsSet("shaders") {
		cfg.ShaderDir = ctx.String("shaders")
	}
	if ctx.IsSet("width") {
		cfg.OutputWidth = uint32(ctx.Int("width"))
	}
	if ctx.IsSet("height") {
		cfg.OutputHeight = uint32(ctx.Int("height"))
	}
	if ctx.IsSet("handle-size") {
		cfg.Capabilities.HandleSize = uint32(ctx.Int("handle-size"))
	}
	if ctx.IsSet("base-alignment") {
		cfg.Capabilities.BaseAlignment = uint32(ctx.Int("base-alignment"))
	}
	if ctx.IsSet("recursion") {
		cfg.RecursionDepth = uint32(ctx.Int("recursion"))
	}
	if ctx.IsSet("memory") {
		cfg.MemoryProfile = ctx.String("memory")
	}
	if ctx.IsSet("animate-light") {
		cfg.AnimateLight = ctx.Bool("animate-light")
	}
	if ctx.IsSet("static") && ctx.Bool("static") {
		cfg.AnimateGeometry, cfg.AnimateCamera, cfg.AnimateLight = false, false, false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
