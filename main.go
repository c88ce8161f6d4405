package main

import (
	"os"
	"runtime"

	"GPU_procedural_raytracing/cmd"
	"GPU_procedural_raytracing/log"

	"github.com/urfave/cli"
)

var logger = log.New("main")

func init() {
	// SDL and Vulkan calls have to come from the thread that initialized them.
	runtime.LockOSThread()
}

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "procedural-raytracer"
	app.Usage = "build and animate a procedural ray tracing scene"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "build",
			Usage: "build the scene on the host device and print what was built",
			Description: `
Upload the plane and the procedural primitive boxes, build one bottom level
acceleration structure per geometry and the top level structure over all
instances, create the ray tracing pipeline and pack the shader binding table.

Structure sizes, buffer placement, the binding table layout and the dispatch
regions are printed afterwards.`,
			Flags:  cmd.SceneFlags,
			Action: cmd.BuildScene,
		},
		{
			Name:  "run",
			Usage: "build the scene and animate it",
			Description: `
Build the scene like the build command does and then update the per frame
uniform buffers with a fixed time step. Without --window the given number of
frames runs headless, with --window the loop runs until the window is closed
or the frame limit (0 for none) is reached.`,
			Flags: append([]cli.Flag{
				cli.IntFlag{
					Name:  "frames",
					Value: 200,
					Usage: "number of frames to update",
				},
				cli.BoolFlag{
					Name:  "window",
					Usage: "drive the frame loop from an SDL window",
				},
				cli.BoolFlag{
					Name:  "animate-light",
					Usage: "orbit the light around the scene",
				},
				cli.BoolFlag{
					Name:  "static",
					Usage: "freeze primitives, camera and light",
				},
			}, cmd.SceneFlags...),
			Action: cmd.RunScene,
		},
		{
			Name:  "probe",
			Usage: "check the Vulkan device for ray tracing support",
			Flags: append([]cli.Flag{
				cli.BoolFlag{
					Name:  "validation",
					Usage: "enable the Khronos validation layer",
				},
			}, cmd.SceneFlags...),
			Action: cmd.ProbeDevice,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}
