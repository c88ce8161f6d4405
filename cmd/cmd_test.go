package cmd

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"GPU_procedural_raytracing/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

var testRunFlags = []cli.Flag{
	cli.IntFlag{Name: "frames", Value: 20},
	cli.BoolFlag{Name: "window"},
	cli.BoolFlag{Name: "animate-light"},
	cli.BoolFlag{Name: "static"},
}

func newContext(t *testing.T, args ...string) *cli.Context {
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range append(append([]cli.Flag{}, SceneFlags...), testRunFlags...) {
		f.Apply(set)
	}
	require.NoError(t, set.Parse(args))
	return cli.NewContext(cli.NewApp(), set, nil)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(newContext(t))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"outputWidth": 640, "outputHeight": 480, "recursionDepth": 2}`), 0o644))

	cfg, err := loadConfig(newContext(t, "--config", path, "--height", "360", "--handle-size", "16", "--static"))
	require.NoError(t, err)
	assert.Equal(t, uint32(640), cfg.OutputWidth)
	assert.Equal(t, uint32(360), cfg.OutputHeight)
	assert.Equal(t, uint32(2), cfg.RecursionDepth)
	assert.Equal(t, uint32(16), cfg.Capabilities.HandleSize)
	assert.False(t, cfg.AnimateGeometry)
	assert.False(t, cfg.AnimateCamera)
}

func TestLoadConfigRejectsBadFlags(t *testing.T) {
	specs := []struct {
		descr string
		args  []string
	}{
		{"zero width", []string{"--width", "0"}},
		{"odd alignment", []string{"--base-alignment", "48"}},
		{"unknown memory", []string{"--memory", "shared"}},
		{"deep recursion", []string{"--recursion", "64"}},
	}
	for specIndex, spec := range specs {
		_, err := loadConfig(newContext(t, spec.args...))
		assert.ErrorIs(t, err, config.ErrInvalidConfig, "[spec %d] %s", specIndex, spec.descr)
	}
}

func TestBuildScene(t *testing.T) {
	require.NoError(t, BuildScene(newContext(t)))
	assert.Error(t, BuildScene(newContext(t, "--memory", config.MemoryDeviceOnly)))
}

func TestRunSceneHeadless(t *testing.T) {
	require.NoError(t, RunScene(newContext(t, "--frames", "5", "--animate-light")))
}
