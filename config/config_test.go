package config

import (
	"os"
	"path/filepath"
	"testing"

	"GPU_procedural_raytracing/sbt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, mgl32.Vec3{-7, -1, -7}, c.Grid().Base())
	assert.Equal(t, mgl32.Vec3{2798, 2, 2798}, c.FloorSize())
	assert.Equal(t, mgl32.Vec3{-0.5, 0, -0.5}, c.Anchor())
	assert.InDelta(t, 1280.0/720.0, c.Aspect(), 1e-6)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"capabilities": {"handleSize": 16, "baseAlignment": 32, "maxRecursionDepth": 4},
		"animateLight": true,
		"floorAnchor": [-0.35, 0, -0.35]
	}`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, sbt.Capabilities{HandleSize: 16, BaseAlignment: 32, MaxRecursionDepth: 4}, c.Capabilities)
	assert.True(t, c.AnimateLight)
	assert.Equal(t, float32(-0.35), c.FloorAnchor[0])
	assert.Equal(t, [3]uint32{4, 1, 4}, c.GridShape)
	assert.Equal(t, uint32(3), c.RecursionDepth)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{"gridShape": `), 0o644))
	_, err = Load(broken)
	assert.Error(t, err)

	deep := filepath.Join(dir, "deep.json")
	require.NoError(t, os.WriteFile(deep, []byte(`{"recursionDepth": 40}`), 0o644))
	_, err = Load(deep)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	specs := []struct {
		descr  string
		mutate func(*Config)
	}{
		{"empty grid axis", func(c *Config) { c.GridShape[1] = 0 }},
		{"empty floor axis", func(c *Config) { c.FloorGrid[2] = 0 }},
		{"zero width", func(c *Config) { c.PrimitiveWidth = 0 }},
		{"negative spacing", func(c *Config) { c.Spacing = -1 }},
		{"bad alignment", func(c *Config) { c.Capabilities.BaseAlignment = 3 }},
		{"zero recursion", func(c *Config) { c.RecursionDepth = 0 }},
		{"zero delta", func(c *Config) { c.FrameDelta = 0 }},
		{"empty output", func(c *Config) { c.OutputHeight = 0 }},
		{"unknown memory", func(c *Config) { c.MemoryProfile = "unified" }},
	}
	for specIndex, spec := range specs {
		c := Default()
		spec.mutate(c)
		assert.ErrorIs(t, c.Validate(), ErrInvalidConfig, "[spec %d] %s", specIndex, spec.descr)
	}

	c := Default()
	c.Capabilities.HandleSize = 0
	assert.ErrorIs(t, c.Validate(), sbt.ErrInvalidCapabilities)
}
