// Package config holds the raytracer settings. Defaults reproduce the reference scene, a JSON file can override
// any subset of them.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"GPU_procedural_raytracing/geometry"
	"GPU_procedural_raytracing/log"
	"GPU_procedural_raytracing/sbt"

	"github.com/go-gl/mathgl/mgl32"
)

var logger = log.New("config")

var ErrInvalidConfig = errors.New("config: invalid configuration")

// Memory profiles of the host device.
const (
	MemoryDiscrete   = "discrete"
	MemoryDeviceOnly = "device-only"
)

type Config struct {
	GridShape      [3]uint32  `json:"gridShape"`
	PrimitiveWidth float32    `json:"primitiveWidth"`
	Spacing        float32    `json:"spacing"`
	FloorGrid      [3]uint32  `json:"floorGrid"`
	FloorAnchor    [3]float32 `json:"floorAnchor"`

	Capabilities   sbt.Capabilities `json:"capabilities"`
	RecursionDepth uint32           `json:"recursionDepth"`

	FrameDelta      float32 `json:"frameDelta"`
	AnimateGeometry bool    `json:"animateGeometry"`
	AnimateCamera   bool    `json:"animateCamera"`
	AnimateLight    bool    `json:"animateLight"`

	OutputWidth  uint32 `json:"outputWidth"`
	OutputHeight uint32 `json:"outputHeight"`
	ShaderDir    string `json:"shaderDir,omitempty"`

	MemoryProfile string `json:"memoryProfile"`
}

func Default() *Config {
	return &Config{
		GridShape:       [3]uint32{4, 1, 4},
		PrimitiveWidth:  2,
		Spacing:         2,
		FloorGrid:       [3]uint32{700, 1, 700},
		FloorAnchor:     [3]float32{-0.5, 0, -0.5},
		Capabilities:    sbt.Capabilities{HandleSize: 32, BaseAlignment: 64, MaxRecursionDepth: 31},
		RecursionDepth:  3,
		FrameDelta:      1.0 / 200,
		AnimateGeometry: true,
		AnimateCamera:   true,
		AnimateLight:    false,
		OutputWidth:     1280,
		OutputHeight:    720,
		MemoryProfile:   MemoryDiscrete,
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err = json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Infof("loaded config from %s: grid %v, capabilities %+v", path, cfg.GridShape, cfg.Capabilities)
	return cfg, nil
}

func (c *Config) Validate() error {
	for a := 0; a < 3; a++ {
		if c.GridShape[a] == 0 || c.FloorGrid[a] == 0 {
			return fmt.Errorf("%w: grid %v and floor grid %v need at least one cell per axis", ErrInvalidConfig, c.GridShape, c.FloorGrid)
		}
	}
	if c.PrimitiveWidth <= 0 || c.Spacing < 0 {
		return fmt.Errorf("%w: primitive width %g, spacing %g", ErrInvalidConfig, c.PrimitiveWidth, c.Spacing)
	}
	if err := c.Capabilities.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.RecursionDepth == 0 || c.RecursionDepth > c.Capabilities.MaxRecursionDepth {
		return fmt.Errorf("%w: recursion depth %d outside 1..%d", ErrInvalidConfig, c.RecursionDepth, c.Capabilities.MaxRecursionDepth)
	}
	if c.FrameDelta <= 0 {
		return fmt.Errorf("%w: frame delta %g", ErrInvalidConfig, c.FrameDelta)
	}
	if c.OutputWidth == 0 || c.OutputHeight == 0 {
		return fmt.Errorf("%w: output %dx%d", ErrInvalidConfig, c.OutputWidth, c.OutputHeight)
	}
	if c.MemoryProfile != MemoryDiscrete && c.MemoryProfile != MemoryDeviceOnly {
		return fmt.Errorf("%w: memory profile %q", ErrInvalidConfig, c.MemoryProfile)
	}
	return nil
}

// Grid is the layout of the procedural primitives.
func (c *Config) Grid() geometry.GridLayout {
	return geometry.GridLayout{Shape: c.GridShape, PrimitiveWidth: c.PrimitiveWidth, Spacing: c.Spacing}
}

// FloorSize is the extent the plane covers: the span of the virtual floor grid.
func (c *Config) FloorSize() mgl32.Vec3 {
	g := c.Grid()
	return g.Span(c.FloorGrid)
}

func (c *Config) Anchor() mgl32.Vec3 {
	return mgl32.Vec3(c.FloorAnchor)
}

// Aspect is the output aspect ratio.
func (c *Config) Aspect() float32 {
	return float32(c.OutputWidth) / float32(c.OutputHeight)
}
