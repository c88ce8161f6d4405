package renderer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"GPU_procedural_raytracing/common"
	"GPU_procedural_raytracing/config"
	"GPU_procedural_raytracing/model"
	"GPU_procedural_raytracing/sbt"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hostRaytracer(t *testing.T, cfg *config.Config) (*Raytracer, *common.HostAllocator) {
	backend, _, err := NewHostBackend(cfg)
	require.NoError(t, err)
	return New(cfg, backend), backend.Alloc.(*common.HostAllocator)
}

func TestInitializeHostScene(t *testing.T) {
	r, alloc := hostRaytracer(t, config.Default())
	require.NoError(t, r.Initialize(context.Background()))

	out, err := r.Outputs()
	require.NoError(t, err)
	base := out.RayGen.Address
	assert.NotZero(t, base)
	assert.Equal(t, sbt.DispatchRegion{Address: base, Stride: 64, Size: 64}, out.RayGen)
	assert.Equal(t, sbt.DispatchRegion{Address: base + 64, Stride: 32, Size: 64}, out.Miss)
	assert.Equal(t, sbt.DispatchRegion{Address: base + 128, Stride: 96, Size: 96 * 11}, out.Hit)
	assert.Equal(t, r.Structures().Top.Address, out.SceneAddress)
	assert.NotZero(t, out.SceneAddress)
	require.NotNil(t, out.Output)
	assert.Equal(t, uint32(1280), out.Output.Width)
	assert.Equal(t, uint32(720), out.Output.Height)
	assert.Equal(t, OutputFormat, out.Output.Format)
	assert.Equal(t, uint64(1184), r.Layout().Size())

	res, err := r.Resources()
	require.NoError(t, err)
	require.NoError(t, res.Validate(SceneBindings()))

	stats := r.Stats()
	require.Len(t, stats.Steps, 7)
	assert.Equal(t, "geometry", stats.Steps[0].Name)
	assert.Equal(t, "uniform buffers", stats.Steps[6].Name)
	assert.Contains(t, stats.Table(), "shader binding table")
	assert.Contains(t, r.StructureTable(), "plane")
	assert.Contains(t, r.BufferTable(), "instances")

	assert.ErrorIs(t, r.Initialize(context.Background()), ErrAlreadyRunning)

	r.Destroy()
	assert.Zero(t, alloc.Live())
	assert.Zero(t, alloc.LiveImages())
	_, err = r.Outputs()
	assert.ErrorIs(t, err, ErrNotInitialized)

	// a destroyed raytracer starts over cleanly
	require.NoError(t, r.Initialize(context.Background()))
	r.Destroy()
	assert.Zero(t, alloc.Live())
}

func TestUpdateAdvancesScene(t *testing.T) {
	r, alloc := hostRaytracer(t, config.Default())
	assert.ErrorIs(t, r.Update(0.1), ErrNotInitialized)
	require.NoError(t, r.Initialize(context.Background()))
	defer r.Destroy()

	eye := r.Camera().Eye
	stats, err := r.RunFrames(context.Background(), 200, nil)
	require.NoError(t, err)
	assert.Equal(t, 200, stats.Frames)
	assert.InDelta(t, 1.0, stats.Elapsed, 1e-4)
	assert.Equal(t, r.Elapsed(), r.SceneConstants().ElapsedTime)
	assert.NotEqual(t, eye, r.Camera().Eye)

	res, err := r.Resources()
	require.NoError(t, err)
	mem, err := alloc.Contents(res.PrimitiveAttributes)
	require.NoError(t, err)
	transforms := r.PrimitiveTransforms()
	require.Len(t, transforms, int(model.TotalPrimitives))
	for i, tr := range transforms {
		assert.Equal(t, tr.Bytes(), mem[i*model.PerFrameTransformSize:(i+1)*model.PerFrameTransformSize], "slot %d", i)
	}
	scene, err := alloc.Contents(res.SceneConstants)
	require.NoError(t, err)
	assert.Equal(t, r.SceneConstants().Bytes(), scene)
}

func TestRunFramesStopsOnHandlerError(t *testing.T) {
	r, _ := hostRaytracer(t, config.Default())
	require.NoError(t, r.Initialize(context.Background()))
	defer r.Destroy()

	stop := assert.AnError
	stats, err := r.RunFrames(context.Background(), 10, func(frame int, _ *Raytracer) error {
		if frame == 3 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 3, stats.Frames)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats, err = r.RunFrames(ctx, 10, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, stats.Frames)
}

// scriptedEvents closes the window once closeAfter pumps happened and cancels the loop context on the pump
// numbered cancelAt.
type scriptedEvents struct {
	pumps      int
	closeAfter int
	cancelAt   int
	cancel     context.CancelFunc
}

func (e *scriptedEvents) PumpEvents() {
	e.pumps++
	if e.pumps == e.cancelAt {
		e.cancel()
	}
}

func (e *scriptedEvents) State() (bool, bool) {
	return e.closeAfter > 0 && e.pumps >= e.closeAfter, false
}

func TestLoopStopsLikeRunFrames(t *testing.T) {
	r, _ := hostRaytracer(t, config.Default())
	require.NoError(t, r.Initialize(context.Background()))
	defer r.Destroy()

	specs := []struct {
		descr      string
		maxFrames  int
		closeAfter int
		cancelAt   int
		expFrames  int
		expErr     error
	}{
		{"window closed", 0, 4, 0, 3, nil},
		{"frame limit", 5, 0, 0, 5, nil},
		{"context cancelled", 0, 0, 3, 2, context.Canceled},
	}
	for specIndex, spec := range specs {
		ctx, cancel := context.WithCancel(context.Background())
		events := &scriptedEvents{closeAfter: spec.closeAfter, cancelAt: spec.cancelAt, cancel: cancel}
		stats, err := r.Loop(ctx, events, spec.maxFrames, nil)
		cancel()
		if spec.expErr != nil {
			assert.ErrorIs(t, err, spec.expErr, "[spec %d] %s", specIndex, spec.descr)
		} else {
			assert.NoError(t, err, "[spec %d] %s", specIndex, spec.descr)
		}
		assert.Equal(t, spec.expFrames, stats.Frames, "[spec %d] %s", specIndex, spec.descr)
	}
}

func TestInitializeFailureReleasesEverything(t *testing.T) {
	specs := []struct {
		descr  string
		mutate func(*config.Config)
		expErr error
	}{
		{"no host visible memory", func(c *config.Config) { c.MemoryProfile = config.MemoryDeviceOnly }, common.ErrNoMemoryType},
		{"missing shaders", func(c *config.Config) { c.ShaderDir = t.TempDir() }, ErrMissingShader},
		{"recursion beyond device", func(c *config.Config) { c.RecursionDepth = 40 }, config.ErrInvalidConfig},
	}
	for specIndex, spec := range specs {
		cfg := config.Default()
		spec.mutate(cfg)
		r, alloc := hostRaytracer(t, cfg)
		err := r.Initialize(context.Background())
		assert.ErrorIs(t, err, spec.expErr, "[spec %d] %s", specIndex, spec.descr)
		assert.Zero(t, alloc.Live(), "[spec %d] %s: leaked buffers", specIndex, spec.descr)
		assert.Zero(t, alloc.LiveImages(), "[spec %d] %s: leaked images", specIndex, spec.descr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r, alloc := hostRaytracer(t, config.Default())
	assert.ErrorIs(t, r.Initialize(ctx), context.Canceled)
	assert.Zero(t, alloc.Live())
}

func TestLoadPrograms(t *testing.T) {
	programs, err := LoadPrograms("")
	require.NoError(t, err)
	require.Len(t, programs, sbt.ProgramCount)

	dir := t.TempDir()
	for _, entry := range sbt.ProgramTable {
		require.NoError(t, os.WriteFile(filepath.Join(dir, entry.Name+ShaderExt), sbt.EmptyModule(), 0o644))
	}
	programs, err = LoadPrograms(dir)
	require.NoError(t, err)
	for i, p := range programs {
		assert.Equal(t, sbt.ProgramTable[i].Name, p.Name)
		assert.Equal(t, "main", p.Entry)
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, sbt.ProgramTable[0].Name+ShaderExt), []byte("not spirv"), 0o644))
	_, err = LoadPrograms(dir)
	assert.ErrorIs(t, err, sbt.ErrInvalidProgram)
}

func TestShaderStageInfos(t *testing.T) {
	programs, err := LoadPrograms("")
	require.NoError(t, err)
	infos := ShaderStageInfos(programs, make([]vk.ShaderModule, len(programs)))
	require.Len(t, infos, len(programs))
	for i, info := range infos {
		assert.Equal(t, vk.ShaderStageFlagBits(programs[i].Stage.ShaderStageFlags()), info.Stage)
		assert.Equal(t, "main\x00", info.PName)
	}
}

func TestSceneBindings(t *testing.T) {
	bindings := SceneBindings()
	require.Len(t, bindings, int(BindingCount))
	for i, b := range bindings {
		assert.Equal(t, uint32(i), b.Index, b.Name)
		assert.NotZero(t, b.Stages, b.Name)
	}

	layout := LayoutBindings(bindings)
	assert.Equal(t, common.DescriptorTypeAccelerationStructure, layout[BindingScene].DescriptorType)
	assert.Equal(t, uint32(1), layout[BindingOutput].DescriptorCount)

	assert.Equal(t, []vk.DescriptorPoolSize{
		{Type: common.DescriptorTypeAccelerationStructure, DescriptorCount: 2},
		{Type: vk.DescriptorTypeStorageImage, DescriptorCount: 2},
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: 4},
		{Type: vk.DescriptorTypeStorageBuffer, DescriptorCount: 4},
	}, PoolSizes(bindings, 2))
}

func TestResourcesValidate(t *testing.T) {
	uniform := &common.Buffer{Usage: common.UsageUniform}
	storage := &common.Buffer{Usage: common.UsageStorage}
	full := Resources{
		SceneAddress:        0x1000,
		Output:              &common.Image{},
		SceneConstants:      uniform,
		Faces:               storage,
		Normals:             storage,
		PrimitiveAttributes: uniform,
	}
	require.NoError(t, full.Validate(SceneBindings()))

	specs := []struct {
		descr  string
		mutate func(*Resources)
	}{
		{"no scene", func(r *Resources) { r.SceneAddress = 0 }},
		{"no output", func(r *Resources) { r.Output = nil }},
		{"no faces", func(r *Resources) { r.Faces = nil }},
		{"normals as uniform", func(r *Resources) { r.Normals = uniform }},
		{"attributes as storage", func(r *Resources) { r.PrimitiveAttributes = storage }},
	}
	for specIndex, spec := range specs {
		res := full
		spec.mutate(&res)
		assert.ErrorIs(t, res.Validate(SceneBindings()), ErrUnboundDescriptor, "[spec %d] %s", specIndex, spec.descr)
	}
}

func TestStats(t *testing.T) {
	var s BuildStats
	require.NoError(t, s.timed("first", func() error { return nil }))
	assert.ErrorIs(t, s.timed("second", func() error { return assert.AnError }), assert.AnError)
	require.Len(t, s.Steps, 2)
	table := s.Table()
	assert.True(t, strings.Contains(table, "first") && strings.Contains(table, "second"), table)
	assert.Contains(t, table, "TOTAL")

	assert.Zero(t, FrameStats{Frames: 10}.FPS())
}
