// Package renderer drives the procedural scene: the one time startup that uploads geometry, builds the
// acceleration structures, creates the pipeline and packs the shader binding table, and the per frame update of
// the uniform buffers afterwards.
package renderer

import (
	"context"
	"fmt"

	"GPU_procedural_raytracing/accel"
	"GPU_procedural_raytracing/animation"
	"GPU_procedural_raytracing/common"
	"GPU_procedural_raytracing/config"
	"GPU_procedural_raytracing/geometry"
	"GPU_procedural_raytracing/log"
	"GPU_procedural_raytracing/sbt"

	vk "github.com/goki/vulkan"
)

var logger = log.New("renderer")

const OutputFormat = vk.FormatR8g8b8a8Unorm

var outputUsage = vk.ImageUsageFlags(vk.ImageUsageStorageBit | vk.ImageUsageTransferSrcBit)

// Raytracer owns every scene resource on one backend.
type Raytracer struct {
	cfg     *config.Config
	backend Backend

	geometry   *geometry.SceneGeometry
	structures *accel.Result
	programs   []sbt.Program
	groups     []sbt.Group
	pipeline   sbt.Pipeline
	hasPipe    bool
	table      *sbt.Table
	output     *common.Image
	primitives *animation.Updater
	scene      *animation.SceneUpdater

	initialized bool
	stats       BuildStats
}

// Outputs is what a trace dispatch needs from the startup.
type Outputs struct {
	Pipeline     sbt.Pipeline
	RayGen       sbt.DispatchRegion
	Miss         sbt.DispatchRegion
	Hit          sbt.DispatchRegion
	SceneAddress uint64
	Output       *common.Image
}

func New(cfg *config.Config, backend Backend) *Raytracer {
	return &Raytracer{cfg: cfg, backend: backend}
}

// Initialize runs the startup in order. Any failure is fatal for the raytracer: everything created so far is
// released again and the error returned.
func (r *Raytracer) Initialize(ctx context.Context) error {
	if r.initialized {
		return ErrAlreadyRunning
	}
	if err := r.cfg.Validate(); err != nil {
		return err
	}
	r.stats = BuildStats{}
	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"geometry", r.createGeometry},
		{"acceleration structures", r.createStructures},
		{"programs", r.loadPrograms},
		{"pipeline", r.createPipeline},
		{"shader binding table", r.createBindingTable},
		{"output image", r.createOutputImage},
		{"uniform buffers", r.createUniformBuffers},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			r.release()
			return err
		}
		if err := r.stats.timed(step.name, func() error { return step.run(ctx) }); err != nil {
			r.release()
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}
	r.initialized = true
	logger.Noticef("raytracer initialized in %s", r.stats.Total)
	return nil
}

func (r *Raytracer) createGeometry(context.Context) error {
	g, err := geometry.NewBuilder(r.backend.Alloc).Build(r.cfg.Grid(), geometry.DefaultPlacements())
	if err != nil {
		return err
	}
	r.geometry = g
	return nil
}

func (r *Raytracer) createStructures(ctx context.Context) error {
	bottom := r.geometry.BottomLevelInputs()
	req := accel.BuildRequest{
		Bottom:        bottom,
		InstanceCount: uint32(len(bottom)),
		Instances: func(built []*accel.Structure) ([]accel.InstanceDescriptor, error) {
			return accel.SceneInstances(built, r.cfg.FloorSize(), r.cfg.Anchor(), r.cfg.PrimitiveWidth)
		},
	}
	res, err := accel.NewBuilder(r.backend.Accel, r.backend.Alloc).Build(ctx, req)
	if err != nil {
		return err
	}
	r.structures = res
	return nil
}

func (r *Raytracer) loadPrograms(context.Context) error {
	programs, err := LoadPrograms(r.cfg.ShaderDir)
	if err != nil {
		return err
	}
	r.programs = programs
	return nil
}

func (r *Raytracer) createPipeline(context.Context) error {
	r.groups = sbt.DefaultGroups()
	p, err := r.backend.Pipelines.CreatePipeline(sbt.PipelineDesc{
		Programs:          r.programs,
		Groups:            r.groups,
		MaxRecursionDepth: r.cfg.RecursionDepth,
	})
	if err != nil {
		return err
	}
	r.pipeline, r.hasPipe = p, true
	return nil
}

func (r *Raytracer) createBindingTable(context.Context) error {
	records, err := sbt.SceneHitRecords()
	if err != nil {
		return err
	}
	table, err := sbt.Build(r.backend.Alloc, r.backend.Pipelines, r.pipeline, r.programs, r.groups, records)
	if err != nil {
		return err
	}
	r.table = table
	return accel.ValidateRecordOffsets(r.structures.Instances, table.Layout.HitRecordCount)
}

func (r *Raytracer) createOutputImage(context.Context) error {
	img, err := r.backend.Alloc.AllocateImage(r.cfg.OutputWidth, r.cfg.OutputHeight, OutputFormat, outputUsage)
	if err != nil {
		return err
	}
	r.output = img
	return nil
}

func (r *Raytracer) createUniformBuffers(context.Context) error {
	primitives, err := animation.NewUpdater(r.backend.Alloc, r.geometry.Boxes, r.cfg.AnimateGeometry)
	if err != nil {
		return err
	}
	r.primitives = primitives
	scene, err := animation.NewSceneUpdater(r.backend.Alloc, animation.DefaultCamera(r.cfg.Aspect()), r.cfg.AnimateCamera, r.cfg.AnimateLight)
	if err != nil {
		return err
	}
	r.scene = scene
	return nil
}

// Update advances the scene by dt seconds and rewrites both uniform buffers.
func (r *Raytracer) Update(dt float32) error {
	if !r.initialized {
		return ErrNotInitialized
	}
	if err := r.primitives.Update(dt); err != nil {
		return err
	}
	return r.scene.Update(dt, r.primitives.Elapsed())
}

func (r *Raytracer) Outputs() (Outputs, error) {
	if !r.initialized {
		return Outputs{}, ErrNotInitialized
	}
	raygen, miss, hit := r.table.Regions()
	return Outputs{
		Pipeline:     r.pipeline,
		RayGen:       raygen,
		Miss:         miss,
		Hit:          hit,
		SceneAddress: r.structures.Top.Address,
		Output:       r.output,
	}, nil
}

// Destroy releases every resource. The raytracer can be initialized again afterwards.
func (r *Raytracer) Destroy() {
	if !r.initialized {
		return
	}
	r.release()
	r.initialized = false
}

func (r *Raytracer) release() {
	alloc := r.backend.Alloc
	if r.scene != nil {
		r.scene.Release()
		r.scene = nil
	}
	if r.primitives != nil {
		r.primitives.Release()
		r.primitives = nil
	}
	if r.output != nil {
		alloc.FreeImage(r.output)
		r.output = nil
	}
	if r.table != nil {
		r.table.Release(alloc)
		r.table = nil
	}
	if r.hasPipe {
		r.backend.Pipelines.DestroyPipeline(r.pipeline)
		r.hasPipe = false
	}
	if r.structures != nil {
		r.structures.Release(r.backend.Accel, alloc)
		r.structures = nil
	}
	if r.geometry != nil {
		r.geometry.Release(alloc)
		r.geometry = nil
	}
	r.programs, r.groups = nil, nil
}
