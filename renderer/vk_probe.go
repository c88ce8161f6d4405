package renderer

import (
	"context"
	"errors"
	"fmt"

	"GPU_procedural_raytracing/common"
	"GPU_procedural_raytracing/config"
	"GPU_procedural_raytracing/geometry"
	"GPU_procedural_raytracing/model"

	vk "github.com/goki/vulkan"
)

// ProbeReport is what Probe found out about the Vulkan device.
type ProbeReport struct {
	DeviceName string
	DeviceType string
	Memory     string
	Buffers    string
	Extensions []string
	Stats      BuildStats
}

// Probe opens a window, selects a ray tracing capable device and exercises the parts of the startup that do not
// need the ray tracing entry points: scene buffer uploads, the output image and its layout transition, shader
// modules and the descriptor and pipeline layouts. Everything is torn down before returning.
func Probe(ctx context.Context, cfg *config.Config, validation bool) (*ProbeReport, error) {
	var layers []string
	if validation {
		layers = common.VALIDATION_LAYERS
	}
	win, err := common.NewWindow(common.APPLICATION_NAME, int32(cfg.OutputWidth), int32(cfg.OutputHeight), layers)
	if err != nil {
		return nil, err
	}
	defer win.Destroy()

	dc, err := common.NewDevice(win, common.RAY_TRACING_EXTENSIONS, validation)
	if errors.Is(err, common.ErrNoSuitableDevice) {
		return nil, fmt.Errorf("%w: %w", ErrMissingExtension, err)
	}
	if err != nil {
		return nil, err
	}
	defer dc.Destroy()

	report := &ProbeReport{
		DeviceName: dc.Name(),
		DeviceType: common.DeviceTypeName(dc.PdProps.DeviceType),
		Memory:     common.MemoryPropertiesTable(dc.PdMemoryProps),
		Extensions: common.RAY_TRACING_EXTENSIONS,
	}
	p := &prober{ctx: ctx, cfg: cfg, dc: dc, alloc: common.NewVulkanAllocator(dc)}
	defer p.destroy()

	steps := []struct {
		name string
		run  func() error
	}{
		{"scene buffers", p.uploadGeometry},
		{"output image", p.createOutputImage},
		{"command submission", p.transitionOutputImage},
		{"shader modules", p.createShaderModules},
		{"descriptors", p.createDescriptors},
	}
	for _, step := range steps {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		if err = report.Stats.timed(step.name, step.run); err != nil {
			return nil, fmt.Errorf("%s: %w", step.name, err)
		}
	}
	names, bufs := p.geometry.Buffers()
	report.Buffers = common.BufferTable(names, bufs)
	return report, nil
}

const (
	sceneConstantsSize      = vk.DeviceSize(model.SceneConstantsSize)
	primitiveAttributesSize = vk.DeviceSize(model.TotalPrimitives * model.PerFrameTransformSize)
)

type prober struct {
	ctx   context.Context
	cfg   *config.Config
	dc    *common.Device
	alloc *common.VulkanAllocator

	geometry    *geometry.SceneGeometry
	output      *common.Image
	pool        vk.CommandPool
	modules     []vk.ShaderModule
	descriptors *DescriptorProvisioner
	uniforms    []*common.Buffer
}

func (p *prober) uploadGeometry() error {
	g, err := geometry.NewBuilder(p.alloc).Build(p.cfg.Grid(), geometry.DefaultPlacements())
	if err != nil {
		return err
	}
	p.geometry = g
	return nil
}

func (p *prober) createOutputImage() error {
	img, err := p.alloc.AllocateImage(p.cfg.OutputWidth, p.cfg.OutputHeight, OutputFormat, outputUsage)
	if err != nil {
		return err
	}
	p.output = img
	return nil
}

// transitionOutputImage moves the output image into the general layout storage images are written in. It is the
// first submission on the device and proves the queue works.
func (p *prober) transitionOutputImage() error {
	pool, err := common.VKSCreateCommandPool(p.dc.Device, vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit), *p.dc.QFamilies.WorkFamily)
	if err != nil {
		return fmt.Errorf("create command pool: %w", err)
	}
	p.pool = pool
	return common.VKSSubmitAndWait(p.ctx, p.dc, pool, func(cb vk.CommandBuffer) {
		barrier := vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       0,
			DstAccessMask:       vk.AccessFlags(vk.AccessShaderWriteBit),
			OldLayout:           vk.ImageLayoutUndefined,
			NewLayout:           vk.ImageLayoutGeneral,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               p.output.Handle,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}
		vk.CmdPipelineBarrier(cb,
			vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
			vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
			0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	})
}

func (p *prober) createShaderModules() error {
	programs, err := LoadPrograms(p.cfg.ShaderDir)
	if err != nil {
		return err
	}
	if p.cfg.ShaderDir == "" {
		logger.Warningf("skipping shader modules, no shader directory given")
		return nil
	}
	p.modules, err = CreateShaderModules(p.dc.Device, programs)
	if err != nil {
		return err
	}
	logger.Infof("created %d shader stages", len(ShaderStageInfos(programs, p.modules)))
	return nil
}

// createDescriptors builds the descriptor set and points it at the uploaded buffers. The uniform buffers are
// allocated empty, the animation writes them on the host backend.
func (p *prober) createDescriptors() error {
	for _, size := range []vk.DeviceSize{sceneConstantsSize, primitiveAttributesSize} {
		buf, err := p.alloc.Allocate(common.UsageUniform, size, common.HostVisibleCoherent)
		if err != nil {
			return err
		}
		p.uniforms = append(p.uniforms, buf)
	}
	p.descriptors = NewDescriptorProvisioner(p.dc.Device, SceneBindings())
	if err := p.descriptors.Create(); err != nil {
		return err
	}
	return p.descriptors.WriteBuffers(Resources{
		Output:              p.output,
		SceneConstants:      p.uniforms[0],
		Faces:               p.geometry.Faces,
		Normals:             p.geometry.Normals,
		PrimitiveAttributes: p.uniforms[1],
	})
}

func (p *prober) destroy() {
	vk.DeviceWaitIdle(p.dc.Device)
	if p.descriptors != nil {
		p.descriptors.Destroy()
	}
	for _, b := range p.uniforms {
		p.alloc.Free(b)
	}
	DestroyShaderModules(p.dc.Device, p.modules)
	if p.pool != vk.NullCommandPool {
		vk.DestroyCommandPool(p.dc.Device, p.pool, nil)
	}
	p.alloc.FreeImage(p.output)
	if p.geometry != nil {
		p.geometry.Release(p.alloc)
	}
}
