package renderer

import (
	"errors"
	"fmt"

	"GPU_procedural_raytracing/common"

	vk "github.com/goki/vulkan"
)

var ErrUnboundDescriptor = errors.New("renderer: descriptor binding has no resource")

// Binding indices of the single descriptor set the ray tracing programs read.
const (
	BindingScene uint32 = iota
	BindingOutput
	BindingSceneConstants
	BindingFaces
	BindingNormals
	BindingPrimitiveAttributes
	BindingCount
)

// Binding describes one slot of the scene descriptor set.
type Binding struct {
	Index  uint32
	Name   string
	Type   vk.DescriptorType
	Stages vk.ShaderStageFlags
}

var (
	raygenStage       = vk.ShaderStageFlags(common.ShaderStageRaygenBit)
	closestHitStage   = vk.ShaderStageFlags(common.ShaderStageClosestHitBit)
	missStage         = vk.ShaderStageFlags(common.ShaderStageMissBit)
	intersectionStage = vk.ShaderStageFlags(common.ShaderStageIntersectionBit)
)

// SceneBindings lists the descriptor set layout in binding order.
func SceneBindings() []Binding {
	return []Binding{
		{BindingScene, "scene", common.DescriptorTypeAccelerationStructure, raygenStage | closestHitStage},
		{BindingOutput, "output image", vk.DescriptorTypeStorageImage, raygenStage},
		{BindingSceneConstants, "scene constants", vk.DescriptorTypeUniformBuffer, raygenStage | closestHitStage | missStage | intersectionStage},
		{BindingFaces, "plane faces", vk.DescriptorTypeStorageBuffer, closestHitStage},
		{BindingNormals, "plane normals", vk.DescriptorTypeStorageBuffer, closestHitStage},
		{BindingPrimitiveAttributes, "primitive attributes", vk.DescriptorTypeUniformBuffer, closestHitStage | intersectionStage},
	}
}

// LayoutBindings converts bindings for vk.DescriptorSetLayoutCreateInfo.
func LayoutBindings(bindings []Binding) []vk.DescriptorSetLayoutBinding {
	out := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		out[i] = vk.DescriptorSetLayoutBinding{
			Binding:            b.Index,
			DescriptorType:     b.Type,
			DescriptorCount:    1,
			StageFlags:         b.Stages,
			PImmutableSamplers: nil,
		}
	}
	return out
}

// PoolSizes counts the descriptors per type for a pool holding sets of the given bindings.
func PoolSizes(bindings []Binding, sets uint32) []vk.DescriptorPoolSize {
	var sizes []vk.DescriptorPoolSize
	index := map[vk.DescriptorType]int{}
	for _, b := range bindings {
		i, ok := index[b.Type]
		if !ok {
			i = len(sizes)
			index[b.Type] = i
			sizes = append(sizes, vk.DescriptorPoolSize{Type: b.Type})
		}
		sizes[i].DescriptorCount += sets
	}
	return sizes
}

// Resources is what the scene descriptor set points at.
type Resources struct {
	SceneAddress        uint64
	Output              *common.Image
	SceneConstants      *common.Buffer
	Faces               *common.Buffer
	Normals             *common.Buffer
	PrimitiveAttributes *common.Buffer
}

func (r Resources) buffer(binding uint32) *common.Buffer {
	switch binding {
	case BindingSceneConstants:
		return r.SceneConstants
	case BindingFaces:
		return r.Faces
	case BindingNormals:
		return r.Normals
	case BindingPrimitiveAttributes:
		return r.PrimitiveAttributes
	}
	return nil
}

// Validate checks that every binding has a resource of the kind its descriptor type reads.
func (r Resources) Validate(bindings []Binding) error {
	for _, b := range bindings {
		var bound bool
		switch b.Type {
		case common.DescriptorTypeAccelerationStructure:
			bound = r.SceneAddress != 0
		case vk.DescriptorTypeStorageImage:
			bound = r.Output != nil
		case vk.DescriptorTypeUniformBuffer:
			buf := r.buffer(b.Index)
			bound = buf != nil && buf.Usage&common.UsageUniform != 0
		case vk.DescriptorTypeStorageBuffer:
			buf := r.buffer(b.Index)
			bound = buf != nil && buf.Usage&common.UsageStorage != 0
		}
		if !bound {
			return fmt.Errorf("%w: %d (%s)", ErrUnboundDescriptor, b.Index, b.Name)
		}
	}
	return nil
}

// DescriptorProvisioner owns the descriptor set layout, pool, set and pipeline layout of the ray tracing
// pipeline on a Vulkan device.
type DescriptorProvisioner struct {
	device   vk.Device
	bindings []Binding

	setLayout      vk.DescriptorSetLayout
	pool           vk.DescriptorPool
	set            vk.DescriptorSet
	pipelineLayout vk.PipelineLayout
	outputView     vk.ImageView
}

func NewDescriptorProvisioner(device vk.Device, bindings []Binding) *DescriptorProvisioner {
	return &DescriptorProvisioner{
		device:   device,
		bindings: bindings,
	}
}

// Create builds set layout, pipeline layout and pool and allocates the one set the pipeline uses.
func (dp *DescriptorProvisioner) Create() error {
	layoutBindings := LayoutBindings(dp.bindings)
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		PNext:        nil,
		Flags:        0,
		BindingCount: uint32(len(layoutBindings)),
		PBindings:    layoutBindings,
	}
	var err error
	dp.setLayout, err = common.VkCreateDescriptorSetLayout(dp.device, &layoutInfo, nil)
	if err != nil {
		return fmt.Errorf("create descriptor set layout: %w", err)
	}

	pipelineLayoutInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{dp.setLayout},
	}
	dp.pipelineLayout, err = common.VkCreatePipelineLayout(dp.device, &pipelineLayoutInfo, nil)
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}

	poolSizes := PoolSizes(dp.bindings, 1)
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       1,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	dp.pool, err = common.VkCreateDescriptorPool(dp.device, &poolInfo, nil)
	if err != nil {
		return fmt.Errorf("create descriptor pool: %w", err)
	}

	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		PNext:              nil,
		DescriptorPool:     dp.pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{dp.setLayout},
	}
	if err = vk.Error(vk.AllocateDescriptorSets(dp.device, &allocInfo, &dp.set)); err != nil {
		return fmt.Errorf("allocate descriptor set: %w", err)
	}
	logger.Debugf("created descriptor set with %d bindings", len(dp.bindings))
	return nil
}

// WriteBuffers points the buffer and image bindings at res. The acceleration structure binding is written by
// whoever owns the device side structure.
func (dp *DescriptorProvisioner) WriteBuffers(res Resources) error {
	var writes []vk.WriteDescriptorSet
	for _, b := range dp.bindings {
		switch b.Type {
		case vk.DescriptorTypeUniformBuffer, vk.DescriptorTypeStorageBuffer:
			buf := res.buffer(b.Index)
			if buf == nil {
				return fmt.Errorf("%w: %d (%s)", ErrUnboundDescriptor, b.Index, b.Name)
			}
			writes = append(writes, vk.WriteDescriptorSet{
				SType:           vk.StructureTypeWriteDescriptorSet,
				DstSet:          dp.set,
				DstBinding:      b.Index,
				DstArrayElement: 0,
				DescriptorCount: 1,
				DescriptorType:  b.Type,
				PBufferInfo: []vk.DescriptorBufferInfo{{
					Buffer: buf.Handle,
					Offset: 0,
					Range:  buf.Size,
				}},
			})
		case vk.DescriptorTypeStorageImage:
			if res.Output == nil {
				return fmt.Errorf("%w: %d (%s)", ErrUnboundDescriptor, b.Index, b.Name)
			}
			if err := dp.createOutputView(res.Output); err != nil {
				return err
			}
			writes = append(writes, vk.WriteDescriptorSet{
				SType:           vk.StructureTypeWriteDescriptorSet,
				DstSet:          dp.set,
				DstBinding:      b.Index,
				DescriptorCount: 1,
				DescriptorType:  b.Type,
				PImageInfo: []vk.DescriptorImageInfo{{
					ImageView:   dp.outputView,
					ImageLayout: vk.ImageLayoutGeneral,
				}},
			})
		}
	}
	vk.UpdateDescriptorSets(dp.device, uint32(len(writes)), writes, 0, nil)
	return nil
}

func (dp *DescriptorProvisioner) createOutputView(img *common.Image) error {
	if dp.outputView != vk.NullImageView {
		vk.DestroyImageView(dp.device, dp.outputView, nil)
	}
	createInfo := &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.Handle,
		ViewType: vk.ImageViewType2d,
		Format:   img.Format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	view, err := common.VkCreateImageView(dp.device, createInfo, nil)
	if err != nil {
		return fmt.Errorf("create output image view: %w", err)
	}
	dp.outputView = view
	return nil
}

func (dp *DescriptorProvisioner) PipelineLayout() vk.PipelineLayout {
	return dp.pipelineLayout
}

// Destroy releases whatever Create got to. The set goes with its pool.
func (dp *DescriptorProvisioner) Destroy() {
	if dp.outputView != vk.NullImageView {
		vk.DestroyImageView(dp.device, dp.outputView, nil)
	}
	if dp.pool != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(dp.device, dp.pool, nil)
	}
	if dp.pipelineLayout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(dp.device, dp.pipelineLayout, nil)
	}
	if dp.setLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(dp.device, dp.setLayout, nil)
	}
}
