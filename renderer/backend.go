package renderer

import (
	"fmt"

	"GPU_procedural_raytracing/accel"
	"GPU_procedural_raytracing/accel/hostbvh"
	"GPU_procedural_raytracing/common"
	"GPU_procedural_raytracing/config"
	"GPU_procedural_raytracing/sbt"

	vk "github.com/goki/vulkan"
)

// Backend is everything the raytracer needs from a device: memory, acceleration structures and ray tracing
// pipelines. The host backend provides all three from one hostbvh.Device.
type Backend struct {
	Alloc     common.Allocator
	Accel     accel.Device
	Pipelines sbt.PipelineDevice
}

// NewHostBackend emulates a device with the memory profile and capabilities of cfg.
func NewHostBackend(cfg *config.Config) (Backend, *hostbvh.Device, error) {
	var props vk.PhysicalDeviceMemoryProperties
	switch cfg.MemoryProfile {
	case config.MemoryDiscrete:
		props = common.DiscreteMemoryProperties()
	case config.MemoryDeviceOnly:
		props = common.DeviceOnlyMemoryProperties()
	default:
		return Backend{}, nil, fmt.Errorf("%w: memory profile %q", config.ErrInvalidConfig, cfg.MemoryProfile)
	}
	alloc := common.NewHostAllocator(props)
	dev := hostbvh.NewDevice(alloc, cfg.Capabilities)
	return Backend{Alloc: alloc, Accel: dev, Pipelines: dev}, dev, nil
}
