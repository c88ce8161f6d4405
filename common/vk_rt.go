package common

import vk "github.com/goki/vulkan"

// Ray tracing enums from VK_KHR_acceleration_structure, VK_KHR_ray_tracing_pipeline and the 1.2 buffer device
// address feature. The bindings only expose them partially, so the raw values are pinned here.
const (
	BufferUsageShaderDeviceAddressBit                     vk.BufferUsageFlagBits = 0x00020000
	BufferUsageAccelerationStructureBuildInputReadOnlyBit vk.BufferUsageFlagBits = 0x00080000
	BufferUsageAccelerationStructureStorageBit            vk.BufferUsageFlagBits = 0x00100000
	BufferUsageShaderBindingTableBit                      vk.BufferUsageFlagBits = 0x00000400

	PipelineStageAccelerationStructureBuildBit vk.PipelineStageFlagBits = 0x02000000
	PipelineStageRayTracingShaderBit           vk.PipelineStageFlagBits = 0x00200000

	AccessAccelerationStructureReadBit  vk.AccessFlagBits = 0x00200000
	AccessAccelerationStructureWriteBit vk.AccessFlagBits = 0x00400000

	ShaderStageRaygenBit       vk.ShaderStageFlagBits = 0x00000100
	ShaderStageAnyHitBit       vk.ShaderStageFlagBits = 0x00000200
	ShaderStageClosestHitBit   vk.ShaderStageFlagBits = 0x00000400
	ShaderStageMissBit         vk.ShaderStageFlagBits = 0x00000800
	ShaderStageIntersectionBit vk.ShaderStageFlagBits = 0x00001000

	DescriptorTypeAccelerationStructure vk.DescriptorType = 1000150000
)

// Device extensions a ray tracing capable device has to expose.
var RAY_TRACING_EXTENSIONS = []string{
	"VK_KHR_acceleration_structure",
	"VK_KHR_ray_tracing_pipeline",
	"VK_KHR_deferred_host_operations",
	"VK_KHR_buffer_device_address",
	"VK_KHR_spirv_1_4",
	"VK_KHR_shader_float_controls",
}

// Usage combinations shared by the scene resources.
const (
	UsageBuildInput = vk.BufferUsageFlags(BufferUsageShaderDeviceAddressBit | BufferUsageAccelerationStructureBuildInputReadOnlyBit)
	UsageStructure  = vk.BufferUsageFlags(BufferUsageShaderDeviceAddressBit | BufferUsageAccelerationStructureStorageBit)
	UsageScratch    = vk.BufferUsageFlags(BufferUsageShaderDeviceAddressBit) | vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit)
	UsageSBT        = vk.BufferUsageFlags(BufferUsageShaderDeviceAddressBit | BufferUsageShaderBindingTableBit)
	UsageUniform    = vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)
	UsageStorage    = vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit)

	HostVisibleCoherent = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	DeviceLocal         = vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
)
