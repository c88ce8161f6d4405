package common

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
)

// VulkanAllocator allocates real device memory on the logical device selected by NewDevice. Each buffer gets its
// own vk.DeviceMemory, which is fine for the handful of long lived scene resources.
type VulkanAllocator struct {
	dc *Device
}

func NewVulkanAllocator(dc *Device) *VulkanAllocator {
	return &VulkanAllocator{dc: dc}
}

func (a *VulkanAllocator) MemoryProperties() vk.PhysicalDeviceMemoryProperties {
	return a.dc.PdMemoryProps
}

// Usage bits that need the acceleration structure or ray tracing pipeline features. Those are never enabled on the
// logical device, structures are built on the host device only.
const rayTracingOnlyUsage = vk.BufferUsageFlags(BufferUsageAccelerationStructureBuildInputReadOnlyBit |
	BufferUsageAccelerationStructureStorageBit | BufferUsageShaderBindingTableBit)

// DeviceBufferUsage reduces usage to the bits a device created by NewDevice accepts. A buffer left without any
// usage becomes a storage buffer.
func DeviceBufferUsage(usage vk.BufferUsageFlags, deviceAddress bool) vk.BufferUsageFlags {
	usage &^= rayTracingOnlyUsage
	if !deviceAddress {
		usage &^= vk.BufferUsageFlags(BufferUsageShaderDeviceAddressBit)
	}
	if usage == 0 {
		usage = UsageStorage
	}
	return usage
}

// MemoryAllocateFlags returns the flags the memory backing a buffer of the given usage has to be allocated with.
func MemoryAllocateFlags(usage vk.BufferUsageFlags) vk.MemoryAllocateFlags {
	if usage&vk.BufferUsageFlags(BufferUsageShaderDeviceAddressBit) != 0 {
		return vk.MemoryAllocateFlags(vk.MemoryAllocateDeviceAddressBit)
	}
	return 0
}

func (a *VulkanAllocator) Allocate(requested vk.BufferUsageFlags, size vk.DeviceSize, props vk.MemoryPropertyFlags) (*Buffer, error) {
	if size == 0 {
		return nil, ErrZeroSize
	}
	usage := DeviceBufferUsage(requested, a.dc.BufferDeviceAddress)
	if usage != requested {
		logger.Debugf("buffer usage %#x reduced to %#x on %s", requested, usage, a.dc.Name())
	}
	bufferInfo := vk.BufferCreateInfo{
		SType:                 vk.StructureTypeBufferCreateInfo,
		PNext:                 nil,
		Flags:                 0,
		Size:                  size,
		Usage:                 usage,
		SharingMode:           vk.SharingModeExclusive,
		QueueFamilyIndexCount: 0,
		PQueueFamilyIndices:   nil,
	}
	buf, err := VkCreateBuffer(a.dc.Device, &bufferInfo, nil)
	if err != nil {
		return nil, fmt.Errorf("create buffer of %d bytes: %w", size, err)
	}

	req := ReadBufferMemoryRequirements(a.dc.Device, buf)
	memType, err := FindMemoryType(a.dc.PdMemoryProps, req.MemoryTypeBits, props)
	if err != nil {
		vk.DestroyBuffer(a.dc.Device, buf, nil)
		return nil, err
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		PNext:           nil,
		AllocationSize:  req.Size,
		MemoryTypeIndex: memType,
	}
	if flags := MemoryAllocateFlags(usage); flags != 0 {
		flagsInfo := &vk.MemoryAllocateFlagsInfo{
			SType: vk.StructureTypeMemoryAllocateFlagsInfo,
			Flags: flags,
		}
		ref, _ := flagsInfo.PassRef()
		defer flagsInfo.Free()
		allocInfo.PNext = unsafe.Pointer(ref)
	}
	mem, err := VkAllocateMemory(a.dc.Device, &allocInfo, nil)
	if err != nil {
		vk.DestroyBuffer(a.dc.Device, buf, nil)
		return nil, fmt.Errorf("allocate %d bytes of memory type %d: %w", req.Size, memType, err)
	}
	if err = VkBindBufferMemory(a.dc.Device, buf, mem, 0); err != nil {
		vk.DestroyBuffer(a.dc.Device, buf, nil)
		vk.FreeMemory(a.dc.Device, mem, nil)
		return nil, fmt.Errorf("bind buffer memory: %w", err)
	}
	return &Buffer{
		Handle:     buf,
		DeviceMem:  mem,
		Size:       size,
		Usage:      usage,
		Props:      a.dc.PdMemoryProps.MemoryTypes[memType].PropertyFlags,
		MemoryType: memType,
	}, nil
}

// CopyInto maps the buffer memory, copies data to its start and unmaps again. The mapping is not kept around
// between calls.
func (a *VulkanAllocator) CopyInto(buf *Buffer, data []byte) error {
	if err := checkCopy(buf, data); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	pData, err := VkMapMemory(a.dc.Device, buf.DeviceMem, 0, vk.DeviceSize(len(data)), 0)
	if err != nil {
		return fmt.Errorf("map memory: %w", err)
	}
	n := vk.Memcopy(pData, data)
	vk.UnmapMemory(a.dc.Device, buf.DeviceMem)
	logger.Debugf("copied %d bytes from cpu to device", n)
	return nil
}

func (a *VulkanAllocator) Free(buf *Buffer) {
	if buf == nil {
		return
	}
	vk.DestroyBuffer(a.dc.Device, buf.Handle, nil)
	vk.FreeMemory(a.dc.Device, buf.DeviceMem, nil)
}

func (a *VulkanAllocator) AllocateImage(w uint32, h uint32, format vk.Format, usage vk.ImageUsageFlags) (*Image, error) {
	imageInfo := &vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent: vk.Extent3D{
			Width:  w,
			Height: h,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	img, err := VkCreateImage(a.dc.Device, imageInfo, nil)
	if err != nil {
		return nil, fmt.Errorf("create %dx%d image: %w", w, h, err)
	}
	req := ReadImageMemoryRequirements(a.dc.Device, img)
	memType, err := FindMemoryType(a.dc.PdMemoryProps, req.MemoryTypeBits, DeviceLocal)
	if err != nil {
		vk.DestroyImage(a.dc.Device, img, nil)
		return nil, err
	}
	allocInfo := &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: memType,
	}
	mem, err := VkAllocateMemory(a.dc.Device, allocInfo, nil)
	if err != nil {
		vk.DestroyImage(a.dc.Device, img, nil)
		return nil, fmt.Errorf("allocate image memory: %w", err)
	}
	if err = vk.Error(vk.BindImageMemory(a.dc.Device, img, mem, 0)); err != nil {
		vk.DestroyImage(a.dc.Device, img, nil)
		vk.FreeMemory(a.dc.Device, mem, nil)
		return nil, fmt.Errorf("bind image memory: %w", err)
	}
	return &Image{Handle: img, DeviceMem: mem, Width: w, Height: h, Format: format, Usage: usage}, nil
}

func (a *VulkanAllocator) FreeImage(img *Image) {
	if img == nil {
		return
	}
	vk.DestroyImage(a.dc.Device, img.Handle, nil)
	vk.FreeMemory(a.dc.Device, img.DeviceMem, nil)
}
