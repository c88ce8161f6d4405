package common

import (
	"fmt"
	"sort"

	vk "github.com/goki/vulkan"
)

const hostAddressBase = 0x1000_0000
const hostAddressAlign = 256

// HostAllocator emulates a device memory table in host memory. It runs the same memory type selection as the
// Vulkan path against a configurable vk.PhysicalDeviceMemoryProperties and hands out stable, aligned device
// addresses. The host side ray tracing backend reads and writes buffer contents through it.
type HostAllocator struct {
	props    vk.PhysicalDeviceMemoryProperties
	nextAddr uint64
	memory   map[*Buffer][]byte
	images   map[*Image][]byte
}

func NewHostAllocator(props vk.PhysicalDeviceMemoryProperties) *HostAllocator {
	return &HostAllocator{
		props:    props,
		nextAddr: hostAddressBase,
		memory:   make(map[*Buffer][]byte),
		images:   make(map[*Image][]byte),
	}
}

// DiscreteMemoryProperties describes a typical discrete GPU: a device local heap with a small host visible window
// and a system memory heap.
func DiscreteMemoryProperties() vk.PhysicalDeviceMemoryProperties {
	var props vk.PhysicalDeviceMemoryProperties
	props.MemoryHeapCount = 2
	props.MemoryHeaps[0] = vk.MemoryHeap{Size: 8 << 30, Flags: vk.MemoryHeapFlags(vk.MemoryHeapDeviceLocalBit)}
	props.MemoryHeaps[1] = vk.MemoryHeap{Size: 16 << 30}

	props.MemoryTypeCount = 4
	props.MemoryTypes[0] = vk.MemoryType{PropertyFlags: DeviceLocal, HeapIndex: 0}
	props.MemoryTypes[1] = vk.MemoryType{PropertyFlags: HostVisibleCoherent, HeapIndex: 1}
	props.MemoryTypes[2] = vk.MemoryType{
		PropertyFlags: HostVisibleCoherent | vk.MemoryPropertyFlags(vk.MemoryPropertyHostCachedBit),
		HeapIndex:     1,
	}
	props.MemoryTypes[3] = vk.MemoryType{PropertyFlags: DeviceLocal | HostVisibleCoherent, HeapIndex: 0}
	return props
}

// DeviceOnlyMemoryProperties has no host visible memory type at all. Uploads can not be served by it.
func DeviceOnlyMemoryProperties() vk.PhysicalDeviceMemoryProperties {
	var props vk.PhysicalDeviceMemoryProperties
	props.MemoryHeapCount = 1
	props.MemoryHeaps[0] = vk.MemoryHeap{Size: 8 << 30, Flags: vk.MemoryHeapFlags(vk.MemoryHeapDeviceLocalBit)}
	props.MemoryTypeCount = 1
	props.MemoryTypes[0] = vk.MemoryType{PropertyFlags: DeviceLocal, HeapIndex: 0}
	return props
}

func (a *HostAllocator) MemoryProperties() vk.PhysicalDeviceMemoryProperties {
	return a.props
}

func (a *HostAllocator) allTypeBits() uint32 {
	if a.props.MemoryTypeCount >= 32 {
		return ^uint32(0)
	}
	return (uint32(1) << a.props.MemoryTypeCount) - 1
}

func (a *HostAllocator) reserveAddress(size uint64) uint64 {
	addr := a.nextAddr
	a.nextAddr = AlignUp(addr+size, hostAddressAlign)
	return addr
}

func (a *HostAllocator) Allocate(usage vk.BufferUsageFlags, size vk.DeviceSize, props vk.MemoryPropertyFlags) (*Buffer, error) {
	if size == 0 {
		return nil, ErrZeroSize
	}
	memType, err := FindMemoryType(a.props, a.allTypeBits(), props)
	if err != nil {
		return nil, err
	}
	buf := &Buffer{
		Size:       size,
		Usage:      usage,
		Props:      a.props.MemoryTypes[memType].PropertyFlags,
		MemoryType: memType,
		Address:    a.reserveAddress(uint64(size)),
	}
	a.memory[buf] = make([]byte, size)
	return buf, nil
}

func (a *HostAllocator) CopyInto(buf *Buffer, data []byte) error {
	mem, ok := a.memory[buf]
	if !ok {
		return ErrUnknownBuffer
	}
	if err := checkCopy(buf, data); err != nil {
		return err
	}
	copy(mem, data)
	return nil
}

func (a *HostAllocator) Free(buf *Buffer) {
	delete(a.memory, buf)
}

// Contents exposes the backing memory of buf regardless of its memory type, the way a device sees it.
func (a *HostAllocator) Contents(buf *Buffer) ([]byte, error) {
	mem, ok := a.memory[buf]
	if !ok {
		return nil, ErrUnknownBuffer
	}
	return mem, nil
}

// DeviceWrite stores data at offset as a device side write would. Memory type restrictions do not apply.
func (a *HostAllocator) DeviceWrite(buf *Buffer, offset uint64, data []byte) error {
	mem, ok := a.memory[buf]
	if !ok {
		return ErrUnknownBuffer
	}
	if offset+uint64(len(data)) > uint64(len(mem)) {
		return fmt.Errorf("%w: %d bytes at offset %d into %d", ErrPayloadSize, len(data), offset, len(mem))
	}
	copy(mem[offset:], data)
	return nil
}

// Resolve finds the live buffer containing the device address addr.
func (a *HostAllocator) Resolve(addr uint64) (*Buffer, uint64, bool) {
	for buf := range a.memory {
		if addr >= buf.Address && addr < buf.Address+uint64(buf.Size) {
			return buf, addr - buf.Address, true
		}
	}
	return nil, 0, false
}

// Live returns the number of buffers that have not been freed yet.
func (a *HostAllocator) Live() int {
	return len(a.memory)
}

// LiveImages returns the number of images that have not been freed yet.
func (a *HostAllocator) LiveImages() int {
	return len(a.images)
}

// LiveBuffers lists the live buffers ordered by address.
func (a *HostAllocator) LiveBuffers() []*Buffer {
	out := make([]*Buffer, 0, len(a.memory))
	for buf := range a.memory {
		out = append(out, buf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

func (a *HostAllocator) AllocateImage(w uint32, h uint32, format vk.Format, usage vk.ImageUsageFlags) (*Image, error) {
	if w == 0 || h == 0 {
		return nil, ErrZeroSize
	}
	if _, err := FindMemoryType(a.props, a.allTypeBits(), DeviceLocal); err != nil {
		return nil, err
	}
	size := uint64(w) * uint64(h) * uint64(FormatSize(format))
	img := &Image{Width: w, Height: h, Format: format, Usage: usage, Address: a.reserveAddress(size)}
	a.images[img] = make([]byte, size)
	return img, nil
}

func (a *HostAllocator) FreeImage(img *Image) {
	delete(a.images, img)
}

// FormatSize returns the texel size in bytes for the formats the raytracer uses.
func FormatSize(f vk.Format) uint32 {
	switch f {
	case vk.FormatR32g32b32a32Sfloat:
		return 16
	case vk.FormatR32g32b32Sfloat:
		return 12
	case vk.FormatR16g16b16a16Sfloat:
		return 8
	default:
		return 4
	}
}
