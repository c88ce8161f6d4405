package common

import (
	"errors"
	"fmt"

	vk "github.com/goki/vulkan"
)

// This Code section contains allocation helper functions. Every buffer the raytracer touches (geometry inputs,
// structure storage, scratch, instance arrays, the binding table and uniforms) goes through an Allocator so the
// same scene code runs against a real device or the host emulation.

var (
	ErrNoMemoryType   = errors.New("common: no memory type satisfies the requested properties")
	ErrNotHostVisible = errors.New("common: buffer memory is not host visible")
	ErrPayloadSize    = errors.New("common: payload does not fit the buffer")
	ErrUnknownBuffer  = errors.New("common: buffer is not owned by this allocator")
	ErrZeroSize       = errors.New("common: zero sized allocation")
)

type Buffer struct {
	Handle     vk.Buffer
	DeviceMem  vk.DeviceMemory
	Size       vk.DeviceSize
	Usage      vk.BufferUsageFlags
	Props      vk.MemoryPropertyFlags
	MemoryType uint32
	// Address is the device address of the first byte, or 0 if the allocator can not provide one.
	Address uint64
}

func (b *Buffer) HostVisible() bool {
	return b.Props&vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) != 0
}

// Image is a 2D storage image, used as the ray generation output target.
type Image struct {
	Handle    vk.Image
	DeviceMem vk.DeviceMemory
	Width     uint32
	Height    uint32
	Format    vk.Format
	Usage     vk.ImageUsageFlags
	Address   uint64
}

// Allocator hands out device memory backed buffers. Implementations select the memory type with FindMemoryType.
type Allocator interface {
	Allocate(usage vk.BufferUsageFlags, size vk.DeviceSize, props vk.MemoryPropertyFlags) (*Buffer, error)
	// CopyInto maps buf, copies data to offset 0 and unmaps. Only valid for host visible memory.
	CopyInto(buf *Buffer, data []byte) error
	Free(buf *Buffer)

	AllocateImage(w uint32, h uint32, format vk.Format, usage vk.ImageUsageFlags) (*Image, error)
	FreeImage(img *Image)

	MemoryProperties() vk.PhysicalDeviceMemoryProperties
}

// FindMemoryType returns the first memory type whose bit is set in typeBits and whose property flags are a
// superset of flags.
func FindMemoryType(props vk.PhysicalDeviceMemoryProperties, typeBits uint32, flags vk.MemoryPropertyFlags) (uint32, error) {
	for i := uint32(0); i < props.MemoryTypeCount; i++ {
		ofType := typeBits&(1<<i) != 0
		hasProperties := props.MemoryTypes[i].PropertyFlags&flags == flags
		if ofType && hasProperties {
			logger.Debugf("found memory type %d on heap %d for flags %s", i, props.MemoryTypes[i].HeapIndex, MemoryPropertyNames(flags))
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: flags %v, type bits %032b", ErrNoMemoryType, MemoryPropertyNames(flags), typeBits)
}

func checkCopy(buf *Buffer, data []byte) error {
	if !buf.HostVisible() {
		return ErrNotHostVisible
	}
	if vk.DeviceSize(len(data)) > buf.Size {
		return fmt.Errorf("%w: %d bytes into %d", ErrPayloadSize, len(data), buf.Size)
	}
	return nil
}

// AlignUp rounds v up to the next multiple of a. a has to be a power of two.
func AlignUp(v uint64, a uint64) uint64 {
	if a == 0 {
		return v
	}
	return (v + a - 1) &^ (a - 1)
}
