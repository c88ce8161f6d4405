package common

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindMemoryType(t *testing.T) {
	props := DiscreteMemoryProperties()

	specs := []struct {
		descr    string
		typeBits uint32
		flags    vk.MemoryPropertyFlags
		expIndex uint32
		expErr   error
	}{
		{"device local picks first match", 0xf, DeviceLocal, 0, nil},
		{"host visible skips device only type", 0xf, HostVisibleCoherent, 1, nil},
		{"type bits restrict candidates", 0x8, HostVisibleCoherent, 3, nil},
		{"superset of flags is accepted", 0xf, vk.MemoryPropertyFlags(vk.MemoryPropertyHostCachedBit), 2, nil},
		{"no type bit allowed", 0x0, DeviceLocal, 0, ErrNoMemoryType},
		{"unsatisfiable flags", 0xf, vk.MemoryPropertyFlags(vk.MemoryPropertyProtectedBit), 0, ErrNoMemoryType},
	}

	for specIndex, spec := range specs {
		idx, err := FindMemoryType(props, spec.typeBits, spec.flags)
		if spec.expErr != nil {
			assert.ErrorIs(t, err, spec.expErr, "[spec %d] %s", specIndex, spec.descr)
			continue
		}
		require.NoError(t, err, "[spec %d] %s", specIndex, spec.descr)
		assert.Equal(t, spec.expIndex, idx, "[spec %d] %s", specIndex, spec.descr)
	}
}

func TestHostAllocatorUploads(t *testing.T) {
	a := NewHostAllocator(DiscreteMemoryProperties())

	upload, err := a.Allocate(UsageBuildInput, 24, HostVisibleCoherent)
	require.NoError(t, err)
	assert.True(t, upload.HostVisible())
	require.NoError(t, a.CopyInto(upload, []byte{1, 2, 3}))

	mem, err := a.Contents(upload)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 0}, mem[:4])

	assert.ErrorIs(t, a.CopyInto(upload, make([]byte, 25)), ErrPayloadSize)

	storage, err := a.Allocate(UsageStructure, 1024, DeviceLocal)
	require.NoError(t, err)
	assert.False(t, storage.HostVisible())
	assert.ErrorIs(t, a.CopyInto(storage, []byte{1}), ErrNotHostVisible)
	require.NoError(t, a.DeviceWrite(storage, 1020, []byte{9, 9, 9, 9}))
	assert.ErrorIs(t, a.DeviceWrite(storage, 1021, []byte{9, 9, 9, 9}), ErrPayloadSize)

	_, err = a.Allocate(UsageStorage, 0, HostVisibleCoherent)
	assert.ErrorIs(t, err, ErrZeroSize)
}

func TestHostAllocatorAddresses(t *testing.T) {
	a := NewHostAllocator(DiscreteMemoryProperties())

	var bufs []*Buffer
	for _, size := range []vk.DeviceSize{1, 300, 64, 4096} {
		b, err := a.Allocate(UsageStructure, size, DeviceLocal)
		require.NoError(t, err)
		assert.Zero(t, b.Address%hostAddressAlign)
		if len(bufs) > 0 {
			prev := bufs[len(bufs)-1]
			assert.GreaterOrEqual(t, b.Address, prev.Address+uint64(prev.Size))
		}
		bufs = append(bufs, b)
	}

	found, offset, ok := a.Resolve(bufs[1].Address + 17)
	require.True(t, ok)
	assert.Same(t, bufs[1], found)
	assert.Equal(t, uint64(17), offset)

	a.Free(bufs[1])
	_, _, ok = a.Resolve(bufs[1].Address)
	assert.False(t, ok)
	assert.Equal(t, 3, a.Live())
}

func TestHostAllocatorWithoutHostVisibleMemory(t *testing.T) {
	a := NewHostAllocator(DeviceOnlyMemoryProperties())
	_, err := a.Allocate(UsageUniform, 128, HostVisibleCoherent)
	assert.ErrorIs(t, err, ErrNoMemoryType)

	img, err := a.AllocateImage(4, 2, vk.FormatR8g8b8a8Unorm, vk.ImageUsageFlags(vk.ImageUsageStorageBit))
	require.NoError(t, err)
	assert.Equal(t, uint32(4), img.Width)
}

func TestAlignUp(t *testing.T) {
	assert.Equal(t, uint64(0), AlignUp(0, 64))
	assert.Equal(t, uint64(64), AlignUp(1, 64))
	assert.Equal(t, uint64(64), AlignUp(64, 64))
	assert.Equal(t, uint64(128), AlignUp(65, 64))
	assert.Equal(t, uint64(7), AlignUp(7, 0))
}

func TestExtensionChecks(t *testing.T) {
	supported := []string{"VK_KHR_acceleration_structure", "VK_KHR_swapchain"}
	assert.Equal(t, []string{"VK_KHR_ray_tracing_pipeline"}, MissingFromB([]string{"VK_KHR_acceleration_structure", "VK_KHR_ray_tracing_pipeline"}, supported))
	assert.True(t, AllOfAinB([]string{"VK_KHR_swapchain"}, supported))
	assert.Equal(t, []string{"a\x00", "b\x00"}, TerminatedStrs([]string{"a", "b\x00"}))
}

func TestMemoryPropertiesTable(t *testing.T) {
	out := MemoryPropertiesTable(DiscreteMemoryProperties())
	assert.Contains(t, out, "DEVICE_LOCAL | HOST_VISIBLE | HOST_COHERENT")
	assert.Contains(t, out, "8.0 GiB")
}

func TestDeviceBufferUsage(t *testing.T) {
	address := vk.BufferUsageFlags(BufferUsageShaderDeviceAddressBit)

	specs := []struct {
		descr         string
		usage         vk.BufferUsageFlags
		deviceAddress bool
		exp           vk.BufferUsageFlags
	}{
		{"build input keeps its address", UsageBuildInput, true, address},
		{"build input without address feature", UsageBuildInput, false, UsageStorage},
		{"structure storage", UsageStructure, true, address},
		{"scratch keeps storage", UsageScratch, false, UsageStorage},
		{"binding table", UsageSBT, true, address},
		{"uniform is untouched", UsageUniform, true, UsageUniform},
		{"storage with build input", UsageStorage | UsageBuildInput, false, UsageStorage},
	}

	for specIndex, spec := range specs {
		usage := DeviceBufferUsage(spec.usage, spec.deviceAddress)
		assert.Equal(t, spec.exp, usage, "[spec %d] %s", specIndex, spec.descr)
		assert.Zero(t, usage&rayTracingOnlyUsage, "[spec %d] %s", specIndex, spec.descr)
	}
}

func TestMemoryAllocateFlags(t *testing.T) {
	assert.Equal(t, vk.MemoryAllocateFlags(vk.MemoryAllocateDeviceAddressBit), MemoryAllocateFlags(DeviceBufferUsage(UsageScratch, true)))
	assert.Zero(t, MemoryAllocateFlags(DeviceBufferUsage(UsageScratch, false)))
	assert.Zero(t, MemoryAllocateFlags(UsageUniform))

	features := bufferDeviceAddressFeatures()
	assert.Equal(t, vk.StructureTypePhysicalDeviceBufferDeviceAddressFeatures, features.SType)
	assert.Equal(t, vk.Bool32(vk.True), features.BufferDeviceAddress)
}

func TestBufferRecordsMemoryTypeFlags(t *testing.T) {
	a := NewHostAllocator(DiscreteMemoryProperties())

	cached, err := a.Allocate(UsageStorage, 64, vk.MemoryPropertyFlags(vk.MemoryPropertyHostCachedBit))
	require.NoError(t, err)
	assert.Equal(t, uint32(2), cached.MemoryType)
	assert.True(t, cached.HostVisible())
	require.NoError(t, a.CopyInto(cached, []byte{1, 2}))
}
