package common

import (
	"bytes"
	"fmt"
	"strings"

	vk "github.com/goki/vulkan"
	"github.com/olekukonko/tablewriter"
)

func DeviceTypeName(dt vk.PhysicalDeviceType) string {
	switch dt {
	case vk.PhysicalDeviceTypeOther:
		return "other"
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return "integrated Gpu"
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return "discrete Gpu"
	case vk.PhysicalDeviceTypeVirtualGpu:
		return "virtual Gpu"
	case vk.PhysicalDeviceTypeCpu:
		return "cpu"
	default:
		return "unknown"
	}
}

// MemoryPropertyNames spells out the set bits of flags.
func MemoryPropertyNames(flags vk.MemoryPropertyFlags) []string {
	bits := []struct {
		bit  vk.MemoryPropertyFlagBits
		name string
	}{
		{vk.MemoryPropertyDeviceLocalBit, "DEVICE_LOCAL"},
		{vk.MemoryPropertyHostVisibleBit, "HOST_VISIBLE"},
		{vk.MemoryPropertyHostCoherentBit, "HOST_COHERENT"},
		{vk.MemoryPropertyHostCachedBit, "HOST_CACHED"},
		{vk.MemoryPropertyLazilyAllocatedBit, "LAZILY_ALLOCATED"},
		{vk.MemoryPropertyProtectedBit, "PROTECTED"},
	}
	var names []string
	for _, b := range bits {
		if flags&vk.MemoryPropertyFlags(b.bit) != 0 {
			names = append(names, b.name)
		}
	}
	return names
}

// MemoryPropertiesTable renders the memory types and heaps of a device.
func MemoryPropertiesTable(props vk.PhysicalDeviceMemoryProperties) string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Type", "Heap", "Heap size", "Properties"})
	for i := uint32(0); i < props.MemoryTypeCount; i++ {
		mt := props.MemoryTypes[i]
		table.Append([]string{
			fmt.Sprint(i),
			fmt.Sprint(mt.HeapIndex),
			FmtSize(uint64(props.MemoryHeaps[mt.HeapIndex].Size)),
			strings.Join(MemoryPropertyNames(mt.PropertyFlags), " | "),
		})
	}
	table.Render()
	return buf.String()
}

// BufferTable lists the given buffers with their sizes, memory types and addresses.
func BufferTable(names []string, bufs []*Buffer) string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Buffer", "Size", "Memory type", "Address"})
	var total uint64
	for i, b := range bufs {
		total += uint64(b.Size)
		table.Append([]string{names[i], FmtSize(uint64(b.Size)), fmt.Sprint(b.MemoryType), fmt.Sprintf("0x%x", b.Address)})
	}
	table.SetFooter([]string{"", FmtSize(total), "", ""})
	table.Render()
	return buf.String()
}

// FmtSize pretty prints a byte count.
func FmtSize(n uint64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GiB", float64(n)/float64(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/float64(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
