package common

import (
	"errors"

	vk "github.com/goki/vulkan"
)

// QueueFamilyIndices holds the family used for building and tracing (graphics and compute capable) and the one
// that can present to the window surface. On most hardware both are the same family.
type QueueFamilyIndices struct {
	WorkFamily    *uint32
	PresentFamily *uint32
}

func findQueueFamilies(pd vk.PhysicalDevice, surf vk.Surface) (*QueueFamilyIndices, error) {
	indices := &QueueFamilyIndices{}
	qFamilies := ReadQueueFamilies(pd)

	for i := range qFamilies {
		if indices.WorkFamily == nil && isBitSet(qFamilies[i], vk.QueueGraphicsBit) && isBitSet(qFamilies[i], vk.QueueComputeBit) {
			indices.WorkFamily = new(uint32)
			*indices.WorkFamily = uint32(i)
		}
		if indices.PresentFamily == nil {
			var presentSupport vk.Bool32
			vk.GetPhysicalDeviceSurfaceSupport(pd, uint32(i), surf, &presentSupport)
			if presentSupport > 0 {
				indices.PresentFamily = new(uint32)
				*indices.PresentFamily = uint32(i)
			}
		}
		if indices.isAllQueuesFound() {
			break
		}
	}
	if indices.WorkFamily == nil {
		return nil, errors.New("unable to find graphics and compute capable queue family")
	}
	if indices.PresentFamily == nil {
		return nil, errors.New("unable to find present capable queue family for given surface")
	}
	return indices, nil
}

func isBitSet(qFamily vk.QueueFamilyProperties, bit vk.QueueFlagBits) bool {
	return vk.QueueFlagBits(qFamily.QueueFlags)&bit > 0
}

func (q *QueueFamilyIndices) isAllQueuesFound() bool {
	return q.WorkFamily != nil && q.PresentFamily != nil
}

func (q *QueueFamilyIndices) uniqueFamilies() []uint32 {
	families := []uint32{*q.WorkFamily}
	if *q.PresentFamily != *q.WorkFamily {
		families = append(families, *q.PresentFamily)
	}
	return families
}

func (q *QueueFamilyIndices) toQueueCreateInfos() []vk.DeviceQueueCreateInfo {
	families := q.uniqueFamilies()
	infos := make([]vk.DeviceQueueCreateInfo, len(families))
	for i := range families {
		infos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: families[i],
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}
	return infos
}
