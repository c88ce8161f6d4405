package common

import (
	"errors"
	"fmt"
	"slices"
	"unsafe"

	vk "github.com/goki/vulkan"
)

var VALIDATION_LAYERS = []string{
	"VK_LAYER_KHRONOS_validation",
}

var ErrNoSuitableDevice = errors.New("common: no ray tracing capable physical device found")

// Device represents the interfacing objects between the window, the hardware running Vulkan and the rest of the
// raytracer. Only devices exposing every extension in RAY_TRACING_EXTENSIONS are considered.
type Device struct {
	PhysicalDevice vk.PhysicalDevice
	PdProps        vk.PhysicalDeviceProperties
	PdMemoryProps  vk.PhysicalDeviceMemoryProperties
	QFamilies      QueueFamilyIndices
	Extensions     []string

	// BufferDeviceAddress is set when the logical device was created with the bufferDeviceAddress feature.
	BufferDeviceAddress bool

	Device vk.Device
	WorkQ  vk.Queue
}

// NewDevice picks the first physical device that supports the required extensions and a queue family able to
// present to w, then creates the logical device. A missing capability is reported through ErrNoSuitableDevice
// together with what each candidate lacked.
func NewDevice(w *Window, required []string, enableValidation bool) (*Device, error) {
	dc := &Device{}
	if err := dc.selectPhysicalDevice(*w.Inst, *w.Surf, required); err != nil {
		return nil, err
	}
	if err := dc.createLogicalDevice(required, enableValidation); err != nil {
		return nil, err
	}
	return dc, nil
}

// Destroy only releases the logical device, the window stays untouched.
func (dc *Device) Destroy() {
	vk.DeviceWaitIdle(dc.Device)
	vk.DestroyDevice(dc.Device, nil)
}

func (dc *Device) Name() string {
	return vk.ToString(dc.PdProps.DeviceName[:])
}

func (dc *Device) selectPhysicalDevice(in vk.Instance, su vk.Surface, required []string) error {
	availableDevices, err := ReadPhysicalDevices(in)
	if err != nil {
		return err
	}
	var reasons []string
	for _, pd := range availableDevices {
		props := ReadPhysicalDeviceProperties(pd)
		name := vk.ToString(props.DeviceName[:])

		extensions, err := ReadDeviceExtensionNames(pd)
		if err != nil {
			reasons = append(reasons, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		if missing := MissingFromB(required, extensions); len(missing) > 0 {
			reasons = append(reasons, fmt.Sprintf("%s: missing %v", name, missing))
			continue
		}
		qf, err := findQueueFamilies(pd, su)
		if err != nil {
			reasons = append(reasons, fmt.Sprintf("%s: %v", name, err))
			continue
		}

		logger.Noticef("selected physical device %s (%s)", name, DeviceTypeName(props.DeviceType))
		dc.PhysicalDevice = pd
		dc.PdProps = props
		dc.QFamilies = *qf
		dc.Extensions = extensions
		dc.PdMemoryProps = ReadDeviceMemoryProperties(pd)
		return nil
	}
	return fmt.Errorf("%w: %v", ErrNoSuitableDevice, reasons)
}

func (dc *Device) createLogicalDevice(extensions []string, enableValidation bool) error {
	queueInfos := dc.QFamilies.toQueueCreateInfos()
	deviceCreateInfo := &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: TerminatedStrs(extensions),
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{{}},
	}
	if slices.Contains(extensions, vk.KhrBufferDeviceAddressExtensionName) {
		addressFeatures := bufferDeviceAddressFeatures()
		ref, _ := addressFeatures.PassRef()
		defer addressFeatures.Free()
		deviceCreateInfo.PNext = unsafe.Pointer(ref)
		dc.BufferDeviceAddress = true
	}
	if enableValidation {
		deviceCreateInfo.EnabledLayerCount = uint32(len(VALIDATION_LAYERS))
		deviceCreateInfo.PpEnabledLayerNames = TerminatedStrs(VALIDATION_LAYERS)
	}

	var err error
	dc.Device, err = VkCreateDevice(dc.PhysicalDevice, deviceCreateInfo, nil)
	if err != nil {
		return fmt.Errorf("create logical device: %w", err)
	}
	logger.Debugf("logical device created, buffer device address %t", dc.BufferDeviceAddress)
	dc.WorkQ, err = VkGetDeviceQueue(dc.Device, dc.QFamilies.WorkFamily, 0)
	if err != nil {
		vk.DestroyDevice(dc.Device, nil)
		return fmt.Errorf("get work queue: %w", err)
	}
	return nil
}

// bufferDeviceAddressFeatures is chained into the device create info. The acceleration structure and ray tracing
// pipeline features have no bindings, so the allocator keeps their usage bits off real buffers.
func bufferDeviceAddressFeatures() *vk.PhysicalDeviceBufferDeviceAddressFeatures {
	return &vk.PhysicalDeviceBufferDeviceAddressFeatures{
		SType:               vk.StructureTypePhysicalDeviceBufferDeviceAddressFeatures,
		BufferDeviceAddress: vk.True,
	}
}
