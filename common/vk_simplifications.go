package common

import (
	"context"
	"fmt"

	vk "github.com/goki/vulkan"
)

// Utility functions providing slightly altered versions of the raw go bindings and wrapped functions. These altered
// versions of common functions should only hide very obvious default values that will not need to change most of the
// time. Thus representing a tiny step-up in abstraction to allow for a simpler usage of common vulkan calls. Each
// simplification function should specify the simplification it does. Names are prefixed with VKS which stands for
// (V)ul(K)an (S)implified.

// VKSAllocateCommandBuffers simplifies vk.AllocateCommandBuffers(...) by assuming the number of desired CommandBuffers
// to create is provided in the vk.CommandBufferAllocateInfo parameter.
func VKSAllocateCommandBuffers(device vk.Device, pAllocateInfo *vk.CommandBufferAllocateInfo) ([]vk.CommandBuffer, error) {
	var buffers = make([]vk.CommandBuffer, pAllocateInfo.CommandBufferCount)
	err := vk.Error(vk.AllocateCommandBuffers(device, pAllocateInfo, buffers))
	if err != nil {
		return nil, err
	}
	return buffers, nil
}

// VKSCreateCommandPool implicitly instantiates the CreateInfo for the command pool based in the provided arguments. This
// is easily possible as the CreateInfo does only contain 2 interesting value sin this case.
func VKSCreateCommandPool(device vk.Device, flags vk.CommandPoolCreateFlags, QueueFamilyIndex uint32) (vk.CommandPool, error) {
	poolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		PNext:            nil,
		Flags:            flags,
		QueueFamilyIndex: QueueFamilyIndex,
	}
	return VkCreateCommandPool(device, &poolInfo, nil)
}

const fencePollInterval = uint64(10_000_000) // 10ms in ns

// VKSSubmitAndWait records a one time submit command buffer through record, submits it to the device's work queue
// and blocks on a fence until the device is done. The wait is sliced so ctx cancellation is honoured. The command
// buffer and fence are released before returning.
func VKSSubmitAndWait(ctx context.Context, dc *Device, pool vk.CommandPool, record func(cb vk.CommandBuffer)) error {
	cbs, err := VKSAllocateCommandBuffers(dc.Device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return fmt.Errorf("allocate command buffer: %w", err)
	}
	defer vk.FreeCommandBuffers(dc.Device, pool, 1, cbs)

	err = vk.Error(vk.BeginCommandBuffer(cbs[0], &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}))
	if err != nil {
		return fmt.Errorf("begin command buffer: %w", err)
	}
	record(cbs[0])
	if err = vk.Error(vk.EndCommandBuffer(cbs[0])); err != nil {
		return fmt.Errorf("end command buffer: %w", err)
	}

	fence, err := VkCreateFence(dc.Device, &vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}, nil)
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer vk.DestroyFence(dc.Device, fence, nil)

	submit := []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    cbs,
	}}
	if err = vk.Error(vk.QueueSubmit(dc.WorkQ, 1, submit, fence)); err != nil {
		return fmt.Errorf("queue submit: %w", err)
	}
	for {
		res := vk.WaitForFences(dc.Device, 1, []vk.Fence{fence}, vk.True, fencePollInterval)
		if res == vk.Success {
			return nil
		}
		if res != vk.Timeout {
			return fmt.Errorf("wait for fence: %w", vk.Error(res))
		}
		if err = ctx.Err(); err != nil {
			// The submission still references the command buffer, let it drain before releasing it.
			vk.QueueWaitIdle(dc.WorkQ)
			return err
		}
	}
}
