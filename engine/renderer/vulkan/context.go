package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
)

/**
 * @brief Instance level state shared by every object of a backend.
 */
type VulkanContext struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks

	debugCallback vk.DebugReportCallback

	Device *VulkanDevice

	// Submit is signaled when the last single use submission finished.
	Submit *VulkanFence
	Locks  *VulkanLockPool
}

/**
 * @brief Returns the index of a memory type allowed by typeFilter that has
 * every bit of propertyFlags, or -1.
 */
func (vc *VulkanContext) FindMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlagBits) int32 {
	memoryProperties := vc.Device.Memory
	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		memoryProperties.MemoryTypes[i].Deref()
		flags := vk.MemoryPropertyFlagBits(memoryProperties.MemoryTypes[i].PropertyFlags)
		if (typeFilter&(1<<i)) != 0 && flags&propertyFlags == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}

// allocate finds memory for reqs, preferring the given properties, and
// falls back to any allowed type.
func (vc *VulkanContext) allocate(reqs vk.MemoryRequirements, preferred vk.MemoryPropertyFlagBits) (vk.DeviceMemory, error) {
	index := vc.FindMemoryIndex(reqs.MemoryTypeBits, preferred)
	if index < 0 && preferred&vk.MemoryPropertyDeviceLocalBit != 0 {
		index = vc.FindMemoryIndex(reqs.MemoryTypeBits, 0)
	}
	if index < 0 {
		return vk.NullDeviceMemory, resultError("FindMemoryIndex", vk.ErrorOutOfDeviceMemory)
	}
	var memory vk.DeviceMemory
	res := vk.AllocateMemory(vc.Device.LogicalDevice, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: uint32(index),
	}, vc.Allocator, &memory)
	if err := resultError("vkAllocateMemory", res); err != nil {
		return vk.NullDeviceMemory, err
	}
	return memory, nil
}
