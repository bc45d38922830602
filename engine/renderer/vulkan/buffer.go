package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
)

const (
	// vertex and index data share one kind of buffer
	geometryBufferUsage = vk.BufferUsageVertexBufferBit | vk.BufferUsageIndexBufferBit | vk.BufferUsageTransferDstBit
	uniformBufferUsage  = vk.BufferUsageUniformBufferBit
	stagingBufferUsage  = vk.BufferUsageTransferSrcBit | vk.BufferUsageTransferDstBit
)

/**
 * @brief A buffer in host visible, coherent memory. Uploads are plain memory
 * copies, the submit fence keeps them from racing the device.
 */
type VulkanBuffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Size   uint64
	Usage  vk.BufferUsageFlagBits
}

func NewVulkanBuffer(context *VulkanContext, size uint64, usage vk.BufferUsageFlagBits) (*VulkanBuffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("buffer of 0 bytes: %w", core.ErrInvalidParameter)
	}
	device := context.Device.LogicalDevice
	var handle vk.Buffer
	res := vk.CreateBuffer(device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}, context.Allocator, &handle)
	if err := resultError("vkCreateBuffer", res); err != nil {
		return nil, err
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device, handle, &reqs)
	reqs.Deref()
	memory, err := context.allocate(reqs, vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if err != nil {
		vk.DestroyBuffer(device, handle, context.Allocator)
		return nil, err
	}
	if err := resultError("vkBindBufferMemory", vk.BindBufferMemory(device, handle, memory, 0)); err != nil {
		vk.FreeMemory(device, memory, context.Allocator)
		vk.DestroyBuffer(device, handle, context.Allocator)
		return nil, err
	}
	return &VulkanBuffer{Handle: handle, Memory: memory, Size: size, Usage: usage}, nil
}

func (b *VulkanBuffer) Upload(context *VulkanContext, offset uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if offset+uint64(len(data)) > b.Size {
		return fmt.Errorf("upload of %d bytes at %d into %d: %w", len(data), offset, b.Size, core.ErrInvalidParameter)
	}
	var ptr unsafe.Pointer
	res := vk.MapMemory(context.Device.LogicalDevice, b.Memory, vk.DeviceSize(offset), vk.DeviceSize(len(data)), 0, &ptr)
	if err := resultError("vkMapMemory", res); err != nil {
		return err
	}
	vk.Memcopy(ptr, data)
	vk.UnmapMemory(context.Device.LogicalDevice, b.Memory)
	return nil
}

func (b *VulkanBuffer) Read(context *VulkanContext, offset, size uint64) ([]byte, error) {
	if offset+size > b.Size {
		return nil, fmt.Errorf("read of %d bytes at %d from %d: %w", size, offset, b.Size, core.ErrInvalidParameter)
	}
	var ptr unsafe.Pointer
	res := vk.MapMemory(context.Device.LogicalDevice, b.Memory, vk.DeviceSize(offset), vk.DeviceSize(size), 0, &ptr)
	if err := resultError("vkMapMemory", res); err != nil {
		return nil, err
	}
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(ptr), size))
	vk.UnmapMemory(context.Device.LogicalDevice, b.Memory)
	return out, nil
}

func (b *VulkanBuffer) Destroy(context *VulkanContext) {
	if b.Handle != vk.NullBuffer {
		vk.DestroyBuffer(context.Device.LogicalDevice, b.Handle, context.Allocator)
		b.Handle = vk.NullBuffer
	}
	if b.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(context.Device.LogicalDevice, b.Memory, context.Allocator)
		b.Memory = vk.NullDeviceMemory
	}
	b.Size = 0
}
