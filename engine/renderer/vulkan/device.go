package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
)

type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	GraphicsQueueIndex uint32
	GraphicsQueue      vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties

	// Optional features that were found and enabled.
	WideLines       bool
	NonSolidFill    bool
	CompressionBC   bool
	LineWidthRange  [2]float32
	MaxImageSize    uint32
	MaxSamplerUnits uint32
}

const portabilitySubsetExtension = "VK_KHR_portability_subset"

// deviceTypeScore ranks device types, dedicated hardware first.
func deviceTypeScore(t vk.PhysicalDeviceType) int {
	switch t {
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return 4
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return 3
	case vk.PhysicalDeviceTypeVirtualGpu:
		return 2
	case vk.PhysicalDeviceTypeCpu:
		return 1
	}
	return 0
}

// pickQueueFamily returns the first family with graphics support. Graphics
// families always support transfers.
func pickQueueFamily(families []vk.QueueFamilyProperties) (uint32, bool) {
	for i, f := range families {
		if f.QueueCount > 0 && vk.QueueFlagBits(f.QueueFlags)&vk.QueueGraphicsBit != 0 {
			return uint32(i), true
		}
	}
	return 0, false
}

func deviceExtensions(device vk.PhysicalDevice) ([]string, error) {
	var count uint32
	if err := resultError("vkEnumerateDeviceExtensionProperties", vk.EnumerateDeviceExtensionProperties(device, "", &count, nil)); err != nil {
		return nil, err
	}
	props := make([]vk.ExtensionProperties, count)
	if err := resultError("vkEnumerateDeviceExtensionProperties", vk.EnumerateDeviceExtensionProperties(device, "", &count, props)); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for i := range props {
		props[i].Deref()
		names = append(names, cString(props[i].ExtensionName[:]))
	}
	return names, nil
}

/**
 * @brief Picks the best ranked device that has a graphics queue. No surface
 * or present support is needed, every image stays offscreen.
 */
func SelectPhysicalDevice(context *VulkanContext) error {
	var physicalDeviceCount uint32
	if err := resultError("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, nil)); err != nil {
		return err
	}
	if physicalDeviceCount == 0 {
		return fmt.Errorf("no devices which support Vulkan were found: %w", core.ErrDeviceNotReady)
	}
	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if err := resultError("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, physicalDevices)); err != nil {
		return err
	}

	best := -1
	for _, physicalDevice := range physicalDevices {
		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(physicalDevice, &properties)
		properties.Deref()

		var queueFamilyCount uint32
		vk.GetPhysicalDeviceQueueFamilyProperties(physicalDevice, &queueFamilyCount, nil)
		queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
		vk.GetPhysicalDeviceQueueFamilyProperties(physicalDevice, &queueFamilyCount, queueFamilies)
		for i := range queueFamilies {
			queueFamilies[i].Deref()
		}

		name := cString(properties.DeviceName[:])
		queueIndex, ok := pickQueueFamily(queueFamilies)
		if !ok {
			core.LogInfo("Device '%s' has no graphics queue, skipping.", name)
			continue
		}
		score := deviceTypeScore(properties.DeviceType)
		core.LogDebug("Device '%s': type score %d, graphics family %d", name, score, queueIndex)
		if score <= best {
			continue
		}
		best = score
		context.Device.PhysicalDevice = physicalDevice
		context.Device.GraphicsQueueIndex = queueIndex
		context.Device.Properties = properties
	}

	if best < 0 {
		return fmt.Errorf("no physical devices were found which meet the requirements: %w", core.ErrDeviceNotReady)
	}

	properties := context.Device.Properties
	properties.Limits.Deref()
	core.LogInfo("Selected device: '%s'.", cString(properties.DeviceName[:]))
	core.LogInfo(
		"Vulkan API version: %d.%d.%d",
		vk.Version(properties.ApiVersion).Major(),
		vk.Version(properties.ApiVersion).Minor(),
		vk.Version(properties.ApiVersion).Patch(),
	)

	vk.GetPhysicalDeviceFeatures(context.Device.PhysicalDevice, &context.Device.Features)
	context.Device.Features.Deref()
	vk.GetPhysicalDeviceMemoryProperties(context.Device.PhysicalDevice, &context.Device.Memory)
	context.Device.Memory.Deref()

	for j := uint32(0); j < context.Device.Memory.MemoryHeapCount; j++ {
		heap := context.Device.Memory.MemoryHeaps[j]
		heap.Deref()
		memorySizeMib := uint64(heap.Size) / 1024 / 1024
		if vk.MemoryHeapFlagBits(heap.Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
			core.LogDebug("Local GPU memory: %d MiB", memorySizeMib)
		} else {
			core.LogDebug("Shared System memory: %d MiB", memorySizeMib)
		}
	}

	context.Device.MaxImageSize = properties.Limits.MaxImageDimension2D
	context.Device.MaxSamplerUnits = properties.Limits.MaxPerStageDescriptorSampledImages
	context.Device.LineWidthRange = properties.Limits.LineWidthRange
	return nil
}

/**
 * @brief Creates the logical device with a single graphics queue and its
 * command pool.
 */
func DeviceCreate(context *VulkanContext) error {
	if err := SelectPhysicalDevice(context); err != nil {
		return err
	}

	core.LogInfo("Creating logical device...")
	device := context.Device

	enabled := vk.PhysicalDeviceFeatures{}
	if device.Features.WideLines == vk.True {
		enabled.WideLines = vk.True
		device.WideLines = true
	}
	if device.Features.FillModeNonSolid == vk.True {
		enabled.FillModeNonSolid = vk.True
		device.NonSolidFill = true
	}
	if device.Features.TextureCompressionBC == vk.True {
		enabled.TextureCompressionBC = vk.True
		device.CompressionBC = true
	}

	available, err := deviceExtensions(device.PhysicalDevice)
	if err != nil {
		return err
	}
	extensionNames := []string{}
	for _, name := range available {
		if name == portabilitySubsetExtension {
			core.LogInfo("Adding required extension '%s'.", portabilitySubsetExtension)
			extensionNames = append(extensionNames, portabilitySubsetExtension)
			break
		}
	}

	queueCreateInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: device.GraphicsQueueIndex,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{enabled},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}

	var logicalDevice vk.Device
	if err := resultError("vkCreateDevice", vk.CreateDevice(device.PhysicalDevice, &deviceCreateInfo, context.Allocator, &logicalDevice)); err != nil {
		return err
	}
	device.LogicalDevice = logicalDevice
	core.LogInfo("Logical device created.")

	var queue vk.Queue
	vk.GetDeviceQueue(device.LogicalDevice, device.GraphicsQueueIndex, 0, &queue)
	device.GraphicsQueue = queue

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: device.GraphicsQueueIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if err := resultError("vkCreateCommandPool", vk.CreateCommandPool(device.LogicalDevice, &poolCreateInfo, context.Allocator, &pool)); err != nil {
		return err
	}
	device.GraphicsCommandPool = pool
	core.LogDebug("Graphics command pool created.")
	return nil
}

func DeviceDestroy(context *VulkanContext) {
	device := context.Device
	if device.LogicalDevice == nil {
		return
	}
	device.GraphicsQueue = nil

	core.LogDebug("Destroying command pools...")
	vk.DestroyCommandPool(device.LogicalDevice, device.GraphicsCommandPool, context.Allocator)

	core.LogDebug("Destroying logical device...")
	vk.DestroyDevice(device.LogicalDevice, context.Allocator)
	device.LogicalDevice = nil

	// Physical devices are not destroyed.
	device.PhysicalDevice = nil
}

/**
 * @brief Reports whether format can be used with optimal tiling for the
 * given features.
 */
func DeviceSupportsFormat(device *VulkanDevice, format vk.Format, features vk.FormatFeatureFlagBits) bool {
	var properties vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(device.PhysicalDevice, format, &properties)
	properties.Deref()
	return vk.FormatFeatureFlagBits(properties.OptimalTilingFeatures)&features == features
}
