package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

/**
 * @brief A texture on the device. Every image lives in the general layout
 * for its whole life, so sampling, rendering and transfers need no layout
 * transitions.
 */
type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	// View covers every level and applies the format swizzle.
	View vk.ImageView
	// AttachmentView is the unswizzled base level, created on first use
	// as a render target attachment.
	AttachmentView vk.ImageView
	Width          uint32
	Height         uint32
	Levels         uint32
	Format         metadata.PixelFormat
	VkFormat       vk.Format
	Aspect         vk.ImageAspectFlagBits
	RenderTarget   bool
}

type formatMapping struct {
	format     vk.Format
	components vk.ComponentMapping
}

var identitySwizzle = vk.ComponentMapping{
	R: vk.ComponentSwizzleIdentity,
	G: vk.ComponentSwizzleIdentity,
	B: vk.ComponentSwizzleIdentity,
	A: vk.ComponentSwizzleIdentity,
}

/**
 * @brief Returns the device format storing f and the swizzle that makes it
 * sample like the soft backend. RGB8 is stored as RGBA8 with opaque alpha.
 */
func vkFormatFor(f metadata.PixelFormat) (formatMapping, bool) {
	switch f {
	case metadata.PixelFormatR8:
		return formatMapping{vk.FormatR8Unorm, identitySwizzle}, true
	case metadata.PixelFormatL8:
		return formatMapping{vk.FormatR8Unorm, vk.ComponentMapping{
			R: vk.ComponentSwizzleR, G: vk.ComponentSwizzleR, B: vk.ComponentSwizzleR, A: vk.ComponentSwizzleOne,
		}}, true
	case metadata.PixelFormatLA8:
		return formatMapping{vk.FormatR8g8Unorm, vk.ComponentMapping{
			R: vk.ComponentSwizzleR, G: vk.ComponentSwizzleR, B: vk.ComponentSwizzleR, A: vk.ComponentSwizzleG,
		}}, true
	case metadata.PixelFormatRGB8, metadata.PixelFormatRGBA8:
		return formatMapping{vk.FormatR8g8b8a8Unorm, identitySwizzle}, true
	case metadata.PixelFormatR32F:
		return formatMapping{vk.FormatR32Sfloat, identitySwizzle}, true
	case metadata.PixelFormatRGBA16F:
		return formatMapping{vk.FormatR16g16b16a16Sfloat, identitySwizzle}, true
	case metadata.PixelFormatRGBA32F:
		return formatMapping{vk.FormatR32g32b32a32Sfloat, identitySwizzle}, true
	case metadata.PixelFormatDXT1:
		return formatMapping{vk.FormatBc1RgbUnormBlock, identitySwizzle}, true
	case metadata.PixelFormatDXT3:
		return formatMapping{vk.FormatBc2UnormBlock, identitySwizzle}, true
	case metadata.PixelFormatDXT5:
		return formatMapping{vk.FormatBc3UnormBlock, identitySwizzle}, true
	case metadata.PixelFormatDepth24:
		return formatMapping{vk.FormatX8D24UnormPack32, identitySwizzle}, true
	case metadata.PixelFormatDepth32F:
		return formatMapping{vk.FormatD32Sfloat, identitySwizzle}, true
	}
	return formatMapping{}, false
}

// levelSize returns the size of mip level level of a width x height image.
func levelSize(width, height, level uint32) (uint32, uint32) {
	return max(width>>level, 1), max(height>>level, 1)
}

// deviceBytes is the size of one level as stored on the device.
func deviceBytes(f metadata.PixelFormat, width, height uint32) uint32 {
	if f == metadata.PixelFormatRGB8 {
		return width * height * 4
	}
	return f.NumOfBytes(width, height)
}

// expandRGB8 turns packed RGB8 texels into RGBA8 with opaque alpha.
func expandRGB8(data []byte) []byte {
	n := len(data) / 3
	out := make([]byte, n*4)
	for i := 0; i < n; i++ {
		copy(out[i*4:i*4+3], data[i*3:i*3+3])
		out[i*4+3] = 0xFF
	}
	return out
}

// packRGB8 drops the alpha channel of RGBA8 texels.
func packRGB8(data []byte) []byte {
	n := len(data) / 4
	out := make([]byte, n*3)
	for i := 0; i < n; i++ {
		copy(out[i*3:i*3+3], data[i*4:i*4+3])
	}
	return out
}

func NewVulkanImage(context *VulkanContext, desc *metadata.TextureDesc) (*VulkanImage, error) {
	mapping, ok := vkFormatFor(desc.Format)
	if !ok {
		return nil, fmt.Errorf("texture format %s: %w", desc.Format, core.ErrUnsupportedFormat)
	}
	if desc.Format.IsCompressed() && !context.Device.CompressionBC {
		return nil, fmt.Errorf("texture format %s without BC support: %w", desc.Format, core.ErrUnsupportedFormat)
	}
	levels := max(desc.Levels, 1)

	aspect := vk.ImageAspectColorBit
	usage := vk.ImageUsageSampledBit | vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit
	feature := vk.FormatFeatureSampledImageBit
	if desc.Format.IsDepth() {
		aspect = vk.ImageAspectDepthBit
	}
	if desc.RenderTarget {
		if desc.Format.IsCompressed() {
			return nil, fmt.Errorf("compressed render target %s: %w", desc.Format, core.ErrInvalidParameter)
		}
		if desc.Format.IsDepth() {
			usage |= vk.ImageUsageDepthStencilAttachmentBit
			feature = vk.FormatFeatureDepthStencilAttachmentBit
		} else {
			usage |= vk.ImageUsageColorAttachmentBit
			feature |= vk.FormatFeatureColorAttachmentBit
		}
	}
	if !DeviceSupportsFormat(context.Device, mapping.format, feature) {
		return nil, fmt.Errorf("texture format %s for this use: %w", desc.Format, core.ErrUnsupportedFormat)
	}

	device := context.Device.LogicalDevice
	image := &VulkanImage{
		Width:        desc.Width,
		Height:       desc.Height,
		Levels:       levels,
		Format:       desc.Format,
		VkFormat:     mapping.format,
		Aspect:       aspect,
		RenderTarget: desc.RenderTarget,
	}

	var handle vk.Image
	res := vk.CreateImage(device, &vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Format:        mapping.format,
		Extent:        vk.Extent3D{Width: desc.Width, Height: desc.Height, Depth: 1},
		MipLevels:     levels,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, context.Allocator, &handle)
	if err := resultError("vkCreateImage", res); err != nil {
		return nil, err
	}
	image.Handle = handle

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device, handle, &reqs)
	reqs.Deref()
	memory, err := context.allocate(reqs, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		image.Destroy(context)
		return nil, err
	}
	image.Memory = memory
	if err := resultError("vkBindImageMemory", vk.BindImageMemory(device, handle, memory, 0)); err != nil {
		image.Destroy(context)
		return nil, err
	}

	view, err := image.createView(context, mapping.components, levels)
	if err != nil {
		image.Destroy(context)
		return nil, err
	}
	image.View = view

	if err := image.toGeneralLayout(context); err != nil {
		image.Destroy(context)
		return nil, err
	}
	return image, nil
}

func (image *VulkanImage) subresourceRange(levels uint32) vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask: vk.ImageAspectFlags(image.Aspect),
		LevelCount: levels,
		LayerCount: 1,
	}
}

func (image *VulkanImage) createView(context *VulkanContext, components vk.ComponentMapping, levels uint32) (vk.ImageView, error) {
	var view vk.ImageView
	res := vk.CreateImageView(context.Device.LogicalDevice, &vk.ImageViewCreateInfo{
		SType:            vk.StructureTypeImageViewCreateInfo,
		Image:            image.Handle,
		ViewType:         vk.ImageViewType2d,
		Format:           image.VkFormat,
		Components:       components,
		SubresourceRange: image.subresourceRange(levels),
	}, context.Allocator, &view)
	if err := resultError("vkCreateImageView", res); err != nil {
		return nil, err
	}
	return view, nil
}

// attachment returns the view used by framebuffers.
func (image *VulkanImage) attachment(context *VulkanContext) (vk.ImageView, error) {
	if image.AttachmentView != nil {
		return image.AttachmentView, nil
	}
	view, err := image.createView(context, identitySwizzle, 1)
	if err != nil {
		return nil, err
	}
	image.AttachmentView = view
	return view, nil
}

func (image *VulkanImage) toGeneralLayout(context *VulkanContext) error {
	cb, err := AllocateAndBeginSingleUse(context)
	if err != nil {
		return err
	}
	vk.CmdPipelineBarrier(cb.Handle,
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
		vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{{
			SType:               vk.StructureTypeImageMemoryBarrier,
			DstAccessMask:       vk.AccessFlags(vk.AccessMemoryReadBit | vk.AccessMemoryWriteBit),
			OldLayout:           vk.ImageLayoutUndefined,
			NewLayout:           vk.ImageLayoutGeneral,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               image.Handle,
			SubresourceRange:    image.subresourceRange(image.Levels),
		}})
	return cb.EndSingleUse(context)
}

func (image *VulkanImage) copyRegion(level uint32) vk.BufferImageCopy {
	w, h := levelSize(image.Width, image.Height, level)
	return vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(image.Aspect),
			MipLevel:   level,
			LayerCount: 1,
		},
		ImageExtent: vk.Extent3D{Width: w, Height: h, Depth: 1},
	}
}

/**
 * @brief Replaces one level with data laid out like the soft backend stores
 * it, through a staging buffer.
 */
func (image *VulkanImage) Upload(context *VulkanContext, level uint32, data []byte) error {
	if level >= image.Levels {
		return fmt.Errorf("level %d of %d: %w", level, image.Levels, core.ErrInvalidParameter)
	}
	w, h := levelSize(image.Width, image.Height, level)
	if uint32(len(data)) != image.Format.NumOfBytes(w, h) {
		return fmt.Errorf("level %d: %d bytes for %dx%d %s: %w", level, len(data), w, h, image.Format, core.ErrInvalidParameter)
	}
	if image.Format == metadata.PixelFormatRGB8 {
		data = expandRGB8(data)
	}
	staging, err := NewVulkanBuffer(context, uint64(len(data)), stagingBufferUsage)
	if err != nil {
		return err
	}
	defer staging.Destroy(context)
	if err := staging.Upload(context, 0, data); err != nil {
		return err
	}

	cb, err := AllocateAndBeginSingleUse(context)
	if err != nil {
		return err
	}
	vk.CmdCopyBufferToImage(cb.Handle, staging.Handle, image.Handle, vk.ImageLayoutGeneral, 1, []vk.BufferImageCopy{image.copyRegion(level)})
	return cb.EndSingleUse(context)
}

// Read copies one level back to the host in the soft backend layout.
func (image *VulkanImage) Read(context *VulkanContext, level uint32) ([]byte, error) {
	if level >= image.Levels {
		return nil, fmt.Errorf("level %d of %d: %w", level, image.Levels, core.ErrInvalidParameter)
	}
	w, h := levelSize(image.Width, image.Height, level)
	size := uint64(deviceBytes(image.Format, w, h))
	staging, err := NewVulkanBuffer(context, size, stagingBufferUsage)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy(context)

	cb, err := AllocateAndBeginSingleUse(context)
	if err != nil {
		return nil, err
	}
	vk.CmdCopyImageToBuffer(cb.Handle, image.Handle, vk.ImageLayoutGeneral, staging.Handle, 1, []vk.BufferImageCopy{image.copyRegion(level)})
	cb.FullBarrier()
	if err := cb.EndSingleUse(context); err != nil {
		return nil, err
	}
	data, err := staging.Read(context, 0, size)
	if err != nil {
		return nil, err
	}
	if image.Format == metadata.PixelFormatRGB8 {
		data = packRGB8(data)
	}
	return data, nil
}

func (image *VulkanImage) Destroy(context *VulkanContext) {
	device := context.Device.LogicalDevice
	if image.AttachmentView != nil {
		vk.DestroyImageView(device, image.AttachmentView, context.Allocator)
		image.AttachmentView = nil
	}
	if image.View != nil {
		vk.DestroyImageView(device, image.View, context.Allocator)
		image.View = nil
	}
	if image.Handle != nil {
		vk.DestroyImage(device, image.Handle, context.Allocator)
		image.Handle = nil
	}
	if image.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(device, image.Memory, context.Allocator)
		image.Memory = vk.NullDeviceMemory
	}
}
