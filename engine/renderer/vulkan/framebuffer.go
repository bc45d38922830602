package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
)

/**
 * @brief A render target: a color image, an optional depth image and the
 * framebuffer binding them to a compatible render pass.
 */
type VulkanFramebuffer struct {
	Handle     vk.Framebuffer
	Color      *VulkanImage
	Depth      *VulkanImage
	Width      uint32
	Height     uint32
	Renderpass *VulkanRenderpass
}

func (vfb *VulkanFramebuffer) key() renderpassKey {
	key := renderpassKey{Color: vfb.Color.VkFormat, Depth: vk.FormatUndefined}
	if vfb.Depth != nil {
		key.Depth = vfb.Depth.VkFormat
	}
	return key
}

func FramebufferCreate(context *VulkanContext, passes *renderpassCache, color, depth *VulkanImage) (*VulkanFramebuffer, error) {
	if !color.RenderTarget || color.Format.IsDepth() || color.Format.IsCompressed() {
		return nil, fmt.Errorf("color attachment %s: %w", color.Format, core.ErrInvalidParameter)
	}
	if depth != nil && (!depth.RenderTarget || !depth.Format.IsDepth() || depth.Width != color.Width || depth.Height != color.Height) {
		return nil, fmt.Errorf("depth attachment %s %dx%d: %w", depth.Format, depth.Width, depth.Height, core.ErrInvalidParameter)
	}
	outFramebuffer := &VulkanFramebuffer{
		Color:  color,
		Depth:  depth,
		Width:  color.Width,
		Height: color.Height,
	}
	renderpass, err := passes.get(context, outFramebuffer.key())
	if err != nil {
		return nil, err
	}
	outFramebuffer.Renderpass = renderpass

	colorView, err := color.attachment(context)
	if err != nil {
		return nil, err
	}
	attachments := []vk.ImageView{colorView}
	if depth != nil {
		depthView, err := depth.attachment(context)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, depthView)
	}

	framebufferCreateInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderpass.Handle,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		Width:           outFramebuffer.Width,
		Height:          outFramebuffer.Height,
		Layers:          1,
	}

	var handle vk.Framebuffer
	if err := resultError("vkCreateFramebuffer", vk.CreateFramebuffer(context.Device.LogicalDevice, &framebufferCreateInfo, context.Allocator, &handle)); err != nil {
		core.LogError("failed to create framebuffer: %s", err)
		return nil, err
	}
	outFramebuffer.Handle = handle
	return outFramebuffer, nil
}

// Destroy releases the framebuffer. The images belong to their textures.
func (vfb *VulkanFramebuffer) Destroy(context *VulkanContext) {
	if vfb.Handle != vk.NullFramebuffer {
		vk.DestroyFramebuffer(context.Device.LogicalDevice, vfb.Handle, context.Allocator)
	}
	vfb.Handle = vk.NullFramebuffer
	vfb.Color, vfb.Depth = nil, nil
	vfb.Renderpass = nil
}

// uses reports whether image is attached to the framebuffer.
func (vfb *VulkanFramebuffer) uses(image *VulkanImage) bool {
	return vfb.Color == image || (vfb.Depth != nil && vfb.Depth == image)
}
