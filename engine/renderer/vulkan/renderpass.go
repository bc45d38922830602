package vulkan

import (
	vk "github.com/goki/vulkan"
)

// renderpassKey identifies compatible render passes. Depth is
// vk.FormatUndefined for color only targets.
type renderpassKey struct {
	Color vk.Format
	Depth vk.Format
}

/**
 * @brief A single subpass render pass that loads and stores every attachment
 * and keeps them in the general layout. Clears are recorded inside the pass
 * so one render pass per attachment format pair is enough.
 */
type VulkanRenderpass struct {
	Handle vk.RenderPass
	Key    renderpassKey
}

func attachmentDescription(format vk.Format) vk.AttachmentDescription {
	return vk.AttachmentDescription{
		Format:         format,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpLoad,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutGeneral,
		FinalLayout:    vk.ImageLayoutGeneral,
	}
}

func RenderpassCreate(context *VulkanContext, key renderpassKey) (*VulkanRenderpass, error) {
	attachments := []vk.AttachmentDescription{attachmentDescription(key.Color)}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments: []vk.AttachmentReference{{
			Attachment: 0,
			Layout:     vk.ImageLayoutGeneral,
		}},
	}
	if key.Depth != vk.FormatUndefined {
		attachments = append(attachments, attachmentDescription(key.Depth))
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: 1,
			Layout:     vk.ImageLayoutGeneral,
		}
	}

	allStages := vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)
	allAccess := vk.AccessFlags(vk.AccessMemoryReadBit | vk.AccessMemoryWriteBit)
	dependencies := []vk.SubpassDependency{
		{
			SrcSubpass:    vk.SubpassExternal,
			DstSubpass:    0,
			SrcStageMask:  allStages,
			SrcAccessMask: allAccess,
			DstStageMask:  allStages,
			DstAccessMask: allAccess,
		},
		{
			SrcSubpass:    0,
			DstSubpass:    vk.SubpassExternal,
			SrcStageMask:  allStages,
			SrcAccessMask: allAccess,
			DstStageMask:  allStages,
			DstAccessMask: allAccess,
		},
	}

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}

	var handle vk.RenderPass
	if err := resultError("vkCreateRenderPass", vk.CreateRenderPass(context.Device.LogicalDevice, &renderpassCreateInfo, context.Allocator, &handle)); err != nil {
		return nil, err
	}
	return &VulkanRenderpass{Handle: handle, Key: key}, nil
}

func (vr *VulkanRenderpass) RenderpassDestroy(context *VulkanContext) {
	if vr.Handle != vk.NullRenderPass {
		vk.DestroyRenderPass(context.Device.LogicalDevice, vr.Handle, context.Allocator)
		vr.Handle = vk.NullRenderPass
	}
}

func (vr *VulkanRenderpass) RenderpassBegin(commandBuffer *VulkanCommandBuffer, framebuffer *VulkanFramebuffer) {
	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  vr.Handle,
		Framebuffer: framebuffer.Handle,
		RenderArea: vk.Rect2D{
			Extent: vk.Extent2D{Width: framebuffer.Width, Height: framebuffer.Height},
		},
	}
	vk.CmdBeginRenderPass(commandBuffer.Handle, &beginInfo, vk.SubpassContentsInline)
	commandBuffer.State = CommandBufferStateInRenderPass
}

func (vr *VulkanRenderpass) RenderpassEnd(commandBuffer *VulkanCommandBuffer) {
	vk.CmdEndRenderPass(commandBuffer.Handle)
	commandBuffer.State = CommandBufferStateRecording
}

// renderpassCache creates each render pass once.
type renderpassCache struct {
	passes map[renderpassKey]*VulkanRenderpass
}

func newRenderpassCache() *renderpassCache {
	return &renderpassCache{passes: map[renderpassKey]*VulkanRenderpass{}}
}

func (c *renderpassCache) get(context *VulkanContext, key renderpassKey) (*VulkanRenderpass, error) {
	if rp, ok := c.passes[key]; ok {
		return rp, nil
	}
	rp, err := RenderpassCreate(context, key)
	if err != nil {
		return nil, err
	}
	c.passes[key] = rp
	return rp, nil
}

func (c *renderpassCache) destroy(context *VulkanContext) {
	for key, rp := range c.passes {
		rp.RenderpassDestroy(context)
		delete(c.passes, key)
	}
}
