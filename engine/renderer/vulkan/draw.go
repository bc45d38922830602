package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

/**
 * @brief Intersects rect with a width x height target. ok is false when
 * nothing is left.
 */
func clipRect(rect math.Rect, width, height uint32) (vk.Rect2D, bool) {
	x0, y0 := max(rect.X, 0), max(rect.Y, 0)
	x1, y1 := min(rect.X+rect.Width, int32(width)), min(rect.Y+rect.Height, int32(height))
	if x1 <= x0 || y1 <= y0 {
		return vk.Rect2D{}, false
	}
	return vk.Rect2D{
		Offset: vk.Offset2D{X: x0, Y: y0},
		Extent: vk.Extent2D{Width: uint32(x1 - x0), Height: uint32(y1 - y0)},
	}, true
}

/**
 * @brief Maps a viewport so that NDC y = 1 lands on the top row, like the
 * soft rasterizer. The negative height flips vulkan's downward y axis.
 */
func flippedViewport(vp math.Rect) vk.Viewport {
	return vk.Viewport{
		X:        float32(vp.X),
		Y:        float32(vp.Y + vp.Height),
		Width:    float32(vp.Width),
		Height:   -float32(vp.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
}

func (b *Backend) clear(fb *VulkanFramebuffer, call *metadata.ClearCall) error {
	rect := math.Rect{Width: int32(fb.Width), Height: int32(fb.Height)}
	if call.Scissor != nil {
		rect = *call.Scissor
	}
	area, ok := clipRect(rect, fb.Width, fb.Height)
	if !ok {
		return nil
	}

	var attachments []vk.ClearAttachment
	if call.Flags&metadata.ClearColor != 0 {
		var cv vk.ClearValue
		cv.SetColor([]float32{call.Color.R, call.Color.G, call.Color.B, call.Color.A})
		attachments = append(attachments, vk.ClearAttachment{
			AspectMask:      vk.ImageAspectFlags(vk.ImageAspectColorBit),
			ColorAttachment: 0,
			ClearValue:      cv,
		})
	}
	if call.Flags&metadata.ClearDepth != 0 && fb.Depth != nil {
		var cv vk.ClearValue
		cv.SetDepthStencil(call.Depth, call.Stencil)
		attachments = append(attachments, vk.ClearAttachment{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectDepthBit),
			ClearValue: cv,
		})
	}
	if len(attachments) == 0 {
		return nil
	}

	cb, err := AllocateAndBeginSingleUse(b.context)
	if err != nil {
		return err
	}
	fb.Renderpass.RenderpassBegin(cb, fb)
	vk.CmdClearAttachments(cb.Handle, uint32(len(attachments)), attachments, 1, []vk.ClearRect{{
		Rect:       area,
		LayerCount: 1,
	}})
	fb.Renderpass.RenderpassEnd(cb)
	return cb.EndSingleUse(b.context)
}

func (b *Backend) Clear(call *metadata.ClearCall) error {
	return b.locked(func() error {
		fb, err := b.resolveTarget(call.Target)
		if err != nil {
			return err
		}
		return b.clear(fb, call)
	})
}

/**
 * @brief Returns the draw's streams plus a zero stream for every program
 * attribute the draw does not feed.
 */
func completeStreams(layout *metadata.ProgramLayout, streams []metadata.VertexStream) []metadata.VertexStream {
	out := append([]metadata.VertexStream(nil), streams...)
	for _, a := range layout.Attributes {
		fed := false
		for _, s := range streams {
			if s.Location == a.Location {
				fed = true
				break
			}
		}
		if !fed {
			out = append(out, metadata.VertexStream{
				Location:  a.Location,
				Buffer:    metadata.InvalidHandle,
				Attribute: metadata.VertexAttribute{Type: metadata.VertexAttributeFloat4},
				Stride:    0,
			})
		}
	}
	return out
}

func indexType(f metadata.IndexFormat) vk.IndexType {
	if f == metadata.IndexFormatUInt32 {
		return vk.IndexTypeUint32
	}
	return vk.IndexTypeUint16
}

// bindTextures points every texture unit of p at its texture or at white.
func (b *Backend) bindTextures(p *VulkanProgram, textures []metadata.TextureBinding) error {
	for unit, binding := range p.Reflection.Units {
		view := b.white.View
		states := metadata.DefaultSamplerStates()
		for _, tb := range textures {
			if tb.Unit != unit {
				continue
			}
			if image, ok := b.textures[tb.Texture]; ok {
				view = image.View
				states = tb.Sampler
			}
		}
		sampler, err := b.samplers.get(b.context, states)
		if err != nil {
			return err
		}
		p.Descriptors.WriteTexture(b.context, binding, view, sampler)
	}
	return nil
}

func (b *Backend) Draw(call *metadata.DrawCall) error {
	return b.locked(func() error {
		return b.draw(call)
	})
}

func (b *Backend) draw(call *metadata.DrawCall) error {
	fb, err := b.resolveTarget(call.Target)
	if err != nil {
		return err
	}
	p, ok := b.programs[call.Program]
	if !ok {
		return fmt.Errorf("program %d: %w", call.Program, core.ErrInvalidHandle)
	}

	count := call.VertexCount
	if call.Indexed {
		count = call.IndexCount
	}
	if count == 0 || call.Viewport.Width <= 0 || call.Viewport.Height <= 0 {
		return nil
	}
	scissorRect := math.Rect{Width: int32(fb.Width), Height: int32(fb.Height)}
	if call.RenderStates[metadata.RenderStateScissorTestEnable] != 0 {
		scissorRect = call.Scissor
	}
	scissor, ok := clipRect(scissorRect, fb.Width, fb.Height)
	if !ok {
		return nil
	}

	streamsCall := *call
	streamsCall.Streams = completeStreams(p.Reflection.Layout, call.Streams)
	key, err := pipelineKeyFor(&streamsCall, fb.key(), b.context.Device.NonSolidFill)
	if err != nil {
		return err
	}
	pipeline, err := p.pipeline(b.context, key, fb.Renderpass)
	if err != nil {
		return err
	}

	vertexBuffers := make([]vk.Buffer, len(streamsCall.Streams))
	offsets := make([]vk.DeviceSize, len(streamsCall.Streams))
	for i, s := range streamsCall.Streams {
		if !s.Buffer.IsValid() {
			vertexBuffers[i] = b.zeros.Handle
			continue
		}
		buf, ok := b.buffers[s.Buffer]
		if !ok {
			return fmt.Errorf("vertex buffer %d: %w", s.Buffer, core.ErrInvalidHandle)
		}
		vertexBuffers[i] = buf.Handle
		offsets[i] = vk.DeviceSize(s.Attribute.Offset)
	}
	var indices *VulkanBuffer
	if call.Indexed {
		if indices, ok = b.buffers[call.IndexBuffer]; !ok {
			return fmt.Errorf("index buffer %d: %w", call.IndexBuffer, core.ErrInvalidHandle)
		}
	}

	if err := p.applyUniforms(b.context, call.Uniforms); err != nil {
		return err
	}
	if err := b.bindTextures(p, call.Textures); err != nil {
		return err
	}

	lineWidth := float32(1)
	if b.context.Device.WideLines {
		lw := metadata.StateFloat32(call.RenderStates[metadata.RenderStateLineWidth])
		lineWidth = min(max(lw, b.context.Device.LineWidthRange[0]), b.context.Device.LineWidthRange[1])
	}

	cb, err := AllocateAndBeginSingleUse(b.context)
	if err != nil {
		return err
	}
	fb.Renderpass.RenderpassBegin(cb, fb)
	pipeline.Bind(cb, vk.PipelineBindPointGraphics)
	if p.Descriptors.Set != nil {
		vk.CmdBindDescriptorSets(cb.Handle, vk.PipelineBindPointGraphics, p.Layout, 0, 1, []vk.DescriptorSet{p.Descriptors.Set}, 0, nil)
	}
	vk.CmdSetViewport(cb.Handle, 0, 1, []vk.Viewport{flippedViewport(call.Viewport)})
	vk.CmdSetScissor(cb.Handle, 0, 1, []vk.Rect2D{scissor})
	vk.CmdSetLineWidth(cb.Handle, lineWidth)
	if len(vertexBuffers) > 0 {
		vk.CmdBindVertexBuffers(cb.Handle, 0, uint32(len(vertexBuffers)), vertexBuffers, offsets)
	}
	if call.Indexed {
		vk.CmdBindIndexBuffer(cb.Handle, indices.Handle, 0, indexType(call.IndexFormat))
		vk.CmdDrawIndexed(cb.Handle, call.IndexCount, 1, call.FirstIndex, int32(call.BaseVertex), 0)
	} else {
		vk.CmdDraw(cb.Handle, call.VertexCount, 1, call.FirstVertex, 0)
	}
	fb.Renderpass.RenderpassEnd(cb)
	return cb.EndSingleUse(b.context)
}
