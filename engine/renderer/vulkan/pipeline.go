package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// maxVertexInputs bounds the vertex streams of one draw.
const maxVertexInputs = 16

// vertexInput is one vertex stream as the pipeline sees it. Each stream gets
// its own binding, the attribute offset is applied when binding the buffer.
type vertexInput struct {
	Location uint32
	Format   vk.Format
	Stride   uint32
}

/**
 * @brief Every piece of fixed function state baked into a pipeline. Draws
 * with equal keys share a pipeline.
 */
type pipelineKey struct {
	Pass         renderpassKey
	Topology     vk.PrimitiveTopology
	Polygon      vk.PolygonMode
	Cull         vk.CullModeFlagBits
	DepthTest    bool
	DepthWrite   bool
	DepthCompare vk.CompareOp
	Blend        bool
	SrcBlend     vk.BlendFactor
	DstBlend     vk.BlendFactor
	ColorMask    uint32
	Inputs       [maxVertexInputs]vertexInput
	InputCount   int
}

func primitiveTopology(p metadata.PrimitiveType) vk.PrimitiveTopology {
	switch p {
	case metadata.PrimitivePointList:
		return vk.PrimitiveTopologyPointList
	case metadata.PrimitiveLineList:
		return vk.PrimitiveTopologyLineList
	case metadata.PrimitiveLineStrip:
		return vk.PrimitiveTopologyLineStrip
	case metadata.PrimitiveTriangleStrip:
		return vk.PrimitiveTopologyTriangleStrip
	case metadata.PrimitiveTriangleFan:
		return vk.PrimitiveTopologyTriangleFan
	}
	return vk.PrimitiveTopologyTriangleList
}

func blendFactor(f metadata.BlendFunc) vk.BlendFactor {
	switch f {
	case metadata.BlendZero:
		return vk.BlendFactorZero
	case metadata.BlendSrcColor:
		return vk.BlendFactorSrcColor
	case metadata.BlendInvSrcColor:
		return vk.BlendFactorOneMinusSrcColor
	case metadata.BlendSrcAlpha:
		return vk.BlendFactorSrcAlpha
	case metadata.BlendInvSrcAlpha:
		return vk.BlendFactorOneMinusSrcAlpha
	case metadata.BlendDstColor:
		return vk.BlendFactorDstColor
	case metadata.BlendInvDstColor:
		return vk.BlendFactorOneMinusDstColor
	case metadata.BlendDstAlpha:
		return vk.BlendFactorDstAlpha
	case metadata.BlendInvDstAlpha:
		return vk.BlendFactorOneMinusDstAlpha
	}
	return vk.BlendFactorOne
}

func vertexFormat(t metadata.VertexAttributeType) vk.Format {
	switch t {
	case metadata.VertexAttributeFloat1:
		return vk.FormatR32Sfloat
	case metadata.VertexAttributeFloat2:
		return vk.FormatR32g32Sfloat
	case metadata.VertexAttributeFloat3:
		return vk.FormatR32g32b32Sfloat
	case metadata.VertexAttributeRGBA:
		return vk.FormatR8g8b8a8Unorm
	}
	return vk.FormatR32g32b32a32Sfloat
}

/**
 * @brief Derives the pipeline key of a draw into a pass. Screen space
 * clockwise and counter clockwise match the framebuffer orientation, so
 * counter clockwise triangles are front facing. Depth state only applies when
 * the pass has a depth attachment, non solid fill needs nonSolidFill.
 */
func pipelineKeyFor(call *metadata.DrawCall, pass renderpassKey, nonSolidFill bool) (pipelineKey, error) {
	if len(call.Streams) > maxVertexInputs {
		return pipelineKey{}, fmt.Errorf("%d vertex streams, at most %d: %w", len(call.Streams), maxVertexInputs, core.ErrInvalidParameter)
	}
	rs := call.RenderStates
	key := pipelineKey{
		Pass:         pass,
		Topology:     primitiveTopology(call.Primitive),
		Polygon:      vk.PolygonModeFill,
		Cull:         vk.CullModeNone,
		DepthCompare: vk.CompareOpAlways,
		SrcBlend:     vk.BlendFactorOne,
		DstBlend:     vk.BlendFactorZero,
		ColorMask:    rs[metadata.RenderStateColorWriteMask] & uint32(metadata.ColorMaskAll),
		InputCount:   len(call.Streams),
	}
	if nonSolidFill {
		switch metadata.Fill(rs[metadata.RenderStateFixedFillMode]) {
		case metadata.FillLine:
			key.Polygon = vk.PolygonModeLine
		case metadata.FillPoint:
			key.Polygon = vk.PolygonModePoint
		}
	}
	switch metadata.Cull(rs[metadata.RenderStateCullMode]) {
	case metadata.CullCW:
		key.Cull = vk.CullModeBackBit
	case metadata.CullCCW:
		key.Cull = vk.CullModeFrontBit
	}
	if pass.Depth != vk.FormatUndefined && rs[metadata.RenderStateZEnable] != 0 {
		key.DepthTest = true
		key.DepthWrite = rs[metadata.RenderStateZWriteEnable] != 0
		key.DepthCompare = vk.CompareOp(rs[metadata.RenderStateZFunc])
	}
	if rs[metadata.RenderStateBlendEnable] != 0 {
		key.Blend = true
		key.SrcBlend = blendFactor(metadata.BlendFunc(rs[metadata.RenderStateSrcBlendFunc]))
		key.DstBlend = blendFactor(metadata.BlendFunc(rs[metadata.RenderStateDstBlendFunc]))
	}
	for i, s := range call.Streams {
		key.Inputs[i] = vertexInput{
			Location: uint32(s.Location),
			Format:   vertexFormat(s.Attribute.Type),
			Stride:   s.Stride,
		}
	}
	return key, nil
}

/**
 * @brief Holds a Vulkan pipeline. The layout belongs to the program.
 */
type VulkanPipeline struct {
	Handle vk.Pipeline
}

func NewGraphicsPipeline(context *VulkanContext, key pipelineKey, stages []vk.PipelineShaderStageCreateInfo, layout vk.PipelineLayout, renderpass *VulkanRenderpass) (*VulkanPipeline, error) {
	outPipeline := &VulkanPipeline{}

	// Viewport and scissor are dynamic
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	// Rasterizer
	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             key.Polygon,
		LineWidth:               1.0,
		CullMode:                vk.CullModeFlags(key.Cull),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
	}

	// Multisampling.
	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:   vk.False,
		RasterizationSamples:  vk.SampleCount1Bit,
		MinSampleShading:      1.0,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}

	// Depth and stencil testing.
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vk.False,
		DepthWriteEnable:      vk.False,
		DepthCompareOp:        key.DepthCompare,
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     vk.False,
		MaxDepthBounds:        1.0,
	}
	if key.DepthTest {
		depthStencil.DepthTestEnable = vk.True
	}
	if key.DepthWrite {
		depthStencil.DepthWriteEnable = vk.True
	}

	colorBlendAttachmentState := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.False,
		SrcColorBlendFactor: key.SrcBlend,
		DstColorBlendFactor: key.DstBlend,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: key.SrcBlend,
		DstAlphaBlendFactor: key.DstBlend,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask:      vk.ColorComponentFlags(key.ColorMask),
	}
	if key.Blend {
		colorBlendAttachmentState.BlendEnable = vk.True
	}

	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachmentState},
	}

	// Dynamic state
	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
		vk.DynamicStateLineWidth,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	// Vertex input, one binding per stream
	bindings := make([]vk.VertexInputBindingDescription, key.InputCount)
	attributes := make([]vk.VertexInputAttributeDescription, key.InputCount)
	for i := 0; i < key.InputCount; i++ {
		in := key.Inputs[i]
		bindings[i] = vk.VertexInputBindingDescription{
			Binding:   uint32(i),
			Stride:    in.Stride,
			InputRate: vk.VertexInputRateVertex,
		}
		attributes[i] = vk.VertexInputAttributeDescription{
			Location: in.Location,
			Binding:  uint32(i),
			Format:   in.Format,
		}
	}
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	// Input assembly
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               key.Topology,
		PrimitiveRestartEnable: vk.False,
	}

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		Layout:              layout,
		RenderPass:          renderpass.Handle,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pPipelines := make([]vk.Pipeline, 1)
	result := vk.CreateGraphicsPipelines(
		context.Device.LogicalDevice,
		vk.NullPipelineCache,
		1,
		[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo},
		context.Allocator,
		pPipelines)
	if err := resultError("vkCreateGraphicsPipelines", result); err != nil {
		return nil, err
	}
	outPipeline.Handle = pPipelines[0]

	core.LogDebug("Graphics pipeline created: topology %d, cull %d, depth %t, blend %t", key.Topology, key.Cull, key.DepthTest, key.Blend)
	return outPipeline, nil
}

func (pipeline *VulkanPipeline) Destroy(context *VulkanContext) {
	if pipeline.Handle != vk.NullPipeline {
		vk.DestroyPipeline(context.Device.LogicalDevice, pipeline.Handle, context.Allocator)
		pipeline.Handle = vk.NullPipeline
	}
}

func (pipeline *VulkanPipeline) Bind(commandBuffer *VulkanCommandBuffer, bindPoint vk.PipelineBindPoint) {
	vk.CmdBindPipeline(commandBuffer.Handle, bindPoint, pipeline.Handle)
}
