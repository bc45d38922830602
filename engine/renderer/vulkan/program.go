package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

/**
 * @brief A linked program: its own copies of the shader modules, the
 * descriptor set with persistent uniform buffers and the pipelines created
 * for it so far.
 */
type VulkanProgram struct {
	Reflection  *programReflection
	Stages      []*VulkanShaderStage
	Descriptors *VulkanDescriptorSet
	Layout      vk.PipelineLayout

	blockData    map[uint32][]byte
	blockBuffers map[uint32]*VulkanBuffer
	pipelines    map[pipelineKey]*VulkanPipeline
}

func NewVulkanProgram(context *VulkanContext, shaders []*VulkanShaderStage) (*VulkanProgram, error) {
	reflections := make([]*shaderReflection, len(shaders))
	for i, s := range shaders {
		reflections[i] = s.Reflection
	}
	reflection, err := linkReflections(reflections)
	if err != nil {
		return nil, err
	}

	p := &VulkanProgram{
		Reflection:   reflection,
		blockData:    map[uint32][]byte{},
		blockBuffers: map[uint32]*VulkanBuffer{},
		pipelines:    map[pipelineKey]*VulkanPipeline{},
	}
	for _, s := range shaders {
		c, err := s.clone(context)
		if err != nil {
			p.Destroy(context)
			return nil, err
		}
		p.Stages = append(p.Stages, c)
	}

	ds, err := NewDescriptorSet(context, reflection)
	if err != nil {
		p.Destroy(context)
		return nil, err
	}
	p.Descriptors = ds

	var layout vk.PipelineLayout
	res := vk.CreatePipelineLayout(context.Device.LogicalDevice, &vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{ds.Layout},
	}, context.Allocator, &layout)
	if err := resultError("vkCreatePipelineLayout", res); err != nil {
		p.Destroy(context)
		return nil, err
	}
	p.Layout = layout

	for _, b := range reflection.Blocks {
		buffer, err := NewVulkanBuffer(context, uint64(b.Size), uniformBufferUsage)
		if err != nil {
			p.Destroy(context)
			return nil, err
		}
		p.blockBuffers[b.Binding] = buffer
		p.blockData[b.Binding] = make([]byte, b.Size)
		ds.WriteBuffer(context, b.Binding, buffer)
	}
	return p, nil
}

/**
 * @brief Packs values into the uniform blocks and uploads every block. Values
 * for unknown locations or of the wrong type are rejected.
 */
func (p *VulkanProgram) applyUniforms(context *VulkanContext, values []metadata.UniformValue) error {
	uniforms := p.Reflection.Layout.Uniforms
	for _, v := range values {
		if v.Location < 0 || v.Location >= len(uniforms) {
			return fmt.Errorf("uniform location %d: %w", v.Location, core.ErrInvalidParameter)
		}
		info := uniforms[v.Location]
		if info.Type != v.Type || len(v.Values) != info.Type.Components() {
			return fmt.Errorf("uniform %q: %d values of type %d: %w", info.Name, len(v.Values), v.Type, core.ErrInvalidParameter)
		}
		for _, slot := range p.Reflection.Slots[v.Location] {
			packUniform(p.blockData[slot.Binding], slot.Offset, v.Type, v.Values)
		}
	}
	for binding, data := range p.blockData {
		if err := p.blockBuffers[binding].Upload(context, 0, data); err != nil {
			return err
		}
	}
	return nil
}

// pipeline returns the pipeline for key, creating it on first use.
func (p *VulkanProgram) pipeline(context *VulkanContext, key pipelineKey, renderpass *VulkanRenderpass) (*VulkanPipeline, error) {
	var out *VulkanPipeline
	err := context.Locks.SafeCall(PipelineManagement, func() error {
		if cached, ok := p.pipelines[key]; ok {
			out = cached
			return nil
		}
		stages := make([]vk.PipelineShaderStageCreateInfo, len(p.Stages))
		for i, s := range p.Stages {
			stages[i] = s.stageCreateInfo()
		}
		created, err := NewGraphicsPipeline(context, key, stages, p.Layout, renderpass)
		if err != nil {
			return err
		}
		p.pipelines[key] = created
		out = created
		return nil
	})
	return out, err
}

func (p *VulkanProgram) Destroy(context *VulkanContext) {
	for key, pipeline := range p.pipelines {
		pipeline.Destroy(context)
		delete(p.pipelines, key)
	}
	for binding, buffer := range p.blockBuffers {
		buffer.Destroy(context)
		delete(p.blockBuffers, binding)
	}
	if p.Layout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(context.Device.LogicalDevice, p.Layout, context.Allocator)
		p.Layout = vk.NullPipelineLayout
	}
	if p.Descriptors != nil {
		p.Descriptors.Destroy(context)
		p.Descriptors = nil
	}
	for _, s := range p.Stages {
		s.Destroy(context)
	}
	p.Stages = nil
}
