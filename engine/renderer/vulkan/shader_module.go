package vulkan

import (
	"fmt"

	"github.com/gogpu/naga"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

/**
 * @brief A compiled shader stage and the interface read from its source.
 */
type VulkanShaderStage struct {
	Handle     vk.ShaderModule
	Reflection *shaderReflection
	// Code is kept so programs can own their modules.
	Code []uint32
}

// spirvWords converts little endian SPIR-V bytes to the words vulkan expects.
func spirvWords(code []byte) []uint32 {
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = uint32(code[i*4]) |
			uint32(code[i*4+1])<<8 |
			uint32(code[i*4+2])<<16 |
			uint32(code[i*4+3])<<24
	}
	return words
}

func shaderStageFlag(stage metadata.ShaderStage) vk.ShaderStageFlagBits {
	if stage == metadata.ShaderStageFragment {
		return vk.ShaderStageFragmentBit
	}
	return vk.ShaderStageVertexBit
}

/**
 * @brief Reflects and compiles WGSL source to a shader module.
 */
func NewShaderModule(context *VulkanContext, stage metadata.ShaderStage, source string) (*VulkanShaderStage, error) {
	reflection, err := reflectWGSL(stage, source)
	if err != nil {
		return nil, err
	}
	spirv, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("%s shader: %s: %w", stage, err, core.ErrShaderCompile)
	}
	if len(spirv) == 0 || len(spirv)%4 != 0 {
		return nil, fmt.Errorf("%s shader: %d bytes of SPIR-V: %w", stage, len(spirv), core.ErrShaderCompile)
	}

	module := &VulkanShaderStage{Reflection: reflection, Code: spirvWords(spirv)}
	if err := module.create(context); err != nil {
		return nil, err
	}
	return module, nil
}

func (s *VulkanShaderStage) create(context *VulkanContext) error {
	var handle vk.ShaderModule
	res := vk.CreateShaderModule(context.Device.LogicalDevice, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(s.Code) * 4),
		PCode:    s.Code,
	}, context.Allocator, &handle)
	if err := resultError("vkCreateShaderModule", res); err != nil {
		return err
	}
	s.Handle = handle
	return nil
}

// clone creates a second module from the same code.
func (s *VulkanShaderStage) clone(context *VulkanContext) (*VulkanShaderStage, error) {
	c := &VulkanShaderStage{Reflection: s.Reflection, Code: s.Code}
	if err := c.create(context); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *VulkanShaderStage) stageCreateInfo() vk.PipelineShaderStageCreateInfo {
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  shaderStageFlag(s.Reflection.Stage),
		Module: s.Handle,
		PName:  VulkanSafeString(s.Reflection.Entry),
	}
}

func (s *VulkanShaderStage) Destroy(context *VulkanContext) {
	if s.Handle != vk.NullShaderModule {
		vk.DestroyShaderModule(context.Device.LogicalDevice, s.Handle, context.Allocator)
		s.Handle = vk.NullShaderModule
	}
}
