package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// maxLod leaves the level range unclamped.
const maxLod = 1000

func samplerAddressMode(mode uint32) vk.SamplerAddressMode {
	switch metadata.TextureAddressing(mode) {
	case metadata.AddressClamp:
		return vk.SamplerAddressModeClampToEdge
	case metadata.AddressMirror:
		return vk.SamplerAddressModeMirroredRepeat
	}
	return vk.SamplerAddressModeRepeat
}

func samplerFilter(filter uint32) vk.Filter {
	if metadata.TextureFiltering(filter) == metadata.FilterLinear {
		return vk.FilterLinear
	}
	return vk.FilterNearest
}

/**
 * @brief Translates sampler states into a create info. Without a mip filter
 * only the base level is sampled.
 */
func samplerCreateInfo(states metadata.SamplerStates) vk.SamplerCreateInfo {
	info := vk.SamplerCreateInfo{
		SType:            vk.StructureTypeSamplerCreateInfo,
		MagFilter:        samplerFilter(states[metadata.SamplerStateMagFilter]),
		MinFilter:        samplerFilter(states[metadata.SamplerStateMinFilter]),
		AddressModeU:     samplerAddressMode(states[metadata.SamplerStateAddressU]),
		AddressModeV:     samplerAddressMode(states[metadata.SamplerStateAddressV]),
		AddressModeW:     samplerAddressMode(states[metadata.SamplerStateAddressU]),
		MipmapMode:       vk.SamplerMipmapModeNearest,
		AnisotropyEnable: vk.False,
		MaxAnisotropy:    1,
		CompareEnable:    vk.False,
		CompareOp:        vk.CompareOpAlways,
		BorderColor:      vk.BorderColorFloatOpaqueBlack,
		MinLod:           0,
		MaxLod:           0,
	}
	switch metadata.TextureFiltering(states[metadata.SamplerStateMipFilter]) {
	case metadata.FilterPoint:
		info.MaxLod = maxLod
	case metadata.FilterLinear:
		info.MipmapMode = vk.SamplerMipmapModeLinear
		info.MaxLod = maxLod
	}
	return info
}

// samplerCache holds one sampler per distinct set of states.
type samplerCache struct {
	samplers map[metadata.SamplerStates]vk.Sampler
}

func newSamplerCache() *samplerCache {
	return &samplerCache{samplers: map[metadata.SamplerStates]vk.Sampler{}}
}

func (c *samplerCache) get(context *VulkanContext, states metadata.SamplerStates) (vk.Sampler, error) {
	if s, ok := c.samplers[states]; ok {
		return s, nil
	}
	info := samplerCreateInfo(states)
	var sampler vk.Sampler
	if err := resultError("vkCreateSampler", vk.CreateSampler(context.Device.LogicalDevice, &info, context.Allocator, &sampler)); err != nil {
		return nil, err
	}
	c.samplers[states] = sampler
	return sampler, nil
}

func (c *samplerCache) destroy(context *VulkanContext) {
	for key, s := range c.samplers {
		vk.DestroySampler(context.Device.LogicalDevice, s, context.Allocator)
		delete(c.samplers, key)
	}
}
