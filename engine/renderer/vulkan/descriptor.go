package vulkan

import (
	vk "github.com/goki/vulkan"
)

// Both stages see every binding of the set.
const descriptorStages = vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit)

/**
 * @brief The single descriptor set of a program. Submissions never overlap,
 * so the set is rewritten in place before every draw.
 */
type VulkanDescriptorSet struct {
	Layout vk.DescriptorSetLayout
	Pool   vk.DescriptorPool
	// Set is nil when the program has no bindings.
	Set vk.DescriptorSet
}

// descriptorBindings lists uniform blocks and every texture with its sampler.
func descriptorBindings(p *programReflection) []vk.DescriptorSetLayoutBinding {
	var bindings []vk.DescriptorSetLayoutBinding
	for _, b := range p.Blocks {
		bindings = append(bindings, vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			StageFlags:      descriptorStages,
		})
	}
	for _, t := range p.Textures {
		bindings = append(bindings,
			vk.DescriptorSetLayoutBinding{
				Binding:         t.Binding,
				DescriptorType:  vk.DescriptorTypeSampledImage,
				DescriptorCount: 1,
				StageFlags:      descriptorStages,
			},
			vk.DescriptorSetLayoutBinding{
				Binding:         t.Binding + 1,
				DescriptorType:  vk.DescriptorTypeSampler,
				DescriptorCount: 1,
				StageFlags:      descriptorStages,
			})
	}
	return bindings
}

// descriptorPoolSizes counts the descriptors of each type in bindings.
func descriptorPoolSizes(bindings []vk.DescriptorSetLayoutBinding) []vk.DescriptorPoolSize {
	counts := map[vk.DescriptorType]uint32{}
	order := []vk.DescriptorType{}
	for _, b := range bindings {
		if counts[b.DescriptorType] == 0 {
			order = append(order, b.DescriptorType)
		}
		counts[b.DescriptorType] += b.DescriptorCount
	}
	sizes := make([]vk.DescriptorPoolSize, 0, len(order))
	for _, t := range order {
		sizes = append(sizes, vk.DescriptorPoolSize{Type: t, DescriptorCount: counts[t]})
	}
	return sizes
}

func NewDescriptorSet(context *VulkanContext, p *programReflection) (*VulkanDescriptorSet, error) {
	device := context.Device.LogicalDevice
	bindings := descriptorBindings(p)
	ds := &VulkanDescriptorSet{}

	var layout vk.DescriptorSetLayout
	res := vk.CreateDescriptorSetLayout(device, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}, context.Allocator, &layout)
	if err := resultError("vkCreateDescriptorSetLayout", res); err != nil {
		return nil, err
	}
	ds.Layout = layout
	if len(bindings) == 0 {
		return ds, nil
	}

	sizes := descriptorPoolSizes(bindings)
	var pool vk.DescriptorPool
	res = vk.CreateDescriptorPool(device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       1,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}, context.Allocator, &pool)
	if err := resultError("vkCreateDescriptorPool", res); err != nil {
		ds.Destroy(context)
		return nil, err
	}
	ds.Pool = pool

	var set vk.DescriptorSet
	res = vk.AllocateDescriptorSets(device, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}, &set)
	if err := resultError("vkAllocateDescriptorSets", res); err != nil {
		ds.Destroy(context)
		return nil, err
	}
	ds.Set = set
	return ds, nil
}

func (ds *VulkanDescriptorSet) WriteBuffer(context *VulkanContext, binding uint32, buffer *VulkanBuffer) {
	vk.UpdateDescriptorSets(context.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          ds.Set,
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: buffer.Handle,
			Offset: 0,
			Range:  vk.DeviceSize(vk.WholeSize),
		}},
	}}, 0, nil)
}

// WriteTexture binds view at binding and sampler at binding+1.
func (ds *VulkanDescriptorSet) WriteTexture(context *VulkanContext, binding uint32, view vk.ImageView, sampler vk.Sampler) {
	vk.UpdateDescriptorSets(context.Device.LogicalDevice, 2, []vk.WriteDescriptorSet{
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          ds.Set,
			DstBinding:      binding,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeSampledImage,
			PImageInfo: []vk.DescriptorImageInfo{{
				ImageView:   view,
				ImageLayout: vk.ImageLayoutGeneral,
			}},
		},
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          ds.Set,
			DstBinding:      binding + 1,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeSampler,
			PImageInfo: []vk.DescriptorImageInfo{{
				Sampler: sampler,
			}},
		},
	}, 0, nil)
}

func (ds *VulkanDescriptorSet) Destroy(context *VulkanContext) {
	device := context.Device.LogicalDevice
	if ds.Pool != nil {
		// frees the set too
		vk.DestroyDescriptorPool(device, ds.Pool, context.Allocator)
		ds.Pool = nil
		ds.Set = nil
	}
	if ds.Layout != nil {
		vk.DestroyDescriptorSetLayout(device, ds.Layout, context.Allocator)
		ds.Layout = nil
	}
}
