package vulkan

import (
	"encoding/binary"
	gomath "math"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

const drawVS = `
// position, texture coordinate and color
struct VertexUniforms {
    ObjectSpaceToClipSpaceMatrix: mat4x4<f32>,
    TextureMatrix: mat4x4<f32>,
};

@group(0) @binding(0) var<uniform> vs: VertexUniforms;

struct VertexInput {
    @location(0) VertexPosition: vec3<f32>,
    @location(1) VertexTexCoord0: vec2<f32>,
    @location(2) VertexColor: vec4<f32>,
};

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) color: vec4<f32>,
    @location(1) uv: vec2<f32>,
};

@vertex
fn main(input: VertexInput) -> VertexOutput {
    var out: VertexOutput;
    out.position = vs.ObjectSpaceToClipSpaceMatrix * vec4<f32>(input.VertexPosition, 1.0);
    out.color = input.VertexColor;
    out.uv = (vs.TextureMatrix * vec4<f32>(input.VertexTexCoord0, 0.0, 1.0)).xy;
    return out;
}
`

const drawFS = `
struct FragmentUniforms {
    AlphaReference: f32,
};

@group(0) @binding(1) var<uniform> fs: FragmentUniforms;
@group(0) @binding(2) var Texture: texture_2d<f32>;
@group(0) @binding(3) var Texture_sampler: sampler;

@fragment
fn main(@location(0) color: vec4<f32>, @location(1) uv: vec2<f32>) -> @location(0) vec4<f32> {
    return color * textureSample(Texture, Texture_sampler, uv);
}
`

const blurFS = `
struct FragmentUniforms {
    TextureSize: vec2<i32>,
    UVScale: vec2<f32>,
};

@group(0) @binding(1) var<uniform> fs: FragmentUniforms;
/* the glow source */
@group(0) @binding(2) var Texture: texture_2d<f32>;
@group(0) @binding(3) var Texture_sampler: sampler;

@fragment
fn main(@location(0) uv: vec2<f32>) -> @location(0) vec4<f32> {
    let step = fs.UVScale / vec2<f32>(fs.TextureSize);
    return textureSample(Texture, Texture_sampler, uv + step);
}
`

func reflectOrFail(t *testing.T, stage metadata.ShaderStage, source string) *shaderReflection {
	r, err := reflectWGSL(stage, source)
	require.NoError(t, err)
	return r
}

func TestFormatMapping(t *testing.T) {
	assert := assert.New(t)

	tests := []struct {
		format metadata.PixelFormat
		want   vk.Format
	}{
		{metadata.PixelFormatR8, vk.FormatR8Unorm},
		{metadata.PixelFormatL8, vk.FormatR8Unorm},
		{metadata.PixelFormatLA8, vk.FormatR8g8Unorm},
		{metadata.PixelFormatRGB8, vk.FormatR8g8b8a8Unorm},
		{metadata.PixelFormatRGBA8, vk.FormatR8g8b8a8Unorm},
		{metadata.PixelFormatR32F, vk.FormatR32Sfloat},
		{metadata.PixelFormatRGBA16F, vk.FormatR16g16b16a16Sfloat},
		{metadata.PixelFormatRGBA32F, vk.FormatR32g32b32a32Sfloat},
		{metadata.PixelFormatDXT1, vk.FormatBc1RgbUnormBlock},
		{metadata.PixelFormatDXT3, vk.FormatBc2UnormBlock},
		{metadata.PixelFormatDXT5, vk.FormatBc3UnormBlock},
		{metadata.PixelFormatDepth24, vk.FormatX8D24UnormPack32},
		{metadata.PixelFormatDepth32F, vk.FormatD32Sfloat},
	}
	for _, tt := range tests {
		m, ok := vkFormatFor(tt.format)
		assert.True(ok, tt.format.String())
		assert.Equal(tt.want, m.format, tt.format.String())
	}

	_, ok := vkFormatFor(metadata.PixelFormatUnknown)
	assert.False(ok)

	l8, _ := vkFormatFor(metadata.PixelFormatL8)
	assert.Equal(vk.ComponentSwizzleR, l8.components.G)
	assert.Equal(vk.ComponentSwizzleOne, l8.components.A)
	la8, _ := vkFormatFor(metadata.PixelFormatLA8)
	assert.Equal(vk.ComponentSwizzleR, la8.components.B)
	assert.Equal(vk.ComponentSwizzleG, la8.components.A)
}

func TestRGB8Conversion(t *testing.T) {
	assert := assert.New(t)

	packed := []byte{1, 2, 3, 4, 5, 6}
	expanded := expandRGB8(packed)
	assert.Equal([]byte{1, 2, 3, 0xFF, 4, 5, 6, 0xFF}, expanded)
	assert.Equal(packed, packRGB8(expanded))

	assert.Equal(uint32(2*2*4), deviceBytes(metadata.PixelFormatRGB8, 2, 2))
	assert.Equal(metadata.PixelFormatRGBA8.NumOfBytes(3, 5), deviceBytes(metadata.PixelFormatRGBA8, 3, 5))
}

func TestLevelSize(t *testing.T) {
	assert := assert.New(t)

	w, h := levelSize(64, 16, 0)
	assert.Equal([]uint32{64, 16}, []uint32{w, h})
	w, h = levelSize(64, 16, 3)
	assert.Equal([]uint32{8, 2}, []uint32{w, h})
	w, h = levelSize(64, 16, 6)
	assert.Equal([]uint32{1, 1}, []uint32{w, h})
}

func TestSamplerCreateInfo(t *testing.T) {
	assert := assert.New(t)

	info := samplerCreateInfo(metadata.DefaultSamplerStates())
	assert.Equal(vk.FilterLinear, info.MagFilter)
	assert.Equal(vk.FilterLinear, info.MinFilter)
	assert.Equal(vk.SamplerAddressModeRepeat, info.AddressModeU)
	assert.Equal(vk.SamplerMipmapModeNearest, info.MipmapMode)
	assert.Equal(float32(maxLod), info.MaxLod)

	var states metadata.SamplerStates
	states[metadata.SamplerStateAddressU] = uint32(metadata.AddressClamp)
	states[metadata.SamplerStateAddressV] = uint32(metadata.AddressMirror)
	states[metadata.SamplerStateMagFilter] = uint32(metadata.FilterPoint)
	states[metadata.SamplerStateMinFilter] = uint32(metadata.FilterNone)
	states[metadata.SamplerStateMipFilter] = uint32(metadata.FilterNone)
	info = samplerCreateInfo(states)
	assert.Equal(vk.SamplerAddressModeClampToEdge, info.AddressModeU)
	assert.Equal(vk.SamplerAddressModeMirroredRepeat, info.AddressModeV)
	assert.Equal(vk.FilterNearest, info.MagFilter)
	assert.Equal(vk.FilterNearest, info.MinFilter)
	assert.Equal(float32(0), info.MaxLod)

	states[metadata.SamplerStateMipFilter] = uint32(metadata.FilterLinear)
	info = samplerCreateInfo(states)
	assert.Equal(vk.SamplerMipmapModeLinear, info.MipmapMode)
}

func TestDeviceSelectionHelpers(t *testing.T) {
	assert := assert.New(t)

	assert.Greater(deviceTypeScore(vk.PhysicalDeviceTypeDiscreteGpu), deviceTypeScore(vk.PhysicalDeviceTypeIntegratedGpu))
	assert.Greater(deviceTypeScore(vk.PhysicalDeviceTypeIntegratedGpu), deviceTypeScore(vk.PhysicalDeviceTypeCpu))
	assert.Equal(0, deviceTypeScore(vk.PhysicalDeviceTypeOther))

	families := []vk.QueueFamilyProperties{
		{QueueFlags: vk.QueueFlags(vk.QueueTransferBit), QueueCount: 1},
		{QueueFlags: vk.QueueFlags(vk.QueueGraphicsBit), QueueCount: 0},
		{QueueFlags: vk.QueueFlags(vk.QueueGraphicsBit | vk.QueueComputeBit), QueueCount: 2},
	}
	index, ok := pickQueueFamily(families)
	assert.True(ok)
	assert.Equal(uint32(2), index)

	_, ok = pickQueueFamily(families[:2])
	assert.False(ok)
}

func TestReflectVertexShader(t *testing.T) {
	assert := assert.New(t)

	r := reflectOrFail(t, metadata.ShaderStageVertex, drawVS)
	assert.Equal("main", r.Entry)
	assert.Equal([]metadata.ProgramAttributeInfo{
		{Name: "VertexPosition", Location: 0, Components: 3},
		{Name: "VertexTexCoord0", Location: 1, Components: 2},
		{Name: "VertexColor", Location: 2, Components: 4},
	}, r.Attributes)

	require.Len(t, r.Blocks, 1)
	block := r.Blocks[0]
	assert.Equal(uint32(0), block.Binding)
	assert.Equal(uint32(128), block.Size)
	assert.Equal([]uniformField{
		{Name: "ObjectSpaceToClipSpaceMatrix", Type: metadata.UniformTypeMat4, Offset: 0},
		{Name: "TextureMatrix", Type: metadata.UniformTypeMat4, Offset: 64},
	}, block.Fields)
	assert.Empty(r.Textures)
}

func TestReflectFragmentShader(t *testing.T) {
	assert := assert.New(t)

	r := reflectOrFail(t, metadata.ShaderStageFragment, blurFS)
	assert.Equal("main", r.Entry)
	assert.Empty(r.Attributes)
	require.Len(t, r.Blocks, 1)
	assert.Equal(uint32(1), r.Blocks[0].Binding)
	assert.Equal(uint32(16), r.Blocks[0].Size)
	assert.Equal([]uniformField{
		{Name: "TextureSize", Type: metadata.UniformTypeInt2, Offset: 0},
		{Name: "UVScale", Type: metadata.UniformTypeFloat2, Offset: 8},
	}, r.Blocks[0].Fields)
	assert.Equal([]textureSlot{{Name: "Texture", Type: metadata.UniformTypeSampler2D, Binding: 2}}, r.Textures)
}

func TestReflectStructLayout(t *testing.T) {
	assert := assert.New(t)

	source := `
struct FragmentUniforms {
    A: f32,
    B: vec3<f32>,
    C: vec2<f32>,
    M: mat3x3<f32>,
};
@group(0) @binding(1) var<uniform> fs: FragmentUniforms;
@fragment
fn main() -> @location(0) vec4<f32> {
    return vec4<f32>(fs.A);
}
`
	r := reflectOrFail(t, metadata.ShaderStageFragment, source)
	require.Len(t, r.Blocks, 1)
	assert.Equal([]uniformField{
		{Name: "A", Type: metadata.UniformTypeFloat1, Offset: 0},
		{Name: "B", Type: metadata.UniformTypeFloat3, Offset: 16},
		{Name: "C", Type: metadata.UniformTypeFloat2, Offset: 32},
		{Name: "M", Type: metadata.UniformTypeMat3, Offset: 48},
	}, r.Blocks[0].Fields)
	assert.Equal(uint32(96), r.Blocks[0].Size)
}

func TestReflectErrors(t *testing.T) {
	assert := assert.New(t)

	_, err := reflectWGSL(metadata.ShaderStageVertex, drawFS)
	assert.ErrorIs(err, core.ErrShaderCompile)

	_, err = reflectWGSL(metadata.ShaderStageGeometry, drawVS)
	assert.ErrorIs(err, core.ErrUnsupportedLanguage)

	noSampler := `
@group(0) @binding(2) var Texture: texture_2d<f32>;
@fragment
fn main() -> @location(0) vec4<f32> { return vec4<f32>(1.0); }
`
	_, err = reflectWGSL(metadata.ShaderStageFragment, noSampler)
	assert.ErrorIs(err, core.ErrShaderCompile)

	badUniform := `
struct FragmentUniforms { Values: array<f32, 4>, };
@group(0) @binding(1) var<uniform> fs: FragmentUniforms;
@fragment
fn main() -> @location(0) vec4<f32> { return vec4<f32>(1.0); }
`
	_, err = reflectWGSL(metadata.ShaderStageFragment, badUniform)
	assert.ErrorIs(err, core.ErrShaderCompile)
}

func TestLinkReflections(t *testing.T) {
	assert := assert.New(t)

	vs := reflectOrFail(t, metadata.ShaderStageVertex, drawVS)
	fs := reflectOrFail(t, metadata.ShaderStageFragment, drawFS)

	// stage order does not depend on argument order
	p, err := linkReflections([]*shaderReflection{fs, vs})
	require.NoError(t, err)
	assert.Equal(vs.Attributes, p.Layout.Attributes)
	assert.Equal([]metadata.ProgramUniformInfo{
		{Name: "ObjectSpaceToClipSpaceMatrix", Location: 0, Type: metadata.UniformTypeMat4, Unit: -1},
		{Name: "TextureMatrix", Location: 1, Type: metadata.UniformTypeMat4, Unit: -1},
		{Name: "AlphaReference", Location: 2, Type: metadata.UniformTypeFloat1, Unit: -1},
		{Name: "Texture", Location: 3, Type: metadata.UniformTypeSampler2D, Unit: 0},
	}, p.Layout.Uniforms)
	assert.Equal([]uint32{2}, p.Units)
	assert.Equal([]uniformSlot{{Binding: 1, Offset: 0}}, p.Slots[2])
	assert.Equal("main", p.Entries[metadata.ShaderStageFragment])
}

func TestLinkSharedAndConflictingUniforms(t *testing.T) {
	assert := assert.New(t)

	vsTime := `
struct VertexUniforms { Time: f32, };
@group(0) @binding(0) var<uniform> vs: VertexUniforms;
@vertex
fn main(@location(0) VertexPosition: vec3<f32>) -> @builtin(position) vec4<f32> {
    return vec4<f32>(VertexPosition, vs.Time);
}
`
	fsTime := `
struct FragmentUniforms { Tint: vec4<f32>, Time: f32, };
@group(0) @binding(1) var<uniform> fs: FragmentUniforms;
@fragment
fn main() -> @location(0) vec4<f32> { return fs.Tint * fs.Time; }
`
	fsConflict := `
struct FragmentUniforms { Time: vec2<f32>, };
@group(0) @binding(1) var<uniform> fs: FragmentUniforms;
@fragment
fn main() -> @location(0) vec4<f32> { return vec4<f32>(fs.Time, 0.0, 1.0); }
`
	vs := reflectOrFail(t, metadata.ShaderStageVertex, vsTime)
	assert.Equal([]metadata.ProgramAttributeInfo{{Name: "VertexPosition", Location: 0, Components: 3}}, vs.Attributes)

	p, err := linkReflections([]*shaderReflection{vs, reflectOrFail(t, metadata.ShaderStageFragment, fsTime)})
	require.NoError(t, err)
	time, ok := p.Layout.Uniform("Time")
	require.True(t, ok)
	assert.Equal([]uniformSlot{{Binding: 0, Offset: 0}, {Binding: 1, Offset: 16}}, p.Slots[time.Location])
	assert.Len(p.Layout.Uniforms, 2)

	_, err = linkReflections([]*shaderReflection{vs, reflectOrFail(t, metadata.ShaderStageFragment, fsConflict)})
	assert.ErrorIs(err, core.ErrProgramLink)

	_, err = linkReflections([]*shaderReflection{vs})
	assert.ErrorIs(err, core.ErrProgramLink)

	_, err = linkReflections([]*shaderReflection{vs, vs})
	assert.ErrorIs(err, core.ErrProgramLink)
}

func TestPackUniform(t *testing.T) {
	assert := assert.New(t)

	readFloat := func(b []byte, off int) float32 {
		return gomath.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
	}

	mat := make([]byte, 48)
	packUniform(mat, 0, metadata.UniformTypeMat3, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9})
	for c := 0; c < 3; c++ {
		for r := 0; r < 3; r++ {
			assert.Equal(float32(c*3+r+1), readFloat(mat, c*16+r*4))
		}
		assert.Equal(float32(0), readFloat(mat, c*16+12))
	}

	ints := make([]byte, 16)
	packUniform(ints, 8, metadata.UniformTypeInt2, []float32{3, -2})
	assert.Equal(uint32(3), binary.LittleEndian.Uint32(ints[8:]))
	assert.Equal(int32(-2), int32(binary.LittleEndian.Uint32(ints[12:])))

	vec := make([]byte, 16)
	packUniform(vec, 4, metadata.UniformTypeFloat3, []float32{0.5, 1, 2})
	assert.Equal(float32(0.5), readFloat(vec, 4))
	assert.Equal(float32(2), readFloat(vec, 12))
}

func TestPipelineKeyFor(t *testing.T) {
	assert := assert.New(t)

	withDepth := renderpassKey{Color: vk.FormatR8g8b8a8Unorm, Depth: vk.FormatD32Sfloat}
	colorOnly := renderpassKey{Color: vk.FormatR8g8b8a8Unorm, Depth: vk.FormatUndefined}
	call := &metadata.DrawCall{
		RenderStates: metadata.DefaultRenderStates(),
		Primitive:    metadata.PrimitiveTriangleStrip,
		Streams: []metadata.VertexStream{
			{Location: 0, Attribute: metadata.VertexAttribute{Type: metadata.VertexAttributeFloat3}, Stride: 28},
			{Location: 2, Attribute: metadata.VertexAttribute{Type: metadata.VertexAttributeRGBA, Offset: 12}, Stride: 28},
		},
	}

	key, err := pipelineKeyFor(call, withDepth, false)
	require.NoError(t, err)
	assert.Equal(vk.PrimitiveTopologyTriangleStrip, key.Topology)
	assert.Equal(vk.PolygonModeFill, key.Polygon)
	assert.Equal(vk.CullModeFrontBit, key.Cull)
	assert.True(key.DepthTest)
	assert.True(key.DepthWrite)
	assert.Equal(vk.CompareOpLessOrEqual, key.DepthCompare)
	assert.False(key.Blend)
	assert.Equal(uint32(0xF), key.ColorMask)
	assert.Equal(2, key.InputCount)
	assert.Equal(vertexInput{Location: 2, Format: vk.FormatR8g8b8a8Unorm, Stride: 28}, key.Inputs[1])

	key, err = pipelineKeyFor(call, colorOnly, false)
	require.NoError(t, err)
	assert.False(key.DepthTest)
	assert.False(key.DepthWrite)
	assert.Equal(vk.CompareOpAlways, key.DepthCompare)

	call.RenderStates[metadata.RenderStateCullMode] = uint32(metadata.CullCW)
	call.RenderStates[metadata.RenderStateFixedFillMode] = uint32(metadata.FillLine)
	call.RenderStates[metadata.RenderStateBlendEnable] = 1
	call.RenderStates[metadata.RenderStateColorWriteMask] = uint32(metadata.ColorMaskRed | metadata.ColorMaskAlpha)
	key, err = pipelineKeyFor(call, colorOnly, false)
	require.NoError(t, err)
	assert.Equal(vk.CullModeBackBit, key.Cull)
	assert.Equal(vk.PolygonModeFill, key.Polygon)
	assert.True(key.Blend)
	assert.Equal(vk.BlendFactorSrcAlpha, key.SrcBlend)
	assert.Equal(vk.BlendFactorOneMinusSrcAlpha, key.DstBlend)
	assert.Equal(uint32(0x9), key.ColorMask)

	key, err = pipelineKeyFor(call, colorOnly, true)
	require.NoError(t, err)
	assert.Equal(vk.PolygonModeLine, key.Polygon)

	// equal draws share a pipeline
	again, err := pipelineKeyFor(call, colorOnly, true)
	require.NoError(t, err)
	assert.Equal(key, again)

	call.Streams = make([]metadata.VertexStream, maxVertexInputs+1)
	_, err = pipelineKeyFor(call, colorOnly, true)
	assert.ErrorIs(err, core.ErrInvalidParameter)
}

func TestCompleteStreams(t *testing.T) {
	assert := assert.New(t)

	vs := reflectOrFail(t, metadata.ShaderStageVertex, drawVS)
	layout := &metadata.ProgramLayout{Attributes: vs.Attributes}
	fed := []metadata.VertexStream{{Location: 0, Buffer: 7, Stride: 12}}

	out := completeStreams(layout, fed)
	require.Len(t, out, 3)
	assert.Equal(fed[0], out[0])
	assert.Equal(1, out[1].Location)
	assert.False(out[1].Buffer.IsValid())
	assert.Equal(uint32(0), out[2].Stride)
	assert.Len(fed, 1)
}

func TestClipRectAndViewport(t *testing.T) {
	assert := assert.New(t)

	r, ok := clipRect(math.Rect{X: -4, Y: 10, Width: 20, Height: 100}, 64, 32)
	assert.True(ok)
	assert.Equal(vk.Offset2D{X: 0, Y: 10}, r.Offset)
	assert.Equal(vk.Extent2D{Width: 16, Height: 22}, r.Extent)

	_, ok = clipRect(math.Rect{X: 70, Y: 0, Width: 5, Height: 5}, 64, 32)
	assert.False(ok)

	vp := flippedViewport(math.Rect{X: 2, Y: 4, Width: 10, Height: 20})
	assert.Equal(float32(24), vp.Y)
	assert.Equal(float32(-20), vp.Height)
	// ndc y = 1 maps to the top row like the soft rasterizer
	top := vp.Y + (1+1)*0.5*vp.Height
	assert.Equal(float32(4), top)
}

func TestDescriptorLayout(t *testing.T) {
	assert := assert.New(t)

	p, err := linkReflections([]*shaderReflection{
		reflectOrFail(t, metadata.ShaderStageVertex, drawVS),
		reflectOrFail(t, metadata.ShaderStageFragment, drawFS),
	})
	require.NoError(t, err)

	bindings := descriptorBindings(p)
	require.Len(t, bindings, 4)
	assert.Equal(vk.DescriptorTypeUniformBuffer, bindings[0].DescriptorType)
	assert.Equal(vk.DescriptorTypeSampledImage, bindings[2].DescriptorType)
	assert.Equal(uint32(2), bindings[2].Binding)
	assert.Equal(vk.DescriptorTypeSampler, bindings[3].DescriptorType)
	assert.Equal(uint32(3), bindings[3].Binding)

	assert.Equal([]vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: 2},
		{Type: vk.DescriptorTypeSampledImage, DescriptorCount: 1},
		{Type: vk.DescriptorTypeSampler, DescriptorCount: 1},
	}, descriptorPoolSizes(bindings))
}

func TestSpirvWords(t *testing.T) {
	assert := assert.New(t)

	words := spirvWords([]byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00})
	assert.Equal([]uint32{0x07230203, 0x00010000}, words)
}

func TestResultError(t *testing.T) {
	assert := assert.New(t)

	assert.NoError(resultError("vkCreateImage", vk.Success))
	assert.ErrorIs(resultError("vkQueueSubmit", vk.ErrorDeviceLost), core.ErrDeviceNotReady)
	assert.ErrorIs(resultError("vkCreateImage", vk.ErrorOutOfDeviceMemory), core.ErrUnknown)
	assert.Equal("VK_LAYER", cString([]byte{'V', 'K', '_', 'L', 'A', 'Y', 'E', 'R', 0, 'x'}))
}
