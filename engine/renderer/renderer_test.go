package renderer

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

const (
	fakeVertexSource   = "attribute VertexPosition\nuniform ObjectSpaceToClipSpaceMatrix mat4\n"
	fakeFragmentSource = "uniform Color float4\nsampler DiffuseMap\nsampler NormalMap\n"
)

func newFakeRenderer(t *testing.T) (*Renderer, *fakeBackend) {
	b := newFakeBackend()
	r, err := NewRenderer(b, Config{Backend: metadata.RendererBackendConfig{Width: 16, Height: 8}})
	require.NoError(t, err)
	return r, b
}

func newFakeProgram(t *testing.T, r *Renderer) *Program {
	l := r.GetShaderLanguage("")
	require.NotNil(t, l)
	vs, err := l.CreateVertexShader(fakeVertexSource, "")
	require.NoError(t, err)
	fs, err := l.CreateFragmentShader(fakeFragmentSource, "")
	require.NoError(t, err)
	p, err := l.CreateProgram(vs, fs)
	require.NoError(t, err)
	return p
}

type dirtyCounter struct {
	count int
}

func TestProgramDirtyFiresOncePerShaderSwap(t *testing.T) {
	assert := assert.New(t)
	r, _ := newFakeRenderer(t)
	p := newFakeProgram(t, r)
	counter := &dirtyCounter{}
	core.Subscribe(p.Dirty(), counter, func(c *dirtyCounter, _ *Program) { c.count++ })

	uniform := p.GetUniform("Color")
	require.NotNil(t, uniform)
	assert.True(uniform.Set4f(1, 0, 0, 1))

	fs2, err := r.GetShaderLanguage("Fake").CreateFragmentShader("uniform Color float4\n", "")
	require.NoError(t, err)
	assert.True(p.SetFragmentShader(fs2))
	assert.Equal(1, counter.count)
	assert.False(uniform.Set4f(0, 1, 0, 1))

	// the same shader again is not a change
	assert.True(p.SetFragmentShader(fs2))
	assert.Equal(1, counter.count)

	assert.True(fs2.SetSourceCode("uniform Color float4\nuniform Extra float\n", "", "", ""))
	assert.Equal(2, counter.count)
	assert.Equal([]string{"Color", "Extra", "ObjectSpaceToClipSpaceMatrix"}, p.GetUniformNames())

	// a failed compile keeps the old shader and stays quiet
	assert.False(fs2.SetSourceCode("ERROR", "", "", ""))
	assert.Equal(2, counter.count)
	assert.NotNil(p.GetUniform("Extra"))
}

func TestSetProgramFailsWhenLinkFails(t *testing.T) {
	assert := assert.New(t)
	r, _ := newFakeRenderer(t)
	l := r.GetShaderLanguage("Fake")
	vs, _ := l.CreateVertexShader("LINKFAIL", "")
	fs, _ := l.CreateFragmentShader(fakeFragmentSource, "")
	p, err := l.CreateProgram(vs, fs)
	require.NoError(t, err)

	assert.False(r.SetProgram(p))
	assert.Nil(r.GetProgram())
	assert.Nil(p.GetUniform("Color"))
	assert.ErrorIs(r.DrawPrimitives(metadata.PrimitiveTriangleList, 0, 3), core.ErrNoProgram)

	assert.True(vs.SetSourceCode(fakeVertexSource, "", "", ""))
	assert.True(r.SetProgram(p))
	assert.Same(p, r.GetProgram())
	assert.True(r.SetProgram(nil))
}

func TestUniformSetTexture(t *testing.T) {
	assert := assert.New(t)
	r, _ := newFakeRenderer(t)
	p := newFakeProgram(t, r)
	img, err := NewSolidImage(metadata.PixelFormatRGBA8, 4, 4, math.ColorWhite)
	require.NoError(t, err)
	tex, err := r.CreateTextureBuffer2D(img, metadata.PixelFormatUnknown, 0)
	require.NoError(t, err)

	assert.Equal(0, p.GetUniform("DiffuseMap").SetTexture(tex))
	assert.Equal(1, p.GetUniform("NormalMap").SetTexture(tex))
	assert.Equal(-1, p.GetUniform("Color").SetTexture(tex))
	assert.Equal(-1, p.GetUniform("DiffuseMap").SetTexture(nil))
	assert.Same(tex, r.GetTextureBuffer(1))

	tex.Destroy()
	assert.Nil(r.GetTextureBuffer(0))
	assert.Equal(-1, p.GetUniform("DiffuseMap").SetTexture(tex))
}

func TestDrawCallSnapshot(t *testing.T) {
	assert := assert.New(t)
	r, b := newFakeRenderer(t)
	p := newFakeProgram(t, r)
	require.True(t, r.SetProgram(p))

	assert.ErrorIs(r.DrawPrimitives(metadata.PrimitiveTriangleList, 0, 3), core.ErrNoVertexBuffer)

	vb := r.CreateVertexBuffer()
	vb.AddVertexAttribute(metadata.VertexSemanticPosition, 0, metadata.VertexAttributeFloat3)
	require.NoError(t, vb.Allocate(3))
	r.SetVertexBuffer(vb)
	p.GetUniform("Color").SetColor(math.ColorWhite)
	r.SetRenderState(metadata.RenderStateZEnable, 0)

	require.NoError(t, r.DrawPrimitives(metadata.PrimitiveTriangleList, 0, 3))
	require.Len(t, b.draws, 1)
	call := b.draws[0]
	assert.Equal(uint32(16), call.TargetWidth)
	assert.Equal(uint32(0), call.RenderStates[metadata.RenderStateZEnable])
	require.Len(t, call.Streams, 1)
	assert.Equal(uint32(12), call.Streams[0].Stride)
	require.Len(t, call.Uniforms, 1)
	assert.Equal([]float32{1, 1, 1, 1}, call.Uniforms[0].Values)

	assert.Error(r.DrawPrimitives(metadata.PrimitiveTriangleList, 0, 6))
	assert.ErrorIs(r.DrawIndexedPrimitives(metadata.PrimitiveTriangleList, 0, 3, 0, 3), core.ErrNoIndexBuffer)

	ib := r.CreateIndexBuffer()
	require.NoError(t, ib.Allocate(3, metadata.IndexFormatUInt16))
	require.True(t, ib.Lock(LockWriteOnly))
	assert.True(ib.SetData(2, 2))
	assert.False(ib.SetData(0, 70000))
	require.True(t, ib.Unlock())
	r.SetIndexBuffer(ib)
	require.NoError(t, r.DrawIndexedPrimitives(metadata.PrimitiveTriangleList, 0, 3, 0, 3))
	assert.True(b.draws[1].Indexed)

	stats := r.Statistics()
	assert.Equal(uint32(2), stats.DrawCalls)
	assert.Equal(uint32(2), stats.Triangles)
	assert.Equal(uint32(2), stats.Shaders)
	assert.Equal(uint32(1), stats.Programs)
}

func TestRenderTargetAndGuards(t *testing.T) {
	assert := assert.New(t)
	r, _ := newFakeRenderer(t)
	surface, err := r.CreateSurfaceTextureBufferRectangle(math.Size{Width: 3, Height: 2}, metadata.PixelFormatRGBA16F, metadata.Multisample4x)
	require.NoError(t, err)
	assert.Equal(metadata.Multisample2x, surface.GetMultisampleMode())
	assert.Equal(math.Size{Width: 3, Height: 2}, surface.GetSize())

	guard := r.SaveState()
	assert.True(r.SetRenderTarget(surface))
	assert.Equal(math.Rect{Width: 3, Height: 2}, r.GetViewport())
	r.SetRenderState(metadata.RenderStateBlendEnable, 1)
	r.SetSamplerState(0, metadata.SamplerStateAddressU, uint32(metadata.AddressClamp))
	guard.Restore()
	guard.Restore()

	assert.Nil(r.GetRenderTarget())
	assert.Equal(math.Rect{Width: 16, Height: 8}, r.GetViewport())
	assert.Equal(uint32(0), r.GetRenderState(metadata.RenderStateBlendEnable))
	assert.Equal(uint32(metadata.AddressWrap), r.GetSamplerState(0, metadata.SamplerStateAddressU))

	rs := r.BackupRenderStates(metadata.RenderStateCullMode)
	r.SetRenderState(metadata.RenderStateCullMode, uint32(metadata.CullNone))
	rs.Restore()
	assert.Equal(uint32(metadata.CullCCW), r.GetRenderState(metadata.RenderStateCullMode))

	tg := r.BackupRenderTarget()
	assert.True(r.SetRenderTarget(surface))
	surface.Destroy()
	assert.Nil(r.GetRenderTarget())
	assert.False(r.SetRenderTarget(surface))
	tg.Restore()
	assert.Nil(r.GetRenderTarget())

	_, err = r.CreateSurfaceTextureBufferRectangle(math.Size{}, metadata.PixelFormatRGBA8, metadata.MultisampleNone)
	assert.ErrorIs(err, core.ErrInvalidParameter)
}

func TestTextureCopyValidation(t *testing.T) {
	assert := assert.New(t)
	r, _ := newFakeRenderer(t)
	img, err := NewSolidImage(metadata.PixelFormatRGBA8, 4, 4, math.NewColor(1, 0, 0, 1))
	require.NoError(t, err)
	tex, err := r.CreateTextureBuffer2D(img, metadata.PixelFormatRGBA8, metadata.TextureFlagMipmaps)
	require.NoError(t, err)
	assert.Equal(uint32(2), tex.GetNumOfMipmaps())
	assert.Equal(uint32(64+16+4), tex.GetTotalNumOfBytes())

	data := make([]byte, 64)
	assert.False(tex.CopyDataTo(3, metadata.PixelFormatRGBA8, data, 0))
	assert.False(tex.CopyDataTo(0, metadata.PixelFormatUnknown, data, 0))
	assert.False(tex.CopyDataTo(0, metadata.PixelFormatRGBA8, data[:10], 0))
	assert.False(tex.CopyDataTo(0, metadata.PixelFormatRGBA8, data, 1))
	assert.False(tex.CopyDataTo(0, metadata.PixelFormatDXT1, data, 0))

	floats := make([]byte, 4*4*16)
	assert.True(tex.CopyDataTo(0, metadata.PixelFormatRGBA32F, floats, 0))
	assert.True(tex.CopyDataFrom(0, metadata.PixelFormatRGBA32F, floats, 0))
	assert.True(tex.CopyDataTo(0, metadata.PixelFormatRGBA8, data, 0))
	assert.Equal([]byte{255, 0, 0, 255}, data[:4])
}

func TestCompressedFallbackWarns(t *testing.T) {
	assert := assert.New(t)
	r, _ := newFakeRenderer(t)
	var logs bytes.Buffer
	core.SetLogOutput(&logs)
	defer core.SetLogOutput(os.Stderr)

	img, err := NewSolidImage(metadata.PixelFormatRGBA8, 4, 4, math.ColorWhite)
	require.NoError(t, err)
	tex, err := r.CreateTextureBuffer2D(img, metadata.PixelFormatDXT5, 0)
	require.NoError(t, err)
	assert.Equal(metadata.PixelFormatRGBA8, tex.GetFormat())
	assert.Contains(logs.String(), "falling back to RGBA8")
}

func TestBackupFailureLosesResource(t *testing.T) {
	assert := assert.New(t)
	r, b := newFakeRenderer(t)
	img, _ := NewSolidImage(metadata.PixelFormatRGBA8, 2, 2, math.ColorWhite)
	tex, err := r.CreateTextureBuffer2D(img, metadata.PixelFormatUnknown, 0)
	require.NoError(t, err)

	b.failRead = true
	assert.ErrorIs(r.BackupDeviceData(), core.ErrResourceLost)
	assert.Equal(metadata.ResourceStateLost, tex.State())
	b.failRead = false

	assert.NoError(r.RestoreDeviceData())
	assert.Equal(metadata.ResourceStateLost, tex.State())
	_, err = tex.Download()
	assert.ErrorIs(err, core.ErrResourceLost)
	assert.False(r.SetTextureBuffer(0, tex))
}

func TestVertexBufferLocking(t *testing.T) {
	assert := assert.New(t)
	r, _ := newFakeRenderer(t)
	vb := r.CreateVertexBuffer()
	assert.True(vb.AddVertexAttribute(metadata.VertexSemanticPosition, 0, metadata.VertexAttributeFloat3))
	assert.True(vb.AddVertexAttribute(metadata.VertexSemanticColor, 0, metadata.VertexAttributeRGBA))
	assert.False(vb.AddVertexAttribute(metadata.VertexSemanticColor, 0, metadata.VertexAttributeRGBA))
	require.NoError(t, vb.Allocate(2))
	assert.Equal(uint32(16), vb.GetVertexSize())
	assert.False(vb.AddVertexAttribute(metadata.VertexSemanticNormal, 0, metadata.VertexAttributeFloat3))

	assert.False(vb.SetPosition(0, math.NewVec3(1, 2, 3)))
	require.True(t, vb.Lock(LockWriteOnly))
	assert.False(vb.Lock(LockWriteOnly))
	assert.True(vb.SetPosition(1, math.NewVec3(1, 2, 3)))
	assert.True(vb.SetColor(1, math.NewColor(1, 0, 0, 1)))
	assert.False(vb.SetPosition(2, math.NewVec3(1, 2, 3)))
	require.True(t, vb.Unlock())

	require.NoError(t, r.ResetDevice())
	p, ok := vb.GetPosition(1)
	assert.True(ok)
	assert.Equal(math.NewVec3(1, 2, 3), p)
	c, _ := vb.GetColor(1)
	assert.Equal(math.NewColor(1, 0, 0, 1), c)
}

func TestCapabilityQueries(t *testing.T) {
	assert := assert.New(t)
	r, _ := newFakeRenderer(t)
	assert.Equal("Fake", r.GetDefaultShaderLanguage())
	assert.Nil(r.GetShaderLanguage("HLSL"))
	assert.True(r.IsExtensionSupported("fake_extension"))
	assert.False(r.IsExtensionSupported("nope"))
	assert.Equal(4, r.GetMaxTextureUnits())

	_, err := NewRenderer(newFakeBackend(), Config{ShaderLanguage: "HLSL"})
	assert.ErrorIs(err, core.ErrUnsupportedLanguage)
}

func TestShaderLibraryFlush(t *testing.T) {
	assert := assert.New(t)
	lib := NewShaderLibrary()
	counter := &dirtyCounter{}
	core.Subscribe(lib.Changed(), counter, func(c *dirtyCounter, _ ShaderSourceKey) { c.count++ })

	lib.Set("WGSL", "glow_fs", "a")
	_, ok := lib.Get("WGSL", "glow_fs")
	assert.False(ok)
	assert.Equal(1, lib.Flush())
	assert.Equal(1, counter.count)
	lib.Set("WGSL", "glow_fs", "a")
	assert.Equal(0, lib.Flush())
	assert.Equal(1, counter.count)

	key, ok := ShaderSourceKeyFromPath("WGSL/glow_fs.wgsl")
	assert.True(ok)
	assert.Equal(ShaderSourceKey{Language: "WGSL", Name: "glow_fs"}, key)
	_, ok = ShaderSourceKeyFromPath("glow_fs.wgsl")
	assert.False(ok)
}
