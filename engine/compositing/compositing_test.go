package compositing

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/renderer/pixel"
	"github.com/spaghettifunk/lumen/engine/renderer/soft"
)

const testSize = 4

func newTestRenderer(t *testing.T) *renderer.Renderer {
	r, err := renderer.NewRenderer(soft.New(), renderer.Config{
		Backend: metadata.RendererBackendConfig{ApplicationName: "compositing", Width: testSize, Height: testSize},
	})
	require.NoError(t, err)
	t.Cleanup(func() { r.Shutdown() })
	return r
}

func newSolidTexture(t *testing.T, r *renderer.Renderer, format metadata.PixelFormat, size uint32, c math.Color) renderer.TextureBuffer {
	img, err := renderer.NewSolidImage(format, size, size, c)
	require.NoError(t, err)
	tb, err := r.CreateTextureBufferRectangle(img, format, 0)
	require.NoError(t, err)
	return tb
}

// newTarget binds a cleared float render target.
func newTarget(t *testing.T, r *renderer.Renderer) *renderer.SurfaceTextureBuffer {
	s, err := r.CreateSurfaceTextureBufferRectangle(math.Size{Width: testSize, Height: testSize}, metadata.PixelFormatRGBA32F, metadata.MultisampleNone)
	require.NoError(t, err)
	require.True(t, r.SetRenderTarget(s))
	require.NoError(t, r.Clear(metadata.ClearColor, math.Color{}, 1, 0))
	return s
}

func texel(t *testing.T, tb renderer.TextureBuffer, x, y uint32) math.Vec4 {
	size := tb.GetSize(0)
	data := make([]byte, metadata.PixelFormatRGBA32F.NumOfBytes(size.Width, size.Height))
	require.True(t, tb.CopyDataTo(0, metadata.PixelFormatRGBA32F, data, 0))
	return pixel.Read(metadata.PixelFormatRGBA32F, data, size.Width, x, y)
}

// newGBuffer lights a flat surface facing the camera at depth 5.
func newGBuffer(t *testing.T, r *renderer.Renderer, albedo math.Color) *TextureGBuffer {
	quad, err := NewFullscreenQuad(r)
	require.NoError(t, err)
	t.Cleanup(quad.Destroy)

	n := EncodeNormal(math.NewVec3(0, 0, 1))
	gb := NewTextureGBuffer(quad)
	gb.SetColorTarget(0, newSolidTexture(t, r, metadata.PixelFormatRGBA32F, testSize, albedo), true)
	gb.SetColorTarget(1, newSolidTexture(t, r, metadata.PixelFormatRGBA32F, testSize, math.NewColor(n.X, n.Y, 5, 0)), false)
	return gb
}

func TestDeferredLightingDirectional(t *testing.T) {
	assert := assert.New(t)
	r := newTestRenderer(t)
	gb := newGBuffer(t, r, math.NewColor(1, 0.5, 0.25, 1))
	target := newTarget(t, r)

	dl := NewDeferredLighting(r)
	defer dl.Destroy()
	dl.Flags = LightingNoSpecular
	assert.Equal(LightingIdle, dl.GetState())

	n, err := dl.Draw(gb, []Light{{
		Type:      LightDirectional,
		Color:     math.NewColor(1, 1, 1, 1),
		Direction: math.NewVec3(0, 0, -1),
	}})
	require.NoError(t, err)
	assert.Equal(1, n)
	assert.Equal(LightingLit, dl.GetState())

	for _, p := range [][2]uint32{{0, 0}, {3, 0}, {1, 2}, {3, 3}} {
		got := texel(t, target.GetTextureBuffer(), p[0], p[1])
		assert.True(math.NewVec4(1, 0.5, 0.25, 1).Compare(got, 1e-4), "texel %v: %v", p, got)
	}

	// a second light adds up
	_, err = dl.Draw(gb, []Light{{Type: LightDirectional, Color: math.NewColor(1, 1, 1, 1), Direction: math.NewVec3(0, 0, -1)}})
	require.NoError(t, err)
	assert.InDelta(2, texel(t, target.GetTextureBuffer(), 1, 1).X, 1e-4)

	dl.Reset()
	assert.Equal(LightingIdle, dl.GetState())
}

func TestDeferredLightingSkipsInvisibleLights(t *testing.T) {
	assert := assert.New(t)
	r := newTestRenderer(t)
	gb := newGBuffer(t, r, math.NewColor(1, 1, 1, 1))
	target := newTarget(t, r)

	dl := NewDeferredLighting(r)
	defer dl.Destroy()

	n, err := dl.Draw(gb, []Light{
		{Type: LightPoint, Color: math.NewColor(0, 0, 0, 1), Radius: 10},
		{Type: LightPoint, Color: math.NewColor(1, 1, 1, 1), Radius: 0},
	})
	require.NoError(t, err)
	assert.Equal(0, n)
	assert.Equal(LightingGBufferReady, dl.GetState())

	// out of range of every pixel, discarded
	n, err = dl.Draw(gb, []Light{{Type: LightPoint, Color: math.NewColor(1, 1, 1, 1), Position: math.NewVec3(0, 0, 100), Radius: 1}})
	require.NoError(t, err)
	assert.Equal(1, n)
	assert.Equal(math.Vec4{}, texel(t, target.GetTextureBuffer(), 2, 2))
}

func TestDeferredLightingRestoresState(t *testing.T) {
	assert := assert.New(t)
	r := newTestRenderer(t)
	gb := newGBuffer(t, r, math.NewColor(1, 1, 1, 1))
	target := newTarget(t, r)
	r.SetRenderState(metadata.RenderStateCullMode, uint32(metadata.CullCW))
	r.SetRenderState(metadata.RenderStateBlendEnable, 0)

	dl := NewDeferredLighting(r)
	defer dl.Destroy()
	_, err := dl.Draw(gb, []Light{{Type: LightDirectional, Color: math.NewColor(1, 1, 1, 1), Direction: math.NewVec3(0, 0, -1)}})
	require.NoError(t, err)

	assert.Equal(uint32(metadata.CullCW), r.GetRenderState(metadata.RenderStateCullMode))
	assert.Equal(uint32(0), r.GetRenderState(metadata.RenderStateBlendEnable))
	assert.Equal(target, r.GetRenderTarget())
	assert.Nil(r.GetProgram())
}

func TestGlowRestoresState(t *testing.T) {
	assert := assert.New(t)
	r := newTestRenderer(t)
	gb := newGBuffer(t, r, math.NewColor(1, 1, 1, 1))
	gb.SetColorTarget(3, newSolidTexture(t, r, metadata.PixelFormatRGBA32F, testSize, math.NewColor(1, 1, 1, 1)), true)
	target := newTarget(t, r)
	require.True(t, r.SetSamplerState(0, metadata.SamplerStateAddressU, uint32(metadata.AddressMirror)))
	require.True(t, r.SetSamplerState(0, metadata.SamplerStateMagFilter, uint32(metadata.FilterPoint)))
	r.SetRenderState(metadata.RenderStateCullMode, uint32(metadata.CullCW))

	g := NewGlow(r)
	defer g.Destroy()
	g.GlowBlurPasses = 2
	drawn, err := g.Draw(gb)
	require.NoError(t, err)
	require.True(t, drawn)

	assert.Nil(r.GetProgram())
	assert.Nil(r.GetTextureBuffer(0))
	assert.Equal(uint32(metadata.AddressMirror), r.GetSamplerState(0, metadata.SamplerStateAddressU))
	assert.Equal(uint32(metadata.FilterPoint), r.GetSamplerState(0, metadata.SamplerStateMagFilter))
	assert.Equal(uint32(metadata.CullCW), r.GetRenderState(metadata.RenderStateCullMode))
	assert.Equal(uint32(0), r.GetRenderState(metadata.RenderStateBlendEnable))
	assert.Equal(target, r.GetRenderTarget())
}

func TestGlowDownscaleNaN(t *testing.T) {
	assert := assert.New(t)
	r := newTestRenderer(t)
	gb := newGBuffer(t, r, math.NewColor(1, 1, 1, 1))
	gb.SetColorTarget(3, newSolidTexture(t, r, metadata.PixelFormatRGBA32F, testSize, math.NewColor(1, 1, 1, 1)), true)
	newTarget(t, r)

	g := NewGlow(r)
	defer g.Destroy()
	g.GlowDownscale = math32.NaN()
	drawn, err := g.Draw(gb)
	require.NoError(t, err)
	assert.True(drawn)
	// NaN falls back to no downscale
	assert.Equal(math.Size{Width: testSize, Height: testSize}, g.GetTextureBuffer().GetSize(0))
}

func TestDeferredLightingRejectsIncompleteGBuffer(t *testing.T) {
	assert := assert.New(t)
	r := newTestRenderer(t)
	quad, err := NewFullscreenQuad(r)
	require.NoError(t, err)
	defer quad.Destroy()

	dl := NewDeferredLighting(r)
	_, err = dl.Draw(NewTextureGBuffer(quad), []Light{{Type: LightDirectional, Color: math.NewColor(1, 1, 1, 1)}})
	assert.Error(err)
	assert.Equal(LightingIdle, dl.GetState())
}

func TestDeferredLightingVariants(t *testing.T) {
	assert := assert.New(t)
	r := newTestRenderer(t)
	gb := newGBuffer(t, r, math.NewColor(1, 1, 1, 1))
	newTarget(t, r)

	dl := NewDeferredLighting(r)
	defer dl.Destroy()

	// RT2 is missing and RT1 alpha unused
	defines := dl.gbufferDefines(gb)
	assert.Contains(defines, "FS_NO_SPECULARCOLOR")
	assert.Contains(defines, "FS_NO_SPECULAREXPONENT")
	assert.Contains(defines, "FS_DISCARD")
	assert.NotContains(defines, "FS_NO_ALBEDO")
	assert.NotContains(defines, "FS_NO_AMBIENTOCCLUSION")

	spot := Light{Type: LightSpot, Cone: true, SmoothCone: true, OuterAngle: 0.5, InnerAngle: 0.6}
	assert.Equal([]string{"FS_SPOT", "FS_SPOT_CONE"}, dl.lightDefines(&spot))
	spot.InnerAngle = 0.2
	assert.Equal([]string{"FS_SPOT", "FS_SPOT_CONE", "FS_SPOT_SMOOTHCONE"}, dl.lightDefines(&spot))

	lights := []Light{
		{Type: LightDirectional, Color: math.NewColor(1, 1, 1, 1), Direction: math.NewVec3(0, 0, -1)},
		{Type: LightPoint, Color: math.NewColor(1, 1, 1, 1), Position: math.NewVec3(0, 0, -4), Radius: 10},
		{Type: LightPoint, Color: math.NewColor(1, 1, 1, 1), Position: math.NewVec3(1, 0, -4), Radius: 10},
	}
	n, err := dl.Draw(gb, lights)
	require.NoError(t, err)
	assert.Equal(3, n)
	// the two point lights share a variant
	assert.Len(dl.programs, 2)
}

func TestGlowWithoutBlurKeepsDownscale(t *testing.T) {
	assert := assert.New(t)
	r := newTestRenderer(t)
	gb := newGBuffer(t, r, math.NewColor(1, 1, 1, 1))
	gb.SetColorTarget(3, newSolidTexture(t, r, metadata.PixelFormatRGBA32F, testSize, math.NewColor(1, 0.5, 0, 0.5)), true)
	target := newTarget(t, r)

	g := NewGlow(r)
	defer g.Destroy()
	g.GlowBlurPasses = 0
	g.GlowDownscale = 1
	g.GlowFactor = 2

	drawn, err := g.Draw(gb)
	require.NoError(t, err)
	assert.True(drawn)
	assert.Equal(0, g.resultIndex)

	glow := g.GetTextureBuffer()
	require.NotNil(t, glow)
	assert.Equal(math.Size{Width: testSize, Height: testSize}, glow.GetSize(0))
	assert.True(math.NewVec4(0.5, 0.25, 0, 1).Compare(texel(t, glow, 1, 1), 1e-4))
	assert.True(math.NewVec4(1, 0.5, 0, 1).Compare(texel(t, target.GetTextureBuffer(), 2, 2), 1e-4))
	assert.Equal(target, r.GetRenderTarget())
}

func TestGlowPingPong(t *testing.T) {
	assert := assert.New(t)
	r := newTestRenderer(t)
	gb := newGBuffer(t, r, math.NewColor(1, 1, 1, 1))
	gb.SetColorTarget(3, newSolidTexture(t, r, metadata.PixelFormatRGBA32F, testSize, math.NewColor(1, 1, 1, 1)), true)
	newTarget(t, r)

	g := NewGlow(r)
	defer g.Destroy()
	g.GlowDownscale = 2

	g.GlowBlurPasses = 1
	_, err := g.Draw(gb)
	require.NoError(t, err)
	assert.Equal(1, g.resultIndex)
	assert.Equal(math.Size{Width: 2, Height: 2}, g.GetTextureBuffer().GetSize(0))
	// a constant image stays constant under the blur
	assert.InDelta(1, texel(t, g.GetTextureBuffer(), 0, 0).X, 1e-3)

	g.GlowBlurPasses = 2
	_, err = g.Draw(gb)
	require.NoError(t, err)
	assert.Equal(0, g.resultIndex)

	// a new size recreates both targets
	first := g.targets[0]
	g.GlowDownscale = 1
	_, err = g.Draw(gb)
	require.NoError(t, err)
	assert.NotSame(first, g.targets[0])
	assert.Equal(metadata.ResourceStateDestroyed, first.State())
}

func TestGlowSkipsWithoutGlowTarget(t *testing.T) {
	assert := assert.New(t)
	r := newTestRenderer(t)
	gb := newGBuffer(t, r, math.NewColor(1, 1, 1, 1))

	g := NewGlow(r)
	drawn, err := g.Draw(gb)
	assert.NoError(err)
	assert.False(drawn)
	assert.Nil(g.GetTextureBuffer())

	// color without intensity
	gb.SetColorTarget(3, newSolidTexture(t, r, metadata.PixelFormatRGBA32F, testSize, math.NewColor(1, 1, 1, 1)), false)
	drawn, err = g.Draw(gb)
	assert.NoError(err)
	assert.False(drawn)
}

func TestGlowRebuildsResultOnDiscardChange(t *testing.T) {
	assert := assert.New(t)
	r := newTestRenderer(t)
	gb := newGBuffer(t, r, math.NewColor(1, 1, 1, 1))
	gb.SetColorTarget(3, newSolidTexture(t, r, metadata.PixelFormatRGBA32F, testSize, math.NewColor(0, 0, 0, 1)), true)
	target := newTarget(t, r)

	g := NewGlow(r)
	defer g.Destroy()
	g.GlowBlurPasses = 0
	g.Flags = GlowNoBlending
	_, err := g.Draw(gb)
	require.NoError(t, err)
	first := g.result
	assert.True(g.resultDiscard)

	g.Flags |= GlowNoDiscard
	_, err = g.Draw(gb)
	require.NoError(t, err)
	assert.NotSame(first, g.result)
	assert.False(g.resultDiscard)
	assert.Equal(math.NewVec4(0, 0, 0, 1), texel(t, target.GetTextureBuffer(), 0, 0))
}

func luminance(t *testing.T, tb renderer.TextureBuffer) float32 {
	data := make([]byte, 4)
	require.True(t, tb.CopyDataTo(0, metadata.PixelFormatR32F, data, 0))
	return pixel.Read(metadata.PixelFormatR32F, data, 1, 0, 0).X
}

func TestLightAdaptation(t *testing.T) {
	assert := assert.New(t)
	r := newTestRenderer(t)

	la, err := NewLightAdaptation(r)
	require.NoError(t, err)
	defer la.Destroy()
	assert.Nil(la.GetTextureBuffer())

	dark := newSolidTexture(t, r, metadata.PixelFormatR32F, 1, math.NewColor(0.2, 0, 0, 1))
	bright := newSolidTexture(t, r, metadata.PixelFormatR32F, 1, math.NewColor(0.8, 0, 0, 1))

	// factor 0 keeps the previous luminance, zero before the first frame
	require.NoError(t, la.CalculateLightAdaptation("", dark, 0))
	assert.InDelta(0, luminance(t, la.GetTextureBuffer()), 1e-6)

	require.NoError(t, la.CalculateLightAdaptation("", dark, 1))
	assert.InDelta(0.2, luminance(t, la.GetTextureBuffer()), 1e-6)

	require.NoError(t, la.CalculateLightAdaptation("", bright, 0))
	assert.InDelta(0.2, luminance(t, la.GetTextureBuffer()), 1e-6)

	require.NoError(t, la.CalculateLightAdaptation("", bright, 0.5))
	assert.InDelta(0.5, luminance(t, la.GetTextureBuffer()), 1e-6)

	// factors above 1 snap to the current luminance
	require.NoError(t, la.CalculateLightAdaptation("", dark, 3))
	assert.InDelta(0.2, luminance(t, la.GetTextureBuffer()), 1e-6)

	assert.Error(la.CalculateLightAdaptation("", nil, 0.5))
}

func TestLightAdaptationFlipsTargets(t *testing.T) {
	assert := assert.New(t)
	r := newTestRenderer(t)
	la, err := NewLightAdaptation(r)
	require.NoError(t, err)
	defer la.Destroy()

	current := newSolidTexture(t, r, metadata.PixelFormatR32F, 1, math.NewColor(1, 0, 0, 1))
	require.NoError(t, la.CalculateLightAdaptation("", current, 1))
	first := la.GetTextureBuffer()
	require.NoError(t, la.CalculateLightAdaptation("", current, 1))
	assert.NotSame(first, la.GetTextureBuffer())
	require.NoError(t, la.CalculateLightAdaptation("", current, 1))
	assert.Same(first, la.GetTextureBuffer())
}

func TestPassProgramReloadsSources(t *testing.T) {
	assert := assert.New(t)
	r := newTestRenderer(t)

	pp, err := newPassProgram(r, renderer.ShaderLanguageSoft, lightingVertexShader, glowResultShader, glowNames, "FS_DISCARD")
	require.NoError(t, err)
	defer pp.destroy()
	assert.Equal(1, pp.fetches)
	assert.NotNil(pp.uniform("GlowFactor"))
	assert.Nil(pp.uniform("UVScale"))
	assert.NotNil(pp.attribute("VertexPosition"))

	lib := r.GetShaderLibrary()
	// other languages and other shaders leave the program alone
	lib.Set("WGSL", glowResultShader, "// changed")
	lib.Set(renderer.ShaderLanguageSoft, glowBlurShader, "#kernel glow_blur_fs\n// changed\n")
	lib.Flush()
	assert.Equal(1, pp.fetches)

	lib.Set(renderer.ShaderLanguageSoft, glowResultShader, "#kernel glow_result_fs\n// changed\n")
	assert.Equal(1, lib.Flush())
	assert.Greater(pp.fetches, 1)
	assert.NotNil(pp.uniform("GlowFactor"))
}
