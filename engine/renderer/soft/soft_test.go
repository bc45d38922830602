package soft

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

func init() {
	RegisterVertexKernel(VertexKernel{
		Name:       "test_vs",
		Attributes: []Attribute{{Name: "VertexPosition", Components: 3}, {Name: "VertexColor", Components: 4}},
		Uniforms:   []Uniform{{Name: "ObjectSpaceToClipSpaceMatrix", Type: metadata.UniformTypeMat4}},
		Build: func(Defines) VertexFunc {
			return func(c *Context, out *Vertex) {
				p := c.Attribute("VertexPosition")
				out.Position = math.NewVec4(p.X, p.Y, p.Z, 1).Transform(c.Mat4("ObjectSpaceToClipSpaceMatrix"))
				out.Varyings[0] = c.Attribute("VertexColor")
			}
		},
	})
	RegisterFragmentKernel(FragmentKernel{
		Name:     "test_fs",
		Uniforms: []Uniform{{Name: "Tint", Type: metadata.UniformTypeFloat4}, {Name: "Texture", Type: metadata.UniformTypeSampler2D}},
		Build: func(d Defines) FragmentFunc {
			textured := d.Has("FS_TEXTURE")
			return func(c *Context, f *Fragment) bool {
				f.Color = f.Varyings[0].Mul(c.Vec4("Tint"))
				if textured {
					f.Color = f.Color.Mul(c.Sample("Texture", math.NewVec2(0.5, 0.5)))
				}
				return f.Color.W > 0
			}
		},
	})
}

func newTestRenderer(t *testing.T, width, height uint32) *renderer.Renderer {
	r, err := renderer.NewRenderer(New(), renderer.Config{
		Backend: metadata.RendererBackendConfig{ApplicationName: "test", Width: width, Height: height},
	})
	require.NoError(t, err)
	t.Cleanup(func() { r.Shutdown() })
	return r
}

func newQuad(t *testing.T, r *renderer.Renderer, color math.Color) *renderer.VertexBuffer {
	vb := r.CreateVertexBuffer()
	require.True(t, vb.AddVertexAttribute(metadata.VertexSemanticPosition, 0, metadata.VertexAttributeFloat3))
	require.True(t, vb.AddVertexAttribute(metadata.VertexSemanticColor, 0, metadata.VertexAttributeFloat4))
	require.NoError(t, vb.Allocate(4))
	require.True(t, vb.Lock(renderer.LockWriteOnly))
	for i, p := range []math.Vec3{{X: -1, Y: -1}, {X: 1, Y: -1}, {X: -1, Y: 1}, {X: 1, Y: 1}} {
		vb.SetPosition(uint32(i), p)
		vb.SetColor(uint32(i), color)
	}
	require.True(t, vb.Unlock())
	return vb
}

func newProgram(t *testing.T, r *renderer.Renderer, arguments string) *renderer.Program {
	l := r.GetShaderLanguage(renderer.ShaderLanguageSoft)
	require.NotNil(t, l)
	vs, err := l.CreateVertexShader("#kernel test_vs\n", "")
	require.NoError(t, err)
	fs, err := l.CreateFragmentShader("", "")
	require.NoError(t, err)
	require.True(t, fs.SetSourceCode("#kernel test_fs\n", "", arguments, ""))
	p, err := l.CreateProgram(vs, fs)
	require.NoError(t, err)
	return p
}

func drawQuad(t *testing.T, r *renderer.Renderer, p *renderer.Program, tint math.Color) {
	require.True(t, r.SetProgram(p))
	require.NotNil(t, p.GetUniform("ObjectSpaceToClipSpaceMatrix"))
	p.GetUniform("ObjectSpaceToClipSpaceMatrix").SetMatrix4(math.NewMat4Identity())
	p.GetUniform("Tint").SetColor(tint)
	require.NoError(t, r.DrawPrimitives(metadata.PrimitiveTriangleStrip, 0, 4))
}

func TestFullscreenQuadCoversEveryPixelOnce(t *testing.T) {
	assert := assert.New(t)
	r := newTestRenderer(t, 7, 5)
	vb := newQuad(t, r, math.NewColor(0.25, 0.5, 1, 1))
	r.SetVertexBuffer(vb)
	p := newProgram(t, r, "")

	r.SetRenderState(metadata.RenderStateCullMode, uint32(metadata.CullNone))
	r.SetRenderState(metadata.RenderStateZEnable, 0)
	r.SetRenderState(metadata.RenderStateBlendEnable, 1)
	r.SetRenderState(metadata.RenderStateSrcBlendFunc, uint32(metadata.BlendOne))
	r.SetRenderState(metadata.RenderStateDstBlendFunc, uint32(metadata.BlendOne))
	assert.NoError(r.Clear(metadata.ClearColor, math.NewColor(0, 0, 0, 0), 1, 0))
	drawQuad(t, r, p, math.ColorWhite)

	img, err := r.ReadBackbuffer()
	require.NoError(t, err)
	data := img.Levels[0].Data
	for i := 0; i < 7*5; i++ {
		assert.Equal([]byte{64, 128, 255, 255}, data[i*4:i*4+4], "pixel %d", i)
	}

	stats := r.Statistics()
	assert.Equal(uint32(1), stats.DrawCalls)
	assert.Equal(uint32(2), stats.Triangles)
	assert.Equal(uint32(1), stats.VertexBuffers)
}

func TestCullModeDropsCounterClockwiseQuad(t *testing.T) {
	assert := assert.New(t)
	r := newTestRenderer(t, 4, 4)
	r.SetVertexBuffer(newQuad(t, r, math.ColorWhite))
	p := newProgram(t, r, "")
	r.SetRenderState(metadata.RenderStateZEnable, 0)

	assert.NoError(r.Clear(metadata.ClearColor, math.ColorBlack, 1, 0))
	drawQuad(t, r, p, math.ColorWhite)
	img, _ := r.ReadBackbuffer()
	assert.Equal(byte(0), img.Levels[0].Data[0])

	r.SetRenderState(metadata.RenderStateCullMode, uint32(metadata.CullCW))
	drawQuad(t, r, p, math.ColorWhite)
	img, _ = r.ReadBackbuffer()
	assert.Equal(byte(255), img.Levels[0].Data[0])
}

func TestDefinesSelectKernelVariant(t *testing.T) {
	assert := assert.New(t)
	r := newTestRenderer(t, 2, 2)
	r.SetVertexBuffer(newQuad(t, r, math.ColorWhite))
	r.SetRenderState(metadata.RenderStateCullMode, uint32(metadata.CullNone))

	img, err := renderer.NewSolidImage(metadata.PixelFormatRGBA8, 2, 2, math.NewColor(0, 1, 0, 1))
	require.NoError(t, err)
	tex, err := r.CreateTextureBuffer2D(img, metadata.PixelFormatUnknown, 0)
	require.NoError(t, err)

	p := newProgram(t, r, "FS_TEXTURE")
	require.True(t, r.SetProgram(p))
	assert.Equal(0, p.GetUniform("Texture").SetTexture(tex))
	drawQuad(t, r, p, math.ColorWhite)

	back, _ := r.ReadBackbuffer()
	assert.Equal([]byte{0, 255, 0, 255}, back.Levels[0].Data[:4])
}

func TestDiscardKeepsTarget(t *testing.T) {
	assert := assert.New(t)
	r := newTestRenderer(t, 2, 2)
	r.SetVertexBuffer(newQuad(t, r, math.ColorWhite))
	r.SetRenderState(metadata.RenderStateCullMode, uint32(metadata.CullNone))
	p := newProgram(t, r, "")

	assert.NoError(r.Clear(metadata.ClearColor, math.NewColor(1, 0, 0, 1), 1, 0))
	drawQuad(t, r, p, math.NewColor(1, 1, 1, 0))
	back, _ := r.ReadBackbuffer()
	assert.Equal([]byte{255, 0, 0, 255}, back.Levels[0].Data[:4])
}

func TestDepthTestAndScissor(t *testing.T) {
	assert := assert.New(t)
	r := newTestRenderer(t, 4, 4)
	r.SetVertexBuffer(newQuad(t, r, math.ColorWhite))
	r.SetRenderState(metadata.RenderStateCullMode, uint32(metadata.CullNone))
	p := newProgram(t, r, "")

	assert.NoError(r.Clear(metadata.ClearColor|metadata.ClearDepth, math.ColorBlack, 0.25, 0))
	// the quad sits at depth 0.5 and fails LessEqual against 0.25
	drawQuad(t, r, p, math.ColorWhite)
	back, _ := r.ReadBackbuffer()
	assert.Equal(byte(0), back.Levels[0].Data[0])

	assert.NoError(r.Clear(metadata.ClearDepth, math.ColorBlack, 1, 0))
	r.SetRenderState(metadata.RenderStateScissorTestEnable, 1)
	r.SetScissorRect(math.Rect{X: 2, Y: 0, Width: 2, Height: 4})
	drawQuad(t, r, p, math.ColorWhite)
	back, _ = r.ReadBackbuffer()
	assert.Equal(byte(0), back.Levels[0].Data[0])
	assert.Equal(byte(255), back.Levels[0].Data[2*4])
}

func TestResetDeviceRestoresResources(t *testing.T) {
	assert := assert.New(t)
	r := newTestRenderer(t, 2, 2)

	img, err := renderer.NewSolidImage(metadata.PixelFormatRGBA8, 8, 4, math.NewColor(0.2, 0.4, 0.6, 1))
	require.NoError(t, err)
	tex, err := r.CreateTextureBuffer2D(img, metadata.PixelFormatUnknown, metadata.TextureFlagMipmaps)
	require.NoError(t, err)
	before, err := tex.Download()
	require.NoError(t, err)

	p := newProgram(t, r, "")
	require.True(t, p.IsLinked())
	uniform := p.GetUniform("Tint")
	type listener struct{ dirty int }
	owner := &listener{}
	core.Subscribe(p.Dirty(), owner, func(l *listener, _ *renderer.Program) { l.dirty++ })

	require.NoError(t, r.ResetDevice())

	after, err := tex.Download()
	require.NoError(t, err)
	assert.Equal(before.Levels, after.Levels)
	assert.Equal(uint32(3), tex.GetNumOfMipmaps())
	assert.Equal(metadata.ResourceStateCreated, tex.State())
	assert.Equal(1, owner.dirty)
	assert.False(uniform.Set4f(1, 1, 1, 1))
	assert.True(p.GetUniform("Tint").Set4f(1, 1, 1, 1))
}

func TestMipChainFor257x131(t *testing.T) {
	assert := assert.New(t)
	r := newTestRenderer(t, 2, 2)
	var logs bytes.Buffer
	core.SetLogOutput(&logs)
	defer core.SetLogOutput(os.Stderr)

	img, err := renderer.NewSolidImage(metadata.PixelFormatRGBA8, 257, 131, math.ColorWhite)
	require.NoError(t, err)
	tex, err := r.CreateTextureBuffer2D(img, metadata.PixelFormatUnknown, metadata.TextureFlagMipmaps)
	require.NoError(t, err)

	assert.Equal(uint32(8), tex.GetNumOfMipmaps())
	last := tex.GetSize(tex.GetNumOfMipmaps())
	assert.Equal(math.Size{Width: 1, Height: 1}, last)
	assert.Contains(logs.String(), "not a power of two")

	logs.Reset()
	explicit := &metadata.Image{Format: metadata.PixelFormatRGBA8, Levels: []metadata.ImageLevel{
		img.Levels[0],
		{Width: 128, Height: 65, Data: make([]byte, 128*65*4)},
	}}
	tex2, err := r.CreateTextureBuffer2D(explicit, metadata.PixelFormatUnknown, metadata.TextureFlagMipmaps)
	require.NoError(t, err)
	assert.Equal(uint32(8), tex2.GetNumOfMipmaps())
	assert.Contains(logs.String(), "Lowest mipmap is 128x65, but should be 1x1! Missing mipmap levels will be white!")

	white := make([]byte, 4)
	assert.True(tex2.CopyDataTo(8, metadata.PixelFormatRGBA8, white, 0))
	assert.Equal([]byte{255, 255, 255, 255}, white)
}

func TestKernelDirective(t *testing.T) {
	assert := assert.New(t)
	name, err := kernelName("// comment\n#kernel lighting\n")
	assert.NoError(err)
	assert.Equal("lighting", name)

	_, err = kernelName("nothing here")
	assert.Error(err)
	_, err = kernelName("#kernel a\n#kernel b\n")
	assert.Error(err)

	_, err = compileKernel(metadata.ShaderStageFragment, "#kernel does_not_exist", nil)
	assert.Error(err)
}

func TestAddressModes(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(1, address(metadata.AddressWrap, 5, 4))
	assert.Equal(3, address(metadata.AddressWrap, -1, 4))
	assert.Equal(3, address(metadata.AddressClamp, 7, 4))
	assert.Equal(0, address(metadata.AddressClamp, -2, 4))
	assert.Equal(3, address(metadata.AddressMirror, 4, 4))
	assert.Equal(0, address(metadata.AddressMirror, -1, 4))
}

func TestLinearSampling(t *testing.T) {
	assert := assert.New(t)
	tex := newTexture(&metadata.TextureDesc{Width: 2, Height: 1, Format: metadata.PixelFormatR32F, Levels: 1})
	tex.write(0, 0, math.NewVec4(0, 0, 0, 1))
	tex.write(1, 0, math.NewVec4(1, 0, 0, 1))

	states := metadata.DefaultSamplerStates()
	states[metadata.SamplerStateAddressU] = uint32(metadata.AddressClamp)
	v := sample(tex, states, math.NewVec2(0.5, 0.5), 0)
	assert.InDelta(0.5, v.X, 1e-5)

	states[metadata.SamplerStateMagFilter] = uint32(metadata.FilterPoint)
	v = sample(tex, states, math.NewVec2(0.75, 0.5), 0)
	assert.InDelta(1.0, v.X, 1e-5)
}
