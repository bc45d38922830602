package drawhelpers

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
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

const testSize = 8

func newTestHelpers(t *testing.T) (*renderer.Renderer, *DrawHelpers, *renderer.SurfaceTextureBuffer) {
	r, err := renderer.NewRenderer(soft.New(), renderer.Config{
		Backend: metadata.RendererBackendConfig{ApplicationName: "drawhelpers", Width: testSize, Height: testSize},
	})
	require.NoError(t, err)
	t.Cleanup(func() { r.Shutdown() })

	s, err := r.CreateSurfaceTextureBufferRectangle(math.Size{Width: testSize, Height: testSize}, metadata.PixelFormatRGBA32F, metadata.MultisampleNone)
	require.NoError(t, err)
	require.True(t, r.SetRenderTarget(s))
	require.NoError(t, r.Clear(metadata.ClearColor, math.Color{}, 1, 0))
	r.SetRenderState(metadata.RenderStateZEnable, 0)

	d, err := New(r)
	require.NoError(t, err)
	t.Cleanup(d.Destroy)
	return r, d, s
}

func texel(t *testing.T, s *renderer.SurfaceTextureBuffer, x, y uint32) math.Vec4 {
	tb := s.GetTextureBuffer()
	size := tb.GetSize(0)
	data := make([]byte, metadata.PixelFormatRGBA32F.NumOfBytes(size.Width, size.Height))
	require.True(t, tb.CopyDataTo(0, metadata.PixelFormatRGBA32F, data, 0))
	return pixel.Read(metadata.PixelFormatRGBA32F, data, size.Width, x, y)
}

// newCheckerTexture returns a 2x2 texture: red, green on top and blue,
// white at the bottom. The alpha of the left column is leftAlpha.
func newCheckerTexture(t *testing.T, r *renderer.Renderer, leftAlpha uint8) renderer.TextureBuffer {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{255, 0, 0, leftAlpha})
	img.SetNRGBA(1, 0, color.NRGBA{0, 255, 0, 255})
	img.SetNRGBA(0, 1, color.NRGBA{0, 0, 255, leftAlpha})
	img.SetNRGBA(1, 1, color.NRGBA{255, 255, 255, 255})
	tb, err := r.CreateTextureBuffer2D(renderer.NewImageFromGo(img), metadata.PixelFormatRGBA8, 0)
	require.NoError(t, err)
	return tb
}

func pointSampling() ImageOptions {
	opts := DefaultImageOptions()
	opts.SamplerStates[metadata.SamplerStateMagFilter] = uint32(metadata.FilterPoint)
	opts.SamplerStates[metadata.SamplerStateMinFilter] = uint32(metadata.FilterPoint)
	return opts
}

var (
	red   = math.NewVec4(1, 0, 0, 1)
	green = math.NewVec4(0, 1, 0, 1)
	blue  = math.NewVec4(0, 0, 1, 1)
	white = math.NewVec4(1, 1, 1, 1)
)

func TestBegin2DMode(t *testing.T) {
	assert := assert.New(t)
	r, d, _ := newTestHelpers(t)

	projection := math.NewMat4Perspective(1, 1, 0.1, 100)
	r.SetTransformState(metadata.TransformStateProjection, projection)

	assert.False(d.Is2DMode())
	d.Begin2DMode(0, 0, 0, 0)
	assert.True(d.Is2DMode())
	x1, y1, x2, y2 := d.Get2DVirtualScreen()
	assert.Equal([4]float32{0, 0, testSize, testSize}, [4]float32{x1, y1, x2, y2})

	// the top left corner maps to the top left of clip space
	p := math.NewVec4(0, 0, 0, 1).Transform(r.GetTransformState(metadata.TransformStateProjection))
	assert.InDelta(-1, p.X, 1e-6)
	assert.InDelta(1, p.Y, 1e-6)

	d.End2DMode()
	assert.False(d.Is2DMode())
	assert.Equal(projection, r.GetTransformState(metadata.TransformStateProjection))
	// a second End2DMode is a no-op
	d.End2DMode()
}

func TestDrawQuad(t *testing.T) {
	assert := assert.New(t)
	r, d, target := newTestHelpers(t)

	d.Begin2DMode(0, 0, 0, 0)
	defer d.End2DMode()
	r.SetRenderState(metadata.RenderStateCullMode, uint32(metadata.CullCW))

	require.NoError(t, d.DrawQuad(math.NewColor(1, 0, 0, 1), math.NewVec2(0, 0), math.NewVec2(4, 4), 0))
	assert.True(red.Compare(texel(t, target, 0, 0), 1e-5))
	assert.True(red.Compare(texel(t, target, 3, 3), 1e-5))
	assert.Equal(math.Vec4{}, texel(t, target, 5, 5))
	assert.Equal(math.Vec4{}, texel(t, target, 1, 6))

	// the draw leaves the render states and the program alone
	assert.Equal(uint32(metadata.CullCW), r.GetRenderState(metadata.RenderStateCullMode))
	assert.Nil(r.GetProgram())
	assert.Equal(math.NewMat4Identity(), r.GetTransformState(metadata.TransformStateWorld))
}

func TestDrawLine(t *testing.T) {
	assert := assert.New(t)
	r, d, target := newTestHelpers(t)

	d.Begin2DMode(0, 0, 0, 0)
	defer d.End2DMode()

	require.NoError(t, d.DrawLine(math.NewColor(0, 1, 0, 1), math.NewVec2(0, 4.5), math.NewVec2(8, 4.5), 1))
	assert.True(green.Compare(texel(t, target, 3, 4), 1e-5))
	assert.Equal(math.Vec4{}, texel(t, target, 3, 1))
	assert.Equal(float32(1), metadata.StateFloat32(r.GetRenderState(metadata.RenderStateLineWidth)))
}

func TestDrawQuad3D(t *testing.T) {
	assert := assert.New(t)
	_, d, target := newTestHelpers(t)

	// clip space directly, the right half of the target
	err := d.DrawQuad3D(math.NewColor(0, 0, 1, 1),
		math.NewVec3(0, -1, 0), math.NewVec3(1, -1, 0), math.NewVec3(0, 1, 0), math.NewVec3(1, 1, 0),
		math.NewMat4Identity(), 0)
	require.NoError(t, err)
	assert.True(blue.Compare(texel(t, target, 6, 2), 1e-5))
	assert.Equal(math.Vec4{}, texel(t, target, 1, 2))
}

func TestGradientColors(t *testing.T) {
	assert := assert.New(t)

	black := math.NewColor(0, 0, 0, 1)
	whiteColor := math.NewColor(1, 1, 1, 1)

	// angle 0 runs from left to right
	c := gradientColors(black, whiteColor, 0)
	assert.Equal(black, c[0])
	assert.Equal(whiteColor, c[1])
	assert.Equal(black, c[2])
	assert.Equal(whiteColor, c[3])

	// a quarter turn runs from top to bottom
	c = gradientColors(black, whiteColor, math32.Pi/2)
	assert.InDelta(1, c[0].R, 1e-5)
	assert.InDelta(1, c[1].R, 1e-5)
	assert.InDelta(0, c[2].R, 1e-5)
	assert.InDelta(0, c[3].R, 1e-5)

	// the diagonal is scaled back into range
	c = gradientColors(whiteColor, whiteColor, math32.Pi/4)
	for _, corner := range c {
		assert.InDelta(1, corner.R, 1e-5)
		assert.LessOrEqual(corner.A, float32(1))
	}
}

func TestDrawGradientQuad(t *testing.T) {
	assert := assert.New(t)
	_, d, target := newTestHelpers(t)

	d.Begin2DMode(0, 0, 0, 0)
	defer d.End2DMode()

	require.NoError(t, d.DrawGradientQuad(math.NewColor(0, 0, 0, 1), math.NewColor(1, 1, 1, 1), 0, math.NewVec2(0, 0), math.NewVec2(testSize, testSize)))
	left, right := texel(t, target, 0, 4), texel(t, target, 7, 4)
	assert.Less(left.X, float32(0.2))
	assert.Greater(right.X, float32(0.8))
	assert.InDelta(left.X, texel(t, target, 0, 0).X, 1e-5)
}

func TestDrawImage(t *testing.T) {
	assert := assert.New(t)
	_, d, target := newTestHelpers(t)

	d.Begin2DMode(0, 0, 0, 0)
	defer d.End2DMode()

	tex := newCheckerTexture(t, d.renderer, 255)
	require.NoError(t, d.DrawImage(tex, math.NewVec2(0, 0), math.NewVec2(testSize, testSize), pointSampling()))
	assert.True(red.Compare(texel(t, target, 1, 1), 1e-5))
	assert.True(green.Compare(texel(t, target, 6, 1), 1e-5))
	assert.True(blue.Compare(texel(t, target, 1, 6), 1e-5))
	assert.True(white.Compare(texel(t, target, 6, 6), 1e-5))

	// a zero size draws the texture at its own size, UVs pick the bottom row
	require.NoError(t, d.renderer.Clear(metadata.ClearColor, math.Color{}, 1, 0))
	opts := pointSampling()
	opts.UV = math.NewVec2(0, 0.5)
	opts.UVSize = math.NewVec2(1, 0.5)
	require.NoError(t, d.DrawImage(tex, math.NewVec2(0, 0), math.Vec2{}, opts))
	assert.True(blue.Compare(texel(t, target, 0, 0), 1e-5))
	assert.True(white.Compare(texel(t, target, 1, 1), 1e-5))
	assert.Equal(math.Vec4{}, texel(t, target, 2, 2))

	assert.Error(d.DrawImage(nil, math.Vec2{}, math.Vec2{}, opts))
}

func TestDrawImageAlphaTest(t *testing.T) {
	assert := assert.New(t)
	r, d, target := newTestHelpers(t)

	d.Begin2DMode(0, 0, 0, 0)
	defer d.End2DMode()

	tex := newCheckerTexture(t, r, 51)
	opts := pointSampling()
	opts.AlphaReference = 0.5
	require.NoError(t, d.DrawImage(tex, math.NewVec2(0, 0), math.NewVec2(testSize, testSize), opts))
	assert.Equal(math.Vec4{}, texel(t, target, 1, 1))
	assert.True(green.Compare(texel(t, target, 6, 1), 1e-5))

	assert.Equal(uint32(0), r.GetRenderState(metadata.RenderStateAlphaTestEnable))
	assert.Equal(float32(1), metadata.StateFloat32(r.GetRenderState(metadata.RenderStateAlphaTestReference)))
}

const testFont = `info face="Test" size=4 bold=0 italic=0 charset="" unicode=1 stretchH=100 smooth=0 aa=1 padding=0,0,0,0 spacing=0,0 outline=0
common lineHeight=4 base=3 scaleW=4 scaleH=4 pages=1 packed=0 alphaChnl=0 redChnl=0 greenChnl=0 blueChnl=0
page id=0 file="test_0.png"
chars count=1
char id=65   x=0     y=0     width=2     height=4     xoffset=0     yoffset=0     xadvance=2     page=0  chnl=15
kernings count=1
kerning first=65  second=65  amount=1
`

func writeTestFont(t *testing.T) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.fnt")
	require.NoError(t, os.WriteFile(path, []byte(testFont), 0o644))

	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	f, err := os.Create(filepath.Join(dir, "test_0.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestDrawText(t *testing.T) {
	assert := assert.New(t)
	r, d, target := newTestHelpers(t)

	font, err := LoadFont(r, writeTestFont(t))
	require.NoError(t, err)
	defer font.Destroy()

	assert.Equal("Test", font.Face)
	assert.Equal(float32(1), font.Kerning('A', 'A'))
	assert.Equal(math.NewVec2(5, 4), font.MeasureText("AA"))
	assert.Equal(math.NewVec2(2, 8), font.MeasureText("A\nA"))
	// unknown characters take no space
	assert.Equal(math.NewVec2(2, 4), font.MeasureText("A?"))

	d.Begin2DMode(0, 0, 0, 0)
	defer d.End2DMode()
	require.NoError(t, d.DrawText(font, "AA", math.NewColor(1, 1, 1, 1), math.NewVec2(0, 0), 0))

	assert.True(white.Compare(texel(t, target, 0, 1), 1e-5))
	assert.True(white.Compare(texel(t, target, 1, 3), 1e-5))
	// the kerning gap between the two glyphs
	assert.Equal(math.Vec4{}, texel(t, target, 2, 1))
	assert.True(white.Compare(texel(t, target, 3, 1), 1e-5))
	assert.Equal(math.Vec4{}, texel(t, target, 1, 5))
	assert.Equal(uint32(0), r.GetRenderState(metadata.RenderStateBlendEnable))

	assert.Error(d.DrawText(nil, "A", math.ColorWhite, math.Vec2{}, 0))
}

func TestLoadFontMissing(t *testing.T) {
	r, _, _ := newTestHelpers(t)
	_, err := LoadFont(r, filepath.Join(t.TempDir(), "missing.fnt"))
	assert.Error(t, err)
}
