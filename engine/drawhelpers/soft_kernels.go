package drawhelpers

import (
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/renderer/soft"
)

// Go kernels behind the "Soft" sources in shaders/Soft.
func init() {
	soft.RegisterVertexKernel(soft.VertexKernel{
		Name: vertexShaderName,
		Attributes: []soft.Attribute{
			{Name: "VertexPosition", Components: 3},
			{Name: "VertexTexCoord0", Components: 2},
			{Name: "VertexColor", Components: 4},
		},
		Uniforms: []soft.Uniform{
			{Name: "ObjectSpaceToClipSpaceMatrix", Type: metadata.UniformTypeMat4},
			{Name: "TextureMatrix", Type: metadata.UniformTypeMat4},
		},
		Build: func(soft.Defines) soft.VertexFunc {
			return func(c *soft.Context, out *soft.Vertex) {
				p := c.Attribute("VertexPosition")
				out.Position = math.NewVec4(p.X, p.Y, p.Z, 1).Transform(c.Mat4("ObjectSpaceToClipSpaceMatrix"))
				out.Varyings[0] = c.Attribute("VertexColor")
				uv := c.Attribute("VertexTexCoord0")
				out.Varyings[1] = math.NewVec4(uv.X, uv.Y, 0, 1).Transform(c.Mat4("TextureMatrix"))
			}
		},
	})

	soft.RegisterFragmentKernel(soft.FragmentKernel{
		Name: fragmentShaderName,
		Uniforms: []soft.Uniform{
			{Name: "AlphaReference", Type: metadata.UniformTypeFloat1},
			{Name: "Texture", Type: metadata.UniformTypeSampler2D},
		},
		Build: func(d soft.Defines) soft.FragmentFunc {
			textured := d.Has("FS_TEXTURE")
			alphaTest := textured && d.Has("FS_ALPHATEST")
			return func(c *soft.Context, f *soft.Fragment) bool {
				color := f.Varyings[0]
				if textured {
					color = color.Mul(c.Sample("Texture", math.NewVec2(f.Varyings[1].X, f.Varyings[1].Y)))
					if alphaTest && color.W < c.Float("AlphaReference") {
						return false
					}
				}
				f.Color = color
				return true
			}
		},
	})
}
