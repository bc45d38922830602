package compositing

import (
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/renderer/soft"
)

// Go kernels behind the "Soft" sources in shaders/Soft.
func init() {
	soft.RegisterVertexKernel(soft.VertexKernel{
		Name:       "fullscreen_vs",
		Attributes: []soft.Attribute{{Name: "VertexPosition", Components: 3}},
		Build: func(soft.Defines) soft.VertexFunc {
			return func(c *soft.Context, out *soft.Vertex) {
				p := c.Attribute("VertexPosition")
				out.Position = math.NewVec4(p.X, p.Y, 0, 1)
				// texture coordinates with the origin at the top left
				out.Varyings[0] = math.NewVec4(p.X*0.5+0.5, 0.5-p.Y*0.5, 0, 0)
			}
		},
	})

	soft.RegisterFragmentKernel(soft.FragmentKernel{
		Name: "deferred_lighting_fs",
		Uniforms: []soft.Uniform{
			{Name: "LightColor", Type: metadata.UniformTypeFloat3},
			{Name: "InvFocalLen", Type: metadata.UniformTypeFloat2},
			{Name: "LightDirection", Type: metadata.UniformTypeFloat3},
			{Name: "LightPosition", Type: metadata.UniformTypeFloat3},
			{Name: "LightRadius", Type: metadata.UniformTypeFloat1},
			{Name: "ViewSpaceToCubeMapSpace", Type: metadata.UniformTypeMat3},
			{Name: "ViewSpaceToSpotMapSpace", Type: metadata.UniformTypeMat4},
			{Name: "SpotConeCos", Type: metadata.UniformTypeFloat2},
			{Name: "ViewSpaceToShadowMapSpace", Type: metadata.UniformTypeMat4},
			{Name: "ViewSpaceToShadowCubeMapSpace", Type: metadata.UniformTypeMat3},
			{Name: "InvLightRadius", Type: metadata.UniformTypeFloat1},
			{Name: "TexelSize", Type: metadata.UniformTypeFloat1},
			{Name: "RenderTargetTexture0", Type: metadata.UniformTypeSamplerRect},
			{Name: "RenderTargetTexture1", Type: metadata.UniformTypeSamplerRect},
			{Name: "RenderTargetTexture2", Type: metadata.UniformTypeSamplerRect},
			{Name: "ProjectivePointCubeMap", Type: metadata.UniformTypeSampler2D},
			{Name: "ProjectiveSpotMap", Type: metadata.UniformTypeSampler2D},
			{Name: "ShadowMap", Type: metadata.UniformTypeSampler2D},
		},
		Build: func(d soft.Defines) soft.FragmentFunc {
			s := newLightingShader(d.Has)
			return func(c *soft.Context, f *soft.Fragment) bool {
				color, write := s.shade(c, math.NewVec2(f.Varyings[0].X, f.Varyings[0].Y))
				f.Color = color
				return write
			}
		},
	})

	soft.RegisterFragmentKernel(soft.FragmentKernel{
		Name: "glow_downscale_fs",
		Uniforms: []soft.Uniform{
			{Name: "TextureSize", Type: metadata.UniformTypeInt2},
			{Name: "Texture", Type: metadata.UniformTypeSamplerRect},
		},
		Build: func(soft.Defines) soft.FragmentFunc {
			return func(c *soft.Context, f *soft.Fragment) bool {
				uv := math.NewVec2(f.Varyings[0].X, f.Varyings[0].Y)
				f.Color = glowDownscale(c, uv, c.Vec2("TextureSize"))
				return true
			}
		},
	})

	soft.RegisterFragmentKernel(soft.FragmentKernel{
		Name: "glow_blur_fs",
		Uniforms: []soft.Uniform{
			{Name: "TextureSize", Type: metadata.UniformTypeInt2},
			{Name: "UVScale", Type: metadata.UniformTypeFloat2},
			{Name: "Texture", Type: metadata.UniformTypeSamplerRect},
		},
		Build: func(soft.Defines) soft.FragmentFunc {
			return func(c *soft.Context, f *soft.Fragment) bool {
				uv := math.NewVec2(f.Varyings[0].X, f.Varyings[0].Y)
				f.Color = glowBlur(c, uv, c.Vec2("TextureSize"), c.Vec2("UVScale"))
				return true
			}
		},
	})

	soft.RegisterFragmentKernel(soft.FragmentKernel{
		Name: "glow_result_fs",
		Uniforms: []soft.Uniform{
			{Name: "TextureSize", Type: metadata.UniformTypeInt2},
			{Name: "GlowFactor", Type: metadata.UniformTypeFloat1},
			{Name: "Texture", Type: metadata.UniformTypeSamplerRect},
		},
		Build: func(d soft.Defines) soft.FragmentFunc {
			discard := d.Has("FS_DISCARD")
			return func(c *soft.Context, f *soft.Fragment) bool {
				uv := math.NewVec2(f.Varyings[0].X, f.Varyings[0].Y)
				glow := c.Sample("Texture", uv).ToVec3().MulScalar(c.Float("GlowFactor"))
				if discard && glow.X <= 0 && glow.Y <= 0 && glow.Z <= 0 {
					return false
				}
				f.Color = glow.ToVec4(1)
				return true
			}
		},
	})

	soft.RegisterFragmentKernel(soft.FragmentKernel{
		Name: "light_adaptation_fs",
		Uniforms: []soft.Uniform{
			{Name: "Factor", Type: metadata.UniformTypeFloat1},
			{Name: "PreviousTexture", Type: metadata.UniformTypeSampler2D},
			{Name: "CurrentTexture", Type: metadata.UniformTypeSampler2D},
		},
		Build: func(soft.Defines) soft.FragmentFunc {
			return func(c *soft.Context, f *soft.Fragment) bool {
				center := math.NewVec2(0.5, 0.5)
				previous := c.Sample("PreviousTexture", center).X
				current := c.Sample("CurrentTexture", center).X
				v := math.Mix(previous, current, c.Float("Factor"))
				f.Color = math.NewVec4(v, v, v, v)
				return true
			}
		},
	})
}

type sampler interface {
	Sample(name string, uv math.Vec2) math.Vec4
}

// glowDownscale averages four bilinear taps of the source around uv and
// scales the color by the glow intensity in alpha.
func glowDownscale(s sampler, uv, size math.Vec2) math.Vec4 {
	if size.X <= 0 || size.Y <= 0 {
		return math.Vec4{}
	}
	tx, ty := 0.5/size.X, 0.5/size.Y
	sum := s.Sample("Texture", math.NewVec2(uv.X-tx, uv.Y-ty)).
		Add(s.Sample("Texture", math.NewVec2(uv.X+tx, uv.Y-ty))).
		Add(s.Sample("Texture", math.NewVec2(uv.X-tx, uv.Y+ty))).
		Add(s.Sample("Texture", math.NewVec2(uv.X+tx, uv.Y+ty))).
		MulScalar(0.25)
	return sum.ToVec3().MulScalar(sum.W).ToVec4(1)
}

var blurWeights = [5]float32{0.2270270270, 0.1945945946, 0.1216216216, 0.0540540541, 0.0162162162}

// glowBlur is one direction of a separable 9 tap Gaussian.
func glowBlur(s sampler, uv, size, direction math.Vec2) math.Vec4 {
	if size.X <= 0 || size.Y <= 0 {
		return math.Vec4{}
	}
	step := math.NewVec2(direction.X/size.X, direction.Y/size.Y)
	sum := s.Sample("Texture", uv).MulScalar(blurWeights[0])
	for i := 1; i < len(blurWeights); i++ {
		o := step.MulScalar(float32(i))
		sum = sum.Add(s.Sample("Texture", uv.Add(o)).MulScalar(blurWeights[i]))
		sum = sum.Add(s.Sample("Texture", uv.Sub(o)).MulScalar(blurWeights[i]))
	}
	return sum
}

// lightingEnv is what the lighting shader reads from a draw.
type lightingEnv interface {
	sampler
	Float(name string) float32
	Vec2(name string) math.Vec2
	Vec3(name string) math.Vec3
	Mat3(name string) math.Mat3
	Mat4(name string) math.Mat4
}

/**
 * @brief The deferred lighting shader for one define set.
 */
type lightingShader struct {
	directional        bool
	spot               bool
	cone               bool
	smoothCone         bool
	projectivePoint    bool
	projectiveSpot     bool
	shadow             bool
	softShadow         bool
	discard            bool
	noAlbedo           bool
	noSpecular         bool
	noSpecularColor    bool
	noSpecularExponent bool
	noAmbientOcclusion bool
	gammaCorrection    bool
}

func newLightingShader(has func(string) bool) *lightingShader {
	return &lightingShader{
		directional:        has("FS_DIRECTIONAL"),
		spot:               has("FS_SPOT"),
		cone:               has("FS_SPOT_CONE"),
		smoothCone:         has("FS_SPOT_SMOOTHCONE"),
		projectivePoint:    has("FS_PROJECTIVE_POINT"),
		projectiveSpot:     has("FS_PROJECTIVE_SPOT"),
		shadow:             has("FS_SHADOWMAPPING"),
		softShadow:         has("FS_SOFTSHADOWMAPPING"),
		discard:            has("FS_DISCARD"),
		noAlbedo:           has("FS_NO_ALBEDO"),
		noSpecular:         has("FS_NO_SPECULAR"),
		noSpecularColor:    has("FS_NO_SPECULARCOLOR"),
		noSpecularExponent: has("FS_NO_SPECULAREXPONENT"),
		noAmbientOcclusion: has("FS_NO_AMBIENTOCCLUSION"),
		gammaCorrection:    has("FS_GAMMACORRECTION"),
	}
}

// unlit is the early out result: discard, or black when discarding is off.
func (s *lightingShader) unlit() (math.Vec4, bool) {
	return math.Vec4{}, !s.discard
}

// surface lights the G-buffer texel at uv with light coming from direction l.
func (s *lightingShader) surface(env lightingEnv, uv math.Vec2, rt1 math.Vec4, l, lightColor, position math.Vec3) (math.Vec3, float32) {
	normal := DecodeNormal(math.NewVec2(rt1.X, rt1.Y))
	rt0 := env.Sample("RenderTargetTexture0", uv)
	rt2 := env.Sample("RenderTargetTexture2", uv)
	if s.noAlbedo {
		rt0.X, rt0.Y, rt0.Z = 1, 1, 1
	}
	if s.noSpecularColor {
		rt2.X, rt2.Y, rt2.Z = 1, 1, 1
	}
	if s.noSpecularExponent {
		rt2.W = DefaultSpecularExponent
	}
	var specular *math.Vec3
	if !s.noSpecular {
		c := rt2.ToVec3()
		specular = &c
	}
	view := position.Normalized().Negate()
	return BlinnPhong(l, lightColor, view, normal, rt0.ToVec3(), specular, rt2.W), rt0.W
}

func (s *lightingShader) gamma(c math.Vec3) math.Vec3 {
	if s.gammaCorrection {
		return ToLinear(c)
	}
	return c
}

/**
 * @brief Shades one pixel.
 * @param uv Texture coordinate with the origin at the top left.
 * @returns The color, and false if the pixel is discarded.
 */
func (s *lightingShader) shade(env lightingEnv, uv math.Vec2) (math.Vec4, bool) {
	rt1 := env.Sample("RenderTargetTexture1", uv)
	position := UVToEye(math.NewVec2(uv.X, 1-uv.Y), rt1.Z, env.Vec2("InvFocalLen"))
	lightColor := env.Vec3("LightColor")

	var color math.Vec3
	var ao float32
	shadow := float32(1)

	if s.directional {
		color, ao = s.surface(env, uv, rt1, env.Vec3("LightDirection"), lightColor, position)
	} else {
		lightPosition := env.Vec3("LightPosition")
		lightVector := lightPosition.Sub(position)
		distance := lightVector.Length()
		radius := env.Float("LightRadius")
		if distance > radius {
			return s.unlit()
		}

		if s.shadow {
			if s.spot {
				shadow = s.spotShadow(env, position)
			} else {
				shadow = s.cubeShadow(env, lightVector)
			}
			if shadow <= 0 {
				return s.unlit()
			}
		}

		if s.projectivePoint {
			dir := lightVector.Negate().TransformMat3(env.Mat3("ViewSpaceToCubeMapSpace"))
			texel := s.gamma(env.Sample("ProjectivePointCubeMap", CubeStripUV(dir)).ToVec3())
			lightColor = texel.Mul(lightColor)
		} else if s.spot {
			if s.projectiveSpot {
				p := position.ToVec4(1).Transform(env.Mat4("ViewSpaceToSpotMapSpace"))
				// no back projection
				if p.W <= 0 {
					return s.unlit()
				}
				texel := s.gamma(env.Sample("ProjectiveSpotMap", math.NewVec2(p.X/p.W, p.Y/p.W)).ToVec3())
				lightColor = lightColor.Mul(texel)
			}
			if s.cone {
				current := position.Sub(lightPosition).Normalized().Dot(env.Vec3("LightDirection"))
				if s.smoothCone {
					cos := env.Vec2("SpotConeCos")
					attenuation := math.Smoothstep(cos.X, cos.Y, current)
					if attenuation <= 0 {
						return s.unlit()
					}
					lightColor = lightColor.MulScalar(attenuation)
				} else if env.Float("SpotConeCos") > current {
					return s.unlit()
				}
			}
		}

		color, ao = s.surface(env, uv, rt1, lightVector.Normalized(), lightColor, position)
		color = color.MulScalar(Attenuation(distance, radius))
	}

	if s.noAmbientOcclusion {
		color = color.MulScalar(shadow)
	} else {
		color = color.MulScalar(CombineOcclusion(ao, shadow))
	}
	return color.ToVec4(1), true
}

// spotShadow compares the projected depth against the shadow map, with
// four taps when soft shadows are on.
func (s *lightingShader) spotShadow(env lightingEnv, position math.Vec3) float32 {
	p := position.ToVec4(1).Transform(env.Mat4("ViewSpaceToShadowMapSpace"))
	if p.W <= 0 {
		return 0
	}
	tap := func(ox, oy float32) float32 {
		uv := math.NewVec2((p.X+p.W*ox)/p.W, (p.Y+p.W*oy)/p.W)
		if p.Z/p.W <= env.Sample("ShadowMap", uv).X {
			return 1
		}
		return 0
	}
	if !s.softShadow {
		return tap(0, 0)
	}
	t := env.Float("TexelSize")
	return (tap(-t, t) + tap(t, t) + tap(-t, -t) + tap(t, -t)) * 0.25
}

// cubeShadow compares the normalized light distance against the packed
// distances of a cube strip shadow map, with six taps when soft shadows are on.
func (s *lightingShader) cubeShadow(env lightingEnv, lightVector math.Vec3) float32 {
	v := lightVector.Negate().MulScalar(env.Float("InvLightRadius")).TransformMat3(env.Mat3("ViewSpaceToShadowCubeMapSpace"))
	length := v.Length()
	tap := func(o math.Vec3) float32 {
		if length < UnpackDepth(env.Sample("ShadowMap", CubeStripUV(v.Add(o)))) {
			return 1
		}
		return 0
	}
	if !s.softShadow {
		return tap(math.Vec3{})
	}
	t := env.Float("TexelSize")
	offsets := [6]math.Vec3{
		{X: t, Y: t, Z: t},
		{X: -t, Y: -t, Z: -t},
		{X: t, Y: -t, Z: -t},
		{X: -t, Y: t, Z: -t},
		{X: t, Y: -t, Z: t},
		{X: -t, Y: t, Z: t},
	}
	var sum float32
	for _, o := range offsets {
		sum += tap(o) / 6
	}
	return math.Saturate(sum)
}
