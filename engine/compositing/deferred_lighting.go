package compositing

import (
	"sort"
	"strings"

	"github.com/chewxy/math32"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

type LightType int

const (
	LightDirectional LightType = iota
	LightPoint
	LightSpot
)

func (t LightType) String() string {
	switch t {
	case LightDirectional:
		return "directional"
	case LightPoint:
		return "point"
	case LightSpot:
		return "spot"
	}
	return "unknown"
}

/**
 * @brief A light in view space.
 */
type Light struct {
	Type  LightType
	Color math.Color
	/** @brief Position of point and spot lights. */
	Position math.Vec3
	/** @brief Normalized direction the light travels in, for directional and spot lights. */
	Direction math.Vec3
	/** @brief Range of point and spot lights, the light fades out linearly towards it. */
	Radius float32

	/** @brief Limits a spot light to a cone of OuterAngle radians around its direction. */
	Cone bool
	/** @brief Fades the cone out between InnerAngle and OuterAngle. */
	SmoothCone bool
	OuterAngle float32
	InnerAngle float32

	/** @brief Colors the light. A cube strip for point lights, a 2D map for spot lights. */
	ProjectiveMap renderer.TextureBuffer
	/**
	 * @brief View space to projective map space. Point lights use the upper
	 * 3x3 block, spot lights map to homogeneous texture coordinates.
	 */
	ViewSpaceToProjectiveSpace math.Mat4

	/**
	 * @brief Depth map of the light. Spot lights use an R32F map of projected
	 * depth, point lights a cube strip of packed distances divided by Radius.
	 */
	ShadowMap              renderer.TextureBuffer
	ViewSpaceToShadowSpace math.Mat4
	SoftShadow             bool
	ShadowTexelSize        float32
}

// LightingFlag tunes the deferred lighting pass.
type LightingFlag uint32

const (
	LightingNoShadow LightingFlag = 1 << iota
	LightingNoProjective
	// LightingNoDiscard writes black instead of discarding unlit pixels.
	LightingNoDiscard
	LightingNoAlbedo
	LightingNoSpecular
	LightingNoSpecularColor
	LightingNoSpecularExponent
	LightingNoAmbientOcclusion
	// LightingGammaCorrection converts projective textures to linear space.
	LightingGammaCorrection
)

func (f LightingFlag) Has(flag LightingFlag) bool {
	return f&flag != 0
}

type LightingState int

const (
	LightingIdle LightingState = iota
	LightingGBufferReady
	LightingLit
)

func (s LightingState) String() string {
	switch s {
	case LightingIdle:
		return "Idle"
	case LightingGBufferReady:
		return "GBufferReady"
	case LightingLit:
		return "Lit"
	}
	return "Invalid"
}

const (
	lightingVertexShader   = "fullscreen_vs"
	lightingFragmentShader = "deferred_lighting_fs"
)

var lightingNames = []string{
	"VertexPosition",
	"LightDirection",
	"LightPosition",
	"LightRadius",
	"ProjectivePointCubeMap",
	"ViewSpaceToCubeMapSpace",
	"ProjectiveSpotMap",
	"ViewSpaceToSpotMapSpace",
	"SpotConeCos",
	"ShadowMap",
	"ViewSpaceToShadowMapSpace",
	"ViewSpaceToShadowCubeMapSpace",
	"InvLightRadius",
	"TexelSize",
	"LightColor",
	"InvFocalLen",
	"RenderTargetTexture0",
	"RenderTargetTexture1",
	"RenderTargetTexture2",
}

type lightingKey struct {
	language string
	defines  string
}

/**
 * @brief Accumulates lights over a G-buffer into the current render target
 * with additive blending.
 *
 * Every light selects a shader variant by feature defines. Variants are
 * built on first use and cached per shader language and define set.
 */
type DeferredLighting struct {
	/** @brief Shader language to use, empty for the renderer default. */
	ShaderLanguage string
	Flags          LightingFlag
	/** @brief Reciprocal focal lengths of the camera that filled the G-buffer, see InvFocalLen. */
	InvFocalLen math.Vec2

	renderer *renderer.Renderer
	state    LightingState
	programs map[lightingKey]*passProgram
}

func NewDeferredLighting(r *renderer.Renderer) *DeferredLighting {
	return &DeferredLighting{
		renderer:    r,
		InvFocalLen: InvFocalLen(math.DegToRad(90), 1),
		programs:    make(map[lightingKey]*passProgram),
	}
}

func (dl *DeferredLighting) GetState() LightingState {
	return dl.state
}

// Reset ends the frame and returns to Idle.
func (dl *DeferredLighting) Reset() {
	dl.state = LightingIdle
}

func (dl *DeferredLighting) Destroy() {
	for k, pp := range dl.programs {
		if pp != nil {
			pp.destroy()
		}
		delete(dl.programs, k)
	}
	dl.state = LightingIdle
}

// gbufferDefines selects fallbacks for G-buffer channels the provider leaves empty.
func (dl *DeferredLighting) gbufferDefines(gb GBuffer) []string {
	var defines []string
	if dl.Flags.Has(LightingNoAlbedo) || !gb.IsColorTargetUsed(0) {
		defines = append(defines, "FS_NO_ALBEDO")
	}
	if dl.Flags.Has(LightingNoAmbientOcclusion) || !gb.IsColorTargetAlphaUsed(0) {
		defines = append(defines, "FS_NO_AMBIENTOCCLUSION")
	}
	if dl.Flags.Has(LightingNoSpecular) {
		defines = append(defines, "FS_NO_SPECULAR")
	} else {
		if dl.Flags.Has(LightingNoSpecularColor) || !gb.IsColorTargetUsed(2) {
			defines = append(defines, "FS_NO_SPECULARCOLOR")
		}
		if dl.Flags.Has(LightingNoSpecularExponent) || !gb.IsColorTargetAlphaUsed(2) {
			defines = append(defines, "FS_NO_SPECULAREXPONENT")
		}
	}
	if !dl.Flags.Has(LightingNoDiscard) {
		defines = append(defines, "FS_DISCARD")
	}
	if dl.Flags.Has(LightingGammaCorrection) {
		defines = append(defines, "FS_GAMMACORRECTION")
	}
	return defines
}

// lightDefines selects the light features of the variant.
func (dl *DeferredLighting) lightDefines(l *Light) []string {
	var defines []string
	shadow := l.ShadowMap != nil && !dl.Flags.Has(LightingNoShadow)
	projective := l.ProjectiveMap != nil && !dl.Flags.Has(LightingNoProjective)
	switch l.Type {
	case LightDirectional:
		return []string{"FS_DIRECTIONAL"}
	case LightPoint:
		if projective {
			defines = append(defines, "FS_PROJECTIVE_POINT")
		}
	case LightSpot:
		defines = append(defines, "FS_SPOT")
		if projective {
			defines = append(defines, "FS_PROJECTIVE_SPOT")
		}
		if l.Cone {
			defines = append(defines, "FS_SPOT_CONE")
			if l.SmoothCone && l.InnerAngle < l.OuterAngle {
				defines = append(defines, "FS_SPOT_SMOOTHCONE")
			}
		}
	}
	if shadow {
		defines = append(defines, "FS_SHADOWMAPPING")
		if l.SoftShadow {
			defines = append(defines, "FS_SOFTSHADOWMAPPING")
		}
	}
	return defines
}

func hasDefine(defines []string, name string) bool {
	for _, d := range defines {
		if d == name {
			return true
		}
	}
	return false
}

func (dl *DeferredLighting) program(language string, defines []string) *passProgram {
	sorted := append([]string(nil), defines...)
	sort.Strings(sorted)
	key := lightingKey{language: language, defines: strings.Join(sorted, " ")}
	if pp, ok := dl.programs[key]; ok {
		return pp
	}
	pp, err := newPassProgram(dl.renderer, language, lightingVertexShader, lightingFragmentShader, lightingNames, sorted...)
	if err != nil {
		core.LogError("DeferredLighting: variant %q unavailable: %s", key.defines, err)
		pp = nil
	}
	// failed variants are cached as nil and not retried
	dl.programs[key] = pp
	return pp
}

func (l *Light) visible() bool {
	if l.Color.R <= 0 && l.Color.G <= 0 && l.Color.B <= 0 {
		return false
	}
	return l.Type == LightDirectional || l.Radius > 0
}

/**
 * @brief Draws lights over the G-buffer into the current render target.
 * @returns The number of lights drawn. An error only for an unusable G-buffer.
 */
func (dl *DeferredLighting) Draw(gb GBuffer, lights []Light) (int, error) {
	if gb == nil || !gb.IsColorTargetUsed(1) || gb.GetRenderTargetTextureBuffer(1) == nil {
		return 0, core.LogErrorf("DeferredLighting: G-buffer without normal and depth target: %w", core.ErrInvalidParameter)
	}
	quad := gb.GetFullscreenQuad()
	if quad == nil || quad.GetVertexBuffer() == nil {
		return 0, core.LogErrorf("DeferredLighting: G-buffer without fullscreen quad: %w", core.ErrNoVertexBuffer)
	}
	if dl.state == LightingIdle {
		dl.state = LightingGBufferReady
	}

	r := dl.renderer
	language := dl.ShaderLanguage
	if language == "" {
		language = r.GetDefaultShaderLanguage()
	}

	guard := r.SaveState()
	defer guard.Restore()
	r.SetColorMask(true, true, true, true)
	r.SetRenderState(metadata.RenderStateScissorTestEnable, 0)
	r.SetRenderState(metadata.RenderStateFixedFillMode, uint32(metadata.FillSolid))
	r.SetRenderState(metadata.RenderStateCullMode, uint32(metadata.CullNone))
	r.SetRenderState(metadata.RenderStateZEnable, 0)
	r.SetRenderState(metadata.RenderStateZWriteEnable, 0)
	r.SetRenderState(metadata.RenderStateAlphaTestEnable, 0)
	r.SetRenderState(metadata.RenderStateBlendEnable, 1)
	r.SetRenderState(metadata.RenderStateSrcBlendFunc, uint32(metadata.BlendOne))
	r.SetRenderState(metadata.RenderStateDstBlendFunc, uint32(metadata.BlendOne))

	base := dl.gbufferDefines(gb)
	drawn := 0
	for i := range lights {
		l := &lights[i]
		if !l.visible() {
			continue
		}
		lightDefines := dl.lightDefines(l)
		pp := dl.program(language, append(append([]string(nil), base...), lightDefines...))
		if pp == nil || !r.SetProgram(pp.program) {
			continue
		}
		if a := pp.attribute("VertexPosition"); a != nil {
			a.Set(quad.GetVertexBuffer(), metadata.VertexSemanticPosition)
		}
		for t := 0; t < 3; t++ {
			bindTexture(r, pp.uniform(renderTargetTextureNames[t]), gb.GetRenderTargetTextureBuffer(t), metadata.AddressClamp, metadata.FilterPoint)
		}
		dl.setLightUniforms(pp, l, lightDefines)
		if err := quad.Draw(); err != nil {
			core.LogWarn("DeferredLighting: %s light skipped: %s", l.Type, err)
			continue
		}
		drawn++
	}
	if drawn > 0 {
		dl.state = LightingLit
	}
	return drawn, nil
}

var renderTargetTextureNames = [3]string{"RenderTargetTexture0", "RenderTargetTexture1", "RenderTargetTexture2"}

func setIfPresent(u *renderer.ProgramUniform, set func(u *renderer.ProgramUniform) bool) {
	if u != nil {
		set(u)
	}
}

func (dl *DeferredLighting) setLightUniforms(pp *passProgram, l *Light, defines []string) {
	r := dl.renderer
	setIfPresent(pp.uniform("LightColor"), func(u *renderer.ProgramUniform) bool {
		return u.Set3f(l.Color.R, l.Color.G, l.Color.B)
	})
	setIfPresent(pp.uniform("InvFocalLen"), func(u *renderer.ProgramUniform) bool {
		return u.SetVec2(dl.InvFocalLen)
	})

	if l.Type == LightDirectional {
		// the shader wants the vector pointing towards the light
		setIfPresent(pp.uniform("LightDirection"), func(u *renderer.ProgramUniform) bool {
			return u.SetVec3(l.Direction.Normalized().Negate())
		})
		return
	}

	setIfPresent(pp.uniform("LightPosition"), func(u *renderer.ProgramUniform) bool {
		return u.SetVec3(l.Position)
	})
	setIfPresent(pp.uniform("LightRadius"), func(u *renderer.ProgramUniform) bool {
		return u.Set1f(l.Radius)
	})

	if hasDefine(defines, "FS_PROJECTIVE_POINT") {
		bindTexture(r, pp.uniform("ProjectivePointCubeMap"), l.ProjectiveMap, metadata.AddressClamp, metadata.FilterLinear)
		setIfPresent(pp.uniform("ViewSpaceToCubeMapSpace"), func(u *renderer.ProgramUniform) bool {
			return u.SetMatrix3(l.ViewSpaceToProjectiveSpace.Mat3())
		})
	}
	if l.Type == LightSpot {
		setIfPresent(pp.uniform("LightDirection"), func(u *renderer.ProgramUniform) bool {
			return u.SetVec3(l.Direction.Normalized())
		})
		if hasDefine(defines, "FS_PROJECTIVE_SPOT") {
			bindTexture(r, pp.uniform("ProjectiveSpotMap"), l.ProjectiveMap, metadata.AddressClamp, metadata.FilterLinear)
			setIfPresent(pp.uniform("ViewSpaceToSpotMapSpace"), func(u *renderer.ProgramUniform) bool {
				return u.SetMatrix4(l.ViewSpaceToProjectiveSpace)
			})
		}
		if hasDefine(defines, "FS_SPOT_SMOOTHCONE") {
			setIfPresent(pp.uniform("SpotConeCos"), func(u *renderer.ProgramUniform) bool {
				return u.Set2f(math32.Cos(l.OuterAngle), math32.Cos(l.InnerAngle))
			})
		} else if hasDefine(defines, "FS_SPOT_CONE") {
			setIfPresent(pp.uniform("SpotConeCos"), func(u *renderer.ProgramUniform) bool {
				c := math32.Cos(l.OuterAngle)
				if u.GetType() == metadata.UniformTypeFloat1 {
					return u.Set1f(c)
				}
				return u.Set2f(c, c)
			})
		}
	}

	if !hasDefine(defines, "FS_SHADOWMAPPING") {
		return
	}
	bindTexture(r, pp.uniform("ShadowMap"), l.ShadowMap, metadata.AddressClamp, metadata.FilterPoint)
	if l.Type == LightSpot {
		setIfPresent(pp.uniform("ViewSpaceToShadowMapSpace"), func(u *renderer.ProgramUniform) bool {
			return u.SetMatrix4(l.ViewSpaceToShadowSpace)
		})
	} else {
		setIfPresent(pp.uniform("ViewSpaceToShadowCubeMapSpace"), func(u *renderer.ProgramUniform) bool {
			return u.SetMatrix3(l.ViewSpaceToShadowSpace.Mat3())
		})
		setIfPresent(pp.uniform("InvLightRadius"), func(u *renderer.ProgramUniform) bool {
			return u.Set1f(1 / l.Radius)
		})
	}
	if hasDefine(defines, "FS_SOFTSHADOWMAPPING") {
		setIfPresent(pp.uniform("TexelSize"), func(u *renderer.ProgramUniform) bool {
			return u.Set1f(l.ShadowTexelSize)
		})
	}
}
