package compositing

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// GlowFlag tunes the glow composite.
type GlowFlag uint32

const (
	// GlowNoDiscard composites every pixel, black ones included.
	GlowNoDiscard GlowFlag = 1 << iota
	// GlowNoBlending replaces the target instead of adding to it.
	GlowNoBlending
)

func (f GlowFlag) Has(flag GlowFlag) bool {
	return f&flag != 0
}

const (
	DefaultGlowFactor     float32 = 1
	DefaultGlowBlurPasses         = 4
	DefaultGlowDownscale  float32 = 4
)

const (
	glowDownscaleShader = "glow_downscale_fs"
	glowBlurShader      = "glow_blur_fs"
	glowResultShader    = "glow_result_fs"
)

var glowNames = []string{"VertexPosition", "TextureSize", "UVScale", "GlowFactor", "Texture"}

/**
 * @brief Blooms the glow target of a G-buffer onto the current render target.
 *
 * The glow color (target 3, intensity in alpha) is downscaled into one of two
 * ping-pong targets, blurred back and forth between them and finally added to
 * the current render target scaled by GlowFactor.
 *
 * Changing ShaderLanguage rebuilds every program of the pass, so it should
 * not change from frame to frame.
 */
type Glow struct {
	ShaderLanguage string
	Flags          GlowFlag
	GlowFactor     float32
	/** @brief Number of separable blur passes, 0 keeps the downscaled image. */
	GlowBlurPasses int
	/** @brief Divides the glow target size, values below 1 are treated as 1. */
	GlowDownscale float32

	renderer    *renderer.Renderer
	targets     [2]*renderer.SurfaceTextureBuffer
	resultIndex int

	language      string
	downscale     *passProgram
	blur          *passProgram
	result        *passProgram
	resultDiscard bool
}

func NewGlow(r *renderer.Renderer) *Glow {
	return &Glow{
		GlowFactor:     DefaultGlowFactor,
		GlowBlurPasses: DefaultGlowBlurPasses,
		GlowDownscale:  DefaultGlowDownscale,
		renderer:       r,
	}
}

// GetTextureBuffer returns the blurred glow of the last draw, nil before the first.
func (g *Glow) GetTextureBuffer() renderer.TextureBuffer {
	if t := g.targets[g.resultIndex]; t != nil {
		return t.GetTextureBuffer()
	}
	return nil
}

func (g *Glow) Destroy() {
	g.destroyPrograms()
	g.destroyTargets()
}

func (g *Glow) destroyPrograms() {
	for _, pp := range []*passProgram{g.downscale, g.blur, g.result} {
		if pp != nil {
			pp.destroy()
		}
	}
	g.downscale, g.blur, g.result = nil, nil, nil
}

func (g *Glow) destroyTargets() {
	for i, t := range g.targets {
		if t != nil {
			t.Destroy()
		}
		g.targets[i] = nil
	}
	g.resultIndex = 0
}

// ensureTargets recreates both ping-pong targets when the size or format changed.
func (g *Glow) ensureTargets(size math.Size, format metadata.PixelFormat) error {
	for i, t := range g.targets {
		if t != nil && t.State() != metadata.ResourceStateDestroyed && t.GetSize() == size && t.GetFormat() == format {
			continue
		}
		if t != nil {
			t.Destroy()
		}
		s, err := g.renderer.CreateSurfaceTextureBufferRectangle(size, format, metadata.MultisampleNone)
		if err != nil {
			g.targets[i] = nil
			return fmt.Errorf("glow target %d: %w", i, err)
		}
		g.targets[i] = s
	}
	return nil
}

// ensurePrograms rebuilds the programs on a language change and the result
// program when the discard flag changed.
func (g *Glow) ensurePrograms(language string) error {
	if language != g.language {
		g.destroyPrograms()
		g.language = language
	}
	var err error
	if g.downscale == nil {
		if g.downscale, err = newPassProgram(g.renderer, language, lightingVertexShader, glowDownscaleShader, glowNames); err != nil {
			return err
		}
	}
	if g.blur == nil {
		if g.blur, err = newPassProgram(g.renderer, language, lightingVertexShader, glowBlurShader, glowNames); err != nil {
			return err
		}
	}
	discard := !g.Flags.Has(GlowNoDiscard)
	if g.result != nil && g.resultDiscard != discard {
		g.result.destroy()
		g.result = nil
	}
	if g.result == nil {
		var defines []string
		if discard {
			defines = append(defines, "FS_DISCARD")
		}
		if g.result, err = newPassProgram(g.renderer, language, lightingVertexShader, glowResultShader, glowNames, defines...); err != nil {
			return err
		}
		g.resultDiscard = discard
	}
	return nil
}

/**
 * @brief Runs the downscale, blur and composite stages.
 * @returns false without error when the G-buffer carries no glow.
 */
func (g *Glow) Draw(gb GBuffer) (bool, error) {
	if gb == nil || !gb.IsColorTargetUsed(3) || !gb.IsColorTargetAlphaUsed(3) {
		return false, nil
	}
	source := gb.GetRenderTargetTextureBuffer(3)
	quad := gb.GetFullscreenQuad()
	if source == nil {
		return false, nil
	}
	if quad == nil || quad.GetVertexBuffer() == nil {
		return false, core.LogErrorf("Glow: G-buffer without fullscreen quad: %w", core.ErrNoVertexBuffer)
	}

	downscale := g.GlowDownscale
	// also catches NaN
	if !(downscale >= 1) {
		downscale = 1
	}
	full := source.GetSize(0)
	size := math.Size{
		Width:  uint32(float32(full.Width) / downscale),
		Height: uint32(float32(full.Height) / downscale),
	}
	if size.Width == 0 || size.Height == 0 {
		core.LogDebug("Glow: %dx%d downscaled by %g is empty, skipping", full.Width, full.Height, downscale)
		return false, nil
	}

	r := g.renderer
	language := g.ShaderLanguage
	if language == "" {
		language = r.GetDefaultShaderLanguage()
	}
	if err := g.ensurePrograms(language); err != nil {
		return false, err
	}
	if err := g.ensureTargets(size, source.GetFormat()); err != nil {
		return false, err
	}

	guard := r.SaveState()
	defer guard.Restore()
	// the composite goes to the caller's target
	target := r.BackupRenderTarget()

	r.SetRenderState(metadata.RenderStateScissorTestEnable, 0)
	r.SetRenderState(metadata.RenderStateFixedFillMode, uint32(metadata.FillSolid))
	r.SetRenderState(metadata.RenderStateCullMode, uint32(metadata.CullNone))
	r.SetRenderState(metadata.RenderStateZEnable, 0)
	r.SetRenderState(metadata.RenderStateZWriteEnable, 0)
	r.SetRenderState(metadata.RenderStateAlphaTestEnable, 0)
	r.SetRenderState(metadata.RenderStateBlendEnable, 0)

	g.resultIndex = 0
	if err := g.stage(g.downscale, quad, g.targets[0], source, full, math.Vec2{}, metadata.AddressWrap); err != nil {
		return false, err
	}

	idx := 0
	for i := 0; i < g.GlowBlurPasses; i++ {
		scale := math.NewVec2(1, 0)
		if i%2 == 1 {
			scale = math.NewVec2(0, 1)
		}
		src := g.targets[idx]
		if err := g.stage(g.blur, quad, g.targets[1-idx], src.GetTextureBuffer(), size, scale, metadata.AddressWrap); err != nil {
			return false, err
		}
		idx = 1 - idx
	}
	g.resultIndex = idx

	target.Restore()
	if g.Flags.Has(GlowNoBlending) {
		r.SetRenderState(metadata.RenderStateBlendEnable, 0)
	} else {
		r.SetRenderState(metadata.RenderStateBlendEnable, 1)
		r.SetRenderState(metadata.RenderStateSrcBlendFunc, uint32(metadata.BlendOne))
		r.SetRenderState(metadata.RenderStateDstBlendFunc, uint32(metadata.BlendOne))
	}
	if err := g.stage(g.result, quad, nil, g.targets[idx].GetTextureBuffer(), size, math.Vec2{}, metadata.AddressClamp); err != nil {
		return false, err
	}
	return true, nil
}

// stage draws one fullscreen quad sampling input into dst, or into the
// current render target when dst is nil.
func (g *Glow) stage(pp *passProgram, quad *FullscreenQuad, dst *renderer.SurfaceTextureBuffer, input renderer.TextureBuffer, inputSize math.Size, uvScale math.Vec2, address metadata.TextureAddressing) error {
	r := g.renderer
	if dst != nil && !r.SetRenderTarget(dst) {
		return core.LogErrorf("Glow: binding target: %w", core.ErrInvalidHandle)
	}
	if !r.SetProgram(pp.program) {
		return core.LogErrorf("Glow: %s/%s: %w", pp.language, pp.fsName, core.ErrNoProgram)
	}
	if a := pp.attribute("VertexPosition"); a != nil {
		a.Set(quad.GetVertexBuffer(), metadata.VertexSemanticPosition)
	}
	setIfPresent(pp.uniform("TextureSize"), func(u *renderer.ProgramUniform) bool {
		return u.Set2i(int32(inputSize.Width), int32(inputSize.Height))
	})
	setIfPresent(pp.uniform("UVScale"), func(u *renderer.ProgramUniform) bool {
		return u.SetVec2(uvScale)
	})
	setIfPresent(pp.uniform("GlowFactor"), func(u *renderer.ProgramUniform) bool {
		return u.Set1f(g.GlowFactor)
	})
	bindTexture(r, pp.uniform("Texture"), input, address, metadata.FilterLinear)
	return quad.Draw()
}
