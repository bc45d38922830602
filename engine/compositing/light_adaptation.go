package compositing

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

const lightAdaptationShader = "light_adaptation_fs"

var lightAdaptationNames = []string{"VertexPosition", "Factor", "PreviousTexture", "CurrentTexture"}

/**
 * @brief Lets the adapted scene luminance follow the measured one over time.
 *
 * Two 1x1 R32F targets take turns holding the previous and the new adapted
 * luminance. The pass keeps no time of its own, the caller passes the
 * product of the adaptation rate and the frame time.
 */
type LightAdaptation struct {
	renderer      *renderer.Renderer
	quad          *FullscreenQuad
	targets       [2]*renderer.SurfaceTextureBuffer
	previousIndex int
	language      string
	program       *passProgram
}

func NewLightAdaptation(r *renderer.Renderer) (*LightAdaptation, error) {
	quad, err := NewFullscreenQuad(r)
	if err != nil {
		return nil, err
	}
	return &LightAdaptation{renderer: r, quad: quad}, nil
}

// GetTextureBuffer returns the 1x1 R32F adapted luminance of the last call.
func (la *LightAdaptation) GetTextureBuffer() renderer.TextureBuffer {
	if t := la.targets[la.previousIndex]; t != nil {
		return t.GetTextureBuffer()
	}
	return nil
}

func (la *LightAdaptation) Destroy() {
	if la.program != nil {
		la.program.destroy()
		la.program = nil
	}
	for i, t := range la.targets {
		if t != nil {
			t.Destroy()
		}
		la.targets[i] = nil
	}
	if la.quad != nil {
		la.quad.Destroy()
		la.quad = nil
	}
}

// ensureTargets creates missing targets cleared to zero luminance.
func (la *LightAdaptation) ensureTargets() error {
	for i, t := range la.targets {
		if t != nil && t.State() != metadata.ResourceStateDestroyed {
			continue
		}
		s, err := la.renderer.CreateSurfaceTextureBuffer2D(math.Size{Width: 1, Height: 1}, metadata.PixelFormatR32F, 0, metadata.MultisampleNone)
		if err != nil {
			return fmt.Errorf("light adaptation target %d: %w", i, err)
		}
		la.targets[i] = s
		if err := la.clear(s); err != nil {
			return err
		}
	}
	return nil
}

func (la *LightAdaptation) clear(s *renderer.SurfaceTextureBuffer) error {
	r := la.renderer
	target := r.BackupRenderTarget()
	defer target.Restore()
	scissor := r.BackupRenderStates(metadata.RenderStateScissorTestEnable)
	defer scissor.Restore()
	r.SetRenderState(metadata.RenderStateScissorTestEnable, 0)
	if !r.SetRenderTarget(s) {
		return core.LogErrorf("LightAdaptation: binding target: %w", core.ErrInvalidHandle)
	}
	return r.Clear(metadata.ClearColor, math.Color{}, 1, 0)
}

/**
 * @brief Blends the current average luminance into the adapted luminance.
 * @param language Shader language, empty for the renderer default.
 * @param current Texture holding the average scene luminance in red.
 * @param tauTimesDt Adaptation rate times the frame time, clamped to [0,1].
 * Before the first call the adapted luminance is zero.
 */
func (la *LightAdaptation) CalculateLightAdaptation(language string, current renderer.TextureBuffer, tauTimesDt float32) error {
	if current == nil {
		return core.LogErrorf("LightAdaptation: no current luminance: %w", core.ErrInvalidParameter)
	}
	if la.quad == nil {
		return core.LogErrorf("LightAdaptation: %w", core.ErrResourceDestroyed)
	}
	r := la.renderer
	if language == "" {
		language = r.GetDefaultShaderLanguage()
	}
	if la.program == nil || language != la.language {
		if la.program != nil {
			la.program.destroy()
			la.program = nil
		}
		pp, err := newPassProgram(r, language, lightingVertexShader, lightAdaptationShader, lightAdaptationNames)
		if err != nil {
			return err
		}
		la.program, la.language = pp, language
	}
	if err := la.ensureTargets(); err != nil {
		return err
	}

	factor := math.Saturate(tauTimesDt)

	guard := r.SaveState()
	defer guard.Restore()
	r.ResetRenderStates()
	r.SetRenderState(metadata.RenderStateCullMode, uint32(metadata.CullNone))
	r.SetRenderState(metadata.RenderStateZEnable, 0)
	r.SetRenderState(metadata.RenderStateZWriteEnable, 0)

	next := 1 - la.previousIndex
	if !r.SetRenderTarget(la.targets[next]) {
		return core.LogErrorf("LightAdaptation: binding target: %w", core.ErrInvalidHandle)
	}
	pp := la.program
	if !r.SetProgram(pp.program) {
		return core.LogErrorf("LightAdaptation: %s/%s: %w", pp.language, pp.fsName, core.ErrNoProgram)
	}
	if a := pp.attribute("VertexPosition"); a != nil {
		a.Set(la.quad.GetVertexBuffer(), metadata.VertexSemanticPosition)
	}
	setIfPresent(pp.uniform("Factor"), func(u *renderer.ProgramUniform) bool {
		return u.Set1f(factor)
	})
	bindTexture(r, pp.uniform("PreviousTexture"), la.targets[la.previousIndex].GetTextureBuffer(), metadata.AddressClamp, metadata.FilterPoint)
	bindTexture(r, pp.uniform("CurrentTexture"), current, metadata.AddressClamp, metadata.FilterLinear)
	if err := la.quad.Draw(); err != nil {
		return err
	}
	la.previousIndex = next
	return nil
}
