package compositing

import (
	"github.com/chewxy/math32"

	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
)

// MaxColorTargets is the number of G-buffer color targets a provider may fill.
const MaxColorTargets = 4

/**
 * @brief The screen space inputs of the deferred passes.
 *
 * Target 0 holds albedo in RGB and ambient occlusion in alpha, target 1 the
 * encoded normal in RG and the view space depth in B, target 2 the specular
 * color in RGB and the specular exponent in alpha, target 3 the glow color in
 * RGB and its intensity in alpha.
 */
type GBuffer interface {
	IsColorTargetUsed(i int) bool
	IsColorTargetAlphaUsed(i int) bool
	GetRenderTargetTextureBuffer(i int) renderer.TextureBuffer
	GetFullscreenQuad() *FullscreenQuad
}

/**
 * @brief A G-buffer provider over textures owned by the caller.
 */
type TextureGBuffer struct {
	quad    *FullscreenQuad
	targets [MaxColorTargets]renderer.TextureBuffer
	alpha   [MaxColorTargets]bool
}

func NewTextureGBuffer(quad *FullscreenQuad) *TextureGBuffer {
	return &TextureGBuffer{quad: quad}
}

// SetColorTarget assigns target i. A nil texture marks the target unused.
func (g *TextureGBuffer) SetColorTarget(i int, tb renderer.TextureBuffer, alphaUsed bool) {
	if i < 0 || i >= MaxColorTargets {
		return
	}
	g.targets[i] = tb
	g.alpha[i] = tb != nil && alphaUsed
}

func (g *TextureGBuffer) IsColorTargetUsed(i int) bool {
	return i >= 0 && i < MaxColorTargets && g.targets[i] != nil
}

func (g *TextureGBuffer) IsColorTargetAlphaUsed(i int) bool {
	return g.IsColorTargetUsed(i) && g.alpha[i]
}

func (g *TextureGBuffer) GetRenderTargetTextureBuffer(i int) renderer.TextureBuffer {
	if !g.IsColorTargetUsed(i) {
		return nil
	}
	return g.targets[i]
}

func (g *TextureGBuffer) GetFullscreenQuad() *FullscreenQuad {
	return g.quad
}

/**
 * @brief Encodes a unit view space normal into two components in [0,1] with
 * a spheremap transform. DecodeNormal is the inverse.
 */
func EncodeNormal(n math.Vec3) math.Vec2 {
	n = n.Normalized()
	if n.Z <= -1 {
		return math.NewVec2(1, 0.5)
	}
	f := math32.Sqrt(8*n.Z + 8)
	return math.NewVec2(n.X/f+0.5, n.Y/f+0.5)
}

func DecodeNormal(enc math.Vec2) math.Vec3 {
	fenc := enc.MulScalar(4).Sub(math.NewVec2(2, 2))
	f := fenc.X*fenc.X + fenc.Y*fenc.Y
	g := math32.Sqrt(1 - f/4)
	return math.NewVec3(fenc.X*g, fenc.Y*g, 1-f/2)
}
