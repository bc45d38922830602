package renderer

import (
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

func (r *Renderer) resetStates() {
	r.renderStates = metadata.DefaultRenderStates()
	for i := range r.samplerStates {
		r.samplerStates[i] = metadata.DefaultSamplerStates()
	}
	for i := range r.transforms {
		r.transforms[i] = math.NewMat4Identity()
	}
	_, w, h := r.backend.DefaultTarget()
	r.viewport = math.Rect{Width: int32(w), Height: int32(h)}
	r.scissor = r.viewport
}

/**
 * @brief Sets every render and sampler state back to its default.
 */
func (r *Renderer) ResetRenderStates() {
	defaults := metadata.DefaultRenderStates()
	for s := range defaults {
		r.SetRenderState(metadata.RenderState(s), defaults[s])
	}
	samplers := metadata.DefaultSamplerStates()
	for unit := range r.samplerStates {
		for s := range samplers {
			r.SetSamplerState(unit, metadata.SamplerState(s), samplers[s])
		}
	}
}

/**
 * @brief Captures the whole state context. Restore puts it back, use it with
 * defer around a pass.
 */
type StateGuard struct {
	renderer      *Renderer
	restored      bool
	renderStates  [metadata.RenderStateNumber]uint32
	samplerStates []metadata.SamplerStates
	textures      []TextureBuffer
	transforms    [metadata.TransformStateNumber]math.Mat4
	viewport      math.Rect
	scissor       math.Rect
	target        *SurfaceTextureBuffer
	program       *Program
	vertexBuffer  *VertexBuffer
	indexBuffer   *IndexBuffer
}

func (r *Renderer) SaveState() *StateGuard {
	return &StateGuard{
		renderer:      r,
		renderStates:  r.renderStates,
		samplerStates: append([]metadata.SamplerStates(nil), r.samplerStates...),
		textures:      append([]TextureBuffer(nil), r.textures...),
		transforms:    r.transforms,
		viewport:      r.viewport,
		scissor:       r.scissor,
		target:        r.target,
		program:       r.program,
		vertexBuffer:  r.vertexBuffer,
		indexBuffer:   r.indexBuffer,
	}
}

/**
 * @brief Restores the captured state. Resources destroyed in between are
 * replaced by their defaults. Calling it twice does nothing.
 */
func (g *StateGuard) Restore() {
	if g.restored {
		return
	}
	g.restored = true
	r := g.renderer

	for s, v := range g.renderStates {
		r.SetRenderState(metadata.RenderState(s), v)
	}
	for unit, states := range g.samplerStates {
		for s, v := range states {
			r.SetSamplerState(unit, metadata.SamplerState(s), v)
		}
	}
	for unit, tb := range g.textures {
		if tb != nil && tb.State() == metadata.ResourceStateDestroyed {
			tb = nil
		}
		r.SetTextureBuffer(unit, tb)
	}
	r.transforms = g.transforms

	if g.target != nil && g.target.State() == metadata.ResourceStateDestroyed {
		r.SetRenderTarget(nil)
	} else if !r.SetRenderTarget(g.target) {
		r.SetRenderTarget(nil)
	}
	r.viewport = g.viewport
	r.scissor = g.scissor

	if g.program != nil && g.program.State() == metadata.ResourceStateDestroyed {
		r.SetProgram(nil)
	} else if !r.SetProgram(g.program) {
		r.SetProgram(nil)
	}
	if g.vertexBuffer != nil && g.vertexBuffer.State() == metadata.ResourceStateDestroyed {
		g.vertexBuffer = nil
	}
	r.SetVertexBuffer(g.vertexBuffer)
	if g.indexBuffer != nil && g.indexBuffer.State() == metadata.ResourceStateDestroyed {
		g.indexBuffer = nil
	}
	r.SetIndexBuffer(g.indexBuffer)
}

/**
 * @brief Captures a chosen set of render states.
 */
type RenderStateGuard struct {
	renderer *Renderer
	restored bool
	states   []metadata.RenderState
	values   []uint32
}

func (r *Renderer) BackupRenderStates(states ...metadata.RenderState) *RenderStateGuard {
	g := &RenderStateGuard{renderer: r, states: states, values: make([]uint32, len(states))}
	for i, s := range states {
		g.values[i] = r.GetRenderState(s)
	}
	return g
}

func (g *RenderStateGuard) Restore() {
	if g.restored {
		return
	}
	g.restored = true
	for i, s := range g.states {
		g.renderer.SetRenderState(s, g.values[i])
	}
}

/**
 * @brief Captures the render target together with its viewport.
 */
type RenderTargetGuard struct {
	renderer *Renderer
	restored bool
	target   *SurfaceTextureBuffer
	viewport math.Rect
}

func (r *Renderer) BackupRenderTarget() *RenderTargetGuard {
	return &RenderTargetGuard{renderer: r, target: r.target, viewport: r.viewport}
}

func (g *RenderTargetGuard) Restore() {
	if g.restored {
		return
	}
	g.restored = true
	target := g.target
	if target != nil && target.State() == metadata.ResourceStateDestroyed {
		target = nil
	}
	if !g.renderer.SetRenderTarget(target) {
		g.renderer.SetRenderTarget(nil)
	}
	g.renderer.viewport = g.viewport
}

/**
 * @brief Captures the transform states.
 */
type TransformGuard struct {
	renderer   *Renderer
	restored   bool
	transforms [metadata.TransformStateNumber]math.Mat4
}

func (r *Renderer) BackupTransforms() *TransformGuard {
	return &TransformGuard{renderer: r, transforms: r.transforms}
}

func (g *TransformGuard) Restore() {
	if g.restored {
		return
	}
	g.restored = true
	g.renderer.transforms = g.transforms
}
