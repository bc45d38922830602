package compositing

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

/**
 * @brief Four clip space vertices covering the whole viewport, drawn as a
 * triangle strip. Texture coordinates put (0,0) at the top left corner.
 */
type FullscreenQuad struct {
	renderer     *renderer.Renderer
	vertexBuffer *renderer.VertexBuffer
}

var fullscreenQuadVertices = [4]struct {
	position math.Vec3
	uv       math.Vec2
}{
	{math.Vec3{X: -1, Y: -1}, math.Vec2{X: 0, Y: 1}},
	{math.Vec3{X: 1, Y: -1}, math.Vec2{X: 1, Y: 1}},
	{math.Vec3{X: -1, Y: 1}, math.Vec2{X: 0, Y: 0}},
	{math.Vec3{X: 1, Y: 1}, math.Vec2{X: 1, Y: 0}},
}

func NewFullscreenQuad(r *renderer.Renderer) (*FullscreenQuad, error) {
	vb := r.CreateVertexBuffer()
	if !vb.AddVertexAttribute(metadata.VertexSemanticPosition, 0, metadata.VertexAttributeFloat3) ||
		!vb.AddVertexAttribute(metadata.VertexSemanticTexCoord, 0, metadata.VertexAttributeFloat2) {
		vb.Destroy()
		return nil, core.LogErrorf("FullscreenQuad: cannot build vertex layout: %w", core.ErrInvalidParameter)
	}
	if err := vb.Allocate(uint32(len(fullscreenQuadVertices))); err != nil {
		vb.Destroy()
		return nil, fmt.Errorf("FullscreenQuad: %w", err)
	}
	if !vb.Lock(renderer.LockWriteOnly) {
		vb.Destroy()
		return nil, core.LogErrorf("FullscreenQuad: cannot lock vertex buffer: %w", core.ErrDeviceNotReady)
	}
	for i, v := range fullscreenQuadVertices {
		vb.SetPosition(uint32(i), v.position)
		vb.SetTexCoord(uint32(i), 0, v.uv)
	}
	vb.Unlock()
	return &FullscreenQuad{renderer: r, vertexBuffer: vb}, nil
}

func (q *FullscreenQuad) GetVertexBuffer() *renderer.VertexBuffer {
	return q.vertexBuffer
}

// Draw makes the quad the current vertex buffer and draws it with the
// current program.
func (q *FullscreenQuad) Draw() error {
	q.renderer.SetVertexBuffer(q.vertexBuffer)
	return q.renderer.DrawPrimitives(metadata.PrimitiveTriangleStrip, 0, 4)
}

func (q *FullscreenQuad) Destroy() {
	if q.vertexBuffer != nil {
		q.vertexBuffer.Destroy()
		q.vertexBuffer = nil
	}
}
