package renderer

import (
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

/**
 * @brief Renderer counters. The per-frame counters are cleared by BeginFrame
 * and ResetStatistics, the resource counters describe the live set.
 */
type Statistics struct {
	DrawCalls            uint32
	Vertices             uint32
	Triangles            uint32
	RenderStateChanges   uint32
	SamplerStateChanges  uint32
	TextureBufferChanges uint32
	ProgramChanges       uint32
	RenderTargetChanges  uint32

	TextureBuffers      uint32
	TextureBufferMemory uint64
	SurfaceBuffers      uint32
	VertexBuffers       uint32
	IndexBuffers        uint32
	Shaders             uint32
	Programs            uint32
}

func (r *Renderer) Statistics() Statistics {
	s := r.stats
	for _, res := range r.resources {
		switch res.Type() {
		case metadata.ResourceTypeTextureBuffer2D, metadata.ResourceTypeTextureBufferRectangle:
			s.TextureBuffers++
			s.TextureBufferMemory += uint64(res.(TextureBuffer).GetTotalNumOfBytes())
		case metadata.ResourceTypeSurfaceTextureBuffer:
			s.SurfaceBuffers++
		case metadata.ResourceTypeVertexBuffer:
			s.VertexBuffers++
		case metadata.ResourceTypeIndexBuffer:
			s.IndexBuffers++
		case metadata.ResourceTypeShader:
			s.Shaders++
		case metadata.ResourceTypeProgram:
			s.Programs++
		}
	}
	return s
}

// ResetStatistics clears the per-frame counters.
func (r *Renderer) ResetStatistics() {
	r.stats = Statistics{}
}
