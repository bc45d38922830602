package renderer

import (
	"encoding/binary"
	gomath "math"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

/**
 * @brief Interleaved vertex storage with a fixed layout.
 *
 * Attributes are added first, then Allocate creates the storage. Contents
 * are written between Lock and Unlock through the typed setters.
 */
type VertexBuffer struct {
	bufferBase
	layout      metadata.VertexLayout
	numVertices uint32
}

/**
 * @brief Creates an empty vertex buffer without attributes.
 */
func (r *Renderer) CreateVertexBuffer() *VertexBuffer {
	vb := &VertexBuffer{bufferBase: bufferBase{resourceBase: newResourceBase(r, metadata.ResourceTypeVertexBuffer)}}
	r.register(vb)
	return vb
}

/**
 * @brief Appends an attribute to the vertex layout. Only possible before Allocate.
 * @returns False if storage exists or the semantic and channel pair is taken.
 */
func (vb *VertexBuffer) AddVertexAttribute(semantic metadata.VertexSemantic, channel uint32, typ metadata.VertexAttributeType) bool {
	if vb.numVertices > 0 || vb.State() != metadata.ResourceStateCreated {
		core.LogWarn("VertexBuffer: attributes must be added before allocation")
		return false
	}
	if _, ok := vb.layout.Find(semantic, channel); ok {
		core.LogWarn("VertexBuffer: %s channel %d already exists", semantic, channel)
		return false
	}
	vb.layout.Attributes = append(vb.layout.Attributes, metadata.VertexAttribute{
		Semantic: semantic,
		Channel:  channel,
		Type:     typ,
		Offset:   vb.layout.Stride,
	})
	vb.layout.Stride += typ.Size()
	return true
}

/**
 * @brief Creates zeroed storage for numVertices vertices, replacing any
 * previous storage.
 */
func (vb *VertexBuffer) Allocate(numVertices uint32) error {
	if vb.layout.Stride == 0 {
		return core.LogErrorf("VertexBuffer: no vertex attributes: %w", core.ErrInvalidParameter)
	}
	if err := vb.allocate(uint64(numVertices) * uint64(vb.layout.Stride)); err != nil {
		return core.LogErrorf("VertexBuffer: %w", err)
	}
	vb.numVertices = numVertices
	return nil
}

func (vb *VertexBuffer) GetNumOfVertices() uint32 {
	return vb.numVertices
}

func (vb *VertexBuffer) GetVertexSize() uint32 {
	return vb.layout.Stride
}

func (vb *VertexBuffer) GetLayout() metadata.VertexLayout {
	return vb.layout
}

// GetData returns the shadow copy. It must not be modified.
func (vb *VertexBuffer) GetData() []byte {
	return vb.shadow
}

func (vb *VertexBuffer) slot(index uint32, semantic metadata.VertexSemantic, channel uint32, write bool) (metadata.VertexAttribute, []byte) {
	attr, ok := vb.layout.Find(semantic, channel)
	if !ok || index >= vb.numVertices {
		return attr, nil
	}
	offset := index*vb.layout.Stride + attr.Offset
	if write {
		return attr, vb.writable(offset, attr.Type.Size())
	}
	return attr, vb.readable(offset, attr.Type.Size())
}

/**
 * @brief Writes up to four floats into an attribute of a vertex. Missing
 * components are zero, RGBA attributes are saturated and stored as bytes.
 * @returns False if the buffer is not locked for writing or the attribute or index is invalid.
 */
func (vb *VertexBuffer) SetFloats(index uint32, semantic metadata.VertexSemantic, channel uint32, values ...float32) bool {
	attr, dst := vb.slot(index, semantic, channel, true)
	if dst == nil {
		return false
	}
	if attr.Type == metadata.VertexAttributeRGBA {
		var c [4]float32
		copy(c[:], values)
		rgba := math.NewColor(c[0], c[1], c[2], c[3]).RGBA8()
		copy(dst, rgba[:])
		return true
	}
	for i := uint32(0); i < attr.Type.Components(); i++ {
		var v float32
		if int(i) < len(values) {
			v = values[i]
		}
		binary.LittleEndian.PutUint32(dst[i*4:], gomath.Float32bits(v))
	}
	return true
}

/**
 * @brief Reads an attribute of a vertex as four floats. RGBA attributes
 * are returned normalized.
 */
func (vb *VertexBuffer) GetFloats(index uint32, semantic metadata.VertexSemantic, channel uint32) (math.Vec4, bool) {
	attr, src := vb.slot(index, semantic, channel, false)
	if src == nil {
		return math.Vec4{}, false
	}
	if attr.Type == metadata.VertexAttributeRGBA {
		return math.ColorFromRGBA8(src[0], src[1], src[2], src[3]).Vec4(), true
	}
	var out [4]float32
	for i := uint32(0); i < attr.Type.Components(); i++ {
		out[i] = gomath.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
	return math.NewVec4(out[0], out[1], out[2], out[3]), true
}

func (vb *VertexBuffer) SetPosition(index uint32, p math.Vec3) bool {
	return vb.SetFloats(index, metadata.VertexSemanticPosition, 0, p.X, p.Y, p.Z, 1)
}

func (vb *VertexBuffer) SetTexCoord(index, channel uint32, uv math.Vec2) bool {
	return vb.SetFloats(index, metadata.VertexSemanticTexCoord, channel, uv.X, uv.Y)
}

func (vb *VertexBuffer) SetColor(index uint32, c math.Color) bool {
	return vb.SetFloats(index, metadata.VertexSemanticColor, 0, c.R, c.G, c.B, c.A)
}

func (vb *VertexBuffer) SetNormal(index uint32, n math.Vec3) bool {
	return vb.SetFloats(index, metadata.VertexSemanticNormal, 0, n.X, n.Y, n.Z)
}

func (vb *VertexBuffer) SetTangent(index uint32, t math.Vec3) bool {
	return vb.SetFloats(index, metadata.VertexSemanticTangent, 0, t.X, t.Y, t.Z)
}

func (vb *VertexBuffer) SetBinormal(index uint32, b math.Vec3) bool {
	return vb.SetFloats(index, metadata.VertexSemanticBinormal, 0, b.X, b.Y, b.Z)
}

func (vb *VertexBuffer) GetPosition(index uint32) (math.Vec3, bool) {
	v, ok := vb.GetFloats(index, metadata.VertexSemanticPosition, 0)
	return v.ToVec3(), ok
}

func (vb *VertexBuffer) GetColor(index uint32) (math.Color, bool) {
	v, ok := vb.GetFloats(index, metadata.VertexSemanticColor, 0)
	return math.ColorFromVec4(v), ok
}

func (vb *VertexBuffer) Destroy() {
	if vb.State() == metadata.ResourceStateDestroyed {
		return
	}
	if vb.renderer.vertexBuffer == vb {
		vb.renderer.SetVertexBuffer(nil)
	}
	vb.release()
	vb.numVertices = 0
	vb.markDestroyed()
}
