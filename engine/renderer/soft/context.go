package soft

import (
	"encoding/binary"
	gomath "math"

	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

type stream struct {
	data   []byte
	attr   metadata.VertexAttribute
	stride uint32
}

type boundTexture struct {
	tex    *texture
	states metadata.SamplerStates
}

/**
 * @brief What a kernel sees of the current draw: uniforms, textures and,
 * for vertex kernels, the attributes of the current vertex.
 */
type Context struct {
	uniforms map[string][]float32
	samplers map[string]boundTexture
	streams  map[string]stream
	vertex   uint32
}

// Attribute reads a vertex input. Missing components are (0, 0, 0, 1).
func (c *Context) Attribute(name string) math.Vec4 {
	out := math.NewVec4(0, 0, 0, 1)
	s, ok := c.streams[name]
	if !ok {
		return out
	}
	offset := c.vertex*s.stride + s.attr.Offset
	if uint64(offset)+uint64(s.attr.Type.Size()) > uint64(len(s.data)) {
		return out
	}
	src := s.data[offset:]
	if s.attr.Type == metadata.VertexAttributeRGBA {
		return math.ColorFromRGBA8(src[0], src[1], src[2], src[3]).Vec4()
	}
	v := [4]float32{0, 0, 0, 1}
	for i := uint32(0); i < s.attr.Type.Components(); i++ {
		v[i] = gomath.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
	return math.NewVec4(v[0], v[1], v[2], v[3])
}

func (c *Context) value(name string, i int) float32 {
	v := c.uniforms[name]
	if i >= len(v) {
		return 0
	}
	return v[i]
}

// HasUniform reports whether the draw set a value for name.
func (c *Context) HasUniform(name string) bool {
	_, ok := c.uniforms[name]
	return ok
}

func (c *Context) Float(name string) float32 {
	return c.value(name, 0)
}

func (c *Context) Int(name string) int32 {
	return int32(c.value(name, 0))
}

func (c *Context) Vec2(name string) math.Vec2 {
	return math.NewVec2(c.value(name, 0), c.value(name, 1))
}

func (c *Context) Vec3(name string) math.Vec3 {
	return math.NewVec3(c.value(name, 0), c.value(name, 1), c.value(name, 2))
}

func (c *Context) Vec4(name string) math.Vec4 {
	return math.NewVec4(c.value(name, 0), c.value(name, 1), c.value(name, 2), c.value(name, 3))
}

// Mat4 returns identity for unset matrices.
func (c *Context) Mat4(name string) math.Mat4 {
	v := c.uniforms[name]
	if len(v) != 16 {
		return math.NewMat4Identity()
	}
	var m math.Mat4
	copy(m.Data[:], v)
	return m
}

func (c *Context) Mat3(name string) math.Mat3 {
	v := c.uniforms[name]
	if len(v) != 9 {
		return math.NewMat3Identity()
	}
	var m math.Mat3
	copy(m.Data[:], v)
	return m
}

// Sample reads the texture bound to sampler name at the base level.
// Unbound samplers read transparent black.
func (c *Context) Sample(name string, uv math.Vec2) math.Vec4 {
	return c.SampleLevel(name, uv, 0)
}

func (c *Context) SampleLevel(name string, uv math.Vec2, level float32) math.Vec4 {
	b, ok := c.samplers[name]
	if !ok {
		return math.Vec4{}
	}
	return sample(b.tex, b.states, uv, level)
}

// TextureSize returns the base level size of the texture bound to name.
func (c *Context) TextureSize(name string) math.Vec2 {
	b, ok := c.samplers[name]
	if !ok {
		return math.Vec2{}
	}
	return math.NewVec2(float32(b.tex.sizes[0].Width), float32(b.tex.sizes[0].Height))
}
