package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMat4InverseRoundTrip(t *testing.T) {
	assert := assert.New(t)

	m := NewMat4Translation(NewVec3(1, 2, 3)).Mul(NewMat4Scale(NewVec3(2, 4, 8))).Mul(NewMat4EulerZ(0.5))
	id := m.Mul(m.Inverse())
	assert.True(id.Compare(NewMat4Identity(), 1e-5))
}

func TestOrthographicMapsCorners(t *testing.T) {
	assert := assert.New(t)

	// y-down 2d mode: top-left corner is (0,0)
	p := NewMat4Orthographic(0, 100, 50, 0, -1, 1)
	tl := NewVec4(0, 0, 0, 1).Transform(p)
	br := NewVec4(100, 50, 0, 1).Transform(p)
	assert.True(tl.Compare(NewVec4(-1, 1, 0, 1), 1e-6))
	assert.True(br.Compare(NewVec4(1, -1, 0, 1), 1e-6))
}

func TestTransformOrder(t *testing.T) {
	assert := assert.New(t)

	// scale first, then translate
	m := NewMat4Scale(NewVec3(2, 2, 2)).Mul(NewMat4Translation(NewVec3(1, 0, 0)))
	p := NewVec3(1, 1, 1).Transform(m)
	assert.True(p.Compare(NewVec3(3, 2, 2), 1e-6))
}

func TestLookAtPointsDownNegativeZ(t *testing.T) {
	assert := assert.New(t)

	v := NewMat4LookAt(NewVec3(0, 0, 5), NewVec3(0, 0, 0), NewVec3(0, 1, 0))
	p := NewVec3(0, 0, 0).Transform(v)
	assert.True(p.Compare(NewVec3(0, 0, -5), 1e-5))
}

func TestHelpers(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(float32(1), Saturate(3))
	assert.Equal(float32(0), Saturate(-1))
	assert.Equal(5, Clamp(9, 0, 5))
	assert.InDelta(0.5, Mix(0.2, 0.8, 0.5), 1e-6)
	assert.InDelta(0.5, Smoothstep(0, 1, 0.5), 1e-6)
	assert.True(IsPowerOfTwo(uint32(256)))
	assert.False(IsPowerOfTwo(uint32(257)))
	assert.Equal(uint32(8), FloorLog2(257))
	assert.Equal(uint32(0), FloorLog2(1))
	assert.Equal([4]uint8{255, 0, 128, 255}, NewColor(2, -1, 0.5, 1).RGBA8())
}
