package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNumOfBytes(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(uint32(4*3*4), PixelFormatRGBA8.NumOfBytes(4, 3))
	assert.Equal(uint32(2*2*16), PixelFormatRGBA32F.NumOfBytes(2, 2))
	// 5x5 needs 2x2 blocks
	assert.Equal(uint32(4*8), PixelFormatDXT1.NumOfBytes(5, 5))
	assert.Equal(uint32(16), PixelFormatDXT5.NumOfBytes(1, 1))
	assert.Equal(uint32(0), PixelFormatUnknown.NumOfBytes(4, 4))
}

func TestWhiteTexels(t *testing.T) {
	assert := assert.New(t)

	rgba := PixelFormatRGBA8.WhiteTexels(2, 2)
	assert.Len(rgba, 16)
	for _, b := range rgba {
		assert.Equal(byte(0xFF), b)
	}

	dxt := PixelFormatDXT1.WhiteTexels(8, 4)
	assert.Len(dxt, 16)
	assert.Equal([]byte{0xFF, 0xFF, 0, 0, 0, 0, 0, 0}, dxt[8:])

	half := PixelFormatRGBA16F.WhiteTexels(1, 1)
	assert.Equal([]byte{0x00, 0x3C, 0x00, 0x3C, 0x00, 0x3C, 0x00, 0x3C}, half)
}

func TestFormatClassification(t *testing.T) {
	assert := assert.New(t)

	assert.True(PixelFormatDXT3.IsCompressed())
	assert.False(PixelFormatRGBA8.IsCompressed())
	assert.True(PixelFormatDepth24.IsDepth())
	assert.Equal(PixelFormatRGBA8, PixelFormatDXT5.Uncompressed())
	assert.Equal("RGBA16F", PixelFormatRGBA16F.String())
	assert.False(PixelFormatUnknown.IsValid())
}

func TestRenderStateDefaults(t *testing.T) {
	assert := assert.New(t)

	s := DefaultRenderStates()
	assert.Equal(uint32(FillSolid), s[RenderStateFixedFillMode])
	assert.Equal(float32(1), StateFloat32(s[RenderStateLineWidth]))
	assert.True(CompareGreaterEqual.Test(0.5, 0.5))
	assert.False(CompareLess.Test(0.5, 0.5))
	assert.Equal(uint32(2), PrimitiveTriangleStrip.PrimitiveCount(4))
}
