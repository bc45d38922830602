package pixel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

func TestHalfFloat(t *testing.T) {
	assert := assert.New(t)

	for _, f := range []float32{0, 1, -2, 0.5, 65504, 0.000061035156} {
		assert.Equal(f, HalfToFloat32(Float32ToHalf(f)), "value %v", f)
	}
	assert.Equal(uint16(0x3C00), Float32ToHalf(1))
	assert.Equal(uint16(0x7C00), Float32ToHalf(1e9))
	// smallest subnormal
	assert.InDelta(5.96e-8, HalfToFloat32(0x0001), 1e-9)
}

func TestConvertRGBA8ToFloat(t *testing.T) {
	assert := assert.New(t)

	src := []byte{255, 0, 51, 255}
	out, err := Convert(metadata.PixelFormatRGBA8, src, metadata.PixelFormatRGBA32F, 1, 1)
	require.NoError(t, err)
	v := Read(metadata.PixelFormatRGBA32F, out, 1, 0, 0)
	assert.True(v.Compare(math.NewVec4(1, 0, 0.2, 1), 1e-6))

	back, err := Convert(metadata.PixelFormatRGBA32F, out, metadata.PixelFormatRGBA8, 1, 1)
	require.NoError(t, err)
	assert.Equal(src, back)
}

func TestConvertRejectsCompressedTarget(t *testing.T) {
	_, err := Convert(metadata.PixelFormatRGBA8, make([]byte, 64), metadata.PixelFormatDXT1, 4, 4)
	assert.Error(t, err)
}

func TestDecodeWhiteBlocks(t *testing.T) {
	assert := assert.New(t)

	for _, f := range []metadata.PixelFormat{metadata.PixelFormatDXT1, metadata.PixelFormatDXT3, metadata.PixelFormatDXT5} {
		rgba := DecodeBC(f, f.WhiteTexels(4, 4), 4, 4)
		for i, b := range rgba {
			assert.Equal(byte(255), b, "%s byte %d", f, i)
		}
	}
}

func TestDownsampleOddSize(t *testing.T) {
	assert := assert.New(t)

	data := metadata.PixelFormatRGBA8.WhiteTexels(5, 3)
	out, w, h, err := Downsample(metadata.PixelFormatRGBA8, data, 5, 3)
	require.NoError(t, err)
	assert.Equal(uint32(2), w)
	assert.Equal(uint32(1), h)
	assert.Len(out, 8)
}

func TestLuminanceReplicates(t *testing.T) {
	v := Read(metadata.PixelFormatL8, []byte{255}, 1, 0, 0)
	assert.Equal(t, math.NewVec4(1, 1, 1, 1), v)
}
