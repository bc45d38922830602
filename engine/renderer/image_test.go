package renderer

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

func TestBuildMipChainEndsAt1x1(t *testing.T) {
	assert := assert.New(t)
	img, err := NewSolidImage(metadata.PixelFormatR32F, 257, 131, math.NewColor(0.5, 0, 0, 1))
	require.NoError(t, err)

	levels, err := BuildMipChain(img)
	require.NoError(t, err)
	assert.Len(levels, 9)
	assert.Equal(uint32(128), levels[1].Width)
	assert.Equal(uint32(65), levels[1].Height)
	last := levels[len(levels)-1]
	assert.Equal(uint32(1), last.Width)
	assert.Equal(uint32(1), last.Height)
}

func TestBuildMipChainBackfillsCompressed(t *testing.T) {
	assert := assert.New(t)
	img := &metadata.Image{Format: metadata.PixelFormatDXT1, Levels: []metadata.ImageLevel{
		{Width: 8, Height: 8, Data: make([]byte, metadata.PixelFormatDXT1.NumOfBytes(8, 8))},
	}}
	levels, err := BuildMipChain(img)
	require.NoError(t, err)
	assert.Len(levels, 4)
	assert.Equal(metadata.PixelFormatDXT1.WhiteTexels(1, 1), levels[3].Data)
}

func TestGoImageConversion(t *testing.T) {
	assert := assert.New(t)
	src := image.NewRGBA(image.Rect(0, 0, 2, 1))
	src.Set(1, 0, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	img := NewImageFromGo(src)
	assert.True(img.Valid())
	assert.Equal(uint32(2), img.Width())
	assert.Equal([]byte{10, 20, 30, 255}, img.Levels[0].Data[4:8])

	back, err := ImageLevelToGo(img.Format, img.Levels[0])
	require.NoError(t, err)
	assert.Equal(color.NRGBA{R: 10, G: 20, B: 30, A: 255}, back.NRGBAAt(1, 0))
}
