package renderer

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/renderer/pixel"
)

/**
 * @brief Converts any Go image into a single level RGBA8 image.
 */
func NewImageFromGo(src image.Image) *metadata.Image {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return &metadata.Image{
		Format: metadata.PixelFormatRGBA8,
		Levels: []metadata.ImageLevel{{
			Width:  uint32(b.Dx()),
			Height: uint32(b.Dy()),
			Data:   dst.Pix,
		}},
	}
}

/**
 * @brief Creates a single level image of the given size filled with color.
 */
func NewSolidImage(format metadata.PixelFormat, width, height uint32, color math.Color) (*metadata.Image, error) {
	texels := make([]math.Vec4, width*height)
	v := color.Vec4()
	for i := range texels {
		texels[i] = v
	}
	data, err := pixel.Encode(format, texels, width, height)
	if err != nil {
		return nil, err
	}
	return &metadata.Image{
		Format: format,
		Levels: []metadata.ImageLevel{{Width: width, Height: height, Data: data}},
	}, nil
}

/**
 * @brief Converts one level of an uncompressed image to an 8 bit Go image.
 */
func ImageLevelToGo(format metadata.PixelFormat, level metadata.ImageLevel) (*image.NRGBA, error) {
	rgba, err := pixel.Convert(format, level.Data, metadata.PixelFormatRGBA8, level.Width, level.Height)
	if err != nil {
		return nil, err
	}
	img := image.NewNRGBA(image.Rect(0, 0, int(level.Width), int(level.Height)))
	copy(img.Pix, rgba)
	return img, nil
}

// downsampleLevel halves a level, flooring each axis with a minimum of 1.
func downsampleLevel(format metadata.PixelFormat, level metadata.ImageLevel) (metadata.ImageLevel, error) {
	nw, nh := max(level.Width/2, 1), max(level.Height/2, 1)
	if format == metadata.PixelFormatRGBA8 {
		src := &image.NRGBA{
			Pix:    level.Data,
			Stride: int(level.Width) * 4,
			Rect:   image.Rect(0, 0, int(level.Width), int(level.Height)),
		}
		dst := image.NewNRGBA(image.Rect(0, 0, int(nw), int(nh)))
		draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
		return metadata.ImageLevel{Width: nw, Height: nh, Data: dst.Pix}, nil
	}
	data, w, h, err := pixel.Downsample(format, level.Data, level.Width, level.Height)
	if err != nil {
		return metadata.ImageLevel{}, err
	}
	return metadata.ImageLevel{Width: w, Height: h, Data: data}, nil
}

/**
 * @brief Builds the mip chain the way texture creation does.
 *
 * A lone base level is extended by downsampling floor(log2(max(w, h)))
 * times. An explicit chain that stops short of 1x1 is extended with white
 * levels. Formats that cannot be downsampled get white levels too.
 */
func BuildMipChain(img *metadata.Image) ([]metadata.ImageLevel, error) {
	if !img.Valid() {
		return nil, fmt.Errorf("BuildMipChain: %w", core.ErrInvalidParameter)
	}
	levels := append([]metadata.ImageLevel(nil), img.Levels...)
	base := levels[0]

	if len(levels) == 1 {
		if !math.IsPowerOfTwo(base.Width) || !math.IsPowerOfTwo(base.Height) {
			core.LogWarn("Texture size %dx%d is not a power of two, mipmap sizes are floored", base.Width, base.Height)
		}
		if !img.Format.IsCompressed() {
			count := math.FloorLog2(max(base.Width, base.Height))
			for i := uint32(0); i < count; i++ {
				next, err := downsampleLevel(img.Format, levels[len(levels)-1])
				if err != nil {
					return nil, err
				}
				levels = append(levels, next)
			}
			return levels, nil
		}
	}

	last := levels[len(levels)-1]
	if last.Width != 1 || last.Height != 1 {
		core.LogWarn("Lowest mipmap is %dx%d, but should be 1x1! Missing mipmap levels will be white!", last.Width, last.Height)
		for last.Width != 1 || last.Height != 1 {
			w, h := max(last.Width/2, 1), max(last.Height/2, 1)
			last = metadata.ImageLevel{Width: w, Height: h, Data: img.Format.WhiteTexels(w, h)}
			levels = append(levels, last)
		}
	}
	return levels, nil
}
