// Package pixel reads, writes and converts texel data of every
// metadata.PixelFormat. Block compressed formats can be decoded but not
// encoded.
package pixel

import (
	"encoding/binary"
	"fmt"
	gomath "math"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

func unorm8(b byte) float32 {
	return float32(b) / 255
}

func toUnorm8(f float32) byte {
	return byte(math.Saturate(f)*255 + 0.5)
}

/**
 * @brief Reads the texel at (x, y) of an uncompressed image. Missing channels
 * read as 0 for color and 1 for alpha. Luminance formats replicate into rgb.
 */
func Read(format metadata.PixelFormat, data []byte, width, x, y uint32) math.Vec4 {
	bpp := format.BytesPerPixel()
	o := (y*width + x) * bpp
	p := data[o : o+bpp]
	switch format {
	case metadata.PixelFormatR8:
		return math.Vec4{X: unorm8(p[0]), W: 1}
	case metadata.PixelFormatL8:
		l := unorm8(p[0])
		return math.Vec4{X: l, Y: l, Z: l, W: 1}
	case metadata.PixelFormatLA8:
		l := unorm8(p[0])
		return math.Vec4{X: l, Y: l, Z: l, W: unorm8(p[1])}
	case metadata.PixelFormatRGB8:
		return math.Vec4{X: unorm8(p[0]), Y: unorm8(p[1]), Z: unorm8(p[2]), W: 1}
	case metadata.PixelFormatRGBA8:
		return math.Vec4{X: unorm8(p[0]), Y: unorm8(p[1]), Z: unorm8(p[2]), W: unorm8(p[3])}
	case metadata.PixelFormatR32F, metadata.PixelFormatDepth32F:
		return math.Vec4{X: gomath.Float32frombits(binary.LittleEndian.Uint32(p)), W: 1}
	case metadata.PixelFormatDepth24:
		d := float32(binary.LittleEndian.Uint32(p)&0xFFFFFF) / 0xFFFFFF
		return math.Vec4{X: d, W: 1}
	case metadata.PixelFormatRGBA16F:
		return math.Vec4{
			X: HalfToFloat32(binary.LittleEndian.Uint16(p[0:])),
			Y: HalfToFloat32(binary.LittleEndian.Uint16(p[2:])),
			Z: HalfToFloat32(binary.LittleEndian.Uint16(p[4:])),
			W: HalfToFloat32(binary.LittleEndian.Uint16(p[6:])),
		}
	case metadata.PixelFormatRGBA32F:
		return math.Vec4{
			X: gomath.Float32frombits(binary.LittleEndian.Uint32(p[0:])),
			Y: gomath.Float32frombits(binary.LittleEndian.Uint32(p[4:])),
			Z: gomath.Float32frombits(binary.LittleEndian.Uint32(p[8:])),
			W: gomath.Float32frombits(binary.LittleEndian.Uint32(p[12:])),
		}
	}
	return math.Vec4{}
}

/**
 * @brief Writes v to the texel at (x, y) of an uncompressed image. Unorm
 * formats saturate, luminance formats take the red channel.
 */
func Write(format metadata.PixelFormat, data []byte, width, x, y uint32, v math.Vec4) {
	bpp := format.BytesPerPixel()
	o := (y*width + x) * bpp
	p := data[o : o+bpp]
	switch format {
	case metadata.PixelFormatR8, metadata.PixelFormatL8:
		p[0] = toUnorm8(v.X)
	case metadata.PixelFormatLA8:
		p[0] = toUnorm8(v.X)
		p[1] = toUnorm8(v.W)
	case metadata.PixelFormatRGB8:
		p[0], p[1], p[2] = toUnorm8(v.X), toUnorm8(v.Y), toUnorm8(v.Z)
	case metadata.PixelFormatRGBA8:
		p[0], p[1], p[2], p[3] = toUnorm8(v.X), toUnorm8(v.Y), toUnorm8(v.Z), toUnorm8(v.W)
	case metadata.PixelFormatR32F, metadata.PixelFormatDepth32F:
		binary.LittleEndian.PutUint32(p, gomath.Float32bits(v.X))
	case metadata.PixelFormatDepth24:
		binary.LittleEndian.PutUint32(p, uint32(math.Saturate(v.X)*0xFFFFFF+0.5))
	case metadata.PixelFormatRGBA16F:
		binary.LittleEndian.PutUint16(p[0:], Float32ToHalf(v.X))
		binary.LittleEndian.PutUint16(p[2:], Float32ToHalf(v.Y))
		binary.LittleEndian.PutUint16(p[4:], Float32ToHalf(v.Z))
		binary.LittleEndian.PutUint16(p[6:], Float32ToHalf(v.W))
	case metadata.PixelFormatRGBA32F:
		binary.LittleEndian.PutUint32(p[0:], gomath.Float32bits(v.X))
		binary.LittleEndian.PutUint32(p[4:], gomath.Float32bits(v.Y))
		binary.LittleEndian.PutUint32(p[8:], gomath.Float32bits(v.Z))
		binary.LittleEndian.PutUint32(p[12:], gomath.Float32bits(v.W))
	}
}

/**
 * @brief Decodes a whole image into float texels, row by row.
 */
func Decode(format metadata.PixelFormat, data []byte, width, height uint32) ([]math.Vec4, error) {
	if !format.IsValid() {
		return nil, fmt.Errorf("pixel.Decode: %w: %s", core.ErrUnsupportedFormat, format)
	}
	if uint32(len(data)) < format.NumOfBytes(width, height) {
		return nil, fmt.Errorf("pixel.Decode: %w: %d bytes for %dx%d %s", core.ErrInvalidParameter, len(data), width, height, format)
	}
	if format.IsCompressed() {
		rgba := DecodeBC(format, data, width, height)
		return Decode(metadata.PixelFormatRGBA8, rgba, width, height)
	}
	out := make([]math.Vec4, width*height)
	for y := uint32(0); y < height; y++ {
		for x := uint32(0); x < width; x++ {
			out[y*width+x] = Read(format, data, width, x, y)
		}
	}
	return out, nil
}

/**
 * @brief Encodes float texels into an uncompressed format.
 */
func Encode(format metadata.PixelFormat, texels []math.Vec4, width, height uint32) ([]byte, error) {
	if !format.IsValid() || format.IsCompressed() {
		return nil, fmt.Errorf("pixel.Encode: %w: %s", core.ErrUnsupportedFormat, format)
	}
	if uint32(len(texels)) < width*height {
		return nil, fmt.Errorf("pixel.Encode: %w: %d texels for %dx%d", core.ErrInvalidParameter, len(texels), width, height)
	}
	out := make([]byte, format.NumOfBytes(width, height))
	for y := uint32(0); y < height; y++ {
		for x := uint32(0); x < width; x++ {
			Write(format, out, width, x, y, texels[y*width+x])
		}
	}
	return out, nil
}

/**
 * @brief Converts an image between formats. Identical formats are copied.
 */
func Convert(src metadata.PixelFormat, data []byte, dst metadata.PixelFormat, width, height uint32) ([]byte, error) {
	if src == dst {
		n := src.NumOfBytes(width, height)
		if uint32(len(data)) < n {
			return nil, fmt.Errorf("pixel.Convert: %w: %d bytes for %dx%d %s", core.ErrInvalidParameter, len(data), width, height, src)
		}
		out := make([]byte, n)
		copy(out, data)
		return out, nil
	}
	texels, err := Decode(src, data, width, height)
	if err != nil {
		return nil, err
	}
	return Encode(dst, texels, width, height)
}

/**
 * @brief Halves an uncompressed image with a 2x2 box filter. Odd sizes floor,
 * every axis stops at 1.
 */
func Downsample(format metadata.PixelFormat, data []byte, width, height uint32) ([]byte, uint32, uint32, error) {
	nw, nh := max(width/2, 1), max(height/2, 1)
	texels, err := Decode(format, data, width, height)
	if err != nil {
		return nil, 0, 0, err
	}
	out := make([]math.Vec4, nw*nh)
	for y := uint32(0); y < nh; y++ {
		for x := uint32(0); x < nw; x++ {
			x0, y0 := min(x*2, width-1), min(y*2, height-1)
			x1, y1 := min(x*2+1, width-1), min(y*2+1, height-1)
			sum := texels[y0*width+x0].
				Add(texels[y0*width+x1]).
				Add(texels[y1*width+x0]).
				Add(texels[y1*width+x1])
			out[y*nw+x] = sum.MulScalar(0.25)
		}
	}
	enc, err := Encode(format, out, nw, nh)
	return enc, nw, nh, err
}
