package metadata

import (
	"encoding/binary"
	"math"
)

/**
 * @brief The internal storage format of a texture buffer.
 */
type PixelFormat int

const (
	/** @brief Invalid. Never accepted by any operation. */
	PixelFormatUnknown PixelFormat = iota
	/** @brief One byte red channel. */
	PixelFormatR8
	/** @brief One byte luminance, sampled as (l, l, l, 1). */
	PixelFormatL8
	/** @brief Luminance plus alpha, one byte each. */
	PixelFormatLA8
	PixelFormatRGB8
	PixelFormatRGBA8
	/** @brief One 32 bit float channel. */
	PixelFormatR32F
	/** @brief Four half floats. */
	PixelFormatRGBA16F
	/** @brief Four 32 bit floats. */
	PixelFormatRGBA32F
	/** @brief BC1, 8 bytes per 4x4 block. */
	PixelFormatDXT1
	/** @brief BC2, 16 bytes per 4x4 block. */
	PixelFormatDXT3
	/** @brief BC3, 16 bytes per 4x4 block. */
	PixelFormatDXT5
	/** @brief 24 bit normalized depth stored in the low bits of a uint32. */
	PixelFormatDepth24
	PixelFormatDepth32F
	PixelFormatNumber
)

var pixelFormatNames = [...]string{
	PixelFormatUnknown:  "Unknown",
	PixelFormatR8:       "R8",
	PixelFormatL8:       "L8",
	PixelFormatLA8:      "LA8",
	PixelFormatRGB8:     "RGB8",
	PixelFormatRGBA8:    "RGBA8",
	PixelFormatR32F:     "R32F",
	PixelFormatRGBA16F:  "RGBA16F",
	PixelFormatRGBA32F:  "RGBA32F",
	PixelFormatDXT1:     "DXT1",
	PixelFormatDXT3:     "DXT3",
	PixelFormatDXT5:     "DXT5",
	PixelFormatDepth24:  "Depth24",
	PixelFormatDepth32F: "Depth32F",
}

func (f PixelFormat) String() string {
	if f < 0 || f >= PixelFormatNumber {
		return "Invalid"
	}
	return pixelFormatNames[f]
}

func (f PixelFormat) IsValid() bool {
	return f > PixelFormatUnknown && f < PixelFormatNumber
}

func (f PixelFormat) IsCompressed() bool {
	return f == PixelFormatDXT1 || f == PixelFormatDXT3 || f == PixelFormatDXT5
}

func (f PixelFormat) IsDepth() bool {
	return f == PixelFormatDepth24 || f == PixelFormatDepth32F
}

func (f PixelFormat) IsFloat() bool {
	return f == PixelFormatR32F || f == PixelFormatRGBA16F || f == PixelFormatRGBA32F || f == PixelFormatDepth32F
}

/** @brief Bytes per pixel for uncompressed formats, 0 for block compressed ones. */
func (f PixelFormat) BytesPerPixel() uint32 {
	switch f {
	case PixelFormatR8, PixelFormatL8:
		return 1
	case PixelFormatLA8:
		return 2
	case PixelFormatRGB8:
		return 3
	case PixelFormatRGBA8, PixelFormatR32F, PixelFormatDepth24, PixelFormatDepth32F:
		return 4
	case PixelFormatRGBA16F:
		return 8
	case PixelFormatRGBA32F:
		return 16
	}
	return 0
}

/** @brief Bytes per 4x4 block for compressed formats, 0 otherwise. */
func (f PixelFormat) BlockBytes() uint32 {
	switch f {
	case PixelFormatDXT1:
		return 8
	case PixelFormatDXT3, PixelFormatDXT5:
		return 16
	}
	return 0
}

/** @brief Number of color components a sample of this format carries. */
func (f PixelFormat) Components() uint32 {
	switch f {
	case PixelFormatR8, PixelFormatL8, PixelFormatR32F, PixelFormatDepth24, PixelFormatDepth32F:
		return 1
	case PixelFormatLA8:
		return 2
	case PixelFormatRGB8, PixelFormatDXT1:
		return 3
	case PixelFormatUnknown:
		return 0
	}
	return 4
}

/**
 * @brief Returns the number of bytes a width x height image of this format occupies.
 * Compressed formats round both dimensions up to whole 4x4 blocks.
 */
func (f PixelFormat) NumOfBytes(width, height uint32) uint32 {
	if f.IsCompressed() {
		bw := (width + 3) / 4
		bh := (height + 3) / 4
		return bw * bh * f.BlockBytes()
	}
	return width * height * f.BytesPerPixel()
}

/**
 * @brief Returns the uncompressed format a compressed format decodes to.
 * Uncompressed formats return themselves.
 */
func (f PixelFormat) Uncompressed() PixelFormat {
	switch f {
	case PixelFormatDXT1:
		return PixelFormatRGB8
	case PixelFormatDXT3, PixelFormatDXT5:
		return PixelFormatRGBA8
	}
	return f
}

/**
 * @brief Returns opaque white texel data for a width x height image of this
 * format. Used to fill missing mipmap levels.
 */
func (f PixelFormat) WhiteTexels(width, height uint32) []byte {
	n := f.NumOfBytes(width, height)
	out := make([]byte, n)
	var texel []byte
	switch f {
	case PixelFormatR8, PixelFormatL8, PixelFormatLA8, PixelFormatRGB8, PixelFormatRGBA8:
		for i := range out {
			out[i] = 0xFF
		}
		return out
	case PixelFormatR32F, PixelFormatDepth32F:
		texel = binary.LittleEndian.AppendUint32(nil, math.Float32bits(1))
	case PixelFormatRGBA32F:
		one := math.Float32bits(1)
		for i := 0; i < 4; i++ {
			texel = binary.LittleEndian.AppendUint32(texel, one)
		}
	case PixelFormatRGBA16F:
		for i := 0; i < 4; i++ {
			texel = binary.LittleEndian.AppendUint16(texel, 0x3C00)
		}
	case PixelFormatDepth24:
		texel = binary.LittleEndian.AppendUint32(nil, 0x00FFFFFF)
	case PixelFormatDXT1:
		// color0 = white, color1 = black, every index selects color0
		texel = []byte{0xFF, 0xFF, 0x00, 0x00, 0, 0, 0, 0}
	case PixelFormatDXT3:
		texel = []byte{
			0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
			0xFF, 0xFF, 0x00, 0x00, 0, 0, 0, 0,
		}
	case PixelFormatDXT5:
		texel = []byte{
			0xFF, 0xFF, 0, 0, 0, 0, 0, 0,
			0xFF, 0xFF, 0x00, 0x00, 0, 0, 0, 0,
		}
	default:
		return out
	}
	for i := 0; i+len(texel) <= len(out); i += len(texel) {
		copy(out[i:], texel)
	}
	return out
}

/**
 * @brief Texture buffer kinds.
 */
type TextureBufferType int

const (
	/** @brief Power of two friendly 2D texture with optional mipmaps. */
	TextureBufferType2D TextureBufferType = iota
	/** @brief Arbitrary sized 2D texture without mipmaps. */
	TextureBufferTypeRectangle
)

func (t TextureBufferType) String() string {
	if t == TextureBufferTypeRectangle {
		return "Rectangle"
	}
	return "2D"
}

/** @brief Creation flags of a texture buffer. */
type TextureFlag uint32

const (
	/** @brief Build or upload a full mipmap chain down to 1x1. */
	TextureFlagMipmaps TextureFlag = 0x1
	/** @brief Store in a compressed format if the backend supports it. */
	TextureFlagCompression TextureFlag = 0x2
	/** @brief The texture can be rendered to. */
	TextureFlagRenderTarget TextureFlag = 0x4
)

func (f TextureFlag) Has(flag TextureFlag) bool {
	return f&flag != 0
}

/** @brief Multisample modes for surface texture buffers. */
type MultisampleMode int

const (
	MultisampleNone MultisampleMode = 0
	Multisample2x   MultisampleMode = 2
	Multisample4x   MultisampleMode = 4
)

/**
 * @brief Describes a texture to be created by a backend.
 */
type TextureDesc struct {
	Type   TextureBufferType
	Width  uint32
	Height uint32
	Format PixelFormat
	/** @brief The number of mip levels, at least 1. */
	Levels uint32
	/** @brief The texture will be attached to a render target. */
	RenderTarget bool
}
