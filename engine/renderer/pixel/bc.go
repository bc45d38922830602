package pixel

import (
	"encoding/binary"

	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

func expand565(c uint16) [3]uint8 {
	r := uint8(c >> 11 & 0x1F)
	g := uint8(c >> 5 & 0x3F)
	b := uint8(c & 0x1F)
	return [3]uint8{r<<3 | r>>2, g<<2 | g>>4, b<<3 | b>>2}
}

// decodeColorBlock writes the 16 texels of a BC1 color block as RGBA8.
func decodeColorBlock(block []byte, fourColor bool, out *[16][4]uint8) {
	c0 := binary.LittleEndian.Uint16(block[0:])
	c1 := binary.LittleEndian.Uint16(block[2:])
	e0, e1 := expand565(c0), expand565(c1)

	var palette [4][4]uint8
	palette[0] = [4]uint8{e0[0], e0[1], e0[2], 255}
	palette[1] = [4]uint8{e1[0], e1[1], e1[2], 255}
	if fourColor || c0 > c1 {
		for i := 0; i < 3; i++ {
			palette[2][i] = uint8((2*uint32(e0[i]) + uint32(e1[i])) / 3)
			palette[3][i] = uint8((uint32(e0[i]) + 2*uint32(e1[i])) / 3)
		}
		palette[2][3], palette[3][3] = 255, 255
	} else {
		for i := 0; i < 3; i++ {
			palette[2][i] = uint8((uint32(e0[i]) + uint32(e1[i])) / 2)
		}
		palette[2][3] = 255
		palette[3] = [4]uint8{0, 0, 0, 0}
	}

	indices := binary.LittleEndian.Uint32(block[4:])
	for i := 0; i < 16; i++ {
		out[i] = palette[(indices>>(2*i))&3]
	}
}

func decodeExplicitAlpha(block []byte, out *[16][4]uint8) {
	bits := binary.LittleEndian.Uint64(block)
	for i := 0; i < 16; i++ {
		a := uint8(bits >> (4 * i) & 0xF)
		out[i][3] = a<<4 | a
	}
}

func decodeInterpolatedAlpha(block []byte, out *[16][4]uint8) {
	a0, a1 := uint32(block[0]), uint32(block[1])
	var alphas [8]uint32
	alphas[0], alphas[1] = a0, a1
	if a0 > a1 {
		for i := uint32(1); i < 7; i++ {
			alphas[i+1] = ((7-i)*a0 + i*a1) / 7
		}
	} else {
		for i := uint32(1); i < 5; i++ {
			alphas[i+1] = ((5-i)*a0 + i*a1) / 5
		}
		alphas[6], alphas[7] = 0, 255
	}
	var bits uint64
	for i := 0; i < 6; i++ {
		bits |= uint64(block[2+i]) << (8 * i)
	}
	for i := 0; i < 16; i++ {
		out[i][3] = uint8(alphas[bits>>(3*i)&7])
	}
}

/**
 * @brief Decodes DXT1, DXT3 or DXT5 data into tightly packed RGBA8.
 */
func DecodeBC(format metadata.PixelFormat, data []byte, width, height uint32) []byte {
	out := make([]byte, width*height*4)
	blockBytes := format.BlockBytes()
	bw := (width + 3) / 4
	bh := (height + 3) / 4
	var texels [16][4]uint8

	for by := uint32(0); by < bh; by++ {
		for bx := uint32(0); bx < bw; bx++ {
			block := data[(by*bw+bx)*blockBytes:][:blockBytes]
			switch format {
			case metadata.PixelFormatDXT1:
				decodeColorBlock(block, false, &texels)
			case metadata.PixelFormatDXT3:
				decodeColorBlock(block[8:], true, &texels)
				decodeExplicitAlpha(block[:8], &texels)
			case metadata.PixelFormatDXT5:
				decodeColorBlock(block[8:], true, &texels)
				decodeInterpolatedAlpha(block[:8], &texels)
			}
			for ty := uint32(0); ty < 4; ty++ {
				y := by*4 + ty
				if y >= height {
					break
				}
				for tx := uint32(0); tx < 4; tx++ {
					x := bx*4 + tx
					if x >= width {
						break
					}
					copy(out[(y*width+x)*4:], texels[ty*4+tx][:])
				}
			}
		}
	}
	return out
}
