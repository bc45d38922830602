package soft

import (
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/renderer/pixel"
)

type texture struct {
	desc   metadata.TextureDesc
	sizes  []math.Size
	levels [][]byte
	// decoded texels of compressed levels, filled on first sample
	decoded [][]math.Vec4
}

func newTexture(desc *metadata.TextureDesc) *texture {
	t := &texture{desc: *desc}
	w, h := desc.Width, desc.Height
	for i := uint32(0); i < max(desc.Levels, 1); i++ {
		t.sizes = append(t.sizes, math.Size{Width: w, Height: h})
		t.levels = append(t.levels, make([]byte, desc.Format.NumOfBytes(w, h)))
		w, h = max(w/2, 1), max(h/2, 1)
	}
	t.decoded = make([][]math.Vec4, len(t.levels))
	return t
}

func (t *texture) invalidate(level uint32) {
	t.decoded[level] = nil
}

// texel reads one texel of a level, x and y must be in range.
func (t *texture) texel(level uint32, x, y uint32) math.Vec4 {
	format := t.desc.Format
	size := t.sizes[level]
	if !format.IsCompressed() {
		return pixel.Read(format, t.levels[level], size.Width, x, y)
	}
	if t.decoded[level] == nil {
		texels, err := pixel.Decode(format, t.levels[level], size.Width, size.Height)
		if err != nil {
			return math.Vec4{}
		}
		t.decoded[level] = texels
	}
	return t.decoded[level][y*size.Width+x]
}

func (t *texture) write(x, y uint32, v math.Vec4) {
	pixel.Write(t.desc.Format, t.levels[0], t.sizes[0].Width, x, y, v)
}

func (t *texture) read(x, y uint32) math.Vec4 {
	return pixel.Read(t.desc.Format, t.levels[0], t.sizes[0].Width, x, y)
}
