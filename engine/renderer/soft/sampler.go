package soft

import (
	"github.com/chewxy/math32"

	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

func address(mode metadata.TextureAddressing, i, n int) int {
	switch mode {
	case metadata.AddressClamp:
		return max(0, min(i, n-1))
	case metadata.AddressMirror:
		period := 2 * n
		m := ((i % period) + period) % period
		if m >= n {
			m = period - 1 - m
		}
		return m
	}
	return ((i % n) + n) % n
}

/**
 * @brief Samples level of t at normalized coordinates uv. Without a mip
 * filter only the base level is used. Magnification and minification use
 * the same filter since there are no derivatives to choose between them.
 */
func sample(t *texture, states metadata.SamplerStates, uv math.Vec2, level float32) math.Vec4 {
	lvl := uint32(0)
	if metadata.TextureFiltering(states[metadata.SamplerStateMipFilter]) != metadata.FilterNone && level > 0 {
		lvl = min(uint32(level+0.5), uint32(len(t.levels)-1))
	}
	size := t.sizes[lvl]
	w, h := int(size.Width), int(size.Height)
	au := metadata.TextureAddressing(states[metadata.SamplerStateAddressU])
	av := metadata.TextureAddressing(states[metadata.SamplerStateAddressV])

	fetch := func(x, y int) math.Vec4 {
		return t.texel(lvl, uint32(address(au, x, w)), uint32(address(av, y, h)))
	}

	x := uv.X * float32(w)
	y := uv.Y * float32(h)
	if metadata.TextureFiltering(states[metadata.SamplerStateMagFilter]) != metadata.FilterLinear {
		return fetch(int(math32.Floor(x)), int(math32.Floor(y)))
	}

	x -= 0.5
	y -= 0.5
	x0, y0 := math32.Floor(x), math32.Floor(y)
	fx, fy := x-x0, y-y0
	ix, iy := int(x0), int(y0)
	top := fetch(ix, iy).MulScalar(1 - fx).Add(fetch(ix+1, iy).MulScalar(fx))
	bottom := fetch(ix, iy+1).MulScalar(1 - fx).Add(fetch(ix+1, iy+1).MulScalar(fx))
	return top.MulScalar(1 - fy).Add(bottom.MulScalar(fy))
}
