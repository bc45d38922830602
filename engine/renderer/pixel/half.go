package pixel

import gomath "math"

// HalfToFloat32 expands an IEEE 754 binary16 value.
func HalfToFloat32(h uint16) float32 {
	sign := uint32(h>>15) << 31
	exp := uint32(h>>10) & 0x1F
	mant := uint32(h) & 0x3FF

	switch {
	case exp == 0 && mant == 0:
		return gomath.Float32frombits(sign)
	case exp == 0:
		// subnormal, renormalize
		e := uint32(127 - 15 + 1)
		for mant&0x400 == 0 {
			mant <<= 1
			e--
		}
		mant &= 0x3FF
		return gomath.Float32frombits(sign | e<<23 | mant<<13)
	case exp == 0x1F:
		return gomath.Float32frombits(sign | 0xFF<<23 | mant<<13)
	}
	return gomath.Float32frombits(sign | (exp+127-15)<<23 | mant<<13)
}

// Float32ToHalf rounds f to the nearest binary16 value. Overflow becomes
// infinity, NaN stays NaN.
func Float32ToHalf(f float32) uint16 {
	bits := gomath.Float32bits(f)
	sign := uint16(bits>>16) & 0x8000
	exp := int32(bits>>23) & 0xFF
	mant := bits & 0x7FFFFF

	if exp == 0xFF {
		if mant != 0 {
			return sign | 0x7E00
		}
		return sign | 0x7C00
	}

	e := exp - 127 + 15
	switch {
	case e >= 0x1F:
		return sign | 0x7C00
	case e <= 0:
		if e < -10 {
			return sign
		}
		mant |= 0x800000
		shift := uint32(14 - e)
		h := uint16(mant >> shift)
		if (mant>>(shift-1))&1 != 0 {
			h++
		}
		return sign | h
	}
	h := sign | uint16(e)<<10 | uint16(mant>>13)
	if mant&0x1000 != 0 {
		// round half up, carry into the exponent is the correct result
		h++
	}
	return h
}
