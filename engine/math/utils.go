package math

import (
	"github.com/chewxy/math32"
	"golang.org/x/exp/constraints"
)

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// Saturate clamps f to [0, 1].
func Saturate(f float32) float32 {
	return Clamp(f, 0, 1)
}

// Mix linearly interpolates between a and b.
func Mix(a, b, t float32) float32 {
	return a*(1-t) + b*t
}

// Smoothstep is the Hermite interpolation used by shading languages.
func Smoothstep(edge0, edge1, x float32) float32 {
	t := Saturate((x - edge0) / (edge1 - edge0))
	return t * t * (3 - 2*t)
}

// IsPowerOfTwo reports whether n is a power of two. Zero is not.
func IsPowerOfTwo[T constraints.Unsigned](n T) bool {
	return n != 0 && n&(n-1) == 0
}

// FloorLog2 returns floor(log2(n)) for n >= 1 and 0 otherwise.
func FloorLog2(n uint32) uint32 {
	var r uint32
	for n > 1 {
		n >>= 1
		r++
	}
	return r
}

func IsFinite(f float32) bool {
	return !math32.IsNaN(f) && !math32.IsInf(f, 0)
}
