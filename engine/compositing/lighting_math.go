package compositing

import (
	"github.com/chewxy/math32"

	"github.com/spaghettifunk/lumen/engine/math"
)

const (
	// DefaultSpecularExponent replaces the G-buffer exponent when the
	// specular exponent channel is unused.
	DefaultSpecularExponent float32 = 45
	// minSpecularExponent keeps pow away from zero and negative exponents.
	minSpecularExponent float32 = 1.175494351e-38
	gamma               float32 = 2.2
)

var defaultAxis = math.NewVec3(0, 0, 1)

/**
 * @brief Reconstructs a view space position from a depth value.
 * @param uv Texture coordinate with (0,0) at the lower left corner.
 * @param eyeZ Positive view space distance along the view direction.
 * @param invFocalLen The reciprocal focal lengths of the projection.
 */
func UVToEye(uv math.Vec2, eyeZ float32, invFocalLen math.Vec2) math.Vec3 {
	uv = uv.MulScalar(2).Sub(math.NewVec2(1, 1))
	return math.NewVec3(uv.X*invFocalLen.X*eyeZ, uv.Y*invFocalLen.Y*eyeZ, -eyeZ)
}

// InvFocalLen returns the reciprocal focal lengths of a perspective
// projection with the given vertical field of view.
func InvFocalLen(fovY, aspect float32) math.Vec2 {
	t := math32.Tan(fovY * 0.5)
	return math.NewVec2(t*aspect, t)
}

func guardNaN(v math.Vec3) math.Vec3 {
	if v.HasNaN() {
		return defaultAxis
	}
	return v
}

/**
 * @brief Blinn-Phong lighting. NaN vectors are replaced by (0,0,1). A nil
 * specular color disables the specular term.
 */
func BlinnPhong(light, lightColor, view, normal, diffuse math.Vec3, specular *math.Vec3, exponent float32) math.Vec3 {
	normal = guardNaN(normal)
	light = guardNaN(light)
	view = guardNaN(view)

	out := diffuse.Mul(lightColor).MulScalar(math.Saturate(light.Dot(normal)))
	if specular == nil {
		return out
	}
	half := light.Add(view).Normalized()
	if exponent < minSpecularExponent {
		exponent = minSpecularExponent
	}
	s := math32.Pow(math.Saturate(half.Dot(normal)), exponent)
	return out.Add(specular.Mul(lightColor).MulScalar(s))
}

// Attenuation is the linear falloff clamp(1 - distance/radius, 0, 1).
func Attenuation(distance, radius float32) float32 {
	if radius <= 0 {
		return 0
	}
	return math.Saturate(1 - distance/radius)
}

/**
 * @brief Combines ambient occlusion with realtime shadowing. The smaller
 * value wins so occluded and shadowed areas are not darkened twice.
 */
func CombineOcclusion(ao, shadow float32) float32 {
	return math.Min(ao, shadow)
}

// UnpackDepth reads a depth stored across four normalized channels.
func UnpackDepth(c math.Vec4) float32 {
	return c.X + c.Y/256 + c.Z/65536 + c.W/16777216
}

// PackDepth stores d in [0,1] as four bytes readable by UnpackDepth.
func PackDepth(d float32) [4]uint8 {
	var out [4]uint8
	rest := math.Saturate(d)
	scale := float32(1)
	for i := range out {
		v := math32.Floor(rest * 255 / scale)
		v = math.Clamp(v, 0, 255)
		out[i] = uint8(v)
		rest -= v / 255 * scale
		scale /= 256
	}
	return out
}

/**
 * @brief Maps a direction to the texture coordinate of a cube strip: a 2D
 * texture holding the six faces +X, -X, +Y, -Y, +Z, -Z stacked top to bottom.
 */
func CubeStripUV(dir math.Vec3) math.Vec2 {
	ax, ay, az := math32.Abs(dir.X), math32.Abs(dir.Y), math32.Abs(dir.Z)
	var face int
	var sc, tc, ma float32
	switch {
	case ax >= ay && ax >= az:
		ma = ax
		if dir.X >= 0 {
			face, sc, tc = 0, -dir.Z, -dir.Y
		} else {
			face, sc, tc = 1, dir.Z, -dir.Y
		}
	case ay >= az:
		ma = ay
		if dir.Y >= 0 {
			face, sc, tc = 2, dir.X, dir.Z
		} else {
			face, sc, tc = 3, dir.X, -dir.Z
		}
	default:
		ma = az
		if dir.Z >= 0 {
			face, sc, tc = 4, dir.X, -dir.Y
		} else {
			face, sc, tc = 5, -dir.X, -dir.Y
		}
	}
	if ma == 0 {
		return math.NewVec2(0.5, 0.5/6)
	}
	s := (sc/ma + 1) * 0.5
	t := math.Clamp((tc/ma+1)*0.5, 0, 0.999)
	return math.NewVec2(s, (float32(face)+t)/6)
}

// ToLinear converts an sRGB encoded color to linear space.
func ToLinear(c math.Vec3) math.Vec3 {
	return math.NewVec3(math32.Pow(c.X, gamma), math32.Pow(c.Y, gamma), math32.Pow(c.Z, gamma))
}
