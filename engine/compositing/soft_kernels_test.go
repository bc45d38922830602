package compositing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/lumen/engine/math"
)

// fakeEnv returns one constant texel per texture.
type fakeEnv struct {
	texels map[string]math.Vec4
	floats map[string]float32
	vec2s  map[string]math.Vec2
	vec3s  map[string]math.Vec3
	mat3s  map[string]math.Mat3
	mat4s  map[string]math.Mat4
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{
		texels: map[string]math.Vec4{
			"RenderTargetTexture0": math.NewVec4(1, 1, 1, 1),
			// normal (0,0,1) at depth 5
			"RenderTargetTexture1": math.NewVec4(0.5, 0.5, 5, 0),
			"RenderTargetTexture2": math.NewVec4(0, 0, 0, 0),
		},
		floats: map[string]float32{},
		vec2s:  map[string]math.Vec2{"InvFocalLen": math.NewVec2(1, 1)},
		vec3s:  map[string]math.Vec3{"LightColor": math.NewVec3(1, 1, 1)},
		mat3s:  map[string]math.Mat3{},
		mat4s:  map[string]math.Mat4{},
	}
}

func (e *fakeEnv) Sample(name string, _ math.Vec2) math.Vec4 { return e.texels[name] }
func (e *fakeEnv) Float(name string) float32                 { return e.floats[name] }
func (e *fakeEnv) Vec2(name string) math.Vec2                { return e.vec2s[name] }
func (e *fakeEnv) Vec3(name string) math.Vec3                { return e.vec3s[name] }
func (e *fakeEnv) Mat3(name string) math.Mat3                { return e.mat3s[name] }
func (e *fakeEnv) Mat4(name string) math.Mat4                { return e.mat4s[name] }

func shaderWith(defines ...string) *lightingShader {
	return newLightingShader(func(name string) bool {
		return hasDefine(defines, name)
	})
}

var center = math.NewVec2(0.5, 0.5)

// pointEnv puts a point light 5 units in front of the surface, on its normal.
func pointEnv(radius float32) *fakeEnv {
	env := newFakeEnv()
	env.vec3s["LightPosition"] = math.NewVec3(0, 0, 0)
	env.floats["LightRadius"] = radius
	return env
}

func TestShadeDirectional(t *testing.T) {
	assert := assert.New(t)

	env := newFakeEnv()
	env.texels["RenderTargetTexture0"] = math.NewVec4(1, 0.5, 0.25, 1)
	env.vec3s["LightDirection"] = math.NewVec3(0, 0, 1)

	color, write := shaderWith("FS_DIRECTIONAL", "FS_NO_SPECULAR").shade(env, center)
	assert.True(write)
	assert.True(math.NewVec4(1, 0.5, 0.25, 1).Compare(color, 1e-5), "color %v", color)
}

func TestShadeAmbientOcclusion(t *testing.T) {
	assert := assert.New(t)

	env := newFakeEnv()
	env.texels["RenderTargetTexture0"] = math.NewVec4(1, 1, 1, 0.3)
	env.vec3s["LightDirection"] = math.NewVec3(0, 0, 1)

	color, _ := shaderWith("FS_DIRECTIONAL", "FS_NO_SPECULAR").shade(env, center)
	assert.InDelta(0.3, color.X, 1e-5)
	assert.Equal(float32(1), color.W)

	color, _ = shaderWith("FS_DIRECTIONAL", "FS_NO_SPECULAR", "FS_NO_AMBIENTOCCLUSION").shade(env, center)
	assert.InDelta(1, color.X, 1e-5)
}

func TestShadeOutOfRange(t *testing.T) {
	assert := assert.New(t)

	env := pointEnv(4)

	color, write := shaderWith("FS_DISCARD", "FS_NO_SPECULAR").shade(env, center)
	assert.False(write)

	color, write = shaderWith("FS_NO_SPECULAR").shade(env, center)
	assert.True(write)
	assert.Equal(math.Vec4{}, color)
}

func TestShadePointAttenuation(t *testing.T) {
	assert := assert.New(t)

	color, write := shaderWith("FS_DISCARD", "FS_NO_SPECULAR").shade(pointEnv(10), center)
	assert.True(write)
	assert.InDelta(0.5, color.X, 1e-5)
	assert.InDelta(0.5, color.Z, 1e-5)
}

func TestShadeNaNNormal(t *testing.T) {
	assert := assert.New(t)

	env := newFakeEnv()
	env.vec3s["LightDirection"] = math.NewVec3(0, 0, 1)
	// decodes to sqrt of a negative number
	env.texels["RenderTargetTexture1"] = math.NewVec4(1, 1, 5, 0)

	color, write := shaderWith("FS_DIRECTIONAL", "FS_NO_SPECULAR").shade(env, center)
	assert.True(write)
	assert.False(color.ToVec3().HasNaN())
	assert.InDelta(1, color.X, 1e-5)
}

func TestShadeSpotCone(t *testing.T) {
	assert := assert.New(t)

	env := pointEnv(10)
	env.vec3s["LightDirection"] = math.NewVec3(0, 0, -1)
	env.floats["SpotConeCos"] = 0.9

	s := shaderWith("FS_SPOT", "FS_SPOT_CONE", "FS_DISCARD", "FS_NO_SPECULAR")
	color, write := s.shade(env, center)
	assert.True(write)
	assert.InDelta(0.5, color.X, 1e-5)

	// surface at a right angle to the spot direction
	env.vec3s["LightPosition"] = math.NewVec3(3, 0, -5)
	_, write = s.shade(env, center)
	assert.False(write)
}

func TestShadeSpotSmoothCone(t *testing.T) {
	assert := assert.New(t)

	env := pointEnv(10)
	env.vec3s["LightDirection"] = math.NewVec3(0, 0, -1)
	env.vec2s["SpotConeCos"] = math.NewVec2(0.5, 0.9)

	s := shaderWith("FS_SPOT", "FS_SPOT_CONE", "FS_SPOT_SMOOTHCONE", "FS_DISCARD", "FS_NO_SPECULAR")
	color, write := s.shade(env, center)
	assert.True(write)
	assert.InDelta(0.5, color.X, 1e-5)
}

func TestShadeSpotShadow(t *testing.T) {
	assert := assert.New(t)

	env := pointEnv(10)
	env.vec3s["LightDirection"] = math.NewVec3(0, 0, -1)
	env.mat4s["ViewSpaceToShadowMapSpace"] = math.NewMat4Identity()
	env.texels["ShadowMap"] = math.NewVec4(0, 0, 0, 0)

	s := shaderWith("FS_SPOT", "FS_SHADOWMAPPING", "FS_DISCARD", "FS_NO_SPECULAR")
	// projected depth -5 is in front of the stored 0
	_, write := s.shade(env, center)
	assert.True(write)

	env.texels["ShadowMap"] = math.NewVec4(-10, 0, 0, 0)
	_, write = s.shade(env, center)
	assert.False(write)

	env.floats["TexelSize"] = 0.01
	_, write = shaderWith("FS_SPOT", "FS_SHADOWMAPPING", "FS_SOFTSHADOWMAPPING", "FS_NO_SPECULAR").shade(env, center)
	assert.True(write)
}

func TestShadeCubeShadow(t *testing.T) {
	assert := assert.New(t)

	env := pointEnv(10)
	env.mat3s["ViewSpaceToShadowCubeMapSpace"] = math.NewMat3Identity()
	env.floats["InvLightRadius"] = 0.1

	s := shaderWith("FS_SHADOWMAPPING", "FS_DISCARD", "FS_NO_SPECULAR", "FS_NO_AMBIENTOCCLUSION")

	// stored distance 1 is beyond the surface at 0.5
	env.texels["ShadowMap"] = math.NewVec4(1, 0, 0, 0)
	color, write := s.shade(env, center)
	assert.True(write)
	assert.InDelta(0.5, color.X, 1e-5)

	env.texels["ShadowMap"] = math.NewVec4(0.25, 0, 0, 0)
	_, write = s.shade(env, center)
	assert.False(write)
}

func TestGlowBlurKeepsConstantImage(t *testing.T) {
	assert := assert.New(t)

	env := newFakeEnv()
	env.texels["Texture"] = math.NewVec4(0.5, 0.25, 1, 1)
	size := math.NewVec2(8, 8)

	out := glowBlur(env, center, size, math.NewVec2(1, 0))
	assert.True(env.texels["Texture"].Compare(out, 1e-3), "blur %v", out)

	out = glowDownscale(env, center, size)
	assert.True(math.NewVec4(0.5, 0.25, 1, 1).Compare(out, 1e-6))

	env.texels["Texture"] = math.NewVec4(1, 1, 1, 0.5)
	out = glowDownscale(env, center, size)
	assert.True(math.NewVec4(0.5, 0.5, 0.5, 1).Compare(out, 1e-6))
}
