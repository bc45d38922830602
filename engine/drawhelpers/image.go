package drawhelpers

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

/**
 * @brief How an image is sampled and blended into the target.
 */
type ImageOptions struct {
	SamplerStates metadata.SamplerStates
	Color         math.Color
	/** @brief Fragments with an alpha below this are discarded, 1 disables the test. */
	AlphaReference float32
	/** @brief Top left texture coordinate and extent, a zero UVSize means (1,1). */
	UV     math.Vec2
	UVSize math.Vec2
	/** @brief Applied to the texture coordinates, nil means identity. */
	TextureMatrix *math.Mat4
}

/** @brief White, no alpha test, the full texture with default sampling. */
func DefaultImageOptions() ImageOptions {
	return ImageOptions{
		SamplerStates:  metadata.DefaultSamplerStates(),
		Color:          math.ColorWhite,
		AlphaReference: 1,
		UVSize:         math.NewVec2(1, 1),
	}
}

func (o ImageOptions) uvRect() (u, v, uw, vh float32) {
	size := o.UVSize
	if size.X == 0 && size.Y == 0 {
		size = math.NewVec2(1, 1)
	}
	return o.UV.X, o.UV.Y, size.X, size.Y
}

func (o ImageOptions) textureMatrix() math.Mat4 {
	if o.TextureMatrix != nil {
		return *o.TextureMatrix
	}
	return math.NewMat4Identity()
}

// withAlphaTest enables the alpha test for alphaRef below 1 until the
// returned guard is restored.
func (d *DrawHelpers) withAlphaTest(alphaRef float32) *renderer.RenderStateGuard {
	g := d.renderer.BackupRenderStates(
		metadata.RenderStateAlphaTestEnable,
		metadata.RenderStateAlphaTestFunction,
		metadata.RenderStateAlphaTestReference,
	)
	if alphaRef < 1 {
		d.renderer.SetRenderState(metadata.RenderStateAlphaTestEnable, 1)
		d.renderer.SetRenderState(metadata.RenderStateAlphaTestFunction, uint32(metadata.CompareGreaterEqual))
		d.renderer.SetRenderState(metadata.RenderStateAlphaTestReference, metadata.Float32State(alphaRef))
	} else {
		d.renderer.SetRenderState(metadata.RenderStateAlphaTestEnable, 0)
	}
	return g
}

func checkTexture(tex renderer.TextureBuffer) error {
	if tex == nil {
		return core.LogErrorf("DrawHelpers: no texture: %w", core.ErrInvalidParameter)
	}
	if tex.State() == metadata.ResourceStateDestroyed {
		return core.LogErrorf("DrawHelpers: texture: %w", core.ErrResourceDestroyed)
	}
	return nil
}

/**
 * @brief Draws tex as a rectangle with its top left corner at pos.
 * @param size The rectangle size, zero uses the texture size in pixels.
 */
func (d *DrawHelpers) DrawImage(tex renderer.TextureBuffer, pos, size math.Vec2, opts ImageOptions) error {
	if err := checkTexture(tex); err != nil {
		return err
	}
	if size.X == 0 && size.Y == 0 {
		s := tex.GetSize(0)
		size = math.NewVec2(float32(s.Width), float32(s.Height))
	}
	return d.image(tex, quadCorners(d.at2D(pos), size), opts, nil)
}

// DrawImage3D draws tex on the quad v1 v2 v3 v4 given in triangle strip order.
func (d *DrawHelpers) DrawImage3D(tex renderer.TextureBuffer, v1, v2, v3, v4 math.Vec3, objectSpaceToClipSpace math.Mat4, opts ImageOptions) error {
	if err := checkTexture(tex); err != nil {
		return err
	}
	return d.image(tex, []math.Vec3{v1, v2, v3, v4}, opts, &objectSpaceToClipSpace)
}

func (d *DrawHelpers) image(tex renderer.TextureBuffer, corners []math.Vec3, opts ImageOptions, m *math.Mat4) error {
	u, v, uw, vh := opts.uvRect()
	uvs := [4]math.Vec2{
		math.NewVec2(u, v+vh),
		math.NewVec2(u+uw, v+vh),
		math.NewVec2(u, v),
		math.NewVec2(u+uw, v),
	}
	vertices := make([]vertex, 4)
	for i := range vertices {
		vertices[i] = vertex{position: corners[i], uv: uvs[i], color: opts.Color}
	}

	defer d.withAlphaTest(opts.AlphaReference).Restore()
	call := drawCall{
		primitive: metadata.PrimitiveTriangleStrip,
		vertices:  vertices,
		texture:   tex,
		sampler:   opts.SamplerStates,
		alphaRef:  opts.AlphaReference,
		texMatrix: opts.textureMatrix(),
	}
	var err error
	if m != nil {
		err = d.draw3D(call, *m)
	} else {
		err = d.draw2D(call)
	}
	if err != nil {
		return fmt.Errorf("DrawImage: %w", err)
	}
	return nil
}
