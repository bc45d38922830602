package drawhelpers

import (
	"github.com/chewxy/math32"

	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// setPointSize changes the point size until the returned guard is restored.
func (d *DrawHelpers) setPointSize(size float32) *renderer.RenderStateGuard {
	g := d.renderer.BackupRenderStates(metadata.RenderStatePointSize)
	d.renderer.SetRenderState(metadata.RenderStatePointSize, metadata.Float32State(size))
	return g
}

func (d *DrawHelpers) setLineWidth(width float32) *renderer.RenderStateGuard {
	g := d.renderer.BackupRenderStates(metadata.RenderStateLineWidth)
	d.renderer.SetRenderState(metadata.RenderStateLineWidth, metadata.Float32State(width))
	return g
}

func solid(color math.Color, positions ...math.Vec3) []vertex {
	out := make([]vertex, len(positions))
	for i, p := range positions {
		out[i] = vertex{position: p, color: color}
	}
	return out
}

func (d *DrawHelpers) DrawPoint(color math.Color, position math.Vec2, size float32) error {
	defer d.setPointSize(size).Restore()
	return d.draw2D(drawCall{primitive: metadata.PrimitivePointList, vertices: solid(color, d.at2D(position))})
}

func (d *DrawHelpers) DrawPoint3D(color math.Color, position math.Vec3, objectSpaceToClipSpace math.Mat4, size float32) error {
	defer d.setPointSize(size).Restore()
	return d.draw3D(drawCall{primitive: metadata.PrimitivePointList, vertices: solid(color, position)}, objectSpaceToClipSpace)
}

func (d *DrawHelpers) DrawLine(color math.Color, start, end math.Vec2, width float32) error {
	defer d.setLineWidth(width).Restore()
	return d.draw2D(drawCall{primitive: metadata.PrimitiveLineList, vertices: solid(color, d.at2D(start), d.at2D(end))})
}

func (d *DrawHelpers) DrawLine3D(color math.Color, start, end math.Vec3, objectSpaceToClipSpace math.Mat4, width float32) error {
	defer d.setLineWidth(width).Restore()
	return d.draw3D(drawCall{primitive: metadata.PrimitiveLineList, vertices: solid(color, start, end)}, objectSpaceToClipSpace)
}

// DrawTriangle draws a filled triangle, or its outline when width is not 0.
func (d *DrawHelpers) DrawTriangle(color math.Color, v1, v2, v3 math.Vec2, width float32) error {
	return d.triangle(color, d.at2D(v1), d.at2D(v2), d.at2D(v3), width, nil)
}

func (d *DrawHelpers) DrawTriangle3D(color math.Color, v1, v2, v3 math.Vec3, objectSpaceToClipSpace math.Mat4, width float32) error {
	return d.triangle(color, v1, v2, v3, width, &objectSpaceToClipSpace)
}

func (d *DrawHelpers) triangle(color math.Color, v1, v2, v3 math.Vec3, width float32, m *math.Mat4) error {
	call := drawCall{primitive: metadata.PrimitiveTriangleList, vertices: solid(color, v1, v2, v3)}
	if width != 0 {
		defer d.setLineWidth(width).Restore()
		call.primitive = metadata.PrimitiveLineStrip
		call.vertices = solid(color, v1, v2, v3, v1)
	}
	if m != nil {
		return d.draw3D(call, *m)
	}
	return d.draw2D(call)
}

/**
 * @brief Draws a rectangle with its top left corner at pos. A width of 0
 * fills it, otherwise its outline is drawn with lines of that width.
 */
func (d *DrawHelpers) DrawQuad(color math.Color, pos, size math.Vec2, width float32) error {
	if width != 0 {
		v1 := pos
		v2 := math.NewVec2(pos.X+size.X, pos.Y)
		v3 := math.NewVec2(pos.X+size.X, pos.Y+size.Y)
		v4 := math.NewVec2(pos.X, pos.Y+size.Y)
		for _, l := range [4][2]math.Vec2{{v1, v2}, {v2, v3}, {v3, v4}, {v4, v1}} {
			if err := d.DrawLine(color, l[0], l[1], width); err != nil {
				return err
			}
		}
		return nil
	}
	return d.draw2D(drawCall{
		primitive: metadata.PrimitiveTriangleStrip,
		vertices:  solid(color, quadCorners(d.at2D(pos), size)...),
	})
}

// DrawQuad3D draws the quad v1 v2 v3 v4 given in triangle strip order.
func (d *DrawHelpers) DrawQuad3D(color math.Color, v1, v2, v3, v4 math.Vec3, objectSpaceToClipSpace math.Mat4, width float32) error {
	if width != 0 {
		for _, l := range [4][2]math.Vec3{{v1, v2}, {v2, v3}, {v3, v4}, {v4, v1}} {
			if err := d.DrawLine3D(color, l[0], l[1], objectSpaceToClipSpace, width); err != nil {
				return err
			}
		}
		return nil
	}
	return d.draw3D(drawCall{primitive: metadata.PrimitiveTriangleStrip, vertices: solid(color, v1, v2, v3, v4)}, objectSpaceToClipSpace)
}

// quadCorners returns the bottom left, bottom right, top left and top right
// corners of a y down rectangle, in triangle strip order.
func quadCorners(pos math.Vec3, size math.Vec2) []math.Vec3 {
	return []math.Vec3{
		math.NewVec3(pos.X, pos.Y+size.Y, pos.Z),
		math.NewVec3(pos.X+size.X, pos.Y+size.Y, pos.Z),
		math.NewVec3(pos.X, pos.Y, pos.Z),
		math.NewVec3(pos.X+size.X, pos.Y, pos.Z),
	}
}

/**
 * @brief Returns the four corner colors of a linear gradient from color1 to
 * color2 along angle, in quadCorners order.
 */
func gradientColors(color1, color2 math.Color, angle float32) [4]math.Color {
	sin, cos := math32.Sincos(angle)
	scale := 1 / (math32.Abs(sin) + math32.Abs(cos))
	c1, c2 := color1.Vec4(), color2.Vec4()

	corner := func(horizontalPositive, verticalPositive math.Vec4, horizontalNegative, verticalNegative math.Vec4) math.Color {
		var c math.Vec4
		if cos > 0 {
			c = c.Add(horizontalPositive.MulScalar(cos))
		}
		if cos < 0 {
			c = c.Add(horizontalNegative.MulScalar(-cos))
		}
		if sin > 0 {
			c = verticalPositive.MulScalar(sin).Add(c).MulScalar(scale)
		}
		if sin < 0 {
			c = verticalNegative.MulScalar(-sin).Add(c).MulScalar(scale)
		}
		return math.ColorFromVec4(c).Saturated()
	}
	return [4]math.Color{
		corner(c1, c2, c2, c1),
		corner(c2, c2, c1, c1),
		corner(c1, c1, c2, c2),
		corner(c2, c1, c1, c2),
	}
}

func (d *DrawHelpers) DrawGradientQuad(color1, color2 math.Color, angle float32, pos, size math.Vec2) error {
	corners := quadCorners(d.at2D(pos), size)
	colors := gradientColors(color1, color2, angle)
	vertices := make([]vertex, 4)
	for i := range vertices {
		vertices[i] = vertex{position: corners[i], color: colors[i]}
	}
	return d.draw2D(drawCall{primitive: metadata.PrimitiveTriangleStrip, vertices: vertices})
}

func (d *DrawHelpers) DrawGradientQuad3D(color1, color2 math.Color, angle float32, v1, v2, v3, v4 math.Vec3, objectSpaceToClipSpace math.Mat4) error {
	colors := gradientColors(color1, color2, angle)
	vertices := make([]vertex, 4)
	for i, p := range [4]math.Vec3{v1, v2, v3, v4} {
		vertices[i] = vertex{position: p, color: colors[i]}
	}
	return d.draw3D(drawCall{primitive: metadata.PrimitiveTriangleStrip, vertices: vertices}, objectSpaceToClipSpace)
}
