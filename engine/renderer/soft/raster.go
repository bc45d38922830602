package soft

import (
	"encoding/binary"

	"github.com/chewxy/math32"

	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

type renderTarget struct {
	color  *texture
	depth  *texture
	width  uint32
	height uint32
}

type clipVertex struct {
	pos  math.Vec4
	vary [MaxVaryings]math.Vec4
}

// screenVertex carries varyings premultiplied by 1/w so that they can be
// interpolated linearly in screen space.
type screenVertex struct {
	x, y, z float32
	invW    float32
	vary    [MaxVaryings]math.Vec4
}

type rasterizer struct {
	ctx    *Context
	vs     VertexFunc
	fs     FragmentFunc
	target renderTarget
	states [metadata.RenderStateNumber]uint32
	vp     math.Rect
	// inclusive-exclusive pixel bounds
	x0, y0, x1, y1 int
}

func newRasterizer(call *metadata.DrawCall, target renderTarget, ctx *Context, vs VertexFunc, fs FragmentFunc) *rasterizer {
	r := &rasterizer{
		ctx:    ctx,
		vs:     vs,
		fs:     fs,
		target: target,
		states: call.RenderStates,
		vp:     call.Viewport,
	}
	r.x0, r.y0 = max(int(r.vp.X), 0), max(int(r.vp.Y), 0)
	r.x1 = min(int(r.vp.X+r.vp.Width), int(target.width))
	r.y1 = min(int(r.vp.Y+r.vp.Height), int(target.height))
	if r.states[metadata.RenderStateScissorTestEnable] != 0 {
		s := call.Scissor
		r.x0, r.y0 = max(r.x0, int(s.X)), max(r.y0, int(s.Y))
		r.x1, r.y1 = min(r.x1, int(s.X+s.Width)), min(r.y1, int(s.Y+s.Height))
	}
	return r
}

func (r *rasterizer) state(s metadata.RenderState) uint32 {
	return r.states[s]
}

// run shades every vertex once and assembles the primitives.
func (r *rasterizer) run(prim metadata.PrimitiveType, indices []uint32) {
	cache := make(map[uint32]clipVertex, len(indices))
	verts := make([]clipVertex, len(indices))
	for i, idx := range indices {
		v, ok := cache[idx]
		if !ok {
			r.ctx.vertex = idx
			var out Vertex
			r.vs(r.ctx, &out)
			v = clipVertex{pos: out.Position, vary: out.Varyings}
			cache[idx] = v
		}
		verts[i] = v
	}

	n := len(verts)
	switch prim {
	case metadata.PrimitivePointList:
		for i := 0; i < n; i++ {
			if sv, ok := r.project(verts[i]); ok {
				r.point(sv)
			}
		}
	case metadata.PrimitiveLineList:
		for i := 0; i+1 < n; i += 2 {
			r.clippedLine(verts[i], verts[i+1])
		}
	case metadata.PrimitiveLineStrip:
		for i := 0; i+1 < n; i++ {
			r.clippedLine(verts[i], verts[i+1])
		}
	case metadata.PrimitiveTriangleList:
		for i := 0; i+2 < n; i += 3 {
			r.triangle(verts[i], verts[i+1], verts[i+2])
		}
	case metadata.PrimitiveTriangleStrip:
		for i := 0; i+2 < n; i++ {
			if i%2 == 0 {
				r.triangle(verts[i], verts[i+1], verts[i+2])
			} else {
				r.triangle(verts[i+1], verts[i], verts[i+2])
			}
		}
	case metadata.PrimitiveTriangleFan:
		for i := 1; i+1 < n; i++ {
			r.triangle(verts[0], verts[i], verts[i+1])
		}
	}
}

func lerpClip(a, b clipVertex, t float32) clipVertex {
	out := clipVertex{pos: a.pos.Add(b.pos.Sub(a.pos).MulScalar(t))}
	for i := range out.vary {
		out.vary[i] = a.vary[i].Add(b.vary[i].Sub(a.vary[i]).MulScalar(t))
	}
	return out
}

func nearDistance(v clipVertex) float32 {
	return v.pos.Z + v.pos.W
}

// clipNear clips a polygon against the near plane z = -w.
func clipNear(poly []clipVertex) []clipVertex {
	out := make([]clipVertex, 0, len(poly)+2)
	for i := range poly {
		cur, next := poly[i], poly[(i+1)%len(poly)]
		dc, dn := nearDistance(cur), nearDistance(next)
		if dc >= 0 {
			out = append(out, cur)
		}
		if (dc >= 0) != (dn >= 0) {
			out = append(out, lerpClip(cur, next, dc/(dc-dn)))
		}
	}
	return out
}

func (r *rasterizer) project(v clipVertex) (screenVertex, bool) {
	if v.pos.W <= 1e-6 || nearDistance(v) < 0 {
		return screenVertex{}, false
	}
	invW := 1 / v.pos.W
	sv := screenVertex{
		x:    float32(r.vp.X) + (v.pos.X*invW*0.5+0.5)*float32(r.vp.Width),
		y:    float32(r.vp.Y) + (0.5-v.pos.Y*invW*0.5)*float32(r.vp.Height),
		z:    math.Saturate(v.pos.Z*invW*0.5 + 0.5),
		invW: invW,
	}
	for i := range v.vary {
		sv.vary[i] = v.vary[i].MulScalar(invW)
	}
	return sv, true
}

func (r *rasterizer) triangle(a, b, c clipVertex) {
	poly := clipNear([]clipVertex{a, b, c})
	if len(poly) < 3 {
		return
	}
	sv := make([]screenVertex, 0, len(poly))
	for _, v := range poly {
		p, ok := r.project(v)
		if !ok {
			return
		}
		sv = append(sv, p)
	}

	// shoelace in window coordinates, negative for triangles that are
	// counter-clockwise in normalized device coordinates
	var area float32
	for i := range sv {
		j := (i + 1) % len(sv)
		area += sv[i].x*sv[j].y - sv[j].x*sv[i].y
	}
	switch metadata.Cull(r.state(metadata.RenderStateCullMode)) {
	case metadata.CullCCW:
		if area < 0 {
			return
		}
	case metadata.CullCW:
		if area > 0 {
			return
		}
	}

	switch metadata.Fill(r.state(metadata.RenderStateFixedFillMode)) {
	case metadata.FillLine:
		for i := range sv {
			r.line(sv[i], sv[(i+1)%len(sv)])
		}
	case metadata.FillPoint:
		for _, v := range sv {
			r.point(v)
		}
	default:
		for i := 1; i+1 < len(sv); i++ {
			r.fill(sv[0], sv[i], sv[i+1])
		}
	}
}

func (r *rasterizer) clippedLine(a, b clipVertex) {
	da, db := nearDistance(a), nearDistance(b)
	if da < 0 && db < 0 {
		return
	}
	if da < 0 {
		a = lerpClip(a, b, da/(da-db))
	} else if db < 0 {
		b = lerpClip(a, b, da/(da-db))
	}
	sa, okA := r.project(a)
	sb, okB := r.project(b)
	if okA && okB {
		r.line(sa, sb)
	}
}

func offsetVertex(v screenVertex, dx, dy float32) screenVertex {
	v.x += dx
	v.y += dy
	return v
}

// line draws a screen aligned quad of LineWidth around the segment.
func (r *rasterizer) line(a, b screenVertex) {
	dx, dy := b.x-a.x, b.y-a.y
	length := math32.Sqrt(dx*dx + dy*dy)
	if length == 0 {
		return
	}
	half := max(metadata.StateFloat32(r.state(metadata.RenderStateLineWidth)), 1) * 0.5
	nx, ny := -dy/length*half, dx/length*half
	a0, a1 := offsetVertex(a, nx, ny), offsetVertex(a, -nx, -ny)
	b0, b1 := offsetVertex(b, nx, ny), offsetVertex(b, -nx, -ny)
	r.fill(a0, a1, b1)
	r.fill(a0, b1, b0)
}

// point draws a square of PointSize centered at v.
func (r *rasterizer) point(v screenVertex) {
	half := max(metadata.StateFloat32(r.state(metadata.RenderStatePointSize)), 1) * 0.5
	tl, tr := offsetVertex(v, -half, -half), offsetVertex(v, half, -half)
	bl, br := offsetVertex(v, -half, half), offsetVertex(v, half, half)
	r.fill(tl, tr, br)
	r.fill(tl, br, bl)
}

func edge(ax, ay, bx, by, px, py float32) float32 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

// topLeft reports whether pixels exactly on the edge a->b belong to the
// triangle, for triangles with positive area.
func topLeft(ax, ay, bx, by float32) bool {
	dx, dy := bx-ax, by-ay
	return (dy == 0 && dx > 0) || dy < 0
}

func covers(w float32, tl bool) bool {
	return w > 0 || (w == 0 && tl)
}

// fill rasterizes one triangle with perspective correct varyings and
// the top-left fill rule.
func (r *rasterizer) fill(v0, v1, v2 screenVertex) {
	area := edge(v0.x, v0.y, v1.x, v1.y, v2.x, v2.y)
	if area == 0 || math32.IsNaN(area) {
		return
	}
	if area < 0 {
		v1, v2 = v2, v1
		area = -area
	}
	minX := max(int(math32.Floor(min(v0.x, v1.x, v2.x))), r.x0)
	maxX := min(int(math32.Ceil(max(v0.x, v1.x, v2.x))), r.x1-1)
	minY := max(int(math32.Floor(min(v0.y, v1.y, v2.y))), r.y0)
	maxY := min(int(math32.Ceil(max(v0.y, v1.y, v2.y))), r.y1-1)

	tl0 := topLeft(v1.x, v1.y, v2.x, v2.y)
	tl1 := topLeft(v2.x, v2.y, v0.x, v0.y)
	tl2 := topLeft(v0.x, v0.y, v1.x, v1.y)

	for y := minY; y <= maxY; y++ {
		py := float32(y) + 0.5
		for x := minX; x <= maxX; x++ {
			px := float32(x) + 0.5
			w0 := edge(v1.x, v1.y, v2.x, v2.y, px, py)
			w1 := edge(v2.x, v2.y, v0.x, v0.y, px, py)
			w2 := edge(v0.x, v0.y, v1.x, v1.y, px, py)
			if !covers(w0, tl0) || !covers(w1, tl1) || !covers(w2, tl2) {
				continue
			}
			l0, l1, l2 := w0/area, w1/area, w2/area
			invW := l0*v0.invW + l1*v1.invW + l2*v2.invW
			var f Fragment
			f.Coord = math.NewVec4(px, py, l0*v0.z+l1*v1.z+l2*v2.z, invW)
			for i := range f.Varyings {
				f.Varyings[i] = v0.vary[i].MulScalar(l0).
					Add(v1.vary[i].MulScalar(l1)).
					Add(v2.vary[i].MulScalar(l2)).
					MulScalar(1 / invW)
			}
			r.shade(x, y, &f)
		}
	}
}

func blendFactor(f metadata.BlendFunc, src, dst math.Vec4) math.Vec4 {
	switch f {
	case metadata.BlendZero:
		return math.Vec4{}
	case metadata.BlendOne:
		return math.NewVec4(1, 1, 1, 1)
	case metadata.BlendSrcColor:
		return src
	case metadata.BlendInvSrcColor:
		return math.NewVec4(1-src.X, 1-src.Y, 1-src.Z, 1-src.W)
	case metadata.BlendSrcAlpha:
		return math.NewVec4(src.W, src.W, src.W, src.W)
	case metadata.BlendInvSrcAlpha:
		a := 1 - src.W
		return math.NewVec4(a, a, a, a)
	case metadata.BlendDstColor:
		return dst
	case metadata.BlendInvDstColor:
		return math.NewVec4(1-dst.X, 1-dst.Y, 1-dst.Z, 1-dst.W)
	case metadata.BlendDstAlpha:
		return math.NewVec4(dst.W, dst.W, dst.W, dst.W)
	case metadata.BlendInvDstAlpha:
		a := 1 - dst.W
		return math.NewVec4(a, a, a, a)
	}
	return math.NewVec4(1, 1, 1, 1)
}

func (r *rasterizer) shade(x, y int, f *Fragment) {
	ux, uy := uint32(x), uint32(y)
	depthTest := r.state(metadata.RenderStateZEnable) != 0 && r.target.depth != nil
	if depthTest {
		stored := r.target.depth.read(ux, uy).X
		if !metadata.Compare(r.state(metadata.RenderStateZFunc)).Test(f.Coord.Z, stored) {
			return
		}
	}

	f.Color = math.NewVec4(0, 0, 0, 1)
	if !r.fs(r.ctx, f) {
		return
	}
	src := f.Color

	if r.state(metadata.RenderStateAlphaTestEnable) != 0 {
		ref := metadata.StateFloat32(r.state(metadata.RenderStateAlphaTestReference))
		if !metadata.Compare(r.state(metadata.RenderStateAlphaTestFunction)).Test(src.W, ref) {
			return
		}
	}

	mask := metadata.ColorMask(r.state(metadata.RenderStateColorWriteMask))
	if r.target.color != nil && mask != 0 {
		dst := r.target.color.read(ux, uy)
		out := src
		if r.state(metadata.RenderStateBlendEnable) != 0 {
			sf := blendFactor(metadata.BlendFunc(r.state(metadata.RenderStateSrcBlendFunc)), src, dst)
			df := blendFactor(metadata.BlendFunc(r.state(metadata.RenderStateDstBlendFunc)), src, dst)
			out = src.Mul(sf).Add(dst.Mul(df))
		}
		if mask&metadata.ColorMaskRed == 0 {
			out.X = dst.X
		}
		if mask&metadata.ColorMaskGreen == 0 {
			out.Y = dst.Y
		}
		if mask&metadata.ColorMaskBlue == 0 {
			out.Z = dst.Z
		}
		if mask&metadata.ColorMaskAlpha == 0 {
			out.W = dst.W
		}
		r.target.color.write(ux, uy, out)
	}

	if depthTest && r.state(metadata.RenderStateZWriteEnable) != 0 {
		r.target.depth.write(ux, uy, math.NewVec4(f.Coord.Z, 0, 0, 0))
	}
}

func readIndices(data []byte, format metadata.IndexFormat, first, count, base uint32) []uint32 {
	size := format.Size()
	out := make([]uint32, 0, count)
	for i := first; i < first+count; i++ {
		offset := i * size
		if uint64(offset)+uint64(size) > uint64(len(data)) {
			break
		}
		if format == metadata.IndexFormatUInt16 {
			out = append(out, uint32(binary.LittleEndian.Uint16(data[offset:]))+base)
		} else {
			out = append(out, binary.LittleEndian.Uint32(data[offset:])+base)
		}
	}
	return out
}
