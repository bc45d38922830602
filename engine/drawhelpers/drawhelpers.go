package drawhelpers

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

//go:embed shaders
var shaderFS embed.FS

const (
	vertexShaderName   = "draw_vs"
	fragmentShaderName = "draw_fs"
	tempVertices       = 4
)

type programKey struct {
	language string
	defines  string
}

/**
 * @brief Immediate mode drawing of points, lines, quads, images and text.
 *
 * Every call fills a small temporary vertex buffer and draws it with a built
 * in color or texture program. 2D calls use the current projection and view
 * transforms, which Begin2DMode replaces by a pixel space orthographic
 * projection with y pointing down. 3D calls take one object space to clip
 * space matrix and restore the transforms when they are done.
 */
type DrawHelpers struct {
	/** @brief Shader language to use, empty for the renderer default. */
	ShaderLanguage string

	renderer *renderer.Renderer
	vertices *renderer.VertexBuffer
	programs map[programKey]*renderer.Program

	mode2D        bool
	virtualScreen [4]float32
	zValue2D      float32
	transforms    *renderer.TransformGuard
}

func New(r *renderer.Renderer) (*DrawHelpers, error) {
	vb := r.CreateVertexBuffer()
	if !vb.AddVertexAttribute(metadata.VertexSemanticPosition, 0, metadata.VertexAttributeFloat3) ||
		!vb.AddVertexAttribute(metadata.VertexSemanticTexCoord, 0, metadata.VertexAttributeFloat2) ||
		!vb.AddVertexAttribute(metadata.VertexSemanticColor, 0, metadata.VertexAttributeRGBA) {
		vb.Destroy()
		return nil, core.LogErrorf("DrawHelpers: cannot build vertex layout: %w", core.ErrInvalidParameter)
	}
	if err := vb.Allocate(tempVertices); err != nil {
		vb.Destroy()
		return nil, fmt.Errorf("DrawHelpers: %w", err)
	}
	return &DrawHelpers{
		renderer: r,
		vertices: vb,
		programs: make(map[programKey]*renderer.Program),
	}, nil
}

func (d *DrawHelpers) Destroy() {
	d.End2DMode()
	for k, p := range d.programs {
		if p != nil {
			p.Destroy()
		}
		delete(d.programs, k)
	}
	if d.vertices != nil {
		d.vertices.Destroy()
		d.vertices = nil
	}
}

// Is2DMode reports whether Begin2DMode is active.
func (d *DrawHelpers) Is2DMode() bool {
	return d.mode2D
}

/**
 * @brief Sets up a 2D coordinate system from (x1,y1) at the top left to
 * (x2,y2) at the bottom right. All zero uses the current viewport.
 */
func (d *DrawHelpers) Begin2DMode(x1, y1, x2, y2 float32) {
	if d.mode2D {
		d.End2DMode()
	}
	if x1 == 0 && y1 == 0 && x2 == 0 && y2 == 0 {
		vp := d.renderer.GetViewport()
		x1, y1 = float32(vp.X), float32(vp.Y)
		x2, y2 = float32(vp.X+vp.Width), float32(vp.Y+vp.Height)
	}
	d.virtualScreen = [4]float32{x1, y1, x2, y2}

	d.transforms = d.renderer.BackupTransforms()
	d.renderer.SetTransformState(metadata.TransformStateProjection, math.NewMat4Orthographic(x1, x2, y2, y1, -1, 1))
	d.renderer.SetTransformState(metadata.TransformStateView, math.NewMat4Identity())
	d.mode2D = true
}

// End2DMode restores the projection and view transforms of Begin2DMode.
func (d *DrawHelpers) End2DMode() {
	if !d.mode2D {
		return
	}
	d.transforms.Restore()
	d.transforms = nil
	d.mode2D = false
}

// Get2DVirtualScreen returns the corners passed to the last Begin2DMode.
func (d *DrawHelpers) Get2DVirtualScreen() (x1, y1, x2, y2 float32) {
	return d.virtualScreen[0], d.virtualScreen[1], d.virtualScreen[2], d.virtualScreen[3]
}

// Get2DZValue returns the depth 2D primitives are drawn at.
func (d *DrawHelpers) Get2DZValue() float32 {
	return d.zValue2D
}

func (d *DrawHelpers) Set2DZValue(z float32) {
	d.zValue2D = z
}

func (d *DrawHelpers) language() string {
	if d.ShaderLanguage != "" {
		return d.ShaderLanguage
	}
	return d.renderer.GetDefaultShaderLanguage()
}

// program returns the built in program for a define set, building it on first use.
func (d *DrawHelpers) program(defines ...string) (*renderer.Program, error) {
	sort.Strings(defines)
	language := d.language()
	key := programKey{language: language, defines: strings.Join(defines, " ")}
	if p, ok := d.programs[key]; ok {
		if p == nil {
			return nil, fmt.Errorf("DrawHelpers: %s program %q: %w", language, key.defines, core.ErrProgramLink)
		}
		return p, nil
	}
	p, err := d.buildProgram(language, key.defines)
	if err != nil {
		core.LogError("DrawHelpers: %s program %q unavailable: %s", language, key.defines, err)
	}
	// failed programs are cached as nil and not retried
	d.programs[key] = p
	return p, err
}

func (d *DrawHelpers) buildProgram(language, arguments string) (*renderer.Program, error) {
	l := d.renderer.GetShaderLanguage(language)
	if l == nil {
		return nil, fmt.Errorf("shader language %q: %w", language, core.ErrUnsupportedLanguage)
	}
	lib := d.renderer.GetShaderLibrary()
	if err := lib.SeedFS(shaderFS, "shaders"); err != nil {
		return nil, err
	}
	vsSource, ok := lib.Get(language, vertexShaderName)
	if !ok {
		return nil, fmt.Errorf("shader source %s/%s: %w", language, vertexShaderName, core.ErrInvalidParameter)
	}
	fsSource, ok := lib.Get(language, fragmentShaderName)
	if !ok {
		return nil, fmt.Errorf("shader source %s/%s: %w", language, fragmentShaderName, core.ErrInvalidParameter)
	}

	vs, err := l.CreateVertexShader("", "")
	if err != nil {
		return nil, err
	}
	if !vs.SetSourceCode(vsSource, "", arguments, "") {
		vs.Destroy()
		return nil, fmt.Errorf("%s/%s: %w", language, vertexShaderName, core.ErrShaderCompile)
	}
	fs, err := l.CreateFragmentShader("", "")
	if err != nil {
		vs.Destroy()
		return nil, err
	}
	if !fs.SetSourceCode(fsSource, "", arguments, "") {
		vs.Destroy()
		fs.Destroy()
		return nil, fmt.Errorf("%s/%s: %w", language, fragmentShaderName, core.ErrShaderCompile)
	}
	p, err := l.CreateProgram(vs, fs)
	if err != nil {
		vs.Destroy()
		fs.Destroy()
		return nil, err
	}
	return p, nil
}

// vertex fills one vertex of the temporary buffer.
type vertex struct {
	position math.Vec3
	uv       math.Vec2
	color    math.Color
}

// drawCall describes one temporary buffer draw.
type drawCall struct {
	primitive metadata.PrimitiveType
	vertices  []vertex
	texture   renderer.TextureBuffer
	sampler   metadata.SamplerStates
	alphaRef  float32
	texMatrix math.Mat4
}

// objectSpaceToClipSpace combines the world, view and projection transforms.
func (d *DrawHelpers) objectSpaceToClipSpace() math.Mat4 {
	r := d.renderer
	return r.GetTransformState(metadata.TransformStateWorld).
		Mul(r.GetTransformState(metadata.TransformStateView)).
		Mul(r.GetTransformState(metadata.TransformStateProjection))
}

/**
 * @brief Uploads the vertices of call and draws them with the current
 * transforms. The world transform is identity for the duration of the draw.
 */
func (d *DrawHelpers) draw(call drawCall) error {
	if d.vertices == nil {
		return core.LogErrorf("DrawHelpers: %w", core.ErrResourceDestroyed)
	}
	if len(call.vertices) == 0 || len(call.vertices) > tempVertices {
		return core.LogErrorf("DrawHelpers: %d vertices: %w", len(call.vertices), core.ErrInvalidParameter)
	}
	r := d.renderer

	var defines []string
	if call.texture != nil {
		defines = append(defines, "FS_TEXTURE")
		if call.alphaRef < 1 {
			defines = append(defines, "FS_ALPHATEST")
		}
	}
	p, err := d.program(defines...)
	if err != nil {
		return err
	}

	if !d.vertices.Lock(renderer.LockWriteOnly) {
		return core.LogErrorf("DrawHelpers: cannot lock vertex buffer: %w", core.ErrDeviceNotReady)
	}
	for i, v := range call.vertices {
		d.vertices.SetPosition(uint32(i), v.position)
		d.vertices.SetTexCoord(uint32(i), 0, v.uv)
		d.vertices.SetColor(uint32(i), v.color)
	}
	d.vertices.Unlock()

	cull := r.BackupRenderStates(metadata.RenderStateCullMode)
	defer cull.Restore()
	r.SetRenderState(metadata.RenderStateCullMode, uint32(metadata.CullNone))

	prevProgram := r.GetProgram()
	defer r.SetProgram(prevProgram)
	if !r.SetProgram(p) {
		return core.LogErrorf("DrawHelpers: %w", core.ErrNoProgram)
	}

	if a := p.GetAttribute("VertexPosition"); a != nil {
		a.Set(d.vertices, metadata.VertexSemanticPosition)
	}
	if a := p.GetAttribute("VertexTexCoord0"); a != nil {
		a.Set(d.vertices, metadata.VertexSemanticTexCoord)
	}
	if a := p.GetAttribute("VertexColor"); a != nil {
		a.Set(d.vertices, metadata.VertexSemanticColor)
	}
	if u := p.GetUniform("ObjectSpaceToClipSpaceMatrix"); u != nil {
		u.SetMatrix4(d.objectSpaceToClipSpace())
	}
	if call.texture != nil {
		if u := p.GetUniform("TextureMatrix"); u != nil {
			u.SetMatrix4(call.texMatrix)
		}
		if u := p.GetUniform("AlphaReference"); u != nil {
			u.Set1f(call.alphaRef)
		}
		if u := p.GetUniform("Texture"); u != nil {
			if unit := u.SetTexture(call.texture); unit >= 0 {
				for s := metadata.SamplerState(0); s < metadata.SamplerStateNumber; s++ {
					r.SetSamplerState(unit, s, call.sampler[s])
				}
			}
		}
	}

	r.SetVertexBuffer(d.vertices)
	return r.DrawPrimitives(call.primitive, 0, uint32(len(call.vertices)))
}

// draw2D runs call with an identity world transform.
func (d *DrawHelpers) draw2D(call drawCall) error {
	guard := d.renderer.BackupTransforms()
	defer guard.Restore()
	d.renderer.SetTransformState(metadata.TransformStateWorld, math.NewMat4Identity())
	return d.draw(call)
}

// draw3D runs call with objectSpaceToClipSpace as the only transform.
func (d *DrawHelpers) draw3D(call drawCall, objectSpaceToClipSpace math.Mat4) error {
	guard := d.renderer.BackupTransforms()
	defer guard.Restore()
	d.renderer.SetTransformState(metadata.TransformStateProjection, math.NewMat4Identity())
	d.renderer.SetTransformState(metadata.TransformStateView, math.NewMat4Identity())
	d.renderer.SetTransformState(metadata.TransformStateWorld, objectSpaceToClipSpace)
	return d.draw(call)
}

func (d *DrawHelpers) at2D(p math.Vec2) math.Vec3 {
	return math.NewVec3(p.X, p.Y, d.zValue2D)
}
