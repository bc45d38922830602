package soft

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

const (
	maxTextureUnits = 16
	maxTextureSize  = 8192
)

/**
 * @brief A CPU renderer backend. Every device object lives in Go memory,
 * shaders are Go kernels selected by a "#kernel <name>" line.
 */
type Backend struct {
	config      metadata.RendererBackendConfig
	initialized bool
	next        metadata.Handle
	frame       uint64

	textures map[metadata.Handle]*texture
	targets  map[metadata.Handle]*renderTarget
	buffers  map[metadata.Handle][]byte
	shaders  map[metadata.Handle]*shader
	programs map[metadata.Handle]*program

	defaultColor metadata.Handle
	defaultDepth metadata.Handle
}

var _ renderer.RendererBackend = (*Backend)(nil)

func New() *Backend {
	return &Backend{}
}

func (b *Backend) handle() metadata.Handle {
	b.next++
	return b.next
}

func (b *Backend) Initialize(config *metadata.RendererBackendConfig) error {
	if config.Width == 0 || config.Height == 0 {
		return fmt.Errorf("soft backend: %dx%d backbuffer: %w", config.Width, config.Height, core.ErrInvalidParameter)
	}
	b.config = *config
	b.reset()
	b.initialized = true
	core.LogInfo("Soft backend initialized for %q with a %dx%d backbuffer", config.ApplicationName, config.Width, config.Height)
	return nil
}

func (b *Backend) reset() {
	b.textures = make(map[metadata.Handle]*texture)
	b.targets = make(map[metadata.Handle]*renderTarget)
	b.buffers = make(map[metadata.Handle][]byte)
	b.shaders = make(map[metadata.Handle]*shader)
	b.programs = make(map[metadata.Handle]*program)

	b.defaultColor = b.handle()
	b.textures[b.defaultColor] = newTexture(&metadata.TextureDesc{
		Type: metadata.TextureBufferType2D, Width: b.config.Width, Height: b.config.Height,
		Format: metadata.PixelFormatRGBA8, Levels: 1, RenderTarget: true,
	})
	b.defaultDepth = b.handle()
	depth := newTexture(&metadata.TextureDesc{
		Type: metadata.TextureBufferType2D, Width: b.config.Width, Height: b.config.Height,
		Format: metadata.PixelFormatDepth32F, Levels: 1, RenderTarget: true,
	})
	clearTexture(depth, nil, math.NewVec4(1, 0, 0, 0))
	b.textures[b.defaultDepth] = depth
}

func (b *Backend) Shutdown() error {
	if !b.initialized {
		return nil
	}
	b.initialized = false
	b.textures, b.targets, b.buffers, b.shaders, b.programs = nil, nil, nil, nil, nil
	core.LogInfo("Soft backend shut down after %d frames", b.frame)
	return nil
}

func (b *Backend) Capabilities() metadata.Capabilities {
	return metadata.Capabilities{
		MaxTextureUnits:          maxTextureUnits,
		MaxTextureSize:           maxTextureSize,
		MaxColorRenderTargets:    1,
		MaxMultisample:           metadata.MultisampleNone,
		TextureBufferRectangle:   true,
		TextureBufferNonPowerOf2: true,
		TextureCompressionDXT:    true,
		ShaderLanguages:          []string{renderer.ShaderLanguageSoft},
		Extensions:               []string{"soft_rasterizer", "texture_rectangle"},
	}
}

func (b *Backend) BeginFrame() error {
	if !b.initialized {
		return core.ErrDeviceNotReady
	}
	return nil
}

func (b *Backend) EndFrame() error {
	if !b.initialized {
		return core.ErrDeviceNotReady
	}
	b.frame++
	return nil
}

// Reset drops every device object, the default target comes back cleared.
func (b *Backend) Reset() error {
	if !b.initialized {
		return core.ErrDeviceNotReady
	}
	core.LogDebug("Soft backend reset: %d textures, %d buffers, %d shaders, %d programs dropped",
		len(b.textures), len(b.buffers), len(b.shaders), len(b.programs))
	b.reset()
	return nil
}

func (b *Backend) TextureCreate(desc *metadata.TextureDesc) (metadata.Handle, error) {
	if desc.Width == 0 || desc.Height == 0 || !desc.Format.IsValid() {
		return metadata.InvalidHandle, fmt.Errorf("texture %dx%d %s: %w", desc.Width, desc.Height, desc.Format, core.ErrInvalidParameter)
	}
	if max(desc.Width, desc.Height) > maxTextureSize {
		return metadata.InvalidHandle, fmt.Errorf("texture %dx%d exceeds %d: %w", desc.Width, desc.Height, maxTextureSize, core.ErrInvalidParameter)
	}
	h := b.handle()
	b.textures[h] = newTexture(desc)
	return h, nil
}

func (b *Backend) TextureUpload(h metadata.Handle, level uint32, data []byte) error {
	t, ok := b.textures[h]
	if !ok {
		return fmt.Errorf("texture %d: %w", h, core.ErrInvalidHandle)
	}
	if level >= uint32(len(t.levels)) || len(data) != len(t.levels[level]) {
		return fmt.Errorf("texture %d level %d: %d bytes: %w", h, level, len(data), core.ErrInvalidParameter)
	}
	copy(t.levels[level], data)
	t.invalidate(level)
	return nil
}

func (b *Backend) TextureRead(h metadata.Handle, level uint32) ([]byte, error) {
	t, ok := b.textures[h]
	if !ok {
		return nil, fmt.Errorf("texture %d: %w", h, core.ErrInvalidHandle)
	}
	if level >= uint32(len(t.levels)) {
		return nil, fmt.Errorf("texture %d level %d: %w", h, level, core.ErrInvalidParameter)
	}
	return append([]byte(nil), t.levels[level]...), nil
}

func (b *Backend) TextureDestroy(h metadata.Handle) {
	delete(b.textures, h)
}

func (b *Backend) RenderTargetCreate(color, depth metadata.Handle) (metadata.Handle, error) {
	c, ok := b.textures[color]
	if !ok || c.desc.Format.IsCompressed() || c.desc.Format.IsDepth() {
		return metadata.InvalidHandle, fmt.Errorf("render target color %d: %w", color, core.ErrInvalidHandle)
	}
	rt := &renderTarget{color: c, width: c.desc.Width, height: c.desc.Height}
	if depth.IsValid() {
		d, ok := b.textures[depth]
		if !ok || !d.desc.Format.IsDepth() || d.desc.Width != c.desc.Width || d.desc.Height != c.desc.Height {
			return metadata.InvalidHandle, fmt.Errorf("render target depth %d: %w", depth, core.ErrInvalidParameter)
		}
		rt.depth = d
	}
	h := b.handle()
	b.targets[h] = rt
	return h, nil
}

func (b *Backend) RenderTargetDestroy(h metadata.Handle) {
	delete(b.targets, h)
}

func (b *Backend) DefaultTarget() (metadata.Handle, uint32, uint32) {
	return b.defaultColor, b.config.Width, b.config.Height
}

func (b *Backend) BufferCreate(size uint64) (metadata.Handle, error) {
	if size == 0 {
		return metadata.InvalidHandle, fmt.Errorf("buffer of 0 bytes: %w", core.ErrInvalidParameter)
	}
	h := b.handle()
	b.buffers[h] = make([]byte, size)
	return h, nil
}

func (b *Backend) BufferUpload(h metadata.Handle, offset uint64, data []byte) error {
	buf, ok := b.buffers[h]
	if !ok {
		return fmt.Errorf("buffer %d: %w", h, core.ErrInvalidHandle)
	}
	if offset+uint64(len(data)) > uint64(len(buf)) {
		return fmt.Errorf("buffer %d: upload of %d bytes at %d: %w", h, len(data), offset, core.ErrInvalidParameter)
	}
	copy(buf[offset:], data)
	return nil
}

func (b *Backend) BufferDestroy(h metadata.Handle) {
	delete(b.buffers, h)
}

func (b *Backend) ShaderCompile(source *renderer.ShaderSource) (metadata.Handle, error) {
	if source.Language != renderer.ShaderLanguageSoft {
		return metadata.InvalidHandle, fmt.Errorf("language %q: %w", source.Language, core.ErrUnsupportedLanguage)
	}
	s, err := compileKernel(source.Stage, source.Code, source.Defines)
	if err != nil {
		return metadata.InvalidHandle, err
	}
	h := b.handle()
	b.shaders[h] = s
	return h, nil
}

func (b *Backend) ShaderDestroy(h metadata.Handle) {
	delete(b.shaders, h)
}

func (b *Backend) ProgramLink(handles []metadata.Handle) (metadata.Handle, *metadata.ProgramLayout, error) {
	shaders := make([]*shader, 0, len(handles))
	for _, h := range handles {
		s, ok := b.shaders[h]
		if !ok {
			return metadata.InvalidHandle, nil, fmt.Errorf("shader %d: %w", h, core.ErrInvalidHandle)
		}
		shaders = append(shaders, s)
	}
	p, err := linkKernels(shaders)
	if err != nil {
		return metadata.InvalidHandle, nil, err
	}
	h := b.handle()
	b.programs[h] = p
	return h, p.layout, nil
}

func (b *Backend) ProgramDestroy(h metadata.Handle) {
	delete(b.programs, h)
}

func (b *Backend) resolveTarget(h metadata.Handle) (renderTarget, error) {
	if !h.IsValid() {
		return renderTarget{
			color:  b.textures[b.defaultColor],
			depth:  b.textures[b.defaultDepth],
			width:  b.config.Width,
			height: b.config.Height,
		}, nil
	}
	rt, ok := b.targets[h]
	if !ok {
		return renderTarget{}, fmt.Errorf("render target %d: %w", h, core.ErrInvalidHandle)
	}
	return *rt, nil
}

// clearTexture fills the base level, or the part inside rect.
func clearTexture(t *texture, rect *math.Rect, v math.Vec4) {
	x0, y0, x1, y1 := 0, 0, int(t.sizes[0].Width), int(t.sizes[0].Height)
	if rect != nil {
		x0, y0 = max(x0, int(rect.X)), max(y0, int(rect.Y))
		x1, y1 = min(x1, int(rect.X+rect.Width)), min(y1, int(rect.Y+rect.Height))
	}
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			t.write(uint32(x), uint32(y), v)
		}
	}
}

func (b *Backend) Clear(call *metadata.ClearCall) error {
	rt, err := b.resolveTarget(call.Target)
	if err != nil {
		return err
	}
	if call.Flags&metadata.ClearColor != 0 {
		clearTexture(rt.color, call.Scissor, call.Color.Vec4())
	}
	if call.Flags&metadata.ClearDepth != 0 && rt.depth != nil {
		clearTexture(rt.depth, call.Scissor, math.NewVec4(call.Depth, 0, 0, 0))
	}
	return nil
}

func (b *Backend) Draw(call *metadata.DrawCall) error {
	rt, err := b.resolveTarget(call.Target)
	if err != nil {
		return err
	}
	p, ok := b.programs[call.Program]
	if !ok {
		return fmt.Errorf("program %d: %w", call.Program, core.ErrInvalidHandle)
	}

	ctx := &Context{
		uniforms: make(map[string][]float32, len(call.Uniforms)),
		samplers: make(map[string]boundTexture),
		streams:  make(map[string]stream, len(call.Streams)),
	}
	for _, u := range call.Uniforms {
		if info, ok := p.uniforms[u.Location]; ok {
			ctx.uniforms[info.Name] = u.Values
		}
	}
	for _, info := range p.layout.Uniforms {
		if !info.Type.IsSampler() {
			continue
		}
		for _, tb := range call.Textures {
			if tb.Unit != info.Unit {
				continue
			}
			if t, ok := b.textures[tb.Texture]; ok {
				ctx.samplers[info.Name] = boundTexture{tex: t, states: tb.Sampler}
			}
		}
	}
	for _, s := range call.Streams {
		data, ok := b.buffers[s.Buffer]
		if !ok {
			return fmt.Errorf("vertex buffer %d: %w", s.Buffer, core.ErrInvalidHandle)
		}
		for _, a := range p.layout.Attributes {
			if a.Location == s.Location {
				ctx.streams[a.Name] = stream{data: data, attr: s.Attribute, stride: s.Stride}
			}
		}
	}

	var indices []uint32
	if call.Indexed {
		data, ok := b.buffers[call.IndexBuffer]
		if !ok {
			return fmt.Errorf("index buffer %d: %w", call.IndexBuffer, core.ErrInvalidHandle)
		}
		indices = readIndices(data, call.IndexFormat, call.FirstIndex, call.IndexCount, call.BaseVertex)
	} else {
		indices = make([]uint32, call.VertexCount)
		for i := range indices {
			indices[i] = call.FirstVertex + uint32(i)
		}
	}

	newRasterizer(call, rt, ctx, p.vs.vfn, p.fs.ffn).run(call.Primitive, indices)
	return nil
}
