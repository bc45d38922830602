package vulkan

import (
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// preferredTextureUnits caps the units reported to the renderer.
const preferredTextureUnits = 8

/**
 * @brief A headless Vulkan renderer backend. Every texture is an offscreen
 * image, the default target is an RGBA8 color image with a Depth32F depth
 * image. Operations are recorded into single use command buffers and waited
 * on before returning, so results are visible to the next call.
 */
type Backend struct {
	config      metadata.RendererBackendConfig
	context     *VulkanContext
	initialized bool
	glfw        bool
	next        metadata.Handle
	frame       uint64

	textures map[metadata.Handle]*VulkanImage
	targets  map[metadata.Handle]*VulkanFramebuffer
	buffers  map[metadata.Handle]*VulkanBuffer
	shaders  map[metadata.Handle]*VulkanShaderStage
	programs map[metadata.Handle]*VulkanProgram

	passes   *renderpassCache
	samplers *samplerCache

	defaultColor  metadata.Handle
	defaultDepth  metadata.Handle
	defaultTarget *VulkanFramebuffer
	// white is bound to texture units the draw leaves empty.
	white *VulkanImage
	// zeros feeds program attributes without a stream.
	zeros *VulkanBuffer
}

var _ renderer.RendererBackend = (*Backend)(nil)

func New() *Backend {
	return &Backend{
		context: &VulkanContext{
			Allocator: nil,
			Device:    &VulkanDevice{},
			Locks:     NewVulkanLockPool(),
		},
	}
}

func (b *Backend) handle() metadata.Handle {
	b.next++
	return b.next
}

func (b *Backend) locked(fn func() error) error {
	if !b.initialized {
		return core.ErrDeviceNotReady
	}
	return b.context.Locks.SafeCall(ResourceManagement, fn)
}

func (b *Backend) Initialize(config *metadata.RendererBackendConfig) error {
	if config.Width == 0 || config.Height == 0 {
		return fmt.Errorf("vulkan backend: %dx%d backbuffer: %w", config.Width, config.Height, core.ErrInvalidParameter)
	}
	b.config = *config

	usesGlfw, err := initLoader()
	if err != nil {
		return err
	}
	b.glfw = usesGlfw

	if err := createInstance(b.context, config.ApplicationName, config.Validation); err != nil {
		b.teardown()
		return err
	}
	if err := DeviceCreate(b.context); err != nil {
		core.LogError("Failed to create device: %s", err)
		b.teardown()
		return err
	}
	if max(config.Width, config.Height) > b.context.Device.MaxImageSize {
		b.teardown()
		return fmt.Errorf("vulkan backend: %dx%d backbuffer exceeds %d: %w", config.Width, config.Height, b.context.Device.MaxImageSize, core.ErrInvalidParameter)
	}
	submit, err := NewFence(b.context, true)
	if err != nil {
		b.teardown()
		return err
	}
	b.context.Submit = submit

	b.passes = newRenderpassCache()
	b.samplers = newSamplerCache()
	if err := b.reset(); err != nil {
		b.teardown()
		return err
	}
	b.initialized = true
	core.LogInfo("Vulkan backend initialized for %q with a %dx%d backbuffer", config.ApplicationName, config.Width, config.Height)
	return nil
}

// release destroys every object created through the backend interface and
// the default target.
func (b *Backend) release() {
	ctx := b.context
	if ctx.Device.LogicalDevice != nil {
		vk.DeviceWaitIdle(ctx.Device.LogicalDevice)
	}
	for h, p := range b.programs {
		p.Destroy(ctx)
		delete(b.programs, h)
	}
	for h, s := range b.shaders {
		s.Destroy(ctx)
		delete(b.shaders, h)
	}
	for h, t := range b.targets {
		t.Destroy(ctx)
		delete(b.targets, h)
	}
	if b.defaultTarget != nil {
		b.defaultTarget.Destroy(ctx)
		b.defaultTarget = nil
	}
	for h, t := range b.textures {
		t.Destroy(ctx)
		delete(b.textures, h)
	}
	for h, buf := range b.buffers {
		buf.Destroy(ctx)
		delete(b.buffers, h)
	}
	if b.white != nil {
		b.white.Destroy(ctx)
		b.white = nil
	}
	if b.zeros != nil {
		b.zeros.Destroy(ctx)
		b.zeros = nil
	}
}

// reset recreates the tables, the default target and the fallback objects.
func (b *Backend) reset() error {
	b.release()
	b.textures = make(map[metadata.Handle]*VulkanImage)
	b.targets = make(map[metadata.Handle]*VulkanFramebuffer)
	b.buffers = make(map[metadata.Handle]*VulkanBuffer)
	b.shaders = make(map[metadata.Handle]*VulkanShaderStage)
	b.programs = make(map[metadata.Handle]*VulkanProgram)
	ctx := b.context

	color, err := NewVulkanImage(ctx, &metadata.TextureDesc{
		Type: metadata.TextureBufferType2D, Width: b.config.Width, Height: b.config.Height,
		Format: metadata.PixelFormatRGBA8, Levels: 1, RenderTarget: true,
	})
	if err != nil {
		return err
	}
	b.defaultColor = b.handle()
	b.textures[b.defaultColor] = color

	depth, err := NewVulkanImage(ctx, &metadata.TextureDesc{
		Type: metadata.TextureBufferType2D, Width: b.config.Width, Height: b.config.Height,
		Format: metadata.PixelFormatDepth32F, Levels: 1, RenderTarget: true,
	})
	if err != nil {
		return err
	}
	b.defaultDepth = b.handle()
	b.textures[b.defaultDepth] = depth

	fb, err := FramebufferCreate(ctx, b.passes, color, depth)
	if err != nil {
		return err
	}
	b.defaultTarget = fb
	if err := b.clear(fb, &metadata.ClearCall{Flags: metadata.ClearColor | metadata.ClearDepth, Depth: 1}); err != nil {
		return err
	}

	white, err := NewVulkanImage(ctx, &metadata.TextureDesc{
		Type: metadata.TextureBufferType2D, Width: 1, Height: 1,
		Format: metadata.PixelFormatRGBA8, Levels: 1,
	})
	if err != nil {
		return err
	}
	b.white = white
	if err := white.Upload(ctx, 0, metadata.PixelFormatRGBA8.WhiteTexels(1, 1)); err != nil {
		return err
	}

	zeros, err := NewVulkanBuffer(ctx, 16, geometryBufferUsage)
	if err != nil {
		return err
	}
	b.zeros = zeros
	return zeros.Upload(ctx, 0, make([]byte, 16))
}

// teardown undoes a partial or complete initialization.
func (b *Backend) teardown() {
	ctx := b.context
	if ctx.Device.LogicalDevice != nil {
		b.release()
		if b.samplers != nil {
			b.samplers.destroy(ctx)
		}
		if b.passes != nil {
			b.passes.destroy(ctx)
		}
		if ctx.Submit != nil {
			ctx.Submit.Destroy(ctx)
			ctx.Submit = nil
		}
		core.LogDebug("Destroying Vulkan device...")
		DeviceDestroy(ctx)
	}
	destroyInstance(ctx)
	if b.glfw {
		glfw.Terminate()
		b.glfw = false
	}
}

func (b *Backend) Shutdown() error {
	if !b.initialized {
		return nil
	}
	b.initialized = false
	b.teardown()
	b.textures, b.targets, b.buffers, b.shaders, b.programs = nil, nil, nil, nil, nil
	core.LogInfo("Vulkan backend shut down after %d frames", b.frame)
	return nil
}

func (b *Backend) Capabilities() metadata.Capabilities {
	device := b.context.Device
	units := uint32(preferredTextureUnits)
	if device.MaxSamplerUnits > 0 {
		units = min(units, device.MaxSamplerUnits)
	}
	return metadata.Capabilities{
		MaxTextureUnits:          units,
		MaxTextureSize:           device.MaxImageSize,
		MaxColorRenderTargets:    1,
		MaxMultisample:           metadata.MultisampleNone,
		TextureBufferRectangle:   true,
		TextureBufferNonPowerOf2: true,
		TextureCompressionDXT:    device.CompressionBC,
		ShaderLanguages:          []string{renderer.ShaderLanguageWGSL},
		Extensions:               []string{"vulkan", "headless", "texture_rectangle"},
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
	return b.locked(func() error {
		core.LogDebug("Vulkan backend reset: %d textures, %d buffers, %d shaders, %d programs dropped",
			len(b.textures), len(b.buffers), len(b.shaders), len(b.programs))
		return b.reset()
	})
}

func (b *Backend) TextureCreate(desc *metadata.TextureDesc) (metadata.Handle, error) {
	h := metadata.InvalidHandle
	err := b.locked(func() error {
		if desc.Width == 0 || desc.Height == 0 || !desc.Format.IsValid() {
			return fmt.Errorf("texture %dx%d %s: %w", desc.Width, desc.Height, desc.Format, core.ErrInvalidParameter)
		}
		if limit := b.context.Device.MaxImageSize; max(desc.Width, desc.Height) > limit {
			return fmt.Errorf("texture %dx%d exceeds %d: %w", desc.Width, desc.Height, limit, core.ErrInvalidParameter)
		}
		image, err := NewVulkanImage(b.context, desc)
		if err != nil {
			return err
		}
		h = b.handle()
		b.textures[h] = image
		return nil
	})
	return h, err
}

func (b *Backend) TextureUpload(h metadata.Handle, level uint32, data []byte) error {
	return b.locked(func() error {
		t, ok := b.textures[h]
		if !ok {
			return fmt.Errorf("texture %d: %w", h, core.ErrInvalidHandle)
		}
		return t.Upload(b.context, level, data)
	})
}

func (b *Backend) TextureRead(h metadata.Handle, level uint32) ([]byte, error) {
	var data []byte
	err := b.locked(func() error {
		t, ok := b.textures[h]
		if !ok {
			return fmt.Errorf("texture %d: %w", h, core.ErrInvalidHandle)
		}
		var err error
		data, err = t.Read(b.context, level)
		return err
	})
	return data, err
}

// TextureDestroy also drops the render targets the texture is attached to.
func (b *Backend) TextureDestroy(h metadata.Handle) {
	_ = b.locked(func() error {
		t, ok := b.textures[h]
		if !ok || h == b.defaultColor || h == b.defaultDepth {
			return nil
		}
		for th, fb := range b.targets {
			if fb.uses(t) {
				fb.Destroy(b.context)
				delete(b.targets, th)
			}
		}
		t.Destroy(b.context)
		delete(b.textures, h)
		return nil
	})
}

func (b *Backend) RenderTargetCreate(color, depth metadata.Handle) (metadata.Handle, error) {
	h := metadata.InvalidHandle
	err := b.locked(func() error {
		c, ok := b.textures[color]
		if !ok || c.Format.IsCompressed() || c.Format.IsDepth() {
			return fmt.Errorf("render target color %d: %w", color, core.ErrInvalidHandle)
		}
		var d *VulkanImage
		if depth.IsValid() {
			if d, ok = b.textures[depth]; !ok {
				return fmt.Errorf("render target depth %d: %w", depth, core.ErrInvalidParameter)
			}
		}
		fb, err := FramebufferCreate(b.context, b.passes, c, d)
		if err != nil {
			return err
		}
		h = b.handle()
		b.targets[h] = fb
		return nil
	})
	return h, err
}

func (b *Backend) RenderTargetDestroy(h metadata.Handle) {
	_ = b.locked(func() error {
		if fb, ok := b.targets[h]; ok {
			fb.Destroy(b.context)
			delete(b.targets, h)
		}
		return nil
	})
}

func (b *Backend) DefaultTarget() (metadata.Handle, uint32, uint32) {
	return b.defaultColor, b.config.Width, b.config.Height
}

func (b *Backend) BufferCreate(size uint64) (metadata.Handle, error) {
	h := metadata.InvalidHandle
	err := b.locked(func() error {
		buf, err := NewVulkanBuffer(b.context, size, geometryBufferUsage)
		if err != nil {
			return err
		}
		h = b.handle()
		b.buffers[h] = buf
		return nil
	})
	return h, err
}

func (b *Backend) BufferUpload(h metadata.Handle, offset uint64, data []byte) error {
	return b.locked(func() error {
		buf, ok := b.buffers[h]
		if !ok {
			return fmt.Errorf("buffer %d: %w", h, core.ErrInvalidHandle)
		}
		if err := buf.Upload(b.context, offset, data); err != nil {
			return fmt.Errorf("buffer %d: %w", h, err)
		}
		return nil
	})
}

func (b *Backend) BufferDestroy(h metadata.Handle) {
	_ = b.locked(func() error {
		if buf, ok := b.buffers[h]; ok {
			buf.Destroy(b.context)
			delete(b.buffers, h)
		}
		return nil
	})
}

func (b *Backend) ShaderCompile(source *renderer.ShaderSource) (metadata.Handle, error) {
	h := metadata.InvalidHandle
	err := b.locked(func() error {
		if source.Language != renderer.ShaderLanguageWGSL {
			return fmt.Errorf("language %q: %w", source.Language, core.ErrUnsupportedLanguage)
		}
		s, err := NewShaderModule(b.context, source.Stage, source.Code)
		if err != nil {
			return err
		}
		h = b.handle()
		b.shaders[h] = s
		return nil
	})
	return h, err
}

func (b *Backend) ShaderDestroy(h metadata.Handle) {
	_ = b.locked(func() error {
		if s, ok := b.shaders[h]; ok {
			s.Destroy(b.context)
			delete(b.shaders, h)
		}
		return nil
	})
}

func (b *Backend) ProgramLink(handles []metadata.Handle) (metadata.Handle, *metadata.ProgramLayout, error) {
	h := metadata.InvalidHandle
	var layout *metadata.ProgramLayout
	err := b.locked(func() error {
		stages := make([]*VulkanShaderStage, 0, len(handles))
		for _, sh := range handles {
			s, ok := b.shaders[sh]
			if !ok {
				return fmt.Errorf("shader %d: %w", sh, core.ErrInvalidHandle)
			}
			stages = append(stages, s)
		}
		p, err := NewVulkanProgram(b.context, stages)
		if err != nil {
			return err
		}
		h = b.handle()
		b.programs[h] = p
		layout = p.Reflection.Layout
		return nil
	})
	return h, layout, err
}

func (b *Backend) ProgramDestroy(h metadata.Handle) {
	_ = b.locked(func() error {
		if p, ok := b.programs[h]; ok {
			p.Destroy(b.context)
			delete(b.programs, h)
		}
		return nil
	})
}

func (b *Backend) resolveTarget(h metadata.Handle) (*VulkanFramebuffer, error) {
	if !h.IsValid() {
		return b.defaultTarget, nil
	}
	fb, ok := b.targets[h]
	if !ok {
		return nil, fmt.Errorf("render target %d: %w", h, core.ErrInvalidHandle)
	}
	return fb, nil
}
