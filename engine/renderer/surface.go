package renderer

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// SurfaceFlag selects optional parts of a 2D surface.
type SurfaceFlag uint32

const (
	// SurfaceFlagDepth adds a Depth24 texture to the surface.
	SurfaceFlagDepth SurfaceFlag = 1 << iota
	// SurfaceFlagMipmaps gives the color texture a full mip chain.
	SurfaceFlagMipmaps
)

func (f SurfaceFlag) Has(flag SurfaceFlag) bool {
	return f&flag == flag
}

/**
 * @brief A render target owning a color texture and an optional depth texture.
 *
 * Surfaces are never resized. A user that needs another size or format
 * destroys the surface and creates a new one.
 */
type SurfaceTextureBuffer struct {
	resourceBase
	color       TextureBuffer
	depth       TextureBuffer
	multisample metadata.MultisampleMode
}

/**
 * @brief Creates a surface backed by a 2D texture.
 * @param size The size in pixels, both axes greater than zero.
 * @param format The color format, compressed formats are rejected.
 * @param flags Optional depth texture and mipmaps.
 * @param aa Requested antialiasing, lowered to what the backend supports.
 */
func (r *Renderer) CreateSurfaceTextureBuffer2D(size math.Size, format metadata.PixelFormat, flags SurfaceFlag, aa metadata.MultisampleMode) (*SurfaceTextureBuffer, error) {
	texFlags := metadata.TextureFlagRenderTarget
	if flags.Has(SurfaceFlagMipmaps) {
		texFlags |= metadata.TextureFlagMipmaps
	}
	return r.createSurface("CreateSurfaceTextureBuffer2D", size, format, flags.Has(SurfaceFlagDepth), aa, func() (TextureBuffer, error) {
		return r.CreateTextureBuffer2DEmpty(size, format, texFlags)
	})
}

/**
 * @brief Creates a surface backed by a rectangle texture, the factory used by
 * the compositing passes.
 */
func (r *Renderer) CreateSurfaceTextureBufferRectangle(size math.Size, format metadata.PixelFormat, aa metadata.MultisampleMode) (*SurfaceTextureBuffer, error) {
	return r.createSurface("CreateSurfaceTextureBufferRectangle", size, format, false, aa, func() (TextureBuffer, error) {
		return r.CreateTextureBufferRectangleEmpty(size, format, metadata.TextureFlagRenderTarget)
	})
}

func (r *Renderer) createSurface(op string, size math.Size, format metadata.PixelFormat, withDepth bool, aa metadata.MultisampleMode, newColor func() (TextureBuffer, error)) (*SurfaceTextureBuffer, error) {
	if size.Width == 0 || size.Height == 0 || !format.IsValid() || format.IsCompressed() || format.IsDepth() {
		err := fmt.Errorf("%s: %dx%d %s: %w", op, size.Width, size.Height, format, core.ErrInvalidParameter)
		core.LogError("%s", err.Error())
		return nil, err
	}
	if aa > r.caps.MaxMultisample {
		core.LogWarn("%s: %dx multisampling is not supported, using %dx", op, aa, r.caps.MaxMultisample)
		aa = r.caps.MaxMultisample
	}

	color, err := newColor()
	if err != nil {
		return nil, err
	}
	var depth TextureBuffer
	if withDepth {
		depth, err = r.CreateTextureBuffer2DEmpty(size, metadata.PixelFormatDepth24, metadata.TextureFlagRenderTarget)
		if err != nil {
			color.Destroy()
			return nil, err
		}
	}

	s := &SurfaceTextureBuffer{
		resourceBase: newResourceBase(r, metadata.ResourceTypeSurfaceTextureBuffer),
		color:        color,
		depth:        depth,
		multisample:  aa,
	}
	h, err := s.createTarget()
	if err != nil {
		err = fmt.Errorf("%s: %w", op, err)
		core.LogError("%s", err.Error())
		s.destroyTextures()
		return nil, err
	}
	s.data = liveData{handle: h}
	r.register(s)
	return s, nil
}

func (s *SurfaceTextureBuffer) createTarget() (metadata.Handle, error) {
	color, err := s.color.deviceHandle()
	if err != nil {
		return metadata.InvalidHandle, err
	}
	depth := metadata.InvalidHandle
	if s.depth != nil {
		if depth, err = s.depth.deviceHandle(); err != nil {
			return metadata.InvalidHandle, err
		}
	}
	return s.renderer.backend.RenderTargetCreate(color, depth)
}

func (s *SurfaceTextureBuffer) destroyTextures() {
	s.color.Destroy()
	if s.depth != nil {
		s.depth.Destroy()
	}
}

func (s *SurfaceTextureBuffer) GetSize() math.Size {
	return s.color.GetSize(0)
}

func (s *SurfaceTextureBuffer) GetFormat() metadata.PixelFormat {
	return s.color.GetFormat()
}

// GetTextureBuffer returns the color texture.
func (s *SurfaceTextureBuffer) GetTextureBuffer() TextureBuffer {
	return s.color
}

// GetDepthTextureBuffer returns nil for surfaces without depth.
func (s *SurfaceTextureBuffer) GetDepthTextureBuffer() TextureBuffer {
	return s.depth
}

func (s *SurfaceTextureBuffer) GetMultisampleMode() metadata.MultisampleMode {
	return s.multisample
}

// The textures back themselves up, the target object is rebuilt from them.
func (s *SurfaceTextureBuffer) BackupDeviceData() error {
	h, ok := s.beginBackup()
	if !ok {
		return nil
	}
	s.renderer.backend.RenderTargetDestroy(h)
	s.data = backedData{}
	return nil
}

func (s *SurfaceTextureBuffer) RestoreDeviceData() error {
	if _, ok := s.beginRestore(); !ok {
		return nil
	}
	h, err := s.createTarget()
	if err != nil {
		return s.lose(err)
	}
	s.data = liveData{handle: h}
	return nil
}

func (s *SurfaceTextureBuffer) Destroy() {
	if s.State() == metadata.ResourceStateDestroyed {
		return
	}
	if s.renderer.target == s {
		s.renderer.SetRenderTarget(nil)
	}
	if d, ok := s.data.(liveData); ok && d.handle.IsValid() {
		s.renderer.backend.RenderTargetDestroy(d.handle)
	}
	s.markDestroyed()
	s.destroyTextures()
}
