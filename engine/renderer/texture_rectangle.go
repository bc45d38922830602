package renderer

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

/**
 * @brief An arbitrarily sized 2D texture. Never has mipmaps.
 */
type TextureBufferRectangle struct {
	textureBase
}

/**
 * @brief Creates a rectangle texture from the base level of img. The
 * mipmaps flag is ignored.
 */
func (r *Renderer) CreateTextureBufferRectangle(img *metadata.Image, internalFormat metadata.PixelFormat, flags metadata.TextureFlag) (*TextureBufferRectangle, error) {
	if !img.Valid() {
		err := fmt.Errorf("CreateTextureBufferRectangle: image is missing or malformed: %w", core.ErrInvalidParameter)
		core.LogError("%s", err.Error())
		return nil, err
	}
	flags &^= metadata.TextureFlagMipmaps
	internal := r.resolveInternalFormat(img.Format, internalFormat, flags)
	data, sizes, err := convertLevels(img.Format, internal, img.Levels[:1])
	if err != nil {
		err = fmt.Errorf("CreateTextureBufferRectangle: %w", err)
		core.LogError("%s", err.Error())
		return nil, err
	}
	return r.newTextureBufferRectangle(sizes[0], internal, flags, data)
}

/**
 * @brief Creates a rectangle texture with zeroed content.
 */
func (r *Renderer) CreateTextureBufferRectangleEmpty(size math.Size, format metadata.PixelFormat, flags metadata.TextureFlag) (*TextureBufferRectangle, error) {
	if size.Width == 0 || size.Height == 0 || !format.IsValid() || format.IsCompressed() {
		err := fmt.Errorf("CreateTextureBufferRectangleEmpty: %dx%d %s: %w", size.Width, size.Height, format, core.ErrInvalidParameter)
		core.LogError("%s", err.Error())
		return nil, err
	}
	return r.newTextureBufferRectangle(size, format, flags&^metadata.TextureFlagMipmaps, nil)
}

func (r *Renderer) newTextureBufferRectangle(size math.Size, format metadata.PixelFormat, flags metadata.TextureFlag, data []byte) (*TextureBufferRectangle, error) {
	if max(size.Width, size.Height) > r.caps.MaxTextureSize {
		err := fmt.Errorf("texture size %dx%d exceeds %d: %w", size.Width, size.Height, r.caps.MaxTextureSize, core.ErrInvalidParameter)
		core.LogError("%s", err.Error())
		return nil, err
	}
	texType := metadata.TextureBufferTypeRectangle
	if !r.caps.TextureBufferRectangle {
		core.LogWarn("Rectangle textures are not supported by the backend, using a 2D texture")
		texType = metadata.TextureBufferType2D
	}
	t := &TextureBufferRectangle{textureBase{
		resourceBase: newResourceBase(r, metadata.ResourceTypeTextureBufferRectangle),
		texType:      texType,
		format:       format,
		flags:        flags,
		sizes:        []math.Size{size},
	}}
	h, err := t.upload(data)
	if err != nil {
		err = fmt.Errorf("TextureBufferRectangle: %w", err)
		core.LogError("%s", err.Error())
		return nil, err
	}
	t.data = liveData{handle: h}
	r.register(t)
	return t, nil
}
