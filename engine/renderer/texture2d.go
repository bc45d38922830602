package renderer

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

/**
 * @brief A 2D texture with an optional mipmap chain that always ends at 1x1.
 */
type TextureBuffer2D struct {
	textureBase
}

/**
 * @brief Creates a 2D texture from img.
 *
 * With TextureFlagMipmaps a lone base level gets a generated chain and an
 * explicit chain that stops short of 1x1 is completed with white levels.
 * Without it only the base level is used.
 * @param img The image data, all levels must be valid.
 * @param internalFormat The storage format, PixelFormatUnknown keeps the image format.
 * @param flags Creation flags.
 */
func (r *Renderer) CreateTextureBuffer2D(img *metadata.Image, internalFormat metadata.PixelFormat, flags metadata.TextureFlag) (*TextureBuffer2D, error) {
	if !img.Valid() {
		err := fmt.Errorf("CreateTextureBuffer2D: image is missing or malformed: %w", core.ErrInvalidParameter)
		core.LogError("%s", err.Error())
		return nil, err
	}
	internal := r.resolveInternalFormat(img.Format, internalFormat, flags)

	levels := img.Levels[:1]
	if flags.Has(metadata.TextureFlagMipmaps) {
		chain, err := BuildMipChain(img)
		if err != nil {
			core.LogError("CreateTextureBuffer2D: %s", err)
			return nil, err
		}
		levels = chain
	}

	data, sizes, err := convertLevels(img.Format, internal, levels)
	if err != nil {
		err = fmt.Errorf("CreateTextureBuffer2D: %w", err)
		core.LogError("%s", err.Error())
		return nil, err
	}
	return r.newTextureBuffer2D(sizes, internal, flags, data)
}

/**
 * @brief Creates a 2D texture with zeroed content, e.g. as a render target.
 */
func (r *Renderer) CreateTextureBuffer2DEmpty(size math.Size, format metadata.PixelFormat, flags metadata.TextureFlag) (*TextureBuffer2D, error) {
	if size.Width == 0 || size.Height == 0 || !format.IsValid() {
		err := fmt.Errorf("CreateTextureBuffer2DEmpty: %dx%d %s: %w", size.Width, size.Height, format, core.ErrInvalidParameter)
		core.LogError("%s", err.Error())
		return nil, err
	}
	if format.IsCompressed() && !r.caps.TextureCompressionDXT {
		core.LogWarn("Texture compression %s is not supported by the backend, falling back to %s", format, format.Uncompressed())
		format = format.Uncompressed()
	}
	sizes := []math.Size{size}
	if flags.Has(metadata.TextureFlagMipmaps) {
		sizes = mipSizes(size.Width, size.Height)
	}
	return r.newTextureBuffer2D(sizes, format, flags, nil)
}

func (r *Renderer) newTextureBuffer2D(sizes []math.Size, format metadata.PixelFormat, flags metadata.TextureFlag, data []byte) (*TextureBuffer2D, error) {
	if max(sizes[0].Width, sizes[0].Height) > r.caps.MaxTextureSize {
		err := fmt.Errorf("texture size %dx%d exceeds %d: %w", sizes[0].Width, sizes[0].Height, r.caps.MaxTextureSize, core.ErrInvalidParameter)
		core.LogError("%s", err.Error())
		return nil, err
	}
	t := &TextureBuffer2D{textureBase{
		resourceBase: newResourceBase(r, metadata.ResourceTypeTextureBuffer2D),
		texType:      metadata.TextureBufferType2D,
		format:       format,
		flags:        flags,
		sizes:        sizes,
	}}
	h, err := t.upload(data)
	if err != nil {
		err = fmt.Errorf("TextureBuffer2D: %w", err)
		core.LogError("%s", err.Error())
		return nil, err
	}
	t.data = liveData{handle: h}
	r.register(t)
	return t, nil
}
