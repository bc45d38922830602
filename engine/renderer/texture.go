package renderer

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/renderer/pixel"
)

/**
 * @brief A texture living on the device. Implemented by TextureBuffer2D and
 * TextureBufferRectangle.
 */
type TextureBuffer interface {
	Resource
	GetTextureBufferType() metadata.TextureBufferType
	GetFormat() metadata.PixelFormat
	GetFlags() metadata.TextureFlag
	GetSize(level uint32) math.Size
	// GetNumOfMipmaps excludes the base level.
	GetNumOfMipmaps() uint32
	GetNumOfLevels() uint32
	GetNumOfBytes(level uint32) uint32
	GetTotalNumOfBytes() uint32
	CopyDataFrom(level uint32, format metadata.PixelFormat, data []byte, face uint32) bool
	CopyDataTo(level uint32, format metadata.PixelFormat, data []byte, face uint32) bool
	deviceHandle() (metadata.Handle, error)
}

type textureBase struct {
	resourceBase
	texType metadata.TextureBufferType
	format  metadata.PixelFormat
	flags   metadata.TextureFlag
	sizes   []math.Size
}

func (t *textureBase) GetTextureBufferType() metadata.TextureBufferType {
	return t.texType
}

func (t *textureBase) GetFormat() metadata.PixelFormat {
	return t.format
}

func (t *textureBase) GetFlags() metadata.TextureFlag {
	return t.flags
}

func (t *textureBase) GetSize(level uint32) math.Size {
	if level >= uint32(len(t.sizes)) {
		return math.Size{}
	}
	return t.sizes[level]
}

func (t *textureBase) GetNumOfMipmaps() uint32 {
	if len(t.sizes) == 0 {
		return 0
	}
	return uint32(len(t.sizes)) - 1
}

func (t *textureBase) GetNumOfLevels() uint32 {
	return uint32(len(t.sizes))
}

func (t *textureBase) GetNumOfBytes(level uint32) uint32 {
	s := t.GetSize(level)
	return t.format.NumOfBytes(s.Width, s.Height)
}

func (t *textureBase) GetTotalNumOfBytes() uint32 {
	var total uint32
	for i := range t.sizes {
		total += t.GetNumOfBytes(uint32(i))
	}
	return total
}

func (t *textureBase) desc() *metadata.TextureDesc {
	base := t.GetSize(0)
	return &metadata.TextureDesc{
		Type:         t.texType,
		Width:        base.Width,
		Height:       base.Height,
		Format:       t.format,
		Levels:       t.GetNumOfLevels(),
		RenderTarget: t.flags.Has(metadata.TextureFlagRenderTarget),
	}
}

// upload creates the device texture and fills every level from data,
// which holds all levels back to back.
func (t *textureBase) upload(data []byte) (metadata.Handle, error) {
	h, err := t.renderer.backend.TextureCreate(t.desc())
	if err != nil {
		return metadata.InvalidHandle, err
	}
	offset := uint32(0)
	for level := range t.sizes {
		n := t.GetNumOfBytes(uint32(level))
		if data != nil {
			if err := t.renderer.backend.TextureUpload(h, uint32(level), data[offset:offset+n]); err != nil {
				t.renderer.backend.TextureDestroy(h)
				return metadata.InvalidHandle, err
			}
		}
		offset += n
	}
	return h, nil
}

// checkCopy validates a CopyDataFrom/CopyDataTo request and returns the
// number of bytes the level occupies in format.
func (t *textureBase) checkCopy(op string, level uint32, format metadata.PixelFormat, data []byte, face uint32) (metadata.Handle, uint32, bool) {
	h, err := t.deviceHandle()
	if err != nil {
		core.LogWarn("%s: %s", op, err)
		return metadata.InvalidHandle, 0, false
	}
	if face != 0 || level > t.GetNumOfMipmaps() || !format.IsValid() {
		core.LogWarn("%s: invalid level %d, face %d or format %s", op, level, face, format)
		return metadata.InvalidHandle, 0, false
	}
	if (format.IsCompressed() || t.format.IsCompressed()) && format != t.format {
		core.LogWarn("%s: cannot convert between %s and %s", op, format, t.format)
		return metadata.InvalidHandle, 0, false
	}
	size := t.sizes[level]
	need := format.NumOfBytes(size.Width, size.Height)
	if uint32(len(data)) < need {
		core.LogWarn("%s: %d bytes given, level %d needs %d", op, len(data), level, need)
		return metadata.InvalidHandle, 0, false
	}
	return h, need, true
}

/**
 * @brief Uploads data in format to the given mip level, converting to the
 * internal format. Rejects invalid levels, faces, formats and short data
 * without changing anything.
 */
func (t *textureBase) CopyDataFrom(level uint32, format metadata.PixelFormat, data []byte, face uint32) bool {
	h, need, ok := t.checkCopy("CopyDataFrom", level, format, data, face)
	if !ok {
		return false
	}
	size := t.sizes[level]
	converted, err := pixel.Convert(format, data[:need], t.format, size.Width, size.Height)
	if err != nil {
		core.LogWarn("CopyDataFrom: %s", err)
		return false
	}
	if err := t.renderer.backend.TextureUpload(h, level, converted); err != nil {
		core.LogError("CopyDataFrom: %s", err)
		return false
	}
	return true
}

/**
 * @brief Reads the given mip level into data, converted to format.
 */
func (t *textureBase) CopyDataTo(level uint32, format metadata.PixelFormat, data []byte, face uint32) bool {
	h, need, ok := t.checkCopy("CopyDataTo", level, format, data, face)
	if !ok {
		return false
	}
	raw, err := t.renderer.backend.TextureRead(h, level)
	if err != nil {
		core.LogError("CopyDataTo: %s", err)
		return false
	}
	size := t.sizes[level]
	converted, err := pixel.Convert(t.format, raw, format, size.Width, size.Height)
	if err != nil {
		core.LogWarn("CopyDataTo: %s", err)
		return false
	}
	copy(data, converted[:need])
	return true
}

/**
 * @brief Reads every level back into a CPU image in the internal format.
 */
func (t *textureBase) Download() (*metadata.Image, error) {
	h, err := t.deviceHandle()
	if err != nil {
		return nil, err
	}
	img := &metadata.Image{Format: t.format}
	for level, size := range t.sizes {
		data, err := t.renderer.backend.TextureRead(h, uint32(level))
		if err != nil {
			return nil, err
		}
		img.Levels = append(img.Levels, metadata.ImageLevel{Width: size.Width, Height: size.Height, Data: data})
	}
	return img, nil
}

func (t *textureBase) BackupDeviceData() error {
	h, ok := t.beginBackup()
	if !ok {
		return nil
	}
	backup := make([]byte, 0, t.GetTotalNumOfBytes())
	for level := range t.sizes {
		data, err := t.renderer.backend.TextureRead(h, uint32(level))
		if err != nil {
			t.renderer.backend.TextureDestroy(h)
			return t.lose(err)
		}
		backup = append(backup, data...)
	}
	t.renderer.backend.TextureDestroy(h)
	t.data = backedData{bytes: backup}
	return nil
}

func (t *textureBase) RestoreDeviceData() error {
	backup, ok := t.beginRestore()
	if !ok {
		return nil
	}
	if uint32(len(backup)) != t.GetTotalNumOfBytes() {
		return t.lose(fmt.Errorf("backup holds %d bytes, expected %d", len(backup), t.GetTotalNumOfBytes()))
	}
	h, err := t.upload(backup)
	if err != nil {
		return t.lose(err)
	}
	t.data = liveData{handle: h}
	return nil
}

func (t *textureBase) Destroy() {
	if d, ok := t.data.(liveData); ok && d.handle.IsValid() {
		t.renderer.backend.TextureDestroy(d.handle)
	}
	if t.markDestroyed() {
		t.renderer.unbindTexture(t.id)
	}
}

// resolveInternalFormat picks the storage format for data in src when
// requested was asked for. Compressed storage needs matching compressed
// data and backend support, there is no compressor.
func (r *Renderer) resolveInternalFormat(src, requested metadata.PixelFormat, flags metadata.TextureFlag) metadata.PixelFormat {
	internal := requested
	if !internal.IsValid() {
		internal = src
	}
	if internal.IsCompressed() {
		switch {
		case !r.caps.TextureCompressionDXT:
			core.LogWarn("Texture compression %s is not supported by the backend, falling back to %s", internal, internal.Uncompressed())
			internal = internal.Uncompressed()
		case src != internal:
			core.LogWarn("No texture compressor available for %s data, falling back to %s", src, internal.Uncompressed())
			internal = internal.Uncompressed()
		}
	} else if flags.Has(metadata.TextureFlagCompression) && !src.IsCompressed() {
		core.LogWarn("Texture compression requested for %s data but no compressor is available, keeping %s", src, internal)
	}
	return internal
}

// convertLevels converts every level from src to dst.
func convertLevels(src, dst metadata.PixelFormat, levels []metadata.ImageLevel) ([]byte, []math.Size, error) {
	var out []byte
	sizes := make([]math.Size, 0, len(levels))
	for _, l := range levels {
		data, err := pixel.Convert(src, l.Data, dst, l.Width, l.Height)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, data...)
		sizes = append(sizes, math.Size{Width: l.Width, Height: l.Height})
	}
	return out, sizes, nil
}

// mipSizes returns the sizes of a full chain down to 1x1.
func mipSizes(width, height uint32) []math.Size {
	sizes := []math.Size{{Width: width, Height: height}}
	for width != 1 || height != 1 {
		width, height = max(width/2, 1), max(height/2, 1)
		sizes = append(sizes, math.Size{Width: width, Height: height})
	}
	return sizes
}
