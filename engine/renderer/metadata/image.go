package metadata

/**
 * @brief A single mip level of an image.
 */
type ImageLevel struct {
	Width  uint32
	Height uint32
	/** @brief Tightly packed texel data in the owning image's format. */
	Data []byte
}

/**
 * @brief CPU side image data. Levels[0] is the base level, following levels
 * are successively smaller mipmaps.
 */
type Image struct {
	Format PixelFormat
	Levels []ImageLevel
}

func (i *Image) Width() uint32 {
	if i == nil || len(i.Levels) == 0 {
		return 0
	}
	return i.Levels[0].Width
}

func (i *Image) Height() uint32 {
	if i == nil || len(i.Levels) == 0 {
		return 0
	}
	return i.Levels[0].Height
}

/** @brief Validates that every level carries exactly the bytes its size requires. */
func (i *Image) Valid() bool {
	if i == nil || !i.Format.IsValid() || len(i.Levels) == 0 {
		return false
	}
	for _, l := range i.Levels {
		if l.Width == 0 || l.Height == 0 || uint32(len(l.Data)) != i.Format.NumOfBytes(l.Width, l.Height) {
			return false
		}
	}
	return true
}
