package drawhelpers

import (
	"fmt"
	"image"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/fzipp/bmfont"
	_ "golang.org/x/image/bmp"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

type TextFlag uint32

const (
	/** @brief Center the text horizontally on the given position. */
	TextCenterX TextFlag = 1 << iota
	/** @brief Center the text vertically on the given position. */
	TextCenterY
)

func (f TextFlag) Has(flag TextFlag) bool {
	return f&flag != 0
}

type glyph struct {
	x, y, width, height float32
	xOffset, yOffset    float32
	xAdvance            float32
	page                int
}

type kerningPair struct {
	first, second rune
}

/**
 * @brief A bitmap font in the AngelCode BMFont format with its pages
 * uploaded as RGBA8 textures.
 */
type Font struct {
	Face       string
	Size       int
	LineHeight float32
	Base       float32

	scaleW, scaleH float32
	glyphs         map[rune]glyph
	kerning        map[kerningPair]float32
	pages          map[int]*renderer.TextureBuffer2D
}

/**
 * @brief Loads a .fnt descriptor and its page images from the same directory.
 * Pages may be PNG or BMP.
 */
func LoadFont(r *renderer.Renderer, path string) (*Font, error) {
	font, err := bmfont.Load(path)
	if err != nil {
		err = fmt.Errorf("LoadFont %s: %w", path, err)
		core.LogError("%s", err.Error())
		return nil, err
	}
	desc := font.Descriptor

	f := &Font{
		Face:       desc.Info.Face,
		Size:       int(desc.Info.Size),
		LineHeight: float32(desc.Common.LineHeight),
		Base:       float32(desc.Common.Base),
		scaleW:     float32(desc.Common.ScaleW),
		scaleH:     float32(desc.Common.ScaleH),
		glyphs:     make(map[rune]glyph, len(desc.Chars)),
		kerning:    make(map[kerningPair]float32, len(desc.Kerning)),
		pages:      make(map[int]*renderer.TextureBuffer2D, len(desc.Pages)),
	}
	if f.scaleW <= 0 || f.scaleH <= 0 {
		return nil, core.LogErrorf("LoadFont %s: page size %gx%g: %w", path, f.scaleW, f.scaleH, core.ErrInvalidParameter)
	}
	for _, c := range desc.Chars {
		f.glyphs[rune(c.ID)] = glyph{
			x:        float32(c.X),
			y:        float32(c.Y),
			width:    float32(c.Width),
			height:   float32(c.Height),
			xOffset:  float32(c.XOffset),
			yOffset:  float32(c.YOffset),
			xAdvance: float32(c.XAdvance),
			page:     int(c.Page),
		}
	}
	for pair, k := range desc.Kerning {
		f.kerning[kerningPair{first: rune(pair.First), second: rune(pair.Second)}] = float32(k.Amount)
	}

	dir := filepath.Dir(path)
	for _, p := range desc.Pages {
		tex, err := loadPage(r, filepath.Join(dir, p.File))
		if err != nil {
			f.Destroy()
			err = fmt.Errorf("LoadFont %s: page %d: %w", path, p.ID, err)
			core.LogError("%s", err.Error())
			return nil, err
		}
		f.pages[int(p.ID)] = tex
	}
	core.LogDebug("Font %s %d loaded: %d glyphs, %d pages", f.Face, f.Size, len(f.glyphs), len(f.pages))
	return f, nil
}

func loadPage(r *renderer.Renderer, path string) (*renderer.TextureBuffer2D, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, err
	}
	return r.CreateTextureBuffer2D(renderer.NewImageFromGo(img), metadata.PixelFormatRGBA8, 0)
}

func (f *Font) Destroy() {
	for id, tex := range f.pages {
		tex.Destroy()
		delete(f.pages, id)
	}
}

func (f *Font) Kerning(first, second rune) float32 {
	return f.kerning[kerningPair{first: first, second: second}]
}

/**
 * @brief Returns the size in pixels of text, lines separated by '\n'.
 */
func (f *Font) MeasureText(text string) math.Vec2 {
	var width, lineWidth float32
	lines := 1
	prev := rune(-1)
	for _, c := range text {
		if c == '\n' {
			width = max(width, lineWidth)
			lineWidth = 0
			lines++
			prev = -1
			continue
		}
		g, ok := f.glyphs[c]
		if !ok {
			prev = -1
			continue
		}
		if prev >= 0 {
			lineWidth += f.Kerning(prev, c)
		}
		lineWidth += g.xAdvance
		prev = c
	}
	return math.NewVec2(max(width, lineWidth), float32(lines)*f.LineHeight)
}

/**
 * @brief Draws text with its top left corner at pos, blended over the
 * target with its alpha. Characters missing from the font are skipped.
 */
func (d *DrawHelpers) DrawText(font *Font, text string, color math.Color, pos math.Vec2, flags TextFlag) error {
	if font == nil {
		return core.LogErrorf("DrawText: no font: %w", core.ErrInvalidParameter)
	}
	if flags.Has(TextCenterX) || flags.Has(TextCenterY) {
		size := font.MeasureText(text)
		if flags.Has(TextCenterX) {
			pos.X -= size.X * 0.5
		}
		if flags.Has(TextCenterY) {
			pos.Y -= size.Y * 0.5
		}
	}

	r := d.renderer
	blend := r.BackupRenderStates(
		metadata.RenderStateBlendEnable,
		metadata.RenderStateSrcBlendFunc,
		metadata.RenderStateDstBlendFunc,
	)
	defer blend.Restore()
	r.SetRenderState(metadata.RenderStateBlendEnable, 1)
	r.SetRenderState(metadata.RenderStateSrcBlendFunc, uint32(metadata.BlendSrcAlpha))
	r.SetRenderState(metadata.RenderStateDstBlendFunc, uint32(metadata.BlendInvSrcAlpha))

	opts := DefaultImageOptions()
	opts.Color = color
	opts.SamplerStates[metadata.SamplerStateAddressU] = uint32(metadata.AddressClamp)
	opts.SamplerStates[metadata.SamplerStateAddressV] = uint32(metadata.AddressClamp)

	x, y := pos.X, pos.Y
	prev := rune(-1)
	for _, c := range text {
		if c == '\n' {
			x = pos.X
			y += font.LineHeight
			prev = -1
			continue
		}
		g, ok := font.glyphs[c]
		if !ok {
			prev = -1
			continue
		}
		if prev >= 0 {
			x += font.Kerning(prev, c)
		}
		prev = c

		page, ok := font.pages[g.page]
		if g.width > 0 && g.height > 0 && ok {
			opts.UV = math.NewVec2(g.x/font.scaleW, g.y/font.scaleH)
			opts.UVSize = math.NewVec2(g.width/font.scaleW, g.height/font.scaleH)
			quadPos := math.NewVec2(x+g.xOffset, y+g.yOffset)
			if err := d.DrawImage(page, quadPos, math.NewVec2(g.width, g.height), opts); err != nil {
				return fmt.Errorf("DrawText: %w", err)
			}
		}
		x += g.xAdvance
	}
	return nil
}
