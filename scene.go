package main

import (
	"fmt"
	"runtime"

	"github.com/chewxy/math32"

	"github.com/spaghettifunk/lumen/engine/compositing"
	"github.com/spaghettifunk/lumen/engine/config"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/drawhelpers"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/renderer/pixel"
	"github.com/spaghettifunk/lumen/engine/systems"
)

const (
	fieldOfView   = math32.Pi / 3
	sphereRadius  = 1.5
	sphereDepth   = 5
	specularPower = 32
)

// gbufferFormats are the formats of the four synthetic G-buffer targets.
var gbufferFormats = [compositing.MaxColorTargets]metadata.PixelFormat{
	metadata.PixelFormatRGBA8,
	metadata.PixelFormatRGBA16F,
	metadata.PixelFormatRGBA16F,
	metadata.PixelFormatRGBA8,
}

type demo struct {
	renderer *renderer.Renderer
	cfg      *config.Config

	quad     *compositing.FullscreenQuad
	gbuffer  *compositing.TextureGBuffer
	textures []renderer.TextureBuffer

	lighting   *compositing.DeferredLighting
	glow       *compositing.Glow
	adaptation *compositing.LightAdaptation
	luminance  *renderer.TextureBuffer2D

	helpers *drawhelpers.DrawHelpers
	font    *drawhelpers.Font

	lights  []compositing.Light
	time    float32
	adapted float32
}

/**
 * @brief Traces a sphere in front of the camera into G-buffer texels, one
 * job per row.
 * @returns The texels of the four targets, row 0 at the top.
 */
func traceSphere(jobs *systems.JobSystem, width, height uint32, invFocalLen math.Vec2) ([compositing.MaxColorTargets][]math.Vec4, error) {
	var targets [compositing.MaxColorTargets][]math.Vec4
	for i := range targets {
		targets[i] = make([]math.Vec4, width*height)
	}
	center := math.NewVec3(0, 0, -sphereDepth)
	row := func(y uint32) error {
		for x := uint32(0); x < width; x++ {
			uv := math.NewVec2((float32(x)+0.5)/float32(width), 1-(float32(y)+0.5)/float32(height))
			ray := compositing.UVToEye(uv, 1, invFocalLen).Normalized()

			// |t*ray - center| = radius
			b := ray.Dot(center)
			disc := b*b - center.Dot(center) + sphereRadius*sphereRadius
			if disc < 0 {
				continue
			}
			hit := ray.MulScalar(b - math32.Sqrt(disc))
			normal := hit.Sub(center).MulScalar(1 / sphereRadius)
			enc := compositing.EncodeNormal(normal)
			i := y*width + x

			// darker towards the silhouette
			ao := 0.4 + 0.6*math.Saturate(normal.Z)
			stripe := float32(0.5) + 0.5*math32.Sin(normal.Y*12)
			targets[0][i] = math.NewVec4(0.8, 0.3+0.4*stripe, 0.2, ao)
			targets[1][i] = math.NewVec4(enc.X, enc.Y, -hit.Z, 0)
			targets[2][i] = math.NewVec4(0.6, 0.6, 0.6, specularPower)
			if normal.Y > 0.85 {
				targets[3][i] = math.NewVec4(1, 0.7, 0.3, 1)
			}
		}
		return nil
	}
	rows := make([]func() error, height)
	for y := range rows {
		rows[y] = func() error { return row(uint32(y)) }
	}
	return targets, jobs.RunAll(rows...)
}

func newDemo(r *renderer.Renderer, cfg *config.Config, fontPath string) (*demo, error) {
	d := &demo{renderer: r, cfg: cfg}
	if err := d.build(fontPath); err != nil {
		d.destroy()
		return nil, err
	}
	return d, nil
}

func (d *demo) build(fontPath string) error {
	r := d.renderer
	width, height := d.cfg.Renderer.Width, d.cfg.Renderer.Height
	aspect := float32(width) / float32(height)

	quad, err := compositing.NewFullscreenQuad(r)
	if err != nil {
		return err
	}
	d.quad = quad
	d.gbuffer = compositing.NewTextureGBuffer(quad)

	jobs, err := systems.NewJobSystem(runtime.NumCPU(), int(height))
	if err != nil {
		return err
	}
	defer jobs.Shutdown()
	invFocalLen := compositing.InvFocalLen(fieldOfView, aspect)
	gbuffer, err := traceSphere(jobs, width, height, invFocalLen)
	if err != nil {
		return err
	}
	for i, texels := range gbuffer {
		data, err := pixel.Encode(gbufferFormats[i], texels, width, height)
		if err != nil {
			return fmt.Errorf("G-buffer target %d: %w", i, err)
		}
		img := &metadata.Image{
			Format: gbufferFormats[i],
			Levels: []metadata.ImageLevel{{Width: width, Height: height, Data: data}},
		}
		tb, err := r.CreateTextureBufferRectangle(img, gbufferFormats[i], 0)
		if err != nil {
			return err
		}
		d.textures = append(d.textures, tb)
		d.gbuffer.SetColorTarget(i, tb, i != 1)
	}

	d.lighting = compositing.NewDeferredLighting(r)
	d.lighting.ShaderLanguage = d.cfg.Renderer.ShaderLanguage
	d.lighting.Flags = d.cfg.Lighting.Flags()
	d.lighting.InvFocalLen = invFocalLen

	d.glow = compositing.NewGlow(r)
	d.glow.ShaderLanguage = d.cfg.Renderer.ShaderLanguage
	d.cfg.Glow.Apply(d.glow)

	if d.adaptation, err = compositing.NewLightAdaptation(r); err != nil {
		return err
	}
	if d.luminance, err = r.CreateTextureBuffer2DEmpty(math.Size{Width: 1, Height: 1}, metadata.PixelFormatR32F, 0); err != nil {
		return err
	}

	if d.helpers, err = drawhelpers.New(r); err != nil {
		return err
	}
	d.helpers.ShaderLanguage = d.cfg.Renderer.ShaderLanguage
	if fontPath != "" {
		if d.font, err = drawhelpers.LoadFont(r, fontPath); err != nil {
			return err
		}
	}

	d.lights = []compositing.Light{
		{
			Type:      compositing.LightDirectional,
			Color:     math.NewColor(0.25, 0.25, 0.3, 1),
			Direction: math.NewVec3(-0.3, -0.5, -1).Normalized(),
		},
		{
			Type:   compositing.LightPoint,
			Color:  math.NewColor(1, 0.6, 0.3, 1),
			Radius: 4,
		},
		{
			Type:       compositing.LightSpot,
			Color:      math.NewColor(0.4, 0.6, 1, 1),
			Position:   math.NewVec3(2, 3, -2),
			Direction:  math.NewVec3(-2, -3, -3).Normalized(),
			Radius:     10,
			Cone:       true,
			SmoothCone: true,
			OuterAngle: 0.5,
			InnerAngle: 0.35,
		},
	}
	core.LogInfo("Demo scene ready: %dx%d, %d lights", width, height, len(d.lights))
	return nil
}

func (d *demo) destroy() {
	if d.font != nil {
		d.font.Destroy()
	}
	if d.helpers != nil {
		d.helpers.Destroy()
	}
	if d.luminance != nil {
		d.luminance.Destroy()
	}
	if d.adaptation != nil {
		d.adaptation.Destroy()
	}
	if d.glow != nil {
		d.glow.Destroy()
	}
	if d.lighting != nil {
		d.lighting.Destroy()
	}
	for _, tb := range d.textures {
		tb.Destroy()
	}
	if d.quad != nil {
		d.quad.Destroy()
	}
}

// averageLuminance reads the default target back and averages its luminance.
func (d *demo) averageLuminance() (float32, error) {
	img, err := d.renderer.ReadBackbuffer()
	if err != nil {
		return 0, err
	}
	level := img.Levels[0]
	texels, err := pixel.Decode(img.Format, level.Data, level.Width, level.Height)
	if err != nil {
		return 0, err
	}
	if len(texels) == 0 {
		return 0, nil
	}
	var sum float32
	for _, t := range texels {
		sum += 0.2126*t.X + 0.7152*t.Y + 0.0722*t.Z
	}
	return sum / float32(len(texels)), nil
}

func (d *demo) adapt(dt float32) error {
	avg, err := d.averageLuminance()
	if err != nil {
		return err
	}
	data, err := pixel.Encode(metadata.PixelFormatR32F, []math.Vec4{{X: avg}}, 1, 1)
	if err != nil {
		return err
	}
	if !d.luminance.CopyDataFrom(0, metadata.PixelFormatR32F, data, 0) {
		return fmt.Errorf("uploading average luminance: %w", core.ErrInvalidParameter)
	}
	if err := d.adaptation.CalculateLightAdaptation(d.cfg.Renderer.ShaderLanguage, d.luminance, d.cfg.Adaptation.Tau*dt); err != nil {
		return err
	}

	result := d.adaptation.GetTextureBuffer()
	if !result.CopyDataTo(0, metadata.PixelFormatR32F, data, 0) {
		return fmt.Errorf("reading adapted luminance: %w", core.ErrResourceLost)
	}
	texels, err := pixel.Decode(metadata.PixelFormatR32F, data, 1, 1)
	if err != nil {
		return err
	}
	d.adapted = texels[0].X
	return nil
}

// overlay draws the adapted luminance as a bar with a caption.
func (d *demo) overlay() error {
	h := d.helpers
	h.Begin2DMode(0, 0, 0, 0)
	defer h.End2DMode()

	width := float32(d.cfg.Renderer.Width)
	pos := math.NewVec2(8, float32(d.cfg.Renderer.Height)-20)
	size := math.NewVec2((width-16)*math.Saturate(d.adapted), 12)
	if err := h.DrawGradientQuad(math.ColorBlack, math.ColorWhite, 0, pos, size); err != nil {
		return err
	}
	if err := h.DrawQuad(math.NewColor(1, 1, 1, 1), pos, math.NewVec2(width-16, 12), 1); err != nil {
		return err
	}
	if d.font == nil {
		return nil
	}
	caption := fmt.Sprintf("adapted luminance %.2f", d.adapted)
	return h.DrawText(d.font, caption, math.ColorWhite, math.NewVec2(width/2, pos.Y-4), drawhelpers.TextCenterX)
}

/**
 * @brief Renders one frame into the default target: lighting, glow, light
 * adaptation and the overlay.
 */
func (d *demo) frame(dt float32) error {
	r := d.renderer
	if err := r.BeginFrame(); err != nil {
		return err
	}
	d.time += dt

	// the point light circles the sphere
	d.lights[1].Position = math.NewVec3(2.5*math32.Cos(d.time), 1, -sphereDepth+2.5*math32.Sin(d.time))

	r.SetRenderTarget(nil)
	if err := r.Clear(metadata.ClearColor|metadata.ClearDepth, math.ColorBlack, 1, 0); err != nil {
		return err
	}
	if _, err := d.lighting.Draw(d.gbuffer, d.lights); err != nil {
		return err
	}
	d.lighting.Reset()
	if _, err := d.glow.Draw(d.gbuffer); err != nil {
		return err
	}
	if err := d.adapt(dt); err != nil {
		return err
	}
	if err := d.overlay(); err != nil {
		return err
	}
	return r.EndFrame()
}
