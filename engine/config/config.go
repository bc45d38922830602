package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/lumen/engine/compositing"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

const (
	BackendSoft   = "soft"
	BackendVulkan = "vulkan"
)

type RendererConfig struct {
	Backend         string `toml:"backend"`
	ApplicationName string `toml:"application_name"`
	Width           uint32 `toml:"width"`
	Height          uint32 `toml:"height"`
	// ShaderLanguage is empty for the backend default.
	ShaderLanguage  string `toml:"shader_language"`
	MaxTextureUnits uint32 `toml:"max_texture_units"`
	Validation      bool   `toml:"validation"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type LightingConfig struct {
	NoDiscard          bool `toml:"no_discard"`
	NoAlbedo           bool `toml:"no_albedo"`
	NoSpecular         bool `toml:"no_specular"`
	NoShadow           bool `toml:"no_shadow"`
	NoProjective       bool `toml:"no_projective"`
	NoAmbientOcclusion bool `toml:"no_ambient_occlusion"`
	GammaCorrection    bool `toml:"gamma_correction"`
	// DefaultSpecular replaces the G-buffer specular exponent when set.
	DefaultSpecular    bool `toml:"default_specular"`
}

type GlowConfig struct {
	Factor     float32 `toml:"factor"`
	BlurPasses int     `toml:"blur_passes"`
	Downscale  float32 `toml:"downscale"`
	NoDiscard  bool    `toml:"no_discard"`
	NoBlending bool    `toml:"no_blending"`
}

type AdaptationConfig struct {
	// Tau is the adaptation rate per second.
	Tau float32 `toml:"tau"`
}

type ShadersConfig struct {
	// OverrideDir holds <language>/<name>.<ext> sources replacing the embedded ones.
	OverrideDir string `toml:"override_dir"`
	Watch       bool   `toml:"watch"`
}

/**
 * @brief Everything a Lumen application reads from its TOML file.
 */
type Config struct {
	Renderer   RendererConfig   `toml:"renderer"`
	Log        LogConfig        `toml:"log"`
	Lighting   LightingConfig   `toml:"lighting"`
	Glow       GlowConfig       `toml:"glow"`
	Adaptation AdaptationConfig `toml:"adaptation"`
	Shaders    ShadersConfig    `toml:"shaders"`
}

func Default() *Config {
	return &Config{
		Renderer: RendererConfig{
			Backend:         BackendSoft,
			ApplicationName: "Lumen",
			Width:           320,
			Height:          240,
		},
		Log: LogConfig{Level: "info"},
		Glow: GlowConfig{
			Factor:     compositing.DefaultGlowFactor,
			BlurPasses: compositing.DefaultGlowBlurPasses,
			Downscale:  compositing.DefaultGlowDownscale,
		},
		Adaptation: AdaptationConfig{Tau: 0.5},
	}
}

/**
 * @brief Reads path over the defaults and validates the result. Keys missing
 * from the file keep their default.
 */
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			err = fmt.Errorf("config %s: %s: %w", path, strict.String(), core.ErrInvalidParameter)
		} else {
			err = fmt.Errorf("config %s: %w", path, err)
		}
		core.LogError("%s", err.Error())
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

/**
 * @brief Rejects values no component can work with. A glow downscale below 1
 * is raised to 1 with a warning.
 */
func (c *Config) Validate() error {
	switch c.Renderer.Backend {
	case BackendSoft, BackendVulkan:
	default:
		return fmt.Errorf("unknown backend %q: %w", c.Renderer.Backend, core.ErrInvalidParameter)
	}
	if c.Renderer.Width == 0 || c.Renderer.Height == 0 {
		return fmt.Errorf("renderer size %dx%d: %w", c.Renderer.Width, c.Renderer.Height, core.ErrInvalidParameter)
	}
	if c.Glow.BlurPasses < 0 {
		return fmt.Errorf("glow blur_passes %d: %w", c.Glow.BlurPasses, core.ErrInvalidParameter)
	}
	if c.Glow.Factor < 0 {
		return fmt.Errorf("glow factor %g: %w", c.Glow.Factor, core.ErrInvalidParameter)
	}
	if c.Glow.Downscale < 1 {
		core.LogWarn("Glow downscale %g is below 1, using 1", c.Glow.Downscale)
		c.Glow.Downscale = 1
	}
	if c.Adaptation.Tau < 0 {
		return fmt.Errorf("adaptation tau %g: %w", c.Adaptation.Tau, core.ErrInvalidParameter)
	}
	if c.Log.Level != "" {
		if _, err := log.ParseLevel(c.Log.Level); err != nil {
			return fmt.Errorf("log level %q: %w", c.Log.Level, core.ErrInvalidParameter)
		}
	}
	return nil
}

// RendererSetup returns the renderer creation parameters.
func (c *Config) RendererSetup() renderer.Config {
	return renderer.Config{
		Backend: metadata.RendererBackendConfig{
			ApplicationName: c.Renderer.ApplicationName,
			Width:           c.Renderer.Width,
			Height:          c.Renderer.Height,
			Validation:      c.Renderer.Validation,
		},
		ShaderLanguage:  c.Renderer.ShaderLanguage,
		MaxTextureUnits: c.Renderer.MaxTextureUnits,
	}
}

func (l LightingConfig) Flags() compositing.LightingFlag {
	var f compositing.LightingFlag
	set := func(on bool, flag compositing.LightingFlag) {
		if on {
			f |= flag
		}
	}
	set(l.NoDiscard, compositing.LightingNoDiscard)
	set(l.NoAlbedo, compositing.LightingNoAlbedo)
	set(l.NoSpecular, compositing.LightingNoSpecular)
	set(l.NoShadow, compositing.LightingNoShadow)
	set(l.NoProjective, compositing.LightingNoProjective)
	set(l.NoAmbientOcclusion, compositing.LightingNoAmbientOcclusion)
	set(l.GammaCorrection, compositing.LightingGammaCorrection)
	set(l.DefaultSpecular, compositing.LightingNoSpecularExponent)
	return f
}

// Apply copies the glow settings onto a glow pass.
func (g GlowConfig) Apply(glow *compositing.Glow) {
	glow.GlowFactor = g.Factor
	glow.GlowBlurPasses = g.BlurPasses
	glow.GlowDownscale = g.Downscale
	glow.Flags = 0
	if g.NoDiscard {
		glow.Flags |= compositing.GlowNoDiscard
	}
	if g.NoBlending {
		glow.Flags |= compositing.GlowNoBlending
	}
}
