package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/compositing"
	"github.com/spaghettifunk/lumen/engine/core"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "lumen.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	assert := assert.New(t)

	cfg := Default()
	assert.NoError(cfg.Validate())
	assert.Equal(BackendSoft, cfg.Renderer.Backend)
	assert.Equal(compositing.DefaultGlowBlurPasses, cfg.Glow.BlurPasses)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	assert := assert.New(t)

	cfg, err := Load(writeConfig(t, `
[renderer]
width = 64
height = 32

[lighting]
no_specular = true
gamma_correction = true

[glow]
blur_passes = 2
`))
	require.NoError(t, err)
	assert.Equal(uint32(64), cfg.Renderer.Width)
	assert.Equal(uint32(32), cfg.Renderer.Height)
	assert.Equal(BackendSoft, cfg.Renderer.Backend)
	assert.Equal("Lumen", cfg.Renderer.ApplicationName)
	assert.Equal(2, cfg.Glow.BlurPasses)
	assert.Equal(compositing.DefaultGlowDownscale, cfg.Glow.Downscale)
	assert.Equal(compositing.LightingNoSpecular|compositing.LightingGammaCorrection, cfg.Lighting.Flags())

	setup := cfg.RendererSetup()
	assert.Equal(uint32(64), setup.Backend.Width)
	assert.Equal("Lumen", setup.Backend.ApplicationName)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown backend", "[renderer]\nbackend = \"metal\"\n"},
		{"zero width", "[renderer]\nwidth = 0\n"},
		{"negative blur", "[glow]\nblur_passes = -1\n"},
		{"unknown key", "[glow]\nintensity = 2\n"},
		{"log level", "[log]\nlevel = \"loud\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrInvalidParameter), "%v", err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestValidateClampsDownscale(t *testing.T) {
	assert := assert.New(t)

	cfg := Default()
	cfg.Glow.Downscale = 0.25
	assert.NoError(cfg.Validate())
	assert.Equal(float32(1), cfg.Glow.Downscale)
}

func TestSaveLoad(t *testing.T) {
	assert := assert.New(t)

	cfg := Default()
	cfg.Renderer.Backend = BackendVulkan
	cfg.Glow.NoBlending = true
	cfg.Shaders.OverrideDir = "shaders"
	cfg.Shaders.Watch = true

	path := filepath.Join(t.TempDir(), "lumen.toml")
	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(cfg, loaded)
}

func TestGlowApply(t *testing.T) {
	assert := assert.New(t)

	var glow compositing.Glow
	GlowConfig{Factor: 2, BlurPasses: 1, Downscale: 8, NoDiscard: true}.Apply(&glow)
	assert.Equal(float32(2), glow.GlowFactor)
	assert.Equal(1, glow.GlowBlurPasses)
	assert.Equal(float32(8), glow.GlowDownscale)
	assert.True(glow.Flags.Has(compositing.GlowNoDiscard))
	assert.False(glow.Flags.Has(compositing.GlowNoBlending))
}
