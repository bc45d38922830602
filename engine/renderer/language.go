package renderer

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// Shader languages known to the built-in backends. Backends may report
// further names through their capabilities.
const (
	ShaderLanguageSoft = "Soft"
	ShaderLanguageWGSL = "WGSL"
)

/**
 * @brief A shader language offered by the backend. Creates shaders and
 * programs in that language.
 */
type ShaderLanguage struct {
	name     string
	renderer *Renderer
}

func (l *ShaderLanguage) GetShaderLanguage() string {
	return l.name
}

func (l *ShaderLanguage) GetRenderer() *Renderer {
	return l.renderer
}

func (l *ShaderLanguage) createShader(stage metadata.ShaderStage, source, profile string) (*Shader, error) {
	s := newShader(l, stage)
	if source != "" {
		if err := s.compile(source, profile, "", ""); err != nil {
			s.Destroy()
			return nil, err
		}
	}
	return s, nil
}

/**
 * @brief Creates a vertex shader. An empty source creates an uncompiled shader.
 */
func (l *ShaderLanguage) CreateVertexShader(source, profile string) (*Shader, error) {
	return l.createShader(metadata.ShaderStageVertex, source, profile)
}

func (l *ShaderLanguage) CreateTessellationControlShader(source, profile string) (*Shader, error) {
	return l.createShader(metadata.ShaderStageTessellationControl, source, profile)
}

func (l *ShaderLanguage) CreateTessellationEvaluationShader(source, profile string) (*Shader, error) {
	return l.createShader(metadata.ShaderStageTessellationEvaluation, source, profile)
}

func (l *ShaderLanguage) CreateGeometryShader(source, profile string) (*Shader, error) {
	return l.createShader(metadata.ShaderStageGeometry, source, profile)
}

func (l *ShaderLanguage) CreateFragmentShader(source, profile string) (*Shader, error) {
	return l.createShader(metadata.ShaderStageFragment, source, profile)
}

/**
 * @brief Creates a program from a vertex and a fragment shader of this language.
 * Either may be nil and attached later.
 */
func (l *ShaderLanguage) CreateProgram(vertex, fragment *Shader) (*Program, error) {
	for _, s := range []*Shader{vertex, fragment} {
		if s != nil && s.language != l {
			err := fmt.Errorf("CreateProgram: shader language %q does not match %q: %w", s.language.name, l.name, core.ErrInvalidParameter)
			core.LogError("%s", err.Error())
			return nil, err
		}
	}
	p := newProgram(l)
	if vertex != nil {
		p.SetVertexShader(vertex)
	}
	if fragment != nil {
		p.SetFragmentShader(fragment)
	}
	return p, nil
}
