package compositing

import (
	"embed"
	"fmt"
	"strings"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

//go:embed shaders
var shaderFS embed.FS

// SeedShaders adds the built-in pass sources to lib without replacing
// sources already present, overrides included.
func SeedShaders(lib *renderer.ShaderLibrary) error {
	return lib.SeedFS(shaderFS, "shaders")
}

/**
 * @brief A vertex and fragment shader pair linked into a program, built
 * from shader library sources.
 *
 * Attribute and uniform handles are fetched again on every dirty event of
 * the program. When the library reports a new source for one of the two
 * shaders the shader is recompiled in place, which makes the program dirty.
 */
type passProgram struct {
	language   string
	vsName     string
	fsName     string
	arguments  string
	vertex     *renderer.Shader
	fragment   *renderer.Shader
	program    *renderer.Program
	attributes map[string]*renderer.ProgramAttribute
	uniforms   map[string]*renderer.ProgramUniform
	names      []string
	fetches    int
	dirtySub   core.Subscription
	sourceSub  core.Subscription
}

/**
 * @brief Builds a pass program.
 * @param names The attribute and uniform names the pass uses.
 * @param defines Symbols defined before preprocessing both shaders.
 */
func newPassProgram(r *renderer.Renderer, language, vsName, fsName string, names []string, defines ...string) (*passProgram, error) {
	l := r.GetShaderLanguage(language)
	if l == nil {
		return nil, core.LogErrorf("shader language %q: %w", language, core.ErrUnsupportedLanguage)
	}
	lib := r.GetShaderLibrary()
	if err := SeedShaders(lib); err != nil {
		return nil, core.LogErrorf("seeding shader sources: %w", err)
	}
	vsSource, ok := lib.Get(language, vsName)
	if !ok {
		return nil, core.LogErrorf("shader source %s/%s: %w", language, vsName, core.ErrInvalidParameter)
	}
	fsSource, ok := lib.Get(language, fsName)
	if !ok {
		return nil, core.LogErrorf("shader source %s/%s: %w", language, fsName, core.ErrInvalidParameter)
	}

	pp := &passProgram{
		language:  language,
		vsName:    vsName,
		fsName:    fsName,
		arguments: strings.Join(defines, " "),
		names:     names,
	}
	if pp.vertex, ok = pp.newShader(l.CreateVertexShader, vsSource); !ok {
		return nil, fmt.Errorf("%s/%s: %w", language, vsName, core.ErrShaderCompile)
	}
	if pp.fragment, ok = pp.newShader(l.CreateFragmentShader, fsSource); !ok {
		pp.vertex.Destroy()
		return nil, fmt.Errorf("%s/%s: %w", language, fsName, core.ErrShaderCompile)
	}
	program, err := l.CreateProgram(pp.vertex, pp.fragment)
	if err != nil {
		pp.vertex.Destroy()
		pp.fragment.Destroy()
		return nil, err
	}
	pp.program = program
	pp.dirtySub = core.Subscribe(program.Dirty(), pp, func(pp *passProgram, _ *renderer.Program) {
		pp.fetch()
	})
	pp.sourceSub = core.Subscribe(lib.Changed(), pp, func(pp *passProgram, key renderer.ShaderSourceKey) {
		pp.onSourceChanged(lib, key)
	})
	pp.fetch()
	return pp, nil
}

func (pp *passProgram) newShader(create func(source, profile string) (*renderer.Shader, error), source string) (*renderer.Shader, bool) {
	s, err := create("", "")
	if err != nil {
		return nil, false
	}
	if !s.SetSourceCode(source, "", pp.arguments, "") {
		s.Destroy()
		return nil, false
	}
	return s, true
}

// fetch drops every cached handle and resolves them again.
func (pp *passProgram) fetch() {
	pp.fetches++
	pp.attributes = make(map[string]*renderer.ProgramAttribute)
	pp.uniforms = make(map[string]*renderer.ProgramUniform)
	if pp.program == nil {
		return
	}
	for _, name := range pp.names {
		if a := pp.program.GetAttribute(name); a != nil {
			pp.attributes[name] = a
		}
		if u := pp.program.GetUniform(name); u != nil {
			pp.uniforms[name] = u
		}
	}
}

func (pp *passProgram) onSourceChanged(lib *renderer.ShaderLibrary, key renderer.ShaderSourceKey) {
	if key.Language != pp.language {
		return
	}
	var s *renderer.Shader
	switch key.Name {
	case pp.vsName:
		s = pp.vertex
	case pp.fsName:
		s = pp.fragment
	default:
		return
	}
	src, ok := lib.Get(key.Language, key.Name)
	if !ok {
		return
	}
	if !s.SetSourceCode(src, "", pp.arguments, "") {
		core.LogWarn("Keeping previous %s/%s after failed reload", key.Language, key.Name)
	}
}

func (pp *passProgram) attribute(name string) *renderer.ProgramAttribute {
	return pp.attributes[name]
}

// uniform returns nil for names the program does not use.
func (pp *passProgram) uniform(name string) *renderer.ProgramUniform {
	return pp.uniforms[name]
}

func (pp *passProgram) destroy() {
	pp.dirtySub.Cancel()
	pp.sourceSub.Cancel()
	if pp.program != nil {
		pp.program.Destroy()
	}
	if pp.fragment != nil {
		pp.fragment.Destroy()
	}
	if pp.vertex != nil {
		pp.vertex.Destroy()
	}
	pp.program, pp.vertex, pp.fragment = nil, nil, nil
	pp.attributes, pp.uniforms = nil, nil
}

/**
 * @brief Binds tb to the unit of sampler uniform u and configures the unit.
 * Mipmapping is always off for pass inputs.
 * @returns The texture unit, -1 if nothing was bound.
 */
func bindTexture(r *renderer.Renderer, u *renderer.ProgramUniform, tb renderer.TextureBuffer, address metadata.TextureAddressing, filter metadata.TextureFiltering) int {
	if u == nil || tb == nil {
		return -1
	}
	unit := u.SetTexture(tb)
	if unit < 0 {
		return -1
	}
	r.SetSamplerState(unit, metadata.SamplerStateAddressU, uint32(address))
	r.SetSamplerState(unit, metadata.SamplerStateAddressV, uint32(address))
	r.SetSamplerState(unit, metadata.SamplerStateMagFilter, uint32(filter))
	r.SetSamplerState(unit, metadata.SamplerStateMinFilter, uint32(filter))
	r.SetSamplerState(unit, metadata.SamplerStateMipFilter, uint32(metadata.FilterNone))
	return unit
}
