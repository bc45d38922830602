package renderer

import (
	"fmt"
	"strings"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

/**
 * @brief A single pipeline stage in one shader language.
 */
type Shader struct {
	resourceBase
	language  *ShaderLanguage
	stage     metadata.ShaderStage
	source    string
	profile   string
	arguments string
	entry     string
	changed   core.Notifier[*Shader]
}

func newShader(l *ShaderLanguage, stage metadata.ShaderStage) *Shader {
	s := &Shader{
		resourceBase: newResourceBase(l.renderer, metadata.ResourceTypeShader),
		language:     l,
		stage:        stage,
	}
	l.renderer.register(s)
	return s
}

func (s *Shader) GetShaderLanguage() string {
	return s.language.name
}

func (s *Shader) GetStage() metadata.ShaderStage {
	return s.stage
}

func (s *Shader) GetSourceCode() string {
	return s.source
}

func (s *Shader) GetProfile() string {
	return s.profile
}

func (s *Shader) GetArguments() string {
	return s.arguments
}

func (s *Shader) GetEntry() string {
	return s.entry
}

// Changed fires after a successful SetSourceCode.
func (s *Shader) Changed() *core.Notifier[*Shader] {
	return &s.changed
}

func (s *Shader) compileSource(source, profile, arguments, entry string) (metadata.Handle, error) {
	code, defines, err := Preprocess(source, strings.Fields(arguments))
	if err != nil {
		err = fmt.Errorf("%s shader (%s): %w", s.stage, s.language.name, err)
		core.LogError("%s", err.Error())
		return metadata.InvalidHandle, err
	}
	h, err := s.renderer.backend.ShaderCompile(&ShaderSource{
		Language: s.language.name,
		Stage:    s.stage,
		Code:     code,
		Profile:  profile,
		Entry:    entry,
		Defines:  defines,
	})
	if err != nil {
		err = fmt.Errorf("%s shader (%s): %w: %v", s.stage, s.language.name, core.ErrShaderCompile, err)
		core.LogError("%s", err.Error())
		return metadata.InvalidHandle, err
	}
	return h, nil
}

// compile replaces the device shader with one built from source. On failure
// the previous shader stays in place.
func (s *Shader) compile(source, profile, arguments, entry string) error {
	if s.State() == metadata.ResourceStateDestroyed {
		return fmt.Errorf("compile: %w", core.ErrResourceDestroyed)
	}
	h, err := s.compileSource(source, profile, arguments, entry)
	if err != nil {
		return err
	}
	if old, ok := s.data.(liveData); ok && old.handle.IsValid() {
		s.renderer.backend.ShaderDestroy(old.handle)
	}
	s.data = liveData{handle: h}
	s.source, s.profile, s.arguments, s.entry = source, profile, arguments, entry
	return nil
}

/**
 * @brief Sets and compiles the shader source. Programs using this shader become
 * dirty. On failure the previous source and device shader are kept.
 * @param source The source code, preprocessed before compilation.
 * @param profile Backend specific profile, may be empty.
 * @param arguments Whitespace separated symbols defined before preprocessing.
 * @param entry Entry point name, empty for the language default.
 * @returns True on success.
 */
func (s *Shader) SetSourceCode(source, profile, arguments, entry string) bool {
	if err := s.compile(source, profile, arguments, entry); err != nil {
		return false
	}
	s.changed.Emit(s)
	return true
}

func (s *Shader) BackupDeviceData() error {
	h, ok := s.beginBackup()
	if !ok {
		return nil
	}
	if h.IsValid() {
		s.renderer.backend.ShaderDestroy(h)
	}
	// the source string is the backup
	s.data = backedData{}
	return nil
}

func (s *Shader) RestoreDeviceData() error {
	if _, ok := s.beginRestore(); !ok {
		return nil
	}
	if s.source == "" {
		s.data = liveData{}
		return nil
	}
	h, err := s.compileSource(s.source, s.profile, s.arguments, s.entry)
	if err != nil {
		return s.lose(err)
	}
	s.data = liveData{handle: h}
	return nil
}

func (s *Shader) Destroy() {
	if d, ok := s.data.(liveData); ok && d.handle.IsValid() {
		s.renderer.backend.ShaderDestroy(d.handle)
	}
	s.markDestroyed()
}
