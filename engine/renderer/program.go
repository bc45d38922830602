package renderer

import (
	"fmt"
	"sort"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

const numShaderStages = int(metadata.ShaderStageFragment) + 1

type attributeBinding struct {
	vb       *VertexBuffer
	semantic metadata.VertexSemantic
	channel  uint32
}

type conventionalAttribute struct {
	semantic metadata.VertexSemantic
	channel  uint32
}

// Attributes with these names read from the renderer's current vertex
// buffer unless bound explicitly.
var conventionalAttributes = map[string]conventionalAttribute{
	"VertexPosition":  {metadata.VertexSemanticPosition, 0},
	"VertexTexCoord":  {metadata.VertexSemanticTexCoord, 0},
	"VertexTexCoord0": {metadata.VertexSemanticTexCoord, 0},
	"VertexTexCoord1": {metadata.VertexSemanticTexCoord, 1},
	"VertexColor":     {metadata.VertexSemanticColor, 0},
	"VertexNormal":    {metadata.VertexSemanticNormal, 0},
	"VertexTangent":   {metadata.VertexSemanticTangent, 0},
	"VertexBinormal":  {metadata.VertexSemanticBinormal, 0},
}

/**
 * @brief A set of shaders linked into one pipeline program.
 *
 * Attaching a shader, or a source change of an attached shader, makes the
 * program dirty: the Dirty notifier fires synchronously and every attribute
 * and uniform handle obtained before becomes stale. Linking happens lazily
 * on the next lookup or bind.
 */
type Program struct {
	resourceBase
	language   *ShaderLanguage
	shaders    [numShaderStages]*Shader
	subs       [numShaderStages]core.Subscription
	dirty      core.Notifier[*Program]
	generation uint64
	linked     bool
	linkErr    error
	layout     *metadata.ProgramLayout

	attributes    map[string]*ProgramAttribute
	uniforms      map[string]*ProgramUniform
	uniformValues map[int]metadata.UniformValue
	streams       map[int]attributeBinding
}

func newProgram(l *ShaderLanguage) *Program {
	p := &Program{
		resourceBase: newResourceBase(l.renderer, metadata.ResourceTypeProgram),
		language:     l,
	}
	l.renderer.register(p)
	return p
}

func (p *Program) GetShaderLanguage() string {
	return p.language.name
}

// Dirty fires whenever cached attribute and uniform handles must be fetched again.
func (p *Program) Dirty() *core.Notifier[*Program] {
	return &p.dirty
}

// Generation increments on every dirty event.
func (p *Program) Generation() uint64 {
	return p.generation
}

func (p *Program) GetVertexShader() *Shader {
	return p.shaders[metadata.ShaderStageVertex]
}

func (p *Program) GetFragmentShader() *Shader {
	return p.shaders[metadata.ShaderStageFragment]
}

func (p *Program) GetTessellationControlShader() *Shader {
	return p.shaders[metadata.ShaderStageTessellationControl]
}

func (p *Program) GetTessellationEvaluationShader() *Shader {
	return p.shaders[metadata.ShaderStageTessellationEvaluation]
}

func (p *Program) GetGeometryShader() *Shader {
	return p.shaders[metadata.ShaderStageGeometry]
}

func (p *Program) SetVertexShader(s *Shader) bool {
	return p.setShader(metadata.ShaderStageVertex, s)
}

func (p *Program) SetTessellationControlShader(s *Shader) bool {
	return p.setShader(metadata.ShaderStageTessellationControl, s)
}

func (p *Program) SetTessellationEvaluationShader(s *Shader) bool {
	return p.setShader(metadata.ShaderStageTessellationEvaluation, s)
}

func (p *Program) SetGeometryShader(s *Shader) bool {
	return p.setShader(metadata.ShaderStageGeometry, s)
}

func (p *Program) SetFragmentShader(s *Shader) bool {
	return p.setShader(metadata.ShaderStageFragment, s)
}

func (p *Program) setShader(stage metadata.ShaderStage, s *Shader) bool {
	if p.State() == metadata.ResourceStateDestroyed {
		return false
	}
	if s != nil && (s.language != p.language || s.stage != stage) {
		core.LogError("Program: cannot attach %s %s shader as %s shader of a %s program", s.language.name, s.stage, stage, p.language.name)
		return false
	}
	if p.shaders[stage] == s {
		return true
	}
	p.subs[stage].Cancel()
	p.subs[stage] = core.Subscription{}
	p.shaders[stage] = s
	if s != nil {
		p.subs[stage] = core.Subscribe(&s.changed, p, func(p *Program, _ *Shader) {
			p.invalidate()
		})
	}
	p.invalidate()
	return true
}

// release drops the device program but keeps the resource live.
func (p *Program) release() {
	if d, ok := p.data.(liveData); ok && d.handle.IsValid() {
		p.renderer.backend.ProgramDestroy(d.handle)
		p.data = liveData{}
	}
	p.linked = false
}

func (p *Program) invalidate() {
	p.release()
	p.generation++
	p.linkErr = nil
	p.layout = nil
	p.attributes = nil
	p.uniforms = nil
	p.uniformValues = nil
	p.streams = nil
	p.dirty.Emit(p)
}

// ensureLinked links on first use after a dirty event. A failed link is not
// retried until the program changes again.
func (p *Program) ensureLinked() error {
	switch d := p.data.(type) {
	case liveData:
		if p.linked {
			return nil
		}
	case lostData:
		return d.err
	default:
		_, err := p.deviceHandle()
		return err
	}
	if p.linkErr != nil {
		return p.linkErr
	}

	if p.shaders[metadata.ShaderStageVertex] == nil || p.shaders[metadata.ShaderStageFragment] == nil {
		p.linkErr = fmt.Errorf("Program %s: vertex and fragment shader required: %w", p.id, core.ErrProgramLink)
		core.LogError("%s", p.linkErr.Error())
		return p.linkErr
	}
	handles := make([]metadata.Handle, 0, numShaderStages)
	for _, s := range p.shaders {
		if s == nil {
			continue
		}
		h, err := s.deviceHandle()
		if err != nil {
			p.linkErr = fmt.Errorf("Program %s: %s shader not compiled: %w: %v", p.id, s.stage, core.ErrProgramLink, err)
			core.LogError("%s", p.linkErr.Error())
			return p.linkErr
		}
		handles = append(handles, h)
	}

	h, layout, err := p.renderer.backend.ProgramLink(handles)
	if err != nil {
		p.linkErr = fmt.Errorf("Program %s: %w: %v", p.id, core.ErrProgramLink, err)
		core.LogError("%s", p.linkErr.Error())
		return p.linkErr
	}
	p.data = liveData{handle: h}
	p.layout = layout
	p.linked = true
	p.attributes = make(map[string]*ProgramAttribute)
	p.uniforms = make(map[string]*ProgramUniform)
	p.uniformValues = make(map[int]metadata.UniformValue)
	p.streams = make(map[int]attributeBinding)
	return nil
}

// IsLinked links if needed and reports success.
func (p *Program) IsLinked() bool {
	return p.ensureLinked() == nil
}

/**
 * @brief Returns the names of all vertex inputs, nil if linking fails.
 */
func (p *Program) GetAttributeNames() []string {
	if p.ensureLinked() != nil {
		return nil
	}
	names := make([]string, 0, len(p.layout.Attributes))
	for _, a := range p.layout.Attributes {
		names = append(names, a.Name)
	}
	sort.Strings(names)
	return names
}

/**
 * @brief Returns the names of all uniforms, nil if linking fails.
 */
func (p *Program) GetUniformNames() []string {
	if p.ensureLinked() != nil {
		return nil
	}
	names := make([]string, 0, len(p.layout.Uniforms))
	for _, u := range p.layout.Uniforms {
		names = append(names, u.Name)
	}
	sort.Strings(names)
	return names
}

/**
 * @brief Returns the vertex input with the given name. Nil if the program has
 * no such attribute or fails to link. Valid until the next dirty event.
 */
func (p *Program) GetAttribute(name string) *ProgramAttribute {
	if p.ensureLinked() != nil {
		return nil
	}
	if a, ok := p.attributes[name]; ok {
		return a
	}
	info, ok := p.layout.Attribute(name)
	if !ok {
		return nil
	}
	a := &ProgramAttribute{program: p, generation: p.generation, info: info}
	p.attributes[name] = a
	return a
}

/**
 * @brief Returns the uniform with the given name. Nil if the program has no
 * such uniform or fails to link. Valid until the next dirty event.
 */
func (p *Program) GetUniform(name string) *ProgramUniform {
	if p.ensureLinked() != nil {
		return nil
	}
	if u, ok := p.uniforms[name]; ok {
		return u
	}
	info, ok := p.layout.Uniform(name)
	if !ok {
		return nil
	}
	u := &ProgramUniform{program: p, generation: p.generation, info: info}
	p.uniforms[name] = u
	return u
}

// fillDrawCall adds the program's uniforms, textures and vertex streams.
func (p *Program) fillDrawCall(call *metadata.DrawCall, lastVertex uint32) error {
	call.Program, _ = p.deviceHandle()

	call.Uniforms = make([]metadata.UniformValue, 0, len(p.uniformValues))
	for _, v := range p.uniformValues {
		call.Uniforms = append(call.Uniforms, v)
	}
	sort.Slice(call.Uniforms, func(i, j int) bool { return call.Uniforms[i].Location < call.Uniforms[j].Location })

	r := p.renderer
	for _, u := range p.layout.Uniforms {
		if !u.Type.IsSampler() || u.Unit < 0 || u.Unit >= len(r.textures) {
			continue
		}
		tb := r.textures[u.Unit]
		if tb == nil {
			continue
		}
		h, err := tb.deviceHandle()
		if err != nil {
			continue
		}
		call.Textures = append(call.Textures, metadata.TextureBinding{
			Unit:    u.Unit,
			Texture: h,
			Sampler: r.samplerStates[u.Unit],
		})
	}

	for _, a := range p.layout.Attributes {
		binding, ok := p.streams[a.Location]
		if !ok {
			conv, known := conventionalAttributes[a.Name]
			if !known {
				continue
			}
			if r.vertexBuffer == nil {
				return fmt.Errorf("attribute %q: %w", a.Name, core.ErrNoVertexBuffer)
			}
			binding = attributeBinding{vb: r.vertexBuffer, semantic: conv.semantic, channel: conv.channel}
		}
		attr, found := binding.vb.layout.Find(binding.semantic, binding.channel)
		if !found {
			continue
		}
		h, err := binding.vb.deviceHandle()
		if err != nil {
			return fmt.Errorf("attribute %q: %w", a.Name, err)
		}
		if lastVertex > binding.vb.numVertices {
			return fmt.Errorf("attribute %q reads vertex %d of %d: %w", a.Name, lastVertex, binding.vb.numVertices, core.ErrInvalidParameter)
		}
		call.Streams = append(call.Streams, metadata.VertexStream{
			Location:  a.Location,
			Buffer:    h,
			Attribute: attr,
			Stride:    binding.vb.layout.Stride,
		})
	}
	return nil
}

func (p *Program) BackupDeviceData() error {
	if _, ok := p.beginBackup(); !ok {
		return nil
	}
	p.release()
	// relinked from the attached shaders on restore
	p.data = backedData{}
	return nil
}

func (p *Program) RestoreDeviceData() error {
	if _, ok := p.beginRestore(); !ok {
		return nil
	}
	p.data = liveData{}
	p.invalidate()
	return nil
}

func (p *Program) Destroy() {
	if p.State() == metadata.ResourceStateDestroyed {
		return
	}
	for i := range p.subs {
		p.subs[i].Cancel()
		p.subs[i] = core.Subscription{}
	}
	if p.renderer.program == p {
		p.renderer.SetProgram(nil)
	}
	p.release()
	p.markDestroyed()
}

/**
 * @brief A vertex input of a linked program.
 */
type ProgramAttribute struct {
	program    *Program
	generation uint64
	info       metadata.ProgramAttributeInfo
}

func (a *ProgramAttribute) GetName() string {
	return a.info.Name
}

func (a *ProgramAttribute) valid() bool {
	if a.program.linked && a.program.generation == a.generation {
		return true
	}
	core.LogWarn("ProgramAttribute %q: stale handle, fetch it again after the program changed", a.info.Name)
	return false
}

/**
 * @brief Feeds the attribute from the first channel of semantic in vb.
 */
func (a *ProgramAttribute) Set(vb *VertexBuffer, semantic metadata.VertexSemantic) bool {
	return a.SetChannel(vb, semantic, 0)
}

func (a *ProgramAttribute) SetChannel(vb *VertexBuffer, semantic metadata.VertexSemantic, channel uint32) bool {
	if !a.valid() || vb == nil {
		return false
	}
	if _, ok := vb.layout.Find(semantic, channel); !ok {
		core.LogWarn("ProgramAttribute %q: vertex buffer has no %s channel %d", a.info.Name, semantic, channel)
		return false
	}
	a.program.streams[a.info.Location] = attributeBinding{vb: vb, semantic: semantic, channel: channel}
	return true
}

/**
 * @brief A uniform of a linked program.
 */
type ProgramUniform struct {
	program    *Program
	generation uint64
	info       metadata.ProgramUniformInfo
}

func (u *ProgramUniform) GetName() string {
	return u.info.Name
}

func (u *ProgramUniform) GetType() metadata.UniformType {
	return u.info.Type
}

func (u *ProgramUniform) valid() bool {
	if u.program.linked && u.program.generation == u.generation {
		return true
	}
	core.LogWarn("ProgramUniform %q: stale handle, fetch it again after the program changed", u.info.Name)
	return false
}

func (u *ProgramUniform) set(values ...float32) bool {
	if !u.valid() {
		return false
	}
	if u.info.Type.IsSampler() || u.info.Type.Components() != len(values) {
		core.LogWarn("ProgramUniform %q: %d values do not fit type %d", u.info.Name, len(values), u.info.Type)
		return false
	}
	u.program.uniformValues[u.info.Location] = metadata.UniformValue{
		Location: u.info.Location,
		Type:     u.info.Type,
		Values:   append([]float32(nil), values...),
	}
	return true
}

func (u *ProgramUniform) Set1f(x float32) bool {
	return u.set(x)
}

func (u *ProgramUniform) Set2f(x, y float32) bool {
	return u.set(x, y)
}

func (u *ProgramUniform) Set3f(x, y, z float32) bool {
	return u.set(x, y, z)
}

func (u *ProgramUniform) Set4f(x, y, z, w float32) bool {
	return u.set(x, y, z, w)
}

func (u *ProgramUniform) Set1i(x int32) bool {
	return u.set(float32(x))
}

func (u *ProgramUniform) Set2i(x, y int32) bool {
	return u.set(float32(x), float32(y))
}

func (u *ProgramUniform) SetVec2(v math.Vec2) bool {
	return u.set(v.X, v.Y)
}

func (u *ProgramUniform) SetVec3(v math.Vec3) bool {
	return u.set(v.X, v.Y, v.Z)
}

func (u *ProgramUniform) SetVec4(v math.Vec4) bool {
	return u.set(v.X, v.Y, v.Z, v.W)
}

func (u *ProgramUniform) SetColor(c math.Color) bool {
	if u.info.Type == metadata.UniformTypeFloat3 {
		return u.set(c.R, c.G, c.B)
	}
	return u.set(c.R, c.G, c.B, c.A)
}

func (u *ProgramUniform) SetMatrix3(m math.Mat3) bool {
	return u.set(m.Data[:]...)
}

func (u *ProgramUniform) SetMatrix4(m math.Mat4) bool {
	return u.set(m.Data[:]...)
}

func (u *ProgramUniform) SetFloats(values []float32) bool {
	return u.set(values...)
}

/**
 * @brief Binds tb to the texture unit of this sampler uniform. The caller then
 * sets the sampler states of the returned unit.
 * @returns The texture unit, or -1 if the handle is stale, the uniform is not a
 * sampler, tb is not live or the unit is out of range.
 */
func (u *ProgramUniform) SetTexture(tb TextureBuffer) int {
	if !u.valid() || !u.info.Type.IsSampler() || tb == nil {
		return -1
	}
	if _, err := tb.deviceHandle(); err != nil {
		core.LogWarn("ProgramUniform %q: texture not usable: %s", u.info.Name, err)
		return -1
	}
	r := u.program.renderer
	if u.info.Unit < 0 || u.info.Unit >= len(r.textures) {
		core.LogWarn("ProgramUniform %q: texture unit %d out of range (max %d)", u.info.Name, u.info.Unit, len(r.textures))
		return -1
	}
	if !r.SetTextureBuffer(u.info.Unit, tb) {
		return -1
	}
	return u.info.Unit
}
