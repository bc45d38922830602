package vulkan

import (
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// WGSL declarations the backend understands. Comments are stripped first.
var (
	lineComment  = regexp.MustCompile(`//[^\n]*`)
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	structDecl   = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)
	structField  = regexp.MustCompile(`((?:@\w+\([^)]*\)\s*)*)(\w+)\s*:\s*(\w+(?:<[^>]*>)?)`)
	locationAttr = regexp.MustCompile(`@location\((\d+)\)`)
	globalDecl   = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<(\w+)>)?\s+(\w+)\s*:\s*(\w+(?:<[^>]*>)?)`)
	entryDecl    = regexp.MustCompile(`(?s)@(vertex|fragment)\s+fn\s+(\w+)\s*\((.*?)\)\s*(?:->|\{)`)
)

// uniformField is one member of a uniform block.
type uniformField struct {
	Name   string
	Type   metadata.UniformType
	Offset uint32
}

// uniformBlock is a var<uniform> struct bound at Binding.
type uniformBlock struct {
	Binding uint32
	Fields  []uniformField
	Size    uint32
}

// textureSlot is a texture bound at Binding with its sampler at Binding+1.
type textureSlot struct {
	Name    string
	Type    metadata.UniformType
	Binding uint32
}

type shaderReflection struct {
	Stage      metadata.ShaderStage
	Entry      string
	Attributes []metadata.ProgramAttributeInfo
	Blocks     []uniformBlock
	Textures   []textureSlot
}

func stripComments(source string) string {
	return lineComment.ReplaceAllString(blockComment.ReplaceAllString(source, ""), "")
}

// parseUniformType maps a WGSL type to the uniform type it is exposed as.
func parseUniformType(wgsl string) (metadata.UniformType, bool) {
	switch strings.ReplaceAll(wgsl, " ", "") {
	case "f32":
		return metadata.UniformTypeFloat1, true
	case "vec2<f32>", "vec2f":
		return metadata.UniformTypeFloat2, true
	case "vec3<f32>", "vec3f":
		return metadata.UniformTypeFloat3, true
	case "vec4<f32>", "vec4f":
		return metadata.UniformTypeFloat4, true
	case "i32":
		return metadata.UniformTypeInt1, true
	case "vec2<i32>", "vec2i":
		return metadata.UniformTypeInt2, true
	case "mat3x3<f32>", "mat3x3f":
		return metadata.UniformTypeMat3, true
	case "mat4x4<f32>", "mat4x4f":
		return metadata.UniformTypeMat4, true
	case "texture_2d<f32>":
		return metadata.UniformTypeSampler2D, true
	case "texture_cube<f32>":
		return metadata.UniformTypeSamplerCube, true
	}
	return 0, false
}

// uniformLayout returns the alignment and size of t in a uniform buffer.
func uniformLayout(t metadata.UniformType) (align, size uint32) {
	switch t {
	case metadata.UniformTypeFloat1, metadata.UniformTypeInt1:
		return 4, 4
	case metadata.UniformTypeFloat2, metadata.UniformTypeInt2:
		return 8, 8
	case metadata.UniformTypeFloat3:
		return 16, 12
	case metadata.UniformTypeFloat4:
		return 16, 16
	case metadata.UniformTypeMat3:
		return 16, 48
	case metadata.UniformTypeMat4:
		return 16, 64
	}
	return 0, 0
}

func roundUp(v, align uint32) uint32 {
	return (v + align - 1) / align * align
}

// attributeComponents returns the float count of a vertex input type.
func attributeComponents(wgsl string) (uint32, bool) {
	switch strings.ReplaceAll(wgsl, " ", "") {
	case "f32":
		return 1, true
	case "vec2<f32>", "vec2f":
		return 2, true
	case "vec3<f32>", "vec3f":
		return 3, true
	case "vec4<f32>", "vec4f":
		return 4, true
	}
	return 0, false
}

type wgslField struct {
	attrs string
	name  string
	typ   string
}

func parseStructs(source string) map[string][]wgslField {
	structs := map[string][]wgslField{}
	for _, m := range structDecl.FindAllStringSubmatch(source, -1) {
		var fields []wgslField
		for _, f := range structField.FindAllStringSubmatch(m[2], -1) {
			fields = append(fields, wgslField{attrs: f[1], name: f[2], typ: f[3]})
		}
		structs[m[1]] = fields
	}
	return structs
}

func blockFromStruct(binding uint32, fields []wgslField) (uniformBlock, error) {
	block := uniformBlock{Binding: binding}
	var offset uint32
	for _, f := range fields {
		t, ok := parseUniformType(f.typ)
		align, size := uniformLayout(t)
		if !ok || size == 0 {
			return uniformBlock{}, fmt.Errorf("uniform %q of type %s: %w", f.name, f.typ, core.ErrShaderCompile)
		}
		offset = roundUp(offset, align)
		block.Fields = append(block.Fields, uniformField{Name: f.name, Type: t, Offset: offset})
		offset += size
	}
	block.Size = roundUp(max(offset, 16), 16)
	return block, nil
}

func locationOf(attrs string) (int, bool) {
	m := locationAttr.FindStringSubmatch(attrs)
	if m == nil {
		return 0, false
	}
	l, err := strconv.Atoi(m[1])
	return l, err == nil
}

func vertexInputs(params string, structs map[string][]wgslField) ([]metadata.ProgramAttributeInfo, error) {
	var inputs []metadata.ProgramAttributeInfo
	add := func(f wgslField) error {
		location, ok := locationOf(f.attrs)
		if !ok {
			// builtins such as the vertex index
			return nil
		}
		components, ok := attributeComponents(f.typ)
		if !ok {
			return fmt.Errorf("vertex input %q of type %s: %w", f.name, f.typ, core.ErrShaderCompile)
		}
		inputs = append(inputs, metadata.ProgramAttributeInfo{Name: f.name, Location: location, Components: components})
		return nil
	}
	for _, p := range structField.FindAllStringSubmatch(params, -1) {
		param := wgslField{attrs: p[1], name: p[2], typ: p[3]}
		if fields, ok := structs[param.typ]; ok {
			for _, f := range fields {
				if err := add(f); err != nil {
					return nil, err
				}
			}
			continue
		}
		if err := add(param); err != nil {
			return nil, err
		}
	}
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Location < inputs[j].Location })
	return inputs, nil
}

/**
 * @brief Reads the interface of a WGSL shader: the entry point, vertex inputs,
 * uniform blocks and textures of group 0. A texture's sampler must follow it at
 * the next binding.
 */
func reflectWGSL(stage metadata.ShaderStage, source string) (*shaderReflection, error) {
	source = stripComments(source)
	structs := parseStructs(source)
	r := &shaderReflection{Stage: stage}

	want := "vertex"
	if stage == metadata.ShaderStageFragment {
		want = "fragment"
	} else if stage != metadata.ShaderStageVertex {
		return nil, fmt.Errorf("%s shaders: %w", stage, core.ErrUnsupportedLanguage)
	}
	for _, m := range entryDecl.FindAllStringSubmatch(source, -1) {
		if m[1] != want {
			continue
		}
		r.Entry = m[2]
		if stage == metadata.ShaderStageVertex {
			inputs, err := vertexInputs(m[3], structs)
			if err != nil {
				return nil, err
			}
			r.Attributes = inputs
		}
		break
	}
	if r.Entry == "" {
		return nil, fmt.Errorf("no @%s entry point: %w", want, core.ErrShaderCompile)
	}

	samplers := map[uint32]string{}
	for _, m := range globalDecl.FindAllStringSubmatch(source, -1) {
		group, _ := strconv.Atoi(m[1])
		binding64, _ := strconv.ParseUint(m[2], 10, 32)
		binding := uint32(binding64)
		space, name, typ := m[3], m[4], m[5]
		if group != 0 {
			return nil, fmt.Errorf("%q in group %d: %w", name, group, core.ErrShaderCompile)
		}
		switch {
		case space == "uniform":
			fields, ok := structs[typ]
			if !ok {
				return nil, fmt.Errorf("uniform %q is not a struct: %w", name, core.ErrShaderCompile)
			}
			block, err := blockFromStruct(binding, fields)
			if err != nil {
				return nil, err
			}
			r.Blocks = append(r.Blocks, block)
		case typ == "sampler":
			samplers[binding] = name
		default:
			t, ok := parseUniformType(typ)
			if !ok || !t.IsSampler() {
				return nil, fmt.Errorf("binding %q of type %s: %w", name, typ, core.ErrShaderCompile)
			}
			r.Textures = append(r.Textures, textureSlot{Name: name, Type: t, Binding: binding})
		}
	}
	for _, t := range r.Textures {
		if _, ok := samplers[t.Binding+1]; !ok {
			return nil, fmt.Errorf("texture %q has no sampler at binding %d: %w", t.Name, t.Binding+1, core.ErrShaderCompile)
		}
	}
	sort.Slice(r.Textures, func(i, j int) bool { return r.Textures[i].Binding < r.Textures[j].Binding })
	return r, nil
}

// uniformSlot is where a uniform's value lives inside the program's blocks.
type uniformSlot struct {
	Binding uint32
	Offset  uint32
}

/**
 * @brief The merged interface of a linked program. Uniform locations index
 * Layout.Uniforms, a uniform declared by both stages gets one location and
 * two slots.
 */
type programReflection struct {
	Layout   *metadata.ProgramLayout
	Blocks   []uniformBlock
	Slots    map[int][]uniformSlot
	Textures []textureSlot
	// Units maps a texture unit to the binding of its texture.
	Units   []uint32
	Entries map[metadata.ShaderStage]string
}

func linkReflections(shaders []*shaderReflection) (*programReflection, error) {
	p := &programReflection{
		Layout:  &metadata.ProgramLayout{},
		Slots:   map[int][]uniformSlot{},
		Entries: map[metadata.ShaderStage]string{},
	}
	byName := map[string]int{}
	bindings := map[uint32]string{}
	claim := func(binding uint32, owner string) error {
		if prev, ok := bindings[binding]; ok && prev != owner {
			return fmt.Errorf("binding %d used by %q and %q: %w", binding, prev, owner, core.ErrProgramLink)
		}
		bindings[binding] = owner
		return nil
	}

	// vertex stage first so its textures get the lower units
	ordered := append([]*shaderReflection(nil), shaders...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Stage < ordered[j].Stage })
	for _, s := range ordered {
		if _, dup := p.Entries[s.Stage]; dup {
			return nil, fmt.Errorf("two %s shaders: %w", s.Stage, core.ErrProgramLink)
		}
		p.Entries[s.Stage] = s.Entry
		if s.Stage == metadata.ShaderStageVertex {
			p.Layout.Attributes = s.Attributes
		}
		for _, b := range s.Blocks {
			if err := claim(b.Binding, fmt.Sprintf("%s uniforms", s.Stage)); err != nil {
				return nil, err
			}
			p.Blocks = append(p.Blocks, b)
			for _, f := range b.Fields {
				slot := uniformSlot{Binding: b.Binding, Offset: f.Offset}
				if loc, ok := byName[f.Name]; ok {
					if prev := p.Layout.Uniforms[loc]; prev.Type != f.Type {
						return nil, fmt.Errorf("uniform %q declared as two types: %w", f.Name, core.ErrProgramLink)
					}
					p.Slots[loc] = append(p.Slots[loc], slot)
					continue
				}
				loc := len(p.Layout.Uniforms)
				byName[f.Name] = loc
				p.Layout.Uniforms = append(p.Layout.Uniforms, metadata.ProgramUniformInfo{Name: f.Name, Location: loc, Type: f.Type, Unit: -1})
				p.Slots[loc] = []uniformSlot{slot}
			}
		}
		for _, t := range s.Textures {
			if err := claim(t.Binding, t.Name); err != nil {
				return nil, err
			}
			if err := claim(t.Binding+1, t.Name+" sampler"); err != nil {
				return nil, err
			}
			if loc, ok := byName[t.Name]; ok {
				if p.Layout.Uniforms[loc].Type != t.Type {
					return nil, fmt.Errorf("texture %q declared as two types: %w", t.Name, core.ErrProgramLink)
				}
				continue
			}
			loc := len(p.Layout.Uniforms)
			byName[t.Name] = loc
			unit := len(p.Units)
			p.Layout.Uniforms = append(p.Layout.Uniforms, metadata.ProgramUniformInfo{Name: t.Name, Location: loc, Type: t.Type, Unit: unit})
			p.Units = append(p.Units, t.Binding)
			p.Textures = append(p.Textures, t)
		}
	}
	if _, ok := p.Entries[metadata.ShaderStageVertex]; !ok {
		return nil, fmt.Errorf("no vertex shader: %w", core.ErrProgramLink)
	}
	if _, ok := p.Entries[metadata.ShaderStageFragment]; !ok {
		return nil, fmt.Errorf("no fragment shader: %w", core.ErrProgramLink)
	}
	return p, nil
}

func putFloat(dst []byte, offset uint32, v float32) {
	binary.LittleEndian.PutUint32(dst[offset:], math.Float32bits(v))
}

/**
 * @brief Writes values of type t at offset in dst using the uniform buffer
 * layout. Matrices are stored row by row, which WGSL reads as the transpose,
 * so M * v in a shader equals v * M here.
 */
func packUniform(dst []byte, offset uint32, t metadata.UniformType, values []float32) {
	switch t {
	case metadata.UniformTypeInt1, metadata.UniformTypeInt2:
		for i, v := range values {
			binary.LittleEndian.PutUint32(dst[offset+uint32(i)*4:], uint32(int32(v)))
		}
	case metadata.UniformTypeMat3:
		for c := uint32(0); c < 3 && int(c*3+2) < len(values); c++ {
			for r := uint32(0); r < 3; r++ {
				putFloat(dst, offset+c*16+r*4, values[c*3+r])
			}
		}
	default:
		for i, v := range values {
			putFloat(dst, offset+uint32(i)*4, v)
		}
	}
}
