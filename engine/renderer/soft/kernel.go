package soft

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// MaxVaryings is the number of vec4 values passed from a vertex to a
// fragment kernel.
const MaxVaryings = 8

// Attribute declares a vertex kernel input.
type Attribute struct {
	Name       string
	Components uint32
}

// Uniform declares a kernel uniform. Samplers get texture units in
// declaration order across the vertex and the fragment kernel.
type Uniform struct {
	Name string
	Type metadata.UniformType
}

// Defines is the set of symbols defined after preprocessing.
type Defines map[string]bool

func (d Defines) Has(name string) bool {
	return d[name]
}

// Vertex is the output of a vertex kernel. Position is in clip space.
type Vertex struct {
	Position math.Vec4
	Varyings [MaxVaryings]math.Vec4
}

// Fragment is the input and output of a fragment kernel. Coord holds the
// window position, the depth in [0,1] and 1/w.
type Fragment struct {
	Coord    math.Vec4
	Varyings [MaxVaryings]math.Vec4
	Color    math.Vec4
}

type VertexFunc func(c *Context, out *Vertex)

// FragmentFunc returns false to discard the fragment.
type FragmentFunc func(c *Context, f *Fragment) bool

type VertexKernel struct {
	Name       string
	Attributes []Attribute
	Uniforms   []Uniform
	Build      func(defines Defines) VertexFunc
}

type FragmentKernel struct {
	Name     string
	Uniforms []Uniform
	Build    func(defines Defines) FragmentFunc
}

var (
	kernelsMu       sync.RWMutex
	vertexKernels   = map[string]*VertexKernel{}
	fragmentKernels = map[string]*FragmentKernel{}
)

/**
 * @brief Makes a vertex kernel available to "#kernel <name>" sources.
 * Registering a name twice replaces the kernel.
 */
func RegisterVertexKernel(k VertexKernel) {
	kernelsMu.Lock()
	defer kernelsMu.Unlock()
	vertexKernels[k.Name] = &k
}

func RegisterFragmentKernel(k FragmentKernel) {
	kernelsMu.Lock()
	defer kernelsMu.Unlock()
	fragmentKernels[k.Name] = &k
}

// VertexKernels lists the registered vertex kernel names.
func VertexKernels() []string {
	kernelsMu.RLock()
	defer kernelsMu.RUnlock()
	names := make([]string, 0, len(vertexKernels))
	for name := range vertexKernels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// kernelName returns the argument of the single "#kernel" line in code.
func kernelName(code string) (string, error) {
	name := ""
	for _, line := range strings.Split(code, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 || fields[0] != "#kernel" {
			continue
		}
		if len(fields) != 2 {
			return "", fmt.Errorf("malformed kernel directive %q", strings.TrimSpace(line))
		}
		if name != "" {
			return "", fmt.Errorf("more than one kernel directive")
		}
		name = fields[1]
	}
	if name == "" {
		return "", fmt.Errorf("no kernel directive")
	}
	return name, nil
}

type shader struct {
	stage    metadata.ShaderStage
	name     string
	vertex   *VertexKernel
	fragment *FragmentKernel
	vfn      VertexFunc
	ffn      FragmentFunc
}

func compileKernel(stage metadata.ShaderStage, code string, defines []string) (*shader, error) {
	name, err := kernelName(code)
	if err != nil {
		return nil, err
	}
	d := make(Defines, len(defines))
	for _, def := range defines {
		d[def] = true
	}

	kernelsMu.RLock()
	defer kernelsMu.RUnlock()
	s := &shader{stage: stage, name: name}
	switch stage {
	case metadata.ShaderStageVertex:
		k, ok := vertexKernels[name]
		if !ok {
			return nil, fmt.Errorf("unknown vertex kernel %q", name)
		}
		s.vertex, s.vfn = k, k.Build(d)
	case metadata.ShaderStageFragment:
		k, ok := fragmentKernels[name]
		if !ok {
			return nil, fmt.Errorf("unknown fragment kernel %q", name)
		}
		s.fragment, s.ffn = k, k.Build(d)
	default:
		return nil, fmt.Errorf("%s kernels: %w", stage, core.ErrUnsupportedLanguage)
	}
	return s, nil
}

type program struct {
	vs, fs   *shader
	layout   *metadata.ProgramLayout
	uniforms map[int]metadata.ProgramUniformInfo
}

func linkKernels(shaders []*shader) (*program, error) {
	p := &program{uniforms: make(map[int]metadata.ProgramUniformInfo)}
	for _, s := range shaders {
		switch s.stage {
		case metadata.ShaderStageVertex:
			p.vs = s
		case metadata.ShaderStageFragment:
			p.fs = s
		}
	}
	if p.vs == nil || p.fs == nil {
		return nil, fmt.Errorf("vertex and fragment kernel required")
	}

	layout := &metadata.ProgramLayout{}
	for i, a := range p.vs.vertex.Attributes {
		layout.Attributes = append(layout.Attributes, metadata.ProgramAttributeInfo{
			Name:       a.Name,
			Location:   i,
			Components: a.Components,
		})
	}
	seen := map[string]metadata.UniformType{}
	unit := 0
	for _, decls := range [][]Uniform{p.vs.vertex.Uniforms, p.fs.fragment.Uniforms} {
		for _, u := range decls {
			if t, ok := seen[u.Name]; ok {
				if t != u.Type {
					return nil, fmt.Errorf("uniform %q declared with different types", u.Name)
				}
				continue
			}
			seen[u.Name] = u.Type
			info := metadata.ProgramUniformInfo{Name: u.Name, Location: len(layout.Uniforms), Type: u.Type, Unit: -1}
			if u.Type.IsSampler() {
				info.Unit = unit
				unit++
			}
			layout.Uniforms = append(layout.Uniforms, info)
			p.uniforms[info.Location] = info
		}
	}
	p.layout = layout
	return p, nil
}
