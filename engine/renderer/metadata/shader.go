package metadata

/**
 * @brief Pipeline stages a shader can be attached to.
 */
type ShaderStage int

const (
	ShaderStageVertex ShaderStage = iota
	ShaderStageTessellationControl
	ShaderStageTessellationEvaluation
	ShaderStageGeometry
	ShaderStageFragment
)

func (s ShaderStage) String() string {
	switch s {
	case ShaderStageVertex:
		return "vertex"
	case ShaderStageTessellationControl:
		return "tessellation control"
	case ShaderStageTessellationEvaluation:
		return "tessellation evaluation"
	case ShaderStageGeometry:
		return "geometry"
	case ShaderStageFragment:
		return "fragment"
	}
	return "unknown"
}

/**
 * @brief The type of a program uniform as reported by linking.
 */
type UniformType int

const (
	UniformTypeFloat1 UniformType = iota
	UniformTypeFloat2
	UniformTypeFloat3
	UniformTypeFloat4
	UniformTypeInt1
	UniformTypeInt2
	UniformTypeMat3
	UniformTypeMat4
	UniformTypeSampler2D
	UniformTypeSamplerRect
	UniformTypeSamplerCube
)

/** @brief Number of float components a value of this type holds, 0 for samplers. */
func (t UniformType) Components() int {
	switch t {
	case UniformTypeFloat1, UniformTypeInt1:
		return 1
	case UniformTypeFloat2, UniformTypeInt2:
		return 2
	case UniformTypeFloat3:
		return 3
	case UniformTypeFloat4:
		return 4
	case UniformTypeMat3:
		return 9
	case UniformTypeMat4:
		return 16
	}
	return 0
}

func (t UniformType) IsSampler() bool {
	return t == UniformTypeSampler2D || t == UniformTypeSamplerRect || t == UniformTypeSamplerCube
}

/**
 * @brief A vertex input of a linked program.
 */
type ProgramAttributeInfo struct {
	Name     string
	Location int
	/** @brief Number of float components the program reads. */
	Components uint32
}

/**
 * @brief A uniform of a linked program.
 */
type ProgramUniformInfo struct {
	Name     string
	Location int
	Type     UniformType
	/** @brief Texture unit for samplers, assigned in declaration order. -1 otherwise. */
	Unit int
}

/**
 * @brief Reflection data returned by a backend when a program links.
 */
type ProgramLayout struct {
	Attributes []ProgramAttributeInfo
	Uniforms   []ProgramUniformInfo
}

func (l *ProgramLayout) Attribute(name string) (ProgramAttributeInfo, bool) {
	for _, a := range l.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return ProgramAttributeInfo{}, false
}

func (l *ProgramLayout) Uniform(name string) (ProgramUniformInfo, bool) {
	for _, u := range l.Uniforms {
		if u.Name == name {
			return u, true
		}
	}
	return ProgramUniformInfo{}, false
}
