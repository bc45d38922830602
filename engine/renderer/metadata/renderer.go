package metadata

import (
	"math"

	lmath "github.com/spaghettifunk/lumen/engine/math"
)

type RendererBackendType int

const (
	RendererBackendTypeSoft RendererBackendType = iota
	RendererBackendTypeVulkan
)

type RendererBackendConfig struct {
	/** @brief The name of the application */
	ApplicationName string
	/** @brief Size of the default render target. */
	Width  uint32
	Height uint32
	/** @brief Enables backend validation where the backend has such a concept. */
	Validation bool
}

/**
 * @brief Render states. Values are uint32, float states store their bits.
 */
type RenderState int

const (
	/** @brief Fill, default FillSolid. */
	RenderStateFixedFillMode RenderState = iota
	/** @brief Cull, default CullCCW. */
	RenderStateCullMode
	/** @brief Bool, default true. */
	RenderStateZEnable
	/** @brief Bool, default true. */
	RenderStateZWriteEnable
	/** @brief Compare, default CompareLessEqual. */
	RenderStateZFunc
	/** @brief Bool, default false. */
	RenderStateBlendEnable
	/** @brief BlendFunc, default BlendSrcAlpha. */
	RenderStateSrcBlendFunc
	/** @brief BlendFunc, default BlendInvSrcAlpha. */
	RenderStateDstBlendFunc
	/** @brief Bool, default false. */
	RenderStateAlphaTestEnable
	/** @brief Compare, default CompareGreaterEqual. */
	RenderStateAlphaTestFunction
	/** @brief Float, default 1. */
	RenderStateAlphaTestReference
	/** @brief Bool, default false. */
	RenderStateScissorTestEnable
	/** @brief Float, default 1. */
	RenderStateLineWidth
	/** @brief Float, default 1. */
	RenderStatePointSize
	/** @brief ColorMask bits, default ColorMaskAll. */
	RenderStateColorWriteMask
	RenderStateNumber
)

var renderStateNames = [...]string{
	RenderStateFixedFillMode:      "FixedFillMode",
	RenderStateCullMode:           "CullMode",
	RenderStateZEnable:            "ZEnable",
	RenderStateZWriteEnable:       "ZWriteEnable",
	RenderStateZFunc:              "ZFunc",
	RenderStateBlendEnable:        "BlendEnable",
	RenderStateSrcBlendFunc:       "SrcBlendFunc",
	RenderStateDstBlendFunc:       "DstBlendFunc",
	RenderStateAlphaTestEnable:    "AlphaTestEnable",
	RenderStateAlphaTestFunction:  "AlphaTestFunction",
	RenderStateAlphaTestReference: "AlphaTestReference",
	RenderStateScissorTestEnable:  "ScissorTestEnable",
	RenderStateLineWidth:          "LineWidth",
	RenderStatePointSize:          "PointSize",
	RenderStateColorWriteMask:     "ColorWriteMask",
}

func (s RenderState) String() string {
	if s < 0 || s >= RenderStateNumber {
		return "Invalid"
	}
	return renderStateNames[s]
}

func (s RenderState) IsValid() bool {
	return s >= 0 && s < RenderStateNumber
}

type Fill uint32

const (
	FillSolid Fill = iota
	FillLine
	FillPoint
)

type Cull uint32

const (
	CullNone Cull = iota
	/** @brief Cull clockwise (as seen on screen) triangles. */
	CullCW
	/** @brief Cull counter clockwise triangles. */
	CullCCW
)

type Compare uint32

const (
	CompareNever Compare = iota
	CompareLess
	CompareEqual
	CompareLessEqual
	CompareGreater
	CompareNotEqual
	CompareGreaterEqual
	CompareAlways
)

/** @brief Tests a against reference b. */
func (c Compare) Test(a, b float32) bool {
	switch c {
	case CompareNever:
		return false
	case CompareLess:
		return a < b
	case CompareEqual:
		return a == b
	case CompareLessEqual:
		return a <= b
	case CompareGreater:
		return a > b
	case CompareNotEqual:
		return a != b
	case CompareGreaterEqual:
		return a >= b
	}
	return true
}

type BlendFunc uint32

const (
	BlendZero BlendFunc = iota
	BlendOne
	BlendSrcColor
	BlendInvSrcColor
	BlendSrcAlpha
	BlendInvSrcAlpha
	BlendDstColor
	BlendInvDstColor
	BlendDstAlpha
	BlendInvDstAlpha
)

type ColorMask uint32

const (
	ColorMaskRed   ColorMask = 0x1
	ColorMaskGreen ColorMask = 0x2
	ColorMaskBlue  ColorMask = 0x4
	ColorMaskAlpha ColorMask = 0x8
	ColorMaskAll   ColorMask = 0xF
)

/** @brief Converts a float render state value to its stored bits. */
func Float32State(f float32) uint32 {
	return math.Float32bits(f)
}

/** @brief Converts stored bits back to a float render state value. */
func StateFloat32(v uint32) float32 {
	return math.Float32frombits(v)
}

func BoolState(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

/**
 * @brief Returns the default value of every render state.
 */
func DefaultRenderStates() [RenderStateNumber]uint32 {
	var s [RenderStateNumber]uint32
	s[RenderStateFixedFillMode] = uint32(FillSolid)
	s[RenderStateCullMode] = uint32(CullCCW)
	s[RenderStateZEnable] = 1
	s[RenderStateZWriteEnable] = 1
	s[RenderStateZFunc] = uint32(CompareLessEqual)
	s[RenderStateBlendEnable] = 0
	s[RenderStateSrcBlendFunc] = uint32(BlendSrcAlpha)
	s[RenderStateDstBlendFunc] = uint32(BlendInvSrcAlpha)
	s[RenderStateAlphaTestEnable] = 0
	s[RenderStateAlphaTestFunction] = uint32(CompareGreaterEqual)
	s[RenderStateAlphaTestReference] = Float32State(1)
	s[RenderStateScissorTestEnable] = 0
	s[RenderStateLineWidth] = Float32State(1)
	s[RenderStatePointSize] = Float32State(1)
	s[RenderStateColorWriteMask] = uint32(ColorMaskAll)
	return s
}

/**
 * @brief Per texture unit sampler states.
 */
type SamplerState int

const (
	/** @brief TextureAddressing, default AddressWrap. */
	SamplerStateAddressU SamplerState = iota
	/** @brief TextureAddressing, default AddressWrap. */
	SamplerStateAddressV
	/** @brief TextureFiltering, default FilterLinear. */
	SamplerStateMagFilter
	/** @brief TextureFiltering, default FilterLinear. */
	SamplerStateMinFilter
	/** @brief TextureFiltering, default FilterPoint. FilterNone disables mipmapping. */
	SamplerStateMipFilter
	SamplerStateNumber
)

func (s SamplerState) IsValid() bool {
	return s >= 0 && s < SamplerStateNumber
}

func (s SamplerState) String() string {
	switch s {
	case SamplerStateAddressU:
		return "AddressU"
	case SamplerStateAddressV:
		return "AddressV"
	case SamplerStateMagFilter:
		return "MagFilter"
	case SamplerStateMinFilter:
		return "MinFilter"
	case SamplerStateMipFilter:
		return "MipFilter"
	}
	return "Invalid"
}

type TextureAddressing uint32

const (
	AddressWrap TextureAddressing = iota
	AddressClamp
	AddressMirror
)

type TextureFiltering uint32

const (
	FilterNone TextureFiltering = iota
	FilterPoint
	FilterLinear
)

type SamplerStates [SamplerStateNumber]uint32

func DefaultSamplerStates() SamplerStates {
	var s SamplerStates
	s[SamplerStateAddressU] = uint32(AddressWrap)
	s[SamplerStateAddressV] = uint32(AddressWrap)
	s[SamplerStateMagFilter] = uint32(FilterLinear)
	s[SamplerStateMinFilter] = uint32(FilterLinear)
	s[SamplerStateMipFilter] = uint32(FilterPoint)
	return s
}

/** @brief Fixed transform slots of the renderer. */
type TransformState int

const (
	TransformStateProjection TransformState = iota
	TransformStateView
	TransformStateWorld
	TransformStateTexture0
	TransformStateNumber
)

/**
 * @brief The types of clearing to be done.
 * Can be combined together for multiple clearing functions.
 */
type ClearFlag uint32

const (
	/** @brief Clear the colour buffer. */
	ClearColor ClearFlag = 0x1
	/** @brief Clear the depth buffer. */
	ClearDepth ClearFlag = 0x2
	/** @brief Clear the stencil buffer. */
	ClearStencil ClearFlag = 0x4
)

/**
 * @brief What a backend can do. Queried once after initialization.
 */
type Capabilities struct {
	MaxTextureUnits          uint32
	MaxTextureSize           uint32
	MaxColorRenderTargets    uint32
	MaxMultisample           MultisampleMode
	TextureBufferRectangle   bool
	TextureBufferNonPowerOf2 bool
	TextureCompressionDXT    bool
	/** @brief Shader language names, the first one is the default. */
	ShaderLanguages []string
	Extensions      []string
}

/**
 * @brief A uniform value captured at draw time.
 */
type UniformValue struct {
	Location int
	Type     UniformType
	Values   []float32
}

/**
 * @brief A texture bound to a unit, together with the unit's sampler states.
 */
type TextureBinding struct {
	Unit    int
	Texture Handle
	Sampler SamplerStates
}

/**
 * @brief Feeds a program attribute location from a vertex buffer.
 */
type VertexStream struct {
	Location  int
	Buffer    Handle
	Attribute VertexAttribute
	Stride    uint32
}

/**
 * @brief Everything a backend needs to execute one draw. Built by the
 * renderer frontend from its current state.
 */
type DrawCall struct {
	/** @brief Render target, InvalidHandle for the default target. */
	Target       Handle
	TargetWidth  uint32
	TargetHeight uint32
	Program      Handle
	RenderStates [RenderStateNumber]uint32
	Viewport     lmath.Rect
	Scissor      lmath.Rect
	Uniforms     []UniformValue
	Textures     []TextureBinding
	Streams      []VertexStream
	Primitive    PrimitiveType
	/** @brief Non-indexed draws read VertexCount vertices from FirstVertex. */
	FirstVertex uint32
	VertexCount uint32
	/** @brief Indexed draws read IndexCount indices from FirstIndex and add BaseVertex. */
	Indexed     bool
	IndexBuffer Handle
	IndexFormat IndexFormat
	FirstIndex  uint32
	IndexCount  uint32
	BaseVertex  uint32
}

/**
 * @brief A clear of the current render target.
 */
type ClearCall struct {
	Target       Handle
	TargetWidth  uint32
	TargetHeight uint32
	Flags        ClearFlag
	Color        lmath.Color
	Depth        float32
	Stencil      uint32
	/** @brief When set only the scissor rectangle is cleared. */
	Scissor *lmath.Rect
}
