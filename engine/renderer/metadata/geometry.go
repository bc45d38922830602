package metadata

/** @brief How vertices are assembled into primitives. */
type PrimitiveType int

const (
	PrimitivePointList PrimitiveType = iota
	PrimitiveLineList
	PrimitiveLineStrip
	PrimitiveTriangleList
	PrimitiveTriangleStrip
	PrimitiveTriangleFan
)

func (p PrimitiveType) String() string {
	switch p {
	case PrimitivePointList:
		return "PointList"
	case PrimitiveLineList:
		return "LineList"
	case PrimitiveLineStrip:
		return "LineStrip"
	case PrimitiveTriangleList:
		return "TriangleList"
	case PrimitiveTriangleStrip:
		return "TriangleStrip"
	case PrimitiveTriangleFan:
		return "TriangleFan"
	}
	return "Unknown"
}

/**
 * @brief Returns the number of primitives vertexCount vertices produce.
 */
func (p PrimitiveType) PrimitiveCount(vertexCount uint32) uint32 {
	switch p {
	case PrimitivePointList:
		return vertexCount
	case PrimitiveLineList:
		return vertexCount / 2
	case PrimitiveLineStrip:
		if vertexCount < 2 {
			return 0
		}
		return vertexCount - 1
	case PrimitiveTriangleList:
		return vertexCount / 3
	case PrimitiveTriangleStrip, PrimitiveTriangleFan:
		if vertexCount < 3 {
			return 0
		}
		return vertexCount - 2
	}
	return 0
}

func (p PrimitiveType) IsTriangle() bool {
	return p == PrimitiveTriangleList || p == PrimitiveTriangleStrip || p == PrimitiveTriangleFan
}

type IndexFormat int

const (
	IndexFormatUInt16 IndexFormat = iota
	IndexFormatUInt32
)

func (f IndexFormat) Size() uint32 {
	if f == IndexFormatUInt32 {
		return 4
	}
	return 2
}

/** @brief What a vertex attribute carries. */
type VertexSemantic int

const (
	VertexSemanticPosition VertexSemantic = iota
	VertexSemanticTexCoord
	VertexSemanticColor
	VertexSemanticNormal
	VertexSemanticTangent
	VertexSemanticBinormal
)

func (s VertexSemantic) String() string {
	switch s {
	case VertexSemanticPosition:
		return "Position"
	case VertexSemanticTexCoord:
		return "TexCoord"
	case VertexSemanticColor:
		return "Color"
	case VertexSemanticNormal:
		return "Normal"
	case VertexSemanticTangent:
		return "Tangent"
	case VertexSemanticBinormal:
		return "Binormal"
	}
	return "Unknown"
}

/** @brief Storage type of a vertex attribute. */
type VertexAttributeType int

const (
	VertexAttributeFloat1 VertexAttributeType = iota
	VertexAttributeFloat2
	VertexAttributeFloat3
	VertexAttributeFloat4
	/** @brief Four normalized bytes, read as a float4 color. */
	VertexAttributeRGBA
)

func (t VertexAttributeType) Size() uint32 {
	switch t {
	case VertexAttributeFloat1, VertexAttributeRGBA:
		return 4
	case VertexAttributeFloat2:
		return 8
	case VertexAttributeFloat3:
		return 12
	case VertexAttributeFloat4:
		return 16
	}
	return 0
}

func (t VertexAttributeType) Components() uint32 {
	switch t {
	case VertexAttributeFloat1:
		return 1
	case VertexAttributeFloat2:
		return 2
	case VertexAttributeFloat3:
		return 3
	}
	return 4
}

/**
 * @brief A single attribute inside an interleaved vertex.
 */
type VertexAttribute struct {
	Semantic VertexSemantic
	/** @brief Distinguishes several attributes of one semantic, e.g. two texture coordinate sets. */
	Channel uint32
	Type    VertexAttributeType
	/** @brief Byte offset inside the vertex. */
	Offset uint32
}

/**
 * @brief The fixed layout of an interleaved vertex buffer.
 */
type VertexLayout struct {
	Attributes []VertexAttribute
	Stride     uint32
}

/**
 * @brief Returns the attribute with the given semantic and channel, or false.
 */
func (l *VertexLayout) Find(semantic VertexSemantic, channel uint32) (VertexAttribute, bool) {
	for _, a := range l.Attributes {
		if a.Semantic == semantic && a.Channel == channel {
			return a, true
		}
	}
	return VertexAttribute{}, false
}
