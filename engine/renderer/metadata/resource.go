package metadata

type ResourceType int

/** @brief Renderer resource kinds. */
const (
	ResourceTypeTextureBuffer2D ResourceType = iota
	ResourceTypeTextureBufferRectangle
	ResourceTypeSurfaceTextureBuffer
	ResourceTypeVertexBuffer
	ResourceTypeIndexBuffer
	ResourceTypeShader
	ResourceTypeProgram
)

var resourceTypeNames = [...]string{
	ResourceTypeTextureBuffer2D:        "TextureBuffer2D",
	ResourceTypeTextureBufferRectangle: "TextureBufferRectangle",
	ResourceTypeSurfaceTextureBuffer:   "SurfaceTextureBuffer",
	ResourceTypeVertexBuffer:           "VertexBuffer",
	ResourceTypeIndexBuffer:            "IndexBuffer",
	ResourceTypeShader:                 "Shader",
	ResourceTypeProgram:                "Program",
}

func (r ResourceType) String() string {
	if r < 0 || int(r) >= len(resourceTypeNames) {
		return "Unknown"
	}
	return resourceTypeNames[r]
}

/**
 * @brief Lifecycle state of a renderer resource.
 */
type ResourceState int

const (
	/** @brief Device data is live. */
	ResourceStateCreated ResourceState = iota
	/** @brief Device data was released after copying what is needed to rebuild it. */
	ResourceStateDeviceDataBackedUp
	/** @brief A backup or restore failed. Every use returns an error until destroyed. */
	ResourceStateLost
	ResourceStateDestroyed
)

func (s ResourceState) String() string {
	switch s {
	case ResourceStateCreated:
		return "Created"
	case ResourceStateDeviceDataBackedUp:
		return "DeviceDataBackedUp"
	case ResourceStateLost:
		return "Lost"
	case ResourceStateDestroyed:
		return "Destroyed"
	}
	return "Unknown"
}

/**
 * @brief An opaque backend object reference. Zero is never a valid handle.
 */
type Handle uint64

const InvalidHandle Handle = 0

func (h Handle) IsValid() bool {
	return h != InvalidHandle
}
