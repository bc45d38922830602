package renderer

import (
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

/**
 * @brief Source handed to a backend for compilation. Conditionals are already
 * resolved, Defines lists every symbol defined at the end of preprocessing.
 */
type ShaderSource struct {
	Language string
	Stage    metadata.ShaderStage
	Code     string
	Profile  string
	Entry    string
	Defines  []string
}

/**
 * @brief The device side of the renderer. Backends own every device object and
 * hand out opaque handles, the frontend owns all state and lifetime decisions.
 */
type RendererBackend interface {
	Initialize(config *metadata.RendererBackendConfig) error
	Shutdown() error
	Capabilities() metadata.Capabilities
	BeginFrame() error
	EndFrame() error
	// Reset drops every device object. Handles issued before become invalid
	// and the default target is recreated.
	Reset() error

	TextureCreate(desc *metadata.TextureDesc) (metadata.Handle, error)
	TextureUpload(texture metadata.Handle, level uint32, data []byte) error
	TextureRead(texture metadata.Handle, level uint32) ([]byte, error)
	TextureDestroy(texture metadata.Handle)

	RenderTargetCreate(color, depth metadata.Handle) (metadata.Handle, error)
	RenderTargetDestroy(target metadata.Handle)
	// DefaultTarget returns the RGBA8 color texture of the default target.
	DefaultTarget() (color metadata.Handle, width, height uint32)

	BufferCreate(size uint64) (metadata.Handle, error)
	BufferUpload(buffer metadata.Handle, offset uint64, data []byte) error
	BufferDestroy(buffer metadata.Handle)

	ShaderCompile(source *ShaderSource) (metadata.Handle, error)
	ShaderDestroy(shader metadata.Handle)
	ProgramLink(shaders []metadata.Handle) (metadata.Handle, *metadata.ProgramLayout, error)
	ProgramDestroy(program metadata.Handle)

	Clear(call *metadata.ClearCall) error
	Draw(call *metadata.DrawCall) error
}
