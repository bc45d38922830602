package renderer

import (
	"fmt"
	"strings"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// fakeBackend stores everything in maps and derives program layouts from
// "attribute <name>", "uniform <name> <float|float4|mat4>" and
// "sampler <name>" lines.
type fakeBackend struct {
	next     metadata.Handle
	textures map[metadata.Handle][][]byte
	targets  map[metadata.Handle]bool
	buffers  map[metadata.Handle][]byte
	shaders  map[metadata.Handle]string
	programs map[metadata.Handle]bool
	draws    []metadata.DrawCall
	clears   []metadata.ClearCall
	caps     metadata.Capabilities
	failRead bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		caps: metadata.Capabilities{
			MaxTextureUnits:        4,
			MaxTextureSize:         4096,
			MaxColorRenderTargets:  1,
			MaxMultisample:         metadata.Multisample2x,
			TextureBufferRectangle: true,
			ShaderLanguages:        []string{"Fake"},
			Extensions:             []string{"fake_extension"},
		},
	}
}

func (b *fakeBackend) handle() metadata.Handle {
	b.next++
	return b.next
}

func (b *fakeBackend) Initialize(*metadata.RendererBackendConfig) error {
	b.reset()
	return nil
}

func (b *fakeBackend) reset() {
	b.textures = map[metadata.Handle][][]byte{}
	b.targets = map[metadata.Handle]bool{}
	b.buffers = map[metadata.Handle][]byte{}
	b.shaders = map[metadata.Handle]string{}
	b.programs = map[metadata.Handle]bool{}
}

func (b *fakeBackend) Shutdown() error                     { return nil }
func (b *fakeBackend) Capabilities() metadata.Capabilities { return b.caps }
func (b *fakeBackend) BeginFrame() error                   { return nil }
func (b *fakeBackend) EndFrame() error                     { return nil }

func (b *fakeBackend) Reset() error {
	b.reset()
	return nil
}

func (b *fakeBackend) TextureCreate(desc *metadata.TextureDesc) (metadata.Handle, error) {
	levels := make([][]byte, desc.Levels)
	w, h := desc.Width, desc.Height
	for i := range levels {
		levels[i] = make([]byte, desc.Format.NumOfBytes(w, h))
		w, h = max(w/2, 1), max(h/2, 1)
	}
	handle := b.handle()
	b.textures[handle] = levels
	return handle, nil
}

func (b *fakeBackend) TextureUpload(h metadata.Handle, level uint32, data []byte) error {
	t, ok := b.textures[h]
	if !ok {
		return core.ErrInvalidHandle
	}
	copy(t[level], data)
	return nil
}

func (b *fakeBackend) TextureRead(h metadata.Handle, level uint32) ([]byte, error) {
	t, ok := b.textures[h]
	if !ok || b.failRead {
		return nil, core.ErrInvalidHandle
	}
	return append([]byte(nil), t[level]...), nil
}

func (b *fakeBackend) TextureDestroy(h metadata.Handle) {
	delete(b.textures, h)
}

func (b *fakeBackend) RenderTargetCreate(color, depth metadata.Handle) (metadata.Handle, error) {
	if _, ok := b.textures[color]; !ok {
		return metadata.InvalidHandle, core.ErrInvalidHandle
	}
	h := b.handle()
	b.targets[h] = true
	return h, nil
}

func (b *fakeBackend) RenderTargetDestroy(h metadata.Handle) {
	delete(b.targets, h)
}

func (b *fakeBackend) DefaultTarget() (metadata.Handle, uint32, uint32) {
	return metadata.InvalidHandle, 16, 8
}

func (b *fakeBackend) BufferCreate(size uint64) (metadata.Handle, error) {
	h := b.handle()
	b.buffers[h] = make([]byte, size)
	return h, nil
}

func (b *fakeBackend) BufferUpload(h metadata.Handle, offset uint64, data []byte) error {
	buf, ok := b.buffers[h]
	if !ok {
		return core.ErrInvalidHandle
	}
	copy(buf[offset:], data)
	return nil
}

func (b *fakeBackend) BufferDestroy(h metadata.Handle) {
	delete(b.buffers, h)
}

func (b *fakeBackend) ShaderCompile(source *ShaderSource) (metadata.Handle, error) {
	if strings.Contains(source.Code, "ERROR") {
		return metadata.InvalidHandle, fmt.Errorf("syntax error")
	}
	h := b.handle()
	b.shaders[h] = source.Code
	return h, nil
}

func (b *fakeBackend) ShaderDestroy(h metadata.Handle) {
	delete(b.shaders, h)
}

func (b *fakeBackend) ProgramLink(shaders []metadata.Handle) (metadata.Handle, *metadata.ProgramLayout, error) {
	layout := &metadata.ProgramLayout{}
	unit := 0
	for _, sh := range shaders {
		code, ok := b.shaders[sh]
		if !ok {
			return metadata.InvalidHandle, nil, core.ErrInvalidHandle
		}
		if strings.Contains(code, "LINKFAIL") {
			return metadata.InvalidHandle, nil, fmt.Errorf("link error")
		}
		for _, line := range strings.Split(code, "\n") {
			f := strings.Fields(line)
			switch {
			case len(f) == 2 && f[0] == "attribute":
				layout.Attributes = append(layout.Attributes, metadata.ProgramAttributeInfo{Name: f[1], Location: len(layout.Attributes), Components: 4})
			case len(f) == 3 && f[0] == "uniform":
				t := map[string]metadata.UniformType{"float": metadata.UniformTypeFloat1, "float4": metadata.UniformTypeFloat4, "mat4": metadata.UniformTypeMat4}[f[2]]
				layout.Uniforms = append(layout.Uniforms, metadata.ProgramUniformInfo{Name: f[1], Location: len(layout.Uniforms), Type: t, Unit: -1})
			case len(f) == 2 && f[0] == "sampler":
				layout.Uniforms = append(layout.Uniforms, metadata.ProgramUniformInfo{Name: f[1], Location: len(layout.Uniforms), Type: metadata.UniformTypeSampler2D, Unit: unit})
				unit++
			}
		}
	}
	h := b.handle()
	b.programs[h] = true
	return h, layout, nil
}

func (b *fakeBackend) ProgramDestroy(h metadata.Handle) {
	delete(b.programs, h)
}

func (b *fakeBackend) Clear(call *metadata.ClearCall) error {
	b.clears = append(b.clears, *call)
	return nil
}

func (b *fakeBackend) Draw(call *metadata.DrawCall) error {
	b.draws = append(b.draws, *call)
	return nil
}
