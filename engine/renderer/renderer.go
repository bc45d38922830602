package renderer

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

type Config struct {
	Backend metadata.RendererBackendConfig
	// ShaderLanguage overrides the default language, empty picks the
	// first one the backend reports.
	ShaderLanguage string
	// MaxTextureUnits limits the units below the backend maximum, 0 means no limit.
	MaxTextureUnits uint32
}

/**
 * @brief The renderer frontend. Owns the state context, the resource list and
 * the shader languages, and turns draws into backend draw calls.
 *
 * A renderer is used from a single render thread.
 */
type Renderer struct {
	backend         RendererBackend
	caps            metadata.Capabilities
	languages       map[string]*ShaderLanguage
	defaultLanguage string
	library         *ShaderLibrary

	renderStates  [metadata.RenderStateNumber]uint32
	samplerStates []metadata.SamplerStates
	textures      []TextureBuffer
	transforms    [metadata.TransformStateNumber]math.Mat4
	viewport      math.Rect
	scissor       math.Rect
	target        *SurfaceTextureBuffer
	program       *Program
	vertexBuffer  *VertexBuffer
	indexBuffer   *IndexBuffer

	// creation order, backup walks it backwards
	resources []Resource
	stats     Statistics
}

/**
 * @brief Initializes the backend and creates a renderer in the default state.
 */
func NewRenderer(backend RendererBackend, cfg Config) (*Renderer, error) {
	if backend == nil {
		return nil, core.LogErrorf("NewRenderer: no backend: %w", core.ErrInvalidParameter)
	}
	if err := backend.Initialize(&cfg.Backend); err != nil {
		return nil, core.LogErrorf("NewRenderer: backend initialization failed: %w", err)
	}
	r := &Renderer{
		backend:   backend,
		caps:      backend.Capabilities(),
		languages: make(map[string]*ShaderLanguage),
		library:   NewShaderLibrary(),
	}
	for _, name := range r.caps.ShaderLanguages {
		r.languages[name] = &ShaderLanguage{name: name, renderer: r}
	}
	switch {
	case cfg.ShaderLanguage != "":
		if _, ok := r.languages[cfg.ShaderLanguage]; !ok {
			backend.Shutdown()
			return nil, core.LogErrorf("NewRenderer: shader language %q: %w", cfg.ShaderLanguage, core.ErrUnsupportedLanguage)
		}
		r.defaultLanguage = cfg.ShaderLanguage
	case len(r.caps.ShaderLanguages) > 0:
		r.defaultLanguage = r.caps.ShaderLanguages[0]
	}

	units := r.caps.MaxTextureUnits
	if cfg.MaxTextureUnits > 0 && cfg.MaxTextureUnits < units {
		units = cfg.MaxTextureUnits
	}
	r.textures = make([]TextureBuffer, units)
	r.samplerStates = make([]metadata.SamplerStates, units)
	r.resetStates()

	core.LogInfo("Renderer initialized: languages %v, %d texture units", r.caps.ShaderLanguages, units)
	return r, nil
}

/**
 * @brief Destroys every resource still alive and shuts the backend down.
 */
func (r *Renderer) Shutdown() error {
	r.SetProgram(nil)
	r.SetRenderTarget(nil)
	for _, res := range slices.Backward(slices.Clone(r.resources)) {
		res.Destroy()
	}
	r.resources = nil
	return r.backend.Shutdown()
}

func (r *Renderer) GetBackend() RendererBackend {
	return r.backend
}

func (r *Renderer) Capabilities() metadata.Capabilities {
	return r.caps
}

func (r *Renderer) IsExtensionSupported(name string) bool {
	return slices.Contains(r.caps.Extensions, name)
}

func (r *Renderer) GetDefaultShaderLanguage() string {
	return r.defaultLanguage
}

// GetShaderLanguage returns nil for languages the backend does not offer.
// An empty name selects the default language.
func (r *Renderer) GetShaderLanguage(name string) *ShaderLanguage {
	if name == "" {
		name = r.defaultLanguage
	}
	return r.languages[name]
}

func (r *Renderer) GetShaderLibrary() *ShaderLibrary {
	return r.library
}

func (r *Renderer) GetMaxTextureUnits() int {
	return len(r.textures)
}

/**
 * @brief Starts a frame: applies queued shader source changes and clears
 * the per-frame statistics.
 */
func (r *Renderer) BeginFrame() error {
	r.ResetStatistics()
	r.library.Flush()
	return r.backend.BeginFrame()
}

func (r *Renderer) EndFrame() error {
	return r.backend.EndFrame()
}

func (r *Renderer) register(res Resource) {
	r.resources = append(r.resources, res)
}

func (r *Renderer) unregister(id core.Identifier) {
	r.resources = slices.DeleteFunc(r.resources, func(res Resource) bool {
		return res.ID() == id
	})
}

func (r *Renderer) unbindTexture(id core.Identifier) {
	for i, tb := range r.textures {
		if tb != nil && tb.ID() == id {
			r.textures[i] = nil
		}
	}
}

/**
 * @brief Returns the registered resources in creation order.
 */
func (r *Renderer) GetResources() []Resource {
	return slices.Clone(r.resources)
}

/**
 * @brief Backs up every resource in reverse creation order and releases its
 * device data. Resources that fail are lost, the others continue.
 */
func (r *Renderer) BackupDeviceData() error {
	var errs []error
	for i := len(r.resources) - 1; i >= 0; i-- {
		if err := r.resources[i].BackupDeviceData(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

/**
 * @brief Restores every backed up resource in creation order.
 */
func (r *Renderer) RestoreDeviceData() error {
	var errs []error
	for _, res := range slices.Clone(r.resources) {
		if err := res.RestoreDeviceData(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

/**
 * @brief Simulates a device loss: backup, backend reset, restore.
 */
func (r *Renderer) ResetDevice() error {
	core.LogInfo("Resetting the device, %d resources", len(r.resources))
	if err := r.BackupDeviceData(); err != nil {
		core.LogError("Backup before device reset: %s", err)
	}
	if err := r.backend.Reset(); err != nil {
		return core.LogErrorf("ResetDevice: %w", err)
	}
	return r.RestoreDeviceData()
}

func (r *Renderer) GetRenderState(state metadata.RenderState) uint32 {
	if !state.IsValid() {
		return 0
	}
	return r.renderStates[state]
}

/**
 * @brief Sets a render state. Float states take metadata.Float32State values.
 * @returns False for an unknown state.
 */
func (r *Renderer) SetRenderState(state metadata.RenderState, value uint32) bool {
	if !state.IsValid() {
		core.LogWarn("SetRenderState: unknown render state %d", state)
		return false
	}
	if r.renderStates[state] != value {
		r.renderStates[state] = value
		r.stats.RenderStateChanges++
	}
	return true
}

func (r *Renderer) SetColorMask(red, green, blue, alpha bool) bool {
	var mask metadata.ColorMask
	if red {
		mask |= metadata.ColorMaskRed
	}
	if green {
		mask |= metadata.ColorMaskGreen
	}
	if blue {
		mask |= metadata.ColorMaskBlue
	}
	if alpha {
		mask |= metadata.ColorMaskAlpha
	}
	return r.SetRenderState(metadata.RenderStateColorWriteMask, uint32(mask))
}

func (r *Renderer) GetSamplerState(unit int, state metadata.SamplerState) uint32 {
	if unit < 0 || unit >= len(r.samplerStates) || !state.IsValid() {
		return 0
	}
	return r.samplerStates[unit][state]
}

func (r *Renderer) SetSamplerState(unit int, state metadata.SamplerState, value uint32) bool {
	if unit < 0 || unit >= len(r.samplerStates) || !state.IsValid() {
		core.LogWarn("SetSamplerState: invalid unit %d or state %d", unit, state)
		return false
	}
	if r.samplerStates[unit][state] != value {
		r.samplerStates[unit][state] = value
		r.stats.SamplerStateChanges++
	}
	return true
}

func (r *Renderer) GetTransformState(state metadata.TransformState) math.Mat4 {
	if state < 0 || state >= metadata.TransformStateNumber {
		return math.NewMat4Identity()
	}
	return r.transforms[state]
}

func (r *Renderer) SetTransformState(state metadata.TransformState, m math.Mat4) bool {
	if state < 0 || state >= metadata.TransformStateNumber {
		return false
	}
	r.transforms[state] = m
	return true
}

func (r *Renderer) GetViewport() math.Rect {
	return r.viewport
}

func (r *Renderer) SetViewport(viewport math.Rect) {
	r.viewport = viewport
}

func (r *Renderer) GetScissorRect() math.Rect {
	return r.scissor
}

func (r *Renderer) SetScissorRect(scissor math.Rect) {
	r.scissor = scissor
}

func (r *Renderer) GetTextureBuffer(unit int) TextureBuffer {
	if unit < 0 || unit >= len(r.textures) {
		return nil
	}
	return r.textures[unit]
}

/**
 * @brief Binds tb to a texture unit, nil unbinds.
 * @returns False if the unit is out of range or tb has no usable device data.
 */
func (r *Renderer) SetTextureBuffer(unit int, tb TextureBuffer) bool {
	if unit < 0 || unit >= len(r.textures) {
		core.LogWarn("SetTextureBuffer: texture unit %d out of range", unit)
		return false
	}
	if tb != nil {
		if _, err := tb.deviceHandle(); err != nil {
			core.LogWarn("SetTextureBuffer: %s", err)
			return false
		}
	}
	if r.textures[unit] != tb {
		r.textures[unit] = tb
		r.stats.TextureBufferChanges++
	}
	return true
}

func (r *Renderer) GetRenderTarget() *SurfaceTextureBuffer {
	return r.target
}

/**
 * @brief Makes surface the render target, nil selects the default target.
 * The viewport is set to the full target.
 * @returns False if the surface has no usable device data.
 */
func (r *Renderer) SetRenderTarget(surface *SurfaceTextureBuffer) bool {
	if surface != nil {
		if _, err := surface.deviceHandle(); err != nil {
			core.LogWarn("SetRenderTarget: %s", err)
			return false
		}
	}
	if r.target != surface {
		r.target = surface
		r.stats.RenderTargetChanges++
	}
	_, w, h := r.currentTarget()
	r.viewport = math.Rect{Width: int32(w), Height: int32(h)}
	return true
}

// currentTarget returns the target handle, InvalidHandle for the default
// target, and its size.
func (r *Renderer) currentTarget() (metadata.Handle, uint32, uint32) {
	if r.target == nil {
		_, w, h := r.backend.DefaultTarget()
		return metadata.InvalidHandle, w, h
	}
	h, _ := r.target.deviceHandle()
	size := r.target.GetSize()
	return h, size.Width, size.Height
}

func (r *Renderer) GetProgram() *Program {
	return r.program
}

/**
 * @brief Makes p the current program, linking it if needed. nil unbinds.
 * @returns False if p fails to link.
 */
func (r *Renderer) SetProgram(p *Program) bool {
	if p != nil {
		if p.GetRenderer() != r {
			core.LogWarn("SetProgram: program belongs to another renderer")
			return false
		}
		if err := p.ensureLinked(); err != nil {
			core.LogWarn("SetProgram: %s", err)
			return false
		}
	}
	if r.program != p {
		r.program = p
		r.stats.ProgramChanges++
	}
	return true
}

func (r *Renderer) GetVertexBuffer() *VertexBuffer {
	return r.vertexBuffer
}

// SetVertexBuffer sets the buffer conventionally named attributes read from.
func (r *Renderer) SetVertexBuffer(vb *VertexBuffer) {
	r.vertexBuffer = vb
}

func (r *Renderer) GetIndexBuffer() *IndexBuffer {
	return r.indexBuffer
}

func (r *Renderer) SetIndexBuffer(ib *IndexBuffer) {
	r.indexBuffer = ib
}

/**
 * @brief Clears the current render target. Only the scissor rectangle is
 * cleared while the scissor test is enabled.
 */
func (r *Renderer) Clear(flags metadata.ClearFlag, color math.Color, z float32, stencil uint32) error {
	target, w, h := r.currentTarget()
	call := &metadata.ClearCall{
		Target:       target,
		TargetWidth:  w,
		TargetHeight: h,
		Flags:        flags,
		Color:        color,
		Depth:        z,
		Stencil:      stencil,
	}
	if r.renderStates[metadata.RenderStateScissorTestEnable] != 0 {
		scissor := r.scissor
		call.Scissor = &scissor
	}
	if err := r.backend.Clear(call); err != nil {
		return core.LogErrorf("Clear: %w", err)
	}
	return nil
}

func (r *Renderer) newDrawCall(prim metadata.PrimitiveType, lastVertex uint32) (*metadata.DrawCall, error) {
	if r.program == nil {
		return nil, fmt.Errorf("draw: %w", core.ErrNoProgram)
	}
	if err := r.program.ensureLinked(); err != nil {
		return nil, fmt.Errorf("draw: %w", err)
	}
	target, w, h := r.currentTarget()
	if r.target != nil && !target.IsValid() {
		_, err := r.target.deviceHandle()
		return nil, fmt.Errorf("draw: render target: %w", err)
	}
	call := &metadata.DrawCall{
		Target:       target,
		TargetWidth:  w,
		TargetHeight: h,
		RenderStates: r.renderStates,
		Viewport:     r.viewport,
		Scissor:      r.scissor,
		Primitive:    prim,
	}
	if err := r.program.fillDrawCall(call, lastVertex); err != nil {
		return nil, fmt.Errorf("draw: %w", err)
	}
	return call, nil
}

func (r *Renderer) submit(call *metadata.DrawCall, vertexCount uint32) error {
	if err := r.backend.Draw(call); err != nil {
		return core.LogErrorf("draw: %w", err)
	}
	r.stats.DrawCalls++
	r.stats.Vertices += vertexCount
	if call.Primitive.IsTriangle() {
		count := vertexCount
		if call.Indexed {
			count = call.IndexCount
		}
		r.stats.Triangles += call.Primitive.PrimitiveCount(count)
	}
	return nil
}

/**
 * @brief Draws vertexCount vertices starting at firstVertex with the current
 * program, target and state.
 */
func (r *Renderer) DrawPrimitives(prim metadata.PrimitiveType, firstVertex, vertexCount uint32) error {
	if vertexCount == 0 {
		return nil
	}
	call, err := r.newDrawCall(prim, firstVertex+vertexCount)
	if err != nil {
		core.LogWarn("%s", err.Error())
		return err
	}
	call.FirstVertex = firstVertex
	call.VertexCount = vertexCount
	return r.submit(call, vertexCount)
}

/**
 * @brief Draws indexCount indices of the current index buffer starting at
 * firstIndex. baseVertex is added to every index, vertexCount bounds the
 * vertices the indices may reference.
 */
func (r *Renderer) DrawIndexedPrimitives(prim metadata.PrimitiveType, baseVertex, vertexCount, firstIndex, indexCount uint32) error {
	if indexCount == 0 {
		return nil
	}
	if r.indexBuffer == nil {
		err := fmt.Errorf("draw: %w", core.ErrNoIndexBuffer)
		core.LogWarn("%s", err.Error())
		return err
	}
	if firstIndex+indexCount > r.indexBuffer.numIndices {
		err := fmt.Errorf("draw: indices %d..%d of %d: %w", firstIndex, firstIndex+indexCount, r.indexBuffer.numIndices, core.ErrInvalidParameter)
		core.LogWarn("%s", err.Error())
		return err
	}
	ib, err := r.indexBuffer.deviceHandle()
	if err != nil {
		return core.LogErrorf("draw: index buffer: %w", err)
	}
	call, err := r.newDrawCall(prim, baseVertex+vertexCount)
	if err != nil {
		core.LogWarn("%s", err.Error())
		return err
	}
	call.Indexed = true
	call.IndexBuffer = ib
	call.IndexFormat = r.indexBuffer.format
	call.FirstIndex = firstIndex
	call.IndexCount = indexCount
	call.BaseVertex = baseVertex
	call.VertexCount = vertexCount
	return r.submit(call, vertexCount)
}

/**
 * @brief Reads the default target back as an RGBA8 image.
 */
func (r *Renderer) ReadBackbuffer() (*metadata.Image, error) {
	color, w, h := r.backend.DefaultTarget()
	data, err := r.backend.TextureRead(color, 0)
	if err != nil {
		return nil, core.LogErrorf("ReadBackbuffer: %w", err)
	}
	return &metadata.Image{
		Format: metadata.PixelFormatRGBA8,
		Levels: []metadata.ImageLevel{{Width: w, Height: h, Data: data}},
	}, nil
}
