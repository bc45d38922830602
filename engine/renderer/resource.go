package renderer

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

/**
 * @brief A renderer owned object with device data that can be backed up and
 * restored across a device loss.
 */
type Resource interface {
	ID() core.Identifier
	Type() metadata.ResourceType
	State() metadata.ResourceState
	// BackupDeviceData copies what is needed for a bit identical rebuild
	// and releases the device data.
	BackupDeviceData() error
	RestoreDeviceData() error
	Destroy()
}

// deviceData is exactly one of liveData, backedData, lostData or
// destroyedData.
type deviceData interface {
	state() metadata.ResourceState
}

type liveData struct {
	handle metadata.Handle
}

type backedData struct {
	bytes []byte
}

type lostData struct {
	err error
}

type destroyedData struct{}

func (liveData) state() metadata.ResourceState      { return metadata.ResourceStateCreated }
func (backedData) state() metadata.ResourceState    { return metadata.ResourceStateDeviceDataBackedUp }
func (lostData) state() metadata.ResourceState      { return metadata.ResourceStateLost }
func (destroyedData) state() metadata.ResourceState { return metadata.ResourceStateDestroyed }

type resourceBase struct {
	id       core.Identifier
	kind     metadata.ResourceType
	renderer *Renderer
	data     deviceData
}

func newResourceBase(r *Renderer, kind metadata.ResourceType) resourceBase {
	return resourceBase{
		id:       core.NewIdentifier(),
		kind:     kind,
		renderer: r,
		data:     liveData{},
	}
}

func (b *resourceBase) ID() core.Identifier {
	return b.id
}

func (b *resourceBase) Type() metadata.ResourceType {
	return b.kind
}

func (b *resourceBase) State() metadata.ResourceState {
	return b.data.state()
}

func (b *resourceBase) GetRenderer() *Renderer {
	return b.renderer
}

// deviceHandle returns the live handle or the error explaining why there is none.
func (b *resourceBase) deviceHandle() (metadata.Handle, error) {
	switch d := b.data.(type) {
	case liveData:
		if !d.handle.IsValid() {
			return metadata.InvalidHandle, fmt.Errorf("%s %s: %w", b.kind, b.id, core.ErrInvalidHandle)
		}
		return d.handle, nil
	case backedData:
		return metadata.InvalidHandle, fmt.Errorf("%s %s: %w", b.kind, b.id, core.ErrDeviceNotReady)
	case lostData:
		return metadata.InvalidHandle, d.err
	}
	return metadata.InvalidHandle, fmt.Errorf("%s %s: %w", b.kind, b.id, core.ErrResourceDestroyed)
}

func (b *resourceBase) isLive() bool {
	d, ok := b.data.(liveData)
	return ok && d.handle.IsValid()
}

// lose moves the resource into the lost state, wrapping cause.
func (b *resourceBase) lose(cause error) error {
	err := fmt.Errorf("%s %s: %w: %v", b.kind, b.id, core.ErrResourceLost, cause)
	core.LogError("%s", err.Error())
	b.data = lostData{err: err}
	return err
}

// beginBackup returns the live handle if a backup is needed. A resource
// that is already backed up, lost or destroyed needs none.
func (b *resourceBase) beginBackup() (metadata.Handle, bool) {
	d, ok := b.data.(liveData)
	if !ok {
		return metadata.InvalidHandle, false
	}
	return d.handle, true
}

// beginRestore returns the backup bytes if a restore is needed.
func (b *resourceBase) beginRestore() ([]byte, bool) {
	d, ok := b.data.(backedData)
	if !ok {
		return nil, false
	}
	return d.bytes, true
}

func (b *resourceBase) markDestroyed() bool {
	if _, ok := b.data.(destroyedData); ok {
		return false
	}
	b.data = destroyedData{}
	if b.renderer != nil {
		b.renderer.unregister(b.id)
	}
	return true
}
