package renderer

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
)

// LockMode tells Unlock whether the shadow copy has to be uploaded.
type LockMode int

const (
	LockReadOnly LockMode = iota
	LockWriteOnly
	LockReadWrite
)

func (m LockMode) writes() bool {
	return m != LockReadOnly
}

// bufferBase keeps a CPU shadow of a device buffer. The shadow is what gets
// written while locked and what a backup restores from.
type bufferBase struct {
	resourceBase
	shadow   []byte
	locked   bool
	lockMode LockMode
}

func (b *bufferBase) allocate(size uint64) error {
	if b.locked {
		return fmt.Errorf("%s %s: allocate while locked: %w", b.kind, b.id, core.ErrInvalidParameter)
	}
	if d, ok := b.data.(liveData); ok && d.handle.IsValid() {
		b.renderer.backend.BufferDestroy(d.handle)
	} else if _, ok := b.data.(liveData); !ok {
		_, err := b.deviceHandle()
		return err
	}
	b.data = liveData{}
	b.shadow = nil
	if size == 0 {
		return nil
	}
	h, err := b.renderer.backend.BufferCreate(size)
	if err != nil {
		return err
	}
	b.data = liveData{handle: h}
	b.shadow = make([]byte, size)
	return nil
}

/**
 * @brief Starts a scoped CPU access to the buffer contents.
 * @returns False if the buffer is already locked or has no storage.
 */
func (b *bufferBase) Lock(mode LockMode) bool {
	if b.locked {
		core.LogWarn("%s %s: already locked", b.kind, b.id)
		return false
	}
	if _, err := b.deviceHandle(); err != nil {
		core.LogWarn("%s %s: cannot lock: %s", b.kind, b.id, err)
		return false
	}
	b.locked = true
	b.lockMode = mode
	return true
}

/**
 * @brief Ends the CPU access and uploads the contents if the lock allowed writes.
 */
func (b *bufferBase) Unlock() bool {
	if !b.locked {
		return false
	}
	b.locked = false
	if !b.lockMode.writes() {
		return true
	}
	h, err := b.deviceHandle()
	if err != nil {
		core.LogError("%s %s: unlock: %s", b.kind, b.id, err)
		return false
	}
	if err := b.renderer.backend.BufferUpload(h, 0, b.shadow); err != nil {
		core.LogError("%s %s: upload failed: %s", b.kind, b.id, err)
		return false
	}
	return true
}

func (b *bufferBase) IsLocked() bool {
	return b.locked
}

// writable returns the shadow range [offset, offset+size) if the buffer
// is locked for writing.
func (b *bufferBase) writable(offset, size uint32) []byte {
	if !b.locked || !b.lockMode.writes() || uint64(offset)+uint64(size) > uint64(len(b.shadow)) {
		return nil
	}
	return b.shadow[offset : offset+size]
}

func (b *bufferBase) readable(offset, size uint32) []byte {
	if uint64(offset)+uint64(size) > uint64(len(b.shadow)) {
		return nil
	}
	return b.shadow[offset : offset+size]
}

func (b *bufferBase) BackupDeviceData() error {
	h, ok := b.beginBackup()
	if !ok {
		return nil
	}
	if h.IsValid() {
		b.renderer.backend.BufferDestroy(h)
	}
	b.locked = false
	b.data = backedData{bytes: b.shadow}
	return nil
}

func (b *bufferBase) RestoreDeviceData() error {
	backup, ok := b.beginRestore()
	if !ok {
		return nil
	}
	if len(backup) == 0 {
		b.data = liveData{}
		return nil
	}
	h, err := b.renderer.backend.BufferCreate(uint64(len(backup)))
	if err != nil {
		return b.lose(err)
	}
	if err := b.renderer.backend.BufferUpload(h, 0, backup); err != nil {
		b.renderer.backend.BufferDestroy(h)
		return b.lose(err)
	}
	b.shadow = backup
	b.data = liveData{handle: h}
	return nil
}

func (b *bufferBase) release() {
	if d, ok := b.data.(liveData); ok && d.handle.IsValid() {
		b.renderer.backend.BufferDestroy(d.handle)
	}
	b.shadow = nil
	b.locked = false
}
