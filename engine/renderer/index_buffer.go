package renderer

import (
	"encoding/binary"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

/**
 * @brief 16 or 32 bit index storage with the same lock contract as VertexBuffer.
 */
type IndexBuffer struct {
	bufferBase
	format     metadata.IndexFormat
	numIndices uint32
}

func (r *Renderer) CreateIndexBuffer() *IndexBuffer {
	ib := &IndexBuffer{
		bufferBase: bufferBase{resourceBase: newResourceBase(r, metadata.ResourceTypeIndexBuffer)},
		format:     metadata.IndexFormatUInt16,
	}
	r.register(ib)
	return ib
}

/**
 * @brief Creates zeroed storage for numIndices indices of the given format.
 */
func (ib *IndexBuffer) Allocate(numIndices uint32, format metadata.IndexFormat) error {
	if format != metadata.IndexFormatUInt16 && format != metadata.IndexFormatUInt32 {
		return core.LogErrorf("IndexBuffer: index format %d: %w", format, core.ErrInvalidParameter)
	}
	if err := ib.allocate(uint64(numIndices) * uint64(format.Size())); err != nil {
		return core.LogErrorf("IndexBuffer: %w", err)
	}
	ib.format = format
	ib.numIndices = numIndices
	return nil
}

func (ib *IndexBuffer) GetNumOfIndices() uint32 {
	return ib.numIndices
}

func (ib *IndexBuffer) GetFormat() metadata.IndexFormat {
	return ib.format
}

/**
 * @brief Writes one index. Values that do not fit a 16 bit buffer are rejected.
 */
func (ib *IndexBuffer) SetData(index, value uint32) bool {
	if index >= ib.numIndices {
		return false
	}
	size := ib.format.Size()
	dst := ib.writable(index*size, size)
	if dst == nil {
		return false
	}
	if ib.format == metadata.IndexFormatUInt16 {
		if value > 0xFFFF {
			core.LogWarn("IndexBuffer: index %d does not fit 16 bit", value)
			return false
		}
		binary.LittleEndian.PutUint16(dst, uint16(value))
		return true
	}
	binary.LittleEndian.PutUint32(dst, value)
	return true
}

func (ib *IndexBuffer) GetData(index uint32) (uint32, bool) {
	if index >= ib.numIndices {
		return 0, false
	}
	size := ib.format.Size()
	src := ib.readable(index*size, size)
	if src == nil {
		return 0, false
	}
	if ib.format == metadata.IndexFormatUInt16 {
		return uint32(binary.LittleEndian.Uint16(src)), true
	}
	return binary.LittleEndian.Uint32(src), true
}

func (ib *IndexBuffer) Destroy() {
	if ib.State() == metadata.ResourceStateDestroyed {
		return
	}
	if ib.renderer.indexBuffer == ib {
		ib.renderer.SetIndexBuffer(nil)
	}
	ib.release()
	ib.numIndices = 0
	ib.markDestroyed()
}
