package core

import (
	"errors"
)

var (
	ErrUnknown             = errors.New("unknown")
	ErrInvalidParameter    = errors.New("invalid parameter")
	ErrUnsupportedFormat   = errors.New("unsupported pixel format")
	ErrUnsupportedLanguage = errors.New("shader language not supported")
	ErrResourceLost        = errors.New("resource device data lost")
	ErrResourceDestroyed   = errors.New("resource destroyed")
	ErrDeviceNotReady      = errors.New("renderer device not ready")
	ErrInvalidHandle       = errors.New("invalid backend handle")
	ErrShaderCompile       = errors.New("shader compilation failed")
	ErrProgramLink         = errors.New("program link failed")
	ErrNoProgram           = errors.New("no program bound")
	ErrNoVertexBuffer      = errors.New("no vertex buffer bound")
	ErrNoIndexBuffer       = errors.New("no index buffer bound")
)
