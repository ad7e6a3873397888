package gpu

import "errors"

// Errors shared by every backend.
var (
	// ErrInvalidDescriptor is returned for descriptors that cannot describe a
	// resource (zero size, invalid format, missing shader functions).
	ErrInvalidDescriptor = errors.New("gpu: invalid descriptor")

	// ErrUnsupportedFormat is returned when a format has no native mapping.
	ErrUnsupportedFormat = errors.New("gpu: unsupported texture format")

	// ErrDeviceClosed is returned by factories after Device.Close.
	ErrDeviceClosed = errors.New("gpu: device closed")

	// ErrDestroyed is returned when using a destroyed resource.
	ErrDestroyed = errors.New("gpu: resource destroyed")

	// ErrNotRecording is returned when a command buffer is used outside its
	// recording state.
	ErrNotRecording = errors.New("gpu: command buffer is not recording")

	// ErrReadbackUnsupported is returned by textures that cannot be read.
	ErrReadbackUnsupported = errors.New("gpu: texture readback not supported")

	// ErrFrameTimeout is returned when a frame slot is still in flight after
	// the frame fence timeout.
	ErrFrameTimeout = errors.New("gpu: timed out waiting for frame in flight")
)
