package bridge

import (
	"fmt"

	"github.com/DanikLP1/binaryfs/internal/fserrors"
)

// Status codes returned by every binding. exists additionally uses
// StatusAbsent (0) and StatusPresent (1).
const (
	StatusOK      uint32 = 0
	StatusAbsent  uint32 = 0
	StatusPresent uint32 = 1

	StatusInvalidLocator     uint32 = 1001
	StatusInvalidRange       uint32 = 1002
	StatusInvalidDestination uint32 = 1003
	StatusInvalidPayload     uint32 = 1004
	StatusBufferTooSmall     uint32 = 1005
	StatusNotFound           uint32 = 2003
	StatusPermissionDenied   uint32 = 4003
	StatusIOError            uint32 = 5001
	StatusStorageUnavailable uint32 = 5003
	StatusMemoryAccessFailed uint32 = 5004
	StatusBridgeUnavailable  uint32 = 5005
)

// read flags
const (
	ReadAll      uint32 = 1 << 0
	ReadCompress uint32 = 1 << 1

	// set in the info block when the returned bytes are an LZ4 block
	ResultCompressed uint32 = 1 << 0
)

// write flags
const (
	WriteAppend     uint32 = 1 << 0
	WriteCompressed uint32 = 1 << 1
)

func statusOf(err error) uint32 {
	switch fserrors.Kind(err) {
	case nil:
		if err == nil {
			return StatusOK
		}
		return StatusIOError
	case fserrors.ErrInvalidLocator:
		return StatusInvalidLocator
	case fserrors.ErrInvalidRange:
		return StatusInvalidRange
	case fserrors.ErrInvalidDestination:
		return StatusInvalidDestination
	case fserrors.ErrInvalidPayload:
		return StatusInvalidPayload
	case fserrors.ErrNotFound:
		return StatusNotFound
	case fserrors.ErrPermissionDenied:
		return StatusPermissionDenied
	case fserrors.ErrStorageUnavailable:
		return StatusStorageUnavailable
	case fserrors.ErrBridgeUnavailable, fserrors.ErrAlreadyInstalled:
		return StatusBridgeUnavailable
	default:
		return StatusIOError
	}
}

func StatusText(code uint32) string {
	switch code {
	case StatusOK:
		return "ok"
	case StatusPresent:
		return "present"
	case StatusInvalidLocator:
		return "invalid locator"
	case StatusInvalidRange:
		return "invalid range"
	case StatusInvalidDestination:
		return "invalid destination"
	case StatusInvalidPayload:
		return "invalid payload"
	case StatusBufferTooSmall:
		return "buffer too small"
	case StatusNotFound:
		return "not found"
	case StatusPermissionDenied:
		return "permission denied"
	case StatusIOError:
		return "io error"
	case StatusStorageUnavailable:
		return "storage unavailable"
	case StatusMemoryAccessFailed:
		return "memory access failed"
	case StatusBridgeUnavailable:
		return "bridge unavailable"
	}
	return fmt.Sprintf("status(%d)", code)
}
