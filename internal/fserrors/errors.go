// Package fserrors holds the error kinds shared by the resolver, the
// private-root driver, the binary file service and the runtime bridge.
package fserrors

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"
)

var (
	ErrInvalidLocator     = errors.New("invalid locator")
	ErrInvalidRange       = errors.New("invalid range")
	ErrInvalidDestination = errors.New("invalid destination")
	ErrInvalidPayload     = errors.New("invalid payload")
	ErrNotFound           = errors.New("not found")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrIO                 = errors.New("io error")
	ErrBridgeUnavailable  = errors.New("bridge unavailable")
	ErrAlreadyInstalled   = errors.New("bridge already installed")
)

var kinds = []error{
	ErrInvalidLocator,
	ErrInvalidRange,
	ErrInvalidDestination,
	ErrInvalidPayload,
	ErrNotFound,
	ErrPermissionDenied,
	ErrStorageUnavailable,
	ErrIO,
	ErrBridgeUnavailable,
	ErrAlreadyInstalled,
}

// Kind returns the taxonomy sentinel carried by err, or nil if err
// carries none.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Classify attaches a kind to an OS-level error. Errors that already
// carry a kind are returned unchanged.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) != nil {
		return err
	}
	switch {
	case IsAbsent(err):
		return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
	case errors.Is(err, fs.ErrPermission), errors.Is(err, syscall.EROFS):
		return fmt.Errorf("%s: %w: %w", op, ErrPermissionDenied, err)
	case errors.Is(err, os.ErrInvalid):
		return fmt.Errorf("%s: %w: %w", op, ErrInvalidRange, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrIO, err)
	}
}

// IsAbsent reports whether err means nothing exists at the path. A path
// that runs through a regular file (ENOTDIR) counts as absent.
func IsAbsent(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}
