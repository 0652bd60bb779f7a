package storage

import (
	"context"
	"io"
)

// Name is a destination relative to the private storage root.
type Name string

type PutOpts struct {
	Append bool
}

type StorageDriver interface {
	// Locate maps a name to its absolute path without touching disk
	// beyond checking that the root is usable.
	Locate(name Name) (string, error)
	BeginWrite(ctx context.Context, name Name, opts PutOpts) (WriteSession, error)
	Stat(ctx context.Context, name Name) (size int64, exists bool, err error)
	Delete(ctx context.Context, name Name) error
}

// WriteSession stages bytes for one destination. Commit makes them
// visible; Abort leaves the destination exactly as it was.
type WriteSession interface {
	Writer() io.Writer
	Commit(ctx context.Context) error
	Abort(ctx context.Context) error
}
