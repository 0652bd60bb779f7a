package storage

import (
	"context"
	"io"
)

type Storage struct {
	driver StorageDriver
}

func NewWithDriver(d StorageDriver) *Storage {
	return &Storage{driver: d}
}

func (s *Storage) Locate(name string) (string, error) {
	return s.driver.Locate(Name(name))
}

// Put streams r into name and returns the destination path. On any
// failure the session is aborted.
func (s *Storage) Put(ctx context.Context, name string, r io.Reader, opts PutOpts) (string, int64, error) {
	path, err := s.driver.Locate(Name(name))
	if err != nil {
		return "", 0, err
	}
	ws, err := s.driver.BeginWrite(ctx, Name(name), opts)
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(ws.Writer(), r)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		_ = ws.Abort(ctx)
		return "", 0, err
	}
	if err := ws.Commit(ctx); err != nil {
		return "", 0, err
	}
	return path, n, nil
}

func (s *Storage) Stat(ctx context.Context, name string) (int64, bool, error) {
	return s.driver.Stat(ctx, Name(name))
}

func (s *Storage) Delete(ctx context.Context, name string) error {
	return s.driver.Delete(ctx, Name(name))
}
