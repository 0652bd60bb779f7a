//go:build linux || darwin

package locator_test

import (
	"context"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/DanikLP1/binaryfs/internal/fserrors"
	"github.com/DanikLP1/binaryfs/internal/locator"
	"github.com/DanikLP1/binaryfs/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleOpen_FIFODoesNotBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipe")
	require.NoError(t, syscall.Mkfifo(path, 0o644))

	r := locator.NewResolver(nil, logging.Discard())
	h, err := r.Resolve(context.Background(), locator.FromPath(path).String())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := h.Open()
		done <- err
	}()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, fserrors.ErrNotFound)
	case <-time.After(5 * time.Second):
		t.Fatal("Open blocked on a FIFO")
	}
}
