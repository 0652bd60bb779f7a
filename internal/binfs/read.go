package binfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/DanikLP1/binaryfs/internal/codec"
	"github.com/DanikLP1/binaryfs/internal/fserrors"
	"github.com/DanikLP1/binaryfs/internal/logging"
)

// Read returns the bytes of req.Locator in [Offset, Offset+ChunkSize),
// or everything from Offset on when ReadAll is set. An offset equal to
// the resource length yields an empty result; an offset past the end
// fails with ErrInvalidRange instead of reading from the wrong place.
func (s *Service) Read(ctx context.Context, req ReadRequest) (ReadResult, error) {
	opCounter("read").Inc()
	res, err := s.read(ctx, req)
	if err != nil {
		errCounter("read").Inc()
		logging.FromContext(ctx, s.Logger).Debug("read.fail", "locator", req.Locator, "offset", req.Offset, "chunk", req.ChunkSize, "err", err)
		return ReadResult{}, err
	}
	readBytes.Add(len(res.Data))
	return res, nil
}

func (s *Service) read(ctx context.Context, req ReadRequest) (ReadResult, error) {
	if req.Offset < 0 || req.ChunkSize < 0 {
		return ReadResult{}, fmt.Errorf("read offset=%d chunk=%d: %w", req.Offset, req.ChunkSize, fserrors.ErrInvalidRange)
	}
	h, err := s.resolver.Resolve(ctx, req.Locator)
	if err != nil {
		return ReadResult{}, err
	}
	f, err := h.Open()
	if err != nil {
		return ReadResult{}, err
	}
	defer f.Close()

	remaining, err := skip(f, req.Offset)
	if err != nil {
		return ReadResult{}, fmt.Errorf("read %s: %w", req.Locator, err)
	}
	if err := ctx.Err(); err != nil {
		return ReadResult{}, err
	}

	var data []byte
	if req.ReadAll {
		data, err = io.ReadAll(f)
		if err != nil {
			return ReadResult{}, fserrors.Classify("read "+req.Locator, err)
		}
	} else {
		data, err = readChunk(f, req.ChunkSize, remaining)
		if err != nil {
			return ReadResult{}, fserrors.Classify("read "+req.Locator, err)
		}
	}

	if !req.Compress {
		return ReadResult{Data: data}, nil
	}
	out, compressed, err := codec.MaybeCompress(data)
	if err != nil {
		return ReadResult{}, fmt.Errorf("read %s: %w: %w", req.Locator, fserrors.ErrIO, err)
	}
	return ReadResult{Data: out, Compressed: compressed}, nil
}

// skip advances r by exactly n bytes and returns how many bytes are
// left when that is known (-1 otherwise). Seekable sources are checked
// against their size first; plain streams are drained and the count
// verified.
func skip(r io.Reader, n int64) (int64, error) {
	if f, ok := r.(*os.File); ok {
		if fi, err := f.Stat(); err == nil && fi.Mode().IsRegular() {
			size := fi.Size()
			if n > size {
				return 0, fmt.Errorf("offset %d past end %d: %w", n, size, fserrors.ErrInvalidRange)
			}
			if _, err := f.Seek(n, io.SeekStart); err != nil {
				return 0, fserrors.Classify("seek", err)
			}
			return size - n, nil
		}
	}
	if n == 0 {
		return -1, nil
	}
	skipped, err := io.CopyN(io.Discard, r, n)
	if errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("skipped %d of %d bytes: %w", skipped, n, fserrors.ErrInvalidRange)
	}
	if err != nil {
		return 0, fserrors.Classify("skip", err)
	}
	return -1, nil
}

// readChunk fills at most chunk bytes and returns only what was read.
// When the remaining length is known the buffer never exceeds it.
func readChunk(r io.Reader, chunk, remaining int64) ([]byte, error) {
	size := chunk
	if remaining >= 0 && remaining < size {
		size = remaining
	}
	if size == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, size)
	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}
