package binfs

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/DanikLP1/binaryfs/internal/codec"
	"github.com/DanikLP1/binaryfs/internal/fserrors"
	"github.com/DanikLP1/binaryfs/internal/locator"
	"github.com/DanikLP1/binaryfs/internal/logging"
	"github.com/DanikLP1/binaryfs/internal/storage"
)

// Locate returns the locator a write to name would produce, without
// writing anything.
func (s *Service) Locate(name string) (string, error) {
	path, err := s.store.Locate(name)
	if err != nil {
		return "", err
	}
	return locator.FromPath(path).String(), nil
}

// Write stores req.Payload under req.Name in the private root, either
// replacing the destination or appending to it, and returns the file
// locator of the destination. On error the destination is left as it
// was before the call.
func (s *Service) Write(ctx context.Context, req WriteRequest) (string, error) {
	opCounter("write").Inc()
	log := logging.FromContext(ctx, s.Logger).With(slog.String("name", req.Name), slog.Bool("append", req.Append))

	loc, n, err := s.write(ctx, req)
	if err != nil {
		errCounter("write").Inc()
		log.Warn("write.fail", "err", err)
		return "", err
	}
	writeBytes.Add(int(n))
	log.Debug("write.ok", "locator", loc, "bytes", n)
	return loc, nil
}

func (s *Service) write(ctx context.Context, req WriteRequest) (string, int64, error) {
	payload := req.Payload
	if req.Compressed {
		if req.OriginalSize < 0 || req.OriginalSize > math.MaxInt32 {
			return "", 0, fmt.Errorf("write %s: %w: original size %d", req.Name, fserrors.ErrInvalidPayload, req.OriginalSize)
		}
		out, err := codec.DecompressLZ4(payload, int(req.OriginalSize))
		if err != nil {
			return "", 0, fmt.Errorf("write %s: %w: %w", req.Name, fserrors.ErrInvalidPayload, err)
		}
		payload = out
	}

	path, n, err := s.store.Put(ctx, req.Name, bytes.NewReader(payload), storage.PutOpts{Append: req.Append})
	if err != nil {
		return "", 0, fserrors.Classify("write "+req.Name, err)
	}
	return locator.FromPath(path).String(), n, nil
}
