package binfs

import (
	"context"
	"errors"
	"fmt"

	"github.com/DanikLP1/binaryfs/internal/fserrors"
	"github.com/DanikLP1/binaryfs/internal/locator"
	"github.com/DanikLP1/binaryfs/internal/logging"
)

// Exists reports whether raw currently resolves to readable content.
// A well-formed locator with nothing behind it is false, not an error;
// only a malformed locator (or a failing metadata source) errors.
func (s *Service) Exists(ctx context.Context, raw string) (bool, error) {
	opCounter("exists").Inc()
	entries, err := s.query(ctx, raw)
	if errors.Is(err, fserrors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		errCounter("exists").Inc()
		logging.FromContext(ctx, s.Logger).Debug("exists.fail", "locator", raw, "err", err)
		return false, err
	}
	return len(entries) > 0, nil
}

// Stat returns the first entry backing raw, or ErrNotFound.
func (s *Service) Stat(ctx context.Context, raw string) (locator.Entry, error) {
	opCounter("stat").Inc()
	entries, err := s.query(ctx, raw)
	if err != nil {
		errCounter("stat").Inc()
		return locator.Entry{}, err
	}
	if len(entries) == 0 {
		errCounter("stat").Inc()
		return locator.Entry{}, fmt.Errorf("stat %s: %w", raw, fserrors.ErrNotFound)
	}
	return entries[0], nil
}

func (s *Service) query(ctx context.Context, raw string) ([]locator.Entry, error) {
	h, err := s.resolver.Resolve(ctx, raw)
	if err != nil {
		return nil, err
	}
	return s.resolver.Query(ctx, h)
}
