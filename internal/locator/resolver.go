package locator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/DanikLP1/binaryfs/internal/db"
	"github.com/DanikLP1/binaryfs/internal/fserrors"
	"github.com/DanikLP1/binaryfs/internal/logging"
)

// Handle is a resolved locator: the backing file plus, for content
// references, the provider record.
type Handle struct {
	Locator  Locator
	Path     string
	Document *db.DocumentMeta
}

// Entry is one row of a metadata query.
type Entry struct {
	DisplayName string
	MimeType    string
	Size        int64
	Path        string
}

// Open opens the backing file for reading. Anything but a regular file
// is ErrNotFound, matching Query; it is checked before opening so a
// FIFO never blocks the call.
func (h Handle) Open() (*os.File, error) {
	fi, err := os.Stat(h.Path)
	if err != nil {
		return nil, fserrors.Classify("open "+h.Locator.String(), err)
	}
	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("open %s: %w: not a regular file", h.Locator.String(), fserrors.ErrNotFound)
	}
	f, err := os.Open(h.Path)
	if err != nil {
		return nil, fserrors.Classify("open "+h.Locator.String(), err)
	}
	return f, nil
}

// Resolver holds no state of its own. Content references are looked up
// in the provider database, which may be nil when the host exposes no
// provider; every content locator is then unresolvable.
type Resolver struct {
	db     *db.DB
	Logger *slog.Logger
}

func NewResolver(database *db.DB, logger *slog.Logger) *Resolver {
	return &Resolver{db: database, Logger: logging.OrDefault(logger)}
}

func (r *Resolver) Resolve(ctx context.Context, raw string) (Handle, error) {
	loc, err := Parse(raw)
	if err != nil {
		return Handle{}, err
	}

	switch loc.Scheme {
	case SchemeFile:
		return Handle{Locator: loc, Path: loc.Path}, nil

	case SchemeContent:
		if r.db == nil {
			return Handle{}, fmt.Errorf("resolve %s: %w: no content provider", raw, fserrors.ErrNotFound)
		}
		doc, err := r.db.GetDocument(ctx, loc.Authority, loc.ID)
		if errors.Is(err, db.ErrNotFound) {
			return Handle{}, fmt.Errorf("resolve %s: %w", raw, fserrors.ErrNotFound)
		}
		if err != nil {
			return Handle{}, fmt.Errorf("resolve %s: %w: %w", raw, fserrors.ErrIO, err)
		}
		return Handle{Locator: loc, Path: doc.Path, Document: doc}, nil
	}
	return Handle{}, invalid(raw, "unsupported scheme")
}

// Query is the zero-byte metadata query: it reports the entries
// currently backing h without reading any content. An entry whose
// backing file is missing or not a regular file is skipped.
func (r *Resolver) Query(ctx context.Context, h Handle) ([]Entry, error) {
	switch h.Locator.Scheme {
	case SchemeFile:
		e, ok, err := statEntry(h.Path, filepath.Base(h.Path), "")
		if err != nil || !ok {
			return nil, err
		}
		return []Entry{e}, nil

	case SchemeContent:
		if r.db == nil {
			return nil, nil
		}
		var out []Entry
		_, err := r.db.QueryDocuments(ctx, h.Locator.Authority, h.Locator.ID, func(d db.DocumentMeta) error {
			e, ok, err := statEntry(d.Path, d.DisplayName, d.MimeType)
			if err != nil {
				return err
			}
			if ok {
				out = append(out, e)
			}
			return nil
		})
		if err != nil {
			return nil, fserrors.Classify("query "+h.Locator.String(), err)
		}
		return out, nil
	}
	return nil, invalid(h.Locator.String(), "unsupported scheme")
}

func statEntry(path, name, mime string) (Entry, bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if fserrors.IsAbsent(err) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fserrors.Classify("stat "+path, err)
	}
	if !fi.Mode().IsRegular() {
		return Entry{}, false, nil
	}
	return Entry{DisplayName: name, MimeType: mime, Size: fi.Size(), Path: path}, true, nil
}
