package fsdriver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/DanikLP1/binaryfs/internal/fserrors"
	"github.com/DanikLP1/binaryfs/internal/storage"
	"github.com/oklog/ulid/v2"
)

const tmpMarker = ".tmp-"

// FS writes into a private storage root owned by the host application.
// The root itself is never created here.
type FS struct {
	Root string
}

func New(root string) *FS {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &FS{Root: filepath.Clean(root)}
}

func (fs *FS) checkRoot() error {
	fi, err := os.Stat(fs.Root)
	if err != nil {
		return fmt.Errorf("root %s: %w: %w", fs.Root, fserrors.ErrStorageUnavailable, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("root %s: %w: not a directory", fs.Root, fserrors.ErrStorageUnavailable)
	}
	return nil
}

func (fs *FS) pathFor(name storage.Name) (dir, final string, err error) {
	s := string(name)
	if s == "" || strings.ContainsRune(s, 0) || strings.HasSuffix(s, "/") ||
		strings.Contains(s, tmpMarker) || !filepath.IsLocal(s) {
		return "", "", fmt.Errorf("name %q: %w", s, fserrors.ErrInvalidDestination)
	}
	final = filepath.Join(fs.Root, filepath.FromSlash(s))
	dir = filepath.Dir(final)
	return dir, final, nil
}

func (fs *FS) Locate(name storage.Name) (string, error) {
	_, final, err := fs.pathFor(name)
	if err != nil {
		return "", err
	}
	if err := fs.checkRoot(); err != nil {
		return "", err
	}
	return final, nil
}

// openRoot opens the private root as an *os.Root; every create, mkdir
// and remove below goes through it and cannot resolve outside the root.
func (fs *FS) openRoot() (*os.Root, error) {
	if err := fs.checkRoot(); err != nil {
		return nil, err
	}
	r, err := os.OpenRoot(fs.Root)
	if err != nil {
		return nil, fmt.Errorf("root %s: %w: %w", fs.Root, fserrors.ErrStorageUnavailable, err)
	}
	return r, nil
}

// prepare walks rel one component at a time, creating missing parent
// directories. A symlink anywhere on the way, a file where a directory
// is needed, or a non-regular destination is ErrInvalidDestination.
func prepare(r *os.Root, rel string) error {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	cur := ""
	for i, p := range parts {
		cur = filepath.Join(cur, p)
		last := i == len(parts)-1

		fi, err := r.Lstat(cur)
		switch {
		case err == nil:
			switch {
			case fi.Mode()&os.ModeSymlink != 0:
				return fmt.Errorf("name %q: %w: %s is a symlink", rel, fserrors.ErrInvalidDestination, cur)
			case !last && !fi.IsDir():
				return fmt.Errorf("name %q: %w: %s is not a directory", rel, fserrors.ErrInvalidDestination, cur)
			case last && !fi.Mode().IsRegular():
				return fmt.Errorf("name %q: %w: not a regular file", rel, fserrors.ErrInvalidDestination)
			}
		case errors.Is(err, os.ErrNotExist):
			if last {
				return nil
			}
			if err := r.Mkdir(cur, 0o755); err != nil && !errors.Is(err, os.ErrExist) {
				return fserrors.Classify("mkdir "+cur, err)
			}
		default:
			return fserrors.Classify("lstat "+cur, err)
		}
	}
	return nil
}

// truncSession stages the payload in a temp file next to the
// destination and renames it over the destination on commit.
type truncSession struct {
	root      *os.Root
	tmpRel    string
	tmpPath   string
	finalPath string
	dirPath   string
	f         *os.File
	written   int64
}

// appendSession writes at the end of the destination and, on abort,
// cuts it back to the size it had before the session started.
type appendSession struct {
	root     *os.Root
	rel      string
	path     string
	f        *os.File
	prevSize int64
	created  bool
	written  int64
}

func (fs *FS) BeginWrite(ctx context.Context, name storage.Name, opts storage.PutOpts) (storage.WriteSession, error) {
	dir, final, err := fs.pathFor(name)
	if err != nil {
		return nil, err
	}
	root, err := fs.openRoot()
	if err != nil {
		return nil, err
	}
	rel := filepath.FromSlash(string(name))
	if err := prepare(root, rel); err != nil {
		_ = root.Close()
		return nil, err
	}

	if opts.Append {
		ws, err := beginAppend(root, rel, final)
		if err != nil {
			_ = root.Close()
			return nil, err
		}
		return ws, nil
	}

	suffix := tmpMarker + ulid.Make().String()
	f, err := root.OpenFile(rel+suffix, os.O_CREATE|os.O_TRUNC|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		_ = root.Close()
		return nil, fserrors.Classify("create "+final+suffix, err)
	}
	return &truncSession{
		root: root, tmpRel: rel + suffix, tmpPath: final + suffix,
		finalPath: final, dirPath: dir, f: f,
	}, nil
}

func beginAppend(root *os.Root, rel, path string) (*appendSession, error) {
	created := false
	var prev int64
	fi, err := root.Lstat(rel)
	switch {
	case err == nil:
		prev = fi.Size()
	case errors.Is(err, os.ErrNotExist):
		created = true
	default:
		return nil, fserrors.Classify("stat "+path, err)
	}

	f, err := root.OpenFile(rel, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fserrors.Classify("open "+path, err)
	}
	return &appendSession{root: root, rel: rel, path: path, f: f, prevSize: prev, created: created}, nil
}

func (ws *truncSession) Writer() io.Writer { return ws }

func (ws *truncSession) Write(p []byte) (int, error) {
	n, err := ws.f.Write(p)
	ws.written += int64(n)
	if err != nil {
		return n, fserrors.Classify("write "+ws.tmpPath, err)
	}
	return n, nil
}

func (ws *truncSession) Commit(ctx context.Context) error {
	defer ws.root.Close()
	if err := ws.f.Sync(); err != nil {
		_ = ws.f.Close()
		_ = ws.root.Remove(ws.tmpRel)
		return fserrors.Classify("sync "+ws.tmpPath, err)
	}
	if err := ws.f.Close(); err != nil {
		_ = ws.root.Remove(ws.tmpRel)
		return fserrors.Classify("close "+ws.tmpPath, err)
	}
	// parents were checked symlink-free by prepare; rename does not
	// follow a link in the final component
	if err := os.Rename(ws.tmpPath, ws.finalPath); err != nil {
		_ = ws.root.Remove(ws.tmpRel)
		return fserrors.Classify("rename "+ws.finalPath, err)
	}

	// best effort: persist the rename
	if dir, err := os.Open(ws.dirPath); err == nil {
		_ = dir.Sync()
		_ = dir.Close()
	}
	return nil
}

func (ws *truncSession) Abort(ctx context.Context) error {
	defer ws.root.Close()
	_ = ws.f.Close()
	return ws.root.Remove(ws.tmpRel)
}

func (ws *appendSession) Writer() io.Writer { return ws }

func (ws *appendSession) Write(p []byte) (int, error) {
	n, err := ws.f.Write(p)
	ws.written += int64(n)
	if err != nil {
		return n, fserrors.Classify("append "+ws.path, err)
	}
	return n, nil
}

func (ws *appendSession) Commit(ctx context.Context) error {
	defer ws.root.Close()
	if err := ws.f.Sync(); err != nil {
		_ = ws.rollback()
		return fserrors.Classify("sync "+ws.path, err)
	}
	if err := ws.f.Close(); err != nil {
		_ = ws.rollback()
		return fserrors.Classify("close "+ws.path, err)
	}
	return nil
}

func (ws *appendSession) Abort(ctx context.Context) error {
	defer ws.root.Close()
	return ws.rollback()
}

// rollback truncates through the open handle, so it acts on the file
// this session opened even if the name was swapped meanwhile.
func (ws *appendSession) rollback() error {
	if ws.created {
		_ = ws.f.Close()
		err := ws.root.Remove(ws.rel)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	err := ws.f.Truncate(ws.prevSize)
	_ = ws.f.Close()
	return err
}

func (fs *FS) Stat(ctx context.Context, name storage.Name) (int64, bool, error) {
	_, final, err := fs.pathFor(name)
	if err != nil {
		return 0, false, err
	}
	root, err := fs.openRoot()
	if err != nil {
		return 0, false, err
	}
	defer root.Close()
	fi, err := root.Stat(filepath.FromSlash(string(name)))
	if err != nil {
		if fserrors.IsAbsent(err) {
			return 0, false, nil
		}
		return 0, false, fserrors.Classify("stat "+final, err)
	}
	return fi.Size(), true, nil
}

func (fs *FS) Delete(ctx context.Context, name storage.Name) error {
	_, final, err := fs.pathFor(name)
	if err != nil {
		return err
	}
	root, err := fs.openRoot()
	if err != nil {
		return err
	}
	defer root.Close()
	err = root.Remove(filepath.FromSlash(string(name)))
	if os.IsNotExist(err) {
		return nil
	}
	return fserrors.Classify("remove "+final, err)
}
