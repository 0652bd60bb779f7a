// Package locator parses the opaque resource strings handed in by
// scripts and resolves them to something the host can open.
//
// Two schemes exist. content://<authority>/<id> names a reference
// registered with the content provider; file://<absolute path> names a
// plain file, and is what writes hand back.
package locator

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/DanikLP1/binaryfs/internal/fserrors"
)

type Scheme string

const (
	SchemeContent Scheme = "content"
	SchemeFile    Scheme = "file"
)

type Locator struct {
	Scheme    Scheme
	Authority string // content only
	ID        string // content only
	Path      string // file only, absolute and clean
}

func invalid(raw, why string) error {
	return fmt.Errorf("locator %q: %w: %s", raw, fserrors.ErrInvalidLocator, why)
}

func Parse(raw string) (Locator, error) {
	if raw == "" {
		return Locator{}, invalid(raw, "empty")
	}
	if strings.ContainsRune(raw, 0) {
		return Locator{}, invalid(raw, "contains NUL")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Locator{}, invalid(raw, err.Error())
	}
	if u.RawQuery != "" || u.Fragment != "" || u.User != nil {
		return Locator{}, invalid(raw, "query, fragment and userinfo are not allowed")
	}

	switch Scheme(strings.ToLower(u.Scheme)) {
	case SchemeContent:
		id := strings.Trim(u.Path, "/")
		if u.Host == "" || id == "" || strings.Contains(id, "/") {
			return Locator{}, invalid(raw, "want content://<authority>/<id>")
		}
		return Locator{Scheme: SchemeContent, Authority: u.Host, ID: id}, nil

	case SchemeFile:
		if u.Host != "" && u.Host != "localhost" {
			return Locator{}, invalid(raw, "remote file host")
		}
		if u.Path == "" || !filepath.IsAbs(u.Path) {
			return Locator{}, invalid(raw, "file path must be absolute")
		}
		return Locator{Scheme: SchemeFile, Path: filepath.Clean(u.Path)}, nil

	case "":
		return Locator{}, invalid(raw, "missing scheme")
	default:
		return Locator{}, invalid(raw, "unsupported scheme "+u.Scheme)
	}
}

// FromPath builds the file locator of an absolute path.
func FromPath(path string) Locator {
	return Locator{Scheme: SchemeFile, Path: filepath.Clean(path)}
}

func Content(authority, id string) Locator {
	return Locator{Scheme: SchemeContent, Authority: authority, ID: id}
}

func (l Locator) String() string {
	switch l.Scheme {
	case SchemeContent:
		return (&url.URL{Scheme: string(SchemeContent), Host: l.Authority, Path: "/" + l.ID}).String()
	case SchemeFile:
		return (&url.URL{Scheme: string(SchemeFile), Path: filepath.ToSlash(l.Path)}).String()
	}
	return ""
}
