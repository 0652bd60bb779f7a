package locator_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/DanikLP1/binaryfs/internal/db"
	"github.com/DanikLP1/binaryfs/internal/fserrors"
	"github.com/DanikLP1/binaryfs/internal/locator"
	"github.com/DanikLP1/binaryfs/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		raw  string
		want locator.Locator
	}{
		{"file:///tmp/a.bin", locator.FromPath("/tmp/a.bin")},
		{"file://localhost/tmp/../tmp/a.bin", locator.FromPath("/tmp/a.bin")},
		{"file:///tmp/with%20space.bin", locator.FromPath("/tmp/with space.bin")},
		{"content://com.example.provider/01ARZ3NDEKTSV4RRFFQ69G5FAV", locator.Content("com.example.provider", "01ARZ3NDEKTSV4RRFFQ69G5FAV")},
		{"CONTENT://media/42", locator.Content("media", "42")},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := locator.Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, raw := range []string{
		"",
		"a.bin",
		"/tmp/a.bin",
		"http://example.com/a.bin",
		"content://",
		"content://authority",
		"content://authority/a/b",
		"file://remote/tmp/a.bin",
		"file:relative",
		"file:///tmp/a.bin?x=1",
		"file:///tmp/a\x00.bin",
		"%zz",
	} {
		_, err := locator.Parse(raw)
		assert.ErrorIs(t, err, fserrors.ErrInvalidLocator, "raw=%q", raw)
	}
}

func TestString_RoundTrip(t *testing.T) {
	for _, l := range []locator.Locator{
		locator.FromPath("/data/app/files/a b?.bin"),
		locator.Content("com.example.provider", "01ARZ3NDEKTSV4RRFFQ69G5FAV"),
	} {
		back, err := locator.Parse(l.String())
		require.NoError(t, err)
		assert.Equal(t, l, back)
	}
	assert.Equal(t, "file:///tmp/a.bin", locator.FromPath("/tmp/a.bin").String())
}

func TestResolver_File(t *testing.T) {
	ctx := context.Background()
	r := locator.NewResolver(nil, logging.Discard())

	dir := t.TempDir()
	path := filepath.Join(dir, "a.bin")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o644))

	h, err := r.Resolve(ctx, locator.FromPath(path).String())
	require.NoError(t, err)
	assert.Equal(t, path, h.Path)

	entries, err := r.Query(ctx, h)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(3), entries[0].Size)

	// well-formed but nothing behind it
	h, err = r.Resolve(ctx, locator.FromPath(filepath.Join(dir, "missing")).String())
	require.NoError(t, err)
	entries, err = r.Query(ctx, h)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// directories are not readable content
	h, err = r.Resolve(ctx, locator.FromPath(dir).String())
	require.NoError(t, err)
	entries, err = r.Query(ctx, h)
	require.NoError(t, err)
	assert.Empty(t, entries)
	_, err = h.Open()
	assert.ErrorIs(t, err, fserrors.ErrNotFound)

	// a path through a regular file is absent, not an io error
	h, err = r.Resolve(ctx, locator.FromPath(filepath.Join(path, "child")).String())
	require.NoError(t, err)
	entries, err = r.Query(ctx, h)
	require.NoError(t, err)
	assert.Empty(t, entries)
	_, err = h.Open()
	assert.ErrorIs(t, err, fserrors.ErrNotFound)
}

func TestResolver_Content(t *testing.T) {
	ctx := context.Background()
	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "content.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	r := locator.NewResolver(database, logging.Discard())

	path := filepath.Join(t.TempDir(), "picked.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))
	doc, err := database.CreateDocument(ctx, "com.example.provider", path, "picked.bin", "text/plain", 5)
	require.NoError(t, err)

	raw := locator.Content("com.example.provider", doc.ID).String()
	h, err := r.Resolve(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, path, h.Path)
	require.NotNil(t, h.Document)

	entries, err := r.Query(ctx, h)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "text/plain", entries[0].MimeType)

	// registered but backing file gone
	require.NoError(t, os.Remove(path))
	entries, err = r.Query(ctx, h)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = r.Resolve(ctx, locator.Content("com.example.provider", "nope").String())
	assert.ErrorIs(t, err, fserrors.ErrNotFound)

	_, err = locator.NewResolver(nil, nil).Resolve(ctx, raw)
	assert.ErrorIs(t, err, fserrors.ErrNotFound)
}
