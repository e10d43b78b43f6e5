package bookfile

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()

	out, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(out)
	for name, body := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())
}

func TestKeyRoundTrip(t *testing.T) {
	t.Parallel()

	resources := fstest.MapFS{"help/MiniHelp.en.fb2": {Data: []byte("x")}}
	archive := Physical("/books/set.zip")

	tests := []struct {
		name string
		file *File
		key  string
		kind Kind
	}{
		{name: "physical", file: Physical("/books/a.fb2"), key: "/books/a.fb2", kind: KindPhysical},
		{name: "entry", file: Entry(archive, "inner/b.fb2"), key: "/books/set.zip!/inner/b.fb2", kind: KindArchiveEntry},
		{name: "resource", file: Resource(resources, "help/MiniHelp.en.fb2"), key: "resource:help/MiniHelp.en.fb2", kind: KindResource},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.key, tt.file.Key())
			parsed := ParseKey(tt.key, resources)
			assert.Equal(t, tt.kind, parsed.Kind())
			assert.True(t, parsed.Equal(tt.file))
		})
	}
}

func TestNames(t *testing.T) {
	t.Parallel()

	archive := Physical("/books/Set.ZIP")
	entry := Entry(archive, "dir/Novel.FB2")

	assert.Equal(t, "Set.ZIP", archive.ShortName())
	assert.Equal(t, "zip", archive.Extension())
	assert.True(t, archive.IsArchive())

	assert.Equal(t, "Novel.FB2", entry.ShortName())
	assert.Equal(t, "fb2", entry.Extension())
	assert.Equal(t, "/books/Set.ZIP/dir/Novel.FB2", entry.LongName())
	assert.False(t, entry.IsArchive())
	assert.True(t, entry.PhysicalFile().Equal(archive))
	assert.True(t, entry.Parent().Equal(archive))

	assert.Equal(t, "/books", archive.Parent().Path())
}

func TestPhysicalStatOpenDelete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.fb2")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	f := Physical(path)
	assert.True(t, f.Exists())
	assert.False(t, f.IsDirectory())
	assert.True(t, Physical(dir).IsDirectory())

	info, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)

	data, err := f.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, f.Delete())
	assert.False(t, f.Exists())
}

func TestDirectoryChildren(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.fb2"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.epub"), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	children, err := Physical(dir).Children()
	require.NoError(t, err)
	require.Len(t, children, 3)
	assert.Equal(t, "a.epub", children[0].ShortName())
	assert.Equal(t, "b.fb2", children[1].ShortName())
	assert.Equal(t, "sub", children[2].ShortName())
}

func TestArchiveEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "set.zip")
	writeZip(t, path, map[string]string{
		"two.fb2":       "second",
		"one.fb2":       "first!",
		"nested/x.epub": "x",
	})

	archive := Physical(path)
	children, err := archive.Children()
	require.NoError(t, err)
	require.Len(t, children, 3)
	assert.Equal(t, "nested/x.epub", children[0].EntryName())
	assert.Equal(t, "one.fb2", children[1].EntryName())

	info, err := children[1].Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(6), info.Size)

	data, err := children[1].ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "first!", string(data))

	missing := Entry(archive, "missing.fb2")
	assert.False(t, missing.Exists())
	_, err = missing.Open()
	assert.ErrorIs(t, err, ErrNoSuchEntry)

	assert.ErrorIs(t, children[0].Delete(), ErrNotDeletable)
}

func TestResource(t *testing.T) {
	t.Parallel()

	resources := fstest.MapFS{"data/help.fb2": {Data: []byte("help")}}
	f := Resource(resources, "data/help.fb2")

	assert.True(t, f.Exists())
	assert.Nil(t, f.PhysicalFile())
	assert.Nil(t, f.Parent())

	data, err := f.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "help", string(data))

	assert.False(t, Resource(resources, "nope.fb2").Exists())
	assert.False(t, Resource(nil, "data/help.fb2").Exists())
}
