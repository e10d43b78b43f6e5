package bookfile

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"booklib/internal/filesystem"
)

// Kind distinguishes the storage backing a File.
type Kind int

const (
	// KindPhysical is a regular file or directory on disk.
	KindPhysical Kind = iota
	// KindArchiveEntry is an entry inside a ZIP archive on disk.
	KindArchiveEntry
	// KindResource is a file inside an embedded resource filesystem.
	KindResource
)

const (
	// EntrySeparator joins an archive path and an entry name in a key.
	EntrySeparator = "!/"
	// ResourcePrefix marks keys that refer to embedded resources.
	ResourcePrefix = "resource:"
)

var (
	// ErrNotDeletable is returned when deleting a file that has no physical backing of its own.
	ErrNotDeletable = errors.New("file cannot be deleted")
	// ErrNoSuchEntry is returned when an archive does not contain the requested entry.
	ErrNoSuchEntry = errors.New("archive entry not found")
)

// File is a reference to a storage location that may hold a book.
// Files are immutable values; equality is defined by Key.
type File struct {
	kind      Kind
	path      string // physical path, archive path, or resource name
	entry     string // entry name inside the archive
	resources fs.FS
}

// Physical returns a File for a path on disk. Relative paths are made absolute.
func Physical(p string) *File {
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	return &File{kind: KindPhysical, path: filepath.Clean(p)}
}

// Entry returns a File for a named entry inside the archive.
func Entry(archive *File, name string) *File {
	return &File{kind: KindArchiveEntry, path: archive.path, entry: strings.TrimPrefix(name, "/")}
}

// Resource returns a File for a named file inside fsys.
func Resource(fsys fs.FS, name string) *File {
	return &File{kind: KindResource, path: name, resources: fsys}
}

// ParseKey reverses Key. Resource keys are bound to the given filesystem.
func ParseKey(key string, resources fs.FS) *File {
	if name, ok := strings.CutPrefix(key, ResourcePrefix); ok {
		return Resource(resources, name)
	}
	if archive, entry, ok := strings.Cut(key, EntrySeparator); ok {
		return &File{kind: KindArchiveEntry, path: archive, entry: entry}
	}
	return &File{kind: KindPhysical, path: key}
}

// Kind returns the storage kind of the file.
func (f *File) Kind() Kind { return f.kind }

// Path returns the on-disk path of the file or of its archive, or the resource name.
func (f *File) Path() string { return f.path }

// EntryName returns the archive entry name, empty for non-entries.
func (f *File) EntryName() string { return f.entry }

// Key returns the stable string identity of the file.
func (f *File) Key() string {
	switch f.kind {
	case KindArchiveEntry:
		return f.path + EntrySeparator + f.entry
	case KindResource:
		return ResourcePrefix + f.path
	default:
		return f.path
	}
}

func (f *File) String() string { return f.Key() }

// Equal reports whether both files refer to the same location.
func (f *File) Equal(other *File) bool {
	if f == nil || other == nil {
		return f == other
	}
	return f.Key() == other.Key()
}

// ShortName returns the last path element.
func (f *File) ShortName() string {
	switch f.kind {
	case KindArchiveEntry:
		return path.Base(f.entry)
	case KindResource:
		return path.Base(f.path)
	default:
		return filepath.Base(f.path)
	}
}

// LongName returns the full human-readable name used for display and search.
func (f *File) LongName() string {
	if f.kind == KindArchiveEntry {
		return f.path + "/" + f.entry
	}
	return f.path
}

// Extension returns the lower-cased extension without the dot.
func (f *File) Extension() string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(f.ShortName())), ".")
}

// IsArchive reports whether the file is a physical ZIP container.
func (f *File) IsArchive() bool {
	return f.kind == KindPhysical && f.Extension() == "zip"
}

// IsDirectory reports whether the file is a directory on disk.
func (f *File) IsDirectory() bool {
	if f.kind != KindPhysical {
		return false
	}
	info, err := filesystem.StatWithRetry(f.path, filesystem.DefaultRetryConfig())
	return err == nil && info.IsDir()
}

// PhysicalFile returns the on-disk file holding this file's bytes, or nil for resources.
func (f *File) PhysicalFile() *File {
	switch f.kind {
	case KindPhysical:
		return f
	case KindArchiveEntry:
		return &File{kind: KindPhysical, path: f.path}
	default:
		return nil
	}
}

// Parent returns the containing directory or archive, or nil for resources.
func (f *File) Parent() *File {
	switch f.kind {
	case KindPhysical:
		dir := filepath.Dir(f.path)
		if dir == f.path {
			return nil
		}
		return &File{kind: KindPhysical, path: dir}
	case KindArchiveEntry:
		return f.PhysicalFile()
	default:
		return nil
	}
}

// Info describes the identity-relevant attributes of a file.
type Info struct {
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// Stat returns size and modification time.
func (f *File) Stat() (Info, error) {
	switch f.kind {
	case KindPhysical:
		info, err := filesystem.StatWithRetry(f.path, filesystem.DefaultRetryConfig())
		if err != nil {
			return Info{}, err
		}
		return Info{Size: info.Size(), ModTime: info.ModTime(), IsDir: info.IsDir()}, nil
	case KindArchiveEntry:
		var out Info
		err := f.withEntry(func(zf *zip.File) error {
			out = Info{Size: int64(zf.UncompressedSize64), ModTime: zf.Modified}
			return nil
		})
		return out, err
	default:
		if f.resources == nil {
			return Info{}, fs.ErrNotExist
		}
		info, err := fs.Stat(f.resources, f.path)
		if err != nil {
			return Info{}, err
		}
		return Info{Size: info.Size(), ModTime: info.ModTime(), IsDir: info.IsDir()}, nil
	}
}

// Exists reports whether the file can currently be reached.
func (f *File) Exists() bool {
	_, err := f.Stat()
	return err == nil
}

// Open returns a reader over the file contents.
func (f *File) Open() (io.ReadCloser, error) {
	switch f.kind {
	case KindPhysical:
		return filesystem.OpenWithRetry(f.path, filesystem.DefaultRetryConfig())
	case KindArchiveEntry:
		zr, err := zip.OpenReader(f.path)
		if err != nil {
			return nil, err
		}
		zf := findEntry(&zr.Reader, f.entry)
		if zf == nil {
			_ = zr.Close()
			return nil, fmt.Errorf("%s: %w", f.Key(), ErrNoSuchEntry)
		}
		rc, err := zf.Open()
		if err != nil {
			_ = zr.Close()
			return nil, err
		}
		return &entryReader{ReadCloser: rc, archive: zr}, nil
	default:
		if f.resources == nil {
			return nil, fs.ErrNotExist
		}
		return f.resources.Open(f.path)
	}
}

// ReadAll returns the complete file contents.
func (f *File) ReadAll() ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Children lists directory entries or archive entries, sorted by name.
// Other files have no children.
func (f *File) Children() ([]*File, error) {
	if f.kind != KindPhysical {
		return nil, nil
	}

	if f.IsArchive() {
		zr, err := zip.OpenReader(f.path)
		if err != nil {
			return nil, err
		}
		defer zr.Close()

		var children []*File
		for _, zf := range zr.File {
			if zf.FileInfo().IsDir() {
				continue
			}
			children = append(children, Entry(f, zf.Name))
		}
		sort.Slice(children, func(i, j int) bool { return children[i].entry < children[j].entry })
		return children, nil
	}

	entries, err := filesystem.ReadDirWithRetry(f.path, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, err
	}
	children := make([]*File, 0, len(entries))
	for _, e := range entries {
		children = append(children, &File{kind: KindPhysical, path: filepath.Join(f.path, e.Name())})
	}
	return children, nil
}

// Delete removes the file from disk. Only physical files can be deleted.
func (f *File) Delete() error {
	if f.kind != KindPhysical {
		return fmt.Errorf("%s: %w", f.Key(), ErrNotDeletable)
	}
	return os.Remove(f.path)
}

func (f *File) withEntry(fn func(*zip.File) error) error {
	zr, err := zip.OpenReader(f.path)
	if err != nil {
		return err
	}
	defer zr.Close()

	zf := findEntry(&zr.Reader, f.entry)
	if zf == nil {
		return fmt.Errorf("%s: %w", f.Key(), ErrNoSuchEntry)
	}
	return fn(zf)
}

func findEntry(zr *zip.Reader, name string) *zip.File {
	for _, zf := range zr.File {
		if zf.Name == name {
			return zf
		}
	}
	return nil
}

type entryReader struct {
	io.ReadCloser
	archive *zip.ReadCloser
}

func (r *entryReader) Close() error {
	return errors.Join(r.ReadCloser.Close(), r.archive.Close())
}
