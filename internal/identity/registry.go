package identity

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"sync"

	"booklib/internal/bookfile"
	"booklib/internal/database"
	"booklib/internal/logging"
)

// Store persists content identities.
type Store interface {
	LoadFileInfos(ctx context.Context) ([]database.FileInfo, error)
	SaveFileInfos(ctx context.Context, upserts []database.FileInfo, deletes []int64) error
}

// Registry maps files to stable numeric ids and remembers the size and
// modification time each file had when it was last checked. Changes are kept
// in memory until Flush.
type Registry struct {
	mu        sync.Mutex
	store     Store
	resources fs.FS

	byKey    map[string]*database.FileInfo
	byID     map[int64]*database.FileInfo
	children map[int64]map[int64]struct{}
	nextID   int64

	dirty   map[int64]struct{}
	removed map[int64]struct{}
}

// NewRegistry creates an empty registry backed by store. Resource keys are
// resolved against resources.
func NewRegistry(store Store, resources fs.FS) *Registry {
	r := &Registry{store: store, resources: resources}
	r.reset()
	return r
}

func (r *Registry) reset() {
	r.byKey = make(map[string]*database.FileInfo)
	r.byID = make(map[int64]*database.FileInfo)
	r.children = make(map[int64]map[int64]struct{})
	r.nextID = 1
	r.dirty = make(map[int64]struct{})
	r.removed = make(map[int64]struct{})
}

// Load replaces the in-memory state with the persisted identities.
func (r *Registry) Load(ctx context.Context) error {
	infos, err := r.store.LoadFileInfos(ctx)
	if err != nil {
		return fmt.Errorf("load content identities: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.reset()
	for i := range infos {
		fi := infos[i]
		r.put(&fi)
		if fi.ID >= r.nextID {
			r.nextID = fi.ID + 1
		}
	}
	logging.Debug("Loaded %d content identities", len(infos))
	return nil
}

func (r *Registry) put(fi *database.FileInfo) {
	r.byKey[fi.Key] = fi
	r.byID[fi.ID] = fi
	if fi.ParentID > 0 {
		set := r.children[fi.ParentID]
		if set == nil {
			set = make(map[int64]struct{})
			r.children[fi.ParentID] = set
		}
		set[fi.ID] = struct{}{}
	}
}

// ID returns the stable id of f, allocating one if f has never been seen.
func (r *Registry) ID(f *bookfile.File) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.idLocked(f).ID
}

func (r *Registry) idLocked(f *bookfile.File) *database.FileInfo {
	if fi, ok := r.byKey[f.Key()]; ok {
		return fi
	}

	fi := &database.FileInfo{ID: r.nextID, Key: f.Key()}
	r.nextID++
	if f.Kind() == bookfile.KindArchiveEntry {
		fi.ParentID = r.idLocked(f.PhysicalFile()).ID
	}
	r.put(fi)
	r.dirty[fi.ID] = struct{}{}
	delete(r.removed, fi.ID)
	return fi
}

// Known reports whether f already has a recorded identity.
func (r *Registry) Known(f *bookfile.File) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byKey[f.Key()]
	return ok
}

// File returns the file recorded under id.
func (r *Registry) File(id int64) (*bookfile.File, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fi, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return bookfile.ParseKey(fi.Key, r.resources), true
}

// Check reports whether f is unchanged since it was last recorded. Archive
// entries are judged by their archive. A changed or unknown file has its
// record updated and keeps reporting changed until the next Flush.
// With processChildren set, records of archive entries that no longer exist
// in a changed archive are evicted.
func (r *Registry) Check(f *bookfile.File, processChildren bool) bool {
	physical := f.PhysicalFile()
	if physical == nil {
		return true
	}

	info, err := physical.Stat()
	if err != nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	fi := r.idLocked(physical)
	modTime := info.ModTime.UnixNano()
	_, fresh := r.dirty[fi.ID]
	if !fresh && fi.Size == info.Size && fi.ModTime == modTime {
		return true
	}

	fi.Size = info.Size
	fi.ModTime = modTime
	r.dirty[fi.ID] = struct{}{}

	if processChildren && physical.IsArchive() {
		r.pruneChildrenLocked(physical, fi.ID)
	}
	return false
}

func (r *Registry) pruneChildrenLocked(archive *bookfile.File, parentID int64) {
	kids := r.children[parentID]
	if len(kids) == 0 {
		return
	}

	present := make(map[string]struct{})
	if entries, err := archive.Children(); err == nil {
		for _, e := range entries {
			present[e.Key()] = struct{}{}
		}
	}

	for id := range kids {
		fi := r.byID[id]
		if fi == nil {
			continue
		}
		if _, ok := present[fi.Key]; !ok {
			r.evictLocked(fi)
		}
	}
}

// Evict drops the record of f together with any child records.
func (r *Registry) Evict(f *bookfile.File) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if fi, ok := r.byKey[f.Key()]; ok {
		r.evictLocked(fi)
	}
}

func (r *Registry) evictLocked(fi *database.FileInfo) {
	for id := range r.children[fi.ID] {
		if child := r.byID[id]; child != nil {
			r.evictLocked(child)
		}
	}
	delete(r.children, fi.ID)
	if fi.ParentID > 0 {
		delete(r.children[fi.ParentID], fi.ID)
	}
	delete(r.byKey, fi.Key)
	delete(r.byID, fi.ID)
	delete(r.dirty, fi.ID)
	r.removed[fi.ID] = struct{}{}
}

// ArchiveEntries lists the entries of an archive. Entries recorded under an
// archive that is unchanged are served from the registry without opening it.
func (r *Registry) ArchiveEntries(archive *bookfile.File, unchanged bool) ([]*bookfile.File, error) {
	if unchanged {
		r.mu.Lock()
		parent, ok := r.byKey[archive.Key()]
		var cached []*bookfile.File
		if ok {
			for id := range r.children[parent.ID] {
				if fi := r.byID[id]; fi != nil {
					cached = append(cached, bookfile.ParseKey(fi.Key, r.resources))
				}
			}
		}
		r.mu.Unlock()
		if len(cached) > 0 {
			sortByKey(cached)
			return cached, nil
		}
	}

	entries, err := archive.Children()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		r.idLocked(e)
	}
	return entries, nil
}

// Flush persists every change since the last flush in one store call.
func (r *Registry) Flush(ctx context.Context) error {
	r.mu.Lock()
	upserts := make([]database.FileInfo, 0, len(r.dirty))
	for id := range r.dirty {
		if fi := r.byID[id]; fi != nil {
			upserts = append(upserts, *fi)
		}
	}
	deletes := make([]int64, 0, len(r.removed))
	for id := range r.removed {
		deletes = append(deletes, id)
	}
	r.mu.Unlock()

	if len(upserts) == 0 && len(deletes) == 0 {
		return nil
	}

	sortInfos(upserts)
	if err := r.store.SaveFileInfos(ctx, upserts, deletes); err != nil {
		return fmt.Errorf("flush content identities: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, fi := range upserts {
		if cur := r.byID[fi.ID]; cur != nil && *cur == fi {
			delete(r.dirty, fi.ID)
		}
	}
	for _, id := range deletes {
		delete(r.removed, id)
	}
	logging.Debug("Flushed %d content identities, removed %d", len(upserts), len(deletes))
	return nil
}

// Len returns the number of recorded identities.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

func sortByKey(files []*bookfile.File) {
	sort.Slice(files, func(i, j int) bool { return files[i].Key() < files[j].Key() })
}

func sortInfos(infos []database.FileInfo) {
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
}
