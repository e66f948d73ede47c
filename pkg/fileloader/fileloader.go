// Package fileloader implements the file loader of spec.md §4.12: reads
// and caches `.ox` source files by canonical path, enforcing per-file and
// aggregate size limits with LRU eviction. The per-file limit is checked
// against the byte count actually read, not against a size reported
// before the read.
package fileloader

import (
	"container/list"
	"context"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/viant/afs"

	"github.com/the-ox-studio/oxdef-sub002/pkg/oxerrors"
	"github.com/the-ox-studio/oxdef-sub002/pkg/token"
)

// FileSystem is the subset of afs.Service the loader needs, narrowed so
// tests can substitute a fake without pulling in a real storage backend.
type FileSystem interface {
	Exists(ctx context.Context, URL string, options ...interface{}) (bool, error)
	DownloadWithURL(ctx context.Context, URL string, options ...interface{}) ([]byte, error)
}

// Stats reports the loader's cache occupancy and cumulative activity, per
// spec.md §4.12's `stats() → {hits, misses, cache-size, eviction-count}`.
type Stats struct {
	Entries       int
	TotalBytes    int64
	Hits          int64
	Misses        int64
	EvictionCount int64
}

type entry struct {
	path    string
	content []byte
}

// Loader caches loaded file contents by canonical path (platform
// separators normalized, case-folded on case-insensitive platforms),
// evicting least-recently-used entries once the aggregate byte budget is
// exceeded.
type Loader struct {
	fs FileSystem

	mu             sync.Mutex
	order          *list.List
	elems          map[string]*list.Element
	totalBytes     int64
	maxFileSize    int64
	maxCacheSize   int64
	enableEviction bool
	hits           int64
	misses         int64
	evictions      int64
}

// New builds a Loader backed by fs, enforcing maxFileSize (per-file) and
// maxCacheSize (aggregate) byte budgets. When enableEviction is false,
// an insert that would push the cache over maxCacheSize is rejected with
// a FileTooLarge error instead of evicting older entries to make room.
func New(fs FileSystem, maxFileSize, maxCacheSize int64, enableEviction bool) *Loader {
	return &Loader{
		fs:             fs,
		order:          list.New(),
		elems:          make(map[string]*list.Element),
		maxFileSize:    maxFileSize,
		maxCacheSize:   maxCacheSize,
		enableEviction: enableEviction,
	}
}

// CanonicalKey normalizes a resolved absolute path into the loader's cache
// key: forward slashes, and lower-cased on case-insensitive platforms so
// "Widget.ox" and "widget.ox" collide the way the underlying filesystem
// would treat them.
func CanonicalKey(path string) string {
	key := filepath.ToSlash(path)
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		key = strings.ToLower(key)
	}
	return key
}

// Has reports whether path is currently cached, without touching its
// recency (a pure lookup, not a Load).
func (l *Loader) Has(path string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.elems[CanonicalKey(path)]
	return ok
}

// Load returns path's content, from cache if present, else from the
// filesystem: it checks that path exists, reads it, and rejects the
// content with FileTooLarge if its byte count exceeds maxFileSize. The
// file's size is not obtained before the read, so an oversized file is
// read in full before it is rejected.
func (l *Loader) Load(ctx context.Context, path string, loc token.Location) ([]byte, *oxerrors.Error) {
	key := CanonicalKey(path)

	l.mu.Lock()
	if elem, ok := l.elems[key]; ok {
		l.order.MoveToFront(elem)
		content := elem.Value.(*entry).content
		l.hits++
		l.mu.Unlock()
		return content, nil
	}
	l.misses++
	l.mu.Unlock()

	exists, err := l.fs.Exists(ctx, path)
	if err != nil {
		return nil, oxerrors.New(oxerrors.FileNotFound, loc, "cannot stat %q: %v", path, err)
	}
	if !exists {
		return nil, oxerrors.New(oxerrors.FileNotFound, loc, "file %q does not exist", path)
	}

	content, err := l.fs.DownloadWithURL(ctx, path)
	if err != nil {
		return nil, oxerrors.New(oxerrors.FileNotFound, loc, "cannot read %q: %v", path, err)
	}
	if l.maxFileSize > 0 && int64(len(content)) > l.maxFileSize {
		return nil, oxerrors.New(oxerrors.FileTooLarge, loc,
			"file %q is %d bytes, exceeding the %d byte limit", path, len(content), l.maxFileSize)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// Another goroutine may have loaded and cached path while we were
	// reading it unlocked; prefer its entry over inserting a duplicate.
	if elem, ok := l.elems[key]; ok {
		l.order.MoveToFront(elem)
		return elem.Value.(*entry).content, nil
	}
	if err := l.insertLocked(key, content, loc); err != nil {
		return nil, err
	}
	return content, nil
}

func (l *Loader) insertLocked(key string, content []byte, loc token.Location) *oxerrors.Error {
	if l.maxCacheSize > 0 && !l.enableEviction && l.totalBytes+int64(len(content)) > l.maxCacheSize {
		return oxerrors.New(oxerrors.FileTooLarge, loc,
			"loading %q would grow the cache to %d bytes, exceeding the %d byte budget with eviction disabled",
			key, l.totalBytes+int64(len(content)), l.maxCacheSize)
	}
	elem := l.order.PushFront(&entry{path: key, content: content})
	l.elems[key] = elem
	l.totalBytes += int64(len(content))
	l.evictLocked()
	return nil
}

func (l *Loader) evictLocked() {
	if l.maxCacheSize <= 0 || !l.enableEviction {
		return
	}
	for l.totalBytes > l.maxCacheSize {
		oldest := l.order.Back()
		if oldest == nil {
			return
		}
		l.order.Remove(oldest)
		ev := oldest.Value.(*entry)
		delete(l.elems, ev.path)
		l.totalBytes -= int64(len(ev.content))
		l.evictions++
	}
}

// Invalidate drops path from the cache, if present, so the next Load
// re-reads it from the filesystem.
func (l *Loader) Invalidate(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := CanonicalKey(path)
	elem, ok := l.elems[key]
	if !ok {
		return
	}
	l.order.Remove(elem)
	delete(l.elems, key)
	l.totalBytes -= int64(len(elem.Value.(*entry).content))
}

// Clear empties the cache entirely.
func (l *Loader) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.order.Init()
	l.elems = make(map[string]*list.Element)
	l.totalBytes = 0
}

// CacheStats reports the loader's current occupancy plus its cumulative
// hit/miss/eviction counts since construction (Clear does not reset them;
// they describe the loader's lifetime activity, not its current
// contents).
func (l *Loader) CacheStats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		Entries:       len(l.elems),
		TotalBytes:    l.totalBytes,
		Hits:          l.hits,
		Misses:        l.misses,
		EvictionCount: l.evictions,
	}
}

// AfsAdapter wraps a real afs.Service to satisfy FileSystem, since
// afs.Service's variadic option parameters are typed as storage.Option
// rather than interface{} and Go does not allow a direct assignment
// between differently-typed variadic signatures.
type AfsAdapter struct {
	Service afs.Service
}

func (a AfsAdapter) Exists(ctx context.Context, URL string, _ ...interface{}) (bool, error) {
	return a.Service.Exists(ctx, URL)
}

func (a AfsAdapter) DownloadWithURL(ctx context.Context, URL string, _ ...interface{}) ([]byte, error) {
	return a.Service.DownloadWithURL(ctx, URL)
}

// NewWithAfs builds a Loader backed by a real github.com/viant/afs.Service,
// the abstract-filesystem client the rest of the OX pack (viant-linager)
// uses for reading project files regardless of where they live (local
// disk, S3, GCS, ...).
func NewWithAfs(service afs.Service, maxFileSize, maxCacheSize int64, enableEviction bool) *Loader {
	return New(AfsAdapter{Service: service}, maxFileSize, maxCacheSize, enableEviction)
}
