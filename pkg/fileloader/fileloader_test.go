package fileloader

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/the-ox-studio/oxdef-sub002/pkg/oxerrors"
	"github.com/the-ox-studio/oxdef-sub002/pkg/token"
)

type fakeFS struct {
	files      map[string][]byte
	existCalls int32
	downloads  int32
	failExist  bool
	failLoad   bool
}

func newFakeFS(files map[string][]byte) *fakeFS {
	return &fakeFS{files: files}
}

func (f *fakeFS) Exists(ctx context.Context, URL string, _ ...interface{}) (bool, error) {
	atomic.AddInt32(&f.existCalls, 1)
	if f.failExist {
		return false, errors.New("stat failed")
	}
	_, ok := f.files[URL]
	return ok, nil
}

func (f *fakeFS) DownloadWithURL(ctx context.Context, URL string, _ ...interface{}) ([]byte, error) {
	atomic.AddInt32(&f.downloads, 1)
	if f.failLoad {
		return nil, errors.New("read failed")
	}
	content, ok := f.files[URL]
	if !ok {
		return nil, errors.New("not found")
	}
	return content, nil
}

func loc() token.Location { return token.Location{File: "a.ox", Line: 1} }

func TestLoadReadsThroughOnFirstCall(t *testing.T) {
	fs := newFakeFS(map[string][]byte{"/a.ox": []byte("hello")})
	l := New(fs, 0, 0, true)
	content, err := l.Load(context.Background(), "/a.ox", loc())
	require.Nil(t, err)
	require.Equal(t, []byte("hello"), content)
	require.EqualValues(t, 1, fs.downloads)
}

func TestLoadCachesSecondCall(t *testing.T) {
	fs := newFakeFS(map[string][]byte{"/a.ox": []byte("hello")})
	l := New(fs, 0, 0, true)
	_, err := l.Load(context.Background(), "/a.ox", loc())
	require.Nil(t, err)
	_, err = l.Load(context.Background(), "/a.ox", loc())
	require.Nil(t, err)
	require.EqualValues(t, 1, fs.downloads, "second Load should hit cache, not re-download")
	require.True(t, l.Has("/a.ox"))
}

func TestLoadMissingFileReturnsFileNotFound(t *testing.T) {
	fs := newFakeFS(map[string][]byte{})
	l := New(fs, 0, 0, true)
	_, err := l.Load(context.Background(), "/missing.ox", loc())
	require.NotNil(t, err)
	require.Equal(t, oxerrors.FileNotFound, err.Kind)
}

func TestLoadStatErrorReturnsFileNotFound(t *testing.T) {
	fs := newFakeFS(map[string][]byte{"/a.ox": []byte("x")})
	fs.failExist = true
	l := New(fs, 0, 0, true)
	_, err := l.Load(context.Background(), "/a.ox", loc())
	require.NotNil(t, err)
	require.Equal(t, oxerrors.FileNotFound, err.Kind)
}

func TestLoadOversizeFileReturnsFileTooLarge(t *testing.T) {
	fs := newFakeFS(map[string][]byte{"/a.ox": []byte("0123456789")})
	l := New(fs, 5, 0, true)
	_, err := l.Load(context.Background(), "/a.ox", loc())
	require.NotNil(t, err)
	require.Equal(t, oxerrors.FileTooLarge, err.Kind)
}

func TestLoadEvictsLeastRecentlyUsedWhenOverCacheBudget(t *testing.T) {
	fs := newFakeFS(map[string][]byte{
		"/a.ox": []byte("aaaaa"),
		"/b.ox": []byte("bbbbb"),
		"/c.ox": []byte("ccccc"),
	})
	l := New(fs, 0, 10, true)

	_, err := l.Load(context.Background(), "/a.ox", loc())
	require.Nil(t, err)
	_, err = l.Load(context.Background(), "/b.ox", loc())
	require.Nil(t, err)
	require.True(t, l.Has("/a.ox"))
	require.True(t, l.Has("/b.ox"))

	_, err = l.Load(context.Background(), "/c.ox", loc())
	require.Nil(t, err)
	require.False(t, l.Has("/a.ox"), "least recently used entry should be evicted")
	require.True(t, l.Has("/b.ox"))
	require.True(t, l.Has("/c.ox"))
}

func TestLoadTouchingEntryProtectsItFromEviction(t *testing.T) {
	fs := newFakeFS(map[string][]byte{
		"/a.ox": []byte("aaaaa"),
		"/b.ox": []byte("bbbbb"),
		"/c.ox": []byte("ccccc"),
	})
	l := New(fs, 0, 10, true)

	_, err := l.Load(context.Background(), "/a.ox", loc())
	require.Nil(t, err)
	_, err = l.Load(context.Background(), "/b.ox", loc())
	require.Nil(t, err)
	// re-touch /a.ox so /b.ox becomes the least recently used entry
	_, err = l.Load(context.Background(), "/a.ox", loc())
	require.Nil(t, err)

	_, err = l.Load(context.Background(), "/c.ox", loc())
	require.Nil(t, err)
	require.True(t, l.Has("/a.ox"))
	require.False(t, l.Has("/b.ox"))
}

func TestLoadWithEvictionDisabledRejectsOverflowInsteadOfEvicting(t *testing.T) {
	fs := newFakeFS(map[string][]byte{
		"/a.ox": []byte("aaaaa"),
		"/b.ox": []byte("bbbbb"),
	})
	l := New(fs, 0, 8, false)

	_, err := l.Load(context.Background(), "/a.ox", loc())
	require.Nil(t, err)

	_, err = l.Load(context.Background(), "/b.ox", loc())
	require.NotNil(t, err)
	require.Equal(t, oxerrors.FileTooLarge, err.Kind)
	require.True(t, l.Has("/a.ox"), "existing entry must survive a rejected insert")
	require.False(t, l.Has("/b.ox"))
}

func TestInvalidateForcesReload(t *testing.T) {
	fs := newFakeFS(map[string][]byte{"/a.ox": []byte("hello")})
	l := New(fs, 0, 0, true)
	_, err := l.Load(context.Background(), "/a.ox", loc())
	require.Nil(t, err)
	l.Invalidate("/a.ox")
	require.False(t, l.Has("/a.ox"))
	_, err = l.Load(context.Background(), "/a.ox", loc())
	require.Nil(t, err)
	require.EqualValues(t, 2, fs.downloads)
}

func TestClearEmptiesCache(t *testing.T) {
	fs := newFakeFS(map[string][]byte{"/a.ox": []byte("hello")})
	l := New(fs, 0, 0, true)
	_, err := l.Load(context.Background(), "/a.ox", loc())
	require.Nil(t, err)
	l.Clear()
	stats := l.CacheStats()
	require.Equal(t, 0, stats.Entries)
	require.EqualValues(t, 0, stats.TotalBytes)
}

func TestCacheStatsReportsEntriesAndBytes(t *testing.T) {
	fs := newFakeFS(map[string][]byte{"/a.ox": []byte("hello")})
	l := New(fs, 0, 0, true)
	_, err := l.Load(context.Background(), "/a.ox", loc())
	require.Nil(t, err)
	stats := l.CacheStats()
	require.Equal(t, 1, stats.Entries)
	require.EqualValues(t, 5, stats.TotalBytes)
}

func TestCanonicalKeyNormalizesSeparators(t *testing.T) {
	require.Equal(t, CanonicalKey("a/b/c.ox"), CanonicalKey(filepath.Join("a", "b", "c.ox")))
}

func TestCacheStatsTracksHitsAndMisses(t *testing.T) {
	fs := newFakeFS(map[string][]byte{"/a.ox": []byte("hello")})
	l := New(fs, 0, 0, true)

	_, err := l.Load(context.Background(), "/a.ox", loc())
	require.Nil(t, err)
	_, err = l.Load(context.Background(), "/a.ox", loc())
	require.Nil(t, err)
	_, err = l.Load(context.Background(), "/missing.ox", loc())
	require.NotNil(t, err)

	stats := l.CacheStats()
	require.EqualValues(t, 1, stats.Hits)
	require.EqualValues(t, 2, stats.Misses, "both the first load and the failed lookup miss the cache")
}

func TestCacheStatsTracksEvictionCount(t *testing.T) {
	fs := newFakeFS(map[string][]byte{
		"/a.ox": []byte("aaaaa"),
		"/b.ox": []byte("bbbbb"),
		"/c.ox": []byte("ccccc"),
	})
	l := New(fs, 0, 10, true)

	_, err := l.Load(context.Background(), "/a.ox", loc())
	require.Nil(t, err)
	_, err = l.Load(context.Background(), "/b.ox", loc())
	require.Nil(t, err)
	_, err = l.Load(context.Background(), "/c.ox", loc())
	require.Nil(t, err)

	stats := l.CacheStats()
	require.EqualValues(t, 1, stats.EvictionCount)
}
