package hls

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCacheDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "entry")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	return dir
}

func TestCachePutGet(t *testing.T) {
	cache := NewCache(10, time.Hour, nil)
	dir := newCacheDir(t)

	cache.Put("/a/128_default", dir)

	entry, ok := cache.Get("/a/128_default")
	require.True(t, ok)
	assert.Equal(t, dir, entry.Dir)
	assert.False(t, entry.Complete, "empty directory must not be complete")
}

func TestCacheGetRecomputesCompleteness(t *testing.T) {
	cache := NewCache(10, time.Hour, nil)
	dir := newCacheDir(t)
	cache.Put("/a/128_default", dir)

	entry, ok := cache.Get("/a/128_default")
	require.True(t, ok)
	assert.False(t, entry.Complete)

	// Finish the transcode on disk; the next Get must see it.
	playlist := "#EXTM3U\n#EXTINF:3.0,\nsegment_000.ts\n#EXT-X-ENDLIST\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, PlaylistName), []byte(playlist), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "segment_000.ts"), []byte("x"), 0o644))

	entry, ok = cache.Get("/a/128_default")
	require.True(t, ok)
	assert.True(t, entry.Complete)

	// Delete a referenced segment; completeness must degrade again.
	require.NoError(t, os.Remove(filepath.Join(dir, "segment_000.ts")))
	entry, ok = cache.Get("/a/128_default")
	require.True(t, ok)
	assert.False(t, entry.Complete)
}

func TestCacheGetVanishedDirectory(t *testing.T) {
	cache := NewCache(10, time.Hour, nil)
	dir := newCacheDir(t)
	cache.Put("/a/128_default", dir)

	require.NoError(t, os.RemoveAll(dir))

	_, ok := cache.Get("/a/128_default")
	assert.False(t, ok)
	assert.Zero(t, cache.Len(), "vanished entry must be evicted")
}

func TestCacheGetExpired(t *testing.T) {
	cache := NewCache(10, time.Nanosecond, nil)
	cache.Put("/a/128_default", newCacheDir(t))

	time.Sleep(10 * time.Millisecond)

	_, ok := cache.Get("/a/128_default")
	assert.False(t, ok)
	assert.Zero(t, cache.Len())
}

func TestCacheFIFOEviction(t *testing.T) {
	cache := NewCache(2, time.Hour, nil)

	cache.Put("/a", newCacheDir(t))
	cache.Put("/b", newCacheDir(t))
	cache.Put("/c", newCacheDir(t))

	assert.Equal(t, []string{"/b", "/c"}, cache.Keys(), "oldest entry evicted first")
	_, ok := cache.Get("/a")
	assert.False(t, ok)
}

// Eviction is insertion-ordered, not access-ordered: touching an old
// entry must not protect it.
func TestCacheEvictionIgnoresAccess(t *testing.T) {
	cache := NewCache(2, time.Hour, nil)

	cache.Put("/a", newCacheDir(t))
	cache.Put("/b", newCacheDir(t))

	_, ok := cache.Get("/a")
	require.True(t, ok)

	cache.Put("/c", newCacheDir(t))

	assert.Equal(t, []string{"/b", "/c"}, cache.Keys())
}

func TestCacheRePutSameDirectory(t *testing.T) {
	cache := NewCache(10, time.Hour, nil)
	dir := newCacheDir(t)
	marker := filepath.Join(dir, "segment_000.ts")
	require.NoError(t, os.WriteFile(marker, []byte("x"), 0o644))

	cache.Put("/a", dir)
	cache.Put("/a", dir)

	// Re-putting the same directory must not schedule its deletion.
	time.Sleep(50 * time.Millisecond)
	_, err := os.Stat(marker)
	assert.NoError(t, err)
	assert.Equal(t, 1, cache.Len())
}

func TestCacheRePutMovesToTail(t *testing.T) {
	cache := NewCache(10, time.Hour, nil)

	cache.Put("/a", newCacheDir(t))
	cache.Put("/b", newCacheDir(t))
	cache.Put("/a", newCacheDir(t))

	assert.Equal(t, []string{"/b", "/a"}, cache.Keys())
}

func TestCacheRemoveDeletesDirectory(t *testing.T) {
	cache := NewCache(10, time.Hour, nil)
	dir := newCacheDir(t)
	cache.Put("/a", dir)

	cache.Remove("/a")

	assert.Eventually(t, func() bool {
		_, err := os.Stat(dir)
		return os.IsNotExist(err)
	}, time.Second, 10*time.Millisecond)
}

func TestCacheSweepExpired(t *testing.T) {
	cache := NewCache(10, 50*time.Millisecond, nil)
	fresh := newCacheDir(t)
	vanished := newCacheDir(t)

	cache.Put("/old", newCacheDir(t))
	time.Sleep(80 * time.Millisecond)
	cache.Put("/fresh", fresh)
	cache.Put("/vanished", vanished)
	require.NoError(t, os.RemoveAll(vanished))

	evicted, err := cache.SweepExpired()
	require.NoError(t, err)

	assert.Equal(t, 2, evicted)
	assert.Equal(t, []string{"/fresh"}, cache.Keys())
}
