package hls

import (
	"log/slog"
	"os"
	"sync"
	"time"
)

// Entry is the in-memory record for one cached transcode.
type Entry struct {
	Key            string
	Dir            string
	CreatedAt      time.Time
	LastAccessedAt time.Time

	// Complete is evaluated against the on-disk playlist on every Get;
	// it is never persisted.
	Complete bool
}

// Cache maps cache keys to on-disk work directories. Eviction is FIFO
// by insertion order, not LRU: a completed transcode is as useful later
// as it is now, and first-in wins protects popular playlists from a
// burst of novel items. LastAccessedAt is recorded but does not drive
// eviction.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*Entry
	order      []string // FIFO queue of keys, oldest first
	maxEntries int
	maxAge     time.Duration
	logger     *slog.Logger
}

// NewCache creates a cache with the given size cap and per-entry TTL.
func NewCache(maxEntries int, maxAge time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{
		entries:    make(map[string]*Entry),
		maxEntries: maxEntries,
		maxAge:     maxAge,
		logger:     logger,
	}
}

// Get returns the entry for key if its work directory still exists and
// the entry has not outlived the TTL. Entries whose directory vanished
// out-of-band or whose age exceeds the TTL are evicted and reported
// absent. Completeness of the on-disk playlist is re-evaluated on every
// call; an incomplete entry is returned with Complete=false so the
// caller can decide between reusing a running job and starting over.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return Entry{}, false
	}
	dir := e.Dir
	createdAt := e.CreatedAt
	c.mu.Unlock()

	// Filesystem checks happen outside the lock.
	if _, err := os.Stat(dir); err != nil {
		c.Remove(key)
		return Entry{}, false
	}
	if time.Since(createdAt) > c.maxAge {
		c.Remove(key)
		return Entry{}, false
	}
	complete := playlistComplete(dir)

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok = c.entries[key]
	if !ok {
		return Entry{}, false
	}
	e.LastAccessedAt = time.Now()
	e.Complete = complete
	return *e, true
}

// Put records an entry for key. If the key was already present its
// queue position is discarded and the entry re-enters at the tail with
// a fresh creation time; the old work directory is deleted only when it
// differs from the new one (re-putting the same directory is how a
// finished job refreshes its entry). When the registry exceeds the size
// cap, the head of the queue is evicted.
func (c *Cache) Put(key, dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.removeFromOrder(key)
		if old.Dir != dir {
			c.deleteDirAsync(old.Dir)
		}
	}

	now := time.Now()
	c.entries[key] = &Entry{
		Key:            key,
		Dir:            dir,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	c.order = append(c.order, key)

	for len(c.order) > c.maxEntries {
		victim := c.order[0]
		c.evictLocked(victim)
	}
}

// Remove explicitly evicts the entry for key, deleting its work
// directory in the background.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictLocked(key)
}

// SweepExpired evicts entries older than the TTL and entries whose work
// directory has vanished. Returns the number of evicted entries.
func (c *Cache) SweepExpired() (int, error) {
	c.mu.Lock()
	type candidate struct {
		key string
		dir string
		age time.Duration
	}
	candidates := make([]candidate, 0, len(c.entries))
	for key, e := range c.entries {
		candidates = append(candidates, candidate{key: key, dir: e.Dir, age: time.Since(e.CreatedAt)})
	}
	c.mu.Unlock()

	evicted := 0
	for _, cand := range candidates {
		expired := cand.age > c.maxAge
		if !expired {
			if _, err := os.Stat(cand.dir); err == nil {
				continue
			}
		}
		c.Remove(cand.key)
		evicted++
	}
	return evicted, nil
}

// Len returns the number of registered entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Keys returns the registered keys in FIFO order, oldest first.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, len(c.order))
	copy(keys, c.order)
	return keys
}

// evictLocked removes the entry and schedules directory deletion.
// Callers must hold c.mu.
func (c *Cache) evictLocked(key string) {
	e, ok := c.entries[key]
	if !ok {
		return
	}
	delete(c.entries, key)
	c.removeFromOrder(key)
	c.deleteDirAsync(e.Dir)
}

// removeFromOrder drops key from the FIFO queue. Callers must hold c.mu.
func (c *Cache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// deleteDirAsync removes a work directory in the background.
// Deletion is best-effort: a missing or undeletable directory must not
// prevent registry progress.
func (c *Cache) deleteDirAsync(dir string) {
	if dir == "" {
		return
	}
	logger := c.logger
	go func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("failed to delete segment directory", "dir", dir, "error", err)
		}
	}()
}
