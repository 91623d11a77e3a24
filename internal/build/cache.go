package build

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const (
	cachedBinaryName      = "template.bin"
	cachedDiagnosticsName = "diagnostics.json"
)

// ArtifactCache keeps built template binaries on disk, keyed by the hash of
// the module they were built from, with LRU eviction and a TTL.
type ArtifactCache struct {
	dir         string
	entries     map[string]*cacheEntry
	mutex       sync.Mutex
	maxSize     int64
	currentSize int64
	ttl         time.Duration
	// LRU list with sentinel head and tail
	head *cacheEntry
	tail *cacheEntry

	hits      int64
	misses    int64
	evictions int64
}

type cacheEntry struct {
	key         string
	size        int64
	createdAt   time.Time
	accessedAt  time.Time
	diagnostics []Diagnostic

	prev *cacheEntry
	next *cacheEntry
}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Entries   int
	Size      int64
	MaxSize   int64
	Hits      int64
	Misses    int64
	Evictions int64
}

// NewArtifactCache creates a cache rooted at dir. A non-positive ttl never
// expires entries.
func NewArtifactCache(dir string, maxSize int64, ttl time.Duration) (*ArtifactCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	cache := &ArtifactCache{
		dir:     dir,
		entries: make(map[string]*cacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
		head:    &cacheEntry{},
		tail:    &cacheEntry{},
	}
	cache.head.next = cache.tail
	cache.tail.prev = cache.head
	return cache, nil
}

// Key hashes a module's files. File order does not matter.
func Key(files map[string][]byte) string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		fmt.Fprintf(h, "%s\x00%d\x00", name, len(files[name]))
		h.Write(files[name])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Dir returns the cache root.
func (c *ArtifactCache) Dir() string {
	return c.dir
}

func (c *ArtifactCache) binaryPath(key string) string {
	return filepath.Join(c.dir, key, cachedBinaryName)
}

// Get returns the cached binary for key and the warnings recorded when it
// was built. Binaries left on disk by an earlier process are adopted.
func (c *ArtifactCache) Get(key string) (string, []Diagnostic, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		entry, ok = c.adopt(key)
		if !ok {
			atomic.AddInt64(&c.misses, 1)
			return "", nil, false
		}
	}

	if c.expired(entry) {
		c.remove(entry)
		atomic.AddInt64(&c.misses, 1)
		return "", nil, false
	}
	if _, err := os.Stat(c.binaryPath(key)); err != nil {
		c.unlink(entry)
		atomic.AddInt64(&c.misses, 1)
		return "", nil, false
	}

	c.moveToFront(entry)
	entry.accessedAt = time.Now()
	atomic.AddInt64(&c.hits, 1)
	return c.binaryPath(key), entry.diagnostics, true
}

// adopt loads an entry from disk. Mutex must be held.
func (c *ArtifactCache) adopt(key string) (*cacheEntry, bool) {
	info, err := os.Stat(c.binaryPath(key))
	if err != nil {
		return nil, false
	}

	entry := &cacheEntry{
		key:        key,
		size:       info.Size(),
		createdAt:  info.ModTime(),
		accessedAt: time.Now(),
	}
	if data, err := os.ReadFile(filepath.Join(c.dir, key, cachedDiagnosticsName)); err == nil {
		_ = json.Unmarshal(data, &entry.diagnostics)
	}

	c.evictIfNeeded(entry.size)
	c.entries[key] = entry
	c.currentSize += entry.size
	c.addToFront(entry)
	return entry, true
}

// Load adopts every entry already on disk and returns how many were found.
func (c *ArtifactCache) Load() (int, error) {
	dirs, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	n := 0
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		if _, ok := c.entries[d.Name()]; ok {
			n++
			continue
		}
		if _, ok := c.adopt(d.Name()); ok {
			n++
		}
	}
	return n, nil
}

// Put moves the binary at binPath into the cache and returns its new path.
func (c *ArtifactCache) Put(key, binPath string, diagnostics []Diagnostic) (string, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if existing, ok := c.entries[key]; ok {
		c.remove(existing)
	}

	entryDir := filepath.Join(c.dir, key)
	if err := os.MkdirAll(entryDir, 0o755); err != nil {
		return "", fmt.Errorf("creating cache entry: %w", err)
	}
	dst := c.binaryPath(key)
	if err := moveFile(binPath, dst); err != nil {
		return "", fmt.Errorf("caching binary: %w", err)
	}
	if len(diagnostics) > 0 {
		data, err := json.Marshal(diagnostics)
		if err == nil {
			_ = os.WriteFile(filepath.Join(entryDir, cachedDiagnosticsName), data, 0o644)
		}
	}

	info, err := os.Stat(dst)
	if err != nil {
		return "", err
	}

	c.evictIfNeeded(info.Size())

	now := time.Now()
	entry := &cacheEntry{
		key:         key,
		size:        info.Size(),
		createdAt:   now,
		accessedAt:  now,
		diagnostics: diagnostics,
	}
	c.entries[key] = entry
	c.currentSize += entry.size
	c.addToFront(entry)
	return dst, nil
}

// Stats returns the current counters.
func (c *ArtifactCache) Stats() CacheStats {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return CacheStats{
		Entries:   len(c.entries),
		Size:      c.currentSize,
		MaxSize:   c.maxSize,
		Hits:      atomic.LoadInt64(&c.hits),
		Misses:    atomic.LoadInt64(&c.misses),
		Evictions: atomic.LoadInt64(&c.evictions),
	}
}

// HitRate returns hits / lookups, or 0 before the first lookup.
func (c *ArtifactCache) HitRate() float64 {
	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)
	if hits+misses == 0 {
		return 0.0
	}
	return float64(hits) / float64(hits+misses)
}

// Clear removes every entry from memory and disk.
func (c *ArtifactCache) Clear() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	var firstErr error
	for _, entry := range c.entries {
		if err := os.RemoveAll(filepath.Join(c.dir, entry.key)); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.entries = make(map[string]*cacheEntry)
	c.currentSize = 0
	c.head.next = c.tail
	c.tail.prev = c.head
	return firstErr
}

func (c *ArtifactCache) expired(entry *cacheEntry) bool {
	return c.ttl > 0 && time.Since(entry.createdAt) > c.ttl
}

// evictIfNeeded drops least recently used entries until newSize fits.
// A non-positive maxSize disables eviction. Mutex must be held.
func (c *ArtifactCache) evictIfNeeded(newSize int64) {
	if c.maxSize <= 0 {
		return
	}
	for c.currentSize+newSize > c.maxSize && c.tail.prev != c.head {
		c.remove(c.tail.prev)
		atomic.AddInt64(&c.evictions, 1)
	}
}

// remove drops an entry and its files. Mutex must be held.
func (c *ArtifactCache) remove(entry *cacheEntry) {
	c.unlink(entry)
	_ = os.RemoveAll(filepath.Join(c.dir, entry.key))
}

func (c *ArtifactCache) unlink(entry *cacheEntry) {
	c.removeFromList(entry)
	delete(c.entries, entry.key)
	c.currentSize -= entry.size
}

func (c *ArtifactCache) addToFront(entry *cacheEntry) {
	entry.prev = c.head
	entry.next = c.head.next
	c.head.next.prev = entry
	c.head.next = entry
}

func (c *ArtifactCache) removeFromList(entry *cacheEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
}

func (c *ArtifactCache) moveToFront(entry *cacheEntry) {
	c.removeFromList(entry)
	c.addToFront(entry)
}

// moveFile renames src to dst, copying when they are on different devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
