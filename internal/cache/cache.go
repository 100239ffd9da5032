// Package cache provides the persistent build cache shared by every build of
// a compiler session.
//
// Entries are keyed by a caller-chosen string (for example the absolute path
// of a source file prefixed with the stage that produced it) and carry the
// SHA256 of their content so callers can detect unchanged inputs across
// sessions. Put only buffers the entry in memory; Commit flushes all buffered
// entries to BoltDB in a single transaction. Get sees buffered entries first.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.etcd.io/bbolt"
)

const (
	// DefaultCacheDir is the default cache directory name
	DefaultCacheDir = ".incr-cache"

	// bucketName is the BoltDB bucket name for cache entries
	bucketName = "entries"
)

// Cache manages persistent build data using BoltDB
type Cache struct {
	db   *bbolt.DB
	root string // Root directory for cache (.incr-cache/)

	mu      sync.Mutex
	pending map[string]*Entry
	hits    int
	misses  int
}

// New creates a new cache instance
// If cacheDir is empty, uses DefaultCacheDir in current working directory
func New(cacheDir string) (*Cache, error) {
	if cacheDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}

		cacheDir = filepath.Join(cwd, DefaultCacheDir)
	}

	// Ensure cache directory exists
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	// Open BoltDB
	dbPath := filepath.Join(cacheDir, "cache.db")
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// Create bucket if it doesn't exist
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}

	return &Cache{
		db:      db,
		root:    cacheDir,
		pending: make(map[string]*Entry),
	}, nil
}

// Close closes the cache database. Uncommitted entries are dropped.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}

	return nil
}

// Root returns the cache directory
func (c *Cache) Root() string {
	return c.root
}

// Get retrieves a cache entry by key
// Returns nil if cache miss
func (c *Cache) Get(key string) (*Entry, error) {
	c.mu.Lock()
	if e, ok := c.pending[key]; ok {
		c.hits++
		c.mu.Unlock()
		return e, nil
	}
	c.mu.Unlock()

	var entry Entry
	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		data := b.Get([]byte(key))
		if data == nil {
			return nil // Cache miss
		}

		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry %s: %w", key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry.Hash == "" {
		c.misses++
		return nil, nil // Cache miss
	}

	c.hits++

	return &entry, nil
}

// Put buffers data under key until the next Commit
func (c *Cache) Put(key string, data []byte) *Entry {
	entry := &Entry{
		Key:       key,
		Hash:      HashBytes(data),
		Size:      int64(len(data)),
		Timestamp: time.Now(),
	}

	c.mu.Lock()
	c.pending[key] = entry
	c.mu.Unlock()

	return entry
}

// Commit flushes buffered entries to BoltDB and returns how many were written
func (c *Cache) Commit() (int, error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]*Entry)
	c.mu.Unlock()

	if len(pending) == 0 {
		return 0, nil
	}

	err := c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		for key, entry := range pending {
			data, err := json.Marshal(entry)
			if err != nil {
				return err
			}

			if err := b.Put([]byte(key), data); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		// Put the entries back unless something newer replaced them
		c.mu.Lock()
		for key, entry := range pending {
			if _, ok := c.pending[key]; !ok {
				c.pending[key] = entry
			}
		}
		c.mu.Unlock()

		return 0, fmt.Errorf("failed to commit cache entries: %w", err)
	}

	return len(pending), nil
}

// MemoryStats describes the buffered entries and lookup counters
func (c *Cache) MemoryStats() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var size int64
	for _, e := range c.pending {
		size += e.Size
	}

	return fmt.Sprintf("pending entries: %d, size: %s, hits: %d, misses: %d",
		len(c.pending), humanize.Bytes(uint64(size)), c.hits, c.misses)
}

// Clear removes all cache entries, buffered and committed
func (c *Cache) Clear() error {
	c.mu.Lock()
	c.pending = make(map[string]*Entry)
	c.mu.Unlock()

	// Clear BoltDB
	err := c.db.Update(func(tx *bbolt.Tx) error {
		return tx.DeleteBucket([]byte(bucketName))
	})
	if err != nil {
		return err
	}

	// Recreate bucket
	return c.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
}

// Stats returns the number of committed entries and their total content size
func (c *Cache) Stats() (int, int64, error) {
	var count int
	var totalSize int64

	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		return b.ForEach(func(_, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}

			count++
			totalSize += entry.Size

			return nil
		})
	})
	if err != nil {
		return 0, 0, err
	}

	return count, totalSize, nil
}
