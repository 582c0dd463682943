// Package assets resolves entries across a stack of GRF archives, the way
// the RO client layers patch archives over data.grf.
package assets

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/Faultbox/midgard-vat/pkg/encoding"
	"github.com/Faultbox/midgard-vat/pkg/grf"
)

// Archives is an ordered set of GRF archives. Later archives take priority.
type Archives struct {
	archives []*grf.Archive
	cache    *Cache
	mu       sync.RWMutex
}

// Open opens every archive in paths. On failure the already opened ones are
// closed again.
func Open(paths ...string) (*Archives, error) {
	if len(paths) == 0 {
		return nil, errors.New("no archives given")
	}
	a := &Archives{cache: NewCache()}
	for _, p := range paths {
		archive, err := grf.Open(p)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("opening archive %s: %w", p, err)
		}
		a.archives = append(a.archives, archive)
	}
	return a, nil
}

// Read returns an entry from the highest priority archive holding it.
func (a *Archives) Read(entry string) ([]byte, error) {
	key := encoding.NormalizeGRFPath(entry)
	if data, ok := a.cache.Get(key); ok {
		return data, nil
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	for i := len(a.archives) - 1; i >= 0; i-- {
		data, err := a.archives[i].Read(entry)
		if errors.Is(err, grf.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		a.cache.Set(key, data)
		return data, nil
	}
	return nil, fmt.Errorf("%w: %s", grf.ErrNotFound, entry)
}

// Models lists the RSM entries of all archives, sorted and without
// duplicates.
func (a *Archives) Models() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, archive := range a.archives {
		for _, name := range archive.List() {
			if !strings.EqualFold(path.Ext(strings.ReplaceAll(name, `\`, "/")), ".rsm") {
				continue
			}
			key := encoding.NormalizeGRFPath(name)
			if !seen[key] {
				seen[key] = true
				out = append(out, name)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Stats returns cache hits and misses.
func (a *Archives) Stats() (hits, misses int) {
	return a.cache.Stats()
}

// Close closes all archives.
func (a *Archives) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for _, archive := range a.archives {
		errs = append(errs, archive.Close())
	}
	a.archives = nil
	a.cache.Clear()
	return errors.Join(errs...)
}

// Cache keeps decompressed entries by normalized name.
type Cache struct {
	data map[string][]byte
	mu   sync.RWMutex

	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string][]byte),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return data, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
}

// Clear empties the cache and resets its counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
