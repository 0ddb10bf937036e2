// Package players maintains the identity cache: the latest known mapping
// between player UUIDs and display names, in both directions. The cache is
// bulk-populated from a directory at startup and refreshed opportunistically
// as players are seen; entries are overwritten, never deleted, during a run.
package players

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Directory enumerates known (uuid, name) pairs. Enumeration may be large;
// implementations stream via the callback. Returning an error from the
// callback stops enumeration early.
type Directory interface {
	Enumerate(ctx context.Context, fn func(id uuid.UUID, name string) error) error
}

// Cache is safe for concurrent use: the bulk-population task may still be
// writing while lookups read.
type Cache struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]string
	byName map[string]uuid.UUID // folded name -> id
}

func NewCache() *Cache {
	return &Cache{
		byID:   make(map[uuid.UUID]string),
		byName: make(map[string]uuid.UUID),
	}
}

// Put records the latest mapping in both directions. Names are matched
// case-insensitively on lookup; the raw name is preserved for display.
func (c *Cache) Put(id uuid.UUID, name string) {
	if id == uuid.Nil || name == "" {
		return
	}
	c.mu.Lock()
	c.byID[id] = name
	c.byName[foldName(name)] = id
	c.mu.Unlock()
}

func (c *Cache) NameByID(id uuid.UUID) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.byID[id]
	return name, ok
}

func (c *Cache) IDByName(name string) (uuid.UUID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byName[foldName(name)]
	return id, ok
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

func foldName(name string) string { return strings.ToLower(name) }

// BulkLoad streams the directory into the cache and, when profiles is
// non-nil, pushes each identity into the shared profile cache. A directory
// failure leaves the cache partially populated and returns the count loaded
// so far with the error; callers surface it as a startup warning, not a
// fatal condition.
func (c *Cache) BulkLoad(ctx context.Context, dir Directory, profiles *Profiles) (int, error) {
	n := 0
	err := dir.Enumerate(ctx, func(id uuid.UUID, name string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.Put(id, name)
		profiles.Put(id, name)
		n++
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("player directory: %w", err)
	}
	return n, nil
}
