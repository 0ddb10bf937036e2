// Package wardindex maintains the per-world alias index: a denormalized
// alias -> ward-id mapping layered over the authoritative store. The store
// is the source of truth and can be mutated behind the index's back, so the
// index treats its own entries as hints and prunes the stale ones
// destructively the first time a lookup touches them.
package wardindex

import (
	"context"
	"errors"
	"sync"

	"wardstone.gg/internal/ward"
)

type Index struct {
	store ward.Store

	// OnEvict, when set, observes every stale id removed by a lookup. Set it
	// before the index is shared; it runs outside the world lock.
	OnEvict func(world, alias, id string)

	mu     sync.RWMutex
	worlds map[string]*worldAliases
}

// worldAliases serializes all mutation of one world's alias map; lookups in
// different worlds never contend.
type worldAliases struct {
	mu      sync.Mutex
	byAlias map[string][]string
}

func New(store ward.Store) *Index {
	return &Index{
		store:  store,
		worlds: make(map[string]*worldAliases),
	}
}

// RebuildWorld replaces the world's alias map wholesale from a store
// snapshot. Incremental rebuild is deliberately not offered: after an
// unknown gap in history only a full recompute is trustworthy.
func (ix *Index) RebuildWorld(world string, snapshot []ward.Ward) {
	byAlias := make(map[string][]string)
	for _, w := range snapshot {
		if w.Alias == "" {
			continue
		}
		byAlias[w.Alias] = append(byAlias[w.Alias], w.ID)
	}

	ix.mu.Lock()
	ix.worlds[world] = &worldAliases{byAlias: byAlias}
	ix.mu.Unlock()
}

// DropWorld forgets a world's aliases entirely (world removed from config).
func (ix *Index) DropWorld(world string) {
	ix.mu.Lock()
	delete(ix.worlds, world)
	ix.mu.Unlock()
}

func (ix *Index) world(world string) (*worldAliases, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	wa, ok := ix.worlds[world]
	return wa, ok
}

// Worlds returns the indexed world ids.
func (ix *Index) Worlds() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]string, 0, len(ix.worlds))
	for w := range ix.worlds {
		out = append(out, w)
	}
	return out
}

// Resolve looks a token up in one world. Identifier lookups are exact and
// take precedence: a live ward whose id equals the token is returned as the
// sole result even if other wards carry the token as an alias. Otherwise the
// token is treated as an alias and every indexed id is re-checked against
// the store; ids that no longer exist are evicted permanently. An empty,
// nil-error result means no match; an unknown world is an error.
func (ix *Index) Resolve(ctx context.Context, world, token string) ([]ward.Ward, error) {
	w, err := ix.store.Get(ctx, world, token)
	switch {
	case err == nil:
		return []ward.Ward{w}, nil
	case errors.Is(err, ward.ErrWorldUnknown):
		return nil, err
	case errors.Is(err, ward.ErrNotFound):
		// Fall through to the alias path.
	default:
		return nil, err
	}

	wa, ok := ix.world(world)
	if !ok {
		return nil, ward.ErrWorldUnknown
	}
	return ix.liveByAlias(ctx, world, wa, token)
}

// AliasExistsAnywhere reports whether any live ward in any indexed world
// still carries the alias, pruning stale entries along the way. Creation
// policy uses it to decide whether a name is taken.
func (ix *Index) AliasExistsAnywhere(ctx context.Context, alias string) (bool, error) {
	for _, world := range ix.Worlds() {
		wa, ok := ix.world(world)
		if !ok {
			continue // dropped concurrently
		}
		live, err := ix.liveByAlias(ctx, world, wa, alias)
		if err != nil {
			return false, err
		}
		if len(live) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// liveByAlias prunes the alias's id list against the store and returns the
// surviving wards in retained order. Eviction is destructive: once an id is
// observed stale it never reappears unless a rebuild or Record puts it back.
func (ix *Index) liveByAlias(ctx context.Context, world string, wa *worldAliases, alias string) ([]ward.Ward, error) {
	out, evicted, err := wa.prune(ctx, ix.store, world, alias)
	if ix.OnEvict != nil {
		for _, id := range evicted {
			ix.OnEvict(world, alias, id)
		}
	}
	return out, err
}

// prune re-checks every id under the world lock, dropping the ones the store
// no longer has.
func (wa *worldAliases) prune(ctx context.Context, store ward.Store, world, alias string) ([]ward.Ward, []string, error) {
	wa.mu.Lock()
	defer wa.mu.Unlock()

	ids := wa.byAlias[alias]
	if len(ids) == 0 {
		return nil, nil, nil
	}

	kept := make([]string, 0, len(ids))
	var (
		out     []ward.Ward
		evicted []string
	)
	for i, id := range ids {
		w, err := store.Get(ctx, world, id)
		switch {
		case err == nil:
			kept = append(kept, id)
			out = append(out, w)
		case errors.Is(err, ward.ErrNotFound), errors.Is(err, ward.ErrWorldUnknown):
			evicted = append(evicted, id)
		default:
			// Store failure: keep the not-yet-checked tail and surface the
			// error. Everything already pruned stays pruned.
			kept = append(kept, ids[i:]...)
			wa.byAlias[alias] = kept
			return nil, evicted, err
		}
	}

	if len(kept) == 0 {
		delete(wa.byAlias, alias)
	} else {
		wa.byAlias[alias] = kept
	}
	return out, evicted, nil
}

// Record registers an alias for a ward id, creating the world entry on
// demand. Hosts call it when a ward is created or renamed.
func (ix *Index) Record(world, alias, id string) {
	if alias == "" || id == "" {
		return
	}
	ix.mu.Lock()
	wa, ok := ix.worlds[world]
	if !ok {
		wa = &worldAliases{byAlias: make(map[string][]string)}
		ix.worlds[world] = wa
	}
	ix.mu.Unlock()

	wa.mu.Lock()
	defer wa.mu.Unlock()
	for _, have := range wa.byAlias[alias] {
		if have == id {
			return
		}
	}
	wa.byAlias[alias] = append(wa.byAlias[alias], id)
}

// Forget removes one id from an alias's list. Hosts call it when a ward is
// removed or renamed away; forgetting an absent entry is a no-op.
func (ix *Index) Forget(world, alias, id string) {
	wa, ok := ix.world(world)
	if !ok {
		return
	}
	wa.mu.Lock()
	defer wa.mu.Unlock()
	ids := wa.byAlias[alias]
	for i, have := range ids {
		if have == id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(wa.byAlias, alias)
	} else {
		wa.byAlias[alias] = ids
	}
}

// Dump copies one world's alias map for inspection. Tests and the admin
// surface use it; nil means the world is not indexed.
func (ix *Index) Dump(world string) map[string][]string {
	wa, ok := ix.world(world)
	if !ok {
		return nil
	}
	wa.mu.Lock()
	defer wa.mu.Unlock()
	out := make(map[string][]string, len(wa.byAlias))
	for alias, ids := range wa.byAlias {
		out[alias] = append([]string(nil), ids...)
	}
	return out
}

// Stats summarizes index size for the ops surface.
type Stats struct {
	Worlds  int `json:"worlds"`
	Aliases int `json:"aliases"`
	IDs     int `json:"ids"`
}

func (ix *Index) Stats() Stats {
	var s Stats
	ix.mu.RLock()
	worlds := make([]*worldAliases, 0, len(ix.worlds))
	for _, wa := range ix.worlds {
		worlds = append(worlds, wa)
	}
	ix.mu.RUnlock()

	s.Worlds = len(worlds)
	for _, wa := range worlds {
		wa.mu.Lock()
		s.Aliases += len(wa.byAlias)
		for _, ids := range wa.byAlias {
			s.IDs += len(ids)
		}
		wa.mu.Unlock()
	}
	return s
}
