// Package keeper owns the runtime state of the ward subsystem: it builds
// the caches, serves resolution and quota queries, runs the pending owner
// migration, and fans events out to the log and the observer feed. All
// collaborators are passed in; nothing here reaches for globals.
package keeper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"wardstone.gg/internal/catalog"
	"wardstone.gg/internal/config"
	"wardstone.gg/internal/limits"
	"wardstone.gg/internal/migrate"
	"wardstone.gg/internal/persistence/eventlog"
	"wardstone.gg/internal/players"
	"wardstone.gg/internal/ward"
	"wardstone.gg/internal/wardindex"
)

// Publisher receives keeper events for live observers. Implementations must
// not block; the observer hub drops on backpressure.
type Publisher interface {
	Publish(v any)
}

type Options struct {
	Log       *log.Logger
	Store     ward.Store
	Directory players.Directory // optional
	Catalog   *catalog.Catalog
	Grants    limits.GrantSource // optional
	Audit     *eventlog.AuditLogger
	Migration *eventlog.MigrationLogger
	Events    Publisher // optional

	// StatePath is where the migration guard persists. Empty keeps the
	// guard in memory only (tools).
	StatePath string

	// Worlds are the configured scopes. Empty falls back to whatever the
	// store knows, which is what the admin CLI wants.
	Worlds []string

	AsyncDirectory bool
}

type Keeper struct {
	log      *log.Logger
	store    ward.Store
	dir      players.Directory
	catalog  *catalog.Catalog
	grants   limits.GrantSource
	index    *wardindex.Index
	cache    *players.Cache
	profiles *players.Profiles

	audit  *eventlog.AuditLogger
	miglog *eventlog.MigrationLogger
	events Publisher

	statePath string
	async     bool
	worlds    []string

	mu         sync.Mutex
	state      config.State
	lastReport *migrate.Report

	dirDone chan struct{}
	dirErr  error
}

func New(opts Options) (*Keeper, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("keeper: nil store")
	}
	if opts.Catalog == nil {
		return nil, fmt.Errorf("keeper: nil catalog")
	}
	st, err := config.LoadState(opts.StatePath)
	if err != nil {
		return nil, fmt.Errorf("keeper: %w", err)
	}
	k := &Keeper{
		log:       opts.Log,
		store:     opts.Store,
		dir:       opts.Directory,
		catalog:   opts.Catalog,
		grants:    opts.Grants,
		cache:     players.NewCache(),
		profiles:  players.NewProfiles(),
		audit:     opts.Audit,
		miglog:    opts.Migration,
		events:    opts.Events,
		statePath: opts.StatePath,
		async:     opts.AsyncDirectory,
		worlds:    append([]string(nil), opts.Worlds...),
		state:     st,
		dirDone:   make(chan struct{}),
	}
	k.index = wardindex.New(opts.Store)
	k.index.OnEvict = k.onEvict
	return k, nil
}

func (k *Keeper) onEvict(world, alias, id string) {
	_ = k.audit.WriteAudit(eventlog.AuditEntry{
		Type: eventlog.EvAliasPruned, World: world, WardID: id, Alias: alias,
	})
	k.publish(eventlog.AuditEntry{
		Type: eventlog.EvAliasPruned, World: world, WardID: id, Alias: alias,
	})
}

func (k *Keeper) publish(v any) {
	if k.events != nil {
		k.events.Publish(v)
	}
}

func (k *Keeper) logf(format string, args ...any) {
	if k.log != nil {
		k.log.Printf(format, args...)
	}
}

// Build constructs the alias index for every configured world and kicks off
// the identity-cache load. The index is complete when Build returns; the
// identity cache may still be loading if async is on. Callers that need the
// cache (the migration) join it via WaitDirectory.
func (k *Keeper) Build(ctx context.Context) error {
	worlds := k.worlds
	if len(worlds) == 0 {
		var err error
		worlds, err = k.store.Worlds(ctx)
		if err != nil {
			return fmt.Errorf("enumerate worlds: %w", err)
		}
		k.worlds = worlds
	}

	if err := k.rebuildWorlds(ctx, worlds); err != nil {
		return err
	}

	if k.async {
		go k.loadDirectory(ctx)
	} else {
		k.loadDirectory(ctx)
	}
	return nil
}

func (k *Keeper) rebuildWorlds(ctx context.Context, worlds []string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, world := range worlds {
		world := world
		g.Go(func() error {
			snap, err := k.store.List(ctx, world)
			if err != nil && !errors.Is(err, ward.ErrWorldUnknown) {
				return fmt.Errorf("list %s: %w", world, err)
			}
			// A configured world the store has no rows for is a known,
			// empty scope.
			k.index.RebuildWorld(world, snap)
			_ = k.audit.WriteAudit(eventlog.AuditEntry{
				Type: eventlog.EvIndexRebuilt, World: world, Wards: len(snap),
			})
			k.publish(eventlog.AuditEntry{
				Type: eventlog.EvIndexRebuilt, World: world, Wards: len(snap),
			})
			return nil
		})
	}
	return g.Wait()
}

// loadDirectory populates the identity cache once. A directory failure is a
// warning, not a startup error: resolution works without it, only legacy
// owner migration degrades (names stay unresolved).
func (k *Keeper) loadDirectory(ctx context.Context) {
	defer close(k.dirDone)
	if k.dir == nil {
		return
	}
	n, err := k.cache.BulkLoad(ctx, k.dir, k.profiles)
	if err != nil {
		k.dirErr = err
		k.logf("player directory load failed after %d entries: %v", n, err)
		return
	}
	k.logf("player directory loaded: %d entries", n)
}

// WaitDirectory blocks until the identity-cache load finishes or the
// context ends. The load error, if any, is informational.
func (k *Keeper) WaitDirectory(ctx context.Context) error {
	select {
	case <-k.dirDone:
		return k.dirErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resolve finds wards in a world by id or alias.
func (k *Keeper) Resolve(ctx context.Context, world, token string) ([]ward.Ward, error) {
	return k.index.Resolve(ctx, world, token)
}

// AliasExistsAnywhere reports whether a live ward anywhere carries the alias.
func (k *Keeper) AliasExistsAnywhere(ctx context.Context, alias string) (bool, error) {
	return k.index.AliasExistsAnywhere(ctx, alias)
}

// RecordAlias registers a new or renamed ward in the index and the audit
// trail.
func (k *Keeper) RecordAlias(world, alias, id string) {
	k.index.Record(world, alias, id)
	_ = k.audit.WriteAudit(eventlog.AuditEntry{
		Type: eventlog.EvWardRecorded, World: world, WardID: id, Alias: alias,
	})
	k.publish(eventlog.AuditEntry{
		Type: eventlog.EvWardRecorded, World: world, WardID: id, Alias: alias,
	})
}

// ForgetAlias removes a ward from the index on removal or rename-away.
func (k *Keeper) ForgetAlias(world, alias, id string) {
	k.index.Forget(world, alias, id)
	_ = k.audit.WriteAudit(eventlog.AuditEntry{
		Type: eventlog.EvWardForgotten, World: world, WardID: id, Alias: alias,
	})
	k.publish(eventlog.AuditEntry{
		Type: eventlog.EvWardForgotten, World: world, WardID: id, Alias: alias,
	})
}

// RebuildCaches recomputes the alias index from the store, one world or all
// configured worlds when world is empty.
func (k *Keeper) RebuildCaches(ctx context.Context, world string) error {
	if world == "" {
		return k.rebuildWorlds(ctx, k.worlds)
	}
	return k.rebuildWorlds(ctx, []string{world})
}

// Limits is the quota surface for one player.
type Limits struct {
	Global   int            `json:"global"`
	PerBlock map[string]int `json:"per_block,omitempty"`
}

// LimitsFor computes the player's global and per-block-type caps from their
// effective grants.
func (k *Keeper) LimitsFor(player uuid.UUID) Limits {
	var grants []string
	if k.grants != nil {
		grants = k.grants.EffectiveGrants(player)
	}
	out := Limits{
		Global:   limits.Global(grants),
		PerBlock: map[string]int{},
	}
	for bt, n := range limits.PerBlockType(grants, k.Catalog()) {
		out.PerBlock[bt.Key] = n
	}
	return out
}

// Identity exposes the identity cache for hosts recording sightings.
func (k *Keeper) Identity() *players.Cache { return k.cache }

// Profiles exposes the TTL profile cache.
func (k *Keeper) Profiles() *players.Profiles { return k.profiles }

// Catalog returns the active block catalog.
func (k *Keeper) Catalog() *catalog.Catalog {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.catalog
}

// ReplaceCatalog swaps in a freshly loaded catalog. Limits computed after
// the swap see the new block types; the alias index is unaffected.
func (k *Keeper) ReplaceCatalog(cat *catalog.Catalog) {
	if cat == nil {
		return
	}
	k.mu.Lock()
	k.catalog = cat
	k.mu.Unlock()
	k.logf("catalog reloaded: %d block types digest=%s", len(cat.Keys), cat.Digest)
}

// Worlds returns the configured scope ids.
func (k *Keeper) Worlds() []string { return append([]string(nil), k.worlds...) }

// DumpIndex exposes one world's alias map for inspection.
func (k *Keeper) DumpIndex(world string) map[string][]string { return k.index.Dump(world) }

// Stats summarizes the keeper for the ops surfaces.
type Stats struct {
	Worlds        []string        `json:"worlds"`
	Index         wardindex.Stats `json:"index"`
	Players       int             `json:"players"`
	Profiles      int             `json:"profiles"`
	CatalogDigest string          `json:"catalog_digest"`
	Migrated      bool            `json:"owners_migrated"`
	DirectoryErr  string          `json:"directory_error,omitempty"`
}

func (k *Keeper) Stats() Stats {
	k.mu.Lock()
	migrated := k.state.OwnersMigrated
	k.mu.Unlock()
	var dirErr string
	select {
	case <-k.dirDone:
		if k.dirErr != nil {
			dirErr = k.dirErr.Error()
		}
	default:
	}
	return Stats{
		Worlds:        k.Worlds(),
		Index:         k.index.Stats(),
		Players:       k.cache.Len(),
		Profiles:      k.profiles.Len(),
		CatalogDigest: k.Catalog().Digest,
		Migrated:      migrated,
		DirectoryErr:  dirErr,
	}
}
