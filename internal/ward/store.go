package ward

import (
	"context"
	"errors"
)

var (
	// ErrWorldUnknown means the requested world has no authoritative store.
	// Fatal to the calling operation, unlike an empty resolution.
	ErrWorldUnknown = errors.New("unknown world")

	// ErrNotFound means the world exists but carries no such ward.
	ErrNotFound = errors.New("ward not found")
)

// Store is the authoritative ward store. Implementations may be mutated by
// actors outside this subsystem (admin tooling writes the same database), so
// consumers treat the store as the source of truth and their own views as
// caches.
type Store interface {
	// Get returns the live ward with the given id, ErrNotFound if absent,
	// ErrWorldUnknown if the world itself is not known to the store.
	Get(ctx context.Context, world, id string) (Ward, error)

	// List returns a snapshot of every ward in the world, or ErrWorldUnknown.
	List(ctx context.Context, world string) ([]Ward, error)

	// Put persists the ward, replacing any prior record with the same
	// world+id. The world is created implicitly if new.
	Put(ctx context.Context, w Ward) error

	// Delete removes the ward. Removing an absent ward is not an error.
	Delete(ctx context.Context, world, id string) error

	// Worlds lists every world known to the store.
	Worlds(ctx context.Context) ([]string, error)
}
