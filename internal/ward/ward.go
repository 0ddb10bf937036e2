package ward

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Pos is the block position of a ward stone.
type Pos struct {
	X int
	Y int
	Z int
}

func (p Pos) String() string { return fmt.Sprintf("%d,%d,%d", p.X, p.Y, p.Z) }

// Role of a principal on a ward.
const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// Ward is an authoritative protected-area record. The store owns its
// lifecycle; caches only reflect it.
type Ward struct {
	ID        string
	World     string
	Alias     string // user-chosen name, not unique
	BlockType string // catalog key of the ward stone
	Anchor    Pos
	Priority  int
	CreatedAt time.Time

	Owners  []PrincipalRef
	Members []PrincipalRef
}

// NewID derives the region id for a stone placed at anchor. Anchor positions
// are unique per world, so the id is stable across restarts.
func NewID(anchor Pos) string {
	return fmt.Sprintf("ws%dx%dy%dz", anchor.X, anchor.Y, anchor.Z)
}

func (w *Ward) IsOwner(id uuid.UUID) bool {
	for _, r := range w.Owners {
		if !r.IsLegacy() && r.ID == id {
			return true
		}
	}
	return false
}

func (w *Ward) IsMember(id uuid.UUID) bool {
	for _, r := range w.Members {
		if !r.IsLegacy() && r.ID == id {
			return true
		}
	}
	return false
}

// HasLegacyPrincipals reports whether any owner or member entry still uses
// the pre-migration name form.
func (w *Ward) HasLegacyPrincipals() bool {
	for _, r := range w.Owners {
		if r.IsLegacy() {
			return true
		}
	}
	for _, r := range w.Members {
		if r.IsLegacy() {
			return true
		}
	}
	return false
}

// Clone returns a deep copy. Stores hand out clones so callers can mutate
// freely without aliasing authoritative state.
func (w Ward) Clone() Ward {
	c := w
	c.Owners = append([]PrincipalRef(nil), w.Owners...)
	c.Members = append([]PrincipalRef(nil), w.Members...)
	return c
}
