package ward

import "github.com/google/uuid"

// PrincipalRef identifies a player on a ward either by stable UUID or, for
// entries predating the identifier migration, by whatever display name was
// current when the entry was written. Exactly one of the two forms is set.
type PrincipalRef struct {
	ID   uuid.UUID
	Name string
}

func ByID(id uuid.UUID) PrincipalRef    { return PrincipalRef{ID: id} }
func ByName(name string) PrincipalRef   { return PrincipalRef{Name: name} }
func (r PrincipalRef) IsLegacy() bool   { return r.ID == uuid.Nil }
func (r PrincipalRef) IsZero() bool     { return r.ID == uuid.Nil && r.Name == "" }

// ParsePrincipal interprets a stored principal string. Identifier form is the
// canonical 36-char dashed UUID; anything else is a legacy display name.
// Player names are capped well below 36 characters, so the two forms cannot
// collide.
func ParsePrincipal(s string) PrincipalRef {
	if len(s) == 36 {
		if id, err := uuid.Parse(s); err == nil {
			return PrincipalRef{ID: id}
		}
	}
	return PrincipalRef{Name: s}
}

// String renders the storage form: UUID text for identifier refs, the raw
// name for legacy refs. ParsePrincipal(r.String()) round-trips.
func (r PrincipalRef) String() string {
	if r.IsLegacy() {
		return r.Name
	}
	return r.ID.String()
}
