package ward

import (
	"testing"

	"github.com/google/uuid"
)

func TestParsePrincipal(t *testing.T) {
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")

	r := ParsePrincipal(id.String())
	if r.IsLegacy() {
		t.Fatalf("expected identifier form, got legacy %q", r.Name)
	}
	if r.ID != id {
		t.Fatalf("parsed id mismatch: %s", r.ID)
	}

	r = ParsePrincipal("Notch")
	if !r.IsLegacy() {
		t.Fatalf("expected legacy form for plain name")
	}
	if r.Name != "Notch" {
		t.Fatalf("legacy name mismatch: %q", r.Name)
	}

	// 36 chars but not a UUID stays a name.
	long := "abcdefghijklmnopqrstuvwxyz0123456789"
	if len(long) != 36 {
		t.Fatalf("fixture length: %d", len(long))
	}
	if !ParsePrincipal(long).IsLegacy() {
		t.Fatalf("non-UUID 36-char string should be a legacy name")
	}
}

func TestPrincipalRoundTrip(t *testing.T) {
	refs := []PrincipalRef{
		ByID(uuid.MustParse("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")),
		ByName("Steve"),
	}
	for _, r := range refs {
		got := ParsePrincipal(r.String())
		if got != r {
			t.Fatalf("round trip changed ref: %#v -> %#v", r, got)
		}
	}
}

func TestWardOwnership(t *testing.T) {
	owner := uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001")
	member := uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000002")
	w := Ward{
		ID:      NewID(Pos{X: 10, Y: 64, Z: -3}),
		Owners:  []PrincipalRef{ByID(owner), ByName("OldTimer")},
		Members: []PrincipalRef{ByID(member)},
	}
	if w.ID != "ws10x64y-3z" {
		t.Fatalf("unexpected id: %s", w.ID)
	}
	if !w.IsOwner(owner) {
		t.Fatalf("expected owner match")
	}
	if w.IsOwner(member) {
		t.Fatalf("member must not match as owner")
	}
	if !w.HasLegacyPrincipals() {
		t.Fatalf("legacy owner should be detected")
	}
}

func TestWardCloneIsDeep(t *testing.T) {
	w := Ward{
		ID:     "ws1",
		Owners: []PrincipalRef{ByName("A")},
	}
	c := w.Clone()
	c.Owners[0] = ByName("B")
	if w.Owners[0].Name != "A" {
		t.Fatalf("clone aliased the owners slice")
	}
}
