package migrate

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"wardstone.gg/internal/players"
	"wardstone.gg/internal/ward"
	"wardstone.gg/internal/ward/wardtest"
)

var (
	steveID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("steve"))
	alexID  = uuid.NewSHA1(uuid.NameSpaceOID, []byte("alex"))
)

func seededCache() *players.Cache {
	c := players.NewCache()
	c.Put(steveID, "Steve")
	c.Put(alexID, "Alex")
	return c
}

func put(t *testing.T, s *wardtest.Store, w ward.Ward) {
	t.Helper()
	if err := s.Put(context.Background(), w); err != nil {
		t.Fatalf("put %s/%s: %v", w.World, w.ID, err)
	}
}

func TestRunConvertsLegacyPrincipals(t *testing.T) {
	s := wardtest.NewStore("overworld")
	put(t, s, ward.Ward{
		ID: "ws1x1y1z", World: "overworld", BlockType: "LODESTONE",
		Owners:  []ward.PrincipalRef{ward.ByName("steve"), ward.ByID(alexID)},
		Members: []ward.PrincipalRef{ward.ByName("Alex")},
	})

	eng := &Engine{Store: s, Cache: seededCache()}
	rep, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.WardsScanned != 1 || rep.WardsChanged != 1 || rep.Converted != 2 {
		t.Fatalf("report: %+v", rep)
	}
	if len(rep.Unresolved) != 0 || len(rep.Failed) != 0 {
		t.Fatalf("report: %+v", rep)
	}

	got, err := s.Get(context.Background(), "overworld", "ws1x1y1z")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Owners[0].IsLegacy() || got.Owners[0].ID != steveID {
		t.Fatalf("owner not converted: %+v", got.Owners[0])
	}
	if got.Owners[1].ID != alexID {
		t.Fatalf("identifier owner touched: %+v", got.Owners[1])
	}
	if got.Members[0].IsLegacy() || got.Members[0].ID != alexID {
		t.Fatalf("member not converted: %+v", got.Members[0])
	}
}

func TestRunReportsUnresolved(t *testing.T) {
	s := wardtest.NewStore("overworld")
	put(t, s, ward.Ward{
		ID: "ws1x1y1z", World: "overworld", BlockType: "LODESTONE",
		Owners:  []ward.PrincipalRef{ward.ByName("ghost"), ward.ByName("steve")},
		Members: []ward.PrincipalRef{ward.ByName("phantom")},
	})

	eng := &Engine{Store: s, Cache: seededCache()}
	rep, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Converted != 1 {
		t.Fatalf("report: %+v", rep)
	}
	if len(rep.Unresolved) != 2 {
		t.Fatalf("unresolved: %+v", rep.Unresolved)
	}
	if rep.Unresolved[0] != (Unresolved{World: "overworld", WardID: "ws1x1y1z", Name: "ghost", Role: ward.RoleOwner}) {
		t.Fatalf("unresolved[0]: %+v", rep.Unresolved[0])
	}
	if rep.Unresolved[1].Name != "phantom" || rep.Unresolved[1].Role != ward.RoleMember {
		t.Fatalf("unresolved[1]: %+v", rep.Unresolved[1])
	}

	// The unresolved name stays in legacy form on the stored ward.
	got, _ := s.Get(context.Background(), "overworld", "ws1x1y1z")
	if !got.Owners[0].IsLegacy() || got.Owners[0].Name != "ghost" {
		t.Fatalf("unresolved owner rewritten: %+v", got.Owners[0])
	}
}

func TestRunIsIdempotent(t *testing.T) {
	s := wardtest.NewStore("overworld")
	put(t, s, ward.Ward{
		ID: "ws1x1y1z", World: "overworld", BlockType: "LODESTONE",
		Owners: []ward.PrincipalRef{ward.ByName("steve")},
	})

	eng := &Engine{Store: s, Cache: seededCache()}
	if _, err := eng.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	rep, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if rep.WardsScanned != 1 || rep.WardsChanged != 0 || rep.Converted != 0 {
		t.Fatalf("second pass should be a no-op: %+v", rep)
	}
}

func TestRunIsolatesPutFailures(t *testing.T) {
	s := wardtest.NewStore("overworld")
	put(t, s, ward.Ward{
		ID: "ws1x1y1z", World: "overworld", BlockType: "LODESTONE",
		Owners: []ward.PrincipalRef{ward.ByName("steve")},
	})
	s.PutErr = errors.New("disk full")

	eng := &Engine{Store: s, Cache: seededCache()}
	rep, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("run should complete despite write failures: %v", err)
	}
	if rep.WardsChanged != 0 || len(rep.Failed) != 1 {
		t.Fatalf("report: %+v", rep)
	}
	if rep.Failed[0].WardID != "ws1x1y1z" {
		t.Fatalf("failed: %+v", rep.Failed[0])
	}

	// Nothing persisted, so the next pass converts again.
	s.PutErr = nil
	rep, err = eng.Run(context.Background())
	if err != nil {
		t.Fatalf("retry run: %v", err)
	}
	if rep.Converted != 1 || rep.WardsChanged != 1 {
		t.Fatalf("retry report: %+v", rep)
	}
}

// worldsErrStore fails world enumeration, which must abort the pass.
type worldsErrStore struct {
	ward.Store
	err error
}

func (s *worldsErrStore) Worlds(context.Context) ([]string, error) { return nil, s.err }

func TestRunAbortsOnEnumerationError(t *testing.T) {
	boom := errors.New("db locked")
	eng := &Engine{
		Store: &worldsErrStore{Store: wardtest.NewStore(), err: boom},
		Cache: seededCache(),
	}
	if _, err := eng.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("want enumeration error, got %v", err)
	}
}

func TestRunCaseFoldsNames(t *testing.T) {
	s := wardtest.NewStore("overworld")
	put(t, s, ward.Ward{
		ID: "ws1x1y1z", World: "overworld", BlockType: "LODESTONE",
		Owners: []ward.PrincipalRef{ward.ByName("STEVE")},
	})

	eng := &Engine{Store: s, Cache: seededCache()}
	rep, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Converted != 1 {
		t.Fatalf("case-insensitive lookup failed: %+v", rep)
	}
	got, _ := s.Get(context.Background(), "overworld", "ws1x1y1z")
	if got.Owners[0].ID != steveID {
		t.Fatalf("owner: %+v", got.Owners[0])
	}
}
