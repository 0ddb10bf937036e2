package players

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
)

type sliceDirectory struct {
	pairs []struct {
		id   uuid.UUID
		name string
	}
	failAfter int // -1 = never
}

func (d *sliceDirectory) Enumerate(_ context.Context, fn func(uuid.UUID, string) error) error {
	for i, p := range d.pairs {
		if d.failAfter >= 0 && i == d.failAfter {
			return errors.New("directory gone")
		}
		if err := fn(p.id, p.name); err != nil {
			return err
		}
	}
	return nil
}

func dir(names ...string) *sliceDirectory {
	d := &sliceDirectory{failAfter: -1}
	for i, n := range names {
		d.pairs = append(d.pairs, struct {
			id   uuid.UUID
			name string
		}{uuid.NewSHA1(uuid.NameSpaceOID, []byte{byte(i)}), n})
	}
	return d
}

func TestCachePutAndLookup(t *testing.T) {
	c := NewCache()
	id := uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001")
	c.Put(id, "Notch")

	if name, ok := c.NameByID(id); !ok || name != "Notch" {
		t.Fatalf("NameByID: %q %v", name, ok)
	}
	if got, ok := c.IDByName("notch"); !ok || got != id {
		t.Fatalf("IDByName should fold case: %s %v", got, ok)
	}
	if _, ok := c.IDByName("Herobrine"); ok {
		t.Fatalf("unknown name should miss")
	}

	// Rename overwrites the forward mapping; latest name wins.
	c.Put(id, "NotchPrime")
	if name, _ := c.NameByID(id); name != "NotchPrime" {
		t.Fatalf("rename not applied: %q", name)
	}
}

func TestBulkLoad(t *testing.T) {
	c := NewCache()
	profiles := NewProfiles()
	n, err := c.BulkLoad(context.Background(), dir("Alpha", "Beta", "Gamma"), profiles)
	if err != nil {
		t.Fatalf("BulkLoad: %v", err)
	}
	if n != 3 || c.Len() != 3 {
		t.Fatalf("loaded %d, cache %d", n, c.Len())
	}
	if profiles.Len() != 3 {
		t.Fatalf("profile cache not pushed: %d", profiles.Len())
	}
	id, ok := c.IDByName("beta")
	if !ok {
		t.Fatalf("Beta missing")
	}
	if name, ok := profiles.Get(id); !ok || name != "Beta" {
		t.Fatalf("profile lookup: %q %v", name, ok)
	}
}

func TestBulkLoadPartialFailure(t *testing.T) {
	c := NewCache()
	d := dir("Alpha", "Beta", "Gamma")
	d.failAfter = 2
	n, err := c.BulkLoad(context.Background(), d, nil)
	if err == nil {
		t.Fatalf("expected directory error")
	}
	if n != 2 || c.Len() != 2 {
		t.Fatalf("partial population expected: n=%d len=%d", n, c.Len())
	}
}

func TestCacheConcurrentReadsDuringLoad(t *testing.T) {
	c := NewCache()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			c.Put(uuid.NewSHA1(uuid.NameSpaceOID, []byte{byte(i), byte(i >> 8)}), "p")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			c.IDByName("p")
			c.Len()
		}
	}()
	wg.Wait()
}
