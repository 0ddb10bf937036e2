package players

import (
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

const (
	profileTTL   = 30 * time.Minute
	profileSweep = 10 * time.Minute
)

// Profiles is the shared, expiring profile cache other subsystems read
// instead of hitting the directory. Entries pushed during bulk population
// age out on their own; a nil *Profiles is a valid no-op sink.
type Profiles struct {
	c *gocache.Cache
}

func NewProfiles() *Profiles {
	return &Profiles{c: gocache.New(profileTTL, profileSweep)}
}

func (p *Profiles) Put(id uuid.UUID, name string) {
	if p == nil || id == uuid.Nil {
		return
	}
	p.c.Set(id.String(), name, gocache.DefaultExpiration)
}

func (p *Profiles) Get(id uuid.UUID) (string, bool) {
	if p == nil {
		return "", false
	}
	v, ok := p.c.Get(id.String())
	if !ok {
		return "", false
	}
	return v.(string), true
}

func (p *Profiles) Len() int {
	if p == nil {
		return 0
	}
	return p.c.ItemCount()
}
