// Package migrate rewrites legacy name-form owners and members to
// identifier form using the identity cache. The pass enumerates every ward
// in every world once; identifier-form entries are never touched, so
// re-running is always safe.
package migrate

import (
	"context"
	"errors"
	"fmt"

	"wardstone.gg/internal/persistence/eventlog"
	"wardstone.gg/internal/players"
	"wardstone.gg/internal/ward"
)

type Engine struct {
	Store ward.Store
	Cache *players.Cache
	Log   *eventlog.MigrationLogger

	// Forced marks the log trail when an operator re-runs a completed pass.
	Forced bool
}

// Unresolved is a legacy principal whose name the identity cache could not
// map. The entry stays in name form on the ward.
type Unresolved struct {
	World  string `json:"world"`
	WardID string `json:"ward_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

// Failure is a ward whose rewritten form could not be persisted. Its
// conversions are lost; the next pass redoes them.
type Failure struct {
	World  string `json:"world"`
	WardID string `json:"ward_id"`
	Err    string `json:"err"`
}

type Report struct {
	WardsScanned int          `json:"wards_scanned"`
	WardsChanged int          `json:"wards_changed"`
	Converted    int          `json:"converted"`
	Unresolved   []Unresolved `json:"unresolved,omitempty"`
	Failed       []Failure    `json:"failed,omitempty"`
}

// Run executes one full pass. Enumeration errors are fatal and leave the
// migration pending; per-ward problems (unresolved names, failed writes)
// are recorded and the pass continues. A nil error means the enumeration
// completed and the caller may persist the guard.
func (e *Engine) Run(ctx context.Context) (Report, error) {
	var rep Report

	_ = e.Log.WriteMigration(eventlog.MigrationEntry{Type: eventlog.EvPassStarted, Forced: e.Forced})

	worlds, err := e.Store.Worlds(ctx)
	if err != nil {
		return rep, fmt.Errorf("enumerate worlds: %w", err)
	}
	for _, world := range worlds {
		wards, err := e.Store.List(ctx, world)
		if err != nil {
			// A world disappearing mid-pass is skippable; anything else
			// aborts so the guard stays pending.
			if errors.Is(err, ward.ErrWorldUnknown) {
				continue
			}
			return rep, fmt.Errorf("list %s: %w", world, err)
		}
		for _, w := range wards {
			rep.WardsScanned++
			changed := e.convertWard(&w, &rep)
			if !changed {
				continue
			}
			if err := e.Store.Put(ctx, w); err != nil {
				rep.Failed = append(rep.Failed, Failure{World: w.World, WardID: w.ID, Err: err.Error()})
				continue
			}
			rep.WardsChanged++
		}
	}

	_ = e.Log.WriteMigration(eventlog.MigrationEntry{
		Type:       eventlog.EvPassCompleted,
		Forced:     e.Forced,
		Scanned:    rep.WardsScanned,
		Changed:    rep.WardsChanged,
		Converted:  rep.Converted,
		Unresolved: len(rep.Unresolved),
	})
	return rep, nil
}

func (e *Engine) convertWard(w *ward.Ward, rep *Report) bool {
	changed := false
	changed = e.convertRefs(w, w.Owners, ward.RoleOwner, rep) || changed
	changed = e.convertRefs(w, w.Members, ward.RoleMember, rep) || changed
	return changed
}

func (e *Engine) convertRefs(w *ward.Ward, refs []ward.PrincipalRef, role string, rep *Report) bool {
	changed := false
	for i, r := range refs {
		if !r.IsLegacy() {
			continue
		}
		id, ok := e.Cache.IDByName(r.Name)
		if !ok {
			rep.Unresolved = append(rep.Unresolved, Unresolved{
				World: w.World, WardID: w.ID, Name: r.Name, Role: role,
			})
			_ = e.Log.WriteMigration(eventlog.MigrationEntry{
				Type: eventlog.EvOwnerUnresolved,
				World: w.World, WardID: w.ID, Name: r.Name, Role: role,
			})
			continue
		}
		refs[i] = ward.ByID(id)
		rep.Converted++
		changed = true
		_ = e.Log.WriteMigration(eventlog.MigrationEntry{
			Type: eventlog.EvOwnerConverted,
			World: w.World, WardID: w.ID, Name: r.Name, Role: role, UUID: id.String(),
		})
	}
	return changed
}
