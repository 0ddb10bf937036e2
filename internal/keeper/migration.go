package keeper

import (
	"context"
	"fmt"

	"wardstone.gg/internal/config"
	"wardstone.gg/internal/migrate"
	"wardstone.gg/internal/persistence/eventlog"
)

// MigrationStatus reports the guard plus the most recent pass run by this
// process, if any.
type MigrationStatus struct {
	Migrated   bool            `json:"owners_migrated"`
	LastReport *migrate.Report `json:"last_report,omitempty"`
}

func (k *Keeper) MigrationStatus() MigrationStatus {
	k.mu.Lock()
	defer k.mu.Unlock()
	return MigrationStatus{Migrated: k.state.OwnersMigrated, LastReport: k.lastReport}
}

// RunMigrationIfPending runs the legacy-owner pass unless the persisted
// guard says it already completed. force re-runs a completed pass, which is
// safe: identifier-form entries are never rewritten. The identity cache
// load is joined first so names resolve against the full directory.
//
// ran reports whether a pass executed. On a nil error the guard is set and
// persisted; per-record problems live in the report, not the error.
func (k *Keeper) RunMigrationIfPending(ctx context.Context, force bool) (rep migrate.Report, ran bool, err error) {
	if werr := k.WaitDirectory(ctx); werr != nil {
		if ctx.Err() != nil {
			return migrate.Report{}, false, werr
		}
		k.logf("migration proceeding with partial identity cache: %v", werr)
	}

	k.mu.Lock()
	if k.state.OwnersMigrated && !force {
		k.mu.Unlock()
		return migrate.Report{}, false, nil
	}
	k.mu.Unlock()

	eng := &migrate.Engine{Store: k.store, Cache: k.cache, Log: k.miglog, Forced: force}
	rep, err = eng.Run(ctx)
	if err != nil {
		return rep, true, fmt.Errorf("owner migration: %w", err)
	}

	k.mu.Lock()
	k.state.OwnersMigrated = true
	k.lastReport = &rep
	st := k.state
	k.mu.Unlock()

	if k.statePath != "" {
		if serr := config.SaveState(k.statePath, st); serr != nil {
			return rep, true, fmt.Errorf("persist migration guard: %w", serr)
		}
	}

	k.logf("owner migration: scanned=%d changed=%d converted=%d unresolved=%d failed=%d",
		rep.WardsScanned, rep.WardsChanged, rep.Converted, len(rep.Unresolved), len(rep.Failed))
	k.publish(eventlog.MigrationEntry{
		Type:       eventlog.EvPassCompleted,
		Forced:     force,
		Scanned:    rep.WardsScanned,
		Changed:    rep.WardsChanged,
		Converted:  rep.Converted,
		Unresolved: len(rep.Unresolved),
	})
	return rep, true, nil
}
