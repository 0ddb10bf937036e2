package warddb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecordSighting upserts the latest known name for a player. The host calls
// it whenever a player is seen; the migration pass reads the result back
// through Enumerate.
func (d *DB) RecordSighting(ctx context.Context, id uuid.UUID, name string) error {
	if id == uuid.Nil || name == "" {
		return fmt.Errorf("record sighting: empty id or name")
	}
	_, err := d.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO players(uuid, name, last_seen) VALUES(?,?,?)`,
		id.String(), name, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record sighting %s: %w", id, err)
	}
	return nil
}

// Enumerate streams every known (uuid, name) pair. Rows with an unparseable
// uuid are skipped rather than failing the whole load.
func (d *DB) Enumerate(ctx context.Context, fn func(id uuid.UUID, name string) error) error {
	rows, err := d.db.QueryContext(ctx, `SELECT uuid, name FROM players ORDER BY uuid`)
	if err != nil {
		return fmt.Errorf("enumerate players: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rawID, name string
		if err := rows.Scan(&rawID, &name); err != nil {
			return err
		}
		id, err := uuid.Parse(rawID)
		if err != nil {
			continue
		}
		if err := fn(id, name); err != nil {
			return err
		}
	}
	return rows.Err()
}
