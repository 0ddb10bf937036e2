// Package warddb is the authoritative ward store, one sqlite file per
// deployment. Other processes (the admin CLI, host-side tooling) may write
// the same file, so readers never assume their caches match the rows here.
package warddb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"wardstone.gg/internal/ward"
)

type DB struct {
	db   *sql.DB
	once sync.Once
}

func Open(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	// WAL lets the admin CLI read while the daemon writes.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS worlds (
			id TEXT PRIMARY KEY
		);`,
		`CREATE TABLE IF NOT EXISTS wards (
			world_id TEXT NOT NULL REFERENCES worlds(id),
			id TEXT NOT NULL,
			alias TEXT NOT NULL DEFAULT '',
			block_type TEXT NOT NULL,
			anchor_x INTEGER NOT NULL,
			anchor_y INTEGER NOT NULL,
			anchor_z INTEGER NOT NULL,
			priority INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			PRIMARY KEY (world_id, id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_wards_alias ON wards(world_id, alias);`,
		`CREATE TABLE IF NOT EXISTS ward_principals (
			world_id TEXT NOT NULL,
			ward_id TEXT NOT NULL,
			role TEXT NOT NULL,
			position INTEGER NOT NULL,
			ref TEXT NOT NULL,
			PRIMARY KEY (world_id, ward_id, role, position),
			FOREIGN KEY (world_id, ward_id) REFERENCES wards(world_id, id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS players (
			uuid TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			last_seen TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_players_name ON players(name);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	if _, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	return nil
}

func (d *DB) Close() error {
	var err error
	d.once.Do(func() {
		err = d.db.Close()
	})
	return err
}

// EnsureWorlds registers world ids so lookups can tell an unknown world from
// an empty one. The daemon seeds it from config at startup.
func (d *DB) EnsureWorlds(ctx context.Context, ids []string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO worlds(id) VALUES(?)`, id); err != nil {
			return fmt.Errorf("ensure world %s: %w", id, err)
		}
	}
	return tx.Commit()
}

func (d *DB) worldExists(ctx context.Context, world string) (bool, error) {
	var one int
	err := d.db.QueryRowContext(ctx, `SELECT 1 FROM worlds WHERE id=?`, world).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (d *DB) Get(ctx context.Context, world, id string) (ward.Ward, error) {
	var (
		w       ward.Ward
		created string
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT id, world_id, alias, block_type, anchor_x, anchor_y, anchor_z, priority, created_at
		 FROM wards WHERE world_id=? AND id=?`, world, id).
		Scan(&w.ID, &w.World, &w.Alias, &w.BlockType,
			&w.Anchor.X, &w.Anchor.Y, &w.Anchor.Z, &w.Priority, &created)
	if err == sql.ErrNoRows {
		ok, werr := d.worldExists(ctx, world)
		if werr != nil {
			return ward.Ward{}, werr
		}
		if !ok {
			return ward.Ward{}, ward.ErrWorldUnknown
		}
		return ward.Ward{}, ward.ErrNotFound
	}
	if err != nil {
		return ward.Ward{}, fmt.Errorf("get ward %s/%s: %w", world, id, err)
	}
	w.CreatedAt = parseTime(created)

	if err := d.loadPrincipals(ctx, &w); err != nil {
		return ward.Ward{}, err
	}
	return w, nil
}

func (d *DB) loadPrincipals(ctx context.Context, w *ward.Ward) error {
	rows, err := d.db.QueryContext(ctx,
		`SELECT role, ref FROM ward_principals
		 WHERE world_id=? AND ward_id=? ORDER BY role, position`, w.World, w.ID)
	if err != nil {
		return fmt.Errorf("principals %s/%s: %w", w.World, w.ID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var role, ref string
		if err := rows.Scan(&role, &ref); err != nil {
			return err
		}
		p := ward.ParsePrincipal(ref)
		switch role {
		case ward.RoleOwner:
			w.Owners = append(w.Owners, p)
		case ward.RoleMember:
			w.Members = append(w.Members, p)
		}
	}
	return rows.Err()
}

func (d *DB) List(ctx context.Context, world string) ([]ward.Ward, error) {
	ok, err := d.worldExists(ctx, world)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ward.ErrWorldUnknown
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT id, world_id, alias, block_type, anchor_x, anchor_y, anchor_z, priority, created_at
		 FROM wards WHERE world_id=? ORDER BY id`, world)
	if err != nil {
		return nil, fmt.Errorf("list wards %s: %w", world, err)
	}
	defer rows.Close()

	var (
		out   []ward.Ward
		index = map[string]int{}
	)
	for rows.Next() {
		var (
			w       ward.Ward
			created string
		)
		if err := rows.Scan(&w.ID, &w.World, &w.Alias, &w.BlockType,
			&w.Anchor.X, &w.Anchor.Y, &w.Anchor.Z, &w.Priority, &created); err != nil {
			return nil, err
		}
		w.CreatedAt = parseTime(created)
		index[w.ID] = len(out)
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	prows, err := d.db.QueryContext(ctx,
		`SELECT ward_id, role, ref FROM ward_principals
		 WHERE world_id=? ORDER BY ward_id, role, position`, world)
	if err != nil {
		return nil, fmt.Errorf("list principals %s: %w", world, err)
	}
	defer prows.Close()
	for prows.Next() {
		var wardID, role, ref string
		if err := prows.Scan(&wardID, &role, &ref); err != nil {
			return nil, err
		}
		i, ok := index[wardID]
		if !ok {
			continue
		}
		p := ward.ParsePrincipal(ref)
		switch role {
		case ward.RoleOwner:
			out[i].Owners = append(out[i].Owners, p)
		case ward.RoleMember:
			out[i].Members = append(out[i].Members, p)
		}
	}
	return out, prows.Err()
}

func (d *DB) Put(ctx context.Context, w ward.Ward) error {
	if w.ID == "" || w.World == "" {
		return fmt.Errorf("put ward: empty id or world")
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO worlds(id) VALUES(?)`, w.World); err != nil {
		return fmt.Errorf("put ward %s/%s: %w", w.World, w.ID, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO wards
		 (world_id, id, alias, block_type, anchor_x, anchor_y, anchor_z, priority, created_at)
		 VALUES(?,?,?,?,?,?,?,?,?)`,
		w.World, w.ID, w.Alias, w.BlockType,
		w.Anchor.X, w.Anchor.Y, w.Anchor.Z, w.Priority,
		formatTime(w.CreatedAt)); err != nil {
		return fmt.Errorf("put ward %s/%s: %w", w.World, w.ID, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM ward_principals WHERE world_id=? AND ward_id=?`, w.World, w.ID); err != nil {
		return fmt.Errorf("put ward %s/%s: %w", w.World, w.ID, err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO ward_principals(world_id, ward_id, role, position, ref) VALUES(?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, p := range w.Owners {
		if _, err := stmt.ExecContext(ctx, w.World, w.ID, ward.RoleOwner, i, p.String()); err != nil {
			return fmt.Errorf("put owner %d of %s/%s: %w", i, w.World, w.ID, err)
		}
	}
	for i, p := range w.Members {
		if _, err := stmt.ExecContext(ctx, w.World, w.ID, ward.RoleMember, i, p.String()); err != nil {
			return fmt.Errorf("put member %d of %s/%s: %w", i, w.World, w.ID, err)
		}
	}
	return tx.Commit()
}

func (d *DB) Delete(ctx context.Context, world, id string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM ward_principals WHERE world_id=? AND ward_id=?`, world, id); err != nil {
		return fmt.Errorf("delete ward %s/%s: %w", world, id, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM wards WHERE world_id=? AND id=?`, world, id); err != nil {
		return fmt.Errorf("delete ward %s/%s: %w", world, id, err)
	}
	return tx.Commit()
}

func (d *DB) Worlds(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id FROM worlds ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Counts reports table sizes for the ops surface.
func (d *DB) Counts(ctx context.Context) (worlds, wards, players int, err error) {
	if err = d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM worlds`).Scan(&worlds); err != nil {
		return
	}
	if err = d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM wards`).Scan(&wards); err != nil {
		return
	}
	err = d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM players`).Scan(&players)
	return
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
