package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"wardstone.gg/internal/catalog"
	"wardstone.gg/internal/config"
	"wardstone.gg/internal/keeper"
	"wardstone.gg/internal/limits"
	"wardstone.gg/internal/persistence/warddb"
	"wardstone.gg/internal/ward"
	"wardstone.gg/internal/wardindex"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "resolve":
			resolveCmd(os.Args[2:])
			return
		case "limits":
			limitsCmd(os.Args[2:])
			return
		case "migrate":
			migrateCmd(os.Args[2:])
			return
		case "rebuild":
			rebuildCmd(os.Args[2:])
			return
		case "export":
			exportCmd(os.Args[2:])
			return
		case "seed":
			seedCmd(os.Args[2:])
			return
		case "stats":
			statsCmd(os.Args[2:])
			return
		}
	}
	fmt.Fprintln(os.Stderr, "usage: wardstone-admin db|resolve|limits|migrate|rebuild|export|seed|stats [flags]")
	os.Exit(2)
}

func storePath(dataDir, dbPath string) string {
	if p := strings.TrimSpace(dbPath); p != "" {
		return p
	}
	return filepath.Join(dataDir, "wardstone.db")
}

func openStore(dataDir, dbPath string) *warddb.DB {
	db, err := warddb.Open(storePath(dataDir, dbPath))
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	return db
}

// wardJSON is the row shape every subcommand prints for a ward.
type wardJSON struct {
	World     string   `json:"world"`
	ID        string   `json:"id"`
	Alias     string   `json:"alias,omitempty"`
	BlockType string   `json:"block_type"`
	Anchor    [3]int   `json:"anchor"`
	Priority  int      `json:"priority,omitempty"`
	CreatedAt string   `json:"created_at"`
	Owners    []string `json:"owners,omitempty"`
	Members   []string `json:"members,omitempty"`
}

func toWardJSON(w ward.Ward) wardJSON {
	r := wardJSON{
		World:     w.World,
		ID:        w.ID,
		Alias:     w.Alias,
		BlockType: w.BlockType,
		Anchor:    [3]int{w.Anchor.X, w.Anchor.Y, w.Anchor.Z},
		Priority:  w.Priority,
		CreatedAt: w.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	for _, p := range w.Owners {
		r.Owners = append(r.Owners, p.String())
	}
	for _, p := range w.Members {
		r.Members = append(r.Members, p.String())
	}
	return r
}

func resolveCmd(args []string) {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default <data>/wardstone.db)")
	world := fs.String("world", "", "world id (required)")
	token := fs.String("token", "", "alias or ward id (required)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*world) == "" || strings.TrimSpace(*token) == "" {
		fmt.Fprintln(os.Stderr, "missing -world or -token")
		os.Exit(2)
	}

	db := openStore(*dataDir, *dbPath)
	defer db.Close()

	ctx := context.Background()
	snapshot, err := db.List(ctx, *world)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list:", err)
		os.Exit(1)
	}
	idx := wardindex.New(db)
	idx.RebuildWorld(*world, snapshot)

	wards, err := idx.Resolve(ctx, *world, *token)
	if err != nil {
		fmt.Fprintln(os.Stderr, "resolve:", err)
		os.Exit(1)
	}
	for _, w := range wards {
		printJSON(toWardJSON(w))
	}
}

func limitsCmd(args []string) {
	fs := flag.NewFlagSet("limits", flag.ExitOnError)
	configPath := fs.String("config", "./configs/wardstone.yaml", "config path")
	player := fs.String("player", "", "player uuid (required)")
	_ = fs.Parse(args)

	id, err := uuid.Parse(strings.TrimSpace(*player))
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad -player:", err)
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalog:", err)
		os.Exit(1)
	}

	grants := cfg.GrantTable().EffectiveGrants(id)
	perBlock := map[string]int{}
	for bt, n := range limits.PerBlockType(grants, cat) {
		perBlock[bt.Key] = n
	}
	printJSON(struct {
		Player   string         `json:"player"`
		Grants   []string       `json:"grants,omitempty"`
		Global   int            `json:"global"`
		PerBlock map[string]int `json:"per_block,omitempty"`
	}{Player: id.String(), Grants: grants, Global: limits.Global(grants), PerBlock: perBlock})
}

// migrateCmd runs the owner migration directly against the store. Meant for
// offline use; the daemon runs the same pass itself on startup.
func migrateCmd(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "./configs/wardstone.yaml", "config path")
	dataDir := fs.String("data", "", "runtime data directory (overrides config)")
	force := fs.Bool("force", false, "re-run even when the guard says the pass completed")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalog:", err)
		os.Exit(1)
	}

	db := openStore(cfg.DataDir, "")
	defer db.Close()

	kpr, err := keeper.New(keeper.Options{
		Store:     db,
		Directory: db,
		Catalog:   cat,
		StatePath: cfg.StatePath(),
		Worlds:    cfg.EnabledWorlds(),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "keeper:", err)
		os.Exit(1)
	}
	ctx := context.Background()
	if err := kpr.Build(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "build:", err)
		os.Exit(1)
	}
	rep, ran, err := kpr.RunMigrationIfPending(ctx, *force)
	if err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
	if !ran {
		fmt.Println("migration already completed; use -force to re-run")
		return
	}
	printJSON(rep)
}

func rebuildCmd(args []string) {
	fs := flag.NewFlagSet("rebuild", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default <data>/wardstone.db)")
	world := fs.String("world", "", "world id (optional; defaults to every stored world)")
	dump := fs.Bool("dump", false, "print the alias map per world")
	_ = fs.Parse(args)

	db := openStore(*dataDir, *dbPath)
	defer db.Close()

	ctx := context.Background()
	worlds := []string{strings.TrimSpace(*world)}
	if worlds[0] == "" {
		var err error
		worlds, err = db.Worlds(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "worlds:", err)
			os.Exit(1)
		}
	}

	idx := wardindex.New(db)
	for _, w := range worlds {
		snapshot, err := db.List(ctx, w)
		if err != nil {
			fmt.Fprintln(os.Stderr, "list", w+":", err)
			os.Exit(1)
		}
		idx.RebuildWorld(w, snapshot)
	}

	printJSON(idx.Stats())
	if *dump {
		for _, w := range worlds {
			printJSON(struct {
				World   string              `json:"world"`
				Aliases map[string][]string `json:"aliases"`
			}{World: w, Aliases: idx.Dump(w)})
		}
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
