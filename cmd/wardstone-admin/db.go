package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"wardstone.gg/internal/ward"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default <data>/wardstone.db)")
	world := fs.String("world", "", "world id filter (wards)")
	_ = fs.Parse(args)

	q := "counts"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	db := openStore(*dataDir, *dbPath)
	defer db.Close()
	ctx := context.Background()

	switch q {
	case "counts":
		worlds, wards, players, err := db.Counts(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "counts:", err)
			os.Exit(1)
		}
		printJSON(struct {
			Worlds  int `json:"worlds"`
			Wards   int `json:"wards"`
			Players int `json:"players"`
		}{Worlds: worlds, Wards: wards, Players: players})

	case "worlds":
		ids, err := db.Worlds(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "worlds:", err)
			os.Exit(1)
		}
		for _, id := range ids {
			fmt.Println(id)
		}

	case "wards":
		worlds := []string{strings.TrimSpace(*world)}
		if worlds[0] == "" {
			var err error
			worlds, err = db.Worlds(ctx)
			if err != nil {
				fmt.Fprintln(os.Stderr, "worlds:", err)
				os.Exit(1)
			}
		}
		for _, w := range worlds {
			wards, err := db.List(ctx, w)
			if err != nil {
				fmt.Fprintln(os.Stderr, "list", w+":", err)
				os.Exit(1)
			}
			for _, rec := range wards {
				printJSON(toWardJSON(rec))
			}
		}

	case "players":
		err := db.Enumerate(ctx, func(id uuid.UUID, name string) error {
			printJSON(struct {
				UUID string `json:"uuid"`
				Name string `json:"name"`
			}{UUID: id.String(), Name: name})
			return nil
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "players:", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		fmt.Fprintln(os.Stderr, "usage: wardstone-admin db [-data ./data|-db PATH] [-world WORLD] counts|worlds|wards|players")
		os.Exit(2)
	}
}

// seedCmd loads demo fixtures for local development: three worlds, two
// players, and a handful of wards including one legacy-named owner so the
// migration pass has something to convert.
func seedCmd(args []string) {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default <data>/wardstone.db)")
	_ = fs.Parse(args)

	db := openStore(*dataDir, *dbPath)
	defer db.Close()
	ctx := context.Background()

	if err := db.EnsureWorlds(ctx, []string{"overworld", "nether", "end"}); err != nil {
		fmt.Fprintln(os.Stderr, "ensure worlds:", err)
		os.Exit(1)
	}

	steve := seedUUID("steve")
	alex := seedUUID("alex")
	for _, p := range []struct {
		id   uuid.UUID
		name string
	}{{steve, "Steve"}, {alex, "Alex"}} {
		if err := db.RecordSighting(ctx, p.id, p.name); err != nil {
			fmt.Fprintln(os.Stderr, "record sighting:", err)
			os.Exit(1)
		}
	}

	created := time.Date(2026, 1, 12, 8, 30, 0, 0, time.UTC)
	wards := []ward.Ward{
		{
			World: "overworld", Alias: "home", BlockType: "LODESTONE",
			Anchor: ward.Pos{X: 120, Y: 64, Z: -40}, CreatedAt: created,
			Owners: []ward.PrincipalRef{ward.ByID(steve)},
		},
		{
			World: "overworld", Alias: "home", BlockType: "LODESTONE",
			Anchor: ward.Pos{X: -300, Y: 70, Z: 912}, CreatedAt: created.Add(time.Hour),
			Owners:  []ward.PrincipalRef{ward.ByID(alex)},
			Members: []ward.PrincipalRef{ward.ByID(steve)},
		},
		{
			World: "overworld", Alias: "farm", BlockType: "BEACON", Priority: 2,
			Anchor: ward.Pos{X: 64, Y: 68, Z: 64}, CreatedAt: created.Add(2 * time.Hour),
			Owners: []ward.PrincipalRef{ward.ByName("Steve")},
		},
		{
			World: "nether", Alias: "fortress", BlockType: "OBSIDIAN",
			Anchor: ward.Pos{X: 8, Y: 40, Z: 8}, CreatedAt: created.Add(3 * time.Hour),
			Owners: []ward.PrincipalRef{ward.ByID(alex)},
		},
	}
	for i := range wards {
		wards[i].ID = ward.NewID(wards[i].Anchor)
		if err := db.Put(ctx, wards[i]); err != nil {
			fmt.Fprintln(os.Stderr, "put:", err)
			os.Exit(1)
		}
	}

	fmt.Printf("seed ok: worlds=3 players=2 wards=%d db=%s\n", len(wards), storePath(*dataDir, *dbPath))
}

func seedUUID(name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("wardstone:"+name))
}
