package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// exportCmd dumps wards as compressed JSONL, one record per line, for
// backups and offline analysis. The file format matches the event log so the
// same tooling reads both.
func exportCmd(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default <data>/wardstone.db)")
	world := fs.String("world", "", "world id (optional; defaults to every stored world)")
	outPath := fs.String("out", "", "output path (required, .jsonl.zst)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*outPath) == "" {
		fmt.Fprintln(os.Stderr, "missing -out")
		os.Exit(2)
	}

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

	total := 0
	err := writeExport(*outPath, func(enc *json.Encoder) error {
		for _, w := range worlds {
			wards, err := db.List(ctx, w)
			if err != nil {
				return fmt.Errorf("list %s: %w", w, err)
			}
			for _, rec := range wards {
				if err := enc.Encode(toWardJSON(rec)); err != nil {
					return err
				}
				total++
			}
		}
		return nil
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "export:", err)
		os.Exit(1)
	}

	fmt.Printf("export ok: worlds=%d wards=%d out=%s\n", len(worlds), total, *outPath)
}

func writeExport(path string, fill func(enc *json.Encoder) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	je := json.NewEncoder(bw)
	je.SetEscapeHTML(false)
	return fill(je)
}
