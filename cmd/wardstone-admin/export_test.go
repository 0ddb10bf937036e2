package main

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"wardstone.gg/internal/ward"
)

func readExport(t *testing.T, path string) []wardJSON {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()

	var out []wardJSON
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var w wardJSON
		if err := json.Unmarshal(sc.Bytes(), &w); err != nil {
			t.Fatalf("line %d: %v", len(out), err)
		}
		out = append(out, w)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}

func TestWriteExportRoundTrip(t *testing.T) {
	steve := uuid.NewSHA1(uuid.NameSpaceOID, []byte("steve"))
	wards := []ward.Ward{
		{
			ID: "ws1x64y1z", World: "overworld", Alias: "home", BlockType: "LODESTONE",
			Anchor:    ward.Pos{X: 1, Y: 64, Z: 1},
			CreatedAt: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
			Owners:    []ward.PrincipalRef{ward.ByID(steve), ward.ByName("Herobrine")},
		},
		{
			ID: "ws2x64y2z", World: "nether", BlockType: "OBSIDIAN", Priority: 3,
			Anchor:    ward.Pos{X: 2, Y: 64, Z: 2},
			CreatedAt: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
		},
	}

	// The output path is nested so the writer has to create directories.
	out := filepath.Join(t.TempDir(), "backups", "wards.jsonl.zst")
	err := writeExport(out, func(enc *json.Encoder) error {
		for _, w := range wards {
			if err := enc.Encode(toWardJSON(w)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("writeExport: %v", err)
	}

	got := readExport(t, out)
	if len(got) != 2 {
		t.Fatalf("lines=%d want 2", len(got))
	}
	want := wardJSON{
		World: "overworld", ID: "ws1x64y1z", Alias: "home", BlockType: "LODESTONE",
		Anchor:    [3]int{1, 64, 1},
		CreatedAt: "2026-02-01T09:00:00Z",
		Owners:    []string{steve.String(), "Herobrine"},
	}
	if !reflect.DeepEqual(got[0], want) {
		t.Fatalf("record:\n got %+v\nwant %+v", got[0], want)
	}
	if got[1].ID != "ws2x64y2z" || got[1].Priority != 3 || got[1].Owners != nil {
		t.Fatalf("record: %+v", got[1])
	}
}
