package eventlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
)

func readEntries(t *testing.T, dir string) []json.RawMessage {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.jsonl.zst"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("log files: %v err=%v", matches, err)
	}
	f, err := os.Open(matches[0])
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()

	var lines []json.RawMessage
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		lines = append(lines, json.RawMessage(append([]byte(nil), sc.Bytes()...)))
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return lines
}

func TestAuditLoggerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewAuditLogger(dir)

	if err := l.WriteAudit(AuditEntry{Type: EvWardRecorded, World: "overworld", WardID: "ws1x1y1z", Alias: "home"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.WriteAudit(AuditEntry{Type: EvAliasPruned, World: "overworld", WardID: "ws1x1y1z", Alias: "home"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	lines := readEntries(t, filepath.Join(dir, "audit"))
	if len(lines) != 2 {
		t.Fatalf("want 2 entries, got %d", len(lines))
	}
	var e AuditEntry
	if err := json.Unmarshal(lines[1], &e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.Type != EvAliasPruned || e.World != "overworld" || e.At == "" {
		t.Fatalf("entry: %+v", e)
	}
}

func TestMigrationLoggerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewMigrationLogger(dir)

	entries := []MigrationEntry{
		{Type: EvPassStarted, Forced: true},
		{Type: EvOwnerConverted, World: "overworld", WardID: "ws1x1y1z", Name: "steve", Role: "owner", UUID: "c06f8906-2f75-3cde-97f1-fc5c96c4ba81"},
		{Type: EvOwnerUnresolved, World: "overworld", WardID: "ws2x2y2z", Name: "ghost", Role: "member"},
		{Type: EvPassCompleted, Scanned: 2, Changed: 1, Converted: 1, Unresolved: 1},
	}
	for _, e := range entries {
		if err := l.WriteMigration(e); err != nil {
			t.Fatalf("write %s: %v", e.Type, err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	lines := readEntries(t, filepath.Join(dir, "migration"))
	if len(lines) != len(entries) {
		t.Fatalf("want %d entries, got %d", len(entries), len(lines))
	}
	var last MigrationEntry
	if err := json.Unmarshal(lines[len(lines)-1], &last); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if last.Type != EvPassCompleted || last.Scanned != 2 || last.Unresolved != 1 {
		t.Fatalf("summary entry: %+v", last)
	}
}

func TestNilLoggersDiscard(t *testing.T) {
	var a *AuditLogger
	var m *MigrationLogger
	if err := a.WriteAudit(AuditEntry{Type: EvWardRecorded}); err != nil {
		t.Fatalf("nil audit: %v", err)
	}
	if err := m.WriteMigration(MigrationEntry{Type: EvPassStarted}); err != nil {
		t.Fatalf("nil migration: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}

func TestOnCloseReportsCompletedFile(t *testing.T) {
	dir := t.TempDir()
	var closed []string
	l := NewAuditLoggerWithOptions(dir, LoggerOptions{
		OnClose: func(path string) { closed = append(closed, path) },
	})

	if err := l.WriteAudit(AuditEntry{Type: EvWardRecorded, World: "overworld"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(closed) != 0 {
		t.Fatalf("premature close callback: %v", closed)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(closed) != 1 {
		t.Fatalf("closed=%v want one path", closed)
	}
	if _, err := os.Stat(closed[0]); err != nil {
		t.Fatalf("reported path: %v", err)
	}
	if filepath.Dir(closed[0]) != filepath.Join(dir, "audit") {
		t.Fatalf("path %s not under audit dir", closed[0])
	}

	// Close with nothing open stays quiet.
	if err := l.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if len(closed) != 1 {
		t.Fatalf("closed=%v after idle close", closed)
	}
}

func TestSweepRemovesOnlyExpiredLogs(t *testing.T) {
	dir := t.TempDir()

	a := NewAuditLogger(dir)
	if err := a.WriteAudit(AuditEntry{Type: EvWardRecorded}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	m := NewMigrationLogger(dir)
	if err := m.WriteMigration(MigrationEntry{Type: EvPassStarted}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Age the migration file past the window; leave the audit file fresh.
	migFiles, err := filepath.Glob(filepath.Join(dir, "migration", "*.jsonl.zst"))
	if err != nil || len(migFiles) != 1 {
		t.Fatalf("migration files: %v err=%v", migFiles, err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(migFiles[0], old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	removed, err := Sweep(dir, 24*time.Hour)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed=%d want 1", removed)
	}
	if _, err := os.Stat(migFiles[0]); !os.IsNotExist(err) {
		t.Fatalf("expired file survived: %v", err)
	}
	if got := len(mustGlob(t, filepath.Join(dir, "audit", "*.jsonl.zst"))); got != 1 {
		t.Fatalf("fresh audit files=%d want 1", got)
	}

	// Missing dir and disabled retention are no-ops.
	if n, err := Sweep(filepath.Join(dir, "nope"), 24*time.Hour); err != nil || n != 0 {
		t.Fatalf("missing dir: n=%d err=%v", n, err)
	}
	if n, err := Sweep(dir, 0); err != nil || n != 0 {
		t.Fatalf("disabled: n=%d err=%v", n, err)
	}
}

func mustGlob(t *testing.T, pattern string) []string {
	t.Helper()
	matches, err := filepath.Glob(pattern)
	if err != nil {
		t.Fatalf("glob %s: %v", pattern, err)
	}
	return matches
}
