package eventlog

import "path/filepath"

// Audit event types.
const (
	EvWardRecorded  = "ward_recorded"
	EvWardForgotten = "ward_forgotten"
	EvAliasPruned   = "alias_pruned"
	EvIndexRebuilt  = "index_rebuilt"
)

type AuditEntry struct {
	At     string `json:"at"`
	Type   string `json:"type"`
	World  string `json:"world,omitempty"`
	WardID string `json:"ward_id,omitempty"`
	Alias  string `json:"alias,omitempty"`
	Wards  int    `json:"wards,omitempty"`
}

// AuditLogger records ward lifecycle and index maintenance events. A nil
// logger discards everything, so call sites never guard.
type AuditLogger struct{ w *Writer }

func NewAuditLogger(dir string) *AuditLogger {
	return NewAuditLoggerWithOptions(dir, LoggerOptions{})
}

func NewAuditLoggerWithOptions(dir string, opts LoggerOptions) *AuditLogger {
	return &AuditLogger{w: NewWriterWithOptions(filepath.Join(dir, "audit"), "audit", opts)}
}

func (l *AuditLogger) WriteAudit(e AuditEntry) error {
	if l == nil {
		return nil
	}
	if e.At == "" {
		e.At = now()
	}
	return l.w.Write(e)
}

func (l *AuditLogger) Close() error {
	if l == nil {
		return nil
	}
	return l.w.Close()
}

// Migration event types.
const (
	EvPassStarted     = "pass_started"
	EvOwnerConverted  = "owner_converted"
	EvOwnerUnresolved = "owner_unresolved"
	EvPassCompleted   = "pass_completed"
)

type MigrationEntry struct {
	At     string `json:"at"`
	Type   string `json:"type"`
	World  string `json:"world,omitempty"`
	WardID string `json:"ward_id,omitempty"`
	Name   string `json:"name,omitempty"`
	Role   string `json:"role,omitempty"`
	UUID   string `json:"uuid,omitempty"`

	Forced     bool `json:"forced,omitempty"`
	Scanned    int  `json:"scanned,omitempty"`
	Changed    int  `json:"changed,omitempty"`
	Converted  int  `json:"converted,omitempty"`
	Unresolved int  `json:"unresolved,omitempty"`
}

// MigrationLogger records one entry per owner conversion attempt plus pass
// boundaries, the durable trail for the one-shot migration.
type MigrationLogger struct{ w *Writer }

func NewMigrationLogger(dir string) *MigrationLogger {
	return NewMigrationLoggerWithOptions(dir, LoggerOptions{})
}

func NewMigrationLoggerWithOptions(dir string, opts LoggerOptions) *MigrationLogger {
	return &MigrationLogger{w: NewWriterWithOptions(filepath.Join(dir, "migration"), "migration", opts)}
}

func (l *MigrationLogger) WriteMigration(e MigrationEntry) error {
	if l == nil {
		return nil
	}
	if e.At == "" {
		e.At = now()
	}
	return l.w.Write(e)
}

func (l *MigrationLogger) Close() error {
	if l == nil {
		return nil
	}
	return l.w.Close()
}
