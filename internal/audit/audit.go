package audit

import (
	"database/sql"
	"fmt"
	"time"
)

// #region types

// Entry is one append-only audit record. Entries are immutable once
// written and are never deleted: history compaction elsewhere must leave
// this table alone.
type Entry struct {
	ID         int64
	ActionID   string
	Transition string // status transition or decision, e.g. "requested -> authorized"
	Cause      string // machine-readable cause, e.g. a taxonomy code or "ok"
	Detail     string
	CreatedAt  time.Time
}

// #endregion types

// #region log

// Log writes and reads the audit trail.
type Log struct {
	db *sql.DB
}

// NewLog creates the audit_log table if needed and returns a log.
func NewLog(db *sql.DB) (*Log, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS audit_log (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		action_id  TEXT NOT NULL,
		transition TEXT NOT NULL,
		cause      TEXT NOT NULL,
		detail     TEXT,
		created_at TEXT NOT NULL
	)`)
	if err != nil {
		return nil, fmt.Errorf("create audit_log table: %w", err)
	}
	return &Log{db: db}, nil
}

// Append writes one entry. There is deliberately no update or delete path.
func (l *Log) Append(entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := l.db.Exec(
		`INSERT INTO audit_log (action_id, transition, cause, detail, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.ActionID, entry.Transition, entry.Cause,
		nullIfEmpty(entry.Detail), entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// ListByAction returns every entry for one action, oldest first.
func (l *Log) ListByAction(actionID string) ([]Entry, error) {
	rows, err := l.db.Query(
		`SELECT id, action_id, transition, cause, detail, created_at
		 FROM audit_log WHERE action_id = ? ORDER BY id`, actionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return scanEntries(rows)
}

// ListRange returns entries within [from, to), oldest first.
func (l *Log) ListRange(from, to time.Time) ([]Entry, error) {
	rows, err := l.db.Query(
		`SELECT id, action_id, transition, cause, detail, created_at
		 FROM audit_log WHERE created_at >= ? AND created_at < ? ORDER BY id`,
		from.UTC().Format(time.RFC3339Nano), to.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("list audit range: %w", err)
	}
	return scanEntries(rows)
}

// #endregion log

// #region helpers

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		var detail sql.NullString
		var createdStr string
		if err := rows.Scan(&e.ID, &e.ActionID, &e.Transition, &e.Cause, &detail, &createdStr); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if detail.Valid {
			e.Detail = detail.String
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
