package relstate

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/agency-engine/internal/posture"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS relational_state_versions (
	version_id  TEXT PRIMARY KEY,
	parent_id   TEXT,
	trust       REAL NOT NULL,
	warmth      REAL NOT NULL,
	arousal     REAL NOT NULL,
	valence     REAL NOT NULL,
	posture     TEXT NOT NULL,
	reason      TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	FOREIGN KEY (parent_id) REFERENCES relational_state_versions(version_id)
);

CREATE TABLE IF NOT EXISTS active_state (
	id          INTEGER PRIMARY KEY CHECK (id = 1),
	version_id  TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES relational_state_versions(version_id)
);
`

// #endregion schema

// #region store-struct

// Store manages versioned relational state in SQLite. It owns the engine
// database connection; sibling stores attach via DB().
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by sibling stores (audit log,
// action requests, safety net).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion close

// #region create-initial

// CreateInitialState writes the neutral starting state and points the
// active pointer at it.
func (s *Store) CreateInitialState() (StateRecord, error) {
	rec := StateRecord{
		VersionID: uuid.New().String(),
		Trust:     0.3,
		Warmth:    0.3,
		Arousal:   ArousalFloor,
		Valence:   0,
		Posture:   posture.Peer,
		Reason:    "initial state",
		CreatedAt: time.Now().UTC(),
	}

	tx, err := s.db.Begin()
	if err != nil {
		return StateRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertVersion(tx, rec); err != nil {
		return StateRecord{}, err
	}
	_, err = tx.Exec(
		`INSERT INTO active_state (id, version_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET version_id = excluded.version_id`,
		rec.VersionID,
	)
	if err != nil {
		return StateRecord{}, fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return StateRecord{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// #endregion create-initial

// #region get-current

// GetCurrent reads the active state version.
func (s *Store) GetCurrent() (StateRecord, error) {
	var versionID string
	err := s.db.QueryRow(`SELECT version_id FROM active_state WHERE id = 1`).Scan(&versionID)
	if err != nil {
		return StateRecord{}, fmt.Errorf("get active: %w", err)
	}
	return s.GetVersion(versionID)
}

// #endregion get-current

// #region get-version

// GetVersion retrieves a specific state version by ID.
func (s *Store) GetVersion(id string) (StateRecord, error) {
	row := s.db.QueryRow(
		`SELECT version_id, parent_id, trust, warmth, arousal, valence, posture, reason, created_at
		 FROM relational_state_versions WHERE version_id = ?`, id,
	)
	rec, err := scanVersion(row)
	if err != nil {
		return StateRecord{}, fmt.Errorf("get version %s: %w", id, err)
	}
	return rec, nil
}

// #endregion get-version

// #region commit-state

// CommitState inserts a new version and updates the active pointer
// atomically.
func (s *Store) CommitState(rec StateRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertVersion(tx, rec); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE active_state SET version_id = ? WHERE id = 1`, rec.VersionID); err != nil {
		return fmt.Errorf("update active: %w", err)
	}
	return tx.Commit()
}

// #endregion commit-state

// #region list-versions

// ListVersions returns the most recent state versions, newest first.
func (s *Store) ListVersions(limit int) ([]StateRecord, error) {
	rows, err := s.db.Query(
		`SELECT version_id, parent_id, trust, warmth, arousal, valence, posture, reason, created_at
		 FROM relational_state_versions ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var records []StateRecord
	for rows.Next() {
		rec, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion list-versions

// #region scan-helpers

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(row rowScanner) (StateRecord, error) {
	var rec StateRecord
	var parentID sql.NullString
	var postureStr, createdStr string
	err := row.Scan(&rec.VersionID, &parentID, &rec.Trust, &rec.Warmth,
		&rec.Arousal, &rec.Valence, &postureStr, &rec.Reason, &createdStr)
	if err != nil {
		return StateRecord{}, err
	}
	if parentID.Valid {
		rec.ParentID = parentID.String
	}
	rec.Posture = posture.Posture(postureStr)
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return rec, nil
}

func insertVersion(tx *sql.Tx, rec StateRecord) error {
	var parentPtr any
	if rec.ParentID != "" {
		parentPtr = rec.ParentID
	}
	_, err := tx.Exec(
		`INSERT INTO relational_state_versions
		 (version_id, parent_id, trust, warmth, arousal, valence, posture, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.VersionID, parentPtr, rec.Trust, rec.Warmth, rec.Arousal, rec.Valence,
		string(rec.Posture), rec.Reason, rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert version: %w", err)
	}
	return nil
}

// #endregion scan-helpers
