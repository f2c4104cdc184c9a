package safetynet

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/agency-engine/internal/backend"
	"github.com/danielpatrickdp/agency-engine/internal/cipher"
	"github.com/danielpatrickdp/agency-engine/internal/contract"
	xerrors "github.com/danielpatrickdp/agency-engine/internal/errors"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS safety_net_entries (
	action_id    TEXT PRIMARY KEY,
	snapshot_ref TEXT NOT NULL UNIQUE,
	description  TEXT,
	strategy     TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	expires_at   TEXT NOT NULL,
	rolled_back  INTEGER NOT NULL DEFAULT 0,
	expired      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS snapshot_images (
	snapshot_ref TEXT NOT NULL,
	resource     TEXT NOT NULL,
	hash         TEXT,
	existed      INTEGER NOT NULL,
	PRIMARY KEY (snapshot_ref, resource)
);

CREATE TABLE IF NOT EXISTS snapshot_blobs (
	hash       TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	created_at TEXT NOT NULL
);
`

// #endregion schema

// #region types

// PreImage records the state of one resource just before a mutation.
// Existed=false means the resource was absent; rollback deletes it.
type PreImage struct {
	Hash    string
	Existed bool
}

// Entry is one safety-net record. Read-only after creation except for the
// rolled_back flag (and the expiry mark set by the sweep).
type Entry struct {
	ActionID    string
	SnapshotRef string
	Description string
	Strategy    contract.RollbackStrategy
	Resources   []string
	PreImages   map[string]PreImage
	CreatedAt   time.Time
	ExpiresAt   time.Time
	RolledBack  bool
	Expired     bool
}

// RollbackResult reports what a rollback touched.
type RollbackResult struct {
	ActionID          string
	SnapshotRef       string
	Restored          []string
	AlreadyRolledBack bool
}

// #endregion types

// #region net

// Net is the snapshot-backed safety net: pre-mutation snapshots,
// a bounded undo window, and the rollback executor. Snapshots are
// content-addressed (SHA-256 of the pre-image) and encrypted at rest.
type Net struct {
	db        *sql.DB
	resources backend.ResourceStore
	cipher    *cipher.Cipher
	window    time.Duration
}

// NewNet runs migrations and returns a safety net with the given undo
// window.
func NewNet(db *sql.DB, resources backend.ResourceStore, c *cipher.Cipher, window time.Duration) (*Net, error) {
	if window <= 0 {
		window = time.Hour
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate safety net: %w", err)
	}
	return &Net{db: db, resources: resources, cipher: c, window: window}, nil
}

// Window returns the configured undo window.
func (n *Net) Window() time.Duration {
	return n.window
}

// #endregion net

// #region pre-action-commit

// PreActionCommit snapshots every affected resource atomically: either a
// complete, consistent snapshot lands in one transaction, or the call
// fails and nothing is recorded. Callers abort the action on failure; a
// reversible-required action never executes without a rollback point.
func (n *Net) PreActionCommit(actionID string, resources []string, strategy contract.RollbackStrategy, description string) (string, error) {
	if len(resources) == 0 {
		return "", xerrors.New(xerrors.CodeSafetyNetUnavailable, "no affected resources to snapshot")
	}

	// Read all pre-images before touching the database.
	type image struct {
		resource string
		pre      PreImage
		payload  []byte
	}
	images := make([]image, 0, len(resources))
	for _, res := range resources {
		exists, err := n.resources.Exists(res)
		if err != nil {
			return "", xerrors.Wrap(xerrors.CodeSafetyNetUnavailable, fmt.Sprintf("stat %s", res), err)
		}
		if !exists {
			images = append(images, image{resource: res, pre: PreImage{Existed: false}})
			continue
		}
		data, err := n.resources.Read(res)
		if err != nil {
			return "", xerrors.Wrap(xerrors.CodeSafetyNetUnavailable, fmt.Sprintf("read %s", res), err)
		}
		sum := sha256.Sum256(data)
		images = append(images, image{
			resource: res,
			pre:      PreImage{Hash: hex.EncodeToString(sum[:]), Existed: true},
			payload:  n.cipher.Encrypt(data),
		})
	}

	ref := uuid.New().String()
	now := time.Now().UTC()

	tx, err := n.db.Begin()
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeSafetyNetUnavailable, "begin snapshot tx", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO safety_net_entries (action_id, snapshot_ref, description, strategy, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		actionID, ref, nullIfEmpty(description), string(strategy),
		now.Format(time.RFC3339Nano), now.Add(n.window).Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeSafetyNetUnavailable, "insert entry", err)
	}

	for _, img := range images {
		var hashPtr any
		if img.pre.Existed {
			hashPtr = img.pre.Hash
			_, err = tx.Exec(
				`INSERT OR IGNORE INTO snapshot_blobs (hash, payload, created_at) VALUES (?, ?, ?)`,
				img.pre.Hash, img.payload, now.Format(time.RFC3339Nano),
			)
			if err != nil {
				return "", xerrors.Wrap(xerrors.CodeSafetyNetUnavailable, "insert blob", err)
			}
		}
		_, err = tx.Exec(
			`INSERT INTO snapshot_images (snapshot_ref, resource, hash, existed) VALUES (?, ?, ?, ?)`,
			ref, img.resource, hashPtr, boolInt(img.pre.Existed),
		)
		if err != nil {
			return "", xerrors.Wrap(xerrors.CodeSafetyNetUnavailable, "insert image", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", xerrors.Wrap(xerrors.CodeSafetyNetUnavailable, "commit snapshot", err)
	}
	return ref, nil
}

// #endregion pre-action-commit

// #region rollback

// Rollback restores the pre-snapshot state of every affected resource.
// Idempotent: a second call on a rolled-back entry reports
// ALREADY_ROLLED_BACK and touches nothing. Expired or unknown entries
// (and strategies without a rollback path) report NOT_ROLLBACKABLE.
func (n *Net) Rollback(actionID string) (RollbackResult, error) {
	entry, ok, err := n.Get(actionID)
	if err != nil {
		return RollbackResult{}, err
	}
	if !ok {
		return RollbackResult{}, xerrors.Newf(xerrors.CodeNotRollbackable, "no safety net entry for action %s", actionID)
	}

	result := RollbackResult{ActionID: actionID, SnapshotRef: entry.SnapshotRef}

	if entry.RolledBack {
		result.AlreadyRolledBack = true
		return result, xerrors.Newf(xerrors.CodeAlreadyRolledBack, "action %s already rolled back", actionID)
	}
	if entry.Strategy == contract.RollbackNone {
		return RollbackResult{}, xerrors.Newf(xerrors.CodeNotRollbackable, "action %s has no rollback strategy", actionID)
	}
	if entry.Expired || time.Now().UTC().After(entry.ExpiresAt) {
		return RollbackResult{}, xerrors.Newf(xerrors.CodeNotRollbackable, "undo window for action %s expired at %s", actionID, entry.ExpiresAt.Format(time.RFC3339))
	}

	for _, res := range entry.Resources {
		pre := entry.PreImages[res]
		switch {
		case entry.Strategy == contract.RollbackDiscard:
			// Drafts are discarded, not restored.
			if err := n.resources.Delete(res); err != nil {
				return result, fmt.Errorf("discard %s: %w", res, err)
			}
		case pre.Existed:
			payload, err := n.readBlob(pre.Hash)
			if err != nil {
				return result, err
			}
			if err := n.resources.Write(res, payload); err != nil {
				return result, fmt.Errorf("restore %s: %w", res, err)
			}
		default:
			// Resource did not exist before the action: remove it.
			if err := n.resources.Delete(res); err != nil {
				return result, fmt.Errorf("remove created %s: %w", res, err)
			}
		}
		result.Restored = append(result.Restored, res)
	}

	if _, err := n.db.Exec(`UPDATE safety_net_entries SET rolled_back = 1 WHERE action_id = ?`, actionID); err != nil {
		return result, fmt.Errorf("mark rolled back: %w", err)
	}
	return result, nil
}

func (n *Net) readBlob(hash string) ([]byte, error) {
	var payload []byte
	err := n.db.QueryRow(`SELECT payload FROM snapshot_blobs WHERE hash = ?`, hash).Scan(&payload)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", hash, err)
	}
	return n.cipher.Decrypt(payload), nil
}

// #endregion rollback

// #region get

// Get loads one entry with its per-resource pre-images.
func (n *Net) Get(actionID string) (Entry, bool, error) {
	var e Entry
	var desc sql.NullString
	var strategy, createdStr, expiresStr string
	var rolledBack, expired int
	err := n.db.QueryRow(
		`SELECT action_id, snapshot_ref, description, strategy, created_at, expires_at, rolled_back, expired
		 FROM safety_net_entries WHERE action_id = ?`, actionID,
	).Scan(&e.ActionID, &e.SnapshotRef, &desc, &strategy, &createdStr, &expiresStr, &rolledBack, &expired)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("get entry %s: %w", actionID, err)
	}
	if desc.Valid {
		e.Description = desc.String
	}
	e.Strategy = contract.RollbackStrategy(strategy)
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	e.ExpiresAt, _ = time.Parse(time.RFC3339Nano, expiresStr)
	e.RolledBack = rolledBack != 0
	e.Expired = expired != 0

	rows, err := n.db.Query(
		`SELECT resource, hash, existed FROM snapshot_images WHERE snapshot_ref = ? ORDER BY resource`,
		e.SnapshotRef,
	)
	if err != nil {
		return Entry{}, false, fmt.Errorf("get images: %w", err)
	}
	defer rows.Close()

	e.PreImages = make(map[string]PreImage)
	for rows.Next() {
		var resource string
		var hash sql.NullString
		var existed int
		if err := rows.Scan(&resource, &hash, &existed); err != nil {
			return Entry{}, false, fmt.Errorf("scan image: %w", err)
		}
		pre := PreImage{Existed: existed != 0}
		if hash.Valid {
			pre.Hash = hash.String
		}
		e.Resources = append(e.Resources, resource)
		e.PreImages[resource] = pre
	}
	return e, true, rows.Err()
}

// #endregion get

// #region helpers

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
