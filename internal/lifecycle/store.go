package lifecycle

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	xerrors "github.com/danielpatrickdp/agency-engine/internal/errors"
)

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS action_requests (
	id            TEXT PRIMARY KEY,
	action_type   TEXT NOT NULL,
	resource      TEXT NOT NULL,
	parameters    TEXT,
	requested_by  TEXT,
	requested_at  TEXT NOT NULL,
	status        TEXT NOT NULL,
	deny_code     TEXT,
	status_reason TEXT,
	output        TEXT
);

CREATE INDEX IF NOT EXISTS idx_action_requests_requested_at
	ON action_requests (requested_at);
`

// #endregion schema

// #region store

// Store persists action requests.
type Store struct {
	db *sql.DB
}

// NewStore runs migrations and returns a request store.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate action_requests: %w", err)
	}
	return &Store{db: db}, nil
}

// Save inserts a new request row.
func (s *Store) Save(req ActionRequest) error {
	params, err := encodeParams(req.Parameters)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO action_requests
		 (id, action_type, resource, parameters, requested_by, requested_at, status, deny_code, status_reason, output)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.ActionType, req.Resource, params,
		nullIfEmpty(req.RequestedBy), req.RequestedAt.UTC().Format(time.RFC3339Nano),
		string(req.Status), nullIfEmpty(string(req.DenyCode)),
		nullIfEmpty(req.StatusReason), nullIfEmpty(req.Output),
	)
	if err != nil {
		return fmt.Errorf("save action request %s: %w", req.ID, err)
	}
	return nil
}

// UpdateStatus advances one request to a new status.
func (s *Store) UpdateStatus(id string, status Status, denyCode xerrors.Code, reason, output string) error {
	res, err := s.db.Exec(
		`UPDATE action_requests SET status = ?, deny_code = ?, status_reason = ?, output = ?
		 WHERE id = ?`,
		string(status), nullIfEmpty(string(denyCode)), nullIfEmpty(reason), nullIfEmpty(output), id,
	)
	if err != nil {
		return fmt.Errorf("update action request %s: %w", id, err)
	}
	if count, _ := res.RowsAffected(); count == 0 {
		return fmt.Errorf("update action request %s: not found", id)
	}
	return nil
}

// Get loads one request by id.
func (s *Store) Get(id string) (ActionRequest, error) {
	row := s.db.QueryRow(
		`SELECT id, action_type, resource, parameters, requested_by, requested_at, status, deny_code, status_reason, output
		 FROM action_requests WHERE id = ?`, id,
	)
	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return ActionRequest{}, xerrors.Newf(xerrors.CodeInvalidRequest, "unknown action request %s", id)
	}
	if err != nil {
		return ActionRequest{}, fmt.Errorf("get action request %s: %w", id, err)
	}
	return req, nil
}

// ListRange returns requests with requested_at in [from, to), oldest first.
func (s *Store) ListRange(from, to time.Time) ([]ActionRequest, error) {
	rows, err := s.db.Query(
		`SELECT id, action_type, resource, parameters, requested_by, requested_at, status, deny_code, status_reason, output
		 FROM action_requests WHERE requested_at >= ? AND requested_at < ?
		 ORDER BY requested_at, id`,
		from.UTC().Format(time.RFC3339Nano), to.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("list action requests: %w", err)
	}
	defer rows.Close()

	var out []ActionRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan action request: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// #endregion store

// #region helpers

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (ActionRequest, error) {
	var req ActionRequest
	var params, requestedBy, denyCode, reason, output sql.NullString
	var requestedStr, status string
	err := row.Scan(
		&req.ID, &req.ActionType, &req.Resource, &params, &requestedBy,
		&requestedStr, &status, &denyCode, &reason, &output,
	)
	if err != nil {
		return ActionRequest{}, err
	}
	if params.Valid && params.String != "" {
		if err := json.Unmarshal([]byte(params.String), &req.Parameters); err != nil {
			return ActionRequest{}, fmt.Errorf("decode parameters: %w", err)
		}
	}
	if requestedBy.Valid {
		req.RequestedBy = requestedBy.String
	}
	req.RequestedAt, _ = time.Parse(time.RFC3339Nano, requestedStr)
	req.Status = Status(status)
	if denyCode.Valid {
		req.DenyCode = xerrors.Code(denyCode.String)
	}
	if reason.Valid {
		req.StatusReason = reason.String
	}
	if output.Valid {
		req.Output = output.String
	}
	return req, nil
}

func encodeParams(params map[string]string) (any, error) {
	if len(params) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode parameters: %w", err)
	}
	return string(data), nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
