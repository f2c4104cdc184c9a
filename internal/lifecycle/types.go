package lifecycle

import (
	"time"

	xerrors "github.com/danielpatrickdp/agency-engine/internal/errors"
)

// #region status

// Status is the lifecycle stage of an action request. Transitions only move
// forward: once a request reaches a terminal status it never leaves it,
// except Completed/Failed -> RolledBack inside the undo window.
type Status string

const (
	StatusRequested  Status = "requested"
	StatusAuthorized Status = "authorized"
	StatusDenied     Status = "denied"
	StatusDryRun     Status = "dry_run"
	StatusExecuting  Status = "executing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRolledBack Status = "rolled_back"
)

// Terminal reports whether the status admits no further transition other
// than a rollback.
func (s Status) Terminal() bool {
	switch s {
	case StatusDenied, StatusDryRun, StatusCompleted, StatusFailed, StatusRolledBack:
		return true
	}
	return false
}

// #endregion status

// #region request

// ActionRequest is one tracked action with its current lifecycle state.
type ActionRequest struct {
	ID           string
	ActionType   string
	Resource     string
	Parameters   map[string]string
	RequestedBy  string
	RequestedAt  time.Time
	Status       Status
	DenyCode     xerrors.Code // set when Status is Denied or Failed
	StatusReason string
	Output       string // backend output for Completed / DryRun
}

// RequestInput is what a caller submits to Manager.Request.
type RequestInput struct {
	ActionType  string
	Resource    string
	Parameters  map[string]string
	RequestedBy string
	DryRun      bool
	Override    string // advisory override justification; empty means none
}

// #endregion request
