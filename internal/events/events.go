package events

import "time"

// #region event

// Type names an observer event emitted by the engine.
type Type string

const (
	TypeAuthorized     Type = "authorized"
	TypeDenied         Type = "denied"
	TypeCompleted      Type = "completed"
	TypeRolledBack     Type = "rolled_back"
	TypeTierChanged    Type = "tier_changed"
	TypePostureChanged Type = "posture_changed"
)

// Event is one observer notification. ActionID is empty for state-level
// events (tier and posture changes).
type Event struct {
	Type       Type
	ActionID   string
	ActionType string
	Resource   string
	Detail     string
	CreatedAt  time.Time
}

// #endregion event

// #region bus

// Bus fans observer events out to interested parties. Publishing must not
// fail the operation that produced the event; implementations log and
// swallow delivery errors.
type Bus interface {
	Publish(event Event)
	Close() error
}

// #endregion bus
