package relstate

import (
	"time"

	"github.com/danielpatrickdp/agency-engine/internal/posture"
)

// #region constants

// ArousalFloor is the hard lower bound on arousal. Decay and negative
// deltas may approach it but never cross it.
const ArousalFloor = 0.2

// #endregion constants

// #region state-record

// StateRecord is one versioned snapshot of the relational state. Records
// are immutable; every mutation writes a new version carrying its reason.
type StateRecord struct {
	VersionID string
	ParentID  string
	Trust     float64 // [0, 1]
	Warmth    float64 // [0, 1]
	Arousal   float64 // [ArousalFloor, 1]
	Valence   float64 // [-1, 1]
	Posture   posture.Posture
	Reason    string
	CreatedAt time.Time
}

// #endregion state-record

// #region event

// Event is one requested mutation of the relational state. Deltas are
// clamped into their domains on apply. Reason is mandatory: an unexplained
// state change is rejected.
type Event struct {
	TrustDelta   float64
	WarmthDelta  float64
	ArousalDelta float64
	ValenceDelta float64
	Posture      posture.Posture // non-empty = set posture
	Reason       string
}

// #endregion event

// #region clamp

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// #endregion clamp
