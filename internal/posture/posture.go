package posture

// #region posture

// Posture is a behavioral mode. It shapes tone and framing only and is
// never consulted for authorization decisions.
type Posture string

const (
	Companion Posture = "companion"
	CoPilot   Posture = "copilot"
	Peer      Posture = "peer"
	Expert    Posture = "expert"
)

// Valid reports whether p names a known posture.
func Valid(p Posture) bool {
	switch p {
	case Companion, CoPilot, Peer, Expert:
		return true
	}
	return false
}

// #endregion posture

// #region context-signals

// TaskType coarsely classifies the work the creator is engaged in.
type TaskType string

const (
	TaskUnknown   TaskType = ""
	TaskTechnical TaskType = "technical"
	TaskDeepWork  TaskType = "deep_work"
	TaskPlanning  TaskType = "planning"
	TaskExecution TaskType = "execution"
	TaskCasual    TaskType = "casual"
)

// ContextSignals carries the externally supplied inputs to the selector.
// Stress and Energy are estimates in [0, 1] from the creator-state feed.
type ContextSignals struct {
	Stress   float64
	Energy   float64
	TaskType TaskType
	Override Posture // explicit posture request; wins when valid
}

// #endregion context-signals

// #region state-view

// StateView is the slice of relational state the selector reads. Kept as a
// plain value so the selector stays pure and free of store dependencies.
type StateView struct {
	Trust  float64
	Warmth float64
}

// #endregion state-view
