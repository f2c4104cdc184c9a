package posture

// #region thresholds

// SelectorConfig holds the qualification thresholds.
type SelectorConfig struct {
	StressThreshold float64 // Companion qualifies at or above this stress
	EnergyFloor     float64 // CoPilot needs at least this much energy
}

// DefaultSelectorConfig returns the standard thresholds.
func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		StressThreshold: 0.65,
		EnergyFloor:     0.4,
	}
}

// #endregion thresholds

// #region select

// Select is the pure posture selector: state + context signals in, one
// posture out. Deterministic and total.
//
// A valid explicit override wins outright. Otherwise each posture
// qualifies independently and ties break highest-care-first:
// Companion > Expert > CoPilot > Peer. Peer is the fallback, so the
// selector always returns a valid posture.
func Select(state StateView, signals ContextSignals, config SelectorConfig) Posture {
	if Valid(signals.Override) {
		return signals.Override
	}

	companion := signals.Stress >= config.StressThreshold
	expert := signals.TaskType == TaskTechnical || signals.TaskType == TaskDeepWork
	copilot := (signals.TaskType == TaskPlanning || signals.TaskType == TaskExecution) &&
		signals.Energy >= config.EnergyFloor

	switch {
	case companion:
		return Companion
	case expert:
		return Expert
	case copilot:
		return CoPilot
	}
	return Peer
}

// #endregion select
