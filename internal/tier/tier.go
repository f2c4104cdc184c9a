package tier

import "fmt"

// #region tier

// Tier is a discrete permission level derived from the continuous trust score.
type Tier int

const (
	Tier0 Tier = iota // observer: read-only capabilities
	Tier1             // assistant: drafts and previews
	Tier2             // operator: sandboxed mutations
	Tier3             // delegate: full capability set
)

func (t Tier) String() string {
	return fmt.Sprintf("T%d", int(t))
}

// #endregion tier

// #region ladder

// Ladder maps the trust scalar onto tiers. Bounds are the inclusive lower
// trust value of each tier, ascending, starting at 0. A boundary value
// belongs to the higher tier.
type Ladder struct {
	bounds []float64
}

// NewLadder builds a ladder from ascending lower bounds. The first bound
// must be 0 so the ladder is exhaustive over [0, 1].
func NewLadder(bounds []float64) (Ladder, error) {
	if len(bounds) == 0 || bounds[0] != 0 {
		return Ladder{}, fmt.Errorf("ladder bounds must start at 0, got %v", bounds)
	}
	for i := 1; i < len(bounds); i++ {
		if bounds[i] <= bounds[i-1] {
			return Ladder{}, fmt.Errorf("ladder bounds must be strictly ascending, got %v", bounds)
		}
		if bounds[i] > 1 {
			return Ladder{}, fmt.Errorf("ladder bound %v exceeds 1", bounds[i])
		}
	}
	b := make([]float64, len(bounds))
	copy(b, bounds)
	return Ladder{bounds: b}, nil
}

// DefaultLadder returns the standard four-tier ladder:
// T0 [0, 0.60), T1 [0.60, 0.75), T2 [0.75, 0.90), T3 [0.90, 1].
func DefaultLadder() Ladder {
	l, _ := NewLadder([]float64{0, 0.60, 0.75, 0.90})
	return l
}

// Top returns the highest tier of the ladder.
func (l Ladder) Top() Tier {
	return Tier(len(l.bounds) - 1)
}

// Resolve maps a trust scalar to its tier. Total: out-of-range input is
// clamped to [0, 1] first, matching the clamp discipline of the state store.
func (l Ladder) Resolve(trust float64) Tier {
	if trust < 0 {
		trust = 0
	}
	if trust > 1 {
		trust = 1
	}
	tier := Tier0
	for i, lo := range l.bounds {
		if trust >= lo {
			tier = Tier(i)
		}
	}
	return tier
}

// #endregion ladder
