package tier

import (
	"testing"

	xerrors "github.com/danielpatrickdp/agency-engine/internal/errors"
)

func TestResolvePartitionsUnitInterval(t *testing.T) {
	l := DefaultLadder()

	// Every trust value resolves to exactly one tier, and tiers are
	// monotonically non-decreasing as trust grows.
	prev := Tier0
	for i := 0; i <= 1000; i++ {
		trust := float64(i) / 1000
		tier := l.Resolve(trust)
		if tier < Tier0 || tier > Tier3 {
			t.Fatalf("trust %.3f resolved outside ladder: %v", trust, tier)
		}
		if tier < prev {
			t.Fatalf("tier decreased from %v to %v at trust %.3f", prev, tier, trust)
		}
		prev = tier
	}
}

func TestResolveBoundariesBelongToHigherTier(t *testing.T) {
	l := DefaultLadder()
	cases := []struct {
		trust float64
		want  Tier
	}{
		{0.0, Tier0},
		{0.55, Tier0},
		{0.5999, Tier0},
		{0.60, Tier1},
		{0.7499, Tier1},
		{0.75, Tier2},
		{0.82, Tier2},
		{0.8999, Tier2},
		{0.90, Tier3},
		{1.0, Tier3},
	}
	for _, c := range cases {
		if got := l.Resolve(c.trust); got != c.want {
			t.Errorf("Resolve(%.4f) = %v, want %v", c.trust, got, c.want)
		}
	}
}

func TestResolveClampsOutOfRange(t *testing.T) {
	l := DefaultLadder()
	if got := l.Resolve(-0.5); got != Tier0 {
		t.Fatalf("Resolve(-0.5) = %v, want Tier0", got)
	}
	if got := l.Resolve(1.5); got != Tier3 {
		t.Fatalf("Resolve(1.5) = %v, want Tier3", got)
	}
}

func TestNewLadderRejectsBadBounds(t *testing.T) {
	if _, err := NewLadder([]float64{0.1, 0.5}); err == nil {
		t.Fatal("expected error for bounds not starting at 0")
	}
	if _, err := NewLadder([]float64{0, 0.5, 0.5}); err == nil {
		t.Fatal("expected error for non-ascending bounds")
	}
	if _, err := NewLadder([]float64{0, 1.5}); err == nil {
		t.Fatal("expected error for bound above 1")
	}
	if _, err := NewLadder(nil); err == nil {
		t.Fatal("expected error for empty bounds")
	}
}

func TestAuthorizeGrantsAtOrAboveMinimum(t *testing.T) {
	a := Authorize(Tier2, Tier2, "", false)
	if a.Outcome != OutcomeGranted {
		t.Fatalf("expected granted, got %s: %s", a.Outcome, a.Reason)
	}
	if !a.Allowed() {
		t.Fatal("granted authorization should allow")
	}
}

func TestAuthorizeDeniesBelowMinimum(t *testing.T) {
	a := Authorize(Tier0, Tier2, "", false)
	if a.Outcome != OutcomeDenied {
		t.Fatalf("expected denied, got %s", a.Outcome)
	}
	if a.Code != xerrors.CodeInsufficientTrust {
		t.Fatalf("expected INSUFFICIENT_TRUST, got %s", a.Code)
	}
	if a.Allowed() {
		t.Fatal("denied authorization should not allow")
	}
}

func TestAuthorizeOverrideCarriesJustification(t *testing.T) {
	a := Authorize(Tier0, Tier3, "creator asked twice, urgent tax deadline", false)
	if a.Outcome != OutcomeOverridden {
		t.Fatalf("expected overridden, got %s", a.Outcome)
	}
	if a.Reason != "creator asked twice, urgent tax deadline" {
		t.Fatalf("justification lost: %q", a.Reason)
	}
	if !a.Allowed() {
		t.Fatal("overridden authorization should allow")
	}
}

func TestAuthorizeElasticGraceSpansOneTierOnly(t *testing.T) {
	// One tier short: grace grants.
	a := Authorize(Tier1, Tier2, "", true)
	if a.Outcome != OutcomeGranted {
		t.Fatalf("expected grace grant, got %s: %s", a.Outcome, a.Reason)
	}

	// Two tiers short: grace does not reach.
	a = Authorize(Tier0, Tier2, "", true)
	if a.Outcome != OutcomeDenied {
		t.Fatalf("expected denial beyond grace span, got %s", a.Outcome)
	}
}
