package relstate

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danielpatrickdp/agency-engine/internal/events"
	"github.com/danielpatrickdp/agency-engine/internal/posture"
	"github.com/danielpatrickdp/agency-engine/internal/tier"
)

func tempWriter(t *testing.T, bus events.Bus) *Writer {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	w, err := NewWriter(s, tier.DefaultLadder(), bus, DefaultWriterConfig())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	return w
}

func TestApplyRequiresReason(t *testing.T) {
	w := tempWriter(t, nil)
	if _, err := w.Apply(Event{TrustDelta: 0.1}); err == nil {
		t.Fatal("expected error for missing reason")
	}
}

func TestApplyClampsDeltas(t *testing.T) {
	w := tempWriter(t, nil)

	rec, err := w.Apply(Event{TrustDelta: 5, WarmthDelta: -5, ValenceDelta: -5, Reason: "clamp check"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if rec.Trust != 1 {
		t.Fatalf("trust = %f, want 1", rec.Trust)
	}
	if rec.Warmth != 0 {
		t.Fatalf("warmth = %f, want 0", rec.Warmth)
	}
	if rec.Valence != -1 {
		t.Fatalf("valence = %f, want -1", rec.Valence)
	}
}

func TestApplyEnforcesArousalFloor(t *testing.T) {
	w := tempWriter(t, nil)
	rec, err := w.Apply(Event{ArousalDelta: -1, Reason: "push below floor"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if rec.Arousal != ArousalFloor {
		t.Fatalf("arousal = %f, want floor %f", rec.Arousal, ArousalFloor)
	}
}

func TestApplyConcurrentNoLostUpdates(t *testing.T) {
	w := tempWriter(t, nil)
	start := w.Snapshot().Valence

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := w.Apply(Event{ValenceDelta: 0.01, Reason: "concurrent bump"}); err != nil {
				t.Errorf("Apply: %v", err)
			}
		}()
	}
	wg.Wait()

	got := w.Snapshot().Valence
	want := start + 0.4
	if got < want-1e-9 || got > want+1e-9 {
		t.Fatalf("valence = %f, want %f (lost update?)", got, want)
	}
}

func TestTierChangedEventEmitted(t *testing.T) {
	bus := events.NewMemoryBus()
	var tierEvents []events.Event
	bus.Subscribe(func(e events.Event) {
		if e.Type == events.TypeTierChanged {
			tierEvents = append(tierEvents, e)
		}
	})
	w := tempWriter(t, bus)

	// Initial trust 0.3 (T0); push to 0.65 (T1).
	if _, err := w.Apply(Event{TrustDelta: 0.35, Reason: "trust earned"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(tierEvents) != 1 {
		t.Fatalf("expected one tier change event, got %d", len(tierEvents))
	}
	if !strings.Contains(tierEvents[0].Detail, "T0 -> T1") {
		t.Fatalf("unexpected detail: %s", tierEvents[0].Detail)
	}

	// A move within the same tier emits nothing further.
	if _, err := w.Apply(Event{TrustDelta: 0.01, Reason: "small bump"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(tierEvents) != 1 {
		t.Fatalf("expected no additional event, got %d", len(tierEvents))
	}
}

func TestPostureChangedEventEmitted(t *testing.T) {
	bus := events.NewMemoryBus()
	var postureEvents []events.Event
	bus.Subscribe(func(e events.Event) {
		if e.Type == events.TypePostureChanged {
			postureEvents = append(postureEvents, e)
		}
	})
	w := tempWriter(t, bus)

	if _, err := w.Apply(Event{Posture: posture.Companion, Reason: "creator under stress"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(postureEvents) != 1 {
		t.Fatalf("expected one posture change event, got %d", len(postureEvents))
	}
}

func TestElasticAmplifiesPositiveDeltasOnly(t *testing.T) {
	w := tempWriter(t, nil)
	if _, err := w.EnterElastic(time.Minute, "late-night vulnerable conversation"); err != nil {
		t.Fatalf("EnterElastic: %v", err)
	}
	if !w.ElasticActive() {
		t.Fatal("elastic window should be open")
	}

	before := w.Snapshot()
	rec, err := w.Apply(Event{TrustDelta: 0.1, Reason: "opened up"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := before.Trust + 0.15 // 1.5x amplification
	if rec.Trust < want-1e-9 || rec.Trust > want+1e-9 {
		t.Fatalf("trust = %f, want %f", rec.Trust, want)
	}

	// Negative deltas are not amplified.
	before = w.Snapshot()
	rec, err = w.Apply(Event{TrustDelta: -0.1, Reason: "missed commitment"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want = before.Trust - 0.1
	if rec.Trust < want-1e-9 || rec.Trust > want+1e-9 {
		t.Fatalf("trust = %f, want %f (negative delta must not amplify)", rec.Trust, want)
	}
}

func TestElasticClampedAndExpires(t *testing.T) {
	w := tempWriter(t, nil)

	until, err := w.EnterElastic(100*time.Hour, "cap check")
	if err != nil {
		t.Fatalf("EnterElastic: %v", err)
	}
	if time.Until(until) > DefaultWriterConfig().ElasticMax+time.Minute {
		t.Fatalf("elastic window not clamped: ends %s", until)
	}

	w.ExitElastic()
	if w.ElasticActive() {
		t.Fatal("elastic window should be closed after ExitElastic")
	}

	if _, err := w.EnterElastic(time.Minute, ""); err == nil {
		t.Fatal("expected error for missing elastic reason")
	}
}

func TestDecayApproachesFloorNeverCrosses(t *testing.T) {
	w := tempWriter(t, nil)
	if _, err := w.Apply(Event{ArousalDelta: 0.6, Reason: "energetic day"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	// Simulate 30 days of decay in daily ticks.
	for i := 0; i < 30; i++ {
		rec, err := w.DecayTick(24 * time.Hour)
		if err != nil {
			t.Fatalf("DecayTick: %v", err)
		}
		if rec.Arousal < ArousalFloor {
			t.Fatalf("arousal %f crossed the floor on day %d", rec.Arousal, i)
		}
	}

	final := w.Snapshot().Arousal
	if final > ArousalFloor+0.01 {
		t.Fatalf("arousal %f did not approach the floor after 30 days", final)
	}
	if final < ArousalFloor {
		t.Fatalf("arousal %f below floor", final)
	}
}

func TestDecayNoOpAtFloor(t *testing.T) {
	w := tempWriter(t, nil)
	before := w.Snapshot()
	rec, err := w.DecayTick(24 * time.Hour)
	if err != nil {
		t.Fatalf("DecayTick: %v", err)
	}
	if rec.VersionID != before.VersionID {
		t.Fatal("decay at the floor should not write a new version")
	}
}
