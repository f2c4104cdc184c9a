package relstate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/agency-engine/internal/events"
	"github.com/danielpatrickdp/agency-engine/internal/tier"
)

// #region config

// WriterConfig holds decay and elastic-mode parameters.
type WriterConfig struct {
	DecayRatePerDay float64       // fraction of the arousal-above-floor gap shed per day
	ElasticMax      time.Duration // hard cap on one elastic window
	ElasticAmplify  float64       // multiplier on positive trust/warmth deltas while elastic
}

// DefaultWriterConfig returns the standard parameters.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		DecayRatePerDay: 0.15,
		ElasticMax:      2 * time.Hour,
		ElasticAmplify:  1.5,
	}
}

// #endregion config

// #region writer-struct

// Writer is the single authoritative writer over the relational state.
// All mutations are serialized through one mutex so no update is lost;
// reads go through an atomic snapshot pointer and never block writers.
type Writer struct {
	mu      sync.Mutex
	store   *Store
	current atomic.Pointer[StateRecord]
	ladder  tier.Ladder
	bus     events.Bus
	config  WriterConfig

	elasticUntil  time.Time
	elasticReason string
}

// NewWriter loads (or creates) the active state and wraps it in a writer.
func NewWriter(store *Store, ladder tier.Ladder, bus events.Bus, config WriterConfig) (*Writer, error) {
	rec, err := store.GetCurrent()
	if err != nil {
		rec, err = store.CreateInitialState()
		if err != nil {
			return nil, fmt.Errorf("create initial state: %w", err)
		}
	}
	if bus == nil {
		bus = events.NopBus{}
	}
	w := &Writer{store: store, ladder: ladder, bus: bus, config: config}
	w.current.Store(&rec)
	return w, nil
}

// #endregion writer-struct

// #region snapshot

// Snapshot returns an immutable copy of the current state. Lock-free.
func (w *Writer) Snapshot() StateRecord {
	return *w.current.Load()
}

// Tier resolves the current trust scalar against the writer's ladder.
func (w *Writer) Tier() tier.Tier {
	return w.ladder.Resolve(w.Snapshot().Trust)
}

// #endregion snapshot

// #region apply

// Apply serializes one state mutation: clamps every delta into its domain,
// enforces the arousal floor, persists a new version, and emits tier and
// posture change events when the derived values move.
func (w *Writer) Apply(event Event) (StateRecord, error) {
	if event.Reason == "" {
		return StateRecord{}, errors.New("state event requires a reason")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	old := *w.current.Load()

	trustDelta, warmthDelta := event.TrustDelta, event.WarmthDelta
	if w.elasticActiveLocked(time.Now()) {
		if trustDelta > 0 {
			trustDelta *= w.config.ElasticAmplify
		}
		if warmthDelta > 0 {
			warmthDelta *= w.config.ElasticAmplify
		}
	}

	next := StateRecord{
		VersionID: uuid.New().String(),
		ParentID:  old.VersionID,
		Trust:     clamp(old.Trust+trustDelta, 0, 1),
		Warmth:    clamp(old.Warmth+warmthDelta, 0, 1),
		Arousal:   clamp(old.Arousal+event.ArousalDelta, ArousalFloor, 1),
		Valence:   clamp(old.Valence+event.ValenceDelta, -1, 1),
		Posture:   old.Posture,
		Reason:    event.Reason,
		CreatedAt: time.Now().UTC(),
	}
	if event.Posture != "" {
		next.Posture = event.Posture
	}

	if err := w.store.CommitState(next); err != nil {
		return StateRecord{}, fmt.Errorf("commit state: %w", err)
	}
	w.current.Store(&next)

	oldTier := w.ladder.Resolve(old.Trust)
	newTier := w.ladder.Resolve(next.Trust)
	if oldTier != newTier {
		w.bus.Publish(events.Event{
			Type:   events.TypeTierChanged,
			Detail: fmt.Sprintf("%s -> %s (trust %.3f)", oldTier, newTier, next.Trust),
		})
	}
	if old.Posture != next.Posture {
		w.bus.Publish(events.Event{
			Type:   events.TypePostureChanged,
			Detail: fmt.Sprintf("%s -> %s", old.Posture, next.Posture),
		})
	}

	return next, nil
}

// #endregion apply

// #region elastic

// EnterElastic opens an elastic window for high-vulnerability interactions.
// The window is clamped to the configured maximum and auto-expires; it can
// only be shortened, never silently extended past the cap.
func (w *Writer) EnterElastic(d time.Duration, reason string) (time.Time, error) {
	if reason == "" {
		return time.Time{}, errors.New("elastic mode requires a reason")
	}
	if d <= 0 {
		return time.Time{}, errors.New("elastic duration must be positive")
	}
	if d > w.config.ElasticMax {
		d = w.config.ElasticMax
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.elasticUntil = time.Now().Add(d)
	w.elasticReason = reason
	log.Printf("[STATE] elastic mode until %s: %s", w.elasticUntil.Format(time.RFC3339), reason)
	return w.elasticUntil, nil
}

// ExitElastic closes the window early.
func (w *Writer) ExitElastic() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.elasticUntil = time.Time{}
	w.elasticReason = ""
}

// ElasticActive reports whether an elastic window is currently open.
func (w *Writer) ElasticActive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.elasticActiveLocked(time.Now())
}

func (w *Writer) elasticActiveLocked(now time.Time) bool {
	if w.elasticUntil.IsZero() {
		return false
	}
	if now.After(w.elasticUntil) {
		w.elasticUntil = time.Time{}
		w.elasticReason = ""
		return false
	}
	return true
}

// #endregion elastic

// #region decay

// DecayTick applies one decay step covering the given elapsed wall time.
// Decay is exponential: arousal sheds a fixed fraction of its distance
// above the floor per day, so it approaches the floor and never crosses it.
func (w *Writer) DecayTick(elapsed time.Duration) (StateRecord, error) {
	cur := w.Snapshot()
	gap := cur.Arousal - ArousalFloor
	if gap <= 0 {
		return cur, nil
	}
	days := elapsed.Hours() / 24
	factor := 1 - w.config.DecayRatePerDay
	if factor < 0 {
		factor = 0
	}
	decayed := gap * math.Pow(factor, days)
	delta := decayed - gap // negative
	if delta == 0 {
		return cur, nil
	}
	return w.Apply(Event{
		ArousalDelta: delta,
		Reason:       fmt.Sprintf("arousal decay over %s", elapsed),
	})
}

// StartDecay runs DecayTick on the given interval until ctx is done.
// Each tick's critical section is one Apply call, so decay never stalls
// foreground authorization for long.
func (w *Writer) StartDecay(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := w.DecayTick(interval); err != nil {
					log.Printf("[STATE] decay tick failed: %v", err)
				}
			}
		}
	}()
}

// #endregion decay
