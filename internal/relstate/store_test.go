package relstate

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/agency-engine/internal/posture"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateInitialAndGetCurrent(t *testing.T) {
	s := tempStore(t)

	rec, err := s.CreateInitialState()
	if err != nil {
		t.Fatalf("CreateInitialState: %v", err)
	}
	if rec.VersionID == "" {
		t.Fatal("expected non-empty version ID")
	}
	if rec.ParentID != "" {
		t.Fatalf("expected empty parent, got %s", rec.ParentID)
	}
	if rec.Arousal != ArousalFloor {
		t.Fatalf("initial arousal = %f, want floor %f", rec.Arousal, ArousalFloor)
	}
	if rec.Posture != posture.Peer {
		t.Fatalf("initial posture = %s, want peer", rec.Posture)
	}

	cur, err := s.GetCurrent()
	if err != nil {
		t.Fatalf("GetCurrent: %v", err)
	}
	if cur.VersionID != rec.VersionID {
		t.Fatalf("expected %s, got %s", rec.VersionID, cur.VersionID)
	}
}

func TestCommitStateAdvancesActivePointer(t *testing.T) {
	s := tempStore(t)
	initial, err := s.CreateInitialState()
	if err != nil {
		t.Fatalf("CreateInitialState: %v", err)
	}

	next := StateRecord{
		VersionID: uuid.New().String(),
		ParentID:  initial.VersionID,
		Trust:     0.45,
		Warmth:    0.5,
		Arousal:   0.3,
		Valence:   0.2,
		Posture:   posture.CoPilot,
		Reason:    "pleasant planning session",
		CreatedAt: time.Now().UTC(),
	}
	if err := s.CommitState(next); err != nil {
		t.Fatalf("CommitState: %v", err)
	}

	cur, err := s.GetCurrent()
	if err != nil {
		t.Fatalf("GetCurrent: %v", err)
	}
	if cur.VersionID != next.VersionID {
		t.Fatalf("active pointer not advanced: %s", cur.VersionID)
	}
	if cur.Trust != 0.45 || cur.Posture != posture.CoPilot {
		t.Fatalf("round-trip mismatch: %+v", cur)
	}
	if cur.Reason != "pleasant planning session" {
		t.Fatalf("reason lost: %q", cur.Reason)
	}
}

func TestGetVersionUnknown(t *testing.T) {
	s := tempStore(t)
	if _, err := s.GetVersion("nope"); err == nil {
		t.Fatal("expected error for unknown version")
	}
}

func TestListVersionsNewestFirst(t *testing.T) {
	s := tempStore(t)
	initial, _ := s.CreateInitialState()

	prev := initial
	for i := 0; i < 3; i++ {
		rec := prev
		rec.VersionID = uuid.New().String()
		rec.ParentID = prev.VersionID
		rec.Trust += 0.1
		rec.Reason = "step"
		rec.CreatedAt = time.Now().UTC().Add(time.Duration(i+1) * time.Millisecond)
		if err := s.CommitState(rec); err != nil {
			t.Fatalf("CommitState: %v", err)
		}
		prev = rec
	}

	list, err := s.ListVersions(10)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(list) != 4 {
		t.Fatalf("expected 4 versions, got %d", len(list))
	}
	if list[0].VersionID != prev.VersionID {
		t.Fatalf("expected newest first, got %s", list[0].VersionID)
	}
}
