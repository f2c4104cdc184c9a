package replay

import (
	"path/filepath"
	"testing"
)

// #region fixture-tests

// TestFixture_GatedSession loads the gated_session fixture, runs it, and
// compares each step's terminal status against the expectation. This is the
// primary regression test: if tier boundaries, contract defaults, or the
// request gate sequence change, this catches drift.
func TestFixture_GatedSession(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "gated_session.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}

	results, summary, err := Run(f)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != len(f.Steps) {
		t.Fatalf("expected %d results, got %d", len(f.Steps), len(results))
	}

	for i, r := range results {
		if !r.Match {
			t.Errorf("step %d (%s): expected %s/%s, got %s/%s (reason: %s)",
				i, r.StepID, r.Expected.Status, r.Expected.DenyCode, r.Status, r.DenyCode, r.Reason)
		}
	}
	if summary.Mismatches != 0 {
		t.Errorf("summary reports %d mismatches", summary.Mismatches)
	}
}

// TestFixture_MissingFile verifies the loader error path.
func TestFixture_MissingFile(t *testing.T) {
	if _, err := LoadFixture(filepath.Join("testdata", "does_not_exist.json")); err == nil {
		t.Fatal("expected error for missing fixture")
	}
}

// #endregion fixture-tests
