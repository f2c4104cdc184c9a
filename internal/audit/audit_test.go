package audit

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func tempLog(t *testing.T) *Log {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	l, err := NewLog(db)
	if err != nil {
		t.Fatalf("NewLog: %v", err)
	}
	return l
}

func TestAppendAndListByAction(t *testing.T) {
	l := tempLog(t)

	entries := []Entry{
		{ActionID: "a-1", Transition: "requested -> authorized", Cause: "ok"},
		{ActionID: "a-1", Transition: "authorized -> executing", Cause: "ok"},
		{ActionID: "a-2", Transition: "requested -> denied", Cause: "INSUFFICIENT_TRUST", Detail: "tier T0 below minimum T2"},
	}
	for _, e := range entries {
		if err := l.Append(e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := l.ListByAction("a-1")
	if err != nil {
		t.Fatalf("ListByAction: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries for a-1, got %d", len(got))
	}
	if got[0].Transition != "requested -> authorized" {
		t.Fatalf("expected oldest first, got %q", got[0].Transition)
	}
	if got[0].CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be stamped")
	}

	got, err = l.ListByAction("a-2")
	if err != nil {
		t.Fatalf("ListByAction: %v", err)
	}
	if len(got) != 1 || got[0].Detail != "tier T0 below minimum T2" {
		t.Fatalf("unexpected a-2 entries: %+v", got)
	}
}

func TestListRange(t *testing.T) {
	l := tempLog(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		err := l.Append(Entry{
			ActionID:   "a-1",
			Transition: "tick",
			Cause:      "ok",
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := l.ListRange(base.Add(time.Hour), base.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("ListRange: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries in range, got %d", len(got))
	}
}

func TestListByActionEmpty(t *testing.T) {
	l := tempLog(t)
	got, err := l.ListByAction("missing")
	if err != nil {
		t.Fatalf("ListByAction: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no entries, got %d", len(got))
	}
}
