package backend

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestFileResourceStoreRoundTrip(t *testing.T) {
	s, err := NewFileResourceStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileResourceStore: %v", err)
	}

	if err := s.Write("workspace/notes/today.md", []byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("workspace/notes/today.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("read back %q", got)
	}

	ok, err := s.Exists("workspace/notes/today.md")
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}

	if err := s.Delete("workspace/notes/today.md"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	ok, err = s.Exists("workspace/notes/today.md")
	if err != nil || ok {
		t.Fatalf("Exists after delete = %v, %v", ok, err)
	}
}

func TestFileResourceStoreRejectsEscapes(t *testing.T) {
	s, err := NewFileResourceStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileResourceStore: %v", err)
	}
	if _, err := s.Read("../outside"); err == nil {
		t.Fatal("expected error for upward escape")
	}
	if err := s.Write("/etc/passwd", []byte("x")); err == nil {
		t.Fatal("expected error for absolute path")
	}
}

func TestFileResourceStoreDeleteMissingIsNoOp(t *testing.T) {
	s, err := NewFileResourceStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileResourceStore: %v", err)
	}
	if err := s.Delete("never/existed"); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
}

func TestFileBackendWriteAndDelete(t *testing.T) {
	res := NewMemoryResourceStore()
	b := NewFileBackend(res)
	ctx := context.Background()

	result, err := b.Execute(ctx, Action{
		ID:         "a-1",
		ActionType: "file_write",
		Resource:   "workspace/out.txt",
		Parameters: map[string]string{"content": "payload"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(result.Output, "7 bytes") {
		t.Fatalf("unexpected output: %s", result.Output)
	}
	got, _ := res.Read("workspace/out.txt")
	if string(got) != "payload" {
		t.Fatalf("resource content %q", got)
	}

	if _, err := b.Execute(ctx, Action{ID: "a-2", ActionType: "file_delete", Resource: "workspace/out.txt"}); err != nil {
		t.Fatalf("Execute delete: %v", err)
	}
	if ok, _ := res.Exists("workspace/out.txt"); ok {
		t.Fatal("resource should be gone")
	}
}

func TestFileBackendPreviewDoesNotMutate(t *testing.T) {
	res := NewMemoryResourceStore()
	b := NewFileBackend(res)

	_, err := b.Preview(context.Background(), Action{
		ActionType: "file_write",
		Resource:   "workspace/out.txt",
		Parameters: map[string]string{"content": "payload"},
	})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if ok, _ := res.Exists("workspace/out.txt"); ok {
		t.Fatal("preview must not create the resource")
	}
}

func TestFileBackendUnknownActionType(t *testing.T) {
	b := NewFileBackend(NewMemoryResourceStore())
	if _, err := b.Execute(context.Background(), Action{ActionType: "launch_rocket"}); err == nil {
		t.Fatal("expected error for unsupported action type")
	}
}

func TestScriptedBackendInjectedFailure(t *testing.T) {
	res := NewMemoryResourceStore()
	b := NewScriptedBackend(res)
	boom := errors.New("disk on fire")
	b.FailAction("a-1", boom)

	_, err := b.Execute(context.Background(), Action{
		ID:         "a-1",
		ActionType: "file_write",
		Resource:   "workspace/x",
		Parameters: map[string]string{"content": "y"},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if ok, _ := res.Exists("workspace/x"); ok {
		t.Fatal("failed execution should not have written")
	}
}
