package backend

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// #region resource-store

// ResourceStore is the engine's only I/O seam for resource content. The
// safety net reads pre-images and restores them through this interface;
// execution backends mutate through it.
type ResourceStore interface {
	Read(resource string) ([]byte, error)
	Write(resource string, content []byte) error
	Delete(resource string) error
	Exists(resource string) (bool, error)
}

// #endregion resource-store

// #region file-store

// FileResourceStore maps resource paths onto files under a root directory.
type FileResourceStore struct {
	root string
}

// NewFileResourceStore creates the root directory if needed.
func NewFileResourceStore(root string) (*FileResourceStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create resource root: %w", err)
	}
	return &FileResourceStore{root: root}, nil
}

// path confines the resource inside the root. Cleaned paths that escape
// upward are rejected.
func (s *FileResourceStore) path(resource string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(resource))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", fmt.Errorf("resource %q escapes the store root", resource)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *FileResourceStore) Read(resource string) ([]byte, error) {
	p, err := s.path(resource)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", resource, err)
	}
	return data, nil
}

func (s *FileResourceStore) Write(resource string, content []byte) error {
	p, err := s.path(resource)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	if err := os.WriteFile(p, content, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", resource, err)
	}
	return nil
}

func (s *FileResourceStore) Delete(resource string) error {
	p, err := s.path(resource)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", resource, err)
	}
	return nil
}

func (s *FileResourceStore) Exists(resource string) (bool, error) {
	p, err := s.path(resource)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", resource, err)
	}
	return true, nil
}

// #endregion file-store

// #region memory-store

// MemoryResourceStore is the in-memory implementation used by tests and
// the replay harness.
type MemoryResourceStore struct {
	mu       sync.RWMutex
	contents map[string][]byte
	failRead map[string]error
}

// NewMemoryResourceStore returns an empty store.
func NewMemoryResourceStore() *MemoryResourceStore {
	return &MemoryResourceStore{
		contents: make(map[string][]byte),
		failRead: make(map[string]error),
	}
}

// FailReads makes Read on the given resource return err. Used to exercise
// snapshot-unavailable paths.
func (s *MemoryResourceStore) FailReads(resource string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRead[resource] = err
}

func (s *MemoryResourceStore) Read(resource string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err, ok := s.failRead[resource]; ok {
		return nil, err
	}
	data, ok := s.contents[resource]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", resource, os.ErrNotExist)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemoryResourceStore) Write(resource string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(content))
	copy(cp, content)
	s.contents[resource] = cp
	return nil
}

func (s *MemoryResourceStore) Delete(resource string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contents, resource)
	return nil
}

func (s *MemoryResourceStore) Exists(resource string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err, ok := s.failRead[resource]; ok {
		return false, err
	}
	_, ok := s.contents[resource]
	return ok, nil
}

// #endregion memory-store
