package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore keeps every task in one JSON file. All writes are serialized
// through a single mutex; the in-memory map is authoritative and the file is
// rewritten atomically after each change.
type FileStore struct {
	path string

	mu    sync.Mutex
	tasks map[string]*Task
}

// OpenFileStore loads path, creating it on first write if it does not exist.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, tasks: map[string]*Task{}}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read task file: %w", err)
	case len(data) == 0:
		return s, nil
	}
	if err := json.Unmarshal(data, &s.tasks); err != nil {
		return nil, fmt.Errorf("decode task file %s: %w", path, err)
	}
	for id, t := range s.tasks {
		t.ID = id
	}
	return s, nil
}

func (s *FileStore) Create(ctx context.Context, t *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; ok {
		return fmt.Errorf("task %s already exists", t.ID)
	}
	s.tasks[t.ID] = t.Clone()
	return s.flush()
}

func (s *FileStore) Get(ctx context.Context, id string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

func (s *FileStore) Update(ctx context.Context, id string, fn func(*Task)) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	next := t.Clone()
	fn(next)
	next.LastUpdate = time.Now().UTC()
	s.tasks[id] = next
	if err := s.flush(); err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

func (s *FileStore) Close() {}

// flush writes all tasks via temp file + rename. Caller holds s.mu.
func (s *FileStore) flush() error {
	data, err := json.MarshalIndent(s.tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tasks: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tasks-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
