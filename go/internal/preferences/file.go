package preferences

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileStore keeps boolean preferences in a small YAML file.
type FileStore struct {
	path string

	mu     sync.Mutex
	values map[string]bool
}

// NewFileStore loads path if it exists. A missing file starts empty.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, values: make(map[string]bool)}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}
	if err := yaml.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("failed to parse preferences: %w", err)
	}
	if s.values == nil {
		s.values = make(map[string]bool)
	}
	return s, nil
}

func (s *FileStore) GetBool(_ context.Context, key string) (bool, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *FileStore) SetBool(_ context.Context, key string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.values[key]
	s.values[key] = value

	data, err := yaml.Marshal(s.values)
	if err == nil {
		err = s.write(data)
	}
	if err != nil {
		if had {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

func (s *FileStore) write(data []byte) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create preferences directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return nil
}
