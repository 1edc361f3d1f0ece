package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileStore keeps options in a YAML mapping on disk. The whole document is
// rewritten on every Set. Other processes may write the same file: Get
// reloads it when it was replaced or modified, and Set re-reads it before
// merging its key.
type FileStore struct {
	mu   sync.Mutex
	path string
	data map[string]string
	seen os.FileInfo
}

// NewFileStore loads path if it exists. A missing file is treated as empty
// and created on the first Set.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("settings file path must not be empty")
	}
	s := &FileStore{path: path, data: make(map[string]string)}
	if err := s.reload(true); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reload(false); err != nil {
		return "", err
	}
	return s.data[key], nil
}

func (s *FileStore) Set(ctx context.Context, key, value string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reload(true); err != nil {
		return err
	}
	prev, had := s.data[key]
	s.data[key] = value
	if err := s.flush(); err != nil {
		if had {
			s.data[key] = prev
		} else {
			delete(s.data, key)
		}
		return err
	}
	return nil
}

// reload re-reads the file unless force is false and the file on disk is
// the one last read, unchanged in size and mtime. A missing file empties
// the store.
func (s *FileStore) reload(force bool) error {
	info, err := os.Stat(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.data = make(map[string]string)
		s.seen = nil
		return nil
	case err != nil:
		return fmt.Errorf("stat settings file: %w", err)
	}
	if !force && s.seen != nil && os.SameFile(s.seen, info) &&
		s.seen.ModTime().Equal(info.ModTime()) && s.seen.Size() == info.Size() {
		return nil
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read settings file: %w", err)
	}
	data := make(map[string]string)
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("decode settings file: %w", err)
	}
	if data == nil {
		data = make(map[string]string)
	}
	s.data = data
	s.seen = info
	return nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) flush() error {
	out, err := yaml.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-*")
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Chmod(0o640); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}
	if info, err := os.Stat(s.path); err == nil {
		s.seen = info
	}
	return nil
}
