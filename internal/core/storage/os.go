package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var _ FileStore = (*OSStore)(nil)

// OSStore is a FileStore backed by a directory on the local filesystem.
// Resource URIs are slash-separated paths resolved under the root; paths
// escaping the root are rejected.
type OSStore struct {
	root string
}

// NewOSStore creates a store rooted at dir, creating it if needed.
func NewOSStore(dir string) (*OSStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve store root: %w", err)
	}
	if err = os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	return &OSStore{root: abs}, nil
}

// Root returns the absolute root directory of the store.
func (s *OSStore) Root() string {
	return s.root
}

func (s *OSStore) resolve(uri string) (string, error) {
	if uri == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	clean := filepath.Clean(filepath.FromSlash(uri))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes store root", ErrInvalidPath, uri)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *OSStore) Read(uri string) ([]byte, error) {
	path, err := s.resolve(uri)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", uri, ErrNotExist)
		}
		return nil, fmt.Errorf("read %s: %w", uri, err)
	}
	return data, nil
}

func (s *OSStore) Write(uri string, data []byte) error {
	path, err := s.resolve(uri)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write %s: %w", uri, err)
	}
	if err = os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", uri, err)
	}
	return nil
}

func (s *OSStore) Delete(uri string) error {
	path, err := s.resolve(uri)
	if err != nil {
		return err
	}
	if err = os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("delete %s: %w", uri, ErrNotExist)
		}
		return fmt.Errorf("delete %s: %w", uri, err)
	}
	return nil
}

func (s *OSStore) Exists(uri string) bool {
	path, err := s.resolve(uri)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}
