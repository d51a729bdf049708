package guest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// FileStore writes one JSON file per profile under a directory.
type FileStore struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// NewFileStore creates dir when needed. A zero ttl keeps files forever.
func NewFileStore(dir string, ttl time.Duration) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("guest file store dir is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("mkdir %q: %w", dir, err)
	}
	return &FileStore{dir: dir, ttl: ttl, now: time.Now}, nil
}

func (s *FileStore) path(profileID string) string {
	return filepath.Join(s.dir, profileID+".json")
}

func (s *FileStore) Load(ctx context.Context, profileID string) ([]byte, error) {
	if err := ValidateProfileID(profileID); err != nil {
		return nil, err
	}
	path := s.path(profileID)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("stat guest cart: %w", err)
	}
	if s.ttl > 0 && s.now().Sub(info.ModTime()) > s.ttl {
		_ = os.Remove(path)
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read guest cart: %w", err)
	}
	return data, nil
}

func (s *FileStore) Save(ctx context.Context, profileID string, payload []byte) error {
	if err := ValidateProfileID(profileID); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, profileID+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp guest cart: %w", err)
	}
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write guest cart: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close guest cart: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(profileID)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace guest cart: %w", err)
	}
	return nil
}

func (s *FileStore) Delete(ctx context.Context, profileID string) error {
	if err := ValidateProfileID(profileID); err != nil {
		return err
	}
	if err := os.Remove(s.path(profileID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete guest cart: %w", err)
	}
	return nil
}

func (s *FileStore) Ping(context.Context) error {
	_, err := os.Stat(s.dir)
	return err
}
