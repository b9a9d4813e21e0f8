package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// FileStore keeps the record in a single file. Writes go to a temp file in the
// same directory that is renamed over the target.
type FileStore struct {
	path string
}

// NewFileStore creates a file store at path, creating parent directories.
func NewFileStore(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create save dir: %w", err)
		}
	}
	return &FileStore{path: path}, nil
}

func (f *FileStore) backupPath() string {
	return f.path + ".bak"
}

// Save replaces the record, keeping the previous one as a backup.
func (f *FileStore) Save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	prev, err := os.ReadFile(f.path)
	switch {
	case err == nil:
		if err := writeAtomic(f.backupPath(), prev); err != nil {
			return fmt.Errorf("write backup: %w", err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("read previous save: %w", err)
	}

	if err := writeAtomic(f.path, data); err != nil {
		return fmt.Errorf("write save: %w", err)
	}
	return nil
}

// Load reads the record.
func (f *FileStore) Load(ctx context.Context) ([]byte, error) {
	return readFile(ctx, f.path)
}

// LoadBackup reads the previous record.
func (f *FileStore) LoadBackup(ctx context.Context) ([]byte, error) {
	return readFile(ctx, f.backupPath())
}

// SavedAt returns the record file's modification time.
func (f *FileStore) SavedAt(ctx context.Context) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	info, err := os.Stat(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// Close is a no-op.
func (f *FileStore) Close() error {
	return nil
}

func readFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
