package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const blobExt = ".json"

// FS implements Provider with one JSON file per key in a state
// directory. Writes are atomic: tmp file, fsync, rename.
type FS struct {
	dir string // absolute path to the state directory
}

// NewFS creates an FS provider rooted at dir, creating it if needed.
func NewFS(dir string) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create dir: %w", err)
	}
	return &FS{dir: abs}, nil
}

// Dir returns the absolute state directory, for the watcher.
func (f *FS) Dir() string {
	return f.dir
}

// blobPath maps a key to its file, rejecting anything that could step
// outside the state directory.
func (f *FS) blobPath(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return "", fmt.Errorf("storage: invalid blob key %q", key)
	}
	return filepath.Join(f.dir, key+blobExt), nil
}

// Load returns the stored bytes for key.
func (f *FS) Load(key string) ([]byte, error) {
	p, err := f.blobPath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("storage: load %s: %w", key, err)
	}
	return data, nil
}

// Save atomically writes the blob: tmp file → fsync → rename.
func (f *FS) Save(key string, data []byte) error {
	p, err := f.blobPath(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, ".calendario-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Keys lists the stored blob keys.
func (f *FS) Keys() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, blobExt) || strings.HasPrefix(name, ".") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, blobExt))
	}
	return keys, nil
}
