package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore writes renders below a directory on the local filesystem.
type LocalStore struct {
	BaseDir string
}

// NewLocalStore constructs a store that writes to the provided directory.
// If baseDir is empty, a "renders" folder in os.TempDir() is used.
func NewLocalStore(baseDir string) (*LocalStore, error) {
	dir := baseDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "renders")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create local media dir: %w", err)
	}
	return &LocalStore{BaseDir: dir}, nil
}

// Put writes the object and returns its path relative to BaseDir as the key.
func (l *LocalStore) Put(_ context.Context, obj Object) (StoredObject, error) {
	if len(obj.Data) == 0 {
		return StoredObject{}, fmt.Errorf("object data is required")
	}

	key := objectKey(obj.Prefix, obj.Name)
	path := filepath.Join(l.BaseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return StoredObject{}, fmt.Errorf("create object dir: %w", err)
	}
	if err := os.WriteFile(path, obj.Data, 0o644); err != nil {
		os.Remove(path)
		return StoredObject{}, fmt.Errorf("write object: %w", err)
	}

	return StoredObject{Key: key}, nil
}
