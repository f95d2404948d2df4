// Package snapshot persists the last committed process state so a
// restart resumes from known values instead of all-zero garbage.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/avolkov/plant-controller/internal/domain/plant"
)

// ErrNotFound is returned when no snapshot has been persisted yet.
var ErrNotFound = errors.New("snapshot not found")

const filePermissions = 0o600

// FileRepository stores the process state as JSON in a single file.
type FileRepository struct {
	path string
}

// NewFileRepository returns a repository writing to the given path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

// Load reads the persisted state. ErrNotFound when the file is absent.
func (r *FileRepository) Load() (*plant.ProcessState, error) {
	data, err := os.ReadFile(filepath.Clean(r.path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var ps plant.ProcessState
	if err := json.Unmarshal(data, &ps); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &ps, nil
}

// Save writes the state atomically: a temp file in the same directory,
// renamed over the target.
func (r *FileRepository) Save(ps *plant.ProcessState) error {
	data, err := json.MarshalIndent(ps, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	dir := filepath.Dir(r.path)

	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}

	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)

		return fmt.Errorf("write snapshot: %w", err)
	}

	if err := tmp.Chmod(filePermissions); err != nil {
		tmp.Close()
		os.Remove(tmpName)

		return fmt.Errorf("chmod snapshot: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("close snapshot: %w", err)
	}

	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("commit snapshot: %w", err)
	}

	return nil
}
