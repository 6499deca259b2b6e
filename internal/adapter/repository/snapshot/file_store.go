package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/iho/pinledger/internal/domain"
)

// FileStore keeps the snapshot in a single JSON file. Saves write a temporary
// file in the same directory and rename it over the target, so a failed save
// leaves the previous snapshot intact.
type FileStore struct {
	path string
	now  func() time.Time
}

// NewFileStore creates a FileStore writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path: path,
		now:  time.Now,
	}
}

// Path returns the snapshot file path.
func (s *FileStore) Path() string {
	return s.path
}

// Save implements usecase.SnapshotStore.
func (s *FileStore) Save(ctx context.Context, state *domain.LedgerState) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIO, err)
	}

	data, err := Encode(state, s.now())
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIO, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", domain.ErrIO, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %w", domain.ErrIO, tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync %s: %w", domain.ErrIO, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", domain.ErrIO, tmpName, err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: replace %s: %w", domain.ErrIO, s.path, err)
	}
	committed = true

	return nil
}

// Load implements usecase.SnapshotStore.
func (s *FileStore) Load(_ context.Context) (*domain.LedgerState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSnapshotNotFound, s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrIO, s.path, err)
	}

	return Decode(data)
}

// Ping checks that the snapshot directory exists.
func (s *FileStore) Ping(_ context.Context) error {
	dir := filepath.Dir(s.path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrIO, dir)
	}
	return nil
}
