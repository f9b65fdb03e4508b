package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/illmade-knight/go-postcache/pkg/types"
	"github.com/rs/zerolog"
)

// FileStore keeps the snapshot as a JSON document on local disk. Writes go to
// a temporary file in the same directory and are renamed over the target, so
// a reader sees either the old or the new document, never a partial one.
type FileStore struct {
	path   string
	logger zerolog.Logger
	now    func() time.Time
	mu     sync.Mutex
}

// NewFileStore creates a FileStore for path. A nil clock defaults to time.Now.
func NewFileStore(path string, now func() time.Time, logger zerolog.Logger) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("snapshot path is required")
	}
	if now == nil {
		now = time.Now
	}
	return &FileStore{
		path:   path,
		logger: logger.With().Str("component", "FileSnapshot").Str("path", path).Logger(),
		now:    now,
	}, nil
}

// Read loads the snapshot. Any failure is reported as ErrNoSnapshot.
func (f *FileStore) Read(_ context.Context) (*Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			f.logger.Warn().Err(err).Msg("Failed to read snapshot file.")
		}
		return nil, fmt.Errorf("%w: %v", ErrNoSnapshot, err)
	}
	s, err := decode(data)
	if err != nil {
		f.logger.Warn().Err(err).Msg("Snapshot file is not valid.")
		return nil, err
	}
	return s, nil
}

// Write replaces the snapshot with items stamped with the current time.
func (f *FileStore) Write(_ context.Context, items []types.Item) error {
	data, err := encode(items, f.now())
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}

	f.logger.Debug().Int("items", len(items)).Msg("Snapshot written.")
	return nil
}

// Age returns how long ago the snapshot was written, or Infinite.
func (f *FileStore) Age(ctx context.Context) time.Duration {
	s, err := f.Read(ctx)
	if err != nil {
		return Infinite
	}
	return age(s, f.now())
}
