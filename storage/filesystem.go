package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/johnwmail/pastelite/models"
)

// FilesystemStore keeps one JSON document per paste in a directory.
// All mutations go through a single mutex, so the read-modify-write in
// IncrementViewAndFetch is serialized within the process.
type FilesystemStore struct {
	dataDir string
	mu      sync.Mutex
}

// NewFilesystemStore creates the data directory if needed
func NewFilesystemStore(dataDir string) (*FilesystemStore, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory must not be empty")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir %s: %w", dataDir, err)
	}
	return &FilesystemStore{dataDir: dataDir}, nil
}

func (fs *FilesystemStore) path(id string) string {
	return filepath.Join(fs.dataDir, id+".json")
}

func (fs *FilesystemStore) Store(_ context.Context, paste *models.Paste) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	metaData, err := json.MarshalIndent(paste, "", "  ")
	if err != nil {
		return err
	}
	// O_EXCL keeps an existing paste from being overwritten
	f, err := os.OpenFile(fs.path(paste.ID), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrDuplicateID
		}
		return fmt.Errorf("failed to create paste file %s: %w", paste.ID, err)
	}
	if _, err := f.Write(metaData); err != nil {
		_ = f.Close()
		_ = os.Remove(fs.path(paste.ID))
		return fmt.Errorf("failed to write paste %s: %w", paste.ID, err)
	}
	return f.Close()
}

func (fs *FilesystemStore) Get(_ context.Context, id string) (*models.Paste, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.read(id)
}

// read loads a paste; the caller must hold fs.mu
func (fs *FilesystemStore) read(id string) (*models.Paste, error) {
	metaData, err := os.ReadFile(fs.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read paste %s: %w", id, err)
	}
	var paste models.Paste
	if err := json.Unmarshal(metaData, &paste); err != nil {
		return nil, fmt.Errorf("failed to unmarshal paste %s: %w", id, err)
	}
	return &paste, nil
}

func (fs *FilesystemStore) IncrementViewAndFetch(_ context.Context, id string) (*models.Paste, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	paste, err := fs.read(id)
	if err != nil || paste == nil {
		return nil, err
	}
	paste.ViewCount++

	newMeta, err := json.MarshalIndent(paste, "", "  ")
	if err != nil {
		return nil, err
	}
	// Write to a temp file and rename so a crash never leaves a torn record
	tmp := fs.path(id) + ".tmp"
	if err := os.WriteFile(tmp, newMeta, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write paste %s: %w", id, err)
	}
	if err := os.Rename(tmp, fs.path(id)); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("failed to replace paste %s: %w", id, err)
	}
	return paste, nil
}

func (fs *FilesystemStore) Delete(_ context.Context, id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := os.Remove(fs.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// DeleteExpired scans the data directory and removes expired pastes
func (fs *FilesystemStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	entries, err := os.ReadDir(fs.dataDir)
	if err != nil {
		return 0, err
	}
	var removed int64
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		paste, err := fs.read(id)
		if err != nil || paste == nil {
			continue
		}
		if paste.IsExpired(now) {
			if err := os.Remove(fs.path(id)); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// Ping verifies the data directory is still accessible
func (fs *FilesystemStore) Ping(_ context.Context) error {
	info, err := os.Stat(fs.dataDir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", fs.dataDir)
	}
	return nil
}

func (fs *FilesystemStore) Close() error {
	return nil
}
