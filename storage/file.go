package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pevans/newsharvest/filter"
	"github.com/pevans/newsharvest/harvest"
)

// FileStore keeps one JSON file per item, named by content hash, plus a
// reports/ subdirectory with one file per run.
type FileStore struct {
	storageDir string
	mu         sync.Mutex
}

// ReadError describes a failure to read a single stored file.
type ReadError struct {
	Filename string
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Filename, e.Err)
}

// NewFileStore creates a file store in storageDir.
func NewFileStore(storageDir string) (*FileStore, error) {
	// 0700: owner-only access
	if err := os.MkdirAll(filepath.Join(storageDir, "reports"), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileStore{storageDir: storageDir}, nil
}

// Close is a no-op.
func (fs *FileStore) Close() error {
	return nil
}

func (fs *FileStore) contentPath(hash string) string {
	return filepath.Join(fs.storageDir, hash+".json")
}

// Exists reports whether a file for hash exists.
func (fs *FileStore) Exists(ctx context.Context, hash string) (bool, error) {
	_, err := os.Stat(fs.contentPath(hash))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat content: %w", err)
}

// Save writes c to <hash>.json. An existing file is never overwritten.
func (fs *FileStore) Save(ctx context.Context, c *filter.ScoredContent) (string, error) {
	if c.ContentHash == "" {
		return "", fmt.Errorf("content has no hash")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal content: %w", err)
	}

	// O_EXCL makes the hash file the uniqueness constraint
	f, err := os.OpenFile(fs.contentPath(c.ContentHash), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", ErrDuplicate
		}
		return "", fmt.Errorf("failed to create content file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write content: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close content file: %w", err)
	}

	return c.ID, nil
}

// readAll loads every content file. Unreadable files are returned as
// ReadErrors instead of failing the whole listing.
func (fs *FileStore) readAll() ([]filter.ScoredContent, []ReadError, error) {
	entries, err := os.ReadDir(fs.storageDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read storage directory: %w", err)
	}

	var items []filter.ScoredContent
	var readErrs []ReadError
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(fs.storageDir, entry.Name()))
		if err != nil {
			readErrs = append(readErrs, ReadError{Filename: entry.Name(), Err: err})
			continue
		}

		var c filter.ScoredContent
		if err := json.Unmarshal(data, &c); err != nil {
			readErrs = append(readErrs, ReadError{Filename: entry.Name(), Err: err})
			continue
		}
		items = append(items, c)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ScrapedAt.After(items[j].ScrapedAt)
	})
	return items, readErrs, nil
}

// Get retrieves content by id.
func (fs *FileStore) Get(ctx context.Context, id string) (*filter.ScoredContent, error) {
	items, _, err := fs.readAll()
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID == id {
			return &items[i], nil
		}
	}
	return nil, ErrNotFound
}

// List returns stored content, newest first. Corrupt files are skipped.
func (fs *FileStore) List(ctx context.Context, opts ListOptions) ([]filter.ScoredContent, error) {
	items, _, err := fs.readAll()
	if err != nil {
		return nil, err
	}

	var filtered []filter.ScoredContent
	for _, c := range items {
		if opts.Target == "" || c.TargetName == opts.Target {
			filtered = append(filtered, c)
		}
	}

	start := min(max(opts.Offset, 0), len(filtered))
	end := min(start+defaultLimit(opts.Limit), len(filtered))
	return filtered[start:end], nil
}

// Count returns the number of readable items.
func (fs *FileStore) Count(ctx context.Context) (int, error) {
	items, _, err := fs.readAll()
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// SaveReport writes reports/<id>.json.
func (fs *FileStore) SaveReport(ctx context.Context, r *harvest.RunReport) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := os.WriteFile(filepath.Join(fs.storageDir, "reports", r.ID+".json"), data, 0o600); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// LatestReport returns the report with the latest start time.
func (fs *FileStore) LatestReport(ctx context.Context) (*harvest.RunReport, error) {
	dir := filepath.Join(fs.storageDir, "reports")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read reports directory: %w", err)
	}

	var latest *harvest.RunReport
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		var r harvest.RunReport
		if err := json.Unmarshal(data, &r); err != nil {
			continue
		}
		if latest == nil || r.StartedAt.After(latest.StartedAt) {
			latest = &r
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}
