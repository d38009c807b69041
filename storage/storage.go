// Package storage persists accepted content and run reports. SQLite is the
// default backend; a directory of JSON files is available for small setups.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/pevans/newsharvest/filter"
	"github.com/pevans/newsharvest/harvest"
)

// Custom errors for storage operations
var (
	ErrNotFound  = errors.New("content not found")
	ErrDuplicate = errors.New("content with this hash already exists")
)

// ListOptions selects a page of stored content, newest first.
type ListOptions struct {
	Target string
	Limit  int
	Offset int
}

// Backend is a content and report store.
type Backend interface {
	Exists(ctx context.Context, hash string) (bool, error)
	Save(ctx context.Context, c *filter.ScoredContent) (string, error)
	Get(ctx context.Context, id string) (*filter.ScoredContent, error)
	List(ctx context.Context, opts ListOptions) ([]filter.ScoredContent, error)
	Count(ctx context.Context) (int, error)
	SaveReport(ctx context.Context, r *harvest.RunReport) error
	LatestReport(ctx context.Context) (*harvest.RunReport, error)
	Close() error
}

// Backend kinds accepted by Open.
const (
	KindSQLite = "sqlite"
	KindFile   = "file"
)

// Open creates the backend of the given kind. dsn is a database path for
// sqlite and a directory for file.
func Open(kind, dsn string) (Backend, error) {
	switch kind {
	case KindSQLite, "":
		return NewSQLiteStore(dsn)
	case KindFile:
		return NewFileStore(dsn)
	default:
		return nil, fmt.Errorf("unknown storage kind %q", kind)
	}
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}
