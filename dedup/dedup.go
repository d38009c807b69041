// Package dedup tracks content fingerprints so the same story is stored at
// most once, whether it shows up twice in one run or again in a later run.
package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Lookup answers whether a fingerprint was already stored in an earlier run.
// The storage layer implements it.
type Lookup interface {
	Exists(ctx context.Context, hash string) (bool, error)
}

// Index is the two-tier duplicate check: an in-run set backed by a Lookup
// for earlier runs. First seen wins; entries are never replaced.
type Index struct {
	lookup Lookup
	logger zerolog.Logger
	now    func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewIndex creates an index for one run. lookup may be nil, in which case
// only the in-run tier applies.
func NewIndex(lookup Lookup, logger zerolog.Logger) *Index {
	return &Index{
		lookup: lookup,
		logger: logger,
		now:    time.Now,
		seen:   make(map[string]time.Time),
	}
}

// IsDuplicate reports whether hash was seen in this run or exists in
// storage. A failing lookup is logged and treated as not seen; the store's
// own uniqueness constraint still guards the write.
func (x *Index) IsDuplicate(ctx context.Context, hash string) (bool, error) {
	x.mu.Lock()
	_, ok := x.seen[hash]
	x.mu.Unlock()
	if ok {
		return true, nil
	}
	return x.existsExternally(ctx, hash)
}

// Record marks hash as seen in this run. Recording an existing hash keeps
// its first-seen time.
func (x *Index) Record(hash string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.seen[hash]; !ok {
		x.seen[hash] = x.now()
	}
}

// Claim checks and records hash in one step. It returns true when the caller
// is the first to see hash, in this run and in storage. Of two concurrent
// claims for the same hash at most one succeeds.
func (x *Index) Claim(ctx context.Context, hash string) (bool, error) {
	x.mu.Lock()
	if _, ok := x.seen[hash]; ok {
		x.mu.Unlock()
		return false, nil
	}
	// Reserve before the external check so a concurrent claim loses here.
	x.seen[hash] = x.now()
	x.mu.Unlock()

	exists, err := x.existsExternally(ctx, hash)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// FirstSeen returns when hash was first recorded in this run.
func (x *Index) FirstSeen(hash string) (time.Time, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	t, ok := x.seen[hash]
	return t, ok
}

// Len returns the number of fingerprints recorded in this run.
func (x *Index) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.seen)
}

func (x *Index) existsExternally(ctx context.Context, hash string) (bool, error) {
	if x.lookup == nil {
		return false, nil
	}
	exists, err := x.lookup.Exists(ctx, hash)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		x.logger.Warn().Err(err).Str("hash", hash).Msg("Duplicate lookup failed, treating as new")
		return false, nil
	}
	return exists, nil
}
