package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultScrapeInterval is used until an interval is stored.
const DefaultScrapeInterval = "1h"

// MinScrapeInterval keeps the scheduler from hammering targets.
const MinScrapeInterval = time.Minute

const (
	keySchedulerEnabled = "scheduler_enabled"
	keyScrapeInterval   = "scrape_interval"
)

// SettingsStore keeps runtime settings that can change while the service is
// up, using SQLite.
type SettingsStore struct {
	db *sql.DB
}

// Settings are the mutable runtime settings.
type Settings struct {
	SchedulerEnabled bool   `json:"scheduler_enabled"`
	ScrapeInterval   string `json:"scrape_interval"`
}

// SettingsUpdate holds optional changes; nil fields are left alone.
type SettingsUpdate struct {
	SchedulerEnabled *bool   `json:"scheduler_enabled,omitempty"`
	ScrapeInterval   *string `json:"scrape_interval,omitempty"`
}

// NewSettingsStore creates a settings store with the given database path.
func NewSettingsStore(dbPath string) (*SettingsStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SettingsStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SettingsStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SettingsStore) Close() error {
	return s.db.Close()
}

// GetSettings returns the stored settings, with defaults for anything never
// set.
func (s *SettingsStore) GetSettings(ctx context.Context) (*Settings, error) {
	settings := &Settings{ScrapeInterval: DefaultScrapeInterval}

	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		switch key {
		case keySchedulerEnabled:
			settings.SchedulerEnabled, _ = strconv.ParseBool(value)
		case keyScrapeInterval:
			settings.ScrapeInterval = value
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	return settings, nil
}

// UpdateSettings validates and applies an update, returning the new
// settings.
func (s *SettingsStore) UpdateSettings(ctx context.Context, u SettingsUpdate) (*Settings, error) {
	if u.ScrapeInterval != nil {
		if err := ValidateInterval(*u.ScrapeInterval); err != nil {
			return nil, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := "INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)"
	if u.SchedulerEnabled != nil {
		if _, err := tx.ExecContext(ctx, query, keySchedulerEnabled, strconv.FormatBool(*u.SchedulerEnabled)); err != nil {
			return nil, fmt.Errorf("failed to update settings: %w", err)
		}
	}
	if u.ScrapeInterval != nil {
		if _, err := tx.ExecContext(ctx, query, keyScrapeInterval, *u.ScrapeInterval); err != nil {
			return nil, fmt.Errorf("failed to update settings: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit settings: %w", err)
	}

	return s.GetSettings(ctx)
}

// SchedulerEnabled reports the scheduler toggle. Read errors count as
// disabled.
func (s *SettingsStore) SchedulerEnabled(ctx context.Context) bool {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return false
	}
	return settings.SchedulerEnabled
}

// Interval returns the scrape interval, falling back to the default when the
// stored value is unreadable.
func (s *SettingsStore) Interval(ctx context.Context) time.Duration {
	fallback, _ := time.ParseDuration(DefaultScrapeInterval)
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return fallback
	}
	d, err := time.ParseDuration(settings.ScrapeInterval)
	if err != nil || d < MinScrapeInterval {
		return fallback
	}
	return d
}

// ErrInvalidInterval is returned for intervals that are not durations or are
// too short.
var ErrInvalidInterval = errors.New("invalid scrape_interval")

// ValidateInterval checks that interval is a duration of at least
// MinScrapeInterval.
func ValidateInterval(interval string) error {
	d, err := time.ParseDuration(interval)
	if err != nil {
		return fmt.Errorf("%w: must be a valid duration (e.g., 1h, 30m)", ErrInvalidInterval)
	}
	if d < MinScrapeInterval {
		return fmt.Errorf("%w: must be at least %s", ErrInvalidInterval, MinScrapeInterval)
	}
	return nil
}
