package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pevans/newsharvest/filter"
	"github.com/pevans/newsharvest/harvest"
)

// SQLiteStore stores content and run reports in SQLite. The unique index on
// content_hash is the last guard against duplicates.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the tables if they don't exist.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scraped_contents (
		id TEXT PRIMARY KEY,
		target_name TEXT NOT NULL,
		url TEXT NOT NULL,
		title TEXT,
		body_text TEXT NOT NULL,
		markdown TEXT,
		author TEXT,
		published_at TEXT,
		char_length INTEGER NOT NULL,
		relevance_score INTEGER NOT NULL,
		quality_score INTEGER NOT NULL,
		keyword_matches TEXT,
		strategy TEXT NOT NULL,
		content_hash TEXT NOT NULL UNIQUE,
		scraped_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_scraped_contents_scraped_at ON scraped_contents(scraped_at);
	CREATE INDEX IF NOT EXISTS idx_scraped_contents_target ON scraped_contents(target_name);

	CREATE TABLE IF NOT EXISTS run_reports (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		report TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Exists reports whether content with hash is stored.
func (s *SQLiteStore) Exists(ctx context.Context, hash string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM scraped_contents WHERE content_hash = ?", hash).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check content hash: %w", err)
	}
	return n > 0, nil
}

// Save inserts c and returns its id. Content whose hash is already stored
// is rejected with ErrDuplicate; the existing row is never replaced.
func (s *SQLiteStore) Save(ctx context.Context, c *filter.ScoredContent) (string, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	matches, err := json.Marshal(c.KeywordMatches)
	if err != nil {
		return "", fmt.Errorf("failed to marshal keyword matches: %w", err)
	}

	query := `
		INSERT INTO scraped_contents (
			id, target_name, url, title, body_text, markdown, author,
			published_at, char_length, relevance_score, quality_score,
			keyword_matches, strategy, content_hash, scraped_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		c.ID,
		c.TargetName,
		c.URL,
		c.Title,
		c.BodyText,
		c.Markdown,
		c.Author,
		formatTimePtr(c.PublishedAt),
		c.CharLength,
		c.RelevanceScore,
		c.QualityScore,
		string(matches),
		c.Strategy,
		c.ContentHash,
		c.ScrapedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrDuplicate
		}
		return "", fmt.Errorf("failed to insert content: %w", err)
	}

	return c.ID, nil
}

const contentColumns = `
	id, target_name, url, title, body_text, markdown, author, published_at,
	char_length, relevance_score, quality_score, keyword_matches, strategy,
	content_hash, scraped_at
`

// Get retrieves content by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*filter.ScoredContent, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+contentColumns+" FROM scraped_contents WHERE id = ?", id)
	c, err := scanContent(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query content: %w", err)
	}
	return c, nil
}

// List returns stored content, newest first.
func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) ([]filter.ScoredContent, error) {
	query := "SELECT " + contentColumns + " FROM scraped_contents"
	var args []any
	if opts.Target != "" {
		query += " WHERE target_name = ?"
		args = append(args, opts.Target)
	}
	query += " ORDER BY scraped_at DESC LIMIT ? OFFSET ?"
	args = append(args, defaultLimit(opts.Limit), max(opts.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query content: %w", err)
	}
	defer rows.Close()

	var out []filter.ScoredContent
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Count returns the number of stored items.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM scraped_contents").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count content: %w", err)
	}
	return n, nil
}

// SaveReport stores a run report.
func (s *SQLiteStore) SaveReport(ctx context.Context, r *harvest.RunReport) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO run_reports (id, started_at, finished_at, report) VALUES (?, ?, ?, ?)",
		r.ID,
		r.StartedAt.UTC().Format(timeLayout),
		r.FinishedAt.UTC().Format(timeLayout),
		string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

// LatestReport returns the most recently started run report.
func (s *SQLiteStore) LatestReport(ctx context.Context) (*harvest.RunReport, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT report FROM run_reports ORDER BY started_at DESC LIMIT 1").Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query report: %w", err)
	}

	var r harvest.RunReport
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &r, nil
}

// timeLayout has fixed-width fractions so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContent(row rowScanner) (*filter.ScoredContent, error) {
	var c filter.ScoredContent
	var title, markdown, author, publishedAt, matches sql.NullString
	var scrapedAt string

	err := row.Scan(
		&c.ID, &c.TargetName, &c.URL, &title, &c.BodyText, &markdown, &author,
		&publishedAt, &c.CharLength, &c.RelevanceScore, &c.QualityScore,
		&matches, &c.Strategy, &c.ContentHash, &scrapedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Title = title.String
	c.Markdown = markdown.String
	c.Author = author.String
	c.ScrapedAt = parseTime(scrapedAt)
	if publishedAt.Valid && publishedAt.String != "" {
		t := parseTime(publishedAt.String)
		c.PublishedAt = &t
	}
	if matches.Valid && matches.String != "" && matches.String != "null" {
		if err := json.Unmarshal([]byte(matches.String), &c.KeywordMatches); err != nil {
			return nil, fmt.Errorf("failed to unmarshal keyword matches: %w", err)
		}
	}

	return &c, nil
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t
}

func isUniqueViolation(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
