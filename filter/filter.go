// Package filter scores extracted articles for topical relevance and
// information density, and rejects boilerplate, short and off-topic text.
package filter

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/pevans/newsharvest/extract"
)

// Reason explains why a page did not become stored content.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonFetchFailed      Reason = "fetch_failed"
	ReasonExtractionFailed Reason = "extraction_failed"
	ReasonBlacklisted      Reason = "blacklisted"
	ReasonTooShort         Reason = "too_short"
	ReasonNotRelevant      Reason = "not_relevant"
	ReasonLowQuality       Reason = "low_quality"
	ReasonStale            Reason = "stale"
	ReasonDuplicate        Reason = "duplicate"
	ReasonStorageFailed    Reason = "storage_failed"
)

// ScoredContent is an article that passed the filter. It only exists when
// CharLength >= MinContentLength and RelevanceScore >= RelevanceThreshold.
type ScoredContent struct {
	ID             string         `json:"id"`
	TargetName     string         `json:"target_name"`
	URL            string         `json:"url"`
	Title          string         `json:"title"`
	BodyText       string         `json:"body_text"`
	Markdown       string         `json:"markdown,omitempty"`
	Author         string         `json:"author,omitempty"`
	PublishedAt    *time.Time     `json:"published_at,omitempty"`
	CharLength     int            `json:"char_length"`
	RelevanceScore int            `json:"relevance_score"`
	QualityScore   int            `json:"quality_score"`
	KeywordMatches map[string]int `json:"keyword_matches,omitempty"`
	Strategy       string         `json:"strategy"`
	ContentHash    string         `json:"content_hash"`
	ScrapedAt      time.Time      `json:"scraped_at"`
}

type keyword struct {
	word string
	re   *regexp.Regexp // nil for substring matching
}

type signal struct {
	name   string
	re     *regexp.Regexp
	weight int
}

// Filter evaluates extraction candidates. It is safe for concurrent use.
type Filter struct {
	cfg       Config
	keywords  []keyword
	blacklist []*regexp.Regexp
	signals   []signal
	now       func() time.Time
}

// New compiles the configured patterns. A pattern that does not compile is a
// configuration error.
func New(cfg Config) (*Filter, error) {
	d := DefaultConfig()
	if cfg.KeywordCap <= 0 {
		cfg.KeywordCap = d.KeywordCap
	}
	if cfg.SignalCap <= 0 {
		cfg.SignalCap = d.SignalCap
	}

	f := &Filter{cfg: cfg, now: time.Now}

	seen := make(map[string]bool)
	for _, kw := range cfg.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		f.keywords = append(f.keywords, compileKeyword(kw))
	}

	for _, p := range cfg.BlacklistPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid blacklist pattern %q: %w", p, err)
		}
		f.blacklist = append(f.blacklist, re)
	}

	for _, s := range cfg.QualitySignals {
		re, err := regexp.Compile("(?i)" + s.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid quality signal %q: %w", s.Name, err)
		}
		f.signals = append(f.signals, signal{name: s.Name, re: re, weight: s.Weight})
	}

	return f, nil
}

// WithClock overrides the time source used for ScrapedAt and staleness.
func (f *Filter) WithClock(now func() time.Time) *Filter {
	f.now = now
	return f
}

// Config returns the configuration the filter was built with.
func (f *Filter) Config() Config {
	return f.cfg
}

// compileKeyword uses word boundaries for ASCII keywords so "oil" does not
// match "soil". Other scripts match as substrings.
func compileKeyword(kw string) keyword {
	for _, r := range kw {
		if r > unicode.MaxASCII {
			return keyword{word: kw}
		}
	}
	return keyword{word: kw, re: regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`)}
}

// Evaluate runs the checks in order: blacklist, length, relevance, then
// quality (only when gated) and age (only when MaxAge is set and the
// publication time is known). It returns either content or a reason.
func (f *Filter) Evaluate(targetName, url string, c extract.Candidate) (*ScoredContent, Reason) {
	text := strings.ToLower(c.Title + "\n" + c.BodyText)

	for _, re := range f.blacklist {
		if re.MatchString(text) {
			return nil, ReasonBlacklisted
		}
	}

	if c.CharLength < f.cfg.MinContentLength {
		return nil, ReasonTooShort
	}

	relevance, matches := f.score(text)
	if relevance < f.cfg.RelevanceThreshold {
		return nil, ReasonNotRelevant
	}

	quality := f.quality(text)
	if f.cfg.QualityGate && quality < f.cfg.MinQualityScore {
		return nil, ReasonLowQuality
	}

	now := f.now()
	if f.cfg.MaxAge > 0 && c.PublishedAt != nil && now.Sub(*c.PublishedAt) > f.cfg.MaxAge {
		return nil, ReasonStale
	}

	return &ScoredContent{
		ID:             uuid.NewString(),
		TargetName:     targetName,
		URL:            url,
		Title:          c.Title,
		BodyText:       c.BodyText,
		Author:         c.Author,
		PublishedAt:    c.PublishedAt,
		CharLength:     c.CharLength,
		RelevanceScore: relevance,
		QualityScore:   quality,
		KeywordMatches: matches,
		Strategy:       c.StrategyID,
		ContentHash:    ContentHash(c.BodyText),
		ScrapedAt:      now,
	}, ReasonNone
}

// Score returns the relevance score of text and the capped count per
// matching keyword.
func (f *Filter) Score(text string) (int, map[string]int) {
	return f.score(strings.ToLower(text))
}

// Quality returns the quality score of text.
func (f *Filter) Quality(text string) int {
	return f.quality(strings.ToLower(text))
}

func (f *Filter) score(lower string) (int, map[string]int) {
	total := 0
	matches := make(map[string]int)
	for _, kw := range f.keywords {
		var n int
		if kw.re != nil {
			n = len(kw.re.FindAllStringIndex(lower, -1))
		} else {
			n = strings.Count(lower, kw.word)
		}
		if n == 0 {
			continue
		}
		n = min(n, f.cfg.KeywordCap)
		matches[kw.word] = n
		total += n
	}
	return total, matches
}

func (f *Filter) quality(lower string) int {
	total := 0
	for _, s := range f.signals {
		n := len(s.re.FindAllStringIndex(lower, f.cfg.SignalCap))
		total += s.weight * n
	}
	return total
}
