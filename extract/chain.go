// Package extract turns raw page markup into candidate article text through
// an ordered chain of extraction strategies.
package extract

import (
	"bytes"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// MinViableChars is the default viability floor. Anything shorter is a
// failed parse, not an article.
const MinViableChars = 50

// Strategy identifiers recorded on candidates.
const (
	StrategyReadability   = "readability"
	StrategyArticleSchema = "article_schema"
	StrategySelectorHints = "selector_hints"
	StrategyParagraphs    = "paragraphs"
)

// Candidate is the output of one extraction strategy.
type Candidate struct {
	StrategyID  string     `json:"strategy_id"`
	Title       string     `json:"title,omitempty"`
	BodyText    string     `json:"body_text"`
	CharLength  int        `json:"char_length"`
	HTML        string     `json:"-"`
	Author      string     `json:"author,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// Strategy is one way of extracting article text. Extract must be a pure
// function of raw: same input, same output.
type Strategy struct {
	ID      string
	Extract func(raw []byte) (Candidate, bool)

	// extractAt, when set, is used by a Chain in place of Extract so the
	// strategy can stop at the chain's own floor.
	extractAt func(raw []byte, minViable int) (Candidate, bool)
}

// Chain tries strategies in order and keeps the first viable candidate.
type Chain struct {
	minViable  int
	strategies []Strategy
	now        func() time.Time
}

// NewChain creates a chain with the given viability floor. A floor of zero or
// less uses MinViableChars.
func NewChain(minViable int, strategies ...Strategy) *Chain {
	if minViable <= 0 {
		minViable = MinViableChars
	}
	return &Chain{
		minViable:  minViable,
		strategies: strategies,
		now:        time.Now,
	}
}

// DefaultChain is readability, article schema, the target's selector hints
// and finally all paragraphs.
func DefaultChain(hints []string) *Chain {
	return NewChain(MinViableChars,
		Readability(),
		ArticleSchema(),
		SelectorHints(hints),
		Paragraphs(),
	)
}

// WithClock sets the reference time for relative published dates.
func (c *Chain) WithClock(now func() time.Time) *Chain {
	c.now = now
	return c
}

// Strategies returns the strategy IDs in the order they are tried.
func (c *Chain) Strategies() []string {
	ids := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		ids[i] = s.ID
	}
	return ids
}

// Extract returns the first candidate that clears the viability floor, with
// empty title, author and published fields filled from page metadata. It
// returns false when no strategy produced viable text; nothing is ever
// substituted for a failed extraction.
func (c *Chain) Extract(raw []byte) (Candidate, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Candidate{}, false
	}

	for _, s := range c.strategies {
		cand, ok := c.run(s, raw)
		if !ok || !c.viable(cand) {
			continue
		}
		if doc, err := parse(raw); err == nil {
			fillFromMetadata(&cand, ReadMetadata(doc, c.now()))
		}
		return cand, true
	}
	return Candidate{}, false
}

// Attempts runs every strategy and returns what each produced, viable or not.
func (c *Chain) Attempts(raw []byte) []Candidate {
	var out []Candidate
	for _, s := range c.strategies {
		cand, ok := c.run(s, raw)
		if !ok {
			cand = Candidate{StrategyID: s.ID}
		}
		out = append(out, cand)
	}
	return out
}

func (c *Chain) run(s Strategy, raw []byte) (Candidate, bool) {
	var cand Candidate
	var ok bool
	if s.extractAt != nil {
		cand, ok = s.extractAt(raw, c.minViable)
	} else {
		cand, ok = s.Extract(raw)
	}
	if !ok {
		return Candidate{}, false
	}
	cand.StrategyID = s.ID
	cand.BodyText = NormalizeBody(cand.BodyText)
	cand.Title = NormalizeText(cand.Title)
	cand.CharLength = utf8.RuneCountInString(cand.BodyText)
	return cand, true
}

func (c *Chain) viable(cand Candidate) bool {
	return cand.BodyText != "" && cand.CharLength >= c.minViable
}

func fillFromMetadata(c *Candidate, m Metadata) {
	if c.Title == "" {
		c.Title = m.Title
	}
	if c.Author == "" {
		c.Author = m.Author
	}
	if c.PublishedAt == nil && m.PublishedAt != nil {
		c.PublishedAt = m.PublishedAt
	}
}

func parse(raw []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(raw))
}
