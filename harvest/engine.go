// Package harvest runs collection passes over the configured targets: fetch,
// extract, filter, de-duplicate and store, with a report of what happened to
// every page.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pevans/newsharvest/dedup"
	"github.com/pevans/newsharvest/extract"
	"github.com/pevans/newsharvest/feed"
	"github.com/pevans/newsharvest/fetch"
	"github.com/pevans/newsharvest/filter"
	"github.com/pevans/newsharvest/target"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrEmptyRegistry is returned by Run when there are no valid targets at all.
// It is a configuration error: the run never starts.
var ErrEmptyRegistry = &target.ConfigError{Field: "targets", Msg: "no valid targets configured"}

// Fetcher retrieves pages. *fetch.Fetcher implements it.
type Fetcher interface {
	FetchURL(ctx context.Context, t target.Target, pageURL string) *fetch.FetchResult
}

// Store receives accepted content as it is produced.
type Store interface {
	Save(ctx context.Context, c *filter.ScoredContent) (string, error)
}

// Options wires the collaborators of an Engine.
type Options struct {
	Registry *target.Registry
	Fetcher  Fetcher
	Filter   *filter.Filter
	Store    Store
	// Lookup answers whether a hash was stored by an earlier run. Usually the
	// same value as Store.
	Lookup dedup.Lookup
	// Concurrency is the number of targets processed at once. Values below
	// one mean sequential processing.
	Concurrency int
	// Chain builds the extraction chain for a target. Defaults to
	// extract.DefaultChain with the target's selector hints.
	Chain func(t target.Target) *extract.Chain
	// Markdown, when set, renders accepted content as Markdown.
	Markdown *extract.MarkdownConverter
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Engine is the collection orchestrator.
type Engine struct {
	opts Options
}

// NewEngine validates opts and fills in defaults.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Registry == nil {
		return nil, ErrEmptyRegistry
	}
	if opts.Fetcher == nil {
		return nil, errors.New("harvest: fetcher is required")
	}
	if opts.Filter == nil {
		return nil, errors.New("harvest: filter is required")
	}
	if opts.Store == nil {
		return nil, errors.New("harvest: store is required")
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Chain == nil {
		opts.Chain = func(t target.Target) *extract.Chain {
			return extract.DefaultChain(t.SelectorHints)
		}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{opts: opts}, nil
}

// Run performs one collection pass over the enabled targets in registry
// order. Only configuration errors are returned; fetch, extraction, filter
// and storage problems end up in the report. When ctx is cancelled no new
// targets are started and the report covers the targets that were started.
func (e *Engine) Run(ctx context.Context) (*RunReport, error) {
	reg := e.opts.Registry
	if reg.Len() == 0 {
		return nil, ErrEmptyRegistry
	}

	report := &RunReport{
		ID:        uuid.NewString(),
		StartedAt: e.opts.Now(),
	}
	for _, err := range reg.Errors() {
		report.ConfigErrors = append(report.ConfigErrors, err.Error())
	}

	targets := reg.ListEnabledTargets()
	log := e.opts.Logger.With().Str("run", report.ID).Logger()
	log.Info().Int("targets", len(targets)).Msg("Starting collection run")

	index := dedup.NewIndex(e.opts.Lookup, log)
	results := make([]*TargetReport, len(targets))

	var g errgroup.Group
	g.SetLimit(e.opts.Concurrency)

	for i, t := range targets {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// A slot may free up only after cancellation.
			if ctx.Err() != nil {
				return nil
			}
			tr := e.processTarget(ctx, t, index, log)
			results[i] = &tr
			return nil
		})
	}
	_ = g.Wait()

	for _, tr := range results {
		if tr != nil {
			report.Targets = append(report.Targets, *tr)
		}
	}
	report.Cancelled = ctx.Err() != nil
	report.FinishedAt = e.opts.Now()

	totals := report.Totals()
	log.Info().
		Int("attempted", totals.Attempted).
		Int("fetched", totals.Fetched).
		Int("extracted", totals.Extracted).
		Int("accepted", totals.Accepted).
		Bool("cancelled", report.Cancelled).
		Dur("duration", report.Duration()).
		Msg("Collection run finished")

	return report, nil
}

// processTarget collects every page of one target. Nothing here aborts the
// run.
func (e *Engine) processTarget(ctx context.Context, t target.Target, index *dedup.Index, log zerolog.Logger) TargetReport {
	tr := newTargetReport(t.Name)
	log = log.With().Str("target", t.Name).Logger()

	pages, ok := e.pages(ctx, t, &tr, log)
	if !ok {
		return tr
	}

	chain := e.opts.Chain(t)
	for _, link := range pages {
		if ctx.Err() != nil {
			tr.Aborted = true
			break
		}
		e.processPage(ctx, t, link, chain, index, &tr, log)
	}

	log.Debug().
		Int("attempted", tr.Attempted).
		Int("accepted", tr.Accepted).
		Msg("Target done")
	return tr
}

// pages resolves the article links of a target. Listing and feed pages are
// not counted as articles unless they fail, in which case the failure is
// recorded as one attempted page.
func (e *Engine) pages(ctx context.Context, t target.Target, tr *TargetReport, log zerolog.Logger) ([]extract.Link, bool) {
	var indexURL string
	switch t.Mode {
	case target.ModeList:
		indexURL = t.BaseURL
	case target.ModeFeed:
		indexURL = t.FeedURL
	default:
		return []extract.Link{{URL: t.BaseURL}}, true
	}

	res := e.opts.Fetcher.FetchURL(ctx, t, indexURL)
	if !res.OK() {
		if ctx.Err() != nil {
			tr.Aborted = true
			return nil, false
		}
		tr.Attempted++
		tr.reject(filter.ReasonFetchFailed)
		tr.Errors = append(tr.Errors, fmt.Sprintf("%s: %v", indexURL, res.Err))
		log.Warn().Err(res.Err).Str("url", indexURL).Msg("Failed to fetch index page")
		return nil, false
	}

	var links []extract.Link
	if t.Mode == target.ModeFeed {
		var err error
		links, err = feed.ParseLinks(res.RawHTML, t.MaxArticles)
		if err != nil {
			tr.Attempted++
			tr.Fetched++
			tr.reject(filter.ReasonExtractionFailed)
			tr.Errors = append(tr.Errors, fmt.Sprintf("%s: %v", indexURL, err))
			log.Warn().Err(err).Str("url", indexURL).Msg("Failed to parse feed")
			return nil, false
		}
	} else {
		links = extract.DiscoverLinks(res.RawHTML, indexURL, t.LinkSelectors, t.MaxArticles)
	}

	tr.Discovered = len(links)
	if len(links) == 0 {
		log.Info().Str("url", indexURL).Msg("No article links found")
	}
	return links, true
}

func (e *Engine) processPage(ctx context.Context, t target.Target, link extract.Link, chain *extract.Chain, index *dedup.Index, tr *TargetReport, log zerolog.Logger) {
	pageURL := link.URL
	log = log.With().Str("url", pageURL).Logger()
	tr.Attempted++

	res := e.opts.Fetcher.FetchURL(ctx, t, pageURL)
	if !res.OK() {
		if ctx.Err() != nil {
			tr.Aborted = true
			return
		}
		tr.reject(filter.ReasonFetchFailed)
		tr.Errors = append(tr.Errors, fmt.Sprintf("%s: %v", pageURL, res.Err))
		log.Warn().Err(res.Err).Int("attempts", res.Attempts).Msg("Fetch failed")
		return
	}
	tr.Fetched++

	cand, ok := chain.Extract(res.RawHTML)
	if !ok {
		tr.reject(filter.ReasonExtractionFailed)
		log.Info().Msg("No strategy produced viable content")
		return
	}
	tr.Extracted++
	tr.Strategies[cand.StrategyID]++
	link.Fill(&cand)

	sc, reason := e.opts.Filter.Evaluate(t.Name, pageURL, cand)
	if reason != filter.ReasonNone {
		tr.reject(reason)
		log.Debug().Str("reason", string(reason)).Str("strategy", cand.StrategyID).Msg("Content rejected")
		return
	}

	first, err := index.Claim(ctx, sc.ContentHash)
	if err != nil {
		tr.Aborted = true
		return
	}
	if !first {
		tr.reject(filter.ReasonDuplicate)
		log.Debug().Str("hash", sc.ContentHash).Msg("Duplicate content")
		return
	}

	if e.opts.Markdown != nil {
		sc.Markdown = e.opts.Markdown.Convert(cand, pageURL)
	}

	if _, err := e.opts.Store.Save(ctx, sc); err != nil {
		tr.reject(filter.ReasonStorageFailed)
		tr.Errors = append(tr.Errors, fmt.Sprintf("%s: save: %v", pageURL, err))
		log.Error().Err(err).Str("hash", sc.ContentHash).Msg("Failed to store content")
		return
	}
	tr.Accepted++

	log.Info().
		Str("strategy", sc.Strategy).
		Int("relevance", sc.RelevanceScore).
		Int("quality", sc.QualityScore).
		Msg("Accepted content")
}
