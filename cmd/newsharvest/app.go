package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/nats-io/nats.go"
	"github.com/pevans/newsharvest/config"
	"github.com/pevans/newsharvest/extract"
	"github.com/pevans/newsharvest/fetch"
	"github.com/pevans/newsharvest/filter"
	"github.com/pevans/newsharvest/harvest"
	"github.com/pevans/newsharvest/logging"
	"github.com/pevans/newsharvest/publish"
	"github.com/pevans/newsharvest/storage"
	"github.com/pevans/newsharvest/target"
)

// app holds everything a command needs. Commands open only what they use.
type app struct {
	cfg       *config.FileConfig
	logCloser io.Closer

	store    storage.Backend
	targets  *target.TargetStore
	settings *config.SettingsStore
	fetcher  *fetch.Fetcher
	nc       *nats.Conn
}

// loadApp reads the configuration file and sets up logging.
func loadApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	closer, err := logging.Setup(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	return &app{cfg: cfg, logCloser: closer}, nil
}

func ensureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}

// openMetadata opens the target and settings stores, which share one SQLite
// file.
func (a *app) openMetadata() error {
	dsn := a.cfg.Storage.Metadata.DSN
	if err := ensureDir(filepath.Dir(dsn)); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}

	targets, err := target.NewTargetStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to open target store: %w", err)
	}
	a.targets = targets

	settings, err := config.NewSettingsStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to open settings store: %w", err)
	}
	a.settings = settings
	return nil
}

// openContent opens the content store.
func (a *app) openContent() error {
	c := a.cfg.Storage.Content
	dir := c.DSN
	if c.Type != storage.KindFile {
		dir = filepath.Dir(c.DSN)
	}
	if err := ensureDir(dir); err != nil {
		return fmt.Errorf("failed to create content directory: %w", err)
	}

	store, err := storage.Open(c.Type, c.DSN)
	if err != nil {
		return fmt.Errorf("failed to open content store: %w", err)
	}
	a.store = store
	return nil
}

// runner builds the collection runner. It needs both stores open.
func (a *app) runner() (harvest.Runner, error) {
	f, err := filter.New(a.cfg.Filter)
	if err != nil {
		return nil, fmt.Errorf("invalid filter configuration: %w", err)
	}

	a.fetcher = fetch.NewFetcher(a.cfg.Fetch, fetch.WithLogger(logging.For("fetch")))

	var sink harvest.Store = a.store
	if a.cfg.NATS.URL != "" {
		nc, err := publish.Connect(a.cfg.NATS.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		a.nc = nc
		sink = publish.New(a.store, nc, a.cfg.NATS.Subject, logging.For("publish"))
	}

	var md *extract.MarkdownConverter
	if a.cfg.Extract.Markdown {
		md = extract.NewMarkdownConverter()
	}

	return &snapshotRunner{app: a, filter: f, sink: sink, markdown: md}, nil
}

// snapshotRunner builds a fresh registry from the configuration file and the
// target store at the start of every run, so target edits apply to the next
// run and never to one in flight.
type snapshotRunner struct {
	app      *app
	filter   *filter.Filter
	sink     harvest.Store
	markdown *extract.MarkdownConverter
}

func (r *snapshotRunner) Run(ctx context.Context) (*harvest.RunReport, error) {
	stored, err := r.app.targets.Targets()
	if err != nil {
		return nil, fmt.Errorf("failed to load targets: %w", err)
	}
	all := append(slices.Clone(r.app.cfg.Targets), stored...)
	reg, _ := target.NewRegistry(all)

	minViable := r.app.cfg.Extract.MinViableChars
	engine, err := harvest.NewEngine(harvest.Options{
		Registry:    reg,
		Fetcher:     r.app.fetcher,
		Filter:      r.filter,
		Store:       r.sink,
		Lookup:      r.app.store,
		Concurrency: r.app.cfg.Engine.Concurrency,
		Chain: func(t target.Target) *extract.Chain {
			return extract.NewChain(minViable,
				extract.Readability(),
				extract.ArticleSchema(),
				extract.SelectorHints(t.SelectorHints),
				extract.Paragraphs(),
			)
		},
		Markdown: r.markdown,
		Logger:   logging.For("harvest"),
	})
	if err != nil {
		return nil, err
	}
	return engine.Run(ctx)
}

// Close releases whatever was opened.
func (a *app) Close() {
	if a.fetcher != nil {
		a.fetcher.Close()
	}
	if a.nc != nil {
		a.nc.Drain()
	}
	if a.store != nil {
		a.store.Close()
	}
	if a.targets != nil {
		a.targets.Close()
	}
	if a.settings != nil {
		a.settings.Close()
	}
	if a.logCloser != nil {
		a.logCloser.Close()
	}
}
