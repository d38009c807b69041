package harvest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pevans/newsharvest/extract"
	"github.com/pevans/newsharvest/fetch"
	"github.com/pevans/newsharvest/filter"
	"github.com/pevans/newsharvest/target"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory content store that also answers duplicate
// lookups.
type memStore struct {
	mu      sync.Mutex
	items   []*filter.ScoredContent
	hashes  map[string]bool
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{hashes: make(map[string]bool)}
}

func (m *memStore) Exists(ctx context.Context, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hashes[hash], nil
}

func (m *memStore) Save(ctx context.Context, c *filter.ScoredContent) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.items = append(m.items, c)
	m.hashes[c.ContentHash] = true
	return c.ID, nil
}

func (m *memStore) saved() []*filter.ScoredContent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*filter.ScoredContent(nil), m.items...)
}

func testFetchConfig() fetch.Config {
	cfg := fetch.DefaultConfig()
	cfg.Timeout = 100 * time.Millisecond
	cfg.MaxRetries = 2
	cfg.BaseDelay = time.Millisecond
	cfg.MinDelay = time.Millisecond
	cfg.MaxDelay = 10 * time.Millisecond
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	return cfg
}

// investmentArticle is about 600 characters with five mentions of 투자 and a
// dollar amount. tag keeps bodies of different pages distinct.
func investmentArticle(tag string) string {
	return fmt.Sprintf(`<html><head><title>Seoul report %[1]s</title></head><body>
<nav><a href="/">Home</a> <a href="/world">World</a></nav>
<article>
<h1>Funds return to Seoul %[1]s</h1>
<p>Foreign 투자 flows into Seoul rose sharply this week as fund managers rotated back into technology names after months of caution (%[1]s).</p>
<p>Analysts said 투자 appetite was helped by a $5 billion pension allocation announced on Monday, the largest such commitment this year.</p>
<p>Local brokers reported that retail 투자 accounts opened at the fastest pace since the spring, while institutional 투자 desks added to positions.</p>
<p>Officials expect 투자 to remain steady through the end of the year, though several warned that currency swings could still unsettle the outlook.</p>
</article>
<footer>Copyright Example</footer>
</body></html>`, tag)
}

const blacklistedArticle = `<html><body><article>
<h1>About this newsroom</h1>
<p>The Associated Press is an independent global news organization dedicated to factual reporting across every region of the world.</p>
<p>AP today remains the most trusted source of fast, accurate, unbiased news in all formats and the essential provider of the technology.</p>
<p>Stock market investors follow the wire for earnings, revenue and profit news around the clock, every trading day of the year.</p>
</article></body></html>`

const shellPage = `<html><body><div id="app">Loading...</div></body></html>`

type site struct {
	srv  *httptest.Server
	hits sync.Map
}

func (s *site) count(path string) int {
	v, ok := s.hits.Load(path)
	if !ok {
		return 0
	}
	return int(v.(*atomic.Int32).Load())
}

// newSite serves the given pages by path. Unknown paths are 404.
func newSite(t *testing.T, pages map[string]string) *site {
	t.Helper()
	s := &site{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v, _ := s.hits.LoadOrStore(r.URL.Path, new(atomic.Int32))
		v.(*atomic.Int32).Add(1)

		if r.URL.Path == "/slow" {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
			return
		}
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		body = strings.ReplaceAll(body, "{{base}}", s.srv.URL)
		if strings.HasSuffix(r.URL.Path, ".xml") {
			w.Header().Set("Content-Type", "application/rss+xml")
		} else {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *site) url(path string) string {
	return s.srv.URL + path
}

func newTestEngine(t *testing.T, targets []target.Target, store *memStore, mutate ...func(*Options)) *Engine {
	t.Helper()
	reg, _ := target.NewRegistry(targets)

	f, err := filter.New(filter.DefaultConfig())
	require.NoError(t, err)

	fetcher := fetch.NewFetcher(testFetchConfig(), fetch.WithLogger(zerolog.Nop()))
	t.Cleanup(func() { _ = fetcher.Close() })

	opts := Options{
		Registry: reg,
		Fetcher:  fetcher,
		Filter:   f,
		Store:    store,
		Lookup:   store,
		Logger:   zerolog.Nop(),
	}
	for _, m := range mutate {
		m(&opts)
	}
	e, err := NewEngine(opts)
	require.NoError(t, err)
	return e
}

// assertBounds checks accepted <= extracted <= fetched <= attempted for
// every target.
func assertBounds(t *testing.T, r *RunReport) {
	t.Helper()
	for _, tr := range r.Targets {
		assert.LessOrEqual(t, tr.Accepted, tr.Extracted, tr.Target)
		assert.LessOrEqual(t, tr.Extracted, tr.Fetched, tr.Target)
		assert.LessOrEqual(t, tr.Fetched, tr.Attempted, tr.Target)
	}
}

// TestEngine_AcceptsRelevantArticle verifies a relevant article is stored
func TestEngine_AcceptsRelevantArticle(t *testing.T) {
	s := newSite(t, map[string]string{"/a": investmentArticle("a")})
	store := newMemStore()
	e := newTestEngine(t, []target.Target{
		{Name: "seoul", BaseURL: s.url("/a"), Enabled: true},
	}, store)

	report, err := e.Run(context.Background())
	require.NoError(t, err)

	tr, ok := report.Target("seoul")
	require.True(t, ok)
	assert.Equal(t, 1, tr.Attempted)
	assert.Equal(t, 1, tr.Fetched)
	assert.Equal(t, 1, tr.Extracted)
	assert.Equal(t, 1, tr.Accepted)
	assert.Equal(t, 1, tr.Strategies[extract.StrategyReadability])
	assertBounds(t, report)

	saved := store.saved()
	require.Len(t, saved, 1)
	assert.GreaterOrEqual(t, saved[0].RelevanceScore, 4)
	assert.Positive(t, saved[0].QualityScore)
	assert.Equal(t, "seoul", saved[0].TargetName)
	assert.Equal(t, s.url("/a"), saved[0].URL)
	assert.NotEmpty(t, saved[0].ContentHash)
	assert.False(t, report.Cancelled)
	assert.NotEmpty(t, report.ID)
}

// TestEngine_BlacklistedArticle verifies boilerplate is rejected without a
// write
func TestEngine_BlacklistedArticle(t *testing.T) {
	s := newSite(t, map[string]string{"/ap": blacklistedArticle})
	store := newMemStore()
	e := newTestEngine(t, []target.Target{
		{Name: "wire", BaseURL: s.url("/ap"), Enabled: true},
	}, store)

	report, err := e.Run(context.Background())
	require.NoError(t, err)

	tr, _ := report.Target("wire")
	assert.Equal(t, 1, tr.RejectedReasonCounts[filter.ReasonBlacklisted])
	assert.Equal(t, 0, tr.Accepted)
	assert.Empty(t, store.saved())
}

// TestEngine_TimeoutDoesNotStopRun verifies a target that never answers is
// recorded and the next target still runs
func TestEngine_TimeoutDoesNotStopRun(t *testing.T) {
	s := newSite(t, map[string]string{"/b": investmentArticle("b")})
	store := newMemStore()
	e := newTestEngine(t, []target.Target{
		{Name: "slow", BaseURL: s.url("/slow"), Enabled: true},
		{Name: "fast", BaseURL: s.url("/b"), Enabled: true},
	}, store)

	report, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Targets, 2)

	assert.Equal(t, "slow", report.Targets[0].Target)
	assert.Equal(t, "fast", report.Targets[1].Target)

	slow := report.Targets[0]
	assert.Equal(t, 1, slow.Attempted)
	assert.Equal(t, 0, slow.Fetched)
	assert.Equal(t, 1, slow.RejectedReasonCounts[filter.ReasonFetchFailed])
	assert.NotEmpty(t, slow.Errors)
	assert.Equal(t, 3, s.count("/slow"))

	assert.Equal(t, 1, report.Targets[1].Accepted)
	assertBounds(t, report)
}

// TestEngine_DisabledTargetsNeverFetched verifies disabled targets get no
// requests and no report entry
func TestEngine_DisabledTargetsNeverFetched(t *testing.T) {
	s := newSite(t, map[string]string{
		"/on":  investmentArticle("on"),
		"/off": investmentArticle("off"),
	})
	store := newMemStore()
	e := newTestEngine(t, []target.Target{
		{Name: "on", BaseURL: s.url("/on"), Enabled: true},
		{Name: "off", BaseURL: s.url("/off"), Enabled: false},
	}, store)

	report, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, s.count("/off"))
	_, ok := report.Target("off")
	assert.False(t, ok)
	assert.Len(t, report.Targets, 1)
}

// TestEngine_AllDisabled verifies an all-disabled registry gives an empty
// report, not an error
func TestEngine_AllDisabled(t *testing.T) {
	e := newTestEngine(t, []target.Target{
		{Name: "off", BaseURL: "https://example.com/", Enabled: false},
	}, newMemStore())

	report, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Targets)
}

// TestEngine_EmptyRegistry verifies a registry without valid targets is a
// configuration error
func TestEngine_EmptyRegistry(t *testing.T) {
	e := newTestEngine(t, []target.Target{{Name: "", BaseURL: "https://example.com/"}}, newMemStore())

	report, err := e.Run(context.Background())
	assert.Nil(t, report)
	assert.ErrorIs(t, err, ErrEmptyRegistry)
	assert.True(t, target.IsConfigError(err))
}

// TestEngine_ConfigErrorsReported verifies invalid targets are listed while
// valid ones still run
func TestEngine_ConfigErrorsReported(t *testing.T) {
	s := newSite(t, map[string]string{"/a": investmentArticle("a")})
	e := newTestEngine(t, []target.Target{
		{Name: "broken", BaseURL: "", Enabled: true},
		{Name: "good", BaseURL: s.url("/a"), Enabled: true},
	}, newMemStore())

	report, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.ConfigErrors, 1)
	assert.Contains(t, report.ConfigErrors[0], "broken")
	assert.Len(t, report.Targets, 1)
}

// TestEngine_DuplicateAcrossTargets verifies the same article on two targets
// is stored once
func TestEngine_DuplicateAcrossTargets(t *testing.T) {
	page := investmentArticle("same")
	s := newSite(t, map[string]string{"/x": page, "/y": page})
	store := newMemStore()
	e := newTestEngine(t, []target.Target{
		{Name: "x", BaseURL: s.url("/x"), Enabled: true},
		{Name: "y", BaseURL: s.url("/y"), Enabled: true},
	}, store, func(o *Options) { o.Concurrency = 2 })

	report, err := e.Run(context.Background())
	require.NoError(t, err)

	totals := report.Totals()
	assert.Equal(t, 1, totals.Accepted)
	assert.Equal(t, 1, totals.Rejected[filter.ReasonDuplicate])
	assert.Len(t, store.saved(), 1)
}

// TestEngine_DuplicateFromEarlierRun verifies stored hashes are not stored
// again
func TestEngine_DuplicateFromEarlierRun(t *testing.T) {
	s := newSite(t, map[string]string{"/a": investmentArticle("a")})
	store := newMemStore()
	targets := []target.Target{{Name: "a", BaseURL: s.url("/a"), Enabled: true}}

	first, err := newTestEngine(t, targets, store).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Totals().Accepted)

	second, err := newTestEngine(t, targets, store).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Totals().Accepted)
	assert.Equal(t, 1, second.Totals().Rejected[filter.ReasonDuplicate])
	assert.Len(t, store.saved(), 1)
}

// TestEngine_ExtractionFailed verifies shell pages are rejected and nothing
// is substituted
func TestEngine_ExtractionFailed(t *testing.T) {
	s := newSite(t, map[string]string{"/shell": shellPage})
	store := newMemStore()
	e := newTestEngine(t, []target.Target{
		{Name: "spa", BaseURL: s.url("/shell"), Enabled: true},
	}, store)

	report, err := e.Run(context.Background())
	require.NoError(t, err)

	tr, _ := report.Target("spa")
	assert.Equal(t, 1, tr.Fetched)
	assert.Equal(t, 0, tr.Extracted)
	assert.Equal(t, 1, tr.RejectedReasonCounts[filter.ReasonExtractionFailed])
	assert.Empty(t, store.saved())
}

// TestEngine_StorageFailure verifies a failed write is counted, not fatal
func TestEngine_StorageFailure(t *testing.T) {
	s := newSite(t, map[string]string{"/a": investmentArticle("a")})
	store := newMemStore()
	store.saveErr = errors.New("database is locked")
	e := newTestEngine(t, []target.Target{
		{Name: "a", BaseURL: s.url("/a"), Enabled: true},
	}, store)

	report, err := e.Run(context.Background())
	require.NoError(t, err)

	tr, _ := report.Target("a")
	assert.Equal(t, 0, tr.Accepted)
	assert.Equal(t, 1, tr.RejectedReasonCounts[filter.ReasonStorageFailed])
	require.Len(t, tr.Errors, 1)
	assert.Contains(t, tr.Errors[0], "database is locked")
}

// TestEngine_ListMode verifies article links are discovered and capped
func TestEngine_ListMode(t *testing.T) {
	listing := `<html><body><ul class="headlines">
<li><a href="/news/1">First market headline of the day</a></li>
<li><a href="/news/2">Second market headline of the day</a></li>
<li><a href="/news/3">Third market headline of the day</a></li>
</ul></body></html>`
	s := newSite(t, map[string]string{
		"/":       listing,
		"/news/1": investmentArticle("1"),
		"/news/2": investmentArticle("2"),
		"/news/3": investmentArticle("3"),
	})
	store := newMemStore()
	e := newTestEngine(t, []target.Target{{
		Name:          "list",
		BaseURL:       s.url("/"),
		Enabled:       true,
		Mode:          target.ModeList,
		LinkSelectors: []string{".missing a", ".headlines a"},
		MaxArticles:   2,
	}}, store)

	report, err := e.Run(context.Background())
	require.NoError(t, err)

	tr, _ := report.Target("list")
	assert.Equal(t, 2, tr.Discovered)
	assert.Equal(t, 2, tr.Attempted)
	assert.Equal(t, 2, tr.Accepted)
	assert.Equal(t, 0, s.count("/news/3"))
	assertBounds(t, report)
}

// TestEngine_ListingFetchFailure verifies a failed listing page counts as
// one failed attempt
func TestEngine_ListingFetchFailure(t *testing.T) {
	s := newSite(t, map[string]string{})
	e := newTestEngine(t, []target.Target{{
		Name:          "list",
		BaseURL:       s.url("/missing"),
		Enabled:       true,
		Mode:          target.ModeList,
		LinkSelectors: []string{"a"},
	}}, newMemStore())

	report, err := e.Run(context.Background())
	require.NoError(t, err)

	tr, _ := report.Target("list")
	assert.Equal(t, 1, tr.Attempted)
	assert.Equal(t, 0, tr.Fetched)
	assert.Equal(t, 1, tr.RejectedReasonCounts[filter.ReasonFetchFailed])
}

// TestEngine_FeedMode verifies feed items are followed
func TestEngine_FeedMode(t *testing.T) {
	rss := `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Markets</title><link>{{base}}/</link>
<item><title>Funds return</title><link>{{base}}/story/1</link></item>
<item><title>Funds return again</title><link>{{base}}/story/2</link></item>
</channel></rss>`
	s := newSite(t, map[string]string{
		"/feed.xml": rss,
		"/story/1":  investmentArticle("s1"),
		"/story/2":  blacklistedArticle,
	})
	store := newMemStore()
	e := newTestEngine(t, []target.Target{{
		Name:    "feed",
		BaseURL: s.url("/"),
		FeedURL: s.url("/feed.xml"),
		Enabled: true,
		Mode:    target.ModeFeed,
	}}, store)

	report, err := e.Run(context.Background())
	require.NoError(t, err)

	tr, _ := report.Target("feed")
	assert.Equal(t, 2, tr.Discovered)
	assert.Equal(t, 2, tr.Attempted)
	assert.Equal(t, 1, tr.Accepted)
	assert.Equal(t, 1, tr.RejectedReasonCounts[filter.ReasonBlacklisted])
	assert.Equal(t, 0, s.count("/"))
}

// TestEngine_FeedMetadataFillsCandidate verifies feed publication times feed
// the staleness check and feed authors reach stored content
func TestEngine_FeedMetadataFillsCandidate(t *testing.T) {
	fresh := time.Now().UTC().Add(-time.Hour).Format(time.RFC1123Z)
	rss := `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Markets</title><link>{{base}}/</link>
<item><title>Funds return</title><link>{{base}}/story/new</link><pubDate>` + fresh + `</pubDate><author>desk@example.com (Lee Ji)</author></item>
<item><title>Funds returned long ago</title><link>{{base}}/story/old</link><pubDate>Mon, 02 Jan 2006 15:04:05 +0000</pubDate></item>
</channel></rss>`
	s := newSite(t, map[string]string{
		"/feed.xml":  rss,
		"/story/new": investmentArticle("new"),
		"/story/old": investmentArticle("old"),
	})
	store := newMemStore()

	cfg := filter.DefaultConfig()
	cfg.MaxAge = 24 * time.Hour
	f, err := filter.New(cfg)
	require.NoError(t, err)

	e := newTestEngine(t, []target.Target{{
		Name:    "feed",
		BaseURL: s.url("/"),
		FeedURL: s.url("/feed.xml"),
		Enabled: true,
		Mode:    target.ModeFeed,
	}}, store, func(o *Options) { o.Filter = f })

	report, err := e.Run(context.Background())
	require.NoError(t, err)

	tr, _ := report.Target("feed")
	assert.Equal(t, 1, tr.Accepted)
	assert.Equal(t, 1, tr.RejectedReasonCounts[filter.ReasonStale])

	saved := store.saved()
	require.Len(t, saved, 1)
	assert.Contains(t, saved[0].URL, "/story/new")
	assert.Equal(t, "Lee Ji", saved[0].Author)
	require.NotNil(t, saved[0].PublishedAt)
}

// TestEngine_MarkdownRendered verifies accepted content carries markdown
func TestEngine_MarkdownRendered(t *testing.T) {
	s := newSite(t, map[string]string{"/a": investmentArticle("a")})
	store := newMemStore()
	e := newTestEngine(t, []target.Target{
		{Name: "a", BaseURL: s.url("/a"), Enabled: true},
	}, store, func(o *Options) { o.Markdown = extract.NewMarkdownConverter() })

	_, err := e.Run(context.Background())
	require.NoError(t, err)

	saved := store.saved()
	require.Len(t, saved, 1)
	assert.Contains(t, saved[0].Markdown, "pension allocation")
	assert.NotEqual(t, saved[0].BodyText, saved[0].Markdown)
}

// TestEngine_CancelledBeforeStart verifies no target starts after
// cancellation
func TestEngine_CancelledBeforeStart(t *testing.T) {
	s := newSite(t, map[string]string{"/a": investmentArticle("a")})
	e := newTestEngine(t, []target.Target{
		{Name: "a", BaseURL: s.url("/a"), Enabled: true},
	}, newMemStore())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := e.Run(ctx)
	require.NoError(t, err)
	assert.True(t, report.Cancelled)
	assert.Empty(t, report.Targets)
	assert.Equal(t, 0, s.count("/a"))
}

// TestEngine_CancelDuringRun verifies later targets are not started once the
// run is cancelled
func TestEngine_CancelDuringRun(t *testing.T) {
	s := newSite(t, map[string]string{"/b": investmentArticle("b")})
	e := newTestEngine(t, []target.Target{
		{Name: "slow", BaseURL: s.url("/slow"), Enabled: true},
		{Name: "later", BaseURL: s.url("/b"), Enabled: true},
	}, newMemStore(), func(o *Options) {
		cfg := testFetchConfig()
		cfg.Timeout = 5 * time.Second
		o.Fetcher = fetch.NewFetcher(cfg, fetch.WithLogger(zerolog.Nop()))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	report, err := e.Run(ctx)
	require.NoError(t, err)
	assert.True(t, report.Cancelled)
	require.Len(t, report.Targets, 1)
	assert.True(t, report.Targets[0].Aborted)
	assert.Equal(t, 0, s.count("/b"))
}

// TestNewEngine_RequiresCollaborators verifies missing dependencies are
// rejected up front
func TestNewEngine_RequiresCollaborators(t *testing.T) {
	reg, _ := target.NewRegistry([]target.Target{{Name: "a", BaseURL: "https://example.com/", Enabled: true}})

	_, err := NewEngine(Options{Registry: reg})
	assert.Error(t, err)

	_, err = NewEngine(Options{})
	assert.ErrorIs(t, err, ErrEmptyRegistry)
}
