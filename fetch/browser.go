package fetch

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// BrowserGetter renders pages in headless Chrome through Rod with the stealth
// evasions applied. The browser is started on the first request.
type BrowserGetter struct {
	remoteURL string

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// NewBrowserGetter creates a BrowserGetter. An empty remoteURL launches a
// local headless browser.
func NewBrowserGetter(remoteURL string) *BrowserGetter {
	return &BrowserGetter{remoteURL: remoteURL}
}

func (g *BrowserGetter) connect() (*rod.Browser, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.browser != nil {
		return g.browser, nil
	}

	controlURL := g.remoteURL
	if controlURL == "" {
		g.lnch = launcher.New().Headless(true)
		u, err := g.lnch.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	g.browser = b
	return b, nil
}

// Get navigates a fresh stealth tab to url and returns the rendered DOM.
// DevTools does not report the document status here, so a rendered page is
// reported as 200.
func (g *BrowserGetter) Get(ctx context.Context, url, userAgent string) (*Response, error) {
	b, err := g.connect()
	if err != nil {
		return nil, err
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	defer page.Close()

	if userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: userAgent}); err != nil {
			return nil, fmt.Errorf("browser: set user agent: %w", err)
		}
	}

	p := page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return nil, fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return nil, fmt.Errorf("browser: wait load %s: %w", url, err)
	}

	html, err := p.HTML()
	if err != nil {
		return nil, fmt.Errorf("browser: get DOM: %w", err)
	}

	return &Response{Status: http.StatusOK, Body: []byte(html), Header: http.Header{}}, nil
}

// Close shuts down the browser if it was started.
func (g *BrowserGetter) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var err error
	if g.browser != nil {
		err = g.browser.Close()
		g.browser = nil
	}
	if g.lnch != nil {
		g.lnch.Cleanup()
		g.lnch = nil
	}
	return err
}
