package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Response is what a Getter observed for one request.
type Response struct {
	Status int
	Body   []byte
	Header http.Header
}

// Getter performs a single page request. Implementations must honour ctx for
// cancellation and timeouts, and return a Response for every status code they
// received; an error means no usable response arrived.
type Getter interface {
	Get(ctx context.Context, url, userAgent string) (*Response, error)
}

// HTTPGetter fetches pages over plain HTTP with browser-like headers.
type HTTPGetter struct {
	client  *http.Client
	maxBody int64
}

// NewHTTPGetter creates an HTTPGetter whose transport is instrumented with
// OpenTelemetry. Bodies larger than maxBody are truncated.
func NewHTTPGetter(maxBody int64) *HTTPGetter {
	if maxBody <= 0 {
		maxBody = DefaultConfig().MaxBodyBytes
	}
	return &HTTPGetter{
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		maxBody: maxBody,
	}
}

// Get issues a GET request for url.
func (g *HTTPGetter) Get(ctx context.Context, url, userAgent string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("DNT", "1")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, g.maxBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	return &Response{
		Status: resp.StatusCode,
		Body:   body,
		Header: resp.Header,
	}, nil
}
