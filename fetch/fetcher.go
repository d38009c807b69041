package fetch

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/pevans/newsharvest/target"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// targetState is the per-target pacing and identity state. It lives for the
// life of the Fetcher, so it survives across runs in one process.
type targetState struct {
	delay    *AdaptiveDelay
	maxDelay time.Duration
	limiter  *rate.Limiter
	identity *IdentityPool
}

// sync aligns the limiter interval with the adaptive delay.
func (s *targetState) sync() {
	s.limiter.SetLimit(rate.Every(s.delay.Current()))
}

// Fetcher fetches pages for targets with adaptive pacing and bounded retry.
type Fetcher struct {
	cfg     Config
	getters map[target.Strategy]Getter
	logger  zerolog.Logger
	now     func() time.Time

	mu     sync.Mutex
	states map[string]*targetState
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithGetter sets the getter used for a fetch strategy.
func WithGetter(s target.Strategy, g Getter) Option {
	return func(f *Fetcher) { f.getters[s] = g }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// WithClock overrides time.Now for FetchedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) { f.now = now }
}

// NewFetcher creates a Fetcher. Without options the http strategy uses an
// HTTPGetter and the browser strategy a lazily started BrowserGetter.
func NewFetcher(cfg Config, opts ...Option) *Fetcher {
	cfg = cfg.normalize()
	f := &Fetcher{
		cfg:     cfg,
		getters: make(map[target.Strategy]Getter),
		logger:  zerolog.Nop(),
		now:     time.Now,
		states:  make(map[string]*targetState),
	}
	for _, opt := range opts {
		opt(f)
	}
	if _, ok := f.getters[target.StrategyHTTP]; !ok {
		f.getters[target.StrategyHTTP] = NewHTTPGetter(cfg.MaxBodyBytes)
	}
	if _, ok := f.getters[target.StrategyBrowser]; !ok {
		f.getters[target.StrategyBrowser] = NewBrowserGetter(cfg.BrowserURL)
	}
	return f
}

// Close releases getters that hold resources, such as a running browser.
func (f *Fetcher) Close() error {
	var errs []error
	for _, g := range f.getters {
		if c, ok := g.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// state returns the pacing state for t. A changed max_delay override
// replaces the adaptive delay but keeps the identity rotation.
func (f *Fetcher) state(t target.Target) *targetState {
	f.mu.Lock()
	defer f.mu.Unlock()

	maxDelay := f.cfg.MaxDelay
	if t.MaxDelay > 0 {
		maxDelay = t.MaxDelay.Std()
	}

	s, ok := f.states[t.Name]
	if ok && s.maxDelay == maxDelay {
		return s
	}
	d := NewAdaptiveDelay(f.cfg.BaseDelay, f.cfg.MinDelay, maxDelay, f.cfg.BackoffFactor, f.cfg.RecoverAfter)
	if ok {
		s = &targetState{delay: d, maxDelay: maxDelay, limiter: s.limiter, identity: s.identity}
		s.sync()
		f.states[t.Name] = s
		return s
	}
	s = &targetState{
		delay:    d,
		maxDelay: maxDelay,
		limiter:  rate.NewLimiter(rate.Every(d.Current()), 1),
		identity: NewIdentityPool(f.cfg.UserAgents),
	}
	f.states[t.Name] = s
	return s
}

// timeout is the per-attempt timeout for t.
func (f *Fetcher) timeout(t target.Target) time.Duration {
	if t.Timeout > 0 {
		return t.Timeout.Std()
	}
	return f.cfg.Timeout
}

// Delay returns the current request spacing for a target. Targets that have
// not been fetched yet report the base delay.
func (f *Fetcher) Delay(targetName string) time.Duration {
	f.mu.Lock()
	s, ok := f.states[targetName]
	f.mu.Unlock()
	if !ok {
		return f.cfg.BaseDelay
	}
	return s.delay.Current()
}

// Fetch fetches the target's base URL.
func (f *Fetcher) Fetch(ctx context.Context, t target.Target) *FetchResult {
	return f.FetchURL(ctx, t, t.BaseURL)
}

// outcome classifies one attempt.
type outcome int

const (
	outcomeOK outcome = iota
	outcomeBlocked
	outcomeTransient
	outcomePermanent
	outcomeCancelled
)

// FetchURL fetches pageURL on behalf of t. It never panics or returns an
// error directly: failures are reported in FetchResult.Err after retries are
// exhausted.
func (f *Fetcher) FetchURL(ctx context.Context, t target.Target, pageURL string) *FetchResult {
	res := &FetchResult{TargetName: t.Name, URL: pageURL}

	getter, ok := f.getters[t.FetchStrategy]
	if !ok {
		getter = f.getters[target.StrategyHTTP]
	}

	st := f.state(t)
	timeout := f.timeout(t)
	backoff := f.cfg.InitialBackoff
	maxAttempts := f.cfg.MaxRetries + 1

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := st.limiter.Wait(ctx); err != nil {
			res.Err = contextErr(ctx, err)
			break
		}

		ua := st.identity.Next()
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		resp, err := getter.Get(reqCtx, pageURL, ua)
		cancel()

		res.Attempts = attempt
		res.UserAgent = ua
		res.FetchedAt = f.now()
		res.HTTPStatus = 0
		if resp != nil {
			res.HTTPStatus = resp.Status
		}

		kind, classified := classify(ctx, resp, err)
		switch kind {
		case outcomeOK:
			st.delay.Succeeded()
			st.sync()
			res.RawHTML = resp.Body
			res.Err = nil
			return res
		case outcomeBlocked:
			next := st.delay.Blocked()
			st.sync()
			f.logger.Warn().
				Str("target", t.Name).
				Str("url", pageURL).
				Int("status", res.HTTPStatus).
				Int("attempt", attempt).
				Dur("delay", next).
				Msg("Target signalled blocking")
		default:
			st.delay.Failed()
		}
		res.Err = classified

		if kind == outcomeCancelled || kind == outcomePermanent || !retryable(kind, res.HTTPStatus) {
			break
		}
		if attempt == maxAttempts {
			break
		}

		f.logger.Debug().
			Str("target", t.Name).
			Str("url", pageURL).
			Int("attempt", attempt).
			Err(classified).
			Msg("Retrying fetch")

		wait := backoff
		if f.cfg.RespectRetryAfter && resp != nil {
			if ra := retryAfter(resp.Header); ra > wait {
				wait = ra
			}
		}
		if wait > f.cfg.MaxBackoff {
			wait = f.cfg.MaxBackoff
		}
		if err := sleep(ctx, wait); err != nil {
			res.Err = err
			break
		}
		backoff *= 2
		if backoff > f.cfg.MaxBackoff {
			backoff = f.cfg.MaxBackoff
		}
	}

	res.RawHTML = nil
	f.logger.Warn().
		Str("target", t.Name).
		Str("url", pageURL).
		Int("attempts", res.Attempts).
		Err(res.Err).
		Msg("Fetch failed")
	return res
}

// classify maps an attempt to an outcome and the error to record for it.
func classify(ctx context.Context, resp *Response, err error) (outcome, error) {
	if err != nil {
		if ctx.Err() != nil {
			return outcomeCancelled, ctx.Err()
		}
		return outcomeTransient, err
	}

	switch {
	case resp.Status >= 200 && resp.Status < 300:
		if len(bytes.TrimSpace(resp.Body)) == 0 {
			return outcomeBlocked, ErrEmptyBody
		}
		return outcomeOK, nil
	case isBlockingStatus(resp.Status):
		return outcomeBlocked, &StatusError{Code: resp.Status}
	case resp.Status >= 500:
		return outcomeTransient, &StatusError{Code: resp.Status}
	default:
		return outcomePermanent, &StatusError{Code: resp.Status}
	}
}

// retryable reports whether a failed attempt is worth repeating. A 403 is a
// refusal that retrying the same page will not change.
func retryable(kind outcome, status int) bool {
	switch kind {
	case outcomeTransient:
		return true
	case outcomeBlocked:
		return status != http.StatusForbidden
	}
	return false
}

func retryAfter(h http.Header) time.Duration {
	if h == nil {
		return 0
	}
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func contextErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
