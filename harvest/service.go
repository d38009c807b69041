package harvest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrRunInProgress is returned when a run is requested while another one is
// still going.
var ErrRunInProgress = errors.New("a collection run is already in progress")

// ErrServiceStopped is returned when a run is requested after the scheduler
// has begun shutting down.
var ErrServiceStopped = errors.New("collection service is shutting down")

// Runner performs one collection pass. *Engine implements it.
type Runner interface {
	Run(ctx context.Context) (*RunReport, error)
}

// ReportSink keeps finished run reports.
type ReportSink interface {
	SaveReport(ctx context.Context, r *RunReport) error
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Runner Runner
	// Sink may be nil, in which case reports are only kept in memory.
	Sink ReportSink
	// Enabled reports whether scheduled runs are switched on. It is polled,
	// and turning it off cancels a scheduled run in flight.
	Enabled func(ctx context.Context) bool
	// Interval is the time between the starts of scheduled runs.
	Interval func(ctx context.Context) time.Duration
	// PollInterval is how often Enabled and Interval are checked.
	PollInterval time.Duration
	Logger       zerolog.Logger
}

// Service triggers collection runs on a schedule and on demand. At most one
// run is in flight at a time.
type Service struct {
	cfg ServiceConfig
	now func() time.Time

	mu        sync.Mutex
	base      context.Context
	running   bool
	stopping  bool
	scheduled bool
	cancel    context.CancelFunc
	lastStart time.Time
	last      *RunReport
	wg        sync.WaitGroup
}

// NewService creates a service. Missing callbacks default to a disabled
// scheduler with a one hour interval.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Enabled == nil {
		cfg.Enabled = func(context.Context) bool { return false }
	}
	if cfg.Interval == nil {
		cfg.Interval = func(context.Context) time.Duration { return time.Hour }
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Service{
		cfg:  cfg,
		now:  time.Now,
		base: context.Background(),
	}
}

// Start runs the scheduling loop until ctx is done, then waits for a run in
// flight to wind down.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	s.base = ctx
	s.mu.Unlock()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	s.cfg.Logger.Info().Dur("poll", s.cfg.PollInterval).Msg("Scheduler started")

	for {
		select {
		case <-ctx.Done():
			// no background run can be added once stopping is set
			s.mu.Lock()
			s.stopping = true
			s.mu.Unlock()
			s.wg.Wait()
			s.cfg.Logger.Info().Msg("Scheduler stopped")
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	if !s.cfg.Enabled(ctx) {
		s.mu.Lock()
		if s.running && s.scheduled && s.cancel != nil {
			s.cfg.Logger.Info().Msg("Scheduler disabled, cancelling run")
			s.cancel()
		}
		s.mu.Unlock()
		return
	}

	interval := s.cfg.Interval(ctx)
	s.mu.Lock()
	due := !s.running && (s.lastStart.IsZero() || s.now().Sub(s.lastStart) >= interval)
	s.mu.Unlock()
	if !due {
		return
	}

	if err := s.start(true); err != nil && !errors.Is(err, ErrRunInProgress) && !errors.Is(err, ErrServiceStopped) {
		s.cfg.Logger.Error().Err(err).Msg("Failed to start scheduled run")
	}
}

// Trigger starts a run in the background and returns immediately.
func (s *Service) Trigger() error {
	return s.start(false)
}

func (s *Service) start(scheduled bool) error {
	s.mu.Lock()
	if s.stopping || s.base.Err() != nil {
		s.mu.Unlock()
		return ErrServiceStopped
	}
	runCtx, ok := s.beginLocked(s.base, scheduled)
	if !ok {
		s.mu.Unlock()
		return ErrRunInProgress
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.finish()
		_, _ = s.execute(runCtx)
	}()
	return nil
}

// RunNow runs a collection pass and waits for its report.
func (s *Service) RunNow(ctx context.Context) (*RunReport, error) {
	runCtx, ok := s.begin(ctx, false)
	if !ok {
		return nil, ErrRunInProgress
	}
	defer s.finish()
	return s.execute(runCtx)
}

// Running reports whether a run is in flight.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Last returns the report of the most recent finished run, or nil.
func (s *Service) Last() *RunReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Service) begin(ctx context.Context, scheduled bool) (context.Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.beginLocked(ctx, scheduled)
}

// beginLocked marks a run as started. s.mu must be held.
func (s *Service) beginLocked(ctx context.Context, scheduled bool) (context.Context, bool) {
	if s.running {
		return nil, false
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.scheduled = scheduled
	s.cancel = cancel
	s.lastStart = s.now()
	return runCtx, true
}

func (s *Service) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.running = false
	s.scheduled = false
	s.cancel = nil
}

func (s *Service) execute(ctx context.Context) (*RunReport, error) {
	report, err := s.cfg.Runner.Run(ctx)
	if err != nil {
		s.cfg.Logger.Error().Err(err).Msg("Collection run failed")
		return nil, err
	}

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()

	if s.cfg.Sink != nil {
		// A cancelled run still gets its partial report stored.
		if err := s.cfg.Sink.SaveReport(context.WithoutCancel(ctx), report); err != nil {
			s.cfg.Logger.Error().Err(err).Str("run", report.ID).Msg("Failed to store run report")
		}
	}
	return report, nil
}
