package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pevans/newsharvest/api"
	"github.com/pevans/newsharvest/harvest"
	"github.com/pevans/newsharvest/logging"
)

func handleServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := configFlag(fs)
	addr := fs.String("addr", getEnv("NEWSHARVEST_ADDR", ""), "API listen address (NEWSHARVEST_ADDR)")
	poll := fs.Duration("poll", getEnvDuration("NEWSHARVEST_POLL", 5*time.Second), "How often the scheduler checks its settings (NEWSHARVEST_POLL)")
	fs.Parse(args)

	a := mustLoad(*configPath)
	defer a.Close()
	if *addr != "" {
		a.cfg.API.Addr = *addr
	}

	if err := a.openMetadata(); err != nil {
		fatal(a, "%v", err)
	}
	if err := a.openContent(); err != nil {
		fatal(a, "%v", err)
	}
	runner, err := a.runner()
	if err != nil {
		fatal(a, "%v", err)
	}

	log := logging.For("serve")

	service := harvest.NewService(harvest.ServiceConfig{
		Runner:       runner,
		Sink:         a.store,
		Enabled:      a.settings.SchedulerEnabled,
		Interval:     a.settings.Interval,
		PollInterval: *poll,
		Logger:       logging.For("scheduler"),
	})

	server := api.NewServer(api.Deps{
		Service:     service,
		Store:       a.store,
		Targets:     a.targets,
		Settings:    a.settings,
		FileTargets: a.cfg.Targets,
		Logger:      logging.For("api"),
	})

	httpServer := &http.Server{
		Addr:              a.cfg.API.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	errChan := make(chan error, 2)
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		errChan <- service.Start(ctx)
	}()
	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("Starting API server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully")
	case err := <-errChan:
		if err != nil {
			log.Error().Err(err).Msg("Service error")
		}
	}

	// Stopping the scheduler cancels a run in flight; its partial report is
	// still stored.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("API server shutdown failed")
	}

	select {
	case <-schedDone:
		log.Info().Msg("Service stopped")
	case <-shutdownCtx.Done():
		log.Warn().Msg("Shutdown timeout exceeded, forcing exit")
	}
}
