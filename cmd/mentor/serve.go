package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	httpapi "github.com/tbourn/go-mentor-backend/internal/http"
	"github.com/tbourn/go-mentor-backend/internal/observability"
	"github.com/tbourn/go-mentor-backend/internal/repo"
	"github.com/tbourn/go-mentor-backend/internal/scheduler"
	"github.com/tbourn/go-mentor-backend/internal/sysutil"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the ingestion workers and the scheduled jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, observability.BuildInfo{Version: version, Commit: commit})
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			logger.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			logger.Warn().Err(err).Msg("close resources")
		}
	}()

	// Workers first so recovered documents have somewhere to go.
	a.queue.Start(context.WithoutCancel(ctx))
	if n, err := a.documents.RecoverProcessing(ctx); err != nil {
		logger.Error().Err(err).Msg("recover processing documents")
	} else if n > 0 {
		logger.Info().Int("documents", n).Msg("re-queued documents left processing")
	}

	jobs := scheduler.New(sysutil.Component(logger, "scheduler"), cfg.Jobs.JobTimeout)
	if err := registerJobs(jobs, a); err != nil {
		_ = a.queue.Stop()
		return err
	}
	jobs.Start()

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB:        a.db,
		Threads:   a.threads,
		Messages:  a.messages,
		Judge:     a.judge,
		Documents: a.documents,
		Logger:    &logger,
	}, cfg)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("version", version).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case serveErr = <-errCh:
		logger.Error().Err(serveErr).Msg("http server failed")
	}

	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	if err := jobs.Stop(sctx); err != nil {
		logger.Warn().Err(err).Msg("scheduler shutdown")
	}
	if err := a.queue.Stop(); err != nil {
		logger.Warn().Err(err).Msg("queue shutdown")
	}
	logger.Info().Msg("stopped")
	return serveErr
}

// registerJobs schedules the outbox dispatcher, the idle-thread sweep and
// the idempotency purge.
func registerJobs(s *scheduler.Scheduler, a *app) error {
	if err := s.Add("outbox", a.cfg.Jobs.OutboxSchedule, func(ctx context.Context) error {
		_, err := a.outbox.DispatchPending(ctx)
		return err
	}); err != nil {
		return err
	}
	if err := s.Add("idle-threads", a.cfg.Jobs.IdleSweepSchedule, func(ctx context.Context) error {
		n, err := a.threads.AbandonIdle(ctx, a.cfg.Jobs.ThreadIdleTimeout)
		if n > 0 {
			a.log.Info().Int("threads", n).Msg("abandoned idle threads")
		}
		return err
	}); err != nil {
		return err
	}
	return s.Add("idempotency-purge", a.cfg.Jobs.IdempotencySchedule, func(ctx context.Context) error {
		_, err := repo.PurgeIdempotency(ctx, a.db, time.Now().UTC())
		return err
	})
}
