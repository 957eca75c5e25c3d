package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/persistorai/explorer/internal/api"
	"github.com/persistorai/explorer/internal/config"
	"github.com/persistorai/explorer/internal/db"
	"github.com/persistorai/explorer/internal/service"
	"github.com/persistorai/explorer/internal/tracing"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve summaries over HTTP and run requested refreshes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	shutdownTracing, err := tracing.Init(ctx, log, cfg.OTLPEndpoint, config.Version, cfg.TraceSampleRatio)
	if err != nil {
		return err
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := shutdownTracing(tctx); err != nil {
			log.WithError(err).Warn("flushing traces")
		}
	}()

	e, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := db.CheckCompatible(ctx, e.pool, log); err != nil {
		return err
	}

	// Summaries written by `explorer generate` in other processes evict
	// this process's cached product state.
	if err := db.NewNotifyBridge(log, e.pool, e.cache).Start(ctx); err != nil {
		return err
	}

	worker := service.NewRefreshWorker(e.orch, log, cfg.RefreshQueueSize, cfg.RefreshWorkers)

	if cfg.AdminToken.Value() == "" {
		log.Warn("EXPLORER_ADMIN_TOKEN is not set; refresh requests are disabled")
	}

	handler := api.NewRouter(ctx, &api.RouterDeps{
		Log:         log,
		Pool:        e.pool,
		Summaries:   e.orch,
		Catalog:     e.catalog,
		Refreshes:   worker,
		Location:    cfg.GroupingLocation,
		AdminToken:  cfg.AdminToken.Value(),
		CORSOrigins: cfg.CORSOrigins,
		CacheMaxAge: cfg.CacheTTL,
		Version:     config.Version,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		worker.Run(gctx)

		return nil
	})

	g.Go(func() error {
		log.WithField("addr", srv.Addr).Info("explorer listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return srv.Shutdown(sctx)
	})

	return g.Wait()
}
