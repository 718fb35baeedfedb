package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fastygo/exportflow/internal/app"
	"github.com/fastygo/exportflow/internal/services/lifecycle"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the event pipeline and the scheduled jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	cfg, zapLogger, err := bootstrap()
	if err != nil {
		return err
	}
	defer zapLogger.Sync()

	ctx, stop := lifecycle.SignalContext(parent, zapLogger)
	defer stop()

	application, err := app.New(ctx, cfg, zapLogger)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	application.Start()

	server := &fasthttp.Server{
		Handler:            application.Router.Handler,
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		Concurrency:        cfg.HTTP.MaxConn,
		Name:               cfg.AppName,
		MaxRequestBodySize: 1 << 20,
	}
	application.Lifecycle.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zapLogger.Info("server started", zap.String("address", cfg.Address()), zap.String("storage", cfg.Storage.Driver))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zapLogger.Info("shutting down")
		return application.Shutdown(context.Background())
	})

	return g.Wait()
}
