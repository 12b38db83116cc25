package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/iris/config"
	"github.com/Ramsey-B/iris/internal/handlers"
	"github.com/Ramsey-B/iris/pkg/health"
	"github.com/Ramsey-B/iris/pkg/middleware"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the sync API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				logger.WithError(err).Error("failed to start")
				return err
			}
			defer a.Close(context.WithoutCancel(ctx))

			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(a.logger)

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{AllowOrigins: a.cfg.AllowOrigins}))
	e.Use(otelecho.Middleware(a.cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(a.logger))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	checker := health.NewChecker(version)
	checker.AddCheck("storage", a.orchestrator.CheckReady)
	if a.redis != nil {
		checker.AddCheck("redis", a.redis.Ping)
	}
	checker.RegisterRoutes(e)

	api := e.Group("/api/v1")
	var trigger []echo.MiddlewareFunc
	if a.cfg.AuthEnabled {
		verifier, err := middleware.NewOIDCVerifier(ctx, a.cfg.AuthIssuerURL, a.cfg.AuthClientID)
		if err != nil {
			return fmt.Errorf("failed to set up authentication: %w", err)
		}
		api.Use(middleware.Authentication(a.logger, verifier))
		trigger = append(trigger, middleware.RequireRole(a.logger, a.cfg.AuthSyncRole))
	}
	handlers.NewSyncHandler(a.orchestrator, a.logger).Register(api.Group("/sync"), trigger...)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Port),
		Handler:           e,
		ReadTimeout:       time.Duration(a.cfg.HttpServerReadTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(a.cfg.ReadHeaderTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(a.cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    a.cfg.MaxHeaderBytes,
	}
	// a sync runs inside the request, so the write timeout must cover a full run
	server.WriteTimeout = time.Duration(a.cfg.HttpServerWriteTimeoutSeconds)*time.Second + a.cfg.Sync.MaxRunDuration

	errs := make(chan error, 1)
	go func() {
		a.logger.Infof("Starting %s on port %d", a.cfg.AppName, a.cfg.Port)
		errs <- server.ListenAndServe()
	}()
	checker.SetReady(true)

	select {
	case err := <-errs:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	checker.SetReady(false)
	a.logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
