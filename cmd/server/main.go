package main

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"pagegen/app/internal/app/bootstrap"
	"pagegen/app/internal/config"
	applog "pagegen/app/internal/log"
)

const readHeaderTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return eris.Wrap(err, "failure loading configuration")
	}

	logger, logCloser, err := applog.NewLogger(applog.Options{
		Level: cfg.LogLevel,
		File:  cfg.LogFile,
	})
	if err != nil {
		return eris.Wrap(err, "failure initialising logger")
	}
	defer logCloser.Close()

	sentryHub, flush, err := applog.InitSentry(logger, applog.SentrySettings{
		DSN:         cfg.SentryDSN,
		Environment: cfg.Environment,
	})
	if err != nil {
		return eris.Wrap(err, "failure initialising sentry")
	}
	defer flush()

	app, err := bootstrap.Build(ctx, bootstrap.Dependencies{
		Config:    cfg,
		Logger:    logger,
		SentryHub: sentryHub,
	})
	if err != nil {
		return eris.Wrap(err, "building application")
	}
	defer func() {
		if closeErr := app.Cleanup(); closeErr != nil {
			logger.WithError(closeErr).Error("releasing application resources")
		}
	}()

	httpServer := &stdhttp.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", cfg.ServerPort),
		Handler:           app.HTTPServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	logger.WithFields(logrus.Fields{
		"addr":     httpServer.Addr,
		"base_url": cfg.PublicBaseURL,
	}).Info("starting http server")

	serverErrCh := make(chan error, 1)
	go func() {
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErrCh <- err
		} else {
			serverErrCh <- nil
		}
	}()

	consumerErrCh := make(chan error, 1)
	if app.Consumer != nil {
		go func() {
			consumerErrCh <- app.Consumer.Run(ctx)
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErrCh:
		if err != nil {
			return eris.Wrap(err, "http server error")
		}
		return nil
	case err := <-consumerErrCh:
		if err != nil {
			logger.WithError(err).Error("event consumer stopped unexpectedly")
		}
		<-ctx.Done()
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "shutting down http server")
	}

	logger.Info("http server shut down cleanly")
	return nil
}
