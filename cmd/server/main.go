package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mitra-ai/internal/api"
	"mitra-ai/internal/app"
	"mitra-ai/internal/config"
	"mitra-ai/internal/logger"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		logger.Log.WithError(err).Fatal("Server stopped with error")
	}
	logger.Log.Info("Server exited gracefully")
}

func run() error {
	appConfig, err := config.LoadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, cleanup, err := app.Build(ctx, appConfig)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := container.Bootstrap(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         ":" + appConfig.Server.Port,
		Handler:      api.NewRouter(container),
		ReadTimeout:  appConfig.Server.ReadTimeout,
		WriteTimeout: appConfig.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Log.WithFields(logrus.Fields{
			"port":     appConfig.Server.Port,
			"store":    appConfig.Database.Driver,
			"provider": appConfig.LLM.Provider,
			"model":    appConfig.LLM.DefaultModel,
		}).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Log.Info("Shutting down server")

		// In-flight model calls are bounded by LLM_TIMEOUT; give them that long to finish.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), appConfig.LLM.Timeout+5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
