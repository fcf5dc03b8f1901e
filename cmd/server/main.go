package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/aashari/go-onemin-gateway/docs"
	"github.com/aashari/go-onemin-gateway/internal/app"
	"github.com/aashari/go-onemin-gateway/internal/config"
	"github.com/aashari/go-onemin-gateway/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// The logger is not initialized until the environment is loaded.
		_, _ = os.Stderr.WriteString("FATAL: Failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	// .env files are loaded by config.Load, so the logger sees them too.
	if err := logger.InitFromEnv(); err != nil {
		_, _ = os.Stderr.WriteString("FATAL: Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startupCtx, cancelStartup := context.WithTimeout(ctx, 30*time.Second)
	gateway, err := app.New(startupCtx, cfg)
	cancelStartup()
	if err != nil {
		logger.Error("Failed to initialize application", "error", err.Error(),
			"stage", logger.LogStages.Initialization)
		os.Exit(1)
	}
	gateway.Start(ctx)

	// WriteTimeout stays zero: streamed completions outlive any fixed bound
	// and the upstream client enforces its own call timeouts.
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           gateway.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting",
			"address", cfg.Addr(),
			"swagger", cfg.EnableSwagger,
			"stage", logger.LogStages.Initialization)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	exitCode := 0
	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error("Server failed", "error", err.Error())
			exitCode = 1
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received", "timeout", cfg.Server.ShutdownTimeout.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err.Error())
		exitCode = 1
	}
	if err := gateway.Close(shutdownCtx); err != nil {
		logger.Error("Failed to release resources", "error", err.Error())
		exitCode = 1
	}
	logger.Info("Server stopped")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
