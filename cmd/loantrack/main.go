package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"loantrack/internal/cli"
	apphttp "loantrack/internal/http"
	"loantrack/internal/session"
)

func main() {
	logger := cli.SetupLogger()
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(logger)

	cache := cli.InitCache(logger, cfg.CacheDBPath)
	defer cache.Close()

	store := cli.InitRemoteStore(logger, cfg, cache)

	sess := session.New(cache, store)
	if err := sess.Load(context.Background()); err != nil {
		logger.Error("Failed to load session from cache", "error", err)
		os.Exit(1)
	}

	// Best-effort initial pull so the server starts with fresh data. A
	// failure is advisory; the cached state keeps serving.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.PullTimeout)
		defer cancel()
		if err := sess.Pull(ctx); err != nil {
			logger.Warn("Initial pull failed, serving cached state", "error", err)
		}
	}()

	srv := apphttp.NewServer(":"+cfg.Port, sess)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		// Let in-flight remote pushes finish before the process exits.
		sess.Flush()
		cancel()
	}()

	logger.Info("Starting loantrack server", "port", cfg.Port, "remote_backend", cfg.RemoteBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
