package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resume-wizard/internal/bootstrap"
	"resume-wizard/internal/shared/config"
	"resume-wizard/internal/shared/server"
	"resume-wizard/internal/shared/telemetry"
)

const limiterResetInterval = 10 * time.Minute

func main() {
	cfg := config.Load()
	telemetry.Configure(cfg.LogFormat)

	app, err := bootstrap.Build(cfg)
	if err != nil {
		telemetry.Error("bootstrap.failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if app.RateLimiter != nil {
		go func() {
			ticker := time.NewTicker(limiterResetInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					app.RateLimiter.Reset()
				}
			}
		}()
	}

	// Upload runs up to three stages back to back; leave room for all of them.
	srv := &http.Server{
		Addr:         server.Addr(cfg.Port),
		Handler:      app.Router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 4*cfg.StageTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		telemetry.Info("server.start", map[string]any{"addr": srv.Addr, "env": cfg.Env, "database": app.DB != nil})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			telemetry.Error("server.failed", map[string]any{"error": err.Error()})
			stop()
		}
	}()

	<-ctx.Done()
	telemetry.Info("server.shutdown", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		telemetry.Error("server.shutdown_failed", map[string]any{"error": err.Error()})
	}
}
