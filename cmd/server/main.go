// Command server runs the audio core's control surface: it wires the capture, VAD,
// diarization, biomarker, and transcriber pipeline into one engine.Engine and serves it over
// HTTP/WebSocket.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vitalscribe/core/internal/config"
	"github.com/vitalscribe/core/internal/engine"
	"github.com/vitalscribe/core/internal/logging"
	"github.com/vitalscribe/core/internal/server"
)

func main() {
	cfg := config.Load()

	warnings, err := config.Validate(cfg)
	if err != nil {
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	runtime, err := logging.New(cfg.Debug.SessionLogDir)
	if err != nil {
		slog.Error("failed to open session log", "error", err)
		os.Exit(1)
	}
	defer runtime.Close()
	slog.SetDefault(runtime.Logger)

	for _, w := range warnings {
		slog.Warn("configuration warning", "field", w.Field, "message", w.Message)
	}

	eng, err := engine.New(cfg)
	if err != nil {
		slog.Error("failed to assemble audio engine", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := eng.Close(); err != nil {
			slog.Error("engine close error", "error", err)
		}
	}()

	srv := server.New(server.Deps{
		Session:    eng,
		Devices:    eng,
		Biomarkers: eng.Biomarkers(),
		Coughs:     eng.Coughs(),
		Metrics:    eng.Metrics(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go eng.Run(ctx)

	httpServer := &http.Server{
		Addr:         cfg.Service.HTTPAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("audio core starting", "http", cfg.Service.HTTPAddr, "transcriber", cfg.Transcriber.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}
