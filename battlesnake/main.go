// Package main implements a Battlesnake API server driven by the
// breadth-first search in package brain.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brensch/snekbfs/logging"
)

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	listen := fs.String("listen", getEnvOrDefault("LISTEN", ":8080"), "HTTP listen address")
	archiveDir := fs.String("archive-dir", getEnvOrDefault("ARCHIVE_DIR", ""), "Write every game played to this archive directory (empty disables)")
	logFormat := fs.String("log-format", getEnvOrDefault("LOG_FORMAT", logging.FormatJSON), "pretty, json or text")
	logLevel := fs.String("log-level", getEnvOrDefault("LOG_LEVEL", "info"), "debug, info, warn or error")

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	logger, err := logging.New(os.Stderr, *logFormat, *logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	server := NewServer(logger, *archiveDir)
	srv := &http.Server{
		Addr:              *listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Info("battlesnake server listening", "addr", *listen, "archive_dir", *archiveDir)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
		logger.Info("server stopped")
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
