// Package app assembles the hub, logging router, and HTTP server, and owns
// process lifecycle.
package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	server "driftboard/server"
	"driftboard/server/internal/selection"
	"driftboard/server/logging"
	loggingSinks "driftboard/server/logging/sinks"
)

const shutdownGrace = 5 * time.Second

// Config carries the process settings resolved from the environment.
type Config struct {
	ListenAddr   string
	WhiteboardID string
	Mode         selection.PerformanceMode
}

// ConfigFromEnv reads settings from LISTEN_ADDR, WHITEBOARD_ID, and
// PERFORMANCE_MODE, falling back to defaults.
func ConfigFromEnv() Config {
	cfg := Config{
		ListenAddr:   ":8080",
		WhiteboardID: "default",
	}
	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	if board := os.Getenv("WHITEBOARD_ID"); board != "" {
		cfg.WhiteboardID = board
	}
	if mode := os.Getenv("PERFORMANCE_MODE"); mode != "" {
		cfg.Mode = selection.PerformanceMode(mode)
	}
	return cfg
}

// Run starts the server and blocks until ctx is cancelled or the listener
// fails.
func Run(ctx context.Context, cfg Config) error {
	router, err := logging.NewRouter(
		logging.DefaultConfig(),
		logging.SystemClock{},
		log.Default(),
		map[string]logging.Sink{
			"console": loggingSinks.NewConsoleSink(os.Stdout, logging.ConsoleConfig{}),
		},
	)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		router.Close(closeCtx)
	}()

	hub := server.NewHubWithConfig(server.HubConfig{
		WhiteboardID: cfg.WhiteboardID,
		Engine:       selection.Config{Mode: cfg.Mode},
		Publisher:    logging.WithFields(router, map[string]any{"whiteboard": cfg.WhiteboardID}),
	})

	stop := make(chan struct{})
	go hub.RunLoop(stop)
	defer close(stop)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.NewHandler(hub),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("server listening on %s", cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
